package repository

import (
    "context"
    "database/sql"
    "time"

    "github.com/minirail/train-seat-reservation/internal/model"
)

// TicketRepo provides CRUD operations for tickets. A ticket is one
// passenger's seat on one train segment; rows carry the full inventory
// key so refunds and changes can restore the right counter without a
// join. Seat columns stay NULL until the allocator assigns a physical
// seat during order materialization.
type TicketRepo struct {
    db *sql.DB
}

// NewTicketRepo returns a new TicketRepo bound to the given database.
func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{db: db} }

const ticketColumns = `ticket_id, ticket_number, order_id, passenger_id,
               train_id, departure_stop_id, arrival_stop_id, travel_date, carriage_type_id,
               carriage_number, seat_number, price_cents, status, ticket_type, created_time`

func scanTicket(row interface{ Scan(...interface{}) error }) (*model.Ticket, error) {
    var t model.Ticket
    var carriage, seat sql.NullString
    err := row.Scan(
        &t.TicketID, &t.TicketNumber, &t.OrderID, &t.PassengerID,
        &t.Key.TrainID, &t.Key.DepartureStopID, &t.Key.ArrivalStopID, &t.Key.TravelDate, &t.Key.CarriageTypeID,
        &carriage, &seat, &t.PriceCents, &t.Status, &t.TicketType, &t.CreatedTime,
    )
    if err != nil {
        return nil, err
    }
    if carriage.Valid {
        c := carriage.String
        t.CarriageNumber = &c
    }
    if seat.Valid {
        s := seat.String
        t.SeatNumber = &s
    }
    return &t, nil
}

// CreateBulkTx inserts the tickets of one order in a single statement and
// populates the generated IDs in insertion order. MySQL hands back the
// first auto-increment ID of a multi-row insert; consecutive IDs follow.
// Passing an empty slice has no effect and returns nil.
func (r *TicketRepo) CreateBulkTx(ctx context.Context, tx *sql.Tx, tickets []*model.Ticket) error {
    if len(tickets) == 0 {
        return nil
    }
    query := `INSERT INTO tickets (ticket_number, order_id, passenger_id,
               train_id, departure_stop_id, arrival_stop_id, travel_date, carriage_type_id,
               price_cents, status, ticket_type, created_time) VALUES `
    args := make([]interface{}, 0, len(tickets)*12)
    for i, t := range tickets {
        if i > 0 {
            query += ","
        }
        query += "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
        args = append(args, t.TicketNumber, t.OrderID, t.PassengerID,
            t.Key.TrainID, t.Key.DepartureStopID, t.Key.ArrivalStopID,
            t.Key.TravelDate.Format("2006-01-02"), t.Key.CarriageTypeID,
            t.PriceCents, t.Status, t.TicketType, t.CreatedTime.UTC())
    }
    result, err := tx.ExecContext(ctx, query, args...)
    if err != nil {
        return err
    }
    first, err := result.LastInsertId()
    if err != nil {
        return err
    }
    for i, t := range tickets {
        t.TicketID = first + int64(i)
    }
    return nil
}

// GetByID returns one ticket. ErrNotFound is returned when no ticket with
// the given ID exists.
func (r *TicketRepo) GetByID(ctx context.Context, ticketID int64) (*model.Ticket, error) {
    const q = `SELECT ` + ticketColumns + ` FROM tickets WHERE ticket_id = ?`
    t, err := scanTicket(r.db.QueryRowContext(ctx, q, ticketID))
    if err == sql.ErrNoRows {
        return nil, ErrNotFound
    }
    return t, err
}

// GetByIDTx is GetByID inside a transaction with a row lock, used by
// refund and change workflows that read then mutate the ticket.
func (r *TicketRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, ticketID int64) (*model.Ticket, error) {
    const q = `SELECT ` + ticketColumns + ` FROM tickets WHERE ticket_id = ? FOR UPDATE`
    t, err := scanTicket(tx.QueryRowContext(ctx, q, ticketID))
    if err == sql.ErrNoRows {
        return nil, ErrNotFound
    }
    return t, err
}

// ListByOrder returns every ticket belonging to the order, in creation
// order.
func (r *TicketRepo) ListByOrder(ctx context.Context, orderID int64) ([]model.Ticket, error) {
    const q = `SELECT ` + ticketColumns + ` FROM tickets WHERE order_id = ? ORDER BY ticket_id`
    return r.list(ctx, r.db.QueryContext, q, orderID)
}

// ListByOrderTx is ListByOrder inside a transaction.
func (r *TicketRepo) ListByOrderTx(ctx context.Context, tx *sql.Tx, orderID int64) ([]model.Ticket, error) {
    const q = `SELECT ` + ticketColumns + ` FROM tickets WHERE order_id = ? ORDER BY ticket_id`
    return r.list(ctx, tx.QueryContext, q, orderID)
}

type queryFunc func(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)

func (r *TicketRepo) list(ctx context.Context, query queryFunc, q string, args ...interface{}) ([]model.Ticket, error) {
    rows, err := query(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.Ticket
    for rows.Next() {
        t, err := scanTicket(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, *t)
    }
    return out, rows.Err()
}

// TicketJourney pairs a valid ticket with the clock times of its segment,
// read from the train's stop schedule. The time-conflict check consumes
// this shape.
type TicketJourney struct {
    TicketID      int64
    TrainID       int
    TravelDate    time.Time
    DepartureTime time.Time
    ArrivalTime   time.Time
}

// ListJourneysByPassenger returns the journeys of every valid ticket held
// by the passenger. Tickets whose segment stops carry no schedule times
// are skipped; there is nothing to compare them against.
func (r *TicketRepo) ListJourneysByPassenger(ctx context.Context, passengerID int64) ([]TicketJourney, error) {
    const q = `SELECT t.ticket_id, t.train_id, t.travel_date, dep.departure_time, arr.arrival_time
               FROM tickets t
               JOIN train_stops dep ON dep.train_id = t.train_id AND dep.stop_id = t.departure_stop_id
               JOIN train_stops arr ON arr.train_id = t.train_id AND arr.stop_id = t.arrival_stop_id
               WHERE t.passenger_id = ? AND t.status IN (?, ?, ?)`
    rows, err := r.db.QueryContext(ctx, q, passengerID,
        model.TicketPendingPayment, model.TicketUnused, model.TicketUsed)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []TicketJourney
    for rows.Next() {
        var j TicketJourney
        var dep, arr sql.NullTime
        if err := rows.Scan(&j.TicketID, &j.TrainID, &j.TravelDate, &dep, &arr); err != nil {
            return nil, err
        }
        if !dep.Valid || !arr.Valid {
            continue
        }
        j.DepartureTime = dep.Time
        j.ArrivalTime = arr.Time
        out = append(out, j)
    }
    return out, rows.Err()
}

// AssignSeatTx records the physical seat the allocator picked for the
// ticket.
func (r *TicketRepo) AssignSeatTx(ctx context.Context, tx *sql.Tx, ticketID int64, carriageNumber, seatNumber string) error {
    const q = `UPDATE tickets SET carriage_number = ?, seat_number = ? WHERE ticket_id = ?`
    _, err := tx.ExecContext(ctx, q, carriageNumber, seatNumber, ticketID)
    return err
}

// UpdateStatusTx moves the ticket from one status to another. The WHERE
// clause guards the transition; ErrConflict is returned when the ticket
// already left the expected status, which makes refund and reaper
// workflows idempotent.
func (r *TicketRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, ticketID int64, from, to uint8) error {
    const q = `UPDATE tickets SET status = ? WHERE ticket_id = ? AND status = ?`
    result, err := tx.ExecContext(ctx, q, to, ticketID, from)
    if err != nil {
        return err
    }
    n, err := result.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return ErrConflict
    }
    return nil
}

// SetStatusBulkTx sets the status of every listed ticket regardless of its
// current status. Order materialization uses it to flip freshly created
// tickets once payment settles.
func (r *TicketRepo) SetStatusBulkTx(ctx context.Context, tx *sql.Tx, ticketIDs []int64, status uint8) error {
    if len(ticketIDs) == 0 {
        return nil
    }
    query := `UPDATE tickets SET status = ? WHERE ticket_id IN (`
    args := make([]interface{}, 0, len(ticketIDs)+1)
    args = append(args, status)
    for i, id := range ticketIDs {
        if i > 0 {
            query += ","
        }
        query += "?"
        args = append(args, id)
    }
    query += ")"
    _, err := tx.ExecContext(ctx, query, args...)
    return err
}
