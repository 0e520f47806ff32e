package repository

import (
    "context"
    "database/sql"
    "time"

    "github.com/minirail/train-seat-reservation/internal/model"
)

// WaitlistRepo provides CRUD operations for waitlist orders and their
// items. Items carry the full inventory key they are queued against;
// fulfillment walks items for one key in creation order, which is what
// makes the queue first-come-first-served.
type WaitlistRepo struct {
    db *sql.DB
}

// NewWaitlistRepo returns a new WaitlistRepo bound to the given database.
func NewWaitlistRepo(db *sql.DB) *WaitlistRepo { return &WaitlistRepo{db: db} }

// CreateTx inserts a waitlist order and its items within the scope of an
// existing transaction, populating the generated IDs. Items must be
// non-empty; an empty waitlist order is meaningless.
func (r *WaitlistRepo) CreateTx(ctx context.Context, tx *sql.Tx, o *model.WaitlistOrder, items []*model.WaitlistItem) error {
    const q = `INSERT INTO waitlist_orders (order_number, user_id, status, total_amount_cents, item_count, order_time, expire_time)
               VALUES (?, ?, ?, ?, ?, ?, ?)`
    result, err := tx.ExecContext(ctx, q, o.OrderNumber, o.UserID, o.Status,
        o.TotalAmountCents, o.ItemCount, o.OrderTime.UTC(), o.ExpireTime.UTC())
    if err != nil {
        return err
    }
    id, err := result.LastInsertId()
    if err != nil {
        return err
    }
    o.WaitlistID = id

    query := `INSERT INTO waitlist_items (waitlist_id, passenger_id,
               train_id, departure_stop_id, arrival_stop_id, travel_date, carriage_type_id,
               ticket_type, price_cents, status, created_time) VALUES `
    args := make([]interface{}, 0, len(items)*11)
    for i, it := range items {
        if i > 0 {
            query += ","
        }
        query += "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
        it.WaitlistID = id
        args = append(args, it.WaitlistID, it.PassengerID,
            it.Key.TrainID, it.Key.DepartureStopID, it.Key.ArrivalStopID,
            it.Key.TravelDate.Format("2006-01-02"), it.Key.CarriageTypeID,
            it.TicketType, it.PriceCents, it.Status, it.CreatedTime.UTC())
    }
    itemResult, err := tx.ExecContext(ctx, query, args...)
    if err != nil {
        return err
    }
    first, err := itemResult.LastInsertId()
    if err != nil {
        return err
    }
    for i, it := range items {
        it.ItemID = first + int64(i)
    }
    return nil
}

// GetOrder returns one waitlist order. ErrNotFound is returned when no
// order with the given ID exists.
func (r *WaitlistRepo) GetOrder(ctx context.Context, waitlistID int64) (*model.WaitlistOrder, error) {
    const q = `SELECT waitlist_id, order_number, user_id, status, total_amount_cents, item_count, order_time, expire_time
               FROM waitlist_orders WHERE waitlist_id = ?`
    var o model.WaitlistOrder
    err := r.db.QueryRowContext(ctx, q, waitlistID).Scan(
        &o.WaitlistID, &o.OrderNumber, &o.UserID, &o.Status,
        &o.TotalAmountCents, &o.ItemCount, &o.OrderTime, &o.ExpireTime)
    if err == sql.ErrNoRows {
        return nil, ErrNotFound
    }
    if err != nil {
        return nil, err
    }
    return &o, nil
}

// ListItems returns every item of the waitlist order in creation order.
func (r *WaitlistRepo) ListItems(ctx context.Context, waitlistID int64) ([]model.WaitlistItem, error) {
    const q = `SELECT item_id, waitlist_id, passenger_id,
                      train_id, departure_stop_id, arrival_stop_id, travel_date, carriage_type_id,
                      ticket_type, price_cents, status, ticket_id, created_time
               FROM waitlist_items WHERE waitlist_id = ? ORDER BY item_id`
    return r.listItems(ctx, q, waitlistID)
}

// GetItem returns one waitlist item. ErrNotFound is returned when no item
// with the given ID exists.
func (r *WaitlistRepo) GetItem(ctx context.Context, itemID int64) (*model.WaitlistItem, error) {
    const q = `SELECT item_id, waitlist_id, passenger_id,
                      train_id, departure_stop_id, arrival_stop_id, travel_date, carriage_type_id,
                      ticket_type, price_cents, status, ticket_id, created_time
               FROM waitlist_items WHERE item_id = ?`
    it, err := r.scanItem(r.db.QueryRowContext(ctx, q, itemID))
    if err == sql.ErrNoRows {
        return nil, ErrNotFound
    }
    return it, err
}

// ListFulfillable returns, oldest first, the pending-fulfillment items
// queued against one inventory key whose order has not expired. The
// fulfillment loop serves these in the returned order.
func (r *WaitlistRepo) ListFulfillable(ctx context.Context, key model.InventoryKey, now time.Time) ([]model.WaitlistItem, error) {
    const q = `SELECT i.item_id, i.waitlist_id, i.passenger_id,
                      i.train_id, i.departure_stop_id, i.arrival_stop_id, i.travel_date, i.carriage_type_id,
                      i.ticket_type, i.price_cents, i.status, i.ticket_id, i.created_time
               FROM waitlist_items i
               JOIN waitlist_orders o ON o.waitlist_id = i.waitlist_id
               WHERE i.train_id = ? AND i.departure_stop_id = ? AND i.arrival_stop_id = ?
                 AND i.travel_date = ? AND i.carriage_type_id = ?
                 AND i.status = ? AND o.expire_time > ?
               ORDER BY i.created_time, i.item_id`
    return r.listItems(ctx, q,
        key.TrainID, key.DepartureStopID, key.ArrivalStopID,
        key.TravelDate.Format("2006-01-02"), key.CarriageTypeID,
        model.WaitlistItemPendingFulfillment, now.UTC())
}

func (r *WaitlistRepo) listItems(ctx context.Context, q string, args ...interface{}) ([]model.WaitlistItem, error) {
    rows, err := r.db.QueryContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.WaitlistItem
    for rows.Next() {
        it, err := r.scanItem(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, *it)
    }
    return out, rows.Err()
}

func (r *WaitlistRepo) scanItem(row interface{ Scan(...interface{}) error }) (*model.WaitlistItem, error) {
    var it model.WaitlistItem
    var ticketID sql.NullInt64
    err := row.Scan(
        &it.ItemID, &it.WaitlistID, &it.PassengerID,
        &it.Key.TrainID, &it.Key.DepartureStopID, &it.Key.ArrivalStopID, &it.Key.TravelDate, &it.Key.CarriageTypeID,
        &it.TicketType, &it.PriceCents, &it.Status, &ticketID, &it.CreatedTime)
    if err != nil {
        return nil, err
    }
    if ticketID.Valid {
        it.TicketID = ticketID.Int64
    }
    return &it, nil
}

// UpdateItemStatusTx moves an item from one status to another. The WHERE
// clause guards the transition; ErrConflict means the item already moved,
// so concurrent fulfillment and cancellation cannot both win.
func (r *WaitlistRepo) UpdateItemStatusTx(ctx context.Context, tx *sql.Tx, itemID int64, from, to uint8) error {
    const q = `UPDATE waitlist_items SET status = ? WHERE item_id = ? AND status = ?`
    result, err := tx.ExecContext(ctx, q, to, itemID, from)
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

// UpdateItemTicketTx records the real ticket a fulfilled item produced, so
// a later refund of the item can unwind the ticket it stands for.
func (r *WaitlistRepo) UpdateItemTicketTx(ctx context.Context, tx *sql.Tx, itemID, ticketID int64) error {
    const q = `UPDATE waitlist_items SET ticket_id = ? WHERE item_id = ?`
    _, err := tx.ExecContext(ctx, q, ticketID, itemID)
    return err
}

// UpdateItemsStatusTx flips every item of the order that currently holds
// the from status. Paying a waitlist order moves all its pending-payment
// items to pending-fulfillment at once.
func (r *WaitlistRepo) UpdateItemsStatusTx(ctx context.Context, tx *sql.Tx, waitlistID int64, from, to uint8) error {
    const q = `UPDATE waitlist_items SET status = ? WHERE waitlist_id = ? AND status = ?`
    _, err := tx.ExecContext(ctx, q, to, waitlistID, from)
    return err
}

// UpdateOrderStatusTx sets the waitlist order status.
func (r *WaitlistRepo) UpdateOrderStatusTx(ctx context.Context, tx *sql.Tx, waitlistID int64, status uint8) error {
    const q = `UPDATE waitlist_orders SET status = ? WHERE waitlist_id = ?`
    _, err := tx.ExecContext(ctx, q, status, waitlistID)
    return err
}
