package repository

import (
    "context"
    "database/sql"
    "time"

    "github.com/minirail/train-seat-reservation/internal/model"
)

// OrderRepo provides CRUD operations for ticket orders. Orders group
// together the tickets bought in one booking; the tickets themselves live
// in the tickets table and are managed by TicketRepo. All timestamp
// fields are stored in UTC.
type OrderRepo struct {
    db *sql.DB
}

// NewOrderRepo returns a new OrderRepo bound to the given database.
func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{db: db} }

// CreateTx inserts a new order within the scope of an existing transaction
// and populates the generated ID on the provided record. The caller must
// commit or rollback the transaction.
func (r *OrderRepo) CreateTx(ctx context.Context, tx *sql.Tx, o *model.Order) error {
    const q = `INSERT INTO orders (order_number, user_id, status, total_amount_cents, ticket_count, order_time)
               VALUES (?, ?, ?, ?, ?, ?)`
    result, err := tx.ExecContext(ctx, q, o.OrderNumber, o.UserID, o.Status, o.TotalAmountCents, o.TicketCount, o.OrderTime.UTC())
    if err != nil {
        return err
    }
    id, err := result.LastInsertId()
    if err != nil {
        return err
    }
    o.OrderID = id
    return nil
}

// GetByID returns one order. ErrNotFound is returned when no order with
// the given ID exists.
func (r *OrderRepo) GetByID(ctx context.Context, orderID int64) (*model.Order, error) {
    const q = `SELECT order_id, order_number, user_id, status, total_amount_cents, ticket_count,
                      order_time, payment_time, payment_method
               FROM orders WHERE order_id = ?`
    return r.scanOne(r.db.QueryRowContext(ctx, q, orderID))
}

// GetByIDTx is GetByID inside a transaction, used when a workflow needs to
// read the order and mutate it under the same snapshot.
func (r *OrderRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, orderID int64) (*model.Order, error) {
    const q = `SELECT order_id, order_number, user_id, status, total_amount_cents, ticket_count,
                      order_time, payment_time, payment_method
               FROM orders WHERE order_id = ? FOR UPDATE`
    return r.scanOne(tx.QueryRowContext(ctx, q, orderID))
}

func (r *OrderRepo) scanOne(row *sql.Row) (*model.Order, error) {
    var o model.Order
    var paymentTime sql.NullTime
    var paymentMethod sql.NullString
    err := row.Scan(&o.OrderID, &o.OrderNumber, &o.UserID, &o.Status, &o.TotalAmountCents,
        &o.TicketCount, &o.OrderTime, &paymentTime, &paymentMethod)
    if err == sql.ErrNoRows {
        return nil, ErrNotFound
    }
    if err != nil {
        return nil, err
    }
    if paymentTime.Valid {
        t := paymentTime.Time
        o.PaymentTime = &t
    }
    if paymentMethod.Valid {
        m := paymentMethod.String
        o.PaymentMethod = &m
    }
    return &o, nil
}

// ListByUser returns all orders for the given user, newest first.
func (r *OrderRepo) ListByUser(ctx context.Context, userID int64) ([]model.Order, error) {
    const q = `SELECT order_id, order_number, user_id, status, total_amount_cents, ticket_count,
                      order_time, payment_time, payment_method
               FROM orders WHERE user_id = ? ORDER BY order_time DESC`
    rows, err := r.db.QueryContext(ctx, q, userID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.Order
    for rows.Next() {
        var o model.Order
        var paymentTime sql.NullTime
        var paymentMethod sql.NullString
        if err := rows.Scan(&o.OrderID, &o.OrderNumber, &o.UserID, &o.Status, &o.TotalAmountCents,
            &o.TicketCount, &o.OrderTime, &paymentTime, &paymentMethod); err != nil {
            return nil, err
        }
        if paymentTime.Valid {
            t := paymentTime.Time
            o.PaymentTime = &t
        }
        if paymentMethod.Valid {
            m := paymentMethod.String
            o.PaymentMethod = &m
        }
        out = append(out, o)
    }
    return out, rows.Err()
}

// ListPendingOlderThan returns pending-payment orders created at or before
// the cutoff. The timeout reaper cancels what this returns.
func (r *OrderRepo) ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]model.Order, error) {
    const q = `SELECT order_id, order_number, user_id, status, total_amount_cents, ticket_count,
                      order_time, payment_time, payment_method
               FROM orders WHERE status = ? AND order_time <= ?`
    rows, err := r.db.QueryContext(ctx, q, model.OrderPendingPayment, cutoff.UTC())
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.Order
    for rows.Next() {
        var o model.Order
        var paymentTime sql.NullTime
        var paymentMethod sql.NullString
        if err := rows.Scan(&o.OrderID, &o.OrderNumber, &o.UserID, &o.Status, &o.TotalAmountCents,
            &o.TicketCount, &o.OrderTime, &paymentTime, &paymentMethod); err != nil {
            return nil, err
        }
        out = append(out, o)
    }
    return out, rows.Err()
}

// MarkPaidTx flips a pending-payment order to paid and records the payment
// time and method. The WHERE clause guards the status transition: if the
// order already moved on (paid twice, reaped in between) no row updates
// and ErrConflict is returned.
func (r *OrderRepo) MarkPaidTx(ctx context.Context, tx *sql.Tx, orderID int64, method string, paidAt time.Time) error {
    const q = `UPDATE orders SET status = ?, payment_time = ?, payment_method = ?
               WHERE order_id = ? AND status = ?`
    result, err := tx.ExecContext(ctx, q, model.OrderPaid, paidAt.UTC(), method, orderID, model.OrderPendingPayment)
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

// UpdateStatusTx sets the order status unconditionally within a transaction.
func (r *OrderRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, orderID int64, status uint8) error {
    const q = `UPDATE orders SET status = ? WHERE order_id = ?`
    _, err := tx.ExecContext(ctx, q, status, orderID)
    return err
}

// UpdateTotalsTx rewrites the order's running amount and ticket count after
// a refund or change removed tickets from it.
func (r *OrderRepo) UpdateTotalsTx(ctx context.Context, tx *sql.Tx, orderID, totalAmountCents int64, ticketCount int) error {
    const q = `UPDATE orders SET total_amount_cents = ?, ticket_count = ? WHERE order_id = ?`
    _, err := tx.ExecContext(ctx, q, totalAmountCents, ticketCount, orderID)
    return err
}
