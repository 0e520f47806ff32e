package service

import (
    "context"
    "database/sql"
    "time"

    "github.com/minirail/train-seat-reservation/internal/model"
    "github.com/minirail/train-seat-reservation/internal/repository"
)

// SQLTicketStore implements TicketStore over the order and ticket
// repositories. Multi-statement methods run in one transaction; the rest
// delegate to a short transaction so the repositories' guarded updates keep
// their semantics.
type SQLTicketStore struct {
    db      *sql.DB
    orders  *repository.OrderRepo
    tickets *repository.TicketRepo
}

func NewSQLTicketStore(db *sql.DB) *SQLTicketStore {
    return &SQLTicketStore{
        db:      db,
        orders:  repository.NewOrderRepo(db),
        tickets: repository.NewTicketRepo(db),
    }
}

func (s *SQLTicketStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
    tx, err := s.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    if err := fn(tx); err != nil {
        _ = tx.Rollback()
        return err
    }
    return tx.Commit()
}

func (s *SQLTicketStore) CreateOrderWithTickets(ctx context.Context, order *model.Order, tickets []*model.Ticket) error {
    return s.withTx(ctx, func(tx *sql.Tx) error {
        if err := s.orders.CreateTx(ctx, tx, order); err != nil {
            return err
        }
        for _, t := range tickets {
            t.OrderID = order.OrderID
        }
        return s.tickets.CreateBulkTx(ctx, tx, tickets)
    })
}

func (s *SQLTicketStore) Order(ctx context.Context, orderID int64) (*model.Order, error) {
    return s.orders.GetByID(ctx, orderID)
}

func (s *SQLTicketStore) Ticket(ctx context.Context, ticketID int64) (*model.Ticket, error) {
    return s.tickets.GetByID(ctx, ticketID)
}

func (s *SQLTicketStore) TicketsByOrder(ctx context.Context, orderID int64) ([]model.Ticket, error) {
    return s.tickets.ListByOrder(ctx, orderID)
}

func (s *SQLTicketStore) MarkOrderPaid(ctx context.Context, orderID int64, method string, paidAt time.Time) error {
    return s.withTx(ctx, func(tx *sql.Tx) error {
        return s.orders.MarkPaidTx(ctx, tx, orderID, method, paidAt)
    })
}

func (s *SQLTicketStore) SetOrderStatus(ctx context.Context, orderID int64, status uint8) error {
    return s.withTx(ctx, func(tx *sql.Tx) error {
        return s.orders.UpdateStatusTx(ctx, tx, orderID, status)
    })
}

func (s *SQLTicketStore) SetOrderTotals(ctx context.Context, orderID, totalAmountCents int64, ticketCount int) error {
    return s.withTx(ctx, func(tx *sql.Tx) error {
        return s.orders.UpdateTotalsTx(ctx, tx, orderID, totalAmountCents, ticketCount)
    })
}

func (s *SQLTicketStore) MoveTicketStatus(ctx context.Context, ticketID int64, from, to uint8) error {
    return s.withTx(ctx, func(tx *sql.Tx) error {
        return s.tickets.UpdateStatusTx(ctx, tx, ticketID, from, to)
    })
}

func (s *SQLTicketStore) SetTicketsStatus(ctx context.Context, ticketIDs []int64, status uint8) error {
    return s.withTx(ctx, func(tx *sql.Tx) error {
        return s.tickets.SetStatusBulkTx(ctx, tx, ticketIDs, status)
    })
}

func (s *SQLTicketStore) AssignSeat(ctx context.Context, ticketID int64, carriageNumber, seatNumber string) error {
    return s.withTx(ctx, func(tx *sql.Tx) error {
        return s.tickets.AssignSeatTx(ctx, tx, ticketID, carriageNumber, seatNumber)
    })
}

func (s *SQLTicketStore) PendingOrdersOlderThan(ctx context.Context, cutoff time.Time) ([]model.Order, error) {
    return s.orders.ListPendingOlderThan(ctx, cutoff)
}

func (s *SQLTicketStore) JourneysByPassenger(ctx context.Context, passengerID int64) ([]repository.TicketJourney, error) {
    return s.tickets.ListJourneysByPassenger(ctx, passengerID)
}

// SQLInventoryStore implements InventoryStore over the inventory repository.
type SQLInventoryStore struct {
    inventory *repository.InventoryRepo
}

func NewSQLInventoryStore(db *sql.DB) *SQLInventoryStore {
    return &SQLInventoryStore{inventory: repository.NewInventoryRepo(db)}
}

func (s *SQLInventoryStore) ByKey(ctx context.Context, key model.InventoryKey) (*model.InventoryRecord, error) {
    return s.inventory.GetByKey(ctx, key)
}

func (s *SQLInventoryStore) All(ctx context.Context) ([]model.InventoryRecord, error) {
    return s.inventory.ListAll(ctx)
}

func (s *SQLInventoryStore) ByTrainAndDate(ctx context.Context, trainID int, travelDate string) ([]model.InventoryRecord, error) {
    return s.inventory.ListByTrainAndDate(ctx, trainID, travelDate)
}

func (s *SQLInventoryStore) SyncFromLedger(ctx context.Context, inventoryID int64, available int) error {
    return s.inventory.SyncFromLedger(ctx, inventoryID, available)
}

// SQLWaitlistStore implements WaitlistStore over the waitlist repository.
type SQLWaitlistStore struct {
    db       *sql.DB
    waitlist *repository.WaitlistRepo
}

func NewSQLWaitlistStore(db *sql.DB) *SQLWaitlistStore {
    return &SQLWaitlistStore{db: db, waitlist: repository.NewWaitlistRepo(db)}
}

func (s *SQLWaitlistStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
    tx, err := s.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    if err := fn(tx); err != nil {
        _ = tx.Rollback()
        return err
    }
    return tx.Commit()
}

func (s *SQLWaitlistStore) Create(ctx context.Context, order *model.WaitlistOrder, items []*model.WaitlistItem) error {
    return s.withTx(ctx, func(tx *sql.Tx) error {
        return s.waitlist.CreateTx(ctx, tx, order, items)
    })
}

func (s *SQLWaitlistStore) Order(ctx context.Context, waitlistID int64) (*model.WaitlistOrder, error) {
    return s.waitlist.GetOrder(ctx, waitlistID)
}

func (s *SQLWaitlistStore) Items(ctx context.Context, waitlistID int64) ([]model.WaitlistItem, error) {
    return s.waitlist.ListItems(ctx, waitlistID)
}

func (s *SQLWaitlistStore) Item(ctx context.Context, itemID int64) (*model.WaitlistItem, error) {
    return s.waitlist.GetItem(ctx, itemID)
}

func (s *SQLWaitlistStore) Fulfillable(ctx context.Context, key model.InventoryKey, now time.Time) ([]model.WaitlistItem, error) {
    return s.waitlist.ListFulfillable(ctx, key, now)
}

func (s *SQLWaitlistStore) MoveItemStatus(ctx context.Context, itemID int64, from, to uint8) error {
    return s.withTx(ctx, func(tx *sql.Tx) error {
        return s.waitlist.UpdateItemStatusTx(ctx, tx, itemID, from, to)
    })
}

func (s *SQLWaitlistStore) SetItemTicket(ctx context.Context, itemID, ticketID int64) error {
    return s.withTx(ctx, func(tx *sql.Tx) error {
        return s.waitlist.UpdateItemTicketTx(ctx, tx, itemID, ticketID)
    })
}

func (s *SQLWaitlistStore) MoveItemsStatus(ctx context.Context, waitlistID int64, from, to uint8) error {
    return s.withTx(ctx, func(tx *sql.Tx) error {
        return s.waitlist.UpdateItemsStatusTx(ctx, tx, waitlistID, from, to)
    })
}

func (s *SQLWaitlistStore) SetOrderStatus(ctx context.Context, waitlistID int64, status uint8) error {
    return s.withTx(ctx, func(tx *sql.Tx) error {
        return s.waitlist.UpdateOrderStatusTx(ctx, tx, waitlistID, status)
    })
}
