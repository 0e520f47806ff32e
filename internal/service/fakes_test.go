package service

import (
    "context"
    "fmt"
    "sync"
    "time"

    "github.com/minirail/train-seat-reservation/internal/model"
    "github.com/minirail/train-seat-reservation/internal/queue"
    "github.com/minirail/train-seat-reservation/internal/repository"
    "github.com/minirail/train-seat-reservation/internal/seatmap"
)

// fakeTicketStore keeps orders and tickets in maps with the same guarded
// transitions the SQL store enforces.
type fakeTicketStore struct {
    mu       sync.Mutex
    nextID   int64
    orders   map[int64]*model.Order
    tickets  map[int64]*model.Ticket
    journeys map[int64][]repository.TicketJourney
}

func newFakeTicketStore() *fakeTicketStore {
    return &fakeTicketStore{
        nextID:   1,
        orders:   make(map[int64]*model.Order),
        tickets:  make(map[int64]*model.Ticket),
        journeys: make(map[int64][]repository.TicketJourney),
    }
}

func (f *fakeTicketStore) id() int64 {
    id := f.nextID
    f.nextID++
    return id
}

func (f *fakeTicketStore) CreateOrderWithTickets(_ context.Context, order *model.Order, tickets []*model.Ticket) error {
    f.mu.Lock()
    defer f.mu.Unlock()
    order.OrderID = f.id()
    cp := *order
    f.orders[order.OrderID] = &cp
    for _, t := range tickets {
        t.OrderID = order.OrderID
        t.TicketID = f.id()
        tc := *t
        f.tickets[t.TicketID] = &tc
    }
    return nil
}

func (f *fakeTicketStore) Order(_ context.Context, orderID int64) (*model.Order, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    o, ok := f.orders[orderID]
    if !ok {
        return nil, repository.ErrNotFound
    }
    cp := *o
    return &cp, nil
}

func (f *fakeTicketStore) Ticket(_ context.Context, ticketID int64) (*model.Ticket, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    t, ok := f.tickets[ticketID]
    if !ok {
        return nil, repository.ErrNotFound
    }
    cp := *t
    return &cp, nil
}

func (f *fakeTicketStore) TicketsByOrder(_ context.Context, orderID int64) ([]model.Ticket, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    var out []model.Ticket
    for i := int64(0); i < f.nextID; i++ {
        if t, ok := f.tickets[i]; ok && t.OrderID == orderID {
            out = append(out, *t)
        }
    }
    return out, nil
}

func (f *fakeTicketStore) MarkOrderPaid(_ context.Context, orderID int64, method string, paidAt time.Time) error {
    f.mu.Lock()
    defer f.mu.Unlock()
    o, ok := f.orders[orderID]
    if !ok || o.Status != model.OrderPendingPayment {
        return repository.ErrConflict
    }
    o.Status = model.OrderPaid
    o.PaymentTime = &paidAt
    o.PaymentMethod = &method
    return nil
}

func (f *fakeTicketStore) SetOrderStatus(_ context.Context, orderID int64, status uint8) error {
    f.mu.Lock()
    defer f.mu.Unlock()
    if o, ok := f.orders[orderID]; ok {
        o.Status = status
    }
    return nil
}

func (f *fakeTicketStore) SetOrderTotals(_ context.Context, orderID, totalAmountCents int64, ticketCount int) error {
    f.mu.Lock()
    defer f.mu.Unlock()
    if o, ok := f.orders[orderID]; ok {
        o.TotalAmountCents = totalAmountCents
        o.TicketCount = ticketCount
    }
    return nil
}

func (f *fakeTicketStore) MoveTicketStatus(_ context.Context, ticketID int64, from, to uint8) error {
    f.mu.Lock()
    defer f.mu.Unlock()
    t, ok := f.tickets[ticketID]
    if !ok || t.Status != from {
        return repository.ErrConflict
    }
    t.Status = to
    return nil
}

func (f *fakeTicketStore) SetTicketsStatus(_ context.Context, ticketIDs []int64, status uint8) error {
    f.mu.Lock()
    defer f.mu.Unlock()
    for _, id := range ticketIDs {
        if t, ok := f.tickets[id]; ok {
            t.Status = status
        }
    }
    return nil
}

func (f *fakeTicketStore) AssignSeat(_ context.Context, ticketID int64, carriageNumber, seatNumber string) error {
    f.mu.Lock()
    defer f.mu.Unlock()
    if t, ok := f.tickets[ticketID]; ok {
        t.CarriageNumber = &carriageNumber
        t.SeatNumber = &seatNumber
    }
    return nil
}

func (f *fakeTicketStore) PendingOrdersOlderThan(_ context.Context, cutoff time.Time) ([]model.Order, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    var out []model.Order
    for i := int64(0); i < f.nextID; i++ {
        if o, ok := f.orders[i]; ok && o.Status == model.OrderPendingPayment && !o.OrderTime.After(cutoff) {
            out = append(out, *o)
        }
    }
    return out, nil
}

func (f *fakeTicketStore) JourneysByPassenger(_ context.Context, passengerID int64) ([]repository.TicketJourney, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    return f.journeys[passengerID], nil
}

// fakeInventoryStore serves static records keyed by stock key.
type fakeInventoryStore struct {
    mu      sync.Mutex
    records map[string]*model.InventoryRecord
    synced  map[int64]int
}

func newFakeInventoryStore() *fakeInventoryStore {
    return &fakeInventoryStore{
        records: make(map[string]*model.InventoryRecord),
        synced:  make(map[int64]int),
    }
}

func (f *fakeInventoryStore) add(rec model.InventoryRecord) {
    f.records[rec.Key.StockKey()] = &rec
}

func (f *fakeInventoryStore) ByKey(_ context.Context, key model.InventoryKey) (*model.InventoryRecord, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    rec, ok := f.records[key.StockKey()]
    if !ok {
        return nil, repository.ErrNotFound
    }
    cp := *rec
    return &cp, nil
}

func (f *fakeInventoryStore) All(_ context.Context) ([]model.InventoryRecord, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    var out []model.InventoryRecord
    for _, rec := range f.records {
        out = append(out, *rec)
    }
    return out, nil
}

func (f *fakeInventoryStore) ByTrainAndDate(_ context.Context, trainID int, travelDate string) ([]model.InventoryRecord, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    var out []model.InventoryRecord
    for _, rec := range f.records {
        if rec.Key.TrainID == trainID && rec.Key.TravelDate.Format("2006-01-02") == travelDate {
            out = append(out, *rec)
        }
    }
    return out, nil
}

func (f *fakeInventoryStore) SyncFromLedger(_ context.Context, inventoryID int64, available int) error {
    f.mu.Lock()
    defer f.mu.Unlock()
    f.synced[inventoryID] = available
    for _, rec := range f.records {
        if rec.InventoryID == inventoryID {
            rec.AvailableSeats = available
        }
    }
    return nil
}

// fakeWaitlistStore mirrors the SQL store's guarded item transitions.
type fakeWaitlistStore struct {
    mu     sync.Mutex
    nextID int64
    orders map[int64]*model.WaitlistOrder
    items  map[int64]*model.WaitlistItem
}

func newFakeWaitlistStore() *fakeWaitlistStore {
    return &fakeWaitlistStore{
        nextID: 1,
        orders: make(map[int64]*model.WaitlistOrder),
        items:  make(map[int64]*model.WaitlistItem),
    }
}

func (f *fakeWaitlistStore) Create(_ context.Context, order *model.WaitlistOrder, items []*model.WaitlistItem) error {
    f.mu.Lock()
    defer f.mu.Unlock()
    order.WaitlistID = f.nextID
    f.nextID++
    cp := *order
    f.orders[order.WaitlistID] = &cp
    for _, it := range items {
        it.WaitlistID = order.WaitlistID
        it.ItemID = f.nextID
        f.nextID++
        ic := *it
        f.items[it.ItemID] = &ic
    }
    return nil
}

func (f *fakeWaitlistStore) Order(_ context.Context, waitlistID int64) (*model.WaitlistOrder, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    o, ok := f.orders[waitlistID]
    if !ok {
        return nil, repository.ErrNotFound
    }
    cp := *o
    return &cp, nil
}

func (f *fakeWaitlistStore) Items(_ context.Context, waitlistID int64) ([]model.WaitlistItem, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    var out []model.WaitlistItem
    for i := int64(0); i < f.nextID; i++ {
        if it, ok := f.items[i]; ok && it.WaitlistID == waitlistID {
            out = append(out, *it)
        }
    }
    return out, nil
}

func (f *fakeWaitlistStore) Item(_ context.Context, itemID int64) (*model.WaitlistItem, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    it, ok := f.items[itemID]
    if !ok {
        return nil, repository.ErrNotFound
    }
    cp := *it
    return &cp, nil
}

func (f *fakeWaitlistStore) Fulfillable(_ context.Context, key model.InventoryKey, now time.Time) ([]model.WaitlistItem, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    var out []model.WaitlistItem
    for i := int64(0); i < f.nextID; i++ {
        it, ok := f.items[i]
        if !ok || it.Status != model.WaitlistItemPendingFulfillment {
            continue
        }
        if it.Key.StockKey() != key.StockKey() {
            continue
        }
        if o, ok := f.orders[it.WaitlistID]; ok && !o.ExpireTime.After(now) {
            continue
        }
        out = append(out, *it)
    }
    return out, nil
}

func (f *fakeWaitlistStore) MoveItemStatus(_ context.Context, itemID int64, from, to uint8) error {
    f.mu.Lock()
    defer f.mu.Unlock()
    it, ok := f.items[itemID]
    if !ok || it.Status != from {
        return repository.ErrConflict
    }
    it.Status = to
    return nil
}

func (f *fakeWaitlistStore) SetItemTicket(_ context.Context, itemID, ticketID int64) error {
    f.mu.Lock()
    defer f.mu.Unlock()
    if it, ok := f.items[itemID]; ok {
        it.TicketID = ticketID
    }
    return nil
}

func (f *fakeWaitlistStore) MoveItemsStatus(_ context.Context, waitlistID int64, from, to uint8) error {
    f.mu.Lock()
    defer f.mu.Unlock()
    for _, it := range f.items {
        if it.WaitlistID == waitlistID && it.Status == from {
            it.Status = to
        }
    }
    return nil
}

func (f *fakeWaitlistStore) SetOrderStatus(_ context.Context, waitlistID int64, status uint8) error {
    f.mu.Lock()
    defer f.mu.Unlock()
    if o, ok := f.orders[waitlistID]; ok {
        o.Status = status
    }
    return nil
}

// fakeRelations approves the pairs it was seeded with.
type fakeRelations struct {
    pairs map[string]bool
}

func newFakeRelations(pairs ...[2]int64) *fakeRelations {
    f := &fakeRelations{pairs: make(map[string]bool)}
    for _, p := range pairs {
        f.pairs[fmt.Sprintf("%d/%d", p[0], p[1])] = true
    }
    return f
}

func (f *fakeRelations) Exists(_ context.Context, userID, passengerID int64) (bool, error) {
    return f.pairs[fmt.Sprintf("%d/%d", userID, passengerID)], nil
}

// fakeSchedule serves stop rows keyed by train and stop.
type fakeSchedule struct {
    stops map[string]*model.TrainStop
}

func newFakeSchedule() *fakeSchedule {
    return &fakeSchedule{stops: make(map[string]*model.TrainStop)}
}

func (f *fakeSchedule) addStop(trainID int, stopID int64, seq int, arrive, depart string) {
    s := &model.TrainStop{StopID: stopID, TrainID: trainID, SequenceNumber: seq}
    if arrive != "" {
        t, _ := time.Parse("15:04", arrive)
        s.ArrivalTime = &t
    }
    if depart != "" {
        t, _ := time.Parse("15:04", depart)
        s.DepartureTime = &t
    }
    f.stops[fmt.Sprintf("%d/%d", trainID, stopID)] = s
}

func (f *fakeSchedule) GetStop(_ context.Context, trainID int, stopID int64) (*model.TrainStop, error) {
    s, ok := f.stops[fmt.Sprintf("%d/%d", trainID, stopID)]
    if !ok {
        return nil, repository.ErrNotFound
    }
    return s, nil
}

// fakeSeats hands out sequential seat numbers and records releases.
type fakeSeats struct {
    mu       sync.Mutex
    next     int
    fail     bool
    released []string
}

func (f *fakeSeats) FindAndAssign(_ context.Context, _, _ int, _ time.Time, _, _ int64) (*seatmap.Assignment, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    if f.fail {
        return nil, seatmap.ErrNoSeat
    }
    f.next++
    return &seatmap.Assignment{
        SeatID:         int64(f.next),
        CarriageNumber: "1",
        SeatNumber:     fmt.Sprintf("%dA", f.next),
    }, nil
}

func (f *fakeSeats) ReleaseSeat(_ context.Context, _ int, carriageNumber, seatNumber string, _ time.Time, _, _ int64) error {
    f.mu.Lock()
    defer f.mu.Unlock()
    f.released = append(f.released, carriageNumber+"-"+seatNumber)
    return nil
}

// fakeChangeMaps is an in-memory ChangeMapStore. failSet makes the next
// Set calls fail, for exercising the revert path.
type fakeChangeMaps struct {
    mu       sync.Mutex
    failSet  bool
    mappings map[int64][2]int64
    reverse  map[int64]int64
}

func newFakeChangeMaps() *fakeChangeMaps {
    return &fakeChangeMaps{
        mappings: make(map[int64][2]int64),
        reverse:  make(map[int64]int64),
    }
}

func (f *fakeChangeMaps) Set(_ context.Context, newTicketID, originalTicketID, passengerID int64) error {
    f.mu.Lock()
    defer f.mu.Unlock()
    if f.failSet {
        return fmt.Errorf("mapping store unavailable")
    }
    f.mappings[newTicketID] = [2]int64{originalTicketID, passengerID}
    f.reverse[originalTicketID] = newTicketID
    return nil
}

func (f *fakeChangeMaps) Get(_ context.Context, newTicketID int64) (int64, int64, bool, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    m, ok := f.mappings[newTicketID]
    if !ok {
        return 0, 0, false, nil
    }
    return m[0], m[1], true, nil
}

func (f *fakeChangeMaps) GetByOriginal(_ context.Context, originalTicketID int64) (int64, bool, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    id, ok := f.reverse[originalTicketID]
    return id, ok, nil
}

func (f *fakeChangeMaps) Delete(_ context.Context, newTicketID int64) error {
    f.mu.Lock()
    defer f.mu.Unlock()
    if m, ok := f.mappings[newTicketID]; ok {
        delete(f.reverse, m[0])
    }
    delete(f.mappings, newTicketID)
    return nil
}

// capturingPublisher records published messages and can be told to fail.
type capturingPublisher struct {
    mu       sync.Mutex
    fail     bool
    messages []queue.OrderCreatedMessage
}

func (p *capturingPublisher) publish(_ context.Context, msg queue.OrderCreatedMessage) error {
    p.mu.Lock()
    defer p.mu.Unlock()
    if p.fail {
        return fmt.Errorf("broker unavailable")
    }
    p.messages = append(p.messages, msg)
    return nil
}
