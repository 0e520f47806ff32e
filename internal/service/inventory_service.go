package service

import (
    "context"
    "time"

    "github.com/minirail/train-seat-reservation/internal/ledger"
)

// AvailabilityEntry is one displayable inventory line: the key fields plus
// the freshest seat count on hand.
type AvailabilityEntry struct {
    TrainID         int    `json:"train_id"`
    DepartureStopID int64  `json:"departure_stop_id"`
    ArrivalStopID   int64  `json:"arrival_stop_id"`
    TravelDate      string `json:"travel_date"`
    CarriageTypeID  int    `json:"carriage_type_id"`
    TotalSeats      int    `json:"total_seats"`
    AvailableSeats  int    `json:"available_seats"`
    PriceCents      int64  `json:"price_cents"`
    Live            bool   `json:"live"`
}

// InventoryService serves display reads. No locks are taken: a count shown
// to a browsing user is advisory, and the booking path re-checks against
// the ledger anyway. When the ledger has no counter for a key the durable
// shadow is shown with Live=false.
type InventoryService struct {
    inventory InventoryStore
    stock     ledger.Ledger
}

func NewInventoryService(inventory InventoryStore, stock ledger.Ledger) *InventoryService {
    return &InventoryService{inventory: inventory, stock: stock}
}

// Availability lists the sellable inventory of one train on one date,
// overlaying live counter values on the durable rows.
func (s *InventoryService) Availability(ctx context.Context, trainID int, travelDate time.Time) ([]AvailabilityEntry, error) {
    records, err := s.inventory.ByTrainAndDate(ctx, trainID, travelDate.Format("2006-01-02"))
    if err != nil {
        return nil, err
    }
    out := make([]AvailabilityEntry, 0, len(records))
    for _, rec := range records {
        entry := AvailabilityEntry{
            TrainID:         rec.Key.TrainID,
            DepartureStopID: rec.Key.DepartureStopID,
            ArrivalStopID:   rec.Key.ArrivalStopID,
            TravelDate:      rec.Key.TravelDate.Format("2006-01-02"),
            CarriageTypeID:  rec.Key.CarriageTypeID,
            TotalSeats:      rec.TotalSeats,
            AvailableSeats:  rec.AvailableSeats,
            PriceCents:      rec.PriceCents,
        }
        if live, ok, err := s.stock.Read(ctx, rec.Key); err == nil && ok {
            entry.AvailableSeats = live
            entry.Live = true
        }
        out = append(out, entry)
    }
    return out, nil
}
