package repository

import (
    "context"
    "database/sql"

    "github.com/minirail/train-seat-reservation/internal/model"
)

// InventoryRepo provides access to the seat_inventory table, the durable
// shadow of the live stock counters. Rows are keyed by the full inventory
// key (train, segment, date, carriage class). The live counters are
// authoritative; this table trails them between reconciliation cycles and
// is what the counters are seeded from on a cold start.
type InventoryRepo struct {
    db *sql.DB
}

// NewInventoryRepo returns a new InventoryRepo bound to the given database.
func NewInventoryRepo(db *sql.DB) *InventoryRepo { return &InventoryRepo{db: db} }

const inventoryColumns = `inventory_id, train_id, departure_stop_id, arrival_stop_id,
               travel_date, carriage_type_id, total_seats, available_seats,
               price_cents, cache_version, db_version, last_updated`

func scanInventory(row interface{ Scan(...interface{}) error }) (*model.InventoryRecord, error) {
    var rec model.InventoryRecord
    err := row.Scan(
        &rec.InventoryID, &rec.Key.TrainID, &rec.Key.DepartureStopID, &rec.Key.ArrivalStopID,
        &rec.Key.TravelDate, &rec.Key.CarriageTypeID, &rec.TotalSeats, &rec.AvailableSeats,
        &rec.PriceCents, &rec.CacheVersion, &rec.DBVersion, &rec.LastUpdated,
    )
    if err != nil {
        return nil, err
    }
    return &rec, nil
}

// GetByKey returns the inventory row for one inventory key. It returns
// ErrNotFound when no such row exists, which callers surface as an
// unknown train/segment/class combination rather than as sold out.
func (r *InventoryRepo) GetByKey(ctx context.Context, key model.InventoryKey) (*model.InventoryRecord, error) {
    const q = `SELECT ` + inventoryColumns + `
               FROM seat_inventory
               WHERE train_id = ? AND departure_stop_id = ? AND arrival_stop_id = ?
                 AND travel_date = ? AND carriage_type_id = ?`
    rec, err := scanInventory(r.db.QueryRowContext(ctx, q,
        key.TrainID, key.DepartureStopID, key.ArrivalStopID,
        key.TravelDate.Format("2006-01-02"), key.CarriageTypeID))
    if err == sql.ErrNoRows {
        return nil, ErrNotFound
    }
    return rec, err
}

// ListAll returns every inventory row. The reconciliation loop walks this
// list to push ledger values back into the table, and the cold-start
// seeding walks it to create the live counters.
func (r *InventoryRepo) ListAll(ctx context.Context) ([]model.InventoryRecord, error) {
    const q = `SELECT ` + inventoryColumns + ` FROM seat_inventory`
    rows, err := r.db.QueryContext(ctx, q)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.InventoryRecord
    for rows.Next() {
        rec, err := scanInventory(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, *rec)
    }
    return out, rows.Err()
}

// ListByTrainAndDate returns the inventory rows for one train on one
// travel date, ordered by segment then class. The availability query
// endpoint serves from this list after overlaying the live counters.
func (r *InventoryRepo) ListByTrainAndDate(ctx context.Context, trainID int, travelDate string) ([]model.InventoryRecord, error) {
    const q = `SELECT ` + inventoryColumns + `
               FROM seat_inventory
               WHERE train_id = ? AND travel_date = ?
               ORDER BY departure_stop_id, arrival_stop_id, carriage_type_id`
    rows, err := r.db.QueryContext(ctx, q, trainID, travelDate)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.InventoryRecord
    for rows.Next() {
        rec, err := scanInventory(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, *rec)
    }
    return out, rows.Err()
}

// SyncFromLedger overwrites the durable available-seat count with the
// live counter value and bumps both version columns. The reconciliation
// loop calls this only when the two values disagree, so every call
// represents a real correction.
func (r *InventoryRepo) SyncFromLedger(ctx context.Context, inventoryID int64, available int) error {
    const q = `UPDATE seat_inventory
               SET available_seats = ?,
                   cache_version = cache_version + 1,
                   db_version = db_version + 1,
                   last_updated = NOW()
               WHERE inventory_id = ?`
    _, err := r.db.ExecContext(ctx, q, available, inventoryID)
    return err
}
