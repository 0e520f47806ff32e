package repository

import (
    "context"
    "database/sql"
    "fmt"

    "github.com/minirail/train-seat-reservation/internal/model"
    "github.com/minirail/train-seat-reservation/internal/seatmap"
)

// SeatRepo provides access to physical seats and their per-date occupancy
// bitmaps. Each seat row carries one bitmap column per day of the rolling
// sales window (date_1 .. date_10); the allocator reads and writes single
// columns. SeatRepo satisfies seatmap.SeatStore.
type SeatRepo struct {
    db *sql.DB
}

// NewSeatRepo returns a new SeatRepo bound to the given database.
func NewSeatRepo(db *sql.DB) *SeatRepo { return &SeatRepo{db: db} }

const seatBitmapColumns = `s.date_1, s.date_2, s.date_3, s.date_4, s.date_5,
                      s.date_6, s.date_7, s.date_8, s.date_9, s.date_10`

// ListForClass returns every seat of the given carriage class on the
// train, joined with its carriage number. Ordering by carriage then seat
// number keeps the allocator's scan deterministic.
func (r *SeatRepo) ListForClass(ctx context.Context, trainID, carriageTypeID int) ([]seatmap.ClassSeat, error) {
    const q = `SELECT s.seat_id, s.carriage_id, s.seat_number, c.carriage_number, ` + seatBitmapColumns + `
               FROM seats s
               JOIN train_carriages c ON c.carriage_id = s.carriage_id
               WHERE c.train_id = ? AND c.carriage_type_id = ?
               ORDER BY c.carriage_number, s.seat_number`
    rows, err := r.db.QueryContext(ctx, q, trainID, carriageTypeID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []seatmap.ClassSeat
    for rows.Next() {
        cs, err := scanClassSeat(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, *cs)
    }
    return out, rows.Err()
}

// Find locates one seat on the train by its printed carriage and seat
// numbers. ErrNotFound is returned when no such seat exists, which on a
// release path points at a ticket whose seat columns no longer match the
// seat table.
func (r *SeatRepo) Find(ctx context.Context, trainID int, carriageNumber, seatNumber string) (seatmap.ClassSeat, error) {
    const q = `SELECT s.seat_id, s.carriage_id, s.seat_number, c.carriage_number, ` + seatBitmapColumns + `
               FROM seats s
               JOIN train_carriages c ON c.carriage_id = s.carriage_id
               WHERE c.train_id = ? AND c.carriage_number = ? AND s.seat_number = ?`
    cs, err := scanClassSeat(r.db.QueryRowContext(ctx, q, trainID, carriageNumber, seatNumber))
    if err == sql.ErrNoRows {
        return seatmap.ClassSeat{}, ErrNotFound
    }
    if err != nil {
        return seatmap.ClassSeat{}, err
    }
    return *cs, nil
}

func scanClassSeat(row interface{ Scan(...interface{}) error }) (*seatmap.ClassSeat, error) {
    var cs seatmap.ClassSeat
    dest := []interface{}{&cs.SeatID, &cs.CarriageID, &cs.SeatNumber, &cs.CarriageNumber}
    for i := range cs.Bitmaps {
        dest = append(dest, &cs.Bitmaps[i])
    }
    if err := row.Scan(dest...); err != nil {
        return nil, err
    }
    return &cs, nil
}

// SaveBitmap persists one date column of one seat. The column name is
// derived from the date index, which must lie inside the sales window;
// anything else is a programming error upstream.
func (r *SeatRepo) SaveBitmap(ctx context.Context, seatID int64, dateIndex int, bitmap uint64) error {
    if dateIndex < 1 || dateIndex > model.BitmapWindowDays {
        return fmt.Errorf("date index %d outside window", dateIndex)
    }
    q := fmt.Sprintf(`UPDATE seats SET date_%d = ? WHERE seat_id = ?`, dateIndex)
    _, err := r.db.ExecContext(ctx, q, bitmap, seatID)
    return err
}
