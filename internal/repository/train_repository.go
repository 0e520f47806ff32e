package repository

import (
    "context"
    "database/sql"

    "github.com/minirail/train-seat-reservation/internal/model"
)

// TrainRepo provides read access to train reference data: trains, their
// stop sequences and schedule times. It satisfies seatmap.StopStore so
// the allocator can turn stop IDs into route positions.
type TrainRepo struct {
    db *sql.DB
}

// NewTrainRepo returns a new TrainRepo bound to the given database.
func NewTrainRepo(db *sql.DB) *TrainRepo { return &TrainRepo{db: db} }

// GetByID returns one train. ErrNotFound is returned when no train with
// the given ID exists.
func (r *TrainRepo) GetByID(ctx context.Context, trainID int) (*model.Train, error) {
    const q = `SELECT train_id, train_number FROM trains WHERE train_id = ?`
    var t model.Train
    err := r.db.QueryRowContext(ctx, q, trainID).Scan(&t.TrainID, &t.TrainNumber)
    if err == sql.ErrNoRows {
        return nil, ErrNotFound
    }
    if err != nil {
        return nil, err
    }
    return &t, nil
}

// Sequence returns the position of the stop along the train's route.
// ErrNotFound means the stop does not belong to the train, which callers
// treat as an invalid segment.
func (r *TrainRepo) Sequence(ctx context.Context, trainID int, stopID int64) (int, error) {
    const q = `SELECT sequence_number FROM train_stops WHERE train_id = ? AND stop_id = ?`
    var seq int
    err := r.db.QueryRowContext(ctx, q, trainID, stopID).Scan(&seq)
    if err == sql.ErrNoRows {
        return 0, ErrNotFound
    }
    if err != nil {
        return 0, err
    }
    return seq, nil
}

// GetStop returns the full stop row including schedule times. Terminal
// stops leave one of the times NULL (no arrival at the origin, no
// departure at the destination).
func (r *TrainRepo) GetStop(ctx context.Context, trainID int, stopID int64) (*model.TrainStop, error) {
    const q = `SELECT stop_id, train_id, station_id, sequence_number, arrival_time, departure_time
               FROM train_stops WHERE train_id = ? AND stop_id = ?`
    var s model.TrainStop
    var arrival, departure sql.NullTime
    err := r.db.QueryRowContext(ctx, q, trainID, stopID).Scan(
        &s.StopID, &s.TrainID, &s.StationID, &s.SequenceNumber, &arrival, &departure)
    if err == sql.ErrNoRows {
        return nil, ErrNotFound
    }
    if err != nil {
        return nil, err
    }
    if arrival.Valid {
        t := arrival.Time
        s.ArrivalTime = &t
    }
    if departure.Valid {
        t := departure.Time
        s.DepartureTime = &t
    }
    return &s, nil
}

// ListStops returns every stop of the train in route order.
func (r *TrainRepo) ListStops(ctx context.Context, trainID int) ([]model.TrainStop, error) {
    const q = `SELECT stop_id, train_id, station_id, sequence_number, arrival_time, departure_time
               FROM train_stops WHERE train_id = ? ORDER BY sequence_number`
    rows, err := r.db.QueryContext(ctx, q, trainID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.TrainStop
    for rows.Next() {
        var s model.TrainStop
        var arrival, departure sql.NullTime
        if err := rows.Scan(&s.StopID, &s.TrainID, &s.StationID, &s.SequenceNumber, &arrival, &departure); err != nil {
            return nil, err
        }
        if arrival.Valid {
            t := arrival.Time
            s.ArrivalTime = &t
        }
        if departure.Valid {
            t := departure.Time
            s.DepartureTime = &t
        }
        out = append(out, s)
    }
    return out, rows.Err()
}
