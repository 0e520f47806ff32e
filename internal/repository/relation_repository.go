package repository

import (
    "context"
    "database/sql"
)

// RelationRepo answers whether a passenger is registered under a user's
// account. Booking, waitlisting and changes all verify the relation
// before touching stock.
type RelationRepo struct {
    db *sql.DB
}

// NewRelationRepo returns a new RelationRepo bound to the given database.
func NewRelationRepo(db *sql.DB) *RelationRepo { return &RelationRepo{db: db} }

// Exists reports whether the passenger belongs to the user.
func (r *RelationRepo) Exists(ctx context.Context, userID, passengerID int64) (bool, error) {
    const q = `SELECT 1 FROM user_passenger_relations WHERE user_id = ? AND passenger_id = ?`
    var one int
    err := r.db.QueryRowContext(ctx, q, userID, passengerID).Scan(&one)
    if err == sql.ErrNoRows {
        return false, nil
    }
    if err != nil {
        return false, err
    }
    return true, nil
}
