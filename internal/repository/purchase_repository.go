package repository

import (
	"context"
	"database/sql"

	"github.com/Morphin20th/online-cinema/internal/model"
)

// PurchaseRepo provides access to the purchases table – the durable
// entitlements users hold to movies. Rows only ever appear inside the
// webhook "checkout completed" transaction and only ever disappear
// inside the refund transaction; everything else is a read.
type PurchaseRepo struct {
	db *sql.DB
}

// NewPurchaseRepo returns a new PurchaseRepo bound to the given database.
func NewPurchaseRepo(db *sql.DB) *PurchaseRepo { return &PurchaseRepo{db: db} }

// ExistsForUser reports whether the user already owns the movie.
func (r *PurchaseRepo) ExistsForUser(ctx context.Context, userID, movieID uint64) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM purchases WHERE user_id = ? AND movie_id = ?)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, q, userID, movieID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// CountForUserTx counts how many of the given movies the user already
// owns, inside the provided transaction. Order creation uses it as a
// precondition check.
func (r *PurchaseRepo) CountForUserTx(ctx context.Context, tx *sql.Tx, userID uint64, movieIDs []uint64) (int, error) {
	if len(movieIDs) == 0 {
		return 0, nil
	}
	query := `SELECT COUNT(id) FROM purchases WHERE user_id = ? AND movie_id IN (` + placeholders(len(movieIDs)) + `)`
	args := append([]interface{}{userID}, idArgs(movieIDs)...)
	var count int
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// CreateBulkTx grants every entitlement in the slice in a single
// statement. The unique (user_id, movie_id) constraint makes a double
// grant fail, which the webhook handler prevents from ever being
// attempted by short-circuiting on already-paid orders.
func (r *PurchaseRepo) CreateBulkTx(ctx context.Context, tx *sql.Tx, purchases []model.Purchase) error {
	if len(purchases) == 0 {
		return nil
	}
	query := `INSERT INTO purchases (user_id, movie_id) VALUES `
	args := make([]interface{}, 0, len(purchases)*2)
	for i, p := range purchases {
		if i > 0 {
			query += ","
		}
		query += "(?, ?)"
		args = append(args, p.UserID, p.MovieID)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// DeleteByOrderTx removes the user's entitlements for every movie in
// the given order, inside the provided transaction. Called only from
// the refund path.
func (r *PurchaseRepo) DeleteByOrderTx(ctx context.Context, tx *sql.Tx, userID, orderID uint64) error {
	const q = `DELETE FROM purchases
               WHERE user_id = ?
               AND movie_id IN (SELECT movie_id FROM order_items WHERE order_id = ?)`
	_, err := tx.ExecContext(ctx, q, userID, orderID)
	return err
}
