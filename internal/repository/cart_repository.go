package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Morphin20th/online-cinema/internal/model"
)

// CartRepo provides CRUD operations for carts and their items. Every
// user owns at most one cart; its items are the staging area that
// order creation drains. Mutations that participate in the cart→order
// conversion take an explicit transaction so the whole conversion is
// atomic.
type CartRepo struct {
	db *sql.DB
}

// NewCartRepo returns a new CartRepo bound to the given database.
func NewCartRepo(db *sql.DB) *CartRepo { return &CartRepo{db: db} }

// DB exposes the underlying handle so handlers can open transactions.
func (r *CartRepo) DB() *sql.DB { return r.db }

// GetByUserID returns the user's cart or ErrCartNotFound.
func (r *CartRepo) GetByUserID(ctx context.Context, userID uint64) (*model.Cart, error) {
	const q = `SELECT id, user_id FROM carts WHERE user_id = ?`
	var c model.Cart
	if err := r.db.QueryRowContext(ctx, q, userID).Scan(&c.ID, &c.UserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCartNotFound
		}
		return nil, err
	}
	return &c, nil
}

// GetByUserIDForUpdateTx reads the user's cart row under a pessimistic
// lock. Order creation locks the cart for the duration of the
// conversion so two concurrent conversions for the same user serialize
// on this row instead of both passing the "no pending order" check.
func (r *CartRepo) GetByUserIDForUpdateTx(ctx context.Context, tx *sql.Tx, userID uint64) (*model.Cart, error) {
	const q = `SELECT id, user_id FROM carts WHERE user_id = ? FOR UPDATE`
	var c model.Cart
	if err := tx.QueryRowContext(ctx, q, userID).Scan(&c.ID, &c.UserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCartNotFound
		}
		return nil, err
	}
	return &c, nil
}

// CartLine is one cart item joined with its movie for display.
type CartLine struct {
	MovieUUID string          `json:"movie_uuid"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	AddedAt   string          `json:"added_at"`
}

// ListLines returns the cart's items joined with movie name and
// current price, newest first. An empty cart yields an empty slice.
func (r *CartRepo) ListLines(ctx context.Context, cartID uint64) ([]CartLine, error) {
	const q = `SELECT m.uuid, m.name, m.price, ci.added_at
               FROM cart_items ci
               JOIN movies m ON m.id = ci.movie_id
               WHERE ci.cart_id = ?
               ORDER BY ci.added_at DESC, ci.id DESC`
	rows, err := r.db.QueryContext(ctx, q, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	lines := make([]CartLine, 0)
	for rows.Next() {
		var l CartLine
		var added time.Time
		if err := rows.Scan(&l.MovieUUID, &l.Name, &l.Price, &added); err != nil {
			return nil, err
		}
		l.AddedAt = added.UTC().Format(time.RFC3339)
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// ItemsTx returns the raw cart items inside the provided transaction.
// Order creation reads them under the cart lock taken by
// GetByUserIDForUpdateTx.
func (r *CartRepo) ItemsTx(ctx context.Context, tx *sql.Tx, cartID uint64) ([]model.CartItem, error) {
	const q = `SELECT id, cart_id, movie_id, added_at FROM cart_items WHERE cart_id = ? ORDER BY id`
	rows, err := tx.QueryContext(ctx, q, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]model.CartItem, 0)
	for rows.Next() {
		var it model.CartItem
		if err := rows.Scan(&it.ID, &it.CartID, &it.MovieID, &it.AddedAt); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// HasItem reports whether the movie is already in the cart.
func (r *CartRepo) HasItem(ctx context.Context, cartID, movieID uint64) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM cart_items WHERE cart_id = ? AND movie_id = ?)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, q, cartID, movieID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// AddItem inserts one movie into the cart. The unique constraint on
// (cart_id, movie_id) backs up the handler's duplicate check.
func (r *CartRepo) AddItem(ctx context.Context, cartID, movieID uint64) error {
	const q = `INSERT INTO cart_items (cart_id, movie_id) VALUES (?, ?)`
	_, err := r.db.ExecContext(ctx, q, cartID, movieID)
	return err
}

// RemoveItem deletes one movie from the cart and reports whether a
// row was actually removed.
func (r *CartRepo) RemoveItem(ctx context.Context, cartID, movieID uint64) (bool, error) {
	const q = `DELETE FROM cart_items WHERE cart_id = ? AND movie_id = ?`
	res, err := r.db.ExecContext(ctx, q, cartID, movieID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ClearTx removes every item from the cart inside the provided
// transaction. This runs in the same transaction that persists the
// order, so the cart is emptied exactly when the order is created.
func (r *CartRepo) ClearTx(ctx context.Context, tx *sql.Tx, cartID uint64) error {
	const q = `DELETE FROM cart_items WHERE cart_id = ?`
	_, err := tx.ExecContext(ctx, q, cartID)
	return err
}
