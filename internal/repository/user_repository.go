package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Morphin20th/online-cinema/internal/model"
)

// UserRepo reads user identity rows. Account management lives in a
// separate service; this core only needs to resolve the authenticated
// user's email so the gateway can prefill the checkout page.
type UserRepo struct {
	db *sql.DB
}

// NewUserRepo returns a new UserRepo bound to the given database.
func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

// GetByID returns the user row for the given id, or sql.ErrNoRows
// wrapped as a plain error when the account does not exist.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	const q = `SELECT id, email, is_active, created_at FROM users WHERE id = ?`
	var u model.User
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&u.ID, &u.Email, &u.IsActive, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.New("user not found")
		}
		return nil, err
	}
	return &u, nil
}
