package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Morphin20th/online-cinema/internal/model"
)

// MovieRepo provides the read-only catalog access the commerce flows
// need: resolving a public UUID to a row, loading rows for display and
// summing current prices. Catalog writes happen elsewhere.
type MovieRepo struct {
	db *sql.DB
}

// NewMovieRepo returns a new MovieRepo bound to the given database.
func NewMovieRepo(db *sql.DB) *MovieRepo { return &MovieRepo{db: db} }

// GetByUUID resolves a movie by its public identifier. It returns
// ErrMovieNotFound when no catalog row matches.
func (r *MovieRepo) GetByUUID(ctx context.Context, id uuid.UUID) (*model.Movie, error) {
	const q = `SELECT id, uuid, name, price FROM movies WHERE uuid = ?`
	var m model.Movie
	var rawUUID string
	err := r.db.QueryRowContext(ctx, q, id.String()).Scan(&m.ID, &rawUUID, &m.Name, &m.Price)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMovieNotFound
		}
		return nil, err
	}
	parsed, err := uuid.Parse(rawUUID)
	if err != nil {
		return nil, err
	}
	m.UUID = parsed
	return &m, nil
}

// ListByIDsTx loads the movies with the given ids inside the provided
// transaction. The result preserves no particular order; callers index
// by id. An empty id slice yields an empty result.
func (r *MovieRepo) ListByIDsTx(ctx context.Context, tx *sql.Tx, ids []uint64) ([]model.Movie, error) {
	if len(ids) == 0 {
		return []model.Movie{}, nil
	}
	query := `SELECT id, uuid, name, price FROM movies WHERE id IN (` + placeholders(len(ids)) + `)`
	rows, err := tx.QueryContext(ctx, query, idArgs(ids)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	movies := make([]model.Movie, 0, len(ids))
	for rows.Next() {
		var m model.Movie
		var rawUUID string
		if err := rows.Scan(&m.ID, &rawUUID, &m.Name, &m.Price); err != nil {
			return nil, err
		}
		parsed, err := uuid.Parse(rawUUID)
		if err != nil {
			return nil, err
		}
		m.UUID = parsed
		movies = append(movies, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return movies, nil
}

// SumPricesTx sums the current catalog price of the given movies
// inside the provided transaction. This is the order total snapshot:
// it is computed exactly once, at order creation time.
func (r *MovieRepo) SumPricesTx(ctx context.Context, tx *sql.Tx, ids []uint64) (decimal.Decimal, error) {
	if len(ids) == 0 {
		return decimal.Zero, nil
	}
	query := `SELECT COALESCE(SUM(price), 0) FROM movies WHERE id IN (` + placeholders(len(ids)) + `)`
	var total decimal.Decimal
	if err := tx.QueryRowContext(ctx, query, idArgs(ids)...).Scan(&total); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

// placeholders builds a "?, ?, ?" list for IN clauses.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// idArgs widens a uint64 slice into the []interface{} QueryContext wants.
func idArgs(ids []uint64) []interface{} {
	args := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	return args
}
