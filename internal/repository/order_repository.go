package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Morphin20th/online-cinema/internal/model"
)

// OrderRepo provides CRUD operations for orders and their items and
// the status transitions the lifecycle handlers drive. Orders are
// snapshots: after CreateTx only the status column ever changes, via
// UpdateStatusTx under a row lock taken by GetByIDForUpdateTx.
type OrderRepo struct {
	db *sql.DB
}

// NewOrderRepo returns a new OrderRepo bound to the given database.
func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{db: db} }

// DB exposes the underlying handle so handlers can open transactions.
func (r *OrderRepo) DB() *sql.DB { return r.db }

// CreateTx inserts a new order within the scope of an existing
// transaction. It populates the generated ID and the created_at
// timestamp on the provided order. The caller must commit or roll
// back the transaction.
func (r *OrderRepo) CreateTx(ctx context.Context, tx *sql.Tx, o *model.Order) error {
	const q = `INSERT INTO orders (user_id, status, total_amount) VALUES (?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, o.UserID, string(o.Status), o.TotalAmount)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	o.ID = uint64(id)
	// Query back the row to populate the server-side timestamp.
	const sel = `SELECT created_at FROM orders WHERE id = ?`
	return tx.QueryRowContext(ctx, sel, o.ID).Scan(&o.CreatedAt)
}

// CreateItemsBulkTx inserts the order's item rows in a single
// statement. Passing an empty slice has no effect and returns nil.
func (r *OrderRepo) CreateItemsBulkTx(ctx context.Context, tx *sql.Tx, items []model.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	query := `INSERT INTO order_items (order_id, movie_id) VALUES `
	args := make([]interface{}, 0, len(items)*2)
	for i, it := range items {
		if i > 0 {
			query += ","
		}
		query += "(?, ?)"
		args = append(args, it.OrderID, it.MovieID)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// HasPendingTx reports whether the user already has a PENDING order.
// It runs inside the conversion transaction, after the cart row lock
// is held, so the check-then-create sequence cannot race with itself.
func (r *OrderRepo) HasPendingTx(ctx context.Context, tx *sql.Tx, userID uint64) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM orders WHERE user_id = ? AND status = ?)`
	var exists bool
	if err := tx.QueryRowContext(ctx, q, userID, string(model.OrderPending)).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// PendingByUser returns the user's current PENDING order, or
// ErrOrderNotFound when there is none. The checkout-session endpoint
// uses it as a plain read; no lock is needed because session creation
// mutates nothing locally.
func (r *OrderRepo) PendingByUser(ctx context.Context, userID uint64) (*model.Order, error) {
	const q = `SELECT id, user_id, status, total_amount, created_at
               FROM orders WHERE user_id = ? AND status = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, q, userID, string(model.OrderPending)))
}

// GetByIDForUpdateTx reads one order row under a pessimistic lock so
// the caller's subsequent status transition cannot be interleaved
// with a concurrent webhook-driven transition. It returns
// ErrOrderNotFound when no row matches.
func (r *OrderRepo) GetByIDForUpdateTx(ctx context.Context, tx *sql.Tx, orderID uint64) (*model.Order, error) {
	const q = `SELECT id, user_id, status, total_amount, created_at
               FROM orders WHERE id = ? FOR UPDATE`
	return r.scanOne(tx.QueryRowContext(ctx, q, orderID))
}

// UpdateStatusTx sets the order's status within the provided
// transaction. The caller is expected to hold the row lock.
func (r *OrderRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, orderID uint64, status model.OrderStatus) error {
	const q = `UPDATE orders SET status = ? WHERE id = ?`
	res, err := tx.ExecContext(ctx, q, string(status), orderID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// HasPaidMovie reports whether the movie already sits in one of the
// user's PAID orders. The cart handler uses it to reject re-adding a
// movie whose purchase is already settled.
func (r *OrderRepo) HasPaidMovie(ctx context.Context, userID, movieID uint64) (bool, error) {
	const q = `SELECT EXISTS(
                 SELECT 1 FROM order_items oi
                 JOIN orders o ON o.id = oi.order_id
                 WHERE o.user_id = ? AND o.status = ? AND oi.movie_id = ?)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, q, userID, string(model.OrderPaid), movieID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// PaidMovieCountTx counts how many of the given movies already appear
// in one of the user's PAID orders. A non-zero count blocks order
// creation: a movie cannot be bought twice.
func (r *OrderRepo) PaidMovieCountTx(ctx context.Context, tx *sql.Tx, userID uint64, movieIDs []uint64) (int, error) {
	if len(movieIDs) == 0 {
		return 0, nil
	}
	query := `SELECT COUNT(oi.id)
              FROM order_items oi
              JOIN orders o ON o.id = oi.order_id
              WHERE o.user_id = ? AND o.status = ? AND oi.movie_id IN (` + placeholders(len(movieIDs)) + `)`
	args := append([]interface{}{userID, string(model.OrderPaid)}, idArgs(movieIDs)...)
	var count int
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// OrderLine is one order item joined with its movie, carrying the
// movie's current catalog price. The webhook handler freezes this
// price into payment_items; the checkout handler turns it into a
// gateway line item.
type OrderLine struct {
	ItemID    uint64
	MovieID   uint64
	MovieUUID string
	Name      string
	Price     decimal.Decimal
}

// LinesTx loads the order's items joined with their movies inside the
// provided transaction.
func (r *OrderRepo) LinesTx(ctx context.Context, tx *sql.Tx, orderID uint64) ([]OrderLine, error) {
	const q = `SELECT oi.id, oi.movie_id, m.uuid, m.name, m.price
               FROM order_items oi
               JOIN movies m ON m.id = oi.movie_id
               WHERE oi.order_id = ?
               ORDER BY oi.id`
	rows, err := tx.QueryContext(ctx, q, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLines(rows)
}

// Lines is the non-transactional variant of LinesTx, used by reads
// that do not transition state.
func (r *OrderRepo) Lines(ctx context.Context, orderID uint64) ([]OrderLine, error) {
	const q = `SELECT oi.id, oi.movie_id, m.uuid, m.name, m.price
               FROM order_items oi
               JOIN movies m ON m.id = oi.movie_id
               WHERE oi.order_id = ?
               ORDER BY oi.id`
	rows, err := r.db.QueryContext(ctx, q, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLines(rows)
}

// OrderMovie is the movie view embedded in an order detail response.
type OrderMovie struct {
	UUID  string          `json:"uuid"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// OrderDetail is one of the caller's orders with its movie lines,
// as returned by ListByUser.
type OrderDetail struct {
	ID          uint64          `json:"id"`
	Status      string          `json:"status"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	CreatedAt   string          `json:"created_at"`
	Movies      []OrderMovie    `json:"movies"`
}

// CountByUser returns how many orders the user has in total, for
// pagination metadata.
func (r *OrderRepo) CountByUser(ctx context.Context, userID uint64) (int, error) {
	const q = `SELECT COUNT(id) FROM orders WHERE user_id = ?`
	var n int
	if err := r.db.QueryRowContext(ctx, q, userID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// ListByUser returns one page of the user's orders, newest first,
// each populated with its movie lines. Movies for the whole page are
// fetched in a single IN query and distributed by order id.
func (r *OrderRepo) ListByUser(ctx context.Context, userID uint64, limit, offset int) ([]OrderDetail, error) {
	const q = `SELECT id, status, total_amount, created_at
               FROM orders
               WHERE user_id = ?
               ORDER BY created_at DESC, id DESC
               LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, q, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	details := make([]OrderDetail, 0)
	index := make(map[uint64]int)
	for rows.Next() {
		var d OrderDetail
		var total decimal.NullDecimal
		var createdAt time.Time
		if err := rows.Scan(&d.ID, &d.Status, &total, &createdAt); err != nil {
			return nil, err
		}
		d.TotalAmount = total.Decimal
		d.CreatedAt = createdAt.UTC().Format(time.RFC3339)
		d.Movies = []OrderMovie{}
		index[d.ID] = len(details)
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(details) == 0 {
		return details, nil
	}
	// Populate movie lines for every order on the page in one query.
	ids := make([]interface{}, 0, len(details))
	ph := make([]string, 0, len(details))
	for _, d := range details {
		ids = append(ids, d.ID)
		ph = append(ph, "?")
	}
	lineQuery := `SELECT oi.order_id, m.uuid, m.name, m.price
                  FROM order_items oi
                  JOIN movies m ON m.id = oi.movie_id
                  WHERE oi.order_id IN (` + strings.Join(ph, ",") + `)
                  ORDER BY oi.order_id, oi.id`
	lrows, err := r.db.QueryContext(ctx, lineQuery, ids...)
	if err != nil {
		return nil, err
	}
	defer lrows.Close()
	for lrows.Next() {
		var orderID uint64
		var mv OrderMovie
		if err := lrows.Scan(&orderID, &mv.UUID, &mv.Name, &mv.Price); err != nil {
			return nil, err
		}
		idx, ok := index[orderID]
		if !ok {
			continue
		}
		details[idx].Movies = append(details[idx].Movies, mv)
	}
	if err := lrows.Err(); err != nil {
		return nil, err
	}
	return details, nil
}

func (r *OrderRepo) scanOne(row *sql.Row) (*model.Order, error) {
	var o model.Order
	var status string
	var total decimal.NullDecimal
	if err := row.Scan(&o.ID, &o.UserID, &status, &total, &o.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	o.Status = model.OrderStatus(status)
	if !o.Status.Valid() {
		return nil, errors.New("order row carries unknown status " + status)
	}
	o.TotalAmount = total.Decimal
	return &o, nil
}

func scanLines(rows *sql.Rows) ([]OrderLine, error) {
	lines := make([]OrderLine, 0)
	for rows.Next() {
		var l OrderLine
		if err := rows.Scan(&l.ItemID, &l.MovieID, &l.MovieUUID, &l.Name, &l.Price); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}
