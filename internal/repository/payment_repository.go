package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Morphin20th/online-cinema/internal/model"
)

// PaymentRepo provides CRUD operations for payments and their per-item
// audit rows. Payment rows are written only inside the webhook and
// refund transactions; the listing endpoint reads them back for the
// user's payment history.
type PaymentRepo struct {
	db *sql.DB
}

// NewPaymentRepo returns a new PaymentRepo bound to the given database.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

// CreateTx inserts a payment within the scope of an existing
// transaction, populating its generated ID.
func (r *PaymentRepo) CreateTx(ctx context.Context, tx *sql.Tx, p *model.Payment) error {
	const q = `INSERT INTO payments (user_id, order_id, amount, status, external_payment_id)
               VALUES (?, ?, ?, ?, ?)`
	var external interface{}
	if p.ExternalPaymentID != nil {
		external = *p.ExternalPaymentID
	}
	res, err := tx.ExecContext(ctx, q, p.UserID, p.OrderID, p.Amount, string(p.Status), external)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return nil
}

// CreateItemsBulkTx inserts the payment's per-item price audit rows in
// a single statement. Passing an empty slice has no effect.
func (r *PaymentRepo) CreateItemsBulkTx(ctx context.Context, tx *sql.Tx, items []model.PaymentItem) error {
	if len(items) == 0 {
		return nil
	}
	query := `INSERT INTO payment_items (payment_id, order_item_id, price_at_payment) VALUES `
	args := make([]interface{}, 0, len(items)*3)
	for i, it := range items {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?)"
		args = append(args, it.PaymentID, it.OrderItemID, it.PriceAtPayment)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// LatestByOrderTx returns the most recent payment row for the order,
// read inside the provided transaction. It returns
// ErrNoRefundablePayment when the order has no payment at all.
func (r *PaymentRepo) LatestByOrderTx(ctx context.Context, tx *sql.Tx, orderID uint64) (*model.Payment, error) {
	const q = `SELECT id, user_id, order_id, amount, status, external_payment_id, created_at
               FROM payments
               WHERE order_id = ?
               ORDER BY created_at DESC, id DESC
               LIMIT 1`
	var p model.Payment
	var status string
	var external sql.NullString
	err := tx.QueryRowContext(ctx, q, orderID).Scan(
		&p.ID, &p.UserID, &p.OrderID, &p.Amount, &status, &external, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoRefundablePayment
		}
		return nil, err
	}
	p.Status = model.PaymentStatus(status)
	if external.Valid {
		ext := external.String
		p.ExternalPaymentID = &ext
	}
	return &p, nil
}

// UpdateStatusTx sets a payment's status within the provided
// transaction. Refunds use it to move SUCCESSFUL → REFUNDED on the
// same row rather than writing a second one. Zero affected rows means
// the payment vanished underneath the transaction and surfaces as
// ErrPaymentNotFound so the caller rolls back.
func (r *PaymentRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, paymentID uint64, status model.PaymentStatus) error {
	const q = `UPDATE payments SET status = ? WHERE id = ?`
	res, err := tx.ExecContext(ctx, q, string(status), paymentID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

// PaymentDetail is one row of the user's payment history.
type PaymentDetail struct {
	ID        uint64          `json:"id"`
	OrderID   uint64          `json:"order_id"`
	Amount    decimal.Decimal `json:"amount"`
	Status    string          `json:"status"`
	CreatedAt string          `json:"created_at"`
}

// CountByUser returns how many payments the user has in total.
func (r *PaymentRepo) CountByUser(ctx context.Context, userID uint64) (int, error) {
	const q = `SELECT COUNT(id) FROM payments WHERE user_id = ?`
	var n int
	if err := r.db.QueryRowContext(ctx, q, userID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// ListByUser returns one page of the user's payments, newest first.
func (r *PaymentRepo) ListByUser(ctx context.Context, userID uint64, limit, offset int) ([]PaymentDetail, error) {
	const q = `SELECT id, order_id, amount, status, created_at
               FROM payments
               WHERE user_id = ?
               ORDER BY created_at DESC, id DESC
               LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, q, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	details := make([]PaymentDetail, 0)
	for rows.Next() {
		var d PaymentDetail
		var createdAt time.Time
		if err := rows.Scan(&d.ID, &d.OrderID, &d.Amount, &d.Status, &createdAt); err != nil {
			return nil, err
		}
		d.CreatedAt = createdAt.UTC().Format(time.RFC3339)
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return details, nil
}
