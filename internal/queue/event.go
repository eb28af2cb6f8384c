package queue

import "github.com/shopspring/decimal"

// PaymentConfirmedEvent is published after a checkout completes and
// the local transaction commits. Consumers use it for receipts and
// bookkeeping; losing one is tolerable, double-charging is not, so
// publication is best-effort and happens strictly after commit.
type PaymentConfirmedEvent struct {
	PaymentID uint64          `json:"payment_id"`
	OrderID   uint64          `json:"order_id"`
	UserID    uint64          `json:"user_id"`
	Email     string          `json:"email"`
	Amount    decimal.Decimal `json:"amount"`
	PaidAt    string          `json:"paid_at"`
	Items     []ConfirmedItem `json:"items"`
}

// ConfirmedItem is one purchased movie inside a confirmation event.
type ConfirmedItem struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}
