package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the closed set of payment lifecycle states.
type PaymentStatus string

const (
	PaymentSuccessful PaymentStatus = "SUCCESSFUL"
	PaymentCancelled  PaymentStatus = "CANCELLED"
	PaymentRefunded   PaymentStatus = "REFUNDED"
)

// Valid reports whether s is one of the known payment states.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentSuccessful, PaymentCancelled, PaymentRefunded:
		return true
	}
	return false
}

// Payment records one external payment attempt against an order. An
// order can accumulate several rows over its lifetime: a SUCCESSFUL
// payment later becomes REFUNDED by mutating its status, while an
// expired checkout session produces a separate CANCELLED audit row.
//
// Fields:
//  ID                – primary key identifier.
//  UserID            – paying user.
//  OrderID           – order the attempt was made against.
//  Amount            – amount charged (DECIMAL(10,2)).
//  Status            – SUCCESSFUL, CANCELLED or REFUNDED.
//  ExternalPaymentID – gateway correlation id (payment intent for
//                      successful payments, session id for expired
//                      sessions). Nullable: audit rows may lack one.
//  CreatedAt         – creation timestamp.
type Payment struct {
	ID                uint64          // payments.id
	UserID            uint64          // payments.user_id
	OrderID           uint64          // payments.order_id
	Amount            decimal.Decimal // payments.amount
	Status            PaymentStatus   // payments.status
	ExternalPaymentID *string         // payments.external_payment_id (nullable)
	CreatedAt         time.Time       // payments.created_at
}

// PaymentItem links a payment to one order item and freezes the price
// that was actually charged for it. The frozen price is an audit
// value, independent of later catalog price changes.
//
// Fields:
//  ID             – primary key identifier.
//  PaymentID      – owning payment.
//  OrderItemID    – order line this payment covered.
//  PriceAtPayment – movie price at the moment of payment.
type PaymentItem struct {
	ID             uint64          // payment_items.id
	PaymentID      uint64          // payment_items.payment_id
	OrderItemID    uint64          // payment_items.order_item_id
	PriceAtPayment decimal.Decimal // payment_items.price_at_payment
}
