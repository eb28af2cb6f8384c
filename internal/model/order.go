package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the closed set of order lifecycle states.
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderPaid      OrderStatus = "PAID"
	OrderCancelled OrderStatus = "CANCELLED"
)

// Valid reports whether s is one of the known order states. Used when
// scanning rows so a bad migration or manual edit fails loudly instead
// of flowing through the state machine.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderPaid, OrderCancelled:
		return true
	}
	return false
}

// Order is an immutable snapshot of a cart with a lifecycle status.
// Only Status ever changes after creation; TotalAmount is computed
// once from catalog prices at creation time and never recomputed, so
// later price changes do not affect existing orders.
//
// Fields:
//  ID          – primary key identifier.
//  UserID      – user the order belongs to.
//  Status      – PENDING, PAID or CANCELLED. At most one PENDING
//                order may exist per user at any time.
//  TotalAmount – sum of item prices at creation time (DECIMAL(10,2)).
//  CreatedAt   – creation timestamp.
type Order struct {
	ID          uint64          // orders.id
	UserID      uint64          // orders.user_id
	Status      OrderStatus     // orders.status
	TotalAmount decimal.Decimal // orders.total_amount
	CreatedAt   time.Time       // orders.created_at
}

// OrderItem is one immutable line of an order, referencing a movie.
// Items are never edited after the order is created; deleting an
// order cascades to its items.
//
// Fields:
//  ID      – primary key identifier.
//  OrderID – owning order.
//  MovieID – referenced movie.
type OrderItem struct {
	ID      uint64 // order_items.id
	OrderID uint64 // order_items.order_id
	MovieID uint64 // order_items.movie_id
}
