// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios. For
// example, ErrMovieNotFound lets the cart handler answer 404 while a
// plain query error becomes a 500, and ErrNoRefundablePayment signals
// that a refund cannot even be attempted against the gateway.
package repository

import "errors"

// ErrCartNotFound is returned when a user has no cart row. Carts are
// provisioned together with the user account, so this normally means
// the caller's account predates the commerce schema.
var ErrCartNotFound = errors.New("cart not found")

// ErrMovieNotFound is returned when a movie lookup by public UUID
// matches no catalog row.
var ErrMovieNotFound = errors.New("movie not found")

// ErrOrderNotFound is returned when an order does not exist or does
// not belong to the calling user. Handlers translate it into 404
// without revealing whether the row exists for someone else.
var ErrOrderNotFound = errors.New("order not found")

// ErrPaymentNotFound is returned when a status update targets a
// payment row that no longer exists. Payments are never deleted, so
// hitting it means the transaction is operating on stale state and
// must not commit.
var ErrPaymentNotFound = errors.New("payment not found")

// ErrNoRefundablePayment is returned when an order has no payment row
// at all, or its latest payment carries no external correlation id,
// so there is nothing the gateway could refund.
var ErrNoRefundablePayment = errors.New("no refundable payment")
