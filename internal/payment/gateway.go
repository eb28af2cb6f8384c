// Package payment is the boundary to the external payment processor.
// The rest of the application only ever sees the Gateway interface and
// the neutral Event type below; everything Stripe-specific stays in
// stripe.go so handlers and tests can swap in a fake.
package payment

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Webhook event types the processor delivers. These mirror the
// gateway's own names so operators can correlate dashboard entries
// with application logs.
const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventCheckoutExpired   = "checkout.session.expired"
	EventPaymentFailed     = "payment_intent.payment_failed"
)

// ErrEmptyOrder is returned when a checkout session is requested for
// an order that has no items.
var ErrEmptyOrder = errors.New("order has no items")

// ErrInvalidSignature is returned when a webhook payload fails
// signature verification against the shared endpoint secret.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// ErrInvalidPayload is returned when a webhook payload passes
// signature checks but cannot be decoded into an event.
var ErrInvalidPayload = errors.New("invalid webhook payload")

// GatewayError carries the processor's own message for failures of
// outbound calls (session creation, refunds). The message is surfaced
// to the caller because the caller needs to know whether to retry.
type GatewayError struct {
	Message string
}

func (e *GatewayError) Error() string { return "payment gateway: " + e.Message }

// CheckoutItem is one line of a checkout session: a display name and
// the unit price to charge.
type CheckoutItem struct {
	Name  string
	Price decimal.Decimal
}

// CheckoutOrder is the slice of an order the gateway needs to build a
// hosted checkout page. OrderID and UserID travel as correlation
// metadata and come back on webhook events.
type CheckoutOrder struct {
	OrderID uint64
	UserID  uint64
	Email   string
	Items   []CheckoutItem
}

// Event is a verified, decoded webhook notification. OrderID and
// UserID are zero when the event carried no correlation metadata.
type Event struct {
	Type            string
	SessionID       string
	PaymentIntentID string
	OrderID         uint64
	UserID          uint64
	FailureMessage  string
}

// Refund confirms that the processor accepted a refund request.
type Refund struct {
	ID     string
	Status string
}

// Gateway is the narrow contract this core requires from the payment
// processor. Delivery of webhook events is at-least-once; callers of
// ParseWebhookEvent must tolerate duplicates.
type Gateway interface {
	// CreateCheckoutSession requests a hosted checkout page for the
	// order and returns its redirect URL. The session self-expires
	// after expiresAfter; expiry is reported back via a webhook event.
	CreateCheckoutSession(order CheckoutOrder, expiresAfter time.Duration) (string, error)

	// ParseWebhookEvent verifies the signature header against the
	// shared secret and decodes the payload. It fails with
	// ErrInvalidSignature or ErrInvalidPayload; both map to a 400.
	ParseWebhookEvent(payload []byte, sigHeader string) (*Event, error)

	// CreateRefund asks the processor to refund the payment identified
	// by its external correlation id.
	CreateRefund(externalPaymentID string) (*Refund, error)
}
