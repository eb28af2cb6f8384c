package payment

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/refund"
	"github.com/stripe/stripe-go/v76/webhook"
)

// StripeGateway implements Gateway on top of Stripe hosted checkout.
// One line item is created per order item at the current movie price;
// the order and user ids ride along as session metadata and the
// client reference id so webhook events can be correlated back.
type StripeGateway struct {
	webhookSecret string
	appURL        string
}

// NewStripeGateway configures the Stripe SDK with the given API key
// and returns a gateway that validates webhooks with webhookSecret.
// appURL is the public base URL the checkout page redirects back to.
func NewStripeGateway(apiKey, webhookSecret, appURL string) *StripeGateway {
	stripe.Key = apiKey
	return &StripeGateway{
		webhookSecret: webhookSecret,
		appURL:        strings.TrimSuffix(appURL, "/"),
	}
}

var _ Gateway = (*StripeGateway)(nil)

// CreateCheckoutSession builds a hosted checkout session for the
// order and returns its URL. Fails with ErrEmptyOrder when the order
// has no items.
func (g *StripeGateway) CreateCheckoutSession(order CheckoutOrder, expiresAfter time.Duration) (string, error) {
	if len(order.Items) == 0 {
		return "", ErrEmptyOrder
	}
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(order.Items))
	for _, item := range order.Items {
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(string(stripe.CurrencyUSD)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Name),
				},
				// Stripe wants minor units (cents).
				UnitAmount: stripe.Int64(item.Price.Shift(2).IntPart()),
			},
			Quantity: stripe.Int64(1),
		})
	}

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:          lineItems,
		SuccessURL:         stripe.String(g.appURL + "/v1/payments/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:          stripe.String(g.appURL + "/v1/payments/cancel"),
		ClientReferenceID:  stripe.String(strconv.FormatUint(order.UserID, 10)),
		ExpiresAt:          stripe.Int64(time.Now().Add(expiresAfter).Unix()),
	}
	if order.Email != "" {
		params.CustomerEmail = stripe.String(order.Email)
	}
	params.AddMetadata("order_id", strconv.FormatUint(order.OrderID, 10))
	params.AddMetadata("user_id", strconv.FormatUint(order.UserID, 10))

	s, err := session.New(params)
	if err != nil {
		return "", asGatewayError(err)
	}
	return s.URL, nil
}

// ParseWebhookEvent verifies the Stripe-Signature header and decodes
// the payload into a neutral Event. API version drift between Stripe
// and the SDK pin is tolerated; the fields this core reads are stable.
func (g *StripeGateway) ParseWebhookEvent(payload []byte, sigHeader string) (*Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, sigHeader, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		if errors.Is(err, webhook.ErrNotSigned) ||
			errors.Is(err, webhook.ErrNoValidSignature) ||
			errors.Is(err, webhook.ErrInvalidHeader) ||
			errors.Is(err, webhook.ErrTooOld) {
			return nil, ErrInvalidSignature
		}
		return nil, ErrInvalidPayload
	}

	out := &Event{Type: string(ev.Type)}
	switch out.Type {
	case EventCheckoutCompleted, EventCheckoutExpired:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &sess); err != nil {
			return nil, ErrInvalidPayload
		}
		out.SessionID = sess.ID
		if sess.PaymentIntent != nil {
			out.PaymentIntentID = sess.PaymentIntent.ID
		}
		out.OrderID = parseCorrelationID(sess.Metadata["order_id"])
		out.UserID = parseCorrelationID(sess.ClientReferenceID)
	case EventPaymentFailed:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(ev.Data.Raw, &intent); err != nil {
			return nil, ErrInvalidPayload
		}
		out.FailureMessage = "unknown reason"
		if intent.LastPaymentError != nil && intent.LastPaymentError.Msg != "" {
			out.FailureMessage = intent.LastPaymentError.Msg
		}
		if intent.Metadata != nil {
			out.OrderID = parseCorrelationID(intent.Metadata["order_id"])
			out.UserID = parseCorrelationID(intent.Metadata["user_id"])
		}
	}
	return out, nil
}

// CreateRefund refunds the payment intent and returns Stripe's
// confirmation. Failures surface Stripe's user-facing message.
func (g *StripeGateway) CreateRefund(externalPaymentID string) (*Refund, error) {
	ref, err := refund.New(&stripe.RefundParams{
		PaymentIntent: stripe.String(externalPaymentID),
	})
	if err != nil {
		return nil, asGatewayError(err)
	}
	return &Refund{ID: ref.ID, Status: string(ref.Status)}, nil
}

// asGatewayError converts a Stripe SDK error into a GatewayError,
// preferring Stripe's human-readable message when one exists.
func asGatewayError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Msg != "" {
		return &GatewayError{Message: stripeErr.Msg}
	}
	return &GatewayError{Message: err.Error()}
}

// parseCorrelationID parses a metadata id, returning 0 for anything
// missing or malformed so callers can treat "no metadata" uniformly.
func parseCorrelationID(raw string) uint64 {
	if raw == "" {
		return 0
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
