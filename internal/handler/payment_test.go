package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/Morphin20th/online-cinema/internal/payment"
	"github.com/Morphin20th/online-cinema/internal/repository"
)

func newPaymentHandler(t *testing.T, gw payment.Gateway) (*PaymentHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newMockDB(t)
	h := NewPaymentHandler(
		repository.NewOrderRepo(db),
		repository.NewPaymentRepo(db),
		repository.NewPurchaseRepo(db),
		repository.NewUserRepo(db),
		gw,
		time.Hour,
	)
	return h, mock
}

func TestCheckoutSessionHappyPath(t *testing.T) {
	gw := &fakeGateway{checkoutURL: "https://checkout.stripe.test/cs_1"}
	h, mock := newPaymentHandler(t, gw)
	now := time.Now().UTC()

	mock.ExpectQuery(`FROM orders WHERE user_id = \? AND status = \?`).
		WithArgs(uint64(7), "PENDING").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "status", "total_amount", "created_at"}).
			AddRow(9, 7, "PENDING", "19.98", now))
	mock.ExpectQuery(`JOIN movies m ON m\.id = oi\.movie_id`).
		WithArgs(uint64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "movie_id", "uuid", "name", "price"}).
			AddRow(1, 42, movieUUID, "Heat", "9.99").
			AddRow(2, 43, "0a98d52c-6a1f-4d0e-8b35-7bd0f1f1a222", "Ronin", "9.99"))
	mock.ExpectQuery(`FROM users WHERE id = \?`).
		WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "is_active", "created_at"}).
			AddRow(7, "viewer@example.com", true, now))

	c, rec := newTestContext(http.MethodPost, "/v1/payments/checkout-session", "", 7)
	require.NoError(t, h.CreateCheckoutSession(c))
	requireJSONStatus(t, rec, http.StatusOK, "https://checkout.stripe.test/cs_1")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckoutSessionNoPendingOrder(t *testing.T) {
	h, mock := newPaymentHandler(t, &fakeGateway{})

	mock.ExpectQuery(`FROM orders WHERE user_id = \? AND status = \?`).
		WithArgs(uint64(7), "PENDING").
		WillReturnError(errNoRows())

	c, rec := newTestContext(http.MethodPost, "/v1/payments/checkout-session", "", 7)
	require.NoError(t, h.CreateCheckoutSession(c))
	requireJSONStatus(t, rec, http.StatusNotFound, "No pending order found.")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhookCompletedMarksOrderPaid(t *testing.T) {
	gw := &fakeGateway{event: &payment.Event{
		Type:            payment.EventCheckoutCompleted,
		SessionID:       "cs_1",
		PaymentIntentID: "pi_123",
		OrderID:         9,
		UserID:          7,
	}}
	h, mock := newPaymentHandler(t, gw)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM orders WHERE id = \? FOR UPDATE`).
		WithArgs(uint64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "status", "total_amount", "created_at"}).
			AddRow(9, 7, "PENDING", "19.98", now))
	mock.ExpectExec(`INSERT INTO payments`).
		WithArgs(uint64(7), uint64(9), "19.98", "SUCCESSFUL", "pi_123").
		WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectQuery(`JOIN movies m ON m\.id = oi\.movie_id`).
		WithArgs(uint64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "movie_id", "uuid", "name", "price"}).
			AddRow(1, 42, movieUUID, "Heat", "9.99").
			AddRow(2, 43, "0a98d52c-6a1f-4d0e-8b35-7bd0f1f1a222", "Ronin", "9.99"))
	mock.ExpectExec(`INSERT INTO payment_items`).
		WithArgs(uint64(5), uint64(1), "9.99", uint64(5), uint64(2), "9.99").
		WillReturnResult(sqlmock.NewResult(1, 2))
	mock.ExpectExec(`UPDATE orders SET status = \? WHERE id = \?`).
		WithArgs("PAID", uint64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO purchases`).
		WithArgs(uint64(7), uint64(42), uint64(7), uint64(43)).
		WillReturnResult(sqlmock.NewResult(1, 2))
	mock.ExpectCommit()
	// The post-commit confirmation event looks the user up again.
	mock.ExpectQuery(`FROM users WHERE id = \?`).
		WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "is_active", "created_at"}).
			AddRow(7, "viewer@example.com", true, now))

	c, rec := newTestContext(http.MethodPost, "/v1/payments/webhook", `{}`, 0)
	c.Request().Header.Set("Stripe-Signature", "t=1,v1=ignored-by-fake")
	require.NoError(t, h.Webhook(c))
	requireJSONStatus(t, rec, http.StatusOK, "Webhook handled")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhookCompletedDuplicateIsNoop(t *testing.T) {
	gw := &fakeGateway{event: &payment.Event{
		Type:            payment.EventCheckoutCompleted,
		SessionID:       "cs_1",
		PaymentIntentID: "pi_123",
		OrderID:         9,
		UserID:          7,
	}}
	h, mock := newPaymentHandler(t, gw)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM orders WHERE id = \? FOR UPDATE`).
		WithArgs(uint64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "status", "total_amount", "created_at"}).
			AddRow(9, 7, "PAID", "19.98", now))
	mock.ExpectRollback()

	c, rec := newTestContext(http.MethodPost, "/v1/payments/webhook", `{}`, 0)
	c.Request().Header.Set("Stripe-Signature", "t=1,v1=ignored-by-fake")
	require.NoError(t, h.Webhook(c))
	requireJSONStatus(t, rec, http.StatusOK, "Webhook handled")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhookExpiredCancelsOrder(t *testing.T) {
	gw := &fakeGateway{event: &payment.Event{
		Type:      payment.EventCheckoutExpired,
		SessionID: "cs_1",
		OrderID:   9,
		UserID:    7,
	}}
	h, mock := newPaymentHandler(t, gw)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM orders WHERE id = \? FOR UPDATE`).
		WithArgs(uint64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "status", "total_amount", "created_at"}).
			AddRow(9, 7, "PENDING", "19.98", now))
	mock.ExpectExec(`INSERT INTO payments`).
		WithArgs(uint64(7), uint64(9), "19.98", "CANCELLED", "cs_1").
		WillReturnResult(sqlmock.NewResult(6, 1))
	mock.ExpectExec(`UPDATE orders SET status = \? WHERE id = \?`).
		WithArgs("CANCELLED", uint64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	c, rec := newTestContext(http.MethodPost, "/v1/payments/webhook", `{}`, 0)
	c.Request().Header.Set("Stripe-Signature", "t=1,v1=ignored-by-fake")
	require.NoError(t, h.Webhook(c))
	requireJSONStatus(t, rec, http.StatusOK, "Webhook handled")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhookExpiredAfterPaymentIsNoop(t *testing.T) {
	gw := &fakeGateway{event: &payment.Event{
		Type:      payment.EventCheckoutExpired,
		SessionID: "cs_1",
		OrderID:   9,
		UserID:    7,
	}}
	h, mock := newPaymentHandler(t, gw)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM orders WHERE id = \? FOR UPDATE`).
		WithArgs(uint64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "status", "total_amount", "created_at"}).
			AddRow(9, 7, "PAID", "19.98", now))
	mock.ExpectRollback()

	c, rec := newTestContext(http.MethodPost, "/v1/payments/webhook", `{}`, 0)
	c.Request().Header.Set("Stripe-Signature", "t=1,v1=ignored-by-fake")
	require.NoError(t, h.Webhook(c))
	requireJSONStatus(t, rec, http.StatusOK, "Webhook handled")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhookInvalidSignature(t *testing.T) {
	gw := &fakeGateway{eventErr: payment.ErrInvalidSignature}
	h, mock := newPaymentHandler(t, gw)

	c, rec := newTestContext(http.MethodPost, "/v1/payments/webhook", `{}`, 0)
	c.Request().Header.Set("Stripe-Signature", "t=1,v1=bad")
	require.NoError(t, h.Webhook(c))
	requireJSONStatus(t, rec, http.StatusBadRequest, "Invalid webhook signature.")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhookPaymentFailedLeavesOrderAlone(t *testing.T) {
	gw := &fakeGateway{event: &payment.Event{
		Type:           payment.EventPaymentFailed,
		OrderID:        9,
		FailureMessage: "Your card was declined.",
	}}
	h, mock := newPaymentHandler(t, gw)

	c, rec := newTestContext(http.MethodPost, "/v1/payments/webhook", `{}`, 0)
	c.Request().Header.Set("Stripe-Signature", "t=1,v1=ignored-by-fake")
	require.NoError(t, h.Webhook(c))
	requireJSONStatus(t, rec, http.StatusOK, "Webhook handled")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSuccessAndCancelPages(t *testing.T) {
	h, _ := newPaymentHandler(t, &fakeGateway{})

	c, rec := newTestContext(http.MethodGet, "/v1/payments/success", "", 0)
	require.NoError(t, h.Success(c))
	requireJSONStatus(t, rec, http.StatusOK, "Payment was successful! Thank you!")

	c, rec = newTestContext(http.MethodGet, "/v1/payments/cancel", "", 0)
	require.NoError(t, h.Cancel(c))
	requireJSONStatus(t, rec, http.StatusOK, "Payment was cancelled.")
}
