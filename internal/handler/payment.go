package handler

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Morphin20th/online-cinema/internal/model"
	"github.com/Morphin20th/online-cinema/internal/payment"
	"github.com/Morphin20th/online-cinema/internal/queue"
	"github.com/Morphin20th/online-cinema/internal/repository"
	queue_publisher "github.com/Morphin20th/online-cinema/internal/service"
)

// PaymentHandler starts checkout sessions for pending orders and
// processes the gateway's webhook callbacks. Webhook delivery is
// at-least-once and unordered, so each event handler locks the order
// row and short-circuits when the order has already left PENDING.
type PaymentHandler struct {
	OrderRepo    *repository.OrderRepo
	PaymentRepo  *repository.PaymentRepo
	PurchaseRepo *repository.PurchaseRepo
	UserRepo     *repository.UserRepo
	Gateway      payment.Gateway
	SessionTTL   time.Duration // checkout session lifetime before the gateway expires it
}

// NewPaymentHandler constructs a PaymentHandler. sessionTTL below 30
// minutes is raised to 30 minutes, the minimum Stripe accepts.
func NewPaymentHandler(orderRepo *repository.OrderRepo, paymentRepo *repository.PaymentRepo, purchaseRepo *repository.PurchaseRepo, userRepo *repository.UserRepo, gw payment.Gateway, sessionTTL time.Duration) *PaymentHandler {
	if orderRepo == nil || paymentRepo == nil || purchaseRepo == nil || userRepo == nil || gw == nil {
		panic("nil dependency passed to NewPaymentHandler")
	}
	if sessionTTL < 30*time.Minute {
		sessionTTL = 30 * time.Minute
	}
	return &PaymentHandler{
		OrderRepo:    orderRepo,
		PaymentRepo:  paymentRepo,
		PurchaseRepo: purchaseRepo,
		UserRepo:     userRepo,
		Gateway:      gw,
		SessionTTL:   sessionTTL,
	}
}

// CreateCheckoutSession handles POST /v1/payments/checkout-session.
// The session is built from the caller's single PENDING order; its
// id travels to the gateway as correlation metadata and returns on
// webhook events.
func (h *PaymentHandler) CreateCheckoutSession(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx := c.Request().Context()

	order, err := h.OrderRepo.PendingByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "No pending order found."})
		}
		log.Printf("checkout: load pending order for user %d: %v", userID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Something went wrong."})
	}

	lines, err := h.OrderRepo.Lines(ctx, order.ID)
	if err != nil {
		log.Printf("checkout: load lines for order %d: %v", order.ID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Something went wrong."})
	}

	// Email prefills the gateway's checkout page. Checkout still works
	// without it, so a lookup failure only logs.
	email := ""
	if user, err := h.UserRepo.GetByID(ctx, userID); err != nil {
		log.Printf("checkout: load user %d: %v", userID, err)
	} else {
		email = user.Email
	}

	co := payment.CheckoutOrder{
		OrderID: order.ID,
		UserID:  userID,
		Email:   email,
		Items:   make([]payment.CheckoutItem, 0, len(lines)),
	}
	for _, l := range lines {
		co.Items = append(co.Items, payment.CheckoutItem{Name: l.Name, Price: l.Price})
	}

	url, err := h.Gateway.CreateCheckoutSession(co, h.SessionTTL)
	if err != nil {
		if errors.Is(err, payment.ErrEmptyOrder) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "Order has no items."})
		}
		log.Printf("checkout: create session for order %d: %v", order.ID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Something went wrong."})
	}

	return c.JSON(http.StatusOK, echo.Map{"checkout_url": url})
}

// Webhook handles POST /v1/payments/webhook. The raw body is read
// before any decoding because signature verification covers the exact
// bytes the gateway sent. Unknown event types acknowledge with 200 so
// the gateway does not retry them forever.
func (h *PaymentHandler) Webhook(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid webhook payload."})
	}
	sig := c.Request().Header.Get("Stripe-Signature")

	ev, err := h.Gateway.ParseWebhookEvent(body, sig)
	if err != nil {
		if errors.Is(err, payment.ErrInvalidSignature) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid webhook signature."})
		}
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid webhook payload."})
	}

	switch ev.Type {
	case payment.EventCheckoutCompleted:
		return h.handleCheckoutCompleted(c, ev)
	case payment.EventCheckoutExpired:
		return h.handleCheckoutExpired(c, ev)
	case payment.EventPaymentFailed:
		// No state change: the session stays open and the user can
		// retry with another card until it expires.
		log.Printf("webhook: payment failed for order %d: %s", ev.OrderID, ev.FailureMessage)
	default:
		log.Printf("webhook: ignoring event type %q", ev.Type)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Webhook handled"})
}

// handleCheckoutCompleted marks the order PAID, records the payment
// with its per-item price audit rows, and grants entitlements, all in
// one transaction behind the order row lock. A duplicate delivery
// finds the order already PAID and acknowledges without writing.
func (h *PaymentHandler) handleCheckoutCompleted(c echo.Context, ev *payment.Event) error {
	if ev.OrderID == 0 {
		log.Printf("webhook: completed session %s without order metadata", ev.SessionID)
		return c.JSON(http.StatusOK, echo.Map{"message": "Webhook handled"})
	}
	ctx := c.Request().Context()

	tx, err := h.OrderRepo.DB().BeginTx(ctx, nil)
	if err != nil {
		log.Printf("webhook: begin tx for order %d: %v", ev.OrderID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Something went wrong."})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	order, err := h.OrderRepo.GetByIDForUpdateTx(ctx, tx, ev.OrderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Order not found."})
		}
		log.Printf("webhook: lock order %d: %v", ev.OrderID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Something went wrong."})
	}
	if order.Status != model.OrderPending {
		// Duplicate delivery, or the user cancelled before the event
		// arrived. Either way the money side is already settled.
		log.Printf("webhook: order %d already %s, ignoring completed event", order.ID, order.Status)
		return c.JSON(http.StatusOK, echo.Map{"message": "Webhook handled"})
	}

	intent := ev.PaymentIntentID
	pay := &model.Payment{
		UserID:            order.UserID,
		OrderID:           order.ID,
		Amount:            order.TotalAmount,
		Status:            model.PaymentSuccessful,
		ExternalPaymentID: &intent,
	}
	if err := h.PaymentRepo.CreateTx(ctx, tx, pay); err != nil {
		log.Printf("webhook: insert payment for order %d: %v", order.ID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Something went wrong."})
	}

	lines, err := h.OrderRepo.LinesTx(ctx, tx, order.ID)
	if err != nil {
		log.Printf("webhook: load lines for order %d: %v", order.ID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Something went wrong."})
	}
	payItems := make([]model.PaymentItem, 0, len(lines))
	purchases := make([]model.Purchase, 0, len(lines))
	for _, l := range lines {
		payItems = append(payItems, model.PaymentItem{
			PaymentID:      pay.ID,
			OrderItemID:    l.ItemID,
			PriceAtPayment: l.Price,
		})
		purchases = append(purchases, model.Purchase{UserID: order.UserID, MovieID: l.MovieID})
	}
	if err := h.PaymentRepo.CreateItemsBulkTx(ctx, tx, payItems); err != nil {
		log.Printf("webhook: insert payment items for order %d: %v", order.ID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Something went wrong."})
	}

	if err := h.OrderRepo.UpdateStatusTx(ctx, tx, order.ID, model.OrderPaid); err != nil {
		log.Printf("webhook: mark order %d paid: %v", order.ID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Something went wrong."})
	}
	if err := h.PurchaseRepo.CreateBulkTx(ctx, tx, purchases); err != nil {
		log.Printf("webhook: grant purchases for order %d: %v", order.ID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Something went wrong."})
	}

	// 500 here makes the gateway redeliver; the PENDING check above
	// keeps the retry from writing twice once a commit has landed.
	if err := tx.Commit(); err != nil {
		log.Printf("webhook: commit for order %d: %v", order.ID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Something went wrong."})
	}
	committed = true

	h.publishConfirmation(order, pay, lines)

	return c.JSON(http.StatusOK, echo.Map{"message": "Webhook handled"})
}

// handleCheckoutExpired cancels the order the expired session was
// opened for and writes a CANCELLED audit payment row carrying the
// session id. Orders that already left PENDING are left alone.
func (h *PaymentHandler) handleCheckoutExpired(c echo.Context, ev *payment.Event) error {
	if ev.OrderID == 0 {
		log.Printf("webhook: expired session %s without order metadata", ev.SessionID)
		return c.JSON(http.StatusOK, echo.Map{"message": "Webhook handled"})
	}
	ctx := c.Request().Context()

	tx, err := h.OrderRepo.DB().BeginTx(ctx, nil)
	if err != nil {
		log.Printf("webhook: begin tx for order %d: %v", ev.OrderID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Error occurred while cancelling expired order."})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	order, err := h.OrderRepo.GetByIDForUpdateTx(ctx, tx, ev.OrderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			log.Printf("webhook: expired session %s references unknown order %d", ev.SessionID, ev.OrderID)
			return c.JSON(http.StatusOK, echo.Map{"message": "Webhook handled"})
		}
		log.Printf("webhook: lock order %d: %v", ev.OrderID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Error occurred while cancelling expired order."})
	}
	if order.Status != model.OrderPending {
		log.Printf("webhook: order %d already %s, ignoring expired event", order.ID, order.Status)
		return c.JSON(http.StatusOK, echo.Map{"message": "Webhook handled"})
	}

	sessionID := ev.SessionID
	pay := &model.Payment{
		UserID:            order.UserID,
		OrderID:           order.ID,
		Amount:            order.TotalAmount,
		Status:            model.PaymentCancelled,
		ExternalPaymentID: &sessionID,
	}
	if err := h.PaymentRepo.CreateTx(ctx, tx, pay); err != nil {
		log.Printf("webhook: insert audit payment for order %d: %v", order.ID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Error occurred while cancelling expired order."})
	}
	if err := h.OrderRepo.UpdateStatusTx(ctx, tx, order.ID, model.OrderCancelled); err != nil {
		log.Printf("webhook: cancel order %d: %v", order.ID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Error occurred while cancelling expired order."})
	}
	if err := tx.Commit(); err != nil {
		log.Printf("webhook: commit for order %d: %v", order.ID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Error occurred while cancelling expired order."})
	}
	committed = true

	return c.JSON(http.StatusOK, echo.Map{"message": "Webhook handled"})
}

// publishConfirmation emits the payment.confirmed event after commit.
// Failures are logged and swallowed: the purchase already happened.
func (h *PaymentHandler) publishConfirmation(order *model.Order, pay *model.Payment, lines []repository.OrderLine) {
	email := ""
	bg, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if user, err := h.UserRepo.GetByID(bg, order.UserID); err == nil {
		email = user.Email
	}
	ev := queue.PaymentConfirmedEvent{
		PaymentID: pay.ID,
		OrderID:   order.ID,
		UserID:    order.UserID,
		Email:     email,
		Amount:    pay.Amount,
		PaidAt:    time.Now().UTC().Format(time.RFC3339),
		Items:     make([]queue.ConfirmedItem, 0, len(lines)),
	}
	for _, l := range lines {
		ev.Items = append(ev.Items, queue.ConfirmedItem{Name: l.Name, Price: l.Price})
	}
	if err := queue_publisher.PublishPaymentConfirmed(bg, ev); err != nil {
		log.Printf("webhook: publish confirmation for payment %d: %v", pay.ID, err)
	}
}

// ListPayments handles GET /v1/payments with the standard pagination
// parameters.
func (h *PaymentHandler) ListPayments(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx := c.Request().Context()
	page, perPage := pageParams(c)

	total, err := h.PaymentRepo.CountByUser(ctx, userID)
	if err != nil {
		log.Printf("list payments: count for user %d: %v", userID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load payments"})
	}
	payments, err := h.PaymentRepo.ListByUser(ctx, userID, perPage, (page-1)*perPage)
	if err != nil {
		log.Printf("list payments: list for user %d: %v", userID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load payments"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"payments":    payments,
		"total_items": total,
		"total_pages": totalPages(total, perPage),
	})
}

// Success is the landing page the gateway redirects to after a
// completed checkout. State changes happen only via the webhook, so
// this is purely informational.
func (h *PaymentHandler) Success(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"message": "Payment was successful! Thank you!"})
}

// Cancel is the landing page for a user who backed out of checkout.
// The order stays PENDING until it is paid, cancelled or expires.
func (h *PaymentHandler) Cancel(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"message": "Payment was cancelled."})
}
