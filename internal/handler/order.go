package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Morphin20th/online-cinema/internal/model"
	"github.com/Morphin20th/online-cinema/internal/payment"
	"github.com/Morphin20th/online-cinema/internal/repository"
)

// OrderHandler converts carts into orders and drives the order state
// machine (cancel, refund). Every state transition runs inside a
// transaction that first locks the order row, so concurrent webhook
// delivery and user actions serialize on the same lock.
type OrderHandler struct {
	OrderRepo    *repository.OrderRepo
	CartRepo     *repository.CartRepo
	MovieRepo    *repository.MovieRepo
	PurchaseRepo *repository.PurchaseRepo
	PaymentRepo  *repository.PaymentRepo
	Gateway      payment.Gateway
}

// NewOrderHandler constructs an OrderHandler. All dependencies must be
// non-nil.
func NewOrderHandler(orderRepo *repository.OrderRepo, cartRepo *repository.CartRepo, movieRepo *repository.MovieRepo, purchaseRepo *repository.PurchaseRepo, paymentRepo *repository.PaymentRepo, gw payment.Gateway) *OrderHandler {
	if orderRepo == nil || cartRepo == nil || movieRepo == nil || purchaseRepo == nil || paymentRepo == nil || gw == nil {
		panic("nil dependency passed to NewOrderHandler")
	}
	return &OrderHandler{
		OrderRepo:    orderRepo,
		CartRepo:     cartRepo,
		MovieRepo:    movieRepo,
		PurchaseRepo: purchaseRepo,
		PaymentRepo:  paymentRepo,
		Gateway:      gw,
	}
}

// CreateOrder handles POST /v1/orders/create. The whole conversion is
// one transaction: the cart row is locked first, which serializes two
// concurrent creations by the same user so the second one observes the
// pending order the first one inserted. Item prices are summed from
// the current catalog and frozen on the order.
func (h *OrderHandler) CreateOrder(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx := c.Request().Context()

	tx, err := h.OrderRepo.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Error while trying to create an order occurred."})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	cart, err := h.CartRepo.GetByUserIDForUpdateTx(ctx, tx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrCartNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Cart not found."})
		}
		log.Printf("create order: lock cart for user %d: %v", userID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Error while trying to create an order occurred."})
	}

	items, err := h.CartRepo.ItemsTx(ctx, tx, cart.ID)
	if err != nil {
		log.Printf("create order: list cart %d items: %v", cart.ID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Error while trying to create an order occurred."})
	}
	if len(items) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Cart is empty."})
	}

	pending, err := h.OrderRepo.HasPendingTx(ctx, tx, userID)
	if err != nil {
		log.Printf("create order: pending check for user %d: %v", userID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Error while trying to create an order occurred."})
	}
	if pending {
		return c.JSON(http.StatusConflict, echo.Map{"error": "You already have a pending order."})
	}

	movieIDs := make([]uint64, 0, len(items))
	for _, it := range items {
		movieIDs = append(movieIDs, it.MovieID)
	}

	// A movie bought in a parallel session after it entered this cart
	// must not be sold twice. Both the entitlement table and PAID
	// orders are checked inside the transaction.
	purchasedCount, err := h.PurchaseRepo.CountForUserTx(ctx, tx, userID, movieIDs)
	if err != nil {
		log.Printf("create order: purchase check for user %d: %v", userID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Error while trying to create an order occurred."})
	}
	paidCount, err := h.OrderRepo.PaidMovieCountTx(ctx, tx, userID, movieIDs)
	if err != nil {
		log.Printf("create order: paid order check for user %d: %v", userID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Error while trying to create an order occurred."})
	}
	if purchasedCount > 0 || paidCount > 0 {
		return c.JSON(http.StatusConflict, echo.Map{"error": "Some movies have already been purchased."})
	}

	movies, err := h.MovieRepo.ListByIDsTx(ctx, tx, movieIDs)
	if err != nil {
		log.Printf("create order: load movies for cart %d: %v", cart.ID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Error while trying to create an order occurred."})
	}
	total, err := h.MovieRepo.SumPricesTx(ctx, tx, movieIDs)
	if err != nil {
		log.Printf("create order: sum prices for cart %d: %v", cart.ID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Error while trying to create an order occurred."})
	}

	order := &model.Order{
		UserID:      userID,
		Status:      model.OrderPending,
		TotalAmount: total,
	}
	if err := h.OrderRepo.CreateTx(ctx, tx, order); err != nil {
		log.Printf("create order: insert order for user %d: %v", userID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Error while trying to create an order occurred."})
	}
	orderItems := make([]model.OrderItem, 0, len(movieIDs))
	for _, movieID := range movieIDs {
		orderItems = append(orderItems, model.OrderItem{OrderID: order.ID, MovieID: movieID})
	}
	if err := h.OrderRepo.CreateItemsBulkTx(ctx, tx, orderItems); err != nil {
		log.Printf("create order: insert items for order %d: %v", order.ID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Error while trying to create an order occurred."})
	}
	if err := h.CartRepo.ClearTx(ctx, tx, cart.ID); err != nil {
		log.Printf("create order: clear cart %d: %v", cart.ID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Error while trying to create an order occurred."})
	}

	if err := tx.Commit(); err != nil {
		log.Printf("create order: commit for user %d: %v", userID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Error while trying to create an order occurred."})
	}
	committed = true

	resp := repository.OrderDetail{
		ID:          order.ID,
		Status:      string(order.Status),
		TotalAmount: order.TotalAmount,
		CreatedAt:   order.CreatedAt.Format(time.RFC3339),
		Movies:      make([]repository.OrderMovie, 0, len(movies)),
	}
	for _, m := range movies {
		resp.Movies = append(resp.Movies, repository.OrderMovie{
			UUID:  m.UUID.String(),
			Name:  m.Name,
			Price: m.Price,
		})
	}
	return c.JSON(http.StatusCreated, resp)
}

// ListOrders handles GET /v1/orders with the standard pagination
// parameters.
func (h *OrderHandler) ListOrders(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx := c.Request().Context()
	page, perPage := pageParams(c)

	total, err := h.OrderRepo.CountByUser(ctx, userID)
	if err != nil {
		log.Printf("list orders: count for user %d: %v", userID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load orders"})
	}
	orders, err := h.OrderRepo.ListByUser(ctx, userID, perPage, (page-1)*perPage)
	if err != nil {
		log.Printf("list orders: list for user %d: %v", userID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load orders"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"orders":      orders,
		"total_items": total,
		"total_pages": totalPages(total, perPage),
	})
}

// CancelOrder handles POST /v1/orders/cancel/:id. Only PENDING orders
// can be cancelled directly; PAID ones must go through the refund
// flow. Another user's order answers 404, not 403, so the endpoint
// does not leak which order ids exist.
func (h *OrderHandler) CancelOrder(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	orderID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order id"})
	}
	ctx := c.Request().Context()

	tx, err := h.OrderRepo.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to cancel order"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	order, err := h.OrderRepo.GetByIDForUpdateTx(ctx, tx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Order not found."})
		}
		log.Printf("cancel order %d: lock: %v", orderID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to cancel order"})
	}
	if order.UserID != userID {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Order not found."})
	}
	switch order.Status {
	case model.OrderPaid:
		return c.JSON(http.StatusConflict, echo.Map{"error": "Paid orders cannot be cancelled. Please request a refund."})
	case model.OrderCancelled:
		return c.JSON(http.StatusConflict, echo.Map{"error": "Order is already cancelled."})
	}

	if err := h.OrderRepo.UpdateStatusTx(ctx, tx, order.ID, model.OrderCancelled); err != nil {
		log.Printf("cancel order %d: update status: %v", orderID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to cancel order"})
	}
	if err := tx.Commit(); err != nil {
		log.Printf("cancel order %d: commit: %v", orderID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to cancel order"})
	}
	committed = true

	return c.JSON(http.StatusOK, echo.Map{"message": "Order has been cancelled."})
}

// RefundOrder handles POST /v1/orders/refund/:id. The gateway is
// called while the order row lock is held and before any local write,
// so a gateway rejection leaves the database untouched. If the local
// commit fails after the gateway accepted, the refund id is logged so
// an operator can reconcile; Stripe refunds are idempotent per
// payment intent, so a retried request does not double-refund.
func (h *OrderHandler) RefundOrder(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	orderID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order id"})
	}
	ctx := c.Request().Context()

	tx, err := h.OrderRepo.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to refund order"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	order, err := h.OrderRepo.GetByIDForUpdateTx(ctx, tx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Order not found."})
		}
		log.Printf("refund order %d: lock: %v", orderID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to refund order"})
	}
	if order.UserID != userID {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Order not found."})
	}
	switch order.Status {
	case model.OrderPending:
		return c.JSON(http.StatusConflict, echo.Map{"error": "Order is not paid yet."})
	case model.OrderCancelled:
		return c.JSON(http.StatusConflict, echo.Map{"error": "Order is already cancelled."})
	}

	pay, err := h.PaymentRepo.LatestByOrderTx(ctx, tx, order.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNoRefundablePayment) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "No refundable payment found for this order."})
		}
		log.Printf("refund order %d: load payment: %v", orderID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to refund order"})
	}
	if pay.Status != model.PaymentSuccessful || pay.ExternalPaymentID == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "No refundable payment found for this order."})
	}

	refund, err := h.Gateway.CreateRefund(*pay.ExternalPaymentID)
	if err != nil {
		var gerr *payment.GatewayError
		if errors.As(err, &gerr) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": gerr.Message})
		}
		log.Printf("refund order %d: gateway: %v", orderID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to refund order"})
	}

	if err := h.PaymentRepo.UpdateStatusTx(ctx, tx, pay.ID, model.PaymentRefunded); err != nil {
		log.Printf("refund order %d: REFUND %s ACCEPTED BUT LOCAL UPDATE FAILED: %v", orderID, refund.ID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to refund order"})
	}
	if err := h.OrderRepo.UpdateStatusTx(ctx, tx, order.ID, model.OrderCancelled); err != nil {
		log.Printf("refund order %d: REFUND %s ACCEPTED BUT LOCAL UPDATE FAILED: %v", orderID, refund.ID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to refund order"})
	}
	if err := h.PurchaseRepo.DeleteByOrderTx(ctx, tx, userID, order.ID); err != nil {
		log.Printf("refund order %d: REFUND %s ACCEPTED BUT LOCAL UPDATE FAILED: %v", orderID, refund.ID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to refund order"})
	}
	if err := tx.Commit(); err != nil {
		log.Printf("refund order %d: REFUND %s ACCEPTED BUT COMMIT FAILED: %v", orderID, refund.ID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to refund order"})
	}
	committed = true

	return c.JSON(http.StatusOK, echo.Map{"message": "Order has been refunded."})
}
