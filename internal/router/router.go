package router // package router defines how HTTP routes are registered for the API

import (
	"database/sql"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/Morphin20th/online-cinema/internal/config"
	"github.com/Morphin20th/online-cinema/internal/handler"
	"github.com/Morphin20th/online-cinema/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  The health check is used by load balancers; the
// webhook endpoint authenticates with its own signature scheme instead of a
// JWT; the success and cancel pages are the gateway's redirect targets and
// arrive without any Authorization header.
func RegisterRoutes(e *echo.Echo, db *sql.DB, p *handler.PaymentHandler) {
	e.GET("/healthz", handler.Health(db))
	e.POST("/v1/payments/webhook", p.Webhook)
	e.GET("/v1/payments/success", p.Success)
	e.GET("/v1/payments/cancel", p.Cancel)
}

// RegisterCommerce registers the authenticated cart, order and payment
// endpoints under /v1.  All routes require a valid JWT; the token-bucket
// limiter applies on top and degrades to a no-op when Redis is down.
func RegisterCommerce(e *echo.Echo, cart *handler.CartHandler, order *handler.OrderHandler, pay *handler.PaymentHandler, jwtSecret string, rl config.RateLimitConfig, rdb *redis.Client) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.NewTokenBucket(rl, rdb),
	)

	g.GET("/cart", cart.GetCart)
	g.POST("/cart/add", cart.AddMovie)
	g.DELETE("/cart/remove/:movie_uuid", cart.RemoveMovie)

	g.POST("/orders/create", order.CreateOrder)
	g.GET("/orders", order.ListOrders)
	g.POST("/orders/cancel/:id", order.CancelOrder)
	g.POST("/orders/refund/:id", order.RefundOrder)

	g.POST("/payments/checkout-session", pay.CreateCheckoutSession)
	g.GET("/payments", pay.ListPayments)
}
