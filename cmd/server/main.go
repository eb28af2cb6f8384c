package main // Entry point package

import (
	"log"  // Logging library
	"time" // Durations for the checkout session TTL

	"github.com/joho/godotenv"    // Loads .env files in development
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/Morphin20th/online-cinema/internal/config"
	"github.com/Morphin20th/online-cinema/internal/database"
	"github.com/Morphin20th/online-cinema/internal/handler"
	"github.com/Morphin20th/online-cinema/internal/payment"
	"github.com/Morphin20th/online-cinema/internal/queue"
	"github.com/Morphin20th/online-cinema/internal/repository"
	"github.com/Morphin20th/online-cinema/internal/router"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()
	rlCfg := config.LoadRateLimitConfig()

	db, err := database.Open(database.DSN(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName))
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Redis may be nil; the rate limiter degrades to a pass-through.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable, rate limiting disabled")
	}

	gateway := payment.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret, cfg.AppURL)

	cartRepo := repository.NewCartRepo(db)
	movieRepo := repository.NewMovieRepo(db)
	orderRepo := repository.NewOrderRepo(db)
	paymentRepo := repository.NewPaymentRepo(db)
	purchaseRepo := repository.NewPurchaseRepo(db)
	userRepo := repository.NewUserRepo(db)

	cartHandler := handler.NewCartHandler(cartRepo, movieRepo, orderRepo, purchaseRepo)
	orderHandler := handler.NewOrderHandler(orderRepo, cartRepo, movieRepo, purchaseRepo, paymentRepo, gateway)
	paymentHandler := handler.NewPaymentHandler(orderRepo, paymentRepo, purchaseRepo, userRepo, gateway,
		time.Duration(cfg.CheckoutTTLMin)*time.Minute)

	e := echo.New()
	router.RegisterRoutes(e, db, paymentHandler)
	router.RegisterCommerce(e, cartHandler, orderHandler, paymentHandler, cfg.JWTSecret, rlCfg, rdb)

	// Background consumer writes confirmed payments to logs/payments.log.
	go func() {
		if err := queue.StartPaymentConsumer(); err != nil {
			log.Printf("payment consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
