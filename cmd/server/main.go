package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"ticketgate/internal/clock"
	"ticketgate/internal/config"
	"ticketgate/internal/database"
	"ticketgate/internal/handlers"
	"ticketgate/internal/logger"
	"ticketgate/internal/middleware"
	"ticketgate/internal/repositories"
	"ticketgate/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New("ticketgate", cfg.Logging.Level)
	defer log.Sync()

	// Initialize database connection
	db, err := database.NewConnection(database.Config{
		URL:      cfg.Database.URL,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,

		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}
	log.Info("database ready")

	clk := clock.NewSystem()

	// Initialize repositories
	inventoryRepo := repositories.NewInventoryRepository(db.DB)
	holdRepo := repositories.NewHoldRepository(db.DB)
	orderRepo := repositories.NewOrderRepository(db.DB)
	ticketRepo := repositories.NewTicketRepository(db.DB)
	scanLogRepo := repositories.NewScanLogRepository(db.DB)

	// Initialize services
	gateway := buildGateway(cfg, log)
	issuer := services.NewIssuerService(cfg.Credential.Secret)
	holdService := services.NewHoldService(holdRepo, inventoryRepo, clk,
		cfg.Reservation.HoldTTL, cfg.Reservation.MaxUnitsPerHold, log)
	validationService := services.NewValidationService(inventoryRepo)
	orderService := services.NewOrderService(orderRepo, inventoryRepo, ticketRepo,
		issuer, gateway, clk,
		cfg.Reservation.ServiceFeePct, cfg.Reservation.CashVerifyWindow,
		cfg.Reservation.PaymentTimeout, log)
	limiter := services.NewScanRateLimiter(cfg.Scanner.RateLimit, cfg.Scanner.RateWindow, clk)
	checkinService := services.NewCheckInService(ticketRepo, orderRepo, scanLogRepo,
		issuer, limiter, clk, log)

	// Initialize middleware and handlers
	scannerAuth := middleware.NewScannerAuth(cfg.Scanner.JWTSecret, cfg.Scanner.TokenLifetime, clk)
	holdHandler := handlers.NewHoldHandler(holdService, log)
	cartHandler := handlers.NewCartHandler(validationService, log)
	orderHandler := handlers.NewOrderHandler(orderService, log)
	checkinHandler := handlers.NewCheckInHandler(checkinService, scannerAuth, log)
	healthHandler := handlers.NewHealthHandler(db.DB)

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.LoggingMiddleware(log))
	r.Use(middleware.CORSMiddleware(middleware.DefaultCORSConfig()))

	r.Get("/health", healthHandler.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/cart/validate", cartHandler.ValidateCart)

		r.Route("/holds", func(r chi.Router) {
			r.Post("/", holdHandler.PlaceHold)
			r.Get("/{holdID}", holdHandler.GetHold)
			r.Post("/{holdID}/extend", holdHandler.ExtendHold)
			r.Delete("/{holdID}", holdHandler.ReleaseHold)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", orderHandler.CreateOrder)
			r.Get("/", orderHandler.ListOrders)
			r.Get("/{orderID}", orderHandler.GetOrder)
			r.Post("/{orderID}/settle", orderHandler.SettleOrder)
			r.Post("/{orderID}/refund", orderHandler.RefundOrder)
			r.With(scannerAuth.RequireScanner).
				Post("/{orderID}/confirm-cash", orderHandler.ConfirmCashOrder)
		})

		r.Post("/scanner/token", checkinHandler.IssueToken(cfg.Scanner.JWTSecret))
		r.Route("/tickets", func(r chi.Router) {
			r.Use(scannerAuth.RequireScanner)
			r.Post("/validate", checkinHandler.Validate)
			r.Post("/check-in", checkinHandler.CheckIn)
			r.Get("/{ticketCode}/scans", checkinHandler.ScanHistory)
		})
	})

	// Background sweeps: expired holds, expired pending orders, limiter state
	sweepCtx, stopSweeps := context.WithCancel(context.Background())
	go runSweeps(sweepCtx, holdService, orderService, limiter, cfg.Reservation.SweepInterval, log)

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	stopSweeps()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}

func buildGateway(cfg *config.Config, log *zap.Logger) services.PaymentGateway {
	if cfg.CardGateway.BaseURL != "" && cfg.CardGateway.SecretKey != "" {
		log.Info("payment gateway: card API", zap.String("base_url", cfg.CardGateway.BaseURL))
		return services.NewCardGateway(services.CardGatewayConfig{
			BaseURL:   cfg.CardGateway.BaseURL,
			SecretKey: cfg.CardGateway.SecretKey,
		})
	}

	log.Warn("payment gateway: sandbox (no gateway credentials configured)")
	return services.NewSandboxGateway()
}

func runSweeps(ctx context.Context, holds *services.HoldService, orders *services.OrderService, limiter *services.ScanRateLimiter, interval time.Duration, log *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := holds.ReleaseExpired(ctx); err != nil {
				log.Error("hold sweep failed", zap.Error(err))
			}
			if _, err := orders.CancelExpiredPendingOrders(ctx); err != nil {
				log.Error("pending order sweep failed", zap.Error(err))
			}
			limiter.Cleanup()
		}
	}
}
