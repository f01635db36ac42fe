package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"ticketgate/internal/clock"
	"ticketgate/internal/config"
	"ticketgate/internal/database"
	"ticketgate/internal/logger"
	"ticketgate/internal/repositories"
	"ticketgate/internal/services"
)

// Runs the hold-expiry and pending-order-expiry sweeps, once by default or on
// an interval with -loop. Useful when the API server runs with sweeps
// disabled or for catch-up after downtime.
func main() {
	loopFlag := flag.Bool("loop", false, "Keep sweeping on the configured interval")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog := logger.New("ticketgate-sweep", cfg.Logging.Level)
	defer zlog.Sync()

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
		zlog.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	clk := clock.NewSystem()
	holdRepo := repositories.NewHoldRepository(db.DB)
	inventoryRepo := repositories.NewInventoryRepository(db.DB)
	orderRepo := repositories.NewOrderRepository(db.DB)
	ticketRepo := repositories.NewTicketRepository(db.DB)

	holdService := services.NewHoldService(holdRepo, inventoryRepo, clk,
		cfg.Reservation.HoldTTL, cfg.Reservation.MaxUnitsPerHold, zlog)
	orderService := services.NewOrderService(orderRepo, inventoryRepo, ticketRepo,
		services.NewIssuerService(cfg.Credential.Secret),
		services.NewSandboxGateway(), clk,
		cfg.Reservation.ServiceFeePct, cfg.Reservation.CashVerifyWindow,
		cfg.Reservation.PaymentTimeout, zlog)

	ctx := context.Background()
	sweep := func() {
		holds, err := holdService.ReleaseExpired(ctx)
		if err != nil {
			zlog.Error("hold sweep failed", zap.Error(err))
		}
		orders, err := orderService.CancelExpiredPendingOrders(ctx)
		if err != nil {
			zlog.Error("pending order sweep failed", zap.Error(err))
		}
		zlog.Info("sweep complete", zap.Int("holds_released", holds), zap.Int("pending_orders_cancelled", orders))
	}

	sweep()
	if !*loopFlag {
		return
	}

	ticker := time.NewTicker(cfg.Reservation.SweepInterval)
	defer ticker.Stop()
	for range ticker.C {
		sweep()
	}
}
