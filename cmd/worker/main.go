/**
 * @description
 * Worker Service Entry Point.
 * Runs the price-alert scheduler headless, for deployments that keep the
 * evaluation loop out of the API process.
 *
 * @dependencies
 * - backend/internal/config
 * - backend/internal/db
 * - backend/internal/services
 * - backend/internal/mailer
 * - backend/internal/marketdata
 */

package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stockpulse/backend/internal/config"
	"github.com/stockpulse/backend/internal/db"
	"github.com/stockpulse/backend/internal/logger"
	"github.com/stockpulse/backend/internal/mailer"
	"github.com/stockpulse/backend/internal/marketdata"
	"github.com/stockpulse/backend/internal/services"
)

func main() {
	logger.Info("🔥 Starting StockPulse Alert Worker...")

	// 1. Load Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config: %v", err)
	}

	// 2. Connect DBs
	pgDB, err := db.ConnectPostgres(cfg)
	if err != nil {
		logger.Fatal("Postgres connection failed: %v", err)
	}

	if err := db.Migrate(pgDB); err != nil {
		logger.Fatal("Schema migration failed: %v", err)
	}

	redisClient, err := db.ConnectRedis(cfg)
	if err != nil {
		logger.Fatal("Redis connection failed: %v", err)
	}

	// 3. Initialize Services
	quoteClient := marketdata.NewClient(cfg)
	quoteService := services.NewQuoteService(redisClient, quoteClient,
		time.Duration(cfg.Alerts.QuoteCacheTTL)*time.Second)
	alertMailer := mailer.NewMailer(cfg)
	alertService := services.NewAlertService(pgDB, redisClient, quoteService, alertMailer)
	scheduler := services.NewAlertScheduler(alertService,
		time.Duration(cfg.Alerts.IntervalSeconds)*time.Second)

	scheduler.Start()

	// 4. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker...")
	scheduler.Stop()

	// In-flight passes run to completion; give them a moment before exit
	time.Sleep(1 * time.Second)
	logger.Info("Worker exited.")
}
