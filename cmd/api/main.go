/**
 * @description
 * Main entry point for the StockPulse Backend API.
 * Initializes the Fiber web server, loads configuration, connects the
 * databases, wires the services, and starts the alert scheduler.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2: Web framework
 * - backend/internal/config: Config loader
 * - backend/internal/db: Database connections
 * - backend/internal/services: Alert evaluation and scheduling
 *
 * @notes
 * - Connects to Postgres and Redis on startup.
 * - The alert scheduler runs in-process; deployments that prefer a
 *   dedicated worker can disable it with ALERT_SCHEDULER_DISABLED and
 *   run cmd/worker instead.
 */

package main

import (
	"log"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/stockpulse/backend/internal/api"
	"github.com/stockpulse/backend/internal/config"
	"github.com/stockpulse/backend/internal/db"
	"github.com/stockpulse/backend/internal/mailer"
	"github.com/stockpulse/backend/internal/marketdata"
	"github.com/stockpulse/backend/internal/services"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Initialize Database Connections
	pgDB, err := db.ConnectPostgres(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}

	if err := db.Migrate(pgDB); err != nil {
		log.Fatalf("Failed to migrate schema: %v", err)
	}

	redisClient, err := db.ConnectRedis(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}

	// 3. Initialize Services
	quoteClient := marketdata.NewClient(cfg)
	quoteService := services.NewQuoteService(redisClient, quoteClient,
		time.Duration(cfg.Alerts.QuoteCacheTTL)*time.Second)
	alertMailer := mailer.NewMailer(cfg)
	alertService := services.NewAlertService(pgDB, redisClient, quoteService, alertMailer)
	scheduler := services.NewAlertScheduler(alertService,
		time.Duration(cfg.Alerts.IntervalSeconds)*time.Second)

	// 4. Initialize Fiber App
	app := fiber.New(fiber.Config{
		AppName:       "StockPulse Trading Dashboard",
		StrictRouting: true,
		CaseSensitive: true,
	})

	// 5. Global Middleware
	app.Use(recover.New())     // Panic recovery
	app.Use(fiberlogger.New()) // Request logging
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "*", // TODO: Lock this down in production
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, PUT, DELETE, OPTIONS",
		AllowCredentials: true,
	}))

	// 6. Routes
	api.SetupRoutes(app, cfg, api.Deps{
		DB:           pgDB,
		Redis:        redisClient,
		QuoteService: quoteService,
		AlertService: alertService,
		Scheduler:    scheduler,
	})

	// 7. Start the alert scheduler unless a dedicated worker owns it
	if os.Getenv("ALERT_SCHEDULER_DISABLED") == "" {
		scheduler.Start()
	}

	// 8. Start Server
	log.Printf("🚀 Starting StockPulse Backend on port %s", cfg.Server.Port)
	if err := app.Listen(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
