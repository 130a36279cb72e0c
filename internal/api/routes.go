/**
 * @description
 * API Route definitions.
 * Sets up the router groups and assigns handlers.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2
 * - backend/internal/api/handlers
 * - backend/internal/api/middleware
 * - backend/internal/services
 */

package api

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stockpulse/backend/internal/api/handlers"
	"github.com/stockpulse/backend/internal/api/middleware"
	"github.com/stockpulse/backend/internal/config"
	"github.com/stockpulse/backend/internal/services"
	"gorm.io/gorm"
)

// Deps carries the shared services the routes are built from
type Deps struct {
	DB           *gorm.DB
	Redis        *redis.Client
	QuoteService *services.QuoteService
	AlertService *services.AlertService
	Scheduler    *services.AlertScheduler
}

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, cfg *config.Config, deps Deps) {
	// 1. Initialize Middleware
	if err := middleware.InitAuthMiddleware(cfg); err != nil {
		log.Printf("Failed to init auth middleware: %v", err)
		// We don't panic here to allow app to start in dev modes without valid keys,
		// but protected routes will fail.
	}

	// 2. Initialize Services built on the shared ones
	watchlistService := services.NewWatchlistService(deps.DB, deps.QuoteService)

	// 3. Initialize Handlers
	userHandler := handlers.NewUserHandler(deps.DB)
	quoteHandler := handlers.NewQuoteHandler(deps.QuoteService)
	alertHandler := handlers.NewAlertHandler(deps.DB, deps.AlertService, deps.Scheduler)
	watchlistHandler := handlers.NewWatchlistHandler(deps.DB, watchlistService)

	// 4. Define Routes
	apiGroup := app.Group("/api")
	v1 := apiGroup.Group("/v1")

	// Public Routes
	v1.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Quote Routes (Public)
	quotes := v1.Group("/quotes")
	quotes.Get("/", quoteHandler.GetQuotes)
	quotes.Get("/:symbol", quoteHandler.GetQuote)

	// User Routes (Protected)
	user := v1.Group("/user", middleware.Protected())
	user.Post("/sync", userHandler.SyncUser)
	user.Get("/me", userHandler.GetMe)

	// Watchlist Routes (Protected)
	watchlist := v1.Group("/watchlist", middleware.Protected())
	watchlist.Get("/", watchlistHandler.GetWatchlist)
	watchlist.Post("/", watchlistHandler.AddSymbol)
	watchlist.Post("/toggle", watchlistHandler.ToggleSymbol)
	watchlist.Delete("/:symbol", watchlistHandler.RemoveSymbol)

	// Alert Routes (Protected)
	alerts := v1.Group("/alerts", middleware.Protected())
	alerts.Post("/", alertHandler.CreateAlert)
	alerts.Get("/", alertHandler.GetAlerts)
	alerts.Get("/stats", alertHandler.GetAlertStats)
	alerts.Post("/check", alertHandler.CheckNow)
	alerts.Get("/stream", alertHandler.StreamTriggers)
	alerts.Get("/scheduler", alertHandler.SchedulerStatus)
	alerts.Post("/scheduler/start", alertHandler.StartScheduler)
	alerts.Post("/scheduler/stop", alertHandler.StopScheduler)
	alerts.Get("/:id/history", alertHandler.GetAlertHistory)
	alerts.Post("/:id/cancel", alertHandler.CancelAlert)
	alerts.Post("/:id/trigger", alertHandler.ManualTrigger)
	alerts.Delete("/:id", alertHandler.DeleteAlert)
}
