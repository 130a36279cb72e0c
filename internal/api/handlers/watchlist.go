/**
 * @description
 * Watchlist API Handlers.
 * Handles symbol bookmark operations.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2
 * - backend/internal/services
 * - backend/internal/api/middleware
 */

package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/stockpulse/backend/internal/api/middleware"
	"github.com/stockpulse/backend/internal/logger"
	"github.com/stockpulse/backend/internal/models"
	"github.com/stockpulse/backend/internal/services"
	"gorm.io/gorm"
)

// WatchlistHandler handles watchlist-related requests
type WatchlistHandler struct {
	db               *gorm.DB
	watchlistService *services.WatchlistService
}

// NewWatchlistHandler creates a new WatchlistHandler
func NewWatchlistHandler(db *gorm.DB, watchlistService *services.WatchlistService) *WatchlistHandler {
	return &WatchlistHandler{
		db:               db,
		watchlistService: watchlistService,
	}
}

func (h *WatchlistHandler) currentUser(c *fiber.Ctx) (*models.User, error) {
	clerkID, err := middleware.GetUserID(c)
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := h.db.Where("clerk_id = ?", clerkID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// WatchRequest represents a watch/unwatch request body
type WatchRequest struct {
	Symbol string `json:"symbol"`
}

// AddSymbol adds a symbol to the watchlist
// POST /api/v1/watchlist
func (h *WatchlistHandler) AddSymbol(c *fiber.Ctx) error {
	user, err := h.currentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	var req WatchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if strings.TrimSpace(req.Symbol) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Symbol is required"})
	}

	if err := h.watchlistService.AddSymbol(c.Context(), user.ID, req.Symbol); err != nil {
		logger.Error("WatchlistHandler: failed to add symbol: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to add symbol"})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"watched": true,
		"symbol":  strings.ToUpper(strings.TrimSpace(req.Symbol)),
	})
}

// RemoveSymbol removes a symbol from the watchlist
// DELETE /api/v1/watchlist/:symbol
func (h *WatchlistHandler) RemoveSymbol(c *fiber.Ctx) error {
	user, err := h.currentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	symbol := c.Params("symbol")
	if symbol == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Symbol is required"})
	}

	if err := h.watchlistService.RemoveSymbol(c.Context(), user.ID, symbol); err != nil {
		logger.Error("WatchlistHandler: failed to remove symbol: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to remove symbol"})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"watched": false,
		"symbol":  strings.ToUpper(symbol),
	})
}

// ToggleSymbol toggles watch status
// POST /api/v1/watchlist/toggle
func (h *WatchlistHandler) ToggleSymbol(c *fiber.Ctx) error {
	user, err := h.currentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	var req WatchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if strings.TrimSpace(req.Symbol) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Symbol is required"})
	}

	watched, err := h.watchlistService.ToggleSymbol(c.Context(), user.ID, req.Symbol)
	if err != nil {
		logger.Error("WatchlistHandler: failed to toggle symbol: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to toggle symbol"})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"watched": watched,
		"symbol":  strings.ToUpper(strings.TrimSpace(req.Symbol)),
	})
}

// GetWatchlist returns the user's watchlist with live quotes
// GET /api/v1/watchlist
func (h *WatchlistHandler) GetWatchlist(c *fiber.Ctx) error {
	user, err := h.currentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	items, err := h.watchlistService.GetWatchlist(c.Context(), user.ID)
	if err != nil {
		logger.Error("WatchlistHandler: failed to fetch watchlist: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch watchlist"})
	}

	return c.JSON(fiber.Map{"watchlist": items})
}
