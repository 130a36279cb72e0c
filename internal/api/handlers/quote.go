/**
 * @description
 * Quote API Handlers.
 * Proxies cached market-data snapshots to the frontend.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2
 * - backend/internal/services
 */

package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/stockpulse/backend/internal/logger"
	"github.com/stockpulse/backend/internal/services"
)

// QuoteHandler handles market-data requests
type QuoteHandler struct {
	quotes *services.QuoteService
}

// NewQuoteHandler creates a new QuoteHandler
func NewQuoteHandler(quotes *services.QuoteService) *QuoteHandler {
	return &QuoteHandler{quotes: quotes}
}

// GetQuote returns the current snapshot for one symbol
// GET /api/v1/quotes/:symbol
func (h *QuoteHandler) GetQuote(c *fiber.Ctx) error {
	symbol := strings.TrimSpace(c.Params("symbol"))
	if symbol == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Symbol is required"})
	}

	quote, err := h.quotes.GetQuote(c.Context(), symbol)
	if err != nil {
		logger.Error("QuoteHandler: fetch failed for %s: %v", symbol, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Quote source unavailable"})
	}
	if quote == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "No quote for symbol"})
	}

	return c.JSON(fiber.Map{"quote": quote})
}

// GetQuotes returns snapshots for a comma-separated list of symbols
// GET /api/v1/quotes?symbols=AAPL,MSFT
func (h *QuoteHandler) GetQuotes(c *fiber.Ctx) error {
	raw := c.Query("symbols")
	if raw == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "symbols query parameter is required"})
	}

	symbols := strings.Split(raw, ",")
	quotes, err := h.quotes.GetQuotes(c.Context(), symbols)
	if err != nil {
		logger.Error("QuoteHandler: batch fetch failed: %v", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Quote source unavailable"})
	}

	return c.JSON(fiber.Map{"quotes": quotes})
}
