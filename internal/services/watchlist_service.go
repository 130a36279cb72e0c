/**
 * @description
 * Watchlist Service for symbol bookmark operations.
 * Manages the user's tracked ticker symbols in the database and enriches
 * them with live quotes for display.
 *
 * @dependencies
 * - gorm.io/gorm
 * - backend/internal/models
 */

package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/stockpulse/backend/internal/logger"
	"github.com/stockpulse/backend/internal/models"
	"gorm.io/gorm"
)

// WatchlistService handles symbol bookmark operations
type WatchlistService struct {
	db     *gorm.DB
	quotes *QuoteService
}

// NewWatchlistService creates a new WatchlistService
func NewWatchlistService(db *gorm.DB, quotes *QuoteService) *WatchlistService {
	return &WatchlistService{
		db:     db,
		quotes: quotes,
	}
}

// AddSymbol adds a symbol to the user's watchlist
func (s *WatchlistService) AddSymbol(ctx context.Context, userID uuid.UUID, symbol string) error {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil
	}

	entry := &models.WatchlistSymbol{
		UserID: userID,
		Symbol: symbol,
	}

	// FirstOrCreate keeps the operation idempotent under double-clicks
	result := s.db.WithContext(ctx).
		Where("user_id = ? AND symbol = ?", userID, symbol).
		FirstOrCreate(entry)

	if result.Error != nil {
		logger.Error("WatchlistService: failed to add symbol %s: %v", symbol, result.Error)
		return result.Error
	}

	return nil
}

// RemoveSymbol removes a symbol from the user's watchlist
func (s *WatchlistService) RemoveSymbol(ctx context.Context, userID uuid.UUID, symbol string) error {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	result := s.db.WithContext(ctx).
		Where("user_id = ? AND symbol = ?", userID, symbol).
		Delete(&models.WatchlistSymbol{})

	if result.Error != nil {
		logger.Error("WatchlistService: failed to remove symbol %s: %v", symbol, result.Error)
		return result.Error
	}

	return nil
}

// IsWatched checks if the user is tracking a specific symbol
func (s *WatchlistService) IsWatched(ctx context.Context, userID uuid.UUID, symbol string) (bool, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	var count int64
	result := s.db.WithContext(ctx).
		Model(&models.WatchlistSymbol{}).
		Where("user_id = ? AND symbol = ?", userID, symbol).
		Count(&count)

	if result.Error != nil {
		return false, result.Error
	}

	return count > 0, nil
}

// ToggleSymbol toggles watch status and returns the new state
func (s *WatchlistService) ToggleSymbol(ctx context.Context, userID uuid.UUID, symbol string) (bool, error) {
	watched, err := s.IsWatched(ctx, userID, symbol)
	if err != nil {
		return false, err
	}

	if watched {
		err = s.RemoveSymbol(ctx, userID, symbol)
		return false, err
	}

	err = s.AddSymbol(ctx, userID, symbol)
	return true, err
}

// GetWatchlist returns the user's tracked symbols with live quote data
func (s *WatchlistService) GetWatchlist(ctx context.Context, userID uuid.UUID) ([]models.WatchlistItem, error) {
	var entries []models.WatchlistSymbol

	result := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&entries)

	if result.Error != nil {
		return nil, result.Error
	}

	symbols := make([]string, 0, len(entries))
	for _, e := range entries {
		symbols = append(symbols, e.Symbol)
	}

	items := make([]models.WatchlistItem, 0, len(entries))

	quotes, err := s.quotes.GetQuotes(ctx, symbols)
	if err != nil {
		// Watchlist still renders without prices
		logger.Error("WatchlistService: quote enrichment failed: %v", err)
		quotes = nil
	}

	for _, e := range entries {
		item := models.WatchlistItem{WatchlistSymbol: e, Name: e.Symbol}
		if quote, ok := quotes[e.Symbol]; ok && quote != nil {
			item.Name = quote.Name
			item.Price = quote.Price
			item.Change = quote.Change
			item.ChangePercent = quote.ChangePercent
		}
		items = append(items, item)
	}

	return items, nil
}
