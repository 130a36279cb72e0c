/**
 * @description
 * Watchlist database model.
 * Maps to the 'watchlist_symbols' table in PostgreSQL.
 *
 * @dependencies
 * - gorm.io/gorm
 * - github.com/google/uuid
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WatchlistSymbol represents a ticker symbol a user is tracking
type WatchlistSymbol struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index:idx_watchlist_user_symbol,unique" json:"user_id"`
	Symbol string    `gorm:"type:varchar(20);not null;index:idx_watchlist_user_symbol,unique" json:"symbol"`

	CreatedAt time.Time `json:"created_at"`
}

// TableName overrides the table name used by WatchlistSymbol to `watchlist_symbols`
func (WatchlistSymbol) TableName() string {
	return "watchlist_symbols"
}

func (w *WatchlistSymbol) BeforeCreate(tx *gorm.DB) (err error) {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return
}

// WatchlistItem is a watchlist row enriched with live quote data
type WatchlistItem struct {
	WatchlistSymbol
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
}
