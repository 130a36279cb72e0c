/**
 * @description
 * Schema migration helper.
 * AutoMigrates the GORM models and creates the partial unique index that
 * guards against duplicate active alerts at the database layer.
 *
 * @dependencies
 * - gorm.io/gorm
 * - backend/internal/models
 */

package db

import (
	"github.com/stockpulse/backend/internal/logger"
	"github.com/stockpulse/backend/internal/models"
	"gorm.io/gorm"
)

// Migrate applies the schema and required indexes
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Alert{},
		&models.AlertHistoryEntry{},
		&models.WatchlistSymbol{},
	)
	if err != nil {
		return err
	}

	// At most one active alert per (user, symbol, condition). The service
	// pre-checks this at creation time; the partial index closes the race
	// window the pre-check leaves open.
	err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_alerts_active_unique
		ON alerts (user_id, symbol, condition)
		WHERE status = 'active'`).Error
	if err != nil {
		return err
	}

	logger.Info("✅ Database schema up to date")
	return nil
}
