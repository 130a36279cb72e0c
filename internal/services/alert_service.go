/**
 * @description
 * Service layer for price alerts.
 * Owns alert creation, cancellation, the audit history, and the
 * evaluation pass that decides which active alerts fire.
 *
 * One pass: load active alerts, group them by symbol so each distinct
 * symbol costs one quote fetch, evaluate the trigger predicate against
 * the shared quote, and transition winners to the terminal triggered
 * state. The active->triggered write is a conditional update checked by
 * affected-row count, so overlapping passes or multiple instances cannot
 * both win the transition and double-send email.
 *
 * Every failure mode degrades to "try again next pass": a quote fetch
 * failure skips its symbol group, a persistence failure leaves the alert
 * active for re-evaluation, and a failed email still leaves the alert
 * triggered with the delivery outcome recorded in history.
 *
 * @dependencies
 * - gorm.io/gorm
 * - github.com/redis/go-redis/v9
 * - github.com/jackc/pgconn
 * - backend/internal/models
 * - backend/internal/marketdata
 * - backend/internal/mailer
 */

package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/stockpulse/backend/internal/logger"
	"github.com/stockpulse/backend/internal/mailer"
	"github.com/stockpulse/backend/internal/marketdata"
	"github.com/stockpulse/backend/internal/models"
	"gorm.io/gorm"
)

const (
	// AlertTriggerChannel carries triggered-alert events for the SSE stream
	AlertTriggerChannel = "alerts:triggered"
)

// ErrDuplicateAlert is returned when the user already has an active alert
// for the same symbol and condition.
var ErrDuplicateAlert = errors.New("an active alert for this symbol and condition already exists")

// ValidationError describes a rejected alert creation input
type ValidationError string

func (e ValidationError) Error() string { return string(e) }

// QuoteProvider is the price feed contract the evaluation pass consumes
type QuoteProvider interface {
	GetQuote(ctx context.Context, symbol string) (*marketdata.Quote, error)
	RefreshQuote(ctx context.Context, symbol string) (*marketdata.Quote, error)
}

// AlertMailer is the notification dispatcher contract
type AlertMailer interface {
	SendPriceAlertEmail(email mailer.PriceAlertEmail) bool
}

// AlertService handles alert lifecycle and evaluation
type AlertService struct {
	DB     *gorm.DB
	Redis  *redis.Client // optional; nil disables the trigger event stream
	Quotes QuoteProvider
	Mailer AlertMailer
}

// NewAlertService creates a new AlertService
func NewAlertService(db *gorm.DB, rdb *redis.Client, quotes QuoteProvider, m AlertMailer) *AlertService {
	return &AlertService{
		DB:     db,
		Redis:  rdb,
		Quotes: quotes,
		Mailer: m,
	}
}

// CreateAlertInput is the payload for creating an alert
type CreateAlertInput struct {
	UserID      uuid.UUID
	Symbol      string
	TargetPrice float64
	Condition   string
	UserEmail   string
}

// CreateAlert validates the input, rejects duplicate active alerts, and
// persists the alert together with its "created" history entry.
func (s *AlertService) CreateAlert(ctx context.Context, input CreateAlertInput) (*models.Alert, error) {
	symbol := strings.ToUpper(strings.TrimSpace(input.Symbol))
	if symbol == "" {
		return nil, ValidationError("symbol is required")
	}
	if input.TargetPrice <= 0 {
		return nil, ValidationError("target price must be greater than zero")
	}

	condition := models.AlertCondition(strings.ToLower(strings.TrimSpace(input.Condition)))
	if condition != models.ConditionAbove && condition != models.ConditionBelow {
		return nil, ValidationError("condition must be 'above' or 'below'")
	}

	email := strings.TrimSpace(input.UserEmail)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ValidationError("a valid notification email is required")
	}

	// Pre-check for an existing active alert. The partial unique index on
	// (user_id, symbol, condition) WHERE status='active' closes the race
	// this check alone would leave open.
	var existing int64
	err := s.DB.WithContext(ctx).Model(&models.Alert{}).
		Where("user_id = ? AND symbol = ? AND condition = ? AND status = ?",
			input.UserID, symbol, condition, models.StatusActive).
		Count(&existing).Error
	if err != nil {
		return nil, fmt.Errorf("failed to check existing alerts: %w", err)
	}
	if existing > 0 {
		return nil, ErrDuplicateAlert
	}

	alert := &models.Alert{
		UserID:      input.UserID,
		Symbol:      symbol,
		TargetPrice: input.TargetPrice,
		Condition:   condition,
		Status:      models.StatusActive,
		IsActive:    true,
		UserEmail:   email,
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(alert).Error; err != nil {
			return err
		}

		entry := &models.AlertHistoryEntry{
			AlertID: alert.ID,
			Action:  models.HistoryActionCreated,
			Message: fmt.Sprintf("Alert created: notify when %s is %s $%.2f", symbol, condition, input.TargetPrice),
		}
		return tx.Create(entry).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateAlert
		}
		logger.Error("AlertService: failed to create alert for %s: %v", symbol, err)
		return nil, fmt.Errorf("failed to create alert: %w", err)
	}

	logger.Info("AlertService: alert %s created (%s %s $%.2f)", alert.ID, symbol, condition, input.TargetPrice)
	return alert, nil
}

// GetAlerts returns a user's alerts, newest first
func (s *AlertService) GetAlerts(ctx context.Context, userID uuid.UUID) ([]models.Alert, error) {
	var alerts []models.Alert
	err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&alerts).Error
	if err != nil {
		return nil, err
	}
	return alerts, nil
}

// GetAlertHistory returns the audit trail for one of the user's alerts
func (s *AlertService) GetAlertHistory(ctx context.Context, userID, alertID uuid.UUID) ([]models.AlertHistoryEntry, error) {
	var alert models.Alert
	if err := s.DB.WithContext(ctx).
		Where("id = ? AND user_id = ?", alertID, userID).
		First(&alert).Error; err != nil {
		return nil, err
	}

	var entries []models.AlertHistoryEntry
	err := s.DB.WithContext(ctx).
		Where("alert_id = ?", alertID).
		Order("created_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// GetAlertStats summarizes alert counts, optionally scoped to one user
func (s *AlertService) GetAlertStats(ctx context.Context, userID *uuid.UUID) (*models.AlertStats, error) {
	query := s.DB.WithContext(ctx).Model(&models.Alert{})
	if userID != nil {
		query = query.Where("user_id = ?", *userID)
	}

	var rows []struct {
		Status models.AlertStatus
		Count  int64
	}
	if err := query.Select("status, count(*) as count").Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}

	stats := &models.AlertStats{}
	for _, row := range rows {
		stats.Total += row.Count
		switch row.Status {
		case models.StatusActive:
			stats.Active = row.Count
		case models.StatusTriggered:
			stats.Triggered = row.Count
		case models.StatusCancelled:
			stats.Cancelled = row.Count
		}
	}
	return stats, nil
}

// CancelAlert moves one of the user's active alerts to the terminal
// cancelled state.
func (s *AlertService) CancelAlert(ctx context.Context, userID, alertID uuid.UUID) error {
	result := s.DB.WithContext(ctx).Model(&models.Alert{}).
		Where("id = ? AND user_id = ? AND status = ?", alertID, userID, models.StatusActive).
		Updates(map[string]interface{}{
			"status":     models.StatusCancelled,
			"is_active":  false,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteAlert removes one of the user's alerts and its history
func (s *AlertService) DeleteAlert(ctx context.Context, userID, alertID uuid.UUID) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND user_id = ?", alertID, userID).Delete(&models.Alert{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Where("alert_id = ?", alertID).Delete(&models.AlertHistoryEntry{}).Error
	})
}

// CheckAllAlerts runs one evaluation pass over all active alerts,
// optionally scoped to one user (manual "check now" actions).
func (s *AlertService) CheckAllAlerts(ctx context.Context, userID *uuid.UUID) error {
	query := s.DB.WithContext(ctx).
		Where("status = ? AND is_active = ?", models.StatusActive, true)
	if userID != nil {
		query = query.Where("user_id = ?", *userID)
	}

	var alerts []models.Alert
	if err := query.Find(&alerts).Error; err != nil {
		return fmt.Errorf("failed to load active alerts: %w", err)
	}

	if len(alerts) == 0 {
		return nil
	}

	// One quote fetch per distinct symbol, shared by every alert on it
	groups := make(map[string][]models.Alert)
	for _, alert := range alerts {
		groups[alert.Symbol] = append(groups[alert.Symbol], alert)
	}

	logger.Info("AlertService: evaluating %d alerts across %d symbols", len(alerts), len(groups))

	for symbol, group := range groups {
		quote, err := s.Quotes.GetQuote(ctx, symbol)
		if err != nil {
			logger.Error("AlertService: quote fetch failed for %s, skipping %d alerts: %v", symbol, len(group), err)
			continue
		}
		if quote == nil || quote.Price <= 0 {
			logger.Error("AlertService: no usable quote for %s, skipping %d alerts", symbol, len(group))
			continue
		}

		s.evaluateGroup(ctx, group, quote)
	}

	return nil
}

// evaluateGroup applies the trigger predicate to every alert in one
// symbol group against the group's shared quote.
func (s *AlertService) evaluateGroup(ctx context.Context, group []models.Alert, quote *marketdata.Quote) {
	now := time.Now()

	for _, alert := range group {
		if shouldTrigger(alert.Condition, alert.TargetPrice, quote.Price) {
			if err := s.triggerAlert(ctx, alert, quote); err != nil {
				// Alert stays active and is retried next pass
				logger.Error("AlertService: failed to trigger alert %s: %v", alert.ID, err)
			}
			continue
		}

		// Bookkeeping only; not used in trigger logic
		err := s.DB.WithContext(ctx).Model(&models.Alert{}).
			Where("id = ?", alert.ID).
			Updates(map[string]interface{}{
				"last_checked": now,
				"updated_at":   now,
			}).Error
		if err != nil {
			logger.Error("AlertService: failed to update last_checked for alert %s: %v", alert.ID, err)
		}
	}
}

// shouldTrigger is the trigger predicate. Both boundaries are inclusive:
// an alert set exactly at the current price fires on the next pass.
func shouldTrigger(condition models.AlertCondition, targetPrice, currentPrice float64) bool {
	switch condition {
	case models.ConditionAbove:
		return currentPrice >= targetPrice
	case models.ConditionBelow:
		return currentPrice <= targetPrice
	default:
		return false
	}
}

// triggerAlert performs the one-time active->triggered transition and its
// side effects: notification email, history entry, trigger event publish.
func (s *AlertService) triggerAlert(ctx context.Context, alert models.Alert, quote *marketdata.Quote) error {
	now := time.Now()

	// Conditional update: only the pass that flips status off 'active'
	// owns the side effects. Zero rows affected means another pass or
	// instance already won.
	result := s.DB.WithContext(ctx).Model(&models.Alert{}).
		Where("id = ? AND status = ?", alert.ID, models.StatusActive).
		Updates(map[string]interface{}{
			"status":       models.StatusTriggered,
			"is_active":    false,
			"triggered_at": now,
			"last_checked": now,
			"updated_at":   now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to persist trigger: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		logger.Info("AlertService: alert %s already transitioned, skipping side effects", alert.ID)
		return nil
	}

	assetName := quote.Name
	if assetName == "" {
		assetName = alert.Symbol
	}

	sent := s.Mailer.SendPriceAlertEmail(mailer.PriceAlertEmail{
		Symbol:       alert.Symbol,
		AssetName:    assetName,
		CurrentPrice: quote.Price,
		TargetPrice:  alert.TargetPrice,
		Condition:    string(alert.Condition),
		UserEmail:    alert.UserEmail,
	})

	outcome := "Email sent to " + alert.UserEmail
	if !sent {
		outcome = "Email could not be sent to " + alert.UserEmail
	}

	price := quote.Price
	entry := &models.AlertHistoryEntry{
		AlertID: alert.ID,
		Action:  models.HistoryActionTriggered,
		Price:   &price,
		Message: fmt.Sprintf("Alert triggered: %s reached $%.2f (target %s $%.2f). %s.",
			alert.Symbol, quote.Price, alert.Condition, alert.TargetPrice, outcome),
	}
	if err := s.DB.WithContext(ctx).Create(entry).Error; err != nil {
		// The transition already committed; history loss is logged, not fatal
		logger.Error("AlertService: failed to append history for alert %s: %v", alert.ID, err)
	}

	s.publishTriggerEvent(ctx, alert, quote, sent)

	logger.Info("AlertService: alert %s triggered (%s %s $%.2f at $%.2f, email sent=%t)",
		alert.ID, alert.Symbol, alert.Condition, alert.TargetPrice, quote.Price, sent)
	return nil
}

// ManualTrigger forces evaluation of a single alert against a fresh quote
// fetch, bypassing the scheduled pass. Returns whether the alert fired.
func (s *AlertService) ManualTrigger(ctx context.Context, alertID uuid.UUID) (bool, error) {
	var alert models.Alert
	if err := s.DB.WithContext(ctx).Where("id = ?", alertID).First(&alert).Error; err != nil {
		return false, err
	}

	if alert.Status != models.StatusActive || !alert.IsActive {
		return false, nil
	}

	quote, err := s.Quotes.RefreshQuote(ctx, alert.Symbol)
	if err != nil {
		return false, fmt.Errorf("quote fetch failed for %s: %w", alert.Symbol, err)
	}
	if quote == nil || quote.Price <= 0 {
		return false, fmt.Errorf("no usable quote for %s", alert.Symbol)
	}

	if !shouldTrigger(alert.Condition, alert.TargetPrice, quote.Price) {
		now := time.Now()
		err := s.DB.WithContext(ctx).Model(&models.Alert{}).
			Where("id = ?", alert.ID).
			Updates(map[string]interface{}{
				"last_checked": now,
				"updated_at":   now,
			}).Error
		if err != nil {
			logger.Error("AlertService: failed to update last_checked for alert %s: %v", alert.ID, err)
		}
		return false, nil
	}

	if err := s.triggerAlert(ctx, alert, quote); err != nil {
		return false, err
	}
	return true, nil
}

// TriggerEvent is the payload published on AlertTriggerChannel
type TriggerEvent struct {
	AlertID     uuid.UUID `json:"alert_id"`
	UserID      uuid.UUID `json:"user_id"`
	Symbol      string    `json:"symbol"`
	AssetName   string    `json:"asset_name"`
	Condition   string    `json:"condition"`
	TargetPrice float64   `json:"target_price"`
	Price       float64   `json:"price"`
	EmailSent   bool      `json:"email_sent"`
	TriggeredAt time.Time `json:"triggered_at"`
}

func (s *AlertService) publishTriggerEvent(ctx context.Context, alert models.Alert, quote *marketdata.Quote, emailSent bool) {
	if s.Redis == nil {
		return
	}

	event := TriggerEvent{
		AlertID:     alert.ID,
		UserID:      alert.UserID,
		Symbol:      alert.Symbol,
		AssetName:   quote.Name,
		Condition:   string(alert.Condition),
		TargetPrice: alert.TargetPrice,
		Price:       quote.Price,
		EmailSent:   emailSent,
		TriggeredAt: time.Now(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		logger.Error("AlertService: failed to marshal trigger event: %v", err)
		return
	}

	if err := s.Redis.Publish(ctx, AlertTriggerChannel, payload).Err(); err != nil {
		logger.Error("AlertService: failed to publish trigger event: %v", err)
	}
}

// isUniqueViolation reports whether err is a Postgres unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	// Fallback for drivers that don't surface a typed error
	return strings.Contains(err.Error(), "duplicate key") ||
		strings.Contains(err.Error(), "UNIQUE constraint failed")
}
