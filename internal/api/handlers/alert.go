/**
 * @description
 * Price Alert API Handlers.
 * Exposes alert CRUD, history, stats, manual checks, the live trigger
 * stream (SSE over Redis pub/sub), and the scheduler control surface.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2
 * - backend/internal/services
 * - backend/internal/api/middleware
 */

package handlers

import (
	"bufio"
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stockpulse/backend/internal/api/middleware"
	"github.com/stockpulse/backend/internal/logger"
	"github.com/stockpulse/backend/internal/models"
	"github.com/stockpulse/backend/internal/services"
	"gorm.io/gorm"
)

// AlertHandler handles price-alert requests
type AlertHandler struct {
	db           *gorm.DB
	alertService *services.AlertService
	scheduler    *services.AlertScheduler
}

// NewAlertHandler creates a new AlertHandler
func NewAlertHandler(db *gorm.DB, alertService *services.AlertService, scheduler *services.AlertScheduler) *AlertHandler {
	return &AlertHandler{
		db:           db,
		alertService: alertService,
		scheduler:    scheduler,
	}
}

// currentUser resolves the authenticated user's database row
func (h *AlertHandler) currentUser(c *fiber.Ctx) (*models.User, error) {
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

// CreateAlertRequest represents an alert creation body
type CreateAlertRequest struct {
	Symbol      string  `json:"symbol"`
	TargetPrice float64 `json:"target_price"`
	Condition   string  `json:"condition"`
}

// CreateAlert creates a new price alert
// POST /api/v1/alerts
func (h *AlertHandler) CreateAlert(c *fiber.Ctx) error {
	user, err := h.currentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	var req CreateAlertRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	alert, err := h.alertService.CreateAlert(c.Context(), services.CreateAlertInput{
		UserID:      user.ID,
		Symbol:      req.Symbol,
		TargetPrice: req.TargetPrice,
		Condition:   req.Condition,
		UserEmail:   user.Email,
	})
	if err != nil {
		var validationErr services.ValidationError
		if errors.As(err, &validationErr) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": validationErr.Error()})
		}
		if errors.Is(err, services.ErrDuplicateAlert) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		}
		logger.Error("AlertHandler: failed to create alert: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create alert"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"alert": alert})
}

// GetAlerts lists the user's alerts
// GET /api/v1/alerts
func (h *AlertHandler) GetAlerts(c *fiber.Ctx) error {
	user, err := h.currentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	alerts, err := h.alertService.GetAlerts(c.Context(), user.ID)
	if err != nil {
		logger.Error("AlertHandler: failed to list alerts: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch alerts"})
	}

	return c.JSON(fiber.Map{"alerts": alerts})
}

// GetAlertStats summarizes the user's alert counts
// GET /api/v1/alerts/stats
func (h *AlertHandler) GetAlertStats(c *fiber.Ctx) error {
	user, err := h.currentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	stats, err := h.alertService.GetAlertStats(c.Context(), &user.ID)
	if err != nil {
		logger.Error("AlertHandler: failed to get stats: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch stats"})
	}

	return c.JSON(fiber.Map{"stats": stats})
}

// GetAlertHistory returns the audit trail for one alert
// GET /api/v1/alerts/:id/history
func (h *AlertHandler) GetAlertHistory(c *fiber.Ctx) error {
	user, err := h.currentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	alertID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid alert ID"})
	}

	entries, err := h.alertService.GetAlertHistory(c.Context(), user.ID, alertID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Alert not found"})
		}
		logger.Error("AlertHandler: failed to get history: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch history"})
	}

	return c.JSON(fiber.Map{"history": entries})
}

// CancelAlert cancels one of the user's active alerts
// POST /api/v1/alerts/:id/cancel
func (h *AlertHandler) CancelAlert(c *fiber.Ctx) error {
	user, err := h.currentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	alertID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid alert ID"})
	}

	if err := h.alertService.CancelAlert(c.Context(), user.ID, alertID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "No active alert with that ID"})
		}
		logger.Error("AlertHandler: failed to cancel alert: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to cancel alert"})
	}

	return c.JSON(fiber.Map{"success": true})
}

// DeleteAlert removes one of the user's alerts
// DELETE /api/v1/alerts/:id
func (h *AlertHandler) DeleteAlert(c *fiber.Ctx) error {
	user, err := h.currentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	alertID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid alert ID"})
	}

	if err := h.alertService.DeleteAlert(c.Context(), user.ID, alertID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Alert not found"})
		}
		logger.Error("AlertHandler: failed to delete alert: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete alert"})
	}

	return c.JSON(fiber.Map{"success": true})
}

// CheckNow runs one evaluation pass scoped to the user's alerts
// POST /api/v1/alerts/check
func (h *AlertHandler) CheckNow(c *fiber.Ctx) error {
	user, err := h.currentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	if err := h.alertService.CheckAllAlerts(c.Context(), &user.ID); err != nil {
		logger.Error("AlertHandler: manual check failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Alert check failed"})
	}

	return c.JSON(fiber.Map{"success": true})
}

// ManualTrigger forces evaluation of a single alert against a fresh quote
// POST /api/v1/alerts/:id/trigger
func (h *AlertHandler) ManualTrigger(c *fiber.Ctx) error {
	user, err := h.currentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	alertID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid alert ID"})
	}

	// Ownership check before the unscoped trigger path
	var alert models.Alert
	if err := h.db.Where("id = ? AND user_id = ?", alertID, user.ID).First(&alert).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Alert not found"})
	}

	fired, err := h.alertService.ManualTrigger(c.Context(), alertID)
	if err != nil {
		logger.Error("AlertHandler: manual trigger failed: %v", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Trigger evaluation failed"})
	}

	return c.JSON(fiber.Map{"triggered": fired})
}

// SchedulerStatus reports the background scheduler state
// GET /api/v1/alerts/scheduler
func (h *AlertHandler) SchedulerStatus(c *fiber.Ctx) error {
	status := fiber.Map{
		"active":           h.scheduler.IsActive(),
		"interval_seconds": h.scheduler.IntervalSeconds(),
	}
	if next := h.scheduler.NextCheckTime(); !next.IsZero() {
		status["next_check"] = next
	}
	return c.JSON(status)
}

// StartScheduler arms the background scheduler
// POST /api/v1/alerts/scheduler/start
func (h *AlertHandler) StartScheduler(c *fiber.Ctx) error {
	h.scheduler.Start()
	return c.JSON(fiber.Map{"active": true})
}

// StopScheduler disarms the background scheduler
// POST /api/v1/alerts/scheduler/stop
func (h *AlertHandler) StopScheduler(c *fiber.Ctx) error {
	h.scheduler.Stop()
	return c.JSON(fiber.Map{"active": false})
}

// StreamTriggers streams triggered-alert events over SSE
// GET /api/v1/alerts/stream
func (h *AlertHandler) StreamTriggers(c *fiber.Ctx) error {
	if h.alertService.Redis == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Event stream not available"})
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	requestCtx := c.Context()

	ctx, cancel := context.WithCancel(context.Background())

	pubsub := h.alertService.Redis.Subscribe(ctx, services.AlertTriggerChannel)
	ch := pubsub.Channel()

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer func() {
			cancel()
			_ = pubsub.Close()
		}()

		requestDone := requestCtx.Done()

		for {
			select {
			case <-requestDone:
				return
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				fmt.Fprintf(w, "data: %s\n\n", msg.Payload)
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	})

	return nil
}
