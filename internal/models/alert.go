/**
 * @description
 * Price alert database models.
 * Maps to the 'alerts' and 'alert_history' tables in PostgreSQL.
 *
 * An alert is a standing instruction to notify the owner when a symbol's
 * price crosses a threshold. It transitions exactly once from active to
 * triggered (or is cancelled by the user); history entries are append-only.
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

// AlertCondition is the direction the price must cross the target
type AlertCondition string

const (
	ConditionAbove AlertCondition = "above"
	ConditionBelow AlertCondition = "below"
)

// AlertStatus is the lifecycle state of an alert
type AlertStatus string

const (
	StatusActive    AlertStatus = "active"
	StatusTriggered AlertStatus = "triggered"
	StatusCancelled AlertStatus = "cancelled"
)

// AlertHistoryAction is the event kind an audit entry documents
type AlertHistoryAction string

const (
	HistoryActionCreated   AlertHistoryAction = "created"
	HistoryActionTriggered AlertHistoryAction = "triggered"
)

// Alert represents a user's standing price alert.
// At most one active alert may exist per (user_id, symbol, condition);
// the partial unique index backs up the creation-time pre-check.
type Alert struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Symbol      string         `gorm:"type:varchar(20);not null;index" json:"symbol"`
	TargetPrice float64        `gorm:"type:decimal(18,4);not null" json:"target_price"`
	Condition   AlertCondition `gorm:"type:varchar(10);not null" json:"condition"`
	Status      AlertStatus    `gorm:"type:varchar(12);not null;default:'active';index" json:"status"`
	IsActive    bool           `gorm:"default:true;index" json:"is_active"`
	UserEmail   string         `gorm:"not null" json:"user_email"`

	TriggeredAt *time.Time `gorm:"column:triggered_at" json:"triggered_at"`
	LastChecked *time.Time `gorm:"column:last_checked" json:"last_checked"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName overrides the table name used by Alert to `alerts`
func (Alert) TableName() string {
	return "alerts"
}

func (a *Alert) BeforeCreate(tx *gorm.DB) (err error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return
}

// AlertHistoryEntry is an immutable audit record for one alert event.
// One entry is written at creation and one at trigger time; the trigger
// message records whether the notification email was delivered.
type AlertHistoryEntry struct {
	ID      uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	AlertID uuid.UUID          `gorm:"type:uuid;not null;index" json:"alert_id"`
	Action  AlertHistoryAction `gorm:"type:varchar(12);not null" json:"action"`
	Price   *float64           `gorm:"type:decimal(18,4)" json:"price"`
	Message string             `gorm:"type:text" json:"message"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName overrides the table name used by AlertHistoryEntry to `alert_history`
func (AlertHistoryEntry) TableName() string {
	return "alert_history"
}

func (e *AlertHistoryEntry) BeforeCreate(tx *gorm.DB) (err error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return
}

// AlertStats summarizes alert counts per lifecycle state
type AlertStats struct {
	Total     int64 `json:"total"`
	Active    int64 `json:"active"`
	Triggered int64 `json:"triggered"`
	Cancelled int64 `json:"cancelled"`
}
