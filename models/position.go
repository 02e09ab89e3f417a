package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Alert type constants
const (
	AlertTypeUpperBreach = "UPPER_BREACH"
	AlertTypeLowerBreach = "LOWER_BREACH"
)

// Position represents a user's monitored holding with a reference price
// and optional breach thresholds. Alerts reference positions through
// Alert.PositionID only; there is no owned association, so deleting a
// position never cascades into (or is blocked by) its alert history.
type Position struct {
	ID             string           `gorm:"primaryKey" json:"id"`
	UserID         string           `gorm:"index" json:"user_id"`
	Ticker         string           `gorm:"index" json:"ticker"`
	ReferencePrice decimal.Decimal  `gorm:"type:decimal(15,4)" json:"reference_price"`
	ReferenceDate  time.Time        `json:"reference_date"`
	Quantity       decimal.Decimal  `gorm:"type:decimal(20,4)" json:"quantity"`
	TotalValue     decimal.Decimal  `gorm:"type:decimal(20,4)" json:"total_value"`
	UpperThreshold *decimal.Decimal `gorm:"type:decimal(15,4)" json:"upper_threshold,omitempty"`
	LowerThreshold *decimal.Decimal `gorm:"type:decimal(15,4)" json:"lower_threshold,omitempty"`
	IsMonitoring   bool             `gorm:"default:true" json:"is_monitoring"`
	CreatedAt      time.Time        `json:"created_at"`
	LastChecked    *time.Time       `json:"last_checked,omitempty"`
}

// Alert is an immutable record of one threshold breach. Only IsRead and
// NotificationSent may change after creation.
type Alert struct {
	ID               string          `gorm:"primaryKey" json:"id"`
	PositionID       string          `gorm:"index" json:"position_id"`
	UserID           string          `gorm:"index" json:"user_id"`
	Ticker           string          `json:"ticker"`
	AlertType        string          `json:"alert_type"` // UPPER_BREACH, LOWER_BREACH
	TriggerPrice     decimal.Decimal `gorm:"type:decimal(15,4)" json:"trigger_price"`
	ReferencePrice   decimal.Decimal `gorm:"type:decimal(15,4)" json:"reference_price"`
	Threshold        decimal.Decimal `gorm:"type:decimal(15,4)" json:"threshold"`
	TriggeredAt      time.Time       `json:"triggered_at"`
	IsRead           bool            `gorm:"default:false" json:"is_read"`
	NotificationSent bool            `gorm:"default:false" json:"notification_sent"`
}

// ReferenceQuote carries the historical quote data used to open a position.
type ReferenceQuote struct {
	Ticker   string          `json:"ticker"`
	Price    decimal.Decimal `json:"price"`
	Date     time.Time       `json:"date"`
	Quantity decimal.Decimal `json:"quantity"`
}

// MigratePositionModels runs database migrations for position-related models
func MigratePositionModels(db *gorm.DB) error {
	return db.AutoMigrate(
		&Position{},
		&Alert{},
	)
}
