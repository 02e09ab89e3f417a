package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Health status constants reported by the quote provider
const (
	HealthStatusHealthy   = "healthy"
	HealthStatusDegraded  = "degraded"
	HealthStatusUnhealthy = "unhealthy"
)

// Quote represents one live quote from the upstream provider
type Quote struct {
	Ticker        string          `json:"ticker"`
	Price         decimal.Decimal `json:"price"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	Volume        int64           `json:"volume"`
	Timestamp     time.Time       `json:"timestamp"`
}

// QuotaStatus is a read-only snapshot of the upstream API quota
type QuotaStatus struct {
	Used           int       `json:"used"`
	Limit          int       `json:"limit"`
	Remaining      int       `json:"remaining"`
	ResetTime      time.Time `json:"reset_time"`
	IsLimitReached bool      `json:"is_limit_reached"`
	LastUpdated    time.Time `json:"last_updated"`
}

// HealthStatus is the result of one provider health probe
type HealthStatus struct {
	Status    string        `json:"status"` // healthy, degraded, unhealthy
	Latency   time.Duration `json:"latency"`
	Message   string        `json:"message,omitempty"`
	CheckedAt time.Time     `json:"checked_at"`
}
