package services

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pricewatch_backend/models"
)

// AlertPolicy controls when a breached threshold produces an alert.
// Level-triggered emits a fresh alert on every evaluation while the
// threshold stays breached; edge-triggered emits only on the transition
// into breach and again after the condition has cleared at least once.
type AlertPolicy string

const (
	AlertPolicyLevelTriggered AlertPolicy = "level"
	AlertPolicyEdgeTriggered  AlertPolicy = "edge"
)

// breachState remembers a position's last evaluation outcome, per
// threshold side, for the edge-triggered policy.
type breachState struct {
	upper bool
	lower bool
}

// PositionLedger owns positions and the alerts they produce. Evaluation
// (CheckPositionAlerts) is pure with respect to its price-map input;
// persistence is delegated to the injected store.
type PositionLedger struct {
	store  PositionStore
	policy AlertPolicy

	mu       sync.Mutex
	breached map[string]breachState // positionID -> last outcome
}

// NewPositionLedger creates a ledger with the level-triggered policy
func NewPositionLedger(store PositionStore) *PositionLedger {
	return NewPositionLedgerWithPolicy(store, AlertPolicyLevelTriggered)
}

// NewPositionLedgerWithPolicy creates a ledger with an explicit policy
func NewPositionLedgerWithPolicy(store PositionStore, policy AlertPolicy) *PositionLedger {
	return &PositionLedger{
		store:    store,
		policy:   policy,
		breached: make(map[string]breachState),
	}
}

// validateThresholds enforces the creation-time invariant: upper above the
// reference price, lower below it, upper above lower. Checked only here
// and on threshold updates, never during evaluation.
func validateThresholds(referencePrice decimal.Decimal, upper, lower *decimal.Decimal) error {
	if upper != nil && upper.LessThanOrEqual(referencePrice) {
		return models.NewValidationError("upperThreshold",
			fmt.Sprintf("must be greater than reference price %s", referencePrice))
	}
	if lower != nil && lower.GreaterThanOrEqual(referencePrice) {
		return models.NewValidationError("lowerThreshold",
			fmt.Sprintf("must be less than reference price %s", referencePrice))
	}
	if upper != nil && lower != nil && upper.LessThanOrEqual(*lower) {
		return models.NewValidationError("upperThreshold",
			"must be greater than lower threshold")
	}
	return nil
}

// CreatePosition validates thresholds and stores a new monitored position
func (l *PositionLedger) CreatePosition(userID string, ref models.ReferenceQuote, upper, lower *decimal.Decimal) (*models.Position, error) {
	if userID == "" {
		return nil, models.NewValidationError("userId", "is required")
	}
	ticker := normalizeTicker(ref.Ticker)
	if ticker == "" {
		return nil, models.NewValidationError("ticker", "is required")
	}
	if !ref.Price.IsPositive() {
		return nil, models.NewValidationError("price", "must be greater than zero")
	}
	if !ref.Quantity.IsPositive() {
		return nil, models.NewValidationError("quantity", "must be greater than zero")
	}
	if err := validateThresholds(ref.Price, upper, lower); err != nil {
		return nil, err
	}

	refDate := ref.Date
	if refDate.IsZero() {
		refDate = time.Now()
	}

	position := &models.Position{
		ID:             uuid.NewString(),
		UserID:         userID,
		Ticker:         ticker,
		ReferencePrice: ref.Price,
		ReferenceDate:  refDate,
		Quantity:       ref.Quantity,
		TotalValue:     ref.Price.Mul(ref.Quantity),
		UpperThreshold: upper,
		LowerThreshold: lower,
		IsMonitoring:   true,
		CreatedAt:      time.Now(),
	}

	if err := l.store.CreatePosition(position); err != nil {
		return nil, err
	}
	return position, nil
}

// UpdatePositionThresholds overwrites both thresholds of an existing
// position, re-running the creation-time invariant, and stamps LastChecked.
func (l *PositionLedger) UpdatePositionThresholds(positionID string, upper, lower *decimal.Decimal) (*models.Position, error) {
	position, err := l.store.GetPosition(positionID)
	if err != nil {
		return nil, err
	}

	if err := validateThresholds(position.ReferencePrice, upper, lower); err != nil {
		return nil, err
	}

	now := time.Now()
	position.UpperThreshold = upper
	position.LowerThreshold = lower
	position.LastChecked = &now

	if err := l.store.UpdatePosition(position); err != nil {
		return nil, err
	}
	return position, nil
}

// DeletePosition removes a position. Alerts it already produced are kept
// and stay retrievable through GetUserAlerts.
func (l *PositionLedger) DeletePosition(positionID string) error {
	if err := l.store.DeletePosition(positionID); err != nil {
		return err
	}
	l.mu.Lock()
	delete(l.breached, positionID)
	l.mu.Unlock()
	return nil
}

// MarkAlertAsRead flips the read flag. Marking an already-read alert is a
// no-op that still succeeds.
func (l *PositionLedger) MarkAlertAsRead(alertID string) (*models.Alert, error) {
	alert, err := l.store.GetAlert(alertID)
	if err != nil {
		return nil, err
	}
	if alert.IsRead {
		return alert, nil
	}

	alert.IsRead = true
	if err := l.store.UpdateAlert(alert); err != nil {
		return nil, err
	}
	return alert, nil
}

// MarkAlertNotified best-effort flags an alert as dispatched
func (l *PositionLedger) MarkAlertNotified(alertID string) {
	alert, err := l.store.GetAlert(alertID)
	if err != nil {
		log.Printf("Error loading alert %s to mark notified: %v", alertID, err)
		return
	}
	alert.NotificationSent = true
	if err := l.store.UpdateAlert(alert); err != nil {
		log.Printf("Error marking alert %s notified: %v", alertID, err)
	}
}

// GetUserPositions returns the user's positions; empty slice when none
func (l *PositionLedger) GetUserPositions(userID string) ([]*models.Position, error) {
	return l.store.ListPositionsByUser(userID)
}

// GetUserAlerts returns the user's alerts; empty slice when none
func (l *PositionLedger) GetUserAlerts(userID string) ([]*models.Alert, error) {
	return l.store.ListAlertsByUser(userID)
}

// UnreadAlertCount counts the user's unread alerts
func (l *PositionLedger) UnreadAlertCount(userID string) (int, error) {
	alerts, err := l.store.ListAlertsByUser(userID)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, a := range alerts {
		if !a.IsRead {
			count++
		}
	}
	return count, nil
}

// CheckPositionAlerts evaluates every monitoring position against the
// current price map and returns the newly created alerts.
//
// Both threshold tests run on every call. Because the invariant is not
// re-validated here, a position with corrupted thresholds can emit both
// alert types in one pass; that is accepted. Under the default
// level-triggered policy alerts fire on every call while the condition
// holds; the edge-triggered policy emits only on the transition into
// breach.
//
// Store writes are best-effort: a failed persist is logged and the alert
// is still returned for dispatch.
func (l *PositionLedger) CheckPositionAlerts(positions []*models.Position, currentPrices map[string]decimal.Decimal) []*models.Alert {
	now := time.Now()
	newAlerts := make([]*models.Alert, 0)

	for _, position := range positions {
		if !position.IsMonitoring {
			continue
		}
		currentPrice, ok := currentPrices[position.Ticker]
		if !ok {
			continue
		}

		upperHit := position.UpperThreshold != nil && currentPrice.GreaterThanOrEqual(*position.UpperThreshold)
		lowerHit := position.LowerThreshold != nil && currentPrice.LessThanOrEqual(*position.LowerThreshold)

		l.mu.Lock()
		prev := l.breached[position.ID]
		l.breached[position.ID] = breachState{upper: upperHit, lower: lowerHit}
		l.mu.Unlock()

		if upperHit && (l.policy == AlertPolicyLevelTriggered || !prev.upper) {
			newAlerts = append(newAlerts, l.emitAlert(position, models.AlertTypeUpperBreach, currentPrice, *position.UpperThreshold, now))
		}
		if lowerHit && (l.policy == AlertPolicyLevelTriggered || !prev.lower) {
			newAlerts = append(newAlerts, l.emitAlert(position, models.AlertTypeLowerBreach, currentPrice, *position.LowerThreshold, now))
		}

		position.LastChecked = &now
		if err := l.store.UpdatePosition(position); err != nil {
			log.Printf("Error stamping last_checked on position %s: %v", position.ID, err)
		}
	}

	return newAlerts
}

// emitAlert builds and best-effort persists one alert
func (l *PositionLedger) emitAlert(position *models.Position, alertType string, triggerPrice, threshold decimal.Decimal, at time.Time) *models.Alert {
	alert := &models.Alert{
		ID:             uuid.NewString(),
		PositionID:     position.ID,
		UserID:         position.UserID,
		Ticker:         position.Ticker,
		AlertType:      alertType,
		TriggerPrice:   triggerPrice,
		ReferencePrice: position.ReferencePrice,
		Threshold:      threshold,
		TriggeredAt:    at,
	}

	if err := l.store.CreateAlert(alert); err != nil {
		log.Printf("Error persisting alert for position %s: %v (dispatch continues)", position.ID, err)
	}
	return alert
}
