package services

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricewatch_backend/models"
)

func dec(v string) decimal.Decimal {
	d, err := decimal.NewFromString(v)
	if err != nil {
		panic(err)
	}
	return d
}

func decPtr(v string) *decimal.Decimal {
	d := dec(v)
	return &d
}

func refQuote(ticker, price, quantity string) models.ReferenceQuote {
	return models.ReferenceQuote{
		Ticker:   ticker,
		Price:    dec(price),
		Quantity: dec(quantity),
		Date:     time.Now(),
	}
}

func newTestLedger() (*PositionLedger, *InMemoryPositionStore) {
	store := NewInMemoryPositionStore()
	return NewPositionLedger(store), store
}

func TestCreatePosition_Valid(t *testing.T) {
	ledger, _ := newTestLedger()

	position, err := ledger.CreatePosition("u1", refQuote("aapl", "150", "10"), decPtr("160"), decPtr("140"))
	require.NoError(t, err)

	assert.NotEmpty(t, position.ID)
	assert.Equal(t, "u1", position.UserID)
	assert.Equal(t, "AAPL", position.Ticker)
	assert.True(t, position.IsMonitoring)
	assert.True(t, position.TotalValue.Equal(dec("1500")))
	assert.Nil(t, position.LastChecked)
}

func TestCreatePosition_ThresholdValidation(t *testing.T) {
	ledger, _ := newTestLedger()
	var validationErr *models.ValidationError

	// Upper at or below reference price
	_, err := ledger.CreatePosition("u1", refQuote("AAPL", "150", "10"), decPtr("150"), nil)
	require.Error(t, err)
	assert.True(t, errors.As(err, &validationErr))

	// Lower at or above reference price
	_, err = ledger.CreatePosition("u1", refQuote("AAPL", "150", "10"), nil, decPtr("150"))
	require.Error(t, err)
	assert.True(t, errors.As(err, &validationErr))

	// Upper not above lower
	_, err = ledger.CreatePosition("u1", refQuote("AAPL", "150", "10"), decPtr("160"), decPtr("160"))
	require.Error(t, err)
	assert.True(t, errors.As(err, &validationErr))

	// Non-positive price and quantity
	_, err = ledger.CreatePosition("u1", models.ReferenceQuote{Ticker: "AAPL", Price: dec("0"), Quantity: dec("1")}, nil, nil)
	assert.True(t, errors.As(err, &validationErr))
	_, err = ledger.CreatePosition("u1", models.ReferenceQuote{Ticker: "AAPL", Price: dec("1"), Quantity: dec("0")}, nil, nil)
	assert.True(t, errors.As(err, &validationErr))

	// Missing user
	_, err = ledger.CreatePosition("", refQuote("AAPL", "150", "10"), nil, nil)
	assert.True(t, errors.As(err, &validationErr))
}

func TestUpdatePositionThresholds(t *testing.T) {
	ledger, _ := newTestLedger()

	position, err := ledger.CreatePosition("u1", refQuote("AAPL", "150", "10"), decPtr("160"), nil)
	require.NoError(t, err)

	updated, err := ledger.UpdatePositionThresholds(position.ID, decPtr("170"), decPtr("130"))
	require.NoError(t, err)
	assert.True(t, updated.UpperThreshold.Equal(dec("170")))
	assert.True(t, updated.LowerThreshold.Equal(dec("130")))
	assert.NotNil(t, updated.LastChecked)

	// The invariant check mirrors creation
	var validationErr *models.ValidationError
	_, err = ledger.UpdatePositionThresholds(position.ID, decPtr("100"), nil)
	assert.True(t, errors.As(err, &validationErr))

	// Unknown position
	var notFoundErr *models.NotFoundError
	_, err = ledger.UpdatePositionThresholds("missing", decPtr("170"), nil)
	assert.True(t, errors.As(err, &notFoundErr))
}

func TestCheckPositionAlerts_UpperBreach(t *testing.T) {
	ledger, _ := newTestLedger()

	position, err := ledger.CreatePosition("u1", refQuote("AAPL", "150", "10"), decPtr("160"), nil)
	require.NoError(t, err)

	prices := map[string]decimal.Decimal{"AAPL": dec("161")}
	alerts := ledger.CheckPositionAlerts([]*models.Position{position}, prices)

	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertTypeUpperBreach, alerts[0].AlertType)
	assert.True(t, alerts[0].TriggerPrice.Equal(dec("161")))
	assert.True(t, alerts[0].Threshold.Equal(dec("160")))
	assert.True(t, alerts[0].ReferencePrice.Equal(dec("150")))
	assert.Equal(t, position.ID, alerts[0].PositionID)
	assert.NotNil(t, position.LastChecked)
}

func TestCheckPositionAlerts_LowerBreach(t *testing.T) {
	ledger, _ := newTestLedger()

	position, err := ledger.CreatePosition("u1", refQuote("AAPL", "150", "10"), nil, decPtr("140"))
	require.NoError(t, err)

	alerts := ledger.CheckPositionAlerts([]*models.Position{position},
		map[string]decimal.Decimal{"AAPL": dec("139.5")})

	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertTypeLowerBreach, alerts[0].AlertType)
}

func TestCheckPositionAlerts_NoSuppressionAcrossCalls(t *testing.T) {
	ledger, _ := newTestLedger()

	position, err := ledger.CreatePosition("u1", refQuote("AAPL", "150", "10"), decPtr("160"), nil)
	require.NoError(t, err)

	prices := map[string]decimal.Decimal{"AAPL": dec("165")}

	first := ledger.CheckPositionAlerts([]*models.Position{position}, prices)
	second := ledger.CheckPositionAlerts([]*models.Position{position}, prices)
	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.NotEqual(t, first[0].ID, second[0].ID)

	stored, err := ledger.GetUserAlerts("u1")
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestCheckPositionAlerts_SkipsUnmonitoredAndUnpriced(t *testing.T) {
	ledger, _ := newTestLedger()

	paused, err := ledger.CreatePosition("u1", refQuote("AAPL", "150", "10"), decPtr("160"), nil)
	require.NoError(t, err)
	paused.IsMonitoring = false

	unpriced, err := ledger.CreatePosition("u1", refQuote("MSFT", "300", "5"), decPtr("310"), nil)
	require.NoError(t, err)

	alerts := ledger.CheckPositionAlerts([]*models.Position{paused, unpriced},
		map[string]decimal.Decimal{"AAPL": dec("200")})

	assert.Empty(t, alerts)
	assert.Nil(t, paused.LastChecked)
	// Positions with no current price are skipped entirely
	assert.Nil(t, unpriced.LastChecked)
}

func TestCheckPositionAlerts_BothThresholdsInOnePass(t *testing.T) {
	ledger, _ := newTestLedger()

	position, err := ledger.CreatePosition("u1", refQuote("AAPL", "150", "10"), decPtr("160"), decPtr("140"))
	require.NoError(t, err)

	// Thresholds are not re-validated at check time: corrupt them so a
	// single price satisfies both tests.
	position.UpperThreshold = decPtr("100")
	position.LowerThreshold = decPtr("200")

	alerts := ledger.CheckPositionAlerts([]*models.Position{position},
		map[string]decimal.Decimal{"AAPL": dec("150")})

	require.Len(t, alerts, 2)
	types := []string{alerts[0].AlertType, alerts[1].AlertType}
	assert.Contains(t, types, models.AlertTypeUpperBreach)
	assert.Contains(t, types, models.AlertTypeLowerBreach)
}

func TestMarkAlertAsRead_Idempotent(t *testing.T) {
	ledger, _ := newTestLedger()

	position, err := ledger.CreatePosition("u1", refQuote("AAPL", "150", "10"), decPtr("160"), nil)
	require.NoError(t, err)
	alerts := ledger.CheckPositionAlerts([]*models.Position{position},
		map[string]decimal.Decimal{"AAPL": dec("165")})
	require.Len(t, alerts, 1)

	marked, err := ledger.MarkAlertAsRead(alerts[0].ID)
	require.NoError(t, err)
	assert.True(t, marked.IsRead)

	// Marking again succeeds with no change
	again, err := ledger.MarkAlertAsRead(alerts[0].ID)
	require.NoError(t, err)
	assert.True(t, again.IsRead)

	// No other field mutated
	assert.Equal(t, alerts[0].ID, again.ID)
	assert.Equal(t, alerts[0].AlertType, again.AlertType)
	assert.True(t, alerts[0].TriggerPrice.Equal(again.TriggerPrice))
	assert.True(t, alerts[0].Threshold.Equal(again.Threshold))

	var notFoundErr *models.NotFoundError
	_, err = ledger.MarkAlertAsRead("missing")
	assert.True(t, errors.As(err, &notFoundErr))
}

func TestDeletePosition_AlertsSurvive(t *testing.T) {
	ledger, _ := newTestLedger()

	position, err := ledger.CreatePosition("u1", refQuote("AAPL", "150", "10"), decPtr("160"), nil)
	require.NoError(t, err)
	alerts := ledger.CheckPositionAlerts([]*models.Position{position},
		map[string]decimal.Decimal{"AAPL": dec("165")})
	require.Len(t, alerts, 1)

	require.NoError(t, ledger.DeletePosition(position.ID))

	positions, err := ledger.GetUserPositions("u1")
	require.NoError(t, err)
	assert.Empty(t, positions)

	// The alert log outlives the position
	stored, err := ledger.GetUserAlerts("u1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, position.ID, stored[0].PositionID)

	var notFoundErr *models.NotFoundError
	err = ledger.DeletePosition(position.ID)
	assert.True(t, errors.As(err, &notFoundErr))
}

func TestGetUserQueries_EmptyForUnknownUser(t *testing.T) {
	ledger, _ := newTestLedger()

	positions, err := ledger.GetUserPositions("nobody")
	require.NoError(t, err)
	assert.NotNil(t, positions)
	assert.Empty(t, positions)

	alerts, err := ledger.GetUserAlerts("nobody")
	require.NoError(t, err)
	assert.NotNil(t, alerts)
	assert.Empty(t, alerts)

	unread, err := ledger.UnreadAlertCount("nobody")
	require.NoError(t, err)
	assert.Zero(t, unread)
}

// failingAlertStore wraps the in-memory store and fails every alert write
type failingAlertStore struct {
	*InMemoryPositionStore
}

func (s *failingAlertStore) CreateAlert(alert *models.Alert) error {
	return errors.New("disk full")
}

func TestCheckPositionAlerts_DispatchDespiteStoreFailure(t *testing.T) {
	store := &failingAlertStore{NewInMemoryPositionStore()}
	ledger := NewPositionLedger(store)

	position, err := ledger.CreatePosition("u1", refQuote("AAPL", "150", "10"), decPtr("160"), nil)
	require.NoError(t, err)

	// Persistence is best-effort: the alert is still returned for dispatch
	alerts := ledger.CheckPositionAlerts([]*models.Position{position},
		map[string]decimal.Decimal{"AAPL": dec("165")})
	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertTypeUpperBreach, alerts[0].AlertType)
}

func TestCheckPositionAlerts_EdgeTriggeredPolicy(t *testing.T) {
	ledger := NewPositionLedgerWithPolicy(NewInMemoryPositionStore(), AlertPolicyEdgeTriggered)

	position, err := ledger.CreatePosition("u1", refQuote("AAPL", "150", "10"), decPtr("160"), decPtr("140"))
	require.NoError(t, err)
	positions := []*models.Position{position}

	// First breaching cycle fires
	alerts := ledger.CheckPositionAlerts(positions, map[string]decimal.Decimal{"AAPL": dec("165")})
	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertTypeUpperBreach, alerts[0].AlertType)

	// Condition still holds: edge policy stays silent
	alerts = ledger.CheckPositionAlerts(positions, map[string]decimal.Decimal{"AAPL": dec("166")})
	assert.Empty(t, alerts)

	// Price falls back inside the band, then breaches again: fires again
	alerts = ledger.CheckPositionAlerts(positions, map[string]decimal.Decimal{"AAPL": dec("150")})
	assert.Empty(t, alerts)
	alerts = ledger.CheckPositionAlerts(positions, map[string]decimal.Decimal{"AAPL": dec("161")})
	require.Len(t, alerts, 1)

	// Crossing straight from upper breach to lower breach fires the lower side
	alerts = ledger.CheckPositionAlerts(positions, map[string]decimal.Decimal{"AAPL": dec("139")})
	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertTypeLowerBreach, alerts[0].AlertType)
}
