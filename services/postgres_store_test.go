package services

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"pricewatch_backend/models"
)

// newGormStore runs the gorm store against a file-backed SQLite database
// with foreign key enforcement on, so schema-level surprises such as an
// accidental positions-alerts constraint show up in tests.
func newGormStore(t *testing.T) *GormPositionStore {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "pricewatch.db") + "?_foreign_keys=on"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, models.MigratePositionModels(db))

	store := &GormPositionStore{db: db}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestGormStore_PositionRoundTrip(t *testing.T) {
	store := newGormStore(t)

	position := samplePosition("u1")
	require.NoError(t, store.CreatePosition(position))

	loaded, err := store.GetPosition(position.ID)
	require.NoError(t, err)
	assert.Equal(t, position.ID, loaded.ID)
	assert.True(t, loaded.ReferencePrice.Equal(dec("150.25")))
	require.NotNil(t, loaded.UpperThreshold)
	assert.True(t, loaded.UpperThreshold.Equal(dec("160")))
	assert.Nil(t, loaded.LowerThreshold)

	now := time.Now().UTC().Truncate(time.Second)
	loaded.LowerThreshold = decPtr("130")
	loaded.LastChecked = &now
	require.NoError(t, store.UpdatePosition(loaded))

	reloaded, err := store.GetPosition(position.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.LowerThreshold.Equal(dec("130")))
	assert.NotNil(t, reloaded.LastChecked)
}

func TestGormStore_NotFound(t *testing.T) {
	store := newGormStore(t)
	var notFoundErr *models.NotFoundError

	_, err := store.GetPosition("missing")
	assert.True(t, errors.As(err, &notFoundErr))

	err = store.UpdatePosition(samplePosition("u1"))
	assert.True(t, errors.As(err, &notFoundErr))

	err = store.DeletePosition("missing")
	assert.True(t, errors.As(err, &notFoundErr))

	_, err = store.GetAlert("missing")
	assert.True(t, errors.As(err, &notFoundErr))
}

func TestGormStore_AlertsSurvivePositionDelete(t *testing.T) {
	store := newGormStore(t)

	// The migration must not tie alerts to positions with a constraint
	assert.False(t, store.db.Migrator().HasConstraint(&models.Position{}, "Alerts"))
	assert.False(t, store.db.Migrator().HasConstraint(&models.Alert{}, "fk_positions_alerts"))

	position := samplePosition("u1")
	require.NoError(t, store.CreatePosition(position))

	alert := &models.Alert{
		ID:             uuid.NewString(),
		PositionID:     position.ID,
		UserID:         "u1",
		Ticker:         "AAPL",
		AlertType:      models.AlertTypeUpperBreach,
		TriggerPrice:   dec("165"),
		ReferencePrice: dec("150.25"),
		Threshold:      dec("160"),
		TriggeredAt:    time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, store.CreateAlert(alert))

	// Deleting a position with alert history must succeed outright
	require.NoError(t, store.DeletePosition(position.ID))

	var notFoundErr *models.NotFoundError
	_, err := store.GetPosition(position.ID)
	assert.True(t, errors.As(err, &notFoundErr))

	alerts, err := store.ListAlertsByUser("u1")
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, alert.ID, alerts[0].ID)
	assert.Equal(t, position.ID, alerts[0].PositionID)
}

func TestGormStore_AlertReadFlagUpdate(t *testing.T) {
	store := newGormStore(t)

	position := samplePosition("u1")
	require.NoError(t, store.CreatePosition(position))

	alert := &models.Alert{
		ID:             uuid.NewString(),
		PositionID:     position.ID,
		UserID:         "u1",
		Ticker:         "AAPL",
		AlertType:      models.AlertTypeUpperBreach,
		TriggerPrice:   dec("165"),
		ReferencePrice: dec("150.25"),
		Threshold:      dec("160"),
		TriggeredAt:    time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, store.CreateAlert(alert))

	alert.IsRead = true
	alert.NotificationSent = true
	require.NoError(t, store.UpdateAlert(alert))

	reloaded, err := store.GetAlert(alert.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.IsRead)
	assert.True(t, reloaded.NotificationSent)
}
