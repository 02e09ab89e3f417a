package services

import "pricewatch_backend/models"

// PositionStore is the persistence port for positions and alerts. All
// implementations must provide read-your-own-writes consistency: a
// successful write is visible to every subsequent read on the same store.
//
// Get/Update/Delete return *models.NotFoundError for unknown IDs. List
// operations return empty slices, never errors, when a user has nothing.
type PositionStore interface {
	CreatePosition(position *models.Position) error
	GetPosition(id string) (*models.Position, error)
	UpdatePosition(position *models.Position) error
	DeletePosition(id string) error
	ListPositionsByUser(userID string) ([]*models.Position, error)

	CreateAlert(alert *models.Alert) error
	GetAlert(id string) (*models.Alert, error)
	UpdateAlert(alert *models.Alert) error
	ListAlertsByUser(userID string) ([]*models.Alert, error)

	Close() error
}
