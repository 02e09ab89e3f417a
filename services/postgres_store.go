package services

import (
	"errors"
	"fmt"
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"pricewatch_backend/models"
)

// GormPositionStore is the Postgres-backed PositionStore for production
// deployments.
type GormPositionStore struct {
	db *gorm.DB
}

// NewGormPositionStore connects to Postgres and migrates the schema
func NewGormPositionStore(dsn string, environment string) (*GormPositionStore, error) {
	logLevel := logger.Info
	if environment == "production" {
		logLevel = logger.Error
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	if err := models.MigratePositionModels(db); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	log.Println("Postgres position store connected")
	return &GormPositionStore{db: db}, nil
}

// CreatePosition stores a new position
func (s *GormPositionStore) CreatePosition(position *models.Position) error {
	if err := s.db.Create(position).Error; err != nil {
		return fmt.Errorf("failed to insert position: %w", err)
	}
	return nil
}

// GetPosition returns the position with the given ID
func (s *GormPositionStore) GetPosition(id string) (*models.Position, error) {
	var position models.Position
	if err := s.db.Where("id = ?", id).First(&position).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("position", id)
		}
		return nil, fmt.Errorf("failed to read position: %w", err)
	}
	return &position, nil
}

// UpdatePosition overwrites an existing position
func (s *GormPositionStore) UpdatePosition(position *models.Position) error {
	res := s.db.Model(&models.Position{}).Where("id = ?", position.ID).
		Select("UserID", "Ticker", "ReferencePrice", "ReferenceDate",
			"Quantity", "TotalValue", "UpperThreshold", "LowerThreshold",
			"IsMonitoring", "LastChecked").
		Updates(position)
	if res.Error != nil {
		return fmt.Errorf("failed to update position: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("position", position.ID)
	}
	return nil
}

// DeletePosition removes a position. Its alerts remain.
func (s *GormPositionStore) DeletePosition(id string) error {
	res := s.db.Where("id = ?", id).Delete(&models.Position{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete position: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("position", id)
	}
	return nil
}

// ListPositionsByUser returns the user's positions ordered by creation time
func (s *GormPositionStore) ListPositionsByUser(userID string) ([]*models.Position, error) {
	positions := make([]*models.Position, 0)
	if err := s.db.Where("user_id = ?", userID).Order("created_at").Find(&positions).Error; err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}
	return positions, nil
}

// CreateAlert stores a new alert
func (s *GormPositionStore) CreateAlert(alert *models.Alert) error {
	if err := s.db.Create(alert).Error; err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

// GetAlert returns the alert with the given ID
func (s *GormPositionStore) GetAlert(id string) (*models.Alert, error) {
	var alert models.Alert
	if err := s.db.Where("id = ?", id).First(&alert).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("alert", id)
		}
		return nil, fmt.Errorf("failed to read alert: %w", err)
	}
	return &alert, nil
}

// UpdateAlert overwrites the mutable fields of an existing alert
func (s *GormPositionStore) UpdateAlert(alert *models.Alert) error {
	res := s.db.Model(&models.Alert{}).Where("id = ?", alert.ID).
		Select("IsRead", "NotificationSent").
		Updates(alert)
	if res.Error != nil {
		return fmt.Errorf("failed to update alert: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("alert", alert.ID)
	}
	return nil
}

// ListAlertsByUser returns the user's alerts, newest first
func (s *GormPositionStore) ListAlertsByUser(userID string) ([]*models.Alert, error) {
	alerts := make([]*models.Alert, 0)
	if err := s.db.Where("user_id = ?", userID).Order("triggered_at DESC").Find(&alerts).Error; err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	return alerts, nil
}

// Close closes the underlying connection pool
func (s *GormPositionStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
