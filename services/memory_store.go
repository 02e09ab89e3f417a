package services

import (
	"sort"
	"sync"

	"pricewatch_backend/models"
)

// InMemoryPositionStore keeps positions and alerts in mutex-guarded maps.
// It is the default store and the one used in tests. Deleting a position
// does not delete its alerts: the alert log outlives the position.
type InMemoryPositionStore struct {
	mu        sync.RWMutex
	positions map[string]*models.Position
	alerts    map[string]*models.Alert
}

// NewInMemoryPositionStore creates an empty in-memory store
func NewInMemoryPositionStore() *InMemoryPositionStore {
	return &InMemoryPositionStore{
		positions: make(map[string]*models.Position),
		alerts:    make(map[string]*models.Alert),
	}
}

// CreatePosition stores a new position
func (s *InMemoryPositionStore) CreatePosition(position *models.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *position
	s.positions[position.ID] = &clone
	return nil
}

// GetPosition returns a copy of the position with the given ID
func (s *InMemoryPositionStore) GetPosition(id string) (*models.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	position, ok := s.positions[id]
	if !ok {
		return nil, models.NewNotFoundError("position", id)
	}
	clone := *position
	return &clone, nil
}

// UpdatePosition overwrites an existing position
func (s *InMemoryPositionStore) UpdatePosition(position *models.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.positions[position.ID]; !ok {
		return models.NewNotFoundError("position", position.ID)
	}
	clone := *position
	s.positions[position.ID] = &clone
	return nil
}

// DeletePosition removes a position. Its alerts remain.
func (s *InMemoryPositionStore) DeletePosition(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.positions[id]; !ok {
		return models.NewNotFoundError("position", id)
	}
	delete(s.positions, id)
	return nil
}

// ListPositionsByUser returns the user's positions ordered by creation time
func (s *InMemoryPositionStore) ListPositionsByUser(userID string) ([]*models.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	positions := make([]*models.Position, 0)
	for _, p := range s.positions {
		if p.UserID == userID {
			clone := *p
			positions = append(positions, &clone)
		}
	}
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].CreatedAt.Before(positions[j].CreatedAt)
	})
	return positions, nil
}

// CreateAlert stores a new alert
func (s *InMemoryPositionStore) CreateAlert(alert *models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *alert
	s.alerts[alert.ID] = &clone
	return nil
}

// GetAlert returns a copy of the alert with the given ID
func (s *InMemoryPositionStore) GetAlert(id string) (*models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	alert, ok := s.alerts[id]
	if !ok {
		return nil, models.NewNotFoundError("alert", id)
	}
	clone := *alert
	return &clone, nil
}

// UpdateAlert overwrites an existing alert
func (s *InMemoryPositionStore) UpdateAlert(alert *models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.alerts[alert.ID]; !ok {
		return models.NewNotFoundError("alert", alert.ID)
	}
	clone := *alert
	s.alerts[alert.ID] = &clone
	return nil
}

// ListAlertsByUser returns the user's alerts, newest first
func (s *InMemoryPositionStore) ListAlertsByUser(userID string) ([]*models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	alerts := make([]*models.Alert, 0)
	for _, a := range s.alerts {
		if a.UserID == userID {
			clone := *a
			alerts = append(alerts, &clone)
		}
	}
	sort.Slice(alerts, func(i, j int) bool {
		return alerts[i].TriggeredAt.After(alerts[j].TriggeredAt)
	})
	return alerts, nil
}

// Close is a no-op for the in-memory store
func (s *InMemoryPositionStore) Close() error {
	return nil
}
