package services

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"pricewatch_backend/models"
)

// SQLitePositionStore is the file-backed PositionStore used for local and
// single-node deployments. Prices are stored as TEXT to keep decimal
// values exact.
type SQLitePositionStore struct {
	db *sql.DB
}

// NewSQLitePositionStore opens (creating if needed) the database at path
// and bootstraps the schema.
func NewSQLitePositionStore(path string) (*SQLitePositionStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite store: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping sqlite store: %w", err)
	}

	store := &SQLitePositionStore{db: db}
	if err := store.createTables(); err != nil {
		return nil, err
	}
	return store, nil
}

// createTables creates the required tables
func (s *SQLitePositionStore) createTables() error {
	positionsTable := `
		CREATE TABLE IF NOT EXISTS positions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			ticker TEXT NOT NULL,
			reference_price TEXT NOT NULL,
			reference_date TIMESTAMP NOT NULL,
			quantity TEXT NOT NULL,
			total_value TEXT NOT NULL,
			upper_threshold TEXT,
			lower_threshold TEXT,
			is_monitoring BOOLEAN DEFAULT true,
			created_at TIMESTAMP NOT NULL,
			last_checked TIMESTAMP
		)
	`
	if _, err := s.db.Exec(positionsTable); err != nil {
		return fmt.Errorf("failed to create positions table: %w", err)
	}

	alertsTable := `
		CREATE TABLE IF NOT EXISTS alerts (
			id TEXT PRIMARY KEY,
			position_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			ticker TEXT NOT NULL,
			alert_type TEXT NOT NULL,
			trigger_price TEXT NOT NULL,
			reference_price TEXT NOT NULL,
			threshold TEXT NOT NULL,
			triggered_at TIMESTAMP NOT NULL,
			is_read BOOLEAN DEFAULT false,
			notification_sent BOOLEAN DEFAULT false
		)
	`
	if _, err := s.db.Exec(alertsTable); err != nil {
		return fmt.Errorf("failed to create alerts table: %w", err)
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_positions_user ON positions(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_user ON alerts(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_position ON alerts(position_id)`,
	}
	for _, idx := range indexes {
		if _, err := s.db.Exec(idx); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

// CreatePosition stores a new position
func (s *SQLitePositionStore) CreatePosition(p *models.Position) error {
	_, err := s.db.Exec(`
		INSERT INTO positions (id, user_id, ticker, reference_price, reference_date,
			quantity, total_value, upper_threshold, lower_threshold,
			is_monitoring, created_at, last_checked)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.Ticker, p.ReferencePrice.String(), p.ReferenceDate,
		p.Quantity.String(), p.TotalValue.String(),
		decimalPtrToString(p.UpperThreshold), decimalPtrToString(p.LowerThreshold),
		p.IsMonitoring, p.CreatedAt, p.LastChecked,
	)
	if err != nil {
		return fmt.Errorf("failed to insert position: %w", err)
	}
	return nil
}

// GetPosition returns the position with the given ID
func (s *SQLitePositionStore) GetPosition(id string) (*models.Position, error) {
	row := s.db.QueryRow(`
		SELECT id, user_id, ticker, reference_price, reference_date, quantity,
			total_value, upper_threshold, lower_threshold, is_monitoring,
			created_at, last_checked
		FROM positions WHERE id = ?`, id)

	p, err := scanPosition(row)
	if err == sql.ErrNoRows {
		return nil, models.NewNotFoundError("position", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read position: %w", err)
	}
	return p, nil
}

// UpdatePosition overwrites an existing position
func (s *SQLitePositionStore) UpdatePosition(p *models.Position) error {
	res, err := s.db.Exec(`
		UPDATE positions SET user_id = ?, ticker = ?, reference_price = ?,
			reference_date = ?, quantity = ?, total_value = ?,
			upper_threshold = ?, lower_threshold = ?, is_monitoring = ?,
			last_checked = ?
		WHERE id = ?`,
		p.UserID, p.Ticker, p.ReferencePrice.String(), p.ReferenceDate,
		p.Quantity.String(), p.TotalValue.String(),
		decimalPtrToString(p.UpperThreshold), decimalPtrToString(p.LowerThreshold),
		p.IsMonitoring, p.LastChecked, p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update position: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.NewNotFoundError("position", p.ID)
	}
	return nil
}

// DeletePosition removes a position. Its alerts remain.
func (s *SQLitePositionStore) DeletePosition(id string) error {
	res, err := s.db.Exec(`DELETE FROM positions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete position: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.NewNotFoundError("position", id)
	}
	return nil
}

// ListPositionsByUser returns the user's positions ordered by creation time
func (s *SQLitePositionStore) ListPositionsByUser(userID string) ([]*models.Position, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, ticker, reference_price, reference_date, quantity,
			total_value, upper_threshold, lower_threshold, is_monitoring,
			created_at, last_checked
		FROM positions WHERE user_id = ? ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}
	defer rows.Close()

	positions := make([]*models.Position, 0)
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to read position row: %w", err)
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// CreateAlert stores a new alert
func (s *SQLitePositionStore) CreateAlert(a *models.Alert) error {
	_, err := s.db.Exec(`
		INSERT INTO alerts (id, position_id, user_id, ticker, alert_type,
			trigger_price, reference_price, threshold, triggered_at,
			is_read, notification_sent)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.PositionID, a.UserID, a.Ticker, a.AlertType,
		a.TriggerPrice.String(), a.ReferencePrice.String(), a.Threshold.String(),
		a.TriggeredAt, a.IsRead, a.NotificationSent,
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

// GetAlert returns the alert with the given ID
func (s *SQLitePositionStore) GetAlert(id string) (*models.Alert, error) {
	row := s.db.QueryRow(`
		SELECT id, position_id, user_id, ticker, alert_type, trigger_price,
			reference_price, threshold, triggered_at, is_read, notification_sent
		FROM alerts WHERE id = ?`, id)

	a, err := scanAlert(row)
	if err == sql.ErrNoRows {
		return nil, models.NewNotFoundError("alert", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read alert: %w", err)
	}
	return a, nil
}

// UpdateAlert overwrites an existing alert
func (s *SQLitePositionStore) UpdateAlert(a *models.Alert) error {
	res, err := s.db.Exec(`
		UPDATE alerts SET is_read = ?, notification_sent = ? WHERE id = ?`,
		a.IsRead, a.NotificationSent, a.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update alert: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.NewNotFoundError("alert", a.ID)
	}
	return nil
}

// ListAlertsByUser returns the user's alerts, newest first
func (s *SQLitePositionStore) ListAlertsByUser(userID string) ([]*models.Alert, error) {
	rows, err := s.db.Query(`
		SELECT id, position_id, user_id, ticker, alert_type, trigger_price,
			reference_price, threshold, triggered_at, is_read, notification_sent
		FROM alerts WHERE user_id = ? ORDER BY triggered_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	alerts := make([]*models.Alert, 0)
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to read alert row: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// Close closes the underlying database
func (s *SQLitePositionStore) Close() error {
	return s.db.Close()
}

// rowScanner matches both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPosition(row rowScanner) (*models.Position, error) {
	var p models.Position
	var refPrice, quantity, totalValue string
	var upper, lower sql.NullString
	var lastChecked sql.NullTime

	err := row.Scan(&p.ID, &p.UserID, &p.Ticker, &refPrice, &p.ReferenceDate,
		&quantity, &totalValue, &upper, &lower, &p.IsMonitoring,
		&p.CreatedAt, &lastChecked)
	if err != nil {
		return nil, err
	}

	if p.ReferencePrice, err = decimal.NewFromString(refPrice); err != nil {
		return nil, fmt.Errorf("bad reference_price %q: %w", refPrice, err)
	}
	if p.Quantity, err = decimal.NewFromString(quantity); err != nil {
		return nil, fmt.Errorf("bad quantity %q: %w", quantity, err)
	}
	if p.TotalValue, err = decimal.NewFromString(totalValue); err != nil {
		return nil, fmt.Errorf("bad total_value %q: %w", totalValue, err)
	}
	if p.UpperThreshold, err = decimalFromNullString(upper); err != nil {
		return nil, err
	}
	if p.LowerThreshold, err = decimalFromNullString(lower); err != nil {
		return nil, err
	}
	if lastChecked.Valid {
		t := lastChecked.Time
		p.LastChecked = &t
	}
	return &p, nil
}

func scanAlert(row rowScanner) (*models.Alert, error) {
	var a models.Alert
	var trigger, ref, threshold string

	err := row.Scan(&a.ID, &a.PositionID, &a.UserID, &a.Ticker, &a.AlertType,
		&trigger, &ref, &threshold, &a.TriggeredAt, &a.IsRead, &a.NotificationSent)
	if err != nil {
		return nil, err
	}

	if a.TriggerPrice, err = decimal.NewFromString(trigger); err != nil {
		return nil, fmt.Errorf("bad trigger_price %q: %w", trigger, err)
	}
	if a.ReferencePrice, err = decimal.NewFromString(ref); err != nil {
		return nil, fmt.Errorf("bad reference_price %q: %w", ref, err)
	}
	if a.Threshold, err = decimal.NewFromString(threshold); err != nil {
		return nil, fmt.Errorf("bad threshold %q: %w", threshold, err)
	}
	return &a, nil
}

func decimalPtrToString(d *decimal.Decimal) interface{} {
	if d == nil {
		return nil
	}
	return d.String()
}

func decimalFromNullString(ns sql.NullString) (*decimal.Decimal, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(ns.String)
	if err != nil {
		return nil, fmt.Errorf("bad threshold %q: %w", ns.String, err)
	}
	return &d, nil
}
