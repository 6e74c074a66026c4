package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"luxtrack/internal/models"
)

// PostgresAlertsRepo owns the alerts table.
type PostgresAlertsRepo struct {
	db *sql.DB
}

func NewPostgresAlertsRepo(db *sql.DB) *PostgresAlertsRepo {
	return &PostgresAlertsRepo{db: db}
}

var _ AlertsRepo = (*PostgresAlertsRepo)(nil)

const alertColumns = `
	alert_id, triggered_at, room_id, device_id, alert_type, severity,
	linked_event_id, payload, status, cleared_at
`

func (r *PostgresAlertsRepo) Create(ctx context.Context, a *models.Alert) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO alerts (`+alertColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		a.AlertID,
		a.TriggeredAt,
		a.RoomID,
		a.DeviceID,
		a.Type,
		a.Severity,
		a.LinkedEventID,
		a.Payload,
		a.Status,
		a.ClearedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}
	return nil
}

// FindOpen returns the single open alert for (room, type), if any. A
// non-empty deviceID narrows the window to that device.
func (r *PostgresAlertsRepo) FindOpen(ctx context.Context, roomID, alertType, deviceID string) (*models.Alert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM alerts
		WHERE room_id = $1 AND alert_type = $2 AND status = $3
	`
	args := []interface{}{roomID, alertType, models.AlertStatusOpen}
	if deviceID != "" {
		query += ` AND device_id = $4`
		args = append(args, deviceID)
	}
	query += `
		ORDER BY triggered_at DESC
		LIMIT 1
	`
	row := r.db.QueryRowContext(ctx, query, args...)

	a, err := scanAlertRow(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find open alert: %w", err)
	}
	return a, nil
}

func (r *PostgresAlertsRepo) Clear(ctx context.Context, alertID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE alerts SET status = $1, cleared_at = $2
		WHERE alert_id = $3 AND status = $4
	`, models.AlertStatusCleared, at, alertID, models.AlertStatusOpen)
	if err != nil {
		return fmt.Errorf("failed to clear alert: %w", err)
	}
	return nil
}

func (r *PostgresAlertsRepo) ListRecent(ctx context.Context, roomID string, limit int) ([]models.Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+alertColumns+`
		FROM alerts
		WHERE room_id = $1
		ORDER BY triggered_at DESC
		LIMIT $2
	`, roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		var a models.Alert
		var clearedAt sql.NullTime
		if err := rows.Scan(
			&a.AlertID, &a.TriggeredAt, &a.RoomID, &a.DeviceID, &a.Type,
			&a.Severity, &a.LinkedEventID, &a.Payload, &a.Status, &clearedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		if clearedAt.Valid {
			t := clearedAt.Time
			a.ClearedAt = &t
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func scanAlertRow(row *sql.Row) (*models.Alert, error) {
	var a models.Alert
	var clearedAt sql.NullTime
	err := row.Scan(
		&a.AlertID, &a.TriggeredAt, &a.RoomID, &a.DeviceID, &a.Type,
		&a.Severity, &a.LinkedEventID, &a.Payload, &a.Status, &clearedAt,
	)
	if err != nil {
		return nil, err
	}
	if clearedAt.Valid {
		t := clearedAt.Time
		a.ClearedAt = &t
	}
	return &a, nil
}
