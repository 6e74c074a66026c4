package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"luxtrack/internal/models"
)

// PostgresEventsRepo is the durable event log backed by the events table.
type PostgresEventsRepo struct {
	db *sql.DB
}

func NewPostgresEventsRepo(db *sql.DB) *PostgresEventsRepo {
	return &PostgresEventsRepo{db: db}
}

var _ EventsRepo = (*PostgresEventsRepo)(nil)

const eventColumns = `
	event_id, schema_version, ts, room_id, device_id, light_state, lux,
	battery_pct, signal_dbm, firmware_version, power_mw, motion
`

// Append inserts the event. The primary key on event_id makes the append
// and the idempotency registration a single physical write: zero rows
// affected means the id was already admitted.
func (r *PostgresEventsRepo) Append(ctx context.Context, ev *models.Event) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO events (`+eventColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (event_id) DO NOTHING
	`,
		ev.EventID,
		ev.SchemaVersion,
		ev.Timestamp,
		ev.RoomID,
		ev.DeviceID,
		string(ev.LightState),
		ev.Lux,
		ev.Meta.BatteryPct,
		ev.Meta.SignalDBM,
		ev.Meta.FirmwareVersion,
		ev.Meta.PowerMW,
		ev.Meta.Motion,
	)
	if err != nil {
		return false, fmt.Errorf("failed to append event: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read append result: %w", err)
	}
	return n > 0, nil
}

// History returns events for the room, newest first. Zero start/end leave
// the corresponding bound open.
func (r *PostgresEventsRepo) History(ctx context.Context, roomID string, limit int, start, end time.Time) ([]models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE room_id = $1`
	args := []interface{}{roomID}
	argN := 2

	if !start.IsZero() {
		query += fmt.Sprintf(" AND ts >= $%d", argN)
		args = append(args, start)
		argN++
	}
	if !end.IsZero() {
		query += fmt.Sprintf(" AND ts <= $%d", argN)
		args = append(args, end)
		argN++
	}

	query += " ORDER BY ts DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argN)
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *ev)
	}
	return events, rows.Err()
}

// Stats aggregates lux over readings newer than since.
func (r *PostgresEventsRepo) Stats(ctx context.Context, roomID string, since time.Time) (*models.LuxStats, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(AVG(lux), 0), COALESCE(MIN(lux), 0), COALESCE(MAX(lux), 0), COUNT(*)
		FROM events
		WHERE room_id = $1 AND ts >= $2
	`, roomID, since)

	st := &models.LuxStats{RoomID: roomID}
	if err := row.Scan(&st.AvgLux, &st.MinLux, &st.MaxLux, &st.Readings); err != nil {
		return nil, fmt.Errorf("failed to query stats: %w", err)
	}
	return st, nil
}

// PurgeBefore expires log entries outside the retention window.
func (r *PostgresEventsRepo) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE ts < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge events: %w", err)
	}
	return res.RowsAffected()
}

func scanEvent(rows *sql.Rows) (*models.Event, error) {
	var ev models.Event
	var state string
	if err := rows.Scan(
		&ev.EventID,
		&ev.SchemaVersion,
		&ev.Timestamp,
		&ev.RoomID,
		&ev.DeviceID,
		&state,
		&ev.Lux,
		&ev.Meta.BatteryPct,
		&ev.Meta.SignalDBM,
		&ev.Meta.FirmwareVersion,
		&ev.Meta.PowerMW,
		&ev.Meta.Motion,
	); err != nil {
		return nil, fmt.Errorf("failed to scan event: %w", err)
	}
	ev.LightState = models.LightState(state)
	return &ev, nil
}
