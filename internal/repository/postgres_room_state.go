package repository

import (
	"context"
	"database/sql"
	"fmt"

	"luxtrack/internal/models"
)

// PostgresRoomStateRepo owns the room_state projection table.
type PostgresRoomStateRepo struct {
	db *sql.DB
}

func NewPostgresRoomStateRepo(db *sql.DB) *PostgresRoomStateRepo {
	return &PostgresRoomStateRepo{db: db}
}

var _ RoomStateRepo = (*PostgresRoomStateRepo)(nil)

// Upsert applies the projection write with a compare-and-swap on last_ts:
// the update only lands when the incoming timestamp is not older than the
// stored one, so retried or out-of-order events never regress the row.
func (r *PostgresRoomStateRepo) Upsert(ctx context.Context, st *models.RoomState) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO room_state (
			room_id, light_state, lux, power_mw, motion_detected,
			last_event_id, last_ts, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (room_id) DO UPDATE SET
			light_state     = EXCLUDED.light_state,
			lux             = EXCLUDED.lux,
			power_mw        = EXCLUDED.power_mw,
			motion_detected = EXCLUDED.motion_detected,
			last_event_id   = EXCLUDED.last_event_id,
			last_ts         = EXCLUDED.last_ts,
			updated_at      = EXCLUDED.updated_at
		WHERE room_state.last_ts <= EXCLUDED.last_ts
	`,
		st.RoomID,
		string(st.LightState),
		st.Lux,
		st.PowerMW,
		st.MotionDetected,
		st.LastEventID,
		st.LastTS,
		st.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to upsert room state: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read upsert result: %w", err)
	}
	return n > 0, nil
}

func (r *PostgresRoomStateRepo) Get(ctx context.Context, roomID string) (*models.RoomState, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT room_id, light_state, lux, power_mw, motion_detected,
		       last_event_id, last_ts, updated_at
		FROM room_state
		WHERE room_id = $1
	`, roomID)

	var st models.RoomState
	var state string
	err := row.Scan(
		&st.RoomID,
		&state,
		&st.Lux,
		&st.PowerMW,
		&st.MotionDetected,
		&st.LastEventID,
		&st.LastTS,
		&st.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room state: %w", err)
	}
	st.LightState = models.LightState(state)
	return &st, nil
}
