package repository

import (
	"context"
	"database/sql"
	"fmt"

	"luxtrack/internal/models"
)

// PostgresDailyUsageRepo owns the daily_usage counters table.
type PostgresDailyUsageRepo struct {
	db *sql.DB
}

func NewPostgresDailyUsageRepo(db *sql.DB) *PostgresDailyUsageRepo {
	return &PostgresDailyUsageRepo{db: db}
}

var _ DailyUsageRepo = (*PostgresDailyUsageRepo)(nil)

// AddDelta folds one increment into the (room_id, day) row. Increments are
// additive on the stored row, so re-applying deltas for different rooms
// concurrently cannot interfere.
func (r *PostgresDailyUsageRepo) AddDelta(ctx context.Context, delta *UsageDelta) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO daily_usage (
			room_id, day, on_seconds, off_seconds, lux_sum, lux_count, energy_mwh
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (room_id, day) DO UPDATE SET
			on_seconds  = daily_usage.on_seconds  + EXCLUDED.on_seconds,
			off_seconds = daily_usage.off_seconds + EXCLUDED.off_seconds,
			lux_sum     = daily_usage.lux_sum     + EXCLUDED.lux_sum,
			lux_count   = daily_usage.lux_count   + EXCLUDED.lux_count,
			energy_mwh  = daily_usage.energy_mwh  + EXCLUDED.energy_mwh
	`,
		delta.RoomID,
		delta.Day,
		delta.OnSeconds,
		delta.OffSeconds,
		delta.LuxSum,
		delta.LuxCount,
		delta.EnergyMWh,
	)
	if err != nil {
		return fmt.Errorf("failed to add usage delta: %w", err)
	}
	return nil
}

// ApplyDeltas applies one event's increments and its usage_applied marker in
// a single transaction. A replayed event_id conflicts on the marker and the
// transaction rolls back untouched.
func (r *PostgresDailyUsageRepo) ApplyDeltas(ctx context.Context, eventID string, deltas []*UsageDelta) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin usage transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO usage_applied (event_id)
		VALUES ($1)
		ON CONFLICT (event_id) DO NOTHING
	`, eventID)
	if err != nil {
		return false, fmt.Errorf("failed to mark event applied: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read marker result: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	for _, delta := range deltas {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO daily_usage (
				room_id, day, on_seconds, off_seconds, lux_sum, lux_count, energy_mwh
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (room_id, day) DO UPDATE SET
				on_seconds  = daily_usage.on_seconds  + EXCLUDED.on_seconds,
				off_seconds = daily_usage.off_seconds + EXCLUDED.off_seconds,
				lux_sum     = daily_usage.lux_sum     + EXCLUDED.lux_sum,
				lux_count   = daily_usage.lux_count   + EXCLUDED.lux_count,
				energy_mwh  = daily_usage.energy_mwh  + EXCLUDED.energy_mwh
		`,
			delta.RoomID,
			delta.Day,
			delta.OnSeconds,
			delta.OffSeconds,
			delta.LuxSum,
			delta.LuxCount,
			delta.EnergyMWh,
		); err != nil {
			return false, fmt.Errorf("failed to apply usage delta: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit usage deltas: %w", err)
	}
	return true, nil
}

func (r *PostgresDailyUsageRepo) Get(ctx context.Context, roomID, day string) (*models.DailyUsage, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT room_id, day, on_seconds, off_seconds, lux_sum, lux_count, energy_mwh
		FROM daily_usage
		WHERE room_id = $1 AND day = $2
	`, roomID, day)

	var u models.DailyUsage
	err := row.Scan(&u.RoomID, &u.Day, &u.OnSeconds, &u.OffSeconds, &u.LuxSum, &u.LuxCount, &u.EnergyMWh)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get daily usage: %w", err)
	}
	return &u, nil
}

// SumOnSeconds totals on-time over an inclusive day range.
func (r *PostgresDailyUsageRepo) SumOnSeconds(ctx context.Context, roomID, fromDay, toDay string) (float64, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(on_seconds), 0)
		FROM daily_usage
		WHERE room_id = $1 AND day >= $2 AND day <= $3
	`, roomID, fromDay, toDay)

	var total float64
	if err := row.Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum on seconds: %w", err)
	}
	return total, nil
}
