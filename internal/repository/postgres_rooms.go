package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"luxtrack/internal/models"
)

// PostgresRoomsRepo owns the rooms registry table. Rooms are pre-seeded by
// provisioning or registered on their first accepted event.
type PostgresRoomsRepo struct {
	db *sql.DB
}

func NewPostgresRoomsRepo(db *sql.DB) *PostgresRoomsRepo {
	return &PostgresRoomsRepo{db: db}
}

var _ RoomsRepo = (*PostgresRoomsRepo)(nil)

func (r *PostgresRoomsRepo) Ensure(ctx context.Context, roomID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO rooms (room_id, registered_at)
		VALUES ($1, $2)
		ON CONFLICT (room_id) DO NOTHING
	`, roomID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to ensure room: %w", err)
	}
	return nil
}

func (r *PostgresRoomsRepo) Exists(ctx context.Context, roomID string) (bool, error) {
	row := r.db.QueryRowContext(ctx, `SELECT 1 FROM rooms WHERE room_id = $1`, roomID)
	var one int
	err := row.Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check room: %w", err)
	}
	return true, nil
}

func (r *PostgresRoomsRepo) List(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT room_id FROM rooms ORDER BY room_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// PostgresDeadLettersRepo owns the dead_letters table.
type PostgresDeadLettersRepo struct {
	db *sql.DB
}

func NewPostgresDeadLettersRepo(db *sql.DB) *PostgresDeadLettersRepo {
	return &PostgresDeadLettersRepo{db: db}
}

var _ DeadLettersRepo = (*PostgresDeadLettersRepo)(nil)

func (r *PostgresDeadLettersRepo) Insert(ctx context.Context, dl *models.DeadLetter) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO dead_letters (id, handler, event_id, payload, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, dl.ID, dl.Handler, dl.EventID, dl.Payload, dl.Reason, dl.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert dead letter: %w", err)
	}
	return nil
}
