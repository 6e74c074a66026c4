package repository

import (
	"context"
	"errors"
	"time"

	"luxtrack/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// UsageDelta is one increment applied to a DailyUsage row. All fields are
// additive so concurrent appliers for different rooms never interfere.
type UsageDelta struct {
	RoomID     string
	Day        string
	OnSeconds  float64
	OffSeconds float64
	LuxSum     float64
	LuxCount   int64
	EnergyMWh  float64
}

// EventsRepo is the immutable event log. The unique key on event_id is the
// idempotency filter: Append reports false when the id was already admitted.
type EventsRepo interface {
	Append(ctx context.Context, ev *models.Event) (bool, error)
	History(ctx context.Context, roomID string, limit int, start, end time.Time) ([]models.Event, error)
	Stats(ctx context.Context, roomID string, since time.Time) (*models.LuxStats, error)
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RoomStateRepo owns the current-state projection. Upsert applies only when
// the incoming last_ts is not older than the stored one and reports whether
// the write was applied.
type RoomStateRepo interface {
	Upsert(ctx context.Context, st *models.RoomState) (bool, error)
	Get(ctx context.Context, roomID string) (*models.RoomState, error)
}

// DailyUsageRepo owns the per-room/per-day usage counters. ApplyDeltas folds
// all of one event's increments atomically, keyed by event_id: a replayed
// event reports false and changes nothing, so at-least-once delivery cannot
// double-count an interval or a reading.
type DailyUsageRepo interface {
	AddDelta(ctx context.Context, delta *UsageDelta) error
	ApplyDeltas(ctx context.Context, eventID string, deltas []*UsageDelta) (bool, error)
	Get(ctx context.Context, roomID, day string) (*models.DailyUsage, error)
	SumOnSeconds(ctx context.Context, roomID, fromDay, toDay string) (float64, error)
}

// AlertsRepo stores immutable alert records plus their open/cleared window.
// Windows are keyed by (room, type); deviceID narrows the lookup for alert
// types whose window is per device, empty matches any device.
type AlertsRepo interface {
	Create(ctx context.Context, a *models.Alert) error
	FindOpen(ctx context.Context, roomID, alertType, deviceID string) (*models.Alert, error)
	Clear(ctx context.Context, alertID string, at time.Time) error
	ListRecent(ctx context.Context, roomID string, limit int) ([]models.Alert, error)
}

// DeadLettersRepo records deliveries a handler gave up on.
type DeadLettersRepo interface {
	Insert(ctx context.Context, dl *models.DeadLetter) error
}

// RoomsRepo is the room registry, used to tell "unknown room" apart from
// "room exists but has no data yet".
type RoomsRepo interface {
	Ensure(ctx context.Context, roomID string) error
	Exists(ctx context.Context, roomID string) (bool, error)
	List(ctx context.Context) ([]string, error)
}
