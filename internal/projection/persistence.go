package projection

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"luxtrack/internal/models"
	"luxtrack/internal/repository"
)

// PersistenceHandler projects accepted events onto the per-room current
// state. The log append already happened at admit time; this handler owns
// the RoomState row exclusively. Late events are logged but must not regress
// the projection, which the repository enforces with a last_ts
// compare-and-swap.
type PersistenceHandler struct {
	states repository.RoomStateRepo
	rooms  repository.RoomsRepo
	logger *zap.Logger
}

func NewPersistenceHandler(
	states repository.RoomStateRepo,
	rooms repository.RoomsRepo,
	logger *zap.Logger,
) *PersistenceHandler {
	return &PersistenceHandler{states: states, rooms: rooms, logger: logger}
}

func (h *PersistenceHandler) Name() string { return "persistence" }

func (h *PersistenceHandler) HandleEvent(ctx context.Context, ev *models.Event) error {
	if err := h.rooms.Ensure(ctx, ev.RoomID); err != nil {
		return fmt.Errorf("failed to register room: %w", err)
	}

	applied, err := h.states.Upsert(ctx, &models.RoomState{
		RoomID:         ev.RoomID,
		LightState:     ev.LightState,
		Lux:            ev.Lux,
		PowerMW:        ev.Meta.PowerMW,
		MotionDetected: ev.Meta.Motion,
		LastEventID:    ev.EventID,
		LastTS:         ev.Timestamp,
		UpdatedAt:      time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to project room state: %w", err)
	}

	if !applied {
		// Stale write: a newer event already owns the projection.
		h.logger.Debug("Projection skipped for late event",
			zap.String("event_id", ev.EventID),
			zap.String("room_id", ev.RoomID),
			zap.Time("event_ts", ev.Timestamp),
		)
	}
	return nil
}
