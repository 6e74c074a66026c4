package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"luxtrack/internal/models"
	"luxtrack/internal/repository"
	"luxtrack/internal/store"
)

// Options are the alert-rule tunables.
type Options struct {
	StuckOnDuration   time.Duration
	DropFraction      float64
	DropWindow        time.Duration
	PostingInterval   time.Duration
	OfflineMultiplier int
	SweepInterval     time.Duration
	StateKeyPrefix    string
}

// Evaluator runs the per-room alert state machines. It consumes accepted
// events from the bus and periodically sweeps the room registry so deadline
// alerts (stuck-on, device offline) fire even when no further event arrives.
type Evaluator struct {
	opts     Options
	kv       store.KV
	rooms    repository.RoomsRepo
	recorder *Recorder
	logger   *zap.Logger
}

func NewEvaluator(
	opts Options,
	kv store.KV,
	rooms repository.RoomsRepo,
	recorder *Recorder,
	logger *zap.Logger,
) *Evaluator {
	if opts.StateKeyPrefix == "" {
		opts.StateKeyPrefix = "alert:state:"
	}
	if opts.OfflineMultiplier <= 0 {
		opts.OfflineMultiplier = 3
	}
	return &Evaluator{
		opts:     opts,
		kv:       kv,
		rooms:    rooms,
		recorder: recorder,
		logger:   logger,
	}
}

func (e *Evaluator) Name() string { return "alert_evaluator" }

func (e *Evaluator) stateKey(roomID string) string {
	return e.opts.StateKeyPrefix + roomID
}

func (e *Evaluator) loadState(ctx context.Context, roomID string) (*RoomTimerState, error) {
	raw, err := e.kv.Get(ctx, e.stateKey(roomID))
	if errors.Is(err, store.ErrMiss) {
		return NewRoomTimerState(roomID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load timer state: %w", err)
	}

	st := NewRoomTimerState(roomID)
	if err := json.Unmarshal([]byte(raw), st); err != nil {
		return nil, fmt.Errorf("failed to unmarshal timer state: %w", err)
	}
	return st, nil
}

func (e *Evaluator) saveState(ctx context.Context, st *RoomTimerState) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal timer state: %w", err)
	}
	if err := e.kv.Set(ctx, e.stateKey(st.RoomID), string(raw), 0); err != nil {
		return fmt.Errorf("failed to save timer state: %w", err)
	}
	return nil
}

// HandleEvent advances the room's state machines with one accepted event.
// The bus delivers events to this handler on a single worker, so the
// read-modify-write on the state record is serialized.
func (e *Evaluator) HandleEvent(ctx context.Context, ev *models.Event) error {
	st, err := e.loadState(ctx, ev.RoomID)
	if err != nil {
		return err
	}

	// Sudden-drop compares against the state before this event.
	drop := st.IsSuddenDrop(ev, e.opts.DropFraction, e.opts.DropWindow)
	prevLux := st.LastLux

	st.Observe(ev)

	if drop {
		payload := mustPayload(map[string]interface{}{
			"previous_lux": *prevLux,
			"current_lux":  ev.Lux,
			"window_s":     e.opts.DropWindow.Seconds(),
		})
		if _, err := e.recorder.Fire(ctx, &models.Alert{
			TriggeredAt:   ev.Timestamp,
			RoomID:        ev.RoomID,
			DeviceID:      ev.DeviceID,
			Type:          models.AlertSuddenLuxDrop,
			Severity:      models.SeverityWarn,
			LinkedEventID: ev.EventID,
			Payload:       payload,
		}); err != nil {
			return err
		}
	} else {
		if err := e.recorder.Clear(ctx, ev.RoomID, models.AlertSuddenLuxDrop, "", ev.Timestamp); err != nil {
			return err
		}
	}

	if ev.LightState == models.LightOff {
		if err := e.recorder.Clear(ctx, ev.RoomID, models.AlertLightStuckOn, "", ev.Timestamp); err != nil {
			return err
		}
	} else if st.StuckOnDue(ev.Timestamp, e.opts.StuckOnDuration) {
		if err := e.fireStuckOn(ctx, st, ev.Timestamp, ev.EventID); err != nil {
			return err
		}
	}

	// An event from a silent device closes its offline window.
	if err := e.recorder.Clear(ctx, ev.RoomID, models.AlertDeviceOffline, ev.DeviceID, ev.Timestamp); err != nil {
		return err
	}

	return e.saveState(ctx, st)
}

// Sweep evaluates the deadline timers for every registered room. It only
// reads timer state; state records are advanced by events alone.
func (e *Evaluator) Sweep(ctx context.Context, now time.Time) error {
	rooms, err := e.rooms.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list rooms: %w", err)
	}

	window := time.Duration(e.opts.OfflineMultiplier) * e.opts.PostingInterval

	for _, roomID := range rooms {
		st, err := e.loadState(ctx, roomID)
		if err != nil {
			e.logger.Error("Failed to load timer state",
				zap.String("room_id", roomID),
				zap.Error(err),
			)
			continue
		}

		if st.StuckOnDue(now, e.opts.StuckOnDuration) {
			if err := e.fireStuckOn(ctx, st, now, ""); err != nil {
				e.logger.Error("Failed to fire stuck-on alert",
					zap.String("room_id", roomID),
					zap.Error(err),
				)
			}
		}

		for _, dev := range st.OfflineDevices(now, window) {
			payload := mustPayload(map[string]interface{}{
				"last_seen": dev.LastSeen.UTC().Format(time.RFC3339),
				"silence_s": dev.Silence.Seconds(),
				"window_s":  window.Seconds(),
			})
			if _, err := e.recorder.Fire(ctx, &models.Alert{
				TriggeredAt: now,
				RoomID:      roomID,
				DeviceID:    dev.DeviceID,
				Type:        models.AlertDeviceOffline,
				Severity:    models.SeverityWarn,
				Payload:     payload,
			}); err != nil {
				e.logger.Error("Failed to fire offline alert",
					zap.String("room_id", roomID),
					zap.String("device_id", dev.DeviceID),
					zap.Error(err),
				)
			}
		}
	}
	return nil
}

// Run drives the periodic sweep until ctx is cancelled.
func (e *Evaluator) Run(ctx context.Context) {
	interval := e.opts.SweepInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.logger.Info("Alert sweep started", zap.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Alert sweep stopped")
			return
		case <-ticker.C:
			if err := e.Sweep(ctx, time.Now().UTC()); err != nil {
				e.logger.Error("Sweep failed", zap.Error(err))
			}
		}
	}
}

func (e *Evaluator) fireStuckOn(ctx context.Context, st *RoomTimerState, now time.Time, linkedEventID string) error {
	payload := mustPayload(map[string]interface{}{
		"on_since":   st.OnSince.UTC().Format(time.RFC3339),
		"duration_s": now.Sub(*st.OnSince).Seconds(),
	})
	_, err := e.recorder.Fire(ctx, &models.Alert{
		TriggeredAt:   now,
		RoomID:        st.RoomID,
		Type:          models.AlertLightStuckOn,
		Severity:      models.SeverityCritical,
		LinkedEventID: linkedEventID,
		Payload:       payload,
	})
	return err
}

func mustPayload(m map[string]interface{}) string {
	raw, _ := json.Marshal(m)
	return string(raw)
}
