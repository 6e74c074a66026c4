package aggregate

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

// priorReading is the keyed per-room record of the last accepted event, used
// to close usage intervals. Persisted in the state store so a restart never
// re-attributes an interval.
type priorReading struct {
	LightState models.LightState `json:"light_state"`
	TS         time.Time         `json:"ts"`
	PowerMW    float64           `json:"power_mw"`
}

// Engine folds accepted events into the per-room/per-day usage counters.
// The interval since the previous accepted event is attributed to the PRIOR
// state (the interval being closed belongs to it), split across UTC midnight
// so a day's on+off seconds can never exceed the day's elapsed seconds.
type Engine struct {
	usage     repository.DailyUsageRepo
	kv        store.KV
	keyPrefix string
	logger    *zap.Logger
}

func NewEngine(usage repository.DailyUsageRepo, kv store.KV, logger *zap.Logger) *Engine {
	return &Engine{
		usage:     usage,
		kv:        kv,
		keyPrefix: "usage:last:",
		logger:    logger,
	}
}

func (e *Engine) Name() string { return "aggregation" }

func (e *Engine) HandleEvent(ctx context.Context, ev *models.Event) error {
	deltas := map[string]*repository.UsageDelta{}

	// Every reading folds its lux into the running average for its day.
	day := ev.Timestamp.UTC().Format(models.DayFormat)
	deltas[day] = &repository.UsageDelta{
		RoomID:   ev.RoomID,
		Day:      day,
		LuxSum:   ev.Lux,
		LuxCount: 1,
	}

	prior, err := e.loadPrior(ctx, ev.RoomID)
	if err != nil {
		return err
	}

	advanced := prior == nil || ev.Timestamp.After(prior.TS)

	if prior != nil && advanced {
		for _, seg := range splitByDay(prior.TS, ev.Timestamp) {
			d, ok := deltas[seg.day]
			if !ok {
				d = &repository.UsageDelta{RoomID: ev.RoomID, Day: seg.day}
				deltas[seg.day] = d
			}
			switch prior.LightState {
			case models.LightOn:
				d.OnSeconds += seg.seconds
			case models.LightOff:
				d.OffSeconds += seg.seconds
			}
			// Step integration: prior power held over the interval.
			d.EnergyMWh += prior.PowerMW * seg.seconds / 3600.0
		}
	}

	all := make([]*repository.UsageDelta, 0, len(deltas))
	for _, delta := range deltas {
		all = append(all, delta)
	}
	// Keyed by event_id: the bus redelivers after a failure anywhere in this
	// handler, and a replayed event must fold into the counters exactly once.
	applied, err := e.usage.ApplyDeltas(ctx, ev.EventID, all)
	if err != nil {
		return fmt.Errorf("failed to apply usage deltas: %w", err)
	}
	if !applied {
		e.logger.Debug("Usage deltas already folded",
			zap.String("event_id", ev.EventID),
			zap.String("room_id", ev.RoomID),
		)
	}

	if advanced {
		if err := e.savePrior(ctx, ev); err != nil {
			return err
		}
	} else {
		// Out-of-order event: its interval was already closed by a newer
		// reading, so it contributes lux only.
		e.logger.Debug("Out-of-order event skipped interval attribution",
			zap.String("event_id", ev.EventID),
			zap.String("room_id", ev.RoomID),
		)
	}
	return nil
}

func (e *Engine) loadPrior(ctx context.Context, roomID string) (*priorReading, error) {
	raw, err := e.kv.Get(ctx, e.keyPrefix+roomID)
	if errors.Is(err, store.ErrMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load prior reading: %w", err)
	}

	var prior priorReading
	if err := json.Unmarshal([]byte(raw), &prior); err != nil {
		return nil, fmt.Errorf("failed to unmarshal prior reading: %w", err)
	}
	return &prior, nil
}

func (e *Engine) savePrior(ctx context.Context, ev *models.Event) error {
	raw, err := json.Marshal(priorReading{
		LightState: ev.LightState,
		TS:         ev.Timestamp,
		PowerMW:    ev.Meta.PowerMW,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal prior reading: %w", err)
	}
	if err := e.kv.Set(ctx, e.keyPrefix+ev.RoomID, string(raw), 0); err != nil {
		return fmt.Errorf("failed to save prior reading: %w", err)
	}
	return nil
}

type daySegment struct {
	day     string
	seconds float64
}

// splitByDay divides [from, to) into per-UTC-day segments.
func splitByDay(from, to time.Time) []daySegment {
	from = from.UTC()
	to = to.UTC()
	if !to.After(from) {
		return nil
	}

	var segments []daySegment
	cur := from
	for cur.Before(to) {
		dayEnd := time.Date(cur.Year(), cur.Month(), cur.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
		segEnd := to
		if dayEnd.Before(segEnd) {
			segEnd = dayEnd
		}
		segments = append(segments, daySegment{
			day:     cur.Format(models.DayFormat),
			seconds: segEnd.Sub(cur).Seconds(),
		})
		cur = segEnd
	}
	return segments
}
