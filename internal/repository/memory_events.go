package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"luxtrack/internal/models"
)

// MemoryEventsRepo supports the ingestion pipeline when the DB is disabled
// (tests, local dev).
type MemoryEventsRepo struct {
	mu     sync.RWMutex
	byID   map[string]models.Event
	events []models.Event
}

func NewMemoryEventsRepo() *MemoryEventsRepo {
	return &MemoryEventsRepo{byID: map[string]models.Event{}}
}

var _ EventsRepo = (*MemoryEventsRepo)(nil)

func (r *MemoryEventsRepo) Append(_ context.Context, ev *models.Event) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[ev.EventID]; ok {
		return false, nil
	}
	r.byID[ev.EventID] = *ev
	r.events = append(r.events, *ev)
	return true, nil
}

func (r *MemoryEventsRepo) History(_ context.Context, roomID string, limit int, start, end time.Time) ([]models.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.Event
	for _, ev := range r.events {
		if ev.RoomID != roomID {
			continue
		}
		if !start.IsZero() && ev.Timestamp.Before(start) {
			continue
		}
		if !end.IsZero() && ev.Timestamp.After(end) {
			continue
		}
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryEventsRepo) Stats(_ context.Context, roomID string, since time.Time) (*models.LuxStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	st := &models.LuxStats{RoomID: roomID}
	var sum float64
	for _, ev := range r.events {
		if ev.RoomID != roomID || ev.Timestamp.Before(since) {
			continue
		}
		if st.Readings == 0 || ev.Lux < st.MinLux {
			st.MinLux = ev.Lux
		}
		if st.Readings == 0 || ev.Lux > st.MaxLux {
			st.MaxLux = ev.Lux
		}
		sum += ev.Lux
		st.Readings++
	}
	if st.Readings > 0 {
		st.AvgLux = sum / float64(st.Readings)
	}
	return st, nil
}

func (r *MemoryEventsRepo) PurgeBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var kept []models.Event
	var purged int64
	for _, ev := range r.events {
		if ev.Timestamp.Before(cutoff) {
			delete(r.byID, ev.EventID)
			purged++
			continue
		}
		kept = append(kept, ev)
	}
	r.events = kept
	return purged, nil
}
