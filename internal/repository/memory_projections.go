package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"luxtrack/internal/models"
)

// Memory implementations of the projection repositories, for tests and
// DB-disabled runs. Same conditional/increment semantics as the postgres
// implementations.

type MemoryRoomStateRepo struct {
	mu     sync.RWMutex
	states map[string]models.RoomState
}

func NewMemoryRoomStateRepo() *MemoryRoomStateRepo {
	return &MemoryRoomStateRepo{states: map[string]models.RoomState{}}
}

var _ RoomStateRepo = (*MemoryRoomStateRepo)(nil)

func (r *MemoryRoomStateRepo) Upsert(_ context.Context, st *models.RoomState) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.states[st.RoomID]; ok && cur.LastTS.After(st.LastTS) {
		return false, nil
	}
	r.states[st.RoomID] = *st
	return true, nil
}

func (r *MemoryRoomStateRepo) Get(_ context.Context, roomID string) (*models.RoomState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	st, ok := r.states[roomID]
	if !ok {
		return nil, ErrNotFound
	}
	return &st, nil
}

type MemoryDailyUsageRepo struct {
	mu      sync.RWMutex
	rows    map[string]models.DailyUsage // room_id + "|" + day
	applied map[string]bool              // event_id -> deltas folded
}

func NewMemoryDailyUsageRepo() *MemoryDailyUsageRepo {
	return &MemoryDailyUsageRepo{
		rows:    map[string]models.DailyUsage{},
		applied: map[string]bool{},
	}
}

var _ DailyUsageRepo = (*MemoryDailyUsageRepo)(nil)

func usageKey(roomID, day string) string { return roomID + "|" + day }

func (r *MemoryDailyUsageRepo) AddDelta(_ context.Context, delta *UsageDelta) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addDeltaLocked(delta)
	return nil
}

func (r *MemoryDailyUsageRepo) ApplyDeltas(_ context.Context, eventID string, deltas []*UsageDelta) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.applied[eventID] {
		return false, nil
	}
	r.applied[eventID] = true
	for _, delta := range deltas {
		r.addDeltaLocked(delta)
	}
	return true, nil
}

func (r *MemoryDailyUsageRepo) addDeltaLocked(delta *UsageDelta) {
	key := usageKey(delta.RoomID, delta.Day)
	row := r.rows[key]
	row.RoomID = delta.RoomID
	row.Day = delta.Day
	row.OnSeconds += delta.OnSeconds
	row.OffSeconds += delta.OffSeconds
	row.LuxSum += delta.LuxSum
	row.LuxCount += delta.LuxCount
	row.EnergyMWh += delta.EnergyMWh
	r.rows[key] = row
}

func (r *MemoryDailyUsageRepo) Get(_ context.Context, roomID, day string) (*models.DailyUsage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	row, ok := r.rows[usageKey(roomID, day)]
	if !ok {
		return nil, ErrNotFound
	}
	return &row, nil
}

func (r *MemoryDailyUsageRepo) SumOnSeconds(_ context.Context, roomID, fromDay, toDay string) (float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var total float64
	for _, row := range r.rows {
		if row.RoomID == roomID && row.Day >= fromDay && row.Day <= toDay {
			total += row.OnSeconds
		}
	}
	return total, nil
}

type MemoryAlertsRepo struct {
	mu     sync.RWMutex
	alerts []models.Alert
}

func NewMemoryAlertsRepo() *MemoryAlertsRepo {
	return &MemoryAlertsRepo{}
}

var _ AlertsRepo = (*MemoryAlertsRepo)(nil)

func (r *MemoryAlertsRepo) Create(_ context.Context, a *models.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, *a)
	return nil
}

func (r *MemoryAlertsRepo) FindOpen(_ context.Context, roomID, alertType, deviceID string) (*models.Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := len(r.alerts) - 1; i >= 0; i-- {
		a := r.alerts[i]
		if a.RoomID != roomID || a.Type != alertType || a.Status != models.AlertStatusOpen {
			continue
		}
		if deviceID != "" && a.DeviceID != deviceID {
			continue
		}
		return &a, nil
	}
	return nil, ErrNotFound
}

func (r *MemoryAlertsRepo) Clear(_ context.Context, alertID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.alerts {
		if r.alerts[i].AlertID == alertID && r.alerts[i].Status == models.AlertStatusOpen {
			t := at
			r.alerts[i].Status = models.AlertStatusCleared
			r.alerts[i].ClearedAt = &t
		}
	}
	return nil
}

func (r *MemoryAlertsRepo) ListRecent(_ context.Context, roomID string, limit int) ([]models.Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.Alert
	for _, a := range r.alerts {
		if a.RoomID == roomID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].TriggeredAt.After(out[j].TriggeredAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// All returns every stored alert (test helper).
func (r *MemoryAlertsRepo) All() []models.Alert {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Alert, len(r.alerts))
	copy(out, r.alerts)
	return out
}

type MemoryRoomsRepo struct {
	mu    sync.RWMutex
	rooms map[string]time.Time
}

func NewMemoryRoomsRepo() *MemoryRoomsRepo {
	return &MemoryRoomsRepo{rooms: map[string]time.Time{}}
}

var _ RoomsRepo = (*MemoryRoomsRepo)(nil)

func (r *MemoryRoomsRepo) Ensure(_ context.Context, roomID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[roomID]; !ok {
		r.rooms[roomID] = time.Now().UTC()
	}
	return nil
}

func (r *MemoryRoomsRepo) Exists(_ context.Context, roomID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[roomID]
	return ok, nil
}

func (r *MemoryRoomsRepo) List(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

type MemoryDeadLettersRepo struct {
	mu      sync.Mutex
	letters []models.DeadLetter
}

func NewMemoryDeadLettersRepo() *MemoryDeadLettersRepo {
	return &MemoryDeadLettersRepo{}
}

var _ DeadLettersRepo = (*MemoryDeadLettersRepo)(nil)

func (r *MemoryDeadLettersRepo) Insert(_ context.Context, dl *models.DeadLetter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.letters = append(r.letters, *dl)
	return nil
}

// All returns every recorded dead letter (test helper).
func (r *MemoryDeadLettersRepo) All() []models.DeadLetter {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.DeadLetter, len(r.letters))
	copy(out, r.letters)
	return out
}
