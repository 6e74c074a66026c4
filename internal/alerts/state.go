package alerts

import (
	"sort"
	"time"

	"luxtrack/internal/models"
)

// RoomTimerState is the explicit per-room timer record kept in the keyed
// state store. It is advanced only by incoming events; firing decisions are
// pure functions of (now, state) so a sweep and an event path evaluate
// identically. There are no ambient wall-clock callbacks.
type RoomTimerState struct {
	RoomID     string               `json:"room_id"`
	LightState models.LightState    `json:"light_state"`
	OnSince    *time.Time           `json:"on_since,omitempty"`
	LastLux    *float64             `json:"last_lux,omitempty"`
	LastLuxTS  *time.Time           `json:"last_lux_ts,omitempty"`
	Devices    map[string]time.Time `json:"devices,omitempty"` // device_id -> last event ts
}

func NewRoomTimerState(roomID string) *RoomTimerState {
	return &RoomTimerState{
		RoomID:     roomID,
		LightState: models.LightUnknown,
		Devices:    map[string]time.Time{},
	}
}

// Observe advances the state with one accepted event.
func (st *RoomTimerState) Observe(ev *models.Event) {
	if ev.LightState == models.LightOn && st.LightState != models.LightOn {
		t := ev.Timestamp
		st.OnSince = &t
	}
	if ev.LightState == models.LightOff {
		st.OnSince = nil
	}
	st.LightState = ev.LightState

	lux := ev.Lux
	ts := ev.Timestamp
	st.LastLux = &lux
	st.LastLuxTS = &ts

	if st.Devices == nil {
		st.Devices = map[string]time.Time{}
	}
	if seen, ok := st.Devices[ev.DeviceID]; !ok || ev.Timestamp.After(seen) {
		st.Devices[ev.DeviceID] = ev.Timestamp
	}
}

// StuckOnDue reports whether the light has been continuously ON for at
// least maxOn as of now.
func (st *RoomTimerState) StuckOnDue(now time.Time, maxOn time.Duration) bool {
	return st.OnSince != nil && now.Sub(*st.OnSince) >= maxOn
}

// OfflineDevice names a device whose silence exceeded the allowed window.
type OfflineDevice struct {
	DeviceID string
	LastSeen time.Time
	Silence  time.Duration
}

// OfflineDevices returns the devices silent for longer than window.
func (st *RoomTimerState) OfflineDevices(now time.Time, window time.Duration) []OfflineDevice {
	var out []OfflineDevice
	for id, seen := range st.Devices {
		if silence := now.Sub(seen); silence > window {
			out = append(out, OfflineDevice{DeviceID: id, LastSeen: seen, Silence: silence})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out
}

// IsSuddenDrop reports whether the incoming event is a sensor-fault-shaped
// lux collapse: the light stayed ON across both readings, the fall exceeds
// fraction of the previous value, and it happened within window. An
// intentional OFF transition never qualifies.
func (st *RoomTimerState) IsSuddenDrop(ev *models.Event, fraction float64, window time.Duration) bool {
	if ev.LightState != models.LightOn || st.LightState != models.LightOn {
		return false
	}
	if st.LastLux == nil || st.LastLuxTS == nil || *st.LastLux <= 0 {
		return false
	}
	elapsed := ev.Timestamp.Sub(*st.LastLuxTS)
	if elapsed < 0 || elapsed > window {
		return false
	}
	drop := (*st.LastLux - ev.Lux) / *st.LastLux
	return drop > fraction
}
