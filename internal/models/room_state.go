package models

import "time"

// RoomState is the per-room current-state projection. last_ts is
// monotonically non-decreasing across successful updates; late-arriving
// events are logged but never regress this row.
type RoomState struct {
	RoomID         string     `json:"room_id"`
	LightState     LightState `json:"light_state"`
	Lux            float64    `json:"lux"`
	PowerMW        float64    `json:"power_mw"`
	MotionDetected bool       `json:"motion_detected"`
	LastEventID    string     `json:"last_event_id"`
	LastTS         time.Time  `json:"last_ts"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// LuxStats summarizes readings over the recent stats window.
type LuxStats struct {
	RoomID   string  `json:"room_id"`
	AvgLux   float64 `json:"avg_lux"`
	MinLux   float64 `json:"min_lux"`
	MaxLux   float64 `json:"max_lux"`
	Readings int64   `json:"readings"`
}
