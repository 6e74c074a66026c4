package models

import "time"

// LightState is the reported state of the room's light.
type LightState string

const (
	LightOn      LightState = "ON"
	LightOff     LightState = "OFF"
	LightUnknown LightState = "UNKNOWN"
)

// EventMeta carries the device-health portion of a reading.
type EventMeta struct {
	BatteryPct      int     `json:"battery_pct"`
	SignalDBM       int     `json:"signal_dbm"`
	FirmwareVersion string  `json:"firmware_version"`
	PowerMW         float64 `json:"power_mw"`
	Motion          bool    `json:"motion"`
}

// Event is one immutable telemetry reading, post-validation.
type Event struct {
	EventID       string     `json:"event_id"`
	SchemaVersion int        `json:"schema_version"`
	Timestamp     time.Time  `json:"timestamp"`
	RoomID        string     `json:"room_id"`
	DeviceID      string     `json:"device_id"`
	LightState    LightState `json:"light_state"`
	Lux           float64    `json:"lux"`
	Meta          EventMeta  `json:"meta"`
}

// RawEvent is the untrusted wire document posted by devices.
// "state" is the legacy alias some firmware versions send for light_state.
type RawEvent struct {
	EventID       string   `json:"event_id"`
	SchemaVersion int      `json:"schema_version"`
	Timestamp     string   `json:"timestamp"`
	RoomID        string   `json:"room_id"`
	DeviceID      string   `json:"device_id"`
	LightState    string   `json:"light_state"`
	State         string   `json:"state"`
	Lux           *float64 `json:"lux"`
	Meta          *RawMeta `json:"meta"`
}

// RawMeta mirrors EventMeta on the wire; all fields optional.
type RawMeta struct {
	BatteryPct      *int     `json:"battery_pct"`
	SignalDBM       *int     `json:"signal_dbm"`
	FirmwareVersion string   `json:"firmware_version"`
	PowerMW         *float64 `json:"power_mw"`
	Motion          *bool    `json:"motion"`
}

// Receipt is the ingestion acknowledgment returned to the device once the
// event is durably logged. Duplicate means the event_id was already admitted;
// device retries treat it as success.
type Receipt struct {
	EventID     string    `json:"event_id"`
	ProcessedAt time.Time `json:"processed_at"`
	Duplicate   bool      `json:"duplicate,omitempty"`
}

// DeadLetter records a delivery a handler could not process after
// exhausting retries.
type DeadLetter struct {
	ID        string    `json:"id"`
	Handler   string    `json:"handler"`
	EventID   string    `json:"event_id"`
	Payload   string    `json:"payload"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}
