package models

import "time"

// Alert types.
const (
	AlertLightStuckOn  = "LIGHT_STUCK_ON"
	AlertSuddenLuxDrop = "SUDDEN_LUX_DROP"
	AlertDeviceOffline = "DEVICE_OFFLINE"
	AlertSensorAnomaly = "SENSOR_ANOMALY"
)

// Alert severities.
const (
	SeverityInfo     = "INFO"
	SeverityWarn     = "WARN"
	SeverityCritical = "CRITICAL"
)

// Alert statuses. While a condition remains continuously true, exactly one
// "open" alert exists per (room_id, type); a new row is only created after
// the condition clears and re-triggers.
const (
	AlertStatusOpen    = "open"
	AlertStatusCleared = "cleared"
)

// Alert is an immutable alert record created by the alert evaluator or the
// anomaly detector. Payload is a JSON document explaining the firing.
type Alert struct {
	AlertID       string     `json:"alert_id"`
	TriggeredAt   time.Time  `json:"triggered_at"`
	RoomID        string     `json:"room_id"`
	DeviceID      string     `json:"device_id"`
	Type          string     `json:"type"`
	Severity      string     `json:"severity"`
	LinkedEventID string     `json:"linked_event_id"`
	Payload       string     `json:"payload"`
	Status        string     `json:"status"`
	ClearedAt     *time.Time `json:"cleared_at,omitempty"`
}
