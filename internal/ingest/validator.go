package ingest

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"luxtrack/internal/models"
)

// Constraint names reported to the caller. The first violated field wins;
// messages always name the field and constraint, never a generic error.
const (
	ConstraintRequired = "required"
	ConstraintRange    = "range"
	ConstraintPattern  = "pattern"
	ConstraintEnum     = "enum"
	ConstraintSkew     = "skew"
)

// Canonical lux range. Legacy 16-bit payloads (1..65535) fall inside it and
// pass through unchanged.
const (
	LuxMin = 0.0
	LuxMax = 120000.0
)

// ValidationError names the offending field and the violated constraint.
type ValidationError struct {
	Field      string `json:"field"`
	Constraint string `json:"constraint"`
	Message    string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: field %s violates %s: %s", e.Field, e.Constraint, e.Message)
}

func invalid(field, constraint, message string) *ValidationError {
	return &ValidationError{Field: field, Constraint: constraint, Message: message}
}

var (
	eventIDPattern    = regexp.MustCompile(`^evt_\d{8}_\d+$`)
	deviceIDPattern   = regexp.MustCompile(`^ls-\d{3}-\d{4}$`)
	roomIDPattern     = regexp.MustCompile(`^room-\d{3}$`)
	legacyRoomPattern = regexp.MustCompile(`^[A-Z]{2,4}-(\d{1,3})$`)
)

// NormalizeRoomID maps legacy room identifiers (site-prefixed, e.g.
// "CTC-114") onto the canonical room-NNN form. Canonical IDs pass through.
func NormalizeRoomID(roomID string) string {
	if roomIDPattern.MatchString(roomID) {
		return roomID
	}
	if m := legacyRoomPattern.FindStringSubmatch(roomID); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil && n < 1000 {
			return fmt.Sprintf("room-%03d", n)
		}
	}
	return roomID
}

// Validator checks raw device events against structural and business rules.
// It is a pure function of (raw, now): no I/O, no hidden state, safe for
// concurrent use.
type Validator struct {
	skewTolerance time.Duration
}

func NewValidator(skewTolerance time.Duration) *Validator {
	return &Validator{skewTolerance: skewTolerance}
}

// Validate normalizes legacy aliases, applies every rule, and returns the
// canonical event or the first violation.
func (v *Validator) Validate(raw *models.RawEvent, now time.Time) (*models.Event, error) {
	if raw.EventID == "" {
		return nil, invalid("event_id", ConstraintRequired, "event_id is required")
	}
	if !eventIDPattern.MatchString(raw.EventID) {
		return nil, invalid("event_id", ConstraintPattern, "event_id must match evt_<date>_<seq>")
	}

	if raw.Timestamp == "" {
		return nil, invalid("timestamp", ConstraintRequired, "timestamp is required")
	}
	ts, err := time.Parse(time.RFC3339, raw.Timestamp)
	if err != nil {
		return nil, invalid("timestamp", ConstraintPattern, "timestamp must be ISO-8601 UTC")
	}
	ts = ts.UTC()
	if skew := ts.Sub(now); skew > v.skewTolerance || skew < -v.skewTolerance {
		return nil, invalid("timestamp", ConstraintSkew,
			fmt.Sprintf("timestamp outside +/-%s of server time", v.skewTolerance))
	}

	if raw.RoomID == "" {
		return nil, invalid("room_id", ConstraintRequired, "room_id is required")
	}
	roomID := NormalizeRoomID(raw.RoomID)
	if !roomIDPattern.MatchString(roomID) {
		return nil, invalid("room_id", ConstraintPattern, "room_id must match room-NNN")
	}

	if raw.DeviceID == "" {
		return nil, invalid("device_id", ConstraintRequired, "device_id is required")
	}
	if !deviceIDPattern.MatchString(raw.DeviceID) {
		return nil, invalid("device_id", ConstraintPattern, "device_id must match ls-NNN-NNNN")
	}

	// "state" is the legacy field name for light_state.
	lightState := raw.LightState
	if lightState == "" {
		lightState = raw.State
	}
	if lightState == "" {
		return nil, invalid("light_state", ConstraintRequired, "light_state is required")
	}
	if lightState != string(models.LightOn) && lightState != string(models.LightOff) {
		return nil, invalid("light_state", ConstraintEnum, "light_state must be ON or OFF")
	}

	if raw.Lux == nil {
		return nil, invalid("lux", ConstraintRequired, "lux is required")
	}
	if *raw.Lux < LuxMin || *raw.Lux > LuxMax {
		return nil, invalid("lux", ConstraintRange,
			fmt.Sprintf("lux must be within [%g,%g]", LuxMin, LuxMax))
	}

	meta, verr := validateMeta(raw.Meta)
	if verr != nil {
		return nil, verr
	}

	schemaVersion := raw.SchemaVersion
	if schemaVersion == 0 {
		schemaVersion = 1
	}

	return &models.Event{
		EventID:       raw.EventID,
		SchemaVersion: schemaVersion,
		Timestamp:     ts,
		RoomID:        roomID,
		DeviceID:      raw.DeviceID,
		LightState:    models.LightState(lightState),
		Lux:           *raw.Lux,
		Meta:          meta,
	}, nil
}

func validateMeta(raw *models.RawMeta) (models.EventMeta, *ValidationError) {
	var meta models.EventMeta
	if raw == nil {
		return meta, nil
	}

	if raw.BatteryPct != nil {
		if *raw.BatteryPct < 0 || *raw.BatteryPct > 100 {
			return meta, invalid("meta.battery_pct", ConstraintRange, "battery_pct must be within [0,100]")
		}
		meta.BatteryPct = *raw.BatteryPct
	}
	if raw.SignalDBM != nil {
		if *raw.SignalDBM < -100 || *raw.SignalDBM > 0 {
			return meta, invalid("meta.signal_dbm", ConstraintRange, "signal_dbm must be within [-100,0]")
		}
		meta.SignalDBM = *raw.SignalDBM
	}
	if raw.PowerMW != nil {
		if *raw.PowerMW < 0 {
			return meta, invalid("meta.power_mw", ConstraintRange, "power_mw must be >= 0")
		}
		meta.PowerMW = *raw.PowerMW
	}
	if raw.Motion != nil {
		meta.Motion = *raw.Motion
	}
	meta.FirmwareVersion = raw.FirmwareVersion
	return meta, nil
}
