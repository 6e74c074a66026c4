package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"luxtrack/internal/models"
)

var testNow = time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

func luxPtr(v float64) *float64 { return &v }

func validRaw() *models.RawEvent {
	return &models.RawEvent{
		EventID:       "evt_20260831_000042",
		SchemaVersion: 1,
		Timestamp:     testNow.Add(-10 * time.Second).Format(time.RFC3339),
		RoomID:        "room-101",
		DeviceID:      "ls-100-0001",
		LightState:    "ON",
		Lux:           luxPtr(342.5),
		Meta: &models.RawMeta{
			BatteryPct: intPtr(87),
			SignalDBM:  intPtr(-60),
			PowerMW:    luxPtr(900),
		},
	}
}

func intPtr(v int) *int { return &v }

func TestValidate_Accepts(t *testing.T) {
	v := NewValidator(5 * time.Minute)

	ev, err := v.Validate(validRaw(), testNow)
	require.NoError(t, err)
	assert.Equal(t, "evt_20260831_000042", ev.EventID)
	assert.Equal(t, "room-101", ev.RoomID)
	assert.Equal(t, models.LightOn, ev.LightState)
	assert.Equal(t, 342.5, ev.Lux)
	assert.Equal(t, 87, ev.Meta.BatteryPct)
	assert.True(t, ev.Timestamp.Before(testNow))
}

func TestValidate_IsDeterministic(t *testing.T) {
	v := NewValidator(5 * time.Minute)

	first, err := v.Validate(validRaw(), testNow)
	require.NoError(t, err)
	second, err := v.Validate(validRaw(), testNow)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestValidate_LuxOutOfRange(t *testing.T) {
	v := NewValidator(5 * time.Minute)

	raw := validRaw()
	raw.Lux = luxPtr(150000)

	_, err := v.Validate(raw, testNow)
	require.Error(t, err)

	verr, ok := err.(*ValidationError)
	require.True(t, ok)
	assert.Equal(t, "lux", verr.Field)
	assert.Equal(t, ConstraintRange, verr.Constraint)
}

func TestValidate_FirstViolationWins(t *testing.T) {
	v := NewValidator(5 * time.Minute)

	tests := []struct {
		name       string
		mutate     func(raw *models.RawEvent)
		field      string
		constraint string
	}{
		{
			name:       "missing event_id",
			mutate:     func(raw *models.RawEvent) { raw.EventID = "" },
			field:      "event_id",
			constraint: ConstraintRequired,
		},
		{
			name:       "malformed event_id",
			mutate:     func(raw *models.RawEvent) { raw.EventID = "reading-42" },
			field:      "event_id",
			constraint: ConstraintPattern,
		},
		{
			name:       "unparseable timestamp",
			mutate:     func(raw *models.RawEvent) { raw.Timestamp = "yesterday" },
			field:      "timestamp",
			constraint: ConstraintPattern,
		},
		{
			name: "timestamp too far ahead",
			mutate: func(raw *models.RawEvent) {
				raw.Timestamp = testNow.Add(10 * time.Minute).Format(time.RFC3339)
			},
			field:      "timestamp",
			constraint: ConstraintSkew,
		},
		{
			name:       "missing room_id",
			mutate:     func(raw *models.RawEvent) { raw.RoomID = "" },
			field:      "room_id",
			constraint: ConstraintRequired,
		},
		{
			name:       "bad room_id",
			mutate:     func(raw *models.RawEvent) { raw.RoomID = "basement" },
			field:      "room_id",
			constraint: ConstraintPattern,
		},
		{
			name:       "bad device_id",
			mutate:     func(raw *models.RawEvent) { raw.DeviceID = "sensor-1" },
			field:      "device_id",
			constraint: ConstraintPattern,
		},
		{
			name: "light_state not in enum",
			mutate: func(raw *models.RawEvent) {
				raw.LightState = "DIMMED"
			},
			field:      "light_state",
			constraint: ConstraintEnum,
		},
		{
			name:       "missing lux",
			mutate:     func(raw *models.RawEvent) { raw.Lux = nil },
			field:      "lux",
			constraint: ConstraintRequired,
		},
		{
			name:       "negative battery",
			mutate:     func(raw *models.RawEvent) { raw.Meta.BatteryPct = intPtr(-1) },
			field:      "meta.battery_pct",
			constraint: ConstraintRange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := validRaw()
			tt.mutate(raw)

			_, err := v.Validate(raw, testNow)
			require.Error(t, err)

			verr, ok := err.(*ValidationError)
			require.True(t, ok, "expected *ValidationError, got %T", err)
			assert.Equal(t, tt.field, verr.Field)
			assert.Equal(t, tt.constraint, verr.Constraint)
		})
	}
}

func TestValidate_LegacyAliases(t *testing.T) {
	v := NewValidator(5 * time.Minute)

	raw := validRaw()
	raw.RoomID = "CTC-114"
	raw.LightState = ""
	raw.State = "OFF"

	ev, err := v.Validate(raw, testNow)
	require.NoError(t, err)
	assert.Equal(t, "room-114", ev.RoomID)
	assert.Equal(t, models.LightOff, ev.LightState)
}

func TestNormalizeRoomID(t *testing.T) {
	assert.Equal(t, "room-101", NormalizeRoomID("room-101"))
	assert.Equal(t, "room-114", NormalizeRoomID("CTC-114"))
	assert.Equal(t, "room-007", NormalizeRoomID("LAB-7"))
	assert.Equal(t, "hallway", NormalizeRoomID("hallway"))
}
