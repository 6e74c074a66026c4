package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"luxtrack/internal/models"
)

func testEvent(id string, ts time.Time) *models.Event {
	return &models.Event{
		EventID:       id,
		SchemaVersion: 1,
		Timestamp:     ts,
		RoomID:        "room-101",
		DeviceID:      "ls-100-0001",
		LightState:    models.LightOn,
		Lux:           342.5,
		Meta: models.EventMeta{
			BatteryPct:      87,
			SignalDBM:       -60,
			FirmwareVersion: "2.4.1",
			PowerMW:         900,
		},
	}
}

func TestPostgresEventsRepo_Append(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgresEventsRepo(db)
	ts := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	ev := testEvent("evt_20260831_000001", ts)

	mock.ExpectExec("INSERT INTO events").
		WithArgs(
			ev.EventID, ev.SchemaVersion, ev.Timestamp, ev.RoomID, ev.DeviceID,
			"ON", ev.Lux, ev.Meta.BatteryPct, ev.Meta.SignalDBM,
			ev.Meta.FirmwareVersion, ev.Meta.PowerMW, ev.Meta.Motion,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	inserted, err := repo.Append(context.Background(), ev)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresEventsRepo_AppendDuplicate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgresEventsRepo(db)
	ev := testEvent("evt_20260831_000001", time.Now().UTC())

	// ON CONFLICT DO NOTHING reports zero affected rows for a replay.
	mock.ExpectExec("INSERT INTO events").
		WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err := repo.Append(context.Background(), ev)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresEventsRepo_History(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgresEventsRepo(db)
	start := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"event_id", "schema_version", "ts", "room_id", "device_id", "light_state",
		"lux", "battery_pct", "signal_dbm", "firmware_version", "power_mw", "motion",
	}).
		AddRow("evt_20260831_000002", 1, start.Add(2*time.Hour), "room-101", "ls-100-0001", "OFF", 12.0, 86, -61, "2.4.1", 0.0, false).
		AddRow("evt_20260831_000001", 1, start.Add(time.Hour), "room-101", "ls-100-0001", "ON", 342.5, 87, -60, "2.4.1", 900.0, false)

	mock.ExpectQuery("SELECT (.+) FROM events WHERE room_id").
		WithArgs("room-101", start, 50).
		WillReturnRows(rows)

	events, err := repo.History(context.Background(), "room-101", 50, start, time.Time{})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "evt_20260831_000002", events[0].EventID)
	assert.Equal(t, models.LightOff, events[0].LightState)
	assert.Equal(t, 342.5, events[1].Lux)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresEventsRepo_Stats(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgresEventsRepo(db)
	since := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT COALESCE").
		WithArgs("room-101", since).
		WillReturnRows(sqlmock.NewRows([]string{"avg", "min", "max", "count"}).
			AddRow(177.25, 12.0, 342.5, 2))

	st, err := repo.Stats(context.Background(), "room-101", since)
	require.NoError(t, err)
	assert.Equal(t, 177.25, st.AvgLux)
	assert.Equal(t, 12.0, st.MinLux)
	assert.Equal(t, 342.5, st.MaxLux)
	assert.Equal(t, int64(2), st.Readings)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresEventsRepo_PurgeBefore(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgresEventsRepo(db)
	cutoff := time.Date(2026, 6, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec("DELETE FROM events").
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 420))

	purged, err := repo.PurgeBefore(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(420), purged)
	assert.NoError(t, mock.ExpectationsWereMet())
}
