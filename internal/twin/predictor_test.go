package twin

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func atHour(hour, minute int) time.Time {
	return time.Date(2026, 8, 31, hour, minute, 0, 0, time.UTC)
}

func TestDaylightCurve(t *testing.T) {
	curve := NewDaylightCurve(2, 450, 7, 18)

	// Night floor outside sunrise..sunset.
	assert.Equal(t, 2.0, curve.Predict("room-101", atHour(3, 0)))
	assert.Equal(t, 2.0, curve.Predict("room-101", atHour(22, 0)))

	// Peak at midday, near the floor at the edges.
	midday := curve.Predict("room-101", atHour(12, 30))
	assert.InDelta(t, 450, midday, 1)
	assert.InDelta(t, 2, curve.Predict("room-101", atHour(7, 0)), 0.5)
	assert.InDelta(t, 2, curve.Predict("room-101", atHour(18, 0)), 0.5)

	// Monotonically brighter from sunrise toward midday.
	morning := curve.Predict("room-101", atHour(9, 0))
	lateMorning := curve.Predict("room-101", atHour(11, 0))
	assert.Greater(t, morning, 2.0)
	assert.Greater(t, lateMorning, morning)
	assert.Greater(t, midday, lateMorning)
}

func TestDaylightCurve_PeakHourInMiddayWindow(t *testing.T) {
	curve := NewDaylightCurve(2, 450, 7, 18)

	peakHour, peak := 0, 0.0
	for h := 0; h < 24; h++ {
		if v := curve.Predict("room-101", atHour(h, 0)); v > peak {
			peakHour, peak = h, v
		}
	}
	assert.GreaterOrEqual(t, peakHour, 10)
	assert.LessOrEqual(t, peakHour, 14)
}

func TestHourlyProfile(t *testing.T) {
	var shared [24]float64
	shared[12] = 300
	shared[3] = 5

	p := NewHourlyProfile(shared)
	assert.Equal(t, 300.0, p.Predict("room-101", atHour(12, 45)))
	assert.Equal(t, 5.0, p.Predict("room-101", atHour(3, 10)))

	var lab [24]float64
	lab[12] = 800
	p.SetRoom("room-204", lab)

	// Per-room profile wins; other rooms keep the shared one.
	assert.Equal(t, 800.0, p.Predict("room-204", atHour(12, 0)))
	assert.Equal(t, 300.0, p.Predict("room-101", atHour(12, 0)))
}
