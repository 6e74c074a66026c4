package twin

import (
	"math"
	"time"
)

// Predictor is the digital-twin capability: expected lux for a room at a
// point in time. Strategies are swappable; the rest of the system depends
// only on this interface.
type Predictor interface {
	Predict(roomID string, ts time.Time) float64
}

// DaylightCurve predicts with a smooth day curve: night lux outside
// sunrise..sunset, a sine between them peaking at midday.
type DaylightCurve struct {
	NightLux    float64
	PeakLux     float64
	SunriseHour float64
	SunsetHour  float64
}

func NewDaylightCurve(nightLux, peakLux, sunriseHour, sunsetHour float64) *DaylightCurve {
	return &DaylightCurve{
		NightLux:    nightLux,
		PeakLux:     peakLux,
		SunriseHour: sunriseHour,
		SunsetHour:  sunsetHour,
	}
}

var _ Predictor = (*DaylightCurve)(nil)

func (c *DaylightCurve) Predict(_ string, ts time.Time) float64 {
	h := fractionalHour(ts.UTC())
	if h < c.SunriseHour || h > c.SunsetHour {
		return c.NightLux
	}

	span := c.SunsetHour - c.SunriseHour
	x := (h - c.SunriseHour) / span
	daylightShape := math.Sin(math.Pi * x) // 0 at sunrise/sunset, 1 at midday

	lux := c.NightLux + (c.PeakLux-c.NightLux)*daylightShape
	return math.Max(0, lux)
}

// HourlyProfile predicts from per-hour historical averages, per room when
// available, falling back to a shared profile.
type HourlyProfile struct {
	Default [24]float64
	Rooms   map[string][24]float64
}

func NewHourlyProfile(defaultProfile [24]float64) *HourlyProfile {
	return &HourlyProfile{
		Default: defaultProfile,
		Rooms:   map[string][24]float64{},
	}
}

var _ Predictor = (*HourlyProfile)(nil)

// SetRoom installs a learned per-room profile.
func (p *HourlyProfile) SetRoom(roomID string, profile [24]float64) {
	p.Rooms[roomID] = profile
}

func (p *HourlyProfile) Predict(roomID string, ts time.Time) float64 {
	profile := p.Default
	if room, ok := p.Rooms[roomID]; ok {
		profile = room
	}
	return profile[ts.UTC().Hour()]
}

func fractionalHour(ts time.Time) float64 {
	return float64(ts.Hour()) + float64(ts.Minute())/60.0 + float64(ts.Second())/3600.0
}
