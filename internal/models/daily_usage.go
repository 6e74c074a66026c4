package models

// DayFormat is the layout of DailyUsage.Day keys (UTC calendar day).
const DayFormat = "2006-01-02"

// DailyUsage accumulates per-room usage for one UTC calendar day.
// Invariant: OnSeconds + OffSeconds never exceeds the elapsed seconds of
// the day.
type DailyUsage struct {
	RoomID     string  `json:"room_id"`
	Day        string  `json:"day"`
	OnSeconds  float64 `json:"on_seconds"`
	OffSeconds float64 `json:"off_seconds"`
	LuxSum     float64 `json:"lux_sum"`
	LuxCount   int64   `json:"lux_count"`
	EnergyMWh  float64 `json:"energy_mwh"`
}

// AvgLux is the running average folded from LuxSum/LuxCount.
func (u *DailyUsage) AvgLux() float64 {
	if u.LuxCount == 0 {
		return 0
	}
	return u.LuxSum / float64(u.LuxCount)
}

// UsageStatistics rolls daily on-seconds up to week and month windows.
type UsageStatistics struct {
	RoomID         string  `json:"room_id"`
	DailySeconds   float64 `json:"daily"`
	WeeklySeconds  float64 `json:"weekly"`
	MonthlySeconds float64 `json:"monthly"`
}
