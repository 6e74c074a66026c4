package twin

import (
	"context"
	"fmt"
	"math"
	"time"

	"luxtrack/internal/repository"
)

// ModelReport summarizes how well the twin tracked observed readings over a
// window: error metrics, fraction within the tolerance band, and a sanity
// check that the predicted peak lands around midday.
type ModelReport struct {
	RoomID             string    `json:"room_id"`
	Start              time.Time `json:"start"`
	End                time.Time `json:"end"`
	Count              int       `json:"count"`
	MAE                float64   `json:"mae"`
	RMSE               float64   `json:"rmse"`
	WithinTolerancePct float64   `json:"within_tol_percent"`
	ToleranceLux       float64   `json:"tol_lux"`
	PeakHour           int       `json:"peak_hour_pred"`
	PeakLux            float64   `json:"peak_pred_lux"`
	PeakHourOK         bool      `json:"peak_hour_ok"`
	OverThreshold      int       `json:"over_threshold"`
}

// EvaluateModel replays the event log for the window against the predictor.
func EvaluateModel(
	ctx context.Context,
	events repository.EventsRepo,
	predictor Predictor,
	roomID string,
	start, end time.Time,
	toleranceLux float64,
) (*ModelReport, error) {
	log, err := events.History(ctx, roomID, 0, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}
	if len(log) == 0 {
		return nil, repository.ErrNotFound
	}

	report := &ModelReport{
		RoomID:       roomID,
		Start:        start,
		End:          end,
		Count:        len(log),
		ToleranceLux: toleranceLux,
		PeakHour:     -1,
	}

	var sumAbs, sumSq float64
	var within, over int

	for _, ev := range log {
		pred := predictor.Predict(roomID, ev.Timestamp)
		errVal := ev.Lux - pred

		sumAbs += math.Abs(errVal)
		sumSq += errVal * errVal
		if math.Abs(errVal) <= toleranceLux {
			within++
		} else {
			over++
		}

		if pred > report.PeakLux || report.PeakHour < 0 {
			report.PeakHour = ev.Timestamp.UTC().Hour()
			report.PeakLux = pred
		}
	}

	n := float64(len(log))
	report.MAE = sumAbs / n
	report.RMSE = math.Sqrt(sumSq / n)
	report.WithinTolerancePct = 100.0 * float64(within) / n
	report.OverThreshold = over
	// Midday window sanity check.
	report.PeakHourOK = report.PeakHour >= 10 && report.PeakHour <= 14

	return report, nil
}
