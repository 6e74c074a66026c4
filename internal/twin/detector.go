package twin

import (
	"context"
	"encoding/json"
	"math"

	"go.uber.org/zap"

	"luxtrack/internal/alerts"
	"luxtrack/internal/models"
)

// Detector compares each accepted reading against the twin's prediction and
// raises SENSOR_ANOMALY when the deviation exceeds the threshold. It runs
// as an independent bus subscriber and never sits on the persistence path.
type Detector struct {
	predictor Predictor
	threshold float64
	recorder  *alerts.Recorder
	logger    *zap.Logger
}

func NewDetector(predictor Predictor, threshold float64, recorder *alerts.Recorder, logger *zap.Logger) *Detector {
	if threshold <= 0 {
		threshold = 100
	}
	return &Detector{
		predictor: predictor,
		threshold: threshold,
		recorder:  recorder,
		logger:    logger,
	}
}

func (d *Detector) Name() string { return "anomaly_detector" }

func (d *Detector) HandleEvent(ctx context.Context, ev *models.Event) error {
	expected := d.predictor.Predict(ev.RoomID, ev.Timestamp)
	deviation := math.Abs(ev.Lux - expected)

	if deviation <= d.threshold {
		// Back within band: close the anomaly window if one is open.
		return d.recorder.Clear(ctx, ev.RoomID, models.AlertSensorAnomaly, "", ev.Timestamp)
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"expected_lux": expected,
		"observed_lux": ev.Lux,
		"deviation":    deviation,
		"threshold":    d.threshold,
	})

	created, err := d.recorder.Fire(ctx, &models.Alert{
		TriggeredAt:   ev.Timestamp,
		RoomID:        ev.RoomID,
		DeviceID:      ev.DeviceID,
		Type:          models.AlertSensorAnomaly,
		Severity:      models.SeverityWarn,
		LinkedEventID: ev.EventID,
		Payload:       string(payload),
	})
	if err != nil {
		return err
	}

	if created {
		d.logger.Info("Sensor anomaly detected",
			zap.String("room_id", ev.RoomID),
			zap.String("event_id", ev.EventID),
			zap.Float64("expected_lux", expected),
			zap.Float64("observed_lux", ev.Lux),
		)
	}
	return nil
}
