package alerts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"luxtrack/internal/models"
	"luxtrack/internal/repository"
)

// Notifier delivers a created alert downstream. Delivery is best-effort;
// only the durable record is guaranteed.
type Notifier interface {
	Notify(ctx context.Context, a *models.Alert)
}

// Recorder enforces the open-window rule for alert creation: while a
// condition stays continuously true, exactly one open alert exists per
// (room, type) — per (room, type, device) for DEVICE_OFFLINE, since each
// device in a room runs its own silence timer. A new record is only written
// after the previous window cleared.
type Recorder struct {
	repo     repository.AlertsRepo
	notifier Notifier
	logger   *zap.Logger
}

func NewRecorder(repo repository.AlertsRepo, notifier Notifier, logger *zap.Logger) *Recorder {
	return &Recorder{repo: repo, notifier: notifier, logger: logger}
}

// Fire creates an alert unless one is already open for its window.
// Returns whether a new record was created.
func (r *Recorder) Fire(ctx context.Context, a *models.Alert) (bool, error) {
	_, err := r.repo.FindOpen(ctx, a.RoomID, a.Type, windowDevice(a.Type, a.DeviceID))
	if err == nil {
		return false, nil // window still open, suppress
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return false, fmt.Errorf("failed to look up open alert: %w", err)
	}

	if a.AlertID == "" {
		a.AlertID = uuid.New().String()
	}
	a.Status = models.AlertStatusOpen
	if a.TriggeredAt.IsZero() {
		a.TriggeredAt = time.Now().UTC()
	}

	if err := r.repo.Create(ctx, a); err != nil {
		return false, fmt.Errorf("failed to record alert: %w", err)
	}

	r.logger.Info("Alert fired",
		zap.String("alert_id", a.AlertID),
		zap.String("room_id", a.RoomID),
		zap.String("type", a.Type),
		zap.String("severity", a.Severity),
		zap.String("linked_event_id", a.LinkedEventID),
	)

	if r.notifier != nil {
		r.notifier.Notify(ctx, a)
	}
	return true, nil
}

// Clear closes the open window for (room, type). deviceID restricts the
// clear to the window of that device; empty matches any.
func (r *Recorder) Clear(ctx context.Context, roomID, alertType, deviceID string, at time.Time) error {
	open, err := r.repo.FindOpen(ctx, roomID, alertType, deviceID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up open alert: %w", err)
	}

	if err := r.repo.Clear(ctx, open.AlertID, at); err != nil {
		return fmt.Errorf("failed to clear alert: %w", err)
	}

	r.logger.Info("Alert cleared",
		zap.String("alert_id", open.AlertID),
		zap.String("room_id", roomID),
		zap.String("type", alertType),
	)
	return nil
}

// windowDevice picks the window key for the alert type: DEVICE_OFFLINE
// windows are per device, every other type has one window per room.
func windowDevice(alertType, deviceID string) string {
	if alertType == models.AlertDeviceOffline {
		return deviceID
	}
	return ""
}
