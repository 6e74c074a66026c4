package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"luxtrack/internal/bus"
	"luxtrack/internal/models"
	"luxtrack/internal/repository"
)

// ErrStorageUnavailable marks a durable-store write failure. The transport
// layer maps it to a retryable (5xx) response; devices retry with backoff.
var ErrStorageUnavailable = errors.New("storage unavailable")

// Publisher is the fan-out side of the event bus.
type Publisher interface {
	Publish(ctx context.Context, ev *models.Event) *bus.DispatchReport
}

// Service is the ingestion pipeline: validate, admit (durable log append,
// which doubles as the idempotency filter), then publish to the bus. The
// acknowledgment is returned once the event is durably logged; handlers run
// asynchronously and never delay the device response.
type Service struct {
	validator *Validator
	events    repository.EventsRepo
	publisher Publisher
	logger    *zap.Logger
	timeout   time.Duration
}

func NewService(
	validator *Validator,
	events repository.EventsRepo,
	publisher Publisher,
	logger *zap.Logger,
	timeout time.Duration,
) *Service {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Service{
		validator: validator,
		events:    events,
		publisher: publisher,
		logger:    logger,
		timeout:   timeout,
	}
}

// Ingest admits one raw device event. Duplicates are treated as success so
// device retries on 5xx are always safe. The returned error is either a
// *ValidationError or wraps ErrStorageUnavailable.
func (s *Service) Ingest(ctx context.Context, raw *models.RawEvent) (*models.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	now := time.Now().UTC()

	ev, err := s.validator.Validate(raw, now)
	if err != nil {
		s.logger.Debug("Event rejected",
			zap.String("event_id", raw.EventID),
			zap.Error(err),
		)
		return nil, err
	}

	inserted, err := s.events.Append(ctx, ev)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if !inserted {
		// Already admitted: the device is retrying an event we own. Do not
		// re-publish, or consumers would double-process it.
		s.logger.Debug("Duplicate event admitted as no-op",
			zap.String("event_id", ev.EventID),
			zap.String("room_id", ev.RoomID),
		)
		return &models.Receipt{EventID: ev.EventID, ProcessedAt: now, Duplicate: true}, nil
	}

	report := s.publisher.Publish(ctx, ev)
	if len(report.DeadLettered) > 0 {
		s.logger.Warn("Dispatch incomplete",
			zap.String("event_id", ev.EventID),
			zap.Strings("dead_lettered", report.DeadLettered),
		)
	}

	return &models.Receipt{EventID: ev.EventID, ProcessedAt: now}, nil
}
