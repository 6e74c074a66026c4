package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"luxtrack/internal/bus"
	"luxtrack/internal/models"
	"luxtrack/internal/repository"
)

type capturingPublisher struct {
	published []*models.Event
}

func (p *capturingPublisher) Publish(_ context.Context, ev *models.Event) *bus.DispatchReport {
	p.published = append(p.published, ev)
	return &bus.DispatchReport{EventID: ev.EventID, Enqueued: []string{"persistence"}}
}

type failingEventsRepo struct {
	repository.EventsRepo
}

func (failingEventsRepo) Append(context.Context, *models.Event) (bool, error) {
	return false, errors.New("connection refused")
}

func newTestService(events repository.EventsRepo, pub *capturingPublisher) *Service {
	return NewService(NewValidator(5*time.Minute), events, pub, zap.NewNop(), time.Second)
}

func freshRaw(eventID string) *models.RawEvent {
	raw := validRaw()
	raw.EventID = eventID
	raw.Timestamp = time.Now().UTC().Format(time.RFC3339)
	return raw
}

func TestIngest_AdmitsAndPublishes(t *testing.T) {
	events := repository.NewMemoryEventsRepo()
	pub := &capturingPublisher{}
	svc := newTestService(events, pub)

	receipt, err := svc.Ingest(context.Background(), freshRaw("evt_20260831_000001"))
	require.NoError(t, err)
	assert.Equal(t, "evt_20260831_000001", receipt.EventID)
	assert.False(t, receipt.Duplicate)
	assert.False(t, receipt.ProcessedAt.IsZero())

	require.Len(t, pub.published, 1)
	assert.Equal(t, "evt_20260831_000001", pub.published[0].EventID)
}

func TestIngest_DuplicateIsAckedOnce(t *testing.T) {
	events := repository.NewMemoryEventsRepo()
	pub := &capturingPublisher{}
	svc := newTestService(events, pub)

	first, err := svc.Ingest(context.Background(), freshRaw("evt_20260831_000002"))
	require.NoError(t, err)
	assert.False(t, first.Duplicate)

	second, err := svc.Ingest(context.Background(), freshRaw("evt_20260831_000002"))
	require.NoError(t, err)
	assert.True(t, second.Duplicate)

	// The retry is acknowledged but the log holds one entry and the bus
	// sees one publish, so consumers never double-process.
	history, err := events.History(context.Background(), "room-101", 0, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, history, 1)
	assert.Len(t, pub.published, 1)
}

func TestIngest_RejectsInvalidWithoutSideEffects(t *testing.T) {
	events := repository.NewMemoryEventsRepo()
	pub := &capturingPublisher{}
	svc := newTestService(events, pub)

	raw := freshRaw("evt_20260831_000003")
	raw.Lux = luxPtr(-5)

	_, err := svc.Ingest(context.Background(), raw)
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "lux", verr.Field)

	history, err := events.History(context.Background(), "room-101", 0, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, history)
	assert.Empty(t, pub.published)
}

func TestIngest_StorageFailureIsRetryable(t *testing.T) {
	pub := &capturingPublisher{}
	svc := newTestService(failingEventsRepo{}, pub)

	_, err := svc.Ingest(context.Background(), freshRaw("evt_20260831_000004"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStorageUnavailable))
	assert.Empty(t, pub.published)
}
