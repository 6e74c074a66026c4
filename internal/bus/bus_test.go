package bus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"luxtrack/internal/models"
	"luxtrack/internal/repository"
)

// recordingHandler collects delivered events; failUntil makes the first
// N attempts per event fail to exercise the retry path.
type recordingHandler struct {
	name      string
	failUntil int

	mu       sync.Mutex
	attempts map[string]int
	got      []string
}

func newRecordingHandler(name string, failUntil int) *recordingHandler {
	return &recordingHandler{name: name, failUntil: failUntil, attempts: map[string]int{}}
}

func (h *recordingHandler) Name() string { return h.name }

func (h *recordingHandler) HandleEvent(_ context.Context, ev *models.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.attempts[ev.EventID]++
	if h.attempts[ev.EventID] <= h.failUntil {
		return errors.New("transient failure")
	}
	h.got = append(h.got, ev.EventID)
	return nil
}

func (h *recordingHandler) delivered() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.got))
	copy(out, h.got)
	return out
}

func busEvent(id, roomID string, ts time.Time) *models.Event {
	return &models.Event{
		EventID:    id,
		Timestamp:  ts,
		RoomID:     roomID,
		DeviceID:   "ls-100-0001",
		LightState: models.LightOn,
		Lux:        120,
	}
}

func TestBus_FanOutToAllHandlers(t *testing.T) {
	letters := repository.NewMemoryDeadLettersRepo()
	b := New(Config{QueueSize: 8, MaxAttempts: 3, RetryBackoff: time.Millisecond}, letters, zap.NewNop())

	h1 := newRecordingHandler("persistence", 0)
	h2 := newRecordingHandler("aggregation", 0)
	b.Subscribe(h1)
	b.Subscribe(h2)
	b.Start(context.Background())

	report := b.Publish(context.Background(), busEvent("evt_20260831_1", "room-101", time.Now().UTC()))
	b.Close()

	assert.ElementsMatch(t, []string{"persistence", "aggregation"}, report.Enqueued)
	assert.Empty(t, report.DeadLettered)
	assert.Equal(t, []string{"evt_20260831_1"}, h1.delivered())
	assert.Equal(t, []string{"evt_20260831_1"}, h2.delivered())
	assert.Empty(t, letters.All())
}

func TestBus_PreservesAdmitOrder(t *testing.T) {
	letters := repository.NewMemoryDeadLettersRepo()
	b := New(Config{QueueSize: 64, MaxAttempts: 1, RetryBackoff: time.Millisecond}, letters, zap.NewNop())

	h := newRecordingHandler("persistence", 0)
	b.Subscribe(h)
	b.Start(context.Background())

	want := []string{"evt_20260831_1", "evt_20260831_2", "evt_20260831_3", "evt_20260831_4"}
	base := time.Now().UTC()
	for i, id := range want {
		b.Publish(context.Background(), busEvent(id, "room-101", base.Add(time.Duration(i)*time.Second)))
	}
	b.Close()

	assert.Equal(t, want, h.delivered())
}

func TestBus_RetriesThenSucceeds(t *testing.T) {
	letters := repository.NewMemoryDeadLettersRepo()
	b := New(Config{QueueSize: 8, MaxAttempts: 3, RetryBackoff: time.Millisecond}, letters, zap.NewNop())

	h := newRecordingHandler("flaky", 2)
	b.Subscribe(h)
	b.Start(context.Background())

	b.Publish(context.Background(), busEvent("evt_20260831_1", "room-101", time.Now().UTC()))
	b.Close()

	assert.Equal(t, []string{"evt_20260831_1"}, h.delivered())
	assert.Empty(t, letters.All())
}

func TestBus_DeadLettersAfterExhaustedRetries(t *testing.T) {
	letters := repository.NewMemoryDeadLettersRepo()
	b := New(Config{QueueSize: 8, MaxAttempts: 2, RetryBackoff: time.Millisecond}, letters, zap.NewNop())

	failing := newRecordingHandler("broken", 100)
	healthy := newRecordingHandler("persistence", 0)
	b.Subscribe(failing)
	b.Subscribe(healthy)
	b.Start(context.Background())

	b.Publish(context.Background(), busEvent("evt_20260831_1", "room-101", time.Now().UTC()))
	b.Close()

	// A failing handler never blocks or drops delivery to the others.
	assert.Equal(t, []string{"evt_20260831_1"}, healthy.delivered())
	assert.Empty(t, failing.delivered())

	all := letters.All()
	require.Len(t, all, 1)
	assert.Equal(t, "broken", all[0].Handler)
	assert.Equal(t, "evt_20260831_1", all[0].EventID)
	assert.Contains(t, all[0].Reason, "retries exhausted")
	assert.NotEmpty(t, all[0].Payload)
}

func TestBus_SaturatedQueueDeadLetters(t *testing.T) {
	letters := repository.NewMemoryDeadLettersRepo()
	b := New(Config{QueueSize: 1, MaxAttempts: 1, RetryBackoff: time.Millisecond, EnqueueTimeout: 20 * time.Millisecond}, letters, zap.NewNop())

	// Never started: the queue holds one event and then saturates.
	b.Subscribe(newRecordingHandler("stalled", 0))

	first := b.Publish(context.Background(), busEvent("evt_20260831_1", "room-101", time.Now().UTC()))
	second := b.Publish(context.Background(), busEvent("evt_20260831_2", "room-101", time.Now().UTC()))

	assert.Equal(t, []string{"stalled"}, first.Enqueued)
	assert.Equal(t, []string{"stalled"}, second.DeadLettered)

	all := letters.All()
	require.Len(t, all, 1)
	assert.Equal(t, "evt_20260831_2", all[0].EventID)
	assert.Contains(t, all[0].Reason, "queue saturated")
}
