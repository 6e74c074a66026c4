package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"luxtrack/internal/models"
	"luxtrack/internal/repository"
)

// Handler is one independent consumer of accepted events. A failing handler
// is retried on its own and never blocks or drops delivery to the others.
type Handler interface {
	Name() string
	HandleEvent(ctx context.Context, ev *models.Event) error
}

// Config bounds the dispatcher so ingestion can never block indefinitely on
// a slow or failing handler.
type Config struct {
	QueueSize      int
	MaxAttempts    int
	RetryBackoff   time.Duration
	EnqueueTimeout time.Duration
}

// DispatchReport says which handlers accepted the event onto their queue.
// A saturated queue dead-letters immediately rather than stalling Publish.
type DispatchReport struct {
	EventID      string
	Enqueued     []string
	DeadLettered []string
}

type subscription struct {
	handler Handler
	queue   chan *models.Event
}

// Bus is the in-process at-least-once dispatcher. Each subscriber gets its
// own FIFO queue and worker goroutine, so per-room delivery order follows
// admit order and handlers fail independently.
type Bus struct {
	cfg     Config
	letters repository.DeadLettersRepo
	logger  *zap.Logger

	mu      sync.Mutex
	subs    []*subscription
	started bool
	wg      sync.WaitGroup
}

func New(cfg Config, letters repository.DeadLettersRepo, logger *zap.Logger) *Bus {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.EnqueueTimeout <= 0 {
		cfg.EnqueueTimeout = 200 * time.Millisecond
	}
	return &Bus{cfg: cfg, letters: letters, logger: logger}
}

// Subscribe registers a handler. Must be called before Start.
func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		panic("bus: Subscribe after Start")
	}
	b.subs = append(b.subs, &subscription{
		handler: h,
		queue:   make(chan *models.Event, b.cfg.QueueSize),
	})
}

// Start launches one worker per subscriber. Workers run until their queue
// is closed by Close; ctx cancels in-flight deliveries.
func (b *Bus) Start(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return
	}
	b.started = true

	for _, sub := range b.subs {
		b.wg.Add(1)
		go b.worker(ctx, sub)
	}

	b.logger.Info("Event bus started",
		zap.Int("handlers", len(b.subs)),
		zap.Int("queue_size", b.cfg.QueueSize),
		zap.Int("max_attempts", b.cfg.MaxAttempts),
	)
}

// Publish fans the event out to every subscriber queue. It blocks at most
// EnqueueTimeout per handler; an unresponsive queue gets a dead-letter
// instead of stalling ingestion.
func (b *Bus) Publish(ctx context.Context, ev *models.Event) *DispatchReport {
	report := &DispatchReport{EventID: ev.EventID}

	b.mu.Lock()
	subs := b.subs
	b.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub.queue <- ev:
			report.Enqueued = append(report.Enqueued, sub.handler.Name())
		case <-time.After(b.cfg.EnqueueTimeout):
			b.deadLetter(ctx, sub.handler.Name(), ev, "queue saturated")
			report.DeadLettered = append(report.DeadLettered, sub.handler.Name())
		case <-ctx.Done():
			b.deadLetter(context.Background(), sub.handler.Name(), ev, "publish cancelled: "+ctx.Err().Error())
			report.DeadLettered = append(report.DeadLettered, sub.handler.Name())
		}
	}
	return report
}

// Close stops accepting events and waits for the workers to drain.
func (b *Bus) Close() {
	b.mu.Lock()
	for _, sub := range b.subs {
		close(sub.queue)
	}
	b.mu.Unlock()
	b.wg.Wait()
}

func (b *Bus) worker(ctx context.Context, sub *subscription) {
	defer b.wg.Done()

	for ev := range sub.queue {
		b.deliver(ctx, sub.handler, ev)
	}
}

// deliver retries the handler with exponential backoff; delivery is
// at-least-once, so handlers must tolerate replays. Exhausted deliveries
// are dead-lettered, never silently dropped.
func (b *Bus) deliver(ctx context.Context, h Handler, ev *models.Event) {
	backoff := b.cfg.RetryBackoff
	var lastErr error

	for attempt := 1; attempt <= b.cfg.MaxAttempts; attempt++ {
		lastErr = h.HandleEvent(ctx, ev)
		if lastErr == nil {
			return
		}

		b.logger.Warn("Handler failed",
			zap.String("handler", h.Name()),
			zap.String("event_id", ev.EventID),
			zap.Int("attempt", attempt),
			zap.Error(lastErr),
		)

		if attempt == b.cfg.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			b.deadLetter(context.Background(), h.Name(), ev, "delivery cancelled: "+ctx.Err().Error())
			return
		case <-time.After(backoff):
			backoff *= 2
		}
	}

	b.deadLetter(ctx, h.Name(), ev, fmt.Sprintf("retries exhausted: %v", lastErr))
}

func (b *Bus) deadLetter(ctx context.Context, handlerName string, ev *models.Event, reason string) {
	payload, _ := json.Marshal(ev)
	dl := &models.DeadLetter{
		ID:        uuid.New().String(),
		Handler:   handlerName,
		EventID:   ev.EventID,
		Payload:   string(payload),
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	}

	if err := b.letters.Insert(ctx, dl); err != nil {
		b.logger.Error("Failed to record dead letter",
			zap.String("handler", handlerName),
			zap.String("event_id", ev.EventID),
			zap.String("reason", reason),
			zap.Error(err),
		)
		return
	}

	b.logger.Error("Event dead-lettered",
		zap.String("handler", handlerName),
		zap.String("event_id", ev.EventID),
		zap.String("reason", reason),
	)
}
