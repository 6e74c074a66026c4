package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"luxtrack/internal/models"
	"luxtrack/internal/repository"
	"luxtrack/internal/store"
)

var (
	// ErrRoomNotFound: the room is not in the registry at all.
	ErrRoomNotFound = errors.New("room not found")
	// ErrNoData: the room is registered but has no projection rows yet.
	ErrNoData = errors.New("room has no data yet")
)

// Options carries the cache TTLs. Caching is a performance policy, not a
// correctness requirement: misses always fall through to the authoritative
// projections.
type Options struct {
	CurrentStateTTL time.Duration
	HistoryTTL      time.Duration
	StatsTTL        time.Duration
	StatsWindow     time.Duration
	KeyPrefix       string
}

// Service is the read-only accessor consumed by the dashboard collaborator.
type Service struct {
	opts   Options
	kv     store.KV
	rooms  repository.RoomsRepo
	states repository.RoomStateRepo
	events repository.EventsRepo
	usage  repository.DailyUsageRepo
	logger *zap.Logger
}

func NewService(
	opts Options,
	kv store.KV,
	rooms repository.RoomsRepo,
	states repository.RoomStateRepo,
	events repository.EventsRepo,
	usage repository.DailyUsageRepo,
	logger *zap.Logger,
) *Service {
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "query:"
	}
	if opts.StatsWindow <= 0 {
		opts.StatsWindow = 24 * time.Hour
	}
	return &Service{
		opts:   opts,
		kv:     kv,
		rooms:  rooms,
		states: states,
		events: events,
		usage:  usage,
		logger: logger,
	}
}

// CurrentState returns the latest projection for the room.
func (s *Service) CurrentState(ctx context.Context, roomID string) (*models.RoomState, error) {
	key := s.opts.KeyPrefix + "state:" + roomID

	var cached models.RoomState
	if ok := s.cacheGet(ctx, key, &cached); ok {
		return &cached, nil
	}

	if err := s.checkRoom(ctx, roomID); err != nil {
		return nil, err
	}

	st, err := s.states.Get(ctx, roomID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNoData
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read room state: %w", err)
	}

	s.cacheSet(ctx, key, st, s.opts.CurrentStateTTL)
	return st, nil
}

// History returns events for the room, newest first.
func (s *Service) History(ctx context.Context, roomID string, limit int, start, end time.Time) ([]models.Event, error) {
	key := fmt.Sprintf("%shistory:%s:%d:%d:%d",
		s.opts.KeyPrefix, roomID, limit, start.Unix(), end.Unix())

	var cached []models.Event
	if ok := s.cacheGet(ctx, key, &cached); ok {
		return cached, nil
	}

	if err := s.checkRoom(ctx, roomID); err != nil {
		return nil, err
	}

	events, err := s.events.History(ctx, roomID, limit, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	s.cacheSet(ctx, key, events, s.opts.HistoryTTL)
	return events, nil
}

// Stats summarizes lux over the recent stats window.
func (s *Service) Stats(ctx context.Context, roomID string) (*models.LuxStats, error) {
	key := s.opts.KeyPrefix + "stats:" + roomID

	var cached models.LuxStats
	if ok := s.cacheGet(ctx, key, &cached); ok {
		return &cached, nil
	}

	if err := s.checkRoom(ctx, roomID); err != nil {
		return nil, err
	}

	st, err := s.events.Stats(ctx, roomID, time.Now().UTC().Add(-s.opts.StatsWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to read stats: %w", err)
	}

	s.cacheSet(ctx, key, st, s.opts.StatsTTL)
	return st, nil
}

// DailyUsage returns the usage row for one day. A registered room with no
// row yet reads as an all-zero day, which is what the dashboard renders.
func (s *Service) DailyUsage(ctx context.Context, roomID, day string) (*models.DailyUsage, error) {
	key := s.opts.KeyPrefix + "usage:" + roomID + ":" + day

	var cached models.DailyUsage
	if ok := s.cacheGet(ctx, key, &cached); ok {
		return &cached, nil
	}

	if err := s.checkRoom(ctx, roomID); err != nil {
		return nil, err
	}

	u, err := s.usage.Get(ctx, roomID, day)
	if errors.Is(err, repository.ErrNotFound) {
		u = &models.DailyUsage{RoomID: roomID, Day: day}
	} else if err != nil {
		return nil, fmt.Errorf("failed to read daily usage: %w", err)
	}

	s.cacheSet(ctx, key, u, s.opts.HistoryTTL)
	return u, nil
}

// UsageStatistics rolls on-seconds up to today / this week (Monday start) /
// this month.
func (s *Service) UsageStatistics(ctx context.Context, roomID string, now time.Time) (*models.UsageStatistics, error) {
	now = now.UTC()
	today := now.Format(models.DayFormat)
	key := s.opts.KeyPrefix + "usagestats:" + roomID + ":" + today

	var cached models.UsageStatistics
	if ok := s.cacheGet(ctx, key, &cached); ok {
		return &cached, nil
	}

	if err := s.checkRoom(ctx, roomID); err != nil {
		return nil, err
	}

	weekday := int(now.Weekday()+6) % 7 // Monday = 0
	weekStart := now.AddDate(0, 0, -weekday).Format(models.DayFormat)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).Format(models.DayFormat)

	stats := &models.UsageStatistics{RoomID: roomID}

	daily, err := s.usage.SumOnSeconds(ctx, roomID, today, today)
	if err != nil {
		return nil, fmt.Errorf("failed to read daily usage: %w", err)
	}
	weekly, err := s.usage.SumOnSeconds(ctx, roomID, weekStart, today)
	if err != nil {
		return nil, fmt.Errorf("failed to read weekly usage: %w", err)
	}
	monthly, err := s.usage.SumOnSeconds(ctx, roomID, monthStart, today)
	if err != nil {
		return nil, fmt.Errorf("failed to read monthly usage: %w", err)
	}
	stats.DailySeconds = daily
	stats.WeeklySeconds = weekly
	stats.MonthlySeconds = monthly

	s.cacheSet(ctx, key, stats, s.opts.StatsTTL)
	return stats, nil
}

func (s *Service) checkRoom(ctx context.Context, roomID string) error {
	exists, err := s.rooms.Exists(ctx, roomID)
	if err != nil {
		return fmt.Errorf("failed to check room: %w", err)
	}
	if !exists {
		return ErrRoomNotFound
	}
	return nil
}

func (s *Service) cacheGet(ctx context.Context, key string, dest interface{}) bool {
	raw, err := s.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, store.ErrMiss) {
			s.logger.Warn("Cache read failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		s.logger.Warn("Cache entry corrupt", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (s *Service) cacheSet(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.kv.Set(ctx, key, string(raw), ttl); err != nil {
		s.logger.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
	}
}
