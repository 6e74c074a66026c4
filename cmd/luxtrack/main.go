package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"luxtrack/internal/aggregate"
	"luxtrack/internal/alerts"
	"luxtrack/internal/bus"
	"luxtrack/internal/config"
	"luxtrack/internal/database"
	"luxtrack/internal/ingest"
	"luxtrack/internal/logger"
	"luxtrack/internal/projection"
	"luxtrack/internal/query"
	"luxtrack/internal/redisx"
	"luxtrack/internal/repository"
	"luxtrack/internal/store"
	"luxtrack/internal/twin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "luxtrack")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zlog.Sync()

	zlog.Info("Starting luxtrack",
		zap.String("db_host", cfg.Database.Host),
		zap.String("redis_addr", cfg.Redis.Addr),
		zap.String("twin_strategy", cfg.Twin.Strategy),
	)

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		zlog.Fatal("Failed to connect to postgres", zap.Error(err))
	}
	defer database.Close(db)

	redisClient := redisx.NewClient(&cfg.Redis)
	defer redisx.Close(redisClient)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := redisx.Ping(ctx, redisClient); err != nil {
		zlog.Fatal("Failed to connect to redis", zap.Error(err))
	}

	kv := store.NewRedisKV(redisClient)

	// Repositories.
	eventsRepo := repository.NewPostgresEventsRepo(db)
	roomStateRepo := repository.NewPostgresRoomStateRepo(db)
	usageRepo := repository.NewPostgresDailyUsageRepo(db)
	alertsRepo := repository.NewPostgresAlertsRepo(db)
	roomsRepo := repository.NewPostgresRoomsRepo(db)
	lettersRepo := repository.NewPostgresDeadLettersRepo(db)

	// Alert recording + downstream notification.
	var notifier alerts.Notifier
	if cfg.Alerts.WebhookURL != "" {
		notifier = alerts.NewWebhookNotifier(cfg.Alerts.WebhookURL, zlog)
	}
	recorder := alerts.NewRecorder(alertsRepo, notifier, zlog)

	// Digital twin predictor.
	var predictor twin.Predictor
	switch cfg.Twin.Strategy {
	case "hourly":
		predictor = twin.NewHourlyProfile(defaultHourlyProfile(cfg))
	default:
		predictor = twin.NewDaylightCurve(
			cfg.Twin.NightLux, cfg.Twin.PeakLux, cfg.Twin.SunriseHour, cfg.Twin.SunsetHour)
	}

	evaluator := alerts.NewEvaluator(alerts.Options{
		StuckOnDuration:   cfg.Alerts.StuckOnDuration,
		DropFraction:      cfg.Alerts.DropFraction,
		DropWindow:        cfg.Alerts.DropWindow,
		PostingInterval:   cfg.Alerts.PostingInterval,
		OfflineMultiplier: cfg.Alerts.OfflineMultiplier,
		SweepInterval:     cfg.Alerts.SweepInterval,
		StateKeyPrefix:    cfg.Alerts.StateKeyPrefix,
	}, kv, roomsRepo, recorder, zlog)

	// Event bus and subscribers.
	eventBus := bus.New(bus.Config{
		QueueSize:      cfg.Bus.QueueSize,
		MaxAttempts:    cfg.Bus.MaxAttempts,
		RetryBackoff:   cfg.Bus.RetryBackoff,
		EnqueueTimeout: cfg.Bus.EnqueueTimeout,
	}, lettersRepo, zlog)

	eventBus.Subscribe(projection.NewPersistenceHandler(roomStateRepo, roomsRepo, zlog))
	eventBus.Subscribe(twin.NewDetector(predictor, cfg.Twin.ThresholdLux, recorder, zlog))
	eventBus.Subscribe(evaluator)
	eventBus.Subscribe(aggregate.NewEngine(usageRepo, kv, zlog))
	eventBus.Start(ctx)

	ingestService := ingest.NewService(
		ingest.NewValidator(cfg.Ingest.SkewTolerance),
		eventsRepo,
		eventBus,
		zlog,
		cfg.Ingest.Timeout,
	)

	queryService := query.NewService(query.Options{
		CurrentStateTTL: cfg.Query.CurrentStateTTL,
		HistoryTTL:      cfg.Query.HistoryTTL,
		StatsTTL:        cfg.Query.StatsTTL,
		StatsWindow:     cfg.Query.StatsWindow,
		KeyPrefix:       cfg.Query.CacheKeyPrefix,
	}, kv, roomsRepo, roomStateRepo, eventsRepo, usageRepo, zlog)

	// The transport layer (HTTP ingestion endpoint, dashboard API) is wired
	// by the deployment; it consumes these two services.
	_ = ingestService
	_ = queryService

	// Deadline-timer sweep.
	go evaluator.Run(ctx)

	// Event log retention.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cutoff := time.Now().UTC().AddDate(0, 0, -cfg.Ingest.RetentionDays)
				n, err := eventsRepo.PurgeBefore(ctx, cutoff)
				if err != nil {
					zlog.Error("Retention purge failed", zap.Error(err))
				} else if n > 0 {
					zlog.Info("Expired events purged", zap.Int64("count", n))
				}
			}
		}
	}()

	zlog.Info("luxtrack pipeline ready")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	zlog.Info("Received signal, shutting down", zap.String("signal", sig.String()))

	cancel()
	eventBus.Close()
	zlog.Info("Service stopped")
}

func defaultHourlyProfile(cfg *config.Config) [24]float64 {
	// Seed the hourly strategy from the daylight curve until a learned
	// profile is loaded.
	curve := twin.NewDaylightCurve(
		cfg.Twin.NightLux, cfg.Twin.PeakLux, cfg.Twin.SunriseHour, cfg.Twin.SunsetHour)
	var profile [24]float64
	base := time.Date(2024, 1, 1, 0, 30, 0, 0, time.UTC)
	for h := 0; h < 24; h++ {
		profile[h] = curve.Predict("", base.Add(time.Duration(h)*time.Hour))
	}
	return profile
}
