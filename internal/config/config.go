package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN builds the lib/pq connection string.
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Config is the full service configuration, loaded from environment
// variables with code defaults.
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig

	Ingest struct {
		SkewTolerance time.Duration // accepted clock skew around server time
		Timeout       time.Duration // per-request ingestion deadline
		RetentionDays int           // event log retention window
	}

	Bus struct {
		QueueSize      int           // per-handler queue depth
		MaxAttempts    int           // delivery attempts before dead-letter
		RetryBackoff   time.Duration // initial backoff between attempts
		EnqueueTimeout time.Duration // bound on Publish blocking per handler
	}

	Twin struct {
		Strategy     string  // "daylight" or "hourly"
		ThresholdLux float64 // |observed - expected| above this fires
		NightLux     float64
		PeakLux      float64
		SunriseHour  float64
		SunsetHour   float64
	}

	Alerts struct {
		StuckOnDuration   time.Duration // continuous ON before LIGHT_STUCK_ON
		DropFraction      float64       // fractional lux fall for SUDDEN_LUX_DROP
		DropWindow        time.Duration // window the fall must happen within
		PostingInterval   time.Duration // expected device posting cadence
		OfflineMultiplier int           // silence window = multiplier x interval
		SweepInterval     time.Duration // deadline-timer sweep cadence
		StateKeyPrefix    string        // keyed timer state records
		WebhookURL        string        // notification collaborator; empty = disabled
	}

	Query struct {
		CurrentStateTTL time.Duration
		HistoryTTL      time.Duration
		StatsTTL        time.Duration
		StatsWindow     time.Duration
		CacheKeyPrefix  string
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "luxtrack")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 20)
	cfg.Database.MaxIdle = getEnvInt("DB_MAX_IDLE", 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.Ingest.SkewTolerance = getEnvDuration("INGEST_SKEW_TOLERANCE", 5*time.Minute)
	cfg.Ingest.Timeout = getEnvDuration("INGEST_TIMEOUT", 5*time.Second)
	cfg.Ingest.RetentionDays = getEnvInt("INGEST_RETENTION_DAYS", 90)

	cfg.Bus.QueueSize = getEnvInt("BUS_QUEUE_SIZE", 1024)
	cfg.Bus.MaxAttempts = getEnvInt("BUS_MAX_ATTEMPTS", 3)
	cfg.Bus.RetryBackoff = getEnvDuration("BUS_RETRY_BACKOFF", time.Second)
	cfg.Bus.EnqueueTimeout = getEnvDuration("BUS_ENQUEUE_TIMEOUT", 200*time.Millisecond)

	cfg.Twin.Strategy = getEnv("TWIN_STRATEGY", "daylight")
	cfg.Twin.ThresholdLux = getEnvFloat("TWIN_THRESHOLD_LUX", 100)
	cfg.Twin.NightLux = getEnvFloat("TWIN_NIGHT_LUX", 2)
	cfg.Twin.PeakLux = getEnvFloat("TWIN_PEAK_LUX", 450)
	cfg.Twin.SunriseHour = getEnvFloat("TWIN_SUNRISE_HOUR", 7)
	cfg.Twin.SunsetHour = getEnvFloat("TWIN_SUNSET_HOUR", 18)

	cfg.Alerts.StuckOnDuration = getEnvDuration("ALERT_STUCK_ON_DURATION", 12*time.Hour)
	cfg.Alerts.DropFraction = getEnvFloat("ALERT_DROP_FRACTION", 0.8)
	cfg.Alerts.DropWindow = getEnvDuration("ALERT_DROP_WINDOW", 60*time.Second)
	cfg.Alerts.PostingInterval = getEnvDuration("ALERT_POSTING_INTERVAL", 60*time.Second)
	cfg.Alerts.OfflineMultiplier = getEnvInt("ALERT_OFFLINE_MULTIPLIER", 3)
	cfg.Alerts.SweepInterval = getEnvDuration("ALERT_SWEEP_INTERVAL", 30*time.Second)
	cfg.Alerts.StateKeyPrefix = getEnv("ALERT_STATE_PREFIX", "alert:state:")
	cfg.Alerts.WebhookURL = getEnv("ALERT_WEBHOOK_URL", "")

	cfg.Query.CurrentStateTTL = getEnvDuration("QUERY_CURRENT_TTL", 3*time.Second)
	cfg.Query.HistoryTTL = getEnvDuration("QUERY_HISTORY_TTL", 30*time.Second)
	cfg.Query.StatsTTL = getEnvDuration("QUERY_STATS_TTL", 5*time.Minute)
	cfg.Query.StatsWindow = getEnvDuration("QUERY_STATS_WINDOW", 24*time.Hour)
	cfg.Query.CacheKeyPrefix = getEnv("QUERY_CACHE_PREFIX", "query:")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
