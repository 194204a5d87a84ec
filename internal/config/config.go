package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

type Config struct {
	RiotAPIKey      string
	RiotPlatformURL string // {platform} is replaced with the lowercased platform region
	RiotRegionalURL string // {region} is replaced with the routing region
	DBPath          string
	ServerPort      string
	LogLevel        string
	CronSecret      string

	SchedulerEnabled bool
	DetectorInterval time.Duration
	WorkerInterval   time.Duration
	RunBudget        time.Duration

	WorkerBatchSize     int
	WorkerJobDelay      time.Duration
	MaxRateLimitRetries int
	StaleJobAfter       time.Duration
	MatchSyncDelay      time.Duration

	DetectorAccountBatch int
	DetectorQueueIDs     []int
	SnapshotQueueTypes   []string
	LiveCacheTTL         time.Duration

	SessionGap        time.Duration
	MinMatchDuration  time.Duration
	RemakeMaxDuration time.Duration
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		RiotAPIKey:      getEnv("RIOT_API_KEY", ""),
		RiotPlatformURL: getEnv("RIOT_PLATFORM_URL", "https://{platform}.api.riotgames.com"),
		RiotRegionalURL: getEnv("RIOT_REGIONAL_URL", "https://{region}.api.riotgames.com"),
		DBPath:          getEnv("DB_PATH", "lp-tracker.db"),
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		CronSecret:      getEnv("CRON_SECRET", ""),

		SchedulerEnabled: getBool("SCHEDULER_ENABLED", true),
		DetectorInterval: getDuration("DETECTOR_INTERVAL", time.Minute),
		WorkerInterval:   getDuration("WORKER_INTERVAL", time.Minute),
		RunBudget:        getDuration("RUN_BUDGET", 50*time.Second),

		WorkerBatchSize:     getInt("WORKER_BATCH_SIZE", 20),
		WorkerJobDelay:      getDuration("WORKER_JOB_DELAY", 100*time.Millisecond),
		MaxRateLimitRetries: getInt("MAX_RATE_LIMIT_RETRIES", 5),
		StaleJobAfter:       getDuration("STALE_JOB_AFTER", 10*time.Minute),
		MatchSyncDelay:      getDuration("MATCH_SYNC_DELAY", 30*time.Second),

		DetectorAccountBatch: getInt("DETECTOR_ACCOUNT_BATCH", 25),
		DetectorQueueIDs:     getIntList("DETECTOR_QUEUE_IDS", []int{420}),
		SnapshotQueueTypes:   getList("SNAPSHOT_QUEUE_TYPES", []string{"RANKED_SOLO_5x5"}),
		LiveCacheTTL:         getDuration("LIVE_CACHE_TTL", 30*time.Second),

		SessionGap:        getDuration("SESSION_GAP", 2*time.Hour),
		MinMatchDuration:  getDuration("MIN_MATCH_DURATION", 5*time.Minute),
		RemakeMaxDuration: getDuration("REMAKE_MAX_DURATION", 10*time.Minute),
	}

	if cfg.RiotAPIKey == "" {
		return nil, fmt.Errorf("RIOT_API_KEY is required")
	}
	if cfg.WorkerBatchSize <= 0 {
		return nil, fmt.Errorf("WORKER_BATCH_SIZE must be positive, got %d", cfg.WorkerBatchSize)
	}
	if cfg.CronSecret == "" {
		logger.Warn().Msg("CRON_SECRET is empty, cron endpoints only accept local requests")
	}

	logger.Info().
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Bool("scheduler_enabled", cfg.SchedulerEnabled).
		Dur("detector_interval", cfg.DetectorInterval).
		Dur("worker_interval", cfg.WorkerInterval).
		Dur("run_budget", cfg.RunBudget).
		Int("worker_batch_size", cfg.WorkerBatchSize).
		Ints("detector_queue_ids", cfg.DetectorQueueIDs).
		Strs("snapshot_queue_types", cfg.SnapshotQueueTypes).
		Msg("configuration loaded")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func getList(key string, fallback []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func getIntList(key string, fallback []int) []int {
	parts := getList(key, nil)
	if parts == nil {
		return fallback
	}
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return fallback
		}
		out = append(out, n)
	}
	return out
}

var Module = fx.Provide(Load)
