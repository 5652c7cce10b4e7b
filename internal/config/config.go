package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

type Config struct {
	OsuClientID     string
	OsuClientSecret string
	DBPath          string
	ServerPort      string
	LogLevel        string

	// TrackerRate is the scheduler tick interval.
	TrackerRate time.Duration
	// WaitCycleHours divides elapsed session hours into wait cycles.
	WaitCycleHours float64
	// SessionEndHours is the wall-clock length after which a session resets.
	SessionEndHours float64
	// MaxAllowedPP rejects glitched ratings above this value.
	MaxAllowedPP float64
	// APIRetryDelay is the pause before the single transient-failure retry.
	APIRetryDelay time.Duration
	// AnnounceDelay spaces consecutive announcements for one player.
	AnnounceDelay time.Duration
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		OsuClientID:     getEnv("OSU_CLIENT_ID", ""),
		OsuClientSecret: getEnv("OSU_CLIENT_SECRET", ""),
		DBPath:          getEnv("DB_PATH", "mania.db"),
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		TrackerRate:     getEnvDuration("TRACKER_RATE", 2*time.Second),
		WaitCycleHours:  getEnvFloat("WAIT_CYCLE_HOURS", 3),
		SessionEndHours: getEnvFloat("SESSION_END_HOURS", 4),
		MaxAllowedPP:    getEnvFloat("MAX_ALLOWED_PP", 2500),
		APIRetryDelay:   getEnvDuration("API_RETRY_DELAY", 5*time.Second),
		AnnounceDelay:   getEnvDuration("ANNOUNCE_DELAY", time.Second),
	}

	if cfg.OsuClientID == "" || cfg.OsuClientSecret == "" {
		return nil, fmt.Errorf("OSU_CLIENT_ID and OSU_CLIENT_SECRET are required")
	}

	logger.Info().
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Dur("tracker_rate", cfg.TrackerRate).
		Float64("wait_cycle_hours", cfg.WaitCycleHours).
		Float64("session_end_hours", cfg.SessionEndHours).
		Msg("configuration loaded")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
