package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures everything main needs to wire the engine. Values come from
// environment variables so deployment stays twelve-factor.
type Config struct {
	Addr        string
	LogLevel    slog.Level
	PostgresDSN string
	Redis       RedisConfig
	Kafka       KafkaConfig
	Sweeper     SweeperConfig
	Governance  GovernanceConfig
}

// RedisConfig configures the optional Redis client used for the sweeper
// leader lock. An empty URL disables Redis entirely.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the audit outbox publisher. Empty brokers disable
// publishing; audit entries still persist transactionally in Postgres.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// SweeperConfig controls the auto-expiration background pass.
type SweeperConfig struct {
	Interval    time.Duration
	AlertMaxAge time.Duration
	LockMaxAge  time.Duration
	LeaderTTL   time.Duration
}

// GovernanceConfig holds the tunable business-rule parameters: the variance
// bands that classify severity and the action set critical alerts block.
type GovernanceConfig struct {
	WarningVariance  float64
	CriticalVariance float64
	BlockedActions   []string
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	return Config{
		Addr:        envString("KEYSTONE_ADDR", ":8080"),
		LogLevel:    parseLogLevel(envString("KEYSTONE_LOG_LEVEL", "info")),
		PostgresDSN: envString("KEYSTONE_POSTGRES_DSN", ""),
		Redis: RedisConfig{
			URL:          envString("KEYSTONE_REDIS_URL", ""),
			PoolSize:     envInt("KEYSTONE_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("KEYSTONE_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("KEYSTONE_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("KEYSTONE_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("KEYSTONE_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: envList("KEYSTONE_KAFKA_BROKERS"),
			Topic:   envString("KEYSTONE_KAFKA_AUDIT_TOPIC", "keystone.audit"),
		},
		Sweeper: SweeperConfig{
			Interval:    envDuration("KEYSTONE_SWEEP_INTERVAL", time.Hour),
			AlertMaxAge: envDuration("KEYSTONE_ALERT_MAX_AGE", 30*24*time.Hour),
			LockMaxAge:  envDuration("KEYSTONE_LOCK_MAX_AGE", 90*24*time.Hour),
			LeaderTTL:   envDuration("KEYSTONE_SWEEP_LEADER_TTL", 10*time.Minute),
		},
		Governance: GovernanceConfig{
			WarningVariance:  envFloat("KEYSTONE_WARNING_VARIANCE", 0.05),
			CriticalVariance: envFloat("KEYSTONE_CRITICAL_VARIANCE", 0.15),
			BlockedActions:   envListDefault("KEYSTONE_BLOCKED_ACTIONS", []string{"refinance", "sell", "dispose"}),
		},
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func envListDefault(key string, fallback []string) []string {
	if list := envList(key); list != nil {
		return list
	}
	return fallback
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(raw) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
