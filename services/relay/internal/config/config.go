package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr             string
	Environment      string
	LogLevel         string
	RateLimitPerMin  int
	HandshakeTimeout time.Duration
	CORSOrigins      []string
}

func Load() Config {
	return Config{
		Addr:             envOr("RELAY_ADDR", ":8443"),
		Environment:      envOr("ENVIRONMENT", "dev"),
		LogLevel:         os.Getenv("LOG_LEVEL"),
		RateLimitPerMin:  envInt("RELAY_RATE_LIMIT_PER_MIN", 120),
		HandshakeTimeout: envDuration("RELAY_HANDSHAKE_TIMEOUT_MS", 15000),
		CORSOrigins:      envList("RELAY_CORS_ORIGINS"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
		slog.Warn("config: invalid int, using default", "key", key, "value", v, "default", fallback)
	}
	return fallback
}

func envDuration(key string, defaultMillis int) time.Duration {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil && n > 0 {
			return time.Duration(n) * time.Millisecond
		}
		slog.Warn("config: invalid duration, using default", "key", key, "value", v, "default_ms", defaultMillis)
	}
	return time.Duration(defaultMillis) * time.Millisecond
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return []string{"*"}
	}
	out := []string{}
	start := 0
	for i := 0; i <= len(v); i++ {
		if i == len(v) || v[i] == ',' {
			if s := v[start:i]; s != "" {
				out = append(out, s)
			}
			start = i + 1
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
