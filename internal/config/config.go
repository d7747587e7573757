package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type ServerConfig struct {
	Addr        string
	DatabaseURL string

	TickEvery  time.Duration
	DayTicks   int64
	NightTicks int64
	Seed       int64

	SessionQueue int
	InboxSize    int
}

type ClientConfig struct {
	APIBaseURL string
}

// LoadServerFromEnv reads the server knobs. Everything has a default;
// DATABASE_URL is optional and merely enables the event archive.
func LoadServerFromEnv() ServerConfig {
	addr := os.Getenv("PORT")
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("AFTERHOURS_ADDR", ":8080")
	}

	return ServerConfig{
		Addr:         addr,
		DatabaseURL:  strings.TrimSpace(os.Getenv("DATABASE_URL")),
		TickEvery:    envDurationDefault("AFTERHOURS_TICK_EVERY", time.Second),
		DayTicks:     envInt64Default("AFTERHOURS_DAY_TICKS", 64),
		NightTicks:   envInt64Default("AFTERHOURS_NIGHT_TICKS", 32),
		Seed:         envInt64Default("AFTERHOURS_SEED", time.Now().UnixNano()),
		SessionQueue: int(envInt64Default("AFTERHOURS_SESSION_QUEUE", 16)),
		InboxSize:    int(envInt64Default("AFTERHOURS_INBOX_SIZE", 256)),
	}
}

func LoadClientFromEnv() ClientConfig {
	return ClientConfig{
		APIBaseURL: strings.TrimRight(envDefault("AH_API_BASE_URL", "http://localhost:8080"), "/"),
	}
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envInt64Default(key string, fallback int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}
