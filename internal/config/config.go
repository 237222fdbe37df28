package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr     string
	PostgresDSN  string
	RedisAddr    string
	KafkaBrokers []string
	ServiceName  string

	// Sync tuning. MinRefreshAge bounds refetch load; PollInterval is
	// the degraded-mode fallback cadence.
	MinRefreshAge     time.Duration
	PollInterval      time.Duration
	ReconnectBase     time.Duration
	ReconnectMax      time.Duration
	ReconnectAttempts int
}

func Load() Config {
	return Config{
		HTTPAddr:          getenv("HTTP_ADDR", ":8081"),
		PostgresDSN:       os.Getenv("POSTGRES_DSN"),
		RedisAddr:         getenv("REDIS_ADDR", "redis:6379"),
		KafkaBrokers:      splitCSV(getenv("KAFKA_BROKERS", "kafka:9092")),
		ServiceName:       getenv("SERVICE_NAME", "store-api"),
		MinRefreshAge:     durenvs("MIN_REFRESH_AGE_SEC", 25),
		PollInterval:      durenvs("POLL_INTERVAL_SEC", 30),
		ReconnectBase:     durenvs("RECONNECT_BASE_SEC", 1),
		ReconnectMax:      durenvs("RECONNECT_MAX_SEC", 30),
		ReconnectAttempts: atoienv("RECONNECT_ATTEMPTS", 5),
	}
}

// Validate catches misconfiguration before any connection is attempted.
// A missing endpoint short-circuits startup; retrying it is pointless.
func (c Config) Validate() error {
	if c.PostgresDSN == "" {
		return errors.New("POSTGRES_DSN is required")
	}
	if c.RedisAddr == "" {
		return errors.New("REDIS_ADDR is required")
	}
	if len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_BROKERS is required")
	}
	return nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func atoienv(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func durenvs(k string, defSec int) time.Duration {
	return time.Duration(atoienv(k, defSec)) * time.Second
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
