// Package config derives the service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Event backends. Exactly one is active per deployment: the in-process
// bus (at-most-once) or Kafka (at-least-once). They are never mixed.
const (
	BackendMemory = "memory"
	BackendKafka  = "kafka"
)

// Config holds everything the server and worker processes need.
type Config struct {
	Port        string
	DatabaseURL string
	AuthSecret  string

	// DevTokenEndpoint enables POST /api/auth/token, which mints a token
	// for any requested user id. Development only.
	DevTokenEndpoint bool

	EventBackend string
	KafkaBrokers []string

	OpenAIKey     string
	OpenAIModel   string
	OpenAIBaseURL string

	ReminderInterval time.Duration

	LogLevel string
	LogJSON  bool
}

// Load reads configuration from the environment. DATABASE_URL and
// AUTH_SECRET are required; everything else has a default.
func Load() (*Config, error) {
	cfg := &Config{
		Port:             getenv("PORT", "8080"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		AuthSecret:       os.Getenv("AUTH_SECRET"),
		DevTokenEndpoint: os.Getenv("DEV_TOKEN_ENDPOINT") == "true",
		EventBackend:     getenv("EVENT_BACKEND", BackendMemory),
		KafkaBrokers:     splitList(getenv("KAFKA_BROKERS", "localhost:9092")),
		OpenAIKey:        os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:      os.Getenv("OPENAI_MODEL"),
		OpenAIBaseURL:    os.Getenv("OPENAI_BASE_URL"),
		ReminderInterval: 30 * time.Second,
		LogLevel:         getenv("LOG_LEVEL", "info"),
		LogJSON:          os.Getenv("LOG_FORMAT") == "json",
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable not set")
	}
	if cfg.AuthSecret == "" {
		return nil, fmt.Errorf("AUTH_SECRET environment variable not set")
	}
	switch cfg.EventBackend {
	case BackendMemory, BackendKafka:
	default:
		return nil, fmt.Errorf("EVENT_BACKEND must be %q or %q, got %q", BackendMemory, BackendKafka, cfg.EventBackend)
	}

	if v := os.Getenv("REMINDER_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("parse REMINDER_INTERVAL: %w", err)
		}
		cfg.ReminderInterval = d
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
