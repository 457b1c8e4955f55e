// Package config builds the process configuration from the environment so
// main stays lean.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	pstrings "deathnote/pkg/platform/strings"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr       string
	AdminToken string
}

// Database captures PostgreSQL connectivity.
type Database struct {
	URL string
}

// RedisConfig captures the person-cache connection. An empty URL disables
// the cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka captures the event stream connection. Empty brokers disable
// publishing.
type Kafka struct {
	Brokers []string
	Topic   string
}

// Registry captures the lifecycle knobs.
type Registry struct {
	DefaultDeadline time.Duration
	DetailDeadline  time.Duration
	SingleOwnedNote bool
}

// Scheduler captures the sweep loop knobs.
type Scheduler struct {
	Interval    time.Duration
	Concurrency int
}

// Config is the full process configuration.
type Config struct {
	Server    Server
	Database  Database
	Redis     RedisConfig
	Kafka     Kafka
	Registry  Registry
	Scheduler Scheduler
}

// FromEnv builds a Config from environment variables, falling back to
// development defaults.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:       envString("DEATHNOTE_ADDR", ":8080"),
			AdminToken: os.Getenv("DEATHNOTE_ADMIN_TOKEN"),
		},
		Database: Database{
			URL: os.Getenv("DATABASE_URL"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: Kafka{
			Brokers: envList("KAFKA_BROKERS"),
			Topic:   envString("KAFKA_TOPIC", "deathnote.registry.events"),
		},
		Registry: Registry{
			DefaultDeadline: envDuration("DEFAULT_DEADLINE", 40*time.Second),
			DetailDeadline:  envDuration("DETAIL_DEADLINE", 400*time.Second),
			SingleOwnedNote: envBool("SINGLE_OWNED_NOTE", true),
		},
		Scheduler: Scheduler{
			Interval:    envDuration("SWEEP_INTERVAL", 5*time.Second),
			Concurrency: envInt("SWEEP_CONCURRENCY", 8),
		},
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func envBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value == "true" || value == "1"
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(key))
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func envList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	return pstrings.DedupeAndTrim(strings.Split(raw, ","))
}
