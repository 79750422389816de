package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DatabaseURL string
	// SeedDemoData loads the demo customers and orders into in-memory stores
	SeedDemoData         bool
	ShutdownTimeout      time.Duration
	SlowRequestThreshold time.Duration
}

// UsesDatabase reports whether Postgres stores should be used
func (c Config) UsesDatabase() bool {
	return c.DatabaseURL != ""
}

// Load reads the environment, after loading a .env file if one is present.
// Variables already set take precedence over the file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
	}

	var err error
	if cfg.SeedDemoData, err = strconv.ParseBool(getEnv("SEED_DEMO_DATA", strconv.FormatBool(!cfg.UsesDatabase()))); err != nil {
		return Config{}, fmt.Errorf("invalid SEED_DEMO_DATA: %w", err)
	}
	if cfg.ShutdownTimeout, err = time.ParseDuration(getEnv("SHUTDOWN_TIMEOUT", "30s")); err != nil {
		return Config{}, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}
	if cfg.SlowRequestThreshold, err = time.ParseDuration(getEnv("SLOW_REQUEST_THRESHOLD", "1s")); err != nil {
		return Config{}, fmt.Errorf("invalid SLOW_REQUEST_THRESHOLD: %w", err)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
