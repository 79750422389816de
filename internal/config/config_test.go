package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var configKeys = []string{"PORT", "DATABASE_URL", "SEED_DEMO_DATA", "SHUTDOWN_TIMEOUT", "SLOW_REQUEST_THRESHOLD"}

// unsetAll clears the config variables for the duration of the test
func unsetAll(t *testing.T) {
	for _, key := range configKeys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaults(t *testing.T) {
	unsetAll(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Expected port 8080, got %s", cfg.Port)
	}
	if cfg.UsesDatabase() {
		t.Error("Expected in-memory stores without DATABASE_URL")
	}
	if !cfg.SeedDemoData {
		t.Error("Expected demo data to be seeded for in-memory stores")
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected 30s shutdown timeout, got %v", cfg.ShutdownTimeout)
	}
	if cfg.SlowRequestThreshold != time.Second {
		t.Errorf("Expected 1s slow request threshold, got %v", cfg.SlowRequestThreshold)
	}
}

func TestLoadOverrides(t *testing.T) {
	unsetAll(t)
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://localhost/crm")
	t.Setenv("SHUTDOWN_TIMEOUT", "5s")
	t.Setenv("SLOW_REQUEST_THRESHOLD", "250ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Port != "9090" || !cfg.UsesDatabase() {
		t.Errorf("Unexpected config: %+v", cfg)
	}
	if cfg.SeedDemoData {
		t.Error("Demo data should default off when a database is configured")
	}
	if cfg.ShutdownTimeout != 5*time.Second || cfg.SlowRequestThreshold != 250*time.Millisecond {
		t.Errorf("Unexpected durations: %+v", cfg)
	}

	t.Setenv("SEED_DEMO_DATA", "true")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if !cfg.SeedDemoData {
		t.Error("SEED_DEMO_DATA=true should enable seeding")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	testCases := []struct {
		key   string
		value string
	}{
		{"SEED_DEMO_DATA", "maybe"},
		{"SHUTDOWN_TIMEOUT", "soon"},
		{"SLOW_REQUEST_THRESHOLD", "10"},
	}

	for _, tc := range testCases {
		t.Run(tc.key, func(t *testing.T) {
			unsetAll(t)
			t.Setenv(tc.key, tc.value)

			if _, err := Load(); err == nil {
				t.Errorf("Expected error for %s=%q", tc.key, tc.value)
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	testCases := []struct {
		name     string
		contents string
		wantPort string
		wantErr  bool
	}{
		{"no file", "", "8080", false},
		{"valid file", "PORT=7070\n", "7070", false},
		{"malformed file", "BAD-KEY=1\n", "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			unsetAll(t)
			dir := t.TempDir()
			if tc.contents != "" {
				if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(tc.contents), 0o600); err != nil {
					t.Fatalf("Failed to write .env: %v", err)
				}
			}
			t.Chdir(dir)

			cfg, err := Load()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Load() error = %v, wantErr %v", err, tc.wantErr)
			}
			if !tc.wantErr && cfg.Port != tc.wantPort {
				t.Errorf("Expected port %s, got %s", tc.wantPort, cfg.Port)
			}
		})
	}
}
