// Copyright 2025 Matthew Gall <me@matthewgall.dev>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if cfg.StorageBackend != BackendFile || cfg.ForecastDays != 7 || cfg.TrendTimeUnit != TimeUnitMillisecond {
		t.Fatalf("defaults=%+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate(defaults): %v", err)
	}
}

func TestLoadConfig_File(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "storage_backend: sqlite\nforecast_days: 14\ntrend_time_unit: day\nallowed_origins:\n  - https://meters.example\n"
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadConfig(path, true)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.StorageBackend != BackendSQLite || cfg.ForecastDays != 14 || cfg.TrendTimeUnit != TimeUnitDay {
		t.Fatalf("cfg=%+v", cfg)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "https://meters.example" {
		t.Fatalf("allowed origins=%v", cfg.AllowedOrigins)
	}
	if cfg.HistoryPeriods != defaultHistoryPeriods {
		t.Fatalf("history periods=%d want default %d", cfg.HistoryPeriods, defaultHistoryPeriods)
	}
}

func TestLoadConfig_Missing(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "absent.yaml")

	if _, err := LoadConfig(path, true); err == nil {
		t.Fatalf("explicit missing file: expected an error")
	}
	cfg, err := LoadConfig(path, false)
	if err != nil {
		t.Fatalf("implicit missing file: %v", err)
	}
	if cfg.ForecastDays != defaultForecastDays {
		t.Fatalf("forecast days=%d want default", cfg.ForecastDays)
	}
}

func TestLoadConfig_Malformed(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("forecast_days: [1, 2\n"), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := LoadConfig(path, true); err == nil {
		t.Fatalf("expected a parse error")
	}
}

func TestLoadConfig_Environment(t *testing.T) {
	t.Setenv("ECOMETER_STORAGE_BACKEND", "memory")
	t.Setenv("ECOMETER_FORECAST_DAYS", "30")
	t.Setenv("ECOMETER_HISTORY_PERIODS", "12")
	t.Setenv("ECOMETER_ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("ECOMETER_DEBUG", "1")

	cfg, err := LoadConfig("", false)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.StorageBackend != BackendMemory || cfg.ForecastDays != 30 || cfg.HistoryPeriods != 12 || !cfg.Debug {
		t.Fatalf("cfg=%+v", cfg)
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Fatalf("allowed origins=%v", cfg.AllowedOrigins)
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown backend", func(c *Config) { c.StorageBackend = "redis" }, "storage_backend"},
		{"postgres without dsn", func(c *Config) { c.StorageBackend = BackendPostgres }, "database_dsn"},
		{"forecast too long", func(c *Config) { c.ForecastDays = 400 }, "forecast_days"},
		{"bad time unit", func(c *Config) { c.TrendTimeUnit = "week" }, "trend_time_unit"},
		{"no history", func(c *Config) { c.HistoryPeriods = 0 }, "history_periods"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate err=%v want mention of %s", err, tt.want)
			}
		})
	}

	cfg := DefaultConfig()
	cfg.StorageBackend = BackendSQLite
	cfg.StoragePath = "/data"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("sqlite without dsn: %v", err)
	}
	if got, want := cfg.SQLiteDSN(), filepath.Join("/data", "ecometer.db"); got != want {
		t.Fatalf("SQLiteDSN=%q want %q", got, want)
	}
}
