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
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	// Storage
	StorageBackend string `yaml:"storage_backend"`
	StoragePath    string `yaml:"storage_path"`
	DatabaseDSN    string `yaml:"database_dsn"`
	AutoMigrate    bool   `yaml:"auto_migrate"`

	// Analysis settings
	ForecastDays   int    `yaml:"forecast_days"`
	TrendTimeUnit  string `yaml:"trend_time_unit"`
	HistoryPeriods int    `yaml:"history_periods"`

	// HTTP API
	ListenAddr     string   `yaml:"listen_addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`

	// Debugging
	Debug    bool `yaml:"debug"`
	JSONLogs bool `yaml:"json_logs"`
}

// DefaultConfig returns the configuration used when no file is given
func DefaultConfig() *Config {
	return &Config{
		StorageBackend: BackendFile,
		StoragePath:    getDefaultStoragePath(),
		ForecastDays:   defaultForecastDays,
		TrendTimeUnit:  TimeUnitMillisecond,
		HistoryPeriods: defaultHistoryPeriods,
		ListenAddr:     ":8080",
		AllowedOrigins: []string{"http://localhost:3000"},
	}
}

// LoadConfig loads configuration from a YAML file. A missing file at the
// default location is not an error; an explicitly named one is.
func LoadConfig(path string, explicit bool) (*Config, error) {
	config := DefaultConfig()

	// .env is optional and never overrides variables already set
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		case errors.Is(err, fs.ErrNotExist) && !explicit:
			// fall through to defaults
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	config.applyEnvironmentVariables()

	return config, nil
}

// getDefaultStoragePath returns the default storage path
func getDefaultStoragePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ecometer"
	}
	return filepath.Join(home, ".config", "ecometer")
}

// applyEnvironmentVariables overrides config with environment variables
func (c *Config) applyEnvironmentVariables() {
	if val := os.Getenv("ECOMETER_STORAGE_BACKEND"); val != "" {
		c.StorageBackend = val
	}
	if val := os.Getenv("ECOMETER_STORAGE_PATH"); val != "" {
		c.StoragePath = val
	}
	if val := os.Getenv("ECOMETER_DATABASE_DSN"); val != "" {
		c.DatabaseDSN = val
	}
	if val := os.Getenv("ECOMETER_AUTO_MIGRATE"); val == "true" || val == "1" {
		c.AutoMigrate = true
	}
	if val := os.Getenv("ECOMETER_FORECAST_DAYS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.ForecastDays = n
		}
	}
	if val := os.Getenv("ECOMETER_HISTORY_PERIODS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.HistoryPeriods = n
		}
	}
	if val := os.Getenv("ECOMETER_TREND_TIME_UNIT"); val != "" {
		c.TrendTimeUnit = val
	}
	if val := os.Getenv("ECOMETER_LISTEN_ADDR"); val != "" {
		c.ListenAddr = val
	}
	if val := os.Getenv("ECOMETER_ALLOWED_ORIGINS"); val != "" {
		c.AllowedOrigins = strings.Split(val, ",")
	}
	if val := os.Getenv("ECOMETER_DEBUG"); val == "true" || val == "1" {
		c.Debug = true
	}
	if val := os.Getenv("ECOMETER_JSON_LOGS"); val == "true" || val == "1" {
		c.JSONLogs = true
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errors []string

	switch c.StorageBackend {
	case BackendFile, BackendMemory:
	case BackendSQLite, BackendPostgres:
		if c.DatabaseDSN == "" && c.StorageBackend == BackendPostgres {
			errors = append(errors, "database_dsn is required for the postgres backend")
		}
	default:
		errors = append(errors, fmt.Sprintf("storage_backend must be one of file, memory, sqlite, postgres (got %q)", c.StorageBackend))
	}

	if c.ForecastDays < 1 || c.ForecastDays > 365 {
		errors = append(errors, "forecast_days must be between 1 and 365")
	}

	if c.TrendTimeUnit != TimeUnitMillisecond && c.TrendTimeUnit != TimeUnitDay {
		errors = append(errors, "trend_time_unit must be millisecond or day")
	}

	if c.HistoryPeriods < 1 || c.HistoryPeriods > 120 {
		errors = append(errors, "history_periods must be between 1 and 120")
	}

	// Set default storage path if empty
	if c.StoragePath == "" {
		c.StoragePath = getDefaultStoragePath()
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

// SQLiteDSN returns the SQLite database location, defaulting into the storage path
func (c *Config) SQLiteDSN() string {
	if c.DatabaseDSN != "" {
		return c.DatabaseDSN
	}
	return filepath.Join(c.StoragePath, "ecometer.db")
}
