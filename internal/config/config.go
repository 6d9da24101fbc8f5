// Copyright 2026 Conductor OSS
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.

// Package config loads the fileconv CLI settings from the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config holds the CLI settings. Flags override these values.
type Config struct {
	OutputDir      string
	LogDir         string // empty disables the attempt log file
	MaxLogFiles    int
	LogLevel       string
	MaxFileSizeMB  int
	MaxBatchSize   int
	Workers        int
	HistoryDir     string // empty disables conversion history
	HistoryDays    int    // entries older than this are pruned; 0 keeps everything
	ProbeTimeout   time.Duration
	invalidEntries []string
}

// Load reads FILECONV_* variables, falling back to defaults.
func Load() *Config {
	c := &Config{
		OutputDir:  getEnv("FILECONV_OUTPUT_DIR", "converted_files"),
		LogDir:     getEnv("FILECONV_LOG_DIR", ""),
		LogLevel:   strings.ToLower(getEnv("FILECONV_LOG_LEVEL", "info")),
		HistoryDir: getEnv("FILECONV_HISTORY_DIR", ""),
	}
	c.MaxLogFiles = c.getInt("FILECONV_MAX_LOG_FILES", 10)
	c.MaxFileSizeMB = c.getInt("FILECONV_MAX_FILE_SIZE_MB", 100)
	c.MaxBatchSize = c.getInt("FILECONV_MAX_BATCH_SIZE", 50)
	c.Workers = c.getInt("FILECONV_WORKERS", 1)
	c.HistoryDays = c.getInt("FILECONV_HISTORY_DAYS", 90)

	c.ProbeTimeout = 5 * time.Second
	if v := os.Getenv("FILECONV_PROBE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			c.invalidEntries = append(c.invalidEntries, "FILECONV_PROBE_TIMEOUT="+v)
		} else {
			c.ProbeTimeout = d
		}
	}
	return c
}

// Validate reports unparsable or out-of-range settings. Numeric settings
// must be positive, except HistoryDays which may be zero.
func (c *Config) Validate() error {
	if len(c.invalidEntries) > 0 {
		return fmt.Errorf("invalid environment: %s", strings.Join(c.invalidEntries, ", "))
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.OutputDir, validation.Required),
		validation.Field(&c.MaxLogFiles, validation.Required, validation.Min(1)),
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.MaxFileSizeMB, validation.Required, validation.Min(1)),
		validation.Field(&c.MaxBatchSize, validation.Required, validation.Min(1)),
		validation.Field(&c.Workers, validation.Required, validation.Min(1), validation.Max(64)),
		validation.Field(&c.HistoryDays, validation.Min(0)),
		validation.Field(&c.ProbeTimeout, validation.Required, validation.Min(100*time.Millisecond)),
	)
}

// MaxFileSize returns the input size limit in bytes.
func (c *Config) MaxFileSize() int64 {
	return int64(c.MaxFileSizeMB) << 20
}

// Level maps LogLevel to a slog level.
func (c *Config) Level() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func (c *Config) getInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		c.invalidEntries = append(c.invalidEntries, key+"="+v)
		return defaultValue
	}
	return n
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
