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

package fileconv

import (
	"io"
	"log/slog"
	"time"
)

const (
	// DefaultMaxFileSize is the largest input accepted, in bytes.
	DefaultMaxFileSize int64 = 100 << 20
	// DefaultOutputDir receives outputs when no output path is given.
	DefaultOutputDir = "converted_files"
)

// Option configures a Converter.
type Option func(*Converter)

// WithLogger sets the logger for operational messages (default: discard).
func WithLogger(l *slog.Logger) Option {
	return func(c *Converter) {
		c.logger = l
	}
}

// WithAttemptLog sets the sink that receives one record per strategy attempt
// (default: discard).
func WithAttemptLog(l *slog.Logger) Option {
	return func(c *Converter) {
		c.attemptLog = l
	}
}

// WithCapabilities injects an engine snapshot instead of probing the host.
func WithCapabilities(caps CapabilityState) Option {
	return func(c *Converter) {
		c.caps = &caps
	}
}

// WithRunner sets the process runner used by external strategies and by probing.
func WithRunner(r CommandRunner) Option {
	return func(c *Converter) {
		c.runner = r
	}
}

// WithMaxFileSize limits the input size in bytes. Zero or less keeps the default.
func WithMaxFileSize(n int64) Option {
	return func(c *Converter) {
		if n > 0 {
			c.maxFileSize = n
		}
	}
}

// WithTimeoutPolicy replaces the per-category attempt timeouts.
func WithTimeoutPolicy(p TimeoutPolicy) Option {
	return func(c *Converter) {
		c.timeouts = p
	}
}

// WithOverwrite allows replacing existing output files.
func WithOverwrite(overwrite bool) Option {
	return func(c *Converter) {
		c.overwrite = overwrite
	}
}

// WithWorkers sets how many batch jobs run at once (default 1).
func WithWorkers(n int) Option {
	return func(c *Converter) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithTempDir sets the parent of per-job scratch directories (default: os.TempDir).
func WithTempDir(dir string) Option {
	return func(c *Converter) {
		c.tempDir = dir
	}
}

// WithDefaultOutputDir sets where ConvertOne writes when no output path is given.
func WithDefaultOutputDir(dir string) Option {
	return func(c *Converter) {
		if dir != "" {
			c.defaultOutputDir = dir
		}
	}
}

// WithRegistry replaces the embedded format registry.
func WithRegistry(r *Registry) Option {
	return func(c *Converter) {
		c.registry = r
	}
}

// WithBindings replaces the built-in strategy bindings.
func WithBindings(b []Binding) Option {
	return func(c *Converter) {
		c.bindings = b
	}
}

// WithProbeTimeout bounds each engine version check when probing the host.
func WithProbeTimeout(d time.Duration) Option {
	return func(c *Converter) {
		c.probeTimeout = d
	}
}

// WithProgress registers a callback invoked once per finished batch job.
// With more than one worker it may be called concurrently.
func WithProgress(fn func(index int, r ConversionResult)) Option {
	return func(c *Converter) {
		c.onResult = fn
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
