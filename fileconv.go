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

// Package fileconv converts documents, spreadsheets, images, audio and video
// between formats. Each conversion is dispatched to ranked strategies that
// run in process or through external engines, falling back when the
// preferred engine is missing or fails.
package fileconv

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Converter is the conversion engine. It is safe for concurrent use.
type Converter struct {
	registry         *Registry
	caps             *CapabilityState
	runner           CommandRunner
	logger           *slog.Logger
	attemptLog       *slog.Logger
	maxFileSize      int64
	timeouts         TimeoutPolicy
	overwrite        bool
	workers          int
	tempDir          string
	defaultOutputDir string
	bindings         []Binding
	probeTimeout     time.Duration
	onResult         func(int, ConversionResult)

	selector *Selector
	executor *Executor
}

// New creates a Converter. Unless WithCapabilities is given, the host is
// probed for external engines.
func New(opts ...Option) (*Converter, error) {
	c := &Converter{
		maxFileSize:      DefaultMaxFileSize,
		timeouts:         DefaultTimeoutPolicy(),
		workers:          1,
		defaultOutputDir: DefaultOutputDir,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = discardLogger()
	}
	if c.attemptLog == nil {
		c.attemptLog = discardLogger()
	}

	if c.registry == nil {
		r, err := DefaultRegistry()
		if err != nil {
			return nil, fmt.Errorf("load format registry: %w", err)
		}
		c.registry = r
	}

	if c.caps == nil {
		var caps CapabilityState
		if c.runner == nil && c.probeTimeout == 0 {
			caps = DefaultCapabilities(context.Background(), c.logger)
		} else {
			caps = Probe(context.Background(), c.runner, c.logger, c.probeTimeout)
		}
		c.caps = &caps
	}
	if c.runner == nil {
		c.runner = ExecRunner{}
	}

	if c.bindings == nil {
		c.bindings = defaultBindings(c.registry)
	}
	if err := validateBindings(c.registry, c.bindings); err != nil {
		return nil, err
	}

	c.selector = NewSelector(c.bindings, *c.caps)
	c.executor = &Executor{
		registry:    c.registry,
		selector:    c.selector,
		caps:        *c.caps,
		runner:      c.runner,
		logger:      c.logger,
		attemptLog:  c.attemptLog,
		maxFileSize: c.maxFileSize,
		timeouts:    c.timeouts,
		tempDir:     c.tempDir,
	}
	return c, nil
}

// ConvertOne converts a single file. An empty outputPath writes
// <default output dir>/<stem>.<target>.
func (c *Converter) ConvertOne(ctx context.Context, inputPath, targetName, outputPath string) ConversionResult {
	target := c.resolveTarget(targetName)
	if outputPath == "" {
		outputPath = filepath.Join(c.defaultOutputDir, OutputName(inputPath, target))
	}
	return c.executor.Execute(ctx, ConversionJob{
		ID:         uuid.NewString(),
		InputPath:  inputPath,
		Target:     target,
		OutputPath: outputPath,
		Overwrite:  c.overwrite,
	})
}

// ConvertBatch converts every input into outputDir. It returns an error only
// when outputDir cannot be created; per-file failures are in the summary.
func (c *Converter) ConvertBatch(ctx context.Context, inputPaths []string, targetName, outputDir string) (BatchSummary, error) {
	if outputDir == "" {
		outputDir = c.defaultOutputDir
	}
	return RunBatch(ctx, c.executor, inputPaths, c.resolveTarget(targetName), outputDir, BatchOptions{
		Overwrite: c.overwrite,
		Workers:   c.workers,
		OnResult:  c.onResult,
	})
}

// ListSupportedFormats returns every known format in registry order.
func (c *Converter) ListSupportedFormats() []Format {
	return c.registry.Formats()
}

// ListConversions returns the targets of one format, or of every format when
// formatName is empty. Unknown names yield an empty map.
func (c *Converter) ListConversions(formatName string) map[Format][]Format {
	if formatName == "" {
		return c.registry.Conversions()
	}
	f, ok := c.registry.Lookup(formatName)
	if !ok {
		return map[Format][]Format{}
	}
	return map[Format][]Format{f: c.registry.ListTargets(f)}
}

// Capabilities returns the engine snapshot this Converter dispatches against.
func (c *Converter) Capabilities() CapabilityState {
	return *c.caps
}

// Registry returns the format registry in use.
func (c *Converter) Registry() *Registry {
	return c.registry
}

// Strategies returns the names of the strategies that would be tried for
// src -> dst on this host, best first.
func (c *Converter) Strategies(src, dst Format) []string {
	var names []string
	for _, s := range c.selector.Select(Pair{Source: src, Target: dst}) {
		names = append(names, s.Name())
	}
	return names
}

// resolveTarget canonicalizes a target name. Unknown names pass through
// normalized so the executor reports them as unsupported.
func (c *Converter) resolveTarget(name string) Format {
	if f, ok := c.registry.Lookup(name); ok {
		return f
	}
	return Format(normalizeName(name))
}
