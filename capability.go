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
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// Engine names an optional external conversion engine.
type Engine string

const (
	// EngineNone marks strategies that run entirely in process.
	EngineNone        Engine = ""
	EngineOffice      Engine = "office"
	EngineRasterizer  Engine = "rasterizer"
	EngineImageMagick Engine = "imagemagick"
	EngineWebP        Engine = "webp"
	EngineTranscoder  Engine = "transcoder"
)

// DefaultProbeTimeout bounds each version check during probing.
const DefaultProbeTimeout = 5 * time.Second

type engineProbe struct {
	engine      Engine
	binaries    []string
	versionArgs []string
}

// engineProbes lists candidate binaries per engine, preferred first.
var engineProbes = []engineProbe{
	{EngineOffice, []string{"soffice", "libreoffice"}, []string{"--version"}},
	{EngineRasterizer, []string{"rsvg-convert"}, []string{"--version"}},
	{EngineImageMagick, []string{"magick"}, []string{"-version"}},
	{EngineWebP, []string{"cwebp"}, []string{"-version"}},
	{EngineTranscoder, []string{"ffmpeg"}, []string{"-version"}},
}

// Engines returns every optional engine the prober knows about.
func Engines() []Engine {
	out := make([]Engine, len(engineProbes))
	for i, p := range engineProbes {
		out[i] = p.engine
	}
	return out
}

// EngineStatus is the probed state of one engine.
type EngineStatus struct {
	Available bool
	Binary    string // resolved executable path when available
	Version   string // first line of the version output
}

// CapabilityState is an immutable snapshot of engine availability.
type CapabilityState struct {
	engines map[Engine]EngineStatus
}

// NewCapabilityState builds a snapshot from explicit availability flags.
// Engines not mentioned are unavailable.
func NewCapabilityState(available map[Engine]bool) CapabilityState {
	engines := make(map[Engine]EngineStatus, len(available))
	for e, ok := range available {
		if !ok {
			continue
		}
		engines[e] = EngineStatus{Available: true, Binary: defaultBinary(e)}
	}
	return CapabilityState{engines: engines}
}

// AllEngines returns a snapshot with every known engine available.
func AllEngines() CapabilityState {
	available := make(map[Engine]bool)
	for _, e := range Engines() {
		available[e] = true
	}
	return NewCapabilityState(available)
}

func defaultBinary(e Engine) string {
	for _, p := range engineProbes {
		if p.engine == e {
			return p.binaries[0]
		}
	}
	return ""
}

// Available reports whether e can be used. EngineNone is always available.
func (s CapabilityState) Available(e Engine) bool {
	if e == EngineNone {
		return true
	}
	return s.engines[e].Available
}

// Status returns the probed status of e.
func (s CapabilityState) Status(e Engine) EngineStatus {
	return s.engines[e]
}

// Binary returns the executable to launch for e, or "" when unavailable.
func (s CapabilityState) Binary(e Engine) string {
	return s.engines[e].Binary
}

// Summary reports the status of every known engine, sorted by name.
func (s CapabilityState) Summary() []EngineSummary {
	var out []EngineSummary
	for _, e := range Engines() {
		st := s.engines[e]
		out = append(out, EngineSummary{Engine: e, EngineStatus: st})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Engine < out[j].Engine })
	return out
}

// EngineSummary pairs an engine with its status for reporting.
type EngineSummary struct {
	Engine Engine
	EngineStatus
}

// Probe detects which optional engines are installed. It never fails:
// a missing binary, a non-zero exit or a timeout all mean unavailable.
func Probe(ctx context.Context, runner CommandRunner, logger *slog.Logger, timeout time.Duration) CapabilityState {
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = discardLogger()
	}
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}

	state := CapabilityState{engines: make(map[Engine]EngineStatus)}
	for _, p := range engineProbes {
		st := probeEngine(ctx, runner, p, timeout)
		state.engines[p.engine] = st
		if st.Available {
			logger.Info("engine available",
				"engine", p.engine,
				"binary", st.Binary,
				"version", st.Version,
			)
		} else {
			logger.Info("engine unavailable", "engine", p.engine, "tried", p.binaries)
		}
	}
	return state
}

func probeEngine(ctx context.Context, runner CommandRunner, p engineProbe, timeout time.Duration) EngineStatus {
	for _, bin := range p.binaries {
		path, err := runner.LookPath(bin)
		if err != nil {
			continue
		}
		res, err := runner.Run(ctx, path, p.versionArgs, timeout)
		if err != nil || res.ExitCode != 0 {
			continue
		}
		version := strings.TrimSpace(firstLine(res.Stdout))
		if version == "" {
			version = strings.TrimSpace(firstLine(res.Stderr))
		}
		return EngineStatus{Available: true, Binary: path, Version: version}
	}
	return EngineStatus{}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}

var (
	defaultCaps     CapabilityState
	defaultCapsOnce sync.Once
)

// DefaultCapabilities probes the host once per process and caches the result.
func DefaultCapabilities(ctx context.Context, logger *slog.Logger) CapabilityState {
	defaultCapsOnce.Do(func() {
		defaultCaps = Probe(ctx, ExecRunner{}, logger, DefaultProbeTimeout)
	})
	return defaultCaps
}
