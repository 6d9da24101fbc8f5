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
	"path/filepath"
	"time"
)

// Task holds everything a strategy needs for one attempt.
type Task struct {
	JobID     string
	InputPath string
	// OutputPath is a staging file inside ScratchDir. The executor moves it
	// onto the requested output once the strategy returns successfully.
	OutputPath string
	Source     Format
	Target     Format
	// ScratchDir is private to this attempt and removed afterwards.
	ScratchDir string
	Runner     CommandRunner
	Caps       CapabilityState
	Timeout    time.Duration
	Logger     *slog.Logger
}

// TempPath returns a path for an intermediate file inside the scratch directory.
func (t *Task) TempPath(name string) string {
	return filepath.Join(t.ScratchDir, name)
}

// Strategy is a named conversion method.
type Strategy interface {
	// Name identifies the strategy in results and logs.
	Name() string

	// Requires returns the engine the strategy needs, or EngineNone.
	Requires() Engine

	// Convert writes t.OutputPath from t.InputPath. It must honour ctx.
	Convert(ctx context.Context, t *Task) error
}

// StrategyFunc adapts a function into a Strategy.
type StrategyFunc struct {
	StrategyName string
	Engine       Engine
	Fn           func(ctx context.Context, t *Task) error
}

func (s StrategyFunc) Name() string     { return s.StrategyName }
func (s StrategyFunc) Requires() Engine { return s.Engine }

func (s StrategyFunc) Convert(ctx context.Context, t *Task) error {
	return s.Fn(ctx, t)
}

// Binding attaches a strategy to a pair with a fallback rank. Lower ranks run first.
type Binding struct {
	Pair     Pair
	Strategy Strategy
	Rank     int
}
