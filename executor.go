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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TimeoutPolicy derives the per-attempt timeout from the source category and
// the input size.
type TimeoutPolicy struct {
	Base   map[Category]time.Duration
	PerMiB map[Category]time.Duration
	// Max caps the result. Zero means no cap.
	Max time.Duration
}

// DefaultTimeoutPolicy returns the built-in timeouts.
func DefaultTimeoutPolicy() TimeoutPolicy {
	return TimeoutPolicy{
		Base: map[Category]time.Duration{
			CategoryDocument:    60 * time.Second,
			CategorySpreadsheet: 60 * time.Second,
			CategoryImage:       30 * time.Second,
			CategoryAudio:       300 * time.Second,
			CategoryVideo:       600 * time.Second,
		},
		PerMiB: map[Category]time.Duration{
			CategoryDocument:    time.Second,
			CategorySpreadsheet: time.Second,
			CategoryImage:       time.Second,
			CategoryAudio:       2 * time.Second,
			CategoryVideo:       5 * time.Second,
		},
		Max: time.Hour,
	}
}

// For returns the timeout for one attempt on an input of size bytes.
func (p TimeoutPolicy) For(c Category, size int64) time.Duration {
	d, ok := p.Base[c]
	if !ok {
		d = time.Minute
	}
	if step := p.PerMiB[c]; step > 0 && size > 0 {
		d += time.Duration(size>>20) * step
	}
	if p.Max > 0 && d > p.Max {
		d = p.Max
	}
	return d
}

// Executor runs one job to completion: validation, strategy selection, then
// ordered attempts until one succeeds.
type Executor struct {
	registry    *Registry
	selector    *Selector
	caps        CapabilityState
	runner      CommandRunner
	logger      *slog.Logger
	attemptLog  *slog.Logger
	maxFileSize int64
	timeouts    TimeoutPolicy
	tempDir     string
}

// Execute always returns exactly one result for job.
func (e *Executor) Execute(ctx context.Context, job ConversionJob) ConversionResult {
	start := time.Now()
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	res := ConversionResult{
		JobID:     job.ID,
		InputPath: job.InputPath,
		Target:    job.Target,
	}
	tr := newJobTracker()

	finish := func(state JobState, err error) ConversionResult {
		tr.advance(state)
		res.State = tr.state
		res.Elapsed = time.Since(start)
		if state == StateSucceeded {
			res.Status = StatusSucceeded
			e.logger.Info("conversion succeeded",
				"job", res.JobID,
				"input", res.InputPath,
				"output", res.OutputPath,
				"strategy", res.Strategy,
				"elapsed", res.Elapsed,
			)
			return res
		}
		res.Status = StatusFailed
		res.Err = err
		res.Kind = KindOf(err)
		res.Message = err.Error()
		var ce *ConversionError
		if errors.As(err, &ce) {
			res.Message = ce.Error()
		}
		e.logger.Warn("conversion failed",
			"job", res.JobID,
			"input", res.InputPath,
			"target", res.Target,
			"kind", res.Kind,
			"error", err,
		)
		return res
	}

	if err := ctx.Err(); err != nil {
		return finish(StateFailed, &Error{Kind: KindCancelled, Path: job.InputPath, Err: err})
	}

	tr.advance(StateValidating)
	info, err := e.validateInput(job.InputPath)
	if err != nil {
		return finish(StateRejected, err)
	}

	src, ok := e.sourceFormat(job.InputPath)
	if !ok {
		return finish(StateRejected, newError(KindUnsupportedConversion, job.InputPath,
			"%w: cannot determine source format", ErrUnsupportedConversion))
	}
	res.Source = src
	pair := Pair{Source: src, Target: job.Target}
	if !e.registry.IsSupported(src, job.Target) {
		return finish(StateRejected, newError(KindUnsupportedConversion, job.InputPath,
			"%w: %s", ErrUnsupportedConversion, pair))
	}

	if err := e.validateOutput(job); err != nil {
		return finish(StateRejected, err)
	}

	tr.advance(StateStrategySelection)
	strategies := e.selector.Select(pair)
	if len(strategies) == 0 {
		return finish(StateFailed, newError(KindNoAvailableEngine, job.InputPath,
			"%w for %s", ErrNoAvailableEngine, pair))
	}
	if dir := filepath.Dir(job.OutputPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return finish(StateFailed, &Error{Kind: KindOutputDirectory, Path: dir, Err: err})
		}
	}

	tr.advance(StateExecuting)
	scratch, err := os.MkdirTemp(e.tempDir, "fileconv-"+job.ID+"-")
	if err != nil {
		return finish(StateFailed, &Error{Kind: KindAllStrategiesFailed, Path: job.InputPath,
			Err: fmt.Errorf("create scratch directory: %w", err)})
	}
	defer os.RemoveAll(scratch)

	category, _ := e.registry.CategoryOf(src)
	timeout := e.timeouts.For(category, info.Size())

	var failed []FailedAttempt
	for i, s := range strategies {
		if err := ctx.Err(); err != nil {
			res.Attempts = attemptsOf(failed)
			return finish(StateFailed, &Error{Kind: KindCancelled, Path: job.InputPath, Err: err})
		}

		task := &Task{
			JobID:      job.ID,
			InputPath:  job.InputPath,
			Source:     src,
			Target:     job.Target,
			ScratchDir: filepath.Join(scratch, fmt.Sprintf("attempt-%d", i+1)),
			Runner:     e.runner,
			Caps:       e.caps,
			Timeout:    timeout,
			Logger:     e.logger.With("job", job.ID, "strategy", s.Name()),
		}
		task.OutputPath = filepath.Join(task.ScratchDir, stagingName(job.InputPath, job.Target))

		attemptStart := time.Now()
		err := e.attempt(ctx, s, task)
		if err == nil {
			err = moveFile(task.OutputPath, job.OutputPath)
		}
		elapsed := time.Since(attemptStart)
		e.logAttempt(job, pair, s.Name(), err, elapsed)

		if err == nil {
			res.OutputPath = job.OutputPath
			res.Strategy = s.Name()
			res.Attempts = append(attemptsOf(failed), Attempt{Strategy: s.Name(), Elapsed: elapsed})
			return finish(StateSucceeded, nil)
		}
		failed = append(failed, FailedAttempt{Strategy: s.Name(), Err: err, Elapsed: elapsed})
	}

	res.Attempts = attemptsOf(failed)
	if err := ctx.Err(); err != nil {
		return finish(StateFailed, &Error{Kind: KindCancelled, Path: job.InputPath, Err: err})
	}
	return finish(StateFailed, &Error{
		Kind: KindAllStrategiesFailed,
		Path: job.InputPath,
		Err:  &ConversionError{Attempts: failed},
	})
}

func (e *Executor) validateInput(path string) (os.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, newError(KindInput, path, "%w: file does not exist", ErrInput)
		}
		return nil, &Error{Kind: KindInput, Path: path, Err: err}
	}
	if !info.Mode().IsRegular() {
		return nil, newError(KindInput, path, "%w: not a regular file", ErrInput)
	}
	if e.maxFileSize > 0 && info.Size() > e.maxFileSize {
		return nil, newError(KindInput, path, "%w: file is %d bytes, limit is %d",
			ErrInput, info.Size(), e.maxFileSize)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, &Error{Kind: KindInput, Path: path, Err: fmt.Errorf("%w: %w", ErrInput, err)}
	}
	f.Close()
	return info, nil
}

// sourceFormat resolves the source format from the extension, falling back
// to content sniffing when the extension is missing or unknown.
func (e *Executor) sourceFormat(path string) (Format, bool) {
	if f, ok := e.registry.FormatForPath(path); ok {
		return f, true
	}
	return detectFormat(e.registry, path)
}

// validateOutput checks the output path without touching the filesystem. A
// missing parent directory is created once a strategy is about to run.
func (e *Executor) validateOutput(job ConversionJob) error {
	if job.OutputPath == "" {
		return newError(KindOutputPath, job.InputPath, "%w: empty output path", ErrOutputPath)
	}
	if samePath(job.InputPath, job.OutputPath) {
		return newError(KindOutputPath, job.OutputPath, "%w: output would overwrite the input", ErrOutputPath)
	}
	if f, ok := e.registry.FormatForPath(job.OutputPath); !ok || f != job.Target {
		return newError(KindOutputPath, job.OutputPath, "%w: extension does not match target %s",
			ErrOutputPath, job.Target)
	}
	if _, err := os.Lstat(job.OutputPath); err == nil && !job.Overwrite {
		return newError(KindOutputExists, job.OutputPath, "%w", ErrOutputExists)
	}
	return nil
}

// attempt runs one strategy under the attempt timeout. Panics, errors and
// empty output all count as failure.
func (e *Executor) attempt(ctx context.Context, s Strategy, t *Task) error {
	if err := os.MkdirAll(t.ScratchDir, 0o755); err != nil {
		return fmt.Errorf("create attempt directory: %w", err)
	}

	actx, cancel := context.WithTimeout(ctx, t.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("strategy panicked: %v", r)
			}
		}()
		done <- s.Convert(actx, t)
	}()

	var err error
	select {
	case err = <-done:
	case <-actx.Done():
		err = actx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) || (err != nil && actx.Err() == context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w after %s", s.Name(), ErrTimeout, t.Timeout)
	}
	if err != nil {
		return err
	}

	info, err := os.Stat(t.OutputPath)
	if err != nil {
		return fmt.Errorf("strategy produced no output: %w", err)
	}
	if info.Size() == 0 {
		return errors.New("strategy produced an empty file")
	}
	return nil
}

func (e *Executor) logAttempt(job ConversionJob, pair Pair, strategy string, err error, elapsed time.Duration) {
	outcome := "ok"
	attrs := []any{
		"job", job.ID,
		"input", job.InputPath,
		"pair", pair.String(),
		"strategy", strategy,
	}
	switch {
	case errors.Is(err, ErrTimeout):
		outcome = "timeout"
	case err != nil:
		outcome = "error"
	}
	attrs = append(attrs, "outcome", outcome, "elapsed", elapsed)
	if err != nil {
		attrs = append(attrs, "error", err.Error())
	}
	e.attemptLog.Info("attempt", attrs...)
}

func attemptsOf(failed []FailedAttempt) []Attempt {
	out := make([]Attempt, 0, len(failed)+1)
	for _, f := range failed {
		out = append(out, Attempt{
			Strategy: f.Strategy,
			Error:    f.Err.Error(),
			Elapsed:  f.Elapsed,
			TimedOut: f.TimedOut(),
		})
	}
	return out
}

// stagingName keeps the input stem so tools that derive names from their
// input (office) and those that infer the format from the extension agree.
func stagingName(input string, target Format) string {
	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	if stem == "" || stem == "." {
		stem = "output"
	}
	return stem + target.Ext()
}

func samePath(a, b string) bool {
	aa, errA := filepath.Abs(a)
	bb, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	if aa == bb {
		return true
	}
	ia, errA := os.Stat(aa)
	ib, errB := os.Stat(bb)
	return errA == nil && errB == nil && os.SameFile(ia, ib)
}

// moveFile renames src onto dst, copying when the two are on different devices.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open staged output: %w", err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".tmp-")
	if err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write output: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
