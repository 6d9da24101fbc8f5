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
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// BatchOptions tunes one batch run.
type BatchOptions struct {
	Overwrite bool
	// Workers is the number of jobs run at once. Values below 2 run sequentially.
	Workers int
	// OnResult, when set, is called once per finished job.
	OnResult func(index int, r ConversionResult)
}

// RunBatch converts every input to target, writing into outDir. A failed job
// never stops the others; results keep input order. The only error returned
// is an OutputDirectoryError when outDir cannot be created.
func RunBatch(ctx context.Context, exec *Executor, inputs []string, target Format, outDir string, opts BatchOptions) (BatchSummary, error) {
	start := time.Now()
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return BatchSummary{}, &Error{Kind: KindOutputDirectory, Path: outDir, Err: err}
	}
	if info, err := os.Stat(outDir); err != nil || !info.IsDir() {
		return BatchSummary{}, newError(KindOutputDirectory, outDir, "%w: not a directory", ErrOutputDirectory)
	}

	jobs := planBatch(inputs, target, outDir, opts.Overwrite)
	results := make([]ConversionResult, len(jobs))

	run := func(i int) {
		p := jobs[i]
		if p.conflict != nil {
			results[i] = rejectedResult(p.job, p.conflict)
		} else {
			results[i] = exec.Execute(ctx, p.job)
		}
		if opts.OnResult != nil {
			opts.OnResult(i, results[i])
		}
	}

	if opts.Workers > 1 {
		var g errgroup.Group
		g.SetLimit(opts.Workers)
		for i := range jobs {
			g.Go(func() error {
				run(i)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i := range jobs {
			run(i)
		}
	}

	summary := BatchSummary{
		Total:   len(results),
		Results: results,
		Elapsed: time.Since(start),
	}
	for _, r := range results {
		if r.Succeeded() {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}
	exec.logger.Info("batch finished",
		slog.Int("total", summary.Total),
		slog.Int("succeeded", summary.Succeeded),
		slog.Int("failed", summary.Failed),
		slog.Duration("elapsed", summary.Elapsed),
	)
	return summary, nil
}

type plannedJob struct {
	job      ConversionJob
	conflict error
}

// planBatch assigns output paths. When two inputs share a stem, every input
// after the first is refused with OutputExists so one batch never overwrites
// its own output.
func planBatch(inputs []string, target Format, outDir string, overwrite bool) []plannedJob {
	claimed := make(map[string]string, len(inputs))
	jobs := make([]plannedJob, len(inputs))
	for i, in := range inputs {
		out := filepath.Join(outDir, OutputName(in, target))
		jobs[i].job = ConversionJob{
			ID:         uuid.NewString(),
			InputPath:  in,
			Target:     target,
			OutputPath: out,
			Overwrite:  overwrite,
		}
		if first, ok := claimed[out]; ok {
			jobs[i].conflict = newError(KindOutputExists, out,
				"%w: already produced from %s in this batch", ErrOutputExists, first)
			continue
		}
		claimed[out] = in
	}
	return jobs
}

func rejectedResult(job ConversionJob, err error) ConversionResult {
	return ConversionResult{
		JobID:      job.ID,
		InputPath:  job.InputPath,
		OutputPath: job.OutputPath,
		Target:     job.Target,
		Status:     StatusFailed,
		State:      StateRejected,
		Kind:       KindOf(err),
		Message:    err.Error(),
		Err:        err,
	}
}

// OutputName derives the output file name for input converted to target:
// the sanitized input stem plus the target extension.
func OutputName(input string, target Format) string {
	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return SanitizeFilename(stem) + target.Ext()
}

// SanitizeFilename replaces characters that are unsafe in file names and
// trims leading and trailing dots and spaces.
func SanitizeFilename(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', ':', '"', '/', '\\', '|', '?', '*':
			return '_'
		}
		if unicode.IsControl(r) {
			return '_'
		}
		return r
	}, name)
	name = strings.Trim(name, ". ")
	if name == "" {
		return "converted"
	}
	return name
}
