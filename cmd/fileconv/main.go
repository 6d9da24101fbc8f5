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

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	fileconv "github.com/nicholasgasior/fileconv-go"
	"github.com/nicholasgasior/fileconv-go/internal/config"
	"github.com/nicholasgasior/fileconv-go/internal/history"
)

var version = "dev"

type cliFlags struct {
	target          string
	output          string
	batch           bool
	force           bool
	jobs            int
	listFormats     bool
	listConversions bool
	probe           bool
	jsonOut         bool
	history         int
	verbose         bool
	showVersion     bool
}

func main() {
	os.Exit(run())
}

func run() int {
	var f cliFlags
	flag.StringVar(&f.target, "t", "", "Target format (e.g. pdf, png, mp3)")
	flag.StringVar(&f.target, "target", "", "Target format (e.g. pdf, png, mp3)")
	flag.StringVar(&f.output, "o", "", "Output file for one input, or output directory")
	flag.StringVar(&f.output, "output", "", "Output file for one input, or output directory")
	flag.BoolVar(&f.batch, "b", false, "Batch mode: walk directory inputs for supported files")
	flag.BoolVar(&f.batch, "batch", false, "Batch mode: walk directory inputs for supported files")
	flag.BoolVar(&f.force, "f", false, "Overwrite existing output files")
	flag.BoolVar(&f.force, "force", false, "Overwrite existing output files")
	flag.IntVar(&f.jobs, "j", 0, "Number of files converted at once (default from FILECONV_WORKERS)")
	flag.IntVar(&f.jobs, "jobs", 0, "Number of files converted at once (default from FILECONV_WORKERS)")
	flag.BoolVar(&f.listFormats, "list-formats", false, "List supported formats by category")
	flag.BoolVar(&f.listConversions, "list-conversions", false, "List conversions, optionally for the format given as argument")
	flag.BoolVar(&f.probe, "probe", false, "Report which external engines are installed")
	flag.BoolVar(&f.jsonOut, "json", false, "Print results as JSON")
	flag.IntVar(&f.history, "history", 0, "Show the N most recent conversions")
	flag.BoolVar(&f.verbose, "v", false, "Verbose logging")
	flag.BoolVar(&f.showVersion, "version", false, "Show version")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: fileconv [flags] INPUT...\n\n")
		fmt.Fprintf(os.Stderr, "Convert documents, spreadsheets, images, audio and video between formats.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if f.showVersion {
		fmt.Printf("fileconv %s\n", version)
		return 0
	}

	_ = godotenv.Load()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	level := cfg.Level()
	if f.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if f.history > 0 {
		return showHistory(cfg, f.history, f.jsonOut)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []fileconv.Option{
		fileconv.WithLogger(logger),
		fileconv.WithMaxFileSize(cfg.MaxFileSize()),
		fileconv.WithOverwrite(f.force),
		fileconv.WithDefaultOutputDir(cfg.OutputDir),
		fileconv.WithProbeTimeout(cfg.ProbeTimeout),
	}
	workers := cfg.Workers
	if f.jobs > 0 {
		workers = f.jobs
	}
	opts = append(opts, fileconv.WithWorkers(workers))

	if cfg.LogDir != "" {
		logFile, err := config.SetupLogFile(cfg.LogDir, cfg.MaxLogFiles)
		if err != nil {
			logger.Warn("attempt log disabled", "error", err)
		} else {
			defer logFile.Close()
			opts = append(opts, fileconv.WithAttemptLog(slog.New(slog.NewJSONHandler(logFile, nil))))
		}
	}
	if !f.jsonOut {
		opts = append(opts, fileconv.WithProgress(func(_ int, r fileconv.ConversionResult) {
			printResult(os.Stdout, r)
		}))
	}

	conv, err := fileconv.New(opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	switch {
	case f.probe:
		return printProbe(conv, f.jsonOut)
	case f.listFormats:
		return printFormats(conv, f.jsonOut)
	case f.listConversions:
		return printConversions(os.Stdout, conv, flag.Args(), f.jsonOut)
	}

	if f.target == "" || flag.NArg() == 0 {
		flag.Usage()
		return 1
	}

	inputs, err := collectInputs(conv.Registry(), flag.Args(), f.batch)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if len(inputs) == 0 {
		fmt.Fprintln(os.Stderr, "Error: no supported input files found")
		return 1
	}
	if len(inputs) > cfg.MaxBatchSize {
		fmt.Fprintf(os.Stderr, "Error: %d files exceed the batch limit of %d\n", len(inputs), cfg.MaxBatchSize)
		return 1
	}

	store := openHistory(cfg, logger)
	if store != nil {
		defer store.Close()
	}

	var results []fileconv.ConversionResult
	if len(inputs) == 1 && !f.batch {
		r := conv.ConvertOne(ctx, inputs[0], f.target, f.output)
		if f.jsonOut {
			writeJSON(os.Stdout, r)
		} else {
			printResult(os.Stdout, r)
		}
		results = []fileconv.ConversionResult{r}
	} else {
		summary, err := conv.ConvertBatch(ctx, inputs, f.target, f.output)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		results = summary.Results
		if f.jsonOut {
			writeJSON(os.Stdout, summary)
		} else {
			fmt.Printf("\n%d converted, %d failed (%s)\n", summary.Succeeded, summary.Failed, summary.Elapsed.Round(time.Millisecond))
		}
	}

	failed := 0
	for _, r := range results {
		recordHistory(store, r, logger)
		if !r.Succeeded() {
			failed++
		}
	}
	if failed > 0 {
		return 1
	}
	return 0
}

// collectInputs expands directories in batch mode to the supported files
// beneath them. Plain file arguments are passed through untouched.
func collectInputs(r *fileconv.Registry, args []string, batch bool) ([]string, error) {
	var out []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil || !info.IsDir() {
			out = append(out, arg)
			continue
		}
		if !batch {
			return nil, fmt.Errorf("%s is a directory (use -b to convert its contents)", arg)
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if _, ok := r.FormatForPath(path); ok {
				out = append(out, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", arg, err)
		}
	}
	return out, nil
}

func printResult(w io.Writer, r fileconv.ConversionResult) {
	if r.Succeeded() {
		fmt.Fprintf(w, "ok    %s -> %s [%s, %s]\n", r.InputPath, r.OutputPath, r.Strategy, r.Elapsed.Round(time.Millisecond))
		return
	}
	fmt.Fprintf(w, "FAIL  %s: %s\n", r.InputPath, r.Message)
}

func printProbe(conv *fileconv.Converter, asJSON bool) int {
	summary := conv.Capabilities().Summary()
	if asJSON {
		writeJSON(os.Stdout, summary)
		return 0
	}
	for _, s := range summary {
		if s.Available {
			fmt.Printf("%-12s available    %s (%s)\n", s.Engine, s.Binary, s.Version)
		} else {
			fmt.Printf("%-12s missing\n", s.Engine)
		}
	}
	return 0
}

func printFormats(conv *fileconv.Converter, asJSON bool) int {
	r := conv.Registry()
	byCategory := map[fileconv.Category][]fileconv.Format{}
	for _, f := range conv.ListSupportedFormats() {
		c, _ := r.CategoryOf(f)
		byCategory[c] = append(byCategory[c], f)
	}
	if asJSON {
		writeJSON(os.Stdout, byCategory)
		return 0
	}
	categories := make([]string, 0, len(byCategory))
	for c := range byCategory {
		categories = append(categories, string(c))
	}
	sort.Strings(categories)
	for _, c := range categories {
		fmt.Printf("%s: %s\n", c, joinFormats(byCategory[fileconv.Category(c)]))
	}
	return 0
}

// printConversions lists every conversion, or only those of the format named
// by the first argument.
func printConversions(w io.Writer, conv *fileconv.Converter, args []string, asJSON bool) int {
	var name string
	if len(args) > 0 {
		name = args[0]
	}
	conversions := conv.ListConversions(name)
	if name != "" && len(conversions) == 0 {
		fmt.Fprintf(os.Stderr, "Error: unknown format %q\n", name)
		return 1
	}
	if asJSON {
		writeJSON(w, conversions)
		return 0
	}
	for _, src := range conv.ListSupportedFormats() {
		targets, ok := conversions[src]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "%s -> %s\n", src, joinFormats(targets))
	}
	return 0
}

func joinFormats(formats []fileconv.Format) string {
	names := make([]string, len(formats))
	for i, f := range formats {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}

func writeJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error: encode JSON: %v\n", err)
	}
}

func openHistory(cfg *config.Config, logger *slog.Logger) *history.Store {
	if cfg.HistoryDir == "" {
		return nil
	}
	store, err := history.Open(cfg.HistoryDir)
	if err != nil {
		logger.Warn("conversion history disabled", "error", err)
		return nil
	}
	if cfg.HistoryDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -cfg.HistoryDays)
		if err := store.Prune(cutoff); err != nil {
			logger.Warn("prune history", "before", cutoff, "error", err)
		}
	}
	return store
}

func recordHistory(store *history.Store, r fileconv.ConversionResult, logger *slog.Logger) {
	if store == nil {
		return
	}
	err := store.Record(history.Entry{
		JobID:      r.JobID,
		InputPath:  r.InputPath,
		OutputPath: r.OutputPath,
		Source:     string(r.Source),
		Target:     string(r.Target),
		Status:     string(r.Status),
		Kind:       string(r.Kind),
		Message:    r.Message,
		Strategy:   r.Strategy,
		Elapsed:    r.Elapsed,
	})
	if err != nil {
		logger.Warn("record history", "job", r.JobID, "error", err)
	}
}

func showHistory(cfg *config.Config, limit int, asJSON bool) int {
	if cfg.HistoryDir == "" {
		fmt.Fprintln(os.Stderr, "Error: FILECONV_HISTORY_DIR is not set")
		return 1
	}
	store, err := history.Open(cfg.HistoryDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer store.Close()

	entries, err := store.Recent(limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if asJSON {
		writeJSON(os.Stdout, entries)
		return 0
	}
	for _, e := range entries {
		outcome := e.Status
		if e.Kind != "" {
			outcome += " (" + e.Kind + ")"
		}
		fmt.Printf("%s  %-9s %s -> %s\n", e.FinishedAt.Format("2006-01-02 15:04:05"), outcome, e.InputPath, e.Target)
	}
	return 0
}
