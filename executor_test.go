package fileconv

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestExecuteSuccess(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "notes.txt", "hello")
	out := filepath.Join(dir, "notes.md")

	var logBuf bytes.Buffer
	c := newTestConverter(t, []Binding{
		{Pair: Pair{FormatTXT, FormatMD}, Strategy: writeStrategy("writer", "# hello\n"), Rank: 1},
	}, WithAttemptLog(slog.New(slog.NewJSONHandler(&logBuf, nil))))

	r := c.ConvertOne(context.Background(), in, "md", out)
	if !r.Succeeded() {
		t.Fatalf("ConvertOne() failed: %s", r.Message)
	}
	if r.State != StateSucceeded || r.Source != FormatTXT || r.Target != FormatMD {
		t.Errorf("result = %+v", r)
	}
	if r.Strategy != "writer" || len(r.Attempts) != 1 {
		t.Errorf("strategy = %q, attempts = %v", r.Strategy, r.Attempts)
	}
	got, err := os.ReadFile(out)
	if err != nil || string(got) != "# hello\n" {
		t.Errorf("output = %q, %v", got, err)
	}
	if !strings.Contains(logBuf.String(), `"outcome":"ok"`) || !strings.Contains(logBuf.String(), `"pair":"txt->md"`) {
		t.Errorf("attempt log = %s", logBuf.String())
	}
}

func TestExecuteUnsupportedRunsNothing(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "a.png", "png")

	var calls atomic.Int32
	counting := StrategyFunc{StrategyName: "count", Fn: func(context.Context, *Task) error {
		calls.Add(1)
		return nil
	}}
	c := newTestConverter(t, []Binding{{Pair: Pair{FormatPNG, FormatJPG}, Strategy: counting, Rank: 1}})

	tests := []struct {
		name   string
		target string
	}{
		{"declared elsewhere", "md"},
		{"unknown target", "xyz"},
		{"self", "png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := c.ConvertOne(context.Background(), in, tt.target, filepath.Join(dir, "a."+tt.target))
			if r.Kind != KindUnsupportedConversion || r.State != StateRejected {
				t.Errorf("kind = %s, state = %s, want UnsupportedConversion/rejected", r.Kind, r.State)
			}
			if !IsUnsupportedConversion(r.Err) {
				t.Errorf("IsUnsupportedConversion(%v) = false", r.Err)
			}
		})
	}
	if calls.Load() != 0 {
		t.Errorf("strategy invoked %d times for unsupported pairs", calls.Load())
	}
}

func TestExecuteNoAvailableEngine(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "a.txt", "x")
	c := newTestConverter(t, []Binding{
		{Pair: Pair{FormatTXT, FormatPDF}, Strategy: failStrategy("office", EngineOffice, "unused"), Rank: 1},
	}, WithCapabilities(NewCapabilityState(nil)))

	r := c.ConvertOne(context.Background(), in, "pdf", filepath.Join(dir, "a.pdf"))
	if r.Kind != KindNoAvailableEngine || r.State != StateFailed {
		t.Fatalf("kind = %s, state = %s", r.Kind, r.State)
	}
	if !errors.Is(r.Err, ErrNoAvailableEngine) {
		t.Errorf("errors.Is(ErrNoAvailableEngine) = false for %v", r.Err)
	}
	if len(r.Attempts) != 0 {
		t.Errorf("attempts = %v, want none", r.Attempts)
	}
}

func TestExecuteFallbackSkipsUnavailable(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "a.txt", "x")

	var rank1 atomic.Int32
	office := StrategyFunc{StrategyName: "office", Engine: EngineOffice, Fn: func(context.Context, *Task) error {
		rank1.Add(1)
		return nil
	}}
	c := newTestConverter(t, []Binding{
		{Pair: Pair{FormatTXT, FormatPDF}, Strategy: office, Rank: 1},
		{Pair: Pair{FormatTXT, FormatPDF}, Strategy: writeStrategy("reflow", "%PDF"), Rank: 2},
	}, WithCapabilities(NewCapabilityState(map[Engine]bool{EngineTranscoder: true})))

	r := c.ConvertOne(context.Background(), in, "pdf", filepath.Join(dir, "a.pdf"))
	if !r.Succeeded() || r.Strategy != "reflow" {
		t.Fatalf("result = %s via %q: %s", r.Status, r.Strategy, r.Message)
	}
	if rank1.Load() != 0 {
		t.Error("unavailable rank-1 strategy was attempted")
	}
	if len(r.Attempts) != 1 {
		t.Errorf("attempts = %v, want only the fallback", r.Attempts)
	}
}

func TestExecuteAllStrategiesFailed(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "a.txt", "x")

	empty := StrategyFunc{StrategyName: "empty", Fn: func(_ context.Context, t *Task) error {
		return os.WriteFile(t.OutputPath, nil, 0o644)
	}}
	panicky := StrategyFunc{StrategyName: "panicky", Fn: func(context.Context, *Task) error {
		panic("boom")
	}}
	var scratch string
	recordScratch := StrategyFunc{StrategyName: "broken", Fn: func(_ context.Context, t *Task) error {
		scratch = t.ScratchDir
		return errors.New("engine crashed")
	}}

	c := newTestConverter(t, []Binding{
		{Pair: Pair{FormatTXT, FormatPDF}, Strategy: recordScratch, Rank: 1},
		{Pair: Pair{FormatTXT, FormatPDF}, Strategy: panicky, Rank: 2},
		{Pair: Pair{FormatTXT, FormatPDF}, Strategy: empty, Rank: 3},
	})

	out := filepath.Join(dir, "a.pdf")
	r := c.ConvertOne(context.Background(), in, "pdf", out)
	if r.Kind != KindAllStrategiesFailed || r.State != StateFailed {
		t.Fatalf("kind = %s, state = %s", r.Kind, r.State)
	}
	if r.OutputPath != "" {
		t.Errorf("failed result reports output %s", r.OutputPath)
	}
	var ce *ConversionError
	if !errors.As(r.Err, &ce) || len(ce.Attempts) != 3 {
		t.Fatalf("want ConversionError with 3 attempts, got %v", r.Err)
	}
	for _, want := range []string{"3 attempt(s)", "broken: engine crashed", "panicky: strategy panicked: boom", "empty: strategy produced an empty file"} {
		if !strings.Contains(r.Message, want) {
			t.Errorf("message missing %q:\n%s", want, r.Message)
		}
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("failed conversion left an output file")
	}
	if _, err := os.Stat(scratch); !os.IsNotExist(err) {
		t.Errorf("scratch directory %s not removed", scratch)
	}
}

func TestExecuteTimeout(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "a.txt", "x")

	slow := StrategyFunc{StrategyName: "slow", Fn: func(ctx context.Context, _ *Task) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	policy := TimeoutPolicy{Base: map[Category]time.Duration{CategoryDocument: 50 * time.Millisecond}}

	var logBuf bytes.Buffer
	c := newTestConverter(t, []Binding{{Pair: Pair{FormatTXT, FormatPDF}, Strategy: slow, Rank: 1}},
		WithTimeoutPolicy(policy), WithAttemptLog(slog.New(slog.NewJSONHandler(&logBuf, nil))))

	r := c.ConvertOne(context.Background(), in, "pdf", filepath.Join(dir, "a.pdf"))
	if r.Kind != KindAllStrategiesFailed {
		t.Fatalf("kind = %s, want AllStrategiesFailed", r.Kind)
	}
	if len(r.Attempts) != 1 || !r.Attempts[0].TimedOut {
		t.Errorf("attempts = %+v, want one timed-out attempt", r.Attempts)
	}
	if !errors.Is(r.Err, ErrTimeout) {
		t.Errorf("errors.Is(ErrTimeout) = false for %v", r.Err)
	}
	if !strings.Contains(logBuf.String(), `"outcome":"timeout"`) {
		t.Errorf("attempt log = %s", logBuf.String())
	}
}

func TestExecuteRejections(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "a.txt", "hello")
	existing := writeFile(t, dir, "taken.md", "old")
	big := writeFile(t, dir, "big.txt", strings.Repeat("x", 2048))
	if err := os.Mkdir(filepath.Join(dir, "folder.txt"), 0o755); err != nil {
		t.Fatal(err)
	}

	c := newTestConverter(t, []Binding{
		{Pair: Pair{FormatTXT, FormatMD}, Strategy: writeStrategy("w", "new"), Rank: 1},
	}, WithMaxFileSize(1024))

	tests := []struct {
		name   string
		input  string
		output string
		want   ErrorKind
	}{
		{"missing input", filepath.Join(dir, "nope.txt"), filepath.Join(dir, "nope.md"), KindInput},
		{"directory input", filepath.Join(dir, "folder.txt"), filepath.Join(dir, "folder.md"), KindInput},
		{"too large", big, filepath.Join(dir, "big.md"), KindInput},
		{"wrong extension", in, filepath.Join(dir, "a.html"), KindOutputPath},
		{"existing output", in, existing, KindOutputExists},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := c.ConvertOne(context.Background(), tt.input, "md", tt.output)
			if r.Kind != tt.want || r.State != StateRejected {
				t.Fatalf("kind = %s, state = %s, want %s/rejected (%s)", r.Kind, r.State, tt.want, r.Message)
			}
			if r.OutputPath != "" {
				t.Errorf("rejected result reports output %s", r.OutputPath)
			}
			if tt.want != KindOutputExists {
				if _, err := os.Stat(tt.output); !os.IsNotExist(err) {
					t.Errorf("rejected job created %s", tt.output)
				}
			}
		})
	}

	if got, _ := os.ReadFile(existing); string(got) != "old" {
		t.Errorf("existing output modified: %q", got)
	}
}

func TestExecuteCreatesOutputParent(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "a.txt", "hello")
	blocker := writeFile(t, dir, "blocker", "")

	c := newTestConverter(t, []Binding{
		{Pair: Pair{FormatTXT, FormatMD}, Strategy: writeStrategy("w", "new"), Rank: 1},
	})

	out := filepath.Join(dir, "sub", "deeper", "a.md")
	r := c.ConvertOne(context.Background(), in, "md", out)
	if !r.Succeeded() {
		t.Fatalf("ConvertOne() failed: %s", r.Message)
	}
	if r.OutputPath != out {
		t.Errorf("output = %s, want %s", r.OutputPath, out)
	}
	if got, _ := os.ReadFile(out); string(got) != "new" {
		t.Errorf("output content = %q", got)
	}

	r = c.ConvertOne(context.Background(), in, "md", filepath.Join(blocker, "a.md"))
	if r.Kind != KindOutputDirectory || r.State != StateFailed {
		t.Errorf("kind = %s, state = %s, want OutputDirectoryError/failed", r.Kind, r.State)
	}

	missing := filepath.Join(dir, "nope.txt")
	r = c.ConvertOne(context.Background(), missing, "md", filepath.Join(dir, "never", "nope.md"))
	if r.Kind != KindInput {
		t.Fatalf("kind = %s, want InputError", r.Kind)
	}
	if _, err := os.Stat(filepath.Join(dir, "never")); !os.IsNotExist(err) {
		t.Error("rejected job created the output directory")
	}
}

func TestExecuteOutputEqualsInput(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "a.md", "x")
	c := newTestConverter(t, []Binding{
		{Pair: Pair{FormatMD, FormatTXT}, Strategy: writeStrategy("w", "y"), Rank: 1},
	})
	r := c.ConvertOne(context.Background(), in, "txt", in)
	if r.Kind != KindOutputPath {
		t.Errorf("kind = %s, want OutputPathError", r.Kind)
	}
	if got, _ := os.ReadFile(in); string(got) != "x" {
		t.Errorf("input modified: %q", got)
	}
}

func TestExecuteIdempotent(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "a.txt", "x")
	out := filepath.Join(dir, "a.md")
	bindings := []Binding{{Pair: Pair{FormatTXT, FormatMD}, Strategy: writeStrategy("w", "same"), Rank: 1}}

	c := newTestConverter(t, bindings, WithOverwrite(true))
	for i := 0; i < 2; i++ {
		if r := c.ConvertOne(context.Background(), in, "md", out); !r.Succeeded() {
			t.Fatalf("run %d failed: %s", i+1, r.Message)
		}
		if got, _ := os.ReadFile(out); string(got) != "same" {
			t.Fatalf("run %d output = %q", i+1, got)
		}
	}

	strict := newTestConverter(t, bindings)
	if r := strict.ConvertOne(context.Background(), in, "md", out); r.Kind != KindOutputExists {
		t.Errorf("without overwrite kind = %s, want OutputExists", r.Kind)
	}
}

func TestExecuteCancelled(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "a.txt", "x")

	t.Run("before start", func(t *testing.T) {
		c := newTestConverter(t, []Binding{{Pair: Pair{FormatTXT, FormatMD}, Strategy: writeStrategy("w", "y"), Rank: 1}})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		r := c.ConvertOne(ctx, in, "md", filepath.Join(dir, "a.md"))
		if r.Kind != KindCancelled || r.State != StateFailed {
			t.Errorf("kind = %s, state = %s", r.Kind, r.State)
		}
	})

	t.Run("during attempt", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		blocking := StrategyFunc{StrategyName: "blocking", Fn: func(sctx context.Context, _ *Task) error {
			cancel()
			<-sctx.Done()
			return sctx.Err()
		}}
		c := newTestConverter(t, []Binding{
			{Pair: Pair{FormatTXT, FormatPDF}, Strategy: blocking, Rank: 1},
			{Pair: Pair{FormatTXT, FormatPDF}, Strategy: writeStrategy("never", "y"), Rank: 2},
		})
		r := c.ConvertOne(ctx, in, "pdf", filepath.Join(dir, "a.pdf"))
		if r.Kind != KindCancelled {
			t.Errorf("kind = %s, want Cancelled", r.Kind)
		}
		if r.Strategy != "" {
			t.Errorf("strategy %q ran after cancellation", r.Strategy)
		}
	})
}

func TestExecuteSniffsSourceFormat(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "scan", "%PDF-1.4\n%\xe2\xe3\xcf\xd3\n1 0 obj\n<<>>\nendobj\n")

	c := newTestConverter(t, []Binding{
		{Pair: Pair{FormatPDF, FormatTXT}, Strategy: writeStrategy("w", "text"), Rank: 1},
	})
	r := c.ConvertOne(context.Background(), in, "txt", filepath.Join(dir, "scan.txt"))
	if !r.Succeeded() || r.Source != FormatPDF {
		t.Errorf("source = %q, status = %s: %s", r.Source, r.Status, r.Message)
	}
}

func TestTimeoutPolicy(t *testing.T) {
	p := DefaultTimeoutPolicy()
	tests := []struct {
		name string
		cat  Category
		size int64
		want time.Duration
	}{
		{"small document", CategoryDocument, 1000, 60 * time.Second},
		{"10MiB document", CategoryDocument, 10 << 20, 70 * time.Second},
		{"image", CategoryImage, 0, 30 * time.Second},
		{"audio", CategoryAudio, 5 << 20, 310 * time.Second},
		{"video", CategoryVideo, 20 << 20, 700 * time.Second},
		{"capped", CategoryVideo, 1 << 30, time.Hour},
		{"unknown category", Category("other"), 0, time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.For(tt.cat, tt.size); got != tt.want {
				t.Errorf("For(%s, %d) = %s, want %s", tt.cat, tt.size, got, tt.want)
			}
		})
	}
}

func TestJobStateTransitions(t *testing.T) {
	tests := []struct {
		from, to JobState
		want     bool
	}{
		{StatePending, StateValidating, true},
		{StatePending, StateFailed, true},
		{StateValidating, StateRejected, true},
		{StateValidating, StateExecuting, false},
		{StateStrategySelection, StateFailed, true},
		{StateExecuting, StateSucceeded, true},
		{StateSucceeded, StateFailed, false},
		{StateRejected, StateValidating, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransition(tt.to); got != tt.want {
				t.Errorf("CanTransition = %v, want %v", got, tt.want)
			}
		})
	}
	for _, s := range []JobState{StateRejected, StateSucceeded, StateFailed} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
}
