package fileconv

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// fakeRunner is a CommandRunner that never starts a process.
type fakeRunner struct {
	mu sync.Mutex
	// installed maps binary names to resolved paths.
	installed map[string]string
	// handle, when set, produces the outcome of Run.
	handle func(name string, args []string) (RunResult, error)
	calls  [][]string
}

func (f *fakeRunner) LookPath(name string) (string, error) {
	if p, ok := f.installed[name]; ok {
		return p, nil
	}
	return "", errors.New("executable file not found in $PATH")
}

func (f *fakeRunner) Run(ctx context.Context, name string, args []string, timeout time.Duration) (RunResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string{name}, args...))
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return RunResult{}, err
	}
	if f.handle == nil {
		return RunResult{Stdout: name + " version 1.0\n"}, nil
	}
	return f.handle(name, args)
}

func (f *fakeRunner) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.calls...)
}

// writeFile creates dir/name with content and returns its path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// testImage returns a w×h gradient with a transparent top-left quadrant.
func testImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			a := uint8(0xff)
			if x < w/2 && y < h/2 {
				a = 0
			}
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 255 / max(w-1, 1)), G: uint8(y * 255 / max(h-1, 1)), B: 0x80, A: a})
		}
	}
	return img
}

// writeStrategy returns an in-process strategy that writes content to the
// staging output.
func writeStrategy(name, content string) StrategyFunc {
	return StrategyFunc{StrategyName: name, Fn: func(_ context.Context, t *Task) error {
		return os.WriteFile(t.OutputPath, []byte(content), 0o644)
	}}
}

// failStrategy returns a strategy that always fails with msg.
func failStrategy(name string, engine Engine, msg string) StrategyFunc {
	return StrategyFunc{StrategyName: name, Engine: engine, Fn: func(context.Context, *Task) error {
		return errors.New(msg)
	}}
}

// newTestConverter builds a Converter over explicit bindings with every
// engine available and no host probing.
func newTestConverter(t *testing.T, bindings []Binding, opts ...Option) *Converter {
	t.Helper()
	base := []Option{
		WithCapabilities(AllEngines()),
		WithRunner(&fakeRunner{}),
		WithTempDir(t.TempDir()),
		WithBindings(bindings),
		WithRegistry(testRegistry(t)),
	}
	c, err := New(append(base, opts...)...)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return c
}

// testRegistry is a small registry whose pairs are all marked best-effort,
// so tests may bind only the pairs they exercise.
func testRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := ParseRegistry([]byte(`
formats:
  txt: {category: document, aliases: [text], targets: [md, pdf]}
  md: {category: document, aliases: [markdown], targets: [txt]}
  pdf: {category: document, targets: [txt]}
  png: {category: image, targets: [jpg]}
  jpg: {category: image, targets: [png]}
best_effort:
  - {from: txt, to: md}
  - {from: txt, to: pdf}
  - {from: md, to: txt}
  - {from: pdf, to: txt}
  - {from: png, to: jpg}
  - {from: jpg, to: png}
`))
	if err != nil {
		t.Fatal(err)
	}
	return r
}
