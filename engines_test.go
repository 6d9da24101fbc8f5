package fileconv

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

func TestTranscodeArgs(t *testing.T) {
	tests := []struct {
		name    string
		src     Category
		dst     Category
		target  Format
		want    []string
		wantErr bool
	}{
		{
			name: "video to mp3", src: CategoryVideo, dst: CategoryAudio, target: FormatMP3,
			want: []string{"-y", "-hide_banner", "-loglevel", "error", "-i", "in", "-vn", "-codec:a", "libmp3lame", "-b:a", "192k", "out"},
		},
		{
			name: "audio to flac", src: CategoryAudio, dst: CategoryAudio, target: FormatFLAC,
			want: []string{"-y", "-hide_banner", "-loglevel", "error", "-i", "in", "-codec:a", "flac", "out"},
		},
		{
			name: "video to webm", src: CategoryVideo, dst: CategoryVideo, target: FormatWEBM,
			want: []string{"-y", "-hide_banner", "-loglevel", "error", "-i", "in", "-codec:v", "libvpx", "-codec:a", "libvorbis", "out"},
		},
		{
			name: "video to gif", src: CategoryVideo, dst: CategoryImage, target: FormatGIF,
			want: []string{"-y", "-hide_banner", "-loglevel", "error", "-i", "in", "-an", "-vf", gifFilter, "out"},
		},
		{name: "audio to video", src: CategoryAudio, dst: CategoryVideo, target: FormatMP4, wantErr: true},
		{name: "image to gif", src: CategoryImage, dst: CategoryImage, target: FormatGIF, wantErr: true},
		{name: "unknown audio target", src: CategoryAudio, dst: CategoryAudio, target: Format("opus"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := transcodeArgs(tt.src, tt.dst, tt.target, "in", "out")
			if tt.wantErr {
				if err == nil {
					t.Errorf("transcodeArgs() = %v, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("transcodeArgs() =\n  %v\nwant\n  %v", got, tt.want)
			}
		})
	}
}

func TestCodecArgsCoverRegistry(t *testing.T) {
	r, err := DefaultRegistry()
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range r.FormatsIn(CategoryAudio) {
		if audioCodecArgs(f) == nil {
			t.Errorf("no audio encoder for %s", f)
		}
	}
	for _, f := range r.FormatsIn(CategoryVideo) {
		if videoCodecArgs(f) == nil {
			t.Errorf("no video encoder for %s", f)
		}
	}
}

func TestMagickArgs(t *testing.T) {
	tests := []struct {
		name        string
		src, target Format
		want        []string
	}{
		{"png to jpg", FormatPNG, FormatJPG, []string{"in", "-background", "white", "-flatten", "-quality", "95", "jpg:out"}},
		{"gif first frame", FormatGIF, FormatPNG, []string{"in[0]", "png:out"}},
		{"gif keeps frames as tiff", FormatGIF, FormatTIFF, []string{"in", "-compress", "zip", "tiff:out"}},
		{"svg input", FormatSVG, FormatWEBP, []string{"svg:in", "-quality", "90", "webp:out"}},
		{"ico output", FormatBMP, FormatICO, []string{"in", "-define", "icon:auto-resize=256,128,64,48,32,16", "ico:out"}},
		{"ico source", FormatICO, FormatBMP, []string{"in[0]", "-background", "white", "-flatten", "bmp:out"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := magickArgs(tt.src, tt.target, "in", "out"); !slices.Equal(got, tt.want) {
				t.Errorf("magickArgs() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRasterizeArgs(t *testing.T) {
	if got, want := rasterizeArgs(FormatPNG, "a.svg", "a.png"), []string{"-w", "1024", "--keep-aspect-ratio", "-f", "png", "-o", "a.png", "a.svg"}; !slices.Equal(got, want) {
		t.Errorf("rasterizeArgs(png) = %v", got)
	}
	if got, want := rasterizeArgs(FormatPDF, "a.svg", "a.pdf"), []string{"--keep-aspect-ratio", "-f", "pdf", "-o", "a.pdf", "a.svg"}; !slices.Equal(got, want) {
		t.Errorf("rasterizeArgs(pdf) = %v", got)
	}
}

func TestOfficeArgs(t *testing.T) {
	got := officeArgs("pdf", "/in/a.docx", "/tmp/out", "/tmp/profile")
	want := []string{
		"-env:UserInstallation=file:///tmp/profile",
		"--headless", "--norestore",
		"--convert-to", "pdf",
		"--outdir", "/tmp/out",
		"/in/a.docx",
	}
	if !slices.Equal(got, want) {
		t.Errorf("officeArgs() = %v, want %v", got, want)
	}
}

func TestConvertOffice(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "letter.docx", "docx")

	tests := []struct {
		name    string
		handle  func(name string, args []string) (RunResult, error)
		wantErr string
	}{
		{
			name: "renames output",
			handle: func(_ string, args []string) (RunResult, error) {
				outDir := args[slices.Index(args, "--outdir")+1]
				return RunResult{}, os.WriteFile(filepath.Join(outDir, "letter.pdf"), []byte("%PDF"), 0o644)
			},
		},
		{
			name: "non-zero exit",
			handle: func(string, []string) (RunResult, error) {
				return RunResult{ExitCode: 77, Stderr: "warning\nsource file could not be loaded\n"}, nil
			},
			wantErr: "soffice exited with status 77: source file could not be loaded",
		},
		{
			name: "no output",
			handle: func(string, []string) (RunResult, error) {
				return RunResult{}, nil
			},
			wantErr: "produced no pdf output",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scratch := t.TempDir()
			task := &Task{
				InputPath:  in,
				OutputPath: filepath.Join(scratch, "letter.pdf"),
				Source:     FormatDOCX,
				Target:     FormatPDF,
				ScratchDir: scratch,
				Runner:     &fakeRunner{handle: tt.handle},
				Caps:       AllEngines(),
				Timeout:    time.Minute,
			}
			err := convertOffice(context.Background(), task)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("convertOffice() error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if _, err := os.Stat(task.OutputPath); err != nil {
				t.Errorf("staging output missing: %v", err)
			}
		})
	}

	task := &Task{Target: FormatXLSX}
	if err := convertOffice(context.Background(), task); err == nil {
		t.Error("convertOffice(xlsx target) succeeded")
	}
}

func TestRunTool(t *testing.T) {
	tests := []struct {
		name    string
		res     RunResult
		err     error
		wantErr string
	}{
		{"ok", RunResult{}, nil, ""},
		{"exit without stderr", RunResult{ExitCode: 2}, nil, "tool exited with status 2"},
		{"start failure", RunResult{}, errors.New("start tool: no such file"), "no such file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeRunner{handle: func(string, []string) (RunResult, error) { return tt.res, tt.err }}
			err := runTool(context.Background(), r, "tool", nil, time.Second)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("runTool() error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("runTool() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

// writeLastArg is a runner handle that creates the file named by the last
// argument, like most engines do with their output path.
func writeLastArg(_ string, args []string) (RunResult, error) {
	out := args[len(args)-1]
	if i := strings.Index(out, ":"); i > 0 && i < 5 {
		out = out[i+1:]
	}
	return RunResult{}, os.WriteFile(out, []byte("converted"), 0o644)
}

func TestBuiltinStrategies(t *testing.T) {
	dir := t.TempDir()
	runner := &fakeRunner{handle: func(name string, args []string) (RunResult, error) {
		if name == "soffice" {
			return RunResult{ExitCode: 1, Stderr: "office crashed"}, nil
		}
		return writeLastArg(name, args)
	}}
	c, err := New(WithCapabilities(AllEngines()), WithRunner(runner), WithTempDir(t.TempDir()))
	if err != nil {
		t.Fatal(err)
	}

	docx := filepath.Join(dir, "memo.docx")
	if err := writeDocumentDOCX(&document{Title: "Memo", Markdown: "# Memo\n\nShip it."}, docx); err != nil {
		t.Fatal(err)
	}
	clip := writeFile(t, dir, "clip.mp4", "video")
	icon := writePNG(t, dir, "icon.png", testImage(48, 48))
	rows := writeFile(t, dir, "rows.csv", "a,b\n1,2\n")

	tests := []struct {
		name         string
		input        string
		target       string
		wantStrategy string
		wantAttempts int
	}{
		{"office falls back to reflow", docx, "pdf", StrategyTextReflow, 2},
		{"docx to markdown in process", docx, "md", StrategyTextReflow, 1},
		{"video to audio", clip, "mp3", StrategyTranscoder, 1},
		{"png to ico natively", icon, "ico", StrategyNativeCodec, 1},
		{"png to webp", icon, "webp", StrategyWebP, 1},
		{"csv to xlsx", rows, "xlsx", StrategyTableCodec, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := filepath.Join(dir, tt.name+"."+tt.target)
			r := c.ConvertOne(context.Background(), tt.input, tt.target, out)
			if !r.Succeeded() {
				t.Fatalf("ConvertOne() failed: %s", r.Message)
			}
			if r.Strategy != tt.wantStrategy || len(r.Attempts) != tt.wantAttempts {
				t.Errorf("strategy = %q after %d attempts, want %q after %d", r.Strategy, len(r.Attempts), tt.wantStrategy, tt.wantAttempts)
			}
			if info, err := os.Stat(out); err != nil || info.Size() == 0 {
				t.Errorf("output missing or empty: %v", err)
			}
		})
	}

	var sawVN bool
	for _, call := range runner.Calls() {
		if call[0] == "ffmpeg" && slices.Contains(call, "-vn") {
			sawVN = true
		}
	}
	if !sawVN {
		t.Error("transcoder was not asked to drop the video stream")
	}
}

func TestInProcessStrategiesStopWhenCancelled(t *testing.T) {
	dir := t.TempDir()
	txt := writeFile(t, dir, "notes.txt", "hello")
	csv := writeFile(t, dir, "rows.csv", "a,b\n1,2\n")
	png := writePNG(t, dir, "pic.png", testImage(8, 8))

	tests := []struct {
		name     string
		strategy Strategy
		input    string
		source   Format
		target   Format
	}{
		{"text reflow", textReflowStrategy, txt, FormatTXT, FormatMD},
		{"table codec", tableStrategy, csv, FormatCSV, FormatXLSX},
		{"native codec", nativeImageStrategy, png, FormatPNG, FormatJPG},
		{"image pdf", imagePDFStrategy, png, FormatPNG, FormatPDF},
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := filepath.Join(t.TempDir(), "out"+tt.target.Ext())
			task := &Task{InputPath: tt.input, OutputPath: out, Source: tt.source, Target: tt.target}
			if err := tt.strategy.Convert(ctx, task); !errors.Is(err, context.Canceled) {
				t.Errorf("Convert() error = %v, want context.Canceled", err)
			}
			if _, err := os.Stat(out); !os.IsNotExist(err) {
				t.Error("cancelled strategy wrote its output")
			}
		})
	}
}
