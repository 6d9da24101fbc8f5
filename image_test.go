package fileconv

import (
	"bytes"
	"context"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// Icon container layout: a 6-byte header followed by 16-byte directory entries.
const (
	icoDirSize   = 6
	icoEntrySize = 16
)

func writePNG(t *testing.T, dir, name string, img image.Image) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return writeFile(t, dir, name, buf.String())
}

func TestConvertImage(t *testing.T) {
	dir := t.TempDir()
	src := writePNG(t, dir, "src.png", testImage(40, 30))

	tests := []struct {
		target   Format
		wantW    int
		wantH    int
		flattens bool
	}{
		{FormatJPG, 40, 30, true},
		{FormatGIF, 40, 30, false},
		{FormatBMP, 40, 30, true},
		{FormatTIFF, 40, 30, false},
		{FormatICO, 32, 32, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.target), func(t *testing.T) {
			out := filepath.Join(dir, "out"+tt.target.Ext())
			task := &Task{InputPath: src, OutputPath: out, Source: FormatPNG, Target: tt.target}
			if err := convertImage(context.Background(), task); err != nil {
				t.Fatalf("convertImage(png -> %s) error: %v", tt.target, err)
			}

			img, err := decodeImage(out, tt.target)
			if err != nil {
				t.Fatalf("decode output: %v", err)
			}
			if b := img.Bounds(); b.Dx() != tt.wantW || b.Dy() != tt.wantH {
				t.Errorf("output is %dx%d, want %dx%d", b.Dx(), b.Dy(), tt.wantW, tt.wantH)
			}
			if tt.flattens {
				r, g, b, a := img.At(0, 0).RGBA()
				if a != 0xffff || r < 0xf000 || g < 0xf000 || b < 0xf000 {
					t.Errorf("transparent corner = %v, want white", img.At(0, 0))
				}
			}
		})
	}
}

func TestDecodeImageErrors(t *testing.T) {
	dir := t.TempDir()
	bad := writeFile(t, dir, "bad.png", "not an image")
	if _, err := decodeImage(bad, FormatPNG); err == nil {
		t.Error("decodeImage(garbage) succeeded")
	}
	if _, err := decodeImage(bad, FormatSVG); err == nil {
		t.Error("decodeImage(svg) succeeded, want no native decoder")
	}
	if err := encodeImage(testImage(4, 4), FormatWEBP, filepath.Join(dir, "x.webp")); err == nil {
		t.Error("encodeImage(webp) succeeded, want no native encoder")
	}
}

func TestFlatten(t *testing.T) {
	opaqueImg := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for i := range opaqueImg.Pix {
		opaqueImg.Pix[i] = 0xff
	}
	if got := flatten(opaqueImg); got != image.Image(opaqueImg) {
		t.Error("flatten copied an opaque image")
	}

	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 0, G: 0, B: 0, A: 0x80})
	r, g, b, a := flatten(img).At(0, 0).RGBA()
	if a != 0xffff {
		t.Fatalf("alpha = %#x, want opaque", a)
	}
	// Half-transparent black over white lands near mid grey.
	for _, c := range []uint32{r, g, b} {
		if c < 0x7000 || c > 0x8800 {
			t.Errorf("channel = %#x, want mid grey", c)
		}
	}
}

func TestEncodeICOSizes(t *testing.T) {
	tests := []struct {
		name      string
		w, h      int
		wantSizes []int
	}{
		{"large", 300, 200, []int{16, 32, 48, 64, 128, 256}},
		{"medium", 50, 70, []int{16, 32, 48, 64}},
		{"tiny", 10, 6, []int{10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := encodeICO(&buf, testImage(tt.w, tt.h)); err != nil {
				t.Fatal(err)
			}
			data := buf.Bytes()
			count := int(binary.LittleEndian.Uint16(data[4:]))
			if count != len(tt.wantSizes) {
				t.Fatalf("icon has %d entries, want %d", count, len(tt.wantSizes))
			}
			for i, want := range tt.wantSizes {
				dim := int(data[icoDirSize+icoEntrySize*i])
				if dim == 0 {
					dim = 256
				}
				if dim != want {
					t.Errorf("entry %d is %dpx, want %d", i, dim, want)
				}
			}

			img, err := decodeICO(data)
			if err != nil {
				t.Fatalf("decodeICO() error: %v", err)
			}
			largest := tt.wantSizes[len(tt.wantSizes)-1]
			if b := img.Bounds(); b.Dx() != largest || b.Dy() != largest {
				t.Errorf("decoded %v, want the %dpx entry", b, largest)
			}
		})
	}
}

// dibIcon builds a 2×2 24bpp icon. Rows are stored bottom-up.
func dibIcon() []byte {
	var dib bytes.Buffer
	binary.Write(&dib, binary.LittleEndian, struct {
		Size                  uint32
		Width, Height         int32
		Planes, BitCount      uint16
		Compression, ImgSize  uint32
		XPPM, YPPM            int32
		ColorsUsed, Important uint32
	}{Size: 40, Width: 2, Height: 4, Planes: 1, BitCount: 24})
	// Pixels are BGR, rows padded to 4 bytes.
	dib.Write([]byte{0, 0, 0xff, 0, 0xff, 0, 0, 0})       // y=1: red, green
	dib.Write([]byte{0xff, 0, 0, 0xff, 0xff, 0xff, 0, 0}) // y=0: blue, white
	// Empty AND mask.
	dib.Write(make([]byte, 8))

	var ico bytes.Buffer
	binary.Write(&ico, binary.LittleEndian, [3]uint16{0, 1, 1})
	ico.Write([]byte{2, 2, 0, 0})
	binary.Write(&ico, binary.LittleEndian, struct {
		Planes, BitCount uint16
		Size, Offset     uint32
	}{1, 24, uint32(dib.Len()), icoDirSize + icoEntrySize})
	ico.Write(dib.Bytes())
	return ico.Bytes()
}

func TestDecodeICOBitmap(t *testing.T) {
	img, err := decodeICO(dibIcon())
	if err != nil {
		t.Fatalf("decodeICO() error: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 2 || b.Dy() != 2 {
		t.Fatalf("bounds = %v, want 2x2", b)
	}
	tests := []struct {
		x, y int
		want color.NRGBA
	}{
		{0, 0, color.NRGBA{0, 0, 0xff, 0xff}},
		{1, 0, color.NRGBA{0xff, 0xff, 0xff, 0xff}},
		{0, 1, color.NRGBA{0xff, 0, 0, 0xff}},
		{1, 1, color.NRGBA{0, 0xff, 0, 0xff}},
	}
	origin := img.Bounds().Min
	for _, tt := range tests {
		got := color.NRGBAModel.Convert(img.At(origin.X+tt.x, origin.Y+tt.y)).(color.NRGBA)
		if got.R != tt.want.R || got.G != tt.want.G || got.B != tt.want.B {
			t.Errorf("pixel (%d,%d) = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestDecodeICOErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"short", []byte{0, 0}},
		{"cursor header", []byte{0, 0, 2, 0, 1, 0}},
		{"truncated directory", []byte{0, 0, 1, 0, 3, 0}},
		{"entry past end", append([]byte{0, 0, 1, 0, 1, 0, 16, 16, 0, 0, 1, 0, 32, 0}, 0xff, 0, 0, 0, 22, 0, 0, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := decodeICO(tt.data); err == nil {
				t.Error("decodeICO() succeeded, want error")
			}
		})
	}
}

func TestFitRect(t *testing.T) {
	tests := []struct {
		src  image.Rectangle
		want image.Rectangle
	}{
		{image.Rect(0, 0, 40, 20), image.Rect(0, 8, 32, 24)},
		{image.Rect(0, 0, 20, 40), image.Rect(8, 0, 24, 32)},
		{image.Rect(0, 0, 10, 10), image.Rect(0, 0, 32, 32)},
		{image.Rect(0, 0, 1000, 1), image.Rect(0, 15, 32, 16)},
	}
	for _, tt := range tests {
		if got := fitRect(tt.src, 32, 32); got != tt.want {
			t.Errorf("fitRect(%v) = %v, want %v", tt.src, got, tt.want)
		}
	}
}

func TestWriteImagePDF(t *testing.T) {
	dir := t.TempDir()
	pngPath := writePNG(t, dir, "wide.png", testImage(1200, 300))

	jpgPath := filepath.Join(dir, "photo.jpg")
	if err := encodeImage(testImage(64, 48), FormatJPG, jpgPath); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		input  string
		source Format
	}{
		{"png scaled down", pngPath, FormatPNG},
		{"jpeg embedded", jpgPath, FormatJPG},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := filepath.Join(dir, tt.name+".pdf")
			task := &Task{InputPath: tt.input, OutputPath: out, Source: tt.source, Target: FormatPDF}
			if err := writeImagePDF(context.Background(), task); err != nil {
				t.Fatalf("writeImagePDF() error: %v", err)
			}
			data, err := os.ReadFile(out)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.HasPrefix(data, []byte("%PDF-")) {
				t.Errorf("output is not a PDF: %q", data[:min(len(data), 8)])
			}
		})
	}
}
