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
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"

	"github.com/jung-kurt/gofpdf"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"
)

const (
	jpegQuality = 95
	// a4Width and a4Height are the A4 page size in points.
	a4Width  = 595.0
	a4Height = 842.0
)

// nativeImageSources lists formats decodeImage understands.
var nativeImageSources = []Format{FormatPNG, FormatJPG, FormatGIF, FormatBMP, FormatTIFF, FormatWEBP, FormatICO}

// nativeImageTargets lists formats encodeImage can write.
var nativeImageTargets = []Format{FormatPNG, FormatJPG, FormatGIF, FormatBMP, FormatTIFF, FormatICO}

// decodeImage reads the first frame of a raster image.
func decodeImage(path string, f Format) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	r := bytes.NewReader(data)

	var img image.Image
	switch f {
	case FormatPNG:
		img, err = png.Decode(r)
	case FormatJPG:
		img, err = jpeg.Decode(r)
	case FormatGIF:
		img, err = gif.Decode(r)
	case FormatBMP:
		img, err = bmp.Decode(r)
	case FormatTIFF:
		img, err = tiff.Decode(r)
	case FormatWEBP:
		img, err = webp.Decode(r)
	case FormatICO:
		img, err = decodeICO(data)
	default:
		return nil, fmt.Errorf("no native decoder for %s", f)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", f, err)
	}
	return img, nil
}

// encodeImage writes img as target. Formats without alpha are flattened
// onto white first.
func encodeImage(img image.Image, target Format, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)

	switch target {
	case FormatPNG:
		err = png.Encode(w, img)
	case FormatJPG:
		err = jpeg.Encode(w, flatten(img), &jpeg.Options{Quality: jpegQuality})
	case FormatGIF:
		err = gif.Encode(w, img, &gif.Options{NumColors: 256, Drawer: draw.FloydSteinberg})
	case FormatBMP:
		err = bmp.Encode(w, flatten(img))
	case FormatTIFF:
		err = tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
	case FormatICO:
		err = encodeICO(w, img)
	default:
		err = fmt.Errorf("no native encoder for %s", target)
	}
	if err == nil {
		err = w.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("encode %s: %w", target, err)
	}
	return nil
}

// flatten composites img over an opaque white background.
func flatten(img image.Image) image.Image {
	if opaqueImage(img) {
		return img
	}
	b := img.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, b, img, b.Min, draw.Over)
	return dst
}

func opaqueImage(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	return false
}

// convertImage is the native-codec strategy body.
func convertImage(ctx context.Context, t *Task) error {
	img, err := decodeImage(t.InputPath, t.Source)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return encodeImage(img, t.Target, t.OutputPath)
}

// writeImagePDF places the image on a single A4 page, scaled down to fit
// and centred. JPEG sources are embedded as-is.
func writeImagePDF(ctx context.Context, t *Task) error {
	var (
		data   []byte
		kind   string
		bounds image.Rectangle
		err    error
	)
	if t.Source == FormatJPG {
		if data, err = os.ReadFile(t.InputPath); err != nil {
			return err
		}
		cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("decode jpg: %w", err)
		}
		kind, bounds = "JPG", image.Rect(0, 0, cfg.Width, cfg.Height)
	} else {
		img, err := decodeImage(t.InputPath, t.Source)
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return fmt.Errorf("encode page image: %w", err)
		}
		data, kind, bounds = buf.Bytes(), "PNG", img.Bounds()
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	w, h := float64(bounds.Dx()), float64(bounds.Dy())
	if w <= 0 || h <= 0 {
		return fmt.Errorf("image has no pixels")
	}
	scale := min(1, a4Width/w, a4Height/h)
	w, h = w*scale, h*scale

	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.SetCreator("fileconv", true)
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	opts := gofpdf.ImageOptions{ImageType: kind}
	pdf.RegisterImageOptionsReader("page", opts, bytes.NewReader(data))
	pdf.ImageOptions("page", (a4Width-w)/2, (a4Height-h)/2, w, h, false, opts, 0, "")
	return pdf.OutputFileAndClose(t.OutputPath)
}
