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
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// officeFilters maps targets to LibreOffice --convert-to filter specs.
var officeFilters = map[Format]string{
	FormatPDF:  "pdf",
	FormatDOCX: "docx:MS Word 2007 XML",
	FormatTXT:  "txt:Text (encoded):UTF8",
	FormatHTML: "html",
	FormatRTF:  "rtf",
	FormatODT:  "odt",
}

// officeArgs builds a headless conversion writing into outDir. The profile
// directory keeps concurrent instances from sharing a user installation.
func officeArgs(filter, in, outDir, profile string) []string {
	return []string{
		"-env:UserInstallation=file://" + filepath.ToSlash(profile),
		"--headless",
		"--norestore",
		"--convert-to", filter,
		"--outdir", outDir,
		in,
	}
}

// convertOffice runs LibreOffice and renames its output, named after the
// input stem, onto the staging path.
func convertOffice(ctx context.Context, t *Task) error {
	filter, ok := officeFilters[t.Target]
	if !ok {
		return fmt.Errorf("office engine cannot write %s", t.Target)
	}
	outDir := t.TempPath("office")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	args := officeArgs(filter, t.InputPath, outDir, t.TempPath("profile"))
	if err := runTool(ctx, t.Runner, t.Caps.Binary(EngineOffice), args, t.Timeout); err != nil {
		return err
	}

	stem := strings.TrimSuffix(filepath.Base(t.InputPath), filepath.Ext(t.InputPath))
	produced := filepath.Join(outDir, stem+t.Target.Ext())
	if _, err := os.Stat(produced); err != nil {
		return fmt.Errorf("office engine produced no %s output", t.Target)
	}
	return os.Rename(produced, t.OutputPath)
}

// convertWebP encodes with cwebp at quality 90. cwebp only reads PNG, JPEG
// and TIFF, so other sources are decoded and handed over as PNG.
func convertWebP(ctx context.Context, t *Task) error {
	in := t.InputPath
	switch t.Source {
	case FormatPNG, FormatJPG, FormatTIFF:
	default:
		img, err := decodeImage(t.InputPath, t.Source)
		if err != nil {
			return err
		}
		in = t.TempPath("source.png")
		if err := encodeImage(img, FormatPNG, in); err != nil {
			return err
		}
	}
	args := []string{"-quiet", "-q", "90", in, "-o", t.OutputPath}
	return runTool(ctx, t.Runner, t.Caps.Binary(EngineWebP), args, t.Timeout)
}

// svgRasterWidth is the pixel width SVGs are rendered at.
const svgRasterWidth = 1024

// convertSVG renders with rsvg-convert. JPEG output goes through an
// intermediate PNG that is flattened and encoded natively.
func convertSVG(ctx context.Context, t *Task) error {
	bin := t.Caps.Binary(EngineRasterizer)
	switch t.Target {
	case FormatPNG, FormatPDF:
		return runTool(ctx, t.Runner, bin, rasterizeArgs(t.Target, t.InputPath, t.OutputPath), t.Timeout)
	case FormatJPG:
		png := t.TempPath("raster.png")
		if err := runTool(ctx, t.Runner, bin, rasterizeArgs(FormatPNG, t.InputPath, png), t.Timeout); err != nil {
			return err
		}
		img, err := decodeImage(png, FormatPNG)
		if err != nil {
			return err
		}
		return encodeImage(img, FormatJPG, t.OutputPath)
	}
	return fmt.Errorf("rasterizer cannot write %s", t.Target)
}

func rasterizeArgs(target Format, in, out string) []string {
	args := []string{"--keep-aspect-ratio", "-f", string(target), "-o", out}
	if target == FormatPNG {
		args = append([]string{"-w", fmt.Sprint(svgRasterWidth)}, args...)
	}
	return append(args, in)
}

// magickArgs builds an ImageMagick invocation. Multi-frame sources keep only
// their first frame unless the target can hold several.
func magickArgs(src, target Format, in, out string) []string {
	if src == FormatGIF || src == FormatTIFF || src == FormatICO {
		if target != FormatGIF && target != FormatTIFF && target != FormatPDF {
			in += "[0]"
		}
	}
	if src == FormatSVG {
		in = "svg:" + in
	}
	args := []string{in}
	switch target {
	case FormatJPG:
		args = append(args, "-background", "white", "-flatten", "-quality", "95")
	case FormatBMP:
		args = append(args, "-background", "white", "-flatten")
	case FormatWEBP:
		args = append(args, "-quality", "90")
	case FormatTIFF:
		args = append(args, "-compress", "zip")
	case FormatICO:
		args = append(args, "-define", "icon:auto-resize=256,128,64,48,32,16")
	}
	return append(args, string(target)+":"+out)
}

func convertMagick(ctx context.Context, t *Task) error {
	args := magickArgs(t.Source, t.Target, t.InputPath, t.OutputPath)
	return runTool(ctx, t.Runner, t.Caps.Binary(EngineImageMagick), args, t.Timeout)
}
