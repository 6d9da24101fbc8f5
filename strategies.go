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
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// Built-in strategy names.
const (
	StrategyOffice      = "office-engine"
	StrategyPDFium      = "pdfium-extract"
	StrategyPDFText     = "pdf-text"
	StrategyTextReflow  = "text-reflow"
	StrategyTableCodec  = "table-codec"
	StrategyNativeCodec = "native-codec"
	StrategyImagePDF    = "image-pdf"
	StrategyWebP        = "cwebp"
	StrategyRasterizer  = "vector-rasterizer"
	StrategyImageMagick = "imagemagick"
	StrategyTranscoder  = "system-transcoder"
)

const (
	pdfiumInstanceWait   = 30 * time.Second
	defaultDocumentTitle = "Document"
)

var (
	officeSources   = []Format{FormatDOCX, FormatRTF, FormatODT, FormatTXT, FormatHTML, FormatPPTX, FormatXLSX, FormatXLS, FormatCSV}
	readableSources = []Format{FormatDOCX, FormatTXT, FormatHTML, FormatMD, FormatRSS, FormatPPTX, FormatEPUB, FormatIPYNB}
	documentTargets = []Format{FormatPDF, FormatTXT, FormatHTML, FormatMD, FormatDOCX}
	tableFormats    = []Format{FormatXLSX, FormatXLS, FormatCSV}
)

// officeHandles reports whether LibreOffice is bound to p. Word-processor
// formats convert among themselves; the rest only print to PDF, except
// plain text which also opens as RTF and DOCX.
func officeHandles(p Pair) bool {
	if _, ok := officeFilters[p.Target]; !ok || !slices.Contains(officeSources, p.Source) {
		return false
	}
	switch p.Source {
	case FormatDOCX, FormatRTF, FormatODT:
		return true
	case FormatTXT:
		return p.Target == FormatRTF || p.Target == FormatPDF || p.Target == FormatDOCX
	}
	return p.Target == FormatPDF
}

func textTitle(doc *document, input string) string {
	if t := strings.TrimSpace(doc.Title); t != "" {
		return t
	}
	if stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input)); stem != "" {
		return stem
	}
	return defaultDocumentTitle
}

func reflowStrategy(read func(t *Task) (*document, error)) func(context.Context, *Task) error {
	return func(ctx context.Context, t *Task) error {
		doc, err := read(t)
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		doc.Title = textTitle(doc, t.InputPath)
		return writeDocument(doc, t.Target, t.OutputPath)
	}
}

var (
	officeStrategy = StrategyFunc{StrategyName: StrategyOffice, Engine: EngineOffice, Fn: convertOffice}

	pdfiumStrategy = StrategyFunc{StrategyName: StrategyPDFium, Fn: reflowStrategy(func(t *Task) (*document, error) {
		return extractPDFium(t.InputPath, pdfiumInstanceWait)
	})}

	pdfTextStrategy = StrategyFunc{StrategyName: StrategyPDFText, Fn: reflowStrategy(func(t *Task) (*document, error) {
		return extractPDFText(t.InputPath)
	})}

	textReflowStrategy = StrategyFunc{StrategyName: StrategyTextReflow, Fn: reflowStrategy(func(t *Task) (*document, error) {
		return readDocument(t.InputPath, t.Source)
	})}

	tableStrategy = StrategyFunc{StrategyName: StrategyTableCodec, Fn: func(ctx context.Context, t *Task) error {
		sheets, err := readTable(t.InputPath, t.Source)
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		return writeTable(sheets, t.Target, t.OutputPath, textTitle(&document{}, t.InputPath))
	}}

	nativeImageStrategy = StrategyFunc{StrategyName: StrategyNativeCodec, Fn: convertImage}
	imagePDFStrategy    = StrategyFunc{StrategyName: StrategyImagePDF, Fn: writeImagePDF}

	webpStrategy       = StrategyFunc{StrategyName: StrategyWebP, Engine: EngineWebP, Fn: convertWebP}
	rasterizerStrategy = StrategyFunc{StrategyName: StrategyRasterizer, Engine: EngineRasterizer, Fn: convertSVG}
	magickStrategy     = StrategyFunc{StrategyName: StrategyImageMagick, Engine: EngineImageMagick, Fn: convertMagick}
)

// defaultBindings builds the built-in binding table for every pair r declares.
func defaultBindings(r *Registry) []Binding {
	transcoder := StrategyFunc{StrategyName: StrategyTranscoder, Engine: EngineTranscoder,
		Fn: func(ctx context.Context, t *Task) error { return transcode(ctx, r, t) }}

	var out []Binding
	bind := func(p Pair, s Strategy, rank int) {
		out = append(out, Binding{Pair: p, Strategy: s, Rank: rank})
	}

	for _, p := range r.Pairs() {
		srcCat, _ := r.CategoryOf(p.Source)

		if officeHandles(p) {
			bind(p, officeStrategy, 1)
		}

		switch srcCat {
		case CategoryDocument:
			if p.Source == FormatPDF && slices.Contains(documentTargets, p.Target) {
				if pdfiumCompiled {
					bind(p, pdfiumStrategy, 1)
				}
				bind(p, pdfTextStrategy, 2)
			}
			if slices.Contains(readableSources, p.Source) && slices.Contains(documentTargets, p.Target) {
				bind(p, textReflowStrategy, 2)
			}

		case CategorySpreadsheet:
			if slices.Contains(tableFormats, p.Target) || p.Target == FormatPDF {
				rank := 1
				if p.Target == FormatPDF {
					rank = 2
				}
				bind(p, tableStrategy, rank)
			}

		case CategoryImage:
			native := slices.Contains(nativeImageSources, p.Source)
			switch {
			case p.Source == FormatSVG:
				bind(p, rasterizerStrategy, 1)
			case p.Target == FormatPDF && native:
				bind(p, imagePDFStrategy, 1)
			case p.Target == FormatWEBP && p.Source != FormatICO:
				bind(p, webpStrategy, 1)
			case native && slices.Contains(nativeImageTargets, p.Target):
				bind(p, nativeImageStrategy, 1)
			}
			bind(p, magickStrategy, 2)

		case CategoryAudio, CategoryVideo:
			bind(p, transcoder, 1)
		}
	}
	return out
}
