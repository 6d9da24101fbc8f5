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

//go:build !nopdfium

package fileconv

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klippa-app/go-pdfium"
	"github.com/klippa-app/go-pdfium/requests"
	"github.com/klippa-app/go-pdfium/responses"
	"github.com/klippa-app/go-pdfium/webassembly"
)

const pdfiumCompiled = true

var (
	pdfiumPool     pdfium.Pool
	pdfiumPoolOnce sync.Once
	pdfiumPoolErr  error
)

func initPdfiumPool() {
	pdfiumPool, pdfiumPoolErr = webassembly.Init(webassembly.Config{
		MinIdle:  1,
		MaxIdle:  1,
		MaxTotal: 2,
	})
}

// extractPDFium reads the text layer with PDFium and recovers headings from
// font sizes relative to the body text.
func extractPDFium(path string, wait time.Duration) (*document, error) {
	pdfiumPoolOnce.Do(initPdfiumPool)
	if pdfiumPoolErr != nil {
		return nil, fmt.Errorf("init pdfium: %w", pdfiumPoolErr)
	}
	instance, err := pdfiumPool.GetInstance(wait)
	if err != nil {
		return nil, fmt.Errorf("get pdfium instance: %w", err)
	}
	defer instance.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read PDF: %w", err)
	}
	doc, err := instance.OpenDocument(&requests.OpenDocument{File: &data})
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}
	defer instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{Document: doc.Document})

	count, err := instance.FPDF_GetPageCount(&requests.FPDF_GetPageCount{Document: doc.Document})
	if err != nil {
		return nil, fmt.Errorf("get page count: %w", err)
	}

	var pages []string
	for i := 0; i < count.PageCount; i++ {
		if text := strings.TrimSpace(pdfiumPage(instance, doc, i)); text != "" {
			pages = append(pages, text)
		}
	}
	if len(pages) == 0 {
		return nil, errNoPDFText
	}
	return &document{Markdown: strings.Join(pages, "\n\n")}, nil
}

type pdfRect struct {
	text             string
	left, top        float64
	bottom, fontSize float64
}

type pdfTextLine struct {
	rects       []pdfRect
	top, bottom float64
	fontSize    float64
}

func pdfiumPage(instance pdfium.Pdfium, doc *responses.OpenDocument, index int) string {
	page := requests.Page{ByIndex: &requests.PageByIndex{Document: doc.Document, Index: index}}
	structured, err := instance.GetPageTextStructured(&requests.GetPageTextStructured{
		Page:                   page,
		Mode:                   requests.GetPageTextStructuredModeRects,
		CollectFontInformation: true,
	})
	if err != nil || len(structured.Rects) == 0 {
		plain, err := instance.GetPageText(&requests.GetPageText{Page: page})
		if err != nil {
			return ""
		}
		return plain.Text
	}

	var rects []pdfRect
	for _, r := range structured.Rects {
		if strings.TrimSpace(r.Text) == "" {
			continue
		}
		pr := pdfRect{
			text:   r.Text,
			left:   r.PointPosition.Left,
			top:    r.PointPosition.Top,
			bottom: r.PointPosition.Bottom,
		}
		if r.FontInformation != nil {
			pr.fontSize = r.FontInformation.Size
		}
		rects = append(rects, pr)
	}
	lines := groupPDFLines(rects)
	return pdfLinesMarkdown(lines, bodyFontSize(lines))
}

// groupPDFLines merges rects sharing a top coordinate into lines, ordered top
// of page first (PDF y grows upwards).
func groupPDFLines(rects []pdfRect) []pdfTextLine {
	var lines []pdfTextLine
	for _, r := range rects {
		placed := false
		for i := range lines {
			if math.Abs(lines[i].top-r.top) < 3 {
				lines[i].rects = append(lines[i].rects, r)
				placed = true
				break
			}
		}
		if !placed {
			lines = append(lines, pdfTextLine{rects: []pdfRect{r}, top: r.top, bottom: r.bottom})
		}
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].top > lines[j].top })
	for i := range lines {
		l := &lines[i]
		sort.Slice(l.rects, func(a, b int) bool { return l.rects[a].left < l.rects[b].left })
		l.fontSize = dominantSize(l.rects)
	}
	return lines
}

func dominantSize(rects []pdfRect) float64 {
	weight := map[float64]int{}
	for _, r := range rects {
		weight[math.Round(r.fontSize*10)/10] += len(strings.TrimSpace(r.text))
	}
	var best float64
	bestWeight := 0
	for size, w := range weight {
		if w > bestWeight || (w == bestWeight && size < best) {
			best, bestWeight = size, w
		}
	}
	return best
}

func bodyFontSize(lines []pdfTextLine) float64 {
	var all []pdfRect
	for _, l := range lines {
		all = append(all, l.rects...)
	}
	return dominantSize(all)
}

// pdfHeadingLevel maps a line's font size to a heading level, 0 for body text.
func pdfHeadingLevel(size, body float64) int {
	if body <= 0 {
		return 0
	}
	switch ratio := size / body; {
	case ratio >= 2.0:
		return 1
	case ratio >= 1.5:
		return 2
	case ratio >= 1.2:
		return 3
	}
	return 0
}

func pdfLinesMarkdown(lines []pdfTextLine, body float64) string {
	var md strings.Builder
	for i, line := range lines {
		var sb strings.Builder
		for _, r := range line.rects {
			sb.WriteString(r.text)
		}
		text := strings.Join(strings.Fields(sb.String()), " ")
		if text == "" {
			continue
		}
		if lvl := pdfHeadingLevel(line.fontSize, body); lvl > 0 && len(text) < 120 {
			fmt.Fprintf(&md, "\n%s %s\n\n", strings.Repeat("#", lvl), text)
			continue
		}
		if i > 0 {
			gap := lines[i-1].bottom - line.top
			height := line.top - line.bottom
			if height <= 0 {
				height = body
			}
			if gap > height*1.5 {
				md.WriteString("\n")
			}
		}
		md.WriteString(text)
		md.WriteString("\n")
	}
	return md.String()
}
