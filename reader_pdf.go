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
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// errNoPDFText is returned when a PDF has no extractable text layer.
var errNoPDFText = errors.New("no readable text content found in PDF")

// extractPDFText reads the text layer with the pure Go PDF parser. Pages are
// separated by blank lines.
func extractPDFText(path string) (*document, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}
	defer f.Close()

	var pages []string
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		if text := strings.TrimSpace(pageTextByRow(page)); text != "" {
			pages = append(pages, text)
			continue
		}
		if text := strings.TrimSpace(pageTextByPosition(page)); text != "" {
			pages = append(pages, text)
		}
	}
	if len(pages) == 0 {
		return nil, errNoPDFText
	}
	return &document{Markdown: strings.Join(pages, "\n\n"), Plain: true}, nil
}

// pageTextByRow uses the parser's row grouping. Empty words mark word breaks.
func pageTextByRow(page pdf.Page) (text string) {
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()
	rows, err := page.GetTextByRow()
	if err != nil {
		return ""
	}
	var out strings.Builder
	for _, row := range rows {
		var line strings.Builder
		gap := false
		for _, w := range row.Content {
			if w.S == "" {
				gap = true
				continue
			}
			if gap && line.Len() > 0 && !strings.HasSuffix(line.String(), " ") {
				line.WriteByte(' ')
			}
			line.WriteString(w.S)
			gap = false
		}
		if s := strings.TrimSpace(line.String()); s != "" {
			out.WriteString(s)
			out.WriteByte('\n')
		}
	}
	return out.String()
}

type pdfGlyph struct {
	x, y, size float64
	s          string
}

// pageTextByPosition groups glyphs into lines by baseline and orders them
// top to bottom, left to right.
func pageTextByPosition(page pdf.Page) (text string) {
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()
	var glyphs []pdfGlyph
	for _, t := range page.Content().Text {
		if strings.TrimSpace(t.S) != "" {
			glyphs = append(glyphs, pdfGlyph{x: t.X, y: t.Y, size: t.FontSize, s: t.S})
		}
	}
	if len(glyphs) == 0 {
		return ""
	}

	tolerance := 3.0
	if glyphs[0].size > 0 {
		tolerance = glyphs[0].size * 0.3
	}
	var lines [][]pdfGlyph
	var baselines []float64
	for _, g := range glyphs {
		placed := false
		for i, y := range baselines {
			if math.Abs(y-g.y) < tolerance {
				lines[i] = append(lines[i], g)
				placed = true
				break
			}
		}
		if !placed {
			baselines = append(baselines, g.y)
			lines = append(lines, []pdfGlyph{g})
		}
	}
	order := make([]int, len(lines))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return baselines[order[a]] > baselines[order[b]] })

	var out strings.Builder
	for _, i := range order {
		line := lines[i]
		sort.Slice(line, func(a, b int) bool { return line[a].x < line[b].x })
		var sb strings.Builder
		var end float64
		for j, g := range line {
			if j > 0 && g.x-end > math.Max(g.size*0.2, 1) {
				sb.WriteByte(' ')
			}
			sb.WriteString(g.s)
			end = g.x + float64(len([]rune(g.s)))*g.size*0.55
		}
		if s := strings.TrimSpace(sb.String()); s != "" {
			out.WriteString(s)
			out.WriteByte('\n')
		}
	}
	return out.String()
}
