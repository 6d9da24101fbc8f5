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
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/extrame/xls"
	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
)

// sheet is one named grid of cell text.
type sheet struct {
	Name string
	Rows [][]string
}

var errEmptyTable = errors.New("spreadsheet contains no cells")

// readTable loads every non-empty sheet of a spreadsheet.
func readTable(path string, f Format) ([]sheet, error) {
	var sheets []sheet
	var err error
	switch f {
	case FormatXLSX:
		sheets, err = readXLSX(path)
	case FormatXLS:
		sheets, err = readXLS(path)
	case FormatCSV:
		sheets, err = readCSV(path)
	default:
		return nil, fmt.Errorf("no table reader for %s", f)
	}
	if err != nil {
		return nil, err
	}
	if len(sheets) == 0 {
		return nil, errEmptyTable
	}
	return sheets, nil
}

func readXLSX(path string) ([]sheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open XLSX: %w", err)
	}
	defer f.Close()

	var sheets []sheet
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil || len(rows) == 0 {
			continue
		}
		sheets = append(sheets, sheet{Name: name, Rows: rows})
	}
	return sheets, nil
}

func readXLS(path string) ([]sheet, error) {
	wb, err := xls.Open(path, "utf-8")
	if err != nil {
		return nil, fmt.Errorf("open XLS: %w", err)
	}

	var sheets []sheet
	for i := 0; i < wb.NumSheets(); i++ {
		ws := wb.GetSheet(i)
		if ws == nil {
			continue
		}
		name := ws.Name
		if name == "" {
			name = fmt.Sprintf("Sheet%d", i+1)
		}

		var rows [][]string
		for r := 0; r <= int(ws.MaxRow); r++ {
			row := ws.Row(r)
			if row == nil {
				continue
			}
			cells := make([]string, 0, row.LastCol())
			for c := 0; c < row.LastCol(); c++ {
				cells = append(cells, row.Col(c))
			}
			rows = append(rows, cells)
		}
		if len(rows) > 0 {
			sheets = append(sheets, sheet{Name: name, Rows: rows})
		}
	}
	return sheets, nil
}

func readCSV(path string) ([]sheet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read CSV: %w", err)
	}
	text := decodeText(data)

	r := csv.NewReader(strings.NewReader(text))
	r.Comma = csvDelimiter(text)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse CSV: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return []sheet{{Name: name, Rows: rows}}, nil
}

// csvDelimiter picks the most frequent candidate separator on the first line.
func csvDelimiter(text string) rune {
	first, _, _ := strings.Cut(text, "\n")
	best, count := ',', strings.Count(first, ",")
	for _, d := range []rune{';', '\t', '|'} {
		if n := strings.Count(first, string(d)); n > count {
			best, count = d, n
		}
	}
	return best
}

// writeTable writes sheets as target. CSV holds only the first sheet.
func writeTable(sheets []sheet, target Format, path, title string) error {
	switch target {
	case FormatCSV:
		return writeCSV(sheets[0], path)
	case FormatXLSX:
		return writeXLSX(sheets, path)
	case FormatPDF:
		return writeTablePDF(sheets, path, title)
	}
	return fmt.Errorf("no table writer for %s", target)
}

func writeCSV(s sheet, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(s.Rows); err != nil {
		f.Close()
		return fmt.Errorf("write CSV: %w", err)
	}
	return f.Close()
}

func writeXLSX(sheets []sheet, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	used := map[string]bool{}
	for i, s := range sheets {
		name := uniqueSheetName(sanitizeSheetName(s.Name, i), used)
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
				return fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("add sheet %q: %w", name, err)
		}

		for r, row := range s.Rows {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				return err
			}
			values := make([]any, len(row))
			for c, v := range row {
				values[c] = cellValue(v)
			}
			if err := f.SetSheetRow(name, cell, &values); err != nil {
				return fmt.Errorf("write row %d: %w", r+1, err)
			}
		}
	}
	return f.SaveAs(path)
}

// cellValue stores plain decimal numbers as numbers. Values with leading
// zeros keep their text form.
func cellValue(v string) any {
	s := strings.TrimSpace(v)
	if s == "" || (len(s) > 1 && s[0] == '0' && s[1] != '.') {
		return v
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !strings.ContainsAny(s, "eEnN") {
		return f
	}
	return v
}

func sanitizeSheetName(name string, index int) string {
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`:\/?*[]`, r) {
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	name = strings.Trim(name, "'")
	if r := []rune(name); len(r) > 31 {
		name = string(r[:31])
	}
	if name == "" {
		name = fmt.Sprintf("Sheet%d", index+1)
	}
	return name
}

func uniqueSheetName(name string, used map[string]bool) string {
	candidate := name
	for n := 2; used[strings.ToLower(candidate)]; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		r := []rune(name)
		if len(r)+len(suffix) > 31 {
			r = r[:31-len(suffix)]
		}
		candidate = string(r) + suffix
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}

// writeTablePDF lays every sheet out as a bordered grid on landscape A4,
// repeating the header row on each new page.
func writeTablePDF(sheets []sheet, path, title string) error {
	const margin, rowH = 10.0, 6.0

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.SetCreator("fileconv", true)
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(false, margin)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pageW, pageH := pdf.GetPageSize()
	textW := pageW - 2*margin

	for _, s := range sheets {
		cols := 0
		for _, row := range s.Rows {
			cols = max(cols, len(row))
		}
		if cols == 0 {
			continue
		}
		colW := textW / float64(cols)
		fontSize := 9.0
		if cols > 12 {
			fontSize = 7
		}

		drawRow := func(row []string, header bool) {
			style := ""
			if header {
				style = "B"
				pdf.SetFillColor(230, 230, 230)
			}
			pdf.SetFont("Helvetica", style, fontSize)
			for c := 0; c < cols; c++ {
				v := ""
				if c < len(row) {
					v = tr(row[c])
				}
				pdf.CellFormat(colW, rowH, fitPDFText(pdf, v, colW-2), "1", 0, "L", header, 0, "")
			}
			pdf.Ln(-1)
		}

		pdf.AddPage()
		if len(sheets) > 1 {
			pdf.SetFont("Helvetica", "B", 12)
			pdf.CellFormat(0, 8, tr(s.Name), "", 1, "L", false, 0, "")
		}
		for i, row := range s.Rows {
			if i > 0 && pdf.GetY()+rowH > pageH-margin {
				pdf.AddPage()
				drawRow(s.Rows[0], true)
			}
			drawRow(row, i == 0)
		}
	}
	return pdf.OutputFileAndClose(path)
}
