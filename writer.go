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
	"bytes"
	"fmt"
	"html"
	"html/template"
	"os"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/nicholasgasior/fileconv-go/internal/ooxml"
)

// writeDocument renders doc as target into path.
func writeDocument(doc *document, target Format, path string) error {
	switch target {
	case FormatTXT:
		return os.WriteFile(path, []byte(documentText(doc)), 0o644)
	case FormatMD:
		return os.WriteFile(path, []byte(normalizeText(doc.Markdown)), 0o644)
	case FormatHTML:
		page, err := documentHTML(doc)
		if err != nil {
			return err
		}
		return os.WriteFile(path, page, 0o644)
	case FormatPDF:
		return writeDocumentPDF(doc, path)
	case FormatDOCX:
		return writeDocumentDOCX(doc, path)
	}
	return fmt.Errorf("no document writer for %s", target)
}

// documentText lays the document out as plain text.
func documentText(doc *document) string {
	if doc.Plain {
		return normalizeText(doc.Markdown)
	}
	blocks := doc.blocks()
	var b strings.Builder
	for i, bl := range blocks {
		switch bl.Kind {
		case blockListItem:
			b.WriteString(strings.Repeat("  ", bl.Level-1) + bl.Marker + " " + bl.Text)
		case blockTableRow:
			b.WriteString(strings.Join(bl.Cells, "\t"))
		case blockQuote:
			b.WriteString("  " + strings.ReplaceAll(bl.Text, "\n", "\n  "))
		case blockRule:
			b.WriteString(strings.Repeat("-", 40))
		default:
			b.WriteString(bl.Text)
		}
		compact := bl.Kind == blockListItem || bl.Kind == blockTableRow
		if compact && i+1 < len(blocks) && blocks[i+1].Kind == bl.Kind {
			b.WriteString("\n")
		} else {
			b.WriteString("\n\n")
		}
	}
	return normalizeText(b.String())
}

var htmlPage = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body>
{{.Body}}
</body>
</html>
`))

func documentHTML(doc *document) ([]byte, error) {
	var body bytes.Buffer
	if doc.Plain {
		for _, bl := range plainBlocks(doc.Markdown) {
			text := strings.ReplaceAll(html.EscapeString(bl.Text), "\n", "<br>\n")
			fmt.Fprintf(&body, "<p>%s</p>\n", text)
		}
	} else if err := newMarkdown().Convert([]byte(doc.Markdown), &body); err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}

	var out bytes.Buffer
	err := htmlPage.Execute(&out, struct {
		Title string
		Body  template.HTML
	}{doc.Title, template.HTML(body.String())})
	if err != nil {
		return nil, fmt.Errorf("render page: %w", err)
	}
	return out.Bytes(), nil
}

const (
	pdfMargin   = 20.0
	pdfBodySize = 11.0
)

var pdfHeadingSizes = [...]float64{0, 20, 16, 14, 12, 12, 11}

// writeDocumentPDF reflows the document onto A4 pages with the core fonts.
// Text outside cp1252 cannot be represented by the core fonts and is replaced.
func writeDocumentPDF(doc *document, path string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(doc.Title, true)
	pdf.SetCreator("fileconv", true)
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pageW, _ := pdf.GetPageSize()
	textW := pageW - 2*pdfMargin

	indented := func(indent float64, fn func()) {
		pdf.SetLeftMargin(pdfMargin + indent)
		pdf.SetX(pdfMargin + indent)
		fn()
		pdf.SetLeftMargin(pdfMargin)
	}

	for _, bl := range doc.blocks() {
		switch bl.Kind {
		case blockHeading:
			size := pdfHeadingSizes[min(max(bl.Level, 1), 6)]
			pdf.SetFont("Helvetica", "B", size)
			pdf.MultiCell(0, size*0.5, tr(bl.Text), "", "L", false)
			pdf.Ln(2)
		case blockListItem:
			pdf.SetFont("Helvetica", "", pdfBodySize)
			indented(float64(bl.Level)*6, func() {
				pdf.MultiCell(0, 5.5, tr(bl.Marker+" "+bl.Text), "", "L", false)
			})
			pdf.Ln(1)
		case blockCode:
			pdf.SetFont("Courier", "", 9)
			pdf.SetFillColor(242, 242, 242)
			pdf.MultiCell(0, 4.5, tr(bl.Text), "", "L", true)
			pdf.Ln(3)
		case blockQuote:
			pdf.SetFont("Helvetica", "I", pdfBodySize)
			indented(8, func() {
				pdf.MultiCell(0, 5.5, tr(bl.Text), "", "L", false)
			})
			pdf.Ln(3)
		case blockTableRow:
			if len(bl.Cells) == 0 {
				continue
			}
			style := ""
			if bl.Header {
				style = "B"
			}
			pdf.SetFont("Helvetica", style, 9)
			w := textW / float64(len(bl.Cells))
			for _, c := range bl.Cells {
				pdf.CellFormat(w, 6, fitPDFText(pdf, tr(c), w-2), "1", 0, "L", false, 0, "")
			}
			pdf.Ln(-1)
		case blockRule:
			y := pdf.GetY() + 2
			pdf.Line(pdfMargin, y, pageW-pdfMargin, y)
			pdf.Ln(5)
		default:
			pdf.SetFont("Helvetica", "", pdfBodySize)
			pdf.MultiCell(0, 5.5, tr(bl.Text), "", "L", false)
			pdf.Ln(3)
		}
	}
	return pdf.OutputFileAndClose(path)
}

// fitPDFText shortens s with an ellipsis until it fits in width.
func fitPDFText(pdf *gofpdf.Fpdf, s string, width float64) string {
	if pdf.GetStringWidth(s) <= width {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && pdf.GetStringWidth(string(r)+"...") > width {
		r = r[:len(r)-1]
	}
	return string(r) + "..."
}

func writeDocumentDOCX(doc *document, path string) error {
	var paras []ooxml.Paragraph
	for _, bl := range doc.blocks() {
		switch bl.Kind {
		case blockHeading:
			paras = append(paras, ooxml.Paragraph{Style: ooxml.HeadingStyle(bl.Level), Text: bl.Text})
		case blockListItem:
			paras = append(paras, ooxml.Paragraph{Style: ooxml.StyleList, Text: bl.Marker + " " + bl.Text, Indent: bl.Level})
		case blockCode:
			paras = append(paras, ooxml.Paragraph{Style: ooxml.StyleCode, Text: bl.Text})
		case blockQuote:
			paras = append(paras, ooxml.Paragraph{Style: ooxml.StyleQuote, Text: bl.Text})
		case blockTableRow:
			paras = append(paras, ooxml.Paragraph{Cells: bl.Cells, Header: bl.Header})
		case blockRule:
			paras = append(paras, ooxml.Paragraph{})
		default:
			paras = append(paras, ooxml.Paragraph{Text: bl.Text})
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := ooxml.WriteDocument(f, doc.Title, paras); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
