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
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/nicholasgasior/fileconv-go/internal/ooxml"
)

// readDOCX renders word/document.xml as HTML (headings, lists, tables, links
// and emphasis) and converts that to markdown.
func readDOCX(path string) (*document, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open DOCX: %w", err)
	}
	defer zr.Close()

	body, err := ooxml.ReadFileFromZip(&zr.Reader, "word/document.xml")
	if err != nil {
		return nil, fmt.Errorf("read document.xml: %w", err)
	}
	rels, _ := ooxml.ParseRelationshipsFromReader(&zr.Reader, "word/_rels/document.xml.rels")
	headings := docxHeadingStyles(&zr.Reader)

	page := docxToHTML(body, rels, headings)
	md, err := htmlToMarkdown(page)
	if err != nil {
		return nil, fmt.Errorf("convert DOCX HTML to markdown: %w", err)
	}
	title, _ := ooxml.CoreTitle(&zr.Reader)
	return &document{Title: title, Markdown: md}, nil
}

// docxHeadingStyles maps style IDs to heading levels using the style names in
// word/styles.xml ("heading 1" ... "heading 6", "Title").
func docxHeadingStyles(zr *zip.Reader) map[string]int {
	levels := make(map[string]int)
	data, err := ooxml.ReadFileFromZip(zr, "word/styles.xml")
	if err != nil {
		return levels
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	var styleID string
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch se.Name.Local {
		case "style":
			styleID = attrValue(se, "styleId")
		case "name":
			if lvl := headingLevelOf(attrValue(se, "val")); lvl > 0 && styleID != "" {
				levels[styleID] = lvl
			}
		}
	}
	return levels
}

// headingLevelOf recognises "Heading1", "heading 2" and "Title".
func headingLevelOf(name string) int {
	n := strings.ToLower(strings.ReplaceAll(name, " ", ""))
	if n == "title" {
		return 1
	}
	if rest, ok := strings.CutPrefix(n, "heading"); ok {
		if lvl, err := strconv.Atoi(rest); err == nil && lvl >= 1 && lvl <= 6 {
			return lvl
		}
	}
	return 0
}

type docxRun struct {
	bold, italic, strike bool
}

func docxToHTML(body []byte, rels map[string]ooxml.Relationship, headings map[string]int) string {
	var out strings.Builder
	out.WriteString("<html><body>\n")

	dec := xml.NewDecoder(bytes.NewReader(body))
	var (
		para      strings.Builder
		cell      strings.Builder
		row       []string
		rows      [][]string
		tableLvl  int
		styleID   string
		listItem  bool
		inList    bool
		run       docxRun
		inText    bool
		hyperlink string
	)
	target := func() *strings.Builder {
		if tableLvl > 0 {
			return &cell
		}
		return &para
	}
	closeList := func() {
		if inList {
			out.WriteString("</ul>\n")
			inList = false
		}
	}

	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				para.Reset()
				styleID, listItem = "", false
			case "pStyle":
				styleID = attrValue(t, "val")
			case "numPr":
				listItem = true
			case "r":
				run = docxRun{}
			case "b":
				run.bold = attrValue(t, "val") != "0" && attrValue(t, "val") != "false"
			case "i":
				run.italic = attrValue(t, "val") != "0" && attrValue(t, "val") != "false"
			case "strike":
				run.strike = true
			case "t":
				inText = true
			case "tab":
				target().WriteString(" ")
			case "br":
				target().WriteString("<br/>")
			case "hyperlink":
				if rel, ok := rels[attrValue(t, "id")]; ok {
					hyperlink = rel.Target
				}
			case "tbl":
				if tableLvl == 0 {
					closeList()
					rows = nil
				}
				tableLvl++
			case "tr":
				row = nil
			case "tc":
				cell.Reset()
			}
		case xml.CharData:
			if !inText {
				continue
			}
			text := html.EscapeString(string(t))
			if run.bold {
				text = "<b>" + text + "</b>"
			}
			if run.italic {
				text = "<i>" + text + "</i>"
			}
			if run.strike {
				text = "<s>" + text + "</s>"
			}
			if hyperlink != "" {
				text = `<a href="` + html.EscapeString(hyperlink) + `">` + text + "</a>"
			}
			target().WriteString(text)
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "hyperlink":
				hyperlink = ""
			case "p":
				if tableLvl > 0 {
					cell.WriteString(" ")
					continue
				}
				text := strings.TrimSpace(para.String())
				if text == "" {
					continue
				}
				if lvl := headingLevelOf(styleID); lvl > 0 || headings[styleID] > 0 {
					if lvl == 0 {
						lvl = headings[styleID]
					}
					closeList()
					fmt.Fprintf(&out, "<h%d>%s</h%d>\n", lvl, text, lvl)
				} else if listItem {
					if !inList {
						out.WriteString("<ul>\n")
						inList = true
					}
					fmt.Fprintf(&out, "<li>%s</li>\n", text)
				} else {
					closeList()
					fmt.Fprintf(&out, "<p>%s</p>\n", text)
				}
			case "tc":
				row = append(row, strings.TrimSpace(cell.String()))
			case "tr":
				rows = append(rows, row)
			case "tbl":
				tableLvl--
				if tableLvl == 0 {
					writeHTMLTable(&out, rows)
				}
			}
		}
	}
	closeList()
	out.WriteString("</body></html>")
	return out.String()
}

func writeHTMLTable(out *strings.Builder, rows [][]string) {
	if len(rows) == 0 {
		return
	}
	out.WriteString("<table>\n")
	for i, row := range rows {
		tag := "td"
		if i == 0 {
			tag = "th"
		}
		out.WriteString("<tr>")
		for _, c := range row {
			fmt.Fprintf(out, "<%s>%s</%s>", tag, c, tag)
		}
		out.WriteString("</tr>\n")
	}
	out.WriteString("</table>\n")
}

func attrValue(se xml.StartElement, local string) string {
	for _, a := range se.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}
