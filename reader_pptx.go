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
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/nicholasgasior/fileconv-go/internal/ooxml"
)

// readPPTX extracts slide text in presentation order. Each slide starts with
// a heading; shapes follow in reading order (top to bottom, left to right).
func readPPTX(path string) (*document, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open PPTX: %w", err)
	}
	defer zr.Close()

	slides, err := pptxSlideOrder(&zr.Reader)
	if err != nil {
		return nil, fmt.Errorf("get slide order: %w", err)
	}

	var md strings.Builder
	for i, slidePath := range slides {
		data, err := ooxml.ReadFileFromZip(&zr.Reader, slidePath)
		if err != nil {
			continue
		}
		var root xmlNode
		if err := xml.Unmarshal(data, &root); err != nil {
			return nil, fmt.Errorf("parse %s: %w", slidePath, err)
		}
		shapes := pptxShapes(&root)
		sort.SliceStable(shapes, func(a, b int) bool {
			if shapes[a].top != shapes[b].top {
				return shapes[a].top < shapes[b].top
			}
			return shapes[a].left < shapes[b].left
		})

		heading := fmt.Sprintf("Slide %d", i+1)
		for _, s := range shapes {
			if s.isTitle {
				heading += ": " + strings.ReplaceAll(s.text, "\n", " ")
				break
			}
		}
		fmt.Fprintf(&md, "## %s\n\n", heading)
		for _, s := range shapes {
			switch {
			case s.isTitle:
			case s.table != nil:
				md.WriteString(markdownTable(s.table))
				md.WriteString("\n")
			default:
				md.WriteString(s.text)
				md.WriteString("\n\n")
			}
		}
	}

	title, _ := ooxml.CoreTitle(&zr.Reader)
	return &document{Title: title, Markdown: md.String()}, nil
}

// pptxSlideOrder returns slide part names in presentation order, falling back
// to the part names when presentation.xml lists none.
func pptxSlideOrder(zr *zip.Reader) ([]string, error) {
	pres, err := ooxml.ReadFileFromZip(zr, "ppt/presentation.xml")
	if err != nil {
		return nil, err
	}
	rels, _ := ooxml.ParseRelationshipsFromReader(zr, "ppt/_rels/presentation.xml.rels")

	var slides []string
	dec := xml.NewDecoder(bytes.NewReader(pres))
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "sldId" {
			continue
		}
		for _, a := range se.Attr {
			if a.Name.Local == "id" && a.Name.Space == ooxml.NSRelDoc {
				if rel, ok := rels[a.Value]; ok {
					slides = append(slides, ooxml.ResolveTarget("ppt/presentation.xml", rel.Target))
				}
			}
		}
	}

	if len(slides) == 0 {
		for _, f := range zr.File {
			if strings.HasPrefix(f.Name, "ppt/slides/slide") && strings.HasSuffix(f.Name, ".xml") {
				slides = append(slides, f.Name)
			}
		}
		sort.Slice(slides, func(i, j int) bool { return slideNumber(slides[i]) < slideNumber(slides[j]) })
	}
	return slides, nil
}

func slideNumber(name string) int {
	n := strings.TrimSuffix(strings.TrimPrefix(name, "ppt/slides/slide"), ".xml")
	v, err := strconv.Atoi(n)
	if err != nil {
		return math.MaxInt
	}
	return v
}

// xmlNode is a generic XML tree node.
type xmlNode struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Children []xmlNode  `xml:",any"`
	Content  string     `xml:",chardata"`
}

func (n *xmlNode) attr(name string) string {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func (n *xmlNode) child(local string) *xmlNode {
	for i := range n.Children {
		if n.Children[i].XMLName.Local == local {
			return &n.Children[i]
		}
	}
	return nil
}

// path follows a chain of child names.
func (n *xmlNode) path(locals ...string) *xmlNode {
	cur := n
	for _, l := range locals {
		if cur = cur.child(l); cur == nil {
			return nil
		}
	}
	return cur
}

func (n *xmlNode) children(local string) []*xmlNode {
	var out []*xmlNode
	for i := range n.Children {
		if n.Children[i].XMLName.Local == local {
			out = append(out, &n.Children[i])
		}
	}
	return out
}

func (n *xmlNode) descendants(local string) []*xmlNode {
	var out []*xmlNode
	for i := range n.Children {
		c := &n.Children[i]
		if c.XMLName.Local == local {
			out = append(out, c)
		}
		out = append(out, c.descendants(local)...)
	}
	return out
}

type pptxShape struct {
	top, left int64
	text      string
	isTitle   bool
	table     [][]string
}

func pptxShapes(n *xmlNode) []pptxShape {
	var out []pptxShape
	for i := range n.Children {
		c := &n.Children[i]
		switch c.XMLName.Local {
		case "sp":
			text := txBodyText(c.child("txBody"))
			if strings.TrimSpace(text) == "" {
				continue
			}
			s := pptxShape{text: text}
			if ph := c.path("nvSpPr", "nvPr", "ph"); ph != nil {
				t := ph.attr("type")
				s.isTitle = t == "title" || t == "ctrTitle"
			}
			s.top, s.left = shapeOffset(c.path("spPr", "xfrm", "off"))
			out = append(out, s)
		case "graphicFrame":
			tbls := c.descendants("tbl")
			if len(tbls) == 0 {
				continue
			}
			s := pptxShape{table: pptxTable(tbls[0])}
			s.top, s.left = shapeOffset(c.path("xfrm", "off"))
			out = append(out, s)
		default:
			out = append(out, pptxShapes(c)...)
		}
	}
	return out
}

func shapeOffset(off *xmlNode) (top, left int64) {
	if off == nil {
		return math.MaxInt64, math.MaxInt64
	}
	top, _ = strconv.ParseInt(off.attr("y"), 10, 64)
	left, _ = strconv.ParseInt(off.attr("x"), 10, 64)
	return top, left
}

func txBodyText(body *xmlNode) string {
	if body == nil {
		return ""
	}
	var lines []string
	for _, p := range body.children("p") {
		var b strings.Builder
		for _, t := range p.descendants("t") {
			b.WriteString(t.Content)
		}
		if s := strings.TrimSpace(b.String()); s != "" {
			lines = append(lines, s)
		}
	}
	return strings.Join(lines, "\n")
}

func pptxTable(tbl *xmlNode) [][]string {
	var rows [][]string
	for _, tr := range tbl.children("tr") {
		var row []string
		for _, tc := range tr.children("tc") {
			row = append(row, strings.ReplaceAll(txBodyText(tc.child("txBody")), "\n", " "))
		}
		rows = append(rows, row)
	}
	return rows
}

// markdownTable renders rows as a GFM table; the first row is the header.
func markdownTable(rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}
	width := 0
	for _, r := range rows {
		width = max(width, len(r))
	}
	if width == 0 {
		return ""
	}
	var b strings.Builder
	writeRow := func(r []string) {
		b.WriteString("|")
		for i := 0; i < width; i++ {
			cell := ""
			if i < len(r) {
				cell = strings.ReplaceAll(r[i], "|", `\|`)
			}
			b.WriteString(" " + cell + " |")
		}
		b.WriteString("\n")
	}
	writeRow(rows[0])
	b.WriteString("|" + strings.Repeat(" --- |", width) + "\n")
	for _, r := range rows[1:] {
		writeRow(r)
	}
	return b.String()
}
