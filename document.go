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
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// document is the in-process representation shared by the text readers and
// writers. Readers produce markdown; writers lay it out for the target.
type document struct {
	Title    string
	Markdown string
	// Plain marks Markdown as unformatted text that must not be parsed.
	Plain bool
}

type blockKind int

const (
	blockParagraph blockKind = iota
	blockHeading
	blockListItem
	blockCode
	blockQuote
	blockTableRow
	blockRule
)

// block is one laid-out unit of a document.
type block struct {
	Kind   blockKind
	Level  int // heading level, or list nesting depth starting at 1
	Marker string
	Text   string
	Cells  []string
	Header bool
}

func newMarkdown() goldmark.Markdown {
	return goldmark.New(goldmark.WithExtensions(extension.GFM))
}

// readDocument loads a readable source into a document.
func readDocument(path string, f Format) (*document, error) {
	switch f {
	case FormatDOCX:
		return readDOCX(path)
	case FormatPPTX:
		return readPPTX(path)
	case FormatRSS:
		return readFeed(path)
	case FormatEPUB:
		return readEPUB(path)
	case FormatIPYNB:
		return readNotebook(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f, err)
	}
	switch f {
	case FormatTXT:
		return &document{Markdown: decodeText(data), Plain: true}, nil
	case FormatMD:
		return &document{Markdown: decodeText(data)}, nil
	case FormatHTML:
		return readHTML(decodeText(data))
	}
	return nil, fmt.Errorf("no document reader for %s", f)
}

// blocks lays the document out as a flat list of blocks.
func (d *document) blocks() []block {
	if d.Plain {
		return plainBlocks(d.Markdown)
	}
	return markdownBlocks(d.Markdown)
}

// plainBlocks splits plain text into paragraphs at blank lines. Line breaks
// inside a paragraph are kept.
func plainBlocks(s string) []block {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	var out []block
	for _, para := range strings.Split(s, "\n\n") {
		para = strings.Trim(para, "\n")
		if strings.TrimSpace(para) == "" {
			continue
		}
		out = append(out, block{Kind: blockParagraph, Text: para})
	}
	return out
}

func markdownBlocks(src string) []block {
	source := []byte(src)
	root := newMarkdown().Parser().Parse(text.NewReader(source))
	b := &blockBuilder{source: source}
	b.children(root, 0, false)
	return b.out
}

type blockBuilder struct {
	source []byte
	out    []block
}

func (b *blockBuilder) children(n ast.Node, depth int, quoted bool) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		b.visit(c, depth, quoted)
	}
}

func (b *blockBuilder) visit(n ast.Node, depth int, quoted bool) {
	switch node := n.(type) {
	case *ast.Heading:
		b.out = append(b.out, block{Kind: blockHeading, Level: node.Level, Text: inlineText(node, b.source)})
	case *ast.Paragraph, *ast.TextBlock:
		kind := blockParagraph
		if quoted {
			kind = blockQuote
		}
		if t := inlineText(node, b.source); t != "" {
			b.out = append(b.out, block{Kind: kind, Text: t})
		}
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		b.out = append(b.out, block{Kind: blockCode, Text: strings.TrimRight(linesText(node, b.source), "\n")})
	case *ast.HTMLBlock:
		if t := htmlToText(linesText(node, b.source)); t != "" {
			b.out = append(b.out, block{Kind: blockParagraph, Text: t})
		}
	case *ast.ThematicBreak:
		b.out = append(b.out, block{Kind: blockRule})
	case *ast.Blockquote:
		b.children(node, depth, true)
	case *ast.List:
		b.list(node, depth, quoted)
	case *extast.Table:
		for row := node.FirstChild(); row != nil; row = row.NextSibling() {
			var cells []string
			for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
				cells = append(cells, inlineText(cell, b.source))
			}
			_, header := row.(*extast.TableHeader)
			b.out = append(b.out, block{Kind: blockTableRow, Cells: cells, Header: header})
		}
	default:
		b.children(n, depth, quoted)
	}
}

// list emits one block per item. The item's leading paragraph becomes the
// item text; anything after it (nested lists, further paragraphs) follows
// one level deeper.
func (b *blockBuilder) list(l *ast.List, depth int, quoted bool) {
	index := l.Start
	for item := l.FirstChild(); item != nil; item = item.NextSibling() {
		marker := "•"
		if l.IsOrdered() {
			marker = strconv.Itoa(index) + "."
			index++
		}
		rest := item.FirstChild()
		itemText := ""
		if rest != nil && (rest.Kind() == ast.KindTextBlock || rest.Kind() == ast.KindParagraph) {
			itemText = inlineText(rest, b.source)
			rest = rest.NextSibling()
		}
		b.out = append(b.out, block{Kind: blockListItem, Level: depth + 1, Marker: marker, Text: itemText})
		for ; rest != nil; rest = rest.NextSibling() {
			b.visit(rest, depth+1, quoted)
		}
	}
}

// inlineText flattens the inline content of n to plain text.
func inlineText(n ast.Node, source []byte) string {
	var sb strings.Builder
	var walk func(ast.Node)
	walk = func(n ast.Node) {
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			switch t := c.(type) {
			case *ast.Text:
				sb.Write(t.Segment.Value(source))
				if t.HardLineBreak() {
					sb.WriteByte('\n')
				} else if t.SoftLineBreak() {
					sb.WriteByte(' ')
				}
			case *ast.String:
				sb.Write(t.Value)
			case *ast.AutoLink:
				sb.Write(t.URL(source))
			case *ast.RawHTML:
			default:
				walk(c)
			}
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}

func linesText(n ast.Node, source []byte) string {
	var sb strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(source))
	}
	return sb.String()
}
