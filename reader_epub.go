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
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/nicholasgasior/fileconv-go/internal/ooxml"
)

var errNoRootfile = errors.New("rootfile not found in container.xml")

type epubPackage struct {
	title     string
	authors   []string
	language  string
	publisher string
	// spine holds content document paths in reading order.
	spine []string
}

// readEPUB renders the book metadata followed by each spine document in
// reading order. Non-HTML spine items are skipped.
func readEPUB(name string) (*document, error) {
	zr, err := zip.OpenReader(name)
	if err != nil {
		return nil, fmt.Errorf("open EPUB: %w", err)
	}
	defer zr.Close()

	opfPath, err := epubRootfile(&zr.Reader)
	if err != nil {
		return nil, fmt.Errorf("find OPF: %w", err)
	}
	pkg, err := parseOPF(&zr.Reader, opfPath)
	if err != nil {
		return nil, fmt.Errorf("parse OPF: %w", err)
	}

	var md strings.Builder
	if pkg.title != "" {
		fmt.Fprintf(&md, "# %s\n\n", pkg.title)
	}
	if len(pkg.authors) > 0 {
		fmt.Fprintf(&md, "**Authors:** %s\n\n", strings.Join(pkg.authors, ", "))
	}
	if pkg.language != "" {
		fmt.Fprintf(&md, "**Language:** %s\n\n", pkg.language)
	}
	if pkg.publisher != "" {
		fmt.Fprintf(&md, "**Publisher:** %s\n\n", pkg.publisher)
	}

	for _, part := range pkg.spine {
		data, err := ooxml.ReadFileFromZip(&zr.Reader, part)
		if err != nil {
			continue
		}
		chapter, err := htmlToMarkdown(decodeText(data))
		if err != nil {
			return nil, fmt.Errorf("convert %s: %w", part, err)
		}
		if chapter = strings.TrimSpace(chapter); chapter != "" {
			md.WriteString(chapter)
			md.WriteString("\n\n")
		}
	}

	return &document{Title: pkg.title, Markdown: md.String()}, nil
}

// epubRootfile returns the package document path from META-INF/container.xml.
func epubRootfile(zr *zip.Reader) (string, error) {
	data, err := ooxml.ReadFileFromZip(zr, "META-INF/container.xml")
	if err != nil {
		return "", err
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", errNoRootfile
		}
		if se, ok := tok.(xml.StartElement); ok && se.Name.Local == "rootfile" {
			for _, a := range se.Attr {
				if a.Name.Local == "full-path" && a.Value != "" {
					return a.Value, nil
				}
			}
		}
	}
}

func parseOPF(zr *zip.Reader, opfPath string) (*epubPackage, error) {
	data, err := ooxml.ReadFileFromZip(zr, opfPath)
	if err != nil {
		return nil, err
	}

	type manifestItem struct{ href, mediaType string }
	var (
		pkg        epubPackage
		manifest   = map[string]manifestItem{}
		itemrefs   []string
		inMetadata bool
		field      string
	)

	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch local := t.Name.Local; local {
			case "metadata":
				inMetadata = true
			case "title", "creator", "language", "publisher":
				if inMetadata {
					field = local
				}
			case "item":
				var id string
				var item manifestItem
				for _, a := range t.Attr {
					switch a.Name.Local {
					case "id":
						id = a.Value
					case "href":
						item.href = a.Value
					case "media-type":
						item.mediaType = a.Value
					}
				}
				if id != "" {
					manifest[id] = item
				}
			case "itemref":
				for _, a := range t.Attr {
					if a.Name.Local == "idref" {
						itemrefs = append(itemrefs, a.Value)
					}
				}
			}
		case xml.CharData:
			text := strings.TrimSpace(string(t))
			if !inMetadata || text == "" {
				continue
			}
			switch field {
			case "title":
				if pkg.title == "" {
					pkg.title = text
				}
			case "creator":
				pkg.authors = append(pkg.authors, text)
			case "language":
				pkg.language = text
			case "publisher":
				pkg.publisher = text
			}
		case xml.EndElement:
			if t.Name.Local == "metadata" {
				inMetadata = false
			}
			field = ""
		}
	}

	for _, ref := range itemrefs {
		item, ok := manifest[ref]
		if !ok || !isHTMLPart(item.href, item.mediaType) {
			continue
		}
		pkg.spine = append(pkg.spine, ooxml.ResolveTarget(opfPath, item.href))
	}
	return &pkg, nil
}

func isHTMLPart(href, mediaType string) bool {
	switch strings.ToLower(path.Ext(href)) {
	case ".html", ".htm", ".xhtml":
		return true
	}
	return strings.Contains(mediaType, "html")
}
