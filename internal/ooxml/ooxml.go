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

// Package ooxml reads and writes the Office Open XML packages (docx, pptx)
// handled in process.
package ooxml

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"
)

// Common OOXML namespaces.
const (
	NSRelationships = "http://schemas.openxmlformats.org/package/2006/relationships"
	NSContentTypes  = "http://schemas.openxmlformats.org/package/2006/content-types"

	NSWordprocessingML = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	NSRelDoc           = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"

	NSCoreProperties = "http://schemas.openxmlformats.org/package/2006/metadata/core-properties"
	NSDublinCore     = "http://purl.org/dc/elements/1.1/"
)

// Relationship represents an OOXML relationship.
type Relationship struct {
	ID         string `xml:"Id,attr"`
	Type       string `xml:"Type,attr"`
	Target     string `xml:"Target,attr"`
	TargetMode string `xml:"TargetMode,attr"`
}

// Relationships is the root element for .rels files.
type Relationships struct {
	XMLName       xml.Name       `xml:"Relationships"`
	Relationships []Relationship `xml:"Relationship"`
}

// ParseRelationshipsFromReader parses a .rels part. A missing part yields an
// empty map.
func ParseRelationshipsFromReader(zr *zip.Reader, relsPath string) (map[string]Relationship, error) {
	f := findFile(zr, relsPath)
	if f == nil {
		return make(map[string]Relationship), nil
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var rels Relationships
	if err := xml.NewDecoder(rc).Decode(&rels); err != nil {
		return nil, fmt.Errorf("decode relationships: %w", err)
	}
	result := make(map[string]Relationship, len(rels.Relationships))
	for _, rel := range rels.Relationships {
		result[rel.ID] = rel
	}
	return result, nil
}

// ReadFileFromZip reads a part from a package.
func ReadFileFromZip(zr *zip.Reader, name string) ([]byte, error) {
	f := findFile(zr, name)
	if f == nil {
		return nil, fmt.Errorf("file %q not found in ZIP", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func findFile(zr *zip.Reader, name string) *zip.File {
	for _, f := range zr.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// ResolveTarget resolves a relationship target against the part that owns it.
func ResolveTarget(basePath, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	return path.Join(path.Dir(basePath), target)
}

type coreProperties struct {
	Title string `xml:"http://purl.org/dc/elements/1.1/ title"`
}

// CoreTitle returns dc:title from docProps/core.xml, or "" when absent.
func CoreTitle(zr *zip.Reader) (string, error) {
	data, err := ReadFileFromZip(zr, "docProps/core.xml")
	if err != nil {
		return "", nil
	}
	var props coreProperties
	if err := xml.Unmarshal(data, &props); err != nil {
		return "", fmt.Errorf("decode core properties: %w", err)
	}
	return strings.TrimSpace(props.Title), nil
}
