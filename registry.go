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
	_ "embed"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed formats.yaml
var formatsYAML []byte

// Category groups formats by the kind of content they hold.
type Category string

const (
	CategoryDocument    Category = "document"
	CategoryImage       Category = "image"
	CategorySpreadsheet Category = "spreadsheet"
	CategoryAudio       Category = "audio"
	CategoryVideo       Category = "video"
)

func (c Category) valid() bool {
	switch c {
	case CategoryDocument, CategoryImage, CategorySpreadsheet, CategoryAudio, CategoryVideo:
		return true
	}
	return false
}

// Format is a canonical file format name: the lowercase extension without the dot.
type Format string

// Formats referenced directly by strategies.
const (
	FormatDOCX Format = "docx"
	FormatPDF  Format = "pdf"
	FormatTXT  Format = "txt"
	FormatRTF  Format = "rtf"
	FormatHTML Format = "html"
	FormatODT  Format = "odt"
	FormatMD   Format = "md"
	FormatRSS  Format = "rss"
	FormatPPTX Format = "pptx"

	FormatEPUB  Format = "epub"
	FormatIPYNB Format = "ipynb"

	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
	FormatXLS  Format = "xls"

	FormatPNG  Format = "png"
	FormatJPG  Format = "jpg"
	FormatGIF  Format = "gif"
	FormatBMP  Format = "bmp"
	FormatTIFF Format = "tiff"
	FormatWEBP Format = "webp"
	FormatICO  Format = "ico"
	FormatSVG  Format = "svg"

	FormatMP3  Format = "mp3"
	FormatWAV  Format = "wav"
	FormatAAC  Format = "aac"
	FormatFLAC Format = "flac"
	FormatOGG  Format = "ogg"
	FormatM4A  Format = "m4a"
	FormatWMA  Format = "wma"

	FormatMP4  Format = "mp4"
	FormatAVI  Format = "avi"
	FormatMOV  Format = "mov"
	FormatWMV  Format = "wmv"
	FormatFLV  Format = "flv"
	FormatMKV  Format = "mkv"
	FormatWEBM Format = "webm"
	FormatM4V  Format = "m4v"
	Format3GP  Format = "3gp"
)

// Ext returns the file extension for the format, including the leading dot.
func (f Format) Ext() string {
	return "." + string(f)
}

// Pair is a (source, target) conversion request.
type Pair struct {
	Source Format
	Target Format
}

func (p Pair) String() string {
	return string(p.Source) + "->" + string(p.Target)
}

type formatSpec struct {
	Category Category `yaml:"category"`
	Aliases  []string `yaml:"aliases"`
	Targets  []Format `yaml:"targets"`
}

type pairSpec struct {
	From Format `yaml:"from"`
	To   Format `yaml:"to"`
}

// registryFile mirrors formats.yaml. Format order follows the document.
type registryFile struct {
	Order      []Format
	Formats    map[Format]formatSpec
	BestEffort []pairSpec
}

// UnmarshalYAML keeps the declaration order of the formats mapping.
func (f *registryFile) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Formats    map[Format]formatSpec `yaml:"formats"`
		BestEffort []pairSpec            `yaml:"best_effort"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	f.Formats = raw.Formats
	f.BestEffort = raw.BestEffort

	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value != "formats" {
			continue
		}
		formats := node.Content[i+1]
		for j := 0; j+1 < len(formats.Content); j += 2 {
			f.Order = append(f.Order, Format(formats.Content[j].Value))
		}
	}
	return nil
}

// Registry is the static table of known formats and supported conversions.
// It is read-only after construction and safe for concurrent use.
type Registry struct {
	order      []Format
	categories map[Format]Category
	aliases    map[string]Format
	targets    map[Format][]Format
	pairs      map[Pair]bool
	bestEffort map[Pair]bool
}

// ParseRegistry builds a registry from a YAML document shaped like formats.yaml.
func ParseRegistry(data []byte) (*Registry, error) {
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode registry: %w", err)
	}
	if len(file.Formats) == 0 {
		return nil, fmt.Errorf("registry declares no formats")
	}

	r := &Registry{
		categories: make(map[Format]Category, len(file.Formats)),
		aliases:    make(map[string]Format),
		targets:    make(map[Format][]Format, len(file.Formats)),
		pairs:      make(map[Pair]bool),
		bestEffort: make(map[Pair]bool),
	}

	for _, f := range file.Order {
		def := file.Formats[f]
		if !def.Category.valid() {
			return nil, fmt.Errorf("format %q: unknown category %q", f, def.Category)
		}
		r.order = append(r.order, f)
		r.categories[f] = def.Category
		r.aliases[string(f)] = f
		for _, a := range def.Aliases {
			r.aliases[normalizeName(a)] = f
		}
	}

	for _, src := range r.order {
		for _, dst := range file.Formats[src].Targets {
			if _, ok := r.categories[dst]; !ok {
				return nil, fmt.Errorf("format %q: unknown target %q", src, dst)
			}
			if dst == src {
				continue
			}
			p := Pair{Source: src, Target: dst}
			if r.pairs[p] {
				continue
			}
			r.pairs[p] = true
			r.targets[src] = append(r.targets[src], dst)
		}
	}

	for _, be := range file.BestEffort {
		p := Pair{Source: be.From, Target: be.To}
		if !r.pairs[p] {
			return nil, fmt.Errorf("best-effort pair %s is not a declared conversion", p)
		}
		r.bestEffort[p] = true
	}

	return r, nil
}

var (
	defaultRegistry     *Registry
	defaultRegistryErr  error
	defaultRegistryOnce sync.Once
)

// DefaultRegistry returns the registry embedded in the binary.
func DefaultRegistry() (*Registry, error) {
	defaultRegistryOnce.Do(func() {
		defaultRegistry, defaultRegistryErr = ParseRegistry(formatsYAML)
	})
	return defaultRegistry, defaultRegistryErr
}

// normalizeName lowercases a user supplied format name and strips a leading dot.
func normalizeName(name string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(name)), ".")
}

// Lookup resolves a format name, extension, or alias to its canonical Format.
func (r *Registry) Lookup(name string) (Format, bool) {
	f, ok := r.aliases[normalizeName(name)]
	return f, ok
}

// FormatForPath resolves the format of a path from its extension.
func (r *Registry) FormatForPath(path string) (Format, bool) {
	ext := filepath.Ext(path)
	if ext == "" {
		return "", false
	}
	return r.Lookup(ext)
}

// IsSupported reports whether the registry declares a conversion from src to dst.
// Unknown formats are simply unsupported.
func (r *Registry) IsSupported(src, dst Format) bool {
	return r.pairs[Pair{Source: src, Target: dst}]
}

// IsBestEffort reports whether a declared pair may exist without a bound strategy.
func (r *Registry) IsBestEffort(p Pair) bool {
	return r.bestEffort[p]
}

// ListTargets returns the formats src converts to, in declaration order.
func (r *Registry) ListTargets(src Format) []Format {
	targets := r.targets[src]
	out := make([]Format, len(targets))
	copy(out, targets)
	return out
}

// CategoryOf returns the category of f.
func (r *Registry) CategoryOf(f Format) (Category, bool) {
	c, ok := r.categories[f]
	return c, ok
}

// Formats returns every known format in declaration order.
func (r *Registry) Formats() []Format {
	out := make([]Format, len(r.order))
	copy(out, r.order)
	return out
}

// FormatsIn returns the formats of one category in declaration order.
func (r *Registry) FormatsIn(c Category) []Format {
	var out []Format
	for _, f := range r.order {
		if r.categories[f] == c {
			out = append(out, f)
		}
	}
	return out
}

// Pairs returns every declared pair, sorted by source then target.
func (r *Registry) Pairs() []Pair {
	out := make([]Pair, 0, len(r.pairs))
	for p := range r.pairs {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].Target < out[j].Target
	})
	return out
}

// Conversions returns the full source -> targets table.
func (r *Registry) Conversions() map[Format][]Format {
	out := make(map[Format][]Format, len(r.targets))
	for src := range r.targets {
		out[src] = r.ListTargets(src)
	}
	return out
}
