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
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

type notebook struct {
	Metadata struct {
		KernelSpec *struct {
			Language string `json:"language"`
		} `json:"kernelspec"`
	} `json:"metadata"`
	Cells []notebookCell `json:"cells"`
}

type notebookCell struct {
	CellType string          `json:"cell_type"`
	Source   json.RawMessage `json:"source"`
	Outputs  []struct {
		Text json.RawMessage            `json:"text"`
		Data map[string]json.RawMessage `json:"data"`
	} `json:"outputs"`
}

// readNotebook renders a Jupyter notebook: markdown cells verbatim, code
// cells and their text outputs as fenced blocks. The first level-one heading
// becomes the title.
func readNotebook(path string) (*document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read notebook: %w", err)
	}
	var nb notebook
	if err := json.Unmarshal(data, &nb); err != nil {
		return nil, fmt.Errorf("parse notebook JSON: %w", err)
	}

	lang := "python"
	if ks := nb.Metadata.KernelSpec; ks != nil && ks.Language != "" {
		lang = ks.Language
	}

	var (
		sections []string
		title    string
	)
	for _, cell := range nb.Cells {
		src := cellText(cell.Source)
		switch cell.CellType {
		case "markdown":
			sections = append(sections, src)
			if title == "" {
				title = firstHeading(src)
			}
		case "code":
			if strings.TrimSpace(src) != "" {
				sections = append(sections, fmt.Sprintf("```%s\n%s\n```", lang, src))
			}
			for _, out := range cell.Outputs {
				text := cellText(out.Text)
				if text == "" {
					text = cellText(out.Data["text/plain"])
				}
				if text = strings.TrimRight(text, "\n"); text != "" {
					sections = append(sections, "```\n"+text+"\n```")
				}
			}
		case "raw":
			if strings.TrimSpace(src) != "" {
				sections = append(sections, "```\n"+src+"\n```")
			}
		}
	}

	return &document{Title: title, Markdown: strings.Join(sections, "\n\n")}, nil
}

// cellText accepts both notebook encodings of multi-line text: a single
// string or a list of lines.
func cellText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var lines []string
	if err := json.Unmarshal(raw, &lines); err == nil {
		return strings.Join(lines, "")
	}
	return ""
}

func firstHeading(md string) string {
	for _, line := range strings.Split(md, "\n") {
		if line = strings.TrimSpace(line); strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "# "))
		}
	}
	return ""
}
