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
	"strings"

	"github.com/mmcdole/gofeed"
)

// readFeed renders an RSS or Atom feed: the feed title as the top heading,
// then one section per item.
func readFeed(path string) (*document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open feed: %w", err)
	}
	defer f.Close()

	feed, err := gofeed.NewParser().Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	var b strings.Builder
	if feed.Title != "" {
		fmt.Fprintf(&b, "# %s\n\n", feed.Title)
	}
	if feed.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", feed.Description)
	}

	for _, item := range feed.Items {
		if item.Title != "" {
			fmt.Fprintf(&b, "## %s\n\n", item.Title)
		}
		switch {
		case item.Published != "":
			fmt.Fprintf(&b, "Published: %s\n\n", item.Published)
		case item.Updated != "":
			fmt.Fprintf(&b, "Updated: %s\n\n", item.Updated)
		}
		if item.Link != "" {
			fmt.Fprintf(&b, "<%s>\n\n", item.Link)
		}

		content := item.Content
		if content == "" {
			content = item.Description
		}
		if strings.Contains(content, "<") && strings.Contains(content, ">") {
			if md, err := htmlToMarkdown(content); err == nil {
				content = md
			}
		}
		if content = strings.TrimSpace(content); content != "" {
			b.WriteString(content)
			b.WriteString("\n\n")
		}
	}

	return &document{Title: feed.Title, Markdown: b.String()}, nil
}
