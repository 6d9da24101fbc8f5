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
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	xunicode "golang.org/x/text/encoding/unicode"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decodeText converts raw text of unknown encoding to UTF-8. Valid UTF-8 is
// returned unchanged; anything else goes through charset detection.
func decodeText(data []byte) string {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return string(data)
	}
	if s, ok := decodeBOM(data); ok {
		return s
	}

	results, err := chardet.NewTextDetector().DetectAll(data)
	if err != nil || len(results) == 0 {
		return strings.ToValidUTF8(string(data), "�")
	}

	best, bestScore := "", -1<<31
	for _, r := range results {
		enc := lookupEncoding(r.Charset)
		if enc == nil {
			continue
		}
		decoded, err := enc.NewDecoder().Bytes(data)
		if err != nil {
			continue
		}
		s := string(decoded)
		if score := decodeScore(s, r.Confidence); score > bestScore {
			best, bestScore = s, score
		}
	}
	if best == "" {
		return strings.ToValidUTF8(string(data), "�")
	}
	return best
}

func decodeBOM(data []byte) (string, bool) {
	var enc encoding.Encoding
	switch {
	case bytes.HasPrefix(data, []byte{0xFF, 0xFE}):
		enc = xunicode.UTF16(xunicode.LittleEndian, xunicode.UseBOM)
	case bytes.HasPrefix(data, []byte{0xFE, 0xFF}):
		enc = xunicode.UTF16(xunicode.BigEndian, xunicode.UseBOM)
	default:
		return "", false
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", false
	}
	return string(out), true
}

// decodeScore ranks a candidate decoding. The detector's confidence is the
// base; replacement and control characters count against it, and letters of
// any script count for it.
func decodeScore(s string, confidence int) int {
	score := confidence
	for _, r := range s {
		switch {
		case r == utf8.RuneError:
			score -= 10
		case unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t':
			score -= 5
		case unicode.In(r, unicode.Hiragana, unicode.Katakana, unicode.Hangul):
			score += 3
		case unicode.IsLetter(r):
			score++
		}
	}
	return score
}

// lookupEncoding resolves a charset label (as reported by chardet) to an encoding.
func lookupEncoding(charset string) encoding.Encoding {
	label := strings.ToLower(charset)
	switch label {
	case "utf-16le":
		return xunicode.UTF16(xunicode.LittleEndian, xunicode.IgnoreBOM)
	case "utf-16be":
		return xunicode.UTF16(xunicode.BigEndian, xunicode.IgnoreBOM)
	case "iso-8859-8-i":
		label = "iso-8859-8"
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil
	}
	return enc
}
