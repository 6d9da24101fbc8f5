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
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// mimeFormats maps detected MIME types to formats for inputs whose extension
// is missing or unknown.
var mimeFormats = map[string]Format{
	"application/pdf": FormatPDF,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   FormatDOCX,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": FormatPPTX,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         FormatXLSX,
	"application/vnd.oasis.opendocument.text":                                   FormatODT,
	"application/vnd.ms-excel":                                                  FormatXLS,
	"text/rtf":                                                                  FormatRTF,
	"text/html":                                                                 FormatHTML,
	"text/csv":                                                                  FormatCSV,
	"text/plain":                                                                FormatTXT,
	"application/rss+xml":                                                       FormatRSS,
	"application/atom+xml":                                                      FormatRSS,
	"application/epub+zip":                                                      FormatEPUB,
	"image/png":                                                                 FormatPNG,
	"image/jpeg":                                                                FormatJPG,
	"image/gif":                                                                 FormatGIF,
	"image/bmp":                                                                 FormatBMP,
	"image/tiff":                                                                FormatTIFF,
	"image/webp":                                                                FormatWEBP,
	"image/x-icon":                                                              FormatICO,
	"image/vnd.microsoft.icon":                                                  FormatICO,
	"image/svg+xml":                                                             FormatSVG,
	"video/mp4":                                                                 FormatMP4,
	"video/x-msvideo":                                                           FormatAVI,
	"video/quicktime":                                                           FormatMOV,
	"video/x-ms-wmv":                                                            FormatWMV,
	"video/x-flv":                                                               FormatFLV,
	"video/x-matroska":                                                          FormatMKV,
	"video/webm":                                                                FormatWEBM,
	"video/x-m4v":                                                               FormatM4V,
	"video/3gpp":                                                                Format3GP,
	"audio/mpeg":                                                                FormatMP3,
	"audio/wav":                                                                 FormatWAV,
	"audio/aac":                                                                 FormatAAC,
	"audio/flac":                                                                FormatFLAC,
	"audio/ogg":                                                                 FormatOGG,
	"audio/x-m4a":                                                               FormatM4A,
	"audio/x-ms-wma":                                                            FormatWMA,
}

// detectFormat sniffs the content of path. Only formats the registry knows are returned.
func detectFormat(r *Registry, path string) (Format, bool) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return "", false
	}
	for m := mtype; m != nil; m = m.Parent() {
		base, _, _ := strings.Cut(m.String(), ";")
		if f, ok := mimeFormats[base]; ok {
			if _, known := r.CategoryOf(f); known {
				return f, true
			}
		}
		if ext := m.Extension(); ext != "" {
			if f, ok := r.Lookup(ext); ok {
				return f, true
			}
		}
	}
	return "", false
}
