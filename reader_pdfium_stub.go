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

//go:build nopdfium

package fileconv

import (
	"errors"
	"time"
)

// pdfiumCompiled reports whether the pdfium-extract strategy can run.
const pdfiumCompiled = false

// extractPDFium is unavailable in builds tagged nopdfium; the pure Go
// extractor takes over as the next strategy.
func extractPDFium(string, time.Duration) (*document, error) {
	return nil, errors.New("pdfium support not compiled in (built with -tags nopdfium)")
}
