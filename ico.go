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
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/sergeymakinen/go-ico"
	"golang.org/x/image/draw"
)

// icoSizes are the square sizes written into an icon, smallest first.
var icoSizes = []int{16, 32, 48, 64, 128, 256}

// encodeICO writes img as a multi-resolution icon. Each size no larger than
// the source's longest side (capped at 256) becomes one entry; a source
// smaller than 16px yields a single entry at its own size.
func encodeICO(w io.Writer, img image.Image) error {
	b := img.Bounds()
	longest := min(max(b.Dx(), b.Dy()), 256)
	if longest <= 0 {
		return errors.New("icon source has no pixels")
	}

	var sizes []int
	for _, s := range icoSizes {
		if s <= longest {
			sizes = append(sizes, s)
		}
	}
	if len(sizes) == 0 {
		sizes = []int{longest}
	}

	entries := make([]image.Image, len(sizes))
	for i, s := range sizes {
		dst := image.NewNRGBA(image.Rect(0, 0, s, s))
		draw.CatmullRom.Scale(dst, fitRect(b, s, s), img, b, draw.Over, nil)
		entries[i] = dst
	}
	if err := ico.EncodeAll(w, entries); err != nil {
		return fmt.Errorf("encode icon: %w", err)
	}
	return nil
}

// fitRect centres a rectangle with src's aspect ratio inside a w×h canvas.
func fitRect(src image.Rectangle, w, h int) image.Rectangle {
	sw, sh := src.Dx(), src.Dy()
	dw, dh := w, h
	if sw*h > sh*w {
		dh = max(1, sh*w/sw)
	} else {
		dw = max(1, sw*h/sh)
	}
	x, y := (w-dw)/2, (h-dh)/2
	return image.Rect(x, y, x+dw, y+dh)
}

// decodeICO returns the largest image stored in an icon file.
func decodeICO(data []byte) (image.Image, error) {
	imgs, err := ico.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("icon: %w", err)
	}
	var best image.Image
	for _, img := range imgs {
		if best == nil || area(img.Bounds()) > area(best.Bounds()) {
			best = img
		}
	}
	if best == nil {
		return nil, errors.New("icon: no entries")
	}
	return best, nil
}

func area(r image.Rectangle) int { return r.Dx() * r.Dy() }
