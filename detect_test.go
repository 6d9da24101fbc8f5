package fileconv

import "testing"

func TestMIMEFormatsAreRegistered(t *testing.T) {
	r, err := DefaultRegistry()
	if err != nil {
		t.Fatal(err)
	}
	for mime, f := range mimeFormats {
		if _, ok := r.CategoryOf(f); !ok {
			t.Errorf("%s maps to %q, which the default registry does not know", mime, f)
		}
	}
}

func TestDetectFormat(t *testing.T) {
	r, err := DefaultRegistry()
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	png := writePNG(t, dir, "upload", testImage(4, 4))
	if got, ok := detectFormat(r, png); !ok || got != FormatPNG {
		t.Errorf("detectFormat(png bytes) = %q, %v", got, ok)
	}
	if _, ok := detectFormat(r, writeFile(t, dir, "blob", "\x00\x01\x02\x03")); ok {
		t.Error("detectFormat(binary noise) found a format")
	}
}
