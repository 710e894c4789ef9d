package imaging

import (
	"errors"
	"testing"
)

func TestResolveCanonicalNames(t *testing.T) {
	for _, f := range Formats() {
		got, err := Resolve(f.String())
		if err != nil {
			t.Fatalf("resolve %s: %v", f, err)
		}
		if got != f {
			t.Fatalf("resolve %s returned %s", f, got)
		}
	}
}

func TestResolveAliasesAndCase(t *testing.T) {
	cases := []struct {
		identifier string
		want       Format
	}{
		{"jpg", JPEG},
		{"JPEG", JPEG},
		{"tif", TIFF},
		{"  png ", PNG},
		{"x-portable-graymap", PGM},
		{"x-portable-pixmap", PPM},
		{"WebP", WebP},
	}
	for _, tc := range cases {
		got, err := Resolve(tc.identifier)
		if err != nil {
			t.Fatalf("resolve %q: %v", tc.identifier, err)
		}
		if got != tc.want {
			t.Fatalf("resolve %q = %s, want %s", tc.identifier, got, tc.want)
		}
	}
}

func TestResolveUnknown(t *testing.T) {
	for _, identifier := range []string{"", "exr", "svg", "image/png"} {
		_, err := Resolve(identifier)
		if !errors.Is(err, ErrUnsupportedFormat) {
			t.Fatalf("resolve %q: expected ErrUnsupportedFormat, got %v", identifier, err)
		}
	}
}

func TestDecodeOnlyFormats(t *testing.T) {
	if caps := JXL.Capabilities(); len(caps.Encodable) != 0 {
		t.Fatal("jxl must be decode-only")
	}
	for _, f := range []Format{PNG, JPEG, GIF, WebP, BMP, TIFF, AVIF, PGM, PPM} {
		if caps := f.Capabilities(); len(caps.Encodable) == 0 {
			t.Fatalf("%s must be encodable", f)
		}
	}
}

func TestMIMETypes(t *testing.T) {
	cases := map[Format]string{
		PNG:  "image/png",
		JPEG: "image/jpeg",
		WebP: "image/webp",
		AVIF: "image/avif",
		JXL:  "image/jxl",
		PGM:  "image/x-portable-anymap",
		PPM:  "image/x-portable-anymap",
	}
	for f, want := range cases {
		if got := f.MIMEType(); got != want {
			t.Errorf("%s: mime %s, want %s", f, got, want)
		}
	}
}
