package imaging

import (
	"image/color"
	"testing"
)

func TestColorModelStride(t *testing.T) {
	cases := []struct {
		model  ColorModel
		stride int
	}{
		{Gray8, 1},
		{GrayAlpha8, 2},
		{GrayAlpha16, 4},
		{RGB8, 3},
		{RGBA8, 4},
		{Indexed8, 1},
		{CMYK8, 4},
		{YCbCr8, 3},
	}
	for _, tc := range cases {
		if got := tc.model.PixelStride(); got != tc.stride {
			t.Errorf("%s: stride %d, want %d", tc.model, got, tc.stride)
		}
	}
}

func TestBufferValidate(t *testing.T) {
	buf := NewBuffer(4, 3, RGB8)
	if err := buf.Validate(); err != nil {
		t.Fatalf("expected valid buffer, got %v", err)
	}

	short := &Buffer{Pix: make([]byte, 10), Width: 4, Height: 3, Model: RGB8}
	if err := short.Validate(); err == nil {
		t.Fatal("expected size mismatch error")
	}

	empty := &Buffer{Pix: nil, Width: 0, Height: 3, Model: RGB8}
	if err := empty.Validate(); err == nil {
		t.Fatal("expected invalid dimensions error")
	}
}

func TestBufferValidateIndexedPalette(t *testing.T) {
	buf := NewBuffer(2, 2, Indexed8)
	if err := buf.Validate(); err == nil {
		t.Fatal("expected missing palette error")
	}

	buf.Palette = color.Palette{color.Black, color.White}
	if err := buf.Validate(); err != nil {
		t.Fatalf("expected valid indexed buffer, got %v", err)
	}

	for i := 0; i < 300; i++ {
		buf.Palette = append(buf.Palette, color.Black)
	}
	if err := buf.Validate(); err == nil {
		t.Fatal("expected oversized palette error")
	}
}

func TestBufferValidateIndexOutOfPaletteRange(t *testing.T) {
	buf := NewBuffer(2, 2, Indexed8)
	buf.Palette = color.Palette{color.Black, color.White}
	buf.Pix[3] = 200
	if err := buf.Validate(); err == nil {
		t.Fatal("expected out-of-range palette index error")
	}

	buf.Pix[3] = 1
	if err := buf.Validate(); err != nil {
		t.Fatalf("expected valid buffer after clamping index, got %v", err)
	}
}
