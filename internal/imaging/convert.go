package imaging

import (
	"fmt"
	"image/color"
)

type conversionKey struct {
	from, to ColorModel
}

// conversions is the explicit, directional rule table. Pairs outside
// this table do not convert, ever. The dispatcher consults it through
// Convert and CanConvert; encoders never reach for it.
var conversions = map[conversionKey]func(*Buffer) *Buffer{
	{Gray8, RGB8}:        grayToRGB,
	{Gray8, RGBA8}:       grayToRGBA,
	{GrayAlpha8, RGBA8}:  grayAlphaToRGBA,
	{GrayAlpha16, RGBA8}: grayAlpha16ToRGBA,
	{RGBA8, RGB8}:        rgbaToRGB,
	{CMYK8, RGB8}:        cmykToRGB,
	{Indexed8, RGB8}:     indexedToRGB,
	{Indexed8, RGBA8}:    indexedToRGBA,
	{YCbCr8, RGB8}:       ycbcrToRGB,
}

// CanConvert reports whether a rule exists from one model to another.
// A model trivially converts to itself.
func CanConvert(from, to ColorModel) bool {
	if from == to {
		return true
	}
	_, ok := conversions[conversionKey{from, to}]
	return ok
}

// Convert produces a new buffer in the target model, or fails with
// ErrUnsupportedConversion when the pair has no rule. The source buffer
// is never modified.
func Convert(b *Buffer, target ColorModel) (*Buffer, error) {
	if b.Model == target {
		return b, nil
	}
	fn, ok := conversions[conversionKey{b.Model, target}]
	if !ok {
		return nil, fmt.Errorf("%w: %s to %s", ErrUnsupportedConversion, b.Model, target)
	}
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("convert %s to %s: %w", b.Model, target, err)
	}
	return fn(b), nil
}

func grayToRGB(b *Buffer) *Buffer {
	out := NewBuffer(b.Width, b.Height, RGB8)
	for i, g := range b.Pix {
		out.Pix[i*3] = g
		out.Pix[i*3+1] = g
		out.Pix[i*3+2] = g
	}
	return out
}

func grayToRGBA(b *Buffer) *Buffer {
	out := NewBuffer(b.Width, b.Height, RGBA8)
	for i, g := range b.Pix {
		out.Pix[i*4] = g
		out.Pix[i*4+1] = g
		out.Pix[i*4+2] = g
		out.Pix[i*4+3] = 0xff
	}
	return out
}

func grayAlphaToRGBA(b *Buffer) *Buffer {
	out := NewBuffer(b.Width, b.Height, RGBA8)
	n := b.Width * b.Height
	for i := 0; i < n; i++ {
		g, a := b.Pix[i*2], b.Pix[i*2+1]
		out.Pix[i*4] = g
		out.Pix[i*4+1] = g
		out.Pix[i*4+2] = g
		out.Pix[i*4+3] = a
	}
	return out
}

// grayAlpha16ToRGBA keeps the high byte of each 16-bit channel. Lossy.
func grayAlpha16ToRGBA(b *Buffer) *Buffer {
	out := NewBuffer(b.Width, b.Height, RGBA8)
	n := b.Width * b.Height
	for i := 0; i < n; i++ {
		g, a := b.Pix[i*4], b.Pix[i*4+2]
		out.Pix[i*4] = g
		out.Pix[i*4+1] = g
		out.Pix[i*4+2] = g
		out.Pix[i*4+3] = a
	}
	return out
}

// rgbaToRGB drops the alpha channel. Lossy: transparency is lost, pixels
// are not composited against a background.
func rgbaToRGB(b *Buffer) *Buffer {
	out := NewBuffer(b.Width, b.Height, RGB8)
	n := b.Width * b.Height
	for i := 0; i < n; i++ {
		out.Pix[i*3] = b.Pix[i*4]
		out.Pix[i*3+1] = b.Pix[i*4+1]
		out.Pix[i*3+2] = b.Pix[i*4+2]
	}
	return out
}

// cmykToRGB applies the standard uncalibrated formula. No color
// management; ICC profiles are out of scope.
func cmykToRGB(b *Buffer) *Buffer {
	out := NewBuffer(b.Width, b.Height, RGB8)
	n := b.Width * b.Height
	for i := 0; i < n; i++ {
		r, g, bl := color.CMYKToRGB(b.Pix[i*4], b.Pix[i*4+1], b.Pix[i*4+2], b.Pix[i*4+3])
		out.Pix[i*3] = r
		out.Pix[i*3+1] = g
		out.Pix[i*3+2] = bl
	}
	return out
}

func indexedToRGB(b *Buffer) *Buffer {
	out := NewBuffer(b.Width, b.Height, RGB8)
	for i, idx := range b.Pix {
		r, g, bl, _ := b.Palette[idx].RGBA()
		out.Pix[i*3] = uint8(r >> 8)
		out.Pix[i*3+1] = uint8(g >> 8)
		out.Pix[i*3+2] = uint8(bl >> 8)
	}
	return out
}

func indexedToRGBA(b *Buffer) *Buffer {
	out := NewBuffer(b.Width, b.Height, RGBA8)
	for i, idx := range b.Pix {
		r, g, bl, a := b.Palette[idx].RGBA()
		out.Pix[i*4] = uint8(r >> 8)
		out.Pix[i*4+1] = uint8(g >> 8)
		out.Pix[i*4+2] = uint8(bl >> 8)
		out.Pix[i*4+3] = uint8(a >> 8)
	}
	return out
}

// ycbcrToRGB applies the BT.601 studio-swing conversion the stdlib uses.
func ycbcrToRGB(b *Buffer) *Buffer {
	out := NewBuffer(b.Width, b.Height, RGB8)
	n := b.Width * b.Height
	for i := 0; i < n; i++ {
		r, g, bl := color.YCbCrToRGB(b.Pix[i*3], b.Pix[i*3+1], b.Pix[i*3+2])
		out.Pix[i*3] = r
		out.Pix[i*3+1] = g
		out.Pix[i*3+2] = bl
	}
	return out
}
