package imaging

import (
	"fmt"
	"image/color"
)

// ColorModel tags the channel layout of decoded pixel data. The set is
// closed: every decoder must map its codec's native layout onto one of
// these tags or refuse the image with ErrUnsupportedColorModel.
type ColorModel int

const (
	Gray8 ColorModel = iota
	GrayAlpha8
	GrayAlpha16
	RGB8
	RGBA8
	Indexed8
	CMYK8
	YCbCr8
)

var colorModelNames = map[ColorModel]string{
	Gray8:       "gray8",
	GrayAlpha8:  "graya8",
	GrayAlpha16: "graya16",
	RGB8:        "rgb8",
	RGBA8:       "rgba8",
	Indexed8:    "indexed8",
	CMYK8:       "cmyk8",
	YCbCr8:      "ycbcr8",
}

func (m ColorModel) String() string {
	if name, ok := colorModelNames[m]; ok {
		return name
	}
	return fmt.Sprintf("colormodel(%d)", int(m))
}

// Channels returns the number of interleaved channels per pixel.
func (m ColorModel) Channels() int {
	switch m {
	case Gray8, Indexed8:
		return 1
	case GrayAlpha8, GrayAlpha16:
		return 2
	case RGB8, YCbCr8:
		return 3
	case RGBA8, CMYK8:
		return 4
	default:
		return 0
	}
}

// BytesPerChannel returns the storage width of a single channel.
func (m ColorModel) BytesPerChannel() int {
	if m == GrayAlpha16 {
		return 2
	}
	return 1
}

// PixelStride is the byte width of one pixel in a canonical buffer.
func (m ColorModel) PixelStride() int {
	return m.Channels() * m.BytesPerChannel()
}

// Buffer is the canonical in-memory representation every decoder produces
// and every encoder consumes: interleaved pixel bytes in row-major order,
// plus dimensions and the color model tag. It is never partially
// populated; decoders construct it atomically after a full decode.
type Buffer struct {
	Pix    []byte
	Width  int
	Height int
	Model  ColorModel

	// Palette is set only for Indexed8 buffers, where Pix holds palette
	// indices. Multi-byte channels (GrayAlpha16) are big-endian.
	Palette color.Palette
}

// NewBuffer allocates a zeroed buffer sized for the given dimensions and
// model. Callers still need to attach a palette for Indexed8.
func NewBuffer(width, height int, model ColorModel) *Buffer {
	return &Buffer{
		Pix:    make([]byte, width*height*model.PixelStride()),
		Width:  width,
		Height: height,
		Model:  model,
	}
}

// Validate checks the size invariant: the pixel slice must hold exactly
// width*height pixels at the model's stride.
func (b *Buffer) Validate() error {
	if b.Width <= 0 || b.Height <= 0 {
		return fmt.Errorf("invalid dimensions %dx%d", b.Width, b.Height)
	}
	want := b.Width * b.Height * b.Model.PixelStride()
	if len(b.Pix) != want {
		return fmt.Errorf("pixel buffer holds %d bytes, want %d for %dx%d %s",
			len(b.Pix), want, b.Width, b.Height, b.Model)
	}
	if b.Model == Indexed8 {
		if len(b.Palette) == 0 {
			return fmt.Errorf("indexed buffer requires a palette")
		}
		if len(b.Palette) > 256 {
			return fmt.Errorf("palette holds %d entries, max 256", len(b.Palette))
		}
		// Codecs honor palettes shorter than 256 entries without range
		// checking the pixel bytes, so out-of-range indices must be
		// caught here before any palette lookup.
		for i, idx := range b.Pix {
			if int(idx) >= len(b.Palette) {
				return fmt.Errorf("pixel %d indexes palette entry %d, palette holds %d",
					i, idx, len(b.Palette))
			}
		}
	}
	return nil
}
