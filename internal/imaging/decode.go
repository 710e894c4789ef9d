package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/kpfaulkner/jxl-go/core"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	xwebp "golang.org/x/image/webp"
)

type stdDecoder struct {
	config func(io.Reader) (image.Config, error)
	full   func(io.Reader) (image.Image, error)
}

var stdDecoders = map[Format]stdDecoder{
	PNG:  {png.DecodeConfig, png.Decode},
	JPEG: {jpeg.DecodeConfig, jpeg.Decode},
	GIF:  {gif.DecodeConfig, gif.Decode},
	WebP: {xwebp.DecodeConfig, xwebp.Decode},
	BMP:  {bmp.DecodeConfig, bmp.Decode},
	TIFF: {tiff.DecodeConfig, tiff.Decode},
}

// Decode runs the format's decoder adapter over raw bytes and fully
// materializes the image into a canonical Buffer. Dimensions come from
// the codec's own header metadata and are cross-checked against the
// decoded pixel data; a mismatch is reported as corrupt rather than
// trusted either way.
func Decode(f Format, data []byte) (*Buffer, error) {
	switch f {
	case AVIF:
		return decodeAVIF(data)
	case JXL:
		return decodeJXL(data)
	case PGM, PPM:
		return decodePNM(f, data)
	}

	dec, ok := stdDecoders[f]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
	}

	cfg, err := dec.config(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Format: f, Kind: ErrTruncatedHeader, Err: err}
	}

	img, err := dec.full(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, &DecodeError{Format: f, Kind: ErrTruncatedHeader, Err: err}
		}
		return nil, &DecodeError{Format: f, Kind: ErrCorrupt, Err: err}
	}

	return bufferFromImage(f, img, cfg.Width, cfg.Height)
}

func decodeJXL(data []byte) (*Buffer, error) {
	header, err := core.NewJXLDecoder(bytes.NewReader(data), nil).GetImageHeader()
	if err != nil {
		return nil, &DecodeError{Format: JXL, Kind: ErrTruncatedHeader, Err: err}
	}
	size := header.GetSize()

	jxlImage, err := core.NewJXLDecoder(bytes.NewReader(data), nil).Decode()
	if err != nil {
		return nil, &DecodeError{Format: JXL, Kind: ErrCorrupt, Err: err}
	}
	img, err := jxlImage.ToImage()
	if err != nil {
		return nil, &DecodeError{Format: JXL, Kind: ErrCorrupt, Err: err}
	}

	return bufferFromImage(JXL, img, int(size.Width), int(size.Height))
}

// bufferFromImage classifies a decoded image's native channel layout into
// the closed model set and copies the pixels into a canonical buffer.
// Layouts outside the set (16-bit channels, YCbCr paired with alpha) are
// refused instead of being squeezed into the nearest tag.
func bufferFromImage(f Format, img image.Image, headerW, headerH int) (*Buffer, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w != headerW || h != headerH {
		return nil, &DecodeError{Format: f, Kind: ErrCorrupt,
			Err: fmt.Errorf("header reports %dx%d, pixel data is %dx%d", headerW, headerH, w, h)}
	}

	var buf *Buffer
	switch src := img.(type) {
	case *image.Gray:
		buf = NewBuffer(w, h, Gray8)
		copyRows(buf.Pix, src.Pix, src.Stride, bounds, 1)
	case *image.NRGBA:
		buf = NewBuffer(w, h, RGBA8)
		copyRows(buf.Pix, src.Pix, src.Stride, bounds, 4)
	case *image.RGBA:
		// The stdlib and x/image codecs produce *image.RGBA only for
		// alpha-less truecolor sources, so this is native RGB with a
		// constant opaque alpha byte to strip.
		buf = NewBuffer(w, h, RGB8)
		i := 0
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			row := src.Pix[(y-bounds.Min.Y)*src.Stride:]
			for x := 0; x < w; x++ {
				buf.Pix[i] = row[x*4]
				buf.Pix[i+1] = row[x*4+1]
				buf.Pix[i+2] = row[x*4+2]
				i += 3
			}
		}
	case *image.Paletted:
		buf = NewBuffer(w, h, Indexed8)
		copyRows(buf.Pix, src.Pix, src.Stride, bounds, 1)
		buf.Palette = append(buf.Palette, src.Palette...)
	case *image.CMYK:
		buf = NewBuffer(w, h, CMYK8)
		copyRows(buf.Pix, src.Pix, src.Stride, bounds, 4)
	case *image.YCbCr:
		// YCbCrAt resolves chroma subsampling so the buffer is always
		// fully interleaved 4:4:4.
		buf = NewBuffer(w, h, YCbCr8)
		i := 0
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				c := src.YCbCrAt(x, y)
				buf.Pix[i] = c.Y
				buf.Pix[i+1] = c.Cb
				buf.Pix[i+2] = c.Cr
				i += 3
			}
		}
	default:
		return nil, &DecodeError{Format: f, Kind: ErrUnsupportedColorModel,
			Err: fmt.Errorf("%T has no canonical color model", img)}
	}

	if err := buf.Validate(); err != nil {
		return nil, &DecodeError{Format: f, Kind: ErrCorrupt, Err: err}
	}
	return buf, nil
}

// copyRows copies a strided image plane into a tightly packed buffer.
func copyRows(dst, src []byte, stride int, bounds image.Rectangle, pixelBytes int) {
	rowBytes := bounds.Dx() * pixelBytes
	for y := 0; y < bounds.Dy(); y++ {
		copy(dst[y*rowBytes:(y+1)*rowBytes], src[y*stride:y*stride+rowBytes])
	}
}
