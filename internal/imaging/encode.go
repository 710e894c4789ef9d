package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"

	"github.com/chai2010/webp"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// Encode serializes a canonical buffer with the format's encoder adapter.
// The buffer's model must already be in the format's encodable set; the
// dispatcher converts beforehand, encoders never convert on their own.
func Encode(f Format, b *Buffer, params EncodeParams) ([]byte, error) {
	caps := f.Capabilities()
	if len(caps.Encodable) == 0 {
		return nil, fmt.Errorf("%w: %s is decode-only", ErrUnsupportedFormat, f)
	}

	if err := b.Validate(); err != nil {
		if b.Width <= 0 || b.Height <= 0 {
			return nil, &EncodeError{Format: f, Kind: ErrInvalidDimensions, Err: err}
		}
		return nil, &EncodeError{Format: f, Kind: ErrInternal, Err: err}
	}
	if !caps.CanEncode(b.Model) {
		return nil, &EncodeError{Format: f, Kind: ErrUnsupportedColorModel,
			Err: fmt.Errorf("%s encodes %v, got %s", f, caps.Encodable, b.Model)}
	}

	params = withDefaults(params, caps.Defaults)

	switch f {
	case PNG:
		return encodePNG(b)
	case JPEG:
		return encodeJPEG(b, params)
	case GIF:
		return encodeGIF(b)
	case WebP:
		return encodeWebP(b, params)
	case BMP:
		return encodeBMP(b)
	case TIFF:
		return encodeTIFF(b)
	case AVIF:
		return encodeAVIF(b, params)
	case PGM, PPM:
		return encodePNM(f, b)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
	}
}

func withDefaults(params, defaults EncodeParams) EncodeParams {
	if params.Quality <= 0 || params.Quality > 100 {
		params.Quality = defaults.Quality
	}
	return params
}

func encodePNG(b *Buffer) ([]byte, error) {
	img, err := imageFromBuffer(b)
	if err != nil {
		return nil, &EncodeError{Format: PNG, Kind: ErrInternal, Err: err}
	}
	var buf bytes.Buffer
	encoder := png.Encoder{CompressionLevel: png.DefaultCompression}
	if err := encoder.Encode(&buf, img); err != nil {
		return nil, &EncodeError{Format: PNG, Kind: ErrInternal, Err: err}
	}
	return buf.Bytes(), nil
}

func encodeJPEG(b *Buffer, params EncodeParams) ([]byte, error) {
	img, err := imageFromBuffer(b)
	if err != nil {
		return nil, &EncodeError{Format: JPEG, Kind: ErrInternal, Err: err}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: params.Quality}); err != nil {
		return nil, &EncodeError{Format: JPEG, Kind: ErrInternal, Err: err}
	}
	return buf.Bytes(), nil
}

func encodeGIF(b *Buffer) ([]byte, error) {
	img, err := imageFromBuffer(b)
	if err != nil {
		return nil, &EncodeError{Format: GIF, Kind: ErrInternal, Err: err}
	}
	// For non-indexed buffers gif.Encode quantizes with its default
	// palette; for Indexed8 the palette passes through untouched.
	var buf bytes.Buffer
	if err := gif.Encode(&buf, img, nil); err != nil {
		return nil, &EncodeError{Format: GIF, Kind: ErrInternal, Err: err}
	}
	return buf.Bytes(), nil
}

func encodeWebP(b *Buffer, params EncodeParams) ([]byte, error) {
	img, err := imageFromBuffer(b)
	if err != nil {
		return nil, &EncodeError{Format: WebP, Kind: ErrInternal, Err: err}
	}
	var buf bytes.Buffer
	opts := &webp.Options{Lossless: params.Lossless, Quality: float32(params.Quality)}
	if err := webp.Encode(&buf, img, opts); err != nil {
		return nil, &EncodeError{Format: WebP, Kind: ErrInternal, Err: err}
	}
	return buf.Bytes(), nil
}

func encodeBMP(b *Buffer) ([]byte, error) {
	img, err := imageFromBuffer(b)
	if err != nil {
		return nil, &EncodeError{Format: BMP, Kind: ErrInternal, Err: err}
	}
	var buf bytes.Buffer
	if err := bmp.Encode(&buf, img); err != nil {
		return nil, &EncodeError{Format: BMP, Kind: ErrInternal, Err: err}
	}
	return buf.Bytes(), nil
}

func encodeTIFF(b *Buffer) ([]byte, error) {
	img, err := imageFromBuffer(b)
	if err != nil {
		return nil, &EncodeError{Format: TIFF, Kind: ErrInternal, Err: err}
	}
	var buf bytes.Buffer
	opts := &tiff.Options{Compression: tiff.Deflate, Predictor: true}
	if err := tiff.Encode(&buf, img, opts); err != nil {
		return nil, &EncodeError{Format: TIFF, Kind: ErrInternal, Err: err}
	}
	return buf.Bytes(), nil
}

// imageFromBuffer repackages a canonical buffer into the image.Image
// shape the stdlib-style encoders expect. This is a layout change only;
// pixel values and the color model are untouched (RGB8 gains a constant
// opaque alpha byte that the encoders strip again for alpha-less output).
func imageFromBuffer(b *Buffer) (image.Image, error) {
	rect := image.Rect(0, 0, b.Width, b.Height)
	switch b.Model {
	case Gray8:
		img := image.NewGray(rect)
		copy(img.Pix, b.Pix)
		return img, nil
	case RGB8:
		img := image.NewNRGBA(rect)
		n := b.Width * b.Height
		for i := 0; i < n; i++ {
			img.Pix[i*4] = b.Pix[i*3]
			img.Pix[i*4+1] = b.Pix[i*3+1]
			img.Pix[i*4+2] = b.Pix[i*3+2]
			img.Pix[i*4+3] = 0xff
		}
		return img, nil
	case RGBA8:
		img := image.NewNRGBA(rect)
		copy(img.Pix, b.Pix)
		return img, nil
	case Indexed8:
		img := image.NewPaletted(rect, b.Palette)
		copy(img.Pix, b.Pix)
		return img, nil
	case CMYK8:
		img := image.NewCMYK(rect)
		copy(img.Pix, b.Pix)
		return img, nil
	case YCbCr8:
		img := image.NewYCbCr(rect, image.YCbCrSubsampleRatio444)
		n := b.Width * b.Height
		for i := 0; i < n; i++ {
			img.Y[i] = b.Pix[i*3]
			img.Cb[i] = b.Pix[i*3+1]
			img.Cr[i] = b.Pix[i*3+2]
		}
		return img, nil
	default:
		return nil, fmt.Errorf("%s buffers have no image representation", b.Model)
	}
}
