//go:build libheif && cgo

package imaging

import (
	"fmt"
	"image"
	"os"

	"github.com/strukturag/libheif/go/heif"
)

func decodeAVIF(data []byte) (*Buffer, error) {
	ctx, err := heif.NewContext()
	if err != nil {
		return nil, &DecodeError{Format: AVIF, Kind: ErrCorrupt, Err: err}
	}
	if err := ctx.ReadFromMemory(data); err != nil {
		return nil, &DecodeError{Format: AVIF, Kind: ErrTruncatedHeader, Err: err}
	}
	handle, err := ctx.GetPrimaryImageHandle()
	if err != nil {
		return nil, &DecodeError{Format: AVIF, Kind: ErrTruncatedHeader, Err: err}
	}

	width, height := handle.GetWidth(), handle.GetHeight()
	hasAlpha := handle.HasAlphaChannel()

	heifImg, err := handle.DecodeImage(heif.ColorspaceRGB, heif.ChromaInterleavedRGBA, nil)
	if err != nil {
		return nil, &DecodeError{Format: AVIF, Kind: ErrCorrupt, Err: err}
	}
	goImg, err := heifImg.GetImage()
	if err != nil {
		return nil, &DecodeError{Format: AVIF, Kind: ErrCorrupt, Err: err}
	}
	rgba, ok := goImg.(*image.RGBA)
	if !ok {
		return nil, &DecodeError{Format: AVIF, Kind: ErrUnsupportedColorModel,
			Err: fmt.Errorf("%T has no canonical color model", goImg)}
	}
	bounds := rgba.Bounds()
	if bounds.Dx() != width || bounds.Dy() != height {
		return nil, &DecodeError{Format: AVIF, Kind: ErrCorrupt,
			Err: fmt.Errorf("header reports %dx%d, pixel data is %dx%d",
				width, height, bounds.Dx(), bounds.Dy())}
	}

	// libheif hands back straight-alpha samples in an *image.RGBA shell,
	// so the bytes copy over directly. Alpha-less images drop the padding
	// byte and keep the native RGB tag.
	model := RGB8
	if hasAlpha {
		model = RGBA8
	}
	buf := NewBuffer(width, height, model)
	i := 0
	for y := 0; y < height; y++ {
		row := rgba.Pix[y*rgba.Stride:]
		for x := 0; x < width; x++ {
			buf.Pix[i] = row[x*4]
			buf.Pix[i+1] = row[x*4+1]
			buf.Pix[i+2] = row[x*4+2]
			if hasAlpha {
				buf.Pix[i+3] = row[x*4+3]
				i += 4
			} else {
				i += 3
			}
		}
	}
	if err := buf.Validate(); err != nil {
		return nil, &DecodeError{Format: AVIF, Kind: ErrCorrupt, Err: err}
	}
	return buf, nil
}

func encodeAVIF(b *Buffer, params EncodeParams) ([]byte, error) {
	img, err := imageFromBuffer(b)
	if err != nil {
		return nil, &EncodeError{Format: AVIF, Kind: ErrInternal, Err: err}
	}

	lossless := heif.LosslessModeDisabled
	if params.Lossless {
		lossless = heif.LosslessModeEnabled
	}
	ctx, err := heif.EncodeFromImage(img, heif.CompressionAV1, params.Quality, lossless, heif.LoggingLevelNone)
	if err != nil {
		return nil, &EncodeError{Format: AVIF, Kind: ErrInternal, Err: err}
	}

	// The binding only writes to files, so round-trip through a temp file.
	tmp, err := os.CreateTemp("", "imagecast-avif-*.avif")
	if err != nil {
		return nil, &EncodeError{Format: AVIF, Kind: ErrInternal, Err: err}
	}
	name := tmp.Name()
	tmp.Close()
	defer os.Remove(name)

	if err := ctx.WriteToFile(name); err != nil {
		return nil, &EncodeError{Format: AVIF, Kind: ErrInternal, Err: err}
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, &EncodeError{Format: AVIF, Kind: ErrInternal, Err: err}
	}
	return data, nil
}
