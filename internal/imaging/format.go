// Package imaging implements the transcoding core: format registry,
// decoder and encoder adapters, and conversions between color models.
package imaging

import (
	"fmt"
	"strings"
)

// Format is one of the supported codecs. The set is closed and known at
// compile time; new formats are added here, never registered at runtime.
type Format int

const (
	PNG Format = iota
	JPEG
	GIF
	WebP
	BMP
	TIFF
	AVIF
	JXL
	PGM
	PPM
)

// EncodeParams carries the encode-time knobs. Zero values select the
// format defaults from the capability table.
type EncodeParams struct {
	// Quality is the 1-100 lossy quality. Ignored by lossless formats.
	Quality int
	// Lossless switches WebP and AVIF to their lossless modes.
	Lossless bool
}

// Capabilities declares what a format's adapters can do. One immutable
// value per format, held in the registry for the process lifetime.
type Capabilities struct {
	// Decodable lists the color models the decoder can produce.
	Decodable []ColorModel
	// Encodable lists the models the encoder accepts, in conversion
	// priority order. An empty list marks a decode-only format.
	Encodable []ColorModel
	// Defaults are the encode parameters used when the caller sets none.
	Defaults EncodeParams
}

// CanEncode reports whether the encoder accepts model without conversion.
func (c Capabilities) CanEncode(m ColorModel) bool {
	for _, e := range c.Encodable {
		if e == m {
			return true
		}
	}
	return false
}

// CanDecode reports whether the decoder can produce model.
func (c Capabilities) CanDecode(m ColorModel) bool {
	for _, d := range c.Decodable {
		if d == m {
			return true
		}
	}
	return false
}

type formatInfo struct {
	name    string
	mime    string
	aliases []string
	caps    Capabilities
}

// The capability entries mirror what each codec library actually
// produces and accepts; they are not copied from any other table.
// Encodable order fixes the conversion priority in the dispatcher.
var formatTable = map[Format]formatInfo{
	PNG: {
		name: "png",
		mime: "image/png",
		caps: Capabilities{
			Decodable: []ColorModel{Gray8, RGB8, RGBA8, Indexed8},
			Encodable: []ColorModel{RGBA8, RGB8, Gray8, Indexed8},
		},
	},
	JPEG: {
		name:    "jpeg",
		mime:    "image/jpeg",
		aliases: []string{"jpg"},
		caps: Capabilities{
			Decodable: []ColorModel{Gray8, YCbCr8, CMYK8},
			Encodable: []ColorModel{YCbCr8, RGB8, Gray8},
			Defaults:  EncodeParams{Quality: 90},
		},
	},
	GIF: {
		name: "gif",
		mime: "image/gif",
		caps: Capabilities{
			Decodable: []ColorModel{Indexed8},
			Encodable: []ColorModel{Indexed8, RGBA8, RGB8},
		},
	},
	WebP: {
		name: "webp",
		mime: "image/webp",
		caps: Capabilities{
			Decodable: []ColorModel{YCbCr8, RGBA8},
			Encodable: []ColorModel{RGBA8, RGB8, Gray8},
			Defaults:  EncodeParams{Quality: 90},
		},
	},
	BMP: {
		name: "bmp",
		mime: "image/bmp",
		caps: Capabilities{
			Decodable: []ColorModel{Gray8, RGB8, RGBA8, Indexed8},
			Encodable: []ColorModel{RGBA8, RGB8, Gray8, Indexed8},
		},
	},
	TIFF: {
		name:    "tiff",
		mime:    "image/tiff",
		aliases: []string{"tif"},
		caps: Capabilities{
			Decodable: []ColorModel{Gray8, RGB8, RGBA8, Indexed8},
			Encodable: []ColorModel{RGBA8, RGB8, Gray8, Indexed8},
		},
	},
	AVIF: {
		name: "avif",
		mime: "image/avif",
		caps: Capabilities{
			Decodable: []ColorModel{RGB8, RGBA8},
			Encodable: []ColorModel{RGBA8, RGB8},
			Defaults:  EncodeParams{Quality: 90},
		},
	},
	JXL: {
		// Decode-only: no JPEG-XL encoder exists in the Go ecosystem yet.
		name: "jxl",
		mime: "image/jxl",
		caps: Capabilities{
			Decodable: []ColorModel{Gray8, RGB8, RGBA8},
		},
	},
	PGM: {
		name:    "pgm",
		mime:    "image/x-portable-anymap",
		aliases: []string{"x-portable-graymap"},
		caps: Capabilities{
			Decodable: []ColorModel{Gray8},
			Encodable: []ColorModel{Gray8},
		},
	},
	PPM: {
		name:    "ppm",
		mime:    "image/x-portable-anymap",
		aliases: []string{"x-portable-pixmap"},
		caps: Capabilities{
			Decodable: []ColorModel{RGB8},
			Encodable: []ColorModel{RGB8},
		},
	},
}

// formatOrder fixes the iteration order for Formats and the /v1/formats
// listing; map iteration order is not stable.
var formatOrder = []Format{PNG, JPEG, GIF, WebP, BMP, TIFF, AVIF, JXL, PGM, PPM}

var identifierIndex = make(map[string]Format)

func init() {
	for f, info := range formatTable {
		identifierIndex[info.name] = f
		for _, alias := range info.aliases {
			identifierIndex[alias] = f
		}
	}
}

// Resolve maps an identifier to a Format. The identifier may be a MIME
// subtype from an upload content-type or an output-type token; matching
// is case-insensitive and exact, no fuzzy matching.
func Resolve(identifier string) (Format, error) {
	token := strings.ToLower(strings.TrimSpace(identifier))
	if f, ok := identifierIndex[token]; ok {
		return f, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, identifier)
}

func (f Format) String() string {
	if info, ok := formatTable[f]; ok {
		return info.name
	}
	return fmt.Sprintf("format(%d)", int(f))
}

// MIMEType returns the content type served for this format's output.
func (f Format) MIMEType() string {
	return formatTable[f].mime
}

// Capabilities is total for any resolved Format.
func (f Format) Capabilities() Capabilities {
	return formatTable[f].caps
}

// Aliases returns the alternate identifiers that resolve to this format,
// beyond its canonical name.
func (f Format) Aliases() []string {
	info := formatTable[f]
	out := make([]string, len(info.aliases))
	copy(out, info.aliases)
	return out
}

// Formats returns all supported formats in a stable order.
func Formats() []Format {
	out := make([]Format, len(formatOrder))
	copy(out, formatOrder)
	return out
}
