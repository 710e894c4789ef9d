package imaging

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFormat is returned when an identifier does not resolve
	// to a format in the registry, or when a decode-only format is
	// requested as the output.
	ErrUnsupportedFormat = errors.New("unsupported image format")

	// ErrPayloadTooLarge is returned before any decoder runs when the
	// input exceeds the configured upload cap.
	ErrPayloadTooLarge = errors.New("image payload exceeds the upload limit")

	// ErrUnsupportedConversion is returned when no conversion rule leads
	// from the decoded color model to a model the target format encodes.
	ErrUnsupportedConversion = errors.New("no conversion path between color models")
)

// Decode failure kinds.
var (
	ErrCorrupt         = errors.New("corrupt image data")
	ErrTruncatedHeader = errors.New("truncated image header")
)

// ErrUnsupportedColorModel is shared by decode failures (the codec's
// native layout has no canonical tag) and encode failures (the buffer's
// model is outside the format's encodable set).
var ErrUnsupportedColorModel = errors.New("unsupported color model")

// Encode failure kinds.
var (
	ErrInvalidDimensions = errors.New("invalid image dimensions")
	ErrInternal          = errors.New("internal codec error")
)

// DecodeError carries the failing format and a kind sentinel so callers
// can branch with errors.Is without string matching.
type DecodeError struct {
	Format Format
	Kind   error
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode %s: %v: %v", e.Format, e.Kind, e.Err)
	}
	return fmt.Sprintf("decode %s: %v", e.Format, e.Kind)
}

func (e *DecodeError) Is(target error) bool { return target == e.Kind }

func (e *DecodeError) Unwrap() error { return e.Err }

// EncodeError mirrors DecodeError for the encode side.
type EncodeError struct {
	Format Format
	Kind   error
	Err    error
}

func (e *EncodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("encode %s: %v: %v", e.Format, e.Kind, e.Err)
	}
	return fmt.Sprintf("encode %s: %v", e.Format, e.Kind)
}

func (e *EncodeError) Is(target error) bool { return target == e.Kind }

func (e *EncodeError) Unwrap() error { return e.Err }
