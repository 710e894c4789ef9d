package imaging

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
)

// Binary netpbm support: P5 (PGM, 8-bit grayscale) and P6 (PPM, 8-bit
// RGB). No Go codec in the ecosystem covers these, so the adapters are
// implemented here; the format is a header of ASCII tokens followed by
// raw samples, which maps directly onto Gray8/RGB8 canonical buffers.

func decodePNM(f Format, data []byte) (*Buffer, error) {
	br := bytes.NewReader(data)
	r := bufio.NewReader(br)

	magic, err := pnmToken(r)
	if err != nil {
		return nil, &DecodeError{Format: f, Kind: ErrTruncatedHeader, Err: err}
	}
	var model ColorModel
	switch {
	case f == PGM && magic == "P5":
		model = Gray8
	case f == PPM && magic == "P6":
		model = RGB8
	default:
		return nil, &DecodeError{Format: f, Kind: ErrCorrupt,
			Err: fmt.Errorf("unexpected magic %q", magic)}
	}

	width, err := pnmInt(r)
	if err != nil {
		return nil, &DecodeError{Format: f, Kind: ErrTruncatedHeader, Err: err}
	}
	height, err := pnmInt(r)
	if err != nil {
		return nil, &DecodeError{Format: f, Kind: ErrTruncatedHeader, Err: err}
	}
	maxval, err := pnmInt(r)
	if err != nil {
		return nil, &DecodeError{Format: f, Kind: ErrTruncatedHeader, Err: err}
	}
	if width <= 0 || height <= 0 {
		return nil, &DecodeError{Format: f, Kind: ErrCorrupt,
			Err: fmt.Errorf("invalid dimensions %dx%d", width, height)}
	}
	if maxval <= 0 || maxval > 255 {
		// 16-bit samples have no tag in the model set.
		return nil, &DecodeError{Format: f, Kind: ErrUnsupportedColorModel,
			Err: fmt.Errorf("maxval %d is outside the 8-bit range", maxval)}
	}

	// The raster is raw samples, so the header cannot legitimately claim
	// more pixels than the payload carries. Checking before NewBuffer keeps
	// a tiny upload from driving a huge allocation off declared dimensions;
	// int64 math keeps the product from wrapping.
	need := int64(width) * int64(height) * int64(model.PixelStride())
	if remaining := int64(br.Len() + r.Buffered()); need > remaining {
		return nil, &DecodeError{Format: f, Kind: ErrCorrupt,
			Err: fmt.Errorf("header claims %d raster bytes, payload has %d", need, remaining)}
	}

	buf := NewBuffer(width, height, model)
	if _, err := io.ReadFull(r, buf.Pix); err != nil {
		return nil, &DecodeError{Format: f, Kind: ErrCorrupt,
			Err: fmt.Errorf("short pixel data: %w", err)}
	}
	if maxval != 255 {
		for i, v := range buf.Pix {
			buf.Pix[i] = uint8(int(v) * 255 / maxval)
		}
	}
	return buf, nil
}

func encodePNM(f Format, b *Buffer) ([]byte, error) {
	var magic string
	switch {
	case f == PGM && b.Model == Gray8:
		magic = "P5"
	case f == PPM && b.Model == RGB8:
		magic = "P6"
	default:
		return nil, &EncodeError{Format: f, Kind: ErrUnsupportedColorModel,
			Err: fmt.Errorf("cannot encode %s", b.Model)}
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s\n%d %d\n255\n", magic, b.Width, b.Height)
	buf.Write(b.Pix)
	return buf.Bytes(), nil
}

// pnmToken reads the next whitespace-delimited header token, skipping
// '#' comments.
func pnmToken(r *bufio.Reader) (string, error) {
	var tok []byte
	inComment := false
	for {
		c, err := r.ReadByte()
		if err != nil {
			if len(tok) > 0 && errors.Is(err, io.EOF) {
				return string(tok), nil
			}
			return "", err
		}
		switch {
		case inComment:
			if c == '\n' {
				inComment = false
			}
		case c == '#':
			inComment = true
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			if len(tok) > 0 {
				return string(tok), nil
			}
		default:
			tok = append(tok, c)
		}
	}
}

func pnmInt(r *bufio.Reader) (int, error) {
	tok, err := pnmToken(r)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, c := range []byte(tok) {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("malformed header token %q", tok)
		}
		n = n*10 + int(c-'0')
		if n > 1<<24 {
			return 0, fmt.Errorf("header value %q too large", tok)
		}
	}
	if len(tok) == 0 {
		return 0, fmt.Errorf("empty header token")
	}
	return n, nil
}
