package imaging

import (
	"bytes"
	"errors"
	"testing"
)

func TestPGMRoundTrip(t *testing.T) {
	src := grayBuffer(3, 2)
	data, err := Encode(PGM, src, EncodeParams{})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("P5\n3 2\n255\n")) {
		t.Fatalf("unexpected header: %q", data[:11])
	}

	decoded, err := Decode(PGM, data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Model != Gray8 {
		t.Fatalf("model %s, want gray8", decoded.Model)
	}
	if !bytes.Equal(decoded.Pix, src.Pix) {
		t.Fatal("pixels changed across the round trip")
	}
}

func TestPPMRoundTrip(t *testing.T) {
	src := rgbBuffer(2, 2)
	data, err := Encode(PPM, src, EncodeParams{})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := Decode(PPM, data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Model != RGB8 {
		t.Fatalf("model %s, want rgb8", decoded.Model)
	}
	if !bytes.Equal(decoded.Pix, src.Pix) {
		t.Fatal("pixels changed across the round trip")
	}
}

func TestPNMHeaderComments(t *testing.T) {
	data := []byte("P5 # magic\n# a full comment line\n2 1 # dims\n255\n\x01\x02")
	decoded, err := Decode(PGM, data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(decoded.Pix, []byte{1, 2}) {
		t.Fatalf("pixels %v", decoded.Pix)
	}
}

func TestPNMScalesMaxval(t *testing.T) {
	data := []byte("P5\n2 1\n15\n\x0f\x05")
	decoded, err := Decode(PGM, data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Pix[0] != 255 {
		t.Fatalf("maxval sample scaled to %d, want 255", decoded.Pix[0])
	}
	if decoded.Pix[1] != uint8(5*255/15) {
		t.Fatalf("sample scaled to %d", decoded.Pix[1])
	}
}

func TestPNMRejectsWrongMagic(t *testing.T) {
	_, err := Decode(PGM, []byte("P6\n1 1\n255\n\x00\x00\x00"))
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt for mismatched magic, got %v", err)
	}
}

func TestPNMRejects16BitSamples(t *testing.T) {
	_, err := Decode(PGM, []byte("P5\n1 1\n65535\n\x00\x00"))
	if !errors.Is(err, ErrUnsupportedColorModel) {
		t.Fatalf("expected ErrUnsupportedColorModel, got %v", err)
	}
}

func TestPNMTruncated(t *testing.T) {
	if _, err := Decode(PGM, []byte("P5\n4 4")); !errors.Is(err, ErrTruncatedHeader) {
		t.Fatalf("expected ErrTruncatedHeader, got %v", err)
	}
	if _, err := Decode(PGM, []byte("P5\n2 2\n255\n\x01")); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt for short pixel data, got %v", err)
	}
}

func TestPNMRejectsDimensionsBeyondPayload(t *testing.T) {
	// A handful of header bytes must never drive an allocation sized off
	// the declared dimensions.
	cases := [][]byte{
		[]byte("P6\n16777216 16777216\n255\n"),
		[]byte("P6\n50000 50000\n255\nrgb"),
		[]byte("P5\n1000000 1000000\n255\n\x00"),
	}
	for _, data := range cases {
		f := PPM
		if bytes.HasPrefix(data, []byte("P5")) {
			f = PGM
		}
		if _, err := Decode(f, data); !errors.Is(err, ErrCorrupt) {
			t.Fatalf("header %q: expected ErrCorrupt, got %v", data[:12], err)
		}
	}
}

func TestPNMEncodeRequiresMatchingModel(t *testing.T) {
	_, err := Encode(PGM, rgbBuffer(2, 2), EncodeParams{})
	if !errors.Is(err, ErrUnsupportedColorModel) {
		t.Fatalf("expected ErrUnsupportedColorModel, got %v", err)
	}
}
