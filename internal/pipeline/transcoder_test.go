package pipeline

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/dunamismax/imagecast/internal/imaging"
)

func pngFixture(t *testing.T, model imaging.ColorModel) []byte {
	t.Helper()
	buf := imaging.NewBuffer(4, 4, model)
	for i := range buf.Pix {
		buf.Pix[i] = byte(i * 3)
	}
	if model == imaging.RGBA8 {
		// Vary the alpha channel so the source genuinely carries one.
		for i := 3; i < len(buf.Pix); i += 4 {
			buf.Pix[i] = byte(100 + i)
		}
	}
	data, err := imaging.Encode(imaging.PNG, buf, imaging.EncodeParams{})
	if err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return data
}

func TestTranscodeRejectsOversizedPayloadBeforeDecode(t *testing.T) {
	tr := NewTranscoder(Config{MaxPayloadBytes: 16})
	decoderCalled := false
	tr.decode = func(f imaging.Format, data []byte) (*imaging.Buffer, error) {
		decoderCalled = true
		return imaging.Decode(f, data)
	}

	_, err := tr.Transcode(context.Background(), Request{
		Payload:    make([]byte, 17),
		InputType:  "png",
		OutputType: "jpeg",
	})
	if !errors.Is(err, imaging.ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
	if decoderCalled {
		t.Fatal("decoder must not run on an oversized payload")
	}
}

func TestTranscodeUnknownIdentifiers(t *testing.T) {
	tr := NewTranscoder(Config{})
	payload := pngFixture(t, imaging.RGB8)

	_, err := tr.Transcode(context.Background(), Request{Payload: payload, InputType: "exr", OutputType: "png"})
	if !errors.Is(err, imaging.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat for input, got %v", err)
	}

	_, err = tr.Transcode(context.Background(), Request{Payload: payload, InputType: "png", OutputType: "heic"})
	if !errors.Is(err, imaging.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat for output, got %v", err)
	}
}

func TestTranscodeRejectsDecodeOnlyOutput(t *testing.T) {
	tr := NewTranscoder(Config{})
	decoderCalled := false
	tr.decode = func(f imaging.Format, data []byte) (*imaging.Buffer, error) {
		decoderCalled = true
		return imaging.Decode(f, data)
	}

	_, err := tr.Transcode(context.Background(), Request{
		Payload:    pngFixture(t, imaging.RGB8),
		InputType:  "png",
		OutputType: "jxl",
	})
	if !errors.Is(err, imaging.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	if decoderCalled {
		t.Fatal("decoder must not run when the output cannot encode")
	}
}

func TestTranscodeNoOpNormalization(t *testing.T) {
	tr := NewTranscoder(Config{})
	result, err := tr.Transcode(context.Background(), Request{
		Payload:    pngFixture(t, imaging.RGB8),
		InputType:  "png",
		OutputType: "png",
	})
	if err != nil {
		t.Fatalf("transcode: %v", err)
	}
	if result.Converted {
		t.Fatal("rgb8 is png-encodable, no conversion expected")
	}
	if result.Model != imaging.RGB8 {
		t.Fatalf("model %s, want rgb8", result.Model)
	}
}

func TestTranscodeGrayPNGToWebPWithoutConversion(t *testing.T) {
	tr := NewTranscoder(Config{})
	result, err := tr.Transcode(context.Background(), Request{
		Payload:    pngFixture(t, imaging.Gray8),
		InputType:  "png",
		OutputType: "webp",
	})
	if err != nil {
		t.Fatalf("transcode: %v", err)
	}
	if result.Converted {
		t.Fatal("gray8 is webp-encodable directly, no conversion expected")
	}
	if result.Model != imaging.Gray8 {
		t.Fatalf("model %s, want gray8", result.Model)
	}
	if result.MIMEType != "image/webp" {
		t.Fatalf("mime type %s, want image/webp", result.MIMEType)
	}
	if !bytes.HasPrefix(result.Data, []byte("RIFF")) {
		t.Fatal("output is not a riff container")
	}
}

func TestTranscodeConvertsAlphaForJPEG(t *testing.T) {
	tr := NewTranscoder(Config{})
	result, err := tr.Transcode(context.Background(), Request{
		Payload:    pngFixture(t, imaging.RGBA8),
		InputType:  "png",
		OutputType: "jpeg",
	})
	if err != nil {
		t.Fatalf("transcode: %v", err)
	}
	if !result.Converted {
		t.Fatal("rgba8 source must be converted for jpeg")
	}
	if result.Model != imaging.RGB8 {
		t.Fatalf("model %s, want rgb8", result.Model)
	}
	if result.MIMEType != "image/jpeg" {
		t.Fatalf("mime %s", result.MIMEType)
	}
	if result.Width != 4 || result.Height != 4 {
		t.Fatalf("dimensions %dx%d", result.Width, result.Height)
	}
}

func TestTranscodeUnsupportedConversionIsDeterministic(t *testing.T) {
	tr := NewTranscoder(Config{})

	// JPEG decodes to ycbcr8, and pgm only encodes gray8 with no rule
	// from ycbcr8, so this pair can never transcode.
	buf := imaging.NewBuffer(4, 4, imaging.RGB8)
	jpegData, err := imaging.Encode(imaging.JPEG, buf, imaging.EncodeParams{})
	if err != nil {
		t.Fatalf("encode fixture: %v", err)
	}

	for i := 0; i < 3; i++ {
		_, err := tr.Transcode(context.Background(), Request{
			Payload:    jpegData,
			InputType:  "jpeg",
			OutputType: "pgm",
		})
		if !errors.Is(err, imaging.ErrUnsupportedConversion) {
			t.Fatalf("attempt %d: expected ErrUnsupportedConversion, got %v", i, err)
		}
	}
}

func TestTranscodeUsesConfiguredParams(t *testing.T) {
	payload := pngFixture(t, imaging.RGB8)

	low := NewTranscoder(Config{Params: map[imaging.Format]imaging.EncodeParams{
		imaging.JPEG: {Quality: 10},
	}})
	high := NewTranscoder(Config{Params: map[imaging.Format]imaging.EncodeParams{
		imaging.JPEG: {Quality: 100},
	}})

	req := Request{Payload: payload, InputType: "png", OutputType: "jpeg"}
	lowResult, err := low.Transcode(context.Background(), req)
	if err != nil {
		t.Fatalf("low quality transcode: %v", err)
	}
	highResult, err := high.Transcode(context.Background(), req)
	if err != nil {
		t.Fatalf("high quality transcode: %v", err)
	}
	if bytes.Equal(lowResult.Data, highResult.Data) {
		t.Fatal("expected quality settings to change the output bytes")
	}
}
