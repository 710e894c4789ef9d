package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/dunamismax/imagecast/internal/imaging"

	_ "golang.org/x/image/webp"
)

func TestLocalProcessor_FileInConvertFileOut(t *testing.T) {
	tmp := t.TempDir()
	inputPath := filepath.Join(tmp, "input.png")
	outputDir := filepath.Join(tmp, "out")

	srcBytes := buildTestPNG(t, 24, 12)
	if err := os.WriteFile(inputPath, srcBytes, 0o644); err != nil {
		t.Fatalf("write input image: %v", err)
	}

	processor, err := NewLocalProcessor(outputDir, NewTranscoder(Config{}))
	if err != nil {
		t.Fatalf("new local processor: %v", err)
	}

	result, err := processor.Process(context.Background(), JobRequest{
		JobID:      "job-local-1",
		SourceType: SourceTypeLocalFile,
		ObjectKey:  inputPath,
		OutputType: "webp",
	})
	if err != nil {
		t.Fatalf("process request: %v", err)
	}

	if result.SourceBytes != len(srcBytes) {
		t.Fatalf("source bytes %d, want %d", result.SourceBytes, len(srcBytes))
	}
	if result.Output.Format != "webp" {
		t.Fatalf("output format %s, want webp", result.Output.Format)
	}
	if result.Output.MIMEType != "image/webp" {
		t.Fatalf("output mime %s", result.Output.MIMEType)
	}
	if result.Output.Width != 24 || result.Output.Height != 12 {
		t.Fatalf("output dimensions %dx%d", result.Output.Width, result.Output.Height)
	}

	f, err := os.Open(result.Output.Path)
	if err != nil {
		t.Fatalf("open output %s: %v", result.Output.Path, err)
	}
	defer f.Close()
	img, kind, err := image.Decode(f)
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if kind != "webp" {
		t.Fatalf("output registered as %s, want webp", kind)
	}
	if img.Bounds().Dx() != 24 {
		t.Fatalf("output width %d, want 24", img.Bounds().Dx())
	}
}

func TestLocalProcessor_InputTypeFromExtension(t *testing.T) {
	tmp := t.TempDir()
	inputPath := filepath.Join(tmp, "input.noext")
	if err := os.WriteFile(inputPath, buildTestPNG(t, 8, 8), 0o644); err != nil {
		t.Fatalf("write input image: %v", err)
	}

	processor, err := NewLocalProcessor(filepath.Join(tmp, "out"), NewTranscoder(Config{}))
	if err != nil {
		t.Fatalf("new local processor: %v", err)
	}

	_, err = processor.Process(context.Background(), JobRequest{
		JobID:      "job-hint",
		SourceType: SourceTypeLocalFile,
		ObjectKey:  inputPath,
		OutputType: "png",
	})
	if !errors.Is(err, imaging.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat for unknown extension, got %v", err)
	}
}

func TestLocalProcessor_UnsupportedSourceType(t *testing.T) {
	processor, err := NewLocalProcessor(t.TempDir(), NewTranscoder(Config{}))
	if err != nil {
		t.Fatalf("new local processor: %v", err)
	}

	_, err = processor.Process(context.Background(), JobRequest{
		JobID:      "job-unsupported",
		SourceType: "s3_presigned",
		ObjectKey:  "uploads/job/source.png",
		OutputType: "png",
	})
	if !errors.Is(err, ErrUnsupportedSourceType) {
		t.Fatalf("expected unsupported source_type error, got %v", err)
	}
}

func TestSanitizePathToken(t *testing.T) {
	if got := sanitizePathToken("../etc/passwd"); got != "___etc_passwd" {
		t.Fatalf("sanitized to %q", got)
	}
	if got := sanitizePathToken(""); got != "unknown" {
		t.Fatalf("empty token sanitized to %q", got)
	}
}

func buildTestPNG(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x * 255) / w),
				G: uint8((y * 255) / h),
				B: 140,
				A: 255,
			})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode source png: %v", err)
	}
	return buf.Bytes()
}
