package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dunamismax/imagecast/internal/imaging"
)

const SourceTypeLocalFile = "local_file"

var ErrUnsupportedSourceType = errors.New("unsupported source_type")

// JobRequest is one queued conversion: fetch the source object, transcode
// it to the requested output type, and emit the converted object.
type JobRequest struct {
	JobID      string
	SourceType string
	ObjectKey  string
	OutputType string
}

type Output struct {
	Format   string
	MIMEType string
	Path     string
	Bytes    int
	Width    int
	Height   int
}

type JobResult struct {
	SourceBytes int
	Output      Output
}

type Fetcher interface {
	Fetch(ctx context.Context, req JobRequest) ([]byte, error)
}

type Emitter interface {
	Emit(ctx context.Context, req JobRequest, res Result) (Output, error)
}

type Processor struct {
	fetcher    Fetcher
	transcoder *Transcoder
	emitter    Emitter
}

func NewLocalProcessor(outputDir string, transcoder *Transcoder) (*Processor, error) {
	if transcoder == nil {
		return nil, errors.New("transcoder is required")
	}
	return &Processor{
		fetcher:    LocalFileFetcher{},
		transcoder: transcoder,
		emitter:    LocalFileEmitter{OutputDir: outputDir},
	}, nil
}

func NewObjectStoreProcessor(fetcher Fetcher, emitter Emitter, transcoder *Transcoder) (*Processor, error) {
	if transcoder == nil {
		return nil, errors.New("transcoder is required")
	}
	return &Processor{
		fetcher:    fetcher,
		transcoder: transcoder,
		emitter:    emitter,
	}, nil
}

func (p *Processor) Process(ctx context.Context, req JobRequest) (JobResult, error) {
	if strings.TrimSpace(req.JobID) == "" {
		return JobResult{}, errors.New("job_id is required")
	}
	if strings.TrimSpace(req.OutputType) == "" {
		return JobResult{}, errors.New("output_type is required")
	}

	source, err := p.fetcher.Fetch(ctx, req)
	if err != nil {
		return JobResult{}, fmt.Errorf("fetch stage: %w", err)
	}

	inputType, err := typeHintFromKey(req.ObjectKey)
	if err != nil {
		return JobResult{}, err
	}

	result, err := p.transcoder.Transcode(ctx, Request{
		Payload:    source,
		InputType:  inputType,
		OutputType: req.OutputType,
	})
	if err != nil {
		return JobResult{}, fmt.Errorf("transcode stage: %w", err)
	}

	output, err := p.emitter.Emit(ctx, req, result)
	if err != nil {
		return JobResult{}, fmt.Errorf("emit stage: %w", err)
	}

	return JobResult{SourceBytes: len(source), Output: output}, nil
}

// typeHintFromKey derives the input type from the object key's extension.
// Queued sources carry no upload content-type, so the extension stands in
// for the MIME subtype and resolves through the same registry.
func typeHintFromKey(key string) (string, error) {
	ext := strings.TrimPrefix(filepath.Ext(key), ".")
	if ext == "" {
		return "", fmt.Errorf("input type: %w: object key %q has no extension",
			imaging.ErrUnsupportedFormat, key)
	}
	return ext, nil
}

type LocalFileFetcher struct{}

func (LocalFileFetcher) Fetch(ctx context.Context, req JobRequest) ([]byte, error) {
	if !strings.EqualFold(req.SourceType, SourceTypeLocalFile) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSourceType, req.SourceType)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	data, err := os.ReadFile(req.ObjectKey)
	if err != nil {
		return nil, fmt.Errorf("read input file %s: %w", req.ObjectKey, err)
	}
	return data, nil
}

type LocalFileEmitter struct {
	OutputDir string
}

func (e LocalFileEmitter) Emit(_ context.Context, req JobRequest, res Result) (Output, error) {
	if strings.TrimSpace(e.OutputDir) == "" {
		return Output{}, errors.New("output directory is required")
	}

	jobDir := filepath.Join(e.OutputDir, sanitizePathToken(req.JobID))
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return Output{}, fmt.Errorf("create output dir: %w", err)
	}

	fullPath := filepath.Join(jobDir, "converted."+res.Format.String())
	if err := os.WriteFile(fullPath, res.Data, 0o644); err != nil {
		return Output{}, fmt.Errorf("write output file: %w", err)
	}

	return Output{
		Format:   res.Format.String(),
		MIMEType: res.MIMEType,
		Path:     fullPath,
		Bytes:    len(res.Data),
		Width:    res.Width,
		Height:   res.Height,
	}, nil
}

func sanitizePathToken(in string) string {
	in = strings.TrimSpace(in)
	if in == "" {
		return "unknown"
	}

	var b strings.Builder
	b.Grow(len(in))
	for _, r := range in {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
