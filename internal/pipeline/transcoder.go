// Package pipeline orchestrates a single transcoding request: identify
// both formats, decode, normalize the color model when the target cannot
// encode the decoded one, and re-encode.
package pipeline

import (
	"context"
	"fmt"

	"github.com/dunamismax/imagecast/internal/imaging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultMaxPayloadBytes caps uploads at 25 MiB unless configured.
const DefaultMaxPayloadBytes = 25 << 20

type Request struct {
	Payload []byte
	// InputType is the MIME subtype of the upload ("png", "jpeg", ...).
	InputType string
	// OutputType is the case-insensitive requested format token.
	OutputType string
}

type Result struct {
	Data      []byte
	MIMEType  string
	Format    imaging.Format
	Width     int
	Height    int
	Model     imaging.ColorModel
	Converted bool
}

type Config struct {
	MaxPayloadBytes int64
	// Params overrides per-format encode defaults; usually built from
	// the process configuration.
	Params map[imaging.Format]imaging.EncodeParams
}

type Transcoder struct {
	maxPayload int64
	params     map[imaging.Format]imaging.EncodeParams
	tracer     trace.Tracer

	// decode is swapped out in tests to observe adapter invocations.
	decode func(imaging.Format, []byte) (*imaging.Buffer, error)
}

func NewTranscoder(cfg Config) *Transcoder {
	maxPayload := cfg.MaxPayloadBytes
	if maxPayload <= 0 {
		maxPayload = DefaultMaxPayloadBytes
	}
	return &Transcoder{
		maxPayload: maxPayload,
		params:     cfg.Params,
		tracer:     otel.Tracer("imagecast/pipeline"),
		decode:     imaging.Decode,
	}
}

// Transcode runs the pipeline once, strictly linearly: any stage failure
// is terminal for the request, nothing is retried, and no fallback output
// format is ever substituted. The pipeline owns its buffer exclusively;
// nothing is shared across requests except the read-only registry.
func (t *Transcoder) Transcode(ctx context.Context, req Request) (Result, error) {
	_, span := t.tracer.Start(ctx, "pipeline.transcode")
	defer span.End()

	// The size cap is the only admission control; oversized payloads are
	// rejected before any decoder touches the bytes.
	if int64(len(req.Payload)) > t.maxPayload {
		return Result{}, t.reject(span, fmt.Errorf("%w: %d bytes, limit is %d",
			imaging.ErrPayloadTooLarge, len(req.Payload), t.maxPayload))
	}

	in, err := imaging.Resolve(req.InputType)
	if err != nil {
		return Result{}, t.reject(span, fmt.Errorf("input type: %w", err))
	}
	out, err := imaging.Resolve(req.OutputType)
	if err != nil {
		return Result{}, t.reject(span, fmt.Errorf("output type: %w", err))
	}
	span.SetAttributes(
		attribute.String("image.input_format", in.String()),
		attribute.String("image.output_format", out.String()),
		attribute.Int("image.payload_bytes", len(req.Payload)),
	)

	caps := out.Capabilities()
	if len(caps.Encodable) == 0 {
		return Result{}, t.reject(span, fmt.Errorf("output type: %w: %s is decode-only",
			imaging.ErrUnsupportedFormat, out))
	}

	buf, err := t.decode(in, req.Payload)
	if err != nil {
		return Result{}, t.reject(span, err)
	}

	converted := false
	if !caps.CanEncode(buf.Model) {
		target, ok := encodeTarget(buf.Model, caps.Encodable)
		if !ok {
			return Result{}, t.reject(span, fmt.Errorf("%w: %s decoded as %s, %s encodes %s",
				imaging.ErrUnsupportedConversion, in, buf.Model, out, modelList(caps.Encodable)))
		}
		buf, err = imaging.Convert(buf, target)
		if err != nil {
			return Result{}, t.reject(span, err)
		}
		converted = true
	}

	data, err := imaging.Encode(out, buf, t.params[out])
	if err != nil {
		return Result{}, t.reject(span, err)
	}

	span.SetAttributes(
		attribute.String("image.color_model", buf.Model.String()),
		attribute.Bool("image.model_converted", converted),
	)
	span.SetStatus(codes.Ok, "transcoded")

	return Result{
		Data:      data,
		MIMEType:  out.MIMEType(),
		Format:    out,
		Width:     buf.Width,
		Height:    buf.Height,
		Model:     buf.Model,
		Converted: converted,
	}, nil
}

func (t *Transcoder) reject(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, "rejected")
	return err
}

// encodeTarget picks the first model in the format's declared encodable
// order that has a conversion rule from the decoded model. The order is
// fixed by the capability table, not by map iteration.
func encodeTarget(from imaging.ColorModel, encodable []imaging.ColorModel) (imaging.ColorModel, bool) {
	for _, to := range encodable {
		if imaging.CanConvert(from, to) {
			return to, true
		}
	}
	return 0, false
}

func modelList(models []imaging.ColorModel) string {
	s := ""
	for i, m := range models {
		if i > 0 {
			s += ", "
		}
		s += m.String()
	}
	return s
}
