package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "image/jpeg"

	"github.com/dunamismax/imagecast/internal/imaging"
	"github.com/dunamismax/imagecast/internal/pipeline"
	"github.com/dunamismax/imagecast/internal/queue"
	"github.com/dunamismax/imagecast/internal/store"
	"github.com/hibiken/asynq"
)

func TestExtractJobIDFromStartPath(t *testing.T) {
	jobID, err := extractJobIDFromStartPath("/v1/jobs/abc123/start")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if jobID != "abc123" {
		t.Fatalf("expected abc123, got %s", jobID)
	}

	if _, err := extractJobIDFromStartPath("/v1/jobs/abc123"); err == nil {
		t.Fatal("expected error for invalid path")
	}
}

func TestInputTypeHint(t *testing.T) {
	if got := inputTypeHint("image/png", "photo.jpg"); got != "png" {
		t.Fatalf("expected content type to win, got %q", got)
	}
	if got := inputTypeHint("application/octet-stream", "photo.jpg"); got != "jpg" {
		t.Fatalf("expected extension fallback, got %q", got)
	}
	if got := inputTypeHint("", "upload"); got != "" {
		t.Fatalf("expected empty hint, got %q", got)
	}
}

func TestStatusForConvertError(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{imaging.ErrPayloadTooLarge, http.StatusRequestEntityTooLarge},
		{imaging.ErrUnsupportedFormat, http.StatusUnsupportedMediaType},
		{imaging.ErrUnsupportedConversion, http.StatusUnprocessableEntity},
		{&imaging.DecodeError{Format: imaging.PNG, Kind: imaging.ErrCorrupt}, http.StatusBadRequest},
		{&imaging.DecodeError{Format: imaging.PNG, Kind: imaging.ErrTruncatedHeader}, http.StatusBadRequest},
		{&imaging.EncodeError{Format: imaging.JPEG, Kind: imaging.ErrUnsupportedColorModel}, http.StatusUnprocessableEntity},
		{&imaging.EncodeError{Format: imaging.JPEG, Kind: imaging.ErrInternal}, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusForConvertError(tc.err); got != tc.want {
			t.Errorf("statusForConvertError(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

type stubEnqueuer struct {
	payloads []queue.ConvertImagePayload
}

func (s *stubEnqueuer) EnqueueConvertImage(_ context.Context, payload queue.ConvertImagePayload) (*asynq.TaskInfo, error) {
	s.payloads = append(s.payloads, payload)
	return &asynq.TaskInfo{ID: "task-1", Queue: "default", State: asynq.TaskStatePending}, nil
}

func newTestServer(t *testing.T) (*Server, *stubEnqueuer) {
	t.Helper()
	enqueuer := &stubEnqueuer{}
	server := NewServer(
		log.New(bytes.NewBuffer(nil), "[api] ", log.LstdFlags),
		pipeline.NewTranscoder(pipeline.Config{}),
		enqueuer,
		store.NewMemoryJobStore(),
		nil,
		Options{},
	)
	return server, enqueuer
}

func pngPayload(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})
	img.SetNRGBA(1, 1, color.NRGBA{G: 255, A: 128})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func multipartConvertBody(t *testing.T, filename, contentType, outputType string, payload []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(payload); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := writer.WriteField("output_type", outputType); err != nil {
		t.Fatalf("write field: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func TestHandleConvertPNGToJPEG(t *testing.T) {
	server, _ := newTestServer(t)

	body, contentType := multipartConvertBody(t, "in.png", "image/png", "jpeg", pngPayload(t))
	req := httptest.NewRequest(http.MethodPost, "/v1/convert", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "image/jpeg" {
		t.Fatalf("expected image/jpeg, got %s", got)
	}
	if got := rec.Header().Get("X-Image-Model-Converted"); got != "true" {
		t.Fatalf("expected the alpha source to be converted, got converted=%s", got)
	}
	if _, _, err := image.Decode(bytes.NewReader(rec.Body.Bytes())); err != nil {
		t.Fatalf("response is not a decodable image: %v", err)
	}
}

func TestHandleConvertUnknownOutputType(t *testing.T) {
	server, _ := newTestServer(t)

	body, contentType := multipartConvertBody(t, "in.png", "image/png", "exr", pngPayload(t))
	req := httptest.NewRequest(http.MethodPost, "/v1/convert", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleConvertCorruptPayload(t *testing.T) {
	server, _ := newTestServer(t)

	payload := pngPayload(t)[:20]
	body, contentType := multipartConvertBody(t, "in.png", "image/png", "jpeg", payload)
	req := httptest.NewRequest(http.MethodPost, "/v1/convert", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleFormats(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/formats", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Formats []struct {
			Name   string `json:"name"`
			Decode bool   `json:"decode"`
			Encode bool   `json:"encode"`
		} `json:"formats"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Formats) != len(imaging.Formats()) {
		t.Fatalf("expected %d formats, got %d", len(imaging.Formats()), len(resp.Formats))
	}
	for _, f := range resp.Formats {
		if f.Name == "jxl" && f.Encode {
			t.Fatal("jxl must be reported decode-only")
		}
	}
}

func TestHandleCreateJobRejectsDecodeOnlyOutput(t *testing.T) {
	server, _ := newTestServer(t)

	payload := `{"source_type":"local_file","object_key":"/tmp/in.png","output_type":"jxl"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/jobs", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleCreateAndStartLocalJob(t *testing.T) {
	server, enqueuer := newTestServer(t)

	sourcePath := filepath.Join(t.TempDir(), "in.png")
	if err := os.WriteFile(sourcePath, pngPayload(t), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	payload := `{"source_type":"local_file","object_key":"` + sourcePath + `","output_type":"WEBP"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/jobs", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	var created struct {
		JobID      string `json:"job_id"`
		OutputType string `json:"output_type"`
		StartURL   string `json:"start_url"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.OutputType != "webp" {
		t.Fatalf("expected output_type normalized to webp, got %s", created.OutputType)
	}

	startReq := httptest.NewRequest(http.MethodPost, created.StartURL, nil)
	startRec := httptest.NewRecorder()
	server.Handler().ServeHTTP(startRec, startReq)

	if startRec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", startRec.Code, startRec.Body.String())
	}
	if len(enqueuer.payloads) != 1 {
		t.Fatalf("expected 1 enqueued payload, got %d", len(enqueuer.payloads))
	}
	if enqueuer.payloads[0].OutputType != "webp" {
		t.Fatalf("expected enqueued output_type webp, got %s", enqueuer.payloads[0].OutputType)
	}
}
