package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dunamismax/imagecast/internal/domain"
	"github.com/dunamismax/imagecast/internal/id"
	"github.com/dunamismax/imagecast/internal/imaging"
	"github.com/dunamismax/imagecast/internal/pipeline"
	"github.com/dunamismax/imagecast/internal/queue"
	"github.com/dunamismax/imagecast/internal/store"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel/trace"
)

type Server struct {
	logger      *log.Logger
	transcoder  *pipeline.Transcoder
	queueClient queueEnqueuer
	jobStore    store.JobStore
	storage     ObjectStorage
	rateLimiter RateLimiter
	metrics     *metrics
	tracer      trace.Tracer

	presignTTL            time.Duration
	maxUploadBytes        int64
	rateLimitUserIDHeader string

	mux *http.ServeMux
}

type queueEnqueuer interface {
	EnqueueConvertImage(ctx context.Context, payload queue.ConvertImagePayload) (*asynq.TaskInfo, error)
}

// ObjectStorage is the slice of the storage client the API needs for
// presigned uploads. A nil value disables them.
type ObjectStorage interface {
	PresignedPutURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error)
	ObjectExists(ctx context.Context, objectKey string) (bool, error)
}

// Options carries the optional server wiring; zero values disable the
// corresponding middleware.
type Options struct {
	PresignTTL            time.Duration
	MaxUploadBytes        int64
	RateLimiter           RateLimiter
	RateLimitUserIDHeader string
	Tracer                trace.Tracer
}

func NewServer(
	logger *log.Logger,
	transcoder *pipeline.Transcoder,
	queueClient queueEnqueuer,
	jobStore store.JobStore,
	storage ObjectStorage,
	opts Options,
) *Server {
	if opts.PresignTTL <= 0 {
		opts.PresignTTL = 15 * time.Minute
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = pipeline.DefaultMaxPayloadBytes
	}
	if opts.RateLimitUserIDHeader == "" {
		opts.RateLimitUserIDHeader = "X-User-ID"
	}
	if storage == nil {
		storage = unavailableObjectStorage{}
	}

	s := &Server{
		logger:                logger,
		transcoder:            transcoder,
		queueClient:           queueClient,
		jobStore:              jobStore,
		storage:               storage,
		rateLimiter:           opts.RateLimiter,
		metrics:               newMetrics(),
		tracer:                opts.Tracer,
		presignTTL:            opts.PresignTTL,
		maxUploadBytes:        opts.MaxUploadBytes,
		rateLimitUserIDHeader: opts.RateLimitUserIDHeader,
		mux:                   http.NewServeMux(),
	}
	s.routes()
	return s
}

type unavailableObjectStorage struct{}

func (unavailableObjectStorage) PresignedPutURL(_ context.Context, _ string, _ time.Duration) (string, error) {
	return "", errors.New("object storage is unavailable")
}

func (unavailableObjectStorage) ObjectExists(_ context.Context, _ string) (bool, error) {
	return false, errors.New("object storage is unavailable")
}

func (s *Server) Handler() http.Handler {
	var handler http.Handler = s.mux
	handler = s.withRateLimit(handler)
	handler = s.withTracing(handler)
	handler = s.metrics.withHTTPMetrics(handler)
	handler = withCORS(handler)
	return handler
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.Handle("GET /metrics", s.metrics.metricsHandler())
	s.mux.HandleFunc("GET /v1/formats", s.handleFormats)
	s.mux.HandleFunc("POST /v1/convert", s.handleConvert)
	s.mux.HandleFunc("POST /v1/jobs", s.handleCreateJob)
	s.mux.HandleFunc("POST /v1/jobs/", s.handleStartJob)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleFormats(w http.ResponseWriter, _ *http.Request) {
	type formatEntry struct {
		Name     string   `json:"name"`
		MIMEType string   `json:"mime_type"`
		Aliases  []string `json:"aliases,omitempty"`
		Decode   bool     `json:"decode"`
		Encode   bool     `json:"encode"`
		Models   []string `json:"encodable_models,omitempty"`
	}

	formats := imaging.Formats()
	entries := make([]formatEntry, 0, len(formats))
	for _, f := range formats {
		caps := f.Capabilities()
		entry := formatEntry{
			Name:     f.String(),
			MIMEType: f.MIMEType(),
			Aliases:  f.Aliases(),
			Decode:   len(caps.Decodable) > 0,
			Encode:   len(caps.Encodable) > 0,
		}
		for _, m := range caps.Encodable {
			entry.Models = append(entry.Models, m.String())
		}
		entries = append(entries, entry)
	}
	writeJSON(w, http.StatusOK, map[string]any{"formats": entries})
}

// handleConvert runs a synchronous conversion: multipart upload in,
// converted image bytes out.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	// Slack on top of the payload cap covers multipart framing; the
	// pipeline enforces the real limit on the decoded part.
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes+1<<20)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		status := http.StatusBadRequest
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			status = http.StatusRequestEntityTooLarge
		}
		writeJSON(w, status, map[string]string{"error": "invalid multipart request: " + err.Error()})
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	outputType := strings.TrimSpace(r.FormValue("output_type"))
	if outputType == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "output_type is required"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file part is required"})
		return
	}
	defer file.Close()

	payload, err := io.ReadAll(file)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "upload exceeds the size limit"})
			return
		}
		s.logger.Printf("read upload failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read upload"})
		return
	}

	inputType := inputTypeHint(header.Header.Get("Content-Type"), header.Filename)
	if inputType == "" {
		writeJSON(w, http.StatusUnsupportedMediaType, map[string]string{
			"error": "cannot determine input type; send a Content-Type or use a file extension",
		})
		return
	}

	result, err := s.transcoder.Transcode(r.Context(), pipeline.Request{
		Payload:    payload,
		InputType:  inputType,
		OutputType: outputType,
	})
	if err != nil {
		status := statusForConvertError(err)
		if status == http.StatusInternalServerError {
			s.logger.Printf("convert failed input=%s output=%s err=%v", inputType, outputType, err)
		}
		s.metrics.conversionsTotal.WithLabelValues(formatLabel(inputType), formatLabel(outputType), "error").Inc()
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	s.metrics.conversionsTotal.WithLabelValues(formatLabel(inputType), result.Format.String(), "ok").Inc()
	s.metrics.conversionBytesTotal.Add(float64(len(result.Data)))

	w.Header().Set("Content-Type", result.MIMEType)
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Data)))
	w.Header().Set("Content-Disposition", `attachment; filename="converted.`+result.Format.String()+`"`)
	w.Header().Set("X-Image-Width", strconv.Itoa(result.Width))
	w.Header().Set("X-Image-Height", strconv.Itoa(result.Height))
	w.Header().Set("X-Image-Color-Model", result.Model.String())
	w.Header().Set("X-Image-Model-Converted", strconv.FormatBool(result.Converted))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

// formatLabel maps a user-supplied identifier onto a canonical format name
// so metric label cardinality stays bounded.
func formatLabel(identifier string) string {
	if f, err := imaging.Resolve(identifier); err == nil {
		return f.String()
	}
	return "invalid"
}

// inputTypeHint prefers the multipart Content-Type subtype and falls back
// to the filename extension. Both resolve through the same registry, so a
// bogus hint surfaces as an unsupported format, not a guess.
func inputTypeHint(contentType, filename string) string {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		if sub, ok := strings.CutPrefix(mediaType, "image/"); ok && sub != "" {
			return sub
		}
	}
	ext := strings.TrimPrefix(filepath.Ext(filename), ".")
	return ext
}

func statusForConvertError(err error) int {
	var encErr *imaging.EncodeError
	var decErr *imaging.DecodeError
	switch {
	case errors.Is(err, imaging.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, imaging.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, imaging.ErrUnsupportedConversion):
		return http.StatusUnprocessableEntity
	case errors.As(err, &encErr):
		if errors.Is(err, imaging.ErrInternal) {
			return http.StatusInternalServerError
		}
		return http.StatusUnprocessableEntity
	case errors.As(err, &decErr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateJobRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	// Reject unknown or decode-only output types at creation time rather
	// than after the upload round trip.
	outFormat, err := imaging.Resolve(req.OutputType)
	if err != nil {
		writeJSON(w, http.StatusUnsupportedMediaType, map[string]string{"error": err.Error()})
		return
	}
	if len(outFormat.Capabilities().Encodable) == 0 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error": fmt.Sprintf("output_type %s is decode-only", outFormat),
		})
		return
	}

	now := time.Now().UTC()
	jobID := id.New()
	sourceType := strings.ToLower(strings.TrimSpace(req.SourceType))
	objectKey := strings.TrimSpace(req.ObjectKey)
	uploadState := "not_required"
	presignedPutURL := ""

	if sourceType == domain.SourceTypeS3Presigned {
		objectKey = fmt.Sprintf("uploads/%s/source", jobID)
		url, err := s.storage.PresignedPutURL(r.Context(), objectKey, s.presignTTL)
		if err != nil {
			s.logger.Printf("generate presigned url failed for job %s: %v", jobID, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to generate upload URL"})
			return
		}
		presignedPutURL = url
		uploadState = "ready"
	}

	job := domain.Job{
		ID:         jobID,
		Status:     domain.JobStatusCreated,
		SourceType: sourceType,
		ObjectKey:  objectKey,
		OutputType: outFormat.String(),
		WebhookURL: req.WebhookURL,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.jobStore.Create(r.Context(), job); err != nil {
		s.logger.Printf("create job failed for job %s: %v", job.ID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create job"})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":      job.ID,
		"status":      job.Status,
		"output_type": job.OutputType,
		"upload": map[string]string{
			"object_key":          job.ObjectKey,
			"presigned_put_url":   presignedPutURL,
			"presigned_url_state": uploadState,
		},
		"start_url": fmt.Sprintf("/v1/jobs/%s/start", job.ID),
	})
}

func (s *Server) handleStartJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := extractJobIDFromStartPath(r.URL.Path)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	job, ok, err := s.jobStore.Get(r.Context(), jobID)
	if err != nil {
		s.logger.Printf("fetch job failed for job %s: %v", jobID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load job"})
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
		return
	}

	if err := s.verifySourceExists(r.Context(), job); err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}

	payload := queue.ConvertImagePayload{
		JobID:       job.ID,
		SourceType:  job.SourceType,
		ObjectKey:   job.ObjectKey,
		OutputType:  job.OutputType,
		WebhookURL:  job.WebhookURL,
		RequestedAt: time.Now().UTC(),
	}

	taskInfo, err := s.queueClient.EnqueueConvertImage(r.Context(), payload)
	if err != nil {
		s.logger.Printf("enqueue failed for job %s: %v", job.ID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to enqueue job"})
		return
	}
	s.metrics.queueEnqueued.WithLabelValues(taskInfo.Queue).Inc()

	if _, err := s.jobStore.UpdateStatus(r.Context(), job.ID, domain.JobStatusQueued); err != nil {
		s.logger.Printf("update status failed for job %s: %v", job.ID, err)
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":      job.ID,
		"status":      domain.JobStatusQueued,
		"queue":       taskInfo.Queue,
		"task_id":     taskInfo.ID,
		"state":       taskInfo.State.String(),
		"enqueued_at": taskInfo.NextProcessAt,
	})
}

func (s *Server) verifySourceExists(ctx context.Context, job domain.Job) error {
	switch job.SourceType {
	case domain.SourceTypeLocalFile:
		if _, err := os.Stat(job.ObjectKey); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("source object is missing: %s", job.ObjectKey)
			}
			return fmt.Errorf("source object check failed: %w", err)
		}
		return nil
	default:
		exists, err := s.storage.ObjectExists(ctx, job.ObjectKey)
		if err != nil {
			return fmt.Errorf("source object check failed: %w", err)
		}
		if !exists {
			return fmt.Errorf("source object is missing: %s", job.ObjectKey)
		}
		return nil
	}
}

func extractJobIDFromStartPath(path string) (string, error) {
	trimmed := strings.TrimPrefix(path, "/v1/jobs/")
	parts := strings.Split(strings.Trim(trimmed, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "start" {
		return "", errors.New("expected path format /v1/jobs/{id}/start")
	}
	return parts[0], nil
}

func decodeJSON(r *http.Request, into any) error {
	const maxBodyBytes = 1 << 20
	limited := io.LimitReader(r.Body, maxBodyBytes)
	decoder := json.NewDecoder(limited)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(into); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return errors.New("invalid JSON body: multiple JSON values are not allowed")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
