package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	JobStatusCreated    = "created"
	JobStatusQueued     = "queued"
	JobStatusProcessing = "processing"
	JobStatusSucceeded  = "succeeded"
	JobStatusFailed     = "failed"

	SourceTypeLocalFile   = "local_file"
	SourceTypeS3Presigned = "s3_presigned"
)

// CreateJobRequest asks for one asynchronous conversion of a stored
// source object into OutputType.
type CreateJobRequest struct {
	SourceType string `json:"source_type"`
	ObjectKey  string `json:"object_key,omitempty"`
	OutputType string `json:"output_type"`
	WebhookURL string `json:"webhook_url,omitempty"`
}

type Job struct {
	ID         string
	Status     string
	UserID     string
	SourceType string
	ObjectKey  string
	OutputType string
	WebhookURL string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (r CreateJobRequest) Validate() error {
	sourceType := strings.ToLower(strings.TrimSpace(r.SourceType))
	if sourceType == "" {
		return errors.New("source_type is required")
	}
	if sourceType != SourceTypeLocalFile && sourceType != SourceTypeS3Presigned {
		return fmt.Errorf("unsupported source_type: %s", r.SourceType)
	}
	if sourceType == SourceTypeLocalFile && strings.TrimSpace(r.ObjectKey) == "" {
		return errors.New("object_key is required for source_type=local_file")
	}
	if strings.TrimSpace(r.OutputType) == "" {
		return errors.New("output_type is required")
	}
	return nil
}
