package domain

import "time"

// UsageLog is one accounting row per completed conversion. BytesSaved is
// the source-minus-output delta, clamped at zero when the converted file
// grows.
type UsageLog struct {
	UserID          string
	JobID           string
	PixelsProcessed int64
	BytesSaved      int64
	ComputeTimeMS   int64
	CreatedAt       time.Time
}
