package config

import (
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/dunamismax/imagecast/internal/imaging"
	"github.com/hibiken/asynq"
)

type Config struct {
	API       APIConfig
	Convert   ConvertConfig
	Queue     QueueConfig
	Worker    WorkerConfig
	Storage   StorageConfig
	Database  DatabaseConfig
	RateLimit RateLimitConfig
	Webhook   WebhookConfig
	Trace     TraceConfig
}

type APIConfig struct {
	Addr       string
	PresignTTL time.Duration
}

// ConvertConfig surfaces the encode-time knobs that used to be inline
// constants in the original converter. Defaults favor quality over size.
type ConvertConfig struct {
	MaxUploadBytes int64
	JPEGQuality    int
	WebPQuality    int
	WebPLossless   bool
	AVIFQuality    int
	AVIFLossless   bool
}

// EncodeParams maps the configured knobs onto per-format encoder
// parameters for the pipeline.
func (c ConvertConfig) EncodeParams() map[imaging.Format]imaging.EncodeParams {
	return map[imaging.Format]imaging.EncodeParams{
		imaging.JPEG: {Quality: c.JPEGQuality},
		imaging.WebP: {Quality: c.WebPQuality, Lossless: c.WebPLossless},
		imaging.AVIF: {Quality: c.AVIFQuality, Lossless: c.AVIFLossless},
	}
}

type QueueConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Name          string
}

func (q QueueConfig) RedisClientOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     q.RedisAddr,
		Password: q.RedisPassword,
		DB:       q.RedisDB,
	}
}

type WorkerConfig struct {
	Concurrency    int
	MaxActiveJobs  int
	LocalOutputDir string
	MetricsAddr    string
}

type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type DatabaseConfig struct {
	DSN string
}

type RateLimitConfig struct {
	Enabled  bool
	Capacity int
	Window   time.Duration
}

type WebhookConfig struct {
	SigningSecret string
}

type TraceConfig struct {
	Exporter     string
	OTLPEndpoint string
	OTLPInsecure bool
}

func Load() Config {
	defaultWorkerSlots := max(1, runtime.NumCPU()/2)

	return Config{
		API: APIConfig{
			Addr:       env("IMAGECAST_API_ADDR", ":8080"),
			PresignTTL: envDuration("IMAGECAST_PRESIGN_TTL", 15*time.Minute),
		},
		Convert: ConvertConfig{
			MaxUploadBytes: envInt64("IMAGECAST_MAX_UPLOAD_BYTES", 25<<20),
			JPEGQuality:    envInt("IMAGECAST_JPEG_QUALITY", 90),
			WebPQuality:    envInt("IMAGECAST_WEBP_QUALITY", 90),
			WebPLossless:   envBool("IMAGECAST_WEBP_LOSSLESS", false),
			AVIFQuality:    envInt("IMAGECAST_AVIF_QUALITY", 90),
			AVIFLossless:   envBool("IMAGECAST_AVIF_LOSSLESS", false),
		},
		Queue: QueueConfig{
			RedisAddr:     env("REDIS_ADDR", "localhost:6379"),
			RedisPassword: env("REDIS_PASSWORD", ""),
			RedisDB:       envInt("REDIS_DB", 0),
			Name:          env("ASYNC_QUEUE", "default"),
		},
		Worker: WorkerConfig{
			Concurrency:    envInt("WORKER_CONCURRENCY", max(2, runtime.NumCPU())),
			MaxActiveJobs:  envInt("WORKER_MAX_ACTIVE_JOBS", defaultWorkerSlots),
			LocalOutputDir: env("WORKER_LOCAL_OUTPUT_DIR", "./.imagecast-output"),
			MetricsAddr:    env("WORKER_METRICS_ADDR", ":9090"),
		},
		Storage: StorageConfig{
			Endpoint:  env("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: env("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey: env("MINIO_SECRET_KEY", "minioadmin"),
			Bucket:    env("MINIO_BUCKET", "imagecast-jobs"),
			UseSSL:    envBool("MINIO_USE_SSL", false),
		},
		Database: DatabaseConfig{
			DSN: env("POSTGRES_DSN", ""),
		},
		RateLimit: RateLimitConfig{
			Enabled:  envBool("IMAGECAST_RATE_LIMIT_ENABLED", false),
			Capacity: envInt("IMAGECAST_RATE_LIMIT_CAPACITY", 60),
			Window:   envDuration("IMAGECAST_RATE_LIMIT_WINDOW", time.Minute),
		},
		Webhook: WebhookConfig{
			SigningSecret: env("IMAGECAST_WEBHOOK_SECRET", ""),
		},
		Trace: TraceConfig{
			Exporter:     env("IMAGECAST_TRACE_EXPORTER", "none"),
			OTLPEndpoint: env("IMAGECAST_TRACE_OTLP_ENDPOINT", ""),
			OTLPInsecure: envBool("IMAGECAST_TRACE_OTLP_INSECURE", false),
		},
	}
}

func env(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func envInt(key string, fallback int) int {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envInt64(key string, fallback int64) int64 {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
