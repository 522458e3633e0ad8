package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Server
	Port        int    `envconfig:"PORT" default:"3000"`
	Environment string `envconfig:"ENV" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL"`

	// Database
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// Providers
	DetectorType    string        `envconfig:"DETECTOR_TYPE" default:"frame"`
	ExtractorType   string        `envconfig:"EXTRACTOR_TYPE" default:"deepface"`
	DeepFaceURL     string        `envconfig:"DEEPFACE_URL" default:"http://localhost:5005"`
	DeepFaceModel   string        `envconfig:"DEEPFACE_MODEL" default:"ArcFace"`
	DeepFaceTimeout time.Duration `envconfig:"DEEPFACE_TIMEOUT" default:"30s"`
	AWSRegion       string        `envconfig:"AWS_REGION" default:"us-east-1"`
	MinConfidence   float32       `envconfig:"REKOGNITION_MIN_CONFIDENCE" default:"50"`

	// Matching
	DetectionInterval     int     `envconfig:"DETECTION_INTERVAL" default:"5"`
	SimilarityThreshold   float64 `envconfig:"SIMILARITY_THRESHOLD" default:"0.5"`
	VerificationThreshold float64 `envconfig:"VERIFICATION_THRESHOLD" default:"0.6"`
	DuplicateThreshold    float64 `envconfig:"DUPLICATE_THRESHOLD" default:"0.7"`

	// Cameras
	Cameras           Cameras       `envconfig:"CAMERAS" default:"default=0"`
	CaptureRetryDelay time.Duration `envconfig:"CAPTURE_RETRY_DELAY" default:"1s"`
	SnapshotMaxSize   int           `envconfig:"SNAPSHOT_MAX_SIZE" default:"320"`
	StreamInterval    time.Duration `envconfig:"STREAM_INTERVAL" default:"100ms"`

	// Notifications
	NotifyURL       string        `envconfig:"NOTIFY_URL" default:"http://localhost:3000/api/report_match"`
	NotifySecret    string        `envconfig:"NOTIFY_SECRET"`
	NotifyTimeout   time.Duration `envconfig:"NOTIFY_TIMEOUT" default:"3s"`
	NotifyQueueSize int           `envconfig:"NOTIFY_QUEUE_SIZE" default:"64"`
	NotifyWorkers   int           `envconfig:"NOTIFY_WORKERS" default:"2"`

	// Registry sync
	ResyncInterval time.Duration `envconfig:"RESYNC_INTERVAL" default:"0"`

	// Rate limiting for the verification endpoints, per client IP
	VerifyRateLimit int `envconfig:"VERIFY_RATE_LIMIT" default:"30"`
}

// CameraConfig names one capture device. Device is either a numeric
// index or a stream URL understood by the capture backend.
type CameraConfig struct {
	Name   string
	Device string
}

// Cameras decodes "name=device" pairs separated by commas,
// e.g. "entrance=0,lobby=rtsp://10.0.0.5/stream".
type Cameras []CameraConfig

// Decode implements envconfig.Decoder
func (c *Cameras) Decode(value string) error {
	var cameras Cameras
	seen := make(map[string]bool)

	for _, pair := range strings.Split(value, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		name, device, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		device = strings.TrimSpace(device)
		if !ok || name == "" || device == "" {
			return fmt.Errorf("invalid camera %q: want name=device", pair)
		}
		if seen[name] {
			return fmt.Errorf("duplicate camera name %q", name)
		}
		seen[name] = true

		cameras = append(cameras, CameraConfig{Name: name, Device: device})
	}

	*c = cameras
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DetectionInterval < 1 {
		return fmt.Errorf("DETECTION_INTERVAL must be at least 1, got %d", c.DetectionInterval)
	}
	for name, v := range map[string]float64{
		"SIMILARITY_THRESHOLD":   c.SimilarityThreshold,
		"VERIFICATION_THRESHOLD": c.VerificationThreshold,
		"DUPLICATE_THRESHOLD":    c.DuplicateThreshold,
	} {
		if v < -1 || v > 1 {
			return fmt.Errorf("%s must be within [-1, 1], got %g", name, v)
		}
	}
	if c.NotifyQueueSize < 1 || c.NotifyWorkers < 1 {
		return fmt.Errorf("NOTIFY_QUEUE_SIZE and NOTIFY_WORKERS must be positive")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
