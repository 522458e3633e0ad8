package face

import (
	"context"
	"fmt"

	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/config"
	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/provider"
	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/provider/deepface"
	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/provider/mock"
	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/provider/rekognition"
)

// ProviderType defines supported detector and extractor implementations
type ProviderType string

const (
	// ProviderTypeDeepFace extracts embeddings through a DeepFace HTTP service
	ProviderTypeDeepFace ProviderType = "deepface"
	// ProviderTypeRekognition detects people with AWS Rekognition labels
	ProviderTypeRekognition ProviderType = "rekognition"
	// ProviderTypeFrame treats the whole frame as one person region
	ProviderTypeFrame ProviderType = "frame"
	// ProviderTypeMock is deterministic and needs no external service
	ProviderTypeMock ProviderType = "mock"
)

// NewDetector creates an ObjectDetector based on configuration
//
// Environment variables:
//   - DETECTOR_TYPE: "rekognition", "frame" or "mock" (default: "frame")
//   - AWS_REGION: AWS region for Rekognition (default: "us-east-1")
//   - REKOGNITION_MIN_CONFIDENCE: minimum label confidence (default: 50)
//   - AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY: via AWS SDK credential chain
func NewDetector(ctx context.Context, cfg *config.Config) (provider.ObjectDetector, error) {
	switch ProviderType(cfg.DetectorType) {
	case ProviderTypeRekognition:
		rekogConfig := rekognition.DefaultConfig()
		rekogConfig.Region = cfg.AWSRegion
		if cfg.MinConfidence > 0 {
			rekogConfig.MinConfidence = cfg.MinConfidence
		}

		prov, err := rekognition.NewProvider(ctx, rekogConfig)
		if err != nil {
			return nil, fmt.Errorf("create rekognition detector: %w", err)
		}
		return prov, nil

	case ProviderTypeFrame, "":
		return provider.WholeFrame{}, nil

	case ProviderTypeMock:
		return mock.New(), nil

	default:
		return nil, fmt.Errorf("unknown detector type: %s (supported: %s, %s, %s)",
			cfg.DetectorType, ProviderTypeRekognition, ProviderTypeFrame, ProviderTypeMock)
	}
}

// NewExtractor creates a FaceExtractor based on configuration
//
// Environment variables:
//   - EXTRACTOR_TYPE: "deepface" or "mock" (default: "deepface")
//   - DEEPFACE_URL: DeepFace API URL (default: "http://localhost:5005")
//   - DEEPFACE_MODEL: embedding model name (default: "ArcFace")
func NewExtractor(cfg *config.Config) (provider.FaceExtractor, error) {
	switch ProviderType(cfg.ExtractorType) {
	case ProviderTypeDeepFace, "":
		return createDeepFaceProvider(cfg), nil

	case ProviderTypeMock:
		return mock.New(), nil

	default:
		return nil, fmt.Errorf("unknown extractor type: %s (supported: %s, %s)",
			cfg.ExtractorType, ProviderTypeDeepFace, ProviderTypeMock)
	}
}

// createDeepFaceProvider creates a DeepFace provider, falling back to the
// client defaults for anything left unset
func createDeepFaceProvider(cfg *config.Config) *deepface.Provider {
	deepfaceConfig := deepface.DefaultConfig()

	if cfg.DeepFaceURL != "" {
		deepfaceConfig.BaseURL = cfg.DeepFaceURL
	}
	if cfg.DeepFaceModel != "" {
		deepfaceConfig.Model = cfg.DeepFaceModel
	}
	if cfg.DeepFaceTimeout > 0 {
		deepfaceConfig.Timeout = cfg.DeepFaceTimeout
	}

	return deepface.NewProvider(deepfaceConfig)
}

// ModelName keys cached embeddings by the model that produced them
func ModelName(cfg *config.Config) string {
	if ProviderType(cfg.ExtractorType) == ProviderTypeMock {
		return string(ProviderTypeMock)
	}
	if cfg.DeepFaceModel == "" {
		return deepface.DefaultConfig().Model
	}
	return cfg.DeepFaceModel
}
