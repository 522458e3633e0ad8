package mock

import (
	"context"
	"crypto/sha256"
	"math"

	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/domain"
	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/provider"
)

const embeddingDimension = 512

// minImageSize rejects obviously truncated payloads
const minImageSize = 100

// Provider implements provider.ObjectDetector and provider.FaceExtractor for
// development without model services. Every image holds one person with one face.
type Provider struct{}

// New creates a new mock Provider
func New() *Provider {
	return &Provider{}
}

// Detect reports a single person covering most of the frame
func (p *Provider) Detect(ctx context.Context, image []byte) ([]provider.Detection, error) {
	if len(image) < minImageSize {
		return nil, domain.ErrInvalidImage
	}

	return []provider.Detection{
		{
			Label: "Person",
			BoundingBox: provider.BoundingBox{
				X:      0.1,
				Y:      0.1,
				Width:  0.8,
				Height: 0.8,
			},
			Confidence: 0.99,
		},
	}, nil
}

// Extract returns one face with an embedding derived from the image hash, so the
// same bytes always produce the same vector
func (p *Provider) Extract(ctx context.Context, image []byte) (*provider.FaceResult, error) {
	if len(image) < minImageSize {
		return nil, domain.ErrInvalidImage
	}

	return &provider.FaceResult{
		FaceCount: 1,
		Embedding: generateEmbedding(image),
	}, nil
}

// generateEmbedding builds a unit vector from the sha256 of the image
func generateEmbedding(image []byte) []float64 {
	hash := sha256.Sum256(image)
	embedding := make([]float64, embeddingDimension)
	hashLen := len(hash)

	for i := 0; i < embeddingDimension; i++ {
		idx := i % hashLen
		//nolint:gosec // idx is always < hashLen due to modulo operation
		embedding[i] = (float64(hash[idx])/255.0)*2 - 1
	}

	norm := 0.0
	for _, v := range embedding {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	for i := range embedding {
		embedding[i] /= norm
	}

	return embedding
}

var (
	_ provider.ObjectDetector = (*Provider)(nil)
	_ provider.FaceExtractor  = (*Provider)(nil)
)
