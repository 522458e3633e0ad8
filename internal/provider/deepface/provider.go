package deepface

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/provider"
)

// Provider implements provider.FaceExtractor using DeepFace API
type Provider struct {
	client *Client
}

// NewProvider creates a new DeepFace provider
func NewProvider(config Config) *Provider {
	return &Provider{
		client: NewClient(config),
	}
}

// Extract returns the face count and the embedding of the largest face
func (p *Provider) Extract(ctx context.Context, image []byte) (*provider.FaceResult, error) {
	if len(image) == 0 {
		return nil, ErrEmptyImage
	}

	resp, err := p.client.Represent(ctx, base64.StdEncoding.EncodeToString(image))
	if err != nil {
		return nil, fmt.Errorf("extract face: %w", err)
	}

	// With enforce_detection off DeepFace reports the whole image as one
	// zero-confidence "face" when it finds nothing.
	results := make([]RepresentResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.FaceConfidence > 0 && len(r.Embedding) > 0 {
			results = append(results, r)
		}
	}

	result := &provider.FaceResult{FaceCount: len(results)}
	if len(results) == 0 {
		return result, nil
	}

	largest := results[0]
	for _, r := range results[1:] {
		if r.FacialArea.Area() > largest.FacialArea.Area() {
			largest = r
		}
	}
	result.Embedding = largest.Embedding

	return result, nil
}

// Ping verifies the DeepFace service is reachable
func (p *Provider) Ping(ctx context.Context) error {
	if err := p.client.Ping(ctx); err != nil {
		return fmt.Errorf("ping deepface: %w", err)
	}
	return nil
}

var _ provider.FaceExtractor = (*Provider)(nil)
