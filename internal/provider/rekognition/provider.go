package rekognition

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"

	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/provider"
)

const (
	// maxImageSize is the maximum image size supported by AWS Rekognition (5MB)
	maxImageSize = 5 * 1024 * 1024
	// minImageSize is the minimum image size for valid processing
	minImageSize = 100

	personLabel = "Person"
)

// Provider implements provider.ObjectDetector using Rekognition DetectLabels.
// Only instances of the Person label are reported.
type Provider struct {
	client *Client
}

// Ensure Provider implements provider.ObjectDetector interface at compile time
var _ provider.ObjectDetector = (*Provider)(nil)

// NewProvider creates a new Rekognition person detector
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	client, err := NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create rekognition client: %w", err)
	}

	return &Provider{client: client}, nil
}

// validateImage checks if image data is valid for Rekognition processing
func validateImage(image []byte) error {
	if len(image) == 0 {
		return ErrInvalidImage
	}
	if len(image) < minImageSize {
		return fmt.Errorf("%w: image too small (%d bytes, minimum %d)", ErrInvalidImage, len(image), minImageSize)
	}
	if len(image) > maxImageSize {
		return fmt.Errorf("%w: image too large (%d bytes, maximum %d)", ErrInvalidImage, len(image), maxImageSize)
	}
	return nil
}

// Detect returns one Detection per Person instance Rekognition locates.
// An image without people yields an empty slice, not an error.
func (p *Provider) Detect(ctx context.Context, image []byte) ([]provider.Detection, error) {
	if err := validateImage(image); err != nil {
		return nil, err
	}

	input := &rekognition.DetectLabelsInput{
		Image: &types.Image{
			Bytes: image,
		},
		MinConfidence: aws.Float32(p.client.config.MinConfidence),
		MaxLabels:     aws.Int32(p.client.config.MaxLabels),
	}

	output, err := p.client.rekognition.DetectLabels(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("detect labels: %w", translateError(err))
	}

	var detections []provider.Detection
	for _, label := range output.Labels {
		if !strings.EqualFold(aws.ToString(label.Name), personLabel) {
			continue
		}
		for _, instance := range label.Instances {
			if instance.BoundingBox == nil {
				continue
			}
			detections = append(detections, provider.Detection{
				Label: personLabel,
				BoundingBox: provider.BoundingBox{
					X:      float64(aws.ToFloat32(instance.BoundingBox.Left)),
					Y:      float64(aws.ToFloat32(instance.BoundingBox.Top)),
					Width:  float64(aws.ToFloat32(instance.BoundingBox.Width)),
					Height: float64(aws.ToFloat32(instance.BoundingBox.Height)),
				},
				Confidence: float64(aws.ToFloat32(instance.Confidence)) / 100,
			})
		}
	}

	return detections, nil
}
