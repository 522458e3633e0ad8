package rekognition

import (
	"errors"
	"fmt"

	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/provider"
)

var (
	// ErrInvalidCredentials indicates that AWS credentials are invalid or missing
	ErrInvalidCredentials = errors.New("invalid or missing AWS credentials")

	// ErrInvalidImage indicates the image was rejected before or by Rekognition
	ErrInvalidImage = errors.New("invalid image for rekognition")

	// ErrThrottled indicates Rekognition rejected the call due to rate limits
	ErrThrottled = fmt.Errorf("rekognition request throttled: %w", provider.ErrUnavailable)
)
