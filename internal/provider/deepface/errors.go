package deepface

import (
	"errors"
	"fmt"

	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/provider"
)

var (
	ErrDeepFaceUnavailable = fmt.Errorf("deepface service unavailable: %w", provider.ErrUnavailable)
	ErrInvalidResponse     = errors.New("invalid response from deepface")
	ErrEmptyImage          = errors.New("empty image")
)

// StatusError is returned when DeepFace answers with a non-success status
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("deepface returned status %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether retrying the request may succeed
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}
