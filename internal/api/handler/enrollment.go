package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"

	"github.com/gofiber/fiber/v2"

	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/domain"
	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/provider"
	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/verification"
)

const (
	maxImageSize = 10 * 1024 * 1024 // 10MB
)

var validImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// Verifier validates enrollment photos
type Verifier interface {
	Verify(ctx context.Context, images []verification.Image) error
	DetectSingle(ctx context.Context, image []byte) (verification.Detection, error)
}

// EnrollmentHandler serves the checks run by the registration form before a
// person is saved
type EnrollmentHandler struct {
	verifier Verifier
	logger   *slog.Logger
}

// NewEnrollmentHandler creates a new EnrollmentHandler instance
func NewEnrollmentHandler(verifier Verifier, logger *slog.Logger) *EnrollmentHandler {
	return &EnrollmentHandler{
		verifier: verifier,
		logger:   logger,
	}
}

// VerifyResponse response for the face set verification endpoint
type VerifyResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Verify POST /v1/enroll/verify - validate a set of 3-7 enrollment photos
func (h *EnrollmentHandler) Verify(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return domain.ErrValidationFailed.WithError(err)
	}

	files := form.File["images"]
	images := make([]verification.Image, 0, len(files))
	for _, file := range files {
		data, err := readImage(file)
		if err != nil {
			return fmt.Errorf("verify faceset: %w", err)
		}
		images = append(images, verification.Image{Filename: file.Filename, Data: data})
	}

	err = h.verifier.Verify(c.Context(), images)

	var failure *verification.Failure
	switch {
	case err == nil:
		return c.JSON(VerifyResponse{Success: true, Message: verification.VerifiedMessage})
	case errors.As(err, &failure):
		h.logger.Info("enrollment rejected", "reason", failure.Reason, "image", failure.Image)
		return c.JSON(VerifyResponse{Success: false, Message: failure.Message})
	default:
		return providerError(err)
	}
}

// Detect POST /v1/detect - check that a single photo contains exactly one face
func (h *EnrollmentHandler) Detect(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return domain.ErrValidationFailed.WithError(err)
	}

	data, err := readImage(file)
	if err != nil {
		return fmt.Errorf("detect face: %w", err)
	}

	result, err := h.verifier.DetectSingle(c.Context(), data)
	if err != nil {
		return providerError(err)
	}

	return c.JSON(result)
}

// providerError maps model service outages to 503 and everything else to 500
func providerError(err error) error {
	if errors.Is(err, provider.ErrUnavailable) {
		return domain.ErrServiceUnavailable.WithError(err)
	}
	return domain.ErrInternal.WithError(err)
}

func readImage(file *multipart.FileHeader) ([]byte, error) {
	if file.Size > maxImageSize || file.Size == 0 {
		return nil, domain.ErrInvalidImage.WithError(nil)
	}

	contentType := file.Header.Get("Content-Type")
	if !validImageTypes[contentType] {
		return nil, domain.ErrInvalidImage.WithError(nil)
	}

	f, err := file.Open()
	if err != nil {
		return nil, domain.ErrInvalidImage.WithError(err)
	}
	defer func() {
		_ = f.Close()
	}()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, domain.ErrInvalidImage.WithError(err)
	}

	return data, nil
}
