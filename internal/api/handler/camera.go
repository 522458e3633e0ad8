package handler

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/camera"
	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/domain"
	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/stream"
)

// CameraLister reports configured cameras
type CameraLister interface {
	Statuses() []camera.Status
	Has(name string) bool
}

// FrameStreamer writes a camera's frames as MJPEG
type FrameStreamer interface {
	WriteMJPEG(ctx context.Context, w io.Writer, cameraID string, interval time.Duration) error
}

// CameraHandler serves camera status and live streams
type CameraHandler struct {
	ctx      context.Context
	cameras  CameraLister
	frames   FrameStreamer
	interval time.Duration
	logger   *slog.Logger
}

// NewCameraHandler creates a new CameraHandler. Streams end when ctx is canceled.
func NewCameraHandler(ctx context.Context, cameras CameraLister, frames FrameStreamer, interval time.Duration, logger *slog.Logger) *CameraHandler {
	return &CameraHandler{
		ctx:      ctx,
		cameras:  cameras,
		frames:   frames,
		interval: interval,
		logger:   logger,
	}
}

// List GET /v1/cameras - list cameras with their status
func (h *CameraHandler) List(c *fiber.Ctx) error {
	return c.JSON(h.cameras.Statuses())
}

// Stream GET /v1/cameras/:id/stream - live annotated MJPEG stream
func (h *CameraHandler) Stream(c *fiber.Ctx) error {
	id := c.Params("id")
	if !h.cameras.Has(id) {
		return domain.ErrCameraNotFound
	}

	c.Set(fiber.HeaderContentType, stream.ContentType)
	c.Set(fiber.HeaderCacheControl, "no-cache, no-store, must-revalidate")
	c.Set(fiber.HeaderConnection, "keep-alive")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		err := h.frames.WriteMJPEG(h.ctx, w, id, h.interval)
		h.logger.Debug("stream closed", "camera", id, "reason", err)
	})

	return nil
}
