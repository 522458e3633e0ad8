package stream

import (
	"context"
	"fmt"
	"io"
	"time"
)

// Boundary separates parts of the multipart MJPEG response
const Boundary = "frame"

// ContentType is the response content type for WriteMJPEG
const ContentType = "multipart/x-mixed-replace; boundary=" + Boundary

// Flusher is implemented by writers that buffer output, such as bufio.Writer
type Flusher interface {
	Flush() error
}

// WriteMJPEG streams the frames of cameraID to w until ctx is canceled or a
// write fails. It polls every interval and writes a part only when a newer
// frame was published, so slow consumers skip frames instead of queueing them.
func (p *Publisher) WriteMJPEG(ctx context.Context, w io.Writer, cameraID string, interval time.Duration) error {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last time.Time
	for {
		if frame, ok := p.Latest(cameraID); ok && !frame.Timestamp.Equal(last) {
			if err := writePart(w, frame.Data); err != nil {
				return err
			}
			last = frame.Timestamp
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func writePart(w io.Writer, data []byte) error {
	header := fmt.Sprintf("--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", Boundary, len(data))
	if _, err := io.WriteString(w, header); err != nil {
		return fmt.Errorf("write part header: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	if _, err := io.WriteString(w, "\r\n"); err != nil {
		return fmt.Errorf("write part trailer: %w", err)
	}
	if f, ok := w.(Flusher); ok {
		if err := f.Flush(); err != nil {
			return fmt.Errorf("flush: %w", err)
		}
	}
	return nil
}
