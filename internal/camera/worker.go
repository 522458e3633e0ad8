// Package camera runs the per-camera sampling, matching and publishing loop.
package camera

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/domain"
	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/provider"
	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/similarity"
	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/stream"
)

// UnknownLabel is drawn next to faces that match no candidate
const UnknownLabel = "Unknown"

// Source produces decoded frames from a camera
type Source interface {
	Open() error
	Read() (image.Image, error)
	Close() error
}

// Snapshotter returns a point-in-time copy of the candidate embeddings
type Snapshotter interface {
	Snapshot() []domain.FaceEmbedding
}

// Coordinator decides which persons may still be reported
type Coordinator interface {
	Filter(snapshot []domain.FaceEmbedding) []domain.FaceEmbedding
	Claim(personID, claimID string) bool
	Release(personID, claimID string) bool
}

// Dispatcher accepts match events for asynchronous delivery
type Dispatcher interface {
	Enqueue(event domain.MatchEvent) bool
}

// Publisher stores the latest frame of each camera
type Publisher interface {
	Publish(frame stream.Frame)
}

// Config holds the per-camera settings
type Config struct {
	Name              string
	DetectionInterval int
	Threshold         float64
	RetryDelay        time.Duration
	SnapshotMaxSize   int
}

// Deps are the collaborators shared by every camera worker
type Deps struct {
	Registry    Snapshotter
	Coordinator Coordinator
	Detector    provider.ObjectDetector
	Extractor   provider.FaceExtractor
	Dispatcher  Dispatcher
	Publisher   Publisher
	Logger      *slog.Logger
}

// Worker reads one camera, samples every DetectionInterval-th frame and
// reports confident matches.
type Worker struct {
	config Config
	source Source
	deps   Deps
	logger *slog.Logger
	now    func() time.Time

	active      atomic.Bool
	framesRead  atomic.Int64
	lastFrameAt atomic.Int64
}

// NewWorker creates a worker for source
func NewWorker(config Config, source Source, deps Deps) *Worker {
	if config.DetectionInterval < 1 {
		config.DetectionInterval = 1
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = time.Second
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		config: config,
		source: source,
		deps:   deps,
		logger: logger.With("component", "camera", "camera", config.Name),
		now:    time.Now,
	}
}

// Name returns the camera name
func (w *Worker) Name() string {
	return w.config.Name
}

// Run reads frames until ctx is canceled. It returns an error only when the
// camera cannot be opened at start; read failures close the source and
// reopen it after RetryDelay.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.source.Open(); err != nil {
		w.logger.Error("failed to open camera", "error", err)
		return fmt.Errorf("open camera %s: %w", w.config.Name, err)
	}

	w.active.Store(true)
	w.logger.Info("camera started", "detection_interval", w.config.DetectionInterval)

	defer func() {
		w.active.Store(false)
		_ = w.source.Close()
		w.logger.Info("camera stopped")
	}()

	var count int64
	for {
		if ctx.Err() != nil {
			return nil
		}

		frame, err := w.source.Read()
		if err != nil {
			if !w.reopen(ctx, err) {
				return nil
			}
			continue
		}

		count = w.framesRead.Add(1)
		w.lastFrameAt.Store(w.now().UnixNano())

		if count%int64(w.config.DetectionInterval) != 0 {
			continue
		}

		w.process(ctx, frame)
	}
}

// reopen closes the source, waits RetryDelay and opens it again, repeating
// until it succeeds. It returns false when ctx is canceled.
func (w *Worker) reopen(ctx context.Context, cause error) bool {
	w.logger.Warn("frame read failed, reopening camera", "error", cause, "retry_delay", w.config.RetryDelay)
	w.active.Store(false)
	_ = w.source.Close()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(w.config.RetryDelay):
		}

		if err := w.source.Open(); err != nil {
			w.logger.Warn("camera reopen failed", "error", err)
			continue
		}

		w.active.Store(true)
		w.logger.Info("camera reopened")
		return true
	}
}

// process runs detection and matching on one sampled frame and publishes it
func (w *Worker) process(ctx context.Context, frame image.Image) {
	candidates := w.deps.Coordinator.Filter(w.deps.Registry.Snapshot())

	encoded, err := encodeJPEG(frame)
	if err != nil {
		w.logger.Error("failed to encode frame", "error", err)
		return
	}

	var annotations []annotation

	detections, err := w.deps.Detector.Detect(ctx, encoded)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		w.logger.Warn("object detection failed", "error", err)
	}

	for _, detection := range detections {
		region := detection.BoundingBox.Rect(frame.Bounds())
		if region.Empty() {
			continue
		}

		a, ok := w.matchRegion(ctx, frame, region, candidates)
		if ok {
			annotations = append(annotations, a)
		}
	}

	if len(annotations) > 0 {
		if encoded, err = encodeJPEG(annotate(frame, annotations)); err != nil {
			w.logger.Error("failed to encode annotated frame", "error", err)
			return
		}
	}

	w.deps.Publisher.Publish(stream.Frame{
		CameraID:  w.config.Name,
		Data:      encoded,
		Timestamp: w.now(),
	})
}

// matchRegion extracts the face inside region and reports it when it matches
// an eligible candidate. The returned annotation is false when no face was found.
func (w *Worker) matchRegion(ctx context.Context, frame image.Image, region image.Rectangle, candidates []domain.FaceEmbedding) (annotation, bool) {
	cropped := crop(frame, region)
	data, err := encodeJPEG(cropped)
	if err != nil {
		w.logger.Error("failed to encode region", "error", err)
		return annotation{}, false
	}

	result, err := w.deps.Extractor.Extract(ctx, data)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			w.logger.Warn("face extraction failed", "error", err)
		}
		return annotation{}, false
	}
	if result.FaceCount == 0 {
		return annotation{}, false
	}

	unknown := annotation{Rect: region, Label: UnknownLabel}
	if !result.SingleFace() {
		return unknown, true
	}

	match, ok := similarity.BestMatch(candidates, result.Embedding, w.config.Threshold)
	if !ok {
		return unknown, true
	}

	w.report(cropped, match)
	return annotation{Rect: region, Label: match.Candidate.DisplayName, Matched: true}, true
}

// report claims the matched person and hands the event to the dispatcher.
// The claim is released when the dispatcher rejects the event.
func (w *Worker) report(cropped image.Image, match similarity.Match) {
	personID := match.Candidate.PersonID
	eventID := uuid.New()
	claimID := eventID.String()
	if !w.deps.Coordinator.Claim(personID, claimID) {
		return
	}

	snapshot, err := encodeJPEG(fit(cropped, w.config.SnapshotMaxSize))
	if err != nil {
		w.deps.Coordinator.Release(personID, claimID)
		w.logger.Error("failed to encode snapshot", "person_id", personID, "error", err)
		return
	}

	event := domain.MatchEvent{
		ID:         eventID,
		PersonID:   personID,
		Name:       match.Candidate.DisplayName,
		CameraID:   w.config.Name,
		Snapshot:   base64.StdEncoding.EncodeToString(snapshot),
		Similarity: match.Similarity,
		DetectedAt: w.now(),
	}

	if !w.deps.Dispatcher.Enqueue(event) {
		w.deps.Coordinator.Release(personID, claimID)
		w.logger.Warn("match dropped, dispatcher busy", "person_id", personID)
		return
	}

	w.logger.Info("match detected",
		"person_id", personID,
		"name", event.Name,
		"similarity", match.Similarity,
	)
}

// Status is the observable state of a camera
type Status struct {
	Name        string     `json:"name"`
	Active      bool       `json:"active"`
	StreamURL   string     `json:"stream_url"`
	FramesRead  int64      `json:"frames_read"`
	LastFrameAt *time.Time `json:"last_frame_at,omitempty"`
}

// Status reports the worker's current state
func (w *Worker) Status() Status {
	s := Status{
		Name:       w.config.Name,
		Active:     w.active.Load(),
		StreamURL:  StreamURL(w.config.Name),
		FramesRead: w.framesRead.Load(),
	}
	if ns := w.lastFrameAt.Load(); ns != 0 {
		t := time.Unix(0, ns).UTC()
		s.LastFrameAt = &t
	}
	return s
}

// StreamURL is the path serving the MJPEG stream of a camera
func StreamURL(name string) string {
	return "/v1/cameras/" + name + "/stream"
}
