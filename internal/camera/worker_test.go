package camera

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/domain"
	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/match"
	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/provider"
	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/registry"
	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/stream"
)

func solidFrame(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{90, 90, 90, 255})
		}
	}
	return img
}

type fakeSource struct {
	mu        sync.Mutex
	opens     int
	reads     int
	openErr   error
	failReads map[int]bool // 1-based read numbers that fail
	limit     int          // cancel after this many reads
	cancel    context.CancelFunc
}

func (s *fakeSource) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opens++
	return s.openErr
}

func (s *fakeSource) Read() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if s.limit > 0 && s.reads > s.limit {
		s.cancel()
		return nil, errors.New("done")
	}
	if s.failReads[s.reads] {
		return nil, errors.New("read failed")
	}
	return solidFrame(64, 48), nil
}

func (s *fakeSource) Close() error { return nil }

func (s *fakeSource) Opens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens
}

type fakeDetector struct {
	detections []provider.Detection
	err        error
}

func (d *fakeDetector) Detect(ctx context.Context, image []byte) ([]provider.Detection, error) {
	return d.detections, d.err
}

type fakeExtractor struct {
	mu     sync.Mutex
	result *provider.FaceResult
	err    error
	calls  int
}

func (e *fakeExtractor) Extract(ctx context.Context, image []byte) (*provider.FaceResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	return e.result, e.err
}

type fakeDispatcher struct {
	mu     sync.Mutex
	reject bool
	events []domain.MatchEvent
}

func (d *fakeDispatcher) Enqueue(event domain.MatchEvent) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return !d.reject
}

func (d *fakeDispatcher) Events() []domain.MatchEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]domain.MatchEvent(nil), d.events...)
}

type fakePublisher struct {
	mu     sync.Mutex
	frames []stream.Frame
}

func (p *fakePublisher) Publish(frame stream.Frame) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frames = append(p.frames, frame)
}

func (p *fakePublisher) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.frames)
}

// vectorAt returns a unit vector whose cosine similarity to [1, 0] is s
func vectorAt(s float64) []float64 {
	return []float64{s, math.Sqrt(1 - s*s)}
}

type harness struct {
	registry    *registry.Registry
	coordinator *match.Coordinator
	detector    *fakeDetector
	extractor   *fakeExtractor
	dispatcher  *fakeDispatcher
	publisher   *fakePublisher
	worker      *Worker
}

func newHarness(t *testing.T, source Source, similarity float64) *harness {
	t.Helper()

	reg := registry.New()
	reg.LoadAll([]domain.FaceEmbedding{
		{PersonID: "p1", DisplayName: "Asha Rao", Vector: []float64{1, 0}},
	})

	h := &harness{
		registry:    reg,
		coordinator: match.NewCoordinator(reg, nil),
		detector: &fakeDetector{detections: []provider.Detection{{
			Label:       "Person",
			BoundingBox: provider.BoundingBox{X: 0.25, Y: 0.25, Width: 0.5, Height: 0.5},
			Confidence:  0.9,
		}}},
		extractor:  &fakeExtractor{result: &provider.FaceResult{FaceCount: 1, Embedding: vectorAt(similarity)}},
		dispatcher: &fakeDispatcher{},
		publisher:  &fakePublisher{},
	}

	h.worker = NewWorker(Config{
		Name:              "entrance",
		DetectionInterval: 1,
		Threshold:         0.5,
		RetryDelay:        time.Millisecond,
		SnapshotMaxSize:   16,
	}, source, Deps{
		Registry:    h.registry,
		Coordinator: h.coordinator,
		Detector:    h.detector,
		Extractor:   h.extractor,
		Dispatcher:  h.dispatcher,
		Publisher:   h.publisher,
	})
	return h
}

func TestWorker_MatchAboveThreshold(t *testing.T) {
	h := newHarness(t, &fakeSource{}, 0.55)

	h.worker.process(context.Background(), solidFrame(64, 48))

	events := h.dispatcher.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "p1", events[0].PersonID)
	assert.Equal(t, "Asha Rao", events[0].Name)
	assert.Equal(t, "entrance", events[0].CameraID)
	assert.InDelta(t, 0.55, events[0].Similarity, 1e-9)
	assert.Equal(t, domain.MatchPending, h.coordinator.State("p1"))
	assert.Equal(t, 1, h.publisher.Count())

	// snapshot is the crop scaled to at most 16px
	raw, err := base64.StdEncoding.DecodeString(events[0].Snapshot)
	require.NoError(t, err)
	snapshot, err := jpeg.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 16, snapshot.Bounds().Dx())
	assert.Equal(t, 12, snapshot.Bounds().Dy())
}

func TestWorker_Threshold(t *testing.T) {
	tests := []struct {
		name       string
		similarity float64
		wantEvent  bool
	}{
		{name: "below", similarity: 0.4, wantEvent: false},
		{name: "equal is not a match", similarity: 0.5, wantEvent: false},
		{name: "above", similarity: 0.51, wantEvent: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, &fakeSource{}, tt.similarity)

			h.worker.process(context.Background(), solidFrame(64, 48))

			assert.Equal(t, tt.wantEvent, len(h.dispatcher.Events()) == 1)
			assert.Equal(t, 1, h.publisher.Count(), "frame is published either way")
		})
	}
}

func TestWorker_PendingNotReselected(t *testing.T) {
	h := newHarness(t, &fakeSource{}, 0.9)

	h.worker.process(context.Background(), solidFrame(64, 48))
	h.worker.process(context.Background(), solidFrame(64, 48))

	assert.Len(t, h.dispatcher.Events(), 1)
	assert.Equal(t, domain.MatchPending, h.coordinator.State("p1"))
}

func TestWorker_ResearchRetriggers(t *testing.T) {
	h := newHarness(t, &fakeSource{}, 0.9)

	h.worker.process(context.Background(), solidFrame(64, 48))
	require.True(t, h.coordinator.Research("p1"))
	h.worker.process(context.Background(), solidFrame(64, 48))

	assert.Len(t, h.dispatcher.Events(), 2)
}

func TestWorker_AcceptedNeverMatched(t *testing.T) {
	h := newHarness(t, &fakeSource{}, 0.9)

	h.worker.process(context.Background(), solidFrame(64, 48))
	h.coordinator.Accept("p1")
	h.worker.process(context.Background(), solidFrame(64, 48))

	assert.Len(t, h.dispatcher.Events(), 1)
	assert.Empty(t, h.registry.Snapshot())
	assert.Equal(t, domain.MatchResolved, h.coordinator.State("p1"))
}

func TestWorker_EnqueueRejectedReleasesClaim(t *testing.T) {
	h := newHarness(t, &fakeSource{}, 0.9)
	h.dispatcher.reject = true

	h.worker.process(context.Background(), solidFrame(64, 48))

	assert.Equal(t, domain.MatchUnseen, h.coordinator.State("p1"))
}

func TestWorker_NoMatchWithoutSingleFace(t *testing.T) {
	tests := []struct {
		name   string
		result *provider.FaceResult
		err    error
	}{
		{name: "no face", result: &provider.FaceResult{FaceCount: 0}},
		{name: "several faces", result: &provider.FaceResult{FaceCount: 2, Embedding: vectorAt(0.9)}},
		{name: "extractor error", err: errors.New("deepface down")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, &fakeSource{}, 0.9)
			h.extractor.result = tt.result
			h.extractor.err = tt.err

			h.worker.process(context.Background(), solidFrame(64, 48))

			assert.Empty(t, h.dispatcher.Events())
			assert.Equal(t, 1, h.publisher.Count())
		})
	}
}

func TestWorker_DetectorErrorStillPublishes(t *testing.T) {
	h := newHarness(t, &fakeSource{}, 0.9)
	h.detector.detections = nil
	h.detector.err = errors.New("throttled")

	h.worker.process(context.Background(), solidFrame(64, 48))

	assert.Equal(t, 0, h.extractor.calls)
	assert.Equal(t, 1, h.publisher.Count())
}

func TestWorker_RunSamplesEveryNthFrame(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	source := &fakeSource{limit: 7, cancel: cancel}
	h := newHarness(t, source, 0.1)
	h.worker.config.DetectionInterval = 3

	require.NoError(t, h.worker.Run(ctx))

	// frames 3 and 6 are processed
	assert.Equal(t, 2, h.publisher.Count())
	assert.Equal(t, int64(7), h.worker.Status().FramesRead)
	assert.False(t, h.worker.Status().Active)
}

func TestWorker_RunReopensAfterReadError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	source := &fakeSource{limit: 4, cancel: cancel, failReads: map[int]bool{2: true}}
	h := newHarness(t, source, 0.1)

	require.NoError(t, h.worker.Run(ctx))

	assert.Equal(t, 2, source.Opens())
	assert.Equal(t, 3, h.publisher.Count())
}

func TestWorker_RunOpenFailure(t *testing.T) {
	source := &fakeSource{openErr: errors.New("no such device")}
	h := newHarness(t, source, 0.9)

	err := h.worker.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entrance")
	assert.False(t, h.worker.Status().Active)
	assert.Equal(t, 0, h.publisher.Count())
}

func TestWorker_Status(t *testing.T) {
	h := newHarness(t, &fakeSource{}, 0.9)

	status := h.worker.Status()
	assert.Equal(t, "entrance", status.Name)
	assert.Equal(t, "/v1/cameras/entrance/stream", status.StreamURL)
	assert.Nil(t, status.LastFrameAt)
	assert.Equal(t, int64(0), status.FramesRead)
}

func TestManager(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	good := newHarness(t, &fakeSource{limit: 2, cancel: cancel}, 0.1).worker
	broken := newHarness(t, &fakeSource{openErr: errors.New("busy")}, 0.1).worker
	broken.config.Name = "lobby"

	m := NewManager([]*Worker{good, broken}, nil)
	m.Start(ctx)
	m.Wait()

	assert.True(t, m.Has("entrance"))
	assert.True(t, m.Has("lobby"))
	assert.False(t, m.Has("garage"))

	statuses := m.Statuses()
	require.Len(t, statuses, 2)
	assert.Equal(t, "entrance", statuses[0].Name)
	assert.Equal(t, int64(2), statuses[0].FramesRead)
	assert.NotNil(t, statuses[0].LastFrameAt)
	assert.Equal(t, "lobby", statuses[1].Name)
	assert.False(t, statuses[1].Active)
}
