package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/domain"
	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/ws"
)

// Releaser reverts the pending match claimed by a given event so the person
// can be matched again
type Releaser interface {
	Release(personID, claimID string) bool
}

// Broadcaster publishes lifecycle events to live dashboards
type Broadcaster interface {
	Broadcast(eventType ws.EventType, data interface{})
}

// Config controls delivery of match events
type Config struct {
	URL       string
	Secret    string
	Timeout   time.Duration
	QueueSize int
	Workers   int
}

// DefaultConfig returns the delivery defaults
func DefaultConfig() Config {
	return Config{
		URL:       "http://localhost:3000/api/report_match",
		Timeout:   3 * time.Second,
		QueueSize: 64,
		Workers:   2,
	}
}

// Payload is the JSON body posted downstream
type Payload struct {
	PersonID   string    `json:"person_id"`
	Name       string    `json:"name"`
	CameraID   string    `json:"camera_id"`
	Snapshot   string    `json:"snapshot"`
	Similarity float64   `json:"similarity"`
	DetectedAt time.Time `json:"detected_at"`
}

func payloadFor(event domain.MatchEvent) Payload {
	return Payload{
		PersonID:   event.PersonID,
		Name:       event.Name,
		CameraID:   event.CameraID,
		Snapshot:   event.Snapshot,
		Similarity: event.Similarity,
		DetectedAt: event.DetectedAt,
	}
}

// Dispatcher delivers match events to the downstream consumer from a bounded
// queue so camera workers never wait on the network. A failed delivery is not
// retried; the person's claim is released instead.
type Dispatcher struct {
	config   Config
	client   *http.Client
	releaser Releaser
	events   Broadcaster
	logger   *slog.Logger

	queue chan domain.MatchEvent
	abort chan struct{}

	// base is canceled when Close gives up waiting, aborting in-flight requests
	base       context.Context
	cancelBase context.CancelFunc

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithHTTPClient overrides the client used for delivery
func WithHTTPClient(client *http.Client) Option {
	return func(d *Dispatcher) {
		d.client = client
	}
}

// WithBroadcaster publishes lifecycle events through b
func WithBroadcaster(b Broadcaster) Option {
	return func(d *Dispatcher) {
		d.events = b
	}
}

// NewDispatcher creates a dispatcher. Call Start to launch its workers.
func NewDispatcher(config Config, releaser Releaser, logger *slog.Logger, opts ...Option) *Dispatcher {
	defaults := DefaultConfig()
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.QueueSize <= 0 {
		config.QueueSize = defaults.QueueSize
	}
	if config.Workers <= 0 {
		config.Workers = defaults.Workers
	}
	if logger == nil {
		logger = slog.Default()
	}

	base, cancel := context.WithCancel(context.Background())

	d := &Dispatcher{
		config:     config,
		client:     &http.Client{},
		releaser:   releaser,
		logger:     logger.With("component", "dispatcher"),
		queue:      make(chan domain.MatchEvent, config.QueueSize),
		abort:      make(chan struct{}),
		base:       base,
		cancelBase: cancel,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Start launches the delivery workers
func (d *Dispatcher) Start() {
	for i := 0; i < d.config.Workers; i++ {
		d.wg.Add(1)
		go d.work(i)
	}
	d.logger.Info("dispatcher started", "workers", d.config.Workers, "queue_size", d.config.QueueSize)
}

// Enqueue queues event for delivery without blocking. It returns false when
// the queue is full or the dispatcher is closed; the caller keeps ownership of
// the claim in that case.
func (d *Dispatcher) Enqueue(event domain.MatchEvent) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return false
	}

	select {
	case d.queue <- event:
	default:
		d.logger.Warn("notification queue full", "person_id", event.PersonID, "camera_id", event.CameraID)
		return false
	}

	d.broadcast(ws.EventMatchDetected, event)
	return true
}

// Pending reports the number of queued events
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}

// Close stops accepting events and waits for queued and in-flight deliveries.
// When ctx expires first, in-flight requests are aborted and every event not
// delivered is released.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancelBase()
		d.logger.Info("dispatcher drained")
		return nil
	case <-ctx.Done():
		close(d.abort)
		d.cancelBase()
		<-done
		d.logger.Warn("dispatcher drain deadline exceeded")
		return ctx.Err()
	}
}

func (d *Dispatcher) work(id int) {
	defer d.wg.Done()

	for event := range d.queue {
		select {
		case <-d.abort:
			d.fail(event, ErrClosed)
			continue
		default:
		}

		if err := d.deliver(event); err != nil {
			d.fail(event, err)
			continue
		}

		d.logger.Info("match reported",
			"worker", id,
			"person_id", event.PersonID,
			"camera_id", event.CameraID,
			"similarity", event.Similarity,
		)
		d.broadcast(ws.EventMatchDispatched, event)
	}
}

func (d *Dispatcher) fail(event domain.MatchEvent, err error) {
	d.releaser.Release(event.PersonID, event.ID.String())
	d.logger.Error("match dispatch failed",
		"person_id", event.PersonID,
		"camera_id", event.CameraID,
		"error", err,
	)
	d.broadcast(ws.EventMatchDispatchFailed, map[string]string{
		"person_id": event.PersonID,
		"camera_id": event.CameraID,
		"error":     err.Error(),
	})
}

func (d *Dispatcher) deliver(event domain.MatchEvent) error {
	payload, err := json.Marshal(payloadFor(event))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(d.base, d.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.config.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Rakshak-Event-ID", event.ID.String())
	req.Header.Set("User-Agent", "Rakshak-Notifier/1.0")
	if d.config.Secret != "" {
		req.Header.Set(SignatureHeader, Sign(d.config.Secret, payload))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("post event: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode}
	}

	return nil
}

func (d *Dispatcher) broadcast(eventType ws.EventType, data interface{}) {
	if d.events != nil {
		d.events.Broadcast(eventType, data)
	}
}
