package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/domain"
	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/match"
	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/registry"
	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/ws"
)

type recordingReleaser struct {
	mu       sync.Mutex
	released []string
	claims   []string
}

func (r *recordingReleaser) Release(personID, claimID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.released = append(r.released, personID)
	r.claims = append(r.claims, claimID)
	return true
}

func (r *recordingReleaser) Claims() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.claims...)
}

func (r *recordingReleaser) Released() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.released...)
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []ws.EventType
}

func (b *recordingBroadcaster) Broadcast(eventType ws.EventType, _ interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, eventType)
}

func (b *recordingBroadcaster) Events() []ws.EventType {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]ws.EventType(nil), b.events...)
}

func testEvent(personID string) domain.MatchEvent {
	return domain.MatchEvent{
		ID:         uuid.New(),
		PersonID:   personID,
		Name:       "Asha Rao",
		CameraID:   "entrance",
		Snapshot:   "aGVsbG8=",
		Similarity: 0.55,
		DetectedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func closeDispatcher(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))
}

func TestDispatcher_DeliversSignedPayload(t *testing.T) {
	type received struct {
		body      []byte
		signature string
		eventID   string
	}
	got := make(chan received, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		got <- received{body: body, signature: r.Header.Get(SignatureHeader), eventID: r.Header.Get("X-Rakshak-Event-ID")}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	releaser := &recordingReleaser{}
	events := &recordingBroadcaster{}
	d := NewDispatcher(Config{URL: server.URL, Secret: "s3cret"}, releaser, nil, WithBroadcaster(events))
	d.Start()

	event := testEvent("p1")
	require.True(t, d.Enqueue(event))

	select {
	case r := <-got:
		var payload map[string]interface{}
		require.NoError(t, json.Unmarshal(r.body, &payload))
		assert.Equal(t, "p1", payload["person_id"])
		assert.Equal(t, "Asha Rao", payload["name"])
		assert.Equal(t, "entrance", payload["camera_id"])
		assert.Equal(t, "aGVsbG8=", payload["snapshot"])
		assert.Equal(t, 0.55, payload["similarity"])
		assert.Equal(t, "2026-01-02T03:04:05Z", payload["detected_at"])
		assert.True(t, Verify("s3cret", r.body, r.signature))
		assert.Equal(t, event.ID.String(), r.eventID)
	case <-time.After(2 * time.Second):
		t.Fatal("no request received")
	}

	closeDispatcher(t, d)
	assert.Empty(t, releaser.Released())
	assert.Equal(t, []ws.EventType{ws.EventMatchDetected, ws.EventMatchDispatched}, events.Events())
}

func TestDispatcher_NoSignatureWithoutSecret(t *testing.T) {
	got := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.Header.Get(SignatureHeader)
	}))
	defer server.Close()

	d := NewDispatcher(Config{URL: server.URL}, &recordingReleaser{}, nil)
	d.Start()
	require.True(t, d.Enqueue(testEvent("p1")))

	select {
	case signature := <-got:
		assert.Empty(t, signature)
	case <-time.After(2 * time.Second):
		t.Fatal("no request received")
	}
	closeDispatcher(t, d)
}

func TestDispatcher_FailureReleases(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		timeout time.Duration
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			name: "client error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
		},
		{
			name: "redirect is not success",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotModified)
			},
		},
		{
			name: "timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(time.Second):
				}
			},
			timeout: 50 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			releaser := &recordingReleaser{}
			events := &recordingBroadcaster{}
			d := NewDispatcher(Config{URL: server.URL, Timeout: tt.timeout}, releaser, nil, WithBroadcaster(events))
			d.Start()

			require.True(t, d.Enqueue(testEvent("p1")))
			closeDispatcher(t, d)

			assert.Equal(t, []string{"p1"}, releaser.Released())
			assert.Contains(t, events.Events(), ws.EventMatchDispatchFailed)
		})
	}
}

func TestDispatcher_UnreachableReleases(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	releaser := &recordingReleaser{}
	d := NewDispatcher(Config{URL: url}, releaser, nil)
	d.Start()

	event := testEvent("p1")
	require.True(t, d.Enqueue(event))
	closeDispatcher(t, d)

	assert.Equal(t, []string{event.ID.String()}, releaser.Claims())

	assert.Equal(t, []string{"p1"}, releaser.Released())
}

func TestDispatcher_EnqueueQueueFull(t *testing.T) {
	// workers are never started so nothing drains the queue
	d := NewDispatcher(Config{URL: "http://127.0.0.1:1", QueueSize: 1}, &recordingReleaser{}, nil)

	assert.True(t, d.Enqueue(testEvent("p1")))
	assert.False(t, d.Enqueue(testEvent("p2")))
	assert.Equal(t, 1, d.Pending())
}

func TestDispatcher_EnqueueAfterClose(t *testing.T) {
	d := NewDispatcher(Config{URL: "http://127.0.0.1:1"}, &recordingReleaser{}, nil)
	d.Start()
	closeDispatcher(t, d)

	assert.False(t, d.Enqueue(testEvent("p1")))
	assert.NoError(t, d.Close(context.Background()), "second close is a no-op")
}

func TestDispatcher_CloseDeadlineReleasesUnsent(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(block)

	releaser := &recordingReleaser{}
	d := NewDispatcher(Config{URL: server.URL, Timeout: time.Minute, Workers: 1}, releaser, nil)
	d.Start()

	for _, id := range []string{"p1", "p2", "p3"} {
		require.True(t, d.Enqueue(testEvent(id)))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := d.Close(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ElementsMatch(t, []string{"p1", "p2", "p3"}, releaser.Released())
}

func TestNewDispatcher_Defaults(t *testing.T) {
	d := NewDispatcher(Config{URL: "http://example.test"}, &recordingReleaser{}, nil)

	assert.Equal(t, 3*time.Second, d.config.Timeout)
	assert.Equal(t, 64, d.config.QueueSize)
	assert.Equal(t, 2, d.config.Workers)
	assert.Equal(t, 64, cap(d.queue))
}

func TestStatusError(t *testing.T) {
	err := &StatusError{StatusCode: 502}
	assert.Equal(t, "downstream responded with status 502", err.Error())
}

func TestDispatcher_FailureKeepsLaterClaim(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	coordinator := match.NewCoordinator(registry.New(), nil)
	stale := testEvent("p1")
	require.True(t, coordinator.Claim("p1", stale.ID.String()))

	// operator re-searches and a later frame claims the person again
	require.True(t, coordinator.Research("p1"))
	require.True(t, coordinator.Claim("p1", uuid.NewString()))

	d := NewDispatcher(Config{URL: server.URL}, coordinator, nil)
	d.Start()
	require.True(t, d.Enqueue(stale))
	closeDispatcher(t, d)

	assert.Equal(t, domain.MatchPending, coordinator.State("p1"))
}
