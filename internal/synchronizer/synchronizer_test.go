package synchronizer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/cache"
	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/domain"
	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/match"
	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/provider"
	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/registry"
	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/ws"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeExtractor maps image bytes to results
type fakeExtractor struct {
	mu      sync.Mutex
	results map[string]*provider.FaceResult
	calls   int
}

func (f *fakeExtractor) Extract(ctx context.Context, image []byte) (*provider.FaceResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	if r, ok := f.results[string(image)]; ok {
		return r, nil
	}
	return nil, errors.New("extractor unavailable")
}

func (f *fakeExtractor) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newExtractor() *fakeExtractor {
	return &fakeExtractor{results: map[string]*provider.FaceResult{
		"one-a": {FaceCount: 1, Embedding: []float64{1, 0}},
		"one-b": {FaceCount: 1, Embedding: []float64{0, 1}},
		"one-c": {FaceCount: 1, Embedding: []float64{0.6, 0.8}},
		"none":  {FaceCount: 0},
		"crowd": {FaceCount: 3, Embedding: []float64{0.5, 0.5}},
	}}
}

type fakeStore struct {
	mu      sync.Mutex
	persons []domain.PersonRecord
	err     error
	calls   int
}

func (s *fakeStore) ListSearching(ctx context.Context) ([]domain.PersonRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([]domain.PersonRecord, len(s.persons))
	copy(out, s.persons)
	return out, nil
}

func (s *fakeStore) set(persons ...domain.PersonRecord) {
	s.mu.Lock()
	s.persons = persons
	s.mu.Unlock()
}

func (s *fakeStore) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type resolvedSet map[string]bool

func (r resolvedSet) IsResolved(personID string) bool { return r[personID] }

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]cache.Entry
}

func (c *memoryCache) GetMultiple(ctx context.Context, imageIDs []string) (map[string]cache.Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]cache.Entry)
	for _, id := range imageIDs {
		if e, ok := c.entries[id]; ok {
			out[id] = e
		}
	}
	return out, nil
}

func (c *memoryCache) Set(ctx context.Context, entry cache.Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[entry.ImageID] = entry
	return nil
}

func person(id, name string, images ...string) domain.PersonRecord {
	p := domain.PersonRecord{ID: id, FullName: name, Status: domain.PersonStatusSearching}
	for i, data := range images {
		p.Images = append(p.Images, domain.EnrollmentImage{
			ID:       id + "-img-" + string(rune('1'+i)),
			Position: i + 1,
			Data:     []byte(data),
		})
	}
	return p
}

func TestSynchronizer_LoadInitial(t *testing.T) {
	store := &fakeStore{}
	store.set(
		person("p1", "Asha", "one-a", "none", "crowd", "broken", "one-c"),
		person("p2", "Ravi", "none"),
		person("p3", "Meena", "one-b"),
		domain.PersonRecord{ID: "p4", FullName: "Found", Status: domain.PersonStatusResolved, Images: []domain.EnrollmentImage{{ID: "x", Data: []byte("one-a")}}},
	)
	reg := registry.New()
	reg.Add(domain.FaceEmbedding{PersonID: "stale"})

	s := New(store, nil, newExtractor(), reg, DefaultConfig(), discardLogger())
	require.NoError(t, s.LoadInitial(context.Background()))

	snapshot := reg.Snapshot()
	require.Len(t, snapshot, 3)
	assert.Equal(t, "p1", snapshot[0].PersonID)
	assert.Equal(t, "Asha", snapshot[0].DisplayName)
	assert.Equal(t, []float64{1, 0}, snapshot[0].Vector)
	assert.Equal(t, []float64{0.6, 0.8}, snapshot[1].Vector)
	assert.Equal(t, "p3", snapshot[2].PersonID)
}

func TestSynchronizer_LoadInitialSkipsResolved(t *testing.T) {
	store := &fakeStore{}
	store.set(person("p1", "Asha", "one-a"), person("p2", "Ravi", "one-b"))
	reg := registry.New()

	s := New(store, nil, newExtractor(), reg, DefaultConfig(), discardLogger(), WithResolved(resolvedSet{"p1": true}))
	require.NoError(t, s.LoadInitial(context.Background()))

	snapshot := reg.Snapshot()
	require.Len(t, snapshot, 1)
	assert.Equal(t, "p2", snapshot[0].PersonID)
}

func TestSynchronizer_LoadInitialStoreError(t *testing.T) {
	store := &fakeStore{err: errors.New("connection refused")}
	reg := registry.New()
	reg.Add(domain.FaceEmbedding{PersonID: "kept"})

	s := New(store, nil, newExtractor(), reg, DefaultConfig(), discardLogger())
	err := s.LoadInitial(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "load searching persons")
	assert.Equal(t, 1, reg.Len(), "registry untouched on failure")
}

func TestSynchronizer_UsesCache(t *testing.T) {
	store := &fakeStore{}
	store.set(person("p1", "Asha", "one-a", "none"))
	extractor := newExtractor()
	embeddingCache := &memoryCache{entries: map[string]cache.Entry{}}

	s := New(store, nil, extractor, registry.New(), DefaultConfig(), discardLogger(), WithCache(embeddingCache))

	require.NoError(t, s.LoadInitial(context.Background()))
	assert.Equal(t, 2, extractor.Calls())
	assert.Len(t, embeddingCache.entries, 2)
	assert.Equal(t, 0, embeddingCache.entries["p1-img-2"].FaceCount)

	require.NoError(t, s.Resync(context.Background()))
	assert.Equal(t, 2, extractor.Calls(), "cached results are reused")
}

func TestSynchronizer_Admit(t *testing.T) {
	reg := registry.New()
	s := New(&fakeStore{}, nil, newExtractor(), reg, DefaultConfig(), discardLogger(), WithResolved(resolvedSet{"p9": true}))
	ctx := context.Background()

	p1 := person("p1", "Asha", "one-a", "one-c")
	n, err := s.Admit(ctx, &p1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// duplicate notification
	n, err = s.Admit(ctx, &p1)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	resolved := person("p9", "Found", "one-b")
	n, _ = s.Admit(ctx, &resolved)
	assert.Equal(t, 0, n)

	notSearching := person("p5", "Other", "one-b")
	notSearching.Status = domain.PersonStatusResolved
	n, _ = s.Admit(ctx, &notSearching)
	assert.Equal(t, 0, n)

	faceless := person("p6", "Blurry", "none", "crowd")
	n, _ = s.Admit(ctx, &faceless)
	assert.Equal(t, 0, n)

	assert.Equal(t, 2, reg.Len())
}

type recordedEvent struct {
	eventType ws.EventType
	data      interface{}
}

type recordingBroadcaster struct {
	events []recordedEvent
}

func (b *recordingBroadcaster) Broadcast(eventType ws.EventType, data interface{}) {
	b.events = append(b.events, recordedEvent{eventType, data})
}

func TestSynchronizer_AdmitBroadcasts(t *testing.T) {
	events := &recordingBroadcaster{}
	s := New(&fakeStore{}, nil, newExtractor(), registry.New(), DefaultConfig(), discardLogger(), WithBroadcaster(events))
	ctx := context.Background()

	p1 := person("p1", "Asha", "one-a")
	_, err := s.Admit(ctx, &p1)
	require.NoError(t, err)

	faceless := person("p6", "Blurry", "none")
	_, err = s.Admit(ctx, &faceless)
	require.NoError(t, err)

	require.Len(t, events.events, 1)
	assert.Equal(t, ws.EventPersonAdmitted, events.events[0].eventType)
	data := events.events[0].data.(map[string]interface{})
	assert.Equal(t, "p1", data["person_id"])
	assert.Equal(t, "Asha", data["name"])
}

// acceptingRegistry resolves a person right before each registry write, the
// way an operator accept can land after the eligibility checks
type acceptingRegistry struct {
	*match.Coordinator
	personID string
}

func (r *acceptingRegistry) LoadAll(embeddings []domain.FaceEmbedding) {
	r.Accept(r.personID)
	r.Coordinator.LoadAll(embeddings)
}

func (r *acceptingRegistry) Add(embeddings ...domain.FaceEmbedding) {
	r.Accept(r.personID)
	r.Coordinator.Add(embeddings...)
}

func TestSynchronizer_AcceptDuringLoadStaysRemoved(t *testing.T) {
	reg := registry.New()
	coordinator := match.NewCoordinator(reg, discardLogger())
	store := &fakeStore{}
	store.set(person("p1", "Asha", "one-a"), person("p2", "Ravi", "one-b"))

	s := New(store, nil, newExtractor(), &acceptingRegistry{coordinator, "p1"}, DefaultConfig(), discardLogger(),
		WithResolved(coordinator))
	require.NoError(t, s.LoadInitial(context.Background()))

	assert.Equal(t, domain.MatchResolved, coordinator.State("p1"))
	snapshot := reg.Snapshot()
	require.Len(t, snapshot, 1)
	assert.Equal(t, "p2", snapshot[0].PersonID)
}

func TestSynchronizer_AcceptDuringAdmitStaysRemoved(t *testing.T) {
	reg := registry.New()
	coordinator := match.NewCoordinator(reg, discardLogger())
	events := &recordingBroadcaster{}

	s := New(&fakeStore{}, nil, newExtractor(), &acceptingRegistry{coordinator, "p1"}, DefaultConfig(), discardLogger(),
		WithResolved(coordinator), WithBroadcaster(events))

	p1 := person("p1", "Asha", "one-a")
	n, err := s.Admit(context.Background(), &p1)
	require.NoError(t, err)

	assert.Equal(t, 0, n)
	assert.Zero(t, reg.Len())
	assert.Empty(t, events.events)
}

// chanSubscription delivers persons from a channel and fails when told to
type chanSubscription struct {
	persons chan *domain.PersonRecord
	fail    chan error
	closed  chan struct{}
	once    sync.Once
}

func newChanSubscription() *chanSubscription {
	return &chanSubscription{
		persons: make(chan *domain.PersonRecord),
		fail:    make(chan error),
		closed:  make(chan struct{}),
	}
}

func (s *chanSubscription) Next(ctx context.Context) (*domain.PersonRecord, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-s.fail:
		return nil, err
	case p := <-s.persons:
		return p, nil
	}
}

func (s *chanSubscription) Close(ctx context.Context) {
	s.once.Do(func() { close(s.closed) })
}

func TestSynchronizer_WatchAddsInsertedPersons(t *testing.T) {
	store := &fakeStore{}
	store.set(person("p1", "Asha", "one-a"))
	reg := registry.New()
	sub := newChanSubscription()

	feed := FeedFunc(func(ctx context.Context) (Subscription, error) { return sub, nil })
	s := New(store, feed, newExtractor(), reg, DefaultConfig(), discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Watch(ctx) }()

	p2 := person("p2", "Ravi", "one-b")
	sub.persons <- &p2

	require.Eventually(t, func() bool { return reg.Len() == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, reg.Persons())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not stop")
	}

	select {
	case <-sub.closed:
	default:
		t.Error("subscription not closed")
	}
}

func TestSynchronizer_WatchReconnectsAndResyncs(t *testing.T) {
	store := &fakeStore{}
	store.set(person("p1", "Asha", "one-a"))
	reg := registry.New()

	var mu sync.Mutex
	subs := []*chanSubscription{newChanSubscription(), newChanSubscription()}
	attempts := 0
	feed := FeedFunc(func(ctx context.Context) (Subscription, error) {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		switch attempts {
		case 1:
			return subs[0], nil
		case 2:
			return nil, errors.New("connection refused")
		default:
			return subs[1], nil
		}
	})

	config := Config{ReconnectMin: 5 * time.Millisecond, ReconnectMax: 20 * time.Millisecond}
	s := New(store, feed, newExtractor(), reg, config, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Watch(ctx) }()

	require.Eventually(t, func() bool { return store.Calls() == 1 }, time.Second, 5*time.Millisecond)

	// p2 is inserted while the feed is down; only a resync can find it
	store.set(person("p1", "Asha", "one-a"), person("p2", "Ravi", "one-b"))
	subs[0].fail <- errors.New("unexpected EOF")

	require.Eventually(t, func() bool { return reg.Persons() == 2 }, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Equal(t, 3, attempts)
	mu.Unlock()

	select {
	case <-subs[0].closed:
	default:
		t.Error("broken subscription not closed")
	}

	// the new subscription is live
	p3 := person("p3", "Meena", "one-c")
	subs[1].persons <- &p3
	require.Eventually(t, func() bool { return reg.Persons() == 3 }, time.Second, 5*time.Millisecond)
}

func TestSynchronizer_RunPeriodicResync(t *testing.T) {
	store := &fakeStore{}
	store.set(person("p1", "Asha", "one-a"))
	reg := registry.New()

	s := New(store, nil, newExtractor(), reg, Config{ResyncInterval: 10 * time.Millisecond}, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.RunPeriodicResync(ctx)

	require.Eventually(t, func() bool { return reg.Len() == 1 }, time.Second, 5*time.Millisecond)
	store.set(person("p1", "Asha", "one-a"), person("p2", "Ravi", "one-b"))
	require.Eventually(t, func() bool { return reg.Len() == 2 }, time.Second, 5*time.Millisecond)
}

func TestSynchronizer_PeriodicResyncDisabled(t *testing.T) {
	s := New(&fakeStore{}, nil, newExtractor(), registry.New(), DefaultConfig(), discardLogger())

	done := make(chan struct{})
	go func() {
		s.RunPeriodicResync(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunPeriodicResync should return when disabled")
	}
}

func TestNextBackoff(t *testing.T) {
	s := New(&fakeStore{}, nil, newExtractor(), registry.New(), DefaultConfig(), discardLogger())

	assert.Equal(t, 2*time.Second, s.nextBackoff(time.Second))
	assert.Equal(t, 16*time.Second, s.nextBackoff(8*time.Second))
	assert.Equal(t, 30*time.Second, s.nextBackoff(16*time.Second))
	assert.Equal(t, 30*time.Second, s.nextBackoff(30*time.Second))
}
