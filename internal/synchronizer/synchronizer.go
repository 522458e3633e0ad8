package synchronizer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/cache"
	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/domain"
	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/provider"
	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/ws"
)

// Store lists the persons currently being searched for
type Store interface {
	ListSearching(ctx context.Context) ([]domain.PersonRecord, error)
}

// Subscription yields inserted persons in commit order
type Subscription interface {
	Next(ctx context.Context) (*domain.PersonRecord, error)
	Close(ctx context.Context)
}

// Feed opens subscriptions to the store's insert events
type Feed interface {
	Subscribe(ctx context.Context) (Subscription, error)
}

// FeedFunc adapts a function to Feed
type FeedFunc func(ctx context.Context) (Subscription, error)

func (f FeedFunc) Subscribe(ctx context.Context) (Subscription, error) {
	return f(ctx)
}

// Registry receives admitted embeddings. In production this is the match
// coordinator, which drops Resolved persons under its own lock.
type Registry interface {
	LoadAll(embeddings []domain.FaceEmbedding)
	Add(embeddings ...domain.FaceEmbedding)
}

// ResolvedChecker reports persons that were accepted during this process lifetime
type ResolvedChecker interface {
	IsResolved(personID string) bool
}

// EmbeddingCache stores extraction results per enrollment image
type EmbeddingCache interface {
	GetMultiple(ctx context.Context, imageIDs []string) (map[string]cache.Entry, error)
	Set(ctx context.Context, entry cache.Entry) error
}

// Broadcaster publishes admissions to live dashboards
type Broadcaster interface {
	Broadcast(eventType ws.EventType, data interface{})
}

// Config tunes reconnection and periodic resync
type Config struct {
	ResyncInterval time.Duration // 0 disables periodic resync
	ReconnectMin   time.Duration
	ReconnectMax   time.Duration
}

// DefaultConfig reconnects after 1s, doubling up to 30s
func DefaultConfig() Config {
	return Config{
		ReconnectMin: time.Second,
		ReconnectMax: 30 * time.Second,
	}
}

// Synchronizer keeps the candidate registry in line with the record store
type Synchronizer struct {
	store     Store
	feed      Feed
	extractor provider.FaceExtractor
	registry  Registry
	resolved  ResolvedChecker
	cache     EmbeddingCache
	events    Broadcaster
	config    Config
	logger    *slog.Logger

	// mu serializes full reloads with incremental admissions
	mu       sync.Mutex
	admitted map[string]struct{}
}

// Option configures optional Synchronizer collaborators
type Option func(*Synchronizer)

// WithCache enables the embedding cache
func WithCache(c EmbeddingCache) Option {
	return func(s *Synchronizer) {
		s.cache = c
	}
}

// WithResolved skips persons accepted during this process lifetime
func WithResolved(r ResolvedChecker) Option {
	return func(s *Synchronizer) {
		s.resolved = r
	}
}

// WithBroadcaster announces persons added by the insert feed
func WithBroadcaster(b Broadcaster) Option {
	return func(s *Synchronizer) {
		s.events = b
	}
}

// New creates a Synchronizer
func New(store Store, feed Feed, extractor provider.FaceExtractor, registry Registry, config Config, logger *slog.Logger, opts ...Option) *Synchronizer {
	if config.ReconnectMin <= 0 {
		config.ReconnectMin = DefaultConfig().ReconnectMin
	}
	if config.ReconnectMax < config.ReconnectMin {
		config.ReconnectMax = config.ReconnectMin
	}

	s := &Synchronizer{
		store:     store,
		feed:      feed,
		extractor: extractor,
		registry:  registry,
		config:    config,
		logger:    logger.With("component", "synchronizer"),
		admitted:  make(map[string]struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// LoadInitial replaces the registry with the embeddings of every searching person
func (s *Synchronizer) LoadInitial(ctx context.Context) error {
	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	persons, err := s.store.ListSearching(ctx)
	if err != nil {
		return fmt.Errorf("load searching persons: %w", err)
	}

	var all []domain.FaceEmbedding
	admitted := make(map[string]struct{}, len(persons))
	for i := range persons {
		person := &persons[i]
		if !s.eligible(person) {
			continue
		}

		embeddings, err := s.embeddingsFor(ctx, person)
		if err != nil {
			return err
		}
		if len(embeddings) == 0 {
			s.logger.Warn("person has no usable enrollment image", "person_id", person.ID)
			continue
		}

		admitted[person.ID] = struct{}{}
		all = append(all, embeddings...)
	}

	// a person may have been accepted while extraction ran
	if s.resolved != nil {
		kept := all[:0]
		for _, e := range all {
			if s.resolved.IsResolved(e.PersonID) {
				delete(admitted, e.PersonID)
				continue
			}
			kept = append(kept, e)
		}
		all = kept
	}

	s.registry.LoadAll(all)
	s.admitted = admitted

	s.logger.Info("registry loaded",
		"persons", len(admitted),
		"embeddings", len(all),
		"duration", time.Since(start),
	)
	return nil
}

// Resync performs a full reload, closing any gap left by a lost feed
func (s *Synchronizer) Resync(ctx context.Context) error {
	return s.LoadInitial(ctx)
}

// Admit extracts and adds one inserted person. Persons that are not
// searching, already admitted or resolved are ignored.
func (s *Synchronizer) Admit(ctx context.Context, person *domain.PersonRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.eligible(person) {
		return 0, nil
	}
	if _, ok := s.admitted[person.ID]; ok {
		return 0, nil
	}

	embeddings, err := s.embeddingsFor(ctx, person)
	if err != nil {
		return 0, err
	}
	if len(embeddings) == 0 {
		s.logger.Warn("inserted person has no usable enrollment image", "person_id", person.ID)
		return 0, nil
	}

	s.registry.Add(embeddings...)
	if s.resolved != nil && s.resolved.IsResolved(person.ID) {
		// accepted while extraction ran; the registry dropped the embeddings
		return 0, nil
	}
	s.admitted[person.ID] = struct{}{}

	s.logger.Info("person added to live search",
		"person_id", person.ID,
		"name", person.FullName,
		"embeddings", len(embeddings),
	)
	if s.events != nil {
		s.events.Broadcast(ws.EventPersonAdmitted, map[string]interface{}{
			"person_id":  person.ID,
			"name":       person.FullName,
			"embeddings": len(embeddings),
		})
	}
	return len(embeddings), nil
}

func (s *Synchronizer) eligible(person *domain.PersonRecord) bool {
	if !person.IsSearching() {
		return false
	}
	return s.resolved == nil || !s.resolved.IsResolved(person.ID)
}

// embeddingsFor returns one embedding per enrollment image holding exactly one
// face, in image order. Extraction failures skip the image.
func (s *Synchronizer) embeddingsFor(ctx context.Context, person *domain.PersonRecord) ([]domain.FaceEmbedding, error) {
	cached := s.cachedEntries(ctx, person)

	var embeddings []domain.FaceEmbedding
	for _, img := range person.Images {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		entry, ok := cached[img.ID]
		if !ok || img.ID == "" {
			result, err := s.extractor.Extract(ctx, img.Data)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				s.logger.Warn("enrollment image extraction failed",
					"person_id", person.ID,
					"image_id", img.ID,
					"error", err,
				)
				continue
			}

			entry = cache.Entry{ImageID: img.ID, PersonID: person.ID, FaceCount: result.FaceCount}
			if result.SingleFace() {
				entry.Embedding = result.Embedding
			}
			s.storeEntry(ctx, entry)
		}

		if entry.FaceCount != 1 || len(entry.Embedding) == 0 {
			continue
		}

		embeddings = append(embeddings, domain.FaceEmbedding{
			PersonID:    person.ID,
			DisplayName: person.FullName,
			Vector:      entry.Embedding,
		})
	}

	return embeddings, nil
}

func (s *Synchronizer) cachedEntries(ctx context.Context, person *domain.PersonRecord) map[string]cache.Entry {
	if s.cache == nil {
		return nil
	}

	ids := make([]string, 0, len(person.Images))
	for _, img := range person.Images {
		if img.ID != "" {
			ids = append(ids, img.ID)
		}
	}

	entries, err := s.cache.GetMultiple(ctx, ids)
	if err != nil {
		s.logger.Warn("embedding cache read failed", "person_id", person.ID, "error", err)
		return nil
	}
	return entries
}

func (s *Synchronizer) storeEntry(ctx context.Context, entry cache.Entry) {
	if s.cache == nil || entry.ImageID == "" {
		return
	}
	if err := s.cache.Set(ctx, entry); err != nil {
		s.logger.Warn("embedding cache write failed", "image_id", entry.ImageID, "error", err)
	}
}
