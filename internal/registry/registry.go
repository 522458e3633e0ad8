package registry

import (
	"sync"

	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/domain"
)

// Registry holds the embeddings of every person currently being searched for.
// Several embeddings may belong to the same person. Readers work on snapshots,
// so a scan never observes a partially applied update.
type Registry struct {
	mu         sync.RWMutex
	embeddings []domain.FaceEmbedding
}

// New creates an empty registry
func New() *Registry {
	return &Registry{}
}

// LoadAll replaces the whole set
func (r *Registry) LoadAll(embeddings []domain.FaceEmbedding) {
	loaded := make([]domain.FaceEmbedding, len(embeddings))
	copy(loaded, embeddings)

	r.mu.Lock()
	r.embeddings = loaded
	r.mu.Unlock()
}

// Add appends embeddings
func (r *Registry) Add(embeddings ...domain.FaceEmbedding) {
	if len(embeddings) == 0 {
		return
	}

	r.mu.Lock()
	r.embeddings = append(r.embeddings, embeddings...)
	r.mu.Unlock()
}

// RemoveByPerson deletes every embedding of personID and returns how many were removed
func (r *Registry) RemoveByPerson(personID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := make([]domain.FaceEmbedding, 0, len(r.embeddings))
	for _, e := range r.embeddings {
		if e.PersonID != personID {
			kept = append(kept, e)
		}
	}

	removed := len(r.embeddings) - len(kept)
	r.embeddings = kept
	return removed
}

// Snapshot returns a copy of the current set in insertion order
func (r *Registry) Snapshot() []domain.FaceEmbedding {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := make([]domain.FaceEmbedding, len(r.embeddings))
	copy(snapshot, r.embeddings)
	return snapshot
}

// Len returns the number of embeddings
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.embeddings)
}

// Persons returns the number of distinct persons
func (r *Registry) Persons() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{}, len(r.embeddings))
	for _, e := range r.embeddings {
		seen[e.PersonID] = struct{}{}
	}
	return len(seen)
}
