package match

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/domain"
)

// Registry is the candidate set whose membership follows the match state
type Registry interface {
	LoadAll(embeddings []domain.FaceEmbedding)
	Add(embeddings ...domain.FaceEmbedding)
	RemoveByPerson(personID string) int
}

// Entry is a person with a non-default match state
type Entry struct {
	PersonID string            `json:"person_id"`
	State    domain.MatchState `json:"state"`
	Since    time.Time         `json:"since"`
	// ClaimID identifies the match event that moved the person to Pending
	ClaimID string `json:"claim_id,omitempty"`
}

// Coordinator owns the per-person match state machine:
//
//	Unseen --Claim--> Pending --Release/Research--> Unseen
//	any    --Accept-> Resolved (terminal until restart)
//
// A single mutex guards all transitions, so at most one caller wins a Claim
// for a given person.
type Coordinator struct {
	mu       sync.Mutex
	states   map[string]Entry
	registry Registry
	logger   *slog.Logger
	now      func() time.Time
}

// NewCoordinator creates a coordinator that owns admissions to and removals
// from registry
func NewCoordinator(registry Registry, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		states:   make(map[string]Entry),
		registry: registry,
		logger:   logger.With("component", "coordinator"),
		now:      time.Now,
	}
}

func (c *Coordinator) stateLocked(personID string) domain.MatchState {
	if e, ok := c.states[personID]; ok {
		return e.State
	}
	return domain.MatchUnseen
}

func (c *Coordinator) setLocked(personID string, state domain.MatchState) {
	if state == domain.MatchUnseen {
		delete(c.states, personID)
		return
	}
	c.states[personID] = Entry{PersonID: personID, State: state, Since: c.now()}
}

// Claim moves personID from Unseen to Pending on behalf of the match event
// claimID. It returns false when the person is already Pending or Resolved,
// in which case the caller must not report the match.
func (c *Coordinator) Claim(personID, claimID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stateLocked(personID) != domain.MatchUnseen {
		return false
	}
	c.states[personID] = Entry{PersonID: personID, State: domain.MatchPending, Since: c.now(), ClaimID: claimID}
	return true
}

// Release reverts a Pending person to Unseen after the dispatch of claimID
// failed. A claim taken by a later event is left alone.
func (c *Coordinator) Release(personID, claimID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.states[personID]
	if !ok || e.State != domain.MatchPending || e.ClaimID != claimID {
		return false
	}
	c.setLocked(personID, domain.MatchUnseen)
	return true
}

// Research re-enables matching for a Pending person. No-op otherwise.
func (c *Coordinator) Research(personID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stateLocked(personID) != domain.MatchPending {
		return false
	}
	c.setLocked(personID, domain.MatchUnseen)
	return true
}

// Accept marks personID Resolved and removes its embeddings from the registry.
// Calling it again is harmless and removes nothing. Returns the number of
// embeddings removed.
func (c *Coordinator) Accept(personID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stateLocked(personID) != domain.MatchResolved {
		c.setLocked(personID, domain.MatchResolved)
	}

	// registry lock is always taken after ours
	removed := 0
	if c.registry != nil {
		removed = c.registry.RemoveByPerson(personID)
	}

	c.logger.Info("person resolved", "person_id", personID, "embeddings_removed", removed)
	return removed
}

// LoadAll replaces the registry contents with embeddings, leaving out
// Resolved persons. Resolved state and registry content change under the same
// lock, so an Accept can never be undone by a concurrent reload.
func (c *Coordinator) LoadAll(embeddings []domain.FaceEmbedding) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.registry.LoadAll(c.withoutResolvedLocked(embeddings))
}

// Add appends embeddings of persons that are not Resolved
func (c *Coordinator) Add(embeddings ...domain.FaceEmbedding) {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.withoutResolvedLocked(embeddings)
	if len(kept) > 0 {
		c.registry.Add(kept...)
	}
}

func (c *Coordinator) withoutResolvedLocked(embeddings []domain.FaceEmbedding) []domain.FaceEmbedding {
	kept := make([]domain.FaceEmbedding, 0, len(embeddings))
	for _, e := range embeddings {
		if c.stateLocked(e.PersonID) != domain.MatchResolved {
			kept = append(kept, e)
		}
	}
	return kept
}

// State returns the current state of personID
func (c *Coordinator) State(personID string) domain.MatchState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked(personID)
}

// Eligible reports whether personID may be matched right now
func (c *Coordinator) Eligible(personID string) bool {
	return c.State(personID) == domain.MatchUnseen
}

// IsResolved reports whether personID was accepted
func (c *Coordinator) IsResolved(personID string) bool {
	return c.State(personID) == domain.MatchResolved
}

// Filter returns the embeddings whose person is eligible, preserving order
func (c *Coordinator) Filter(snapshot []domain.FaceEmbedding) []domain.FaceEmbedding {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.states) == 0 {
		return snapshot
	}

	eligible := make([]domain.FaceEmbedding, 0, len(snapshot))
	for _, e := range snapshot {
		if c.stateLocked(e.PersonID) == domain.MatchUnseen {
			eligible = append(eligible, e)
		}
	}
	return eligible
}

// Pending lists persons awaiting an external decision, oldest first
func (c *Coordinator) Pending() []Entry {
	return c.list(domain.MatchPending)
}

// Resolved lists accepted persons, oldest first
func (c *Coordinator) Resolved() []Entry {
	return c.list(domain.MatchResolved)
}

func (c *Coordinator) list(state domain.MatchState) []Entry {
	c.mu.Lock()
	entries := make([]Entry, 0, len(c.states))
	for _, e := range c.states {
		if e.State == state {
			entries = append(entries, e)
		}
	}
	c.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Since.Equal(entries[j].Since) {
			return entries[i].PersonID < entries[j].PersonID
		}
		return entries[i].Since.Before(entries[j].Since)
	})
	return entries
}
