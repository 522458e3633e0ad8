package domain

import (
	"time"

	"github.com/google/uuid"
)

// MatchState is the notification lifecycle state of a person
type MatchState int

const (
	// MatchUnseen persons are eligible for matching
	MatchUnseen MatchState = iota
	// MatchPending persons were reported and await an operator decision
	MatchPending
	// MatchResolved persons were accepted and are never matched again
	MatchResolved
)

func (s MatchState) String() string {
	switch s {
	case MatchUnseen:
		return "unseen"
	case MatchPending:
		return "pending"
	case MatchResolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler
func (s MatchState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// SearchAction is an operator decision on a pending match
type SearchAction string

const (
	// ActionAccept confirms the match; the person is no longer searched for
	ActionAccept SearchAction = "accept"
	// ActionResearch rejects the match; the person becomes matchable again
	ActionResearch SearchAction = "research"
)

// Valid reports whether the action is known
func (a SearchAction) Valid() bool {
	return a == ActionAccept || a == ActionResearch
}

// MatchEvent is the payload reported downstream when a camera recognizes a person
type MatchEvent struct {
	ID         uuid.UUID `json:"id"`
	PersonID   string    `json:"person_id"`
	Name       string    `json:"name"`
	CameraID   string    `json:"camera_id"`
	Snapshot   string    `json:"snapshot"` // base64 encoded JPEG of the face region
	Similarity float64   `json:"similarity"`
	DetectedAt time.Time `json:"detected_at"`
}
