package domain

import "time"

// PersonStatus is the lifecycle status of a person record in the external store
type PersonStatus string

const (
	// PersonStatusSearching marks a person as actively wanted
	PersonStatusSearching PersonStatus = "searching"
	// PersonStatusResolved marks a person as found
	PersonStatusResolved PersonStatus = "resolved"
)

// PersonRecord is a person as stored in the external record store
type PersonRecord struct {
	ID        string            `json:"id"`
	FullName  string            `json:"full_name"`
	Status    PersonStatus      `json:"status"`
	Images    []EnrollmentImage `json:"-"`
	CreatedAt time.Time         `json:"created_at"`
}

// IsSearching reports whether the person is eligible for admission to the registry
func (p *PersonRecord) IsSearching() bool {
	return p.Status == PersonStatusSearching
}

// EnrollmentImage is one of the ordered reference photos of a person
type EnrollmentImage struct {
	ID          string `json:"id"`
	Position    int    `json:"position"`
	Data        []byte `json:"-"`
	ContentType string `json:"content_type"`
}

// FaceEmbedding associates a face vector with the person it was enrolled for.
// Values are never mutated after creation.
type FaceEmbedding struct {
	PersonID    string    `json:"person_id"`
	DisplayName string    `json:"display_name"`
	Vector      []float64 `json:"-"`
}
