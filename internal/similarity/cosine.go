package similarity

import (
	"math"

	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/domain"
)

// Cosine calculates the cosine similarity (1 - cosine distance) between two embedding vectors.
// Returns a value between -1.0 (opposite) and 1.0 (identical); normalized face
// embeddings usually land in [0, 1]. Mismatched or zero vectors score 0.
func Cosine(embedding1, embedding2 []float64) float64 {
	if len(embedding1) != len(embedding2) || len(embedding1) == 0 {
		return 0.0
	}

	var dotProduct, norm1, norm2 float64
	for i := range embedding1 {
		dotProduct += embedding1[i] * embedding2[i]
		norm1 += embedding1[i] * embedding1[i]
		norm2 += embedding2[i] * embedding2[i]
	}

	if norm1 == 0 || norm2 == 0 {
		return 0.0
	}

	similarity := dotProduct / (math.Sqrt(norm1) * math.Sqrt(norm2))
	// Clamp to [-1, 1] to absorb floating point error
	if similarity > 1 {
		similarity = 1
	}
	if similarity < -1 {
		similarity = -1
	}

	return similarity
}

// Match is the outcome of a best-match scan
type Match struct {
	Candidate  domain.FaceEmbedding
	Similarity float64
}

// BestMatch scans candidates in order and returns the one most similar to query.
//
// Tie-break policy: a candidate replaces the current best only when its similarity is
// strictly greater, so among equal scores the earliest candidate in iteration order wins.
// The winner is accepted only if its similarity is strictly greater than threshold.
func BestMatch(candidates []domain.FaceEmbedding, query []float64, threshold float64) (Match, bool) {
	var (
		best  Match
		found bool
	)

	for _, candidate := range candidates {
		score := Cosine(query, candidate.Vector)
		if !found || score > best.Similarity {
			best = Match{Candidate: candidate, Similarity: score}
			found = true
		}
	}

	if !found || best.Similarity <= threshold {
		return Match{}, false
	}

	return best, true
}

// FirstAbove returns the first candidate whose similarity to query exceeds threshold.
func FirstAbove(candidates []domain.FaceEmbedding, query []float64, threshold float64) (Match, bool) {
	for _, candidate := range candidates {
		if score := Cosine(query, candidate.Vector); score > threshold {
			return Match{Candidate: candidate, Similarity: score}, true
		}
	}
	return Match{}, false
}
