// Package vectormath provides exact nearest-neighbour ranking for the
// stores that keep vectors without a native index.
package vectormath

import (
	"math"
	"sort"

	"github.com/custodia-labs/contextkb/internal/core/domain"
)

// CosineDistance returns 1 - cosine similarity, in [0, 2].
// A zero vector is treated as maximally distant.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 2
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if sim > 1 {
		sim = 1
	} else if sim < -1 {
		sim = -1
	}
	return 1 - sim
}

// Ranker keeps the k closest matches seen so far.
type Ranker struct {
	k       int
	query   []float32
	matches []domain.VectorMatch
}

// NewRanker creates a ranker for query returning at most k matches.
func NewRanker(query []float32, k int) *Ranker {
	if k < 0 {
		k = 0
	}
	return &Ranker{k: k, query: query}
}

// Add scores a candidate against the query.
func (r *Ranker) Add(id, text string, embedding []float32, metadata domain.Metadata) {
	d := CosineDistance(r.query, embedding)
	r.matches = append(r.matches, domain.VectorMatch{
		ID:       id,
		Text:     text,
		Metadata: metadata,
		Distance: &d,
	})
}

// Results returns matches in ascending distance order, ties broken by ID.
func (r *Ranker) Results() []domain.VectorMatch {
	sort.SliceStable(r.matches, func(i, j int) bool {
		di, dj := *r.matches[i].Distance, *r.matches[j].Distance
		if di != dj {
			return di < dj
		}
		return r.matches[i].ID < r.matches[j].ID
	})
	if len(r.matches) > r.k {
		r.matches = r.matches[:r.k]
	}
	return r.matches
}
