package domain

import "math"

// Query limits.
const (
	DefaultQueryLimit = 5
	MinQueryLimit     = 1
	MaxQueryLimit     = 20
)

// Placeholders substituted for missing required result metadata.
const (
	UnknownFilename = "Unknown"
	UnknownValue    = "unknown"
)

// QueryRequest is a semantic query from an agent-facing interface.
// A nil ProjectName means no filter; a nil Limit means the default.
type QueryRequest struct {
	Query       string  `json:"query"`
	ProjectName *string `json:"project_name,omitempty"`
	Limit       *int    `json:"limit,omitempty"`
}

// EffectiveLimit returns the requested limit or the default.
func (r QueryRequest) EffectiveLimit() int {
	if r.Limit == nil {
		return DefaultQueryLimit
	}
	return *r.Limit
}

// QueryResult is one ranked hit.
type QueryResult struct {
	Text           string         `json:"text"`
	Metadata       map[string]any `json:"metadata"`
	RelevanceScore float64        `json:"relevance_score"`
}

// QueryResponse is the result of a semantic query, ordered by
// descending relevance.
type QueryResponse struct {
	Query       string        `json:"query"`
	ResultCount int           `json:"result_count"`
	Results     []QueryResult `json:"results"`
}

// RelevanceScore maps a cosine distance to [0,1]: 1 - distance, floored
// at zero. A missing or NaN distance scores zero.
func RelevanceScore(distance *float64) float64 {
	if distance == nil || math.IsNaN(*distance) {
		return 0
	}
	score := 1 - *distance
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// ClampTopK bounds k into [MinQueryLimit, MaxQueryLimit].
func ClampTopK(k int) int {
	if k < MinQueryLimit {
		return MinQueryLimit
	}
	if k > MaxQueryLimit {
		return MaxQueryLimit
	}
	return k
}
