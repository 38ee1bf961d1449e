package index

import (
	"fmt"
	"math"
)

// NoMatchError reports a failed lookup together with the best distance seen,
// which operators use to tune the acceptance threshold. It deliberately does
// not carry the nearest key: a rejected match must not leak whose face was
// closest.
type NoMatchError struct {
	BestDistance float64
}

func (e *NoMatchError) Error() string {
	if math.IsInf(e.BestDistance, 1) {
		return "no identities enrolled"
	}
	return fmt.Sprintf("face not recognized, best distance %.4f", e.BestDistance)
}

// Matcher performs nearest-neighbor identity lookups over an Index.
//
// The scan is a plain linear pass, O(n*d) per query. That is fine for the
// kiosk fleets this serves; it becomes the bottleneck long before anything
// else if enrollment grows past a few thousand identities.
type Matcher struct {
	index     *Index
	threshold float64
}

// NewMatcher creates a matcher with the given acceptance threshold.
func NewMatcher(ix *Index, threshold float64) *Matcher {
	return &Matcher{index: ix, threshold: threshold}
}

// Match returns the key of the enrolled embedding nearest to query, along
// with its Euclidean distance. The match is accepted only when the distance
// is strictly below the threshold; a distance exactly at the threshold is a
// miss. When several keys share the minimum distance the winner depends on
// map iteration order; which one wins is undefined but harmless, since equal
// distances mean the embeddings are indistinguishable anyway.
func (m *Matcher) Match(query []float32) (string, float64, error) {
	bestKey := ""
	bestDistance := math.Inf(1)

	m.index.scan(func(key string, embedding []float32) {
		d := EuclideanDistance(query, embedding)
		if d < bestDistance {
			bestDistance = d
			bestKey = key
		}
	})

	if bestKey == "" || bestDistance >= m.threshold {
		return "", bestDistance, &NoMatchError{BestDistance: bestDistance}
	}
	return bestKey, bestDistance, nil
}

// EuclideanDistance computes the L2 distance between two vectors.
// Mismatched or empty vectors report an infinite distance so they can
// never be accepted as a match.
func EuclideanDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}

	var sum float64
	for i := range a {
		diff := float64(a[i]) - float64(b[i])
		sum += diff * diff
	}
	return math.Sqrt(sum)
}
