// Package match scores detected elements against candidate patterns and
// decides match, ambiguous, or unmatched.
package match

import (
	"math"

	"github.com/stepcapture/stepcapture/pkg/models"
	"github.com/stepcapture/stepcapture/pkg/similarity"
)

// Weights combine the three similarity signals. They must sum to 1 with text
// dominant: text is the strongest language-independent identity signal for UI
// elements.
type Weights struct {
	Text    float64
	Spatial float64
	Visual  float64
}

// DefaultWeights are the tuned defaults; deployments override via config.
func DefaultWeights() Weights {
	return Weights{Text: 0.5, Spatial: 0.3, Visual: 0.2}
}

// Scorer computes similarity scores for one screenshot's geometry.
type Scorer struct {
	weights  Weights
	diagonal float64
}

// NewScorer creates a scorer for a screenshot of the given pixel dimensions.
// The diagonal normalizes spatial distance so scores are resolution-independent.
func NewScorer(weights Weights, screenWidth, screenHeight float64) *Scorer {
	diagonal := math.Hypot(screenWidth, screenHeight)
	if diagonal <= 0 {
		diagonal = 1
	}
	return &Scorer{weights: weights, diagonal: diagonal}
}

// Score returns the weighted similarity of an element to a pattern in [0,1].
func (s *Scorer) Score(e *models.DetectedElement, p *models.Pattern) float64 {
	text := similarity.Text(e.Text, p.ReferenceText)
	spatial := s.spatialScore(e.Box, p.ReferenceBox)
	visual := visualScore(e.VisualFeatures, p.VisualFeatures)

	return s.weights.Text*text + s.weights.Spatial*spatial + s.weights.Visual*visual
}

// spatialScore is 1 minus the center distance normalized by the screenshot
// diagonal, floored at 0.
func (s *Scorer) spatialScore(a, b models.BoundingBox) float64 {
	ax, ay := a.Center()
	bx, by := b.Center()
	dist := math.Hypot(ax-bx, ay-by)

	score := 1.0 - dist/s.diagonal
	if score < 0 {
		return 0
	}
	return score
}

// visualScore compares opaque visual descriptors: 1.0 on a match, 0.5 when
// descriptors are absent on either side (neutral, not penalized), 0.0 on
// mismatch.
func visualScore(a, b models.JSONStringMap) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0.5
	}
	if a.Equal(b) {
		return 1.0
	}
	return 0.0
}
