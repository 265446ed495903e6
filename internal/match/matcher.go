package match

import (
	"context"

	"github.com/stepcapture/stepcapture/pkg/models"
)

// OutcomeKind is the matcher's decision for one element.
type OutcomeKind string

// Matching outcomes. Ambiguity is a designed outcome, not an error: a silent
// wrong match corrupts the knowledge base irreversibly, so near-ties go back
// to the human as a question.
const (
	OutcomeMatched   OutcomeKind = "matched"
	OutcomeAmbiguous OutcomeKind = "ambiguous"
	OutcomeUnmatched OutcomeKind = "unmatched"
)

// Outcome carries the decision plus the top candidates behind it.
type Outcome struct {
	Kind        OutcomeKind
	Best        *models.Pattern
	Second      *models.Pattern
	BestScore   float64
	SecondScore float64
}

// Toucher records a pattern selection. Implemented by the pattern store as an
// atomic usage-count increment.
type Toucher interface {
	Touch(ctx context.Context, patternID int64) error
}

// Matcher applies the decision policy over scored candidates.
type Matcher struct {
	scorer    *Scorer
	toucher   Toucher
	threshold float64
	margin    float64
}

// NewMatcher creates a matcher. threshold is the minimum best score for any
// match; margin is the minimum lead over the runner-up for an unambiguous one.
func NewMatcher(scorer *Scorer, toucher Toucher, threshold, margin float64) *Matcher {
	return &Matcher{
		scorer:    scorer,
		toucher:   toucher,
		threshold: threshold,
		margin:    margin,
	}
}

// Evaluate scores the element against the candidate set and returns the
// outcome without side effects. Candidates must arrive in tie-break order
// (usage count desc, then newest first): on equal scores the earlier
// candidate wins, which makes the field-proven pattern the stable choice.
func (m *Matcher) Evaluate(e *models.DetectedElement, candidates []*models.Pattern) Outcome {
	if len(candidates) == 0 {
		return Outcome{Kind: OutcomeUnmatched}
	}

	var best, second *models.Pattern
	bestScore, secondScore := -1.0, -1.0

	for _, p := range candidates {
		score := m.scorer.Score(e, p)
		switch {
		case score > bestScore:
			second, secondScore = best, bestScore
			best, bestScore = p, score
		case score > secondScore:
			second, secondScore = p, score
		}
	}

	if bestScore < m.threshold {
		return Outcome{Kind: OutcomeUnmatched, Best: best, Second: second, BestScore: bestScore, SecondScore: maxZero(secondScore)}
	}

	if second != nil && bestScore-secondScore < m.margin {
		return Outcome{Kind: OutcomeAmbiguous, Best: best, Second: second, BestScore: bestScore, SecondScore: secondScore}
	}

	return Outcome{Kind: OutcomeMatched, Best: best, Second: second, BestScore: bestScore, SecondScore: maxZero(secondScore)}
}

// Commit records a confident match by touching the selected pattern. The
// touch is the only mutation the matcher performs; ambiguous and unmatched
// outcomes deliberately touch nothing.
func (m *Matcher) Commit(ctx context.Context, outcome Outcome) error {
	if outcome.Kind != OutcomeMatched {
		return nil
	}
	return m.toucher.Touch(ctx, outcome.Best.ID)
}

// Match evaluates and commits in one step.
func (m *Matcher) Match(ctx context.Context, e *models.DetectedElement, candidates []*models.Pattern) (Outcome, error) {
	outcome := m.Evaluate(e, candidates)
	if err := m.Commit(ctx, outcome); err != nil {
		return outcome, err
	}
	return outcome, nil
}

func maxZero(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
