package training

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/stepcapture/stepcapture/pkg/models"
	"github.com/stepcapture/stepcapture/pkg/similarity"
)

// AnswerCompatibility is the minimum token overlap between an answer and an
// ambiguous candidate's purpose/action for the answer to count as confirming
// that candidate instead of founding a new pattern.
const AnswerCompatibility = 0.5

// PatternOps is the slice of the pattern store the integrator needs.
type PatternOps interface {
	GetByID(ctx context.Context, id int64) (*models.Pattern, error)
	Insert(ctx context.Context, p *models.Pattern) (*models.Pattern, error)
	Touch(ctx context.Context, id int64) error
}

// AnswerOps is the slice of the training store the integrator needs.
type AnswerOps interface {
	GetQuestion(ctx context.Context, id int64) (*models.TrainingQuestion, error)
	Answer(ctx context.Context, questionID int64, answerText, metadata string) (*models.TrainingAnswer, error)
}

// ElementOps is the slice of the element store the integrator needs.
type ElementOps interface {
	GetByID(ctx context.Context, id string) (*models.DetectedElement, error)
	BindPattern(ctx context.Context, elementID string, patternID int64, score float64, status models.ElementStatus) error
}

// Integrator folds a human training answer into the knowledge base, closing
// the training loop: the next screenshot of the same element should match
// without a question.
type Integrator struct {
	patterns PatternOps
	answers  AnswerOps
	elements ElementOps
}

// NewIntegrator creates an answer integrator.
func NewIntegrator(patterns PatternOps, answers AnswerOps, elements ElementOps) *Integrator {
	return &Integrator{patterns: patterns, answers: answers, elements: elements}
}

// Integrate records the answer and produces the pattern it resolves to.
//
// For a question born from an ambiguous match, the answer is first checked
// against the two candidates: if it is compatible with one, that candidate is
// touched instead of creating a new pattern — what actually happened was a
// correct match the matcher under-scored, and duplicating it would make every
// future match of this element ambiguous too. Otherwise a new pattern is
// seeded from the element and the answer.
//
// Duplicate submissions surface the store's ErrOrphanedAnswer untouched.
func (in *Integrator) Integrate(ctx context.Context, questionID int64, answerText, metadata string) (*models.Pattern, error) {
	question, err := in.answers.GetQuestion(ctx, questionID)
	if err != nil {
		return nil, fmt.Errorf("load question %d: %w", questionID, err)
	}

	elem, err := in.elements.GetByID(ctx, question.ElementID)
	if err != nil {
		return nil, fmt.Errorf("load element %s: %w", question.ElementID, err)
	}

	// The transition pending -> answered is the idempotency gate; it happens
	// before any pattern mutation.
	if _, err := in.answers.Answer(ctx, questionID, answerText, metadata); err != nil {
		return nil, err
	}

	if confirmed := in.confirmCandidate(ctx, question, answerText); confirmed != nil {
		if err := in.patterns.Touch(ctx, confirmed.ID); err != nil {
			return nil, fmt.Errorf("touch confirmed pattern %d: %w", confirmed.ID, err)
		}
		if err := in.elements.BindPattern(ctx, elem.ID, confirmed.ID, question.BestScore, models.ElementStatusMatched); err != nil {
			return nil, err
		}
		confirmed.UsageCount++
		return confirmed, nil
	}

	pattern := models.NewPattern(elem, answerText, actionFor(question, elem, answerText), metadata)
	created, err := in.patterns.Insert(ctx, pattern)
	if err != nil {
		return nil, fmt.Errorf("insert pattern: %w", err)
	}

	if err := in.elements.BindPattern(ctx, elem.ID, created.ID, 1.0, models.ElementStatusMatched); err != nil {
		return nil, err
	}
	return created, nil
}

// confirmCandidate returns the ambiguous candidate the answer confirms, or
// nil when the answer describes something new.
func (in *Integrator) confirmCandidate(ctx context.Context, q *models.TrainingQuestion, answerText string) *models.Pattern {
	for _, id := range []sql.NullInt64{q.BestPatternID, q.SecondPatternID} {
		if !id.Valid {
			continue
		}
		candidate, err := in.patterns.GetByID(ctx, id.Int64)
		if err != nil || !candidate.IsActive {
			continue
		}
		if answerCompatible(answerText, candidate) {
			return candidate
		}
	}
	return nil
}

// answerCompatible checks the answer against a candidate's purpose and action
// by containment and token overlap.
func answerCompatible(answer string, p *models.Pattern) bool {
	if similarity.Contains(p.Purpose, answer) || similarity.Contains(p.Action, answer) {
		return true
	}

	answerTokens := similarity.TokenSet(answer)
	if similarity.Jaccard(answerTokens, similarity.TokenSet(p.Purpose)) >= AnswerCompatibility {
		return true
	}
	return p.Action != "" && similarity.Jaccard(answerTokens, similarity.TokenSet(p.Action)) >= AnswerCompatibility
}

// actionFor seeds the action when the human was asked about behavior, and
// also for actionable elements answered with a purpose: "Submits the order"
// on a button describes its effect.
func actionFor(q *models.TrainingQuestion, elem *models.DetectedElement, answerText string) string {
	if q.Type == models.QuestionTypeAction {
		return answerText
	}
	switch elem.Type {
	case models.ElementTypeButton, models.ElementTypeLink, models.ElementTypeMenu:
		return answerText
	}
	return ""
}

func nullInt64(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: true}
}
