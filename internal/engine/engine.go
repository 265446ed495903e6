// Package engine orchestrates the per-screenshot matching pipeline and the
// asynchronous training loop.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/stepcapture/stepcapture/internal/assemble"
	"github.com/stepcapture/stepcapture/internal/config"
	db "github.com/stepcapture/stepcapture/internal/db/gorm"
	"github.com/stepcapture/stepcapture/internal/match"
	"github.com/stepcapture/stepcapture/internal/normalize"
	"github.com/stepcapture/stepcapture/internal/training"
	"github.com/stepcapture/stepcapture/pkg/models"
)

// ErrStoreUnavailable marks a knowledge-base failure. Matching cannot proceed
// without candidate lookup, so the whole batch fails and must be retried
// wholesale rather than partially applied.
var ErrStoreUnavailable = errors.New("pattern store unavailable")

// Engine wires the normalizer, matcher, question generator, answer
// integrator, and assembler over the shared stores.
type Engine struct {
	cfg        *config.Config
	patterns   *db.PatternStore
	elements   *db.ElementStore
	training   *db.TrainingStore
	generator  *training.Generator
	integrator *training.Integrator
	metrics    *Metrics
}

// New creates an engine over an open store.
func New(cfg *config.Config, store *db.Store) *Engine {
	patterns := db.NewPatternStore(store)
	elements := db.NewElementStore(store)
	trainingStore := db.NewTrainingStore(store)

	return &Engine{
		cfg:        cfg,
		patterns:   patterns,
		elements:   elements,
		training:   trainingStore,
		generator:  training.NewGenerator(trainingStore, patterns),
		integrator: training.NewIntegrator(patterns, trainingStore, elements),
		metrics:    NewMetrics(),
	}
}

// Metrics exposes the engine's counters.
func (e *Engine) Metrics() *Metrics {
	return e.metrics
}

// AnalyzeParams is one screenshot's vision-analysis output plus its scope.
type AnalyzeParams struct {
	OwnerID      string
	Application  string
	ScreenshotID string
	ScreenWidth  float64
	ScreenHeight float64
	Elements     []normalize.RawElement
}

// AnalyzeResult is the outcome of one analysis batch.
type AnalyzeResult struct {
	ScreenshotID string                     `json:"screenshot_id"`
	Annotations  []models.Annotation        `json:"annotations"`
	Questions    []*models.TrainingQuestion `json:"questions"`
	Warnings     []string                   `json:"warnings,omitempty"`
	Matched      int                        `json:"matched"`
	Ambiguous    int                        `json:"ambiguous"`
	Unmatched    int                        `json:"unmatched"`
}

// AnalyzeScreenshot runs the full pipeline for one screenshot: normalize,
// match against the knowledge base, raise questions for what the matcher
// could not resolve, and assemble matched elements in reading order.
//
// Scoring runs concurrently per element; it is pure and read-only. All store
// writes (bindings, touches, questions) happen sequentially afterward so the
// result is deterministic for a fixed store snapshot.
func (e *Engine) AnalyzeScreenshot(ctx context.Context, params AnalyzeParams) (*AnalyzeResult, error) {
	if params.ScreenshotID == "" {
		params.ScreenshotID = uuid.NewString()
	}

	elems, warnings := normalize.Batch(params.Elements, params.ScreenshotID, params.OwnerID, params.Application)
	e.metrics.RecordBatch(len(params.Elements), len(params.Elements)-len(elems))
	for _, w := range warnings {
		log.Warn().Str("screenshot", params.ScreenshotID).Msg("dropped malformed element: " + w)
	}

	result := &AnalyzeResult{
		ScreenshotID: params.ScreenshotID,
		Annotations:  []models.Annotation{},
		Questions:    []*models.TrainingQuestion{},
		Warnings:     warnings,
	}
	if len(elems) == 0 {
		return result, nil
	}

	if err := e.elements.InsertBatch(ctx, elems); err != nil {
		return nil, storeErr("persist elements", err)
	}

	weights := match.Weights{
		Text:    e.cfg.TextWeight,
		Spatial: e.cfg.SpatialWeight,
		Visual:  e.cfg.VisualWeight,
	}
	scorer := match.NewScorer(weights, params.ScreenWidth, params.ScreenHeight)
	matcher := match.NewMatcher(scorer, e.patterns, e.cfg.MatchThreshold, e.cfg.AmbiguityMargin)

	outcomes := make([]match.Outcome, len(elems))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.MatchConcurrency)
	for i, elem := range elems {
		// Detection confidence is a matching-eligibility gate only; the
		// element still flows through as a question.
		if elem.Confidence < e.cfg.MinMatchConfidence {
			outcomes[i] = match.Outcome{Kind: match.OutcomeUnmatched}
			continue
		}

		g.Go(func() error {
			candidates, err := e.patterns.Candidates(gctx, elem.OwnerID, elem.Application, elem.Type)
			if err != nil {
				return storeErr("candidate lookup", err)
			}
			outcomes[i] = matcher.Evaluate(elem, candidates)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var annotations []models.Annotation
	for i, elem := range elems {
		outcome := outcomes[i]
		e.metrics.RecordOutcome(string(outcome.Kind))

		switch outcome.Kind {
		case match.OutcomeMatched:
			result.Matched++
			if err := matcher.Commit(ctx, outcome); err != nil {
				return nil, storeErr("touch pattern", err)
			}
			if err := e.elements.BindPattern(ctx, elem.ID, outcome.Best.ID, outcome.BestScore, models.ElementStatusMatched); err != nil {
				return nil, storeErr("bind pattern", err)
			}
			annotations = append(annotations, annotationFor(elem, outcome.Best))

		case match.OutcomeAmbiguous, match.OutcomeUnmatched:
			if outcome.Kind == match.OutcomeAmbiguous {
				result.Ambiguous++
			} else {
				result.Unmatched++
			}
			question, err := e.askQuestion(ctx, elem, outcome, params.ScreenWidth, params.ScreenHeight)
			if err != nil {
				return nil, err
			}
			result.Questions = append(result.Questions, question)
		}
	}

	result.Annotations = assemble.ReadingOrder(annotations, e.cfg.RowTolerance)
	return result, nil
}

// askQuestion generates and persists the single question for an unresolved
// element and moves the element to question_pending.
func (e *Engine) askQuestion(ctx context.Context, elem *models.DetectedElement, outcome match.Outcome, screenWidth, screenHeight float64) (*models.TrainingQuestion, error) {
	question, err := e.generator.Generate(ctx, elem, outcome, screenWidth, screenHeight)
	if err != nil {
		return nil, storeErr("generate question", err)
	}

	created, err := e.training.InsertQuestion(ctx, question)
	if err != nil {
		return nil, storeErr("insert question", err)
	}
	if err := e.elements.SetStatus(ctx, elem.ID, models.ElementStatusQuestionPending); err != nil {
		return nil, storeErr("mark element pending", err)
	}

	e.metrics.RecordQuestionAsked()
	return created, nil
}

// IntegrateAnswer folds one human answer back into the knowledge base and
// returns the pattern the element resolved to.
func (e *Engine) IntegrateAnswer(ctx context.Context, questionID int64, answerText, metadata string) (*models.Pattern, error) {
	pattern, err := e.integrator.Integrate(ctx, questionID, answerText, metadata)
	if err != nil {
		return nil, err
	}

	e.metrics.RecordQuestionAnswered()
	if pattern.UsageCount == 1 {
		e.metrics.RecordPatternCreated()
	}
	return pattern, nil
}

// SkipQuestion dismisses a pending question; the element leaves the pipeline
// and is excluded from assembly.
func (e *Engine) SkipQuestion(ctx context.Context, questionID int64) error {
	question, err := e.training.GetQuestion(ctx, questionID)
	if err != nil {
		return err
	}
	if err := e.training.Skip(ctx, questionID); err != nil {
		return err
	}
	if err := e.elements.SetStatus(ctx, question.ElementID, models.ElementStatusSkipped); err != nil {
		return storeErr("mark element skipped", err)
	}

	e.metrics.RecordQuestionSkipped()
	return nil
}

// DeactivatePattern soft-deletes a pattern after an explicit human edit.
// Existing element bindings stay for audit; the pattern just stops matching.
func (e *Engine) DeactivatePattern(ctx context.Context, patternID int64) error {
	return e.patterns.Deactivate(ctx, patternID)
}

// PendingQuestions lists one owner's open questions, highest priority first.
func (e *Engine) PendingQuestions(ctx context.Context, ownerID string, limit int) ([]*models.TrainingQuestion, error) {
	questions, err := e.training.PendingByOwner(ctx, ownerID, limit)
	if err != nil {
		return nil, storeErr("pending questions", err)
	}
	return questions, nil
}

// Annotations returns the reading-ordered annotation list for a screenshot,
// covering elements matched directly and those resolved through answers.
// Skipped and still-pending elements are excluded.
func (e *Engine) Annotations(ctx context.Context, screenshotID string) ([]models.Annotation, error) {
	elems, err := e.elements.GetByScreenshot(ctx, screenshotID)
	if err != nil {
		return nil, storeErr("load elements", err)
	}

	patternCache := make(map[int64]*models.Pattern)
	var annotations []models.Annotation
	for _, elem := range elems {
		if elem.Status != models.ElementStatusMatched || !elem.PatternID.Valid {
			continue
		}

		pattern, ok := patternCache[elem.PatternID.Int64]
		if !ok {
			pattern, err = e.patterns.GetByID(ctx, elem.PatternID.Int64)
			if err != nil {
				return nil, storeErr(fmt.Sprintf("load pattern %d", elem.PatternID.Int64), err)
			}
			patternCache[elem.PatternID.Int64] = pattern
		}
		annotations = append(annotations, annotationFor(elem, pattern))
	}

	return assemble.ReadingOrder(annotations, e.cfg.RowTolerance), nil
}

// annotationFor binds one element to its pattern's meaning.
func annotationFor(elem *models.DetectedElement, p *models.Pattern) models.Annotation {
	return models.Annotation{
		ElementID:   elem.ID,
		PatternID:   p.ID,
		ElementType: elem.Type,
		Box:         elem.Box,
		Text:        elem.Text,
		Purpose:     p.Purpose,
		Action:      p.Action,
	}
}

// storeErr wraps a knowledge-base failure so callers can detect the
// batch-fatal condition with errors.Is.
func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
