package engine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"
	"gorm.io/gorm/logger"

	"github.com/stepcapture/stepcapture/internal/config"
	db "github.com/stepcapture/stepcapture/internal/db/gorm"
	"github.com/stepcapture/stepcapture/internal/normalize"
	"github.com/stepcapture/stepcapture/pkg/models"
)

type EngineSuite struct {
	suite.Suite
	store  *db.Store
	engine *Engine
	ctx    context.Context
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	store, err := db.NewStore(db.Config{
		Path:     filepath.Join(s.T().TempDir(), "test.db"),
		MaxConns: 2,
		LogLevel: logger.Silent,
	})
	s.Require().NoError(err)

	s.store = store
	s.engine = New(config.Default(), store)
	s.ctx = context.Background()
}

func (s *EngineSuite) TearDownTest() {
	if s.store != nil {
		s.store.Close()
	}
}

func rawButton(text string, top, left float64) normalize.RawElement {
	return normalize.RawElement{
		Type:        "button",
		BoundingBox: models.BoundingBox{Top: top, Left: left, Width: 120, Height: 40},
		Text:        text,
		Confidence:  0.9,
	}
}

func (s *EngineSuite) analyze(screenshotID string, elems ...normalize.RawElement) *AnalyzeResult {
	result, err := s.engine.AnalyzeScreenshot(s.ctx, AnalyzeParams{
		OwnerID:      "owner-1",
		Application:  "crm",
		ScreenshotID: screenshotID,
		ScreenWidth:  1920,
		ScreenHeight: 1080,
		Elements:     elems,
	})
	s.Require().NoError(err)
	return result
}

func (s *EngineSuite) TestColdStart_UnknownButtonRaisesPurposeQuestion() {
	result := s.analyze("shot-1", rawButton("Submit", 50, 100))

	s.Equal(0, result.Matched)
	s.Equal(1, result.Unmatched)
	s.Empty(result.Annotations)

	s.Require().Len(result.Questions, 1)
	q := result.Questions[0]
	s.Equal(models.QuestionTypePurpose, q.Type)
	s.Equal(models.QuestionStatusPending, q.Status)
	s.Greater(q.Priority, 0)
	s.Contains(q.Prompt, "Submit")
}

func (s *EngineSuite) TestTrainingLoop_AnswerThenAutoMatch() {
	// First sighting raises a question.
	first := s.analyze("shot-1", rawButton("Submit", 50, 100))
	s.Require().Len(first.Questions, 1)

	// The human teaches the element.
	pattern, err := s.engine.IntegrateAnswer(s.ctx, first.Questions[0].ID, "Submits the order", "")
	s.Require().NoError(err)
	s.Equal("Submits the order", pattern.Purpose)
	s.Equal("Submits the order", pattern.Action)
	s.Equal(1, pattern.UsageCount)

	// Second screenshot of the same button matches without a question.
	second := s.analyze("shot-2", rawButton("Submit", 50, 100))
	s.Equal(1, second.Matched)
	s.Empty(second.Questions)
	s.Require().Len(second.Annotations, 1)
	s.Equal("Submits the order", second.Annotations[0].Purpose)
	s.Equal("Submits the order", second.Annotations[0].Action)

	// The match counted as a use.
	updated, err := db.NewPatternStore(s.store).GetByID(s.ctx, pattern.ID)
	s.Require().NoError(err)
	s.Equal(2, updated.UsageCount)
}

func (s *EngineSuite) TestConvergence_QuestionsStopAfterTraining() {
	first := s.analyze("shot-1", rawButton("Submit", 50, 100))
	s.Require().Len(first.Questions, 1)
	_, err := s.engine.IntegrateAnswer(s.ctx, first.Questions[0].ID, "Submits the order", "")
	s.Require().NoError(err)

	// Repeated captures keep matching silently.
	for i, shot := range []string{"shot-2", "shot-3", "shot-4"} {
		result := s.analyze(shot, rawButton("Submit", 50, 100))
		s.Empty(result.Questions, "capture %d should not ask again", i+2)
		s.Equal(1, result.Matched)
	}
}

func (s *EngineSuite) TestScopeIsolation_OtherOwnerStillAsks() {
	first := s.analyze("shot-1", rawButton("Submit", 50, 100))
	_, err := s.engine.IntegrateAnswer(s.ctx, first.Questions[0].ID, "Submits the order", "")
	s.Require().NoError(err)

	// Same element, different owner: the pattern must not leak.
	result, err := s.engine.AnalyzeScreenshot(s.ctx, AnalyzeParams{
		OwnerID:      "owner-2",
		Application:  "crm",
		ScreenshotID: "shot-2",
		ScreenWidth:  1920,
		ScreenHeight: 1080,
		Elements:     []normalize.RawElement{rawButton("Submit", 50, 100)},
	})
	s.Require().NoError(err)
	s.Equal(0, result.Matched)
	s.Len(result.Questions, 1)
}

func (s *EngineSuite) TestMalformedElementsDroppedWithWarnings() {
	bad := rawButton("Broken", 10, 10)
	bad.BoundingBox.Width = 0

	result := s.analyze("shot-1", rawButton("Submit", 50, 100), bad)

	s.Require().Len(result.Warnings, 1)
	s.Contains(result.Warnings[0], "element 1")
	s.Equal(1, result.Unmatched, "only the valid element flows through")
}

func (s *EngineSuite) TestLowConfidenceSkipsMatchingButStillAsks() {
	// Train a pattern first.
	first := s.analyze("shot-1", rawButton("Submit", 50, 100))
	_, err := s.engine.IntegrateAnswer(s.ctx, first.Questions[0].ID, "Submits the order", "")
	s.Require().NoError(err)

	shaky := rawButton("Submit", 50, 100)
	shaky.Confidence = 0.2

	result := s.analyze("shot-2", shaky)
	s.Equal(0, result.Matched, "below the confidence gate nothing auto-matches")
	s.Equal(1, result.Unmatched)
	s.Len(result.Questions, 1)
}

func (s *EngineSuite) TestEmptyBatch() {
	result := s.analyze("shot-1")
	s.Empty(result.Annotations)
	s.Empty(result.Questions)
	s.Empty(result.Warnings)
}

func (s *EngineSuite) TestAnnotationsInReadingOrder() {
	// Train two buttons.
	first := s.analyze("shot-1", rawButton("Submit", 400, 600), rawButton("Cancel", 400, 100))
	s.Require().Len(first.Questions, 2)
	elements := db.NewElementStore(s.store)
	for _, q := range first.Questions {
		elem, err := elements.GetByID(s.ctx, q.ElementID)
		s.Require().NoError(err)

		answer := "Submits the order"
		if elem.Text == "Cancel" {
			answer = "Cancels the order"
		}
		_, err = s.engine.IntegrateAnswer(s.ctx, q.ID, answer, "")
		s.Require().NoError(err)
	}

	// Same row: left-to-right.
	second := s.analyze("shot-2", rawButton("Submit", 400, 600), rawButton("Cancel", 400, 100))
	s.Require().Len(second.Annotations, 2)
	s.Equal("Cancel", second.Annotations[0].Text)
	s.Equal("Submit", second.Annotations[1].Text)
}

func (s *EngineSuite) TestAnnotationsEndpointCoversAnsweredElements() {
	first := s.analyze("shot-1", rawButton("Submit", 50, 100))
	_, err := s.engine.IntegrateAnswer(s.ctx, first.Questions[0].ID, "Submits the order", "")
	s.Require().NoError(err)

	// The answered element is bound retroactively, so its screenshot now has
	// an annotation.
	annotations, err := s.engine.Annotations(s.ctx, "shot-1")
	s.Require().NoError(err)
	s.Require().Len(annotations, 1)
	s.Equal("Submits the order", annotations[0].Purpose)
}

func (s *EngineSuite) TestSkipQuestionExcludesElement() {
	first := s.analyze("shot-1", rawButton("Submit", 50, 100))
	s.Require().NoError(s.engine.SkipQuestion(s.ctx, first.Questions[0].ID))

	annotations, err := s.engine.Annotations(s.ctx, "shot-1")
	s.Require().NoError(err)
	s.Empty(annotations)

	// Skipping is terminal.
	s.ErrorIs(s.engine.SkipQuestion(s.ctx, first.Questions[0].ID), db.ErrOrphanedAnswer)
}

func (s *EngineSuite) TestDuplicateAnswerRejected() {
	first := s.analyze("shot-1", rawButton("Submit", 50, 100))
	_, err := s.engine.IntegrateAnswer(s.ctx, first.Questions[0].ID, "Submits the order", "")
	s.Require().NoError(err)

	_, err = s.engine.IntegrateAnswer(s.ctx, first.Questions[0].ID, "Something else", "")
	s.ErrorIs(err, db.ErrOrphanedAnswer)
}

func (s *EngineSuite) TestDeactivatedPatternStopsMatching() {
	first := s.analyze("shot-1", rawButton("Submit", 50, 100))
	pattern, err := s.engine.IntegrateAnswer(s.ctx, first.Questions[0].ID, "Submits the order", "")
	s.Require().NoError(err)

	s.Require().NoError(s.engine.DeactivatePattern(s.ctx, pattern.ID))

	result := s.analyze("shot-2", rawButton("Submit", 50, 100))
	s.Equal(0, result.Matched)
	s.Len(result.Questions, 1)
}

func (s *EngineSuite) TestPendingQuestionsOrderedByPriority() {
	// A large button outranks a small label.
	big := rawButton("Approve Payment", 100, 100)
	big.BoundingBox.Width = 600
	big.BoundingBox.Height = 300

	small := normalize.RawElement{
		Type:        "label",
		BoundingBox: models.BoundingBox{Top: 900, Left: 10, Width: 40, Height: 12},
		Text:        "hint",
		Confidence:  0.6,
	}

	s.analyze("shot-1", small, big)

	pending, err := s.engine.PendingQuestions(s.ctx, "owner-1", 10)
	s.Require().NoError(err)
	s.Require().Len(pending, 2)
	s.GreaterOrEqual(pending[0].Priority, pending[1].Priority)
	s.Contains(pending[0].Prompt, "Approve Payment")
}

func (s *EngineSuite) TestDeterministicAcrossRuns() {
	// Train two near-identical patterns so matching has real work to do.
	first := s.analyze("shot-1", rawButton("Submit", 50, 100), rawButton("Submit All", 300, 100))
	for _, q := range first.Questions {
		_, err := s.engine.IntegrateAnswer(s.ctx, q.ID, "Submits things", "")
		s.Require().NoError(err)
	}

	var prev *AnalyzeResult
	for i := 0; i < 5; i++ {
		result := s.analyze("", rawButton("Submit", 50, 100), rawButton("Submit All", 300, 100))
		if prev != nil {
			s.Equal(prev.Matched, result.Matched)
			s.Equal(prev.Ambiguous, result.Ambiguous)
			s.Equal(len(prev.Annotations), len(result.Annotations))
		}
		prev = result
	}
}

func (s *EngineSuite) TestMetricsTrackOutcomes() {
	first := s.analyze("shot-1", rawButton("Submit", 50, 100))
	_, err := s.engine.IntegrateAnswer(s.ctx, first.Questions[0].ID, "Submits the order", "")
	s.Require().NoError(err)
	s.analyze("shot-2", rawButton("Submit", 50, 100))

	snap := s.engine.Metrics().Snapshot()
	s.Equal(int64(2), snap["batches"])
	s.Equal(int64(1), snap["matched"])
	s.Equal(int64(1), snap["unmatched"])
	s.Equal(int64(1), snap["questions_asked"])
	s.Equal(int64(1), snap["questions_answered"])
	s.Equal(int64(1), snap["patterns_created"])
}
