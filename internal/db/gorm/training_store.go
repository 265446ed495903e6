package gorm

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/stepcapture/stepcapture/pkg/models"
)

// ErrOrphanedAnswer is returned when an answer arrives for a question that is
// already answered, skipped, or missing. The original answer is preserved.
var ErrOrphanedAnswer = errors.New("question is not pending")

// TrainingStore persists training questions and answers.
type TrainingStore struct {
	db *gorm.DB
}

// NewTrainingStore creates a new training store.
func NewTrainingStore(store *Store) *TrainingStore {
	return &TrainingStore{db: store.DB}
}

// InsertQuestion stores a new pending question and returns it with its id.
func (s *TrainingStore) InsertQuestion(ctx context.Context, q *models.TrainingQuestion) (*models.TrainingQuestion, error) {
	dbQ := fromModelQuestion(q)
	if err := s.db.WithContext(ctx).Create(dbQ).Error; err != nil {
		return nil, err
	}
	return toModelQuestion(dbQ), nil
}

// GetQuestion retrieves a question by id.
func (s *TrainingStore) GetQuestion(ctx context.Context, id int64) (*models.TrainingQuestion, error) {
	var dbQ TrainingQuestion
	err := s.db.WithContext(ctx).First(&dbQ, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return toModelQuestion(&dbQ), nil
}

// PendingByOwner retrieves pending questions for one owner, highest priority
// first. This feeds the training UI directly.
func (s *TrainingStore) PendingByOwner(ctx context.Context, ownerID string, limit int) ([]*models.TrainingQuestion, error) {
	if limit <= 0 {
		limit = 50
	}
	var dbQuestions []TrainingQuestion
	err := s.db.WithContext(ctx).
		Where("owner_id = ? AND status = ?", ownerID, models.QuestionStatusPending).
		Order("priority DESC, created_at_epoch ASC").
		Limit(limit).
		Find(&dbQuestions).Error
	if err != nil {
		return nil, err
	}
	return toModelQuestions(dbQuestions), nil
}

// HasQuestionForSignature reports whether any question, in any status, was
// ever asked for this element signature in the scope. Used for the
// first-encounter check: skipped and answered questions both count as a
// prior encounter.
func (s *TrainingStore) HasQuestionForSignature(ctx context.Context, ownerID, application, signature string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&TrainingQuestion{}).
		Where("owner_id = ? AND application = ? AND signature = ?", ownerID, application, signature).
		Count(&count).Error
	return count > 0, err
}

// Answer records the answer for a pending question and marks it answered, in
// one transaction. A second submission for the same question fails with
// ErrOrphanedAnswer and leaves the original untouched.
func (s *TrainingStore) Answer(ctx context.Context, questionID int64, answerText, metadata string) (*models.TrainingAnswer, error) {
	answer := models.NewTrainingAnswer(questionID, answerText, metadata)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&TrainingQuestion{}).
			Where("id = ? AND status = ?", questionID, models.QuestionStatusPending).
			UpdateColumn("status", models.QuestionStatusAnswered)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrOrphanedAnswer
		}

		dbAnswer := &TrainingAnswer{
			QuestionID:     answer.QuestionID,
			AnswerText:     answer.AnswerText,
			Metadata:       answer.Metadata,
			Confidence:     answer.Confidence,
			CreatedAt:      answer.CreatedAt,
			CreatedAtEpoch: answer.CreatedAtEpoch,
		}
		if err := tx.Create(dbAnswer).Error; err != nil {
			return err
		}
		answer.ID = dbAnswer.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return answer, nil
}

// Skip marks a pending question skipped. Skipping a non-pending question is
// rejected the same way duplicate answers are.
func (s *TrainingStore) Skip(ctx context.Context, questionID int64) error {
	result := s.db.WithContext(ctx).
		Model(&TrainingQuestion{}).
		Where("id = ? AND status = ?", questionID, models.QuestionStatusPending).
		UpdateColumn("status", models.QuestionStatusSkipped)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrOrphanedAnswer
	}
	return nil
}

// GetAnswerByQuestion retrieves the answer for a question, if any.
func (s *TrainingStore) GetAnswerByQuestion(ctx context.Context, questionID int64) (*models.TrainingAnswer, error) {
	var dbA TrainingAnswer
	err := s.db.WithContext(ctx).First(&dbA, "question_id = ?", questionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &models.TrainingAnswer{
		ID:             dbA.ID,
		QuestionID:     dbA.QuestionID,
		AnswerText:     dbA.AnswerText,
		Metadata:       dbA.Metadata,
		Confidence:     dbA.Confidence,
		CreatedAt:      dbA.CreatedAt,
		CreatedAtEpoch: dbA.CreatedAtEpoch,
	}, nil
}

// toModelQuestion converts a GORM TrainingQuestion to pkg/models.TrainingQuestion.
func toModelQuestion(q *TrainingQuestion) *models.TrainingQuestion {
	return &models.TrainingQuestion{
		ID:              q.ID,
		ElementID:       q.ElementID,
		OwnerID:         q.OwnerID,
		Application:     q.Application,
		Type:            q.Type,
		Signature:       q.Signature,
		Prompt:          q.Prompt,
		Priority:        q.Priority,
		Status:          q.Status,
		BestPatternID:   q.BestPatternID,
		SecondPatternID: q.SecondPatternID,
		BestScore:       q.BestScore,
		CreatedAt:       q.CreatedAt,
		CreatedAtEpoch:  q.CreatedAtEpoch,
	}
}

// toModelQuestions converts a slice of GORM TrainingQuestion.
func toModelQuestions(questions []TrainingQuestion) []*models.TrainingQuestion {
	result := make([]*models.TrainingQuestion, len(questions))
	for i := range questions {
		result[i] = toModelQuestion(&questions[i])
	}
	return result
}

// fromModelQuestion converts a pkg/models.TrainingQuestion to its GORM row.
func fromModelQuestion(q *models.TrainingQuestion) *TrainingQuestion {
	return &TrainingQuestion{
		ID:              q.ID,
		ElementID:       q.ElementID,
		OwnerID:         q.OwnerID,
		Application:     q.Application,
		Type:            q.Type,
		Signature:       q.Signature,
		Prompt:          q.Prompt,
		Priority:        q.Priority,
		Status:          q.Status,
		BestPatternID:   q.BestPatternID,
		SecondPatternID: q.SecondPatternID,
		BestScore:       q.BestScore,
		CreatedAt:       q.CreatedAt,
		CreatedAtEpoch:  q.CreatedAtEpoch,
	}
}
