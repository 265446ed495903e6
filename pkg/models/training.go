package models

import (
	"database/sql"
	"encoding/json"
	"time"
)

// QuestionType classifies what a training question asks about.
type QuestionType string

// Question types, roughly in the order they are asked for a new element.
const (
	QuestionTypePurpose QuestionType = "purpose"
	QuestionTypeAction  QuestionType = "action"
	QuestionTypeInput   QuestionType = "input"
	QuestionTypeContext QuestionType = "context"
)

// QuestionStatus tracks a training question's lifecycle.
type QuestionStatus string

// Question lifecycle states. Answered questions are immutable.
const (
	QuestionStatusPending  QuestionStatus = "pending"
	QuestionStatusAnswered QuestionStatus = "answered"
	QuestionStatusSkipped  QuestionStatus = "skipped"
)

// MinPriority and MaxPriority bound the question priority scale.
// Higher priority means ask sooner.
const (
	MinPriority = 1
	MaxPriority = 10
)

// TrainingQuestion is a pending request for human clarification about one
// detected element. At most one question exists per element.
type TrainingQuestion struct {
	ID          int64        `db:"id" json:"id"`
	ElementID   string       `db:"element_id" json:"element_id"`
	OwnerID     string       `db:"owner_id" json:"owner_id"`
	Application string       `db:"application" json:"application"`
	Type        QuestionType `db:"type" json:"type"`

	// Signature identifies the approximate element identity
	// (type + normalized text) this question was asked about; it backs the
	// first-encounter check in the question generator.
	Signature string `db:"signature" json:"-"`

	Prompt   string         `db:"prompt" json:"prompt"`
	Priority int            `db:"priority" json:"priority"`
	Status   QuestionStatus `db:"status" json:"status"`

	// For ambiguous matches: the two top-scoring candidates at question time.
	// The integrator checks the answer against these before creating a new
	// pattern.
	BestPatternID   sql.NullInt64 `db:"best_pattern_id" json:"-"`
	SecondPatternID sql.NullInt64 `db:"second_pattern_id" json:"-"`
	BestScore       float64       `db:"best_score" json:"best_score,omitempty"`

	CreatedAt      string `db:"created_at" json:"created_at"`
	CreatedAtEpoch int64  `db:"created_at_epoch" json:"created_at_epoch"`
}

// NewTrainingQuestion creates a pending question for an element.
func NewTrainingQuestion(elem *DetectedElement, typ QuestionType, prompt string, priority int) *TrainingQuestion {
	if priority < MinPriority {
		priority = MinPriority
	}
	if priority > MaxPriority {
		priority = MaxPriority
	}
	now := time.Now()
	return &TrainingQuestion{
		ElementID:      elem.ID,
		OwnerID:        elem.OwnerID,
		Application:    elem.Application,
		Type:           typ,
		Prompt:         prompt,
		Priority:       priority,
		Status:         QuestionStatusPending,
		CreatedAt:      now.Format(time.RFC3339),
		CreatedAtEpoch: now.UnixMilli(),
	}
}

// TrainingAnswer is the human response resolving exactly one question.
// Answers are authoritative (confidence fixed at 1.0) and immutable.
type TrainingAnswer struct {
	ID             int64          `db:"id" json:"id"`
	QuestionID     int64          `db:"question_id" json:"question_id"`
	AnswerText     string         `db:"answer_text" json:"answer_text"`
	Metadata       sql.NullString `db:"metadata" json:"-"`
	Confidence     float64        `db:"confidence" json:"confidence"`
	CreatedAt      string         `db:"created_at" json:"created_at"`
	CreatedAtEpoch int64          `db:"created_at_epoch" json:"created_at_epoch"`
}

// NewTrainingAnswer creates an answer for a question.
func NewTrainingAnswer(questionID int64, answerText, metadata string) *TrainingAnswer {
	now := time.Now()
	return &TrainingAnswer{
		QuestionID:     questionID,
		AnswerText:     answerText,
		Metadata:       sql.NullString{String: metadata, Valid: metadata != ""},
		Confidence:     1.0,
		CreatedAt:      now.Format(time.RFC3339),
		CreatedAtEpoch: now.UnixMilli(),
	}
}

// TrainingAnswerJSON is a JSON-friendly representation of TrainingAnswer.
type TrainingAnswerJSON struct {
	ID             int64   `json:"id"`
	QuestionID     int64   `json:"question_id"`
	AnswerText     string  `json:"answer_text"`
	Metadata       string  `json:"metadata,omitempty"`
	Confidence     float64 `json:"confidence"`
	CreatedAt      string  `json:"created_at"`
	CreatedAtEpoch int64   `json:"created_at_epoch"`
}

// MarshalJSON converts sql.NullString fields to plain strings.
func (a *TrainingAnswer) MarshalJSON() ([]byte, error) {
	j := TrainingAnswerJSON{
		ID:             a.ID,
		QuestionID:     a.QuestionID,
		AnswerText:     a.AnswerText,
		Confidence:     a.Confidence,
		CreatedAt:      a.CreatedAt,
		CreatedAtEpoch: a.CreatedAtEpoch,
	}
	if a.Metadata.Valid {
		j.Metadata = a.Metadata.String
	}
	return json.Marshal(j)
}
