package gorm

import (
	"database/sql"
	"time"

	"gorm.io/gorm"

	"github.com/stepcapture/stepcapture/pkg/models"
)

// GORM models. Cross-entity navigation is by explicit id lookup through the
// stores; no model holds a live reference to another, so there are no
// ownership cycles between patterns, elements, questions, and answers.

// Pattern is a learned element interpretation scoped to (owner, application).
type Pattern struct {
	ID          int64              `gorm:"primaryKey;autoIncrement"`
	OwnerID     string             `gorm:"index:idx_patterns_scope,priority:1;not null"`
	Application string             `gorm:"index:idx_patterns_scope,priority:2;not null"`
	ElementType models.ElementType `gorm:"type:text;index:idx_patterns_scope,priority:3;not null"`

	RefTop    float64 `gorm:"type:real;not null"`
	RefLeft   float64 `gorm:"type:real;not null"`
	RefWidth  float64 `gorm:"type:real;not null"`
	RefHeight float64 `gorm:"type:real;not null"`

	ReferenceText   string               `gorm:"type:text"`
	Purpose         string               `gorm:"type:text;not null"`
	Action          string               `gorm:"type:text"`
	BusinessContext sql.NullString       `gorm:"type:text"`
	VisualFeatures  models.JSONStringMap `gorm:"type:text"`

	Confidence     float64 `gorm:"type:real;default:1.0"`
	UsageCount     int     `gorm:"default:1;index:idx_patterns_usage,sort:desc"`
	IsActive       int     `gorm:"default:1;index:idx_patterns_active"`
	CreatedAt      string  `gorm:"not null"`
	CreatedAtEpoch int64   `gorm:"index:idx_patterns_created,sort:desc;not null"`
}

func (Pattern) TableName() string { return "patterns" }

// BeforeCreate hook to ensure timestamps and defaults are set.
func (p *Pattern) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if p.CreatedAtEpoch == 0 {
		p.CreatedAtEpoch = now.UnixMilli()
	}
	if p.CreatedAt == "" {
		p.CreatedAt = now.Format(time.RFC3339)
	}
	if p.Confidence == 0 {
		p.Confidence = 1.0
	}
	if p.UsageCount == 0 {
		p.UsageCount = 1
	}
	return nil
}

// Element is a persisted detected element with its lifecycle state and
// at-most-one pattern binding.
type Element struct {
	ID           string `gorm:"primaryKey"`
	ScreenshotID string `gorm:"index:idx_elements_screenshot;not null"`
	OwnerID      string `gorm:"index:idx_elements_owner;not null"`
	Application  string `gorm:"not null"`

	Type models.ElementType `gorm:"type:text;not null"`

	BoxTop    float64 `gorm:"type:real;not null"`
	BoxLeft   float64 `gorm:"type:real;not null"`
	BoxWidth  float64 `gorm:"type:real;not null"`
	BoxHeight float64 `gorm:"type:real;not null"`

	Text           string               `gorm:"type:text"`
	VisualFeatures models.JSONStringMap `gorm:"type:text"`
	Confidence     float64              `gorm:"type:real;not null"`

	Status     models.ElementStatus `gorm:"type:text;default:'detected';check:status IN ('detected', 'matched', 'question_pending', 'answered', 'skipped');index"`
	PatternID  sql.NullInt64        `gorm:"index:idx_elements_pattern"`
	MatchScore float64              `gorm:"type:real;default:0"`

	CreatedAt      string `gorm:"not null"`
	CreatedAtEpoch int64  `gorm:"index:idx_elements_created,sort:desc;not null"`
}

func (Element) TableName() string { return "elements" }

// BeforeCreate hook to ensure timestamps are set.
func (e *Element) BeforeCreate(tx *gorm.DB) error {
	if e.CreatedAtEpoch == 0 {
		e.CreatedAtEpoch = time.Now().UnixMilli()
	}
	if e.CreatedAt == "" {
		e.CreatedAt = time.Now().Format(time.RFC3339)
	}
	if e.Status == "" {
		e.Status = models.ElementStatusDetected
	}
	return nil
}

// TrainingQuestion is a pending clarification request for one element.
type TrainingQuestion struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	ElementID   string `gorm:"uniqueIndex:idx_questions_element;not null"`
	OwnerID     string `gorm:"index:idx_questions_owner,priority:1;not null"`
	Application string `gorm:"not null"`

	Type      models.QuestionType   `gorm:"type:text;check:type IN ('purpose', 'action', 'input', 'context');not null"`
	Signature string                `gorm:"index:idx_questions_signature;not null"`
	Prompt    string                `gorm:"type:text;not null"`
	Priority  int                   `gorm:"index:idx_questions_owner,priority:2,sort:desc;not null"`
	Status    models.QuestionStatus `gorm:"type:text;default:'pending';check:status IN ('pending', 'answered', 'skipped');index"`

	BestPatternID   sql.NullInt64
	SecondPatternID sql.NullInt64
	BestScore       float64 `gorm:"type:real;default:0"`

	CreatedAt      string `gorm:"not null"`
	CreatedAtEpoch int64  `gorm:"not null"`
}

func (TrainingQuestion) TableName() string { return "training_questions" }

// BeforeCreate hook to ensure timestamps are set.
func (q *TrainingQuestion) BeforeCreate(tx *gorm.DB) error {
	if q.CreatedAtEpoch == 0 {
		q.CreatedAtEpoch = time.Now().UnixMilli()
	}
	if q.CreatedAt == "" {
		q.CreatedAt = time.Now().Format(time.RFC3339)
	}
	if q.Status == "" {
		q.Status = models.QuestionStatusPending
	}
	return nil
}

// TrainingAnswer resolves exactly one question; the unique index on
// question_id enforces the 1:1 relationship.
type TrainingAnswer struct {
	ID             int64          `gorm:"primaryKey;autoIncrement"`
	QuestionID     int64          `gorm:"uniqueIndex:idx_answers_question;not null"`
	AnswerText     string         `gorm:"type:text;not null"`
	Metadata       sql.NullString `gorm:"type:text"`
	Confidence     float64        `gorm:"type:real;default:1.0"`
	CreatedAt      string         `gorm:"not null"`
	CreatedAtEpoch int64          `gorm:"not null"`
}

func (TrainingAnswer) TableName() string { return "training_answers" }

// BeforeCreate hook to ensure timestamps are set.
func (a *TrainingAnswer) BeforeCreate(tx *gorm.DB) error {
	if a.CreatedAtEpoch == 0 {
		a.CreatedAtEpoch = time.Now().UnixMilli()
	}
	if a.CreatedAt == "" {
		a.CreatedAt = time.Now().Format(time.RFC3339)
	}
	if a.Confidence == 0 {
		a.Confidence = 1.0
	}
	return nil
}
