package models

import (
	"database/sql"
	"encoding/json"
	"time"
)

// Pattern is a learned, reusable description of what an element of one kind
// means and does inside one user's one application. Patterns never cross the
// (owner, application) boundary.
type Pattern struct {
	ID              int64          `db:"id" json:"id"`
	OwnerID         string         `db:"owner_id" json:"owner_id"`
	Application     string         `db:"application" json:"application"`
	ElementType     ElementType    `db:"element_type" json:"element_type"`
	ReferenceBox    BoundingBox    `json:"reference_box"`
	ReferenceText   string         `db:"reference_text" json:"reference_text,omitempty"`
	Purpose         string         `db:"purpose" json:"purpose"`
	Action          string         `db:"action" json:"action,omitempty"`
	BusinessContext sql.NullString `db:"business_context" json:"-"`
	VisualFeatures  JSONStringMap  `db:"visual_features" json:"visual_features,omitempty"`

	// Confidence is provenance-derived: 1.0 when the pattern was born from a
	// human answer. It is only ever lowered by an explicit edit, never by the
	// matcher.
	Confidence float64 `db:"confidence" json:"confidence"`

	// UsageCount increments every time the pattern is selected as a match.
	// It only ever increases.
	UsageCount int  `db:"usage_count" json:"usage_count"`
	IsActive   bool `db:"is_active" json:"is_active"`

	CreatedAt      string `db:"created_at" json:"created_at"`
	CreatedAtEpoch int64  `db:"created_at_epoch" json:"created_at_epoch"`
}

// NewPattern seeds a pattern from a detected element and a training answer.
// Human-provided answers are authoritative, so confidence starts at 1.0 and
// the pattern counts its founding element as its first use.
func NewPattern(elem *DetectedElement, purpose, action, businessContext string) *Pattern {
	now := time.Now()
	return &Pattern{
		OwnerID:         elem.OwnerID,
		Application:     elem.Application,
		ElementType:     elem.Type,
		ReferenceBox:    elem.Box,
		ReferenceText:   elem.Text,
		Purpose:         purpose,
		Action:          action,
		BusinessContext: sql.NullString{String: businessContext, Valid: businessContext != ""},
		VisualFeatures:  elem.VisualFeatures,
		Confidence:      1.0,
		UsageCount:      1,
		IsActive:        true,
		CreatedAt:       now.Format(time.RFC3339),
		CreatedAtEpoch:  now.UnixMilli(),
	}
}

// PatternJSON is a JSON-friendly representation of Pattern.
type PatternJSON struct {
	ID              int64         `json:"id"`
	OwnerID         string        `json:"owner_id"`
	Application     string        `json:"application"`
	ElementType     ElementType   `json:"element_type"`
	ReferenceBox    BoundingBox   `json:"reference_box"`
	ReferenceText   string        `json:"reference_text,omitempty"`
	Purpose         string        `json:"purpose"`
	Action          string        `json:"action,omitempty"`
	BusinessContext string        `json:"business_context,omitempty"`
	VisualFeatures  JSONStringMap `json:"visual_features,omitempty"`
	Confidence      float64       `json:"confidence"`
	UsageCount      int           `json:"usage_count"`
	IsActive        bool          `json:"is_active"`
	CreatedAt       string        `json:"created_at"`
	CreatedAtEpoch  int64         `json:"created_at_epoch"`
}

// MarshalJSON converts sql.NullString fields to plain strings.
func (p *Pattern) MarshalJSON() ([]byte, error) {
	j := PatternJSON{
		ID:             p.ID,
		OwnerID:        p.OwnerID,
		Application:    p.Application,
		ElementType:    p.ElementType,
		ReferenceBox:   p.ReferenceBox,
		ReferenceText:  p.ReferenceText,
		Purpose:        p.Purpose,
		Action:         p.Action,
		VisualFeatures: p.VisualFeatures,
		Confidence:     p.Confidence,
		UsageCount:     p.UsageCount,
		IsActive:       p.IsActive,
		CreatedAt:      p.CreatedAt,
		CreatedAtEpoch: p.CreatedAtEpoch,
	}
	if p.BusinessContext.Valid {
		j.BusinessContext = p.BusinessContext.String
	}
	return json.Marshal(j)
}
