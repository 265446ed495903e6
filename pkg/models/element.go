// Package models contains domain models for stepcapture.
package models

import (
	"database/sql"
	"time"
)

// ElementType classifies a detected UI element.
type ElementType string

// Element types produced by vision analysis.
const (
	ElementTypeButton   ElementType = "button"
	ElementTypeInput    ElementType = "input"
	ElementTypeDropdown ElementType = "dropdown"
	ElementTypeCheckbox ElementType = "checkbox"
	ElementTypeRadio    ElementType = "radio"
	ElementTypeTable    ElementType = "table"
	ElementTypeLabel    ElementType = "label"
	ElementTypeLink     ElementType = "link"
	ElementTypeMenu     ElementType = "menu"
	ElementTypeDialog   ElementType = "dialog"
	ElementTypeUnknown  ElementType = "unknown"
)

// ParseElementType maps a vision-API type label to an ElementType.
// Unrecognized labels map to ElementTypeUnknown so that label drift in the
// vision API never fails a batch.
func ParseElementType(label string) ElementType {
	switch ElementType(label) {
	case ElementTypeButton, ElementTypeInput, ElementTypeDropdown,
		ElementTypeCheckbox, ElementTypeRadio, ElementTypeTable,
		ElementTypeLabel, ElementTypeLink, ElementTypeMenu, ElementTypeDialog:
		return ElementType(label)
	default:
		return ElementTypeUnknown
	}
}

// IsInteractive reports whether the element type is one a user acts on,
// as opposed to static content.
func (t ElementType) IsInteractive() bool {
	switch t {
	case ElementTypeButton, ElementTypeLink, ElementTypeMenu,
		ElementTypeInput, ElementTypeDropdown, ElementTypeCheckbox, ElementTypeRadio:
		return true
	}
	return false
}

// BoundingBox is an axis-aligned rectangle in screenshot pixel space.
type BoundingBox struct {
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Area returns the box area in square pixels.
func (b BoundingBox) Area() float64 {
	return b.Width * b.Height
}

// Center returns the (x, y) center of the box.
func (b BoundingBox) Center() (float64, float64) {
	return b.Left + b.Width/2, b.Top + b.Height/2
}

// Valid reports whether the box has positive area.
func (b BoundingBox) Valid() bool {
	return b.Width > 0 && b.Height > 0
}

// ElementStatus tracks a detected element through the training lifecycle.
type ElementStatus string

// Element lifecycle states.
const (
	ElementStatusDetected        ElementStatus = "detected"
	ElementStatusMatched         ElementStatus = "matched"
	ElementStatusQuestionPending ElementStatus = "question_pending"
	ElementStatusAnswered        ElementStatus = "answered"
	ElementStatusSkipped         ElementStatus = "skipped"
)

// DetectedElement is one UI element found in one screenshot analysis pass.
// Elements are immutable apart from their lifecycle status and the single
// pattern binding assigned by the matcher or the answer integrator.
type DetectedElement struct {
	ID             string        `db:"id" json:"id"`
	ScreenshotID   string        `db:"screenshot_id" json:"screenshot_id"`
	OwnerID        string        `db:"owner_id" json:"owner_id"`
	Application    string        `db:"application" json:"application"`
	Type           ElementType   `db:"type" json:"type"`
	Box            BoundingBox   `json:"box"`
	Text           string        `db:"text" json:"text,omitempty"`
	VisualFeatures JSONStringMap `db:"visual_features" json:"visual_features,omitempty"`
	Confidence     float64       `db:"confidence" json:"confidence"`
	Status         ElementStatus `db:"status" json:"status"`
	PatternID      sql.NullInt64 `db:"pattern_id" json:"-"`
	MatchScore     float64       `db:"match_score" json:"match_score,omitempty"`
	CreatedAt      string        `db:"created_at" json:"created_at"`
	CreatedAtEpoch int64         `db:"created_at_epoch" json:"created_at_epoch"`
}

// NewDetectedElement creates a detected element in the initial state.
func NewDetectedElement(id, screenshotID, ownerID, application string, typ ElementType, box BoundingBox, text string, features map[string]string, confidence float64) *DetectedElement {
	now := time.Now()
	return &DetectedElement{
		ID:             id,
		ScreenshotID:   screenshotID,
		OwnerID:        ownerID,
		Application:    application,
		Type:           typ,
		Box:            box,
		Text:           text,
		VisualFeatures: JSONStringMap(features),
		Confidence:     confidence,
		Status:         ElementStatusDetected,
		CreatedAt:      now.Format(time.RFC3339),
		CreatedAtEpoch: now.UnixMilli(),
	}
}
