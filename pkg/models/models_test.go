package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseElementType(t *testing.T) {
	assert.Equal(t, ElementTypeButton, ParseElementType("button"))
	assert.Equal(t, ElementTypeDialog, ParseElementType("dialog"))
	assert.Equal(t, ElementTypeUnknown, ParseElementType("hologram"))
	assert.Equal(t, ElementTypeUnknown, ParseElementType(""))
}

func TestElementTypeIsInteractive(t *testing.T) {
	assert.True(t, ElementTypeButton.IsInteractive())
	assert.True(t, ElementTypeCheckbox.IsInteractive())
	assert.False(t, ElementTypeLabel.IsInteractive())
	assert.False(t, ElementTypeTable.IsInteractive())
}

func TestBoundingBox(t *testing.T) {
	box := BoundingBox{Top: 50, Left: 100, Width: 120, Height: 40}

	assert.Equal(t, 4800.0, box.Area())
	x, y := box.Center()
	assert.Equal(t, 160.0, x)
	assert.Equal(t, 70.0, y)
	assert.True(t, box.Valid())

	assert.False(t, BoundingBox{Width: 0, Height: 40}.Valid())
	assert.False(t, BoundingBox{Width: 120, Height: -1}.Valid())
}

func TestNewDetectedElement(t *testing.T) {
	elem := NewDetectedElement("id-1", "shot-1", "owner-1", "crm",
		ElementTypeButton, BoundingBox{Top: 1, Left: 2, Width: 3, Height: 4},
		"Submit", map[string]string{"color": "blue"}, 0.9)

	assert.Equal(t, ElementStatusDetected, elem.Status)
	assert.False(t, elem.PatternID.Valid)
	assert.NotEmpty(t, elem.CreatedAt)
	assert.NotZero(t, elem.CreatedAtEpoch)
	assert.Equal(t, "blue", elem.VisualFeatures["color"])
}

func TestNewPattern(t *testing.T) {
	elem := NewDetectedElement("id-1", "shot-1", "owner-1", "crm",
		ElementTypeButton, BoundingBox{Top: 1, Left: 2, Width: 3, Height: 4},
		"Submit", nil, 0.9)

	p := NewPattern(elem, "Submits the order", "Submits the order", "sales")

	assert.Equal(t, "owner-1", p.OwnerID)
	assert.Equal(t, "crm", p.Application)
	assert.Equal(t, elem.Box, p.ReferenceBox)
	assert.Equal(t, 1.0, p.Confidence)
	assert.Equal(t, 1, p.UsageCount)
	assert.True(t, p.IsActive)
	require.True(t, p.BusinessContext.Valid)
	assert.Equal(t, "sales", p.BusinessContext.String)

	empty := NewPattern(elem, "purpose", "", "")
	assert.False(t, empty.BusinessContext.Valid)
}

func TestPatternMarshalJSON(t *testing.T) {
	elem := NewDetectedElement("id-1", "shot-1", "owner-1", "crm",
		ElementTypeButton, BoundingBox{Width: 3, Height: 4}, "Submit", nil, 0.9)
	p := NewPattern(elem, "Submits the order", "", "sales")

	data, err := json.Marshal(p)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "sales", decoded["business_context"])
	assert.Equal(t, "Submits the order", decoded["purpose"])
	assert.NotContains(t, decoded, "Valid", "sql null types must not leak")
}

func TestNewTrainingQuestionClampsPriority(t *testing.T) {
	elem := NewDetectedElement("id-1", "shot-1", "owner-1", "crm",
		ElementTypeButton, BoundingBox{Width: 3, Height: 4}, "Submit", nil, 0.9)

	assert.Equal(t, MaxPriority, NewTrainingQuestion(elem, QuestionTypePurpose, "?", 99).Priority)
	assert.Equal(t, MinPriority, NewTrainingQuestion(elem, QuestionTypePurpose, "?", -5).Priority)
	assert.Equal(t, QuestionStatusPending, NewTrainingQuestion(elem, QuestionTypePurpose, "?", 5).Status)
}

func TestNewTrainingAnswer(t *testing.T) {
	a := NewTrainingAnswer(7, "Submits the order", "")
	assert.Equal(t, 1.0, a.Confidence)
	assert.False(t, a.Metadata.Valid)

	b := NewTrainingAnswer(7, "Submits the order", "sales")
	require.True(t, b.Metadata.Valid)
	assert.Equal(t, "sales", b.Metadata.String)
}

func TestJSONStringMapRoundTrip(t *testing.T) {
	m := JSONStringMap{"color": "blue", "shape": "pill"}

	v, err := m.Value()
	require.NoError(t, err)

	var scanned JSONStringMap
	require.NoError(t, scanned.Scan(v))
	assert.True(t, m.Equal(scanned))

	var fromNil JSONStringMap
	require.NoError(t, fromNil.Scan(nil))
	assert.Nil(t, fromNil)

	nilValue, err := JSONStringMap(nil).Value()
	require.NoError(t, err)
	assert.Nil(t, nilValue)
}

func TestJSONStringMapEqual(t *testing.T) {
	a := JSONStringMap{"color": "blue"}
	assert.True(t, a.Equal(JSONStringMap{"color": "blue"}))
	assert.False(t, a.Equal(JSONStringMap{"color": "red"}))
	assert.False(t, a.Equal(JSONStringMap{"color": "blue", "shape": "pill"}))
	assert.True(t, JSONStringMap(nil).Equal(JSONStringMap{}))
}
