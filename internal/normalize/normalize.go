// Package normalize converts raw vision-analysis output into canonical
// detected elements.
package normalize

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/stepcapture/stepcapture/pkg/models"
)

// RawElement is one element as reported by the vision API. The engine does
// not own this format; it mirrors the analysis output contract.
type RawElement struct {
	Type           string             `json:"type"`
	BoundingBox    models.BoundingBox `json:"bounding_box"`
	Text           string             `json:"text,omitempty"`
	Confidence     float64            `json:"confidence"`
	VisualFeatures map[string]string  `json:"visual_features,omitempty"`
}

// MalformedElementError reports a raw element that cannot enter the pipeline.
// The element is dropped; the rest of the batch proceeds.
type MalformedElementError struct {
	Index  int
	Reason string
}

func (e *MalformedElementError) Error() string {
	return fmt.Sprintf("element %d: %s", e.Index, e.Reason)
}

// Element converts one raw vision element into a DetectedElement.
// Degenerate geometry is rejected. Unrecognized type labels map to unknown
// instead of failing, so vision-API label drift never breaks the pipeline.
func Element(raw RawElement, index int, screenshotID, ownerID, application string) (*models.DetectedElement, error) {
	if !raw.BoundingBox.Valid() {
		return nil, &MalformedElementError{Index: index, Reason: "bounding box has zero or negative area"}
	}
	if raw.Confidence < 0 || raw.Confidence > 1 {
		return nil, &MalformedElementError{Index: index, Reason: fmt.Sprintf("confidence %.3f outside [0,1]", raw.Confidence)}
	}

	return models.NewDetectedElement(
		uuid.NewString(),
		screenshotID,
		ownerID,
		application,
		models.ParseElementType(raw.Type),
		raw.BoundingBox,
		raw.Text,
		raw.VisualFeatures,
		raw.Confidence,
	), nil
}

// Batch normalizes a full analysis pass. Malformed elements become warnings,
// never batch failures: a screenshot upload is never blocked on bad geometry.
func Batch(raws []RawElement, screenshotID, ownerID, application string) ([]*models.DetectedElement, []string) {
	elements := make([]*models.DetectedElement, 0, len(raws))
	var warnings []string

	for i, raw := range raws {
		elem, err := Element(raw, i, screenshotID, ownerID, application)
		if err != nil {
			warnings = append(warnings, err.Error())
			continue
		}
		elements = append(elements, elem)
	}

	return elements, warnings
}
