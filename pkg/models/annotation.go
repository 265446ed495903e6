package models

// Annotation binds one resolved detected element to its meaning for
// downstream documentation generation. Annotations are emitted per screenshot
// in reading order: top-to-bottom by row, left-to-right within a row.
type Annotation struct {
	ElementID   string      `json:"element_id"`
	PatternID   int64       `json:"pattern_id,omitempty"`
	ElementType ElementType `json:"element_type"`
	Box         BoundingBox `json:"box"`
	Text        string      `json:"text,omitempty"`
	Purpose     string      `json:"purpose"`
	Action      string      `json:"action,omitempty"`
}
