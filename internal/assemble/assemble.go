// Package assemble orders resolved elements into reading order for
// documentation generation.
package assemble

import (
	"sort"

	"github.com/stepcapture/stepcapture/pkg/models"
)

// DefaultRowTolerance is the vertical slack in pixels within which two
// elements count as the same reading-order row.
const DefaultRowTolerance = 16.0

// ReadingOrder sorts annotations top-to-bottom by row, then left-to-right
// within a row. Elements whose top coordinates differ by at most tolerance
// share a row. The sort is stable, so identical input always yields identical
// order — downstream step numbering depends on that.
func ReadingOrder(annotations []models.Annotation, tolerance float64) []models.Annotation {
	if tolerance <= 0 {
		tolerance = DefaultRowTolerance
	}

	out := make([]models.Annotation, len(annotations))
	copy(out, annotations)

	// First pass groups rows: sort by top, then walk and assign a row anchor
	// to each element. Bucketing before the final sort keeps elements with
	// slightly staggered tops (49 vs 51) in one row.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Box.Top < out[j].Box.Top
	})

	rows := make([]float64, len(out))
	anchor := 0
	for i := range out {
		if out[i].Box.Top-out[anchor].Box.Top > tolerance {
			anchor = i
		}
		rows[i] = out[anchor].Box.Top
	}

	type indexed struct {
		row float64
		ann models.Annotation
	}
	idx := make([]indexed, len(out))
	for i := range out {
		idx[i] = indexed{row: rows[i], ann: out[i]}
	}

	sort.SliceStable(idx, func(i, j int) bool {
		if idx[i].row != idx[j].row {
			return idx[i].row < idx[j].row
		}
		return idx[i].ann.Box.Left < idx[j].ann.Box.Left
	})

	for i := range idx {
		out[i] = idx[i].ann
	}
	return out
}
