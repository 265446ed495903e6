package assemble

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stepcapture/stepcapture/pkg/models"
)

func ann(id string, top, left float64) models.Annotation {
	return models.Annotation{
		ElementID: id,
		Box:       models.BoundingBox{Top: top, Left: left, Width: 100, Height: 30},
	}
}

func TestReadingOrder_RowsThenColumns(t *testing.T) {
	// Two elements share row 50 (left 300 and 10), one sits at row 200.
	input := []models.Annotation{
		ann("a", 50, 300),
		ann("b", 200, 10),
		ann("c", 50, 10),
	}

	out := ReadingOrder(input, 16)

	assert.Equal(t, []string{"c", "a", "b"}, ids(out))
}

func TestReadingOrder_StaggeredTopsShareRow(t *testing.T) {
	// 49 vs 58 is within tolerance: one row, ordered by left.
	input := []models.Annotation{
		ann("right", 49, 500),
		ann("left", 58, 20),
	}

	out := ReadingOrder(input, 16)

	assert.Equal(t, []string{"left", "right"}, ids(out))
}

func TestReadingOrder_BeyondToleranceSplitsRows(t *testing.T) {
	input := []models.Annotation{
		ann("below", 80, 10),
		ann("above", 50, 500),
	}

	out := ReadingOrder(input, 16)

	assert.Equal(t, []string{"above", "below"}, ids(out))
}

func TestReadingOrder_Deterministic(t *testing.T) {
	input := []models.Annotation{
		ann("a", 50, 300),
		ann("b", 200, 10),
		ann("c", 50, 10),
		ann("d", 52, 150),
	}

	first := ReadingOrder(input, 16)
	for i := 0; i < 10; i++ {
		assert.Equal(t, ids(first), ids(ReadingOrder(input, 16)))
	}
}

func TestReadingOrder_DoesNotMutateInput(t *testing.T) {
	input := []models.Annotation{
		ann("a", 200, 10),
		ann("b", 50, 10),
	}

	_ = ReadingOrder(input, 16)

	assert.Equal(t, "a", input[0].ElementID)
}

func TestReadingOrder_Empty(t *testing.T) {
	assert.Empty(t, ReadingOrder(nil, 16))
}

func ids(anns []models.Annotation) []string {
	out := make([]string, len(anns))
	for i, a := range anns {
		out[i] = a.ElementID
	}
	return out
}
