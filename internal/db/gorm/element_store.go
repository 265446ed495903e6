package gorm

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/stepcapture/stepcapture/pkg/models"
)

// ElementStore persists detected elements and their lifecycle state.
type ElementStore struct {
	db *gorm.DB
}

// NewElementStore creates a new element store.
func NewElementStore(store *Store) *ElementStore {
	return &ElementStore{db: store.DB}
}

// InsertBatch stores the elements of one screenshot analysis pass.
func (s *ElementStore) InsertBatch(ctx context.Context, elems []*models.DetectedElement) error {
	if len(elems) == 0 {
		return nil
	}
	rows := make([]Element, len(elems))
	for i, e := range elems {
		rows[i] = *fromModelElement(e)
	}
	return s.db.WithContext(ctx).Create(&rows).Error
}

// GetByID retrieves an element by id.
func (s *ElementStore) GetByID(ctx context.Context, id string) (*models.DetectedElement, error) {
	var dbElem Element
	err := s.db.WithContext(ctx).First(&dbElem, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return toModelElement(&dbElem), nil
}

// BindPattern assigns a pattern to an element and moves it to the given
// terminal status. The binding is insert-once: the WHERE clause refuses
// elements that already carry a pattern, so no element is ever bound twice.
func (s *ElementStore) BindPattern(ctx context.Context, elementID string, patternID int64, score float64, status models.ElementStatus) error {
	result := s.db.WithContext(ctx).
		Model(&Element{}).
		Where("id = ? AND pattern_id IS NULL", elementID).
		Updates(map[string]interface{}{
			"pattern_id":  patternID,
			"match_score": score,
			"status":      status,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// Distinguish missing from already-bound for callers that care.
		var count int64
		if err := s.db.WithContext(ctx).Model(&Element{}).Where("id = ?", elementID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
		return ErrAlreadyBound
	}
	return nil
}

// SetStatus updates an element's lifecycle status without touching its binding.
func (s *ElementStore) SetStatus(ctx context.Context, elementID string, status models.ElementStatus) error {
	result := s.db.WithContext(ctx).
		Model(&Element{}).
		Where("id = ?", elementID).
		UpdateColumn("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByScreenshot retrieves all elements of one screenshot in insertion order.
func (s *ElementStore) GetByScreenshot(ctx context.Context, screenshotID string) ([]*models.DetectedElement, error) {
	var dbElems []Element
	err := s.db.WithContext(ctx).
		Where("screenshot_id = ?", screenshotID).
		Order("created_at_epoch ASC, id ASC").
		Find(&dbElems).Error
	if err != nil {
		return nil, err
	}
	return toModelElements(dbElems), nil
}

// toModelElement converts a GORM Element to pkg/models.DetectedElement.
func toModelElement(e *Element) *models.DetectedElement {
	return &models.DetectedElement{
		ID:           e.ID,
		ScreenshotID: e.ScreenshotID,
		OwnerID:      e.OwnerID,
		Application:  e.Application,
		Type:         e.Type,
		Box: models.BoundingBox{
			Top:    e.BoxTop,
			Left:   e.BoxLeft,
			Width:  e.BoxWidth,
			Height: e.BoxHeight,
		},
		Text:           e.Text,
		VisualFeatures: e.VisualFeatures,
		Confidence:     e.Confidence,
		Status:         e.Status,
		PatternID:      e.PatternID,
		MatchScore:     e.MatchScore,
		CreatedAt:      e.CreatedAt,
		CreatedAtEpoch: e.CreatedAtEpoch,
	}
}

// toModelElements converts a slice of GORM Element to pkg/models.DetectedElement.
func toModelElements(elems []Element) []*models.DetectedElement {
	result := make([]*models.DetectedElement, len(elems))
	for i := range elems {
		result[i] = toModelElement(&elems[i])
	}
	return result
}

// fromModelElement converts a pkg/models.DetectedElement to its GORM row.
func fromModelElement(e *models.DetectedElement) *Element {
	return &Element{
		ID:             e.ID,
		ScreenshotID:   e.ScreenshotID,
		OwnerID:        e.OwnerID,
		Application:    e.Application,
		Type:           e.Type,
		BoxTop:         e.Box.Top,
		BoxLeft:        e.Box.Left,
		BoxWidth:       e.Box.Width,
		BoxHeight:      e.Box.Height,
		Text:           e.Text,
		VisualFeatures: e.VisualFeatures,
		Confidence:     e.Confidence,
		Status:         e.Status,
		PatternID:      e.PatternID,
		MatchScore:     e.MatchScore,
		CreatedAt:      e.CreatedAt,
		CreatedAtEpoch: e.CreatedAtEpoch,
	}
}
