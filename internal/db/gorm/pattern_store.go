package gorm

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/stepcapture/stepcapture/pkg/models"
)

// Store-level sentinel errors.
var (
	// ErrNotFound is returned when a row lookup or targeted update matches nothing.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyBound is returned when an element already has a pattern binding.
	ErrAlreadyBound = errors.New("element already bound to a pattern")
)

// PatternStore provides the per-(owner, application) pattern knowledge base.
type PatternStore struct {
	db *gorm.DB
}

// NewPatternStore creates a new pattern store.
func NewPatternStore(store *Store) *PatternStore {
	return &PatternStore{db: store.DB}
}

// Candidates retrieves active patterns for the three-part scope key.
// This is the sole index bounding the matcher's search space; it never
// returns cross-scope results. Ordering (usage desc, newest first) is the
// matcher's tie-break order, so equal-score candidates resolve stably.
func (s *PatternStore) Candidates(ctx context.Context, ownerID, application string, elementType models.ElementType) ([]*models.Pattern, error) {
	var dbPatterns []Pattern
	err := s.db.WithContext(ctx).
		Where("owner_id = ? AND application = ? AND element_type = ? AND is_active = 1",
			ownerID, application, elementType).
		Order("usage_count DESC, created_at_epoch DESC").
		Find(&dbPatterns).Error
	if err != nil {
		return nil, err
	}
	return toModelPatterns(dbPatterns), nil
}

// Insert stores a new pattern and returns it with its assigned id.
func (s *PatternStore) Insert(ctx context.Context, p *models.Pattern) (*models.Pattern, error) {
	dbPattern := fromModelPattern(p)
	if err := s.db.WithContext(ctx).Create(dbPattern).Error; err != nil {
		return nil, err
	}
	return toModelPattern(dbPattern), nil
}

// GetByID retrieves a pattern by id, active or not.
func (s *PatternStore) GetByID(ctx context.Context, id int64) (*models.Pattern, error) {
	var dbPattern Pattern
	err := s.db.WithContext(ctx).First(&dbPattern, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return toModelPattern(&dbPattern), nil
}

// Touch increments the pattern's usage count. The increment happens in SQL so
// concurrent touches across screenshots sharing a pattern never lose updates.
func (s *PatternStore) Touch(ctx context.Context, id int64) error {
	result := s.db.WithContext(ctx).
		Model(&Pattern{}).
		Where("id = ? AND is_active = 1", id).
		UpdateColumn("usage_count", gorm.Expr("usage_count + 1"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Deactivate soft-deletes a pattern. Inactive patterns are excluded from
// matching but retained for audit.
func (s *PatternStore) Deactivate(ctx context.Context, id int64) error {
	result := s.db.WithContext(ctx).
		Model(&Pattern{}).
		Where("id = ?", id).
		UpdateColumn("is_active", 0)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// HasActionForScope reports whether any active pattern in the scope carries a
// non-empty action. The question generator uses this to decide between
// purpose and action questions.
func (s *PatternStore) HasActionForScope(ctx context.Context, ownerID, application string, elementType models.ElementType) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&Pattern{}).
		Where("owner_id = ? AND application = ? AND element_type = ? AND is_active = 1 AND action != ''",
			ownerID, application, elementType).
		Count(&count).Error
	return count > 0, err
}

// toModelPattern converts a GORM Pattern to pkg/models.Pattern.
func toModelPattern(p *Pattern) *models.Pattern {
	return &models.Pattern{
		ID:          p.ID,
		OwnerID:     p.OwnerID,
		Application: p.Application,
		ElementType: p.ElementType,
		ReferenceBox: models.BoundingBox{
			Top:    p.RefTop,
			Left:   p.RefLeft,
			Width:  p.RefWidth,
			Height: p.RefHeight,
		},
		ReferenceText:   p.ReferenceText,
		Purpose:         p.Purpose,
		Action:          p.Action,
		BusinessContext: p.BusinessContext,
		VisualFeatures:  p.VisualFeatures,
		Confidence:      p.Confidence,
		UsageCount:      p.UsageCount,
		IsActive:        p.IsActive != 0,
		CreatedAt:       p.CreatedAt,
		CreatedAtEpoch:  p.CreatedAtEpoch,
	}
}

// toModelPatterns converts a slice of GORM Pattern to pkg/models.Pattern.
func toModelPatterns(patterns []Pattern) []*models.Pattern {
	result := make([]*models.Pattern, len(patterns))
	for i := range patterns {
		result[i] = toModelPattern(&patterns[i])
	}
	return result
}

// fromModelPattern converts a pkg/models.Pattern to its GORM row.
func fromModelPattern(p *models.Pattern) *Pattern {
	isActive := 0
	if p.IsActive {
		isActive = 1
	}
	return &Pattern{
		ID:              p.ID,
		OwnerID:         p.OwnerID,
		Application:     p.Application,
		ElementType:     p.ElementType,
		RefTop:          p.ReferenceBox.Top,
		RefLeft:         p.ReferenceBox.Left,
		RefWidth:        p.ReferenceBox.Width,
		RefHeight:       p.ReferenceBox.Height,
		ReferenceText:   p.ReferenceText,
		Purpose:         p.Purpose,
		Action:          p.Action,
		BusinessContext: p.BusinessContext,
		VisualFeatures:  p.VisualFeatures,
		Confidence:      p.Confidence,
		UsageCount:      p.UsageCount,
		IsActive:        isActive,
		CreatedAt:       p.CreatedAt,
		CreatedAtEpoch:  p.CreatedAtEpoch,
	}
}
