package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"ananse-ntentan/backend/internal/models"
	"ananse-ntentan/backend/pkg/cache"
)

// ErrNoActiveTemplate is returned when no active prompt template
// exists for a submission type. The pipeline treats this as fatal.
var ErrNoActiveTemplate = errors.New("no active prompt template found")

// StyleService resolves artistic styles, audio styles and prompt
// templates, with an in-memory TTL cache in front of the database.
// Styles change rarely and every pipeline run reads them.
type StyleService struct {
	db    *gorm.DB
	cache *cache.Cache
}

// NewStyleService creates a StyleService. cache may be nil.
func NewStyleService(db *gorm.DB, c *cache.Cache) *StyleService {
	return &StyleService{db: db, cache: c}
}

// ActiveTemplate returns the first active prompt template for the
// given submission type.
func (s *StyleService) ActiveTemplate(ctx context.Context, storyType string) (*models.PromptTemplate, error) {
	key := "template:" + storyType
	if s.cache != nil {
		if v, ok := s.cache.Get(key); ok {
			return v.(*models.PromptTemplate), nil
		}
	}

	var tmpl models.PromptTemplate
	err := s.db.WithContext(ctx).
		Where("type = ? AND is_active = ?", storyType, true).
		Order("created_at ASC").
		First(&tmpl).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w for %s stories", ErrNoActiveTemplate, storyType)
	}
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Set(key, &tmpl)
	}
	return &tmpl, nil
}

// ArtisticStyle loads a visual style by ID.
func (s *StyleService) ArtisticStyle(ctx context.Context, id uuid.UUID) (*models.ArtisticStyle, error) {
	key := "artistic-style:" + id.String()
	if s.cache != nil {
		if v, ok := s.cache.Get(key); ok {
			return v.(*models.ArtisticStyle), nil
		}
	}

	var style models.ArtisticStyle
	if err := s.db.WithContext(ctx).First(&style, "id = ?", id).Error; err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Set(key, &style)
	}
	return &style, nil
}

// AudioStyle loads an audio style by ID.
func (s *StyleService) AudioStyle(ctx context.Context, id uuid.UUID) (*models.AudioStyle, error) {
	key := "audio-style:" + id.String()
	if s.cache != nil {
		if v, ok := s.cache.Get(key); ok {
			return v.(*models.AudioStyle), nil
		}
	}

	var style models.AudioStyle
	if err := s.db.WithContext(ctx).First(&style, "id = ?", id).Error; err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Set(key, &style)
	}
	return &style, nil
}

// ListArtisticStyles returns all active visual styles.
func (s *StyleService) ListArtisticStyles(ctx context.Context) ([]models.ArtisticStyle, error) {
	var styles []models.ArtisticStyle
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("popularity DESC").
		Find(&styles).Error
	return styles, err
}

// ListAudioStyles returns all active audio styles.
func (s *StyleService) ListAudioStyles(ctx context.Context) ([]models.AudioStyle, error) {
	var styles []models.AudioStyle
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("popularity DESC").
		Find(&styles).Error
	return styles, err
}
