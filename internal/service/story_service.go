package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"ananse-ntentan/backend/internal/models"
	"ananse-ntentan/backend/pkg/logger"
	"ananse-ntentan/backend/shared/redis"
)

// ErrStoryNotFound is returned when no story exists for the given ID.
var ErrStoryNotFound = errors.New("story not found")

// Feed sort orders.
const (
	SortRecent  = "recent"
	SortPopular = "popular"
	SortViewed  = "viewed"
	SortOldest  = "oldest"
)

const statusCacheTTL = 15 * time.Second

// StoryStatus is the polled processing-state view of a story.
type StoryStatus struct {
	ID             uuid.UUID `json:"storyId"`
	Type           string    `json:"type"`
	Status         string    `json:"status"`
	ProcessingTime int64     `json:"processingTime"`
	ErrorMessage   string    `json:"errorMessage,omitempty"`
}

// FeedPage is one page of completed stories.
type FeedPage struct {
	Stories []models.Story `json:"stories"`
	Total   int64          `json:"total"`
	Page    int            `json:"page"`
	Pages   int            `json:"pages"`
}

// StoryService owns story persistence, the processing state machine
// writes, and the public feed queries.
type StoryService struct {
	db    *gorm.DB
	cache *redis.Client // optional status cache
	log   *logger.Logger
}

// NewStoryService creates a StoryService. cache may be nil.
func NewStoryService(db *gorm.DB, cache *redis.Client, log *logger.Logger) *StoryService {
	return &StoryService{db: db, cache: cache, log: log}
}

// Create persists a new story record in pending state.
func (s *StoryService) Create(ctx context.Context, story *models.Story) error {
	if story.Status == "" {
		story.Status = models.StatusPending
	}
	return s.db.WithContext(ctx).Create(story).Error
}

// Get loads a story by ID.
func (s *StoryService) Get(ctx context.Context, id uuid.UUID) (*models.Story, error) {
	var story models.Story
	err := s.db.WithContext(ctx).First(&story, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrStoryNotFound
	}
	if err != nil {
		return nil, err
	}
	return &story, nil
}

// Claim atomically moves a pending story to processing. Returns false
// when the story is missing or already claimed, so a second concurrent
// pipeline run backs off instead of double-processing.
func (s *StoryService) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Story{}).
		Where("id = ? AND status = ?", id, models.StatusPending).
		Update("status", models.StatusProcessing)
	if res.Error != nil {
		return false, res.Error
	}
	s.invalidateStatus(ctx, id)
	return res.RowsAffected > 0, nil
}

// SetTranscription persists the derived transcript for speak/sketch
// submissions before the main generation hand-off.
func (s *StoryService) SetTranscription(ctx context.Context, id uuid.UUID, text string) error {
	story, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	story.OriginalContent.Text = text
	story.OriginalContent.Transcription = text
	return s.db.WithContext(ctx).Model(story).Update("original_content", story.OriginalContent).Error
}

// Complete writes the generated narratives and marks the story done.
func (s *StoryService) Complete(ctx context.Context, id uuid.UUID, visual models.VisualNarrative, audio models.AudioNarrative, templateID *uuid.UUID, elapsed time.Duration) error {
	err := s.db.WithContext(ctx).
		Model(&models.Story{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"visual_narrative":   visual,
			"audio_narrative":    audio,
			"prompt_template_id": templateID,
			"status":             models.StatusComplete,
			"processing_time":    elapsed.Milliseconds(),
		}).Error
	s.invalidateStatus(ctx, id)
	return err
}

// Fail marks the story failed with the boundary error message.
func (s *StoryService) Fail(ctx context.Context, id uuid.UUID, message string, elapsed time.Duration) error {
	err := s.db.WithContext(ctx).
		Model(&models.Story{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":          models.StatusFailed,
			"error_message":   message,
			"processing_time": elapsed.Milliseconds(),
		}).Error
	s.invalidateStatus(ctx, id)
	return err
}

// SetVideo attaches a rendered video to the story's visual narrative.
func (s *StoryService) SetVideo(ctx context.Context, id uuid.UUID, fileID uuid.UUID, duration float64) error {
	story, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	story.VisualNarrative.VideoFileID = &fileID
	story.VisualNarrative.VideoDuration = duration
	return s.db.WithContext(ctx).Model(story).Update("visual_narrative", story.VisualNarrative).Error
}

// Status returns the processing state, served from the redis cache
// when fresh. Pipeline writes invalidate the cached entry.
func (s *StoryService) Status(ctx context.Context, id uuid.UUID) (*StoryStatus, error) {
	key := statusKey(id)
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key); err == nil {
			var st StoryStatus
			if json.Unmarshal([]byte(raw), &st) == nil {
				return &st, nil
			}
		}
	}

	var story models.Story
	err := s.db.WithContext(ctx).
		Select("id", "type", "status", "processing_time", "error_message").
		First(&story, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrStoryNotFound
	}
	if err != nil {
		return nil, err
	}

	st := &StoryStatus{
		ID:             story.ID,
		Type:           story.Type,
		Status:         story.Status,
		ProcessingTime: story.ProcessingTime,
		ErrorMessage:   story.ErrorMessage,
	}

	if s.cache != nil {
		if raw, err := json.Marshal(st); err == nil {
			if err := s.cache.Set(ctx, key, raw, statusCacheTTL); err != nil {
				s.log.Debug("Status cache write failed", "error", err.Error())
			}
		}
	}
	return st, nil
}

func (s *StoryService) invalidateStatus(ctx context.Context, id uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, statusKey(id)); err != nil {
		s.log.Debug("Status cache invalidation failed", "error", err.Error())
	}
}

func statusKey(id uuid.UUID) string {
	return "story-status:" + id.String()
}

// Feed returns one page of completed stories in the requested order.
func (s *StoryService) Feed(ctx context.Context, page, limit int, sort string) (*FeedPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}

	base := s.db.WithContext(ctx).
		Model(&models.Story{}).
		Where("status = ?", models.StatusComplete)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, err
	}

	offset, order, err := feedQuery(page, limit, sort)
	if err != nil {
		return nil, err
	}

	var stories []models.Story
	err = base.Session(&gorm.Session{}).
		Order(order).
		Offset(offset).
		Limit(limit).
		Find(&stories).Error
	if err != nil {
		return nil, err
	}

	return &FeedPage{
		Stories: stories,
		Total:   total,
		Page:    page,
		Pages:   Pages(total, limit),
	}, nil
}

// feedQuery maps a normalized page, limit and sort order onto the
// offset and ORDER BY clause for the feed query.
func feedQuery(page, limit int, sort string) (int, string, error) {
	var order string
	switch sort {
	case SortPopular:
		order = "(metadata->>'likes')::bigint DESC, created_at DESC"
	case SortViewed:
		order = "(metadata->>'views')::bigint DESC, created_at DESC"
	case SortOldest:
		order = "created_at ASC"
	case SortRecent, "":
		order = "created_at DESC"
	default:
		return 0, "", fmt.Errorf("unknown sort order: %s", sort)
	}
	return (page - 1) * limit, order, nil
}

// Pages computes ceil(total/limit) for feed pagination.
func Pages(total int64, limit int) int {
	if limit <= 0 {
		return 0
	}
	return int(math.Ceil(float64(total) / float64(limit)))
}

// GetComplete loads a story only if it finished processing.
func (s *StoryService) GetComplete(ctx context.Context, id uuid.UUID) (*models.Story, error) {
	var story models.Story
	err := s.db.WithContext(ctx).
		First(&story, "id = ? AND status = ?", id, models.StatusComplete).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrStoryNotFound
	}
	if err != nil {
		return nil, err
	}
	return &story, nil
}

// IncrementViews bumps the view counter on a story's metadata.
func (s *StoryService) IncrementViews(ctx context.Context, id uuid.UUID) error {
	return s.incrementCounter(ctx, id, "views")
}

// IncrementLikes bumps the like counter on a story's metadata.
func (s *StoryService) IncrementLikes(ctx context.Context, id uuid.UUID) error {
	return s.incrementCounter(ctx, id, "likes")
}

func (s *StoryService) incrementCounter(ctx context.Context, id uuid.UUID, field string) error {
	res := s.db.WithContext(ctx).
		Model(&models.Story{}).
		Where("id = ?", id).
		Update("metadata", gorm.Expr(
			"jsonb_set(COALESCE(metadata, '{}'::jsonb), ?, (COALESCE(metadata->>?, '0')::bigint + 1)::text::jsonb)",
			fmt.Sprintf("{%s}", field), field,
		))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStoryNotFound
	}
	return nil
}
