package api

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ananse-ntentan/backend/internal/media"
	"ananse-ntentan/backend/internal/models"
	"ananse-ntentan/backend/internal/service"
	apperrors "ananse-ntentan/backend/pkg/errors"
	"ananse-ntentan/backend/pkg/logger"
	"ananse-ntentan/backend/pkg/metrics"
)

// MaxWriteTextLength bounds written story submissions.
const MaxWriteTextLength = 5000

// Processor launches the asynchronous story pipeline.
type Processor interface {
	Process(storyID uuid.UUID)
}

// StoryController handles story submission and status endpoints.
type StoryController struct {
	stories      *service.StoryService
	files        media.Store
	pipeline     Processor
	maxAudioSize int64
	maxImageSize int64
	log          *logger.Logger
}

// NewStoryController creates a StoryController.
func NewStoryController(stories *service.StoryService, files media.Store, pipeline Processor, maxAudioSize, maxImageSize int64, log *logger.Logger) *StoryController {
	return &StoryController{
		stories:      stories,
		files:        files,
		pipeline:     pipeline,
		maxAudioSize: maxAudioSize,
		maxImageSize: maxImageSize,
		log:          log,
	}
}

// RegisterRoutes registers the story endpoints.
func (c *StoryController) RegisterRoutes(router *gin.Engine) {
	stories := router.Group("/api/stories")
	{
		stories.POST("/write", c.CreateWriteStory)
		stories.POST("/speak", c.CreateSpeakStory)
		stories.POST("/sketch", c.CreateSketchStory)
		stories.GET("/:id/status", c.GetStoryStatus)
		stories.GET("/:id", c.GetStory)
	}
}

type writeStoryRequest struct {
	Text          string `json:"text"`
	VisualStyleID string `json:"visualStyleId"`
	AudioStyleID  string `json:"audioStyleId"`
}

// CreateWriteStory accepts a written story and queues processing.
func (c *StoryController) CreateWriteStory(ctx *gin.Context) {
	var req writeStoryRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.Error(apperrors.NewBadRequestError("INVALID_BODY", "Request body must be valid JSON"))
		return
	}

	if strings.TrimSpace(req.Text) == "" {
		ctx.Error(apperrors.NewBadRequestError("TEXT_REQUIRED", "Text content is required"))
		return
	}
	if len(req.Text) > MaxWriteTextLength {
		ctx.Error(apperrors.NewUnprocessableEntityError("TEXT_TOO_LONG",
			fmt.Sprintf("Text exceeds maximum length of %d characters", MaxWriteTextLength)))
		return
	}

	story := &models.Story{
		Type:            models.StoryTypeWrite,
		OriginalContent: models.OriginalContent{Text: req.Text},
		VisualStyleID:   parseStyleID(req.VisualStyleID),
		AudioStyleID:    parseStyleID(req.AudioStyleID),
	}
	c.createAndQueue(ctx, story, "Story is being processed")
}

// CreateSpeakStory accepts an audio recording and queues processing.
func (c *StoryController) CreateSpeakStory(ctx *gin.Context) {
	file, header, err := ctx.Request.FormFile("audio")
	if err != nil {
		ctx.Error(apperrors.NewBadRequestError("AUDIO_REQUIRED",
			`Audio file is required. Please upload with key "audio".`))
		return
	}
	defer file.Close()

	if header.Size > c.maxAudioSize {
		ctx.Error(apperrors.NewBadRequestError("FILE_TOO_LARGE",
			fmt.Sprintf("Audio file exceeds maximum size of %d bytes", c.maxAudioSize)))
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, c.maxAudioSize+1))
	if err != nil || int64(len(data)) > c.maxAudioSize {
		ctx.Error(apperrors.NewBadRequestError("FILE_TOO_LARGE",
			fmt.Sprintf("Audio file exceeds maximum size of %d bytes", c.maxAudioSize)))
		return
	}

	fileID, err := c.files.Put(ctx.Request.Context(), data,
		fmt.Sprintf("story-speak-%d.mp3", time.Now().UnixMilli()),
		media.Meta{
			ContentType: header.Header.Get("Content-Type"),
			Kind:        models.MediaKindOriginalAudio,
		})
	if err != nil {
		ctx.Error(err)
		return
	}

	story := &models.Story{
		Type:            models.StoryTypeSpeak,
		OriginalContent: models.OriginalContent{AudioFileID: &fileID},
		VisualStyleID:   parseStyleID(ctx.PostForm("visualStyleId")),
		AudioStyleID:    parseStyleID(ctx.PostForm("audioStyleId")),
	}
	c.createAndQueue(ctx, story, "Audio story received and processing started")
}

// CreateSketchStory accepts a sketch image and queues processing.
func (c *StoryController) CreateSketchStory(ctx *gin.Context) {
	file, header, err := ctx.Request.FormFile("image")
	if err != nil {
		ctx.Error(apperrors.NewBadRequestError("IMAGE_REQUIRED", "Image file is required."))
		return
	}
	defer file.Close()

	if header.Size > c.maxImageSize {
		ctx.Error(apperrors.NewBadRequestError("FILE_TOO_LARGE",
			fmt.Sprintf("Image file exceeds maximum size of %d bytes", c.maxImageSize)))
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, c.maxImageSize+1))
	if err != nil || int64(len(data)) > c.maxImageSize {
		ctx.Error(apperrors.NewBadRequestError("FILE_TOO_LARGE",
			fmt.Sprintf("Image file exceeds maximum size of %d bytes", c.maxImageSize)))
		return
	}

	fileID, err := c.files.Put(ctx.Request.Context(), data,
		fmt.Sprintf("story-sketch-%d-%s", time.Now().UnixMilli(), header.Filename),
		media.Meta{
			ContentType: header.Header.Get("Content-Type"),
			Kind:        models.MediaKindOriginalImage,
		})
	if err != nil {
		ctx.Error(err)
		return
	}

	story := &models.Story{
		Type:            models.StoryTypeSketch,
		OriginalContent: models.OriginalContent{ImageFileID: &fileID},
		VisualStyleID:   parseStyleID(ctx.PostForm("visualStyleId")),
		AudioStyleID:    parseStyleID(ctx.PostForm("audioStyleId")),
	}
	c.createAndQueue(ctx, story, "Sketch story received and processing started")
}

// createAndQueue persists the pending story, answers immediately and
// hands off to the pipeline.
func (c *StoryController) createAndQueue(ctx *gin.Context, story *models.Story, message string) {
	if err := c.stories.Create(ctx.Request.Context(), story); err != nil {
		ctx.Error(err)
		return
	}

	metrics.StoriesSubmitted.WithLabelValues(story.Type).Inc()
	ctx.JSON(http.StatusCreated, gin.H{
		"success": true,
		"storyId": story.ID,
		"status":  models.StatusPending,
		"message": message,
	})

	go c.pipeline.Process(story.ID)
}

// GetStoryStatus reports processing state for polling clients.
func (c *StoryController) GetStoryStatus(ctx *gin.Context) {
	id, ok := parseIDParam(ctx)
	if !ok {
		return
	}

	status, err := c.stories.Status(ctx.Request.Context(), id)
	if err == service.ErrStoryNotFound {
		ctx.Error(apperrors.NewNotFoundError("STORY_NOT_FOUND", "Story not found"))
		return
	}
	if err != nil {
		ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, status)
}

// GetStory returns the full story record.
func (c *StoryController) GetStory(ctx *gin.Context) {
	id, ok := parseIDParam(ctx)
	if !ok {
		return
	}

	story, err := c.stories.Get(ctx.Request.Context(), id)
	if err == service.ErrStoryNotFound {
		ctx.Error(apperrors.NewNotFoundError("STORY_NOT_FOUND", "Story not found"))
		return
	}
	if err != nil {
		ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, story)
}

// parseStyleID turns an optional style reference into a UUID pointer.
// "default", empty and malformed values all fall back to nil, which
// the pipeline resolves to the default style.
func parseStyleID(raw string) *uuid.UUID {
	if raw == "" || raw == "default" {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &id
}

func parseIDParam(ctx *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		ctx.Error(apperrors.NewBadRequestError("INVALID_ID", "Invalid story id"))
		return uuid.Nil, false
	}
	return id, true
}
