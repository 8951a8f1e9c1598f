package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ananse-ntentan/backend/internal/service"
	apperrors "ananse-ntentan/backend/pkg/errors"
)

// FeedController serves the public feed of completed stories.
type FeedController struct {
	stories *service.StoryService
}

// NewFeedController creates a FeedController.
func NewFeedController(stories *service.StoryService) *FeedController {
	return &FeedController{stories: stories}
}

// RegisterRoutes registers the feed endpoints.
func (c *FeedController) RegisterRoutes(router *gin.Engine) {
	feed := router.Group("/api/feed")
	{
		feed.GET("", c.GetFeed)
		feed.GET("/:id", c.GetStory)
		feed.POST("/:id/view", c.IncrementViews)
		feed.POST("/:id/like", c.IncrementLikes)
	}
}

// GetFeed returns one page of completed stories.
func (c *FeedController) GetFeed(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "10"))
	sort := ctx.DefaultQuery("sort", service.SortRecent)

	feed, err := c.stories.Feed(ctx.Request.Context(), page, limit, sort)
	if err != nil {
		ctx.Error(apperrors.NewBadRequestError("INVALID_SORT", err.Error()))
		return
	}
	ctx.JSON(http.StatusOK, feed)
}

// GetStory returns a completed story from the feed.
func (c *FeedController) GetStory(ctx *gin.Context) {
	id, ok := parseIDParam(ctx)
	if !ok {
		return
	}

	story, err := c.stories.GetComplete(ctx.Request.Context(), id)
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

// IncrementViews bumps a story's view counter.
func (c *FeedController) IncrementViews(ctx *gin.Context) {
	c.increment(ctx, c.stories.IncrementViews)
}

// IncrementLikes bumps a story's like counter.
func (c *FeedController) IncrementLikes(ctx *gin.Context) {
	c.increment(ctx, c.stories.IncrementLikes)
}

func (c *FeedController) increment(ctx *gin.Context, bump func(context.Context, uuid.UUID) error) {
	id, ok := parseIDParam(ctx)
	if !ok {
		return
	}

	err := bump(ctx.Request.Context(), id)
	if err == service.ErrStoryNotFound {
		ctx.Error(apperrors.NewNotFoundError("STORY_NOT_FOUND", "Story not found"))
		return
	}
	if err != nil {
		ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"success": true})
}
