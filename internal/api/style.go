package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ananse-ntentan/backend/internal/service"
)

// StyleController lists the selectable visual and audio styles.
type StyleController struct {
	styles *service.StyleService
}

// NewStyleController creates a StyleController.
func NewStyleController(styles *service.StyleService) *StyleController {
	return &StyleController{styles: styles}
}

// RegisterRoutes registers the style endpoints.
func (c *StyleController) RegisterRoutes(router *gin.Engine) {
	group := router.Group("/api/styles")
	{
		group.GET("/visual", c.GetVisualStyles)
		group.GET("/audio", c.GetAudioStyles)
	}
}

// GetVisualStyles lists active artistic styles, most popular first.
func (c *StyleController) GetVisualStyles(ctx *gin.Context) {
	styles, err := c.styles.ListArtisticStyles(ctx.Request.Context())
	if err != nil {
		ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"styles": styles})
}

// GetAudioStyles lists active audio styles, most popular first.
func (c *StyleController) GetAudioStyles(ctx *gin.Context) {
	styles, err := c.styles.ListAudioStyles(ctx.Request.Context())
	if err != nil {
		ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"styles": styles})
}
