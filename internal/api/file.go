package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ananse-ntentan/backend/internal/media"
	apperrors "ananse-ntentan/backend/pkg/errors"
)

// FileController streams stored media: uploads, panel images, videos.
type FileController struct {
	files media.Store
}

// NewFileController creates a FileController.
func NewFileController(files media.Store) *FileController {
	return &FileController{files: files}
}

// RegisterRoutes registers the file endpoints.
func (c *FileController) RegisterRoutes(router *gin.Engine) {
	files := router.Group("/api/files")
	{
		files.GET("/audio/:id", c.GetAudio)
		files.GET("/image/:id", c.GetImage)
		files.GET("/:id", c.GetFile)
	}
}

func (c *FileController) load(ctx *gin.Context) ([]byte, string, bool) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		ctx.Error(apperrors.NewBadRequestError("INVALID_ID", "Invalid file id"))
		return nil, "", false
	}

	file, err := c.files.Get(ctx.Request.Context(), id)
	if err == media.ErrNotFound {
		ctx.Error(apperrors.NewNotFoundError("FILE_NOT_FOUND", "File not found"))
		return nil, "", false
	}
	if err != nil {
		ctx.Error(err)
		return nil, "", false
	}
	return file.Data, file.ContentType, true
}

// GetAudio streams an audio file.
func (c *FileController) GetAudio(ctx *gin.Context) {
	data, _, ok := c.load(ctx)
	if !ok {
		return
	}
	ctx.Header("Accept-Ranges", "bytes")
	ctx.Data(http.StatusOK, "audio/mpeg", data)
}

// GetImage streams an image with a long cache lifetime. Generated
// panels never change once stored.
func (c *FileController) GetImage(ctx *gin.Context) {
	data, contentType, ok := c.load(ctx)
	if !ok {
		return
	}
	if contentType == "" {
		contentType = "image/png"
	}
	ctx.Header("Accept-Ranges", "bytes")
	ctx.Header("Cache-Control", "public, max-age=86400")
	ctx.Data(http.StatusOK, contentType, data)
}

// GetFile streams any stored file with its recorded content type.
func (c *FileController) GetFile(ctx *gin.Context) {
	data, contentType, ok := c.load(ctx)
	if !ok {
		return
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	ctx.Header("Accept-Ranges", "bytes")
	ctx.Data(http.StatusOK, contentType, data)
}
