package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "ananse-ntentan/backend/pkg/errors"
	"ananse-ntentan/backend/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
	logger.SetGlobal(logger.New(logger.Config{Level: "error", JSON: false, Output: io.Discard}))
}

// newTestRouter wires the error middleware the way the real router
// does, so handlers' ctx.Error calls turn into status codes.
func newTestRouter() *gin.Engine {
	router := gin.New()
	router.Use(apperrors.ErrorHandler())
	return router
}

func performJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateWriteStoryRejectsEmptyText(t *testing.T) {
	router := newTestRouter()
	ctrl := NewStoryController(nil, nil, nil, 0, 0, nil)
	router.POST("/api/stories/write", ctrl.CreateWriteStory)

	rec := performJSON(router, http.MethodPost, "/api/stories/write", map[string]string{"text": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "TEXT_REQUIRED")
}

func TestCreateWriteStoryRejectsOverlongText(t *testing.T) {
	router := newTestRouter()
	ctrl := NewStoryController(nil, nil, nil, 0, 0, nil)
	router.POST("/api/stories/write", ctrl.CreateWriteStory)

	rec := performJSON(router, http.MethodPost, "/api/stories/write", map[string]string{
		"text": strings.Repeat("a", MaxWriteTextLength+1),
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "TEXT_TOO_LONG")
}

func TestCreateSpeakStoryRequiresFile(t *testing.T) {
	router := newTestRouter()
	ctrl := NewStoryController(nil, nil, nil, 1024, 1024, nil)
	router.POST("/api/stories/speak", ctrl.CreateSpeakStory)

	req := httptest.NewRequest(http.MethodPost, "/api/stories/speak", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "AUDIO_REQUIRED")
}

func TestGetStoryStatusRejectsMalformedID(t *testing.T) {
	router := newTestRouter()
	ctrl := NewStoryController(nil, nil, nil, 0, 0, nil)
	router.GET("/api/stories/:id/status", ctrl.GetStoryStatus)

	rec := performJSON(router, http.MethodGet, "/api/stories/not-a-uuid/status", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_ID")
}

func TestGetFileRejectsMalformedID(t *testing.T) {
	router := newTestRouter()
	ctrl := NewFileController(nil)
	router.GET("/api/files/:id", ctrl.GetFile)

	rec := performJSON(router, http.MethodGet, "/api/files/zzz", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateRoomRequiresTwoParticipants(t *testing.T) {
	router := newTestRouter()
	ctrl := NewChatController(nil)
	router.POST("/api/chat/room/create", ctrl.CreateRoom)

	rec := performJSON(router, http.MethodPost, "/api/chat/room/create", map[string]any{
		"participants": []string{"only-one"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_PARTICIPANTS")
}

func TestParseStyleID(t *testing.T) {
	assert.Nil(t, parseStyleID(""))
	assert.Nil(t, parseStyleID("default"))
	assert.Nil(t, parseStyleID("not-a-uuid"))

	id := parseStyleID("7b0d1a9e-4f2c-4f4e-9d11-1234567890ab")
	require.NotNil(t, id)
	assert.Equal(t, "7b0d1a9e-4f2c-4f4e-9d11-1234567890ab", id.String())
}
