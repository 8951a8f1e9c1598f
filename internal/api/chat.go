package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ananse-ntentan/backend/internal/service"
	apperrors "ananse-ntentan/backend/pkg/errors"
)

// ChatController exposes the REST side of chat: room listing, history
// and lifecycle. Live messaging happens over the WebSocket.
type ChatController struct {
	messages *service.MessageService
}

// NewChatController creates a ChatController.
func NewChatController(messages *service.MessageService) *ChatController {
	return &ChatController{messages: messages}
}

// RegisterRoutes registers the chat REST endpoints.
func (c *ChatController) RegisterRoutes(router *gin.Engine) {
	chat := router.Group("/api/chat")
	{
		chat.GET("/rooms/:userId", c.GetRooms)
		chat.GET("/room/:roomId/messages", c.GetMessages)
		chat.POST("/room/create", c.CreateRoom)
		chat.DELETE("/room/:roomId", c.DeleteRoom)
	}
}

// GetRooms lists a user's rooms with last-message previews.
func (c *ChatController) GetRooms(ctx *gin.Context) {
	userID := ctx.Param("userId")
	if userID == "" {
		ctx.Error(apperrors.NewBadRequestError("USER_REQUIRED", "User id is required"))
		return
	}

	rooms, err := c.messages.RoomsForUser(ctx.Request.Context(), userID)
	if err != nil {
		ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

// GetMessages returns room history in chronological order.
func (c *ChatController) GetMessages(ctx *gin.Context) {
	roomID, ok := parseRoomParam(ctx)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "50"))

	var before *time.Time
	if raw := ctx.Query("before"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			ctx.Error(apperrors.NewBadRequestError("INVALID_BEFORE", "before must be an RFC 3339 timestamp"))
			return
		}
		before = &t
	}

	messages, err := c.messages.RecentMessages(ctx.Request.Context(), roomID, limit, before)
	if err != nil {
		ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"messages": messages})
}

type createRoomRequest struct {
	Participants []string `json:"participants"`
}

// CreateRoom creates a two-party room.
func (c *ChatController) CreateRoom(ctx *gin.Context) {
	var req createRoomRequest
	if err := ctx.ShouldBindJSON(&req); err != nil || len(req.Participants) != 2 {
		ctx.Error(apperrors.NewBadRequestError("INVALID_PARTICIPANTS", "Exactly 2 participants required"))
		return
	}

	room, err := c.messages.CreateRoom(ctx.Request.Context(), req.Participants)
	if err != nil {
		ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"roomId": room.ID, "existing": false})
}

// DeleteRoom removes a room and its messages.
func (c *ChatController) DeleteRoom(ctx *gin.Context) {
	roomID, ok := parseRoomParam(ctx)
	if !ok {
		return
	}

	err := c.messages.DeleteRoom(ctx.Request.Context(), roomID)
	if err == service.ErrRoomNotFound {
		ctx.Error(apperrors.NewNotFoundError("ROOM_NOT_FOUND", "Chat room not found"))
		return
	}
	if err != nil {
		ctx.Error(err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"success": true})
}

func parseRoomParam(ctx *gin.Context) (uuid.UUID, bool) {
	roomID, err := uuid.Parse(ctx.Param("roomId"))
	if err != nil {
		ctx.Error(apperrors.NewBadRequestError("INVALID_ID", "Invalid room id"))
		return uuid.Nil, false
	}
	return roomID, true
}
