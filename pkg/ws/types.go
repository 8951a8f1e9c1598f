// Package ws defines the WebSocket wire protocol: one JSON frame per
// message, tagged with a type and carrying a type-specific payload.
package ws

import (
	"encoding/json"

	"ananse-ntentan/backend/internal/models"
	"ananse-ntentan/backend/internal/service"
)

// Client-to-server frame types.
const (
	TypeRegister          = "register"
	TypeFindMatch         = "find_match"
	TypeSendMessage       = "send_message"
	TypeSendVisualMessage = "send_visual_message"
	TypeStartAIStory      = "start_ai_story"
	TypeSendAIMessage     = "send_ai_message"
	TypeJoinRoom          = "join_room"
	TypeLeaveRoom         = "leave_room"
	TypeGetRooms          = "get_rooms"
)

// Server-to-client frame types.
const (
	TypeRegistered         = "registered"
	TypeAlreadySearching   = "already_searching"
	TypeWaiting            = "waiting"
	TypeMatchFound         = "match_found"
	TypeMessage            = "message"
	TypeVisualLimitReached = "visual_limit_reached"
	TypeVisualGenerating   = "visual_generating"
	TypeVisualMessage      = "visual_message"
	TypeVisualError        = "visual_error"
	TypeAIThinking         = "ai_thinking"
	TypeAIStoryResponse    = "ai_story_response"
	TypeAIError            = "ai_error"
	TypeRoomHistory        = "room_history"
	TypeRoomsList          = "rooms_list"
	TypeUserDisconnected   = "user_disconnected"
	TypeError              = "error"
)

// Frame is the envelope for every message in either direction.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewFrame marshals payload into a Frame. Marshal failures become an
// error frame so the client always receives something well-formed.
func NewFrame(frameType string, payload any) Frame {
	if payload == nil {
		return Frame{Type: frameType}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Frame{Type: TypeError, Payload: json.RawMessage(`{"message":"internal encoding error"}`)}
	}
	return Frame{Type: frameType, Payload: data}
}

// RegisterPayload announces the client's anonymous identity.
type RegisterPayload struct {
	UserID string `json:"userId"`
}

// SendMessagePayload is a plain text chat message.
type SendMessagePayload struct {
	RoomID  string `json:"roomId"`
	Content string `json:"content"`
}

// SendVisualMessagePayload requests a generated visual message.
type SendVisualMessagePayload struct {
	RoomID string `json:"roomId"`
	Prompt string `json:"prompt"`
	Panels int    `json:"panels,omitempty"`
}

// StartAIStoryPayload begins a co-authored story in a solo room.
type StartAIStoryPayload struct {
	RoomID string `json:"roomId"`
	Prompt string `json:"prompt"`
}

// SendAIMessagePayload continues a co-authored story.
type SendAIMessagePayload struct {
	RoomID  string `json:"roomId"`
	Content string `json:"content"`
}

// RoomPayload targets a single room (join, leave, history).
type RoomPayload struct {
	RoomID string `json:"roomId"`
}

// WaitingPayload reports queue position while matchmaking.
type WaitingPayload struct {
	Message  string `json:"message"`
	Position int    `json:"position"`
}

// MatchFoundPayload announces a new two-party room.
type MatchFoundPayload struct {
	Room      string `json:"room"`
	PartnerID string `json:"partnerId"`
}

// MessagePayload delivers a persisted chat message.
type MessagePayload struct {
	Message *models.ChatMessage `json:"message"`
}

// VisualLimitPayload reports quota exhaustion.
type VisualLimitPayload struct {
	Message string `json:"message"`
	Used    int64  `json:"used"`
	Limit   int    `json:"limit"`
}

// VisualGeneratingPayload acknowledges a visual request in flight.
type VisualGeneratingPayload struct {
	Message   string `json:"message"`
	MessageID string `json:"messageId"`
	Remaining int64  `json:"remaining"`
}

// VisualErrorPayload reports a failed visual generation.
type VisualErrorPayload struct {
	Message   string `json:"message"`
	MessageID string `json:"messageId"`
	Error     string `json:"error,omitempty"`
}

// VisualMessagePayload delivers a completed visual message to both
// participants.
type VisualMessagePayload struct {
	RoomID    string         `json:"roomId"`
	MessageID string         `json:"messageId"`
	SenderID  string         `json:"senderId"`
	Content   string         `json:"content"`
	Title     string         `json:"title"`
	Panels    []models.Panel `json:"panels"`
}

// AIThinkingPayload signals the co-author is composing a turn.
type AIThinkingPayload struct {
	Message string `json:"message"`
}

// AIStoryResponsePayload delivers a co-author turn.
type AIStoryResponsePayload struct {
	Message             *models.ChatMessage `json:"message"`
	HasThoughtSignature bool                `json:"hasThoughtSignature"`
}

// RoomHistoryPayload delivers recent messages in chronological order.
type RoomHistoryPayload struct {
	RoomID   string               `json:"roomId"`
	Messages []models.ChatMessage `json:"messages"`
}

// RoomsListPayload delivers the user's rooms with previews.
type RoomsListPayload struct {
	Rooms []service.RoomPreview `json:"rooms"`
}

// UserDisconnectedPayload notifies the remaining participant.
type UserDisconnectedPayload struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

// ErrorPayload is a generic protocol or processing error.
type ErrorPayload struct {
	Message string `json:"message"`
}
