// Package chat implements the real-time WebSocket layer: anonymous
// matchmaking, two-party rooms, visual messages and the Ananse
// co-author.
package chat

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"ananse-ntentan/backend/internal/models"
	"ananse-ntentan/backend/internal/service"
	"ananse-ntentan/backend/pkg/logger"
	"ananse-ntentan/backend/pkg/metrics"
	"ananse-ntentan/backend/pkg/ws"
)

// Status copy sent alongside protocol frames.
const (
	msgAlreadySearching = "You are already searching for a wanderer..."
	msgWaiting          = "No other wanderers online. Waiting for someone to join..."
	msgVisualGenerating = "Generating your visual story..."
	msgVisualFailed     = "Failed to generate visual story. Please try again."
	msgAIWeaving        = "Ananse is weaving the beginning of your story..."
	msgAIContemplating  = "Ananse is contemplating the story..."
	msgAIStartFailed    = "Failed to start story. Please try again."
	msgAILostThread     = "Ananse lost the thread of the story. Please try again."
)

const (
	roomHistoryLimit = 50
	aiTimeout        = 60 * time.Second
	visualTimeout    = 5 * time.Minute
)

// MessageStore is the persistence surface the hub needs.
type MessageStore interface {
	CreateRoom(ctx context.Context, participants []string) (*models.ChatRoom, error)
	GetRoom(ctx context.Context, id uuid.UUID) (*models.ChatRoom, error)
	RoomsForUser(ctx context.Context, userID string) ([]service.RoomPreview, error)
	SaveMessage(ctx context.Context, msg *models.ChatMessage) error
	UpdateMessage(ctx context.Context, msg *models.ChatMessage) error
	RecentMessages(ctx context.Context, roomID uuid.UUID, limit int, before *time.Time) ([]models.ChatMessage, error)
	CountMessages(ctx context.Context, roomID uuid.UUID) (int64, error)
	VisualSentToday(ctx context.Context, senderID string) (int64, error)
	UpdateRoomContext(ctx context.Context, roomID uuid.UUID, thoughtSignature, storyContext *string) error
}

// Hub routes frames between connected clients and owns the
// matchmaking queue. One instance serves the whole process.
type Hub struct {
	mu      sync.Mutex
	clients map[string]*Client // userID -> client
	queue   []string           // matchmaking FIFO of userIDs

	messages MessageStore
	visual   *VisualComposer
	coauthor *CoAuthor
	log      *logger.Logger
}

// NewHub creates a Hub. visual and coauthor may be nil, in which case
// the corresponding frames answer with an error.
func NewHub(messages MessageStore, visual *VisualComposer, coauthor *CoAuthor, log *logger.Logger) *Hub {
	return &Hub{
		clients:  make(map[string]*Client),
		messages: messages,
		visual:   visual,
		coauthor: coauthor,
		log:      log,
	}
}

// Register binds a client to its user ID. A reconnect replaces the
// previous connection.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	if old, ok := h.clients[client.userID]; ok && old != client {
		close(old.send)
	}
	h.clients[client.userID] = client
	metrics.WSConnections.Set(float64(len(h.clients)))
	h.mu.Unlock()
	h.log.Info("Client registered", "user_id", client.userID)
}

// Unregister drops a client and prunes it from the matchmaking queue.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	current, ok := h.clients[client.userID]
	if !ok || current != client {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client.userID)
	close(client.send)
	for i, queued := range h.queue {
		if queued == client.userID {
			h.queue = append(h.queue[:i], h.queue[i+1:]...)
			break
		}
	}
	metrics.WSConnections.Set(float64(len(h.clients)))
	metrics.MatchQueueDepth.Set(float64(len(h.queue)))
	h.mu.Unlock()
	h.log.Info("Client disconnected", "user_id", client.userID)
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// sendTo delivers a frame to a user if connected. Reports delivery.
func (h *Hub) sendTo(userID string, frame ws.Frame) bool {
	h.mu.Lock()
	client, ok := h.clients[userID]
	h.mu.Unlock()
	if !ok {
		return false
	}
	return client.enqueue(frame)
}

// HandleFrame dispatches one inbound frame. It runs on the client's
// read goroutine; generation-heavy handlers hand off to their own
// goroutines.
func (h *Hub) HandleFrame(c *Client, frame ws.Frame) {
	if c.userID == "" && frame.Type != ws.TypeRegister {
		h.sendError(c, "register first")
		return
	}

	switch frame.Type {
	case ws.TypeRegister:
		h.handleRegister(c, frame.Payload)
	case ws.TypeFindMatch:
		h.handleFindMatch(c)
	case ws.TypeSendMessage:
		h.handleSendMessage(c, frame.Payload)
	case ws.TypeSendVisualMessage:
		h.handleSendVisualMessage(c, frame.Payload)
	case ws.TypeStartAIStory:
		h.handleStartAIStory(c, frame.Payload)
	case ws.TypeSendAIMessage:
		h.handleSendAIMessage(c, frame.Payload)
	case ws.TypeJoinRoom:
		h.handleJoinRoom(c, frame.Payload)
	case ws.TypeLeaveRoom:
		h.handleLeaveRoom(c, frame.Payload)
	case ws.TypeGetRooms:
		h.handleGetRooms(c)
	default:
		h.log.Warn("Unknown frame type", "type", frame.Type)
		h.sendError(c, "unknown message type: "+frame.Type)
	}
}

func (h *Hub) sendError(c *Client, message string) {
	c.enqueue(ws.NewFrame(ws.TypeError, ws.ErrorPayload{Message: message}))
}

func (h *Hub) handleRegister(c *Client, payload json.RawMessage) {
	var p ws.RegisterPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.UserID == "" {
		h.sendError(c, "register requires a userId")
		return
	}
	c.userID = p.UserID
	h.Register(c)
	c.enqueue(ws.NewFrame(ws.TypeRegistered, ws.RegisterPayload{UserID: p.UserID}))
}

// handleFindMatch pairs the requester with the first live waiter, or
// parks them at the head of the queue.
func (h *Hub) handleFindMatch(c *Client) {
	h.mu.Lock()
	for _, queued := range h.queue {
		if queued == c.userID {
			h.mu.Unlock()
			c.enqueue(ws.NewFrame(ws.TypeAlreadySearching, ws.ErrorPayload{Message: msgAlreadySearching}))
			return
		}
	}

	// Drop waiters that disconnected since they queued.
	live := h.queue[:0]
	for _, queued := range h.queue {
		if _, ok := h.clients[queued]; ok {
			live = append(live, queued)
		}
	}
	h.queue = live

	if len(h.queue) == 0 {
		h.queue = append(h.queue, c.userID)
		metrics.MatchQueueDepth.Set(float64(len(h.queue)))
		h.mu.Unlock()
		c.enqueue(ws.NewFrame(ws.TypeWaiting, ws.WaitingPayload{Message: msgWaiting, Position: 1}))
		return
	}

	partnerID := h.queue[0]
	h.queue = h.queue[1:]
	metrics.MatchQueueDepth.Set(float64(len(h.queue)))
	h.mu.Unlock()

	room, err := h.messages.CreateRoom(context.Background(), []string{c.userID, partnerID})
	if err != nil {
		h.log.LogError(err, "Failed to create match room")
		// The partner was already popped; put them back at the head so
		// they keep their place in line.
		h.mu.Lock()
		h.queue = append([]string{partnerID}, h.queue...)
		metrics.MatchQueueDepth.Set(float64(len(h.queue)))
		h.mu.Unlock()
		h.sendError(c, "failed to create room")
		return
	}

	roomID := room.ID.String()
	if !h.sendTo(partnerID, ws.NewFrame(ws.TypeMatchFound, ws.MatchFoundPayload{Room: roomID, PartnerID: c.userID})) {
		// Partner vanished between the prune and here. Park the
		// requester at the head of the queue instead.
		h.mu.Lock()
		h.queue = append([]string{c.userID}, h.queue...)
		metrics.MatchQueueDepth.Set(float64(len(h.queue)))
		h.mu.Unlock()
		c.enqueue(ws.NewFrame(ws.TypeWaiting, ws.WaitingPayload{Message: msgWaiting, Position: 1}))
		return
	}
	c.enqueue(ws.NewFrame(ws.TypeMatchFound, ws.MatchFoundPayload{Room: roomID, PartnerID: partnerID}))
	h.log.Info("Match created", "room_id", roomID)
}

func (h *Hub) handleSendMessage(c *Client, payload json.RawMessage) {
	var p ws.SendMessagePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		h.sendError(c, "malformed payload")
		return
	}
	roomID, ok := h.parseRoomID(c, p.RoomID)
	if !ok {
		return
	}

	msg := &models.ChatMessage{
		RoomID:   roomID,
		SenderID: c.userID,
		Content:  p.Content,
		Type:     models.MessageTypeText,
	}
	if err := h.messages.SaveMessage(context.Background(), msg); err != nil {
		h.log.LogError(err, "Failed to save chat message")
		h.sendError(c, "failed to save message")
		return
	}

	h.deliverToPartner(c.userID, roomID, ws.NewFrame(ws.TypeMessage, ws.MessagePayload{Message: msg}))
}

// deliverToPartner sends a frame to the other participant of a room
// if they are online.
func (h *Hub) deliverToPartner(senderID string, roomID uuid.UUID, frame ws.Frame) {
	room, err := h.messages.GetRoom(context.Background(), roomID)
	if err != nil {
		return
	}
	partner := room.Participants.Other(senderID)
	if partner != "" {
		h.sendTo(partner, frame)
	}
}

func (h *Hub) handleJoinRoom(c *Client, payload json.RawMessage) {
	var p ws.RoomPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		h.sendError(c, "malformed payload")
		return
	}
	roomID, ok := h.parseRoomID(c, p.RoomID)
	if !ok {
		return
	}

	messages, err := h.messages.RecentMessages(context.Background(), roomID, roomHistoryLimit, nil)
	if err != nil {
		h.log.LogError(err, "Failed to load room history", "room_id", roomID)
		h.sendError(c, "failed to load room history")
		return
	}
	c.enqueue(ws.NewFrame(ws.TypeRoomHistory, ws.RoomHistoryPayload{RoomID: roomID.String(), Messages: messages}))
}

func (h *Hub) handleLeaveRoom(c *Client, payload json.RawMessage) {
	var p ws.RoomPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		h.sendError(c, "malformed payload")
		return
	}
	roomID, ok := h.parseRoomID(c, p.RoomID)
	if !ok {
		return
	}
	h.deliverToPartner(c.userID, roomID, ws.NewFrame(ws.TypeUserDisconnected, ws.UserDisconnectedPayload{
		RoomID: roomID.String(),
		UserID: c.userID,
	}))
}

func (h *Hub) handleGetRooms(c *Client) {
	rooms, err := h.messages.RoomsForUser(context.Background(), c.userID)
	if err != nil {
		h.log.LogError(err, "Failed to list rooms", "user_id", c.userID)
		h.sendError(c, "failed to list rooms")
		return
	}
	c.enqueue(ws.NewFrame(ws.TypeRoomsList, ws.RoomsListPayload{Rooms: rooms}))
}

func (h *Hub) parseRoomID(c *Client, raw string) (uuid.UUID, bool) {
	roomID, err := uuid.Parse(raw)
	if err != nil {
		h.sendError(c, "invalid roomId")
		return uuid.Nil, false
	}
	return roomID, true
}
