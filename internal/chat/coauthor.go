package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"ananse-ntentan/backend/internal/ai"
	"ananse-ntentan/backend/internal/models"
	"ananse-ntentan/backend/pkg/logger"
	"ananse-ntentan/backend/pkg/ws"
)

const (
	historyWindow       = 10
	contextWindow       = 50
	contextRefreshEvery = 5
	minContextMessages  = 5
)

// ChatGenerator produces co-author turns with thought signatures. The
// signature persisted from the previous turn is supplied back on the
// next call so the provider keeps its reasoning chain.
type ChatGenerator interface {
	GenerateChat(ctx context.Context, prompt, thoughtSignature, thinkingLevel string) (string, string, error)
}

// CoAuthor is the Ananse storytelling persona. Continuity rides on
// two mechanisms: the provider's thought signature, and a rolling
// story-context summary refreshed every few messages.
type CoAuthor struct {
	gen      ChatGenerator
	messages MessageStore
	log      *logger.Logger
}

// NewCoAuthor creates a CoAuthor.
func NewCoAuthor(gen ChatGenerator, messages MessageStore, log *logger.Logger) *CoAuthor {
	return &CoAuthor{gen: gen, messages: messages, log: log}
}

func buildStartPrompt(initialPrompt string) string {
	return fmt.Sprintf(`You are Ananse, a wise storytelling AI. The user wants to start a collaborative story.
Based on their prompt, begin an engaging story opening (3-4 sentences).
Set the scene, introduce a character or situation, and leave room for the user to continue.

User's story idea: %s

Begin the story:`, initialPrompt)
}

func buildContinuePrompt(storyContext, history, userMessage string) string {
	contextSection := ""
	if storyContext != "" {
		contextSection = fmt.Sprintf("STORY CONTEXT (remember this):\n%s\n", storyContext)
	}
	return fmt.Sprintf(`You are Ananse, a wise and creative storytelling AI inspired by Akan folklore.
You are engaged in a collaborative storytelling chat. Your role is to:
1. Continue the story naturally based on what the user says
2. Maintain consistency with characters, plot, and world established earlier
3. Be creative but respect the established narrative
4. Keep responses conversational and engaging (2-4 sentences usually)

%s

RECENT CONVERSATION:
%s

User's new message: %s

Respond as Ananse, continuing the story or conversation naturally:`, contextSection, history, userMessage)
}

func buildSummaryPrompt(conversation string) string {
	return fmt.Sprintf(`Summarize the key story elements from this conversation in a concise format:
- Main characters introduced
- Key plot points
- Current situation/conflict
- Important world details

CONVERSATION:
%s

SUMMARY (keep under 500 words):`, conversation)
}

// transcript renders messages as "AI:"/"User:" lines.
func transcript(messages []models.ChatMessage) string {
	lines := make([]string, 0, len(messages))
	for _, msg := range messages {
		speaker := "User"
		if msg.SenderID == models.SenderAI {
			speaker = "AI"
		}
		lines = append(lines, speaker+": "+msg.Content)
	}
	return strings.Join(lines, "\n")
}

// StartStory opens a collaborative story and seeds the room's
// continuity state with the premise.
func (a *CoAuthor) StartStory(ctx context.Context, room *models.ChatRoom, prompt string) (*models.ChatMessage, bool, error) {
	opening, signature, err := a.gen.GenerateChat(ctx, buildStartPrompt(prompt), "", ai.ThinkingHigh)
	if err != nil {
		return nil, false, err
	}

	msg := &models.ChatMessage{
		RoomID:   room.ID,
		SenderID: models.SenderAI,
		Content:  opening,
		Type:     models.MessageTypeAIStory,
	}
	if err := a.messages.SaveMessage(ctx, msg); err != nil {
		return nil, false, err
	}

	premise := "Story premise: " + prompt
	if err := a.messages.UpdateRoomContext(ctx, room.ID, &signature, &premise); err != nil {
		a.log.LogError(err, "Failed to seed story context", "room_id", room.ID)
	}

	return msg, signature != "", nil
}

// Continue produces the next co-author turn. Every few messages the
// story context is re-summarized so long stories survive signature
// loss; that refresh is best-effort.
func (a *CoAuthor) Continue(ctx context.Context, room *models.ChatRoom, userMessage string) (*models.ChatMessage, bool, error) {
	recent, err := a.messages.RecentMessages(ctx, room.ID, historyWindow, nil)
	if err != nil {
		return nil, false, err
	}

	storyContext := ""
	if room.StoryContext != nil {
		storyContext = *room.StoryContext
	}

	existing := ""
	if room.ThoughtSignature != nil {
		existing = *room.ThoughtSignature
	}

	prompt := buildContinuePrompt(storyContext, transcript(recent), userMessage)
	response, signature, err := a.gen.GenerateChat(ctx, prompt, existing, ai.ThinkingHigh)
	if err != nil {
		return nil, false, err
	}

	newSignature := signature
	if newSignature == "" {
		newSignature = existing
	}

	msg := &models.ChatMessage{
		RoomID:   room.ID,
		SenderID: models.SenderAI,
		Content:  response,
		Type:     models.MessageTypeAIStory,
	}
	if err := a.messages.SaveMessage(ctx, msg); err != nil {
		return nil, false, err
	}

	count, err := a.messages.CountMessages(ctx, room.ID)
	if err == nil && count%contextRefreshEvery == 0 {
		a.refreshStoryContext(ctx, room)
	}

	if newSignature != existing {
		if err := a.messages.UpdateRoomContext(ctx, room.ID, &newSignature, nil); err != nil {
			a.log.LogError(err, "Failed to persist thought signature", "room_id", room.ID)
		}
	}

	return msg, newSignature != "", nil
}

func (a *CoAuthor) refreshStoryContext(ctx context.Context, room *models.ChatRoom) {
	messages, err := a.messages.RecentMessages(ctx, room.ID, contextWindow, nil)
	if err != nil {
		a.log.LogError(err, "Failed to load messages for context refresh", "room_id", room.ID)
		return
	}
	if len(messages) < minContextMessages {
		return
	}

	summary, _, err := a.gen.GenerateChat(ctx, buildSummaryPrompt(transcript(messages)), "", ai.ThinkingLow)
	if err != nil {
		a.log.LogError(err, "Story context refresh failed", "room_id", room.ID)
		return
	}

	if err := a.messages.UpdateRoomContext(ctx, room.ID, nil, &summary); err != nil {
		a.log.LogError(err, "Failed to save story context", "room_id", room.ID)
		return
	}
	a.log.Debug("Story context refreshed", "room_id", room.ID)
}

// handleStartAIStory begins a collaborative story in a room.
func (h *Hub) handleStartAIStory(c *Client, payload json.RawMessage) {
	if h.coauthor == nil {
		h.sendError(c, "co-author is not available")
		return
	}

	var p ws.StartAIStoryPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		h.sendError(c, "malformed payload")
		return
	}
	roomID, ok := h.parseRoomID(c, p.RoomID)
	if !ok {
		return
	}

	c.enqueue(ws.NewFrame(ws.TypeAIThinking, ws.AIThinkingPayload{Message: msgAIWeaving}))

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), aiTimeout)
		defer cancel()

		room, err := h.messages.GetRoom(ctx, roomID)
		if err != nil {
			c.enqueue(ws.NewFrame(ws.TypeAIError, ws.ErrorPayload{Message: msgAIStartFailed}))
			return
		}

		msg, hasSignature, err := h.coauthor.StartStory(ctx, room, p.Prompt)
		if err != nil {
			h.log.LogError(err, "Failed to start co-authored story", "room_id", roomID)
			c.enqueue(ws.NewFrame(ws.TypeAIError, ws.ErrorPayload{Message: msgAIStartFailed}))
			return
		}

		c.enqueue(ws.NewFrame(ws.TypeAIStoryResponse, ws.AIStoryResponsePayload{
			Message:             msg,
			HasThoughtSignature: hasSignature,
		}))
	}()
}

// handleSendAIMessage continues a collaborative story.
func (h *Hub) handleSendAIMessage(c *Client, payload json.RawMessage) {
	if h.coauthor == nil {
		h.sendError(c, "co-author is not available")
		return
	}

	var p ws.SendAIMessagePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		h.sendError(c, "malformed payload")
		return
	}
	roomID, ok := h.parseRoomID(c, p.RoomID)
	if !ok {
		return
	}

	userMsg := &models.ChatMessage{
		RoomID:   roomID,
		SenderID: c.userID,
		Content:  p.Content,
		Type:     models.MessageTypeText,
	}
	if err := h.messages.SaveMessage(context.Background(), userMsg); err != nil {
		h.log.LogError(err, "Failed to save user message")
		h.sendError(c, "failed to save message")
		return
	}

	c.enqueue(ws.NewFrame(ws.TypeAIThinking, ws.AIThinkingPayload{Message: msgAIContemplating}))

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), aiTimeout)
		defer cancel()

		room, err := h.messages.GetRoom(ctx, roomID)
		if err != nil {
			c.enqueue(ws.NewFrame(ws.TypeAIError, ws.ErrorPayload{Message: msgAILostThread}))
			return
		}

		msg, hasSignature, err := h.coauthor.Continue(ctx, room, p.Content)
		if err != nil {
			h.log.LogError(err, "Co-author turn failed", "room_id", roomID)
			c.enqueue(ws.NewFrame(ws.TypeAIError, ws.ErrorPayload{Message: msgAILostThread}))
			return
		}

		response := ws.NewFrame(ws.TypeAIStoryResponse, ws.AIStoryResponsePayload{
			Message:             msg,
			HasThoughtSignature: hasSignature,
		})
		c.enqueue(response)

		// The partner sees both sides of the exchange.
		partner := room.Participants.Other(c.userID)
		if partner != "" {
			h.sendTo(partner, ws.NewFrame(ws.TypeMessage, ws.MessagePayload{Message: userMsg}))
			h.sendTo(partner, response)
		}
	}()
}
