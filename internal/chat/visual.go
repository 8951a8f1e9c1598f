package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"ananse-ntentan/backend/internal/ai"
	"ananse-ntentan/backend/internal/imagegen"
	"ananse-ntentan/backend/internal/media"
	"ananse-ntentan/backend/internal/models"
	"ananse-ntentan/backend/pkg/logger"
	"ananse-ntentan/backend/pkg/metrics"
	"ananse-ntentan/backend/pkg/ws"
)

// Panel count bounds for visual messages.
const (
	minVisualPanels     = 2
	maxVisualPanels     = 5
	defaultVisualPanels = 3
)

// visualStyleModifiers is the fixed look applied to every visual
// message panel.
var visualStyleModifiers = []string{
	"comic book style",
	"dramatic lighting",
	"vivid colors",
	"professional illustration",
	"high quality",
}

// TextGenerator produces the panel structure for a visual message.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt, thinkingLevel string) (string, error)
}

// PanelRenderer renders panel images.
type PanelRenderer interface {
	GenerateAllPanelImages(ctx context.Context, panels []models.Panel, modifiers []string) []*imagegen.Image
}

// VisualComposer turns a chat message into a 2-5 panel visual story.
type VisualComposer struct {
	gen    TextGenerator
	images PanelRenderer
	files  media.Store
	limit  int
	log    *logger.Logger
}

// NewVisualComposer creates a VisualComposer. limit is the per-user
// daily visual message quota.
func NewVisualComposer(gen TextGenerator, images PanelRenderer, files media.Store, limit int, log *logger.Logger) *VisualComposer {
	if limit <= 0 {
		limit = 5
	}
	return &VisualComposer{gen: gen, images: images, files: files, limit: limit, log: log}
}

// Limit returns the daily quota.
func (v *VisualComposer) Limit() int { return v.limit }

// buildStoryPrompt asks for the exact JSON shape the parser expects.
func buildStoryPrompt(userText string, numPanels int) string {
	return fmt.Sprintf(`
You are a visual storyteller. Create a short %d-panel comic/story based on this user message:

"%s"

Return ONLY valid JSON in this exact format:
{
  "title": "Short story title",
  "panels": [
    {
      "number": 1,
      "scene": "Brief scene description for image generation",
      "description": "Detailed visual description for AI image generation",
      "dialogue": "What characters say or narration text (keep short)"
    }
  ]
}

Rules:
- Create exactly %d panels
- Make descriptions vivid and visual for image generation
- Keep dialogue/narration under 100 characters per panel
- Tell a cohesive mini-story with beginning, middle, end
- Style: dramatic, comic book aesthetic
`, numPanels, userText, numPanels)
}

// ClampPanels bounds a requested panel count, defaulting when unset.
func ClampPanels(n int) int {
	if n == 0 {
		n = defaultVisualPanels
	}
	if n < minVisualPanels {
		return minVisualPanels
	}
	if n > maxVisualPanels {
		return maxVisualPanels
	}
	return n
}

// Compose generates the story structure and the panel images, storing
// each image. Panels whose image failed keep a nil file reference.
func (v *VisualComposer) Compose(ctx context.Context, userText string, panelCount int) (string, []models.Panel, error) {
	numPanels := ClampPanels(panelCount)

	raw, err := v.gen.GenerateText(ctx, buildStoryPrompt(userText, numPanels), "")
	if err != nil {
		return "", nil, err
	}

	block, err := ai.ExtractJSONBlock(raw)
	if err != nil {
		return "", nil, fmt.Errorf("failed to parse story structure from AI response")
	}

	var storyData struct {
		Title  string     `json:"title"`
		Panels []ai.Panel `json:"panels"`
	}
	if err := json.Unmarshal([]byte(block), &storyData); err != nil {
		return "", nil, fmt.Errorf("failed to parse story structure from AI response")
	}
	if len(storyData.Panels) < minVisualPanels {
		return "", nil, fmt.Errorf("invalid story structure: not enough panels")
	}

	panels := make([]models.Panel, len(storyData.Panels))
	for i, p := range storyData.Panels {
		panels[i] = models.Panel{
			Number:      p.Number,
			Scene:       p.Scene,
			Description: p.Description,
			Dialogue:    p.Dialogue,
		}
	}

	images := v.images.GenerateAllPanelImages(ctx, panels, visualStyleModifiers)
	for i, img := range images {
		if i >= len(panels) || img == nil {
			continue
		}
		fileID, err := v.files.Put(ctx, img.Data,
			fmt.Sprintf("chat_panel_%d.png", panels[i].Number),
			media.Meta{
				ContentType: img.ContentType,
				Kind:        models.MediaKindChatPanel,
				PanelNumber: panels[i].Number,
			})
		if err != nil {
			v.log.LogError(err, "Failed to store chat panel image", "panel", panels[i].Number)
			continue
		}
		panels[i].ImageFileID = &fileID
	}

	title := strings.TrimSpace(storyData.Title)
	return title, panels, nil
}

// handleSendVisualMessage runs the quota gate and placeholder write
// inline, then generates panels on a worker goroutine.
func (h *Hub) handleSendVisualMessage(c *Client, payload json.RawMessage) {
	if h.visual == nil {
		h.sendError(c, "visual messages are not available")
		return
	}

	var p ws.SendVisualMessagePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		h.sendError(c, "malformed payload")
		return
	}
	roomID, ok := h.parseRoomID(c, p.RoomID)
	if !ok {
		return
	}

	ctx := context.Background()
	used, err := h.messages.VisualSentToday(ctx, c.userID)
	if err != nil {
		h.log.LogError(err, "Failed to check visual quota", "user_id", c.userID)
		h.sendError(c, "failed to check daily limit")
		return
	}
	limit := h.visual.Limit()
	if used >= int64(limit) {
		c.enqueue(ws.NewFrame(ws.TypeVisualLimitReached, ws.VisualLimitPayload{
			Message: fmt.Sprintf("Daily limit reached (%d visual messages). Try again tomorrow!", limit),
			Used:    used,
			Limit:   limit,
		}))
		return
	}

	msg := &models.ChatMessage{
		RoomID:       roomID,
		SenderID:     c.userID,
		Content:      p.Prompt,
		Type:         models.MessageTypeVisual,
		VisualStatus: models.VisualStatusGenerating,
		Panels:       models.Panels{},
	}
	if err := h.messages.SaveMessage(ctx, msg); err != nil {
		h.log.LogError(err, "Failed to save visual placeholder")
		h.sendError(c, "failed to save message")
		return
	}

	remaining := int64(limit) - used - 1
	c.enqueue(ws.NewFrame(ws.TypeVisualGenerating, ws.VisualGeneratingPayload{
		Message:   msgVisualGenerating,
		MessageID: msg.ID.String(),
		Remaining: remaining,
	}))

	go h.generateVisualMessage(c, msg, p.Prompt, p.Panels)
}

func (h *Hub) generateVisualMessage(c *Client, msg *models.ChatMessage, prompt string, panelCount int) {
	ctx, cancel := context.WithTimeout(context.Background(), visualTimeout)
	defer cancel()

	log := h.log.WithRoomID(msg.RoomID.String())

	title, panels, err := h.visual.Compose(ctx, prompt, panelCount)
	if err != nil {
		log.LogError(err, "Visual message generation failed")
		metrics.VisualMessages.WithLabelValues("failure").Inc()
		h.failVisualMessage(c, msg, err)
		return
	}

	msg.Panels = models.Panels(panels)
	msg.VisualStatus = models.VisualStatusComplete
	if err := h.messages.UpdateMessage(context.Background(), msg); err != nil {
		log.LogError(err, "Failed to persist visual message")
		metrics.VisualMessages.WithLabelValues("failure").Inc()
		h.failVisualMessage(c, msg, err)
		return
	}
	metrics.VisualMessages.WithLabelValues("success").Inc()

	frame := ws.NewFrame(ws.TypeVisualMessage, ws.VisualMessagePayload{
		RoomID:    msg.RoomID.String(),
		MessageID: msg.ID.String(),
		SenderID:  msg.SenderID,
		Content:   msg.Content,
		Title:     title,
		Panels:    panels,
	})
	c.enqueue(frame)
	h.deliverToPartner(msg.SenderID, msg.RoomID, frame)
	log.Info("Visual message sent", "title", title, "panels", len(panels))
}

// failVisualMessage marks the placeholder failed so clients stop
// polling it, then tells the sender.
func (h *Hub) failVisualMessage(c *Client, msg *models.ChatMessage, cause error) {
	msg.VisualStatus = models.VisualStatusFailed
	if err := h.messages.UpdateMessage(context.Background(), msg); err != nil {
		h.log.LogError(err, "Failed to mark visual message failed")
	}
	c.enqueue(ws.NewFrame(ws.TypeVisualError, ws.VisualErrorPayload{
		Message:   msgVisualFailed,
		MessageID: msg.ID.String(),
		Error:     cause.Error(),
	}))
}
