package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"ananse-ntentan/backend/internal/models"
	"ananse-ntentan/backend/pkg/logger"
)

// ErrRoomNotFound is returned when no room exists for the given ID.
var ErrRoomNotFound = errors.New("chat room not found")

// RoomPreview is a room plus its latest message, for room lists.
type RoomPreview struct {
	Room        models.ChatRoom     `json:"room"`
	LastMessage *models.ChatMessage `json:"lastMessage,omitempty"`
}

// MessageService owns chat room and message persistence, including
// the daily visual-message quota counting.
type MessageService struct {
	db  *gorm.DB
	log *logger.Logger
}

// NewMessageService creates a MessageService.
func NewMessageService(db *gorm.DB, log *logger.Logger) *MessageService {
	return &MessageService{db: db, log: log}
}

// CreateRoom creates a two-party room. The participant invariant is
// enforced by the model hook.
func (s *MessageService) CreateRoom(ctx context.Context, participants []string) (*models.ChatRoom, error) {
	room := &models.ChatRoom{
		Participants: models.Participants(participants),
		Active:       true,
	}
	if err := s.db.WithContext(ctx).Create(room).Error; err != nil {
		return nil, err
	}
	return room, nil
}

// GetRoom loads a room by ID.
func (s *MessageService) GetRoom(ctx context.Context, id uuid.UUID) (*models.ChatRoom, error) {
	var room models.ChatRoom
	err := s.db.WithContext(ctx).First(&room, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// RoomsForUser returns the user's rooms, most recently touched first,
// each with its latest message as a preview.
func (s *MessageService) RoomsForUser(ctx context.Context, userID string) ([]RoomPreview, error) {
	needle, err := json.Marshal([]string{userID})
	if err != nil {
		return nil, err
	}

	var rooms []models.ChatRoom
	err = s.db.WithContext(ctx).
		Where("participants @> ?", string(needle)).
		Order("updated_at DESC").
		Find(&rooms).Error
	if err != nil {
		return nil, err
	}

	previews := make([]RoomPreview, 0, len(rooms))
	for _, room := range rooms {
		preview := RoomPreview{Room: room}
		var last models.ChatMessage
		err := s.db.WithContext(ctx).
			Where("room_id = ?", room.ID).
			Order("created_at DESC").
			First(&last).Error
		if err == nil {
			preview.LastMessage = &last
		}
		previews = append(previews, preview)
	}
	return previews, nil
}

// DeleteRoom removes a room and all of its messages.
func (s *MessageService) DeleteRoom(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.ChatMessage{}, "room_id = ?", id).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.ChatRoom{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrRoomNotFound
		}
		return nil
	})
}

// SaveMessage persists a message and touches the room's updated time.
func (s *MessageService) SaveMessage(ctx context.Context, msg *models.ChatMessage) error {
	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return err
	}
	return s.db.WithContext(ctx).
		Model(&models.ChatRoom{}).
		Where("id = ?", msg.RoomID).
		Update("updated_at", time.Now()).Error
}

// UpdateMessage writes changed fields of an existing message.
func (s *MessageService) UpdateMessage(ctx context.Context, msg *models.ChatMessage) error {
	return s.db.WithContext(ctx).Save(msg).Error
}

// RecentMessages returns up to limit messages for a room in
// chronological order, optionally only those created before a cutoff.
func (s *MessageService) RecentMessages(ctx context.Context, roomID uuid.UUID, limit int, before *time.Time) ([]models.ChatMessage, error) {
	if limit <= 0 {
		limit = 50
	}

	query := s.db.WithContext(ctx).Where("room_id = ?", roomID)
	if before != nil {
		query = query.Where("created_at < ?", *before)
	}

	var messages []models.ChatMessage
	err := query.Order("created_at DESC").Limit(limit).Find(&messages).Error
	if err != nil {
		return nil, err
	}

	// Flip newest-first to chronological.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// CountMessages returns the total number of messages in a room.
func (s *MessageService) CountMessages(ctx context.Context, roomID uuid.UUID) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.ChatMessage{}).
		Where("room_id = ?", roomID).
		Count(&count).Error
	return count, err
}

// VisualSentToday counts the sender's visual messages since 00:00 UTC.
func (s *MessageService) VisualSentToday(ctx context.Context, senderID string) (int64, error) {
	midnight := time.Now().UTC().Truncate(24 * time.Hour)

	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.ChatMessage{}).
		Where("sender_id = ? AND type = ? AND created_at >= ?", senderID, models.MessageTypeVisual, midnight).
		Count(&count).Error
	return count, err
}

// SweepStaleVisuals fails visual messages stuck in generating longer
// than maxAge. A crashed generation run leaves such placeholders; the
// sweep keeps clients from spinning on them forever.
func (s *MessageService) SweepStaleVisuals(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge)
	res := s.db.WithContext(ctx).
		Model(&models.ChatMessage{}).
		Where("type = ? AND visual_status = ? AND updated_at < ?",
			models.MessageTypeVisual, models.VisualStatusGenerating, cutoff).
		Update("visual_status", models.VisualStatusFailed)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		s.log.Info("Swept stale visual placeholders", "count", res.RowsAffected)
	}
	return res.RowsAffected, nil
}

// UpdateRoomContext persists co-author continuity state on a room.
func (s *MessageService) UpdateRoomContext(ctx context.Context, roomID uuid.UUID, thoughtSignature, storyContext *string) error {
	updates := map[string]any{}
	if thoughtSignature != nil {
		updates["thought_signature"] = *thoughtSignature
	}
	if storyContext != nil {
		updates["story_context"] = *storyContext
	}
	if len(updates) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.ChatRoom{}).
		Where("id = ?", roomID).
		Updates(updates).Error
}
