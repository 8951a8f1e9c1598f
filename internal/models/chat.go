package models

import (
	"database/sql/driver"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SenderAI is the sentinel sender ID for co-author messages.
const SenderAI = "AI"

// Chat message types
const (
	MessageTypeText    = "text"
	MessageTypeSystem  = "system"
	MessageTypeVisual  = "visual"
	MessageTypeAIStory = "ai_story"
)

// Visual message generation states
const (
	VisualStatusPending    = "pending"
	VisualStatusGenerating = "generating"
	VisualStatusComplete   = "complete"
	VisualStatusFailed     = "failed"
)

// MaxMessageLength bounds chat message content.
const MaxMessageLength = 2000

// ErrInvalidParticipants is returned when a room is created with anything
// other than exactly two participants.
var ErrInvalidParticipants = errors.New("chat room must have exactly 2 participants")

// ErrMessageTooLong is returned when message content exceeds MaxMessageLength.
var ErrMessageTooLong = errors.New("message content exceeds maximum length")

// Participants is the pair of anonymous IDs in a room, stored as jsonb.
type Participants []string

func (p Participants) Value() (driver.Value, error) { return jsonValue(p) }
func (p *Participants) Scan(src any) error          { return jsonScan(src, p) }

// Other returns the participant that is not the given ID.
func (p Participants) Other(id string) string {
	for _, participant := range p {
		if participant != id {
			return participant
		}
	}
	return ""
}

// Contains reports whether the given ID is a participant.
func (p Participants) Contains(id string) bool {
	for _, participant := range p {
		if participant == id {
			return true
		}
	}
	return false
}

// ChatRoom is a two-party anonymous conversation.
type ChatRoom struct {
	ID               uuid.UUID    `json:"id" gorm:"type:uuid;primaryKey"`
	Participants     Participants `json:"participants" gorm:"type:jsonb;not null"`
	Active           bool         `json:"active" gorm:"default:true"`
	ThoughtSignature *string      `json:"-"`
	StoryContext     *string      `json:"-"`
	CreatedAt        time.Time    `json:"createdAt"`
	UpdatedAt        time.Time    `json:"updatedAt" gorm:"index"`
}

// BeforeCreate assigns the ID and enforces the two-participant invariant.
func (r *ChatRoom) BeforeCreate(tx *gorm.DB) error {
	if len(r.Participants) != 2 {
		return ErrInvalidParticipants
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// Panels is the 2-5 panel payload of a visual message, stored as jsonb.
type Panels []Panel

func (p Panels) Value() (driver.Value, error) { return jsonValue(p) }
func (p *Panels) Scan(src any) error          { return jsonScan(src, p) }

// ChatMessage is one turn in a room.
type ChatMessage struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	RoomID       uuid.UUID `json:"roomId" gorm:"type:uuid;index:idx_room_created;not null"`
	SenderID     string    `json:"senderId" gorm:"index;not null"`
	Content      string    `json:"content" gorm:"not null"`
	Type         string    `json:"type" gorm:"default:text;index:idx_sender_visual"`
	Panels       Panels    `json:"panels,omitempty" gorm:"type:jsonb"`
	VisualStatus string    `json:"visualStatus,omitempty" gorm:"default:pending"`
	Read         bool      `json:"read" gorm:"default:false"`
	CreatedAt    time.Time `json:"createdAt" gorm:"index:idx_room_created"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// BeforeCreate assigns the ID and bounds the content length.
func (m *ChatMessage) BeforeCreate(tx *gorm.DB) error {
	if len(m.Content) > MaxMessageLength {
		return ErrMessageTooLong
	}
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
