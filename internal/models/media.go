package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Media file kinds recorded by the blob store.
const (
	MediaKindOriginalAudio  = "original-audio"
	MediaKindOriginalImage  = "original-image"
	MediaKindPanelImage     = "panel-image"
	MediaKindChatPanel      = "chat-panel"
	MediaKindStoryVideo     = "story-video"
	MediaKindAudioNarration = "audio-narration"
)

// MediaFile is one stored blob: uploads as well as generated media.
type MediaFile struct {
	ID          uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	Filename    string     `json:"filename" gorm:"not null"`
	ContentType string     `json:"contentType" gorm:"default:application/octet-stream"`
	Kind        string     `json:"kind" gorm:"index"`
	Size        int64      `json:"size"`
	Data        []byte     `json:"-" gorm:"not null"`
	StoryID     *uuid.UUID `json:"storyId,omitempty" gorm:"type:uuid;index"`
	PanelNumber int        `json:"panelNumber,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func (f *MediaFile) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	f.Size = int64(len(f.Data))
	return nil
}
