package models

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StringList is a jsonb-backed string slice.
type StringList []string

func (l StringList) Value() (driver.Value, error) { return jsonValue(l) }
func (l *StringList) Scan(src any) error          { return jsonScan(src, l) }

// ArtisticStyle describes a visual style applied to panel image prompts.
type ArtisticStyle struct {
	ID              uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	Name            string     `json:"name" gorm:"uniqueIndex;not null"`
	Slug            string     `json:"slug" gorm:"uniqueIndex;not null"`
	Description     string     `json:"description"`
	PromptModifiers StringList `json:"promptModifiers" gorm:"type:jsonb"`
	Popularity      int        `json:"popularity" gorm:"default:0"`
	IsActive        bool       `json:"isActive" gorm:"default:true"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

func (s *ArtisticStyle) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// VoiceSettings configures narration synthesis for an audio style.
type VoiceSettings struct {
	VoiceType    string  `json:"voiceType"`
	SpeakingRate float64 `json:"speakingRate"`
	Pitch        float64 `json:"pitch"`
	VolumeGain   float64 `json:"volumeGain"`
}

func (v VoiceSettings) Value() (driver.Value, error) { return jsonValue(v) }
func (v *VoiceSettings) Scan(src any) error          { return jsonScan(src, v) }

// AudioStyle describes a narration voice/mood.
type AudioStyle struct {
	ID            uuid.UUID     `json:"id" gorm:"type:uuid;primaryKey"`
	Name          string        `json:"name" gorm:"uniqueIndex;not null"`
	Slug          string        `json:"slug" gorm:"uniqueIndex;not null"`
	Description   string        `json:"description"`
	VoiceSettings VoiceSettings `json:"voiceSettings" gorm:"type:jsonb"`
	Mood          string        `json:"mood"`
	Popularity    int           `json:"popularity" gorm:"default:0"`
	IsActive      bool          `json:"isActive" gorm:"default:true"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

func (s *AudioStyle) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// PromptTemplate is the versioned instruction text driving story generation.
type PromptTemplate struct {
	ID         uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	Name       string     `json:"name" gorm:"not null"`
	Type       string     `json:"type" gorm:"index;not null"`
	PromptText string     `json:"promptText" gorm:"not null"`
	Guidelines StringList `json:"guidelines" gorm:"type:jsonb"`
	Version    string     `json:"version" gorm:"default:1.0"`
	IsActive   bool       `json:"isActive" gorm:"default:true;index"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

func (t *PromptTemplate) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
