package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Story submission types
const (
	StoryTypeWrite  = "write"
	StoryTypeSpeak  = "speak"
	StoryTypeSketch = "sketch"
)

// StoryTypes lists every submission type.
var StoryTypes = []string{StoryTypeWrite, StoryTypeSpeak, StoryTypeSketch}

// Story processing states
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusComplete   = "complete"
	StatusFailed     = "failed"
)

// Panel is one unit of a visual narrative.
type Panel struct {
	Number      int        `json:"number"`
	Scene       string     `json:"scene,omitempty"`
	Description string     `json:"description,omitempty"`
	Dialogue    string     `json:"dialogue,omitempty"`
	ImageFileID *uuid.UUID `json:"imageFileId,omitempty"`
}

// VisualNarrative holds the generated panels plus optional video output.
type VisualNarrative struct {
	Panels        []Panel    `json:"panels"`
	Style         string     `json:"style"`
	VideoFileID   *uuid.UUID `json:"videoFileId,omitempty"`
	VideoDuration float64    `json:"videoDuration,omitempty"`
}

// AudioNarrative holds the narration script. Audio synthesis is currently
// disabled, so AudioFileID stays nil and Duration stays 0.
type AudioNarrative struct {
	Script      string     `json:"script"`
	AudioFileID *uuid.UUID `json:"audioFileId,omitempty"`
	Duration    int64      `json:"duration"`
	Style       string     `json:"style"`
}

// OriginalContent is the tagged union over what the user submitted.
// Exactly one of Text, AudioFileID or ImageFileID is set at creation;
// Transcription is derived later for speak/sketch submissions.
type OriginalContent struct {
	Text          string     `json:"text,omitempty"`
	AudioFileID   *uuid.UUID `json:"audioFileId,omitempty"`
	ImageFileID   *uuid.UUID `json:"imageFileId,omitempty"`
	Transcription string     `json:"transcription,omitempty"`
}

// StoryMetadata carries the feed counters.
type StoryMetadata struct {
	Views int64 `json:"views"`
	Likes int64 `json:"likes"`
}

// Story is the lifecycle record for one user submission.
type Story struct {
	ID               uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	Type             string          `json:"type" gorm:"index;not null"`
	OriginalContent  OriginalContent `json:"originalContent" gorm:"type:jsonb"`
	VisualNarrative  VisualNarrative `json:"visualNarrative" gorm:"type:jsonb"`
	AudioNarrative   AudioNarrative  `json:"audioNarrative" gorm:"type:jsonb"`
	VisualStyleID    *uuid.UUID      `json:"visualStyleId" gorm:"type:uuid"`
	AudioStyleID     *uuid.UUID      `json:"audioStyleId" gorm:"type:uuid"`
	PromptTemplateID *uuid.UUID      `json:"promptTemplateId" gorm:"type:uuid"`
	Status           string          `json:"status" gorm:"index;default:pending"`
	ProcessingTime   int64           `json:"processingTime"`
	ErrorMessage     string          `json:"errorMessage,omitempty"`
	Metadata         StoryMetadata   `json:"metadata" gorm:"type:jsonb"`
	CreatedAt        time.Time       `json:"createdAt" gorm:"index"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// BeforeCreate assigns the record ID.
func (s *Story) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// IsTerminal reports whether the story reached a final state.
func (s *Story) IsTerminal() bool {
	return s.Status == StatusComplete || s.Status == StatusFailed
}

// Value / Scan implementations store the embedded documents as jsonb.

func (o OriginalContent) Value() (driver.Value, error) { return jsonValue(o) }
func (o *OriginalContent) Scan(src any) error          { return jsonScan(src, o) }

func (v VisualNarrative) Value() (driver.Value, error) { return jsonValue(v) }
func (v *VisualNarrative) Scan(src any) error          { return jsonScan(src, v) }

func (a AudioNarrative) Value() (driver.Value, error) { return jsonValue(a) }
func (a *AudioNarrative) Scan(src any) error          { return jsonScan(src, a) }

func (m StoryMetadata) Value() (driver.Value, error) { return jsonValue(m) }
func (m *StoryMetadata) Scan(src any) error          { return jsonScan(src, m) }

func jsonValue(v any) (driver.Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func jsonScan(src, dst any) error {
	if src == nil {
		return nil
	}
	switch data := src.(type) {
	case []byte:
		return json.Unmarshal(data, dst)
	case string:
		return json.Unmarshal([]byte(data), dst)
	default:
		return fmt.Errorf("unsupported jsonb source type %T", src)
	}
}
