// Package media implements the blob store backing uploads and
// generated artifacts. Files live in Postgres alongside the records
// that reference them; losing a row loses at most one panel image.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"ananse-ntentan/backend/internal/models"
)

// ErrNotFound is returned when no file exists for the given ID.
var ErrNotFound = errors.New("media: file not found")

// Meta carries the descriptive fields of a stored file.
type Meta struct {
	ContentType string
	Kind        string
	StoryID     *uuid.UUID
	PanelNumber int
}

// Store persists and retrieves media blobs.
type Store interface {
	Put(ctx context.Context, data []byte, filename string, meta Meta) (uuid.UUID, error)
	Get(ctx context.Context, id uuid.UUID) (*models.MediaFile, error)
	Open(ctx context.Context, id uuid.UUID) (io.ReadCloser, string, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// GormStore is the Postgres-backed Store implementation.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a media store on the given database handle.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Put stores a new blob and returns its ID.
func (s *GormStore) Put(ctx context.Context, data []byte, filename string, meta Meta) (uuid.UUID, error) {
	if len(data) == 0 {
		return uuid.Nil, fmt.Errorf("media: empty file %q", filename)
	}

	file := &models.MediaFile{
		Filename:    filename,
		ContentType: meta.ContentType,
		Kind:        meta.Kind,
		Data:        data,
		StoryID:     meta.StoryID,
		PanelNumber: meta.PanelNumber,
	}
	if file.ContentType == "" {
		file.ContentType = "application/octet-stream"
	}

	if err := s.db.WithContext(ctx).Create(file).Error; err != nil {
		return uuid.Nil, fmt.Errorf("media: store %q: %w", filename, err)
	}
	return file.ID, nil
}

// Get retrieves a stored file including its data.
func (s *GormStore) Get(ctx context.Context, id uuid.UUID) (*models.MediaFile, error) {
	var file models.MediaFile
	err := s.db.WithContext(ctx).First(&file, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("media: load %s: %w", id, err)
	}
	return &file, nil
}

// Open returns a reader over the file contents plus its content type.
func (s *GormStore) Open(ctx context.Context, id uuid.UUID) (io.ReadCloser, string, error) {
	file, err := s.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	return io.NopCloser(bytes.NewReader(file.Data)), file.ContentType, nil
}

// Delete removes a stored file. Missing files are not an error.
func (s *GormStore) Delete(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Delete(&models.MediaFile{}, "id = ?", id).Error
}
