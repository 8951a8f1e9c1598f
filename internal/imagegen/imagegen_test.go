package imagegen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ananse-ntentan/backend/internal/models"
	"ananse-ntentan/backend/pkg/logger"
)

type fakeBackend struct {
	calls   int
	failOn  map[int]bool // 1-based call index
	lastErr error
}

func (f *fakeBackend) GenerateImage(ctx context.Context, prompt string) ([]byte, string, error) {
	f.calls++
	if f.failOn[f.calls] {
		f.lastErr = errors.New("render failed")
		return nil, "", f.lastErr
	}
	return []byte(fmt.Sprintf("img-%d", f.calls)), "image/png", nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", JSON: false, Output: io.Discard})
}

func TestBuildPanelPrompt(t *testing.T) {
	panel := models.Panel{
		Number:      1,
		Scene:       "a moonlit forest",
		Description: "a spider weaving between trees",
		Dialogue:    "Almost done",
	}

	got := BuildPanelPrompt(panel, []string{"bold inks", "warm palette"})
	want := `a moonlit forest. a spider weaving between trees. Characters are saying: "Almost done". bold inks, warm palette. high quality, detailed, comic book panel, professional illustration`
	assert.Equal(t, want, got)
}

func TestBuildPanelPromptSkipsEmptyFields(t *testing.T) {
	got := BuildPanelPrompt(models.Panel{Description: "just a sunrise"}, nil)
	assert.Equal(t, "just a sunrise. high quality, detailed, comic book panel, professional illustration", got)
}

func TestGeneratePanelImageUnknownProvider(t *testing.T) {
	g := NewGenerator("dall-e", &fakeBackend{}, nil, 0, testLogger())
	_, err := g.GeneratePanelImage(context.Background(), models.Panel{Number: 1}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown image provider")
}

func TestGenerateAllPanelImagesPreservesSlots(t *testing.T) {
	backend := &fakeBackend{failOn: map[int]bool{2: true}}
	g := NewGenerator(ProviderGeminiImage, backend, nil, 0, testLogger())

	panels := []models.Panel{{Number: 1}, {Number: 2}, {Number: 3}}
	images := g.GenerateAllPanelImages(context.Background(), panels, nil)

	require.Len(t, images, 3)
	assert.NotNil(t, images[0])
	assert.Nil(t, images[1])
	assert.NotNil(t, images[2])
	assert.Equal(t, []byte("img-1"), images[0].Data)
	assert.Equal(t, []byte("img-3"), images[2].Data)
	assert.Equal(t, 3, backend.calls)
}

func TestGenerateAllPanelImagesEmpty(t *testing.T) {
	g := NewGenerator(ProviderGeminiImage, &fakeBackend{}, nil, 0, testLogger())
	images := g.GenerateAllPanelImages(context.Background(), nil, nil)
	assert.Empty(t, images)
}
