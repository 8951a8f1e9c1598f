// Package imagegen renders panel images through the configured
// provider backend.
package imagegen

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ananse-ntentan/backend/internal/models"
	"ananse-ntentan/backend/pkg/logger"
	"ananse-ntentan/backend/pkg/metrics"
)

// Provider names accepted by IMAGE_PROVIDER.
const (
	ProviderGeminiImage = "gemini-image"
	ProviderStability   = "stability"
)

// qualitySuffix is appended to every panel prompt.
const qualitySuffix = "high quality, detailed, comic book panel, professional illustration"

// Image is one rendered panel.
type Image struct {
	Data        []byte
	ContentType string
}

// TextToImage renders an image from a prompt. Implemented by the
// Gemini client and the Stability client.
type TextToImage interface {
	GenerateImage(ctx context.Context, prompt string) ([]byte, string, error)
}

// Generator dispatches panel rendering to the configured backend.
type Generator struct {
	provider string
	backends map[string]TextToImage
	delay    time.Duration
	log      *logger.Logger
}

// NewGenerator creates a Generator. delay is the pause between
// sequential panel renders (rate-limit headroom).
func NewGenerator(provider string, gemini, stability TextToImage, delay time.Duration, log *logger.Logger) *Generator {
	backends := map[string]TextToImage{}
	if gemini != nil {
		backends[ProviderGeminiImage] = gemini
	}
	if stability != nil {
		backends[ProviderStability] = stability
	}
	return &Generator{
		provider: provider,
		backends: backends,
		delay:    delay,
		log:      log,
	}
}

// BuildPanelPrompt assembles the image prompt for one panel: scene,
// description, dialogue context, style modifiers, quality suffix,
// joined with ". ".
func BuildPanelPrompt(panel models.Panel, modifiers []string) string {
	var parts []string

	if panel.Scene != "" {
		parts = append(parts, panel.Scene)
	}
	if panel.Description != "" {
		parts = append(parts, panel.Description)
	}
	if panel.Dialogue != "" {
		parts = append(parts, fmt.Sprintf("Characters are saying: %q", panel.Dialogue))
	}
	if len(modifiers) > 0 {
		parts = append(parts, strings.Join(modifiers, ", "))
	}
	parts = append(parts, qualitySuffix)

	return strings.Join(parts, ". ")
}

// GeneratePanelImage renders one panel. An unknown provider is a
// configuration error and always fails.
func (g *Generator) GeneratePanelImage(ctx context.Context, panel models.Panel, modifiers []string) (*Image, error) {
	backend, ok := g.backends[g.provider]
	if !ok {
		return nil, fmt.Errorf("unknown image provider: %s", g.provider)
	}

	prompt := BuildPanelPrompt(panel, modifiers)
	g.log.Debug("Generating panel image",
		"panel", panel.Number,
		"provider", g.provider,
	)

	data, contentType, err := backend.GenerateImage(ctx, prompt)
	if err != nil {
		metrics.PanelImages.WithLabelValues(g.provider, "error").Inc()
		return nil, err
	}

	metrics.PanelImages.WithLabelValues(g.provider, "ok").Inc()
	return &Image{Data: data, ContentType: contentType}, nil
}

// GenerateAllPanelImages renders every panel sequentially. The result
// always has one slot per input panel, in order; a failed panel leaves
// a nil slot and the run continues.
func (g *Generator) GenerateAllPanelImages(ctx context.Context, panels []models.Panel, modifiers []string) []*Image {
	images := make([]*Image, 0, len(panels))

	for i, panel := range panels {
		img, err := g.GeneratePanelImage(ctx, panel, modifiers)
		if err != nil {
			g.log.LogError(err, "Panel image generation failed", "panel", panel.Number)
			images = append(images, nil)
		} else {
			images = append(images, img)
		}

		if g.delay > 0 && i < len(panels)-1 {
			select {
			case <-time.After(g.delay):
			case <-ctx.Done():
				// Fill the remaining slots so callers can still index by panel.
				for j := i + 1; j < len(panels); j++ {
					images = append(images, nil)
				}
				return images
			}
		}
	}

	return images
}
