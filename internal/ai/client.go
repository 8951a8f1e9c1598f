// Package ai implements the Gemini REST client used for story
// generation, transcription, image analysis and panel image output.
package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ananse-ntentan/backend/pkg/logger"
	"ananse-ntentan/backend/pkg/metrics"
	"ananse-ntentan/backend/pkg/resilience"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// sensingInstruction steers the model to pick up tone from attached
// media before it reads the actual prompt.
const sensingInstruction = `Pay close attention to the TONE and EMOTIONAL QUALITY of the attached media.
If it's audio, consider the speaker's emotion (excited, scared, calm, angry).
If it's an image, consider the artistic style (dark, bright, messy, clean).
Let these qualities influence the mood and style of the story you generate.

`

// Config holds the client settings.
type Config struct {
	APIKey      string
	Model       string
	ImageModel  string
	AspectRatio string
	BaseURL     string
	Timeout     time.Duration
}

// Client is a Gemini generateContent client.
type Client struct {
	cfg        Config
	httpClient *http.Client
	breaker    *resilience.CircuitBreaker
	log        *logger.Logger
}

// NewClient creates a Gemini client. Provider calls run through a
// circuit breaker so a flapping upstream fails fast instead of tying
// up pipeline goroutines.
func NewClient(cfg Config, log *logger.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("gemini"), log),
		log:        log,
	}
}

// AssemblePrompt builds the full generation prompt from the active
// template, the user's content, and the visual style modifiers.
func AssemblePrompt(userContent, templateText string, modifiers []string) string {
	var b strings.Builder
	b.WriteString(templateText)
	b.WriteString("\n\nUser Story: ")
	b.WriteString(userContent)
	if len(modifiers) > 0 {
		b.WriteString("\n\nVisual Style Guidelines: ")
		b.WriteString(strings.Join(modifiers, ", "))
	}
	return b.String()
}

// GenerateText runs a plain text prompt. An empty thinking level omits
// the thinking configuration entirely.
func (c *Client) GenerateText(ctx context.Context, prompt, thinkingLevel string) (string, error) {
	req := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
	}
	if thinkingLevel != "" {
		req.GenerationConfig = &generationConfig{
			ThinkingConfig: &thinkingConfig{ThinkingLevel: thinkingLevel},
		}
	}

	resp, err := c.generate(ctx, c.cfg.Model, req)
	if err != nil {
		return "", err
	}
	return firstText(resp)
}

// GenerateStory generates a structured story for the given user
// content. Sensory input, when present, precedes the prompt so the
// model senses tone before it reads instructions. Returns the parsed
// story and the captured thought signature.
func (c *Client) GenerateStory(ctx context.Context, userContent, templateText string, modifiers []string, sensory *SensoryInput) (*StoryData, string, error) {
	var parts []part
	if sensory != nil && len(sensory.Data) > 0 {
		parts = append(parts,
			part{InlineData: &inlineData{
				MIMEType: sensory.MIMEType,
				Data:     base64.StdEncoding.EncodeToString(sensory.Data),
			}},
			part{Text: sensingInstruction},
		)
	}
	parts = append(parts, part{Text: AssemblePrompt(userContent, templateText, modifiers)})

	req := generateRequest{
		Contents: []content{{Role: "user", Parts: parts}},
		GenerationConfig: &generationConfig{
			ThinkingConfig: &thinkingConfig{ThinkingLevel: ThinkingHigh},
		},
	}

	resp, err := c.generate(ctx, c.cfg.Model, req)
	if err != nil {
		return nil, "", err
	}

	text, err := firstText(resp)
	if err != nil {
		return nil, "", err
	}

	story, err := ParseStoryData(text)
	if err != nil {
		return nil, "", fmt.Errorf("parse story response: %w", err)
	}
	return story, resp.Candidates[0].ThoughtSignature, nil
}

// GenerateChat runs a conversational prompt and returns the response
// text plus the thought signature for multi-turn continuity. A
// signature captured on an earlier turn must be handed back verbatim
// so the model can resume its chain of thought; it rides in as a
// model-role turn preceding the prompt.
func (c *Client) GenerateChat(ctx context.Context, prompt, thoughtSignature, thinkingLevel string) (string, string, error) {
	var contents []content
	if thoughtSignature != "" {
		contents = append(contents, content{
			Role:  "model",
			Parts: []part{{ThoughtSignature: thoughtSignature}},
		})
	}
	contents = append(contents, content{Role: "user", Parts: []part{{Text: prompt}}})

	req := generateRequest{
		Contents: contents,
		GenerationConfig: &generationConfig{
			ThinkingConfig: &thinkingConfig{ThinkingLevel: thinkingLevel},
		},
	}

	resp, err := c.generate(ctx, c.cfg.Model, req)
	if err != nil {
		return "", "", err
	}
	text, err := firstText(resp)
	if err != nil {
		return "", "", err
	}
	return text, resp.Candidates[0].ThoughtSignature, nil
}

// TranscribeAudio transcribes an audio recording.
func (c *Client) TranscribeAudio(ctx context.Context, data []byte, mimeType string) (string, error) {
	if mimeType == "" {
		mimeType = "audio/mp3"
	}
	return c.describeMedia(ctx, data, mimeType, "Transcribe this audio accurately:")
}

// AnalyzeImage describes an uploaded image for story generation,
// including its artistic style.
func (c *Client) AnalyzeImage(ctx context.Context, data []byte, mimeType string) (string, error) {
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	const instruction = `Analyze this image and describe the story it tells.
Describe the scene, characters, usage of color, mood, and any specific actions taking place.
Also note the ARTISTIC STYLE of the image (is it sketchy, clean, dark, bright, cartoonish, realistic?).
This description will be used to generate a narrative story that matches the visual style.`
	return c.describeMedia(ctx, data, mimeType, instruction)
}

func (c *Client) describeMedia(ctx context.Context, data []byte, mimeType, instruction string) (string, error) {
	req := generateRequest{
		Contents: []content{{
			Role: "user",
			Parts: []part{
				{InlineData: &inlineData{
					MIMEType: mimeType,
					Data:     base64.StdEncoding.EncodeToString(data),
				}},
				{Text: instruction},
			},
		}},
	}

	resp, err := c.generate(ctx, c.cfg.Model, req)
	if err != nil {
		return "", err
	}
	return firstText(resp)
}

// GenerateImage renders an image for the given prompt using the
// configured image model. Returns the image bytes and MIME type.
func (c *Client) GenerateImage(ctx context.Context, prompt string) ([]byte, string, error) {
	req := generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"IMAGE"},
			ImageConfig:        &imageConfig{AspectRatio: c.cfg.AspectRatio},
		},
	}

	resp, err := c.generate(ctx, c.cfg.ImageModel, req)
	if err != nil {
		return nil, "", err
	}

	for _, cand := range resp.Candidates {
		for _, p := range cand.Content.Parts {
			if p.InlineData != nil && p.InlineData.Data != "" {
				data, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
				if err != nil {
					return nil, "", fmt.Errorf("decode image data: %w", err)
				}
				mimeType := p.InlineData.MIMEType
				if mimeType == "" {
					mimeType = "image/png"
				}
				return data, mimeType, nil
			}
		}
	}
	return nil, "", fmt.Errorf("no image data returned from model %s", c.cfg.ImageModel)
}

// generate performs one generateContent call through the breaker.
func (c *Client) generate(ctx context.Context, model string, reqBody generateRequest) (*generateResponse, error) {
	if c.cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key not configured")
	}

	var result generateResponse
	err := c.breaker.Execute(func() error {
		payload, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}

		url := fmt.Sprintf("%s/models/%s:generateContent", c.cfg.BaseURL, model)
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-goog-api-key", c.cfg.APIKey)

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			metrics.ProviderRequests.WithLabelValues("gemini", "error").Inc()
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			metrics.ProviderRequests.WithLabelValues("gemini", "error").Inc()
			return err
		}

		if resp.StatusCode != http.StatusOK {
			metrics.ProviderRequests.WithLabelValues("gemini", "error").Inc()
			var apiResp generateResponse
			if json.Unmarshal(body, &apiResp) == nil && apiResp.Error != nil {
				return fmt.Errorf("gemini %s: %s (%s)", model, apiResp.Error.Message, apiResp.Error.Status)
			}
			return fmt.Errorf("gemini %s: unexpected status %d", model, resp.StatusCode)
		}

		if err := json.Unmarshal(body, &result); err != nil {
			metrics.ProviderRequests.WithLabelValues("gemini", "error").Inc()
			return fmt.Errorf("decode response: %w", err)
		}

		metrics.ProviderRequests.WithLabelValues("gemini", "ok").Inc()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// firstText extracts the first text part of the first candidate,
// stripped of markdown fences.
func firstText(resp *generateResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("empty response from model")
	}
	for _, p := range resp.Candidates[0].Content.Parts {
		if p.Text != "" {
			return StripFences(p.Text), nil
		}
	}
	return "", fmt.Errorf("no text part in model response")
}
