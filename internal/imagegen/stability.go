package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const stabilityBaseURL = "https://api.stability.ai/v1"

// StabilityClient renders images with the Stability AI text-to-image
// endpoint.
type StabilityClient struct {
	apiKey     string
	engine     string
	baseURL    string
	httpClient *http.Client
}

// NewStabilityClient creates a Stability client for the given engine.
func NewStabilityClient(apiKey, engine string, timeout time.Duration) *StabilityClient {
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &StabilityClient{
		apiKey:     apiKey,
		engine:     engine,
		baseURL:    stabilityBaseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type stabilityRequest struct {
	TextPrompts []stabilityPrompt `json:"text_prompts"`
	CfgScale    int               `json:"cfg_scale"`
	Height      int               `json:"height"`
	Width       int               `json:"width"`
	Samples     int               `json:"samples"`
	Steps       int               `json:"steps"`
}

type stabilityPrompt struct {
	Text   string  `json:"text"`
	Weight float64 `json:"weight"`
}

type stabilityResponse struct {
	Artifacts []struct {
		Base64 string `json:"base64"`
	} `json:"artifacts"`
}

// GenerateImage implements TextToImage.
func (c *StabilityClient) GenerateImage(ctx context.Context, prompt string) ([]byte, string, error) {
	if c.apiKey == "" {
		return nil, "", fmt.Errorf("stability api key not configured")
	}

	payload, err := json.Marshal(stabilityRequest{
		TextPrompts: []stabilityPrompt{{Text: prompt, Weight: 1}},
		CfgScale:    7,
		Height:      1024,
		Width:       1024,
		Samples:     1,
		Steps:       30,
	})
	if err != nil {
		return nil, "", err
	}

	url := fmt.Sprintf("%s/generation/%s/text-to-image", c.baseURL, c.engine)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("stability %s: unexpected status %d: %s", c.engine, resp.StatusCode, truncate(body, 200))
	}

	var parsed stabilityResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, "", fmt.Errorf("decode stability response: %w", err)
	}
	if len(parsed.Artifacts) == 0 {
		return nil, "", fmt.Errorf("no image artifacts returned from stability")
	}

	data, err := base64.StdEncoding.DecodeString(parsed.Artifacts[0].Base64)
	if err != nil {
		return nil, "", fmt.Errorf("decode artifact: %w", err)
	}
	return data, "image/png", nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
