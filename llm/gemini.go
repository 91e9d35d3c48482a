// Gemini native API client, kept as an alternate provider.
// https://ai.google.dev/api/rest
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shoptalk-ai/shoptalk/resilience"
)

// GeminiClient implements Client against Gemini's generateContent endpoint.
type GeminiClient struct {
	APIKey  string
	Model   string
	BaseURL string
	HTTP    *http.Client
}

type geminiRequest struct {
	Contents         []geminiContent  `json:"contents"`
	GenerationConfig *geminiGenConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role"` // "user" or "model"
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
	Error      *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

// NewGeminiClient creates a new Gemini native API client.
func NewGeminiClient(apiKey, model string, timeout time.Duration) *GeminiClient {
	if model == "" {
		model = "gemini-2.0-flash"
	}
	if timeout == 0 {
		timeout = 12 * time.Second
	}
	return &GeminiClient{
		APIKey:  apiKey,
		Model:   model,
		BaseURL: "https://generativelanguage.googleapis.com/v1beta",
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// Chat implements the Client interface. Gemini has no dedicated system
// role, so the system framing is prepended to the user turn.
func (c *GeminiClient) Chat(ctx context.Context, system, user string) (string, error) {
	fullPrompt := user
	if strings.TrimSpace(system) != "" {
		fullPrompt = fmt.Sprintf("System Instructions: %s\n\nUser: %s", system, user)
	}

	reqBody := geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: fullPrompt}}},
		},
		GenerationConfig: &geminiGenConfig{
			Temperature:     0,
			MaxOutputTokens: 1024,
		},
	}
	b, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("gemini: marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.BaseURL, c.Model, c.APIKey)

	var result string
	err = resilience.Do(ctx, func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
		if err != nil {
			return fmt.Errorf("gemini: create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")

		res, err := c.HTTP.Do(httpReq)
		if err != nil {
			return err
		}
		defer res.Body.Close()

		body, _ := io.ReadAll(res.Body)
		if res.StatusCode/100 != 2 {
			return fmt.Errorf("gemini: %d %s", res.StatusCode, strings.TrimSpace(string(body)))
		}

		var out geminiResponse
		if err := json.Unmarshal(body, &out); err != nil {
			return fmt.Errorf("gemini: decode failed: %w; raw=%s", err, strings.TrimSpace(string(body)))
		}
		if out.Error != nil {
			return fmt.Errorf("gemini: %d %s", out.Error.Code, out.Error.Message)
		}
		if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
			return errors.New("gemini: empty candidates")
		}
		result = strings.TrimSpace(out.Candidates[0].Content.Parts[0].Text)
		return nil
	})
	return result, err
}
