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

// OpenAIClient is an OpenAI-compatible chat.completions client. It serves
// Groq, OpenAI and local servers alike; only the base URL differs.
type OpenAIClient struct {
	BaseURL string
	APIKey  string
	Model   string
	HTTP    *http.Client
}

type chatReq struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResp struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Choices []chatChoice `json:"choices"`
	Error   *struct {
		Message string      `json:"message"`
		Type    string      `json:"type,omitempty"`
		Code    interface{} `json:"code,omitempty"`
	} `json:"error,omitempty"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	FinishReason string      `json:"finish_reason"`
	Message      chatMessage `json:"message"`
}

// NewOpenAIClient creates a client for an OpenAI-compatible endpoint.
func NewOpenAIClient(baseURL, apiKey, model string, timeout time.Duration) *OpenAIClient {
	if timeout == 0 {
		timeout = 12 * time.Second
	}
	return &OpenAIClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Model:   model,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// Chat sends a synchronous chat.completions request. Transient upstream
// failures (429/5xx/timeouts) are retried before giving up.
func (c *OpenAIClient) Chat(ctx context.Context, system, user string) (string, error) {
	reqBody := chatReq{
		Model: c.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:   640,
		Temperature: 0,
	}
	b, _ := json.Marshal(reqBody)
	endpoint := c.BaseURL + "/chat/completions"

	var result string
	err := resilience.Do(ctx, func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
		if err != nil {
			return fmt.Errorf("llm: create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if strings.TrimSpace(c.APIKey) != "" {
			httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
		}

		res, err := c.HTTP.Do(httpReq)
		if err != nil {
			return err
		}
		defer res.Body.Close()

		body, _ := io.ReadAll(res.Body)
		if res.StatusCode/100 != 2 {
			return fmt.Errorf("llm: %d %s", res.StatusCode, strings.TrimSpace(string(body)))
		}

		var out chatResp
		if err := json.Unmarshal(body, &out); err != nil {
			return fmt.Errorf("llm: decode failed: %w; raw=%s", err, strings.TrimSpace(string(body)))
		}
		if out.Error != nil {
			return errors.New(strings.TrimSpace(out.Error.Message))
		}
		if len(out.Choices) == 0 {
			return errors.New("llm: empty choices")
		}
		result = strings.TrimSpace(out.Choices[0].Message.Content)
		return nil
	})
	return result, err
}
