// Package llm provides a small, pluggable chat client used by the
// assistant core, with env-driven construction and sane defaults.
package llm

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"
)

// ErrLLMDisabled is returned when no API key is configured and the endpoint
// is not a local no-key server.
var ErrLLMDisabled = errors.New("llm client disabled (missing key or base url)")

// Client is the minimal generation interface consumed by the assistant.
type Client interface {
	Chat(ctx context.Context, system, user string) (string, error)
}

// NewFromEnv creates a client from environment variables.
//
// Provider selection: LLM_PROVIDER = groq (default) | openai | gemini.
// Key precedence: LLM_API_KEY > GROQ_API_KEY / OPENAI_API_KEY /
// GEMINI_API_KEY depending on provider. Local endpoints
// (localhost/127.0.0.1) or LLM_ALLOW_NO_KEY=true permit an empty key.
func NewFromEnv() (Client, error) {
	provider := strings.ToLower(strings.TrimSpace(os.Getenv("LLM_PROVIDER")))
	if provider == "" {
		provider = "groq"
	}

	timeout := 12 * time.Second
	if v := strings.TrimSpace(os.Getenv("LLM_TIMEOUT")); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			timeout = d
		}
	}

	switch provider {
	case "gemini":
		key := firstNonEmpty(os.Getenv("LLM_API_KEY"), os.Getenv("GEMINI_API_KEY"), os.Getenv("GOOGLE_API_KEY"))
		if key == "" {
			return nil, ErrLLMDisabled
		}
		return NewGeminiClient(key, os.Getenv("LLM_MODEL"), timeout), nil

	case "openai":
		base := firstNonEmpty(os.Getenv("LLM_BASE_URL"), "https://api.openai.com/v1")
		key := firstNonEmpty(os.Getenv("LLM_API_KEY"), os.Getenv("OPENAI_API_KEY"))
		model := firstNonEmpty(os.Getenv("LLM_MODEL"), "gpt-4o-mini")
		return newOpenAICompatible(base, key, model, timeout)

	case "groq":
		base := firstNonEmpty(os.Getenv("LLM_BASE_URL"), "https://api.groq.com/openai/v1")
		key := firstNonEmpty(os.Getenv("LLM_API_KEY"), os.Getenv("GROQ_API_KEY"))
		model := firstNonEmpty(os.Getenv("LLM_MODEL"), "llama-3.1-8b-instant")
		return newOpenAICompatible(base, key, model, timeout)

	default:
		return nil, errors.New("llm: unsupported provider: " + provider)
	}
}

func newOpenAICompatible(base, key, model string, timeout time.Duration) (Client, error) {
	base = normalizeBase(base)
	allowNoKey := strings.EqualFold(os.Getenv("LLM_ALLOW_NO_KEY"), "true") ||
		strings.Contains(base, "localhost") || strings.Contains(base, "127.0.0.1")
	if key == "" && !allowNoKey {
		return nil, ErrLLMDisabled
	}
	return NewOpenAIClient(base, key, model, timeout), nil
}

// ---------- shared helpers ----------

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// normalizeBase appends /v1 for bare local OpenAI-compatible servers.
func normalizeBase(u string) string {
	s := strings.TrimRight(strings.TrimSpace(u), "/")
	if s == "" {
		return s
	}
	isLocal := strings.Contains(s, "localhost") || strings.Contains(s, "127.0.0.1")
	if isLocal && !strings.HasSuffix(s, "/v1") {
		s += "/v1"
	}
	return s
}
