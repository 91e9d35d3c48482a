package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvConfig holds environment-driven settings.
type EnvConfig struct {
	// Server
	Port          int
	AllowedOrigin string
	LogLevel      string

	// LLM
	LLMProvider string
	LLMAPIKey   string
	LLMBaseURL  string
	LLMModel    string

	// Embeddings
	EmbeddingsBaseURL string
	EmbeddingsAPIKey  string
	EmbeddingsModel   string

	// Voice token minting
	VoiceTokenSecret string
	VoiceTokenTTLSec int

	// Data files
	OrdersCSV     string
	ReturnsCSV    string
	ProductsCSV   string
	FAQsJSON      string
	IndexPath     string
	PromptFile    string
	AssistantYAML string
}

// LoadEnv loads environment variables, reading .env first when present.
func LoadEnv() (*EnvConfig, error) {
	// Ignore error if .env doesn't exist
	_ = godotenv.Load()

	cfg := &EnvConfig{
		AllowedOrigin: getEnv("ALLOWED_ORIGIN", "http://localhost:5173"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		LLMProvider: getEnv("LLM_PROVIDER", "groq"),
		LLMAPIKey:   getEnv("LLM_API_KEY", ""),
		LLMBaseURL:  getEnv("LLM_BASE_URL", ""),
		LLMModel:    getEnv("LLM_MODEL", ""),

		EmbeddingsBaseURL: getEnv("EMBEDDINGS_BASE_URL", ""),
		EmbeddingsAPIKey:  getEnv("EMBEDDINGS_API_KEY", ""),
		EmbeddingsModel:   getEnv("EMBEDDINGS_MODEL", "text-embedding-3-small"),

		VoiceTokenSecret: getEnv("VOICE_TOKEN_SECRET", ""),

		OrdersCSV:     getEnv("ORDERS_CSV", "data/orders.csv"),
		ReturnsCSV:    getEnv("RETURNS_CSV", "data/returns.csv"),
		ProductsCSV:   getEnv("PRODUCTS_CSV", "data/products.csv"),
		FAQsJSON:      getEnv("FAQS_JSON", "data/faqs.json"),
		IndexPath:     getEnv("INDEX_PATH", "data/index.json"),
		PromptFile:    getEnv("PROMPT_FILE", "prompts/assistant_prompt.txt"),
		AssistantYAML: getEnv("ASSISTANT_CONFIG", "configs/assistant.yaml"),
	}

	cfg.Port = getEnvInt("PORT", 8000)
	cfg.VoiceTokenTTLSec = getEnvInt("VOICE_TOKEN_TTL_SEC", 60)

	return cfg, nil
}

// AssistantConfig tunes the routing core. Zero values fall back to the
// built-in defaults, so a partial (or absent) file is fine.
type AssistantConfig struct {
	RetrieverK  int `yaml:"retriever_k"`
	SearchK     int `yaml:"search_k"`
	SSMLBreakMS int `yaml:"ssml_break_ms"`

	SSMLLanguage string `yaml:"ssml_language"`

	// Keyword list overrides; a non-empty list replaces the built-in one
	// wholesale. Priority order between intents is fixed in code.
	Keywords struct {
		SmallTalk     []string `yaml:"small_talk"`
		ReturnRequest []string `yaml:"return_request"`
		TrackOrder    []string `yaml:"track_order"`
		PlaceOrder    []string `yaml:"place_order"`
		ProductSearch []string `yaml:"product_search"`
		GenericFaq    []string `yaml:"generic_faq"`
	} `yaml:"keywords"`
}

// DefaultAssistantConfig returns the built-in tuning values.
func DefaultAssistantConfig() *AssistantConfig {
	return &AssistantConfig{
		RetrieverK:   4,
		SearchK:      5,
		SSMLBreakMS:  350,
		SSMLLanguage: "en-US",
	}
}

// LoadAssistantConfig loads the YAML tuning file. A missing file returns
// the defaults; a malformed file is an error.
func LoadAssistantConfig(path string) (*AssistantConfig, error) {
	cfg := DefaultAssistantConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read assistant config: %w", err)
	}

	// Replace ${VAR} references before parsing
	expanded := os.Expand(string(data), func(key string) string {
		return os.Getenv(key)
	})

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse assistant config: %w", err)
	}

	if cfg.RetrieverK <= 0 {
		cfg.RetrieverK = 4
	}
	if cfg.SearchK <= 0 {
		cfg.SearchK = 5
	}
	if cfg.SSMLBreakMS <= 0 {
		cfg.SSMLBreakMS = 350
	}
	if strings.TrimSpace(cfg.SSMLLanguage) == "" {
		cfg.SSMLLanguage = "en-US"
	}
	return cfg, nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intVal int
		if _, err := fmt.Sscanf(value, "%d", &intVal); err == nil {
			return intVal
		}
	}
	return defaultValue
}
