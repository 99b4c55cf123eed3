package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	AIHubURL     string
	AIHubAPIKey  string
	DefaultModel string
	LLMTimeout   time.Duration

	DBPath  string
	APIPort string

	LogLevel  slog.Level
	LogFormat string

	// Semantic dedup index (optional). When QdrantURL is empty the index is
	// disabled and the reconciler falls back to lexical duplicate detection.
	QdrantURL          string
	QdrantCollection   string
	QdrantVectorSize   int
	EmbeddingBaseURL   string
	EmbeddingModelName string
	EmbeddingAPIKey    string
}

// ModelInfo describes a selectable chat model and its thinking effort.
type ModelInfo struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	ThinkingLevel string `json:"-"`
}

// StyleInfo describes a selectable conversation style.
type StyleInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// AvailableModels lists the chat models exposed to clients.
// The first entry is the default.
var AvailableModels = []ModelInfo{
	{
		ID:            "google_gemini_3_flash",
		Name:          "Gemini 3 Flash",
		Description:   "Fast responses, good for everyday conversation",
		ThinkingLevel: "medium",
	},
	{
		ID:            "google_gemini_3_pro",
		Name:          "Gemini 3 Pro",
		Description:   "Deep thinking, good for complex analysis",
		ThinkingLevel: "high",
	},
	{
		ID:            "plato_gpt_5_2_chat",
		Name:          "GPT-5.2 Plato",
		Description:   "Strongest reasoning",
		ThinkingLevel: "",
	},
}

// AvailableStyles lists the conversation styles exposed to clients.
// The first entry is the default.
var AvailableStyles = []StyleInfo{
	{ID: "default", Name: "Analytical", Description: "Objective, structured analysis"},
	{ID: "socratic", Name: "Socratic", Description: "Guides thinking through questions"},
	{ID: "creative", Name: "Divergent", Description: "Open-ended, associative exploration"},
}

// ModelByID returns the model with the given id, or the default model when
// the id is empty or unknown.
func ModelByID(id string) ModelInfo {
	for _, m := range AvailableModels {
		if m.ID == id {
			return m
		}
	}
	return AvailableModels[0]
}

// StyleByID returns the style with the given id, or the default style when
// the id is empty or unknown.
func StyleByID(id string) StyleInfo {
	for _, s := range AvailableStyles {
		if s.ID == id {
			return s
		}
	}
	return AvailableStyles[0]
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates required fields.
// If a .env file exists in the current directory or project root, it will be loaded automatically.
// Environment variables already set take precedence over .env file values.
func Load() (*Config, error) {
	_ = godotenv.Load() // Try current directory

	// Try to find the project root by looking for a .env next to go.mod
	wd, err := os.Getwd()
	if err == nil {
		dir := wd
		for i := 0; i < 5; i++ { // Limit search depth
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break // Reached filesystem root
			}
			dir = parent
		}
	}

	cfg := &Config{
		AIHubURL:           getEnv("AI_HUB_URL", "http://localhost:8000"),
		AIHubAPIKey:        getEnv("AI_HUB_API_KEY", ""),
		DefaultModel:       getEnv("AI_HUB_MODEL", AvailableModels[0].ID),
		DBPath:             getEnv("DB_PATH", "./data/mindlink.db"),
		APIPort:            getEnv("API_PORT", "9000"),
		LogFormat:          getEnv("LOG_FORMAT", "text"),
		QdrantURL:          getEnv("QDRANT_URL", ""),
		QdrantCollection:   getEnv("QDRANT_COLLECTION", "crystal_bullets"),
		EmbeddingBaseURL:   getEnv("EMBEDDING_BASE_URL", "http://localhost:8081"),
		EmbeddingModelName: getEnv("EMBEDDING_MODEL_NAME", "granite-embedding-278m-multilingual"),
		EmbeddingAPIKey:    getEnv("EMBEDDING_API_KEY", "dummy-key"),
	}

	level, err := parseLogLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level

	timeoutStr := getEnv("LLM_TIMEOUT_SECONDS", "120")
	timeoutSec, err := strconv.Atoi(timeoutStr)
	if err != nil || timeoutSec <= 0 {
		return nil, fmt.Errorf("LLM_TIMEOUT_SECONDS must be a positive integer, got %q", timeoutStr)
	}
	cfg.LLMTimeout = time.Duration(timeoutSec) * time.Second

	// The vector size must match the embedding model's output. It is only
	// required when the dedup index is enabled.
	if cfg.QdrantURL != "" {
		vectorSizeStr := getEnv("QDRANT_VECTOR_SIZE", "")
		if vectorSizeStr == "" {
			return nil, fmt.Errorf("QDRANT_VECTOR_SIZE is required when QDRANT_URL is set")
		}
		vectorSize, err := strconv.Atoi(vectorSizeStr)
		if err != nil {
			return nil, fmt.Errorf("QDRANT_VECTOR_SIZE must be a valid integer: %w", err)
		}
		if vectorSize <= 0 {
			return nil, fmt.Errorf("QDRANT_VECTOR_SIZE must be greater than 0")
		}
		cfg.QdrantVectorSize = vectorSize
	}

	// Create the data directory if it doesn't exist (for the DB file)
	dataDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

// DedupEnabled reports whether the semantic near-duplicate index is configured.
func (c *Config) DedupEnabled() bool {
	return c.QdrantURL != ""
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid LOG_LEVEL %q (expected debug, info, warn, or error)", raw)
	}
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
