package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_PATH", t.TempDir()+"/test.db")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.AIHubURL != "http://localhost:8000" {
		t.Errorf("AIHubURL = %q", cfg.AIHubURL)
	}
	if cfg.DefaultModel != AvailableModels[0].ID {
		t.Errorf("DefaultModel = %q, want the registry default", cfg.DefaultModel)
	}
	if cfg.APIPort != "9000" {
		t.Errorf("APIPort = %q", cfg.APIPort)
	}
	if cfg.LLMTimeout != 120*time.Second {
		t.Errorf("LLMTimeout = %v", cfg.LLMTimeout)
	}
	if cfg.DedupEnabled() {
		t.Error("DedupEnabled() = true without QDRANT_URL")
	}
}

func TestLoadVectorSizeRequiredWithQdrant(t *testing.T) {
	t.Setenv("DB_PATH", t.TempDir()+"/test.db")
	t.Setenv("QDRANT_URL", "http://localhost:6333")
	t.Setenv("QDRANT_VECTOR_SIZE", "")

	if _, err := Load(); err == nil {
		t.Error("Load() error = nil, want missing QDRANT_VECTOR_SIZE error")
	}

	t.Setenv("QDRANT_VECTOR_SIZE", "768")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.DedupEnabled() || cfg.QdrantVectorSize != 768 {
		t.Errorf("dedup config = %v/%d", cfg.DedupEnabled(), cfg.QdrantVectorSize)
	}
}

func TestLoadInvalidTimeout(t *testing.T) {
	t.Setenv("DB_PATH", t.TempDir()+"/test.db")
	t.Setenv("LLM_TIMEOUT_SECONDS", "zero")

	if _, err := Load(); err == nil {
		t.Error("Load() error = nil, want invalid timeout error")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"WARN", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"chatty", 0, true},
	}

	for _, tt := range tests {
		got, err := parseLogLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseLogLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestModelByID(t *testing.T) {
	if got := ModelByID("google_gemini_3_pro"); got.ThinkingLevel != "high" {
		t.Errorf("ModelByID(pro).ThinkingLevel = %q, want high", got.ThinkingLevel)
	}
	if got := ModelByID(""); got.ID != AvailableModels[0].ID {
		t.Errorf("ModelByID(\"\") = %q, want default", got.ID)
	}
	if got := ModelByID("unknown"); got.ID != AvailableModels[0].ID {
		t.Errorf("ModelByID(unknown) = %q, want default", got.ID)
	}
}

func TestStyleByID(t *testing.T) {
	if got := StyleByID("socratic"); got.ID != "socratic" {
		t.Errorf("StyleByID(socratic) = %q", got.ID)
	}
	if got := StyleByID("unknown"); got.ID != "default" {
		t.Errorf("StyleByID(unknown) = %q, want default", got.ID)
	}
}
