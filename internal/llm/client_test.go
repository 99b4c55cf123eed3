package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestClient_Complete(t *testing.T) {
	var gotPath string
	var gotAuth string
	var gotReq completeRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(completeResponse{
			Choices: []completeChoice{{Content: "hello back"}},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret", "default-model", 5*time.Second)
	got, err := client.Complete(context.Background(), []Message{
		{Role: "user", Content: "hello"},
	}, CompleteOptions{Effort: EffortMedium, MaxOutputTokens: 128})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if got != "hello back" {
		t.Errorf("Complete() = %q, want %q", got, "hello back")
	}
	if gotPath != "/run/chat_completion/default-model" {
		t.Errorf("path = %q, want /run/chat_completion/default-model", gotPath)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("authorization = %q", gotAuth)
	}
	if gotReq.ModelParams.ThinkingLevel != "medium" {
		t.Errorf("thinking_level = %q, want medium", gotReq.ModelParams.ThinkingLevel)
	}
	if gotReq.ModelParams.MaxOutputTokens != 128 {
		t.Errorf("max_output_tokens = %d, want 128", gotReq.ModelParams.MaxOutputTokens)
	}
}

func TestClient_CompleteModelOverride(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewEncoder(w).Encode(completeResponse{
			Choices: []completeChoice{{Content: "ok"}},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "", "default-model", 5*time.Second)
	if _, err := client.Complete(context.Background(), nil, CompleteOptions{Model: "other-model"}); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if gotPath != "/run/chat_completion/other-model" {
		t.Errorf("path = %q, want override model in path", gotPath)
	}
}

func TestClient_CompleteErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantMsg string
	}{
		{
			name: "error message in body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(completeResponse{ErrorMessage: "model overloaded"})
			},
			wantMsg: "model overloaded",
		},
		{
			name: "empty choices",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(completeResponse{})
			},
			wantMsg: "no content",
		},
		{
			name: "bad status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
			wantMsg: "bad status 500",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			client := NewClient(server.URL, "", "m", 5*time.Second)
			_, err := client.Complete(context.Background(), nil, CompleteOptions{})
			if err == nil {
				t.Fatal("Complete() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %v, want substring %q", err, tt.wantMsg)
			}
		})
	}
}
