package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is a client for the AI hub chat-completion API.
type Client struct {
	BaseURL string
	APIKey  string
	Model   string
	client  *http.Client
}

// NewClient creates a new completion client.
// timeout bounds every request; thinking models can be slow, so callers
// typically pass a value on the order of minutes.
func NewClient(baseURL, apiKey, model string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

// completeRequest is the request payload for the completion endpoint.
type completeRequest struct {
	Messages    []Message   `json:"messages"`
	ModelParams modelParams `json:"model_params"`
}

type modelParams struct {
	ThinkingLevel   string `json:"thinking_level,omitempty"`
	MaxOutputTokens int    `json:"max_output_tokens,omitempty"`
}

// completeChoice is a single generated choice in the response.
type completeChoice struct {
	Content string `json:"content"`
}

// completeResponse is the response from the completion endpoint.
type completeResponse struct {
	Choices      []completeChoice `json:"choices"`
	ErrorMessage string           `json:"error_message,omitempty"`
}

// Complete sends a completion request and returns the generated text.
// Non-2xx responses, transport failures and malformed bodies are all plain
// errors; callers wrap them into their own taxonomy.
func (c *Client) Complete(ctx context.Context, messages []Message, opts CompleteOptions) (string, error) {
	model := opts.Model
	if model == "" {
		model = c.Model
	}
	url := fmt.Sprintf("%s/run/chat_completion/%s", c.BaseURL, model)

	payload := completeRequest{
		Messages: messages,
		ModelParams: modelParams{
			ThinkingLevel:   opts.Effort,
			MaxOutputTokens: opts.MaxOutputTokens,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.APIKey))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("bad status %d: %s", resp.StatusCode, string(raw))
	}

	var completeResp completeResponse
	if err := json.NewDecoder(resp.Body).Decode(&completeResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if completeResp.ErrorMessage != "" {
		return "", fmt.Errorf("completion service error: %s", completeResp.ErrorMessage)
	}
	if len(completeResp.Choices) == 0 || completeResp.Choices[0].Content == "" {
		return "", fmt.Errorf("no content returned")
	}

	return completeResp.Choices[0].Content, nil
}
