package llm

// Message represents a single message in a completion conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Thinking effort levels accepted by the completion service.
const (
	EffortMinimal = "minimal"
	EffortLow     = "low"
	EffortMedium  = "medium"
	EffortHigh    = "high"
)

// CompleteOptions holds parameters for a completion request.
type CompleteOptions struct {
	// Model overrides the client's default model when non-empty.
	Model string

	// Effort selects the thinking effort level (minimal/low/medium/high).
	// Empty means the service default.
	Effort string

	// MaxOutputTokens caps the generated output. Zero means the service default.
	MaxOutputTokens int
}
