package crystal

import (
	"encoding/json"
	"fmt"
)

// Effect classifies how one fragment relates to the existing document.
type Effect string

const (
	// EffectAdd introduces information not semantically present before.
	EffectAdd Effect = "add"
	// EffectRefine sharpens existing information without changing its meaning.
	EffectRefine Effect = "refine"
	// EffectConflict contradicts previously recorded information.
	EffectConflict Effect = "conflict"
	// EffectObsolete marks prior content as no longer relevant.
	EffectObsolete Effect = "obsolete"
	// EffectNoise carries no durable content and leaves the document untouched.
	EffectNoise Effect = "noise"
)

// ParseEffect validates a model-supplied effect string.
func ParseEffect(raw string) (Effect, error) {
	switch Effect(raw) {
	case EffectAdd, EffectRefine, EffectConflict, EffectObsolete, EffectNoise:
		return Effect(raw), nil
	default:
		return "", fmt.Errorf("unknown effect %q", raw)
	}
}

// Crystal is the structured document of one mind.
// Evolution is append-only; it is owned locally and never taken from model
// output.
type Crystal struct {
	CoreGoal         string   `json:"core_goal"`
	CurrentKnowledge []string `json:"current_knowledge"`
	Highlights       []string `json:"highlights"`
	PendingNotes     []string `json:"pending_notes"`
	Evolution        []string `json:"evolution"`
}

// New returns an empty crystal with non-nil sections.
func New() *Crystal {
	return &Crystal{
		CurrentKnowledge: []string{},
		Highlights:       []string{},
		PendingNotes:     []string{},
		Evolution:        []string{},
	}
}

// Parse decodes a stored crystal.
func Parse(data []byte) (*Crystal, error) {
	var c Crystal
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse crystal: %w", err)
	}
	c.ensureSections()
	return &c, nil
}

// Marshal encodes the crystal for storage.
func (c *Crystal) Marshal() ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal crystal: %w", err)
	}
	return data, nil
}

// Clone returns a deep copy.
func (c *Crystal) Clone() *Crystal {
	clone := &Crystal{
		CoreGoal:         c.CoreGoal,
		CurrentKnowledge: append([]string{}, c.CurrentKnowledge...),
		Highlights:       append([]string{}, c.Highlights...),
		PendingNotes:     append([]string{}, c.PendingNotes...),
		Evolution:        append([]string{}, c.Evolution...),
	}
	return clone
}

func (c *Crystal) ensureSections() {
	if c.CurrentKnowledge == nil {
		c.CurrentKnowledge = []string{}
	}
	if c.Highlights == nil {
		c.Highlights = []string{}
	}
	if c.PendingNotes == nil {
		c.PendingNotes = []string{}
	}
	if c.Evolution == nil {
		c.Evolution = []string{}
	}
}

// ReconciliationError wraps any failure during a reconciliation pass.
// The fragment stays durably recorded and the crystal stays untouched; the
// operation is safe to retry.
type ReconciliationError struct {
	Err error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("reconciliation failed: %v", e.Err)
}

func (e *ReconciliationError) Unwrap() error {
	return e.Err
}
