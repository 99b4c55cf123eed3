package crystal

import (
	"encoding/json"
	"fmt"
	"strings"

	"mindlink/internal/llm"
)

// reconcilerSystemPrompt instructs the model to act as an editor, never an
// author: classify the fragment, de-noise it, and return the full updated
// structure in a fixed JSON schema.
const reconcilerSystemPrompt = `You are the organizer for a note-capture system. A user keeps an evolving structured overview of one topic, and feeds you one new raw note at a time. You have two tasks.

## Task 1: de-noise the note (cleaned_content)
Keep the note's substance, drop the noise:
- Remove filler words, pure repetition, redundant phrasing
- Keep opinions, emotions, details, metaphors, examples, original wording
- Tidy: fix wording, keep it concise, straighten the logic
- Heavy compression is fine as long as no meaning is lost
If the note carries no durable content at all (venting, repetition, off-topic), set cleaned_content to an empty string.

## Task 2: classify the note and update the structure
Classify the note's effect on the existing overview as exactly one of:
- "add": introduces information not present before; append it to the relevant section
- "refine": restates or sharpens existing information without changing its meaning; update the existing bullet in place, never duplicate it
- "conflict": contradicts a recorded bullet; KEEP the contradicted bullet unchanged and record the contradiction as a declarative entry in pending_notes
- "obsolete": explicitly retracts recorded content; KEEP the retracted bullet unchanged and record the retraction as a declarative entry in pending_notes
- "noise": no durable content; return the structure unchanged

Structure fields:
- core_goal: the topic's focus in one sentence
- current_knowledge: bullet list of what is currently believed, most important first
- highlights: notable details and ideas worth keeping
- pending_notes: unresolved points, phrased as declarative statements, NEVER as questions

Rules:
- You are an editor, not an author: never invent facts, never add your own opinion
- Never duplicate a bullet that is already semantically present
- Never silently remove or overwrite a bullet because of a conflict or retraction

## Output format
Return only a JSON object:
{
    "effect": "add|refine|conflict|obsolete|noise",
    "cleaned_content": "...",
    "structure": {
        "core_goal": "...",
        "current_knowledge": [...],
        "highlights": [...],
        "pending_notes": [...]
    },
    "change_summary": "one line describing what changed, empty if nothing changed"
}`

// modelResult is the schema the model must return.
type modelResult struct {
	Effect         string `json:"effect"`
	CleanedContent string `json:"cleaned_content"`
	Structure      struct {
		CoreGoal         string   `json:"core_goal"`
		CurrentKnowledge []string `json:"current_knowledge"`
		Highlights       []string `json:"highlights"`
		PendingNotes     []string `json:"pending_notes"`
	} `json:"structure"`
	ChangeSummary string `json:"change_summary"`
}

// buildReconcileMessages assembles the completion request for one fragment.
func buildReconcileMessages(title string, existing *Crystal, fragment string) ([]llm.Message, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Topic: %s\n\n", title)

	if existing == nil || (existing.CoreGoal == "" && len(existing.CurrentKnowledge) == 0 &&
		len(existing.Highlights) == 0 && len(existing.PendingNotes) == 0) {
		sb.WriteString("Current overview: none yet. Build the initial structure from this first note.\n\n")
	} else {
		current := struct {
			CoreGoal         string   `json:"core_goal"`
			CurrentKnowledge []string `json:"current_knowledge"`
			Highlights       []string `json:"highlights"`
			PendingNotes     []string `json:"pending_notes"`
		}{
			CoreGoal:         existing.CoreGoal,
			CurrentKnowledge: existing.CurrentKnowledge,
			Highlights:       existing.Highlights,
			PendingNotes:     existing.PendingNotes,
		}
		encoded, err := json.MarshalIndent(current, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode current structure: %w", err)
		}
		fmt.Fprintf(&sb, "Current overview:\n%s\n\n", encoded)
	}

	fmt.Fprintf(&sb, "New note:\n%s", fragment)

	return []llm.Message{
		{Role: "system", Content: reconcilerSystemPrompt},
		{Role: "user", Content: sb.String()},
	}, nil
}

// ExtractJSON pulls the JSON object out of model output, tolerating fenced
// code blocks and surrounding prose.
func ExtractJSON(raw string) ([]byte, error) {
	s := strings.TrimSpace(raw)

	if idx := strings.Index(s, "```"); idx >= 0 {
		s = s[idx+3:]
		s = strings.TrimPrefix(s, "json")
		if end := strings.Index(s, "```"); end >= 0 {
			s = s[:end]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in model output")
	}
	return []byte(s[start : end+1]), nil
}

// parseModelResult decodes one model reply and validates its schema.
// The question-phrasing rule for pending notes is checked separately by the
// engine because its fallback policy differs (local rewrite, not failure).
func parseModelResult(raw string) (*modelResult, error) {
	data, err := ExtractJSON(raw)
	if err != nil {
		return nil, err
	}

	var result modelResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("model output is not valid JSON: %w", err)
	}

	if _, err := ParseEffect(result.Effect); err != nil {
		return nil, fmt.Errorf("invalid effect: %w", err)
	}
	return &result, nil
}

// questionViolation returns the first question-phrased pending note, if any.
func questionViolation(result *modelResult) (string, bool) {
	for _, note := range result.Structure.PendingNotes {
		if isQuestion(note) {
			return note, true
		}
	}
	return "", false
}
