package service

import (
	"encoding/json"
	"fmt"
	"strings"

	"mindlink/internal/crystal"
	"mindlink/internal/storage"
)

const narrativeSystemPrompt = `You are a writing assistant that turns a person's scattered notes on one topic into a single coherent narrative.

You receive the topic title, a structured overview of what is known so far, and the notes in the order they were written. Write in the voice of the note taker looking back over their own thinking.

Respond with exactly one JSON object, nothing else:
{
  "narrative": "a flowing text, several paragraphs, that tells the story of this topic so far",
  "summary": "one very short line capturing where the topic stands now, at most 30 characters",
  "tags": ["up to five short keyword tags"]
}

Rules:
- The narrative must only use information from the notes and overview. Never invent events or facts.
- Keep the chronology of the notes. Later notes may revise earlier ones; say so instead of pretending the earlier thought never happened.
- The summary is a status line, not a title. No trailing punctuation.
- Tags are single words or very short phrases, lowercase.`

const expressionSystemPrompt = `You are a ghostwriter. You receive a structured overview of one topic, the underlying notes, and an instruction describing what to produce (for example "a short blog post", "a message to my team", "three tweet drafts").

Produce exactly the requested text and nothing else. No preamble, no commentary, no JSON. Write from the note taker's perspective, grounded strictly in the provided material. If the instruction asks for something the material cannot support, say so briefly inside the produced text instead of inventing content.`

const mindmapSystemPrompt = `You extract a mind map from a structured topic overview and its notes.

Respond with exactly one JSON object, nothing else:
{
  "label": "root: the central theme",
  "children": [
    {"label": "branch", "pending": false, "children": [...]}
  ]
}

Rules:
- Two to three levels deep. Keep every label under eight words.
- Group related points under shared branches instead of listing everything flat at the root.
- Mark a node "pending": true when it comes from an open or unconfirmed point.
- Cover the material; do not invent branches that have no basis in it.`

// chatBaseSystemPrompt grounds the conversation in the topic's material.
// A style block is appended per request.
const chatBaseSystemPrompt = `You are a thinking partner for one specific topic. You have the topic's structured overview, its recent notes, and the conversation so far.

Ground every answer in that material. When the notes do not cover something, say so plainly; never invent facts about the topic. Refer to the note taker's own wording where it helps. Keep answers focused and conversational, not essay-length, unless asked for depth.`

// styleInstructions maps a style id to the block appended to the chat system
// prompt. Unknown ids fall back to default upstream, so lookups here always hit.
var styleInstructions = map[string]string{
	"default": `Style: analytical. Be objective and structured. Separate what the notes establish from what is still open, and point out tensions between notes when you see them.`,
	"socratic": `Style: socratic. Do not hand over conclusions. Answer with pointed questions that push the note taker to examine their own assumptions, one or two questions at a time.`,
	"creative": `Style: divergent. Explore associations, analogies and what-ifs around the material. Offer unexpected angles, clearly flagged as speculation when they go beyond the notes.`,
}

// narrativeReply is the wire shape of the narrative model output.
type narrativeReply struct {
	Narrative string   `json:"narrative"`
	Summary   string   `json:"summary"`
	Tags      []string `json:"tags"`
}

func buildNarrativeUser(title string, c *crystal.Crystal, feeds []*storage.FeedRecord) (string, error) {
	overview, err := overviewJSON(c)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Topic: %s\n\nOverview:\n%s\n\nNotes, oldest first:\n", title, overview)
	writeFeedLines(&sb, feeds)
	return sb.String(), nil
}

func buildExpressionUser(title, instruction string, c *crystal.Crystal, feeds []*storage.FeedRecord) (string, error) {
	overview, err := overviewJSON(c)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Topic: %s\n\nOverview:\n%s\n\nNotes, oldest first:\n", title, overview)
	writeFeedLines(&sb, feeds)
	fmt.Fprintf(&sb, "\nInstruction: %s\n", instruction)
	return sb.String(), nil
}

func buildMindmapUser(title string, c *crystal.Crystal, feeds []*storage.FeedRecord) (string, error) {
	overview, err := overviewJSON(c)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Topic: %s\n\nOverview:\n%s\n\nNotes, oldest first:\n", title, overview)
	writeFeedLines(&sb, feeds)
	return sb.String(), nil
}

func buildChatSystem(styleID, title string, c *crystal.Crystal, feeds []*storage.FeedRecord) string {
	var sb strings.Builder
	sb.WriteString(chatBaseSystemPrompt)
	if block, ok := styleInstructions[styleID]; ok {
		sb.WriteString("\n\n")
		sb.WriteString(block)
	}

	fmt.Fprintf(&sb, "\n\nTopic: %s\n\nOverview:\n%s\n", title, c.Markdown())
	if len(feeds) > 0 {
		sb.WriteString("\nRecent notes, oldest first:\n")
		writeFeedLines(&sb, feeds)
	}
	return sb.String()
}

// overviewJSON renders the crystal for a prompt, or a placeholder when the
// topic has no structured content yet.
func overviewJSON(c *crystal.Crystal) (string, error) {
	if c == nil {
		return "(none yet)", nil
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "", WrapError(err, "failed to encode overview")
	}
	return string(data), nil
}

// writeFeedLines lists feeds one per line, preferring the de-noised rendition.
func writeFeedLines(sb *strings.Builder, feeds []*storage.FeedRecord) {
	for _, f := range feeds {
		text := f.CleanedContent
		if text == "" {
			text = f.Content
		}
		fmt.Fprintf(sb, "- [%s] %s\n", f.CreatedAt.UTC().Format("2006-01-02"), text)
	}
}
