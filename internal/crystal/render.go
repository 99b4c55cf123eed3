package crystal

import (
	"fmt"
	"strings"
)

// Markdown renders the crystal in its fixed section layout.
// Empty sections are omitted; an entirely empty crystal renders a placeholder.
func (c *Crystal) Markdown() string {
	var sb strings.Builder

	if c.CoreGoal != "" {
		fmt.Fprintf(&sb, "## Core Goal\n%s\n", c.CoreGoal)
	}
	writeSection(&sb, "Current Knowledge", c.CurrentKnowledge)
	writeSection(&sb, "Highlights", c.Highlights)
	writeSection(&sb, "Pending Notes", c.PendingNotes)
	writeSection(&sb, "Evolution", c.Evolution)

	if sb.Len() == 0 {
		return "_No structured content yet._\n"
	}
	return sb.String()
}

func writeSection(sb *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	if sb.Len() > 0 {
		sb.WriteString("\n")
	}
	fmt.Fprintf(sb, "## %s\n", heading)
	for _, item := range items {
		fmt.Fprintf(sb, "- %s\n", item)
	}
}
