package crystal

import (
	"strings"
	"testing"
)

func TestCrystal_Markdown(t *testing.T) {
	c := &Crystal{
		CoreGoal:         "Learn Go",
		CurrentKnowledge: []string{"Interfaces are implicit"},
		PendingNotes:     []string{"The deadline may move"},
	}

	md := c.Markdown()

	for _, want := range []string{
		"## Core Goal\nLearn Go",
		"## Current Knowledge\n- Interfaces are implicit",
		"## Pending Notes\n- The deadline may move",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("Markdown() missing %q:\n%s", want, md)
		}
	}
	if strings.Contains(md, "## Highlights") {
		t.Errorf("Markdown() rendered an empty section:\n%s", md)
	}
}

func TestCrystal_MarkdownEmpty(t *testing.T) {
	if got := New().Markdown(); !strings.Contains(got, "No structured content yet") {
		t.Errorf("Markdown() = %q, want placeholder", got)
	}
}
