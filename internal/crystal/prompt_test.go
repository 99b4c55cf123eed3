package crystal

import (
	"strings"
	"testing"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{
			name: "bare object",
			in:   `{"effect":"add"}`,
			want: `{"effect":"add"}`,
		},
		{
			name: "fenced block",
			in:   "```json\n{\"effect\":\"add\"}\n```",
			want: `{"effect":"add"}`,
		},
		{
			name: "surrounding prose",
			in:   "Here is the result:\n{\"effect\":\"noise\"}\nHope that helps.",
			want: `{"effect":"noise"}`,
		},
		{
			name:    "no object",
			in:      "I could not produce JSON for this.",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ExtractJSON() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractJSON() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("ExtractJSON() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseModelResult(t *testing.T) {
	raw := `{"effect":"add","cleaned_content":"a point","structure":{"core_goal":"g","current_knowledge":["a point"],"highlights":[],"pending_notes":[]},"change_summary":"added a point"}`

	result, err := parseModelResult(raw)
	if err != nil {
		t.Fatalf("parseModelResult() error = %v", err)
	}
	if result.Effect != "add" {
		t.Errorf("Effect = %q, want add", result.Effect)
	}
	if len(result.Structure.CurrentKnowledge) != 1 {
		t.Errorf("CurrentKnowledge = %v", result.Structure.CurrentKnowledge)
	}
}

func TestParseModelResult_InvalidEffect(t *testing.T) {
	raw := `{"effect":"merge","cleaned_content":"","structure":{"core_goal":"","current_knowledge":[],"highlights":[],"pending_notes":[]},"change_summary":""}`

	_, err := parseModelResult(raw)
	if err == nil || !strings.Contains(err.Error(), "effect") {
		t.Errorf("parseModelResult() error = %v, want invalid effect error", err)
	}
}

func TestBuildReconcileMessages_EmptyOverview(t *testing.T) {
	messages, err := buildReconcileMessages("Learning Go", New(), "interfaces are implicit")
	if err != nil {
		t.Fatalf("buildReconcileMessages() error = %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(messages))
	}
	if messages[0].Role != "system" {
		t.Errorf("messages[0].Role = %q, want system", messages[0].Role)
	}
	if !strings.Contains(messages[1].Content, "none yet") {
		t.Errorf("user message missing empty-overview marker: %q", messages[1].Content)
	}
	if !strings.Contains(messages[1].Content, "interfaces are implicit") {
		t.Errorf("user message missing fragment: %q", messages[1].Content)
	}
}

func TestBuildReconcileMessages_WithOverview(t *testing.T) {
	existing := &Crystal{
		CoreGoal:         "Learn Go",
		CurrentKnowledge: []string{"interfaces are implicit"},
	}

	messages, err := buildReconcileMessages("Learning Go", existing, "goroutines are cheap")
	if err != nil {
		t.Fatalf("buildReconcileMessages() error = %v", err)
	}
	if !strings.Contains(messages[1].Content, "interfaces are implicit") {
		t.Errorf("user message missing current overview: %q", messages[1].Content)
	}
	if strings.Contains(messages[1].Content, "none yet") {
		t.Errorf("user message should not carry empty-overview marker")
	}
}
