package crystal

import "strings"

// normalizeStatement reduces a bullet to its comparison form: lowercased,
// whitespace collapsed, trailing sentence punctuation stripped.
func normalizeStatement(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Join(strings.Fields(s), " ")
	s = strings.TrimRight(s, ".!?。！？")
	return strings.TrimSpace(s)
}

// dedupStatements drops empty entries and later duplicates (by normalized
// form), preserving first-occurrence order.
func dedupStatements(items []string) []string {
	seen := make(map[string]bool, len(items))
	result := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		key := normalizeStatement(item)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		result = append(result, item)
	}
	return result
}

// containsStatement reports whether items holds s in normalized form.
func containsStatement(items []string, s string) bool {
	key := normalizeStatement(s)
	for _, item := range items {
		if normalizeStatement(item) == key {
			return true
		}
	}
	return false
}

// sameStatements reports whether two sections are equal under normalization,
// including order.
func sameStatements(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if normalizeStatement(a[i]) != normalizeStatement(b[i]) {
			return false
		}
	}
	return true
}

// equivalent reports whether two crystals carry the same content, ignoring
// the evolution log.
func equivalent(a, b *Crystal) bool {
	return normalizeStatement(a.CoreGoal) == normalizeStatement(b.CoreGoal) &&
		sameStatements(a.CurrentKnowledge, b.CurrentKnowledge) &&
		sameStatements(a.Highlights, b.Highlights) &&
		sameStatements(a.PendingNotes, b.PendingNotes)
}

// isQuestion reports whether a statement is phrased as a question.
// Pending notes must be declarative.
func isQuestion(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasSuffix(s, "?") || strings.HasSuffix(s, "？")
}

// stripQuestion rewrites a question-phrased statement into declarative form
// by dropping the trailing question mark. Last-resort normalization after
// bounded re-asks have failed.
func stripQuestion(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "?")
	s = strings.TrimSuffix(s, "？")
	return strings.TrimSpace(s)
}

// firstLine truncates a change summary to a single line.
func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
