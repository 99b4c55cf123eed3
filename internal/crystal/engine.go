package crystal

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_completer.go -package=mocks mindlink/internal/crystal Completer

import (
	"context"
	"fmt"
	"strings"

	"mindlink/internal/contextutil"
	"mindlink/internal/llm"
)

// Completer is the slice of the completion client the engine needs.
// This interface is defined from the engine's perspective (consumer-first).
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message, opts llm.CompleteOptions) (string, error)
}

// maxSchemaRetries bounds how often a schema-violating model reply is re-asked
// before the pass fails.
const maxSchemaRetries = 2

// reconcileMaxTokens caps the model output for one reconciliation pass.
const reconcileMaxTokens = 4096

// ReconcileRequest carries one fragment into a reconciliation pass.
type ReconcileRequest struct {
	MindID   string
	Title    string
	Existing *Crystal // nil when no fragment has been reconciled yet
	Fragment string
}

// ReconcileResult is the outcome of one reconciliation pass.
type ReconcileResult struct {
	// Crystal is the updated document. When Changed is false it is the prior
	// document unmodified.
	Crystal *Crystal
	// Effect classifies the fragment.
	Effect Effect
	// Changed reports whether the document materially changed. It is computed
	// locally by comparing normalized content, never taken from the model.
	Changed bool
	// CleanedContent is the de-noised rendition of the fragment, empty for
	// noise fragments.
	CleanedContent string
	// ChangeSummary is the one-line evolution entry, empty when Changed is false.
	ChangeSummary string
}

// Engine merges fragments into a mind's structured document.
//
// The merge and classification decision is delegated to the model, but inside
// a strict local contract: the reply is validated against the schema and
// re-asked a bounded number of times on violation, duplicate bullets are
// collapsed locally, conflicting updates are held rather than applied, and
// the evolution log only ever grows through a locally appended entry.
type Engine struct {
	completer Completer
	dedup     *DedupIndex // nil disables the semantic pre-check
}

// NewEngine creates a reconciliation engine.
// dedup may be nil; the engine then relies on lexical duplicate detection only.
func NewEngine(completer Completer, dedup *DedupIndex) *Engine {
	return &Engine{
		completer: completer,
		dedup:     dedup,
	}
}

// Reconcile merges one fragment into the mind's document.
// Any failure returns a *ReconciliationError; the caller keeps the prior
// document and may retry. The engine never persists anything itself.
func (e *Engine) Reconcile(ctx context.Context, req ReconcileRequest) (*ReconcileResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	fragment := strings.TrimSpace(req.Fragment)
	if fragment == "" {
		return nil, &ReconciliationError{Err: fmt.Errorf("empty fragment")}
	}

	existing := req.Existing
	if existing == nil {
		existing = New()
	}

	// Cheap pre-checks before spending a completion call: exact lexical
	// duplicate of an existing bullet, then (when configured) the semantic
	// bullet index.
	if containsStatement(existing.CurrentKnowledge, fragment) ||
		containsStatement(existing.Highlights, fragment) {
		logger.InfoContext(ctx, "fragment short-circuited as lexical duplicate", "mind_id", req.MindID)
		return noiseResult(existing), nil
	}
	if e.dedup != nil && len(existing.CurrentKnowledge) > 0 {
		dup, err := e.dedup.IsNearDuplicate(ctx, req.MindID, fragment)
		if err != nil {
			// The index is an optimization; never fail the pass over it.
			logger.WarnContext(ctx, "dedup pre-check failed, continuing", "mind_id", req.MindID, "error", err)
		} else if dup {
			logger.InfoContext(ctx, "fragment short-circuited as semantic duplicate", "mind_id", req.MindID)
			return noiseResult(existing), nil
		}
	}

	result, err := e.callModel(ctx, req.Title, existing, fragment)
	if err != nil {
		return nil, &ReconciliationError{Err: err}
	}

	effect := Effect(result.Effect)
	if effect == EffectNoise {
		return noiseResult(existing), nil
	}

	updated := e.buildUpdated(existing, result, effect, fragment)

	changed := !equivalent(existing, updated)
	if !changed {
		// The model claimed an effect but produced no material difference;
		// treat it exactly like a no-op so repeated submissions stay idempotent.
		logger.InfoContext(ctx, "reconciliation produced no material change",
			"mind_id", req.MindID, "claimed_effect", string(effect))
		return &ReconcileResult{
			Crystal:        existing,
			Effect:         effect,
			Changed:        false,
			CleanedContent: strings.TrimSpace(result.CleanedContent),
		}, nil
	}

	summary := firstLine(result.ChangeSummary)
	if summary == "" {
		summary = defaultChangeSummary(effect)
	}
	updated.Evolution = append(append([]string{}, existing.Evolution...), summary)

	// Index the new knowledge bullets for future pre-checks. Best effort.
	if e.dedup != nil {
		var fresh []string
		for _, bullet := range updated.CurrentKnowledge {
			if !containsStatement(existing.CurrentKnowledge, bullet) {
				fresh = append(fresh, bullet)
			}
		}
		if err := e.dedup.IndexStatements(ctx, req.MindID, fresh); err != nil {
			logger.WarnContext(ctx, "failed to index new bullets", "mind_id", req.MindID, "error", err)
		}
	}

	logger.InfoContext(ctx, "reconciliation committed",
		"mind_id", req.MindID, "effect", string(effect), "summary", summary)

	return &ReconcileResult{
		Crystal:        updated,
		Effect:         effect,
		Changed:        true,
		CleanedContent: strings.TrimSpace(result.CleanedContent),
		ChangeSummary:  summary,
	}, nil
}

// callModel runs the completion with bounded re-asks on schema violations.
func (e *Engine) callModel(ctx context.Context, title string, existing *Crystal, fragment string) (*modelResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	messages, err := buildReconcileMessages(title, existing, fragment)
	if err != nil {
		return nil, err
	}

	opts := llm.CompleteOptions{
		Effort:          llm.EffortMedium,
		MaxOutputTokens: reconcileMaxTokens,
	}

	var result *modelResult
	for attempt := 0; ; attempt++ {
		raw, err := e.completer.Complete(ctx, messages, opts)
		if err != nil {
			return nil, fmt.Errorf("completion call failed: %w", err)
		}

		result, err = parseModelResult(raw)
		if err == nil {
			if note, bad := questionViolation(result); bad && attempt < maxSchemaRetries {
				logger.WarnContext(ctx, "pending note phrased as question, re-asking",
					"attempt", attempt+1, "note", note)
				messages = appendCorrection(messages, raw,
					fmt.Sprintf("pending_notes entries must be declarative statements, but %q is a question", note))
				continue
			}
			break
		}

		if attempt >= maxSchemaRetries {
			return nil, fmt.Errorf("model output failed validation after %d attempts: %w", attempt+1, err)
		}
		logger.WarnContext(ctx, "model output failed validation, re-asking", "attempt", attempt+1, "error", err)
		messages = appendCorrection(messages, raw, err.Error())
	}

	// Final fallback for a persistently question-phrased note: rewrite it
	// locally instead of failing the whole pass.
	for i, note := range result.Structure.PendingNotes {
		if isQuestion(note) {
			result.Structure.PendingNotes[i] = stripQuestion(note)
		}
	}

	return result, nil
}

// buildUpdated turns a validated model reply into the next document,
// enforcing the local invariants the model cannot be trusted with.
func (e *Engine) buildUpdated(existing *Crystal, result *modelResult, effect Effect, fragment string) *Crystal {
	updated := &Crystal{
		CoreGoal:         strings.TrimSpace(result.Structure.CoreGoal),
		CurrentKnowledge: dedupStatements(result.Structure.CurrentKnowledge),
		Highlights:       dedupStatements(result.Structure.Highlights),
		PendingNotes:     dedupStatements(result.Structure.PendingNotes),
		Evolution:        []string{},
	}

	// Hold policy for conflicts and retractions: prior knowledge is never
	// silently dropped. Anything the model removed is restored, and the
	// contradiction must be visible as a pending note.
	if effect == EffectConflict || effect == EffectObsolete {
		for _, bullet := range existing.CurrentKnowledge {
			if !containsStatement(updated.CurrentKnowledge, bullet) {
				updated.CurrentKnowledge = append(updated.CurrentKnowledge, bullet)
			}
		}
		if !hasNewStatement(existing.PendingNotes, updated.PendingNotes) {
			note := strings.TrimSpace(result.CleanedContent)
			if note == "" {
				note = firstLine(fragment)
			}
			updated.PendingNotes = append(updated.PendingNotes,
				fmt.Sprintf("Unconfirmed change, contradicts earlier notes: %s", stripQuestion(note)))
		}
	}

	return updated
}

// hasNewStatement reports whether updated contains a statement absent from prior.
func hasNewStatement(prior, updated []string) bool {
	for _, s := range updated {
		if !containsStatement(prior, s) {
			return true
		}
	}
	return false
}

// appendCorrection extends the conversation with the rejected reply and a
// correction request.
func appendCorrection(messages []llm.Message, rejected, reason string) []llm.Message {
	return append(messages,
		llm.Message{Role: "assistant", Content: rejected},
		llm.Message{Role: "user", Content: fmt.Sprintf(
			"Your previous reply was rejected: %s. Return only the corrected JSON object in the required schema.", reason)},
	)
}

func noiseResult(existing *Crystal) *ReconcileResult {
	return &ReconcileResult{
		Crystal: existing,
		Effect:  EffectNoise,
		Changed: false,
	}
}

func defaultChangeSummary(effect Effect) string {
	switch effect {
	case EffectAdd:
		return "Recorded new information from a note"
	case EffectRefine:
		return "Sharpened existing notes"
	case EffectConflict:
		return "Detected a contradiction, held for confirmation"
	case EffectObsolete:
		return "Detected a retraction, held for confirmation"
	default:
		return "Updated the overview"
	}
}
