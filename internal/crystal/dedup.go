package crystal

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"mindlink/internal/contextutil"
	"mindlink/internal/vectorstore"
)

// Embedder generates embedding vectors for texts.
// This interface is defined from the consumer's perspective; it is satisfied
// by llm.EmbeddingsClient.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// DedupIndex is the optional semantic near-duplicate index over a mind's
// knowledge bullets. It lets the reconciler short-circuit obviously-noise
// fragments before spending a completion call.
type DedupIndex struct {
	embedder   Embedder
	store      vectorstore.VectorStore
	collection string
	threshold  float32
}

// DefaultDedupThreshold is the cosine score above which a fragment counts as
// a near-duplicate of an indexed bullet.
const DefaultDedupThreshold = 0.95

// NewDedupIndex creates a dedup index over the given collection.
// threshold <= 0 selects DefaultDedupThreshold.
func NewDedupIndex(embedder Embedder, store vectorstore.VectorStore, collection string, threshold float32) *DedupIndex {
	if threshold <= 0 {
		threshold = DefaultDedupThreshold
	}
	return &DedupIndex{
		embedder:   embedder,
		store:      store,
		collection: collection,
		threshold:  threshold,
	}
}

// IsNearDuplicate reports whether text is semantically near-identical to a
// bullet already indexed for the mind.
func (d *DedupIndex) IsNearDuplicate(ctx context.Context, mindID, text string) (bool, error) {
	vectors, err := d.embedder.EmbedTexts(ctx, []string{text})
	if err != nil {
		return false, fmt.Errorf("failed to embed fragment: %w", err)
	}

	results, err := d.store.Search(ctx, d.collection, vectors[0], 1, mindID)
	if err != nil {
		return false, fmt.Errorf("failed to search bullet index: %w", err)
	}
	if len(results) == 0 {
		return false, nil
	}
	return results[0].Score >= d.threshold, nil
}

// IndexStatements embeds and upserts new bullets for a mind.
func (d *DedupIndex) IndexStatements(ctx context.Context, mindID string, statements []string) error {
	if len(statements) == 0 {
		return nil
	}

	vectors, err := d.embedder.EmbedTexts(ctx, statements)
	if err != nil {
		return fmt.Errorf("failed to embed bullets: %w", err)
	}

	points := make([]vectorstore.Point, 0, len(statements))
	for i, statement := range statements {
		points = append(points, vectorstore.Point{
			ID:  uuid.New().String(),
			Vec: vectors[i],
			Meta: map[string]any{
				"mind_id": mindID,
				"text":    statement,
			},
		})
	}

	if err := d.store.Upsert(ctx, d.collection, points); err != nil {
		return fmt.Errorf("failed to index bullets: %w", err)
	}

	contextutil.LoggerFromContext(ctx).DebugContext(ctx, "indexed bullets", "mind_id", mindID, "count", len(points))
	return nil
}

// Purge removes every indexed bullet of a mind. Called on topic deletion.
func (d *DedupIndex) Purge(ctx context.Context, mindID string) error {
	return d.store.DeleteByMind(ctx, d.collection, mindID)
}
