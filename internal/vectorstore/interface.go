package vectorstore

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_vector_store.go -package=mocks mindlink/internal/vectorstore VectorStore

import "context"

// Point represents a vector point with metadata.
type Point struct {
	ID   string
	Vec  []float32
	Meta map[string]any
}

// SearchResult represents a search result from vector search.
type SearchResult struct {
	PointID string
	Score   float32
	Meta    map[string]any
}

// VectorStore defines the interface for the bullet-vector index.
type VectorStore interface {
	// Upsert inserts or updates points in the collection.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Search performs a similarity search restricted to one mind's points.
	Search(ctx context.Context, collection string, query []float32, k int, mindID string) ([]SearchResult, error)

	// DeleteByMind removes every point belonging to a mind.
	DeleteByMind(ctx context.Context, collection string, mindID string) error
}
