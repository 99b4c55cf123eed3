package storage

import "time"

// MindRecord represents a topic (a "mind") in the database.
type MindRecord struct {
	ID        string
	Title     string
	Summary   string   // One-line summary, empty until first narrative pass
	Narrative string   // Last generated narrative, empty until first narrative pass
	Tags      []string // Ordered, small set
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FeedRecord represents one raw fragment submitted to a mind.
// Insertion order defines the canonical timeline.
type FeedRecord struct {
	ID             string
	MindID         string
	Content        string
	CleanedContent string // De-noised rendition, set by reconciliation; empty until processed
	CreatedAt      time.Time
}

// CrystalRecord holds the serialized structured document of a mind.
// Data is the crystal JSON; the crystal package owns its schema.
type CrystalRecord struct {
	MindID    string
	Data      []byte
	UpdatedAt time.Time
}

// ChatMessageRecord represents one message in a mind's conversation history.
type ChatMessageRecord struct {
	ID        int64
	MindID    string
	Role      string // "user" or "assistant"
	Content   string
	CreatedAt time.Time
}

// MindmapRecord caches a generated mind-map tree.
// FeedCount is the number of feeds the tree was generated from; the cache is
// stale once the mind has more feeds than that.
type MindmapRecord struct {
	MindID      string
	TreeJSON    []byte
	FeedCount   int
	GeneratedAt time.Time
}

// OutputRecord represents one expression-generation result.
type OutputRecord struct {
	ID          string
	MindID      string
	Instruction string
	Result      string
	CreatedAt   time.Time
}
