package service

import (
	"context"
	"testing"

	"mindlink/internal/storage"
)

// repoHarness bundles real sqlite-backed repos for service tests.
type repoHarness struct {
	Minds    *storage.MindRepo
	Feeds    *storage.FeedRepo
	Crystals *storage.CrystalRepo
	Chats    *storage.ChatRepo
	Mindmaps *storage.MindmapRepo
	Outputs  *storage.OutputRepo
}

func newTestRepos(t *testing.T) *repoHarness {
	t.Helper()

	db, err := storage.New(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatalf("storage.New() error = %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	if err := storage.Migrate(db); err != nil {
		t.Fatalf("storage.Migrate() error = %v", err)
	}

	return &repoHarness{
		Minds:    storage.NewMindRepo(db),
		Feeds:    storage.NewFeedRepo(db),
		Crystals: storage.NewCrystalRepo(db),
		Chats:    storage.NewChatRepo(db),
		Mindmaps: storage.NewMindmapRepo(db),
		Outputs:  storage.NewOutputRepo(db),
	}
}

func (h *repoHarness) createMind(t *testing.T, title string) *storage.MindRecord {
	t.Helper()
	mind, err := h.Minds.Create(context.Background(), title)
	if err != nil {
		t.Fatalf("Minds.Create() error = %v", err)
	}
	return mind
}
