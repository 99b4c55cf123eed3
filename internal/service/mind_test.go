package service

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestMindService_CreateValidation(t *testing.T) {
	h := newTestRepos(t)
	svc := NewMindService(h.Minds, h.Crystals, nil)

	tests := []struct {
		name  string
		title string
	}{
		{"empty", ""},
		{"whitespace only", "   \t"},
		{"too long", strings.Repeat("x", maxTitleLength+1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tt.title)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Errorf("Create(%q) error = %v, want *ValidationError", tt.title, err)
			}
		})
	}
}

func TestMindService_CreateTrimsTitle(t *testing.T) {
	h := newTestRepos(t)
	svc := NewMindService(h.Minds, h.Crystals, nil)

	mind, err := svc.Create(context.Background(), "  Learning Go  ")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if mind.Title != "Learning Go" {
		t.Errorf("Title = %q, want trimmed", mind.Title)
	}
}

func TestMindService_DeleteMissing(t *testing.T) {
	h := newTestRepos(t)
	svc := NewMindService(h.Minds, h.Crystals, nil)

	if err := svc.Delete(context.Background(), "no-such-id"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() error = %v, want ErrNotFound", err)
	}
}

func TestMindService_GetDocumentEmpty(t *testing.T) {
	h := newTestRepos(t)
	svc := NewMindService(h.Minds, h.Crystals, nil)
	mind := h.createMind(t, "Topic")

	doc, err := svc.GetDocument(context.Background(), mind.ID)
	if err != nil {
		t.Fatalf("GetDocument() error = %v", err)
	}
	if doc.Crystal == nil {
		t.Fatal("GetDocument() returned nil crystal for empty topic")
	}
	if doc.Crystal.CoreGoal != "" || len(doc.Crystal.CurrentKnowledge) != 0 {
		t.Errorf("empty topic document not empty: %+v", doc.Crystal)
	}
	if doc.Title != "Topic" {
		t.Errorf("Title = %q, want Topic", doc.Title)
	}
}

func TestMindService_GetDocumentStored(t *testing.T) {
	h := newTestRepos(t)
	svc := NewMindService(h.Minds, h.Crystals, nil)
	mind := h.createMind(t, "Topic")

	data := []byte(`{"core_goal":"Learn Go","current_knowledge":["a fact"],"highlights":[],"pending_notes":[],"evolution":["e1"]}`)
	if err := h.Crystals.Put(context.Background(), mind.ID, data); err != nil {
		t.Fatalf("Crystals.Put() error = %v", err)
	}

	doc, err := svc.GetDocument(context.Background(), mind.ID)
	if err != nil {
		t.Fatalf("GetDocument() error = %v", err)
	}
	if doc.Crystal.CoreGoal != "Learn Go" {
		t.Errorf("CoreGoal = %q", doc.Crystal.CoreGoal)
	}
	if len(doc.Crystal.Evolution) != 1 {
		t.Errorf("Evolution = %v", doc.Crystal.Evolution)
	}
}
