package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"mindlink/internal/crystal"
	"mindlink/internal/service/mocks"
)

func TestFeedService_SubmitReconcilesAndPersists(t *testing.T) {
	h := newTestRepos(t)
	ctrl := gomock.NewController(t)
	engine := mocks.NewMockReconciler(ctrl)
	svc := NewFeedService(h.Minds, h.Feeds, h.Crystals, engine)

	mind := h.createMind(t, "Learning Go")

	updated := &crystal.Crystal{
		CoreGoal:         "Learn Go",
		CurrentKnowledge: []string{"interfaces are implicit"},
		Highlights:       []string{},
		PendingNotes:     []string{},
		Evolution:        []string{"Recorded that interfaces are implicit"},
	}
	engine.EXPECT().
		Reconcile(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req crystal.ReconcileRequest) (*crystal.ReconcileResult, error) {
			if req.MindID != mind.ID || req.Title != "Learning Go" {
				t.Errorf("unexpected request: %+v", req)
			}
			if req.Existing != nil {
				t.Error("Existing should be nil for a fresh topic")
			}
			return &crystal.ReconcileResult{
				Crystal:        updated,
				Effect:         crystal.EffectAdd,
				Changed:        true,
				CleanedContent: "interfaces are implicit",
				ChangeSummary:  "Recorded that interfaces are implicit",
			}, nil
		})

	res, err := svc.Submit(context.Background(), mind.ID, "so interfaces are implicit, umm")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if res.ReconcileErr != nil {
		t.Fatalf("ReconcileErr = %v", res.ReconcileErr)
	}
	if res.Effect != crystal.EffectAdd || !res.Changed {
		t.Errorf("got effect=%q changed=%v", res.Effect, res.Changed)
	}
	if res.CleanedContent != "interfaces are implicit" {
		t.Errorf("CleanedContent = %q", res.CleanedContent)
	}

	// Crystal persisted.
	rec, err := h.Crystals.Get(context.Background(), mind.ID)
	if err != nil {
		t.Fatalf("Crystals.Get() error = %v", err)
	}
	stored, err := crystal.Parse(rec.Data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if stored.CoreGoal != "Learn Go" {
		t.Errorf("stored CoreGoal = %q", stored.CoreGoal)
	}

	// Cleaned content persisted on the feed.
	feed, err := h.Feeds.Get(context.Background(), res.Feed.ID)
	if err != nil {
		t.Fatalf("Feeds.Get() error = %v", err)
	}
	if feed.CleanedContent != "interfaces are implicit" {
		t.Errorf("feed.CleanedContent = %q", feed.CleanedContent)
	}
}

func TestFeedService_SubmitKeepsFragmentOnReconcileFailure(t *testing.T) {
	h := newTestRepos(t)
	ctrl := gomock.NewController(t)
	engine := mocks.NewMockReconciler(ctrl)
	svc := NewFeedService(h.Minds, h.Feeds, h.Crystals, engine)

	mind := h.createMind(t, "Topic")

	engine.EXPECT().
		Reconcile(gomock.Any(), gomock.Any()).
		Return(nil, &crystal.ReconciliationError{Err: errors.New("service down")})

	res, err := svc.Submit(context.Background(), mind.ID, "a note")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if res.ReconcileErr == nil {
		t.Fatal("ReconcileErr = nil, want failure")
	}

	// Fragment is durable despite the failure.
	feeds, err := h.Feeds.ListByMind(context.Background(), mind.ID)
	if err != nil {
		t.Fatalf("ListByMind() error = %v", err)
	}
	if len(feeds) != 1 || feeds[0].Content != "a note" {
		t.Errorf("stored feeds = %+v, want the submitted note", feeds)
	}

	// Crystal untouched.
	if _, err := h.Crystals.Get(context.Background(), mind.ID); err == nil {
		t.Error("crystal was written despite reconcile failure")
	}
}

func TestFeedService_SubmitNoChangeWritesNoCrystal(t *testing.T) {
	h := newTestRepos(t)
	ctrl := gomock.NewController(t)
	engine := mocks.NewMockReconciler(ctrl)
	svc := NewFeedService(h.Minds, h.Feeds, h.Crystals, engine)

	mind := h.createMind(t, "Topic")

	engine.EXPECT().
		Reconcile(gomock.Any(), gomock.Any()).
		Return(&crystal.ReconcileResult{
			Crystal: crystal.New(),
			Effect:  crystal.EffectNoise,
			Changed: false,
		}, nil)

	res, err := svc.Submit(context.Background(), mind.ID, "ugh long day")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if res.Changed || res.Effect != crystal.EffectNoise {
		t.Errorf("got effect=%q changed=%v, want noise/false", res.Effect, res.Changed)
	}
	if _, err := h.Crystals.Get(context.Background(), mind.ID); err == nil {
		t.Error("crystal was written for a noise fragment")
	}
}

func TestFeedService_SubmitValidation(t *testing.T) {
	h := newTestRepos(t)
	ctrl := gomock.NewController(t)
	engine := mocks.NewMockReconciler(ctrl)
	svc := NewFeedService(h.Minds, h.Feeds, h.Crystals, engine)

	mind := h.createMind(t, "Topic")

	_, err := svc.Submit(context.Background(), mind.ID, "  \n ")
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Errorf("Submit() error = %v, want *ValidationError", err)
	}

	if _, err := svc.Submit(context.Background(), "no-such-id", "note"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Submit() to missing topic error = %v, want ErrNotFound", err)
	}
}

func TestFeedService_SubmitAlwaysAdvancesUpdatedAt(t *testing.T) {
	h := newTestRepos(t)
	ctrl := gomock.NewController(t)
	engine := mocks.NewMockReconciler(ctrl)
	svc := NewFeedService(h.Minds, h.Feeds, h.Crystals, engine)

	mind := h.createMind(t, "Topic")
	ctx := context.Background()

	// Noise leaves the document untouched but is still topic activity.
	engine.EXPECT().
		Reconcile(gomock.Any(), gomock.Any()).
		Return(&crystal.ReconcileResult{Crystal: crystal.New(), Effect: crystal.EffectNoise}, nil)

	if _, err := svc.Submit(ctx, mind.ID, "hmm"); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	after, err := h.Minds.Get(ctx, mind.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !after.UpdatedAt.After(mind.UpdatedAt) {
		t.Errorf("updated_at = %v, want later than %v after a noise append", after.UpdatedAt, mind.UpdatedAt)
	}

	// So does an append whose reconciliation fails.
	engine.EXPECT().
		Reconcile(gomock.Any(), gomock.Any()).
		Return(nil, errors.New("model unavailable"))

	if _, err := svc.Submit(ctx, mind.ID, "another note"); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	later, err := h.Minds.Get(ctx, mind.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !later.UpdatedAt.After(after.UpdatedAt) {
		t.Errorf("updated_at = %v, want later than %v after a failed reconciliation", later.UpdatedAt, after.UpdatedAt)
	}
}

func TestFeedService_SubmitSerializedPerTopic(t *testing.T) {
	h := newTestRepos(t)
	ctrl := gomock.NewController(t)
	engine := mocks.NewMockReconciler(ctrl)
	svc := NewFeedService(h.Minds, h.Feeds, h.Crystals, engine)

	mind := h.createMind(t, "Topic")

	var inFlight, maxInFlight int
	var reconciled []string
	mu := make(chan struct{}, 1)
	mu <- struct{}{}

	engine.EXPECT().
		Reconcile(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req crystal.ReconcileRequest) (*crystal.ReconcileResult, error) {
			<-mu
			inFlight++
			if inFlight > maxInFlight {
				maxInFlight = inFlight
			}
			reconciled = append(reconciled, req.Fragment)
			mu <- struct{}{}

			time.Sleep(5 * time.Millisecond)

			<-mu
			inFlight--
			mu <- struct{}{}

			return &crystal.ReconcileResult{Crystal: crystal.New(), Effect: crystal.EffectNoise}, nil
		}).
		Times(4)

	done := make(chan error, 4)
	for i := 0; i < 4; i++ {
		go func(n int) {
			_, err := svc.Submit(context.Background(), mind.ID, fmt.Sprintf("note %d", n))
			done <- err
		}(i)
	}
	for i := 0; i < 4; i++ {
		if err := <-done; err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
	}

	if maxInFlight != 1 {
		t.Errorf("max concurrent reconciliations = %d, want 1", maxInFlight)
	}

	// Whatever order the goroutines won the lock in, reconciliation order
	// must be the stored append order.
	feeds, err := h.Feeds.ListByMind(context.Background(), mind.ID)
	if err != nil {
		t.Fatalf("ListByMind() error = %v", err)
	}
	if len(feeds) != len(reconciled) {
		t.Fatalf("stored %d fragments, reconciled %d", len(feeds), len(reconciled))
	}
	for i, f := range feeds {
		if f.Content != reconciled[i] {
			t.Errorf("position %d: appended %q, reconciled %q", i, f.Content, reconciled[i])
		}
	}
}

func TestFeedService_Timeline(t *testing.T) {
	h := newTestRepos(t)
	ctrl := gomock.NewController(t)
	svc := NewFeedService(h.Minds, h.Feeds, h.Crystals, mocks.NewMockReconciler(ctrl))

	mind := h.createMind(t, "Topic")
	ctx := context.Background()

	// Same-day feeds; the grouping key is the UTC calendar day.
	for _, c := range []string{"one", "two", "three"} {
		if _, err := h.Feeds.Append(ctx, mind.ID, c); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	days, err := svc.Timeline(ctx, mind.ID)
	if err != nil {
		t.Fatalf("Timeline() error = %v", err)
	}
	if len(days) != 1 {
		t.Fatalf("Timeline() days = %d, want 1", len(days))
	}
	day := days[0]
	if day.Date != time.Now().UTC().Format("2006-01-02") {
		t.Errorf("Date = %q", day.Date)
	}
	if len(day.Feeds) != 3 {
		t.Fatalf("Feeds = %d, want 3", len(day.Feeds))
	}
	// Newest first within the day.
	if day.Feeds[0].Content != "three" || day.Feeds[2].Content != "one" {
		t.Errorf("order = [%s %s %s], want [three two one]",
			day.Feeds[0].Content, day.Feeds[1].Content, day.Feeds[2].Content)
	}
}

func TestFeedService_UpdateAndDelete(t *testing.T) {
	h := newTestRepos(t)
	ctrl := gomock.NewController(t)
	svc := NewFeedService(h.Minds, h.Feeds, h.Crystals, mocks.NewMockReconciler(ctrl))

	mind := h.createMind(t, "Topic")
	ctx := context.Background()

	feed, err := h.Feeds.Append(ctx, mind.ID, "original")
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	got, err := svc.Update(ctx, feed.ID, "edited")
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got.Content != "edited" {
		t.Errorf("Content = %q, want edited", got.Content)
	}

	if err := svc.Delete(ctx, feed.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := svc.Delete(ctx, feed.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}
