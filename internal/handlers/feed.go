package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"mindlink/internal/service"
	"mindlink/internal/storage"
)

// FeedHandler handles HTTP requests for fragments and the timeline view.
type FeedHandler struct {
	feeds *service.FeedService
}

// NewFeedHandler creates a new FeedHandler.
func NewFeedHandler(feeds *service.FeedService) *FeedHandler {
	return &FeedHandler{feeds: feeds}
}

// FragmentRequest represents the payload for submitting or editing a fragment.
type FragmentRequest struct {
	Content string `json:"content" validate:"required"`
}

// FragmentResponse represents one fragment in HTTP responses.
type FragmentResponse struct {
	ID             string    `json:"id"`
	TopicID        string    `json:"topic_id"`
	Content        string    `json:"content"`
	CleanedContent string    `json:"cleaned_content,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// ReconciliationOutcome reports what happened to the topic's document when a
// fragment was submitted. The fragment itself is stored either way.
type ReconciliationOutcome struct {
	Reconciled    bool   `json:"reconciled"`
	Effect        string `json:"effect,omitempty"`
	Changed       bool   `json:"changed"`
	ChangeSummary string `json:"change_summary,omitempty"`
	Error         string `json:"error,omitempty"`
	Retryable     bool   `json:"retryable,omitempty"`
}

// SubmitResponse represents the result of one fragment submission.
type SubmitResponse struct {
	Fragment       FragmentResponse      `json:"fragment"`
	Reconciliation ReconciliationOutcome `json:"reconciliation"`
}

// TimelineDayResponse groups one calendar day's fragments.
type TimelineDayResponse struct {
	Date      string             `json:"date"`
	Fragments []FragmentResponse `json:"fragments"`
}

func toFragmentResponse(f *storage.FeedRecord) FragmentResponse {
	return FragmentResponse{
		ID:             f.ID,
		TopicID:        f.MindID,
		Content:        f.Content,
		CleanedContent: f.CleanedContent,
		CreatedAt:      f.CreatedAt,
	}
}

// Submit handles POST /topics/{id}/fragments.
func (h *FeedHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req FragmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.feeds.Submit(ctx, chi.URLParam(r, "id"), req.Content)
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to submit fragment")
		return
	}

	outcome := ReconciliationOutcome{
		Reconciled:    res.ReconcileErr == nil,
		Effect:        string(res.Effect),
		Changed:       res.Changed,
		ChangeSummary: res.ChangeSummary,
	}
	if res.ReconcileErr != nil {
		outcome.Error = res.ReconcileErr.Error()
		outcome.Retryable = true
	}

	fragment := toFragmentResponse(res.Feed)
	fragment.CleanedContent = res.CleanedContent

	writeJSON(w, http.StatusCreated, SubmitResponse{
		Fragment:       fragment,
		Reconciliation: outcome,
	})
}

// List handles GET /topics/{id}/fragments.
func (h *FeedHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	feeds, err := h.feeds.List(ctx, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to list fragments")
		return
	}

	resp := make([]FragmentResponse, 0, len(feeds))
	for _, f := range feeds {
		resp = append(resp, toFragmentResponse(f))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Update handles PUT /fragments/{id}. The topic document is not re-derived.
func (h *FeedHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req FragmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	feed, err := h.feeds.Update(ctx, chi.URLParam(r, "id"), req.Content)
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to update fragment")
		return
	}
	writeJSON(w, http.StatusOK, toFragmentResponse(feed))
}

// Delete handles DELETE /fragments/{id}.
func (h *FeedHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.feeds.Delete(ctx, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, ctx, err, "Failed to delete fragment")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Timeline handles GET /topics/{id}/timeline.
func (h *FeedHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	days, err := h.feeds.Timeline(ctx, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to build timeline")
		return
	}

	resp := make([]TimelineDayResponse, 0, len(days))
	for _, d := range days {
		day := TimelineDayResponse{Date: d.Date, Fragments: make([]FragmentResponse, 0, len(d.Feeds))}
		for _, f := range d.Feeds {
			day.Fragments = append(day.Fragments, toFragmentResponse(f))
		}
		resp = append(resp, day)
	}
	writeJSON(w, http.StatusOK, resp)
}
