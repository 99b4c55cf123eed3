package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"mindlink/internal/service"
)

// MindmapHandler handles HTTP requests for the mind-map view.
type MindmapHandler struct {
	mindmaps *service.MindmapService
}

// NewMindmapHandler creates a new MindmapHandler.
func NewMindmapHandler(mindmaps *service.MindmapService) *MindmapHandler {
	return &MindmapHandler{mindmaps: mindmaps}
}

// MindmapResponse represents a cached or fresh mind-map tree.
type MindmapResponse struct {
	Tree          *service.Node `json:"tree"`
	FragmentCount int           `json:"fragment_count"`
	GeneratedAt   time.Time     `json:"generated_at"`
	Stale         bool          `json:"stale"`
}

func toMindmapResponse(v *service.MindmapView) MindmapResponse {
	return MindmapResponse{
		Tree:          v.Tree,
		FragmentCount: v.FeedCount,
		GeneratedAt:   v.GeneratedAt,
		Stale:         v.Stale,
	}
}

// Get handles GET /topics/{id}/mindmap. It only serves the cache; a topic
// without a generated tree yet gets a 404 pointing at regeneration.
func (h *MindmapHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	view, err := h.mindmaps.Get(ctx, chi.URLParam(r, "id"))
	if errors.Is(err, service.ErrNotFound) {
		writeError(w, http.StatusNotFound, "No mind map generated yet, POST to generate one")
		return
	}
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to get mind map")
		return
	}
	writeJSON(w, http.StatusOK, toMindmapResponse(view))
}

// Regenerate handles POST /topics/{id}/mindmap.
func (h *MindmapHandler) Regenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	view, err := h.mindmaps.Regenerate(ctx, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to generate mind map")
		return
	}
	writeJSON(w, http.StatusOK, toMindmapResponse(view))
}
