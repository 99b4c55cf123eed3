package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"mindlink/internal/service"
)

// NarrativeHandler handles HTTP requests for narrative generation.
type NarrativeHandler struct {
	narratives *service.NarrativeService
}

// NewNarrativeHandler creates a new NarrativeHandler.
func NewNarrativeHandler(narratives *service.NarrativeService) *NarrativeHandler {
	return &NarrativeHandler{narratives: narratives}
}

// NarrativeResponse represents one narrative pass over a topic.
type NarrativeResponse struct {
	Narrative      string   `json:"narrative"`
	Summary        string   `json:"summary"`
	Tags           []string `json:"tags"`
	SummaryChanged bool     `json:"summary_changed"`
	TagsChanged    bool     `json:"tags_changed"`
}

// Generate handles POST /topics/{id}/narrative.
func (h *NarrativeHandler) Generate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	res, err := h.narratives.Generate(ctx, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to generate narrative")
		return
	}

	tags := res.Tags
	if tags == nil {
		tags = []string{}
	}
	writeJSON(w, http.StatusOK, NarrativeResponse{
		Narrative:      res.Narrative,
		Summary:        res.Summary,
		Tags:           tags,
		SummaryChanged: res.SummaryChanged,
		TagsChanged:    res.TagsChanged,
	})
}
