package handlers

import (
	"bytes"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"mindlink/internal/contextutil"
	"mindlink/internal/crystal"
	"mindlink/internal/service"
	"mindlink/internal/storage"
)

// MindHandler handles HTTP requests for the topic registry and the
// per-topic document view.
type MindHandler struct {
	minds    *service.MindService
	markdown goldmark.Markdown
	template *template.Template
}

// NewMindHandler creates a new MindHandler.
func NewMindHandler(minds *service.MindService) *MindHandler {
	tmpl := template.Must(template.New("document").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>{{.Title}}</title>
  <style>
    body {
      font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif;
      margin: 0 auto;
      padding: 2rem;
      max-width: 800px;
      line-height: 1.7;
      background: #050b18;
      color: #e4ecff;
    }
    h1 { color: #fff; }
    h2 { color: #c7d2fe; margin-top: 1.5rem; }
    ul { color: #cbd5f5; }
    .meta { color: #94a3b8; font-size: 0.85rem; }
  </style>
</head>
<body>
  <h1>{{.Title}}</h1>
  <p class="meta">Updated {{.UpdatedAt}}</p>
  {{.Content}}
</body>
</html>`))

	return &MindHandler{
		minds:    minds,
		markdown: goldmark.New(goldmark.WithExtensions(extension.GFM)),
		template: tmpl,
	}
}

// CreateMindRequest represents the payload for creating a topic.
type CreateMindRequest struct {
	Title string `json:"title" validate:"required"`
}

// MindResponse represents a topic in HTTP responses.
type MindResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary"`
	Narrative string    `json:"narrative"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DocumentResponse represents a topic's structured document.
type DocumentResponse struct {
	MindID    string           `json:"topic_id"`
	Title     string           `json:"title"`
	Document  *crystal.Crystal `json:"document"`
	UpdatedAt time.Time        `json:"updated_at"`
}

func toMindResponse(m *storage.MindRecord) MindResponse {
	tags := m.Tags
	if tags == nil {
		tags = []string{}
	}
	return MindResponse{
		ID:        m.ID,
		Title:     m.Title,
		Summary:   m.Summary,
		Narrative: m.Narrative,
		Tags:      tags,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// Create handles POST /topics.
func (h *MindHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateMindRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	mind, err := h.minds.Create(ctx, req.Title)
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to create topic")
		return
	}
	writeJSON(w, http.StatusCreated, toMindResponse(mind))
}

// List handles GET /topics.
func (h *MindHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	minds, err := h.minds.List(ctx)
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to list topics")
		return
	}

	resp := make([]MindResponse, 0, len(minds))
	for _, m := range minds {
		resp = append(resp, toMindResponse(m))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /topics/{id}.
func (h *MindHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	mind, err := h.minds.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to get topic")
		return
	}
	writeJSON(w, http.StatusOK, toMindResponse(mind))
}

// Delete handles DELETE /topics/{id}.
func (h *MindHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.minds.Delete(ctx, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, ctx, err, "Failed to delete topic")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Document handles GET /topics/{id}/document. With ?format=html the crystal
// markdown is rendered as a standalone HTML page.
func (h *MindHandler) Document(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	doc, err := h.minds.GetDocument(ctx, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to get document")
		return
	}

	if r.URL.Query().Get("format") != "html" {
		writeJSON(w, http.StatusOK, DocumentResponse{
			MindID:    doc.MindID,
			Title:     doc.Title,
			Document:  doc.Crystal,
			UpdatedAt: doc.UpdatedAt,
		})
		return
	}

	var rendered bytes.Buffer
	if err := h.markdown.Convert([]byte(doc.Crystal.Markdown()), &rendered); err != nil {
		logger.ErrorContext(ctx, "failed to render document", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to render document")
		return
	}

	var page bytes.Buffer
	err = h.template.Execute(&page, struct {
		Title     string
		UpdatedAt string
		Content   template.HTML
	}{
		Title:     doc.Title,
		UpdatedAt: doc.UpdatedAt.UTC().Format(time.RFC3339),
		Content:   template.HTML(rendered.String()),
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to render document page", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to render document")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(page.Bytes())
}
