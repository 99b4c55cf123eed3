package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"mindlink/internal/service"
	"mindlink/internal/storage"
)

// OutputHandler handles HTTP requests for expression generation.
type OutputHandler struct {
	expressions *service.ExpressionService
}

// NewOutputHandler creates a new OutputHandler.
func NewOutputHandler(expressions *service.ExpressionService) *OutputHandler {
	return &OutputHandler{expressions: expressions}
}

// OutputRequest represents the payload for generating an expression.
type OutputRequest struct {
	Instruction string `json:"instruction" validate:"required"`
}

// OutputResponse represents one recorded expression.
type OutputResponse struct {
	ID          string    `json:"id"`
	TopicID     string    `json:"topic_id"`
	Instruction string    `json:"instruction"`
	Result      string    `json:"result"`
	CreatedAt   time.Time `json:"created_at"`
}

func toOutputResponse(o *storage.OutputRecord) OutputResponse {
	return OutputResponse{
		ID:          o.ID,
		TopicID:     o.MindID,
		Instruction: o.Instruction,
		Result:      o.Result,
		CreatedAt:   o.CreatedAt,
	}
}

// Generate handles POST /topics/{id}/output.
func (h *OutputHandler) Generate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req OutputRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := h.expressions.Generate(ctx, chi.URLParam(r, "id"), req.Instruction)
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to generate output")
		return
	}
	writeJSON(w, http.StatusCreated, toOutputResponse(rec))
}

// List handles GET /topics/{id}/outputs.
func (h *OutputHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	outputs, err := h.expressions.ListOutputs(ctx, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to list outputs")
		return
	}

	resp := make([]OutputResponse, 0, len(outputs))
	for _, o := range outputs {
		resp = append(resp, toOutputResponse(o))
	}
	writeJSON(w, http.StatusOK, resp)
}
