package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"mindlink/internal/config"
	"mindlink/internal/service"
	"mindlink/internal/storage"
)

// ChatHandler handles HTTP requests for per-topic conversations.
type ChatHandler struct {
	chats *service.ChatService
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(chats *service.ChatService) *ChatHandler {
	return &ChatHandler{chats: chats}
}

// ChatRequest represents the payload for sending a chat message.
type ChatRequest struct {
	Message string `json:"message" validate:"required"`
	Model   string `json:"model,omitempty"`
	Style   string `json:"style,omitempty"`
}

// ChatMessageResponse represents one stored chat message.
type ChatMessageResponse struct {
	ID        int64     `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatResponse represents one assistant reply.
type ChatResponse struct {
	Message ChatMessageResponse `json:"message"`
	Model   string              `json:"model"`
	Style   string              `json:"style"`
}

func toChatMessageResponse(m *storage.ChatMessageRecord) ChatMessageResponse {
	return ChatMessageResponse{
		ID:        m.ID,
		Role:      m.Role,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}

// Send handles POST /topics/{id}/chat.
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ChatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reply, err := h.chats.Send(ctx, chi.URLParam(r, "id"), req.Message, req.Model, req.Style)
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to process chat message")
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		Message: toChatMessageResponse(reply.Message),
		Model:   reply.Model.ID,
		Style:   reply.Style.ID,
	})
}

// History handles GET /topics/{id}/chat/history.
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	history, err := h.chats.History(ctx, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to load chat history")
		return
	}

	resp := make([]ChatMessageResponse, 0, len(history))
	for _, m := range history {
		resp = append(resp, toChatMessageResponse(m))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Clear handles DELETE /topics/{id}/chat/history.
func (h *ChatHandler) Clear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.chats.Clear(ctx, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, ctx, err, "Failed to clear chat history")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Models handles GET /chat/models.
func (h *ChatHandler) Models(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, config.AvailableModels)
}

// Styles handles GET /chat/styles.
func (h *ChatHandler) Styles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, config.AvailableStyles)
}
