package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"mindlink/internal/contextutil"
)

// HealthHandler handles HTTP requests for health checks.
type HealthHandler struct {
	db      *sql.DB
	timeout time.Duration
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(db *sql.DB) *HealthHandler {
	return &HealthHandler{
		db:      db,
		timeout: 5 * time.Second,
	}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// ServeHTTP handles GET /health. The completion service is deliberately not
// probed; the API is useful for capture and reading even when it is down.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    map[string]string{"database": "ok"},
	}
	status := http.StatusOK

	if err := h.db.PingContext(ctx); err != nil {
		contextutil.LoggerFromContext(r.Context()).ErrorContext(r.Context(), "database health check failed", "error", err)
		resp.Status = "unhealthy"
		resp.Checks["database"] = err.Error()
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, resp)
}
