package handlers

import (
	"context"
	"net/http"
)

// ConnectionValidator checks connectivity to the photo server.
type ConnectionValidator interface {
	ValidateConnection(ctx context.Context) (bool, string)
}

// HealthHandler handles GET /api/health
type HealthHandler struct {
	remote ConnectionValidator
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(remote ConnectionValidator) *HealthHandler {
	return &HealthHandler{remote: remote}
}

// Health reports service liveness plus photo server reachability.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	reachable, message := h.remote.ValidateConnection(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"immich": map[string]interface{}{
			"reachable": reachable,
			"message":   message,
		},
	})
}
