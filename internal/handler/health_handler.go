package handler

import (
	"net/http"

	"github.com/Mats6102hamberg/ebrevsmotor/internal/service"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	healthService *service.HealthChecker
}

// NewHealthHandler creates a new HealthHandler instance
func NewHealthHandler(healthService *service.HealthChecker) *HealthHandler {
	return &HealthHandler{
		healthService: healthService,
	}
}

// HandleHealth handles GET /health. Degraded still answers 200 since
// campaigns can be sent synchronously without the queue.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	// Check health of all services
	healthStatus := h.healthService.CheckHealth(r.Context())

	// Only a dead database makes the service unavailable
	status := http.StatusOK
	if healthStatus.Status == service.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}

	WriteJSON(w, r, status, healthStatus)
}
