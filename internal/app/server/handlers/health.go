package handlers

import (
	"net/http"
	"taskpulse/internal/core/contracts"
)

type HealthHandler struct {
	registry contracts.Registry
}

func NewHealthHandler(registry contracts.Registry) *HealthHandler {
	return &HealthHandler{registry: registry}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HealthHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{
		"connections": h.registry.Len(),
		"pending":     h.registry.PendingLen(),
	})
}
