package api

import (
	"net/http"
)

func (s *Server) handleCatalogStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.Catalog == nil || s.deps.Catalog.Stats() == nil {
		jsonError(w, "catalog stats unavailable", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"queue_depth": s.deps.Orchestrator.QueueDepth(),
		"stats":       s.deps.Catalog.Stats().Snapshot(),
	})
}
