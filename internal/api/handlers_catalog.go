package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/igzam/itemgest/internal/catalog"
)

// handleRefreshSubjects reloads the subject registry from the catalog and
// persists it to the subjects file.
func (s *Server) handleRefreshSubjects(w http.ResponseWriter, r *http.Request) {
	if s.deps.Catalog == nil {
		jsonError(w, "catalog not configured", http.StatusServiceUnavailable)
		return
	}
	loaded, rejected, err := s.deps.Subjects.Refresh(r.Context(), s.deps.Catalog)
	if err != nil {
		s.log.Error("subject refresh failed", "error", err)
		jsonError(w, err.Error(), http.StatusBadGateway)
		return
	}

	reasons := make([]string, 0, len(rejected))
	for _, e := range rejected {
		s.log.Warn("subject rejected", "error", e)
		reasons = append(reasons, e.Error())
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"message":  "done",
		"loaded":   loaded,
		"subjects": s.deps.Subjects.Codes(),
		"rejected": reasons,
	})
}

// handleCreateItem forwards one question body to the catalog unchanged.
func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	if s.deps.Catalog == nil {
		jsonError(w, "catalog not configured", http.StatusServiceUnavailable)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 8<<20))
	if err != nil || !json.Valid(body) {
		jsonError(w, "request body must be JSON", http.StatusBadRequest)
		return
	}

	key := r.Header.Get("Idempotency-Key")
	if key == "" {
		key = uuid.NewString()
	}
	data, err := s.deps.Catalog.CreateQuestion(r.Context(), key, json.RawMessage(body))
	if err != nil {
		code := http.StatusBadGateway
		var statusErr *catalog.StatusError
		if errors.As(err, &statusErr) {
			code = statusErr.StatusCode
		}
		s.log.Warn("create item failed", "error", err)
		jsonError(w, err.Error(), code)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": data})
}
