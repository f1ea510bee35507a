package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/igzam/itemgest/internal/model"
	"github.com/igzam/itemgest/internal/store"
)

// handleSubjectQuestions lists the accepted batches of a subject.
func (s *Server) handleSubjectQuestions(w http.ResponseWriter, r *http.Request) {
	recs, ok := s.subjectRecords(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Questions retrieved successfully",
		"data":    recs,
	})
}

// handleSubjectDetails is handleSubjectQuestions plus the item total.
func (s *Server) handleSubjectDetails(w http.ResponseWriter, r *http.Request) {
	recs, ok := s.subjectRecords(w, r)
	if !ok {
		return
	}
	total := 0
	for _, rec := range recs {
		total += model.TotalItems(rec.Groups)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":             true,
		"message":             "Questions retrieved successfully",
		"number_of_questions": total,
		"data":                recs,
	})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	sum, err := s.deps.Store.Dashboard(r.Context())
	if err != nil {
		s.log.Error("dashboard failed", "error", err)
		jsonError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Data retrieved successfully",
		"data":    sum,
	})
}

func (s *Server) subjectRecords(w http.ResponseWriter, r *http.Request) ([]store.Record, bool) {
	subject := strings.ToUpper(chi.URLParam(r, "subject"))
	recs, err := s.deps.Store.BySubject(r.Context(), subject)
	if err != nil {
		s.log.Error("list subject failed", "subject", subject, "error", err)
		jsonError(w, "Internal server error", http.StatusInternalServerError)
		return nil, false
	}
	if len(recs) == 0 {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"success": false,
			"message": "Questions not found",
		})
		return nil, false
	}
	return recs, true
}
