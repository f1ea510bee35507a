package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/igzam/itemgest/internal/catalog"
	"github.com/igzam/itemgest/internal/config"
	"github.com/igzam/itemgest/internal/pipeline"
	"github.com/igzam/itemgest/internal/store"
	"github.com/igzam/itemgest/internal/subjects"
	"github.com/igzam/itemgest/internal/workspace"
)

// Previewer renders a PDF preview of an uploaded document.
type Previewer interface {
	ToPDF(ctx context.Context, path, dest string) (int, error)
}

// Deps are the collaborators the HTTP surface drives. Catalog and
// Previewer may be nil.
type Deps struct {
	Orchestrator *pipeline.Orchestrator
	Workspace    *workspace.Workspace
	Subjects     *subjects.Registry
	Store        *store.Store
	Catalog      *catalog.Client
	Previewer    Previewer
}

// Server is the HTTP API server for itemgest.
type Server struct {
	router chi.Router
	deps   Deps
	log    *slog.Logger
	cfg    config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(deps Deps, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		deps: deps,
		log:  log,
		cfg:  cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/process-text", s.handleProcessText)
		r.Post("/upload", s.handleUpload)
		r.Get("/uploaded-files/{filename}", s.handleUploadedFile)
		r.Post("/convert", s.handleConvert)
		r.Get("/api/jobs/{jobID}", s.handleJobStatus)

		r.Get("/get-all-subjects", s.handleRefreshSubjects)
		r.Post("/create-item", s.handleCreateItem)
		r.Get("/api/stats/catalog", s.handleCatalogStats)

		r.Get("/get-all-questions/{subject}", s.handleSubjectQuestions)
		r.Get("/dashboard", s.handleDashboard)
		r.Get("/subject-details/{subject}", s.handleSubjectDetails)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	depth := 0
	if s.deps.Orchestrator != nil {
		depth = s.deps.Orchestrator.QueueDepth()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"queue_depth": depth,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]any{"success": false, "error": msg})
}
