package api

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/igzam/itemgest/internal/answerkey"
	"github.com/igzam/itemgest/internal/convert"
	"github.com/igzam/itemgest/internal/pipeline"
	"github.com/igzam/itemgest/internal/workspace"
)

const invalidFormat = "Invalid file format. Uploaded to bin folder."

// handleProcessText stores one exam document and queues it.
func (s *Server) handleProcessText(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "No file uploaded.", http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !convert.IsSource(filename) {
		if _, err := s.deps.Workspace.Put(workspace.DirBin, filename, file); err != nil {
			s.log.Warn("bin write failed", "filename", filename, "error", err)
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": invalidFormat})
		return
	}

	if header.Size > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}
	path, err := s.deps.Workspace.Path(workspace.DirQuestions, filename)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Claim the path first: a queued or running job keeps its source.
	job := pipeline.NewJob(path, filename)
	if err := s.deps.Orchestrator.Reserve(job); err != nil {
		jsonError(w, err.Error(), http.StatusConflict)
		return
	}
	if _, err := s.deps.Workspace.Put(workspace.DirQuestions, filename, file); err != nil {
		s.deps.Orchestrator.Release(job)
		jsonError(w, "failed to store file: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if err := s.deps.Orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusAccepted, queuedResponse(job))
}

// handleUpload sorts uploaded files into the input tree: documents to
// questions, answer keys to answers, anything else to bin.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes*10+10*1024*1024)

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		jsonError(w, "No files uploaded.", http.StatusBadRequest)
		return
	}

	var results []map[string]any
	success := true
	for _, fh := range files {
		res := s.storeUpload(r, fh)
		if _, failed := res["error"]; failed {
			success = false
		}
		results = append(results, res)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": success,
		"message": "Files uploaded",
		"data":    baseURL(r) + "/uploaded-files/",
		"files":   results,
	})
}

func (s *Server) storeUpload(r *http.Request, fh *multipart.FileHeader) map[string]any {
	filename := sanitizeFilename(fh.Filename)
	res := map[string]any{"filename": filename}

	dir := workspace.DirBin
	switch {
	case convert.IsSource(filename):
		dir = workspace.DirQuestions
	case answerkey.IsKeyFile(filename):
		dir = workspace.DirAnswers
	}

	f, err := fh.Open()
	if err != nil {
		res["error"] = "failed to open file"
		return res
	}
	defer f.Close()

	if fh.Size > s.cfg.MaxUploadBytes {
		res["error"] = fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes)
		return res
	}
	if dir == workspace.DirQuestions {
		dst, err := s.deps.Workspace.Path(dir, filename)
		if err != nil {
			res["error"] = err.Error()
			return res
		}
		hold := pipeline.NewJob(dst, filename)
		if err := s.deps.Orchestrator.Reserve(hold); err != nil {
			res["error"] = err.Error()
			return res
		}
		defer s.deps.Orchestrator.Release(hold)
	}
	path, err := s.deps.Workspace.Put(dir, filename, f)
	if err != nil {
		res["error"] = err.Error()
		return res
	}
	res["stored"] = dir
	if dir == workspace.DirBin {
		res["error"] = invalidFormat
		return res
	}

	if dir == workspace.DirQuestions && s.cfg.PreviewPDF && s.deps.Previewer != nil {
		dest := s.deps.Workspace.PreviewPath(filename)
		pages, err := s.deps.Previewer.ToPDF(r.Context(), path, dest)
		if err != nil {
			s.log.Warn("preview failed", "filename", filename, "error", err)
		} else {
			res["preview"] = baseURL(r) + "/uploaded-files/" + filepath.Base(dest)
			res["pages"] = pages
		}
	}
	return res
}

// handleUploadedFile serves a generated PDF preview.
func (s *Server) handleUploadedFile(w http.ResponseWriter, r *http.Request) {
	filename := sanitizeFilename(chi.URLParam(r, "filename"))
	path := filepath.Join(s.deps.Workspace.Dir(workspace.DirPDFs), filename)

	f, err := os.Open(path)
	if err != nil {
		jsonError(w, "file not found", http.StatusNotFound)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil || info.IsDir() {
		jsonError(w, "file not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "inline; filename="+filename)
	http.ServeContent(w, r, filename, info.ModTime(), f)
}

// handleConvert queues every document waiting in the questions directory.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	paths, err := s.deps.Workspace.List(workspace.DirQuestions, convert.IsSource)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var jobs []map[string]any
	for _, p := range paths {
		job := pipeline.NewJob(p, filepath.Base(p))
		if err := s.deps.Orchestrator.Submit(job); err != nil {
			jobs = append(jobs, map[string]any{"filename": job.Filename, "error": err.Error()})
			continue
		}
		jobs = append(jobs, queuedResponse(job))
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"success": true,
		"message": fmt.Sprintf("%d documents queued", len(paths)),
		"jobs":    jobs,
	})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.deps.Orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

func queuedResponse(job *pipeline.Job) map[string]any {
	return map[string]any{
		"success":  true,
		"job_id":   job.ID,
		"filename": job.Filename,
		"status":   job.Snapshot().Status,
		"poll_url": fmt.Sprintf("/api/jobs/%s", job.ID),
	}
}

func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
