package api

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/docuwrite/internal/annotate"
	"github.com/dgallion1/docuwrite/internal/pipeline"
	"github.com/dgallion1/docuwrite/internal/source"
)

// handleBuild accepts a multipart form with one or more "files", an
// optional "order" (file names separated by newlines or commas; upload order
// otherwise) and an optional "title", and queues a build.
func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		jsonError(w, "at least one file is required", http.StatusBadRequest)
		return
	}

	jobID := pipeline.NewJobID()
	job := pipeline.NewJob(jobID, r.FormValue("title"), filepath.Join(s.orchestrator.WorkDir(), jobID), nil)
	if err := os.MkdirAll(job.SourceDir(), 0o755); err != nil {
		jsonError(w, "failed to create workspace", http.StatusInternalServerError)
		return
	}
	cleanup := func() { os.RemoveAll(job.Dir()) }

	hash := sha256.New()
	var names []string
	for _, fh := range files {
		filename := sanitizeFilename(fh.Filename)
		if !source.IsSupported(filename) {
			cleanup()
			jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
			return
		}
		if err := saveUpload(fh, filepath.Join(job.SourceDir(), filename), hash, s.cfg.MaxUploadBytes); err != nil {
			cleanup()
			status := http.StatusInternalServerError
			if errors.Is(err, errTooLarge) {
				status = http.StatusRequestEntityTooLarge
			}
			jsonError(w, fmt.Sprintf("%s: %s", filename, err), status)
			return
		}
		names = append(names, filename)
	}

	order := names
	if v := strings.TrimSpace(r.FormValue("order")); v != "" {
		order = splitOrder(v)
		for _, name := range order {
			if !contains(names, name) {
				cleanup()
				jsonError(w, fmt.Sprintf("order lists %q, which was not uploaded", name), http.StatusBadRequest)
				return
			}
		}
	}
	orderData := strings.Join(order, "\n") + "\n"
	if err := os.WriteFile(filepath.Join(job.SourceDir(), source.DefaultOrderFile), []byte(orderData), 0o644); err != nil {
		cleanup()
		jsonError(w, "failed to write order", http.StatusInternalServerError)
		return
	}

	job.Files = names
	job.ContentHash = hex.EncodeToString(hash.Sum(nil))

	if err := s.orchestrator.Submit(job); err != nil {
		cleanup()
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	s.log.Info("build queued", "job_id", job.ID, "files", len(names), "content_hash", job.ContentHash)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"job_id":   job.ID,
		"status":   pipeline.StatusQueued,
		"poll_url": fmt.Sprintf("/api/build/%s/status", job.ID),
	})
}

func (s *Server) handleBuildStatus(w http.ResponseWriter, r *http.Request) {
	job := s.jobFromRequest(w, r)
	if job == nil {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(job.Snapshot())
}

// handleListBuilds lists the jobs still held by the service, oldest first.
func (s *Server) handleListBuilds(w http.ResponseWriter, r *http.Request) {
	jobs := s.orchestrator.Jobs()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"builds": jobs,
		"count":  len(jobs),
	})
}

// handleDocument serves the annotated Markdown.
func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	m := s.finishedManifest(w, r)
	if m == nil {
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	http.ServeFile(w, r, m.Document)
}

func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	m := s.finishedManifest(w, r)
	if m == nil {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(m)
}

// handleOutput serves the rendered document as an attachment.
func (s *Server) handleOutput(w http.ResponseWriter, r *http.Request) {
	m := s.finishedManifest(w, r)
	if m == nil {
		return
	}
	if m.Output == "" {
		jsonError(w, "build produced no output", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(m.Output)))
	http.ServeFile(w, r, m.Output)
}

func (s *Server) jobFromRequest(w http.ResponseWriter, r *http.Request) *pipeline.Job {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
	}
	return job
}

// finishedManifest returns the manifest of a job that is done, writing an
// error response otherwise.
func (s *Server) finishedManifest(w http.ResponseWriter, r *http.Request) *annotate.Manifest {
	job := s.jobFromRequest(w, r)
	if job == nil {
		return nil
	}
	snap := job.Snapshot()
	switch snap.Status {
	case pipeline.StatusCompleted, pipeline.StatusPartial, pipeline.StatusFailed:
	default:
		jsonError(w, fmt.Sprintf("job is %s", snap.Status), http.StatusConflict)
		return nil
	}
	m := job.Manifest()
	if m == nil {
		jsonError(w, "job has no document", http.StatusNotFound)
		return nil
	}
	return m
}

var errTooLarge = errors.New("file exceeds max size")

// saveUpload copies an uploaded file to dest, feeding hash along the way.
func saveUpload(fh *multipart.FileHeader, dest string, hash io.Writer, limit int64) error {
	src, err := fh.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	n, err := io.Copy(io.MultiWriter(out, hash), io.LimitReader(src, limit+1))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("save upload: %w", err)
	}
	if n > limit {
		return fmt.Errorf("%w (%d bytes)", errTooLarge, limit)
	}
	return nil
}

func splitOrder(v string) []string {
	var out []string
	for _, f := range strings.FieldsFunc(v, func(r rune) bool { return r == '\n' || r == ',' || r == '\r' }) {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, sanitizeFilename(f))
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	// Remove any path separators that might have survived.
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		return "unnamed"
	}
	if strings.HasPrefix(name, ".") {
		name = "unnamed" + name
	}
	return name
}
