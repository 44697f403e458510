// Package api exposes the scrape job service over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/meliscout/meli-scraper/internal/analytics"
	"github.com/meliscout/meli-scraper/internal/jobs"
)

type Handlers struct {
	jobs   *jobs.Manager
	logger *slog.Logger
}

func NewHandlers(manager *jobs.Manager, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		jobs:   manager,
		logger: logger.With("component", "api"),
	}
}

// Routes mounts the handlers on a router.
func (h *Handlers) Routes(r chi.Router) {
	r.Post("/jobs", h.CreateJob)
	r.Get("/jobs", h.ListJobs)
	r.Get("/jobs/{jobID}", h.GetJob)
	r.Get("/jobs/{jobID}/report", h.GetJobReport)
}

// CreateJobResponse is returned once a job is accepted.
type CreateJobResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// CreateJob accepts a scrape request and queues it.
func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req jobs.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	job, err := h.jobs.Submit(req)
	if err != nil {
		if errors.Is(err, jobs.ErrQueueFull) || errors.Is(err, jobs.ErrQueueClosed) {
			h.respondError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.respondJSON(w, http.StatusAccepted, CreateJobResponse{
		JobID:  job.ID,
		Status: string(job.Status),
	})
}

// GetJob returns the full state of one job, items included once done.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job, ok := h.jobs.Get(jobID)
	if !ok {
		h.respondError(w, http.StatusNotFound, "job not found")
		return
	}
	h.respondJSON(w, http.StatusOK, job)
}

// ListJobs returns all jobs, newest first, without their item payloads.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	list := h.jobs.List()
	for _, job := range list {
		job.Items = nil
	}
	h.respondJSON(w, http.StatusOK, list)
}

// GetJobReport returns the aggregate analytics for a completed job.
func (h *Handlers) GetJobReport(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job, ok := h.jobs.Get(jobID)
	if !ok {
		h.respondError(w, http.StatusNotFound, "job not found")
		return
	}
	if job.Status != jobs.StatusCompleted {
		h.respondError(w, http.StatusConflict, "job not completed yet")
		return
	}
	h.respondJSON(w, http.StatusOK, analytics.Build(job.Items))
}

// Health reports process liveness and queue depth.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"pending": h.jobs.Pending(),
	})
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
