package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/screener/internal/events"
	"github.com/aristath/screener/internal/modules/screening"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

// JobHandlers serves the screening-job endpoints: start, history and the
// progress stream.
type JobHandlers struct {
	repo         *screening.JobRepository
	orchestrator *screening.Orchestrator
	bus          *events.Bus
	log          zerolog.Logger
}

// NewJobHandlers creates the job handler set.
func NewJobHandlers(repo *screening.JobRepository, orchestrator *screening.Orchestrator, bus *events.Bus, log zerolog.Logger) *JobHandlers {
	return &JobHandlers{
		repo:         repo,
		orchestrator: orchestrator,
		bus:          bus,
		log:          log.With().Str("component", "job_handlers").Logger(),
	}
}

// RegisterRoutes mounts the job routes.
func (h *JobHandlers) RegisterRoutes(r chi.Router) {
	r.Post("/jobs/screening/start", h.HandleStart)
	r.Get("/jobs/screening/stream/{job_id}", h.HandleStream)
	r.Get("/jobs/screening/history", h.HandleHistory)
	r.Get("/jobs/screening/history/{job_id}", h.HandleHistoryDetail)
}

// HandleStart handles POST /jobs/screening/start. The body optionally
// carries run options; an empty body starts a default run.
func (h *JobHandlers) HandleStart(w http.ResponseWriter, r *http.Request) {
	var opts screening.Options
	if err := json.NewDecoder(r.Body).Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	job, err := h.orchestrator.Start(opts, "api")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to start screening job", err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": job.ID})
}

// HandleHistory handles GET /jobs/screening/history?limit&skip.
func (h *JobHandlers) HandleHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultHistoryLimit)
	if err != nil || limit < 1 || limit > maxHistoryLimit {
		writeError(w, http.StatusBadRequest, "invalid limit parameter", "")
		return
	}
	skip, err := queryInt(r, "skip", 0)
	if err != nil || skip < 0 {
		writeError(w, http.StatusBadRequest, "invalid skip parameter", "")
		return
	}

	jobs, err := h.repo.History(limit, skip)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load job history", err.Error())
		return
	}
	if jobs == nil {
		jobs = []*screening.Job{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// HandleHistoryDetail handles GET /jobs/screening/history/{job_id}.
func (h *JobHandlers) HandleHistoryDetail(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if err := screening.ValidateJobID(jobID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid job id", err.Error())
		return
	}

	job, err := h.repo.Get(jobID)
	if err != nil {
		if errors.Is(err, screening.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", "")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load job", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
