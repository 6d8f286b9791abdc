package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aristath/screener/internal/events"
	"github.com/aristath/screener/internal/modules/screening"
)

// heartbeatInterval is how often the stream emits a comment line when no
// events arrive.
const heartbeatInterval = 15 * time.Second

// streamBuffer bounds the per-connection event queue; a slow consumer drops
// events rather than blocking the bus.
const streamBuffer = 100

// HandleStream handles GET /jobs/screening/stream/{job_id} as an SSE stream.
// Events: progress, complete, error. Unknown jobs get an immediate error
// event; each event is flushed individually so proxies cannot coalesce them.
func (h *JobHandlers) HandleStream(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if err := screening.ValidateJobID(jobID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid job id", err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported", "")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	job, err := h.repo.Get(jobID)
	if err != nil {
		if errors.Is(err, screening.ErrJobNotFound) {
			h.sendEvent(w, flusher, "error", map[string]string{"error": "job not found", "job_id": jobID})
			return
		}
		h.sendEvent(w, flusher, "error", map[string]string{"error": "failed to load job", "job_id": jobID})
		return
	}

	// Subscribe before the terminal check so no event is lost in between.
	// The bus has no unsubscribe; a closed flag turns the handler inert.
	eventChan := make(chan *events.Event, streamBuffer)
	var closed atomic.Bool
	handler := func(event *events.Event) {
		if closed.Load() || !eventMatchesJob(event, jobID) {
			return
		}
		select {
		case eventChan <- event:
		default:
			h.log.Warn().Str("job_id", jobID).Msg("Stream buffer full, dropping event")
		}
	}
	h.bus.Subscribe(events.JobProgress, handler)
	h.bus.Subscribe(events.JobCompleted, handler)
	h.bus.Subscribe(events.JobFailed, handler)
	defer closed.Store(true)

	// Re-read after subscribing: a job finishing between the first read and
	// the subscription would otherwise never produce a terminal event.
	if job, err = h.repo.Get(jobID); err == nil && h.sendTerminal(w, flusher, job) {
		return
	}

	h.log.Info().Str("job_id", jobID).Msg("Client subscribed to job stream")

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()
	done := r.Context().Done()

	for {
		select {
		case <-done:
			h.log.Info().Str("job_id", jobID).Msg("Client disconnected from job stream")
			return

		case event := <-eventChan:
			switch event.Type {
			case events.JobProgress:
				h.sendEvent(w, flusher, "progress", event.GetTypedData())
			case events.JobCompleted:
				h.sendEvent(w, flusher, "complete", event.GetTypedData())
				return
			case events.JobFailed:
				h.sendEvent(w, flusher, "error", event.GetTypedData())
				return
			}

		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

// sendTerminal emits the terminal event for an already-finished job.
// Returns true when the stream is done.
func (h *JobHandlers) sendTerminal(w http.ResponseWriter, flusher http.Flusher, job *screening.Job) bool {
	switch job.Status {
	case screening.StatusSuccess:
		data := &events.JobCompletedData{}
		if job.ProgressSnapshot != nil {
			data.Snapshot = *job.ProgressSnapshot
		}
		h.sendEvent(w, flusher, "complete", data)
		return true
	case screening.StatusFailed:
		data := &events.JobFailedData{ErrorStep: job.ErrorStep, Error: job.ErrorMessage}
		if job.ProgressSnapshot != nil {
			data.Snapshot = *job.ProgressSnapshot
		}
		h.sendEvent(w, flusher, "error", data)
		return true
	}
	return false
}

// sendEvent writes one SSE event and flushes it. Distinct events are never
// coalesced into a single write boundary.
func (h *JobHandlers) sendEvent(w http.ResponseWriter, flusher http.Flusher, name string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.log.Error().Err(err).Str("event", name).Msg("Failed to encode stream event")
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	flusher.Flush()
}

// eventMatchesJob filters bus events down to one job's stream.
func eventMatchesJob(event *events.Event, jobID string) bool {
	switch data := event.GetTypedData().(type) {
	case *events.JobProgressData:
		return data.JobID == jobID
	case *events.JobCompletedData:
		return data.Snapshot.JobID == jobID
	case *events.JobFailedData:
		return data.Snapshot.JobID == jobID
	}
	return false
}
