package screening

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/screener/internal/events"
)

// Reporter emits progress for one job: every emission persists the snapshot
// and the capped log entry in one transaction, then fans out on the bus.
// Per-ticker updates are throttled; stage boundaries and terminal events
// bypass the throttle so subscribers never miss a transition.
//
// One Reporter is shared by all stage workers, so the mutex serializes the
// whole build/persist/publish sequence; emissions within a job stay in
// timestamp order.
type Reporter struct {
	repo        *JobRepository
	bus         *events.Bus
	jobID       string
	log         zerolog.Logger
	mu          sync.Mutex
	lastReport  time.Time
	minInterval time.Duration
}

// NewReporter creates a progress reporter for a job.
func NewReporter(repo *JobRepository, bus *events.Bus, jobID string, log zerolog.Logger) *Reporter {
	return &Reporter{
		repo:        repo,
		bus:         bus,
		jobID:       jobID,
		log:         log.With().Str("job_id", jobID).Logger(),
		minInterval: 100 * time.Millisecond,
	}
}

// snapshot builds the wire-format progress payload.
func (r *Reporter) snapshot(status Status, stepCurrent, stepTotal int, stepName, message string) events.JobProgressData {
	return events.JobProgressData{
		JobID:       r.jobID,
		JobType:     JobTypeScreening,
		Status:      string(status),
		StepCurrent: stepCurrent,
		StepTotal:   stepTotal,
		StepName:    stepName,
		Message:     message,
		UpdatedAt:   time.Now().UTC().Format(time.RFC3339),
	}
}

// Progress emits a throttled in-stage update.
func (r *Reporter) Progress(stepCurrent, stepTotal int, stepName, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if now.Sub(r.lastReport) < r.minInterval {
		return
	}
	r.lastReport = now
	r.emit(r.snapshot(StatusRunning, stepCurrent, stepTotal, stepName, message))
}

// Stage emits an unthrottled stage-boundary update.
func (r *Reporter) Stage(stepCurrent, stepTotal int, stepName, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastReport = time.Now()
	r.emit(r.snapshot(StatusRunning, stepCurrent, stepTotal, stepName, message))
}

// Complete emits the terminal SUCCESS snapshot.
func (r *Reporter) Complete(stepTotal int, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := r.snapshot(StatusSuccess, stepTotal, stepTotal, "done", message)
	r.persist(snap)
	r.bus.EmitTyped("screening", &events.JobCompletedData{Snapshot: snap})
}

// Fail emits the terminal FAILED snapshot with the failing stage.
func (r *Reporter) Fail(stepCurrent, stepTotal int, stepName, errMessage string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := r.snapshot(StatusFailed, stepCurrent, stepTotal, stepName, errMessage)
	r.persist(snap)
	r.bus.EmitTyped("screening", &events.JobFailedData{
		Snapshot:  snap,
		ErrorStep: stepName,
		Error:     errMessage,
	})
}

func (r *Reporter) emit(snap events.JobProgressData) {
	r.persist(snap)
	r.bus.EmitTyped("screening", &snap)
}

// persist writes the snapshot; emission failures never fail the job.
func (r *Reporter) persist(snap events.JobProgressData) {
	if err := r.repo.AppendProgress(r.jobID, snap); err != nil {
		r.log.Warn().Err(err).Msg("Failed to persist progress snapshot")
	}
}
