// Package screening runs the staged screening job: universe fetch, trend
// template, fast VCP, then enrichment and fan-out persistence, with progress
// streamed to subscribers.
package screening

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/aristath/screener/internal/events"
)

// Status is the lifecycle state of a job. Transitions are monotone:
// PENDING → RUNNING → {SUCCESS, FAILED}.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusRunning Status = "RUNNING"
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

// CanTransitionTo reports whether a forward transition is legal.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusRunning || next == StatusFailed
	case StatusRunning:
		return next == StatusSuccess || next == StatusFailed
	default:
		return false
	}
}

// JobTypeScreening is the only job type this orchestrator runs.
const JobTypeScreening = "SCREENING"

// legacyJobID matches the YYYYMMDD-HHMMSS-shortid format older jobs carry.
var legacyJobID = regexp.MustCompile(`^\d{8}-\d{6}-[A-Za-z0-9]{4,12}$`)

// NewJobID mints the id for a new job. Always UUIDv4; the legacy format is
// accepted on read only.
func NewJobID() string {
	return uuid.NewString()
}

// ValidateJobID accepts both job-id formats.
func ValidateJobID(id string) error {
	if _, err := uuid.Parse(id); err == nil {
		return nil
	}
	if legacyJobID.MatchString(id) {
		return nil
	}
	return fmt.Errorf("invalid job id %q", id)
}

// Options are the caller-supplied knobs for a screening run.
type Options struct {
	BatchSize  int    `json:"batch_size,omitempty"`
	MaxTickers int    `json:"max_tickers,omitempty"`
	Period     string `json:"period,omitempty"`
}

// ResultLists are the lightweight per-stage survivor lists stored on the job
// document itself; detailed candidate records fan out to the results table.
type ResultLists struct {
	TrendSurvivors []string `json:"trend_survivors"`
	VCPSurvivors   []string `json:"vcp_survivors"`
	Candidates     []string `json:"candidates"`
}

// Summary is the final roll-up of a run.
type Summary struct {
	Universe        int     `json:"universe"`
	TrendPassed     int     `json:"trend_passed"`
	VCPPassed       int     `json:"vcp_passed"`
	Candidates      int     `json:"candidates"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// Job is the persisted job record.
type Job struct {
	ID               string                  `json:"job_id"`
	Type             string                  `json:"job_type"`
	Status           Status                  `json:"status"`
	CreatedAt        time.Time               `json:"created_at"`
	StartedAt        *time.Time              `json:"started_at,omitempty"`
	CompletedAt      *time.Time              `json:"completed_at,omitempty"`
	Options          Options                 `json:"options"`
	ProgressLog      []events.JobProgressData `json:"progress_log"`
	ProgressSnapshot *events.JobProgressData  `json:"progress_snapshot,omitempty"`
	Results          ResultLists             `json:"results"`
	ResultSummary    Summary                 `json:"result_summary"`
	ErrorMessage     string                  `json:"error_message,omitempty"`
	ErrorStep        string                  `json:"error_step,omitempty"`
	TriggerSource    string                  `json:"trigger_source,omitempty"`
	ParentJobID      string                  `json:"parent_job_id,omitempty"`
}

// NewJob creates a pending job record.
func NewJob(opts Options, triggerSource string) *Job {
	return &Job{
		ID:            NewJobID(),
		Type:          JobTypeScreening,
		Status:        StatusPending,
		CreatedAt:     time.Now().UTC(),
		Options:       opts,
		TriggerSource: triggerSource,
	}
}
