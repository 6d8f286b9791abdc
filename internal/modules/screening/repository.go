package screening

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/screener/internal/database"
	"github.com/aristath/screener/internal/events"
)

// ErrJobNotFound is returned for an unknown job id.
var ErrJobNotFound = errors.New("job not found")

// progressLogCap is the tail cap on the embedded progress log.
const progressLogCap = 100

// JobRepository persists job documents and the fan-out results.
type JobRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewJobRepository creates a repository over the jobs database.
func NewJobRepository(db *sql.DB, log zerolog.Logger) *JobRepository {
	return &JobRepository{
		db:  db,
		log: log.With().Str("repo", "screening_jobs").Logger(),
	}
}

// Init creates the jobs and results tables with their indexes.
func (r *JobRepository) Init() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS screening_jobs (
			job_id            TEXT PRIMARY KEY,
			job_type          TEXT NOT NULL,
			status            TEXT NOT NULL,
			created_at        TEXT NOT NULL,
			started_at        TEXT,
			completed_at      TEXT,
			options           TEXT NOT NULL DEFAULT '{}',
			progress_log      TEXT NOT NULL DEFAULT '[]',
			progress_snapshot TEXT,
			results           TEXT NOT NULL DEFAULT '{}',
			result_summary    TEXT NOT NULL DEFAULT '{}',
			error_message     TEXT NOT NULL DEFAULT '',
			error_step        TEXT NOT NULL DEFAULT '',
			trigger_source    TEXT NOT NULL DEFAULT '',
			parent_job_id     TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_created ON screening_jobs(created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS screening_results (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			job_id       TEXT NOT NULL,
			ticker       TEXT NOT NULL,
			processed_at TEXT NOT NULL,
			payload      TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_results_ticker ON screening_results(ticker)`,
		`CREATE INDEX IF NOT EXISTS idx_results_processed ON screening_results(processed_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_results_job ON screening_results(job_id)`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize screening schema: %w", err)
		}
	}
	return nil
}

// Create inserts a pending job document.
func (r *JobRepository) Create(job *Job) error {
	options, err := json.Marshal(job.Options)
	if err != nil {
		return fmt.Errorf("failed to encode job options: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO screening_jobs
			(job_id, job_type, status, created_at, options, trigger_source, parent_job_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Type, string(job.Status),
		job.CreatedAt.Format(time.RFC3339Nano),
		string(options), job.TriggerSource, job.ParentJobID)
	if err != nil {
		return fmt.Errorf("failed to insert job %s: %w", job.ID, err)
	}
	return nil
}

// MarkRunning transitions a job to RUNNING and records started_at.
func (r *JobRepository) MarkRunning(jobID string, startedAt time.Time) error {
	res, err := r.db.Exec(`
		UPDATE screening_jobs SET status = ?, started_at = ?
		WHERE job_id = ? AND status = ?`,
		string(StatusRunning), startedAt.Format(time.RFC3339Nano),
		jobID, string(StatusPending))
	if err != nil {
		return fmt.Errorf("failed to mark job %s running: %w", jobID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("job %s is not pending", jobID)
	}
	return nil
}

// AppendProgress writes the snapshot and appends one log entry, capped at
// the last progressLogCap entries, in a single transaction.
func (r *JobRepository) AppendProgress(jobID string, snap events.JobProgressData) error {
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		var rawLog string
		err := tx.QueryRow(
			`SELECT progress_log FROM screening_jobs WHERE job_id = ?`, jobID,
		).Scan(&rawLog)
		if err == sql.ErrNoRows {
			return ErrJobNotFound
		}
		if err != nil {
			return err
		}

		var log []events.JobProgressData
		if err := json.Unmarshal([]byte(rawLog), &log); err != nil {
			log = nil
		}
		log = append(log, snap)
		if len(log) > progressLogCap {
			log = log[len(log)-progressLogCap:]
		}

		newLog, err := json.Marshal(log)
		if err != nil {
			return err
		}
		newSnap, err := json.Marshal(snap)
		if err != nil {
			return err
		}

		_, err = tx.Exec(`
			UPDATE screening_jobs
			SET status = ?, progress_log = ?, progress_snapshot = ?
			WHERE job_id = ?`,
			snap.Status, string(newLog), string(newSnap), jobID)
		return err
	})
}

// Complete marks a job SUCCESS with its result lists and summary.
func (r *JobRepository) Complete(jobID string, results ResultLists, summary Summary, completedAt time.Time) error {
	rawResults, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("failed to encode job results: %w", err)
	}
	rawSummary, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to encode job summary: %w", err)
	}

	_, err = r.db.Exec(`
		UPDATE screening_jobs
		SET status = ?, completed_at = ?, results = ?, result_summary = ?
		WHERE job_id = ?`,
		string(StatusSuccess), completedAt.Format(time.RFC3339Nano),
		string(rawResults), string(rawSummary), jobID)
	if err != nil {
		return fmt.Errorf("failed to complete job %s: %w", jobID, err)
	}
	return nil
}

// Fail marks a job FAILED with the error and the stage that failed.
func (r *JobRepository) Fail(jobID, errMessage, errStep string, completedAt time.Time) error {
	_, err := r.db.Exec(`
		UPDATE screening_jobs
		SET status = ?, completed_at = ?, error_message = ?, error_step = ?
		WHERE job_id = ?`,
		string(StatusFailed), completedAt.Format(time.RFC3339Nano),
		errMessage, errStep, jobID)
	if err != nil {
		return fmt.Errorf("failed to fail job %s: %w", jobID, err)
	}
	return nil
}

// Get loads one job document by id.
func (r *JobRepository) Get(jobID string) (*Job, error) {
	row := r.db.QueryRow(`
		SELECT job_id, job_type, status, created_at, started_at, completed_at,
		       options, progress_log, progress_snapshot, results,
		       result_summary, error_message, error_step, trigger_source,
		       parent_job_id
		FROM screening_jobs WHERE job_id = ?`, jobID)

	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load job %s: %w", jobID, err)
	}
	return job, nil
}

// History returns jobs newest-first with limit/skip pagination.
func (r *JobRepository) History(limit, skip int) ([]*Job, error) {
	if limit <= 0 {
		limit = 20
	}
	if skip < 0 {
		skip = 0
	}

	rows, err := r.db.Query(`
		SELECT job_id, job_type, status, created_at, started_at, completed_at,
		       options, progress_log, progress_snapshot, results,
		       result_summary, error_message, error_step, trigger_source,
		       parent_job_id
		FROM screening_jobs
		ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, skip)
	if err != nil {
		return nil, fmt.Errorf("failed to query job history: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		job                           Job
		status                        string
		createdAt                     string
		startedAt, completedAt        sql.NullString
		options, progressLog, results string
		snapshot                      sql.NullString
		summary                       string
	)

	err := row.Scan(&job.ID, &job.Type, &status, &createdAt, &startedAt,
		&completedAt, &options, &progressLog, &snapshot, &results,
		&summary, &job.ErrorMessage, &job.ErrorStep, &job.TriggerSource,
		&job.ParentJobID)
	if err != nil {
		return nil, err
	}

	job.Status = Status(status)
	job.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	if startedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, startedAt.String)
		if err == nil {
			job.StartedAt = &t
		}
	}
	if completedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, completedAt.String)
		if err == nil {
			job.CompletedAt = &t
		}
	}

	_ = json.Unmarshal([]byte(options), &job.Options)
	_ = json.Unmarshal([]byte(progressLog), &job.ProgressLog)
	_ = json.Unmarshal([]byte(results), &job.Results)
	_ = json.Unmarshal([]byte(summary), &job.ResultSummary)
	if snapshot.Valid {
		var snap events.JobProgressData
		if json.Unmarshal([]byte(snapshot.String), &snap) == nil {
			job.ProgressSnapshot = &snap
		}
	}
	return &job, nil
}

// CandidateRecord is one detailed fan-out row for a final candidate.
type CandidateRecord struct {
	Ticker  string          `json:"ticker"`
	Payload json.RawMessage `json:"payload"`
}

// InsertResults bulk-inserts the detailed candidate records. All rows of a
// job share one processed_at timestamp.
func (r *JobRepository) InsertResults(jobID string, processedAt time.Time, records []CandidateRecord) error {
	if len(records) == 0 {
		return nil
	}

	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO screening_results (job_id, ticker, processed_at, payload)
			VALUES (?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		ts := processedAt.Format(time.RFC3339Nano)
		for _, rec := range records {
			if _, err := stmt.Exec(jobID, rec.Ticker, ts, string(rec.Payload)); err != nil {
				return err
			}
		}
		return nil
	})
}

// ResultsForJob loads the fan-out records of one job.
func (r *JobRepository) ResultsForJob(jobID string) ([]CandidateRecord, error) {
	rows, err := r.db.Query(`
		SELECT ticker, payload FROM screening_results
		WHERE job_id = ? ORDER BY ticker`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query results for job %s: %w", jobID, err)
	}
	defer rows.Close()

	var records []CandidateRecord
	for rows.Next() {
		var rec CandidateRecord
		var payload string
		if err := rows.Scan(&rec.Ticker, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}
		rec.Payload = json.RawMessage(payload)
		records = append(records, rec)
	}
	return records, rows.Err()
}
