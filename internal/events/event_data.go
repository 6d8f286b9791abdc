package events

// EventData is the interface that all event data types must implement
// This allows for type-safe event data while maintaining flexibility
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// JobProgressData is the wire-format progress snapshot of a job. Field names
// are the canonical snake_case contract consumed by stream subscribers.
type JobProgressData struct {
	JobID       string `json:"job_id"`
	JobType     string `json:"job_type"`
	Status      string `json:"status"`
	StepCurrent int    `json:"step_current"`
	StepTotal   int    `json:"step_total"`
	StepName    string `json:"step_name"`
	Message     string `json:"message"`
	UpdatedAt   string `json:"updated_at"` // ISO-8601 UTC with trailing Z
}

// EventType returns the event type for JobProgressData
func (d *JobProgressData) EventType() EventType {
	return JobProgress
}

// JobCompletedData contains the final snapshot of a successful job.
type JobCompletedData struct {
	Snapshot JobProgressData `json:"snapshot"`
}

// EventType returns the event type for JobCompletedData
func (d *JobCompletedData) EventType() EventType {
	return JobCompleted
}

// JobFailedData contains the failure snapshot and the stage that failed.
type JobFailedData struct {
	Snapshot  JobProgressData `json:"snapshot"`
	ErrorStep string          `json:"error_step"`
	Error     string          `json:"error"`
}

// EventType returns the event type for JobFailedData
func (d *JobFailedData) EventType() EventType {
	return JobFailed
}

// WatchlistRefreshedData summarises a committed watchlist refresh cycle.
type WatchlistRefreshedData struct {
	UpdatedItems  int `json:"updated_items"`
	ArchivedItems int `json:"archived_items"`
	FailedItems   int `json:"failed_items"`
}

// EventType returns the event type for WatchlistRefreshedData
func (d *WatchlistRefreshedData) EventType() EventType {
	return WatchlistRefreshed
}
