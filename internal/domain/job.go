package domain

import "time"

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusDone       JobStatus = "done"
	JobStatusFailed     JobStatus = "failed"
)

// InputKeyPending marks a job whose input bytes have not been persisted yet.
const InputKeyPending = "pending"

// MaxErrorLength caps the failure message stored on a job.
const MaxErrorLength = 500

// ParseJobStatus returns the status named by s, or false when s is not one of
// the four lifecycle states.
func ParseJobStatus(s string) (JobStatus, bool) {
	switch JobStatus(s) {
	case JobStatusQueued, JobStatusProcessing, JobStatusDone, JobStatusFailed:
		return JobStatus(s), true
	}
	return "", false
}

// Terminal reports whether no callback may change the job anymore.
func (s JobStatus) Terminal() bool {
	return s == JobStatusDone || s == JobStatusFailed
}

// CanTransition encodes queued -> processing -> done|failed plus the retry
// edge failed -> processing. Done never moves again.
func CanTransition(from, to JobStatus) bool {
	switch from {
	case JobStatusQueued:
		return to == JobStatusProcessing || to == JobStatusDone || to == JobStatusFailed
	case JobStatusProcessing:
		return to == JobStatusDone || to == JobStatusFailed
	case JobStatusFailed:
		return to == JobStatusProcessing
	}
	return false
}

// Job is one background-removal request. Empty strings and zero sizes stand
// for columns that are NULL in storage.
type Job struct {
	ID                string
	UserID            string
	Status            JobStatus
	CreditsCost       int
	Error             string
	InputKey          string
	InputMime         string
	InputSize         int64
	InputOriginalName string
	OutputKey         string
	OutputMime        string
	OutputSize        int64
	OutputFormat      OutputFormat
	Quality           int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// HasInput reports whether the input bytes were persisted.
func (j *Job) HasInput() bool {
	return j.InputKey != "" && j.InputKey != InputKeyPending
}

// ClearOutput drops the result of a previous attempt.
func (j *Job) ClearOutput() {
	j.Error = ""
	j.OutputKey = ""
	j.OutputMime = ""
	j.OutputSize = 0
}

// JobFilter narrows job listings for a single owner.
type JobFilter struct {
	UserID string
	// Query matches a substring of the id, error or status.
	Query  string
	Status JobStatus
	Limit  int
}
