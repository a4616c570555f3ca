package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/directory-submitter/constants"
)

// SubmissionResult is the per-directory outcome row of a job.
type SubmissionResult struct {
	ID            uuid.UUID              `json:"id"`
	JobID         uuid.UUID              `json:"job_id"`
	DirectoryName string                 `json:"directory_name"`
	DirectoryURL  string                 `json:"directory_url"`
	Status        constants.ResultStatus `json:"status"`
	ErrorMessage  *string                `json:"error_message,omitempty"`
	SubmissionURL *string                `json:"submission_url,omitempty"`
	EvidenceRef   *string                `json:"evidence_ref,omitempty"`
	Notes         *string                `json:"notes,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

// AttemptResult is what the pipeline reports for one directory.
// Transient marks failures worth retrying (navigation, timeouts).
type AttemptResult struct {
	Outcome       constants.ResultStatus
	Error         *string
	SubmissionURL *string
	EvidenceRef   *string
	Notes         string
	Transient     bool
}

// FailedAttempt builds a failed result carrying msg.
func FailedAttempt(msg string) AttemptResult {
	return AttemptResult{Outcome: constants.ResultStatusFailed, Error: &msg}
}
