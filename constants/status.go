package constants

// JobStatus is the canonical status for rows in submission_jobs.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusPending    JobStatus = "pending"     // created, not yet paid
	JobStatusPaid       JobStatus = "paid"        // eligible for processing
	JobStatusInProgress JobStatus = "in_progress" // claimed by a processor
	JobStatusCompleted  JobStatus = "completed"   // terminal
	JobStatusFailed     JobStatus = "failed"      // terminal
)

// ResultStatus is the per-directory outcome stored in submission_results.
type ResultStatus string

const (
	ResultStatusPending       ResultStatus = "pending"
	ResultStatusSuccess       ResultStatus = "success"
	ResultStatusFailed        ResultStatus = "failed"
	ResultStatusPendingReview ResultStatus = "pending_review" // ambiguous page, only when enabled
)

// IsFinal reports whether a result row has left the pending state.
func (s ResultStatus) IsFinal() bool {
	return s == ResultStatusSuccess || s == ResultStatusFailed || s == ResultStatusPendingReview
}
