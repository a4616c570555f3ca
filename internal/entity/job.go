package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/directory-submitter/constants"
)

// Job is one purchased submission run for a business profile.
type Job struct {
	ID                    uuid.UUID             `json:"id"`
	UserID                string                `json:"user_id"`
	ProfileID             uuid.UUID             `json:"profile_id"`
	Package               constants.PackageTier `json:"package"`
	Status                constants.JobStatus   `json:"status"`
	TotalDirectories      int                   `json:"total_directories"`
	CompletedDirectories  int                   `json:"completed_directories"`
	SuccessfulSubmissions int                   `json:"successful_submissions"`
	FailedSubmissions     int                   `json:"failed_submissions"`
	ReviewSubmissions     int                   `json:"review_submissions"`
	PaymentRef            *string               `json:"payment_ref,omitempty"`
	CreatedAt             time.Time             `json:"created_at"`
	UpdatedAt             time.Time             `json:"updated_at"`
}

// Progress is the counter snapshot written after each directory attempt.
type Progress struct {
	Completed int
	Success   int
	Failed    int
	Review    int
}

// Progress returns the job's current counters.
func (j *Job) Progress() Progress {
	return Progress{
		Completed: j.CompletedDirectories,
		Success:   j.SuccessfulSubmissions,
		Failed:    j.FailedSubmissions,
		Review:    j.ReviewSubmissions,
	}
}

// Record adds one finished attempt to the counters.
func (p *Progress) Record(outcome constants.ResultStatus) {
	p.Completed++
	switch outcome {
	case constants.ResultStatusSuccess:
		p.Success++
	case constants.ResultStatusPendingReview:
		p.Review++
	default:
		p.Failed++
	}
}
