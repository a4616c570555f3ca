package async

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrClosed = errors.New("queue is shutting down")

// Job asks a worker to start or resume one submission job.
type Job struct {
	JobID       uuid.UUID
	Reason      string // "created", "paid", "api", "cli"
	SubmittedAt time.Time
	TraceID     string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// JobProcessor runs one job to a terminal state.
type JobProcessor interface {
	ProcessJob(ctx context.Context, jobID uuid.UUID) error
}
