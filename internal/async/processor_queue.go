package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/directory-submitter/internal/common"
)

type ProcessorQueue struct {
	proc    JobProcessor
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch     chan Job
	wg     sync.WaitGroup
	once   sync.Once
	base   context.Context
	cancel context.CancelFunc

	// senders hold mu for reading; Shutdown takes it for writing to close ch
	mu       sync.RWMutex
	closed   bool
	stop     chan struct{}
	stopOnce sync.Once
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}
func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

// NewProcessorQueue starts the workers. One worker keeps jobs strictly one at a
// time; more workers run distinct jobs side by side.
func NewProcessorQueue(proc JobProcessor, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		proc:    proc,
		logger:  logger,
		workers: 1,
		timeout: 12 * time.Hour,
		ch:      make(chan Job, 256),
		stop:    make(chan struct{}),
	}
	for _, o := range opts {
		o(q)
	}
	q.base, q.cancel = context.WithCancel(context.Background())
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("queue.worker.started", "worker_id", workerID)

				for job := range q.ch {
					q.run(workerID, job)
				}

				q.logger.Info("queue.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ProcessorQueue) run(workerID int, job Job) {
	ctx, cancel := context.WithTimeout(q.base, q.timeout)
	defer cancel()
	if job.TraceID != "" {
		ctx = common.WithRequestID(ctx, job.TraceID)
	}
	start := time.Now()
	if err := q.proc.ProcessJob(ctx, job.JobID); err != nil {
		q.logger.Error("queue.job.failed", "worker_id", workerID, "job_id", job.JobID, "reason", job.Reason, "err", err)
		return
	}
	q.logger.Info("queue.job.done", "worker_id", workerID, "job_id", job.JobID,
		"wait_ms", start.Sub(job.SubmittedAt).Milliseconds(),
		"elapsed_ms", time.Since(start).Milliseconds())
}

// Enqueue blocks while the buffer is full, until ctx is done or the queue
// starts shutting down.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.logger.Warn("queue.enqueue.closed", "job_id", job.JobID)
		return ErrClosed
	}
	select {
	case q.ch <- job:
		q.logger.Info("queue.enqueue.ok", "job_id", job.JobID, "reason", job.Reason)
		return nil
	default:
	}
	q.logger.Warn("queue.enqueue.backpressure", "job_id", job.JobID)
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.stop:
		q.logger.Warn("queue.enqueue.closed", "job_id", job.JobID)
		return ErrClosed
	}
}

// Shutdown stops intake and waits for queued jobs to drain. When ctx expires
// first, in-flight jobs are cancelled.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	// wakes senders blocked on a full buffer so the write lock is never held up
	q.stopOnce.Do(func() { close(q.stop) })

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("queue.shutdown.interrupted")
		q.cancel()
		<-done
	case <-done:
		q.logger.Info("queue.shutdown.drained")
	}
	q.cancel()
}
