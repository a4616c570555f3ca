// Package engine runs submission jobs from claim to finish.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/directory-submitter/constants"
	"github.com/joseph-ayodele/directory-submitter/internal/catalog"
	"github.com/joseph-ayodele/directory-submitter/internal/common"
	"github.com/joseph-ayodele/directory-submitter/internal/entity"
	"github.com/joseph-ayodele/directory-submitter/internal/events"
	"github.com/joseph-ayodele/directory-submitter/internal/repository"
)

// Attempter submits a profile to one directory. It reports every failure in
// the result and never returns an error.
type Attempter interface {
	Attempt(ctx context.Context, dir entity.Directory, profile *entity.BusinessProfile) entity.AttemptResult
}

// Config holds the pacing and retry policy of the directory loop.
type Config struct {
	InterSubmissionDelay time.Duration
	MaxTransientRetries  int // 0 disables retries
	RetryBackoff         time.Duration
	AttemptTimeout       time.Duration // 0 means no per-attempt bound
}

type Engine struct {
	logger    *slog.Logger
	cfg       Config
	jobs      repository.JobRepository
	results   repository.ResultRepository
	profiles  repository.ProfileRepository
	catalog   catalog.Source
	attempter Attempter
	events    events.Publisher

	running sync.Map // job id -> struct{}
}

func New(
	logger *slog.Logger,
	cfg Config,
	jobs repository.JobRepository,
	results repository.ResultRepository,
	profiles repository.ProfileRepository,
	src catalog.Source,
	attempter Attempter,
	pub events.Publisher,
) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if pub == nil {
		pub = events.Noop{}
	}
	return &Engine{
		logger:    logger,
		cfg:       cfg,
		jobs:      jobs,
		results:   results,
		profiles:  profiles,
		catalog:   src,
		attempter: attempter,
		events:    pub,
	}
}

// CreateJobRequest is the payment-side trigger for a new job.
type CreateJobRequest struct {
	UserID       string
	ProfileID    uuid.UUID
	Package      constants.PackageTier
	PaymentRef   string
	AwaitPayment bool // create in pending; MarkPaid releases it
}

// CreateJob records a job sized by the package quota. A repeated payment
// reference returns the job already created for it.
func (e *Engine) CreateJob(ctx context.Context, req CreateJobRequest) (*entity.Job, error) {
	v := common.NewValidator().
		Field("user_id", req.UserID, common.Required).
		Field("package", string(req.Package), common.Required)
	if req.ProfileID == uuid.Nil {
		v.Field("profile_id", "", common.Required)
	}
	if err := v.Error(); err != nil {
		return nil, err
	}
	quota := req.Package.Quota()
	if quota == 0 {
		return nil, fmt.Errorf("package %q: %w", req.Package, common.ErrInvalidInput)
	}

	ref := strings.TrimSpace(req.PaymentRef)
	if ref != "" {
		if existing, err := e.jobs.GetByPaymentRef(ctx, ref); err == nil {
			e.logger.Info("engine.job.create.duplicate", "job_id", existing.ID, "payment_ref", ref)
			return existing, nil
		} else if !errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
	}
	if ok, err := e.profiles.Exists(ctx, req.ProfileID); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("profile %s: %w", req.ProfileID, common.ErrNotFound)
	}

	job := &entity.Job{
		UserID:           req.UserID,
		ProfileID:        req.ProfileID,
		Package:          req.Package,
		Status:           constants.JobStatusPaid,
		TotalDirectories: quota,
	}
	if req.AwaitPayment {
		job.Status = constants.JobStatusPending
	}
	if ref != "" {
		job.PaymentRef = &ref
	}
	created, err := e.jobs.Create(ctx, job)
	if err != nil && ref != "" {
		// lost a race on the unique payment reference
		if existing, gerr := e.jobs.GetByPaymentRef(ctx, ref); gerr == nil {
			return existing, nil
		}
	}
	return created, err
}

// MarkPaid releases a pending job for processing.
func (e *Engine) MarkPaid(ctx context.Context, jobID uuid.UUID) error {
	ok, err := e.jobs.SetStatus(ctx, jobID, constants.JobStatusPending, constants.JobStatusPaid)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("job %s is not awaiting payment: %w", jobID, common.ErrJobNotStartable)
	}
	e.logger.Info("engine.job.paid", "job_id", jobID)
	return nil
}

// ProcessJob starts a paid job and runs it to a terminal state. It is safe to
// call repeatedly or concurrently: anything other than a paid job, or a lost
// claim, is a no-op.
func (e *Engine) ProcessJob(ctx context.Context, jobID uuid.UUID) error {
	if _, busy := e.running.LoadOrStore(jobID, struct{}{}); busy {
		e.logger.Info("engine.job.skip", "job_id", jobID, "reason", "already running here")
		return nil
	}
	defer e.running.Delete(jobID)

	job, err := e.jobs.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if !constants.CanStart(job.Status) {
		e.logger.Info("engine.job.skip", "job_id", jobID, "status", job.Status)
		return nil
	}
	claimed, err := e.jobs.ClaimForProcessing(ctx, jobID)
	if err != nil {
		return err
	}
	if !claimed {
		e.logger.Info("engine.job.skip", "job_id", jobID, "reason", "claim lost")
		return nil
	}
	job.Status = constants.JobStatusInProgress

	log := e.logger.With("job_id", jobID)
	ctx = common.WithLogger(common.WithJobID(ctx, jobID.String()), log)
	start := time.Now()
	log.Info("engine.job.claimed", "package", job.Package, "total", job.TotalDirectories)
	e.publish(ctx, events.Event{Type: events.JobStarted, JobID: jobID.String(), Total: job.TotalDirectories})

	var progress entity.Progress
	if err := e.run(ctx, log, job, &progress); err != nil {
		e.fail(ctx, log, job, progress, err)
		return err
	}
	log.Info("engine.job.completed",
		"completed", progress.Completed, "success", progress.Success,
		"failed", progress.Failed, "review", progress.Review,
		"elapsed_ms", time.Since(start).Milliseconds())
	return nil
}

func (e *Engine) run(ctx context.Context, log *slog.Logger, job *entity.Job, progress *entity.Progress) error {
	profile, err := e.profiles.GetByID(ctx, job.ProfileID)
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}
	dirs, err := e.catalog.Directories(ctx)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	targets := catalog.Take(dirs, job.TotalDirectories)
	log.Info("engine.job.targets", "targets", len(targets), "catalog_version", e.catalog.Version())

	if err := e.results.CreatePending(ctx, job.ID, targets); err != nil {
		return fmt.Errorf("create pending results: %w", err)
	}

	for i, dir := range targets {
		if err := ctx.Err(); err != nil {
			return err
		}
		res := e.attempt(ctx, log, dir, profile)
		// an attempt cut short by shutdown is not recorded; its row stays pending
		if err := ctx.Err(); err != nil {
			return err
		}

		notes := res.Notes
		if err := e.results.Update(ctx, job.ID, dir.Name, repository.ResultUpdate{
			Status:        res.Outcome,
			ErrorMessage:  res.Error,
			SubmissionURL: res.SubmissionURL,
			EvidenceRef:   res.EvidenceRef,
			Notes:         &notes,
		}); err != nil {
			return fmt.Errorf("record result for %s: %w", dir.Name, err)
		}
		progress.Record(res.Outcome)
		if err := e.jobs.UpdateProgress(ctx, job.ID, *progress); err != nil {
			return fmt.Errorf("update progress: %w", err)
		}
		ev := progressEvent(events.JobProgress, job, *progress)
		ev.Directory, ev.Status = dir.Name, string(res.Outcome)
		e.publish(ctx, ev)

		if i < len(targets)-1 {
			if err := common.Sleep(ctx, e.cfg.InterSubmissionDelay); err != nil {
				return err
			}
		}
	}

	if err := e.jobs.Finish(ctx, job.ID, constants.JobStatusCompleted, *progress); err != nil {
		return fmt.Errorf("finish job: %w", err)
	}
	e.publish(ctx, progressEvent(events.JobCompleted, job, *progress))
	return nil
}

// attempt runs one directory, retrying transient failures when enabled.
func (e *Engine) attempt(ctx context.Context, log *slog.Logger, dir entity.Directory, profile *entity.BusinessProfile) entity.AttemptResult {
	res := e.attemptOnce(ctx, dir, profile)
	for try := 1; try <= e.cfg.MaxTransientRetries; try++ {
		if res.Outcome != constants.ResultStatusFailed || !res.Transient {
			break
		}
		log.Info("engine.attempt.retry", "directory", dir.Name, "try", try)
		if err := common.Sleep(ctx, e.cfg.RetryBackoff*time.Duration(try)); err != nil {
			break
		}
		res = e.attemptOnce(ctx, dir, profile)
	}
	return res
}

func (e *Engine) attemptOnce(ctx context.Context, dir entity.Directory, profile *entity.BusinessProfile) entity.AttemptResult {
	if e.cfg.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = common.WithTimeout(ctx, e.cfg.AttemptTimeout)
		defer cancel()
	}
	return e.attempter.Attempt(ctx, dir, profile)
}

// fail moves the job to failed. It runs on a context detached from
// cancellation so a shutdown still records the outcome.
func (e *Engine) fail(ctx context.Context, log *slog.Logger, job *entity.Job, progress entity.Progress, cause error) {
	log.Error("engine.job.failed", "err", cause, "completed", progress.Completed)
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := e.jobs.Finish(fctx, job.ID, constants.JobStatusFailed, progress); err != nil {
		log.Error("engine.job.fail_record_failed", "err", err)
	}
	ev := progressEvent(events.JobFailed, job, progress)
	ev.Error = cause.Error()
	e.publish(fctx, ev)
}

// ProcessPendingJobs runs every paid job in creation order. A failing job is
// logged and the sweep moves on.
func (e *Engine) ProcessPendingJobs(ctx context.Context) error {
	start := time.Now()
	jobs, err := e.jobs.ListByStatus(ctx, constants.JobStatusPaid)
	if err != nil {
		return fmt.Errorf("list paid jobs: %w", err)
	}
	e.logger.Info("engine.sweep.start", "jobs", len(jobs))
	failed := 0
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.ProcessJob(ctx, job.ID); err != nil {
			failed++
			e.logger.Error("engine.sweep.job_failed", "job_id", job.ID, "err", err)
		}
	}
	e.logger.Info("engine.sweep.done", "jobs", len(jobs), "failed", failed,
		"elapsed_ms", time.Since(start).Milliseconds())
	return nil
}

func (e *Engine) publish(ctx context.Context, ev events.Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	if err := e.events.Publish(ctx, ev); err != nil {
		e.logger.Warn("engine.event.dropped", "type", ev.Type, "job_id", ev.JobID, "err", err)
	}
}

func progressEvent(t events.Type, job *entity.Job, p entity.Progress) events.Event {
	return events.Event{
		Type:      t,
		JobID:     job.ID.String(),
		Completed: p.Completed,
		Total:     job.TotalDirectories,
		Success:   p.Success,
		Failed:    p.Failed,
		Review:    p.Review,
	}
}
