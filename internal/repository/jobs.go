package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/directory-submitter/constants"
	"github.com/joseph-ayodele/directory-submitter/internal/common"
	"github.com/joseph-ayodele/directory-submitter/internal/entity"
)

const jobsTable = "submission_jobs"

var jobColumns = []string{
	"id", "user_id", "profile_id", "package", "status", "total_directories", "completed_directories",
	"successful_submissions", "failed_submissions", "review_submissions", "payment_ref",
	"created_at", "updated_at",
}

type JobRepository interface {
	Create(ctx context.Context, job *entity.Job) (*entity.Job, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	GetByPaymentRef(ctx context.Context, ref string) (*entity.Job, error)
	ListByStatus(ctx context.Context, status constants.JobStatus) ([]*entity.Job, error)
	ListByUser(ctx context.Context, userID string) ([]*entity.Job, error)
	// ClaimForProcessing moves paid -> in_progress atomically; false means another caller owns the job
	// or it was not paid.
	ClaimForProcessing(ctx context.Context, id uuid.UUID) (bool, error)
	SetStatus(ctx context.Context, id uuid.UUID, from, to constants.JobStatus) (bool, error)
	UpdateProgress(ctx context.Context, id uuid.UUID, p entity.Progress) error
	Finish(ctx context.Context, id uuid.UUID, status constants.JobStatus, p entity.Progress) error
}

type jobRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewJobRepository(db *DB, logger *slog.Logger) JobRepository {
	return &jobRepository{db: db, logger: logger}
}

func (r *jobRepository) Create(ctx context.Context, job *entity.Job) (*entity.Job, error) {
	out := *job
	if out.ID == uuid.Nil {
		out.ID = uuid.New()
	}
	if out.Status == "" {
		out.Status = constants.JobStatusPending
	}
	now := time.Now().UTC()
	out.CreatedAt, out.UpdatedAt = now, now

	q, args := r.db.builder().Insert(jobsTable).
		Columns(jobColumns...).
		Values(out.ID, out.UserID, out.ProfileID, string(out.Package), string(out.Status),
			out.TotalDirectories, out.CompletedDirectories, out.SuccessfulSubmissions,
			out.FailedSubmissions, out.ReviewSubmissions, nullable(out.PaymentRef),
			out.CreatedAt, out.UpdatedAt).
		Query()
	if _, err := r.db.SQL().ExecContext(ctx, q, args...); err != nil {
		r.logger.Error("submission_job create failed", "profile_id", out.ProfileID, "err", err)
		return nil, common.WrapError(err, "create job")
	}
	r.logger.Info("submission_job created",
		"job_id", out.ID, "profile_id", out.ProfileID, "package", out.Package,
		"status", out.Status, "total", out.TotalDirectories)
	return &out, nil
}

func (r *jobRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	return r.getOne(ctx, entsql.EQ("id", id), id.String())
}

func (r *jobRepository) GetByPaymentRef(ctx context.Context, ref string) (*entity.Job, error) {
	return r.getOne(ctx, entsql.EQ("payment_ref", ref), ref)
}

func (r *jobRepository) getOne(ctx context.Context, where *entsql.Predicate, key string) (*entity.Job, error) {
	b := r.db.builder()
	q, args := b.Select(jobColumns...).From(b.Table(jobsTable)).Where(where).Query()
	job, err := scanJob(r.db.SQL().QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", key, common.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("submission_job load failed", "key", key, "err", err)
		return nil, common.WrapError(err, "load job")
	}
	return job, nil
}

func (r *jobRepository) ListByStatus(ctx context.Context, status constants.JobStatus) ([]*entity.Job, error) {
	b := r.db.builder()
	q, args := b.Select(jobColumns...).From(b.Table(jobsTable)).
		Where(entsql.EQ("status", string(status))).
		OrderBy("created_at", "id").
		Query()
	return r.list(ctx, q, args)
}

func (r *jobRepository) ListByUser(ctx context.Context, userID string) ([]*entity.Job, error) {
	b := r.db.builder()
	q, args := b.Select(jobColumns...).From(b.Table(jobsTable)).
		Where(entsql.EQ("user_id", userID)).
		OrderBy(entsql.Desc("created_at")).
		Query()
	return r.list(ctx, q, args)
}

func (r *jobRepository) list(ctx context.Context, q string, args []any) ([]*entity.Job, error) {
	rows, err := r.db.SQL().QueryContext(ctx, q, args...)
	if err != nil {
		r.logger.Error("submission_job list failed", "err", err)
		return nil, common.WrapError(err, "list jobs")
	}
	defer rows.Close()

	var out []*entity.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, common.WrapError(err, "scan job")
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

func (r *jobRepository) ClaimForProcessing(ctx context.Context, id uuid.UUID) (bool, error) {
	ok, err := r.SetStatus(ctx, id, constants.JobStatusPaid, constants.JobStatusInProgress)
	if err != nil {
		return false, err
	}
	if ok {
		r.logger.Info("submission_job claimed", "job_id", id)
	} else {
		r.logger.Info("submission_job claim lost", "job_id", id)
	}
	return ok, nil
}

func (r *jobRepository) SetStatus(ctx context.Context, id uuid.UUID, from, to constants.JobStatus) (bool, error) {
	if !constants.IsTransitionAllowed(from, to) {
		return false, fmt.Errorf("job status %s -> %s: %w", from, to, common.ErrInvalidInput)
	}
	q, args := r.db.builder().Update(jobsTable).
		Set("status", string(to)).
		Set("updated_at", time.Now().UTC()).
		Where(entsql.And(entsql.EQ("id", id), entsql.EQ("status", string(from)))).
		Query()
	n, err := r.exec(ctx, q, args)
	if err != nil {
		r.logger.Error("submission_job status update failed", "job_id", id, "from", from, "to", to, "err", err)
		return false, err
	}
	return n == 1, nil
}

func (r *jobRepository) UpdateProgress(ctx context.Context, id uuid.UUID, p entity.Progress) error {
	q, args := r.progressUpdate(p).
		Where(entsql.And(entsql.EQ("id", id), entsql.EQ("status", string(constants.JobStatusInProgress)))).
		Query()
	n, err := r.exec(ctx, q, args)
	if err != nil {
		r.logger.Error("submission_job progress failed", "job_id", id, "err", err)
		return err
	}
	if n != 1 {
		return fmt.Errorf("job %s is not in progress: %w", id, common.ErrJobNotStartable)
	}
	return nil
}

func (r *jobRepository) Finish(ctx context.Context, id uuid.UUID, status constants.JobStatus, p entity.Progress) error {
	if !constants.IsTransitionAllowed(constants.JobStatusInProgress, status) {
		return fmt.Errorf("finish with status %q: %w", status, common.ErrInvalidInput)
	}
	q, args := r.progressUpdate(p).
		Set("status", string(status)).
		Where(entsql.And(entsql.EQ("id", id), entsql.EQ("status", string(constants.JobStatusInProgress)))).
		Query()
	n, err := r.exec(ctx, q, args)
	if err != nil {
		r.logger.Error("submission_job finish failed", "job_id", id, "status", status, "err", err)
		return err
	}
	if n != 1 {
		return fmt.Errorf("job %s is not in progress: %w", id, common.ErrJobNotStartable)
	}
	r.logger.Info("submission_job finished", "job_id", id, "status", status,
		"completed", p.Completed, "success", p.Success, "failed", p.Failed, "review", p.Review)
	return nil
}

func (r *jobRepository) progressUpdate(p entity.Progress) *entsql.UpdateBuilder {
	return r.db.builder().Update(jobsTable).
		Set("completed_directories", p.Completed).
		Set("successful_submissions", p.Success).
		Set("failed_submissions", p.Failed).
		Set("review_submissions", p.Review).
		Set("updated_at", time.Now().UTC())
}

func (r *jobRepository) exec(ctx context.Context, q string, args []any) (int64, error) {
	res, err := r.db.SQL().ExecContext(ctx, q, args...)
	if err != nil {
		return 0, common.WrapError(err, "exec")
	}
	return res.RowsAffected()
}

func scanJob(row rowScanner) (*entity.Job, error) {
	var (
		j       entity.Job
		pkg     string
		status  string
		payment sql.NullString
	)
	if err := row.Scan(&j.ID, &j.UserID, &j.ProfileID, &pkg, &status, &j.TotalDirectories,
		&j.CompletedDirectories, &j.SuccessfulSubmissions, &j.FailedSubmissions,
		&j.ReviewSubmissions, &payment, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return nil, err
	}
	st, err := constants.ParseJobStatus(status)
	if err != nil {
		return nil, err
	}
	j.Package = constants.PackageTier(pkg)
	j.Status = st
	j.PaymentRef = stringPtr(payment)
	return &j, nil
}
