package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/directory-submitter/constants"
	"github.com/joseph-ayodele/directory-submitter/internal/common"
	"github.com/joseph-ayodele/directory-submitter/internal/entity"
)

const resultsTable = "submission_results"

var resultColumns = []string{
	"id", "job_id", "directory_name", "directory_url", "status", "error_message",
	"submission_url", "evidence_ref", "notes", "created_at", "updated_at",
}

// ResultUpdate is the terminal data written onto a pending result row.
type ResultUpdate struct {
	Status        constants.ResultStatus
	ErrorMessage  *string
	SubmissionURL *string
	EvidenceRef   *string
	Notes         *string
}

type ResultRepository interface {
	// CreatePending inserts one pending row per directory in a single transaction.
	CreatePending(ctx context.Context, jobID uuid.UUID, dirs []entity.Directory) error
	// Update finalizes a pending row; rows that already hold an outcome are never rewritten.
	Update(ctx context.Context, jobID uuid.UUID, directoryName string, u ResultUpdate) error
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]*entity.SubmissionResult, error)
	ListByJobInCatalogOrder(ctx context.Context, jobID uuid.UUID) ([]*entity.SubmissionResult, error)
	CountByStatus(ctx context.Context, jobID uuid.UUID) (map[constants.ResultStatus]int, error)
}

type resultRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewResultRepository(db *DB, logger *slog.Logger) ResultRepository {
	return &resultRepository{db: db, logger: logger}
}

func (r *resultRepository) CreatePending(ctx context.Context, jobID uuid.UUID, dirs []entity.Directory) error {
	if len(dirs) == 0 {
		return nil
	}
	now := time.Now().UTC()
	ins := r.db.builder().Insert(resultsTable).
		Columns("id", "job_id", "seq", "directory_name", "directory_url", "status", "created_at", "updated_at")
	for i, d := range dirs {
		ins.Values(uuid.New(), jobID, i, d.Name, d.URL, string(constants.ResultStatusPending), now, now)
	}
	q, args := ins.Query()

	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, q, args...)
		return err
	})
	if err != nil {
		r.logger.Error("submission_results create failed", "job_id", jobID, "rows", len(dirs), "err", err)
		return common.WrapError(err, "create pending results")
	}
	r.logger.Info("submission_results created", "job_id", jobID, "rows", len(dirs))
	return nil
}

func (r *resultRepository) Update(ctx context.Context, jobID uuid.UUID, directoryName string, u ResultUpdate) error {
	if !u.Status.IsFinal() {
		return fmt.Errorf("result status %q is not terminal: %w", u.Status, common.ErrInvalidInput)
	}
	q, args := r.db.builder().Update(resultsTable).
		Set("status", string(u.Status)).
		Set("error_message", nullable(u.ErrorMessage)).
		Set("submission_url", nullable(u.SubmissionURL)).
		Set("evidence_ref", nullable(u.EvidenceRef)).
		Set("notes", nullable(u.Notes)).
		Set("updated_at", time.Now().UTC()).
		Where(entsql.And(
			entsql.EQ("job_id", jobID),
			entsql.EQ("directory_name", directoryName),
			entsql.EQ("status", string(constants.ResultStatusPending)),
		)).
		Query()
	res, err := r.db.SQL().ExecContext(ctx, q, args...)
	if err != nil {
		r.logger.Error("submission_result update failed", "job_id", jobID, "directory", directoryName, "err", err)
		return common.WrapError(err, "update result")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return common.WrapError(err, "update result")
	}
	if n != 1 {
		return fmt.Errorf("pending result %s/%s: %w", jobID, directoryName, common.ErrNotFound)
	}
	return nil
}

func (r *resultRepository) ListByJob(ctx context.Context, jobID uuid.UUID) ([]*entity.SubmissionResult, error) {
	return r.list(ctx, jobID, "directory_name")
}

func (r *resultRepository) ListByJobInCatalogOrder(ctx context.Context, jobID uuid.UUID) ([]*entity.SubmissionResult, error) {
	return r.list(ctx, jobID, "seq")
}

func (r *resultRepository) list(ctx context.Context, jobID uuid.UUID, order string) ([]*entity.SubmissionResult, error) {
	b := r.db.builder()
	q, args := b.Select(resultColumns...).From(b.Table(resultsTable)).
		Where(entsql.EQ("job_id", jobID)).
		OrderBy(order).
		Query()
	rows, err := r.db.SQL().QueryContext(ctx, q, args...)
	if err != nil {
		r.logger.Error("submission_results list failed", "job_id", jobID, "err", err)
		return nil, common.WrapError(err, "list results")
	}
	defer rows.Close()

	var out []*entity.SubmissionResult
	for rows.Next() {
		var (
			res                     entity.SubmissionResult
			status                  string
			errMsg, subURL, ev, nts sql.NullString
		)
		if err := rows.Scan(&res.ID, &res.JobID, &res.DirectoryName, &res.DirectoryURL, &status,
			&errMsg, &subURL, &ev, &nts, &res.CreatedAt, &res.UpdatedAt); err != nil {
			return nil, common.WrapError(err, "scan result")
		}
		res.Status = constants.ResultStatus(status)
		res.ErrorMessage = stringPtr(errMsg)
		res.SubmissionURL = stringPtr(subURL)
		res.EvidenceRef = stringPtr(ev)
		res.Notes = stringPtr(nts)
		out = append(out, &res)
	}
	return out, rows.Err()
}

func (r *resultRepository) CountByStatus(ctx context.Context, jobID uuid.UUID) (map[constants.ResultStatus]int, error) {
	b := r.db.builder()
	q, args := b.Select("status", entsql.Count("*")).From(b.Table(resultsTable)).
		Where(entsql.EQ("job_id", jobID)).
		GroupBy("status").
		Query()
	rows, err := r.db.SQL().QueryContext(ctx, q, args...)
	if err != nil {
		return nil, common.WrapError(err, "count results")
	}
	defer rows.Close()

	out := make(map[constants.ResultStatus]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, common.WrapError(err, "scan count")
		}
		out[constants.ResultStatus(status)] = n
	}
	return out, rows.Err()
}
