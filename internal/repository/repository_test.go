package repository

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"entgo.io/ent/dialect"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/directory-submitter/constants"
	"github.com/joseph-ayodele/directory-submitter/internal/common"
	"github.com/joseph-ayodele/directory-submitter/internal/entity"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()
	db, err := OpenSQLite(ctx, "", logger)
	require.NoError(t, err)
	require.NoError(t, Migrate(ctx, db, logger))
	t.Cleanup(func() { Close(db, logger) })
	return db
}

func seedProfile(t *testing.T, db *DB) *entity.BusinessProfile {
	t.Helper()
	year := 2019
	repo := NewProfileRepository(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	p, err := repo.Create(context.Background(), &entity.BusinessProfile{
		UserID:       "user-1",
		Name:         "Acme Analytics",
		URL:          "https://acme.example",
		Description:  "Dashboards for small teams",
		ContactEmail: "founder@acme.example",
		ContactName:  "Sam Doe",
		FoundedYear:  &year,
		Category:     "Analytics",
		Tags:         []string{"saas", "b2b"},
	})
	require.NoError(t, err)
	return p
}

func seedJob(t *testing.T, db *DB, profileID uuid.UUID, status constants.JobStatus) *entity.Job {
	t.Helper()
	repo := NewJobRepository(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	job, err := repo.Create(context.Background(), &entity.Job{
		UserID:           "user-1",
		ProfileID:        profileID,
		Package:          constants.TierBasic,
		Status:           status,
		TotalDirectories: 3,
	})
	require.NoError(t, err)
	return job
}

func TestMigrate_Idempotent(t *testing.T) {
	db := newTestDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, Migrate(context.Background(), db, logger))
	require.NoError(t, HealthCheck(context.Background(), db, 0, logger))
}

func TestMigrate_SQLiteCreatesSchema(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()
	db, err := OpenSQLite(ctx, "", logger)
	require.NoError(t, err)
	t.Cleanup(func() { Close(db, logger) })

	require.NoError(t, Migrate(ctx, db, logger))

	for _, table := range []string{"business_profiles", "submission_jobs", "submission_results"} {
		var n int
		err := db.SQL().QueryRowContext(ctx,
			"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&n)
		require.NoError(t, err)
		assert.Equal(t, 1, n, "table %s", table)
	}
	var applied int
	require.NoError(t, db.SQL().QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&applied))
	assert.Equal(t, 1, applied)
}

func TestMigrationsDir(t *testing.T) {
	assert.Equal(t, "migrations/sqlite", migrationsDir(dialect.SQLite))
	assert.Equal(t, "migrations/postgres", migrationsDir(dialect.Postgres))
}

func TestProfileRepository_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	p := seedProfile(t, db)
	repo := NewProfileRepository(db, slog.New(slog.NewTextHandler(io.Discard, nil)))

	got, err := repo.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme Analytics", got.Name)
	assert.Equal(t, []string{"saas", "b2b"}, got.Tags)
	require.NotNil(t, got.FoundedYear)
	assert.Equal(t, 2019, *got.FoundedYear)
	assert.Nil(t, got.LogoURL)

	ok, err := repo.Exists(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repo.GetByID(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestJobRepository_ClaimIsExclusive(t *testing.T) {
	db := newTestDB(t)
	p := seedProfile(t, db)
	job := seedJob(t, db, p.ID, constants.JobStatusPaid)
	repo := NewJobRepository(db, slog.New(slog.NewTextHandler(io.Discard, nil)))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.ClaimForProcessing(context.Background(), job.ID)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)

	got, err := repo.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusInProgress, got.Status)
}

func TestJobRepository_ClaimRequiresPaid(t *testing.T) {
	db := newTestDB(t)
	p := seedProfile(t, db)
	repo := NewJobRepository(db, slog.New(slog.NewTextHandler(io.Discard, nil)))

	for _, st := range []constants.JobStatus{
		constants.JobStatusPending,
		constants.JobStatusCompleted,
		constants.JobStatusFailed,
	} {
		job := seedJob(t, db, p.ID, st)
		ok, err := repo.ClaimForProcessing(context.Background(), job.ID)
		require.NoError(t, err)
		assert.False(t, ok, "claim from %s", st)
	}
}

func TestJobRepository_ProgressAndFinish(t *testing.T) {
	db := newTestDB(t)
	p := seedProfile(t, db)
	job := seedJob(t, db, p.ID, constants.JobStatusPaid)
	repo := NewJobRepository(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	// not yet in progress
	err := repo.UpdateProgress(ctx, job.ID, entity.Progress{Completed: 1, Success: 1})
	assert.True(t, errors.Is(err, common.ErrJobNotStartable))

	ok, err := repo.ClaimForProcessing(ctx, job.ID)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, repo.UpdateProgress(ctx, job.ID, entity.Progress{Completed: 2, Success: 1, Failed: 1}))
	require.NoError(t, repo.Finish(ctx, job.ID, constants.JobStatusCompleted, entity.Progress{Completed: 3, Success: 2, Failed: 1}))

	got, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusCompleted, got.Status)
	assert.Equal(t, 3, got.CompletedDirectories)
	assert.Equal(t, 2, got.SuccessfulSubmissions)
	assert.Equal(t, 1, got.FailedSubmissions)

	// terminal jobs do not move
	err = repo.Finish(ctx, job.ID, constants.JobStatusFailed, got.Progress())
	assert.Error(t, err)
	err = repo.Finish(ctx, job.ID, constants.JobStatusPaid, got.Progress())
	assert.True(t, errors.Is(err, common.ErrInvalidInput))
}

func TestJobRepository_SetStatusFollowsGraph(t *testing.T) {
	db := newTestDB(t)
	p := seedProfile(t, db)
	repo := NewJobRepository(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	job := seedJob(t, db, p.ID, constants.JobStatusPending)

	// skipping payment is not an edge
	ok, err := repo.SetStatus(ctx, job.ID, constants.JobStatusPending, constants.JobStatusInProgress)
	assert.False(t, ok)
	assert.True(t, errors.Is(err, common.ErrInvalidInput))

	ok, err = repo.SetStatus(ctx, job.ID, constants.JobStatusPending, constants.JobStatusPaid)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.SetStatus(ctx, job.ID, constants.JobStatusPaid, constants.JobStatusCompleted)
	assert.False(t, ok)
	assert.True(t, errors.Is(err, common.ErrInvalidInput))

	done := seedJob(t, db, p.ID, constants.JobStatusCompleted)
	ok, err = repo.SetStatus(ctx, done.ID, constants.JobStatusCompleted, constants.JobStatusPaid)
	assert.False(t, ok)
	assert.True(t, errors.Is(err, common.ErrInvalidInput))

	got, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusPaid, got.Status)
}

type statusRow string

func (r statusRow) Scan(dest ...any) error {
	*(dest[4].(*string)) = string(r)
	return nil
}

func TestScanJob_ParsesStatus(t *testing.T) {
	job, err := scanJob(statusRow("in_progress"))
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusInProgress, job.Status)

	_, err = scanJob(statusRow("running"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown job status")
}

func TestJobRepository_Lists(t *testing.T) {
	db := newTestDB(t)
	p := seedProfile(t, db)
	seedJob(t, db, p.ID, constants.JobStatusPaid)
	seedJob(t, db, p.ID, constants.JobStatusPaid)
	seedJob(t, db, p.ID, constants.JobStatusCompleted)
	repo := NewJobRepository(db, slog.New(slog.NewTextHandler(io.Discard, nil)))

	paid, err := repo.ListByStatus(context.Background(), constants.JobStatusPaid)
	require.NoError(t, err)
	assert.Len(t, paid, 2)

	mine, err := repo.ListByUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Len(t, mine, 3)
}

func TestJobRepository_PaymentRef(t *testing.T) {
	db := newTestDB(t)
	p := seedProfile(t, db)
	repo := NewJobRepository(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ref := "cs_test_123"

	job, err := repo.Create(context.Background(), &entity.Job{
		UserID: "user-1", ProfileID: p.ID, Package: constants.TierPro,
		Status: constants.JobStatusPaid, TotalDirectories: 100, PaymentRef: &ref,
	})
	require.NoError(t, err)

	got, err := repo.GetByPaymentRef(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)

	_, err = repo.Create(context.Background(), &entity.Job{
		UserID: "user-1", ProfileID: p.ID, Package: constants.TierPro,
		Status: constants.JobStatusPaid, TotalDirectories: 100, PaymentRef: &ref,
	})
	assert.Error(t, err)
}

func TestResultRepository_PendingThenFinal(t *testing.T) {
	db := newTestDB(t)
	p := seedProfile(t, db)
	job := seedJob(t, db, p.ID, constants.JobStatusPaid)
	repo := NewResultRepository(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	dirs := []entity.Directory{
		{Name: "Zeta List", URL: "https://zeta.example/submit"},
		{Name: "Alpha Hub", URL: "https://alpha.example/add"},
	}
	require.NoError(t, repo.CreatePending(ctx, job.ID, dirs))

	// duplicate (job, directory) rows are rejected
	assert.Error(t, repo.CreatePending(ctx, job.ID, dirs[:1]))

	msg := "No submit button found"
	require.NoError(t, repo.Update(ctx, job.ID, "Zeta List", ResultUpdate{
		Status:       constants.ResultStatusFailed,
		ErrorMessage: &msg,
	}))
	// once final, a row is never rewritten
	err := repo.Update(ctx, job.ID, "Zeta List", ResultUpdate{Status: constants.ResultStatusSuccess})
	assert.True(t, errors.Is(err, common.ErrNotFound))

	err = repo.Update(ctx, job.ID, "Alpha Hub", ResultUpdate{Status: constants.ResultStatusPending})
	assert.True(t, errors.Is(err, common.ErrInvalidInput))

	byName, err := repo.ListByJob(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, byName, 2)
	assert.Equal(t, "Alpha Hub", byName[0].DirectoryName)
	assert.Equal(t, constants.ResultStatusPending, byName[0].Status)
	assert.Equal(t, constants.ResultStatusFailed, byName[1].Status)
	require.NotNil(t, byName[1].ErrorMessage)
	assert.Equal(t, msg, *byName[1].ErrorMessage)

	inOrder, err := repo.ListByJobInCatalogOrder(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "Zeta List", inOrder[0].DirectoryName)

	counts, err := repo.CountByStatus(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[constants.ResultStatusPending])
	assert.Equal(t, 1, counts[constants.ResultStatusFailed])
}
