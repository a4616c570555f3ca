package engine_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/directory-submitter/constants"
	"github.com/joseph-ayodele/directory-submitter/internal/browser/browsertest"
	"github.com/joseph-ayodele/directory-submitter/internal/catalog"
	"github.com/joseph-ayodele/directory-submitter/internal/common"
	"github.com/joseph-ayodele/directory-submitter/internal/engine"
	"github.com/joseph-ayodele/directory-submitter/internal/entity"
	"github.com/joseph-ayodele/directory-submitter/internal/events"
	"github.com/joseph-ayodele/directory-submitter/internal/form"
	"github.com/joseph-ayodele/directory-submitter/internal/llm"
	"github.com/joseph-ayodele/directory-submitter/internal/pipeline"
	"github.com/joseph-ayodele/directory-submitter/internal/repository"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type harness struct {
	db       *repository.DB
	jobs     repository.JobRepository
	results  repository.ResultRepository
	profiles repository.ProfileRepository
	catalog  catalog.Source
	events   *recorder
}

func newHarness(t *testing.T, dirs ...entity.Directory) *harness {
	t.Helper()
	ctx := context.Background()
	db, err := repository.OpenSQLite(ctx, "", discard())
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(ctx, db, discard()))
	t.Cleanup(func() { repository.Close(db, discard()) })

	src, err := catalog.NewStatic("test", dirs)
	require.NoError(t, err)
	return &harness{
		db:       db,
		jobs:     repository.NewJobRepository(db, discard()),
		results:  repository.NewResultRepository(db, discard()),
		profiles: repository.NewProfileRepository(db, discard()),
		catalog:  src,
		events:   &recorder{},
	}
}

func (h *harness) engine(a engine.Attempter, cfg engine.Config) *engine.Engine {
	return engine.New(discard(), cfg, h.jobs, h.results, h.profiles, h.catalog, a, h.events)
}

func (h *harness) profile(t *testing.T) *entity.BusinessProfile {
	t.Helper()
	p, err := h.profiles.Create(context.Background(), &entity.BusinessProfile{
		UserID: "user-1", Name: "Acme", URL: "https://acme.example", ContactEmail: "hi@acme.example",
	})
	require.NoError(t, err)
	return p
}

type recorder struct {
	mu  sync.Mutex
	got []events.Event
}

func (r *recorder) Publish(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, e)
	return nil
}

func (r *recorder) types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Type, len(r.got))
	for i, e := range r.got {
		out[i] = e.Type
	}
	return out
}

// scripted returns a canned result per directory and counts calls.
type scripted struct {
	mu     sync.Mutex
	byName map[string][]entity.AttemptResult
	calls  map[string]int
}

func (s *scripted) Attempt(_ context.Context, dir entity.Directory, _ *entity.BusinessProfile) entity.AttemptResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = map[string]int{}
	}
	n := s.calls[dir.Name]
	s.calls[dir.Name]++
	seq := s.byName[dir.Name]
	if len(seq) == 0 {
		return entity.AttemptResult{Outcome: constants.ResultStatusSuccess, Notes: "ok"}
	}
	if n >= len(seq) {
		n = len(seq) - 1
	}
	return seq[n]
}

func (s *scripted) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

var threeDirs = []entity.Directory{
	{Name: "Alpha", URL: "https://alpha.example/submit"},
	{Name: "Beta", URL: "https://beta.example/submit"},
	{Name: "Gamma", URL: "https://gamma.example/submit"},
}

// analyzer fails for one directory and maps a simple form otherwise.
type analyzer struct{ failFor string }

func (a analyzer) Analyze(_ context.Context, req llm.AnalyzeRequest) (entity.FieldMapping, []byte, error) {
	if req.DirectoryName == a.failFor {
		return nil, nil, errors.New("vision model returned 500")
	}
	return entity.FieldMapping{
		{Locator: "#name", Role: constants.RoleCompanyName},
		{Locator: "#go", Role: constants.RoleSubmitButton},
	}, nil, nil
}

func TestProcessJob_EndToEnd(t *testing.T) {
	h := newHarness(t, threeDirs...)
	ctx := context.Background()

	b := browsertest.New()
	for _, d := range threeDirs {
		b.Sites[d.URL] = &browsertest.Site{
			Selectors:   []string{"#name", "#go"},
			AfterSubmit: "Thank you for your submission!",
		}
	}
	p := pipeline.New(discard(), pipeline.Config{}, b, analyzer{failFor: "Beta"},
		form.NewFiller(0, discard()), form.NewSubmitter(form.SubmitterOptions{}, discard()), nil)
	eng := h.engine(p, engine.Config{})

	prof := h.profile(t)
	job, err := eng.CreateJob(ctx, engine.CreateJobRequest{
		UserID: "user-1", ProfileID: prof.ID, Package: constants.TierBasic, PaymentRef: "cs_1",
	})
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusPaid, job.Status)
	assert.Equal(t, 50, job.TotalDirectories)

	require.NoError(t, eng.ProcessJob(ctx, job.ID))

	got, err := h.jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusCompleted, got.Status)
	assert.Equal(t, 3, got.CompletedDirectories)
	assert.Equal(t, 2, got.SuccessfulSubmissions)
	assert.Equal(t, 1, got.FailedSubmissions)
	assert.Equal(t, 50, got.TotalDirectories)

	rows, err := h.results.ListByJobInCatalogOrder(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	want := []constants.ResultStatus{constants.ResultStatusSuccess, constants.ResultStatusFailed, constants.ResultStatusSuccess}
	for i, r := range rows {
		assert.Equal(t, threeDirs[i].Name, r.DirectoryName)
		assert.Equal(t, want[i], r.Status, r.DirectoryName)
	}
	require.NotNil(t, rows[1].ErrorMessage)
	assert.Equal(t, "AI analysis failed: vision model returned 500", *rows[1].ErrorMessage)
	assert.Zero(t, b.OpenPages())

	assert.Equal(t, []events.Type{
		events.JobStarted, events.JobProgress, events.JobProgress, events.JobProgress, events.JobCompleted,
	}, h.events.types())
}

func TestProcessJob_CountersMatchResults(t *testing.T) {
	h := newHarness(t, threeDirs...)
	ctx := context.Background()
	a := &scripted{byName: map[string][]entity.AttemptResult{
		"Alpha": {entity.FailedAttempt("No submit button found")},
		"Gamma": {{Outcome: constants.ResultStatusPendingReview}},
	}}
	eng := h.engine(a, engine.Config{})
	job, err := eng.CreateJob(ctx, engine.CreateJobRequest{UserID: "u", ProfileID: h.profile(t).ID, Package: constants.TierPro})
	require.NoError(t, err)

	require.NoError(t, eng.ProcessJob(ctx, job.ID))

	got, err := h.jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	counts, err := h.results.CountByStatus(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, got.CompletedDirectories,
		counts[constants.ResultStatusSuccess]+counts[constants.ResultStatusFailed]+counts[constants.ResultStatusPendingReview])
	assert.Equal(t, got.CompletedDirectories, got.SuccessfulSubmissions+got.FailedSubmissions+got.ReviewSubmissions)
	assert.Equal(t, 1, got.ReviewSubmissions)
	assert.LessOrEqual(t, got.CompletedDirectories, got.TotalDirectories)
}

func TestProcessJob_Idempotent(t *testing.T) {
	h := newHarness(t, threeDirs...)
	ctx := context.Background()
	a := &scripted{}
	// two engines share one database, as two replicas would
	e1, e2 := h.engine(a, engine.Config{}), h.engine(a, engine.Config{})
	job, err := e1.CreateJob(ctx, engine.CreateJobRequest{UserID: "u", ProfileID: h.profile(t).ID, Package: constants.TierBasic})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, e := range []*engine.Engine{e1, e2, e1, e2} {
		wg.Add(1)
		go func(e *engine.Engine) {
			defer wg.Done()
			assert.NoError(t, e.ProcessJob(ctx, job.ID))
		}(e)
	}
	wg.Wait()
	require.NoError(t, e1.ProcessJob(ctx, job.ID))

	assert.Equal(t, 3, a.total())
	rows, err := h.results.ListByJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	got, err := h.jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.CompletedDirectories)
	assert.Equal(t, 3, got.SuccessfulSubmissions)
}

func TestProcessJob_SkipsUnpaid(t *testing.T) {
	h := newHarness(t, threeDirs...)
	ctx := context.Background()
	a := &scripted{}
	eng := h.engine(a, engine.Config{})
	job, err := eng.CreateJob(ctx, engine.CreateJobRequest{
		UserID: "u", ProfileID: h.profile(t).ID, Package: constants.TierBasic, AwaitPayment: true,
	})
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusPending, job.Status)

	require.NoError(t, eng.ProcessJob(ctx, job.ID))
	assert.Zero(t, a.total())

	require.NoError(t, eng.MarkPaid(ctx, job.ID))
	assert.ErrorIs(t, eng.MarkPaid(ctx, job.ID), common.ErrJobNotStartable)
	require.NoError(t, eng.ProcessJob(ctx, job.ID))
	assert.Equal(t, 3, a.total())

	assert.ErrorIs(t, eng.ProcessJob(ctx, uuid.New()), common.ErrNotFound)
}

type brokenCatalog struct{}

func (brokenCatalog) Directories(context.Context) ([]entity.Directory, error) {
	return nil, errors.New("catalog unavailable")
}
func (brokenCatalog) Version() string { return "broken" }

func TestProcessJob_EngineErrorFailsJob(t *testing.T) {
	h := newHarness(t, threeDirs...)
	ctx := context.Background()
	h.catalog = brokenCatalog{}
	eng := h.engine(&scripted{}, engine.Config{})
	job, err := eng.CreateJob(ctx, engine.CreateJobRequest{UserID: "u", ProfileID: h.profile(t).ID, Package: constants.TierBasic})
	require.NoError(t, err)

	assert.Error(t, eng.ProcessJob(ctx, job.ID))
	got, err := h.jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusFailed, got.Status)
	assert.Contains(t, h.events.types(), events.JobFailed)

	// terminal jobs are never restarted
	assert.NoError(t, eng.ProcessJob(ctx, job.ID))
	got, err = h.jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusFailed, got.Status)
}

// observer checks the job and its result rows each time a directory starts.
type observer struct {
	t     *testing.T
	h     *harness
	next  engine.Attempter
	jobID uuid.UUID
	seen  []string
}

func (o *observer) Attempt(ctx context.Context, dir entity.Directory, p *entity.BusinessProfile) entity.AttemptResult {
	job, err := o.h.jobs.GetByID(ctx, o.jobID)
	require.NoError(o.t, err)
	rows, err := o.h.results.ListByJob(ctx, o.jobID)
	require.NoError(o.t, err)

	done := 0
	for _, r := range rows {
		if r.Status != constants.ResultStatusPending {
			done++
		}
	}
	assert.Equal(o.t, constants.JobStatusInProgress, job.Status, "at %s", dir.Name)
	assert.Len(o.t, rows, len(threeDirs), "at %s", dir.Name)
	assert.Equal(o.t, job.CompletedDirectories, done, "at %s", dir.Name)
	assert.Equal(o.t, job.CompletedDirectories,
		job.SuccessfulSubmissions+job.FailedSubmissions+job.ReviewSubmissions, "at %s", dir.Name)
	o.seen = append(o.seen, dir.Name)
	return o.next.Attempt(ctx, dir, p)
}

func TestProcessJob_CountersHoldDuringLoop(t *testing.T) {
	h := newHarness(t, threeDirs...)
	ctx := context.Background()

	b := browsertest.New()
	for _, d := range threeDirs {
		b.Sites[d.URL] = &browsertest.Site{
			Selectors:   []string{"#name", "#go"},
			AfterSubmit: "Thank you for your submission!",
		}
	}
	p := pipeline.New(discard(), pipeline.Config{}, b, analyzer{failFor: "Alpha"},
		form.NewFiller(0, discard()), form.NewSubmitter(form.SubmitterOptions{}, discard()), nil)
	obs := &observer{t: t, h: h, next: p}
	eng := h.engine(obs, engine.Config{})
	job, err := eng.CreateJob(ctx, engine.CreateJobRequest{UserID: "u", ProfileID: h.profile(t).ID, Package: constants.TierBasic})
	require.NoError(t, err)
	obs.jobID = job.ID

	require.NoError(t, eng.ProcessJob(ctx, job.ID))
	assert.Equal(t, []string{"Alpha", "Beta", "Gamma"}, obs.seen)

	got, err := h.jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusCompleted, got.Status)
	assert.Equal(t, 1, got.FailedSubmissions)
	assert.Equal(t, 2, got.SuccessfulSubmissions)
}

// flakyJobs fails the nth progress write.
type flakyJobs struct {
	repository.JobRepository
	failAt int
	calls  int
}

func (f *flakyJobs) UpdateProgress(ctx context.Context, id uuid.UUID, p entity.Progress) error {
	f.calls++
	if f.calls == f.failAt {
		return errors.New("connection reset by peer")
	}
	return f.JobRepository.UpdateProgress(ctx, id, p)
}

func TestProcessJob_MidLoopFailureKeepsPartialResults(t *testing.T) {
	h := newHarness(t, threeDirs...)
	ctx := context.Background()
	h.jobs = &flakyJobs{JobRepository: h.jobs, failAt: 2}
	a := &scripted{byName: map[string][]entity.AttemptResult{
		"Beta": {entity.FailedAttempt("No submit button found")},
	}}
	eng := h.engine(a, engine.Config{})
	job, err := eng.CreateJob(ctx, engine.CreateJobRequest{UserID: "u", ProfileID: h.profile(t).ID, Package: constants.TierBasic})
	require.NoError(t, err)

	assert.Error(t, eng.ProcessJob(ctx, job.ID))
	assert.Equal(t, 2, a.total())

	got, err := h.jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusFailed, got.Status)
	assert.Equal(t, 2, got.CompletedDirectories)
	assert.Equal(t, 1, got.SuccessfulSubmissions)
	assert.Equal(t, 1, got.FailedSubmissions)

	rows, err := h.results.ListByJobInCatalogOrder(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, constants.ResultStatusSuccess, rows[0].Status)
	assert.Equal(t, constants.ResultStatusFailed, rows[1].Status)
	assert.Equal(t, constants.ResultStatusPending, rows[2].Status)
	assert.Equal(t, events.JobFailed, h.events.types()[len(h.events.types())-1])
}

// missingProfiles loses the profile between job creation and processing.
type missingProfiles struct {
	repository.ProfileRepository
}

func (missingProfiles) GetByID(_ context.Context, id uuid.UUID) (*entity.BusinessProfile, error) {
	return nil, fmt.Errorf("profile %s: %w", id, common.ErrNotFound)
}

func TestProcessJob_ProfileLoadFailureFailsJob(t *testing.T) {
	h := newHarness(t, threeDirs...)
	ctx := context.Background()
	prof := h.profile(t)
	a := &scripted{}
	job, err := h.engine(a, engine.Config{}).CreateJob(ctx, engine.CreateJobRequest{UserID: "u", ProfileID: prof.ID, Package: constants.TierBasic})
	require.NoError(t, err)

	h.profiles = missingProfiles{ProfileRepository: h.profiles}
	err = h.engine(a, engine.Config{}).ProcessJob(ctx, job.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.Zero(t, a.total())

	got, err := h.jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusFailed, got.Status)
	assert.Zero(t, got.CompletedDirectories)
	assert.Contains(t, h.events.types(), events.JobFailed)
}

func TestProcessJob_RetriesTransientOnly(t *testing.T) {
	h := newHarness(t, threeDirs...)
	ctx := context.Background()
	transient := entity.FailedAttempt("Timeout 30000ms exceeded")
	transient.Transient = true
	a := &scripted{byName: map[string][]entity.AttemptResult{
		"Alpha": {transient, transient, {Outcome: constants.ResultStatusSuccess}},
		"Beta":  {entity.FailedAttempt("No submit button found")},
	}}
	eng := h.engine(a, engine.Config{MaxTransientRetries: 2})
	job, err := eng.CreateJob(ctx, engine.CreateJobRequest{UserID: "u", ProfileID: h.profile(t).ID, Package: constants.TierBasic})
	require.NoError(t, err)

	require.NoError(t, eng.ProcessJob(ctx, job.ID))
	assert.Equal(t, 3, a.calls["Alpha"])
	assert.Equal(t, 1, a.calls["Beta"])

	got, err := h.jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.SuccessfulSubmissions)
	assert.Equal(t, 1, got.FailedSubmissions)
}

func TestProcessPendingJobs_Resumes(t *testing.T) {
	h := newHarness(t, threeDirs...)
	ctx := context.Background()
	a := &scripted{}
	eng := h.engine(a, engine.Config{})
	prof := h.profile(t)

	var ids []uuid.UUID
	for i := 0; i < 2; i++ {
		job, err := eng.CreateJob(ctx, engine.CreateJobRequest{UserID: "u", ProfileID: prof.ID, Package: constants.TierBasic})
		require.NoError(t, err)
		ids = append(ids, job.ID)
	}
	require.NoError(t, eng.ProcessPendingJobs(ctx))

	for _, id := range ids {
		got, err := h.jobs.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, constants.JobStatusCompleted, got.Status)
		assert.Equal(t, 3, got.CompletedDirectories)
	}
	assert.Equal(t, 6, a.total())

	// nothing left to do
	require.NoError(t, eng.ProcessPendingJobs(ctx))
	assert.Equal(t, 6, a.total())
}

func TestCreateJob(t *testing.T) {
	h := newHarness(t, threeDirs...)
	ctx := context.Background()
	eng := h.engine(&scripted{}, engine.Config{})
	prof := h.profile(t)

	first, err := eng.CreateJob(ctx, engine.CreateJobRequest{
		UserID: "u", ProfileID: prof.ID, Package: constants.TierEnterprise, PaymentRef: "cs_9",
	})
	require.NoError(t, err)
	assert.Equal(t, 150, first.TotalDirectories)

	again, err := eng.CreateJob(ctx, engine.CreateJobRequest{
		UserID: "u", ProfileID: prof.ID, Package: constants.TierEnterprise, PaymentRef: "cs_9",
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	_, err = eng.CreateJob(ctx, engine.CreateJobRequest{UserID: "u", ProfileID: prof.ID, Package: "gold"})
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = eng.CreateJob(ctx, engine.CreateJobRequest{UserID: "u", ProfileID: uuid.New(), Package: constants.TierBasic})
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = eng.CreateJob(ctx, engine.CreateJobRequest{ProfileID: prof.ID, Package: constants.TierBasic})
	assert.ErrorIs(t, err, common.ErrValidation)
}
