package server

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/joseph-ayodele/directory-submitter/constants"
	"github.com/joseph-ayodele/directory-submitter/internal/async"
	"github.com/joseph-ayodele/directory-submitter/internal/common"
	"github.com/joseph-ayodele/directory-submitter/internal/engine"
	"github.com/joseph-ayodele/directory-submitter/internal/export"
	"github.com/joseph-ayodele/directory-submitter/internal/profiles"
	"github.com/joseph-ayodele/directory-submitter/internal/repository"
	"github.com/joseph-ayodele/directory-submitter/internal/utils"
)

// Sweep runs one recovery sweep.
type Sweep interface {
	RunOnce(ctx context.Context) (bool, error)
}

type SubmissionServer struct {
	profiles *profiles.Service
	engine   *engine.Engine
	jobs     repository.JobRepository
	results  repository.ResultRepository
	export   *export.Service
	queue    async.Queue
	sweep    Sweep
	bg       context.Context // parent of background sweeps
	logger   *slog.Logger
}

type Deps struct {
	Profiles   *profiles.Service
	Engine     *engine.Engine
	Jobs       repository.JobRepository
	Results    repository.ResultRepository
	Export     *export.Service
	Queue      async.Queue
	Sweep      Sweep
	Background context.Context
}

func NewSubmissionServer(d Deps, logger *slog.Logger) *SubmissionServer {
	if logger == nil {
		logger = slog.Default()
	}
	bg := d.Background
	if bg == nil {
		bg = context.Background()
	}
	return &SubmissionServer{
		profiles: d.Profiles,
		engine:   d.Engine,
		jobs:     d.Jobs,
		results:  d.Results,
		export:   d.Export,
		queue:    d.Queue,
		sweep:    d.Sweep,
		bg:       bg,
		logger:   logger,
	}
}

func (s *SubmissionServer) CreateProfile(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in profiles.CreateProfileRequest
	if err := utils.FromStruct(req, &in); err != nil {
		return nil, common.InvalidArgumentError(err.Error())
	}
	p, err := s.profiles.CreateProfile(ctx, in)
	if err != nil {
		s.logger.Warn("grpc.create_profile.failed", "err", err)
		return nil, common.ToGRPCError(err)
	}
	return structOrInternal(utils.ToPBProfile(p))
}

type createJobRequest struct {
	UserID       string `json:"user_id"`
	ProfileID    string `json:"profile_id"`
	Package      string `json:"package"`
	PaymentRef   string `json:"payment_ref"`
	AwaitPayment bool   `json:"await_payment"`
}

// CreateJob is the payment hook. A paid job is queued for processing at once.
func (s *SubmissionServer) CreateJob(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in createJobRequest
	if err := utils.FromStruct(req, &in); err != nil {
		return nil, common.InvalidArgumentError(err.Error())
	}
	profileID, err := parseID("profile_id", in.ProfileID)
	if err != nil {
		return nil, err
	}
	tier, err := constants.ParsePackageTier(in.Package)
	if err != nil {
		return nil, common.InvalidArgumentError(err.Error())
	}

	job, err := s.engine.CreateJob(ctx, engine.CreateJobRequest{
		UserID:       in.UserID,
		ProfileID:    profileID,
		Package:      tier,
		PaymentRef:   in.PaymentRef,
		AwaitPayment: in.AwaitPayment,
	})
	if err != nil {
		s.logger.Warn("grpc.create_job.failed", "profile_id", profileID, "err", err)
		return nil, common.ToGRPCError(err)
	}
	if job.Status == constants.JobStatusPaid {
		s.enqueue(ctx, job.ID, "created")
	}
	return structOrInternal(utils.ToPBJob(job))
}

func (s *SubmissionServer) MarkJobPaid(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	id, err := parseID("job_id", req.GetValue())
	if err != nil {
		return nil, err
	}
	if err := s.engine.MarkPaid(ctx, id); err != nil {
		return nil, common.ToGRPCError(err)
	}
	s.enqueue(ctx, id, "paid")
	job, err := s.jobs.GetByID(ctx, id)
	if err != nil {
		return nil, common.ToGRPCError(err)
	}
	return structOrInternal(utils.ToPBJob(job))
}

// ProcessJob queues a start/resume; repeating it is harmless.
func (s *SubmissionServer) ProcessJob(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	id, err := parseID("job_id", req.GetValue())
	if err != nil {
		return nil, err
	}
	if _, err := s.jobs.GetByID(ctx, id); err != nil {
		return nil, common.ToGRPCError(err)
	}
	if err := s.queue.Enqueue(ctx, async.Job{JobID: id, Reason: "api", TraceID: common.RequestIDFromContext(ctx)}); err != nil {
		return nil, common.FailedPreconditionError(err.Error())
	}
	return &emptypb.Empty{}, nil
}

// ProcessPendingJobs starts a sweep in the background and returns immediately.
func (s *SubmissionServer) ProcessPendingJobs(_ context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	go func() {
		start := time.Now()
		ran, err := s.sweep.RunOnce(s.bg)
		if err != nil {
			s.logger.Error("grpc.sweep.failed", "err", err)
			return
		}
		s.logger.Info("grpc.sweep.done", "ran", ran, "elapsed_ms", time.Since(start).Milliseconds())
	}()
	return &emptypb.Empty{}, nil
}

func (s *SubmissionServer) GetJob(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	id, err := parseID("job_id", req.GetValue())
	if err != nil {
		return nil, err
	}
	job, err := s.jobs.GetByID(ctx, id)
	if err != nil {
		return nil, common.ToGRPCError(err)
	}
	return structOrInternal(utils.ToPBJob(job))
}

func (s *SubmissionServer) ListJobs(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	userID := strings.TrimSpace(req.GetValue())
	if userID == "" {
		return nil, common.InvalidArgumentError("user_id is required")
	}
	jobs, err := s.jobs.ListByUser(ctx, userID)
	if err != nil {
		return nil, common.ToGRPCError(err)
	}
	return structOrInternal(utils.ToPBJobList(jobs))
}

// ListResults returns a job's results ordered by directory name.
func (s *SubmissionServer) ListResults(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	id, err := parseID("job_id", req.GetValue())
	if err != nil {
		return nil, err
	}
	results, err := s.results.ListByJob(ctx, id)
	if err != nil {
		return nil, common.ToGRPCError(err)
	}
	return structOrInternal(utils.ToPBResultList(results))
}

func (s *SubmissionServer) ExportResults(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	id, err := parseID("job_id", req.GetValue())
	if err != nil {
		return nil, err
	}
	xlsx, err := s.export.ExportJobResultsXLSX(ctx, id)
	if err != nil {
		s.logger.Error("export.xlsx.failed", "job_id", id, "err", err)
		return nil, common.ToGRPCError(err)
	}
	return wrapperspb.Bytes(xlsx), nil
}

func (s *SubmissionServer) enqueue(ctx context.Context, id uuid.UUID, reason string) {
	err := s.queue.Enqueue(ctx, async.Job{JobID: id, Reason: reason, TraceID: common.RequestIDFromContext(ctx)})
	if err != nil {
		// the recovery sweep picks up paid jobs that never made it into the queue
		s.logger.Warn("grpc.enqueue.failed", "job_id", id, "err", err)
	}
}

func parseID(field, raw string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if err := common.NewValidator().Field(field, raw, common.UUID).Error(); err != nil {
		return uuid.Nil, common.ToGRPCError(err)
	}
	return uuid.MustParse(raw), nil
}

func structOrInternal(s *structpb.Struct, err error) (*structpb.Struct, error) {
	if err != nil {
		return nil, common.InternalError(err.Error())
	}
	return s, nil
}
