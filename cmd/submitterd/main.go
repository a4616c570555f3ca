package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/directory-submitter/internal/async"
	"github.com/joseph-ayodele/directory-submitter/internal/browser"
	"github.com/joseph-ayodele/directory-submitter/internal/browser/playwright"
	"github.com/joseph-ayodele/directory-submitter/internal/catalog"
	"github.com/joseph-ayodele/directory-submitter/internal/common"
	"github.com/joseph-ayodele/directory-submitter/internal/engine"
	"github.com/joseph-ayodele/directory-submitter/internal/events"
	"github.com/joseph-ayodele/directory-submitter/internal/evidence"
	"github.com/joseph-ayodele/directory-submitter/internal/export"
	"github.com/joseph-ayodele/directory-submitter/internal/form"
	"github.com/joseph-ayodele/directory-submitter/internal/llm/openai"
	"github.com/joseph-ayodele/directory-submitter/internal/pipeline"
	"github.com/joseph-ayodele/directory-submitter/internal/profiles"
	repo "github.com/joseph-ayodele/directory-submitter/internal/repository"
	svc "github.com/joseph-ayodele/directory-submitter/internal/server"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}
	addr := cfg.Server.GRPCAddr
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := svc.ConnectDB(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to open database", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	defer repo.Close(db, logger)

	profilesRepo := repo.NewProfileRepository(db, logger)
	jobsRepo := repo.NewJobRepository(db, logger)
	resultsRepo := repo.NewResultRepository(db, logger)

	// Redis is optional: progress events and the cross-replica sweep lock
	var (
		rdb       *redis.Client
		publisher events.Publisher = events.Noop{}
	)
	if cfg.Redis.URL != "" {
		rdb, err = svc.ConnectRedis(ctx, cfg.Redis.URL)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer rdb.Close()
		publisher = events.NewRedisPublisher(rdb, logger)
	}

	var directories catalog.Source
	if cfg.Catalog.Path != "" {
		w, err := catalog.NewWatcher(cfg.Catalog.Path, logger)
		if err != nil {
			logger.Error("failed to load catalog", "path", cfg.Catalog.Path, "error", err)
			os.Exit(1)
		}
		if cfg.Catalog.Watch {
			go func() {
				if err := w.Run(ctx); err != nil {
					logger.Error("catalog watcher stopped", "error", err)
				}
			}()
		}
		directories = w
	} else {
		builtin, err := catalog.Default()
		if err != nil {
			logger.Error("failed to load built-in catalog", "error", err)
			os.Exit(1)
		}
		directories = builtin
	}

	driver, err := playwright.Launch(playwright.Config{
		Headless: cfg.Browser.Headless,
		Install:  cfg.Browser.Install,
	}, logger)
	if err != nil {
		logger.Error("failed to launch browser", "error", err)
		os.Exit(1)
	}
	defer driver.Close()

	analyzer := openai.NewClient(openai.Config{
		Model:            cfg.LLM.Model,
		APIKey:           cfg.LLM.APIKey,
		BaseURL:          cfg.LLM.BaseURL,
		Temperature:      cfg.LLM.Temperature,
		MaxTokens:        cfg.LLM.MaxTokens,
		Timeout:          cfg.LLM.Timeout,
		HTMLExcerptChars: cfg.LLM.HTMLExcerptChars,
		StructuredOutput: cfg.LLM.StructuredOutput,
	}, logger)

	var store evidence.Store
	if cfg.Evidence.Dir != "" {
		store = evidence.NewLocalStore(cfg.Evidence.Dir)
	}

	sub := cfg.Submission
	attempts := pipeline.New(logger, pipeline.Config{
		Page: browser.PageOptions{
			UserAgent:      cfg.Browser.UserAgent,
			ViewportWidth:  cfg.Browser.ViewportWidth,
			ViewportHeight: cfg.Browser.ViewportHeight,
		},
		NavigationTimeout: sub.NavigationTimeout,
		SettleDelay:       sub.RenderSettleDelay,
	},
		driver,
		analyzer,
		form.NewFiller(sub.FieldWaitTimeout, logger),
		form.NewSubmitter(form.SubmitterOptions{
			Pause:             sub.SubmitPause,
			NavigationTimeout: sub.SubmitNavigationTimeout,
			SettleDelay:       sub.SubmitSettleDelay,
			AmbiguousAsReview: sub.AmbiguousAsReview,
		}, logger),
		store,
	)

	eng := engine.New(logger, engine.Config{
		InterSubmissionDelay: sub.InterSubmissionDelay,
		MaxTransientRetries:  sub.MaxTransientRetries,
		RetryBackoff:         sub.RetryBackoff,
		AttemptTimeout:       sub.AttemptTimeout,
	}, jobsRepo, resultsRepo, profilesRepo, directories, attempts, publisher)

	queue := async.NewProcessorQueue(eng, logger,
		async.WithWorkers(cfg.Queue.Workers),
		async.WithQueueSize(cfg.Queue.Size),
		async.WithProcessTimeout(cfg.Queue.ProcessTimeout),
	)

	scheduler := engine.NewScheduler(eng, engine.SchedulerOptions{
		Schedule: cfg.Sweep.Schedule,
		OnStart:  cfg.Sweep.OnStart,
		Redis:    rdb,
		LockTTL:  cfg.Sweep.LockTTL,
	}, logger)
	if err := scheduler.Start(ctx); err != nil {
		logger.Error("failed to start sweep scheduler", "error", err)
		os.Exit(1)
	}

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", addr, "error", err)
		os.Exit(1)
	}
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(svc.UnaryLogging(logger)))

	submissionServer := svc.NewSubmissionServer(svc.Deps{
		Profiles:   profiles.NewService(profilesRepo, logger),
		Engine:     eng,
		Jobs:       jobsRepo,
		Results:    resultsRepo,
		Export:     export.NewService(jobsRepo, resultsRepo, logger),
		Queue:      queue,
		Sweep:      scheduler,
		Background: ctx,
	}, logger)
	svc.RegisterSubmissionServiceServer(grpcServer, submissionServer)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(svc.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)

	logger.Info("directory-submitter listening", "addr", addr, "catalog_version", directories.Version())
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC serve error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	healthServer.Shutdown()
	grpcServer.GracefulStop()
	scheduler.Stop()

	// in-flight jobs get a grace period; anything cut off is marked failed by the engine
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	queue.Shutdown(shutdownCtx)
}
