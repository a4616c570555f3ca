package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/directory-submitter/constants"
	"github.com/joseph-ayodele/directory-submitter/internal/browser"
	"github.com/joseph-ayodele/directory-submitter/internal/browser/playwright"
	"github.com/joseph-ayodele/directory-submitter/internal/catalog"
	"github.com/joseph-ayodele/directory-submitter/internal/common"
	"github.com/joseph-ayodele/directory-submitter/internal/engine"
	"github.com/joseph-ayodele/directory-submitter/internal/entity"
	"github.com/joseph-ayodele/directory-submitter/internal/evidence"
	"github.com/joseph-ayodele/directory-submitter/internal/export"
	"github.com/joseph-ayodele/directory-submitter/internal/form"
	"github.com/joseph-ayodele/directory-submitter/internal/llm/openai"
	"github.com/joseph-ayodele/directory-submitter/internal/pipeline"
	"github.com/joseph-ayodele/directory-submitter/internal/profiles"
	repo "github.com/joseph-ayodele/directory-submitter/internal/repository"
	svc "github.com/joseph-ayodele/directory-submitter/internal/server"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		inmem       = flag.Bool("inmem", false, "use in-memory SQLite database")
		profileFile = flag.String("profile-file", "", "YAML business profile to submit")
		pkg         = flag.String("package", "basic", "package tier: basic, pro or enterprise")
		jobFlag     = flag.String("job", "", "process an existing paid job instead of creating one")
		sweep       = flag.Bool("sweep", false, "process every paid job and exit")
		catalogPath = flag.String("catalog", "", "YAML directory catalog (defaults to the built-in list)")
		headful     = flag.Bool("headful", false, "show the browser window")
		out         = flag.String("out", "", "output XLSX file path (defaults to submissions-<job>.xlsx)")
	)
	flag.Parse()

	modes := 0
	for _, set := range []bool{*profileFile != "", *jobFlag != "", *sweep} {
		if set {
			modes++
		}
	}
	if modes != 1 {
		printError("Error: exactly one of --profile-file, --job or --sweep is required\n")
		os.Exit(1)
	}
	tier, err := constants.ParsePackageTier(*pkg)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}

	_ = godotenv.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := common.LoadConfig()
	if *inmem {
		cfg.Database.Driver, cfg.Database.DSN = "sqlite", ""
	}
	if cfg.LLM.APIKey == "" {
		logger.Error("OPENAI_API_KEY is required")
		os.Exit(2)
	}

	db, err := svc.ConnectDB(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer repo.Close(db, logger)

	profilesRepo := repo.NewProfileRepository(db, logger)
	jobsRepo := repo.NewJobRepository(db, logger)
	resultsRepo := repo.NewResultRepository(db, logger)

	directories, err := catalog.Load(*catalogPath)
	if err != nil {
		logger.Error("failed to load catalog", "path", *catalogPath, "error", err)
		os.Exit(1)
	}

	driver, err := playwright.Launch(playwright.Config{
		Headless: !*headful,
		Install:  cfg.Browser.Install,
	}, logger)
	if err != nil {
		logger.Error("failed to launch browser", "error", err)
		os.Exit(1)
	}
	defer driver.Close()

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
		openai.NewClient(openai.Config{
			Model:            cfg.LLM.Model,
			APIKey:           cfg.LLM.APIKey,
			BaseURL:          cfg.LLM.BaseURL,
			Temperature:      cfg.LLM.Temperature,
			MaxTokens:        cfg.LLM.MaxTokens,
			Timeout:          cfg.LLM.Timeout,
			HTMLExcerptChars: cfg.LLM.HTMLExcerptChars,
			StructuredOutput: cfg.LLM.StructuredOutput,
		}, logger),
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
	}, jobsRepo, resultsRepo, profilesRepo, directories, attempts, nil)

	if *sweep {
		if err := eng.ProcessPendingJobs(ctx); err != nil {
			logger.Error("sweep failed", "error", err)
			os.Exit(1)
		}
		fmt.Printf("Sweep complete!\n")
		return
	}

	var jobID uuid.UUID
	if *jobFlag != "" {
		if jobID, err = uuid.Parse(*jobFlag); err != nil {
			printError("Error: --job must be a UUID: %v\n", err)
			os.Exit(1)
		}
	} else {
		job, err := createJob(ctx, *profileFile, tier, profiles.NewService(profilesRepo, logger), eng)
		if err != nil {
			logger.Error("failed to create job", "error", err)
			os.Exit(1)
		}
		jobID = job.ID
	}

	logger.Info("processing job", "job_id", jobID, "catalog_version", directories.Version())
	if err := eng.ProcessJob(ctx, jobID); err != nil {
		logger.Error("failed to process job", "job_id", jobID, "error", err)
		os.Exit(1)
	}
	job, err := jobsRepo.GetByID(context.WithoutCancel(ctx), jobID)
	if err != nil {
		logger.Error("failed to load job", "job_id", jobID, "error", err)
		os.Exit(1)
	}

	if *out == "" {
		*out = fmt.Sprintf("submissions-%s.xlsx", jobID)
	}
	xlsxBytes, err := export.NewService(jobsRepo, resultsRepo, logger).ExportJobResultsXLSX(context.WithoutCancel(ctx), jobID)
	if err != nil {
		logger.Error("failed to export results", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, xlsxBytes, 0644); err != nil {
		logger.Error("failed to write output file", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Submission run complete!\n")
	fmt.Printf("- Job: %s (%s)\n", job.ID, job.Status)
	fmt.Printf("- Directories: %d/%d\n", job.CompletedDirectories, job.TotalDirectories)
	fmt.Printf("- Successful: %d\n", job.SuccessfulSubmissions)
	fmt.Printf("- Failed: %d\n", job.FailedSubmissions)
	fmt.Printf("- Pending review: %d\n", job.ReviewSubmissions)
	fmt.Printf("- Output: %s\n", *out)
}

func createJob(ctx context.Context, path string, tier constants.PackageTier, ps *profiles.Service, eng *engine.Engine) (*entity.Job, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	var req profiles.CreateProfileRequest
	if err := yaml.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("parse profile: %w", err)
	}
	if req.UserID == "" {
		req.UserID = "local"
	}
	p, err := ps.CreateProfile(ctx, req)
	if err != nil {
		return nil, err
	}
	return eng.CreateJob(ctx, engine.CreateJobRequest{
		UserID:    p.UserID,
		ProfileID: p.ID,
		Package:   tier,
	})
}
