package main

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/directory-submitter/internal/browser"
	"github.com/joseph-ayodele/directory-submitter/internal/browser/playwright"
	"github.com/joseph-ayodele/directory-submitter/internal/common"
	"github.com/joseph-ayodele/directory-submitter/internal/llm"
	"github.com/joseph-ayodele/directory-submitter/internal/llm/openai"
)

// analyze renders one submission page and runs the field analyzer on it
// repeatedly, without filling or submitting anything.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		logger.Error("usage: analyze <submission_url> [times]")
		os.Exit(2)
	}
	url := os.Args[1]
	times := 1
	if len(os.Args) >= 3 {
		if n, err := strconv.Atoi(os.Args[2]); err == nil && n > 0 {
			times = n
		}
	}

	_ = godotenv.Load()
	cfg := common.LoadConfig()
	if cfg.LLM.APIKey == "" {
		logger.Error("OPENAI_API_KEY env var is required")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	driver, err := playwright.Launch(playwright.Config{Headless: cfg.Browser.Headless, Install: cfg.Browser.Install}, logger)
	if err != nil {
		logger.Error("launch browser", "error", err)
		os.Exit(1)
	}
	defer driver.Close()

	page, err := driver.NewPage(ctx, browser.PageOptions{
		UserAgent:      cfg.Browser.UserAgent,
		ViewportWidth:  cfg.Browser.ViewportWidth,
		ViewportHeight: cfg.Browser.ViewportHeight,
	})
	if err != nil {
		logger.Error("open page", "error", err)
		os.Exit(1)
	}
	defer page.Close()

	if err := page.Goto(ctx, url, cfg.Submission.NavigationTimeout); err != nil {
		logger.Error("navigate", "url", url, "error", err)
		os.Exit(1)
	}
	if err := common.Sleep(ctx, cfg.Submission.RenderSettleDelay); err != nil {
		os.Exit(1)
	}
	shot, err := page.Screenshot(ctx)
	if err != nil {
		logger.Error("screenshot", "error", err)
		os.Exit(1)
	}
	html, err := page.Content(ctx)
	if err != nil {
		logger.Error("content", "error", err)
		os.Exit(1)
	}

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

	// same page, N runs: shows how stable the selector mapping is
	for i := 1; i <= times; i++ {
		start := time.Now()
		mapping, raw, err := analyzer.Analyze(ctx, llm.AnalyzeRequest{DirectoryName: url, Screenshot: shot, HTML: html})
		if err != nil {
			logger.Error("analyze.run.error", "iter", i, "err", err)
			continue
		}
		logger.Info("analyze.run.ok", "iter", i, "fields", mapping.Len(),
			"selectors", string(raw), "elapsed_ms", time.Since(start).Milliseconds())
	}
	logger.Info("done", "url", url, "times", times)
}
