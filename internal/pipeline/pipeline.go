// Package pipeline runs one directory attempt: open an isolated page, render it,
// let the analyzer locate the form, fill, submit and report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/directory-submitter/internal/browser"
	"github.com/joseph-ayodele/directory-submitter/internal/common"
	"github.com/joseph-ayodele/directory-submitter/internal/entity"
	"github.com/joseph-ayodele/directory-submitter/internal/evidence"
	"github.com/joseph-ayodele/directory-submitter/internal/form"
	"github.com/joseph-ayodele/directory-submitter/internal/llm"
)

const (
	MsgAnalysisFailed    = "AI analysis failed - no selectors found"
	analysisFailedPrefix = "AI analysis failed: "
	fillFailedPrefix     = "Form filling failed: "
)

// Config holds the attempt timings and client identity.
type Config struct {
	Page              browser.PageOptions
	NavigationTimeout time.Duration // default 30s
	SettleDelay       time.Duration // after navigation, before capture
}

type Pipeline struct {
	logger    *slog.Logger
	cfg       Config
	browser   browser.Browser
	analyzer  llm.FieldAnalyzer
	filler    *form.Filler
	submitter *form.Submitter
	evidence  evidence.Store // optional
}

func New(
	logger *slog.Logger,
	cfg Config,
	b browser.Browser,
	analyzer llm.FieldAnalyzer,
	filler *form.Filler,
	submitter *form.Submitter,
	store evidence.Store,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 30 * time.Second
	}
	return &Pipeline{
		logger:    logger,
		cfg:       cfg,
		browser:   b,
		analyzer:  analyzer,
		filler:    filler,
		submitter: submitter,
		evidence:  store,
	}
}

// stepError tags a failure with the step it happened in.
type stepError struct {
	step  string
	msg   string
	cause error
}

func (e *stepError) Error() string { return e.msg }
func (e *stepError) Unwrap() error { return e.cause }

func fail(step string, err error) *stepError {
	return &stepError{step: step, msg: err.Error()}
}

// Attempt never returns an error: every failure, including a panic, becomes a
// failed result. The page is closed on every path.
func (p *Pipeline) Attempt(ctx context.Context, dir entity.Directory, profile *entity.BusinessProfile) (res entity.AttemptResult) {
	start := time.Now()
	log := common.LoggerFromContext(ctx, p.logger).With("directory", dir.Name, "url", dir.URL)
	log.Info("pipeline.attempt.start")

	defer func() {
		if r := recover(); r != nil {
			log.Error("pipeline.attempt.panic", "panic", r)
			res = entity.FailedAttempt(fmt.Sprintf("internal error: %v", r))
			res.Notes = "Failed during attempt: internal error"
		}
		log.Info("pipeline.attempt.done",
			"outcome", res.Outcome, "transient", res.Transient,
			"elapsed_ms", time.Since(start).Milliseconds())
	}()

	out, err := p.run(ctx, log, dir, profile)
	if err != nil {
		var se *stepError
		if !errors.As(err, &se) {
			se = fail("attempt", err)
		}
		log.Warn("pipeline.attempt.failed", "step", se.step, "err", se.msg)
		res = entity.FailedAttempt(se.msg)
		res.Notes = fmt.Sprintf("Failed during %s: %s", se.step, se.msg)
		res.Transient = errors.Is(se, common.ErrNavigation) && ctx.Err() == nil
		return res
	}
	return out
}

func (p *Pipeline) run(ctx context.Context, log *slog.Logger, dir entity.Directory, profile *entity.BusinessProfile) (entity.AttemptResult, error) {
	page, err := p.browser.NewPage(ctx, p.cfg.Page)
	if err != nil {
		return entity.AttemptResult{}, fail("browser", err)
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			log.Warn("pipeline.page.close_failed", "err", cerr)
		}
	}()

	if err := page.Goto(ctx, dir.URL, p.cfg.NavigationTimeout); err != nil {
		return entity.AttemptResult{}, &stepError{step: "navigation", msg: err.Error(), cause: common.ErrNavigation}
	}
	if err := common.Sleep(ctx, p.cfg.SettleDelay); err != nil {
		return entity.AttemptResult{}, fail("navigation", err)
	}

	shot, err := page.Screenshot(ctx)
	if err != nil {
		return entity.AttemptResult{}, fail("capture", err)
	}
	html, err := page.Content(ctx)
	if err != nil {
		return entity.AttemptResult{}, fail("capture", err)
	}

	mapping, _, err := p.analyzer.Analyze(ctx, llm.AnalyzeRequest{
		DirectoryName: dir.Name,
		Screenshot:    shot,
		HTML:          html,
	})
	if err != nil {
		log.Warn("pipeline.analyze.failed", "err", err)
		return entity.AttemptResult{}, &stepError{step: "analysis", msg: analysisFailedPrefix + err.Error(), cause: common.ErrAnalysisFailed}
	}
	if mapping.Len() == 0 {
		return entity.AttemptResult{}, &stepError{step: "analysis", msg: MsgAnalysisFailed, cause: common.ErrAnalysisFailed}
	}
	log.Info("pipeline.analyze.ok", "fields", mapping.Len())

	if _, err := p.filler.Fill(ctx, page, mapping, profile); err != nil {
		return entity.AttemptResult{}, &stepError{step: "filling", msg: fillFailedPrefix + err.Error()}
	}

	var ref *string
	if filled, err := page.Screenshot(ctx); err != nil {
		log.Warn("pipeline.evidence.capture_failed", "err", err)
	} else {
		ref = p.saveEvidence(ctx, log, dir.Name, filled)
	}

	sub, err := p.submitter.Submit(ctx, page, mapping)
	if err != nil {
		return entity.AttemptResult{}, fail("submission", err)
	}

	url := page.URL()
	return entity.AttemptResult{
		Outcome:       sub.Status,
		Error:         sub.Error,
		SubmissionURL: &url,
		EvidenceRef:   ref,
		Notes:         fmt.Sprintf("AI analysis found %d fields. %s", mapping.Len(), sub.Notes),
	}, nil
}

// saveEvidence stores the post-fill screenshot; a failure only costs the reference.
func (p *Pipeline) saveEvidence(ctx context.Context, log *slog.Logger, name string, png []byte) *string {
	if p.evidence == nil {
		return nil
	}
	ref, err := p.evidence.Save(ctx, common.JobIDFromContext(ctx), name, "filled", png)
	if err != nil {
		log.Warn("pipeline.evidence.save_failed", "err", err)
		return nil
	}
	return &ref
}

