package form

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/directory-submitter/constants"
	"github.com/joseph-ayodele/directory-submitter/internal/browser"
	"github.com/joseph-ayodele/directory-submitter/internal/common"
	"github.com/joseph-ayodele/directory-submitter/internal/entity"
)

// DefaultSubmitHeuristics are tried in order when the analyzer tagged no submit control.
var DefaultSubmitHeuristics = []string{
	`button[type="submit"]`,
	`input[type="submit"]`,
	`button:has-text("Submit")`,
	`button:has-text("Add")`,
	`button:has-text("Post")`,
	`.submit-btn`,
	`#submit-btn`,
}

const (
	MsgNoSubmitButton  = "No submit button found"
	MsgErrorIndicators = "Error indicators found on page"
	NotesNoSubmit      = "Could not locate submit button"
	NotesSuccess       = "Success indicators found on page"
	NotesErrorOnPage   = "Page contains error messages"
	NotesAmbiguous     = "Form submitted, no clear success/error indicators"
	NotesSubmitError   = "Error during form submission"
	submitFailedPrefix = "Submit failed: "
)

// SubmitOutcome is the submitter's verdict for one page.
type SubmitOutcome struct {
	Status  constants.ResultStatus
	Error   *string
	Notes   string
	Locator string // control that was clicked
}

type SubmitterOptions struct {
	Pause             time.Duration // before the click
	NavigationTimeout time.Duration
	SettleDelay       time.Duration // used when no navigation follows the click
	AmbiguousAsReview bool
	Heuristics        []string
}

type Submitter struct {
	opts   SubmitterOptions
	logger *slog.Logger
}

func NewSubmitter(opts SubmitterOptions, logger *slog.Logger) *Submitter {
	if logger == nil {
		logger = slog.Default()
	}
	if len(opts.Heuristics) == 0 {
		opts.Heuristics = DefaultSubmitHeuristics
	}
	return &Submitter{opts: opts, logger: logger}
}

// Submit locates the submit control, clicks it and classifies the resulting page.
// The returned error is non-nil only when ctx is done.
func (s *Submitter) Submit(ctx context.Context, page browser.Page, mapping entity.FieldMapping) (SubmitOutcome, error) {
	loc, err := s.locate(ctx, page, mapping)
	if err != nil {
		return SubmitOutcome{}, err
	}
	if loc == "" {
		msg := MsgNoSubmitButton
		s.logger.Warn("form.submit.no_control", "url", page.URL())
		return SubmitOutcome{Status: constants.ResultStatusFailed, Error: &msg, Notes: NotesNoSubmit}, nil
	}

	if err := common.Sleep(ctx, s.opts.Pause); err != nil {
		return SubmitOutcome{}, err
	}
	if err := page.Click(ctx, loc); err != nil {
		if ctx.Err() != nil {
			return SubmitOutcome{}, ctx.Err()
		}
		msg := submitFailedPrefix + err.Error()
		s.logger.Warn("form.submit.click_error", "locator", loc, "err", err)
		return SubmitOutcome{Status: constants.ResultStatusFailed, Error: &msg, Notes: NotesSubmitError, Locator: loc}, nil
	}
	if err := page.WaitForNavigation(ctx, s.opts.NavigationTimeout); err != nil {
		if ctx.Err() != nil {
			return SubmitOutcome{}, ctx.Err()
		}
		s.logger.Debug("form.submit.no_navigation", "locator", loc, "err", err)
		if err := common.Sleep(ctx, s.opts.SettleDelay); err != nil {
			return SubmitOutcome{}, err
		}
	}

	text, err := page.Text(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return SubmitOutcome{}, ctx.Err()
		}
		msg := submitFailedPrefix + err.Error()
		return SubmitOutcome{Status: constants.ResultStatusFailed, Error: &msg, Notes: NotesSubmitError, Locator: loc}, nil
	}

	verdict := Classify(text)
	s.logger.Info("form.submit.classified", "locator", loc, "outcome", verdict.String(), "url", page.URL())
	out := SubmitOutcome{Locator: loc}
	switch verdict {
	case OutcomeSuccess:
		out.Status, out.Notes = constants.ResultStatusSuccess, NotesSuccess
	case OutcomeFailure:
		msg := MsgErrorIndicators
		out.Status, out.Error, out.Notes = constants.ResultStatusFailed, &msg, NotesErrorOnPage
	default:
		out.Status, out.Notes = constants.ResultStatusSuccess, NotesAmbiguous
		if s.opts.AmbiguousAsReview {
			out.Status = constants.ResultStatusPendingReview
		}
	}
	return out, nil
}

// locate prefers the analyzer's submit locator and falls back to the heuristics.
func (s *Submitter) locate(ctx context.Context, page browser.Page, mapping entity.FieldMapping) (string, error) {
	candidates := make([]string, 0, len(s.opts.Heuristics)+1)
	if loc, ok := mapping.SubmitLocator(); ok {
		candidates = append(candidates, loc)
	}
	candidates = append(candidates, s.opts.Heuristics...)
	for _, c := range candidates {
		ok, err := page.Exists(ctx, c)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			s.logger.Debug("form.submit.locator_error", "locator", c, "err", err)
			continue
		}
		if ok {
			return c, nil
		}
	}
	return "", nil
}
