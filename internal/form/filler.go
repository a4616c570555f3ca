package form

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/directory-submitter/constants"
	"github.com/joseph-ayodele/directory-submitter/internal/browser"
	"github.com/joseph-ayodele/directory-submitter/internal/entity"
)

// FillReport lists what happened to each binding of a mapping.
type FillReport struct {
	Filled  []constants.FieldRole
	Skipped []constants.FieldRole
	Errors  map[string]string // locator -> error text
}

type Filler struct {
	waitTimeout time.Duration
	logger      *slog.Logger
}

func NewFiller(waitTimeout time.Duration, logger *slog.Logger) *Filler {
	if logger == nil {
		logger = slog.Default()
	}
	if waitTimeout <= 0 {
		waitTimeout = 5 * time.Second
	}
	return &Filler{waitTimeout: waitTimeout, logger: logger}
}

// Fill types profile values into every fillable binding. A field that never
// appears or rejects input is logged and skipped; only a cancelled context
// aborts the pass.
func (f *Filler) Fill(ctx context.Context, page browser.Page, mapping entity.FieldMapping, profile *entity.BusinessProfile) (FillReport, error) {
	values := ValuesFor(profile)
	report := FillReport{Errors: map[string]string{}}
	start := time.Now()

	for _, b := range mapping {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if !b.Role.Fillable() {
			report.Skipped = append(report.Skipped, b.Role)
			continue
		}
		v, ok := values[b.Role]
		if !ok {
			report.Skipped = append(report.Skipped, b.Role)
			continue
		}
		if err := page.WaitForSelector(ctx, b.Locator, f.waitTimeout); err != nil {
			f.logger.Warn("form.fill.field_missing", "locator", b.Locator, "role", b.Role, "err", err)
			report.Errors[b.Locator] = err.Error()
			continue
		}
		if err := page.Fill(ctx, b.Locator, v); err != nil {
			f.logger.Warn("form.fill.field_error", "locator", b.Locator, "role", b.Role, "err", err)
			report.Errors[b.Locator] = err.Error()
			continue
		}
		report.Filled = append(report.Filled, b.Role)
	}

	f.logger.Info("form.fill.done",
		"filled", len(report.Filled), "skipped", len(report.Skipped), "errors", len(report.Errors),
		"elapsed_ms", time.Since(start).Milliseconds())
	return report, nil
}
