package llm

import (
	"context"

	"github.com/joseph-ayodele/directory-submitter/internal/entity"
)

// AnalyzeRequest is one rendered submission page.
type AnalyzeRequest struct {
	DirectoryName string
	Screenshot    []byte // PNG, full page
	HTML          string // full markup; trimmed before sending
}

// FieldAnalyzer maps a page's form controls to semantic roles.
// A zero-field mapping is reported as an error.
type FieldAnalyzer interface {
	Analyze(ctx context.Context, req AnalyzeRequest) (entity.FieldMapping, []byte /*rawJSON*/, error)
}
