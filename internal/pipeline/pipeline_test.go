package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/directory-submitter/constants"
	"github.com/joseph-ayodele/directory-submitter/internal/browser/browsertest"
	"github.com/joseph-ayodele/directory-submitter/internal/common"
	"github.com/joseph-ayodele/directory-submitter/internal/entity"
	"github.com/joseph-ayodele/directory-submitter/internal/evidence"
	"github.com/joseph-ayodele/directory-submitter/internal/form"
	"github.com/joseph-ayodele/directory-submitter/internal/llm"
	"github.com/joseph-ayodele/directory-submitter/internal/pipeline"
)

type fakeAnalyzer struct {
	mapping entity.FieldMapping
	err     error
	panic   bool
	seen    []llm.AnalyzeRequest
}

func (f *fakeAnalyzer) Analyze(_ context.Context, req llm.AnalyzeRequest) (entity.FieldMapping, []byte, error) {
	if f.panic {
		panic("boom")
	}
	f.seen = append(f.seen, req)
	return f.mapping, nil, f.err
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

var dir = entity.Directory{Name: "Launch List", URL: "https://launch.example/add"}

var mapping = entity.FieldMapping{
	{Locator: "#name", Role: constants.RoleCompanyName},
	{Locator: "#url", Role: constants.RoleCompanyURL},
	{Locator: "#send", Role: constants.RoleSubmitButton},
}

func newPipeline(b *browsertest.Browser, a llm.FieldAnalyzer, store evidence.Store) *pipeline.Pipeline {
	return pipeline.New(discard(), pipeline.Config{}, b, a,
		form.NewFiller(0, discard()),
		form.NewSubmitter(form.SubmitterOptions{}, discard()),
		store)
}

func profile() *entity.BusinessProfile {
	return &entity.BusinessProfile{Name: "Acme", URL: "https://acme.example"}
}

func TestAttempt_Success(t *testing.T) {
	b := browsertest.New()
	site := &browsertest.Site{
		HTML:        "<form><input id=name></form>",
		Selectors:   []string{"#name", "#url", "#send"},
		AfterSubmit: "Thank you for your submission!",
		NextURL:     "https://launch.example/thanks",
	}
	b.Sites[dir.URL] = site
	a := &fakeAnalyzer{mapping: mapping}
	store := evidence.NewLocalStore(t.TempDir())

	ctx := common.WithJobID(context.Background(), "job-42")
	res := newPipeline(b, a, store).Attempt(ctx, dir, profile())

	assert.Equal(t, constants.ResultStatusSuccess, res.Outcome)
	assert.Nil(t, res.Error)
	require.NotNil(t, res.SubmissionURL)
	assert.Equal(t, "https://launch.example/thanks", *res.SubmissionURL)
	assert.Equal(t, "AI analysis found 3 fields. Success indicators found on page", res.Notes)
	require.NotNil(t, res.EvidenceRef)
	assert.Contains(t, *res.EvidenceRef, "job-42")
	assert.Equal(t, "Acme", site.Fills["#name"])
	require.Len(t, a.seen, 1)
	assert.Equal(t, "Launch List", a.seen[0].DirectoryName)
	assert.Equal(t, site.HTML, a.seen[0].HTML)
	assert.Zero(t, b.OpenPages())
}

func TestAttempt_AnalyzerFailure(t *testing.T) {
	for name, tc := range map[string]struct {
		analyzer *fakeAnalyzer
		want     string
	}{
		"error": {&fakeAnalyzer{err: errors.New("model unavailable")}, "AI analysis failed: model unavailable"},
		"empty": {&fakeAnalyzer{}, pipeline.MsgAnalysisFailed},
	} {
		t.Run(name, func(t *testing.T) {
			b := browsertest.New()
			b.Sites[dir.URL] = &browsertest.Site{Selectors: []string{"#name"}}

			res := newPipeline(b, tc.analyzer, nil).Attempt(context.Background(), dir, profile())
			assert.Equal(t, constants.ResultStatusFailed, res.Outcome)
			require.NotNil(t, res.Error)
			assert.Equal(t, tc.want, *res.Error)
			assert.Equal(t, "Failed during analysis: "+tc.want, res.Notes)
			assert.False(t, res.Transient)
			assert.Zero(t, b.OpenPages())
		})
	}
}

func TestAttempt_NavigationIsTransient(t *testing.T) {
	b := browsertest.New()
	b.Sites[dir.URL] = &browsertest.Site{GotoErr: errors.New("Timeout 30000ms exceeded")}

	res := newPipeline(b, &fakeAnalyzer{mapping: mapping}, nil).Attempt(context.Background(), dir, profile())
	assert.Equal(t, constants.ResultStatusFailed, res.Outcome)
	assert.True(t, res.Transient)
	assert.Equal(t, "Failed during navigation: Timeout 30000ms exceeded", res.Notes)
	assert.Zero(t, b.OpenPages())
}

func TestAttempt_NoSubmitControl(t *testing.T) {
	b := browsertest.New()
	b.Sites[dir.URL] = &browsertest.Site{Selectors: []string{"#name"}}
	a := &fakeAnalyzer{mapping: entity.FieldMapping{{Locator: "#name", Role: constants.RoleCompanyName}}}

	res := newPipeline(b, a, nil).Attempt(context.Background(), dir, profile())
	assert.Equal(t, constants.ResultStatusFailed, res.Outcome)
	require.NotNil(t, res.Error)
	assert.Equal(t, form.MsgNoSubmitButton, *res.Error)
	assert.Equal(t, "AI analysis found 1 fields. Could not locate submit button", res.Notes)
	assert.Nil(t, res.EvidenceRef)
}

func TestAttempt_PanicRecovered(t *testing.T) {
	b := browsertest.New()
	b.Sites[dir.URL] = &browsertest.Site{}

	res := newPipeline(b, &fakeAnalyzer{panic: true}, nil).Attempt(context.Background(), dir, profile())
	assert.Equal(t, constants.ResultStatusFailed, res.Outcome)
	require.NotNil(t, res.Error)
	assert.Contains(t, *res.Error, "boom")
	assert.Zero(t, b.OpenPages())
}

func TestAttempt_BrowserUnavailable(t *testing.T) {
	b := browsertest.New()
	b.Err = errors.New("browser has been closed")

	res := newPipeline(b, &fakeAnalyzer{}, nil).Attempt(context.Background(), dir, profile())
	assert.Equal(t, constants.ResultStatusFailed, res.Outcome)
	assert.Equal(t, "Failed during browser: browser has been closed", res.Notes)
}
