// Package browsertest provides an in-memory browser.Browser for tests.
package browsertest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/joseph-ayodele/directory-submitter/internal/browser"
)

// Site scripts how a fake page behaves for one URL.
type Site struct {
	HTML        string
	Screenshot  []byte
	Selectors   []string // selectors present on the page
	AfterSubmit string   // body text after any click
	NextURL     string   // set to navigate on click
	PostBack    bool     // click reloads the same URL
	GotoErr     error
	FillErr     map[string]error // per selector
	ClickErr    error
	Fills       map[string]string // recorded by the fake
}

// Browser serves pages from Sites keyed by URL.
type Browser struct {
	mu     sync.Mutex
	Sites  map[string]*Site
	Opened int
	Closed int
	Err    error
}

func New() *Browser { return &Browser{Sites: map[string]*Site{}} }

func (b *Browser) NewPage(ctx context.Context, _ browser.PageOptions) (browser.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Err != nil {
		return nil, b.Err
	}
	b.Opened++
	return &Page{b: b}, nil
}

func (b *Browser) Close() error { return nil }

// OpenPages reports pages opened but not yet closed.
func (b *Browser) OpenPages() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Opened - b.Closed
}

type Page struct {
	b       *Browser
	site    *Site
	url     string
	clicked bool
	Clicks  []string
}

var errNoSite = errors.New("net::ERR_NAME_NOT_RESOLVED")

func (p *Page) Goto(ctx context.Context, url string, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.b.mu.Lock()
	site := p.b.Sites[url]
	p.b.mu.Unlock()
	if site == nil {
		return errNoSite
	}
	if site.GotoErr != nil {
		return site.GotoErr
	}
	p.site, p.url = site, url
	if site.Fills == nil {
		site.Fills = map[string]string{}
	}
	return nil
}

func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	if p.site == nil {
		return nil, errNoSite
	}
	if len(p.site.Screenshot) == 0 {
		return []byte("\x89PNG\r\n\x1a\nfake"), nil
	}
	return p.site.Screenshot, nil
}

func (p *Page) Content(ctx context.Context) (string, error) {
	if p.site == nil {
		return "", errNoSite
	}
	return p.site.HTML, nil
}

func (p *Page) has(sel string) bool {
	if p.site == nil {
		return false
	}
	for _, s := range p.site.Selectors {
		if s == sel {
			return true
		}
	}
	return false
}

func (p *Page) WaitForSelector(ctx context.Context, sel string, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !p.has(sel) {
		return errors.New("timeout waiting for " + sel)
	}
	return nil
}

func (p *Page) Exists(ctx context.Context, sel string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return p.has(sel), nil
}

func (p *Page) Fill(ctx context.Context, sel, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.site == nil {
		return errNoSite
	}
	if err := p.site.FillErr[sel]; err != nil {
		return err
	}
	p.b.mu.Lock()
	p.site.Fills[sel] = value
	p.b.mu.Unlock()
	return nil
}

func (p *Page) Click(ctx context.Context, sel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.site == nil {
		return errNoSite
	}
	p.Clicks = append(p.Clicks, sel)
	if p.site.ClickErr != nil {
		return p.site.ClickErr
	}
	p.clicked = true
	return nil
}

func (p *Page) WaitForNavigation(ctx context.Context, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.clicked && p.site != nil && p.site.NextURL != "" {
		p.url = p.site.NextURL
		return nil
	}
	if p.clicked && p.site != nil && p.site.PostBack {
		return nil
	}
	return errors.New("no navigation")
}

func (p *Page) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if p.site == nil {
		return "", errNoSite
	}
	if p.clicked {
		return p.site.AfterSubmit, nil
	}
	return p.site.HTML, nil
}

func (p *Page) URL() string { return p.url }

func (p *Page) Close() error {
	p.b.mu.Lock()
	p.b.Closed++
	p.b.mu.Unlock()
	return nil
}
