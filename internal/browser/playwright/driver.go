// Package playwright implements browser.Browser on playwright-go's Chromium.
package playwright

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	pw "github.com/playwright-community/playwright-go"

	"github.com/joseph-ayodele/directory-submitter/internal/browser"
)

// Config controls the Chromium launch.
type Config struct {
	Headless bool
	Install  bool // download the driver and Chromium before starting
	Args     []string
}

var defaultArgs = []string{"--no-sandbox", "--disable-setuid-sandbox"}

// Driver owns one playwright process and one Chromium instance.
type Driver struct {
	pw      *pw.Playwright
	browser pw.Browser
	logger  *slog.Logger
}

// Launch starts playwright and Chromium.
func Launch(cfg Config, logger *slog.Logger) (*Driver, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Install {
		logger.Info("browser.install.start")
		if err := pw.Install(&pw.RunOptions{Browsers: []string{"chromium"}}); err != nil {
			return nil, fmt.Errorf("install playwright: %w", err)
		}
	}
	runner, err := pw.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}
	args := cfg.Args
	if len(args) == 0 {
		args = defaultArgs
	}
	b, err := runner.Chromium.Launch(pw.BrowserTypeLaunchOptions{
		Headless: pw.Bool(cfg.Headless),
		Args:     args,
	})
	if err != nil {
		_ = runner.Stop()
		return nil, fmt.Errorf("launch chromium: %w", err)
	}
	logger.Info("browser.launch.ok", "headless", cfg.Headless, "version", b.Version())
	return &Driver{pw: runner, browser: b, logger: logger}, nil
}

// NewPage creates a fresh browser context with its own page.
func (d *Driver) NewPage(ctx context.Context, opts browser.PageOptions) (browser.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	copts := pw.BrowserNewContextOptions{}
	if opts.UserAgent != "" {
		copts.UserAgent = pw.String(opts.UserAgent)
	}
	if opts.ViewportWidth > 0 && opts.ViewportHeight > 0 {
		copts.Viewport = &pw.Size{Width: opts.ViewportWidth, Height: opts.ViewportHeight}
	}
	bctx, err := d.browser.NewContext(copts)
	if err != nil {
		return nil, fmt.Errorf("new browser context: %w", err)
	}
	p, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("new page: %w", err)
	}
	return newPage(bctx, p), nil
}

func (d *Driver) Close() error {
	var errs []error
	if d.browser != nil {
		errs = append(errs, d.browser.Close())
	}
	if d.pw != nil {
		errs = append(errs, d.pw.Stop())
	}
	d.logger.Info("browser.closed")
	return errors.Join(errs...)
}

type page struct {
	bctx      pw.BrowserContext
	page      pw.Page
	clickedAt string // URL when Click was last called
	clickNavs int64  // navs when Click was last called

	navs      atomic.Int64 // committed main-frame navigations
	navigated chan struct{}
}

func newPage(bctx pw.BrowserContext, pg pw.Page) *page {
	p := &page{bctx: bctx, page: pg, navigated: make(chan struct{}, 1)}
	// fires for every committed document, including a POST back to the same URL
	pg.OnFrameNavigated(func(f pw.Frame) {
		if f != pg.MainFrame() {
			return
		}
		p.navs.Add(1)
		select {
		case p.navigated <- struct{}{}:
		default:
		}
	})
	return p
}

// left reports whether the page committed a navigation since the last Click.
func (p *page) left() bool {
	return p.navs.Load() > p.clickNavs || p.page.URL() != p.clickedAt
}

func ms(d time.Duration) *float64 { return pw.Float(float64(d.Milliseconds())) }

func (p *page) Goto(ctx context.Context, url string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.page.Goto(url, pw.PageGotoOptions{
		WaitUntil: pw.WaitUntilStateNetworkidle,
		Timeout:   ms(timeout),
	})
	return err
}

func (p *page) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.page.Screenshot(pw.PageScreenshotOptions{
		FullPage: pw.Bool(true),
		Type:     pw.ScreenshotTypePng,
	})
}

func (p *page) Content(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.page.Content()
}

func (p *page) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.page.Locator(selector).First().WaitFor(pw.LocatorWaitForOptions{
		State:   pw.WaitForSelectorStateAttached,
		Timeout: ms(timeout),
	})
}

func (p *page) Exists(ctx context.Context, selector string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	n, err := p.page.Locator(selector).Count()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (p *page) Fill(ctx context.Context, selector, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.page.Locator(selector).First().Fill(value)
}

func (p *page) Click(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.clickedAt = p.page.URL()
	p.clickNavs = p.navs.Load()
	select {
	case <-p.navigated:
	default:
	}
	return p.page.Locator(selector).First().Click()
}

const navPoll = 250 * time.Millisecond

func (p *page) WaitForNavigation(ctx context.Context, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(navPoll)
	defer tick.Stop()
	for !p.left() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("no navigation after submit: %w", context.DeadlineExceeded)
		case <-p.navigated:
		case <-tick.C:
		}
	}

	// the new document is committed; a page that never idles still counts
	_ = p.page.WaitForLoadState(pw.PageWaitForLoadStateOptions{
		State:   pw.LoadStateNetworkidle,
		Timeout: ms(timeout),
	})
	return nil
}

func (p *page) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.page.Locator("body").InnerText()
}

func (p *page) URL() string { return p.page.URL() }

func (p *page) Close() error { return p.bctx.Close() }
