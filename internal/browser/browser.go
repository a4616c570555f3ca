// Package browser is the small surface of a headless browser the submission
// pipeline needs. Each Page lives in its own isolated browser context.
package browser

import (
	"context"
	"time"
)

// PageOptions is the client identity presented to a directory site.
type PageOptions struct {
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
}

// Browser hands out isolated pages; no cookies or storage are shared between them.
type Browser interface {
	NewPage(ctx context.Context, opts PageOptions) (Page, error)
	Close() error
}

// Page is one tab in a fresh context. Close releases the whole context.
type Page interface {
	// Goto navigates and waits until the network is idle.
	Goto(ctx context.Context, url string, timeout time.Duration) error
	// Screenshot returns a full-page PNG.
	Screenshot(ctx context.Context) ([]byte, error)
	// Content returns the rendered markup.
	Content(ctx context.Context) (string, error)
	// WaitForSelector waits for the first match to be attached to the DOM.
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error
	Exists(ctx context.Context, selector string) (bool, error)
	// Fill clears the first match and types value into it.
	Fill(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error
	// WaitForNavigation waits for a new document after the last Click, including
	// a post-back to the same URL, then for the network to go idle.
	WaitForNavigation(ctx context.Context, timeout time.Duration) error
	// Text returns the visible text of the document body.
	Text(ctx context.Context) (string, error)
	URL() string
	Close() error
}
