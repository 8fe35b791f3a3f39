package netclient

import (
	"context"
	"fmt"

	"github.com/metabridge/scraper/internal/apierr"
)

// BrowserPage is the subset of the C2 browser pool's page handle this
// package depends on. internal/browser.Page satisfies it; kept narrow so
// netclient never imports internal/browser's chromedp machinery directly.
type BrowserPage interface {
	HTML(ctx context.Context) (string, error)
	Close() error
}

// Pool is the subset of the C2 browser context pool this package depends
// on: hand back a live page for a URL, already navigated and past any
// challenge-detection retry. readySelectors is the external-collaborator
// (provider) list of CSS selectors whose presence marks the page loaded.
type Pool interface {
	OpenPage(ctx context.Context, url string, readySelectors []string) (BrowserPage, error)
}

// BrowserClient is the browser-driven Client implementation: HTML
// navigation goes through the pooled browser context so JS-rendered or
// challenge-protected pages resolve correctly, while GetJSON always falls
// through to a plain pooled HTTP client. Per spec §4.2, browser contexts
// are a scarce resource and must not be spent on JSON endpoints.
type BrowserClient struct {
	pool           Pool
	http           *HTTPClient
	readySelectors []string
}

// NewBrowserClient constructs a BrowserClient backed by pool for HTML
// navigation and a private pooled HTTP client for JSON. readySelectors is
// this site's list of selectors the pool waits for before treating a page
// as loaded.
func NewBrowserClient(pool Pool, userAgent string, readySelectors []string) *BrowserClient {
	return &BrowserClient{pool: pool, http: NewHTTPClient(userAgent), readySelectors: readySelectors}
}

// GetHTML opens url in a pooled browser page, reads its rendered HTML,
// and closes the page.
func (c *BrowserClient) GetHTML(ctx context.Context, url string) (string, error) {
	page, err := c.pool.OpenPage(ctx, url, c.readySelectors)
	if err != nil {
		return "", fmt.Errorf("open browser page: %w", err)
	}
	if page == nil {
		return "", fmt.Errorf("open browser page %s: %w", url, apierr.ErrUpstreamTransient)
	}
	defer page.Close()

	html, err := page.HTML(ctx)
	if err != nil {
		return "", fmt.Errorf("read page html: %w", err)
	}
	return html, nil
}

// GetJSON delegates to the plain pooled HTTP client.
func (c *BrowserClient) GetJSON(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	return c.http.GetJSON(ctx, url, headers)
}

// OpenBrowserPage opens url in a pooled browser page and returns the
// handle to the caller, who is responsible for closing it.
func (c *BrowserClient) OpenBrowserPage(ctx context.Context, url string) (PageHandle, error) {
	page, err := c.pool.OpenPage(ctx, url, c.readySelectors)
	if err != nil {
		return nil, fmt.Errorf("open browser page: %w", err)
	}
	if page == nil {
		return nil, fmt.Errorf("open browser page %s: %w", url, apierr.ErrUpstreamTransient)
	}
	return page, nil
}
