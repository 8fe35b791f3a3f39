// Package netclient implements the C1 Network Clients capability: a
// pooled HTTP client for plain HTML/JSON fetches, and a browser-driven
// client that routes HTML navigation through the C2 browser context pool
// for JS-heavy or challenge-protected pages. Both share one capability
// interface so providers (internal/provider) depend on the interface, not
// on which implementation backs a given site.
package netclient

import "context"

// PageHandle is a live browser page whose lifetime the caller owns; it is
// returned by OpenBrowserPage and must be closed by the caller when done.
type PageHandle interface {
	// HTML returns the page's current rendered DOM as HTML.
	HTML(ctx context.Context) (string, error)
	// Close releases the page. Safe to call once.
	Close() error
}

// Client is the single capability surface the provider package scrapes
// through. getJson always uses the pooled HTTP client even on the
// browser-driven implementation — browser contexts are a scarce resource
// reserved for HTML navigation that needs JS/anti-bot handling.
type Client interface {
	// GetHTML fetches url and returns the response body as a string.
	GetHTML(ctx context.Context, url string) (string, error)

	// GetJSON fetches url with the given extra headers and returns the raw
	// response body for the caller to decode with a typed struct.
	GetJSON(ctx context.Context, url string, headers map[string]string) ([]byte, error)

	// OpenBrowserPage opens url in a live browser page and returns a handle,
	// or (nil, nil) if this client has no browser backing (the plain HTTP
	// client always returns (nil, nil)).
	OpenBrowserPage(ctx context.Context, url string) (PageHandle, error)
}
