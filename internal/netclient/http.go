package netclient

import (
	"compress/gzip"
	"compress/zlib"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/metabridge/scraper/internal/useragent"
)

const (
	defaultDialTimeout           = 5 * time.Second
	defaultTLSHandshakeTimeout   = 5 * time.Second
	defaultResponseHeaderTimeout = 10 * time.Second
	defaultRequestTimeout        = 30 * time.Second
	defaultIdleConnTimeout       = 90 * time.Second
	defaultMaxIdleConns          = 100
	defaultMaxConnsPerHost       = 100

	headerUserAgent      = "User-Agent"
	headerAccept         = "Accept"
	headerAcceptLanguage = "Accept-Language"
	headerAcceptEncoding = "Accept-Encoding"
	headerContentEncoding = "Content-Encoding"

	defaultAccept         = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	defaultAcceptLanguage = "en-US,en;q=0.9"
)

// HTTPClient is the C1 "lightweight HTTP client": a pooled keep-alive
// client with automatic decompression (gzip/deflate/brotli), fixed
// browser-like default headers, a 30s per-request timeout, and no cookie
// jar (the default http.Client has none unless a Jar is set).
// Grounded in the teacher's handle resolver's transport construction,
// stripped of its singleflight/cache coalescing — that responsibility
// belongs to the metadata cache + orchestrator, not the network client.
type HTTPClient struct {
	client    *http.Client
	userAgent string
}

// NewHTTPClient constructs an HTTPClient. userAgent, if empty, uses a
// random modern Chrome user agent from internal/useragent.
func NewHTTPClient(userAgent string) *HTTPClient {
	if userAgent == "" {
		userAgent = useragent.DefaultChromeUserAgent(nil)
	}
	return &HTTPClient{
		client: &http.Client{
			Timeout:   defaultRequestTimeout,
			Transport: defaultTransport(),
		},
		userAgent: userAgent,
	}
}

func defaultTransport() http.RoundTripper {
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout:   defaultTLSHandshakeTimeout,
		IdleConnTimeout:       defaultIdleConnTimeout,
		MaxIdleConns:          defaultMaxIdleConns,
		MaxConnsPerHost:       defaultMaxConnsPerHost,
		ResponseHeaderTimeout: defaultResponseHeaderTimeout,
		// Automatic gzip handling is disabled so we can also decode
		// brotli/deflate through the same code path in readBody.
		DisableCompression: true,
	}
}

// GetHTML fetches url with browser-like default headers and returns the
// decompressed body as a string.
func (c *HTTPClient) GetHTML(ctx context.Context, url string) (string, error) {
	body, err := c.do(ctx, url, nil)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// GetJSON fetches url with the given extra headers (merged over the
// default header set) and returns the raw decompressed body.
func (c *HTTPClient) GetJSON(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	return c.do(ctx, url, headers)
}

// OpenBrowserPage always returns (nil, nil): the plain HTTP client has no browser backing.
func (c *HTTPClient) OpenBrowserPage(context.Context, string) (PageHandle, error) {
	return nil, nil
}

func (c *HTTPClient) do(ctx context.Context, url string, extraHeaders map[string]string) ([]byte, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	request.Header.Set(headerUserAgent, c.userAgent)
	request.Header.Set(headerAccept, defaultAccept)
	request.Header.Set(headerAcceptLanguage, defaultAcceptLanguage)
	request.Header.Set(headerAcceptEncoding, "gzip, deflate, br")
	for key, value := range extraHeaders {
		request.Header.Set(key, value)
	}

	response, err := c.client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode >= 400 {
		return nil, fmt.Errorf("unexpected status %d for %s", response.StatusCode, url)
	}

	return readBody(response.Header.Get(headerContentEncoding), response.Body)
}

func readBody(contentEncoding string, body io.Reader) ([]byte, error) {
	switch contentEncoding {
	case "gzip":
		reader, err := gzip.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		defer reader.Close()
		return io.ReadAll(reader)
	case "deflate":
		reader, err := zlib.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("deflate reader: %w", err)
		}
		defer reader.Close()
		return io.ReadAll(reader)
	case "br":
		return io.ReadAll(brotli.NewReader(body))
	default:
		return io.ReadAll(body)
	}
}
