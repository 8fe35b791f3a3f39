package netclient

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/andybalholm/brotli"
)

func TestHTTPClientGetHTMLPlainBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("expected a User-Agent header to be set")
		}
		w.Write([]byte("<html>ok</html>"))
	}))
	defer server.Close()

	client := NewHTTPClient("test-agent/1.0")
	html, err := client.GetHTML(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if html != "<html>ok</html>" {
		t.Errorf("html = %q", html)
	}
}

func TestHTTPClientDecodesGzip(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	gz.Write([]byte("gzip body"))
	gz.Close()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		w.Write(buf.Bytes())
	}))
	defer server.Close()

	client := NewHTTPClient("")
	html, err := client.GetHTML(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if html != "gzip body" {
		t.Errorf("html = %q, want decompressed gzip body", html)
	}
}

func TestHTTPClientDecodesDeflate(t *testing.T) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	zw.Write([]byte("deflate body"))
	zw.Close()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "deflate")
		w.Write(buf.Bytes())
	}))
	defer server.Close()

	client := NewHTTPClient("")
	html, err := client.GetHTML(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if html != "deflate body" {
		t.Errorf("html = %q, want decompressed deflate body", html)
	}
}

func TestHTTPClientDecodesBrotli(t *testing.T) {
	var buf bytes.Buffer
	bw := brotli.NewWriter(&buf)
	bw.Write([]byte("brotli body"))
	bw.Close()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "br")
		w.Write(buf.Bytes())
	}))
	defer server.Close()

	client := NewHTTPClient("")
	html, err := client.GetHTML(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if html != "brotli body" {
		t.Errorf("html = %q, want decompressed brotli body", html)
	}
}

func TestHTTPClientGetJSONMergesExtraHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("Accept header = %q, want application/json override", r.Header.Get("Accept"))
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := NewHTTPClient("")
	body, err := client.GetJSON(context.Background(), server.URL, map[string]string{"Accept": "application/json"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != `{"ok":true}` {
		t.Errorf("body = %q", body)
	}
}

func TestHTTPClientErrorsOnNon2xxStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewHTTPClient("")
	_, err := client.GetHTML(context.Background(), server.URL)
	if err == nil {
		t.Fatal("expected an error for a 404 response")
	}
}

func TestHTTPClientOpenBrowserPageAlwaysNil(t *testing.T) {
	client := NewHTTPClient("")
	page, err := client.OpenBrowserPage(context.Background(), "https://example.com")
	if page != nil || err != nil {
		t.Errorf("OpenBrowserPage() = (%v, %v), want (nil, nil)", page, err)
	}
}
