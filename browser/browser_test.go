package browser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"testing"
	"time"
)

// requireChrome skips the test when no Chromium/Chrome binary is on PATH.
// These tests exercise real navigation against an httptest server and are
// the only place in the module that needs an actual browser.
func requireChrome(t *testing.T) {
	t.Helper()
	for _, name := range []string{"google-chrome", "chromium", "chromium-browser"} {
		if _, err := exec.LookPath(name); err == nil {
			return
		}
	}
	t.Skip("no chromium/chrome binary on PATH")
}

func TestFetchPage_Success(t *testing.T) {
	requireChrome(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><div id="site-content">hello from the page</div></body></html>`))
	}))
	defer srv.Close()

	f := New(true)
	defer f.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	result, err := f.FetchPage(ctx, srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != 200 {
		t.Errorf("expected status 200, got %d", result.Status)
	}
	if result.Text == "" {
		t.Error("expected non-empty extracted text")
	}
}

func TestFetchPage_NotFound(t *testing.T) {
	requireChrome(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`<html><body>not found</body></html>`))
	}))
	defer srv.Close()

	f := New(true)
	defer f.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	result, err := f.FetchPage(ctx, srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != 404 {
		t.Errorf("expected status 404, got %d", result.Status)
	}
	if result.Text != "" {
		t.Errorf("expected no text on 404, got %q", result.Text)
	}
}
