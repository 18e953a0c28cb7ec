// Package browser is the Browser Fetcher (C2): it drives a single headless
// Chromium instance, waits for JS-rendered pages to settle, and returns
// both the main-content inner text and the full outer HTML for downstream
// parsing. Only one browser runs per Fetcher; pages are opened and closed
// sequentially, matching the single-active-instance rule.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

const (
	navigationTimeout = 30 * time.Second
	hydrationWait     = 2 * time.Second
	contentSelector   = "#site-content"
)

// PageResult is the outcome of a single fetch_page call.
type PageResult struct {
	Status int
	Text   string
	HTML   string
}

// Fetcher drives a headless browser. It is not safe for concurrent use by
// more than one goroutine — callers that want parallelism across
// competitions must construct one Fetcher per worker.
type Fetcher struct {
	allocCtx   context.Context
	cancelAlloc context.CancelFunc
	headless   bool
}

// New creates a Fetcher. headless controls whether Chromium runs
// head-on-screen (useful for local debugging) or fully headless
// (the default in production).
func New(headless bool) *Fetcher {
	opts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.Flag("headless", headless))
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return &Fetcher{allocCtx: allocCtx, cancelAlloc: cancel, headless: headless}
}

// Close releases the underlying browser allocator.
func (f *Fetcher) Close() {
	f.cancelAlloc()
}

// FetchPage navigates to url, waits for the page load that
// chromedp.Navigate waits on plus the fixed hydrationWait delay, then
// extracts the main content region's
// inner text and the full outer HTML. On a 404 response it returns a
// PageResult with Status=404 and no text, never an error — 404 is a
// "not found", not a transport failure. It does not wait for network
// activity to go idle; requests still in flight after hydrationWait are
// not waited for.
func (f *Fetcher) FetchPage(ctx context.Context, url string) (PageResult, error) {
	taskCtx, cancel := chromedp.NewContext(f.allocCtx)
	defer cancel()
	taskCtx, cancelTimeout := context.WithTimeout(taskCtx, navigationTimeout)
	defer cancelTimeout()

	var html string
	var text string
	var status int64

	chromedp.ListenTarget(taskCtx, func(ev interface{}) {
		if e, ok := ev.(*network.EventResponseReceived); ok && e.Type == network.ResourceTypeDocument {
			atomic.StoreInt64(&status, e.Response.Status)
		}
	})

	err := chromedp.Run(taskCtx,
		chromedp.Navigate(url),
		chromedp.Sleep(hydrationWait),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.Evaluate(fmt.Sprintf(`(function(){var el=document.querySelector(%q); return el ? el.innerText : "";})()`, contentSelector), &text),
	)
	if err != nil {
		slog.Warn("browser: navigation failed", "url", url, "error", err)
		return PageResult{}, fmt.Errorf("browser: fetch page %s: %w", url, err)
	}

	if atomic.LoadInt64(&status) == 404 {
		return PageResult{Status: 404}, nil
	}

	return PageResult{Status: 200, Text: text, HTML: html}, nil
}

// FetchListPage navigates to a listing page and returns its outer HTML for
// a caller-supplied item extractor (see the parser package) to walk. It
// applies the same navigation/hydration wait as FetchPage.
func (f *Fetcher) FetchListPage(ctx context.Context, url string) (string, error) {
	taskCtx, cancel := chromedp.NewContext(f.allocCtx)
	defer cancel()
	taskCtx, cancelTimeout := context.WithTimeout(taskCtx, navigationTimeout)
	defer cancelTimeout()

	var html string
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(url),
		chromedp.Sleep(hydrationWait),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		slog.Warn("browser: list navigation failed", "url", url, "error", err)
		return "", fmt.Errorf("browser: fetch list page %s: %w", url, err)
	}
	return html, nil
}
