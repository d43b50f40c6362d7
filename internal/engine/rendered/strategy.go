// Package rendered scrapes JavaScript-heavy pages with a headless browser.
// Chrome renders the page and executes its scripts, then the settled DOM goes
// through the same selector pipeline the plain HTML strategy uses.
package rendered

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"

	"github.com/DONALDBZR/Crawly/internal/config"
	"github.com/DONALDBZR/Crawly/internal/engine"
	"github.com/DONALDBZR/Crawly/internal/engine/htmlpage"
	"github.com/DONALDBZR/Crawly/internal/retry"
	"github.com/DONALDBZR/Crawly/internal/runctx"
	"github.com/DONALDBZR/Crawly/pkg/models"
)

// Identifier is the registry key for this strategy.
const Identifier = "rendered_page"

// Options configures a Strategy. Zero values fall back to the application
// defaults.
type Options struct {
	// ChromePath points at the browser binary. Empty means auto-detect.
	ChromePath string

	// Headless launches the browser without a window.
	Headless bool

	// JSWait is how long the page is left to settle after load before the
	// DOM snapshot is taken.
	JSWait time.Duration

	UserAgent string

	// MaxResponseBytes caps the rendered document size.
	MaxResponseBytes int64

	// Selectors overlay the default selector map used during extraction.
	Selectors map[string]string
}

// Strategy renders a page in a fresh browser per run and hands the snapshot
// to an embedded htmlpage strategy for extraction and normalization. Script
// execution and readability stay off in the embedded strategy: the browser
// has already run the scripts, and the snapshot is the settled DOM.
type Strategy struct {
	inner      *htmlpage.Strategy
	chromePath string
	headless   bool
	jsWait     time.Duration
	userAgent  string
	maxBytes   int64
	policy     retry.Policy
}

// New builds a Strategy, validating any selector overrides and locating a
// browser binary when none is configured.
func New(opts Options) (*Strategy, error) {
	inner, err := htmlpage.New(htmlpage.Options{
		UserAgent:        opts.UserAgent,
		MaxResponseBytes: opts.MaxResponseBytes,
		Selectors:        opts.Selectors,
	})
	if err != nil {
		return nil, err
	}

	s := &Strategy{
		inner:      inner,
		chromePath: opts.ChromePath,
		headless:   opts.Headless,
		jsWait:     opts.JSWait,
		userAgent:  opts.UserAgent,
		maxBytes:   opts.MaxResponseBytes,
		policy:     retry.DefaultPolicy(),
	}
	if s.userAgent == "" {
		s.userAgent = config.DefaultUserAgent
	}
	if s.maxBytes <= 0 {
		s.maxBytes = config.DefaultMaxHTMLResponseBytes
	}
	if s.jsWait <= 0 {
		s.jsWait = config.DefaultJSWaitTime
	}
	if s.chromePath == "" {
		s.chromePath = FindChrome()
	}
	return s, nil
}

// Identifier returns the registry key for this strategy.
func (s *Strategy) Identifier() string {
	return Identifier
}

// WithSelectors returns a copy of the strategy using the given selector
// overrides during extraction.
func (s *Strategy) WithSelectors(selectors map[string]string) (engine.Strategy, error) {
	configured, err := s.inner.WithSelectors(selectors)
	if err != nil {
		return nil, err
	}
	clone := *s
	clone.inner = configured.(*htmlpage.Strategy)
	return &clone, nil
}

// Fetch renders the page in a browser and returns the settled DOM.
func (s *Strategy) Fetch(ctx context.Context, sc models.ScrapeContext) (models.RawPayload, error) {
	if strings.TrimSpace(sc.URL) == "" {
		return nil, &engine.FetchError{URL: sc.URL, StatusCode: http.StatusBadRequest, Message: "url cannot be empty"}
	}
	parsed, err := url.Parse(sc.URL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, &engine.FetchError{URL: sc.URL, StatusCode: http.StatusBadRequest, Message: "url must be absolute http or https", Err: err}
	}

	timeout := sc.Timeout
	if timeout <= 0 {
		timeout = config.DefaultHTTPTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	html, status, err := s.renderPage(ctx, sc.URL)
	if err != nil {
		return nil, &engine.FetchError{URL: sc.URL, StatusCode: http.StatusServiceUnavailable, Message: "browser run failed", Err: err}
	}
	if status >= 400 {
		return nil, &engine.FetchError{URL: sc.URL, StatusCode: status, Message: http.StatusText(status)}
	}
	if strings.TrimSpace(html) == "" {
		return nil, &engine.FetchError{URL: sc.URL, StatusCode: http.StatusInternalServerError, Message: "browser returned an empty document"}
	}
	if int64(len(html)) > s.maxBytes {
		return nil, &engine.FetchError{
			URL:        sc.URL,
			StatusCode: http.StatusRequestEntityTooLarge,
			Message:    fmt.Sprintf("rendered document exceeds %d bytes", s.maxBytes),
		}
	}

	logger := log.Logger
	if run, ok := runctx.From(ctx); ok {
		logger = logger.With().Str("run_id", run.ID).Logger()
	}
	logger.Debug().
		Str("url", sc.URL).
		Int("status", status).
		Int("bytes", len(html)).
		Int64("render_time_ms", time.Since(start).Milliseconds()).
		Msg("Render completed")

	return models.RawPayload(html), nil
}

// renderPage launches the browser, navigates, waits for scripts to settle,
// and snapshots the document. The status comes from the network response for
// the page URL itself; zero means no matching response was observed.
func (s *Strategy) renderPage(ctx context.Context, pageURL string) (string, int, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocatorOptions(s.chromePath, s.userAgent, s.headless)...)
	defer cancelAlloc()

	taskCtx, cancelTask := chromedp.NewContext(allocCtx)
	defer cancelTask()

	var statusCode int
	chromedp.ListenTarget(taskCtx, func(ev interface{}) {
		if resp, ok := ev.(*network.EventResponseReceived); ok {
			if resp.Response.URL == pageURL {
				statusCode = int(resp.Response.Status)
			}
		}
	})

	var html string
	err := chromedp.Run(taskCtx,
		network.Enable(),
		chromedp.Navigate(pageURL),
		chromedp.ActionFunc(func(ctx context.Context) error {
			// Leave client-side scripts time to populate the DOM.
			select {
			case <-time.After(s.jsWait):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", 0, err
	}
	return html, statusCode, nil
}

// Extract parses the rendered document with the shared selector pipeline.
func (s *Strategy) Extract(raw models.RawPayload) (models.ExtractedFields, error) {
	return s.inner.Extract(raw)
}

// Normalize shapes extracted fields into a web_page record.
func (s *Strategy) Normalize(fields models.ExtractedFields) (*models.NormalizedRecord, error) {
	return s.inner.Normalize(fields)
}

// ShouldRetry delegates to the shared transient-error policy: server errors
// and rate limiting are retried, other client errors are not.
func (s *Strategy) ShouldRetry(err error, attempt int) bool {
	return s.policy.Transient(err, attempt)
}
