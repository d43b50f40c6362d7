// Package htmlpage scrapes server-rendered HTML pages over plain HTTP.
// It is the default strategy: fast, no browser, goquery for parsing.
package htmlpage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/html/charset"

	"github.com/DONALDBZR/Crawly/internal/config"
	"github.com/DONALDBZR/Crawly/internal/engine"
	"github.com/DONALDBZR/Crawly/internal/engine/dom"
	"github.com/DONALDBZR/Crawly/internal/retry"
	"github.com/DONALDBZR/Crawly/internal/runctx"
	"github.com/DONALDBZR/Crawly/pkg/models"
)

// Identifier is the registry key for this strategy.
const Identifier = "html_page"

// defaultTitle is used when a page has neither a title nor a heading.
const defaultTitle = "Untitled Page"

// Selector keys with built-in defaults. Any other key in the selector map
// becomes a custom extracted field.
const (
	selPageTitle   = "page_title"
	selMainContent = "main_content"
)

var defaultSelectors = map[string]string{
	selPageTitle:   "title, h1",
	selMainContent: "main, article, .content, #content",
}

// Options configures a Strategy. Zero values fall back to the application
// defaults.
type Options struct {
	// Client is the HTTP client used for page and robots.txt requests.
	Client *http.Client

	UserAgent      string
	Accept         string
	AcceptLanguage string

	// MaxResponseBytes caps the raw body size before decoding.
	MaxResponseBytes int64

	// RespectRobots gates every fetch on the host's robots.txt.
	RespectRobots bool

	// RunScripts executes inline scripts in a sandboxed interpreter and
	// harvests the globals they define.
	RunScripts bool

	// UseReadability refines main_content with article extraction.
	UseReadability bool

	// Selectors overlay the default selector map. Each value is validated
	// at construction time.
	Selectors map[string]string
}

// Strategy fetches a page once per run: Fetch records the page URL, which
// Extract needs for link resolution and script execution.
type Strategy struct {
	client         *http.Client
	userAgent      string
	accept         string
	acceptLanguage string
	maxBytes       int64
	respectRobots  bool
	runScripts     bool
	useReadability bool
	selectors      map[string]string
	policy         retry.Policy

	pageURL string
}

// New builds a Strategy, validating any selector overrides.
func New(opts Options) (*Strategy, error) {
	s := &Strategy{
		client:         opts.Client,
		userAgent:      opts.UserAgent,
		accept:         opts.Accept,
		acceptLanguage: opts.AcceptLanguage,
		maxBytes:       opts.MaxResponseBytes,
		respectRobots:  opts.RespectRobots,
		runScripts:     opts.RunScripts,
		useReadability: opts.UseReadability,
		policy:         retry.DefaultPolicy(),
	}
	if s.client == nil {
		s.client = &http.Client{}
	}
	if s.userAgent == "" {
		s.userAgent = config.DefaultUserAgent
	}
	if s.accept == "" {
		s.accept = config.DefaultAccept
	}
	if s.acceptLanguage == "" {
		s.acceptLanguage = config.DefaultAcceptLanguage
	}
	if s.maxBytes <= 0 {
		s.maxBytes = config.DefaultMaxHTMLResponseBytes
	}

	selectors, err := mergeSelectors(defaultSelectors, opts.Selectors)
	if err != nil {
		return nil, err
	}
	s.selectors = selectors

	return s, nil
}

func mergeSelectors(base, overrides map[string]string) (map[string]string, error) {
	merged := make(map[string]string, len(base)+len(overrides))
	for key, sel := range base {
		merged[key] = sel
	}
	for key, sel := range overrides {
		if err := dom.ValidateSelector(sel); err != nil {
			return nil, fmt.Errorf("selector %q: %w", key, err)
		}
		merged[key] = sel
	}
	return merged, nil
}

// Identifier returns the registry key for this strategy.
func (s *Strategy) Identifier() string {
	return Identifier
}

// WithSelectors returns a copy of the strategy using the given selector
// overrides on top of the current map.
func (s *Strategy) WithSelectors(selectors map[string]string) (engine.Strategy, error) {
	merged, err := mergeSelectors(s.selectors, selectors)
	if err != nil {
		return nil, err
	}
	clone := *s
	clone.selectors = merged
	clone.pageURL = ""
	return &clone, nil
}

// Fetch retrieves the page body, decoded to UTF-8.
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

	if s.respectRobots && !s.allowedByRobots(ctx, parsed) {
		return nil, &engine.FetchError{URL: sc.URL, StatusCode: http.StatusForbidden, Message: "blocked by robots.txt"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sc.URL, nil)
	if err != nil {
		return nil, &engine.FetchError{URL: sc.URL, StatusCode: http.StatusBadRequest, Message: "failed to create request", Err: err}
	}

	// Set default headers
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", s.accept)
	req.Header.Set("Accept-Language", s.acceptLanguage)

	// Add custom headers
	for key, value := range sc.Headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &engine.FetchError{URL: sc.URL, StatusCode: http.StatusServiceUnavailable, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, &engine.FetchError{URL: sc.URL, StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	// The size cap applies to the raw body, before any decoding.
	raw, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBytes+1))
	if err != nil {
		return nil, &engine.FetchError{URL: sc.URL, StatusCode: http.StatusInternalServerError, Message: "failed to read response body", Err: err}
	}
	if int64(len(raw)) > s.maxBytes {
		return nil, &engine.FetchError{
			URL:        sc.URL,
			StatusCode: http.StatusRequestEntityTooLarge,
			Message:    fmt.Sprintf("response exceeds %d bytes", s.maxBytes),
		}
	}

	decoded, err := decodeBody(raw, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, &engine.FetchError{URL: sc.URL, StatusCode: http.StatusInternalServerError, Message: "failed to decode response body", Err: err}
	}

	s.pageURL = sc.URL

	logger := log.Logger
	if run, ok := runctx.From(ctx); ok {
		logger = logger.With().Str("run_id", run.ID).Logger()
	}
	logger.Debug().
		Str("url", sc.URL).
		Int("status", resp.StatusCode).
		Int("bytes", len(decoded)).
		Int64("response_time_ms", time.Since(start).Milliseconds()).
		Msg("Fetch completed")

	return models.RawPayload(decoded), nil
}

// decodeBody converts the raw body to UTF-8 using the charset declared in
// the Content-Type header, or sniffed from the body itself.
func decodeBody(raw []byte, contentType string) ([]byte, error) {
	reader, err := charset.NewReader(bytes.NewReader(raw), contentType)
	if err != nil {
		return raw, nil
	}
	return io.ReadAll(reader)
}

// Extract parses the fetched page into loosely typed fields.
func (s *Strategy) Extract(raw models.RawPayload) (models.ExtractedFields, error) {
	if len(raw) == 0 {
		return nil, &engine.ExtractionError{Reason: "empty payload"}
	}
	doc, err := dom.Parse(raw)
	if err != nil {
		return nil, &engine.ExtractionError{Reason: "failed to parse HTML", Err: err}
	}

	title := dom.FirstText(doc, s.selectors[selPageTitle])
	if title == "" {
		title = defaultTitle
	}
	rawText := dom.Text(doc)
	content := dom.FirstText(doc, s.selectors[selMainContent])
	if content == "" {
		content = rawText
	}

	contentHTML := string(raw)

	// Readability refines the selector-based extraction when it finds a
	// denser article body.
	if s.useReadability && s.pageURL != "" {
		if article, ok := readableContent(string(raw), s.pageURL); ok {
			if text := strings.TrimSpace(article.TextContent); text != "" {
				content = text
			}
			if article.Content != "" {
				contentHTML = article.Content
			}
			if title == defaultTitle && article.Title != "" {
				title = article.Title
			}
		}
	}

	custom := make(map[string]string)
	for key, sel := range s.selectors {
		if key == selPageTitle || key == selMainContent {
			continue
		}
		if value := dom.FirstText(doc, sel); value != "" {
			custom[key] = value
		}
	}

	fields := models.ExtractedFields{
		"page_title":       title,
		"main_content":     content,
		"content_html":     contentHTML,
		"description":      dom.MetaContent(doc, "description"),
		"extracted_fields": custom,
		"links":            dom.Links(doc),
		"images":           dom.Images(doc),
		"tables":           dom.Tables(doc),
		"raw_text":         rawText,
	}

	if s.runScripts {
		if globals := harvestScriptGlobals(raw, s.pageURL); len(globals) > 0 {
			fields["script_data"] = globals
		}
	}

	return fields, nil
}

// Normalize shapes extracted fields into a web_page record. The entity ID is
// derived from the title and content so the same page hashes to the same ID.
func (s *Strategy) Normalize(fields models.ExtractedFields) (*models.NormalizedRecord, error) {
	if len(fields) == 0 {
		return nil, &engine.NormalizationError{Reason: "no extracted fields"}
	}

	title, _ := fields["page_title"].(string)
	content, _ := fields["main_content"].(string)

	sum := sha256.Sum256([]byte(title + content))
	entityID := hex.EncodeToString(sum[:])[:16]

	links, _ := fields["links"].([]dom.Link)
	images, _ := fields["images"].([]dom.Image)
	tables, _ := fields["tables"].([]dom.Table)
	rawText, _ := fields["raw_text"].(string)

	metadata := map[string]any{
		"links_count":  len(links),
		"images_count": len(images),
		"tables_count": len(tables),
		"text_length":  len(rawText),
		"links":        capLinks(links),
		"images":       capImages(images),
		"tables":       tables,
	}
	if globals, ok := fields["script_data"].(map[string]string); ok && len(globals) > 0 {
		metadata["script_data"] = globals
	}

	custom, _ := fields["extracted_fields"].(map[string]string)
	if custom == nil {
		custom = map[string]string{}
	}
	description, _ := fields["description"].(string)
	contentHTML, _ := fields["content_html"].(string)

	data := map[string]any{
		"page_title":       title,
		"description":      description,
		"main_content":     content,
		"content_html":     contentHTML,
		"extracted_fields": custom,
		"metadata":         metadata,
	}

	return &models.NormalizedRecord{
		EntityType: "web_page",
		EntityID:   entityID,
		Timestamp:  time.Now().UTC(),
		Data:       data,
	}, nil
}

// ShouldRetry delegates to the shared transient-error policy: server errors
// and rate limiting are retried, other client errors are not.
func (s *Strategy) ShouldRetry(err error, attempt int) bool {
	return s.policy.Transient(err, attempt)
}

const metadataListCap = 10

func capLinks(links []dom.Link) []dom.Link {
	if len(links) > metadataListCap {
		return links[:metadataListCap]
	}
	return links
}

func capImages(images []dom.Image) []dom.Image {
	if len(images) > metadataListCap {
		return images[:metadataListCap]
	}
	return images
}
