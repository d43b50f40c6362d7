package htmlpage

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DONALDBZR/Crawly/internal/engine"
	"github.com/DONALDBZR/Crawly/internal/engine/dom"
	"github.com/DONALDBZR/Crawly/pkg/models"
)

const samplePage = `<!DOCTYPE html>
<html>
<head>
<title>Widget Catalog</title>
<meta name="description" content="All widgets, all the time">
</head>
<body>
<h1>Widget Catalog</h1>
<main>
<p>Our widgets ship worldwide.</p>
<a href="/widgets/1">Widget One</a>
<a href="https://example.com/widgets/2">Widget Two</a>
<img src="/img/w1.png" alt="Widget One">
<table>
<tr><th>Name</th><th>Price</th></tr>
<tr><td>Widget One</td><td>9.99</td></tr>
</table>
<h2 class="headline">Fresh stock</h2>
</main>
<script>var inventoryCount = 42;</script>
</body>
</html>`

func newTestStrategy(t *testing.T, opts Options) *Strategy {
	t.Helper()
	s, err := New(opts)
	if err != nil {
		t.Fatalf("Failed to build strategy: %v", err)
	}
	return s
}

func serveHTML(t *testing.T, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestStrategy_FetchSendsDefaultHeaders(t *testing.T) {
	var gotUA, gotAccept, gotLang, gotCustom string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		gotLang = r.Header.Get("Accept-Language")
		gotCustom = r.Header.Get("X-Api-Key")
		w.Write([]byte(samplePage))
	}))
	defer server.Close()

	s := newTestStrategy(t, Options{})
	_, err := s.Fetch(context.Background(), models.ScrapeContext{
		URL:     server.URL,
		Headers: map[string]string{"X-Api-Key": "secret", "User-Agent": "Custom/2.0"},
	})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if gotUA != "Custom/2.0" {
		t.Errorf("Expected custom header to override the default user agent, got %q", gotUA)
	}
	if !strings.Contains(gotAccept, "text/html") {
		t.Errorf("Expected HTML accept header, got %q", gotAccept)
	}
	if gotLang == "" {
		t.Error("Expected Accept-Language header to be set")
	}
	if gotCustom != "secret" {
		t.Errorf("Expected custom header to be sent, got %q", gotCustom)
	}
}

func TestStrategy_FetchRejectsEmptyURL(t *testing.T) {
	s := newTestStrategy(t, Options{})

	_, err := s.Fetch(context.Background(), models.ScrapeContext{URL: "  "})
	var fe *engine.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("Expected *engine.FetchError, got %T: %v", err, err)
	}
	if fe.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", fe.StatusCode)
	}
	if s.ShouldRetry(fe, 1) {
		t.Error("Expected invalid input to be final")
	}
}

func TestStrategy_FetchRejectsNonHTTPScheme(t *testing.T) {
	s := newTestStrategy(t, Options{})

	_, err := s.Fetch(context.Background(), models.ScrapeContext{URL: "ftp://example.com/file"})
	var fe *engine.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("Expected *engine.FetchError, got %T", err)
	}
	if fe.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", fe.StatusCode)
	}
}

func TestStrategy_FetchErrorCarriesStatus(t *testing.T) {
	cases := []struct {
		status    int
		retryable bool
	}{
		{http.StatusNotFound, false},
		{http.StatusForbidden, false},
		{http.StatusTooManyRequests, true},
		{http.StatusServiceUnavailable, true},
	}

	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))

		s := newTestStrategy(t, Options{})
		_, err := s.Fetch(context.Background(), models.ScrapeContext{URL: server.URL})
		server.Close()

		var fe *engine.FetchError
		if !errors.As(err, &fe) {
			t.Fatalf("Expected *engine.FetchError for status %d, got %T", tc.status, err)
		}
		if fe.GetStatusCode() != tc.status {
			t.Errorf("Expected status %d, got %d", tc.status, fe.GetStatusCode())
		}
		if got := s.ShouldRetry(fe, 1); got != tc.retryable {
			t.Errorf("ShouldRetry for status %d = %v, want %v", tc.status, got, tc.retryable)
		}
	}
}

func TestStrategy_FetchRejectsOversizedBody(t *testing.T) {
	server := serveHTML(t, strings.Repeat("x", 200))

	s := newTestStrategy(t, Options{MaxResponseBytes: 64})
	_, err := s.Fetch(context.Background(), models.ScrapeContext{URL: server.URL})

	var fe *engine.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("Expected *engine.FetchError, got %T: %v", err, err)
	}
	if fe.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected status 413, got %d", fe.StatusCode)
	}
	if s.ShouldRetry(fe, 1) {
		t.Error("Expected oversized response to be final")
	}
}

func TestStrategy_FetchDecodesLegacyCharset(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		w.Write([]byte("<html><body><main>caf\xe9</main></body></html>"))
	}))
	defer server.Close()

	s := newTestStrategy(t, Options{})
	raw, err := s.Fetch(context.Background(), models.ScrapeContext{URL: server.URL})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if !strings.Contains(string(raw), "café") {
		t.Errorf("Expected decoded UTF-8 body, got %q", string(raw))
	}
}

func TestStrategy_FetchTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Write([]byte(samplePage))
	}))
	defer server.Close()

	s := newTestStrategy(t, Options{})
	_, err := s.Fetch(context.Background(), models.ScrapeContext{URL: server.URL, Timeout: 50 * time.Millisecond})

	var fe *engine.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("Expected *engine.FetchError, got %T: %v", err, err)
	}
	if !fe.Timeout() {
		t.Error("Expected a timeout error")
	}
	if !s.ShouldRetry(fe, 1) {
		t.Error("Expected timeout to be retryable")
	}
}

func TestStrategy_RobotsDisallowBlocks(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("User-agent: *\nDisallow: /private/\n"))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(samplePage))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	s := newTestStrategy(t, Options{RespectRobots: true})

	_, err := s.Fetch(context.Background(), models.ScrapeContext{URL: server.URL + "/private/page.html"})
	var fe *engine.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("Expected *engine.FetchError, got %T: %v", err, err)
	}
	if fe.StatusCode != http.StatusForbidden {
		t.Errorf("Expected status 403, got %d", fe.StatusCode)
	}
	if s.ShouldRetry(fe, 1) {
		t.Error("Expected robots block to be final")
	}

	if _, err := s.Fetch(context.Background(), models.ScrapeContext{URL: server.URL + "/public/page.html"}); err != nil {
		t.Errorf("Expected allowed path to fetch, got %v", err)
	}
}

func TestStrategy_ExtractPageFields(t *testing.T) {
	s := newTestStrategy(t, Options{})

	fields, err := s.Extract(models.RawPayload(samplePage))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if fields["page_title"] != "Widget Catalog" {
		t.Errorf("Expected page title, got %v", fields["page_title"])
	}
	content, _ := fields["main_content"].(string)
	if !strings.Contains(content, "Our widgets ship worldwide.") {
		t.Errorf("Expected main content from <main>, got %q", content)
	}
	if fields["description"] != "All widgets, all the time" {
		t.Errorf("Expected meta description, got %v", fields["description"])
	}

	links, _ := fields["links"].([]dom.Link)
	if len(links) != 2 {
		t.Errorf("Expected 2 links, got %d", len(links))
	}
	images, _ := fields["images"].([]dom.Image)
	if len(images) != 1 {
		t.Errorf("Expected 1 image, got %d", len(images))
	}
	tables, _ := fields["tables"].([]dom.Table)
	if len(tables) != 1 {
		t.Fatalf("Expected 1 table, got %d", len(tables))
	}
	if len(tables[0].Headers) != 2 || tables[0].Headers[0] != "Name" {
		t.Errorf("Unexpected table headers: %v", tables[0].Headers)
	}

	rawText, _ := fields["raw_text"].(string)
	if !strings.Contains(rawText, "Fresh stock") {
		t.Error("Expected raw text to include content outside main selectors")
	}
}

func TestStrategy_ExtractDefaultsTitleWhenMissing(t *testing.T) {
	s := newTestStrategy(t, Options{})

	fields, err := s.Extract(models.RawPayload("<html><body><p>just text</p></body></html>"))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if fields["page_title"] != "Untitled Page" {
		t.Errorf("Expected default title, got %v", fields["page_title"])
	}
}

func TestStrategy_ExtractEmptyPayload(t *testing.T) {
	s := newTestStrategy(t, Options{})

	_, err := s.Extract(nil)
	var ee *engine.ExtractionError
	if !errors.As(err, &ee) {
		t.Fatalf("Expected *engine.ExtractionError, got %T", err)
	}
}

func TestStrategy_CustomSelectors(t *testing.T) {
	s := newTestStrategy(t, Options{})

	configured, err := s.WithSelectors(map[string]string{"headline": "h2.headline"})
	if err != nil {
		t.Fatalf("WithSelectors failed: %v", err)
	}

	fields, err := configured.Extract(models.RawPayload(samplePage))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	custom, _ := fields["extracted_fields"].(map[string]string)
	if custom["headline"] != "Fresh stock" {
		t.Errorf("Expected custom selector value, got %v", custom)
	}
}

func TestStrategy_RejectsInvalidSelector(t *testing.T) {
	if _, err := New(Options{Selectors: map[string]string{"bad": ":::nope"}}); err == nil {
		t.Error("Expected New to reject an invalid selector")
	}

	s := newTestStrategy(t, Options{})
	if _, err := s.WithSelectors(map[string]string{"bad": ":::nope"}); err == nil {
		t.Error("Expected WithSelectors to reject an invalid selector")
	}
}

func TestStrategy_ScriptHarvest(t *testing.T) {
	s := newTestStrategy(t, Options{RunScripts: true})

	fields, err := s.Extract(models.RawPayload(samplePage))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	globals, _ := fields["script_data"].(map[string]string)
	if globals["js:inventoryCount"] != "42" {
		t.Errorf("Expected harvested script global, got %v", globals)
	}
}

func TestStrategy_NormalizeShapesRecord(t *testing.T) {
	s := newTestStrategy(t, Options{})

	fields, err := s.Extract(models.RawPayload(samplePage))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	record, err := s.Normalize(fields)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	if record.EntityType != "web_page" {
		t.Errorf("Expected entity type web_page, got %q", record.EntityType)
	}
	if len(record.EntityID) != 16 {
		t.Errorf("Expected 16-char entity ID, got %q", record.EntityID)
	}
	if record.Timestamp.IsZero() {
		t.Error("Expected a timestamp")
	}

	metadata, _ := record.Data["metadata"].(map[string]any)
	if metadata == nil {
		t.Fatal("Expected metadata in record data")
	}
	if metadata["links_count"] != 2 || metadata["images_count"] != 1 || metadata["tables_count"] != 1 {
		t.Errorf("Unexpected metadata counts: %v", metadata)
	}

	// Same page, same identity.
	again, err := s.Normalize(fields)
	if err != nil {
		t.Fatalf("Second normalize failed: %v", err)
	}
	if again.EntityID != record.EntityID {
		t.Errorf("Expected deterministic entity ID, got %q and %q", record.EntityID, again.EntityID)
	}
}

func TestStrategy_NormalizeCapsMetadataLists(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><head><title>Links</title></head><body><main>")
	for i := 0; i < 15; i++ {
		b.WriteString(`<a href="/page">link</a>`)
	}
	b.WriteString("</main></body></html>")

	s := newTestStrategy(t, Options{})
	fields, err := s.Extract(models.RawPayload(b.String()))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	record, err := s.Normalize(fields)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	metadata, _ := record.Data["metadata"].(map[string]any)
	if metadata["links_count"] != 15 {
		t.Errorf("Expected links_count 15, got %v", metadata["links_count"])
	}
	links, _ := metadata["links"].([]dom.Link)
	if len(links) != 10 {
		t.Errorf("Expected metadata links capped at 10, got %d", len(links))
	}
}

func TestStrategy_NormalizeRejectsEmptyFields(t *testing.T) {
	s := newTestStrategy(t, Options{})

	_, err := s.Normalize(nil)
	var ne *engine.NormalizationError
	if !errors.As(err, &ne) {
		t.Fatalf("Expected *engine.NormalizationError, got %T", err)
	}
}

func TestStrategy_ReadabilityRefinesContent(t *testing.T) {
	page := `<!DOCTYPE html>
<html>
<head><title>Shipping Update</title></head>
<body>
<nav><a href="/">home</a><a href="/about">about</a></nav>
<article>
<h1>Shipping Update</h1>
<p>All widget orders placed before noon now ship the same day from our
central warehouse, and tracking numbers are issued within the hour.</p>
<p>Orders placed after noon ship the next business day. Weekend orders are
collected on Monday morning and follow the regular schedule.</p>
</article>
</body>
</html>`
	server := serveHTML(t, page)

	s := newTestStrategy(t, Options{UseReadability: true})
	raw, err := s.Fetch(context.Background(), models.ScrapeContext{URL: server.URL})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	fields, err := s.Extract(raw)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	content, _ := fields["main_content"].(string)
	if !strings.Contains(content, "ship the same day") {
		t.Errorf("Expected article body in main content, got %q", content)
	}
	if fields["page_title"] != "Shipping Update" {
		t.Errorf("Expected page title, got %v", fields["page_title"])
	}
}

func TestStrategy_RunThroughOrchestrator(t *testing.T) {
	server := serveHTML(t, samplePage)

	s := newTestStrategy(t, Options{})
	result, err := engine.NewOrchestrator(s).Run(context.Background(), models.ScrapeContext{
		URL:         server.URL,
		MaxAttempts: 2,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Record.EntityType != "web_page" {
		t.Errorf("Expected web_page record, got %q", result.Record.EntityType)
	}
	if len(result.Attempts) != 1 {
		t.Errorf("Expected a single attempt, got %d", len(result.Attempts))
	}
}

func TestStrategy_RetriesThenSucceeds(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(samplePage))
	}))
	defer server.Close()

	s := newTestStrategy(t, Options{})
	result, err := engine.NewOrchestrator(s).Run(context.Background(), models.ScrapeContext{
		URL:         server.URL,
		MaxAttempts: 3,
		BackoffBase: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if calls != 2 {
		t.Errorf("Expected 2 fetch calls, got %d", calls)
	}
	if len(result.Attempts) != 2 {
		t.Errorf("Expected 2 attempts recorded, got %d", len(result.Attempts))
	}
}
