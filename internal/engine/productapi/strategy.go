// Package productapi scrapes JSON product endpoints. Real-world product
// APIs disagree on field names, so extraction tries a list of aliases per
// field and coerces the value to the canonical type.
package productapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/DONALDBZR/Crawly/internal/config"
	"github.com/DONALDBZR/Crawly/internal/engine"
	"github.com/DONALDBZR/Crawly/internal/retry"
	"github.com/DONALDBZR/Crawly/internal/runctx"
	"github.com/DONALDBZR/Crawly/pkg/models"
)

// Identifier is the registry key for this strategy.
const Identifier = "product_api"

const defaultUserAgent = "Crawly/1.0 (Product API Scraper)"

// Field aliases, in preference order.
var (
	idFields          = []string{"id", "product_id", "productId", "sku"}
	nameFields        = []string{"name", "title", "product_name", "productName"}
	priceFields       = []string{"price", "amount", "cost"}
	currencyFields    = []string{"currency", "currency_code"}
	descriptionFields = []string{"description", "desc", "details"}
	categoryFields    = []string{"category", "type", "product_type"}
	stockFields       = []string{"in_stock", "inStock", "available"}

	// supplementaryFields are lifted from the raw response into record
	// metadata when present.
	supplementaryFields = []string{
		"brand", "manufacturer", "weight", "dimensions",
		"color", "size", "rating", "reviews_count", "tags",
	}
)

// Options configures a Strategy. Zero values fall back to the application
// defaults.
type Options struct {
	Client           *http.Client
	UserAgent        string
	MaxResponseBytes int64
}

// Strategy fetches a product JSON document and normalizes it into a product
// record.
type Strategy struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
	policy    retry.Policy
}

// New builds a Strategy from options.
func New(opts Options) *Strategy {
	s := &Strategy{
		client:    opts.Client,
		userAgent: opts.UserAgent,
		maxBytes:  opts.MaxResponseBytes,
		policy:    retry.DefaultPolicy(),
	}
	if s.client == nil {
		s.client = &http.Client{}
	}
	if s.userAgent == "" {
		s.userAgent = defaultUserAgent
	}
	if s.maxBytes <= 0 {
		s.maxBytes = config.DefaultMaxAPIResponseBytes
	}
	return s
}

// Identifier returns the registry key for this strategy.
func (s *Strategy) Identifier() string {
	return Identifier
}

// Fetch retrieves the product document as a UTF-8 JSON payload.
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

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sc.URL, nil)
	if err != nil {
		return nil, &engine.FetchError{URL: sc.URL, StatusCode: http.StatusBadRequest, Message: "failed to create request", Err: err}
	}

	// Add default headers for JSON API
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", s.userAgent)

	// Add custom headers
	for key, value := range sc.Headers {
		if key != "" && value != "" {
			req.Header.Set(key, value)
		}
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
	if !utf8.Valid(raw) {
		return nil, &engine.FetchError{URL: sc.URL, StatusCode: http.StatusInternalServerError, Message: "response is not valid UTF-8"}
	}

	logger := log.Logger
	if run, ok := runctx.From(ctx); ok {
		logger = logger.With().Str("run_id", run.ID).Logger()
	}
	logger.Debug().
		Str("url", sc.URL).
		Int("status", resp.StatusCode).
		Int("bytes", len(raw)).
		Int64("response_time_ms", time.Since(start).Milliseconds()).
		Msg("Fetch completed")

	return models.RawPayload(raw), nil
}

// Extract parses the JSON document and resolves each product field through
// its alias list. product_id and product_name are required; everything else
// has a default.
func (s *Strategy) Extract(raw models.RawPayload) (models.ExtractedFields, error) {
	if len(raw) == 0 {
		return nil, &engine.ExtractionError{Reason: "empty payload"}
	}

	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &engine.ExtractionError{Reason: "failed to parse JSON", Err: err}
	}
	doc, ok := parsed.(map[string]any)
	if !ok {
		return nil, &engine.ExtractionError{Reason: "parsed JSON must be an object"}
	}

	fields := models.ExtractedFields{
		"product_id":   firstValue(doc, idFields),
		"product_name": firstValue(doc, nameFields),
		"price":        numericValue(doc, priceFields, 0),
		"currency":     stringValue(doc, currencyFields, "USD"),
		"description":  stringValue(doc, descriptionFields, ""),
		"category":     stringValue(doc, categoryFields, ""),
		"in_stock":     booleanValue(doc, stockFields, true),
		"raw_data":     doc,
	}

	if missing(fields["product_id"]) {
		return nil, &engine.ExtractionError{Reason: "missing critical field: product_id"}
	}
	if missing(fields["product_name"]) {
		return nil, &engine.ExtractionError{Reason: "missing critical field: product_name"}
	}

	return fields, nil
}

// Normalize shapes the extracted fields into a product record keyed by the
// product's own identifier.
func (s *Strategy) Normalize(fields models.ExtractedFields) (*models.NormalizedRecord, error) {
	if len(fields) == 0 {
		return nil, &engine.NormalizationError{Reason: "no extracted fields"}
	}
	if missing(fields["product_id"]) {
		return nil, &engine.NormalizationError{Reason: "cannot normalize without product_id"}
	}

	price, _ := fields["price"].(float64)
	inStock, _ := fields["in_stock"].(bool)

	data := map[string]any{
		"product_id":   asString(fields["product_id"]),
		"product_name": asString(fields["product_name"]),
		"price":        price,
		"currency":     asString(fields["currency"]),
		"description":  asString(fields["description"]),
		"category":     asString(fields["category"]),
		"in_stock":     inStock,
		"metadata":     s.metadata(fields),
	}

	return &models.NormalizedRecord{
		EntityType: "product",
		EntityID:   asString(fields["product_id"]),
		Timestamp:  time.Now().UTC(),
		Data:       data,
	}, nil
}

// ShouldRetry delegates to the shared transient-error policy.
func (s *Strategy) ShouldRetry(err error, attempt int) bool {
	return s.policy.Transient(err, attempt)
}

var coreFields = map[string]bool{
	"product_id": true, "product_name": true, "price": true, "currency": true,
	"description": true, "category": true, "in_stock": true, "raw_data": true,
}

// metadata collects non-core extracted keys plus supplementary fields from
// the raw response.
func (s *Strategy) metadata(fields models.ExtractedFields) map[string]any {
	metadata := make(map[string]any)
	for key, value := range fields {
		if !coreFields[key] {
			metadata[key] = value
		}
	}

	if raw, ok := fields["raw_data"].(map[string]any); ok {
		for _, field := range supplementaryFields {
			if value, present := raw[field]; present {
				if _, taken := metadata[field]; !taken {
					metadata[field] = value
				}
			}
		}
	}

	return metadata
}

// firstValue returns the first non-nil value among the aliases.
func firstValue(doc map[string]any, names []string) any {
	for _, name := range names {
		if value, ok := doc[name]; ok && value != nil {
			return value
		}
	}
	return nil
}

func stringValue(doc map[string]any, names []string, fallback string) string {
	value := firstValue(doc, names)
	if value == nil {
		return fallback
	}
	return asString(value)
}

func numericValue(doc map[string]any, names []string, fallback float64) float64 {
	value := firstValue(doc, names)
	switch v := value.(type) {
	case nil:
		return fallback
	case float64:
		return v
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
		return fallback
	default:
		return fallback
	}
}

func booleanValue(doc map[string]any, names []string, fallback bool) bool {
	value := firstValue(doc, names)
	switch v := value.(type) {
	case nil:
		return fallback
	case bool:
		return v
	case string:
		switch strings.ToLower(v) {
		case "true", "yes", "1", "available", "in-stock":
			return true
		default:
			return false
		}
	case float64:
		return v != 0
	default:
		return fallback
	}
}

// missing reports whether a required value is absent or empty.
func missing(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case float64:
		return v == 0
	case bool:
		return !v
	default:
		return false
	}
}

func asString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
