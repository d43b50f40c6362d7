// Package engine contains the scraping core: the Strategy contract, the
// retry-aware orchestrator that drives it, and the registry strategies are
// resolved from at startup.
package engine

import (
	"context"

	"github.com/DONALDBZR/Crawly/pkg/models"
)

// Strategy is the pluggable unit of scraping. A strategy knows how to fetch
// one kind of source, pull fields out of the payload, and shape them into a
// normalized record. An instance serves one run at a time; resolve a fresh
// instance from the registry per run.
//
// Extract and Normalize perform no I/O. Fetch owns all network access and
// honors the timeout carried by the scrape context.
type Strategy interface {
	// Identifier returns the registry key, unique per strategy.
	Identifier() string

	// Fetch retrieves the raw payload for the context's URL.
	Fetch(ctx context.Context, sc models.ScrapeContext) (models.RawPayload, error)

	// Extract parses the payload into loosely typed fields.
	Extract(raw models.RawPayload) (models.ExtractedFields, error)

	// Normalize converts extracted fields into the canonical record.
	Normalize(fields models.ExtractedFields) (*models.NormalizedRecord, error)

	// ShouldRetry reports whether the failed fetch attempt (1-based) is worth
	// repeating. It is consulted only between attempts and only for fetch
	// errors; it must be deterministic for a given error and attempt.
	ShouldRetry(err error, attempt int) bool
}

// SelectorConfigurable is implemented by strategies that accept per-run
// selector overrides. WithSelectors returns a strategy using the given
// selectors, or an error if any selector fails to parse.
type SelectorConfigurable interface {
	WithSelectors(selectors map[string]string) (Strategy, error)
}
