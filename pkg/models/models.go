package models

import "time"

// ScrapeContext carries the immutable inputs for a single scrape run. It is
// passed by value through the pipeline; nothing mutates it after the run
// starts.
type ScrapeContext struct {
	URL         string            `json:"url"`
	Timeout     time.Duration     `json:"timeout"`
	MaxAttempts int               `json:"max_attempts"`
	BackoffBase time.Duration     `json:"backoff_base"`
	Headers     map[string]string `json:"headers,omitempty"`
	Selectors   map[string]string `json:"selectors,omitempty"`
}

// RawPayload is the opaque output of a fetch. Only the strategy that produced
// it knows how to interpret it.
type RawPayload []byte

// ExtractedFields is the loosely typed result of parsing a raw payload.
type ExtractedFields map[string]any

// NormalizedRecord is the canonical persistence-ready shape every strategy
// converges on. It is the only structure that crosses into the store layer.
type NormalizedRecord struct {
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Timestamp  time.Time      `json:"timestamp"`
	Data       map[string]any `json:"data"`
}

// AttemptRecord describes one fetch attempt for diagnostics.
type AttemptRecord struct {
	Attempt int           `json:"attempt"`
	Wait    time.Duration `json:"wait"`
	Err     string        `json:"error,omitempty"`
}
