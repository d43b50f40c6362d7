package engine

import (
	"context"
	"fmt"
	"time"
)

// Stage identifies the pipeline phase an error came from.
type Stage string

const (
	StageFetch     Stage = "fetch"
	StageExtract   Stage = "extraction"
	StageNormalize Stage = "normalization"
)

// Code returns the wire-level error code for the stage.
func (s Stage) Code() string {
	switch s {
	case StageFetch:
		return "FETCH_ERROR"
	case StageExtract:
		return "EXTRACT_ERROR"
	case StageNormalize:
		return "NORMALIZE_ERROR"
	default:
		return "SCRAPER_ERROR"
	}
}

// FetchError reports a transport-level failure. StatusCode is zero when no
// response was received at all.
type FetchError struct {
	URL        string
	StatusCode int
	Message    string
	Err        error
}

func (e *FetchError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("fetch %s: HTTP %d: %s", e.URL, e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	default:
		return fmt.Sprintf("fetch %s: %s", e.URL, e.Message)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// GetStatusCode lets retry predicates read the status without a type switch.
func (e *FetchError) GetStatusCode() int {
	return e.StatusCode
}

// Timeout reports whether the failure was a timeout, either from the
// transport or from the request context.
func (e *FetchError) Timeout() bool {
	if e.Err == nil {
		return false
	}
	if e.Err == context.DeadlineExceeded {
		return true
	}
	if t, ok := e.Err.(interface{ Timeout() bool }); ok {
		return t.Timeout()
	}
	return false
}

// ExtractionError reports that a payload could not be parsed into fields.
// Extraction failures are never retried.
type ExtractionError struct {
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extract: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("extract: %s", e.Reason)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// NormalizationError reports that extracted fields could not be shaped into a
// record. Normalization failures are never retried.
type NormalizationError struct {
	Reason string
	Err    error
}

func (e *NormalizationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("normalize: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("normalize: %s", e.Reason)
}

func (e *NormalizationError) Unwrap() error {
	return e.Err
}

// ScraperError is the terminal failure the orchestrator returns. It tags the
// stage that failed and carries how many fetch attempts were made and how
// long was spent waiting between them.
type ScraperError struct {
	Strategy string
	Stage    Stage
	Attempts int
	Backoff  time.Duration
	Err      error
}

func (e *ScraperError) Error() string {
	return fmt.Sprintf("%s: %s failed after %d attempt(s): %v", e.Strategy, e.Stage, e.Attempts, e.Err)
}

func (e *ScraperError) Unwrap() error {
	return e.Err
}
