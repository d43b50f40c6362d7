// Package retry classifies fetch failures as transient or permanent. The
// orchestrator owns the retry loop itself; strategies delegate their
// ShouldRetry decision to a Policy from this package.
package retry

import (
	"context"
	"errors"
	"net/http"
)

// StatusCoder is implemented by errors that carry an HTTP status code.
type StatusCoder interface {
	GetStatusCode() int
}

// Policy decides whether a failed attempt is worth repeating.
type Policy struct {
	// MaxAttempts is the policy's own ceiling, independent of the
	// orchestrator's. Attempt numbers at or above it are never retried.
	MaxAttempts int
	// RetryableStatusCodes are retried in addition to all 5xx responses.
	RetryableStatusCodes []int
}

// DefaultPolicy retries server errors and rate limiting, up to three
// attempts.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:          3,
		RetryableStatusCodes: []int{http.StatusTooManyRequests},
	}
}

// Transient reports whether the failed attempt (1-based) should be retried.
// Server errors (5xx) and the policy's extra status codes are transient,
// other 4xx responses are permanent, timeouts and unclassified network
// failures are transient.
func (p Policy) Transient(err error, attempt int) bool {
	if err == nil {
		return false
	}
	if attempt >= p.MaxAttempts {
		return false
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		code := sc.GetStatusCode()
		switch {
		case code >= 500:
			return true
		case p.retryableCode(code):
			return true
		case code >= 400:
			return false
		}
		// No status recorded: fall through to the transport checks.
	}

	if isTimeoutError(err) {
		return true
	}
	if temp, ok := err.(interface{ Temporary() bool }); ok {
		return temp.Temporary()
	}

	return true
}

func (p Policy) retryableCode(code int) bool {
	for _, c := range p.RetryableStatusCodes {
		if code == c {
			return true
		}
	}
	return false
}

func isTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if timeoutErr, ok := err.(interface{ Timeout() bool }); ok {
		return timeoutErr.Timeout()
	}
	return false
}
