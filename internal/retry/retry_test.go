package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type codedError struct {
	code int
}

func (e *codedError) Error() string {
	return fmt.Sprintf("status %d", e.code)
}

func (e *codedError) GetStatusCode() int {
	return e.code
}

type timeoutError struct{}

func (timeoutError) Error() string { return "timed out" }
func (timeoutError) Timeout() bool { return true }

func TestPolicy_Transient_StatusCodes(t *testing.T) {
	p := DefaultPolicy()

	cases := []struct {
		code int
		want bool
	}{
		{500, true},
		{502, true},
		{503, true},
		{429, true},
		{404, false},
		{403, false},
		{400, false},
	}
	for _, tc := range cases {
		got := p.Transient(&codedError{code: tc.code}, 1)
		if got != tc.want {
			t.Errorf("Transient(status %d) = %v, want %v", tc.code, got, tc.want)
		}
	}
}

func TestPolicy_Transient_CeilingStopsRetries(t *testing.T) {
	p := DefaultPolicy()
	err := &codedError{code: 503}

	if !p.Transient(err, 2) {
		t.Error("Expected attempt 2 of 3 to be retryable")
	}
	if p.Transient(err, 3) {
		t.Error("Expected attempt 3 of 3 to be final")
	}
	if p.Transient(err, 7) {
		t.Error("Expected attempt beyond the ceiling to be final")
	}
}

func TestPolicy_Transient_Timeouts(t *testing.T) {
	p := DefaultPolicy()

	if !p.Transient(timeoutError{}, 1) {
		t.Error("Expected timeout errors to be transient")
	}
	if !p.Transient(context.DeadlineExceeded, 1) {
		t.Error("Expected deadline exceeded to be transient")
	}
}

func TestPolicy_Transient_UnknownErrorsRetryBelowCeiling(t *testing.T) {
	p := DefaultPolicy()
	err := errors.New("connection reset by peer")

	if !p.Transient(err, 1) {
		t.Error("Expected unclassified errors to be transient below the ceiling")
	}
	if p.Transient(err, 3) {
		t.Error("Expected unclassified errors to be final at the ceiling")
	}
}

func TestPolicy_Transient_NilError(t *testing.T) {
	p := DefaultPolicy()
	if p.Transient(nil, 1) {
		t.Error("Expected nil error to never be retryable")
	}
}

func TestPolicy_Transient_WrappedStatusCode(t *testing.T) {
	p := DefaultPolicy()
	wrapped := fmt.Errorf("fetching page: %w", &codedError{code: 404})

	if p.Transient(wrapped, 1) {
		t.Error("Expected wrapped client error to be final")
	}
}
