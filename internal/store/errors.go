package store

import (
	"errors"
	"fmt"
	"time"
)

// ErrPoolClosed is returned by Acquire and Release after Close.
var ErrPoolClosed = errors.New("connection pool is closed")

// ConfigurationError reports an invalid pool or database configuration. It is
// returned at construction time only; a pool that came up healthy never
// produces one.
type ConfigurationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid store configuration: %s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid store configuration: %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// PoolExhaustedError reports that no connection became available within the
// acquisition timeout. The pool itself is healthy; callers may retry later.
type PoolExhaustedError struct {
	Capacity int
	Timeout  time.Duration
}

func (e *PoolExhaustedError) Error() string {
	return fmt.Sprintf("connection pool exhausted: no connection available within %s (capacity %d)", e.Timeout, e.Capacity)
}

// DatabaseError wraps a driver failure during statement execution so callers
// can distinguish storage faults from scraping faults.
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("database %s failed: %v", e.Op, e.Err)
}

func (e *DatabaseError) Unwrap() error {
	return e.Err
}
