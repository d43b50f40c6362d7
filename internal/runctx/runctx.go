// Package runctx tags a context with a per-run identity so log lines from
// the orchestrator, the strategy and the store can be correlated when many
// runs interleave in one process.
package runctx

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"
)

type key int

const runKey key = 0

// Run identifies one orchestration run.
type Run struct {
	ID      string
	Started time.Time
}

// With returns a context carrying a fresh run identity. An identity already
// present is replaced: one Run call, one ID.
func With(ctx context.Context) context.Context {
	return context.WithValue(ctx, runKey, Run{
		ID:      newID(),
		Started: time.Now(),
	})
}

// From returns the run identity stored in ctx, or false when the context
// does not belong to an orchestration run.
func From(ctx context.Context) (Run, bool) {
	r, ok := ctx.Value(runKey).(Run)
	return r, ok
}

func newID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing means the process has bigger problems; a
		// constant ID keeps logging alive.
		return "0000000000000000"
	}
	return hex.EncodeToString(b)
}
