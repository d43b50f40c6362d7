package store

import (
	"context"

	"github.com/DONALDBZR/Crawly/internal/sanitize"
)

// Factory owns exactly one Pool and hands out Handlers bound to it. Every
// handler created by the same factory shares the pool, so connection
// admission is controlled in one place per process.
type Factory struct {
	pool *Pool
	san  sanitize.Sanitizer
}

// NewFactory builds the shared pool from cfg. A nil sanitizer falls back to
// the strict default for every handler the factory produces.
func NewFactory(ctx context.Context, cfg Config, san sanitize.Sanitizer) (*Factory, error) {
	pool, err := New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if san == nil {
		san = sanitize.NewStrict()
	}
	return &Factory{pool: pool, san: san}, nil
}

// Handler returns a new Handler sharing the factory's pool.
func (f *Factory) Handler() *Handler {
	return NewHandler(f.pool, f.san)
}

// Pool exposes the shared pool for introspection.
func (f *Factory) Pool() *Pool {
	return f.pool
}

// Close shuts down the shared pool. Handlers created earlier stop working.
func (f *Factory) Close() error {
	return f.pool.Close()
}
