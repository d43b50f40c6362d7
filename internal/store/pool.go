// Package store provides the pooled persistence layer: a fixed-capacity
// connection pool, a statement handler that sanitizes every parameter, and a
// factory that shares one pool across handlers.
package store

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	_ "modernc.org/sqlite"
)

const (
	// DefaultPoolSize matches the upstream service default.
	DefaultPoolSize = 5
	// DefaultAcquireTimeout bounds how long Acquire blocks before reporting
	// exhaustion.
	DefaultAcquireTimeout = 10 * time.Second

	backfillTimeout = 5 * time.Second
)

// Config describes a connection pool. Zero values fall back to defaults where
// a default exists; PoolSize and DSN are validated by New.
type Config struct {
	Driver         string
	DSN            string
	PoolSize       int
	AcquireTimeout time.Duration
	ResetSession   bool
	// ResetQuery runs on a connection before it re-enters the idle set when
	// ResetSession is on (for example "DISCARD ALL" on postgres). When empty
	// the connection is ping-validated instead.
	ResetQuery string
}

// Conn is a pooled database connection. It is pinned to a single underlying
// session for its lifetime so session state survives across statements.
type Conn struct {
	sc  *sql.Conn
	bad bool
}

// QueryContext runs a query on the pinned session.
func (c *Conn) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.sc.QueryContext(ctx, query, args...)
}

// ExecContext runs a statement on the pinned session.
func (c *Conn) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.sc.ExecContext(ctx, query, args...)
}

// BeginTx starts a transaction on the pinned session.
func (c *Conn) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	return c.sc.BeginTx(ctx, opts)
}

// PingContext verifies the pinned session is still alive.
func (c *Conn) PingContext(ctx context.Context) error {
	return c.sc.PingContext(ctx)
}

// MarkBad flags the connection so Release discards it instead of returning it
// to the idle set. Use after errors that indicate a broken session.
func (c *Conn) MarkBad() {
	c.bad = true
}

func (c *Conn) close() {
	if err := c.sc.Close(); err != nil {
		log.Debug().Err(err).Msg("Closing pooled connection")
	}
}

// Pool is a fixed-capacity pool of pinned database connections. The buffered
// channel is the idle set; capacity never changes after construction.
type Pool struct {
	db             *sql.DB
	size           int
	idle           chan *Conn
	acquireTimeout time.Duration
	resetSession   bool
	resetQuery     string

	mu      sync.Mutex
	closed  bool
	deficit int
}

// New opens the database, probes it, and pins cfg.PoolSize dedicated
// connections. Any failure is reported as a *ConfigurationError and nothing
// is left open.
func New(ctx context.Context, cfg Config) (*Pool, error) {
	if cfg.PoolSize < 1 {
		return nil, &ConfigurationError{Field: "pool_size", Reason: "must be at least 1"}
	}
	if cfg.DSN == "" {
		return nil, &ConfigurationError{Field: "dsn", Reason: "must not be empty"}
	}
	driver := cfg.Driver
	if driver == "" {
		driver = "sqlite"
	}
	if driver == "sqlite" && cfg.DSN == ":memory:" && cfg.PoolSize > 1 {
		// Each sqlite :memory: connection opens its own private database.
		log.Warn().Int("pool_size", cfg.PoolSize).
			Msg("sqlite :memory: with pool_size > 1 gives every connection a separate database")
	}
	timeout := cfg.AcquireTimeout
	if timeout <= 0 {
		timeout = DefaultAcquireTimeout
	}

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, &ConfigurationError{Field: "driver", Reason: "cannot open database handle", Err: err}
	}
	db.SetMaxOpenConns(cfg.PoolSize)
	db.SetMaxIdleConns(cfg.PoolSize)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &ConfigurationError{Field: "dsn", Reason: "database probe failed", Err: err}
	}

	p := &Pool{
		db:             db,
		size:           cfg.PoolSize,
		idle:           make(chan *Conn, cfg.PoolSize),
		acquireTimeout: timeout,
		resetSession:   cfg.ResetSession,
		resetQuery:     cfg.ResetQuery,
	}

	for i := 0; i < cfg.PoolSize; i++ {
		sc, err := db.Conn(ctx)
		if err != nil {
			p.Close()
			return nil, &ConfigurationError{Field: "pool_size", Reason: "cannot pin connection", Err: err}
		}
		p.idle <- &Conn{sc: sc}
		log.Debug().Int("slot", i).Msg("Database connection pinned")
	}

	log.Info().Int("pool_size", cfg.PoolSize).Str("driver", driver).Msg("Connection pool ready")
	return p, nil
}

// Acquire blocks until an idle connection is available, the timeout elapses,
// or ctx is done. A timeout of zero or less uses the pool's configured
// acquisition timeout. Exhaustion is reported as a *PoolExhaustedError; a
// connection found dead on checkout is discarded, replaced, and never handed
// out.
func (p *Pool) Acquire(ctx context.Context, timeout time.Duration) (*Conn, error) {
	if timeout <= 0 {
		timeout = p.acquireTimeout
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	p.mu.Unlock()

	deadline := time.Now().Add(timeout)
	p.repair(ctx)

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, &PoolExhaustedError{Capacity: p.size, Timeout: timeout}
		}
		select {
		case c := <-p.idle:
			p.mu.Lock()
			closed := p.closed
			p.mu.Unlock()
			if closed {
				c.close()
				return nil, ErrPoolClosed
			}
			if err := c.sc.PingContext(ctx); err != nil {
				log.Warn().Err(err).Msg("Discarding dead connection on checkout")
				c.close()
				p.noteDeficit()
				p.repair(ctx)
				continue
			}
			log.Debug().Msg("Connection acquired from pool")
			return c, nil
		case <-time.After(remaining):
			return nil, &PoolExhaustedError{Capacity: p.size, Timeout: timeout}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Release returns a connection to the idle set. Connections marked bad, or
// failing the session reset, are discarded and replaced so the pool keeps its
// capacity. Safe to call after Close.
func (p *Pool) Release(c *Conn) {
	if c == nil {
		return
	}
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		c.close()
		return
	}

	if c.bad {
		log.Debug().Msg("Discarding connection marked bad")
		c.close()
		p.noteDeficit()
		p.repair(context.Background())
		return
	}

	if p.resetSession {
		if err := p.reset(c); err != nil {
			log.Warn().Err(err).Msg("Session reset failed, discarding connection")
			c.close()
			p.noteDeficit()
			p.repair(context.Background())
			return
		}
	}

	select {
	case p.idle <- c:
		log.Debug().Msg("Connection released to pool")
	default:
		// Full pool means this conn was never ours to track. Drop it.
		c.close()
		log.Warn().Msg("Connection pool full on release, discarding connection")
	}
}

func (p *Pool) reset(c *Conn) error {
	ctx, cancel := context.WithTimeout(context.Background(), backfillTimeout)
	defer cancel()
	if p.resetQuery != "" {
		_, err := c.sc.ExecContext(ctx, p.resetQuery)
		return err
	}
	return c.sc.PingContext(ctx)
}

func (p *Pool) noteDeficit() {
	p.mu.Lock()
	p.deficit++
	p.mu.Unlock()
}

// repair opens replacement connections for any that were discarded, keeping
// the idle set at full capacity. Failures leave the deficit in place; the
// next Acquire or Release tries again.
func (p *Pool) repair(ctx context.Context) {
	for {
		p.mu.Lock()
		if p.closed || p.deficit == 0 {
			p.mu.Unlock()
			return
		}
		p.deficit--
		p.mu.Unlock()

		openCtx, cancel := context.WithTimeout(ctx, backfillTimeout)
		sc, err := p.db.Conn(openCtx)
		cancel()
		if err != nil {
			p.noteDeficit()
			log.Warn().Err(err).Msg("Cannot backfill discarded connection")
			return
		}
		select {
		case p.idle <- &Conn{sc: sc}:
			log.Debug().Msg("Backfilled discarded connection")
		default:
			sc.Close()
			p.mu.Lock()
			p.deficit = 0
			p.mu.Unlock()
			return
		}
	}
}

// Close shuts down the pool and the underlying database handle. Idempotent.
// Connections checked out at close time are closed when released. The idle
// channel is never closed so a racing Release can never panic.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	log.Debug().Msg("Closing connection pool")

	for {
		select {
		case c := <-p.idle:
			c.close()
		default:
			err := p.db.Close()
			log.Info().Msg("Connection pool closed")
			return err
		}
	}
}

// Cap returns the fixed capacity of the pool.
func (p *Pool) Cap() int {
	return p.size
}

// Idle returns the number of connections currently in the idle set.
func (p *Pool) Idle() int {
	return len(p.idle)
}
