package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/DONALDBZR/Crawly/internal/sanitize"
	"github.com/DONALDBZR/Crawly/pkg/models"
)

//go:embed schema.sql
var schema string

const insertRecordSQL = `INSERT INTO scraped_records (entity_type, entity_id, scraped_at, data) VALUES (?, ?, ?, ?)`

// Row is one result row keyed by column name.
type Row map[string]any

// RowSet is an ordered collection of result rows.
type RowSet []Row

// Handler runs statements against the pool. Every string parameter passes the
// sanitizer before it is bound; values are never concatenated into SQL text.
// Handlers are cheap and stateless, safe for concurrent use.
type Handler struct {
	pool *Pool
	san  sanitize.Sanitizer
}

// NewHandler returns a Handler on the given pool. A nil sanitizer falls back
// to the strict default.
func NewHandler(pool *Pool, san sanitize.Sanitizer) *Handler {
	if san == nil {
		san = sanitize.NewStrict()
	}
	return &Handler{pool: pool, san: san}
}

func (h *Handler) sanitizeParams(params []any) ([]any, error) {
	clean := make([]any, len(params))
	for i, p := range params {
		v, err := h.san.Sanitize(p)
		if err != nil {
			return nil, err
		}
		clean[i] = v
	}
	return clean, nil
}

// Query runs a read statement and materializes the result set. The connection
// is acquired for the duration of the call and released on every path.
func (h *Handler) Query(ctx context.Context, query string, params ...any) (RowSet, error) {
	clean, err := h.sanitizeParams(params)
	if err != nil {
		return nil, err
	}

	conn, err := h.pool.Acquire(ctx, 0)
	if err != nil {
		return nil, err
	}
	defer h.pool.Release(conn)

	rows, err := conn.QueryContext(ctx, query, clean...)
	if err != nil {
		return nil, &DatabaseError{Op: "query", Err: err}
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, &DatabaseError{Op: "query", Err: err}
	}

	var rs RowSet
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for rows.Next() {
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, &DatabaseError{Op: "scan", Err: err}
		}
		row := make(Row, len(cols))
		for i, col := range cols {
			v := vals[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[col] = v
		}
		rs = append(rs, row)
	}
	if err := rows.Err(); err != nil {
		return nil, &DatabaseError{Op: "query", Err: err}
	}
	return rs, nil
}

// Exec runs a write statement and reports the number of affected rows.
func (h *Handler) Exec(ctx context.Context, query string, params ...any) (int64, error) {
	clean, err := h.sanitizeParams(params)
	if err != nil {
		return 0, err
	}

	conn, err := h.pool.Acquire(ctx, 0)
	if err != nil {
		return 0, err
	}
	defer h.pool.Release(conn)

	res, err := conn.ExecContext(ctx, query, clean...)
	if err != nil {
		return 0, &DatabaseError{Op: "exec", Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		// Some drivers cannot report this; the statement itself succeeded.
		return 0, nil
	}
	return affected, nil
}

// Ping checks out a connection and verifies the database answers.
func (h *Handler) Ping(ctx context.Context) error {
	conn, err := h.pool.Acquire(ctx, 0)
	if err != nil {
		return err
	}
	defer h.pool.Release(conn)

	if err := conn.PingContext(ctx); err != nil {
		conn.MarkBad()
		return &DatabaseError{Op: "ping", Err: err}
	}
	return nil
}

// EnsureSchema creates the records table if it does not exist.
func (h *Handler) EnsureSchema(ctx context.Context) error {
	conn, err := h.pool.Acquire(ctx, 0)
	if err != nil {
		return err
	}
	defer h.pool.Release(conn)

	if _, err := conn.ExecContext(ctx, schema); err != nil {
		return &DatabaseError{Op: "schema", Err: err}
	}
	log.Debug().Msg("Records schema ensured")
	return nil
}

// SaveRecord persists a normalized record. Identity columns go through the
// sanitizer as strings; the data document is bound as an opaque JSON blob.
func (h *Handler) SaveRecord(ctx context.Context, rec *models.NormalizedRecord) error {
	if rec == nil {
		return &DatabaseError{Op: "save", Err: errors.New("nil record")}
	}
	doc, err := json.Marshal(rec.Data)
	if err != nil {
		return &DatabaseError{Op: "save", Err: err}
	}

	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	_, err = h.Exec(ctx, insertRecordSQL,
		rec.EntityType,
		rec.EntityID,
		ts.UTC().Format(time.RFC3339),
		doc,
	)
	if err != nil {
		return err
	}

	log.Debug().
		Str("entity_type", rec.EntityType).
		Str("entity_id", rec.EntityID).
		Msg("Record saved")
	return nil
}
