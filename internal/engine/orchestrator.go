package engine

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/DONALDBZR/Crawly/internal/runctx"
	"github.com/DONALDBZR/Crawly/pkg/models"
)

// State names a phase of a scrape run.
type State string

const (
	StateIdle        State = "idle"
	StateFetching    State = "fetching"
	StateExtracting  State = "extracting"
	StateNormalizing State = "normalizing"
	StateSucceeded   State = "succeeded"
	StateFailed      State = "failed"
)

// Result is the outcome of a successful run.
type Result struct {
	Strategy string
	Record   *models.NormalizedRecord
	Attempts []models.AttemptRecord
	Elapsed  time.Duration
}

// Orchestrator drives one strategy through fetch, extract and normalize.
// Only the fetch stage is retried: transient transport faults are worth
// repeating, while a payload that failed to parse will fail to parse again.
// The orchestrator itself holds no run state; concurrent Runs are safe only
// when the underlying strategy is.
type Orchestrator struct {
	strategy Strategy
}

// NewOrchestrator wraps a strategy. The strategy must not be nil.
func NewOrchestrator(s Strategy) *Orchestrator {
	if s == nil {
		panic("engine: NewOrchestrator called with nil strategy")
	}
	return &Orchestrator{strategy: s}
}

// Run executes the pipeline for one scrape context.
//
// Selector overrides in the context configure the strategy first, when it
// supports them; an invalid override fails the run before any fetch.
//
// The first fetch attempt always executes. After a failed attempt i the run
// retries only while i < sc.MaxAttempts and the strategy's ShouldRetry(err, i)
// agrees; the ceiling wins over the predicate. Before retry attempt i the run
// sleeps sc.BackoffBase * 2^(i-2), so a base of zero retries immediately.
// MaxAttempts below 1 is treated as 1 and a negative base as zero.
//
// Failures come back as *ScraperError tagged with the stage that failed, the
// number of fetch attempts made, and the total time spent backing off.
func (o *Orchestrator) Run(ctx context.Context, sc models.ScrapeContext) (*Result, error) {
	start := time.Now()

	maxAttempts := sc.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	base := sc.BackoffBase
	if base < 0 {
		base = 0
	}

	ctx = runctx.With(ctx)
	run, _ := runctx.From(ctx)

	logger := log.With().
		Str("run_id", run.ID).
		Str("strategy", o.strategy.Identifier()).
		Str("url", sc.URL).
		Logger()

	strategy := o.strategy
	if len(sc.Selectors) > 0 {
		if configurable, ok := strategy.(SelectorConfigurable); ok {
			configured, err := configurable.WithSelectors(sc.Selectors)
			if err != nil {
				return nil, o.fail(logger, StageFetch, 0, 0, err, start)
			}
			strategy = configured
		} else {
			logger.Debug().Msg("Strategy takes no selector overrides, ignoring")
		}
	}

	var (
		raw       models.RawPayload
		attempts  []models.AttemptRecord
		totalWait time.Duration
		lastErr   error
		fetched   bool
	)

	wait := time.Duration(0)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			if wait == 0 {
				wait = base
			} else {
				wait *= 2
			}
			if wait > 0 {
				logger.Debug().
					Int("attempt", attempt).
					Dur("wait", wait).
					Msg("Backing off before retry")
				select {
				case <-time.After(wait):
				case <-ctx.Done():
					return nil, o.fail(logger, StageFetch, len(attempts), totalWait, ctx.Err(), start)
				}
			}
			totalWait += wait
		}

		payload, err := strategy.Fetch(ctx, sc)
		if err == nil {
			attempts = append(attempts, models.AttemptRecord{Attempt: attempt, Wait: wait})
			logger.Debug().Int("attempt", attempt).Msg("Fetch succeeded")
			raw = payload
			fetched = true
			break
		}

		lastErr = err
		attempts = append(attempts, models.AttemptRecord{Attempt: attempt, Wait: wait, Err: err.Error()})
		logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", maxAttempts).
			Msg("Fetch attempt failed")

		if attempt == maxAttempts {
			break
		}
		if !strategy.ShouldRetry(err, attempt) {
			logger.Debug().Int("attempt", attempt).Msg("Strategy declined retry")
			break
		}
	}

	if !fetched {
		return nil, o.fail(logger, StageFetch, len(attempts), totalWait, lastErr, start)
	}

	fields, err := strategy.Extract(raw)
	if err != nil {
		return nil, o.fail(logger, StageExtract, len(attempts), totalWait, err, start)
	}

	record, err := strategy.Normalize(fields)
	if err != nil {
		return nil, o.fail(logger, StageNormalize, len(attempts), totalWait, err, start)
	}
	if record == nil {
		err := &NormalizationError{Reason: "strategy returned no record"}
		return nil, o.fail(logger, StageNormalize, len(attempts), totalWait, err, start)
	}

	elapsed := time.Since(start)
	logger.Info().
		Int("attempts", len(attempts)).
		Dur("elapsed", elapsed).
		Str("entity_type", record.EntityType).
		Str("entity_id", record.EntityID).
		Msg("Scrape succeeded")

	return &Result{
		Strategy: o.strategy.Identifier(),
		Record:   record,
		Attempts: attempts,
		Elapsed:  elapsed,
	}, nil
}

func (o *Orchestrator) fail(logger zerolog.Logger, stage Stage, attempts int, backoff time.Duration, err error, start time.Time) error {
	logger.Error().
		Err(err).
		Str("stage", string(stage)).
		Str("code", stage.Code()).
		Int("attempts", attempts).
		Dur("elapsed", time.Since(start)).
		Msg("Scrape failed")

	return &ScraperError{
		Strategy: o.strategy.Identifier(),
		Stage:    stage,
		Attempts: attempts,
		Backoff:  backoff,
		Err:      err,
	}
}

// StageOf reports which pipeline stage err came from, for callers that only
// have the error.
func StageOf(err error) (Stage, bool) {
	var serr *ScraperError
	if errors.As(err, &serr) {
		return serr.Stage, true
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return StageFetch, true
	}
	var ee *ExtractionError
	if errors.As(err, &ee) {
		return StageExtract, true
	}
	var ne *NormalizationError
	if errors.As(err, &ne) {
		return StageNormalize, true
	}
	return "", false
}
