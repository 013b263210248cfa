package ingest

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"weather-explorer/internal/models"
)

// InsertFunc attempts to persist one batch atomically: it either fully
// commits or fully rolls back before returning an error.
type InsertFunc func(ctx context.Context, batch []*models.DailyObservation) error

// SplitOptions parameterize the recursive batch-splitting strategy.
type SplitOptions struct {
	// MinChunkSize is the smallest batch that still gets retry-with-backoff;
	// smaller sub-batches are attempted once and split further on failure.
	MinChunkSize int
	// MaxRetries caps attempts per batch before splitting (total attempts is
	// MaxRetries+1).
	MaxRetries int
	// RetryBackoff is the base of the linear backoff: attempt n waits
	// n * RetryBackoff.
	RetryBackoff time.Duration
}

// SplitOutcome summarizes what happened to a batch: how many rows committed,
// how many were abandoned, and how much retrying/splitting it took.
type SplitOutcome struct {
	Inserted int
	Failed   int
	Retries  int
	Splits   int
	// FailedRows holds the rows that were abandoned, so callers can exclude
	// them from anything derived from the parsed set.
	FailedRows []*models.DailyObservation
	Errors     []error
}

func (o *SplitOutcome) merge(other SplitOutcome) {
	o.Inserted += other.Inserted
	o.Failed += other.Failed
	o.Retries += other.Retries
	o.Splits += other.Splits
	o.FailedRows = append(o.FailedRows, other.FailedRows...)
	o.Errors = append(o.Errors, other.Errors...)
}

// linearBackOff implements backoff.BackOff with a linearly growing wait:
// base, 2*base, 3*base, ...
type linearBackOff struct {
	base    time.Duration
	attempt int
}

func (l *linearBackOff) NextBackOff() time.Duration {
	l.attempt++
	return time.Duration(l.attempt) * l.base
}

func (l *linearBackOff) Reset() {
	l.attempt = 0
}

// InsertWithSplit drives a batch through insert, retrying transient failures
// with linear backoff and recursively halving persistently failing batches so
// one malformed row cannot void thousands of good ones. It is a pure strategy
// over the injected InsertFunc and never touches storage itself.
func InsertWithSplit(ctx context.Context, rows []*models.DailyObservation, opts SplitOptions, insert InsertFunc) SplitOutcome {
	var outcome SplitOutcome

	if len(rows) == 0 {
		return outcome
	}

	err := attemptBatch(ctx, rows, opts, insert, &outcome)
	if err == nil {
		outcome.Inserted += len(rows)
		return outcome
	}

	if len(rows) == 1 {
		outcome.Failed++
		outcome.FailedRows = append(outcome.FailedRows, rows[0])
		outcome.Errors = append(outcome.Errors, err)
		return outcome
	}

	// Persistent failure on a multi-row batch: halve and retry each side.
	outcome.Splits++
	mid := len(rows) / 2
	left := InsertWithSplit(ctx, rows[:mid], opts, insert)
	right := InsertWithSplit(ctx, rows[mid:], opts, insert)
	outcome.merge(left)
	outcome.merge(right)

	return outcome
}

func attemptBatch(ctx context.Context, rows []*models.DailyObservation, opts SplitOptions, insert InsertFunc, outcome *SplitOutcome) error {
	// Sub-minimum chunks get a single attempt; splitting continues below.
	if len(rows) < opts.MinChunkSize {
		return insert(ctx, rows)
	}

	attempts := 0
	operation := func() error {
		attempts++
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return insert(ctx, rows)
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(&linearBackOff{base: opts.RetryBackoff}, uint64(opts.MaxRetries)),
		ctx,
	)

	err := backoff.Retry(operation, bo)
	if attempts > 1 {
		outcome.Retries += attempts - 1
	}
	return err
}
