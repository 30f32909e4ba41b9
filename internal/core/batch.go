package core

// batch.go implements grid-wide validation.
//
// Non-empty rows are validated in batches of ValidationBatchSize. Rows of a
// batch run concurrently while their cells still compete for the shared
// limiter, so batching stages the work without bypassing admission control.
// Progress is reported after each batch. Caller cancellation is checked
// between batches; a started batch runs to completion unless the grid
// closes or a bulk operation ends its epoch.

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// ValidationBatchSize is the number of rows validated per batch.
const ValidationBatchSize = 10

// ValidateAllRows validates every non-empty row.
//
// progress may be nil. On cancellation the results of completed batches
// are returned together with the context error.
func (v *Validator) ValidateAllRows(ctx context.Context, rows []*Row, progress ProgressFunc) (BatchResult, error) {
	return v.validateAll(ctx, v.lifetime, rows, progress)
}

// validateAll is ValidateAllRows with started batches stopped by abort
// instead of the validator lifetime.
func (v *Validator) validateAll(ctx, abort context.Context, rows []*Row, progress ProgressFunc) (BatchResult, error) {
	start := time.Now()

	var pending []*Row
	for _, r := range rows {
		if !r.IsEmpty() {
			pending = append(pending, r)
		}
	}

	result := BatchResult{Rows: len(pending)}
	slog.Info("batch validation started", "rows", len(pending), "batch_size", ValidationBatchSize)

	for offset := 0; offset < len(pending); offset += ValidationBatchSize {
		if err := ctx.Err(); err != nil {
			result.Duration = time.Since(start)
			slog.Info("batch validation cancelled",
				"processed", offset,
				"rows", len(pending),
				"duration_ms", result.Duration.Milliseconds(),
			)
			return result, err
		}

		end := min(offset+ValidationBatchSize, len(pending))
		batch := pending[offset:end]

		rowResults, err := v.validateBatch(ctx, abort, batch)
		if err != nil {
			result.Duration = time.Since(start)
			return result, err
		}
		for _, res := range rowResults {
			result.Results = append(result.Results, res...)
			if rowValid(res) {
				result.ValidRows++
			} else {
				result.InvalidRows++
			}
		}

		p := BatchProgress{Processed: end, Total: len(pending)}
		if progress != nil {
			progress(p)
		}
		v.events.Publish(Event{Kind: EventBatchProgress, Row: -1, Progress: &p})
	}

	result.Duration = time.Since(start)
	slog.Info("batch validation finished",
		"rows", result.Rows,
		"valid", result.ValidRows,
		"invalid", result.InvalidRows,
		"duration_ms", result.Duration.Milliseconds(),
	)
	return result, nil
}

// validateBatch validates rows concurrently. The batch is detached from
// ctx so that a started batch completes, but abort still stops it.
func (v *Validator) validateBatch(ctx, abort context.Context, rows []*Row) ([][]ValidationResult, error) {
	batchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()
	stop := context.AfterFunc(abort, cancel)
	defer stop()

	out := make([][]ValidationResult, len(rows))
	g := new(errgroup.Group)
	for i, r := range rows {
		g.Go(func() error {
			res, err := v.ValidateRow(batchCtx, r)
			if err != nil {
				return err
			}
			out[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func rowValid(results []ValidationResult) bool {
	for _, r := range results {
		if !r.Valid {
			return false
		}
	}
	return true
}
