package core

// validation.go evaluates rules for one cell and one row.
//
// Validation happens at two levels:
//  1. Cell validation: applicable rules of the cell's column run while the
//     validation holds one limiter slot
//  2. Row validation: every data cell with rules is validated concurrently,
//     then a row-validated event reports duration and async count
//
// Results are written back only if the cell still holds the value the
// validation started from. A cancelled validation writes nothing.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

// FailureReason explains why a rule failed.
type FailureReason string

const (
	FailureRejected FailureReason = "rejected" // predicate returned false
	FailureTimeout  FailureReason = "timeout"  // async predicate exceeded its timeout
	FailurePanic    FailureReason = "panic"    // predicate panicked
	FailureError    FailureReason = "error"    // async predicate returned an error
)

// RuleFailure records one failed rule within a ValidationResult.
type RuleFailure struct {
	RuleID string        `json:"rule_id"`
	Reason FailureReason `json:"reason"`
}

// ValidationResult is the outcome of validating one cell. It is never
// mutated after construction.
type ValidationResult struct {
	Column   string        `json:"column"`
	RowIndex int           `json:"row"`
	Valid    bool          `json:"valid"`
	Errors   []string      `json:"errors,omitempty"`
	Failures []RuleFailure `json:"failures,omitempty"`
	Duration time.Duration `json:"duration"`
	Async    bool          `json:"async"`
}

// Validator evaluates rules with bounded concurrency.
type Validator struct {
	registry *Registry
	limiter  *Limiter
	events   *Notifier

	// maxRuleTimeout caps every async rule timeout (0 = no cap).
	maxRuleTimeout time.Duration

	// lifetime is cancelled on grid teardown. Batches detach from the
	// caller's context but never outlive it.
	lifetime context.Context
}

// NewValidator creates a validator reading rules from registry and
// acquiring slots from limiter. events may be nil.
func NewValidator(registry *Registry, limiter *Limiter, events *Notifier, maxRuleTimeout time.Duration) *Validator {
	return &Validator{
		registry:       registry,
		limiter:        limiter,
		events:         events,
		maxRuleTimeout: maxRuleTimeout,
		lifetime:       context.Background(),
	}
}

// ValidateCell validates cell against the applicable rules of its column.
//
// Returns the context error when ctx is cancelled before the result is
// written, and ErrStaleValidation when the cell value changed meanwhile.
// Rule failures of any kind are reported in the result, never as an error.
func (v *Validator) ValidateCell(ctx context.Context, row *Row, cell *Cell) (ValidationResult, error) {
	start := time.Now()
	result := ValidationResult{
		Column:   cell.Column(),
		RowIndex: row.Index(),
		Valid:    true,
	}

	if empty := row.IsEmpty(); empty || !v.registry.HasRules(cell.Column()) {
		if err := ctx.Err(); err != nil {
			return ValidationResult{}, err
		}
		if empty {
			row.clearAllErrors()
		} else {
			row.clearErrors(cell)
		}
		result.Duration = time.Since(start)
		return result, nil
	}

	if err := v.limiter.Acquire(ctx); err != nil {
		return ValidationResult{}, err
	}
	held := true
	defer func() {
		if held {
			v.limiter.Release()
		}
	}()

	value, version := cell.snapshot()

	rules := v.applicableRules(cell.Column(), row)
	for i, rule := range rules {
		var (
			passed bool
			reason FailureReason
			err    error
		)

		if rule.IsAsync() {
			result.Async = true
			var running <-chan struct{}
			passed, reason, running, err = v.runAsync(ctx, rule, value, row)
			if running != nil {
				// The abandoned predicate keeps this slot until it returns.
				held = false
				go func() {
					<-running
					v.limiter.Release()
				}()
				if err == nil && i < len(rules)-1 {
					if err = v.limiter.Acquire(ctx); err == nil {
						held = true
					}
				}
			}
			if err != nil {
				return ValidationResult{}, err
			}
		} else {
			passed, err = rule.check(value, row)
			reason = FailureRejected
			if err != nil {
				reason = FailurePanic
				slog.Warn("rule panicked", "rule", rule.ID, "column", rule.Column, "error", err)
			}
		}

		if !passed {
			result.Errors = append(result.Errors, rule.Message)
			result.Failures = append(result.Failures, RuleFailure{RuleID: rule.ID, Reason: reason})
		}
	}

	if err := ctx.Err(); err != nil {
		return ValidationResult{}, err
	}
	if !row.commitErrors(cell, version, result.Errors) {
		return ValidationResult{}, ErrStaleValidation
	}

	result.Valid = len(result.Errors) == 0
	result.Duration = time.Since(start)
	return result, nil
}

// applicableRules returns the rules whose Condition holds for row, ordered
// by descending priority. Equal priorities keep registration order.
func (v *Validator) applicableRules(column string, row *Row) []Rule {
	all := v.registry.Get(column)
	rules := all[:0]
	for _, r := range all {
		if r.applies(row) {
			rules = append(rules, r)
		}
	}
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Priority > rules[j].Priority
	})
	return rules
}

type asyncOutcome struct {
	passed bool
	err    error
	panic  any
}

// runAsync races rule.Async against its timeout. A non-nil error return
// means ctx itself was cancelled and the whole cell validation must abort.
//
// When the predicate has not returned yet, running is closed once it does.
func (v *Validator) runAsync(ctx context.Context, rule Rule, value Value, row *Row) (passed bool, reason FailureReason, running <-chan struct{}, err error) {
	timeout := rule.Timeout
	if timeout <= 0 {
		timeout = DefaultRuleTimeout
	}
	if v.maxRuleTimeout > 0 && v.maxRuleTimeout < timeout {
		timeout = v.maxRuleTimeout
	}

	ruleCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan asyncOutcome, 1)
	returned := make(chan struct{})
	go func() {
		defer close(returned)
		defer func() {
			if p := recover(); p != nil {
				done <- asyncOutcome{panic: p}
			}
		}()
		passed, err := rule.Async(ruleCtx, value, row)
		done <- asyncOutcome{passed: passed, err: err}
	}()

	var out asyncOutcome
	select {
	case out = <-done:
	case <-ruleCtx.Done():
		select {
		case out = <-done:
		default:
			running = returned
		}
	}

	if err := ctx.Err(); err != nil {
		return false, "", running, err
	}

	// With ctx still live, a done ruleCtx means the deadline passed. A
	// result delivered at or after the deadline counts as a timeout.
	switch {
	case out.panic != nil:
		slog.Warn("async rule panicked", "rule", rule.ID, "column", rule.Column, "panic", out.panic)
		return false, FailurePanic, running, nil
	case ruleCtx.Err() != nil:
		slog.Debug("async rule timed out", "rule", rule.ID, "column", rule.Column, "timeout", timeout)
		return false, FailureTimeout, running, nil
	case out.err != nil:
		v.reportFailure("ValidateCell", row.Index(), rule.Column,
			fmt.Errorf("rule %s on %s: %w", rule.ID, rule.Column, out.err))
		return false, FailureError, nil, nil
	default:
		if out.passed {
			return true, "", nil, nil
		}
		return false, FailureRejected, nil, nil
	}
}

// reportFailure logs err and publishes an operation-failed event.
func (v *Validator) reportFailure(operation string, row int, column string, err error) {
	msg := MapError(err)
	slog.Error("grid operation failed",
		"operation", operation,
		"row", row,
		"column", column,
		"code", msg.Code,
		"error", err,
	)
	v.events.Publish(Event{
		Kind:      EventOperationFailed,
		Row:       row,
		Column:    column,
		Operation: operation,
		Code:      msg.Code,
		Message:   err.Error(),
		Err:       err,
	})
}

// ValidateRow validates every data cell of row that has rules and clears
// the errors of data cells whose column has none. An empty row has all its
// errors cleared and returns no results.
//
// Cells whose value changed during validation are left out of the results.
func (v *Validator) ValidateRow(ctx context.Context, row *Row) ([]ValidationResult, error) {
	start := time.Now()

	if row.IsEmpty() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row.clearAllErrors()
		return nil, nil
	}

	var cells []*Cell
	for _, c := range row.dataCells() {
		if v.registry.HasRules(c.Column()) {
			cells = append(cells, c)
		} else {
			row.clearErrors(c)
		}
	}

	slots := make([]*ValidationResult, len(cells))
	g := new(errgroup.Group)
	for i, c := range cells {
		g.Go(func() error {
			res, err := v.ValidateCell(ctx, row, c)
			if errors.Is(err, ErrStaleValidation) {
				return nil
			}
			if err != nil {
				return err
			}
			slots[i] = &res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := make([]ValidationResult, 0, len(slots))
	asyncCount := 0
	for _, res := range slots {
		if res == nil {
			continue
		}
		if res.Async {
			asyncCount++
		}
		results = append(results, *res)
	}

	duration := time.Since(start)
	v.events.Publish(Event{
		Kind:       EventRowValidated,
		Row:        row.Index(),
		Duration:   duration,
		AsyncCount: asyncCount,
		Results:    results,
	})

	return results, nil
}
