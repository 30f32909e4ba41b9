package core

// throttle.go turns the stream of cell edits into rate-limited validations.
//
// Each cell key (row index, column) has at most one outstanding validation.
// A new edit cancels the outstanding one before scheduling its own, so only
// the most recent edit of a cell can write errors. Pastes share a single
// PasteDelay timer instead of one timer per pasted cell.
//
// Per key: Idle -> Debouncing -> Running -> Idle, with a cancel from
// Debouncing or Running going straight back to Idle.

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// ThrottleState is the scheduling state of one cell key.
type ThrottleState int32

const (
	StateIdle ThrottleState = iota
	StateDebouncing
	StateRunning
)

// String returns the state name.
func (s ThrottleState) String() string {
	switch s {
	case StateDebouncing:
		return "debouncing"
	case StateRunning:
		return "running"
	default:
		return "idle"
	}
}

type cellKey struct {
	row    int
	column string
}

// pending is the cancellation handle of one scheduled validation.
type pending struct {
	cancel context.CancelFunc
	state  atomic.Int32
}

func newPending(cancel context.CancelFunc) *pending {
	p := &pending{cancel: cancel}
	p.state.Store(int32(StateDebouncing))
	return p
}

// CellTarget addresses one cell of a bulk change.
type CellTarget struct {
	Row  *Row
	Cell *Cell
}

// Throttle debounces validations per cell.
type Throttle struct {
	cfg       ThrottlingConfig
	validator *Validator

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	entries map[cellKey]*pending
	lastRun map[cellKey]time.Time
	sweepAt int
	closed  bool

	wg sync.WaitGroup
}

// NewThrottle creates a throttle whose scheduled work is cancelled when
// parent is done or Close is called.
func NewThrottle(parent context.Context, cfg ThrottlingConfig, validator *Validator) *Throttle {
	ctx, cancel := context.WithCancel(parent)
	return &Throttle{
		cfg:       cfg,
		validator: validator,
		ctx:       ctx,
		cancel:    cancel,
		entries:   make(map[cellKey]*pending),
		lastRun:   make(map[cellKey]time.Time),
		sweepAt:   lastRunSweepMin,
	}
}

// CellChanged schedules validation of cell after an edit.
//
// With throttling disabled the validation runs before CellChanged returns.
func (t *Throttle) CellChanged(row *Row, cell *Cell) {
	if !t.cfg.Enabled {
		t.validateNow(row, cell)
		return
	}

	key := cellKey{row: row.Index(), column: cell.Column()}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.cancelLocked(key)

	if row.IsEmpty() {
		t.cancelRowLocked(key.row)
		t.mu.Unlock()
		row.clearAllErrors()
		return
	}

	ctx, cancel := context.WithCancel(t.ctx)
	p := newPending(cancel)
	t.entries[key] = p
	t.wg.Add(1)
	t.mu.Unlock()

	go func() {
		defer t.wg.Done()
		defer t.finish(key, p)

		if !sleepCtx(ctx, t.cfg.TypingDelay) {
			return
		}
		t.run(ctx, key, p, row, cell)
	}()
}

// CellsChanged schedules validation of a bulk change such as a paste.
// All targets share one PasteDelay wait and are then validated together.
func (t *Throttle) CellsChanged(targets []CellTarget) {
	if len(targets) == 0 {
		return
	}
	if !t.cfg.Enabled {
		g := new(errgroup.Group)
		for _, tg := range targets {
			g.Go(func() error {
				t.validateNow(tg.Row, tg.Cell)
				return nil
			})
		}
		_ = g.Wait()
		return
	}

	type item struct {
		key cellKey
		ctx context.Context
		p   *pending
		CellTarget
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}

	bulkCtx, bulkCancel := context.WithCancel(t.ctx)
	var items []item
	var empties []*Row
	for _, tg := range targets {
		key := cellKey{row: tg.Row.Index(), column: tg.Cell.Column()}
		t.cancelLocked(key)
		if tg.Row.IsEmpty() {
			t.cancelRowLocked(key.row)
			if !slices.Contains(empties, tg.Row) {
				empties = append(empties, tg.Row)
			}
			continue
		}
		ctx, cancel := context.WithCancel(bulkCtx)
		p := newPending(cancel)
		t.entries[key] = p
		items = append(items, item{key: key, ctx: ctx, p: p, CellTarget: tg})
	}
	if len(items) > 0 {
		t.wg.Add(1)
	}
	t.mu.Unlock()

	for _, r := range empties {
		r.clearAllErrors()
	}
	if len(items) == 0 {
		bulkCancel()
		return
	}

	go func() {
		defer t.wg.Done()
		defer bulkCancel()
		defer func() {
			for _, it := range items {
				t.finish(it.key, it.p)
			}
		}()

		if !sleepCtx(bulkCtx, t.cfg.PasteDelay) {
			return
		}

		g := new(errgroup.Group)
		for _, it := range items {
			if it.ctx.Err() != nil {
				continue
			}
			g.Go(func() error {
				t.run(it.ctx, it.key, it.p, it.Row, it.Cell)
				return nil
			})
		}
		_ = g.Wait()
	}()
}

// run waits out MinValidationInterval and validates.
func (t *Throttle) run(ctx context.Context, key cellKey, p *pending, row *Row, cell *Cell) {
	if wait := t.intervalWait(key); wait > 0 {
		if !sleepCtx(ctx, wait) {
			return
		}
	}

	p.state.Store(int32(StateRunning))
	t.markRun(key)

	_, err := t.validator.ValidateCell(ctx, row, cell)
	if err != nil && !isCancellation(err) {
		slog.Debug("throttled validation failed", "row", key.row, "column", key.column, "error", err)
	}
}

// validateNow runs a validation synchronously under the throttle context.
func (t *Throttle) validateNow(row *Row, cell *Cell) {
	_, err := t.validator.ValidateCell(t.ctx, row, cell)
	if err != nil && !isCancellation(err) {
		slog.Debug("validation failed", "row", row.Index(), "column", cell.Column(), "error", err)
	}
}

func (t *Throttle) intervalWait(key cellKey) time.Duration {
	if t.cfg.MinValidationInterval <= 0 {
		return 0
	}
	t.mu.Lock()
	last, ok := t.lastRun[key]
	t.mu.Unlock()
	if !ok {
		return 0
	}
	return t.cfg.MinValidationInterval - time.Since(last)
}

func (t *Throttle) markRun(key cellKey) {
	if t.cfg.MinValidationInterval <= 0 {
		return
	}
	now := time.Now()
	t.mu.Lock()
	t.lastRun[key] = now
	if len(t.lastRun) >= t.sweepAt {
		t.pruneLocked(now)
	}
	t.mu.Unlock()
}

// lastRunSweepMin is the lastRun size below which no sweep happens.
const lastRunSweepMin = 64

// pruneLocked drops lastRun entries older than MinValidationInterval.
// t.mu must be held.
func (t *Throttle) pruneLocked(now time.Time) {
	for key, last := range t.lastRun {
		if now.Sub(last) >= t.cfg.MinValidationInterval {
			delete(t.lastRun, key)
		}
	}
	t.sweepAt = max(lastRunSweepMin, 2*len(t.lastRun))
}

// cancelLocked cancels and removes the entry for key. t.mu must be held.
func (t *Throttle) cancelLocked(key cellKey) {
	if p, ok := t.entries[key]; ok {
		p.cancel()
		delete(t.entries, key)
	}
}

// finish removes the entry for key if it still belongs to p, and its
// lastRun mark once the interval has passed.
func (t *Throttle) finish(key cellKey, p *pending) {
	t.mu.Lock()
	if t.entries[key] == p {
		delete(t.entries, key)
	}
	if last, ok := t.lastRun[key]; ok && time.Since(last) >= t.cfg.MinValidationInterval {
		delete(t.lastRun, key)
	}
	t.mu.Unlock()
	p.state.Store(int32(StateIdle))
	p.cancel()
}

// CancelRow cancels every pending validation of a row.
func (t *Throttle) CancelRow(row int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelRowLocked(row)
}

// cancelRowLocked cancels the entries of one row. t.mu must be held.
func (t *Throttle) cancelRowLocked(row int) {
	for key := range t.entries {
		if key.row == row {
			t.cancelLocked(key)
		}
	}
}

// Reset cancels all pending validations and waits until their goroutines
// have exited or ctx is done.
func (t *Throttle) Reset(ctx context.Context) error {
	t.mu.Lock()
	n := len(t.entries)
	for key := range t.entries {
		t.cancelLocked(key)
	}
	clear(t.lastRun)
	t.sweepAt = lastRunSweepMin
	t.mu.Unlock()

	if n > 0 {
		slog.Debug("throttle reset", "pending", n)
	}
	return t.wait(ctx)
}

// Close cancels all pending work, rejects new work and waits for running
// goroutines to exit or ctx to be done.
func (t *Throttle) Close(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	n := len(t.entries)
	for key := range t.entries {
		t.cancelLocked(key)
	}
	t.mu.Unlock()

	t.cancel()
	slog.Debug("throttle closed", "pending", n)
	return t.wait(ctx)
}

func (t *Throttle) wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PendingCount returns the number of cells with a scheduled or running
// validation.
func (t *Throttle) PendingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// State returns the scheduling state of one cell.
func (t *Throttle) State(row int, column string) ThrottleState {
	t.mu.Lock()
	p, ok := t.entries[cellKey{row: row, column: column}]
	t.mu.Unlock()
	if !ok {
		return StateIdle
	}
	return ThrottleState(p.state.Load())
}

// sleepCtx waits d or until ctx is done. Returns false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, ErrStaleValidation)
}
