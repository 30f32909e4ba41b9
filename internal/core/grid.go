package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Row count bounds for NewGrid.
const (
	DefaultInitialRows = 100
	MaxInitialRows     = 10000
)

// Grid is the facade the presentation layer talks to.
//
// All edits enter through OnCellValueChanged. Bulk operations replace or
// clear rows under the grid's write lock after cancelling pending
// validations and ending the current epoch, which stops the row and batch
// validations started before them.
type Grid struct {
	columns     []Column
	columnIndex map[string]int
	cfg         ThrottlingConfig
	initialRows int

	registry  *Registry
	limiter   *Limiter
	validator *Validator
	throttle  *Throttle
	events    *Notifier

	lifetime context.Context
	stop     context.CancelFunc

	// epoch is replaced by every bulk operation. Guarded by mu.
	epoch    context.Context
	endEpoch context.CancelFunc

	mu     sync.RWMutex
	rows   []*Row
	closed bool
}

// NewGrid builds an empty grid of initialRows rows and registers rules.
//
// It fails if cfg or the column definitions are invalid, or if a rule is
// malformed or targets an unknown column. initialRows is clamped to
// 1..MaxInitialRows; zero selects DefaultInitialRows.
func NewGrid(columns []Column, rules []Rule, cfg ThrottlingConfig, initialRows int) (*Grid, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateColumns(columns); err != nil {
		return nil, err
	}

	if initialRows == 0 {
		initialRows = DefaultInitialRows
	}
	initialRows = max(1, min(initialRows, MaxInitialRows))

	cols := normalizeColumns(columns)
	index := make(map[string]int, len(cols))
	for i, c := range cols {
		index[c.Name] = i
	}

	lifetime, stop := context.WithCancel(context.Background())
	events := NewNotifier()
	registry := NewRegistry()
	limiter := NewLimiter(cfg.MaxConcurrentValidations)
	validator := NewValidator(registry, limiter, events, cfg.ValidationTimeout)
	validator.lifetime = lifetime

	g := &Grid{
		columns:     cols,
		columnIndex: index,
		cfg:         cfg,
		initialRows: initialRows,
		registry:    registry,
		limiter:     limiter,
		validator:   validator,
		throttle:    NewThrottle(lifetime, cfg, validator),
		events:      events,
		lifetime:    lifetime,
		stop:        stop,
	}

	for _, rule := range rules {
		if _, err := g.addRule(rule); err != nil {
			stop()
			return nil, err
		}
	}

	g.epoch, g.endEpoch = context.WithCancel(lifetime)
	g.rows = g.newRows(0, initialRows)

	slog.Info("grid initialized",
		"columns", len(cols),
		"rows", initialRows,
		"rules", registry.TotalRuleCount(),
		"throttling", cfg.Enabled,
		"max_concurrent", cfg.MaxConcurrentValidations,
	)
	return g, nil
}

func (g *Grid) newRows(from, n int) []*Row {
	rows := make([]*Row, n)
	for i := range rows {
		rows[i] = newRow(from+i, g.columns, g.events.Publish)
	}
	return rows
}

// Columns returns the grid columns in display order, special columns last.
func (g *Grid) Columns() []Column {
	out := make([]Column, len(g.columns))
	copy(out, g.columns)
	return out
}

// Throttling returns the configuration the grid was built with.
func (g *Grid) Throttling() ThrottlingConfig {
	return g.cfg
}

// Rows returns the current rows. The slice is a copy; rows are shared.
func (g *Grid) Rows() []*Row {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Row, len(g.rows))
	copy(out, g.rows)
	return out
}

// RowCount returns the number of rows, empty ones included.
func (g *Grid) RowCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rows)
}

// Row returns the row at index.
func (g *Grid) Row(index int) (*Row, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.rowLocked(index)
}

func (g *Grid) rowLocked(index int) (*Row, error) {
	if g.closed {
		return nil, ErrGridClosed
	}
	if index < 0 || index >= len(g.rows) {
		return nil, fmt.Errorf("%w: %d", ErrRowNotFound, index)
	}
	return g.rows[index], nil
}

// editableCell resolves an editable cell. g.mu must be held.
func (g *Grid) editableCell(rowIndex int, column string) (*Row, *Cell, error) {
	row, err := g.rowLocked(rowIndex)
	if err != nil {
		return nil, nil, err
	}
	cell, ok := row.Cell(column)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrColumnNotFound, column)
	}
	if cell.ReadOnly() {
		return nil, nil, fmt.Errorf("%w: %s", ErrReadOnlyCell, column)
	}
	return row, cell, nil
}

// OnCellValueChanged stores an edited value and schedules its validation.
//
// The row's empty flag is updated before the call returns. With throttling
// disabled the validation also completes before the call returns.
func (g *Grid) OnCellValueChanged(rowIndex int, column string, value Value) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	row, cell, err := g.editableCell(rowIndex, column)
	if err != nil {
		return err
	}
	if row.setValue(cell, value) {
		g.throttle.CellChanged(row, cell)
	}
	return nil
}

// BeginEdit opens an edit session on a cell, remembering its value.
func (g *Grid) BeginEdit(rowIndex int, column string) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	_, cell, err := g.editableCell(rowIndex, column)
	if err != nil {
		return err
	}
	cell.startEditing()
	return nil
}

// CommitEdit closes the edit session and keeps the current value. Returns
// whether the value differs from the one the session started with.
func (g *Grid) CommitEdit(rowIndex int, column string) (bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	_, cell, err := g.editableCell(rowIndex, column)
	if err != nil {
		return false, err
	}
	original, ok := cell.endEditing()
	if !ok {
		return false, nil
	}
	return !original.Equal(cell.Value()), nil
}

// CancelEdit closes the edit session and restores the value it started
// with, revalidating the cell if that changes anything.
func (g *Grid) CancelEdit(rowIndex int, column string) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	row, cell, err := g.editableCell(rowIndex, column)
	if err != nil {
		return err
	}
	original, ok := cell.endEditing()
	if !ok {
		return nil
	}
	if row.setValue(cell, original) {
		g.throttle.CellChanged(row, cell)
	}
	return nil
}

// AddCellError attaches an external error message to a data cell, such as
// a failure reported by the backend on save. The next validation of the
// cell replaces it.
func (g *Grid) AddCellError(rowIndex int, column, msg string) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	row, err := g.rowLocked(rowIndex)
	if err != nil {
		return err
	}
	cell, ok := row.Cell(column)
	if !ok || IsSpecialColumn(column) {
		return fmt.Errorf("%w: %s", ErrColumnNotFound, column)
	}
	row.addError(cell, msg)
	return nil
}

// ValidateRow validates one row immediately, bypassing the debounce.
func (g *Grid) ValidateRow(ctx context.Context, rowIndex int) ([]ValidationResult, error) {
	g.mu.RLock()
	row, err := g.rowLocked(rowIndex)
	epoch := g.epoch
	g.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	ctx, cancel := bind(ctx, epoch)
	defer cancel()

	results, err := g.validator.ValidateRow(ctx, row)
	if err != nil && !isCancellation(err) {
		g.fail("ValidateRow", err)
	}
	return results, err
}

// ValidateAllRows validates every non-empty row in batches and reports
// whether all of them are valid. progress may be nil.
func (g *Grid) ValidateAllRows(ctx context.Context, progress ProgressFunc) (bool, error) {
	res, err := g.ValidateAll(ctx, progress)
	if err != nil {
		return false, err
	}
	return res.Valid(), nil
}

// ValidateAll is ValidateAllRows returning the full batch result.
func (g *Grid) ValidateAll(ctx context.Context, progress ProgressFunc) (BatchResult, error) {
	g.mu.RLock()
	if g.closed {
		g.mu.RUnlock()
		return BatchResult{}, ErrGridClosed
	}
	rows := make([]*Row, len(g.rows))
	copy(rows, g.rows)
	epoch := g.epoch
	g.mu.RUnlock()

	ctx, cancel := bind(ctx, epoch)
	defer cancel()

	res, err := g.validator.validateAll(ctx, epoch, rows, progress)
	if err != nil && !isCancellation(err) {
		g.fail("ValidateAllRows", err)
	}
	return res, err
}

// bind derives a context that also ends with epoch. Epochs end on bulk
// operations and when the grid closes.
func bind(ctx, epoch context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(epoch, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// newEpochLocked stops every validation bound to the current epoch.
// g.mu must be held for writing.
func (g *Grid) newEpochLocked() {
	g.endEpoch()
	g.epoch, g.endEpoch = context.WithCancel(g.lifetime)
}

// AddRule registers rule, replacing a rule with the same ID in the same
// column. Returns the stored rule with its generated ID.
func (g *Grid) AddRule(rule Rule) (Rule, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.closed {
		return Rule{}, ErrGridClosed
	}
	return g.addRule(rule)
}

func (g *Grid) addRule(rule Rule) (Rule, error) {
	if _, ok := g.columnIndex[rule.Column]; !ok || IsSpecialColumn(rule.Column) {
		return Rule{}, fmt.Errorf("%w: rule %q targets %w %q", ErrInvalidRule, rule.ID, ErrColumnNotFound, rule.Column)
	}
	return g.registry.Add(rule)
}

// RemoveRule removes a rule by ID. No-op if absent.
func (g *Grid) RemoveRule(column, id string) bool {
	return g.registry.Remove(column, id)
}

// ClearRules removes the rules of the given columns, or all rules.
func (g *Grid) ClearRules(columns ...string) {
	g.registry.Clear(columns...)
}

// Rules returns the rules registered for column.
func (g *Grid) Rules(column string) []Rule {
	return g.registry.Get(column)
}

// RuleCount returns the number of registered rules.
func (g *Grid) RuleCount() int {
	return g.registry.TotalRuleCount()
}

// RuleColumns returns the columns that have rules.
func (g *Grid) RuleColumns() []string {
	return g.registry.Columns()
}

// Subscribe returns a channel of grid notifications and an unsubscribe func.
func (g *Grid) Subscribe(buffer int) (<-chan Event, func()) {
	return g.events.Subscribe(buffer)
}

// PendingValidations returns the number of cells with scheduled work.
func (g *Grid) PendingValidations() int {
	return g.throttle.PendingCount()
}

// CellState returns the throttle state of one cell.
func (g *Grid) CellState(rowIndex int, column string) ThrottleState {
	return g.throttle.State(rowIndex, column)
}

// GridStatus is a monitoring snapshot of the grid.
type GridStatus struct {
	Rows        int           `json:"rows"`
	DataRows    int           `json:"data_rows"`
	InvalidRows int           `json:"invalid_rows"`
	Rules       int           `json:"rules"`
	Pending     int           `json:"pending"`
	Limiter     LimiterStatus `json:"limiter"`
	Closed      bool          `json:"closed"`
}

// Status returns a monitoring snapshot.
func (g *Grid) Status() GridStatus {
	g.mu.RLock()
	defer g.mu.RUnlock()

	st := GridStatus{
		Rows:    len(g.rows),
		Rules:   g.registry.TotalRuleCount(),
		Pending: g.throttle.PendingCount(),
		Limiter: g.limiter.Status(),
		Closed:  g.closed,
	}
	for _, r := range g.rows {
		if !r.IsEmpty() {
			st.DataRows++
		}
		if r.HasErrors() {
			st.InvalidRows++
		}
	}
	return st
}

// fail logs err and publishes an operation-failed event for op.
func (g *Grid) fail(op string, err error) {
	msg := MapError(err)
	slog.Error("grid operation failed", "operation", op, "code", msg.Code, "error", err)
	g.events.Publish(Event{
		Kind:      EventOperationFailed,
		Row:       -1,
		Operation: op,
		Code:      msg.Code,
		Message:   err.Error(),
		Err:       err,
	})
}

// Close cancels all pending validations, waits for running ones and
// releases the registry. Later calls return ErrGridClosed.
func (g *Grid) Close(ctx context.Context) error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	g.mu.Unlock()

	var errs []error
	if err := g.throttle.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("throttle: %w", err))
	}
	g.stop()
	if err := g.limiter.WaitForDrain(ctx); err != nil {
		errs = append(errs, fmt.Errorf("limiter: %w", err))
	}
	g.registry.Clear()
	g.events.Close()

	slog.Info("grid closed")
	return errors.Join(errs...)
}
