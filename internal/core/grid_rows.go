package core

// grid_rows.go holds the bulk row operations of Grid.
//
// Every operation that replaces rows first ends the grid epoch, cancels
// pending validations and waits for them, then swaps the row slice while
// holding the write lock.
// Rows are re-indexed on replacement so that row i is always at index i.

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
)

// RowSnapshot is the exported state of one non-empty row.
type RowSnapshot struct {
	Index     int                 `json:"index"`
	Values    map[string]Value    `json:"values"`
	Errors    map[string][]string `json:"errors,omitempty"`
	HasErrors bool                `json:"has_errors"`
}

// minEmptyRows is the number of blank rows kept below the data.
func (g *Grid) minEmptyRows() int {
	return min(10, g.initialRows/5)
}

// ExportSnapshot returns the non-empty rows in order. Special columns are
// left out unless includeSummary is set, which adds the error summary.
func (g *Grid) ExportSnapshot(includeSummary bool) []RowSnapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []RowSnapshot
	for _, r := range g.rows {
		if r.IsEmpty() {
			continue
		}
		snap := RowSnapshot{
			Index:     r.Index(),
			Values:    r.Export(includeSummary),
			HasErrors: r.HasErrors(),
		}
		for _, c := range r.dataCells() {
			if errs := c.Errors(); len(errs) > 0 {
				if snap.Errors == nil {
					snap.Errors = make(map[string][]string)
				}
				snap.Errors[c.Column()] = errs
			}
		}
		out = append(out, snap)
	}
	return out
}

// LoadRows replaces the grid content with records and validates them.
//
// Unknown and special columns in a record are ignored. The grid grows to
// hold every record plus a margin of empty rows, and never shrinks below
// its initial size. With throttling enabled the batch validation starts
// after BatchValidationDelay.
func (g *Grid) LoadRows(ctx context.Context, records []map[string]Value) (BatchResult, error) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return BatchResult{}, ErrGridClosed
	}
	g.newEpochLocked()
	if err := g.throttle.Reset(ctx); err != nil {
		g.mu.Unlock()
		return BatchResult{}, err
	}

	total := max(g.initialRows, len(records)+g.minEmptyRows())
	rows := g.newRows(0, total)
	for i, rec := range records {
		row := rows[i]
		for name, v := range rec {
			cell, ok := row.Cell(name)
			if !ok || IsSpecialColumn(name) {
				continue
			}
			row.setValue(cell, v)
		}
	}
	g.rows = rows
	g.mu.Unlock()

	slog.Info("rows loaded", "records", len(records), "rows", total)

	if g.cfg.Enabled && !sleepCtx(ctx, g.cfg.BatchValidationDelay) {
		return BatchResult{}, ctx.Err()
	}
	return g.ValidateAll(ctx, nil)
}

// Paste writes a block of values starting at (startRow, startColumn),
// moving right through the data columns and down through rows. Rows are
// added when the block extends past the end; columns past the last data
// column and read-only cells are skipped. All pasted cells share one
// PasteDelay before validation. Returns the number of cells written.
func (g *Grid) Paste(startRow int, startColumn string, block [][]Value) (int, error) {
	targets, err := g.paste(startRow, startColumn, block)
	if err != nil {
		return 0, err
	}
	// Validation runs outside the grid lock; with throttling disabled it
	// completes before Paste returns.
	g.throttle.CellsChanged(targets)
	return len(targets), nil
}

// paste writes block under the write lock and returns the changed cells.
func (g *Grid) paste(startRow int, startColumn string, block [][]Value) ([]CellTarget, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil, ErrGridClosed
	}
	if startRow < 0 || startRow >= len(g.rows) {
		return nil, fmt.Errorf("%w: %d", ErrRowNotFound, startRow)
	}

	data := g.dataColumns()
	startCol := slices.IndexFunc(data, func(c Column) bool { return c.Name == startColumn })
	if startCol < 0 {
		return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, startColumn)
	}

	if need := startRow + len(block); need > len(g.rows) {
		g.rows = append(g.rows, g.newRows(len(g.rows), need-len(g.rows))...)
	}

	var targets []CellTarget
	for r, values := range block {
		row := g.rows[startRow+r]
		for c, v := range values {
			if startCol+c >= len(data) {
				break
			}
			cell, _ := row.Cell(data[startCol+c].Name)
			if cell.ReadOnly() {
				continue
			}
			if row.setValue(cell, v) {
				targets = append(targets, CellTarget{Row: row, Cell: cell})
			}
		}
	}

	return targets, nil
}

func (g *Grid) dataColumns() []Column {
	out := make([]Column, 0, len(g.columns))
	for _, c := range g.columns {
		if !IsSpecialColumn(c.Name) {
			out = append(out, c)
		}
	}
	return out
}

// DeleteRow clears every value and error of one row. The row itself stays.
func (g *Grid) DeleteRow(rowIndex int) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	row, err := g.rowLocked(rowIndex)
	if err != nil {
		return err
	}
	g.throttle.CancelRow(rowIndex)
	row.clearValues()
	return nil
}

// ClearAll empties every row and cancels all pending validations.
func (g *Grid) ClearAll(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return ErrGridClosed
	}
	g.newEpochLocked()
	if err := g.throttle.Reset(ctx); err != nil {
		g.fail("ClearAll", err)
		return err
	}
	for _, r := range g.rows {
		r.clearValues()
	}
	return nil
}

// RemoveEmptyRows drops blank rows, keeping the data rows followed by
// max(minEmptyRows, initialRows-dataRows) empty rows. Returns the number of
// rows removed, which is negative when rows had to be added.
func (g *Grid) RemoveEmptyRows(ctx context.Context) (int, error) {
	return g.removeWhere(ctx, "RemoveEmptyRows", func(*Row) bool { return false })
}

// RemoveRowsWhere removes non-empty rows whose value in column satisfies
// match. The special name "HasValidationErrors" matches rows with errors.
func (g *Grid) RemoveRowsWhere(ctx context.Context, column string, match func(Value) bool) (int, error) {
	if column == "HasValidationErrors" {
		return g.RemoveInvalidRows(ctx)
	}
	if _, ok := g.columnIndex[column]; !ok {
		return 0, fmt.Errorf("%w: %s", ErrColumnNotFound, column)
	}
	return g.removeWhere(ctx, "RemoveRowsWhere", func(r *Row) bool {
		return match(r.Value(column))
	})
}

// RemoveInvalidRows removes non-empty rows that currently have errors.
func (g *Grid) RemoveInvalidRows(ctx context.Context) (int, error) {
	return g.removeWhere(ctx, "RemoveInvalidRows", (*Row).HasErrors)
}

// removeWhere rebuilds the row slice from the non-empty rows not matched
// by drop, padded with empty rows.
func (g *Grid) removeWhere(ctx context.Context, op string, drop func(*Row) bool) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return 0, ErrGridClosed
	}
	g.newEpochLocked()
	if err := g.throttle.Reset(ctx); err != nil {
		g.fail(op, err)
		return 0, err
	}

	var keep []*Row
	for _, r := range g.rows {
		if r.IsEmpty() || drop(r) {
			continue
		}
		keep = append(keep, r)
	}

	padding := max(g.minEmptyRows(), g.initialRows-len(keep))
	rows := make([]*Row, 0, len(keep)+padding)
	for i, r := range keep {
		if r.Index() == i {
			rows = append(rows, r)
			continue
		}
		rows = append(rows, r.cloneAt(i, g.columns))
	}
	rows = append(rows, g.newRows(len(rows), padding)...)

	removed := len(g.rows) - len(rows)
	g.rows = rows

	slog.Info("rows removed", "operation", op, "removed", removed, "rows", len(rows))
	return removed, nil
}
