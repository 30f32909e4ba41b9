package core

import (
	"strings"
	"sync"
)

// Row is an ordered collection of cells sharing a row index.
//
// Every value or error mutation recomputes the aggregated flags under the
// row mutex, so IsEmpty, HasErrors and ErrorSummary always agree with the
// visible cell state. Lock order is row, then cell.
type Row struct {
	index int
	cells map[string]*Cell
	order []*Cell

	mu        sync.Mutex
	empty     bool
	hasErrors bool
	summary   string

	notify func(Event)
}

func newRow(index int, cols []Column, notify func(Event)) *Row {
	r := &Row{
		index:  index,
		cells:  make(map[string]*Cell, len(cols)),
		order:  make([]*Cell, 0, len(cols)),
		empty:  true,
		notify: notify,
	}
	for i, col := range cols {
		c := newCell(col, index, i)
		r.cells[col.Name] = c
		r.order = append(r.order, c)
	}
	return r
}

// NewRow builds a row that belongs to no grid, filled with values. Unknown
// columns in values are ignored. It is meant for evaluating rules outside
// a grid, such as in rule tests or previews.
func NewRow(index int, columns []Column, values map[string]Value) *Row {
	r := newRow(index, normalizeColumns(columns), nil)
	for name, v := range values {
		if c, ok := r.cells[name]; ok && !IsSpecialColumn(name) {
			r.setValue(c, v)
		}
	}
	return r
}

// Index returns the row index.
func (r *Row) Index() int { return r.index }

// Cell returns the cell for column.
func (r *Row) Cell(column string) (*Cell, bool) {
	c, ok := r.cells[column]
	return c, ok
}

// Cells returns the cells in column order, special columns included.
func (r *Row) Cells() []*Cell {
	out := make([]*Cell, len(r.order))
	copy(out, r.order)
	return out
}

// Value returns the value of column, or null when the column is unknown.
// Rule predicates use it to read sibling cells.
func (r *Row) Value(column string) Value {
	if c, ok := r.cells[column]; ok {
		return c.Value()
	}
	return Null()
}

// IsEmpty reports whether every non-special cell is blank.
func (r *Row) IsEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.empty
}

// HasErrors reports whether any non-special cell has errors.
func (r *Row) HasErrors() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hasErrors
}

// ErrorSummary returns "Column: err; err" entries joined by "; ".
func (r *Row) ErrorSummary() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.summary
}

// ErrorCount returns the total number of error messages in the row.
func (r *Row) ErrorCount() int {
	n := 0
	for _, c := range r.dataCells() {
		n += len(c.Errors())
	}
	return n
}

// Export returns the row's values by column name. Special columns are
// omitted unless includeSummary is set, which adds the error summary.
func (r *Row) Export(includeSummary bool) map[string]Value {
	out := make(map[string]Value, len(r.order))
	for _, c := range r.dataCells() {
		out[c.column] = c.Value()
	}
	if includeSummary {
		out[ColumnErrorSummary] = Text(r.ErrorSummary())
	}
	return out
}

// dataCells returns the non-special cells in column order.
func (r *Row) dataCells() []*Cell {
	out := make([]*Cell, 0, len(r.order))
	for _, c := range r.order {
		if !IsSpecialColumn(c.column) {
			out = append(out, c)
		}
	}
	return out
}

// setValue stores v in c and refreshes the empty flag before returning.
func (r *Row) setValue(c *Cell, v Value) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !c.setValue(v) {
		return false
	}
	r.refreshEmptyLocked()
	return true
}

// commitErrors writes a validation outcome for the given cell version.
// Returns false when the cell value moved on or the row became empty, and
// nothing was written.
func (r *Row) commitErrors(c *Cell, version uint64, errs []string) bool {
	r.mu.Lock()
	if r.empty {
		r.mu.Unlock()
		return false
	}
	changed, ok := c.commitErrors(version, errs)
	if changed {
		r.refreshErrorsLocked()
	}
	r.mu.Unlock()

	if changed {
		r.emitCellErrors(c)
	}
	return ok
}

// clearErrors empties the error list of c.
func (r *Row) clearErrors(c *Cell) {
	r.mu.Lock()
	changed := c.setErrors(nil)
	if changed {
		r.refreshErrorsLocked()
	}
	r.mu.Unlock()

	if changed {
		r.emitCellErrors(c)
	}
}

// clearAllErrors empties the error list of every data cell.
func (r *Row) clearAllErrors() {
	r.mu.Lock()
	var changed []*Cell
	for _, c := range r.dataCells() {
		if c.setErrors(nil) {
			changed = append(changed, c)
		}
	}
	if len(changed) > 0 {
		r.refreshErrorsLocked()
	}
	r.mu.Unlock()

	for _, c := range changed {
		r.emitCellErrors(c)
	}
}

// addError appends msg to c unless present.
func (r *Row) addError(c *Cell, msg string) {
	r.mu.Lock()
	changed := c.addError(msg)
	if changed {
		r.refreshErrorsLocked()
	}
	r.mu.Unlock()

	if changed {
		r.emitCellErrors(c)
	}
}

// clearValues nulls every data cell and clears all errors.
func (r *Row) clearValues() {
	r.mu.Lock()
	for _, c := range r.dataCells() {
		c.setValue(Null())
	}
	r.refreshEmptyLocked()
	r.mu.Unlock()

	r.clearAllErrors()
}

func (r *Row) refreshEmptyLocked() {
	empty := true
	for _, c := range r.order {
		if IsSpecialColumn(c.column) {
			continue
		}
		if !c.Value().IsBlank() {
			empty = false
			break
		}
	}
	r.empty = empty
}

func (r *Row) refreshErrorsLocked() {
	var parts []string
	for _, c := range r.order {
		if IsSpecialColumn(c.column) {
			continue
		}
		if text := c.ErrorsText(); text != "" {
			parts = append(parts, c.column+": "+text)
		}
	}
	r.hasErrors = len(parts) > 0
	r.summary = strings.Join(parts, "; ")

	if sc, ok := r.cells[ColumnErrorSummary]; ok {
		sc.setValue(summaryValue(r.summary))
	}
}

func summaryValue(s string) Value {
	if s == "" {
		return Null()
	}
	return Text(s)
}

func (r *Row) emitCellErrors(c *Cell) {
	if r.notify == nil {
		return
	}
	r.notify(Event{
		Kind:   EventCellErrorsChanged,
		Row:    r.index,
		Column: c.column,
		Errors: c.Errors(),
	})
}

// cloneAt copies values and errors into a new row at index.
func (r *Row) cloneAt(index int, cols []Column) *Row {
	nr := newRow(index, cols, r.notify)
	nr.mu.Lock()
	defer nr.mu.Unlock()
	for _, c := range r.dataCells() {
		dst, ok := nr.cells[c.column]
		if !ok {
			continue
		}
		c.mu.RLock()
		dst.value = c.value
		dst.previous = c.previous
		dst.errors = append([]string(nil), c.errors...)
		c.mu.RUnlock()
	}
	nr.refreshEmptyLocked()
	nr.refreshErrorsLocked()
	return nr
}
