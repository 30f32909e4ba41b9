package core

import (
	"slices"
	"strings"
	"sync"
)

// Cell is a single (row, column) value container with its own error list.
//
// Cells are owned by their Row. Value and error mutations go through the
// row so that the row's aggregated flags stay consistent; the exported
// methods here are read-only.
type Cell struct {
	column      string
	columnIndex int
	readOnly    bool

	mu       sync.RWMutex
	rowIndex int
	value    Value
	previous Value
	original Value
	errors   []string
	editing  bool
	version  uint64
}

func newCell(col Column, rowIndex, columnIndex int) *Cell {
	return &Cell{
		column:      col.Name,
		columnIndex: columnIndex,
		readOnly:    col.ReadOnly || IsSpecialColumn(col.Name),
		rowIndex:    rowIndex,
	}
}

// Column returns the cell's column name.
func (c *Cell) Column() string { return c.column }

// ColumnIndex returns the column position within the grid.
func (c *Cell) ColumnIndex() int { return c.columnIndex }

// ReadOnly reports whether edits to the cell are rejected.
func (c *Cell) ReadOnly() bool { return c.readOnly }

// RowIndex returns the index of the owning row.
func (c *Cell) RowIndex() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rowIndex
}

// Value returns the current value.
func (c *Cell) Value() Value {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// PreviousValue returns the value held before the last change.
func (c *Cell) PreviousValue() Value {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.previous
}

// Errors returns a copy of the current error messages in order.
func (c *Cell) Errors() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.errors)
}

// HasErrors reports whether the cell has at least one error.
func (c *Cell) HasErrors() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.errors) > 0
}

// ErrorsText joins the error messages with "; ".
func (c *Cell) ErrorsText() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return strings.Join(c.errors, "; ")
}

// IsEditing reports whether an edit session is open on the cell.
func (c *Cell) IsEditing() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.editing
}

// HasUnsavedChanges reports whether the value differs from the value the
// current edit session started with.
func (c *Cell) HasUnsavedChanges() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.editing && !c.value.Equal(c.original)
}

// snapshot returns the value together with its version. A validation
// started from a snapshot may only write errors for the same version.
func (c *Cell) snapshot() (Value, uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value, c.version
}

// setValue stores v and bumps the version. Returns false when v equals the
// current value.
func (c *Cell) setValue(v Value) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.value.Equal(v) {
		return false
	}
	c.previous = c.value
	c.value = v
	c.version++
	return true
}

// setErrors replaces the error list. Returns whether it changed.
func (c *Cell) setErrors(errs []string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.replaceErrorsLocked(errs)
}

// commitErrors replaces the error list only if the value is still at
// version. ok is false for a stale write.
func (c *Cell) commitErrors(version uint64, errs []string) (changed, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.version != version {
		return false, false
	}
	return c.replaceErrorsLocked(errs), true
}

func (c *Cell) replaceErrorsLocked(errs []string) bool {
	if slices.Equal(c.errors, errs) || (len(c.errors) == 0 && len(errs) == 0) {
		return false
	}
	c.errors = slices.Clone(errs)
	return true
}

// addError appends msg unless it is already present.
func (c *Cell) addError(msg string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if slices.Contains(c.errors, msg) {
		return false
	}
	c.errors = append(c.errors, msg)
	return true
}

func (c *Cell) startEditing() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.editing {
		c.original = c.value
		c.editing = true
	}
}

// endEditing closes the edit session and returns the value it started with.
func (c *Cell) endEditing() (Value, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.editing {
		return Value{}, false
	}
	c.editing = false
	return c.original, true
}
