package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Reserved column names. They are excluded from emptiness and validation
// accounting and are always placed after the data columns.
const (
	ColumnRowAction    = "DeleteAction"
	ColumnErrorSummary = "ValidAlerts"
)

// Default column widths used when a Column leaves them at zero.
const (
	DefaultMinWidth = 80
	DefaultMaxWidth = 300
	DefaultWidth    = 150
)

// IsSpecialColumn reports whether name is one of the reserved columns.
func IsSpecialColumn(name string) bool {
	return name == ColumnRowAction || name == ColumnErrorSummary
}

// Column defines one grid column.
type Column struct {
	Name     string // Unique column name, matched case-insensitively for duplicates
	Header   string // Display header (defaults to Name)
	DataType Kind   // Expected value kind, informational for the presentation layer
	MinWidth int    // Minimum width (default: 80)
	MaxWidth int    // Maximum width (default: 300)
	Width    int    // Initial width (default: 150)
	ReadOnly bool   // Rejects edits through OnCellValueChanged
	ToolTip  string
}

// withDefaults fills zero widths and the header.
func (c Column) withDefaults() Column {
	if c.Header == "" {
		c.Header = c.Name
	}
	if c.MinWidth == 0 {
		c.MinWidth = DefaultMinWidth
	}
	if c.MaxWidth == 0 {
		c.MaxWidth = DefaultMaxWidth
	}
	if c.Width == 0 {
		c.Width = DefaultWidth
	}
	return c
}

// errorSummaryColumn is appended when the caller does not define one.
func errorSummaryColumn() Column {
	return Column{
		Name:     ColumnErrorSummary,
		Header:   "Validačné chyby",
		DataType: KindText,
		MinWidth: 150,
		MaxWidth: 400,
		Width:    250,
		ReadOnly: true,
		ToolTip:  "Zoznam validačných chýb riadku",
	}
}

// ValidateColumns checks column definitions and returns every problem found,
// wrapped in ErrInvalidColumns.
func ValidateColumns(cols []Column) error {
	if len(cols) == 0 {
		return fmt.Errorf("%w: at least one column is required", ErrInvalidColumns)
	}

	var errs []error
	seen := make(map[string]bool, len(cols))
	for i, c := range cols {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			errs = append(errs, fmt.Errorf("column %d: name is required", i))
			continue
		}
		key := strings.ToLower(name)
		if seen[key] {
			errs = append(errs, fmt.Errorf("column %q: duplicate name", c.Name))
		}
		seen[key] = true

		c = c.withDefaults()
		if c.MinWidth < 0 || c.MaxWidth < 0 || c.Width < 0 {
			errs = append(errs, fmt.Errorf("column %q: width bounds must be positive", c.Name))
			continue
		}
		if c.MinWidth > c.MaxWidth {
			errs = append(errs, fmt.Errorf("column %q: min width %d exceeds max width %d", c.Name, c.MinWidth, c.MaxWidth))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidColumns, errors.Join(errs...))
	}
	return nil
}

// normalizeColumns applies defaults and orders columns as data columns,
// then the row-action column, then the error-summary column. The summary
// column is added when missing and is always read-only.
func normalizeColumns(cols []Column) []Column {
	out := make([]Column, 0, len(cols)+1)
	var action, summary *Column

	for _, c := range cols {
		c = c.withDefaults()
		switch c.Name {
		case ColumnRowAction:
			c.ReadOnly = true
			action = &c
		case ColumnErrorSummary:
			c.ReadOnly = true
			summary = &c
		default:
			out = append(out, c)
		}
	}

	if action != nil {
		out = append(out, *action)
	}
	if summary == nil {
		s := errorSummaryColumn()
		summary = &s
	}
	return append(out, *summary)
}

// BatchProgress reports how far ValidateAllRows has got.
type BatchProgress struct {
	Processed int `json:"processed"`
	Total     int `json:"total"`
}

// Percent returns the completion percentage (0-100).
func (p BatchProgress) Percent() float64 {
	if p.Total == 0 {
		return 100
	}
	return float64(p.Processed) / float64(p.Total) * 100
}

// ProgressFunc receives progress after every completed batch.
type ProgressFunc func(BatchProgress)

// BatchResult summarizes a grid-wide validation.
type BatchResult struct {
	Results     []ValidationResult `json:"results"`
	Rows        int                `json:"rows"`
	ValidRows   int                `json:"valid_rows"`
	InvalidRows int                `json:"invalid_rows"`
	Duration    time.Duration      `json:"duration"`
}

// Valid reports whether every validated row passed.
func (r BatchResult) Valid() bool {
	return r.InvalidRows == 0
}
