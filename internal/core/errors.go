package core

import "errors"

var (
	// ErrGridClosed is returned by every operation after Close.
	ErrGridClosed = errors.New("grid closed")

	// ErrRowNotFound is returned when a row index is out of range.
	ErrRowNotFound = errors.New("row not found")

	// ErrColumnNotFound is returned when a column name is not defined.
	ErrColumnNotFound = errors.New("column not found")

	// ErrReadOnlyCell is returned when an edit targets a read-only or special cell.
	ErrReadOnlyCell = errors.New("cell is read-only")

	// ErrInvalidThrottling wraps every ThrottlingConfig validation problem.
	ErrInvalidThrottling = errors.New("invalid throttling config")

	// ErrInvalidColumns wraps every column definition problem.
	ErrInvalidColumns = errors.New("invalid column definitions")

	// ErrInvalidRule is returned when a rule has no column or no predicate.
	ErrInvalidRule = errors.New("invalid rule")

	// ErrStaleValidation is returned when the cell value changed while its
	// rules were running. Nothing is written in that case.
	ErrStaleValidation = errors.New("stale validation: cell value changed")
)
