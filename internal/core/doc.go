// Package core provides the validation engine behind the editable grid.
//
// This package is the heart of gridcheck, containing all domain logic
// independent of any UI or transport layer. It can be used by web handlers,
// CLI tools, or tests without modification.
//
// # Architecture
//
// The package is organized around several key concepts:
//
//   - Grid Model: [Row] and [Cell] hold tagged [Value]s and derive the
//     empty and has-errors flags of each row.
//   - Rules: registered per column in a [Registry]; synchronous or
//     asynchronous predicates with priority, applicability and timeout.
//   - Validator: evaluates rules for a cell, a row or the whole grid while
//     holding a slot of the shared [Limiter].
//   - Throttle: debounces edits per cell and cancels superseded work.
//   - Grid: the facade the presentation layer talks to.
//
// # Edit Flow
//
// Every edit enters through [Grid.OnCellValueChanged]:
//
//  1. The cell value is stored and the row's empty flag is refreshed
//  2. The throttle cancels any pending validation for the same cell
//  3. After TypingDelay the validator acquires a limiter slot
//  4. Applicable rules run in descending priority order
//  5. Errors are written back only if the cell still holds the same value
//
// # Rule Failures
//
// Rule evaluation is fail-closed: a panic, timeout or store error inside a
// predicate counts as a failed rule. Applicability checks are fail-open: a
// panicking Condition lets the rule run.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - CFG001-CFG003: Configuration errors (throttling, columns, rules)
//   - GRID001-GRID006: Grid addressing and lifecycle errors
//   - RULE001-RULE003: Rule evaluation errors
//   - DB001-DB003, RDS001: Rule store errors
//
// # Notifications
//
// Subscribers receive cell-errors-changed, row-validated, operation-failed
// and batch-progress events through [Grid.Subscribe].
package core
