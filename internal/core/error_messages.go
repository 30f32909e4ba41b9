// Package core provides the validation engine behind the editable grid.
//
// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support reference.
// Error codes travel with operation-failed notifications and HTTP error
// responses, so users can quote them to support staff.
//
// Error codes are grouped by category:
//
// # Configuration Errors (CFG001-CFG099)
//
//	CFG001 - Invalid throttling: Throttling settings are out of range
//	         Action: Use non-negative delays, at least one concurrent validation and a positive timeout
//	         Patterns: "invalid throttling config"
//
//	CFG002 - Invalid columns: Column definitions are inconsistent
//	         Action: Give every column a unique name and positive width bounds
//	         Patterns: "invalid column definitions"
//
//	CFG003 - Invalid rule: A rule has no column or no predicate
//	         Action: Set the rule column and exactly one predicate
//	         Patterns: "invalid rule"
//
// # Grid Errors (GRID001-GRID099)
//
//	GRID001 - Grid closed: The grid was shut down
//	          Action: Reload the page to start a new session
//	          Patterns: "grid closed"
//
//	GRID002 - Row not found: The row index is outside the grid
//	          Patterns: "row not found"
//
//	GRID003 - Column not found: The column is not defined
//	          Patterns: "column not found"
//
//	GRID004 - Read-only cell: The cell cannot be edited
//	          Patterns: "cell is read-only"
//
//	GRID005 - Stale validation: The value changed while it was being validated
//	          Patterns: "stale validation"
//
//	GRID006 - Cancelled: The operation was cancelled
//	          Patterns: "context canceled"
//
// # Rule Errors (RULE001-RULE099)
//
//	RULE001 - Rule panicked: A validation rule crashed
//	          Patterns: "panicked"
//
//	RULE002 - Rule timed out: A validation rule did not answer in time
//	          Patterns: "context deadline exceeded", "timeout"
//
// # Store Errors (DB001-DB099, RDS001-RDS099)
//
//	DB001 - Connection refused: Unable to reach the lookup database
//	DB002 - Connection reset: Lookup database connection was interrupted
//	DB003 - Query failed: The lookup query is invalid
//	RDS001 - Redis unavailable: Unable to reach the lookup cache
//
// # Import Errors (IMP001-IMP002)
//
//	IMP001 - No header: The file has no header row matching the grid columns
//	IMP002 - Too large: The file has more rows than the grid can hold
//
// # Default Error (ERR000)
//
//	ERR000 - Unknown error: An unexpected error occurred
//	         Action: Please try again or contact support
//
// # Pattern Matching
//
// Error patterns are matched case-insensitively using strings.Contains.
// The first matching pattern wins, so more specific patterns should be
// defined before general ones.
package core

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// The first matching pattern wins, so order matters:
//   - More specific patterns should come before general ones
//   - Multiple patterns can map to the same error code
var errorPatterns = []errorPattern{
	// =========================================================================
	// Configuration Errors (CFG001-CFG003)
	// These errors stop a grid from being created.
	// =========================================================================
	{
		pattern: "invalid throttling config",
		msg: UserMessage{
			Message: "Throttling settings are out of range",
			Action:  "Use non-negative delays, at least one concurrent validation and a positive timeout",
			Code:    "CFG001",
		},
	},
	{
		pattern: "invalid column definitions",
		msg: UserMessage{
			Message: "Column definitions are inconsistent",
			Action:  "Give every column a unique name and positive width bounds",
			Code:    "CFG002",
		},
	},
	{
		pattern: "invalid rule",
		msg: UserMessage{
			Message: "A validation rule is incomplete",
			Action:  "Set the rule column and exactly one predicate",
			Code:    "CFG003",
		},
	},

	// =========================================================================
	// Grid Errors (GRID001-GRID006)
	// These errors occur when addressing rows and cells.
	// =========================================================================
	{
		pattern: "grid closed",
		msg: UserMessage{
			Message: "The grid was shut down",
			Action:  "Reload the page to start a new session",
			Code:    "GRID001",
		},
	},
	{
		pattern: "row not found",
		msg: UserMessage{
			Message: "Row does not exist",
			Action:  "Check the row number",
			Code:    "GRID002",
		},
	},
	{
		pattern: "column not found",
		msg: UserMessage{
			Message: "Column does not exist",
			Action:  "Verify the column name matches the grid definition",
			Code:    "GRID003",
		},
	},
	{
		pattern: "cell is read-only",
		msg: UserMessage{
			Message: "This cell cannot be edited",
			Action:  "Edit a data column instead",
			Code:    "GRID004",
		},
	},
	{
		pattern: "stale validation",
		msg: UserMessage{
			Message: "The value changed while it was being validated",
			Action:  "No action needed, the newer value is validated automatically",
			Code:    "GRID005",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "The operation was cancelled",
			Action:  "Please try again",
			Code:    "GRID006",
		},
	},

	// =========================================================================
	// Store Errors (RDS001, DB001-DB003)
	// These errors come from lookup rules backed by external stores.
	// =========================================================================
	{
		pattern: "redis",
		msg: UserMessage{
			Message: "Unable to reach the lookup cache",
			Action:  "Please try again in a few moments",
			Code:    "RDS001",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to reach the lookup database",
			Action:  "Please try again in a few moments",
			Code:    "DB001",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Lookup database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB002",
		},
	},
	{
		pattern: "sqlstate",
		msg: UserMessage{
			Message: "The lookup query failed",
			Action:  "Check the lookup rule configuration",
			Code:    "DB003",
		},
	},

	// =========================================================================
	// Import Errors (IMP001-IMP002)
	// These errors occur when reading a CSV file into the grid.
	// =========================================================================
	{
		pattern: "no header row",
		msg: UserMessage{
			Message: "The file has no header row matching the grid columns",
			Action:  "Add a first row with column names such as those shown in the grid",
			Code:    "IMP001",
		},
	},
	{
		pattern: "too many rows",
		msg: UserMessage{
			Message: "The file has more rows than the grid can hold",
			Action:  "Split the file into smaller parts",
			Code:    "IMP002",
		},
	},

	// =========================================================================
	// Rule Errors (RULE001-RULE002)
	// These errors occur inside rule predicates.
	// =========================================================================
	{
		pattern: "panicked",
		msg: UserMessage{
			Message: "A validation rule crashed",
			Action:  "Report the rule ID to support",
			Code:    "RULE001",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "A validation rule did not answer in time",
			Action:  "Try again later or raise the rule timeout",
			Code:    "RULE002",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "A validation rule did not answer in time",
			Action:  "Try again later or raise the rule timeout",
			Code:    "RULE002",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
// Support staff should check application logs for the original technical
// error when users report ERR000.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It searches through known error patterns (case-insensitive) and returns
// the first match. If no pattern matches, a generic fallback message with
// code ERR000 is returned.
//
// Example:
//
//	msg := MapError(fmt.Errorf("edit: %w", ErrRowNotFound))
//	// msg.Code == "GRID002"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing checks if an error matches a known pattern and should be shown to users.
// Returns true if the error matches a specific pattern (not the generic ERR000 fallback).
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
