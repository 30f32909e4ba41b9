package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultRuleTimeout bounds an asynchronous rule that sets no Timeout.
const DefaultRuleTimeout = 5 * time.Second

// Predicate is a synchronous rule check. It returns true when v is valid.
type Predicate func(v Value, row *Row) bool

// AsyncPredicate is a rule check that may block on I/O. It must return
// promptly once ctx is done. A non-nil error fails the rule and is reported
// as an operation failure.
type AsyncPredicate func(ctx context.Context, v Value, row *Row) (bool, error)

// Condition decides whether a rule applies to a row.
type Condition func(row *Row) bool

// Rule is a named check on one column.
//
// Exactly one of Predicate or Async must be set; a rule is asynchronous when
// Async is set. Rules are values: replacing a rule with the same ID is a
// whole-object substitution.
type Rule struct {
	ID        string         // Unique within the column (default: "{Column}_{8 hex}")
	Column    string         // Column the rule validates
	Message   string         // Error message shown when the rule fails
	Priority  int            // Higher priorities report their messages first
	Predicate Predicate      // Synchronous check
	Async     AsyncPredicate // Asynchronous check
	Condition Condition      // Optional applicability check (default: always)
	Timeout   time.Duration  // Async timeout (default: 5s)
}

// IsAsync reports whether the rule runs through Async.
func (r Rule) IsAsync() bool {
	return r.Async != nil
}

// validate checks the structural invariants of r.
func (r Rule) validate() error {
	if strings.TrimSpace(r.Column) == "" {
		return fmt.Errorf("%w: column is required", ErrInvalidRule)
	}
	if r.Predicate == nil && r.Async == nil {
		return fmt.Errorf("%w: rule %q on %s has no predicate", ErrInvalidRule, r.ID, r.Column)
	}
	if r.Predicate != nil && r.Async != nil {
		return fmt.Errorf("%w: rule %q on %s sets both Predicate and Async", ErrInvalidRule, r.ID, r.Column)
	}
	if r.Timeout < 0 {
		return fmt.Errorf("%w: rule %q on %s has a negative timeout", ErrInvalidRule, r.ID, r.Column)
	}
	return nil
}

// withDefaults fills the generated ID and the default timeout.
func (r Rule) withDefaults() Rule {
	if r.ID == "" {
		r.ID = r.Column + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	}
	if r.Timeout == 0 {
		r.Timeout = DefaultRuleTimeout
	}
	return r
}

// applies evaluates Condition. A panicking condition counts as applicable.
func (r Rule) applies(row *Row) (ok bool) {
	if r.Condition == nil {
		return true
	}
	defer func() {
		if p := recover(); p != nil {
			ok = true
		}
	}()
	return r.Condition(row)
}

// check evaluates the synchronous Predicate. A panic fails the rule.
func (r Rule) check(v Value, row *Row) (passed bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			passed = false
			err = fmt.Errorf("rule %s panicked: %v", r.ID, p)
		}
	}()
	return r.Predicate(v, row), nil
}
