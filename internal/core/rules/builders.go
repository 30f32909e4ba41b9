// Package rules provides ready-made validation rules for grid columns.
//
// Builders return core.Rule values with a deterministic ID of the form
// "{column}_{Kind}" so that registering the same builder twice replaces the
// earlier rule instead of duplicating it. Apart from Required, every
// builder accepts blank values; combine with Required to forbid them.
//
// Messages default to the Slovak texts the grid shows to its users and can
// be overridden with WithMessage.
package rules

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/JonMunkholm/gridcheck/internal/core"
)

// emailRegex matches a minimal "local@domain.tld" shape.
var emailRegex = regexp.MustCompile(`(?i)^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Option customizes a built rule.
type Option func(*core.Rule)

// WithMessage overrides the error message.
func WithMessage(msg string) Option {
	return func(r *core.Rule) { r.Message = msg }
}

// WithID overrides the rule ID.
func WithID(id string) Option {
	return func(r *core.Rule) { r.ID = id }
}

// WithPriority sets the rule priority.
func WithPriority(p int) Option {
	return func(r *core.Rule) { r.Priority = p }
}

// When restricts the rule to rows for which cond holds.
func When(cond core.Condition) Option {
	return func(r *core.Rule) { r.Condition = cond }
}

// WithTimeout sets the timeout of an async rule.
func WithTimeout(d time.Duration) Option {
	return func(r *core.Rule) { r.Timeout = d }
}

func build(r core.Rule, opts []Option) core.Rule {
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// Required fails on null or whitespace-only values.
func Required(column string, opts ...Option) core.Rule {
	return build(core.Rule{
		ID:      column + "_Required",
		Column:  column,
		Message: column + " je povinné pole",
		Predicate: func(v core.Value, _ *core.Row) bool {
			return !v.IsBlank()
		},
	}, opts)
}

// Length requires the text length to be within [minLen, maxLen] runes.
// maxLen <= 0 means no upper bound.
func Length(column string, minLen, maxLen int, opts ...Option) core.Rule {
	upper := "∞"
	if maxLen > 0 {
		upper = fmt.Sprint(maxLen)
	}
	return build(core.Rule{
		ID:      column + "_Length",
		Column:  column,
		Message: fmt.Sprintf("%s musí mať dĺžku medzi %d a %s znakmi", column, minLen, upper),
		Predicate: func(v core.Value, _ *core.Row) bool {
			if v.IsBlank() {
				return true
			}
			n := utf8.RuneCountInString(v.String())
			return n >= minLen && (maxLen <= 0 || n <= maxLen)
		},
	}, opts)
}

// Range requires a numeric value within [lo, hi].
func Range(column string, lo, hi float64, opts ...Option) core.Rule {
	return build(core.Rule{
		ID:      column + "_Range",
		Column:  column,
		Message: fmt.Sprintf("%s musí byť medzi %g a %g", column, lo, hi),
		Predicate: func(v core.Value, _ *core.Row) bool {
			if v.IsBlank() {
				return true
			}
			f, ok := v.AsNumber()
			return ok && f >= lo && f <= hi
		},
	}, opts)
}

// Email requires a value shaped like an email address.
func Email(column string, opts ...Option) core.Rule {
	return build(core.Rule{
		ID:      column + "_Email",
		Column:  column,
		Message: column + " musí mať platný formát emailu",
		Predicate: func(v core.Value, _ *core.Row) bool {
			if v.IsBlank() {
				return true
			}
			return emailRegex.MatchString(strings.TrimSpace(v.String()))
		},
	}, opts)
}

// Numeric requires a value convertible to a number.
func Numeric(column string, opts ...Option) core.Rule {
	return build(core.Rule{
		ID:      column + "_Numeric",
		Column:  column,
		Message: column + " musí byť číslo",
		Predicate: func(v core.Value, _ *core.Row) bool {
			if v.IsBlank() {
				return true
			}
			_, ok := v.AsNumber()
			return ok
		},
	}, opts)
}

// Date requires a value convertible to a date.
func Date(column string, opts ...Option) core.Rule {
	return build(core.Rule{
		ID:      column + "_Date",
		Column:  column,
		Message: column + " musí byť platný dátum",
		Predicate: func(v core.Value, _ *core.Row) bool {
			if v.IsBlank() {
				return true
			}
			_, ok := v.AsDate()
			return ok
		},
	}, opts)
}

// Regex requires the display text to match pattern. It panics if pattern
// does not compile, like regexp.MustCompile.
func Regex(column, pattern string, opts ...Option) core.Rule {
	re := regexp.MustCompile(pattern)
	return build(core.Rule{
		ID:      column + "_Regex",
		Column:  column,
		Message: column + " nemá správny formát",
		Predicate: func(v core.Value, _ *core.Row) bool {
			if v.IsBlank() {
				return true
			}
			return re.MatchString(v.String())
		},
	}, opts)
}

// OneOf requires the display text to be one of allowed (case-insensitive).
func OneOf(column string, allowed []string, opts ...Option) core.Rule {
	set := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		set[strings.ToLower(strings.TrimSpace(a))] = true
	}
	return build(core.Rule{
		ID:      column + "_OneOf",
		Column:  column,
		Message: fmt.Sprintf("%s musí byť jedna z hodnôt: %s", column, strings.Join(allowed, ", ")),
		Predicate: func(v core.Value, _ *core.Row) bool {
			if v.IsBlank() {
				return true
			}
			return set[strings.ToLower(strings.TrimSpace(v.String()))]
		},
	}, opts)
}

// Custom wraps an arbitrary predicate. The ID is generated unless set
// with WithID.
func Custom(column string, pred core.Predicate, message string, opts ...Option) core.Rule {
	return build(core.Rule{
		Column:    column,
		Message:   message,
		Predicate: pred,
	}, opts)
}

// Conditional applies pred only to rows for which cond holds.
func Conditional(column string, pred core.Predicate, cond core.Condition, message string, opts ...Option) core.Rule {
	return build(core.Rule{
		Column:    column,
		Message:   message,
		Predicate: pred,
		Condition: cond,
	}, opts)
}

// Async wraps an asynchronous predicate with the default 5s timeout.
func Async(column string, pred core.AsyncPredicate, message string, opts ...Option) core.Rule {
	return build(core.Rule{
		ID:      column + "_Async_" + uuid.NewString()[:8],
		Column:  column,
		Message: message,
		Async:   pred,
		Timeout: core.DefaultRuleTimeout,
	}, opts)
}
