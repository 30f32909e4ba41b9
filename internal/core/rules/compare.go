package rules

import (
	"cmp"
	"fmt"
	"strings"

	"github.com/JonMunkholm/gridcheck/internal/core"
)

// Operator is a comparison used by Compare.
type Operator int

const (
	Equal Operator = iota
	NotEqual
	GreaterThan
	GreaterThanOrEqual
	LessThan
	LessThanOrEqual
)

// text returns the Slovak phrase used in default messages.
func (o Operator) text() string {
	switch o {
	case Equal:
		return "rovnaké"
	case NotEqual:
		return "rozdielne"
	case GreaterThan:
		return "väčšie"
	case GreaterThanOrEqual:
		return "väčšie alebo rovnaké"
	case LessThan:
		return "menšie"
	case LessThanOrEqual:
		return "menšie alebo rovnaké"
	default:
		return "porovnateľné"
	}
}

func (o Operator) holds(c int) bool {
	switch o {
	case Equal:
		return c == 0
	case NotEqual:
		return c != 0
	case GreaterThan:
		return c > 0
	case GreaterThanOrEqual:
		return c >= 0
	case LessThan:
		return c < 0
	case LessThanOrEqual:
		return c <= 0
	default:
		return false
	}
}

// Compare checks the cell against another column of the same row.
// Two null values are equal; a null on one side satisfies only NotEqual.
func Compare(column, other string, op Operator, opts ...Option) core.Rule {
	return build(core.Rule{
		ID:      fmt.Sprintf("%s_Compare_%s", column, other),
		Column:  column,
		Message: fmt.Sprintf("%s musí byť %s ako %s", column, op.text(), other),
		Predicate: func(v core.Value, row *core.Row) bool {
			o := row.Value(other)
			switch {
			case v.IsNull() && o.IsNull():
				return op == Equal || op == GreaterThanOrEqual || op == LessThanOrEqual
			case v.IsNull() || o.IsNull():
				return op == NotEqual
			}
			return op.holds(compareValues(v, o))
		},
	}, opts)
}

// compareValues orders numbers and dates by value when both sides convert,
// and falls back to case-sensitive text order.
func compareValues(a, b core.Value) int {
	if x, ok := a.AsNumber(); ok {
		if y, ok := b.AsNumber(); ok {
			return cmp.Compare(x, y)
		}
	}
	if x, ok := a.AsDate(); ok {
		if y, ok := b.AsDate(); ok {
			return x.Compare(y)
		}
	}
	return strings.Compare(a.String(), b.String())
}
