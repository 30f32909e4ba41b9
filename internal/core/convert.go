package core

// convert.go provides the parsing used by Value's conversion methods.
//
// Cell input arrives as free text typed or pasted by a user, so the parsers
// accept the messy representations people actually enter:
//   - Multiple date formats (US, EU, ISO, etc.)
//   - Currency symbols and thousand separators in numbers
//   - Various boolean representations (yes/no, true/false, 1/0)
//
// All parse* functions return pgtype values with Valid=false for empty or
// unparseable input.

import (
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// numericRegex validates that a string is a valid numeric format after cleanup.
// Matches integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would result in dates more than this many years in the future
// are assumed to be in the previous century.
var TwoDigitYearPivot = 20

var (
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1.2.06", "01.02.06",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006/01/02", "2006.01.02",
		"1/2/2006", "01/02/2006", "1.2.2006", "01.02.2006", "2.1.2006",
		"Jan 2, 2006", "2 Jan 2006",
		time.RFC3339,
	}
)

// parseDate parses s using the known layouts, four-digit years first.
func parseDate(s string) pgtype.Date {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Date{}
	}

	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return pgtype.Date{Time: t, Valid: true}
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return pgtype.Date{Time: t, Valid: true}
		}
	}

	return pgtype.Date{}
}

// parseNumeric parses s as a decimal number.
// Handles currency symbols, thousands separators, decimal commas and
// accounting format (parentheses for negative).
func parseNumeric(s string) pgtype.Numeric {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Numeric{}
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.NewReplacer("$", "", "\u20ac", "", "\u00a3", "", "\u00a0", "", " ", "").Replace(s)

	// "1 234,5" style input: a single comma and no dot is a decimal separator.
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") && !looksLikeThousands(s) {
		s = strings.Replace(s, ",", ".", 1)
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}

	if negative {
		s = "-" + s
	}

	if !numericRegex.MatchString(s) {
		return pgtype.Numeric{}
	}

	var n pgtype.Numeric
	if err := n.Scan(s); err != nil {
		return pgtype.Numeric{}
	}
	return n
}

// looksLikeThousands reports whether the only comma in s groups exactly
// three trailing digits, as in "1,234".
func looksLikeThousands(s string) bool {
	i := strings.IndexByte(s, ',')
	return i > 0 && len(s)-i-1 == 3
}

// numericToFloat converts a valid pgtype.Numeric to float64.
func numericToFloat(n pgtype.Numeric) (float64, bool) {
	if !n.Valid {
		return 0, false
	}
	f, err := n.Float64Value()
	if err != nil || !f.Valid {
		return 0, false
	}
	return f.Float64, true
}

// parseBool accepts true/false, yes/no, t/f, y/n, 1/0 and the Slovak áno/nie.
func parseBool(s string) pgtype.Bool {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "true", "t", "yes", "y", "1", "áno", "ano":
		return pgtype.Bool{Bool: true, Valid: true}
	case "false", "f", "no", "n", "0", "nie":
		return pgtype.Bool{Bool: false, Valid: true}
	default:
		return pgtype.Bool{}
	}
}
