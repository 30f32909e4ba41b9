// Package csvimport reads CSV files into grid records.
//
// Files exported by spreadsheet programs often start with a byte order mark,
// use a semicolon as the separator or carry stray invalid bytes. The reader
// strips UTF-8 and UTF-16 BOMs, decodes UTF-16 when a BOM announces it,
// replaces invalid UTF-8 with U+FFFD and detects the separator from the
// start of the file.
package csvimport

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/JonMunkholm/gridcheck/internal/core"
)

var (
	// ErrNoHeader is returned when no row within the search window names a grid column.
	ErrNoHeader = errors.New("no header row")

	// ErrTooManyRows is returned when the file holds more data rows than allowed.
	ErrTooManyRows = errors.New("too many rows")
)

// MaxHeaderSearchRows is the maximum number of rows to scan for the header.
const MaxHeaderSearchRows = 20

// separators are tried in order when Options.Comma is zero.
var separators = []rune{',', ';', '\t'}

// Options control how a file is read.
type Options struct {
	Comma   rune // Field separator; 0 detects ',', ';' or tab
	Parse   bool // Infer number, bool and date kinds instead of keeping text
	MaxRows int  // Maximum data rows (default: core.MaxInitialRows)
}

// Result is a decoded file.
type Result struct {
	Records   []map[string]core.Value
	Columns   []string // Grid columns matched by the header, in file order
	Ignored   []string // Header cells that matched no grid column
	HeaderRow int      // Zero-based record index of the header
	Skipped   int      // Blank data rows left out
}

// Read decodes r into records keyed by grid column names.
//
// The header is the first of the leading MaxHeaderSearchRows records that
// names at least one of columns (case-insensitive). Blank cells are left out
// of the record so they stay null, and blank rows are skipped.
func Read(r io.Reader, columns []string, opts Options) (*Result, error) {
	if opts.MaxRows <= 0 {
		opts.MaxRows = core.MaxInitialRows
	}

	br := bufio.NewReader(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	if opts.Comma == 0 {
		opts.Comma = detectSeparator(br)
	}

	cr := csv.NewReader(br)
	cr.Comma = opts.Comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	res := &Result{HeaderRow: -1}
	var mapping []string // file column index -> grid column, "" when unmatched

	for line := 0; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}

		if mapping == nil {
			if line >= MaxHeaderSearchRows {
				break
			}
			if m, ok := matchHeader(rec, columns); ok {
				mapping = m
				res.HeaderRow = line
				for i, col := range m {
					if col != "" {
						res.Columns = append(res.Columns, col)
					} else if h := cleanCell(rec[i]); h != "" {
						res.Ignored = append(res.Ignored, h)
					}
				}
			}
			continue
		}

		record := toRecord(rec, mapping, opts.Parse)
		if len(record) == 0 {
			res.Skipped++
			continue
		}
		if len(res.Records) == opts.MaxRows {
			return nil, fmt.Errorf("%w: limit is %d", ErrTooManyRows, opts.MaxRows)
		}
		res.Records = append(res.Records, record)
	}

	if mapping == nil {
		return nil, fmt.Errorf("%w: expected one of %s", ErrNoHeader, strings.Join(columns, ", "))
	}
	return res, nil
}

// detectSeparator picks the separator that occurs most often in the
// buffered start of the file.
func detectSeparator(br *bufio.Reader) rune {
	head, _ := br.Peek(br.Size())

	best, bestCount := separators[0], 0
	for _, sep := range separators {
		if n := bytes.Count(head, []byte(string(sep))); n > bestCount {
			best, bestCount = sep, n
		}
	}
	return best
}

// matchHeader maps header cells to grid columns. ok is false when no cell matches.
func matchHeader(rec []string, columns []string) ([]string, bool) {
	mapping := make([]string, len(rec))
	used := make(map[string]bool, len(columns))
	matched := false

	for i, cell := range rec {
		h := cleanCell(cell)
		for _, col := range columns {
			if !used[col] && strings.EqualFold(h, col) {
				mapping[i] = col
				used[col] = true
				matched = true
				break
			}
		}
	}
	return mapping, matched
}

func toRecord(rec []string, mapping []string, parse bool) map[string]core.Value {
	record := make(map[string]core.Value)
	for i, raw := range rec {
		if i >= len(mapping) || mapping[i] == "" {
			continue
		}
		s := strings.TrimSpace(raw)
		if s == "" {
			continue
		}
		if parse {
			record[mapping[i]] = core.ParseValue(s)
		} else {
			record[mapping[i]] = core.Text(s)
		}
	}
	return record
}

// cleanCell trims whitespace and surrounding quotes left by lazy quoting.
func cleanCell(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"'`)
}
