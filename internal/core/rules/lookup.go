package rules

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/gridcheck/internal/core"
)

// Querier is the subset of pgx used by Lookup. *pgxpool.Pool, *pgx.Conn
// and pgx.Tx all satisfy it.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Lookup builds an async rule that passes when query returns true for the
// cell text. query must take one parameter and select a single boolean,
// for example:
//
//	SELECT EXISTS (SELECT 1 FROM customers WHERE email = $1)
//
// Blank values pass without a query.
func Lookup(column string, db Querier, query, message string, opts ...Option) core.Rule {
	if message == "" {
		message = column + " neexistuje"
	}
	return build(core.Rule{
		ID:      column + "_Lookup",
		Column:  column,
		Message: message,
		Timeout: core.DefaultRuleTimeout,
		Async: func(ctx context.Context, v core.Value, _ *core.Row) (bool, error) {
			if v.IsBlank() {
				return true, nil
			}
			var found bool
			if err := db.QueryRow(ctx, query, strings.TrimSpace(v.String())).Scan(&found); err != nil {
				return false, fmt.Errorf("lookup %s: %w", column, err)
			}
			return found, nil
		},
	}, opts)
}

// Unique builds an async rule that fails when query finds the value
// already present. query has the same shape as for Lookup.
func Unique(column string, db Querier, query, message string, opts ...Option) core.Rule {
	if message == "" {
		message = column + " už existuje"
	}
	lookup := Lookup(column, db, query, message)
	return build(core.Rule{
		ID:      column + "_Unique",
		Column:  column,
		Message: message,
		Timeout: core.DefaultRuleTimeout,
		Async: func(ctx context.Context, v core.Value, row *core.Row) (bool, error) {
			if v.IsBlank() {
				return true, nil
			}
			exists, err := lookup.Async(ctx, v, row)
			if err != nil {
				return false, err
			}
			return !exists, nil
		},
	}, opts)
}
