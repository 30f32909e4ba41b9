package main

import (
	"strings"

	"github.com/JonMunkholm/gridcheck/internal/config"
	"github.com/JonMunkholm/gridcheck/internal/core"
	"github.com/JonMunkholm/gridcheck/internal/core/rules"
)

// buildColumns turns GRID_COLUMNS into column definitions. Special columns
// are appended by the grid.
func buildColumns(cfg config.GridConfig) []core.Column {
	cols := make([]core.Column, 0, len(cfg.Columns))
	for _, name := range cfg.Columns {
		if name = strings.TrimSpace(name); name != "" {
			cols = append(cols, core.Column{Name: name})
		}
	}
	return cols
}

// buildRules assembles the configured rules. db and rdb may be nil when the
// corresponding store is not configured.
func buildRules(cfg *config.Config, db rules.Querier, rdb rules.SetChecker) []core.Rule {
	var out []core.Rule

	for _, col := range cfg.Grid.Required {
		out = append(out, rules.Required(columnName(cfg, col), rules.WithPriority(10)))
	}
	for _, col := range cfg.Grid.EmailColumns {
		out = append(out, rules.Email(columnName(cfg, col)))
	}

	if db != nil && cfg.Database.LookupColumn != "" {
		out = append(out, rules.Lookup(columnName(cfg, cfg.Database.LookupColumn), db, cfg.Database.LookupQuery, ""))
	}
	if rdb != nil && cfg.Redis.SetColumn != "" {
		out = append(out, rules.SetMember(columnName(cfg, cfg.Redis.SetColumn), rdb, cfg.Redis.SetKey, ""))
	}
	return out
}

// columnName resolves a rule column to the spelling used in GRID_COLUMNS,
// since configuration matches column names case-insensitively.
func columnName(cfg *config.Config, name string) string {
	name = strings.TrimSpace(name)
	for _, col := range cfg.Grid.Columns {
		if strings.EqualFold(strings.TrimSpace(col), name) {
			return strings.TrimSpace(col)
		}
	}
	return name
}
