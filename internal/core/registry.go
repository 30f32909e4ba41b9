package core

import (
	"slices"
	"sort"
	"sync"
)

// Registry indexes rules by column name.
//
// Reads vastly outnumber writes: every validation calls Get while rules
// change only at initialization or through explicit rule management.
// Get returns a copy, so callers may iterate while the registry changes.
type Registry struct {
	mu    sync.RWMutex
	rules map[string][]Rule
	total int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{rules: make(map[string][]Rule)}
}

// Add inserts rule, replacing any rule with the same ID in the same column.
// Returns the stored rule with defaults applied.
func (r *Registry) Add(rule Rule) (Rule, error) {
	if err := rule.validate(); err != nil {
		return Rule{}, err
	}
	rule = rule.withDefaults()

	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.rules[rule.Column]
	if i := slices.IndexFunc(list, func(x Rule) bool { return x.ID == rule.ID }); i >= 0 {
		list = slices.Delete(slices.Clone(list), i, i+1)
		r.total--
	}
	r.rules[rule.Column] = append(slices.Clip(list), rule)
	r.total++

	return rule, nil
}

// Remove deletes the rule with id from column. No-op if absent.
func (r *Registry) Remove(column, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.rules[column]
	i := slices.IndexFunc(list, func(x Rule) bool { return x.ID == id })
	if i < 0 {
		return false
	}

	list = slices.Delete(slices.Clone(list), i, i+1)
	r.total--
	if len(list) == 0 {
		delete(r.rules, column)
	} else {
		r.rules[column] = list
	}
	return true
}

// Clear removes the rules of the given columns, or all rules when none
// are given.
func (r *Registry) Clear(columns ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(columns) == 0 {
		r.rules = make(map[string][]Rule)
		r.total = 0
		return
	}
	for _, col := range columns {
		r.total -= len(r.rules[col])
		delete(r.rules, col)
	}
}

// Get returns a snapshot of the rules for column in insertion order.
func (r *Registry) Get(column string) []Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.rules[column])
}

// HasRules reports whether column has at least one rule.
func (r *Registry) HasRules(column string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rules[column]) > 0
}

// TotalRuleCount returns the number of rules across all columns.
func (r *Registry) TotalRuleCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.total
}

// Columns returns the columns that have rules, sorted.
func (r *Registry) Columns() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cols := make([]string, 0, len(r.rules))
	for col := range r.rules {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}
