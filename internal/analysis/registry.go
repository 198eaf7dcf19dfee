package analysis

import (
	"fmt"
	"slices"
	"strings"
)

// Entry pairs a rule with the fixer that repairs its findings. Fixer may be
// nil for report-only rules.
type Entry struct {
	Rule  Rule
	Fixer Fixer
}

// Registry is the ordered set of rules a run knows about. Rules are fixed
// in registration order.
type Registry struct {
	entries []Entry
	index   map[string]int
}

// NewRegistry validates and orders entries. Rule IDs are case-insensitive
// and must be unique; a fixer must declare the rule it is paired with.
func NewRegistry(entries ...Entry) (*Registry, error) {
	r := &Registry{index: make(map[string]int, len(entries))}
	for _, e := range entries {
		id := e.Rule.Descriptor().ID
		key := strings.ToUpper(id)
		if _, dup := r.index[key]; dup {
			return nil, fmt.Errorf("duplicate rule %s", id)
		}
		if e.Fixer != nil && !slices.ContainsFunc(e.Fixer.FixableIDs(), func(s string) bool { return strings.EqualFold(s, id) }) {
			return nil, fmt.Errorf("fixer paired with %s does not declare it", id)
		}
		r.index[key] = len(r.entries)
		r.entries = append(r.entries, e)
	}
	return r, nil
}

// MustRegistry is NewRegistry for static rule sets.
func MustRegistry(entries ...Entry) *Registry {
	r, err := NewRegistry(entries...)
	if err != nil {
		panic(err)
	}
	return r
}

// Entries returns entries in registration order.
func (r *Registry) Entries() []Entry { return r.entries }

// Rules returns the rules in registration order.
func (r *Registry) Rules() []Rule {
	out := make([]Rule, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Rule
	}
	return out
}

// Lookup finds the entry for a rule ID.
func (r *Registry) Lookup(id string) (Entry, bool) {
	i, ok := r.index[strings.ToUpper(id)]
	if !ok {
		return Entry{}, false
	}
	return r.entries[i], true
}

// Without returns a registry lacking the given rule IDs. Unknown IDs are
// reported as an error.
func (r *Registry) Without(ids ...string) (*Registry, error) {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := r.Lookup(id); !ok {
			return nil, fmt.Errorf("unknown rule %s", id)
		}
		drop[strings.ToUpper(id)] = true
	}
	var kept []Entry
	for _, e := range r.entries {
		if !drop[strings.ToUpper(e.Rule.Descriptor().ID)] {
			kept = append(kept, e)
		}
	}
	return NewRegistry(kept...)
}
