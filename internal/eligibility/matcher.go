package eligibility

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Matcher applies include and exclude globs to workspace-relative paths.
// A pattern that names a directory also matches everything beneath it.
type Matcher struct {
	include []string
	exclude []string
}

// NewMatcher validates the patterns. An empty include list includes
// everything.
func NewMatcher(include, exclude []string) (*Matcher, error) {
	m := &Matcher{}
	var err error
	if m.include, err = normalize(include); err != nil {
		return nil, fmt.Errorf("include: %w", err)
	}
	if m.exclude, err = normalize(exclude); err != nil {
		return nil, fmt.Errorf("exclude: %w", err)
	}
	return m, nil
}

func normalize(patterns []string) ([]string, error) {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimPrefix(strings.TrimSpace(p), "./")
		p = strings.TrimSuffix(p, "/")
		if p == "" {
			continue
		}
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid pattern %q", p)
		}
		out = append(out, p)
	}
	return out, nil
}

// Match reports whether path is included and not excluded.
func (m *Matcher) Match(path string) bool {
	if len(m.include) > 0 && !anyMatch(m.include, path) {
		return false
	}
	return !anyMatch(m.exclude, path)
}

func anyMatch(patterns []string, path string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, path); ok {
			return true
		}
		if ok, _ := doublestar.Match(p+"/**", path); ok {
			return true
		}
	}
	return false
}
