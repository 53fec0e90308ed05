package router

import "strings"

// PrefixMatcher matches request paths against a path prefix on segment
// boundaries, so "/api" matches "/api" and "/api/v1" but not "/apikey".
type PrefixMatcher struct {
	prefix string
}

// NewPrefixMatcher creates a new prefix path matcher.
func NewPrefixMatcher(prefix string) *PrefixMatcher {
	return &PrefixMatcher{prefix: prefix}
}

// Match reports whether path falls under the prefix.
func (m *PrefixMatcher) Match(path string) bool {
	if !strings.HasPrefix(path, m.prefix) {
		return false
	}
	if len(path) == len(m.prefix) {
		return true
	}
	return strings.HasSuffix(m.prefix, "/") || path[len(m.prefix)] == '/'
}

// Pattern returns the prefix.
func (m *PrefixMatcher) Pattern() string {
	return m.prefix
}
