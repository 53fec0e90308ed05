package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrefixMatcher(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		pattern  string
		path     string
		expected bool
	}{
		{name: "exact prefix match", pattern: "/api/v1", path: "/api/v1", expected: true},
		{name: "prefix with subpath", pattern: "/api/v1", path: "/api/v1/users", expected: true},
		{name: "prefix with trailing slash", pattern: "/api/", path: "/api/v1", expected: true},
		{name: "no match different prefix", pattern: "/api/v1", path: "/api/v2/users", expected: false},
		{name: "no match partial word", pattern: "/api", path: "/apikey", expected: false},
		{name: "root prefix", pattern: "/", path: "/anything", expected: true},
		{name: "shorter path", pattern: "/api/v1", path: "/api", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			matcher := NewPrefixMatcher(tt.pattern)
			assert.Equal(t, tt.expected, matcher.Match(tt.path))
			assert.Equal(t, tt.pattern, matcher.Pattern())
		})
	}
}
