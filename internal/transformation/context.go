package transformation

import (
	"math"
	"strings"
)

// RenderContext holds the values visible to templates during one
// transformation. It is built per message and never shared.
type RenderContext struct {
	// Headers are the headers of the message being transformed; header() reads them.
	Headers map[string]string

	// RequestHeaders are the headers of the originating request; request_header() reads them.
	RequestHeaders map[string]string

	fields    map[string]any
	body      string
	parsed    any
	hasParsed bool
}

// NewRenderContext creates a context for the given header maps. Both maps
// may be nil.
func NewRenderContext(headers, requestHeaders map[string]string) *RenderContext {
	return &RenderContext{
		Headers:        headers,
		RequestHeaders: requestHeaders,
		fields:         make(map[string]any),
	}
}

// MergeFields exposes the top-level entries of a parsed JSON object as
// template variables. Keys that are not valid template identifiers are
// skipped; they stay reachable through context().
func (rc *RenderContext) MergeFields(obj map[string]any) {
	for k, v := range obj {
		if !isIdentifier(k) {
			continue
		}
		rc.fields[k] = normalizeJSON(v)
	}
}

// SetParsedBody binds the whole parsed body for the context() accessor.
func (rc *RenderContext) SetParsedBody(v any) {
	rc.parsed = normalizeJSON(v)
	rc.hasParsed = true
}

// SetBody binds the raw body for the body() accessor.
func (rc *RenderContext) SetBody(body string) {
	rc.body = body
}

// Field returns a flattened JSON field.
func (rc *RenderContext) Field(name string) (any, bool) {
	v, ok := rc.fields[name]
	return v, ok
}

// lookupHeader finds a header by case-insensitive name. Hosts usually hand
// over lower-cased keys, so the direct lookup is tried first.
func lookupHeader(headers map[string]string, name string) string {
	if len(headers) == 0 {
		return ""
	}
	lower := strings.ToLower(name)
	if v, ok := headers[lower]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// normalizeJSON turns integral float64 values produced by encoding/json
// into int64 so they render without a fractional part.
func normalizeJSON(v any) any {
	switch val := v.(type) {
	case float64:
		if val == math.Trunc(val) && math.Abs(val) < 1<<53 {
			return int64(val)
		}
		return val
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalizeJSON(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeJSON(item)
		}
		return out
	default:
		return v
	}
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
