package transformation

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"os"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/flosch/pongo2/v6"
)

// Names of the functions that read per-message state.
const (
	funcHeader        = "header"
	funcRequestHeader = "request_header"
	funcBody          = "body"
	funcContext       = "context"
)

// Library is the fixed set of functions available in every template.
// It is immutable after construction and safe for concurrent use.
type Library struct {
	static map[string]any
	names  []string
	index  map[string]struct{}

	// set compiles the templates rendered with this library. Compilation
	// mutates the set, so it is serialized.
	set   *pongo2.TemplateSet
	setMu sync.Mutex
}

// NewLibrary creates the function library.
func NewLibrary() *Library {
	static := make(map[string]any)

	addStringFuncs(static)
	addEncodingFuncs(static)
	addUtilityFuncs(static)

	names := make([]string, 0, len(static)+4)
	for name := range static {
		names = append(names, name)
	}
	names = append(names, funcHeader, funcRequestHeader, funcBody, funcContext)
	sort.Strings(names)

	index := make(map[string]struct{}, len(names))
	for _, name := range names {
		index[name] = struct{}{}
	}

	return &Library{
		static: static,
		names:  names,
		index:  index,
		set:    newTemplateSet("transformation"),
	}
}

// Has reports whether name is a library function.
func (l *Library) Has(name string) bool {
	_, ok := l.index[name]
	return ok
}

// Names returns the sorted function names.
func (l *Library) Names() []string {
	out := make([]string, len(l.names))
	copy(out, l.names)
	return out
}

// bind builds the template context for one render: flattened JSON fields
// first, then the library functions, so a JSON field never hides a function.
func (l *Library) bind(rc *RenderContext) pongo2.Context {
	ctx := make(pongo2.Context, len(rc.fields)+len(l.names))
	for k, v := range rc.fields {
		ctx[k] = v
	}
	for k, fn := range l.static {
		ctx[k] = fn
	}

	ctx[funcHeader] = func(name *pongo2.Value) string {
		return lookupHeader(rc.Headers, name.String())
	}
	ctx[funcRequestHeader] = func(name *pongo2.Value) string {
		return lookupHeader(rc.RequestHeaders, name.String())
	}
	ctx[funcBody] = func() string {
		return rc.body
	}
	ctx[funcContext] = func() *pongo2.Value {
		if !rc.hasParsed {
			return pongo2.AsValue(nil)
		}
		return pongo2.AsValue(rc.parsed)
	}

	return ctx
}

func addStringFuncs(funcs map[string]any) {
	funcs["substring"] = func(text, start *pongo2.Value, length ...*pongo2.Value) string {
		n := -1
		if len(length) > 0 && length[0] != nil && !length[0].IsNil() {
			n = length[0].Integer()
		}
		return substring(text.String(), start.Integer(), n)
	}
	funcs["replace_with_string"] = func(text, marker, replacement *pongo2.Value) string {
		return strings.ReplaceAll(text.String(), marker.String(), replacement.String())
	}
	funcs["replace_with_random"] = func(text, marker *pongo2.Value) string {
		return replaceWithRandom(text.String(), marker.String())
	}
	funcs["raw_string"] = func(value *pongo2.Value) string {
		return rawString(value.String())
	}
}

func addEncodingFuncs(funcs map[string]any) {
	funcs["base64_encode"] = func(input *pongo2.Value) string {
		return base64.StdEncoding.EncodeToString([]byte(input.String()))
	}
	funcs["base64_decode"] = func(input *pongo2.Value) string {
		return decodeText(base64.StdEncoding, input.String())
	}
	funcs["base64url_encode"] = func(input *pongo2.Value) string {
		return base64.URLEncoding.EncodeToString([]byte(input.String()))
	}
	funcs["base64url_decode"] = func(input *pongo2.Value) string {
		return decodeText(base64.URLEncoding, input.String())
	}
}

func addUtilityFuncs(funcs map[string]any) {
	funcs["env"] = func(name *pongo2.Value) string {
		return os.Getenv(name.String())
	}
}

// substring returns the byte range [start, start+length) of s. A negative
// or overrunning length extends the range to the end of s; a start at or
// past the end yields the empty string.
func substring(s string, start, length int) string {
	if start < 0 {
		start = 0
	}
	if start >= len(s) {
		return ""
	}
	end := len(s)
	if length >= 0 && length <= len(s)-start {
		end = start + length
	}
	return s[start:end]
}

func decodeText(enc *base64.Encoding, input string) string {
	decoded, err := enc.DecodeString(input)
	if err != nil || !utf8.Valid(decoded) {
		return ""
	}
	return string(decoded)
}

// replaceWithRandom replaces every occurrence of marker with a fresh
// 128-bit token. A new token is drawn on every call.
func replaceWithRandom(text, marker string) string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return text
	}
	return strings.ReplaceAll(text, marker, base64.RawStdEncoding.EncodeToString(buf[:]))
}

// rawString re-escapes a value lifted out of a parsed JSON document so it
// can be emitted the way it appeared in the source.
func rawString(value string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(value); err != nil {
		return ""
	}
	s := strings.TrimSuffix(buf.String(), "\n")
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	return s
}
