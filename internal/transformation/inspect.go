package transformation

import (
	"sort"
	"strings"
)

// keywords never name a variable. The set matches the template lexer.
var keywords = map[string]struct{}{
	"in": {}, "and": {}, "or": {}, "not": {}, "true": {}, "false": {}, "as": {}, "export": {},
}

// tags whose arguments are not expressions.
var opaqueTags = map[string]struct{}{
	"block": {}, "endblock": {}, "extends": {}, "include": {}, "import": {},
	"autoescape": {}, "endautoescape": {}, "comment": {}, "endcomment": {},
	"filter": {}, "endfilter": {}, "macro": {}, "endmacro": {}, "spaceless": {},
	"endspaceless": {}, "templatetag": {}, "now": {}, "lorem": {},
}

// verbatim tags hide everything up to their end tag.
var verbatimTags = map[string]string{
	"verbatim": "endverbatim",
}

// UndeclaredVariables returns the sorted names a template reads from its
// context without declaring them itself. Function names are included; the
// caller decides which names are satisfied. Only the root of an attribute
// chain is reported, so "user.name" yields "user".
func UndeclaredVariables(src string) []string {
	ins := &inspector{
		declared: map[string]struct{}{"forloop": {}},
		found:    make(map[string]struct{}),
	}
	ins.run(src)

	out := make([]string, 0, len(ins.found))
	for name := range ins.found {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

type inspector struct {
	declared map[string]struct{}
	found    map[string]struct{}
}

func (ins *inspector) run(src string) {
	i := 0
	for i < len(src) {
		open := strings.IndexByte(src[i:], '{')
		if open < 0 || i+open+1 >= len(src) {
			return
		}
		start := i + open
		switch src[start+1] {
		case '#':
			end := strings.Index(src[start+2:], "#}")
			if end < 0 {
				return
			}
			i = start + 2 + end + 2
		case '{':
			body, next := delimited(src, start+2, "}}")
			ins.expression(tokenize(body))
			i = next
		case '%':
			body, next := delimited(src, start+2, "%}")
			i = ins.tag(src, tokenize(body), next)
		default:
			i = start + 1
		}
	}
}

// tag inspects one {% %} block and returns where scanning resumes.
func (ins *inspector) tag(src string, toks []token, next int) int {
	if len(toks) == 0 || toks[0].kind != tokIdent {
		return next
	}
	name := toks[0].text
	args := toks[1:]

	if end, ok := verbatimTags[name]; ok {
		return skipUntilTag(src, next, end)
	}
	if _, ok := opaqueTags[name]; ok {
		return next
	}

	switch name {
	case "for":
		in := len(args)
		for j, t := range args {
			if t.kind == tokIdent && t.text == "in" {
				in = j
				break
			}
			if t.kind == tokIdent {
				ins.declare(t.text)
			}
		}
		if in < len(args) {
			ins.expression(args[in+1:])
		}
	case "set":
		eq := len(args)
		for j, t := range args {
			if t.kind == tokSymbol && t.text == "=" {
				eq = j
				break
			}
		}
		if eq < len(args) {
			ins.expression(args[eq+1:])
		}
		for _, t := range args[:eq] {
			if t.kind == tokIdent {
				ins.declare(t.text)
			}
		}
	case "with":
		ins.with(args)
	default:
		ins.expression(args)
	}
	return next
}

// with handles both "with a=expr b=expr" and "with expr as a".
func (ins *inspector) with(args []token) {
	for j := 0; j < len(args); j++ {
		t := args[j]
		if t.kind == tokIdent && t.text == "as" && j+1 < len(args) {
			ins.expression(args[:j])
			ins.declare(args[j+1].text)
			return
		}
	}
	var names []string
	ins.expression(args)
	for j := 0; j+1 < len(args); j++ {
		if args[j].kind == tokIdent && args[j+1].kind == tokSymbol && args[j+1].text == "=" {
			names = append(names, args[j].text)
		}
	}
	for _, n := range names {
		ins.declare(n)
	}
}

// expression records the root identifiers referenced by an expression.
func (ins *inspector) expression(toks []token) {
	for j, t := range toks {
		if t.kind != tokIdent {
			continue
		}
		if _, ok := keywords[t.text]; ok {
			continue
		}
		if j > 0 {
			prev := toks[j-1]
			if prev.kind == tokSymbol && (prev.text == "." || prev.text == "|") {
				continue
			}
		}
		if j+1 < len(toks) && toks[j+1].kind == tokSymbol && toks[j+1].text == "=" {
			// keyword argument name
			continue
		}
		if _, ok := ins.declared[t.text]; ok {
			continue
		}
		ins.found[t.text] = struct{}{}
	}
}

func (ins *inspector) declare(name string) {
	ins.declared[name] = struct{}{}
	delete(ins.found, name)
}

// delimited returns the text between from and the closing delimiter,
// ignoring delimiters inside string literals, with whitespace-control
// dashes removed.
func delimited(src string, from int, closing string) (body string, next int) {
	j := from
	for j < len(src) {
		c := src[j]
		if c == '"' || c == '\'' {
			j = skipString(src, j)
			continue
		}
		if strings.HasPrefix(src[j:], closing) {
			body = src[from:j]
			next = j + len(closing)
			return trimDashes(body), next
		}
		j++
	}
	return trimDashes(src[from:]), len(src)
}

func trimDashes(body string) string {
	body = strings.TrimPrefix(body, "-")
	body = strings.TrimPrefix(body, "+")
	body = strings.TrimSuffix(body, "-")
	body = strings.TrimSuffix(body, "+")
	return body
}

func skipString(src string, j int) int {
	quote := src[j]
	j++
	for j < len(src) {
		switch src[j] {
		case '\\':
			j += 2
			continue
		case quote:
			return j + 1
		}
		j++
	}
	return len(src)
}

// skipUntilTag returns the position right after the {% end %} tag.
func skipUntilTag(src string, from int, end string) int {
	i := from
	for i < len(src) {
		open := strings.Index(src[i:], "{%")
		if open < 0 {
			return len(src)
		}
		body, next := delimited(src, i+open+2, "%}")
		if strings.TrimSpace(body) == end {
			return next
		}
		i = next
	}
	return len(src)
}

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokString
	tokNumber
	tokSymbol
)

type token struct {
	kind tokenKind
	text string
}

// tokenize splits a template expression into identifiers, literals and
// single-character symbols. Two-character operators are kept together so
// "==" is never mistaken for a keyword-argument "=".
func tokenize(s string) []token {
	var toks []token
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '"' || c == '\'':
			end := skipString(s, i)
			toks = append(toks, token{kind: tokString, text: s[i:end]})
			i = end
		case isIdentStart(c):
			start := i
			for i < len(s) && isIdentPart(s[i]) {
				i++
			}
			toks = append(toks, token{kind: tokIdent, text: s[start:i]})
		case c >= '0' && c <= '9':
			start := i
			for i < len(s) && (isIdentPart(s[i]) || s[i] == '.') {
				i++
			}
			toks = append(toks, token{kind: tokNumber, text: s[start:i]})
		default:
			if i+1 < len(s) {
				switch s[i : i+2] {
				case "==", "!=", "<=", ">=", "&&", "||", "//", "**":
					toks = append(toks, token{kind: tokSymbol, text: s[i : i+2]})
					i += 2
					continue
				}
			}
			toks = append(toks, token{kind: tokSymbol, text: string(c)})
			i++
		}
	}
	return toks
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
