package transformation

import (
	"fmt"

	"github.com/flosch/pongo2/v6"
	"github.com/hashicorp/go-multierror"
)

// Lookup keys of the body templates. Header templates are keyed by their
// own text.
const (
	requestBodyKey  = "request_body_0"
	responseBodyKey = "response_body_0"
)

// Registry holds the compiled templates of one policy. It is immutable
// after construction and safe for concurrent use. Body templates are kept
// apart from header templates so a header value that reads like a body key
// never shadows the body template.
type Registry struct {
	library *Library
	headers map[string]*compiledTemplate
	bodies  map[string]*compiledTemplate
}

type compiledTemplate struct {
	src string
	tpl *pongo2.Template

	// undeclared lists the names the template reads that no library
	// function provides; they can only come from a parsed JSON body.
	undeclared []string
}

// renderResult separates the JSON-gating failure, which aborts the whole
// transformation, from recoverable render failures.
type renderResult struct {
	value    string
	err      error
	critical bool
}

// NewRegistry compiles every template of cfg. All syntax errors are
// reported together. A nil library means the default one.
func NewRegistry(cfg *Config, lib *Library) (*Registry, error) {
	if lib == nil {
		lib = NewLibrary()
	}

	r := &Registry{
		library: lib,
		headers: make(map[string]*compiledTemplate),
		bodies:  make(map[string]*compiledTemplate),
	}
	if cfg == nil {
		return r, nil
	}

	var result *multierror.Error
	for _, side := range []struct {
		name    string
		t       *Transform
		bodyKey string
	}{
		{"request", cfg.Request, requestBodyKey},
		{"response", cfg.Response, responseBodyKey},
	} {
		if side.t == nil {
			continue
		}
		for i, p := range side.t.Set {
			if err := r.compile(r.headers, p.Value, p.Value); err != nil {
				result = multierror.Append(result, fmt.Errorf("%s.set[%d] %s: %w", side.name, i, p.Name, err))
			}
		}
		for i, p := range side.t.Add {
			if err := r.compile(r.headers, p.Value, p.Value); err != nil {
				result = multierror.Append(result, fmt.Errorf("%s.add[%d] %s: %w", side.name, i, p.Name, err))
			}
		}
		if side.t.Body != nil {
			if err := r.compile(r.bodies, side.bodyKey, side.t.Body.Value); err != nil {
				result = multierror.Append(result, fmt.Errorf("%s.body: %w", side.name, err))
			}
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) compile(into map[string]*compiledTemplate, key, src string) error {
	if src == "" {
		return nil
	}
	if _, ok := into[key]; ok {
		return nil
	}

	tpl, err := r.library.compile(src)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTemplateCompile, err)
	}

	var undeclared []string
	for _, name := range UndeclaredVariables(src) {
		if !r.library.Has(name) {
			undeclared = append(undeclared, name)
		}
	}

	into[key] = &compiledTemplate{src: src, tpl: tpl, undeclared: undeclared}
	return nil
}

// Len returns the number of compiled templates.
func (r *Registry) Len() int {
	return len(r.headers) + len(r.bodies)
}

// lookup resolves key to a body template when template is that body's
// source, and to a header template otherwise.
func (r *Registry) lookup(key, template string) (*compiledTemplate, bool) {
	if ct, ok := r.bodies[key]; ok && ct.src == template {
		return ct, true
	}
	ct, ok := r.headers[key]
	return ct, ok
}

// Render evaluates the template stored under key. When parsedBodyAsJSON is
// false a template that reads names no library function provides fails
// with *UndeclaredJSONVariablesError before it is evaluated.
func (r *Registry) Render(key, template string, rc *RenderContext, parsedBodyAsJSON bool) (string, error) {
	res := r.render(key, template, rc, parsedBodyAsJSON)
	return res.value, res.err
}

func (r *Registry) render(key, template string, rc *RenderContext, parsedBodyAsJSON bool) renderResult {
	if template == "" {
		return renderResult{}
	}

	ct, ok := r.lookup(key, template)
	if !ok {
		return renderResult{err: fmt.Errorf("%w: %s", ErrTemplateNotFound, template)}
	}

	if !parsedBodyAsJSON && len(ct.undeclared) > 0 {
		return renderResult{
			err: &UndeclaredJSONVariablesError{
				Variables: ct.undeclared,
				Template:  template,
			},
			critical: true,
		}
	}

	if rc == nil {
		rc = NewRenderContext(nil, nil)
	}
	out, err := execute(ct.tpl, r.library.bind(rc))
	if err != nil {
		return renderResult{err: fmt.Errorf("%w %s: %w", ErrTemplateRender, template, err)}
	}
	return renderResult{value: out}
}
