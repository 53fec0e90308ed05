package transformation

import (
	"strconv"
	"strings"
)

// Headers the body rewrite maintains.
const (
	headerContentLength = "content-length"
	headerContentType   = "content-type"
)

// Textual markers that decide which optional values are bound for the body
// template.
const (
	contextCall = "context()"
	bodyCall    = "body()"
)

// TransformRequest applies t to the request through ops. header() and
// request_header() both read requestHeaders.
//
// A critical error (see IsCritical) means the transformation stopped early
// and the request must be rejected. Any other error combines the
// recoverable failures; the rest of the transformation has been applied.
func TransformRequest(reg *Registry, t *Transform, requestHeaders map[string]string, ops Operations) error {
	if t.IsEmpty() {
		return nil
	}
	return reg.transform(requestOps(ops), requestBodyKey, t, requestHeaders, requestHeaders)
}

// TransformResponse applies t to the response through ops. header() reads
// responseHeaders and request_header() reads requestHeaders.
func TransformResponse(
	reg *Registry,
	t *Transform,
	requestHeaders map[string]string,
	responseHeaders map[string]string,
	ops Operations,
) error {
	if t.IsEmpty() {
		return nil
	}
	return reg.transform(responseOps(ops), responseBodyKey, t, responseHeaders, requestHeaders)
}

func (r *Registry) transform(
	msg messageOps,
	bodyKey string,
	t *Transform,
	headers map[string]string,
	requestHeaders map[string]string,
) error {
	rc := NewRenderContext(headers, requestHeaders)

	parsedBodyAsJSON, err := prepareBody(msg, t.Body, rc)
	if err != nil {
		return err
	}

	var errs []error

	if t.Body != nil && t.Body.Value != "" {
		msg.drain(drainAll)
		res := r.render(bodyKey, t.Body.Value, rc, parsedBodyAsJSON)
		if res.err != nil {
			errs = append(errs, res.err)
		}
		if res.err == nil && res.value != "" {
			msg.set(headerContentLength, []byte(strconv.Itoa(len(res.value))))
			msg.append([]byte(res.value))
		} else {
			msg.set(headerContentLength, []byte("0"))
			msg.remove(headerContentType)
		}
	}

	for _, p := range t.Set {
		if p.Value == "" {
			msg.remove(p.Name)
			continue
		}
		res := r.render(p.Value, p.Value, rc, parsedBodyAsJSON)
		if res.critical {
			return res.err
		}
		if res.err != nil {
			errs = append(errs, res.err)
		}
		if res.err == nil && res.value != "" {
			msg.set(p.Name, []byte(res.value))
		} else {
			msg.remove(p.Name)
		}
	}

	for _, p := range t.Add {
		if p.Value == "" {
			continue
		}
		res := r.render(p.Value, p.Value, rc, parsedBodyAsJSON)
		if res.critical {
			return res.err
		}
		if res.err != nil {
			errs = append(errs, res.err)
			continue
		}
		if res.value != "" {
			msg.add(p.Name, []byte(res.value))
		}
	}

	for _, name := range t.Remove {
		msg.remove(name)
	}

	return combineErrors("transform "+string(msg.direction), errs)
}

// prepareBody binds the body-derived values into rc. It reports whether a
// JSON document was parsed; a parse failure is returned as *BodyParseError.
func prepareBody(msg messageOps, body *BodyTransform, rc *RenderContext) (bool, error) {
	if body == nil {
		return false, nil
	}

	parsed := false
	if body.ParseAs.IsJSON() {
		v, err := msg.parseJSON()
		if err != nil {
			return false, &BodyParseError{Direction: msg.direction, Err: err}
		}
		if v != nil {
			if strings.Contains(body.Value, contextCall) {
				rc.SetParsedBody(v)
			}
			if obj, ok := v.(map[string]any); ok {
				rc.MergeFields(obj)
			}
			parsed = true
		}
	}

	if strings.Contains(body.Value, bodyCall) {
		rc.SetBody(string(msg.body()))
	}

	return parsed, nil
}
