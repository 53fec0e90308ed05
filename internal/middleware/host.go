package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/vyrodovalexey/avaform/internal/transformation"
)

// exchange implements transformation.Operations over one net/http
// request/response pair. Bodies are fully buffered.
type exchange struct {
	req            *http.Request
	reqBody        []byte
	reqBodyChanged bool

	resHeader      http.Header
	resBody        []byte
	resBodyChanged bool
}

var _ transformation.Operations = (*exchange)(nil)

func newExchange(r *http.Request, body []byte) *exchange {
	return &exchange{req: r, reqBody: body}
}

// AddRequestHeader implements transformation.Operations.
func (e *exchange) AddRequestHeader(key string, value []byte) bool {
	if isHostHeader(key) {
		e.req.Host = string(value)
		return true
	}
	e.req.Header.Add(key, string(value))
	return true
}

// SetRequestHeader implements transformation.Operations.
func (e *exchange) SetRequestHeader(key string, value []byte) bool {
	if isHostHeader(key) {
		e.req.Host = string(value)
		return true
	}
	e.req.Header.Set(key, string(value))
	return true
}

// RemoveRequestHeader implements transformation.Operations.
func (e *exchange) RemoveRequestHeader(key string) bool {
	if isHostHeader(key) {
		return false
	}
	e.req.Header.Del(key)
	return true
}

// ParseRequestJSONBody implements transformation.Operations.
func (e *exchange) ParseRequestJSONBody() (any, error) {
	return parseJSON(e.reqBody)
}

// RequestBody implements transformation.Operations.
func (e *exchange) RequestBody() []byte {
	return e.reqBody
}

// DrainRequestBody implements transformation.Operations.
func (e *exchange) DrainRequestBody(n int) bool {
	e.reqBody = drain(e.reqBody, n)
	e.reqBodyChanged = true
	return true
}

// AppendRequestBody implements transformation.Operations.
func (e *exchange) AppendRequestBody(data []byte) bool {
	e.reqBody = append(e.reqBody, data...)
	e.reqBodyChanged = true
	return true
}

// AddResponseHeader implements transformation.Operations.
func (e *exchange) AddResponseHeader(key string, value []byte) bool {
	if e.resHeader == nil {
		return false
	}
	e.resHeader.Add(key, string(value))
	return true
}

// SetResponseHeader implements transformation.Operations.
func (e *exchange) SetResponseHeader(key string, value []byte) bool {
	if e.resHeader == nil {
		return false
	}
	e.resHeader.Set(key, string(value))
	return true
}

// RemoveResponseHeader implements transformation.Operations.
func (e *exchange) RemoveResponseHeader(key string) bool {
	if e.resHeader == nil {
		return false
	}
	e.resHeader.Del(key)
	return true
}

// ParseResponseJSONBody implements transformation.Operations.
func (e *exchange) ParseResponseJSONBody() (any, error) {
	return parseJSON(e.resBody)
}

// ResponseBody implements transformation.Operations.
func (e *exchange) ResponseBody() []byte {
	return e.resBody
}

// DrainResponseBody implements transformation.Operations.
func (e *exchange) DrainResponseBody(n int) bool {
	if e.resHeader == nil {
		return false
	}
	e.resBody = drain(e.resBody, n)
	e.resBodyChanged = true
	return true
}

// AppendResponseBody implements transformation.Operations.
func (e *exchange) AppendResponseBody(data []byte) bool {
	if e.resHeader == nil {
		return false
	}
	e.resBody = append(e.resBody, data...)
	e.resBodyChanged = true
	return true
}

// bindResponse attaches the recorded upstream response.
func (e *exchange) bindResponse(header http.Header, body []byte) {
	e.resHeader = header
	e.resBody = body
}

// parseJSON decodes a buffered body. An empty or whitespace-only body is
// absent and yields nil without error.
func parseJSON(body []byte) (any, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func drain(body []byte, n int) []byte {
	if n >= len(body) {
		return nil
	}
	if n <= 0 {
		return body
	}
	return append([]byte(nil), body[n:]...)
}

func isHostHeader(key string) bool {
	return strings.EqualFold(key, "host") || key == ":authority"
}

// snapshotHeaders flattens h into the lowercase single-value map templates
// read through header() and request_header(). Repeated values are joined
// with ",".
func snapshotHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[strings.ToLower(k)] = strings.Join(v, ",")
	}
	return out
}

// snapshotRequestHeaders adds the host, which net/http keeps outside Header.
func snapshotRequestHeaders(r *http.Request) map[string]string {
	out := snapshotHeaders(r.Header)
	if _, ok := out["host"]; !ok && r.Host != "" {
		out["host"] = r.Host
	}
	return out
}
