package transformation

import (
	"encoding/json"
	"strings"
)

// call is one recorded host operation.
type call struct {
	Op    string
	Key   string
	Value string
}

// fakeMessage is the in-memory state of one direction.
type fakeMessage struct {
	headers  map[string][]string
	body     []byte
	parseErr error
}

// fakeOps records every host operation in order and applies it to an
// in-memory message.
type fakeOps struct {
	calls    []call
	request  fakeMessage
	response fakeMessage
}

func newFakeOps() *fakeOps {
	return &fakeOps{
		request:  fakeMessage{headers: make(map[string][]string)},
		response: fakeMessage{headers: make(map[string][]string)},
	}
}

func (f *fakeOps) record(op, key, value string) {
	f.calls = append(f.calls, call{Op: op, Key: key, Value: value})
}

func (m *fakeMessage) header(key string) (string, bool) {
	v, ok := m.headers[strings.ToLower(key)]
	if !ok || len(v) == 0 {
		return "", false
	}
	return strings.Join(v, ","), true
}

func (m *fakeMessage) parse() (any, error) {
	if m.parseErr != nil {
		return nil, m.parseErr
	}
	if len(strings.TrimSpace(string(m.body))) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(m.body, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func (m *fakeMessage) drain(n int) {
	if n >= len(m.body) {
		m.body = nil
		return
	}
	m.body = m.body[n:]
}

func (f *fakeOps) AddRequestHeader(key string, value []byte) bool {
	f.record("add_request_header", key, string(value))
	k := strings.ToLower(key)
	f.request.headers[k] = append(f.request.headers[k], string(value))
	return true
}

func (f *fakeOps) SetRequestHeader(key string, value []byte) bool {
	f.record("set_request_header", key, string(value))
	f.request.headers[strings.ToLower(key)] = []string{string(value)}
	return true
}

func (f *fakeOps) RemoveRequestHeader(key string) bool {
	f.record("remove_request_header", key, "")
	delete(f.request.headers, strings.ToLower(key))
	return true
}

func (f *fakeOps) ParseRequestJSONBody() (any, error) {
	f.record("parse_request_json_body", "", "")
	return f.request.parse()
}

func (f *fakeOps) RequestBody() []byte {
	f.record("request_body", "", "")
	return f.request.body
}

func (f *fakeOps) DrainRequestBody(n int) bool {
	f.record("drain_request_body", "", "")
	f.request.drain(n)
	return true
}

func (f *fakeOps) AppendRequestBody(data []byte) bool {
	f.record("append_request_body", "", string(data))
	f.request.body = append(f.request.body, data...)
	return true
}

func (f *fakeOps) AddResponseHeader(key string, value []byte) bool {
	f.record("add_response_header", key, string(value))
	k := strings.ToLower(key)
	f.response.headers[k] = append(f.response.headers[k], string(value))
	return true
}

func (f *fakeOps) SetResponseHeader(key string, value []byte) bool {
	f.record("set_response_header", key, string(value))
	f.response.headers[strings.ToLower(key)] = []string{string(value)}
	return true
}

func (f *fakeOps) RemoveResponseHeader(key string) bool {
	f.record("remove_response_header", key, "")
	delete(f.response.headers, strings.ToLower(key))
	return true
}

func (f *fakeOps) ParseResponseJSONBody() (any, error) {
	f.record("parse_response_json_body", "", "")
	return f.response.parse()
}

func (f *fakeOps) ResponseBody() []byte {
	f.record("response_body", "", "")
	return f.response.body
}

func (f *fakeOps) DrainResponseBody(n int) bool {
	f.record("drain_response_body", "", "")
	f.response.drain(n)
	return true
}

func (f *fakeOps) AppendResponseBody(data []byte) bool {
	f.record("append_response_body", "", string(data))
	f.response.body = append(f.response.body, data...)
	return true
}

var _ Operations = (*fakeOps)(nil)
