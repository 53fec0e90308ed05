package middleware

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/avaform/internal/observability"
	"github.com/vyrodovalexey/avaform/internal/transformation"
)

// DefaultMaxBodyBytes bounds the bodies buffered for transformation.
const DefaultMaxBodyBytes = 10 << 20

// PolicySource picks the transformation policy for a request. A nil policy
// means the request is forwarded untouched.
type PolicySource interface {
	PolicyFor(r *http.Request) (route string, policy *transformation.Policy)
}

// PolicySourceFunc adapts a function to PolicySource.
type PolicySourceFunc func(r *http.Request) (string, *transformation.Policy)

// PolicyFor implements PolicySource.
func (f PolicySourceFunc) PolicyFor(r *http.Request) (string, *transformation.Policy) {
	return f(r)
}

// TransformOption configures the transformation middleware.
type TransformOption func(*transformer)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) TransformOption {
	return func(t *transformer) {
		t.logger = logger
	}
}

// WithMetrics records local replies on m.
func WithMetrics(m *observability.Metrics) TransformOption {
	return func(t *transformer) {
		t.metrics = m
	}
}

// WithTracer sets the tracer used for transformation spans.
func WithTracer(tracer *observability.Tracer) TransformOption {
	return func(t *transformer) {
		t.tracer = tracer
	}
}

// WithMaxBodyBytes sets the largest body that is buffered for
// transformation. Larger bodies are forwarded untransformed.
func WithMaxBodyBytes(n int64) TransformOption {
	return func(t *transformer) {
		if n > 0 {
			t.maxBodyBytes = n
		}
	}
}

type transformer struct {
	source       PolicySource
	logger       observability.Logger
	metrics      *observability.Metrics
	tracer       *observability.Tracer
	maxBodyBytes int64
	mwMetrics    *MiddlewareMetrics
}

// Transformation returns a middleware that applies the request half of the
// selected policy before calling next and the response half to what next
// wrote. A critical transformation failure ends the exchange with an empty
// 400 reply; other failures are logged and the partially transformed
// message is forwarded.
func Transformation(source PolicySource, opts ...TransformOption) func(http.Handler) http.Handler {
	t := &transformer{
		source:       source,
		logger:       observability.NopLogger(),
		maxBodyBytes: DefaultMaxBodyBytes,
		mwMetrics:    GetMiddlewareMetrics(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = observability.NopLogger()
	}
	if t.tracer == nil {
		t.tracer = observability.NewTracerWithProvider("avaform/middleware", otel.GetTracerProvider())
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.serve(next, w, r)
		})
	}
}

func (t *transformer) serve(next http.Handler, w http.ResponseWriter, r *http.Request) {
	route, policy := t.source.PolicyFor(r)
	r = r.WithContext(observability.ContextWithRoute(r.Context(), route))

	if policy == nil || (!policy.HasRequestTransform() && !policy.HasResponseTransform()) {
		next.ServeHTTP(w, r)
		return
	}

	//nolint:contextcheck // request context carries the request ID
	logger := t.logger.WithContext(r.Context()).With(
		observability.String("route", route),
		observability.String("policy", policy.Name()),
	)

	// header() in the request transform and request_header() in the
	// response transform both read this snapshot.
	requestHeaders := snapshotRequestHeaders(r)
	ex := newExchange(r, nil)

	if policy.HasRequestTransform() {
		if !t.transformRequest(w, r, route, policy, requestHeaders, ex, logger) {
			return
		}
	}

	if !policy.HasResponseTransform() {
		next.ServeHTTP(w, r)
		return
	}

	rec := newResponseRecorder(w, t.maxBodyBytes)
	next.ServeHTTP(rec, r)

	if rec.passthrough {
		t.mwMetrics.bodyPassthrough.WithLabelValues(string(transformation.DirectionResponse)).Inc()
		logger.Warn("response body exceeds transformation limit, forwarding untransformed",
			observability.Int64("max_body_bytes", t.maxBodyBytes),
		)
		return
	}

	t.transformResponse(w, r, route, policy, requestHeaders, ex, rec, logger)
}

// transformRequest applies the request transform and reports whether the
// request should continue upstream.
func (t *transformer) transformRequest(
	w http.ResponseWriter,
	r *http.Request,
	route string,
	policy *transformation.Policy,
	requestHeaders map[string]string,
	ex *exchange,
	logger observability.Logger,
) bool {
	body, complete, err := readBody(r, t.maxBodyBytes)
	if err != nil {
		logger.Warn("failed to read request body", observability.Error(err))
		t.localReply(w, route, http.StatusBadRequest)
		return false
	}
	if !complete {
		t.mwMetrics.bodyPassthrough.WithLabelValues(string(transformation.DirectionRequest)).Inc()
		logger.Warn("request body exceeds transformation limit, forwarding untransformed",
			observability.Int64("max_body_bytes", t.maxBodyBytes),
		)
		return true
	}
	ex.reqBody = body

	_, span := t.tracer.StartSpan(r.Context(), "transformation.request",
		trace.WithAttributes(attribute.String("transformation.policy", policy.Name())),
	)
	err = policy.TransformRequest(requestHeaders, ex)
	endSpan(span, err)

	if err != nil {
		if transformation.IsCritical(err) {
			logger.Error("request transformation failed", observability.Error(err))
			t.localReply(w, route, http.StatusBadRequest)
			return false
		}
		logger.Warn("request transformation completed with errors", observability.Error(err))
	}

	setRequestBody(r, ex.reqBody, ex.reqBodyChanged)
	return true
}

func (t *transformer) transformResponse(
	w http.ResponseWriter,
	r *http.Request,
	route string,
	policy *transformation.Policy,
	requestHeaders map[string]string,
	ex *exchange,
	rec *responseRecorder,
	logger observability.Logger,
) {
	ex.bindResponse(rec.header, rec.body.Bytes())
	responseHeaders := snapshotHeaders(rec.header)

	_, span := t.tracer.StartSpan(r.Context(), "transformation.response",
		trace.WithAttributes(
			attribute.String("transformation.policy", policy.Name()),
			attribute.Int("http.response.status_code", rec.status),
		),
	)
	err := policy.TransformResponse(requestHeaders, responseHeaders, ex)
	endSpan(span, err)

	if err != nil {
		if transformation.IsCritical(err) {
			logger.Error("response transformation failed", observability.Error(err))
			t.localReply(w, route, http.StatusBadRequest)
			return
		}
		logger.Warn("response transformation completed with errors", observability.Error(err))
	}

	if ex.resBodyChanged {
		ex.resHeader.Set("Content-Length", strconv.Itoa(len(ex.resBody)))
	}

	dst := w.Header()
	for k := range dst {
		delete(dst, k)
	}
	for k, v := range ex.resHeader {
		dst[k] = v
	}
	w.WriteHeader(rec.status)
	if len(ex.resBody) > 0 {
		_, _ = w.Write(ex.resBody)
	}
}

// localReply ends the exchange at the gateway with an empty body.
func (t *transformer) localReply(w http.ResponseWriter, route string, status int) {
	h := w.Header()
	h.Del(HeaderContentType)
	h.Set("Content-Length", "0")
	w.WriteHeader(status)
	if t.metrics != nil {
		t.metrics.RecordLocalReply(route, status)
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		if transformation.IsCritical(err) {
			span.SetStatus(codes.Error, "critical transformation failure")
		}
	}
	span.End()
}

// readBody buffers up to limit bytes of the request body. When the body is
// larger, the request body is restored to stream the buffered prefix and
// the remainder, and complete is false.
func readBody(r *http.Request, limit int64) (body []byte, complete bool, err error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, true, nil
	}

	buf, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, false, err
	}
	if int64(len(buf)) > limit {
		r.Body = &prefixedBody{Reader: io.MultiReader(bytes.NewReader(buf), r.Body), closer: r.Body}
		return nil, false, nil
	}
	_ = r.Body.Close()
	return buf, true, nil
}

type prefixedBody struct {
	io.Reader
	closer io.Closer
}

func (b *prefixedBody) Close() error {
	return b.closer.Close()
}

// setRequestBody installs the buffered body and keeps the length fields in
// step with it.
func setRequestBody(r *http.Request, body []byte, changed bool) {
	if len(body) == 0 {
		r.Body = http.NoBody
		r.GetBody = func() (io.ReadCloser, error) { return http.NoBody, nil }
		if changed {
			r.ContentLength = 0
		}
		return
	}

	r.Body = io.NopCloser(bytes.NewReader(body))
	r.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	r.ContentLength = int64(len(body))
	if changed {
		r.Header.Set("Content-Length", strconv.Itoa(len(body)))
	}
}

// responseRecorder buffers the upstream response for transformation. Once
// the body grows past limit it stops buffering and streams everything to
// the client untransformed.
type responseRecorder struct {
	w           http.ResponseWriter
	header      http.Header
	body        *bytes.Buffer
	status      int
	wroteHeader bool
	limit       int64
	passthrough bool
}

func newResponseRecorder(w http.ResponseWriter, limit int64) *responseRecorder {
	return &responseRecorder{
		w:      w,
		header: w.Header().Clone(),
		body:   &bytes.Buffer{},
		status: http.StatusOK,
		limit:  limit,
	}
}

// Header returns the captured header map.
func (r *responseRecorder) Header() http.Header {
	return r.header
}

// WriteHeader captures the status code.
func (r *responseRecorder) WriteHeader(code int) {
	if r.wroteHeader {
		return
	}
	r.status = code
	r.wroteHeader = true
}

// Write buffers b or forwards it once the limit was exceeded.
func (r *responseRecorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	if r.passthrough {
		return r.w.Write(b)
	}

	if int64(r.body.Len())+int64(len(b)) > r.limit {
		r.passthrough = true

		dst := r.w.Header()
		for k, v := range r.header {
			dst[k] = v
		}
		r.w.WriteHeader(r.status)
		if r.body.Len() > 0 {
			if _, err := r.w.Write(r.body.Bytes()); err != nil {
				return 0, err
			}
			r.body.Reset()
		}
		return r.w.Write(b)
	}

	return r.body.Write(b)
}

// Flush forwards only after passthrough; buffered responses are written
// once transformed.
func (r *responseRecorder) Flush() {
	if !r.passthrough {
		return
	}
	if f, ok := r.w.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack implements http.Hijacker.
func (r *responseRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := r.w.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijack not supported")
}
