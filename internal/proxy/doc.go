// Package proxy forwards transformed requests to the configured upstream.
//
// Proxy wraps httputil.ReverseProxy: it points every request at a single
// upstream URL, sets X-Forwarded-* headers, propagates the trace context,
// enforces an optional per-request timeout and maps transport failures to
// 502 or 504 replies.
package proxy
