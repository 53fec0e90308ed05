package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// Sentinel errors for proxy operations.
var (
	// ErrInvalidTargetURL indicates that the upstream URL is invalid.
	ErrInvalidTargetURL = errors.New("invalid target URL")

	// ErrUpstreamTimeout indicates that the upstream request timed out.
	ErrUpstreamTimeout = errors.New("upstream request timed out")

	// ErrUpstreamUnavailable indicates that the upstream could not be reached.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// Error types used as metric labels.
const (
	errorTypeTimeout           = "timeout"
	errorTypeConnectionRefused = "connection_refused"
	errorTypeCanceled          = "canceled"
	errorTypeBadGateway        = "bad_gateway"
)

// ProxyError describes a failed upstream round trip.
type ProxyError struct {
	Target string
	Kind   error
	Cause  error
}

// Error implements the error interface.
func (e *ProxyError) Error() string {
	return fmt.Sprintf("proxy error target=%s: %v: %v", e.Target, e.Kind, e.Cause)
}

// Unwrap returns the classified sentinel and the underlying cause.
func (e *ProxyError) Unwrap() []error {
	return []error{e.Kind, e.Cause}
}

// classify maps a transport error to a sentinel and a metric label.
func classify(err error) (kind error, label string) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ErrUpstreamTimeout, errorTypeTimeout
	case errors.Is(err, context.Canceled):
		return ErrUpstreamUnavailable, errorTypeCanceled
	case errors.Is(err, syscall.ECONNREFUSED):
		return ErrUpstreamUnavailable, errorTypeConnectionRefused
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrUpstreamTimeout, errorTypeTimeout
	}
	return ErrUpstreamUnavailable, errorTypeBadGateway
}
