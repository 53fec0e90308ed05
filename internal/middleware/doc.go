// Package middleware provides the net/http middleware of the gateway.
//
// Transformation is the host integration for the transformation engine: it
// buffers the request body, applies the request half of the policy chosen
// by a PolicySource, records the upstream response and applies the
// response half before anything reaches the client.
//
// # Middleware Components
//
//   - Transformation: template-driven header and body rewriting
//   - RequestID: X-Request-ID propagation
//   - Recovery: panic recovery with stack trace logging
//   - Logging: structured access logging
//
// # Usage
//
//	handler := middleware.Recovery(logger)(
//	    middleware.RequestID()(
//	        middleware.Logging(logger)(
//	            middleware.Transformation(source, middleware.WithLogger(logger))(proxy),
//	        ),
//	    ),
//	)
package middleware
