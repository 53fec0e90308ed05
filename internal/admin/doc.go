// Package admin provides the gateway admin server: Prometheus metrics,
// liveness and readiness probes and a dump of the transformation policies
// currently in effect.
package admin
