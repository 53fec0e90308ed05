package admin

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/avaform/internal/observability"
)

// DefaultProbeTimeout bounds one run of the readiness checks.
const DefaultProbeTimeout = 5 * time.Second

// Check is a named readiness check.
type Check interface {
	Name() string
	Check(ctx context.Context) error
}

// CheckFunc adapts a function to Check.
type CheckFunc struct {
	name string
	fn   func(ctx context.Context) error
}

// NewCheckFunc creates a named check from fn.
func NewCheckFunc(name string, fn func(ctx context.Context) error) *CheckFunc {
	return &CheckFunc{name: name, fn: fn}
}

// Name returns the check name.
func (c *CheckFunc) Name() string {
	return c.name
}

// Check runs the check.
func (c *CheckFunc) Check(ctx context.Context) error {
	return c.fn(ctx)
}

// Status is the body of the health and readiness endpoints.
type Status struct {
	Status    string                  `json:"status"`
	Timestamp time.Time               `json:"timestamp"`
	Uptime    string                  `json:"uptime,omitempty"`
	Version   string                  `json:"version,omitempty"`
	Checks    map[string]*CheckResult `json:"checks,omitempty"`
}

// CheckResult is the outcome of a single check.
type CheckResult struct {
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
	Duration string `json:"duration,omitempty"`
}

// Health runs readiness checks and serves the probe endpoints.
type Health struct {
	mu        sync.RWMutex
	checks    []Check
	logger    observability.Logger
	version   string
	startTime time.Time
	timeout   time.Duration
}

// NewHealth creates a Health with no checks.
func NewHealth(version string, logger observability.Logger) *Health {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Health{
		logger:    logger,
		version:   version,
		startTime: time.Now(),
		timeout:   DefaultProbeTimeout,
	}
}

// AddCheck registers a readiness check.
func (h *Health) AddCheck(check Check) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, check)
}

// LivenessHandler reports that the process is running.
func (h *Health) LivenessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
		})
	}
}

// ReadinessHandler reports whether every check passes.
func (h *Health) ReadinessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		h.respond(c, false)
	}
}

// HealthHandler is ReadinessHandler plus uptime and version.
func (h *Health) HealthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		h.respond(c, true)
	}
}

func (h *Health) respond(c *gin.Context, detailed bool) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	status := h.run(ctx)
	if detailed {
		status.Uptime = time.Since(h.startTime).Round(time.Second).String()
		status.Version = h.version
	}

	code := http.StatusOK
	if status.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}

// run executes all checks concurrently.
func (h *Health) run(ctx context.Context) *Status {
	h.mu.RLock()
	checks := make([]Check, len(h.checks))
	copy(checks, h.checks)
	h.mu.RUnlock()

	status := &Status{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Checks:    make(map[string]*CheckResult, len(checks)),
	}

	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, check := range checks {
		wg.Add(1)
		go func(c Check) {
			defer wg.Done()

			start := time.Now()
			err := c.Check(ctx)
			result := &CheckResult{Status: "ok", Duration: time.Since(start).String()}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Status = "error"
				result.Error = err.Error()
				status.Status = "error"
				h.logger.Warn("readiness check failed",
					observability.String("check", c.Name()),
					observability.Error(err),
				)
			}
			status.Checks[c.Name()] = result
		}(check)
	}

	wg.Wait()
	return status
}
