package admin

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/avaform/internal/observability"
)

// ginModeOnce ensures gin.SetMode is only called once.
var ginModeOnce sync.Once

// Config configures the admin server.
type Config struct {
	Address     string
	MetricsPath string
}

// Server serves metrics, probes and the policy dump.
type Server struct {
	engine *gin.Engine
	server *http.Server
	logger observability.Logger
	addr   string

	mu       sync.Mutex
	listener net.Listener
}

// NewServer builds the admin router.
func NewServer(
	cfg Config,
	metrics http.Handler,
	health *Health,
	policies PolicyLister,
	logger observability.Logger,
) *Server {
	ginModeOnce.Do(func() {
		gin.SetMode(gin.ReleaseMode)
	})
	if logger == nil {
		logger = observability.NopLogger()
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET(cfg.MetricsPath, gin.WrapH(metrics))
	engine.GET("/health", health.HealthHandler())
	engine.GET("/healthz", health.LivenessHandler())
	engine.GET("/ready", health.ReadinessHandler())
	engine.GET("/readyz", health.ReadinessHandler())
	engine.GET("/policies", PoliciesHandler(policies))

	return &Server{
		engine: engine,
		logger: logger,
		addr:   cfg.Address,
		server: &http.Server{
			Addr:              cfg.Address,
			Handler:           engine,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
		},
	}
}

// Handler returns the admin router.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.logger.Info("admin server listening", observability.String("address", ln.Addr().String()))

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("admin server error", observability.Error(err))
		}
	}()
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
