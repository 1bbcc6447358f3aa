package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	defaultReadTimeout = 10 * time.Second
	defaultIdleTimeout = 60 * time.Second
	shutdownTimeout    = 10 * time.Second
	limiterSweepPeriod = 5 * time.Minute
)

// RateLimit configures the per-IP limiter on scrape routes.
// A zero RPS disables it.
type RateLimit struct {
	RPS   float64
	Burst int
}

// Options holds the engine settings that come from configuration.
type Options struct {
	RateLimit RateLimit
	// TrustedProxies lists the IPs or CIDRs allowed to set X-Forwarded-For.
	// With none, the client IP is always the connection's remote address.
	TrustedProxies []string
}

// Server is the web front end.
type Server struct {
	engine  *gin.Engine
	srv     *http.Server
	limiter *IPLimiter
	log     logrus.FieldLogger
}

// NewServer builds the gin engine and routes.
func NewServer(addr string, h *Handler, opts Options, logger logrus.FieldLogger) (*Server, error) {
	// --- Templates ---
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	// --- Engine ---
	engine := gin.New()
	// gin trusts all proxies by default
	if err := engine.SetTrustedProxies(opts.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}
	engine.Use(gin.Recovery(), LoggerMiddleware(logger))
	engine.SetHTMLTemplate(tmpl)

	s := &Server{
		engine: engine,
		log:    logger.WithField("component", "web"),
	}

	// --- Routes ---
	if rl := opts.RateLimit; rl.RPS > 0 {
		s.limiter = NewIPLimiter(rl.RPS, rl.Burst)
		s.log.WithFields(logrus.Fields{"rps": rl.RPS, "burst": rl.Burst}).Info("Rate limiting scrape routes")
	}
	SetupRoutes(engine, h, s.limiter)

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: defaultReadTimeout,
		IdleTimeout:       defaultIdleTimeout,
	}
	return s, nil
}

// Handler exposes the engine for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	// Drop idle limiter entries in the background
	if s.limiter != nil {
		go s.limiter.RunSweeper(ctx, limiterSweepPeriod)
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", s.srv.Addr).Info("Starting web server")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for a listen error or shutdown signal
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("web server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("Shutting down web server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("web server shutdown: %w", err)
	}
	return nil
}
