// Package api serves the dashboard REST interface under /api.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/net/netutil"
	"golang.org/x/time/rate"

	"kagent/internal/backup"
	"kagent/internal/collect"
	"kagent/internal/config"
	"kagent/internal/cost"
	apperrors "kagent/internal/errors"
	"kagent/internal/predict"
	"kagent/internal/remediation"
	"kagent/internal/security"
	"kagent/internal/service"
)

const (
	rateLimiterExpiry = 5 * time.Minute
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// Agents are the components behind the endpoints. Fallback serves
// generated metrics when the live source fails.
type Agents struct {
	Service    *service.Service
	Predictor  *predict.Predictor
	Trainer    *predict.Trainer
	Scanner    *security.Scanner
	Optimizer  *cost.Optimizer
	Backups    *backup.Manager
	Remediator *remediation.Remediator
	Fallback   collect.Source
}

type Server struct {
	echo   *echo.Echo
	cfg    config.Server
	a      Agents
	clock  clockwork.Clock
	logger *zap.Logger
}

func NewServer(cfg config.Server, a Agents, clock clockwork.Clock, logger *zap.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{echo: e, cfg: cfg, a: a, clock: clock, logger: logger.Named("api")}

	e.Use(middleware.Recover())
	e.Use(s.requestLogger())
	e.Use(middleware.CORS())
	if cfg.RateLimit > 0 {
		e.Use(newRateLimiter(cfg.RateLimit, int(cfg.RateLimit)*2))
	}
	e.Use(apperrors.Middleware(s.logger))

	s.registerRoutes()
	return s
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// ListenAndServe serves on cfg.Addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts on ln, capped at MaxConns concurrent connections, and shuts
// down gracefully when ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.cfg.MaxConns > 0 {
		ln = netutil.LimitListener(ln, s.cfg.MaxConns)
	}
	srv := &http.Server{Handler: s.echo, ReadHeaderTimeout: readHeaderTimeout}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", zap.String("addr", ln.Addr().String()))
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve api: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown api: %w", err)
	}
	<-errc
	s.logger.Info("api stopped")
	return nil
}

func (s *Server) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.logger.Debug("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("remote_ip", v.RemoteIP),
			)
			return nil
		},
	})
}

func newRateLimiter(ratePerSecond float64, burst int) echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(
		middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(ratePerSecond),
			Burst:     max(burst, 1),
			ExpiresIn: rateLimiterExpiry,
		},
	)
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		Store: store,
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return c.JSON(http.StatusTooManyRequests, apperrors.Response{
				Error: "rate limit exceeded",
				Type:  apperrors.TypeValidation,
			})
		},
	})
}
