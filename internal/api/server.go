package api

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/bdevz/ultravox-twilio-integration-sub000/internal/api/handlers"
	"github.com/bdevz/ultravox-twilio-integration-sub000/internal/app"
)

// Server wraps the Fiber application.
type Server struct {
	app      *fiber.App
	deps     *app.Container
	handlers *handlers.HandlerSet
}

// NewServer constructs a new HTTP server.
func NewServer(deps *app.Container, hs *handlers.HandlerSet) *Server {
	cfg := fiber.Config{
		ReadTimeout:  deps.Config.HTTP.ReadTimeout,
		WriteTimeout: deps.Config.HTTP.WriteTimeout,
		IdleTimeout:  deps.Config.HTTP.IdleTimeout,
		ErrorHandler: hs.ErrorHandler,
	}

	fiberApp := fiber.New(cfg)
	fiberApp.Use(otelfiber.Middleware())
	fiberApp.Use(RequestID())
	fiberApp.Use(PropagateRequestID())
	fiberApp.Use(RateLimit(deps.Limiter, deps.Recorder, deps.Config.RateLimit.ExemptPaths))
	hs.Register(fiberApp)

	return &Server{app: fiberApp, deps: deps, handlers: hs}
}

// Start begins serving HTTP traffic.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.deps.Config.HTTP.Port)
	go func() {
		<-ctx.Done()
		_ = s.Shutdown()
	}()
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.app.ShutdownWithContext(ctx)
}

// Drain blocks until tracked calls clear or the drain timeout elapses. Calls
// still live at the timeout are logged so operators can chase them down.
func (s *Server) Drain(ctx context.Context) {
	deadline := time.NewTimer(s.deps.Config.Shutdown.DrainTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(s.deps.Config.Shutdown.PollInterval)
	defer ticker.Stop()

	for {
		remaining := s.deps.Inflight.Len()
		if remaining == 0 {
			s.deps.Logger.Info("call drain complete")
			return
		}

		select {
		case <-ctx.Done():
			s.deps.Logger.Warn("call drain aborted",
				zap.Int("remaining", remaining),
				zap.Strings("call_sids", s.deps.Inflight.Snapshot()))
			return
		case <-deadline.C:
			s.deps.Logger.Warn("call drain timed out",
				zap.Int("remaining", remaining),
				zap.Strings("call_sids", s.deps.Inflight.Snapshot()))
			return
		case <-ticker.C:
		}
	}
}
