// Package debugsrv runs the loopback HTTP endpoint the process exposes
// alongside the NFS listeners: a liveness probe and, when metrics are
// enabled, the Prometheus scrape endpoint. A chi router with the usual
// recoverer/timeout middleware, trimmed to the two routes this server
// needs.
package debugsrv

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/nfsv3d/internal/cli/health"
	"github.com/marmos91/nfsv3d/internal/logger"
	"github.com/marmos91/nfsv3d/pkg/adapter/nfs"
	"github.com/marmos91/nfsv3d/pkg/metrics"
)

// Server is the loopback debug/metrics HTTP server.
type Server struct {
	httpServer *http.Server
	listener   net.Listener
}

// New builds a Server bound to addr (typically "127.0.0.1:<port>"),
// serving GET /health (liveness, matching internal/cli/health.Response
// so `dittofs status` can decode it directly) and, when
// metrics.IsEnabled(), GET /metrics in Prometheus exposition format.
func New(addr string, adapter *nfs.Adapter, startTime time.Time) *Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Second))

	r.Get("/health", liveness(adapter, startTime))

	if metrics.IsEnabled() {
		r.Method(http.MethodGet, "/metrics", metrics.Handler())
	}

	return &Server{
		httpServer: &http.Server{Addr: addr, Handler: r},
	}
}

func liveness(adapter *nfs.Adapter, startTime time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := time.Since(startTime)
		resp := health.Response{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}
		resp.Data.Service = "dittofs"
		resp.Data.InstanceID = adapter.InstanceID()
		resp.Data.StartedAt = startTime.UTC().Format(time.RFC3339)
		resp.Data.Uptime = uptime.Round(time.Second).String()
		resp.Data.UptimeSec = int64(uptime.Seconds())

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			logger.ErrorCtx(r.Context(), "health response encode error", "error", err)
		}
	}
}

// Start binds the listener and serves in a background goroutine. Bind
// errors are returned synchronously; errors from Serve after that are
// logged, matching the NFS adapter's own accept-loop convention.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.httpServer.Addr, err)
	}
	s.listener = ln

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.ErrorCtx(ctx, "debug server error", "error", err)
		}
	}()

	logger.InfoCtx(ctx, "debug server started", "addr", s.httpServer.Addr)
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
