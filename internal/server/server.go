// Package server exposes an editing session over HTTP so that a canvas UI
// can create, connect and save nodes without linking against the core.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/specialistvlad/cyoaflow/internal/ctxlog"
	"github.com/specialistvlad/cyoaflow/internal/session"
)

// shutdownTimeout bounds how long in-flight requests may take after the
// serve context is canceled.
const shutdownTimeout = 5 * time.Second

// Server serves one session.
type Server struct {
	session  *session.Session
	validate *validator.Validate

	registry   *prometheus.Registry
	operations *prometheus.CounterVec
}

// New creates a server for s with its own metrics registry.
func New(s *session.Session) *Server {
	registry := prometheus.NewRegistry()
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cyoaflow_editor_operations_total",
		Help: "Editor operations handled, by operation and result.",
	}, []string{"operation", "result"})
	nodes := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "cyoaflow_story_nodes",
		Help: "Number of nodes in the story being edited.",
	}, func() float64 {
		return float64(len(s.Nodes()))
	})
	registry.MustRegister(operations, nodes)

	return &Server{
		session:    s,
		validate:   validator.New(),
		registry:   registry,
		operations: operations,
	}
}

// Handler returns the routed HTTP handler.
func (srv *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/health", srv.health)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(srv.registry, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", srv.status)
		r.Post("/save", srv.save)
		r.Post("/export", srv.export)

		r.Route("/nodes", func(r chi.Router) {
			r.Get("/", srv.listNodes)
			r.Post("/", srv.createNode)
			r.Route("/{name}", func(r chi.Router) {
				r.Get("/", srv.getNode)
				r.Patch("/", srv.updateNode)
				r.Delete("/", srv.deleteNode)
				r.Post("/connections", srv.addConnection)
				r.Delete("/connections/{index}", srv.removeConnection)
			})
		})
	})
	return r
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully.
func (srv *Server) ListenAndServe(ctx context.Context, addr string) error {
	logger := ctxlog.FromContext(ctx)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Editor API listening.", "address", fmt.Sprintf("http://localhost%s/api/nodes", addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("editor API failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down editor API...")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Editor API shutdown failed", "error", err)
		return err
	}
	logger.Debug("Editor API shut down gracefully.")
	return nil
}

// requestLogger logs each request through the context logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		ctxlog.FromContext(r.Context()).LogAttrs(r.Context(), slog.LevelDebug, "Request handled.",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", chimiddleware.GetReqID(r.Context())),
		)
	})
}
