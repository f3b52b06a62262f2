package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/trustscope/trustscope/internal/domain"
	"github.com/trustscope/trustscope/internal/server/handler"
	"github.com/trustscope/trustscope/internal/server/middleware"
	"github.com/trustscope/trustscope/internal/server/ws"
)

const (
	readTimeout     = 15 * time.Second
	writeTimeout    = 30 * time.Second
	idleTimeout     = 60 * time.Second
	shutdownTimeout = 10 * time.Second

	// httpRateLimit caps API requests per client IP per window.
	httpRateLimit  = 120
	httpRateWindow = time.Minute
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string
}

// Handlers groups the HTTP handlers the server routes to.
type Handlers struct {
	Health *handler.HealthHandler
	Chains *handler.ChainsHandler
	Scan   *handler.ScanHandler
	Audit  *handler.AuditHandler
	Hub    *ws.Hub
}

// Server wraps the HTTP server and its routing.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// New builds the route table, wraps it in the middleware chain and returns
// a Server ready to Start.
func New(cfg Config, h Handlers, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", h.Health.HealthCheck)
	mux.HandleFunc("GET /api/chains", h.Chains.ListChains)
	mux.HandleFunc("POST /api/scan", h.Scan.Scan)
	mux.HandleFunc("POST /api/scan/multi", h.Scan.ScanMulti)
	mux.HandleFunc("GET /api/audit", h.Audit.ListKeys)
	mux.HandleFunc("GET /api/audit/{key}", h.Audit.ListEntries)
	if h.Hub != nil {
		mux.HandleFunc("GET /ws", h.Hub.HandleWS)
	}

	var hnd http.Handler = mux
	if limiter != nil {
		hnd = middleware.RateLimit(limiter, httpRateLimit, httpRateWindow, logger)(hnd)
	}
	hnd = middleware.Auth(cfg.APIKey)(hnd)
	hnd = middleware.Logging(logger)(hnd)
	hnd = corsMiddleware(cfg.CORSOrigins)(hnd)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      hnd,
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			IdleTimeout:  idleTimeout,
		},
		logger: logger,
	}
}

// Start begins serving HTTP requests. It blocks until the server stops.
func (s *Server) Start() error {
	s.logger.Info("server: listening", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server, draining in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

// corsMiddleware adds CORS headers to responses for the configured origins.
func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	allowAll := len(origins) == 0
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAll = true
			continue
		}
		allowed[o] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				if allowAll {
					w.Header().Set("Access-Control-Allow-Origin", "*")
				} else if allowed[origin] {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Vary", "Origin")
				}
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
