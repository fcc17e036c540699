// Package web provides the HTTP server and JSON handlers for the menu
// pipeline: draft editing, publishing, bulk CSV reconciliation, add-on
// assignment, and order-time selection validation.
package web

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/platewise/menuboard/internal/config"
	"github.com/platewise/menuboard/internal/logging"
	"github.com/platewise/menuboard/internal/menu"
	"github.com/platewise/menuboard/internal/web/middleware"
)

// Server is the HTTP server for the menu application.
type Server struct {
	cfg     *config.Config
	service *menu.Service
	router  *chi.Mux
	server  *http.Server
	bulk    *bulkLimiter
}

// NewServer creates a new Server instance.
func NewServer(cfg *config.Config, service *menu.Service) *Server {
	s := &Server{
		cfg:     cfg,
		service: service,
		router:  chi.NewRouter(),
		bulk:    newBulkLimiter(cfg.Bulk.MaxConcurrent, cfg.Bulk.MaxWait),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(strings.Split(s.cfg.Server.TrustedProxies, ",")))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(chimw.Compress(5))
	s.router.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))

	s.router.Use(securityHeaders)

	if s.cfg.Rate.Enabled {
		limiter := newRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute)
		s.router.Use(limiter.middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Route("/api/restaurants/{restaurantID}", func(r chi.Router) {
		// Draft editing
		r.Get("/draft", s.handleGetDraft)
		r.Put("/draft", s.handleSaveDraft)

		// Publish
		r.Post("/publish", s.handlePublish)

		// Bulk CSV / JSON reconciliation
		r.Post("/bulk", s.handleBulk)

		// Add-on group editing and assignment
		r.Put("/addon-groups/{groupID}", s.handleSaveAddonGroup)
		r.Delete("/addon-groups/{groupID}", s.handleArchiveAddonGroup)
		r.Post("/addon-groups/{groupID}/assign", s.handleAssignGroup)

		// Storefront reads
		r.Get("/menu", s.handleMenu)
		r.Get("/addon-groups", s.handlePublishedGroups)

		// Order-time validation
		r.Post("/selections/validate", s.handleValidateSelections)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	logging.FromContext(context.Background()).Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server, letting in-flight bulk operations
// drain first.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	if n := s.bulk.activeCount(); n > 0 {
		logging.FromContext(ctx).Info("waiting for bulk operations to finish", "active", n)
		if err := s.bulk.waitForDrain(ctx); err != nil {
			logging.FromContext(ctx).Warn("bulk operations did not finish in time", "error", err)
		}
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// rateLimiter implements a simple token bucket rate limiter per IP.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int
	window   time.Duration
}

type visitor struct {
	tokens    int
	lastReset time.Time
}

func newRateLimiter(rate int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   window,
	}
	go rl.cleanup()
	return rl
}

// cleanup removes stale visitor entries every minute.
func (rl *rateLimiter) cleanup() {
	for {
		time.Sleep(time.Minute)
		rl.mu.Lock()
		for ip, v := range rl.visitors {
			if time.Since(v.lastReset) > rl.window*2 {
				delete(rl.visitors, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// allow checks if the request should be allowed and consumes a token if so.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[ip]
	if !exists {
		rl.visitors[ip] = &visitor{tokens: rl.rate - 1, lastReset: time.Now()}
		return true
	}

	if time.Since(v.lastReset) > rl.window {
		v.tokens = rl.rate - 1
		v.lastReset = time.Now()
		return true
	}

	if v.tokens <= 0 {
		return false
	}
	v.tokens--
	return true
}

// middleware returns an HTTP middleware that rate limits by IP. RemoteAddr
// has already been normalized by TrustedRealIP.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(r.RemoteAddr) {
			w.Header().Set("Retry-After", "60")
			respondErrorJSON(w, menu.MapError(errRateLimited), http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
