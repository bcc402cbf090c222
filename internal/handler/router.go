package handler

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"social-service/internal/util"
)

// HealthChecker is implemented by every external client.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// RouteRegistrar mounts a group of routes under /api.
type RouteRegistrar interface {
	RegisterRoutes(r chi.Router, mw *Middleware)
}

type RouterOptions struct {
	Logger         *zap.Logger
	Middleware     *Middleware
	Handlers       []RouteRegistrar
	Chat           http.Handler
	Health         map[string]HealthChecker
	AllowedOrigins []string
	RequireHTTPS   bool
	RequestTimeout time.Duration
}

// requireHTTPS rejects any request that wasn’t made over TLS
func requireHTTPS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.TLS == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUpgradeRequired)
			_, _ = w.Write([]byte(`{"meta":{"status":426,"success":false},"error":{"message":"https required"}}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// NewRouter creates and configures the Chi router with all middleware and routes
func NewRouter(opts RouterOptions) chi.Router {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}
	rs := newResponder(logger, false)

	router := chi.NewRouter()
	if opts.RequireHTTPS {
		router.Use(requireHTTPS)
	}
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(LoggerMiddleware(logger))
	router.Use(middleware.Recoverer)
	router.Use(ClientInfo)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/health", healthHandler(rs, opts.Health))

	// The websocket route stays outside the request timeout.
	if opts.Chat != nil {
		router.Handle("/ws", opts.Chat)
	}

	router.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(opts.RequestTimeout))
		for _, h := range opts.Handlers {
			h.RegisterRoutes(r, opts.Middleware)
		}
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		rs.respondWithJSON(w, http.StatusNotFound, Response{
			Meta:  Meta{Status: http.StatusNotFound},
			Error: &ErrorBody{Message: "endpoint not found"},
		})
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		rs.respondWithJSON(w, http.StatusMethodNotAllowed, Response{
			Meta:  Meta{Status: http.StatusMethodNotAllowed},
			Error: &ErrorBody{Message: "method not allowed"},
		})
	})

	return router
}

// healthHandler pings every dependency concurrently and reports 503 if any fails.
func healthHandler(rs responder, checks map[string]HealthChecker) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		var (
			mu      sync.Mutex
			wg      sync.WaitGroup
			results = make(map[string]string, len(names))
			healthy = true
		)
		for _, name := range names {
			wg.Add(1)
			go func() {
				defer wg.Done()
				status := "up"
				if err := checks[name].HealthCheck(ctx); err != nil {
					status = "down"
					rs.logger.Warn("Health check failed", util.String("dependency", name), util.ErrorField(err))
				}
				mu.Lock()
				defer mu.Unlock()
				results[name] = status
				if status != "up" {
					healthy = false
				}
			}()
		}
		wg.Wait()

		code, message := http.StatusOK, "healthy"
		if !healthy {
			code, message = http.StatusServiceUnavailable, "unhealthy"
		}
		rs.respondWithJSON(w, code, Response{
			Meta: Meta{Status: code, Success: healthy},
			Data: &SuccessBody{Message: message, Data: map[string]any{
				"service":      "social-service",
				"dependencies": results,
			}},
		})
	}
}
