package handler

import (
	"context"
	"fmt"
	"math"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"social-service/internal/apperror"
	"social-service/internal/audit"
	"social-service/internal/token"
	"social-service/internal/util"
)

type principalKey struct{}

// PrincipalFrom returns the caller stored by Authenticate or RefreshAuthenticate.
func PrincipalFrom(ctx context.Context) *token.Principal {
	p, _ := ctx.Value(principalKey{}).(*token.Principal)
	return p
}

func withPrincipal(ctx context.Context, p *token.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// Limiter is satisfied by both the Redis and the in-memory rate limiters.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error)
}

// Middleware bundles the request guards shared by every route group.
type Middleware struct {
	responder
	auth    *token.Authenticator
	limiter Limiter
	limit   int
	window  time.Duration
}

func NewMiddleware(auth *token.Authenticator, limiter Limiter, limit int, window time.Duration, logger *zap.Logger, debug bool) *Middleware {
	return &Middleware{
		responder: newResponder(logger, debug),
		auth:      auth,
		limiter:   limiter,
		limit:     limit,
		window:    window,
	}
}

// Authenticate requires a valid, non-revoked access token.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := m.auth.Access(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			m.fail(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), p)))
	})
}

// RefreshAuthenticate requires a valid, non-revoked refresh token.
func (m *Middleware) RefreshAuthenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := m.auth.Refresh(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			m.fail(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), p)))
	})
}

// RateLimit throttles by client IP. A limiter failure lets the request through.
func (m *Middleware) RateLimit(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.limiter == nil || m.limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			key := fmt.Sprintf("%s:%s", scope, clientIP(r))
			allowed, retryAfter, err := m.limiter.Allow(r.Context(), key, m.limit, m.window)
			if err != nil {
				m.logger.Warn("rate limiter unavailable", util.String("key", key), util.ErrorField(err))
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				seconds := int(math.Ceil(retryAfter.Seconds()))
				w.Header().Set("Retry-After", fmt.Sprint(seconds))
				m.fail(w, r, apperror.TooManyRequests("Too many requests, please try again later",
					apperror.Context{"retryAfterSeconds": seconds}))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientInfo stores the caller's address and agent for audit events.
func ClientInfo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := audit.WithClientInfo(r.Context(), audit.ClientInfo{
			IPAddress: clientIP(r),
			UserAgent: r.UserAgent(),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// clientIP relies on middleware.RealIP having rewritten RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// LoggerMiddleware creates a middleware that logs HTTP requests
func LoggerMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				logger.Info("HTTP request",
					util.String("method", r.Method),
					util.String("path", r.URL.Path),
					util.String("remote_addr", r.RemoteAddr),
					util.Int("status", ww.Status()),
					util.Duration("duration", time.Since(start)),
					util.String("request_id", middleware.GetReqID(r.Context())),
					util.String("user_agent", r.UserAgent()),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
