package api

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/civant/procure-intel/internal/guard"
)

// authenticate resolves the bearer token to a tenant and stamps the request
// context. Admin tokens additionally get the admin marker used by candidate
// resolution.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeJSONError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}
		tenantID, ok := s.cfg.Tokens[token]
		if !ok {
			writeJSONError(w, http.StatusUnauthorized, "unauthorized", "unknown token")
			return
		}

		ctx, err := guard.WithTenant(r.Context(), tenantID)
		if err != nil {
			writeJSONError(w, http.StatusUnauthorized, "unauthorized", "token maps to an invalid tenant")
			return
		}
		if s.cfg.IsAdminToken(token) {
			if ctx, err = guard.WithAdmin(ctx); err != nil {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "token maps to an invalid tenant")
				return
			}
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

// limiterRegistry hands out one token bucket per tenant.
type limiterRegistry struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	perSec   float64
	burst    int
}

func newLimiterRegistry(perSec float64, burst int) *limiterRegistry {
	if perSec <= 0 {
		perSec = 20
	}
	if burst <= 0 {
		burst = int(perSec) * 2
	}
	return &limiterRegistry{
		limiters: make(map[string]*rate.Limiter),
		perSec:   perSec,
		burst:    burst,
	}
}

func (lr *limiterRegistry) get(tenantID string) *rate.Limiter {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	l, ok := lr.limiters[tenantID]
	if !ok {
		l = rate.NewLimiter(rate.Limit(lr.perSec), lr.burst)
		lr.limiters[tenantID] = l
	}
	return l
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := guard.TenantFromContext(r.Context())
		if err != nil {
			writeJSONError(w, http.StatusUnauthorized, "unauthorized", "no tenant in context")
			return
		}
		if !s.limiters.get(tenantID).Allow() {
			writeJSONError(w, http.StatusTooManyRequests, "rate_limited", "tenant request budget exhausted")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		s.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}
