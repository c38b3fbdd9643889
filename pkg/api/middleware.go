package api

import (
	"context"
	"net/http"
	"sync"

	"golang.org/x/time/rate"

	"inboxd/pkg/utils"
)

type ctxKey int

const businessKey ctxKey = iota

// businessFrom returns the business scope resolved for the request.
func businessFrom(r *http.Request) string {
	if v, ok := r.Context().Value(businessKey).(string); ok {
		return v
	}
	return ""
}

// scopeMiddleware resolves X-Business-Key to a business scope. With
// allow_unauth set, missing keys fall back to the default scope; an
// unknown key is always rejected.
func (s *Server) scopeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-Business-Key")
		business := ""
		switch {
		case key != "":
			b, ok := s.cfg.Security.APIKeys[key]
			if !ok {
				utils.JSONError(w, http.StatusNotFound, utils.CodeNotFound, "resource not found")
				return
			}
			business = b
		case s.cfg.Security.AllowUnauth:
			business = "default"
		default:
			utils.JSONError(w, http.StatusNotFound, utils.CodeNotFound, "resource not found")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), businessKey, business)))
	})
}

// limiterPool keeps one token bucket per business scope.
type limiterPool struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

func newLimiterPool(rps float64, burst int) *limiterPool {
	if rps <= 0 {
		rps = 50
	}
	if burst <= 0 {
		burst = 100
	}
	return &limiterPool{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

func (p *limiterPool) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.limiters[key]
	if !ok {
		l = rate.NewLimiter(p.rps, p.burst)
		p.limiters[key] = l
	}
	return l
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiters.get(businessFrom(r)).Allow() {
			utils.JSONError(w, http.StatusTooManyRequests, utils.CodeRateLimited, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
