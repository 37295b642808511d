package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/smuppy/backend/internal/domain"
	"github.com/smuppy/backend/internal/handler"
	"golang.org/x/time/rate"
)

const (
	cleanupInterval = time.Minute
	visitorTTL      = 3 * time.Minute
)

// RateLimiter implements a per-IP token bucket rate limiter.
type RateLimiter struct {
	visitors map[string]*visitor
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	stopCh   chan struct{}
	stopOnce sync.Once
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a rate limiter with the given requests per second and burst size.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate.Limit(rps),
		burst:    burst,
		stopCh:   make(chan struct{}),
	}
	go sweep(rl.stopCh, func(now time.Time) {
		rl.mu.Lock()
		for ip, v := range rl.visitors {
			if now.Sub(v.lastSeen) > visitorTTL {
				delete(rl.visitors, ip)
			}
		}
		rl.mu.Unlock()
	})
	return rl
}

// Stop ends the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// Middleware returns an HTTP middleware that rate limits by client IP.
func (rl *RateLimiter) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := extractClientIP(r)

			rl.mu.Lock()
			v, exists := rl.visitors[ip]
			if !exists {
				v = &visitor{limiter: rate.NewLimiter(rl.rate, rl.burst)}
				rl.visitors[ip] = v
			}
			v.lastSeen = time.Now()
			rl.mu.Unlock()

			if !v.limiter.Allow() {
				handler.Error(w, domain.ErrRateLimited("rate limit exceeded, try again later").WithRetryAfter(time.Second))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// KeyedLimiter is an in-process quota store keyed by arbitrary strings. It keeps the
// timestamps of each key's accepted requests and allows a request only while fewer than
// limit of them fall inside the rolling window. Counts are not shared between replicas.
type KeyedLimiter struct {
	mu       sync.Mutex
	logs     map[string]*hitLog
	stopCh   chan struct{}
	stopOnce sync.Once
	now      func() time.Time
}

type hitLog struct {
	hits   []time.Time
	window time.Duration
}

// NewKeyedLimiter creates a KeyedLimiter and starts its cleanup loop.
func NewKeyedLimiter() *KeyedLimiter {
	kl := &KeyedLimiter{
		logs:   make(map[string]*hitLog),
		stopCh: make(chan struct{}),
		now:    time.Now,
	}
	go sweep(kl.stopCh, kl.evictIdle)
	return kl
}

// Allow records a request for key if it fits within limit for the last window.
// Rejected requests are not recorded.
func (kl *KeyedLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if limit <= 0 || window <= 0 {
		return false, nil
	}

	now := kl.now()
	kl.mu.Lock()
	defer kl.mu.Unlock()

	l, ok := kl.logs[key]
	if !ok {
		l = &hitLog{hits: make([]time.Time, 0, limit)}
		kl.logs[key] = l
	}
	l.window = window
	l.prune(now)

	if len(l.hits) >= limit {
		return false, nil
	}
	l.hits = append(l.hits, now)
	return true, nil
}

// prune drops hits that are no longer inside the window ending at now.
func (l *hitLog) prune(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.hits) && !l.hits[i].After(cutoff) {
		i++
	}
	l.hits = l.hits[i:]
}

func (kl *KeyedLimiter) evictIdle(now time.Time) {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	for key, l := range kl.logs {
		l.prune(now)
		if len(l.hits) == 0 {
			delete(kl.logs, key)
		}
	}
}

// Stop ends the cleanup goroutine.
func (kl *KeyedLimiter) Stop() {
	kl.stopOnce.Do(func() { close(kl.stopCh) })
}

func sweep(stopCh <-chan struct{}, fn func(now time.Time)) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			fn(now)
		case <-stopCh:
			return
		}
	}
}

// extractClientIP returns the client IP, preferring proxy headers if available.
func extractClientIP(r *http.Request) string {
	// X-Real-IP is set by the ingress.
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.SplitN(xff, ",", 2)
		return strings.TrimSpace(parts[0])
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
