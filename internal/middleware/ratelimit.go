package middleware

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/R3E-Network/token_ledger/internal/app/system"
	"github.com/R3E-Network/token_ledger/internal/errors"
	"github.com/R3E-Network/token_ledger/pkg/logger"
	"golang.org/x/time/rate"
)

var _ system.Service = (*RateLimiter)(nil)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles requests per caller identity, or per client address
// for anonymous requests. Idle limiters are evicted by a background sweep.
type RateLimiter struct {
	limiters map[string]*limiterEntry
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	idleTTL  time.Duration
	log      *logger.Logger

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewRateLimiter creates a limiter allowing requestsPerSecond with burst.
func NewRateLimiter(requestsPerSecond float64, burst int, log *logger.Logger) *RateLimiter {
	if log == nil {
		log = logger.NewDefault("ratelimit")
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limiters: make(map[string]*limiterEntry),
		rate:     rate.Limit(requestsPerSecond),
		burst:    burst,
		idleTTL:  10 * time.Minute,
		log:      log,
	}
}

func (rl *RateLimiter) getLimiter(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, exists := rl.limiters[key]
	if !exists {
		entry = &limiterEntry{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter
}

// Handler returns the rate limiting middleware handler. It must run after
// caller authentication so callers are keyed by identity.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := CallerFromContext(r.Context())
		if key == "" {
			key = "addr:" + clientHost(r.RemoteAddr)
		}

		if !rl.getLimiter(key, time.Now()).Allow() {
			rl.log.LogSecurityEvent(r.Context(), "rate_limit_exceeded", map[string]interface{}{
				"key":    key,
				"path":   r.URL.Path,
				"method": r.Method,
			})
			errors.Write(w, errors.RateLimitExceeded(int(rl.rate), "1s"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Cleanup drops limiters idle since before now - idleTTL.
func (rl *RateLimiter) Cleanup(now time.Time) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	removed := 0
	for key, entry := range rl.limiters {
		if now.Sub(entry.lastSeen) > rl.idleTTL {
			delete(rl.limiters, key)
			removed++
		}
	}
	return removed
}

func (rl *RateLimiter) Name() string { return "http-rate-limiter" }

func (rl *RateLimiter) Start(ctx context.Context) error {
	rl.mu.Lock()
	if rl.running {
		rl.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	rl.cancel = cancel
	rl.running = true
	rl.mu.Unlock()

	rl.wg.Add(1)
	go func() {
		defer rl.wg.Done()
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case now := <-ticker.C:
				if n := rl.Cleanup(now); n > 0 {
					rl.log.WithField("removed", n).Debug("evicted idle rate limiters")
				}
			}
		}
	}()
	return nil
}

func (rl *RateLimiter) Stop(ctx context.Context) error {
	rl.mu.Lock()
	if !rl.running {
		rl.mu.Unlock()
		return nil
	}
	cancel := rl.cancel
	rl.running = false
	rl.cancel = nil
	rl.mu.Unlock()

	cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		rl.wg.Wait()
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func clientHost(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
