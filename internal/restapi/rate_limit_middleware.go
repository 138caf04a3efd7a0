package restapi

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"mouzamap.org/internal/app"
	"mouzamap.org/internal/clock"
	"mouzamap.org/internal/logging"
)

const (
	anonymousBucket = "__no_key__"
	limiterIdleTTL  = 10 * time.Minute
	limiterSweepGap = 5 * time.Minute
)

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimitMiddleware gives every API key its own token bucket. Requests
// without a key share one anonymous bucket.
type RateLimitMiddleware struct {
	limit  rate.Limit
	burst  int
	exempt map[string]struct{}
	clock  clock.Clock

	mu      sync.Mutex
	buckets map[string]*bucket

	stop     chan struct{}
	stopOnce sync.Once
}

// NewRateLimitMiddleware allows perInterval requests per interval for each
// key, with a burst of perInterval. perInterval <= 0 turns limiting off.
// Idle buckets are swept in the background until Stop is called.
func NewRateLimitMiddleware(perInterval int, interval time.Duration, exemptKeys []string, c clock.Clock) *RateLimitMiddleware {
	rl := &RateLimitMiddleware{
		limit:   rate.Inf,
		burst:   perInterval,
		exempt:  make(map[string]struct{}),
		clock:   c,
		buckets: make(map[string]*bucket),
		stop:    make(chan struct{}),
	}
	if perInterval > 0 {
		rl.limit = rate.Every(interval / time.Duration(perInterval))
	}
	for _, k := range exemptKeys {
		if k = strings.TrimSpace(k); k != "" {
			rl.exempt[k] = struct{}{}
		}
	}

	go rl.sweepLoop()
	return rl
}

// Handler returns the middleware.
func (rl *RateLimitMiddleware) Handler() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := app.RequestAPIKey(r)
			if key == "" {
				key = anonymousBucket
			}
			if rl.limit == rate.Inf {
				next.ServeHTTP(w, r)
				return
			}
			if _, ok := rl.exempt[key]; ok {
				next.ServeHTTP(w, r)
				return
			}

			now := rl.clock.Now()
			lim := rl.bucketFor(key, now)
			if !lim.AllowN(now, 1) {
				rl.reject(w, r, lim, now)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.burst))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(int(math.Floor(lim.TokensAt(now)))))
			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RateLimitMiddleware) bucketFor(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter
}

// reject answers 429. Retry-After is the wait until one token is available,
// rounded up to whole seconds.
func (rl *RateLimitMiddleware) reject(w http.ResponseWriter, r *http.Request, lim *rate.Limiter, now time.Time) {
	res := lim.ReserveN(now, 1)
	wait := res.DelayFrom(now)
	res.CancelAt(now)

	seconds := max(int(math.Ceil(wait.Seconds())), 1)
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.burst))
	w.Header().Set("X-RateLimit-Remaining", "0")

	if err := writeError(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.", rl.clock); err != nil {
		logging.LogError(logging.FromContext(r.Context()), "failed to encode rate limit response", err)
	}
}

// sweep drops buckets not used for limiterIdleTTL before now.
func (rl *RateLimitMiddleware) sweep(now time.Time) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	dropped := 0
	for key, b := range rl.buckets {
		if now.Sub(b.lastSeen) > limiterIdleTTL {
			delete(rl.buckets, key)
			dropped++
		}
	}
	return dropped
}

func (rl *RateLimitMiddleware) sweepLoop() {
	ticker := time.NewTicker(limiterSweepGap)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.sweep(rl.clock.Now())
		case <-rl.stop:
			return
		}
	}
}

// Stop ends the background sweep. Calling it again is a no-op.
func (rl *RateLimitMiddleware) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}
