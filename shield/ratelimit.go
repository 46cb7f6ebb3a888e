package shield

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig defines the global per-IP rate limit.
type RateLimitConfig struct {
	// MaxRequests allowed per window. <= 0 disables limiting.
	MaxRequests int `yaml:"max_requests"`

	// WindowSeconds is the fixed window length. Default: 900 (15 minutes).
	WindowSeconds int `yaml:"window_seconds"`
}

// DefaultRateLimit allows 200 requests per 15-minute window per client IP.
func DefaultRateLimit() RateLimitConfig {
	return RateLimitConfig{MaxRequests: 200, WindowSeconds: 900}
}

type bucket struct {
	mu      sync.Mutex
	count   int
	resetAt time.Time
}

// RateLimiter provides fixed-window per-IP rate limiting held in memory.
// Expired buckets are garbage collected by StartGC.
type RateLimiter struct {
	cfg     RateLimitConfig
	buckets sync.Map
	exclude []string // path prefixes excluded from rate limiting
}

func NewRateLimiter(cfg RateLimitConfig, excludePrefixes ...string) *RateLimiter {
	if cfg.WindowSeconds <= 0 {
		cfg.WindowSeconds = 900
	}
	return &RateLimiter{cfg: cfg, exclude: excludePrefixes}
}

// StartGC starts a background goroutine that drops expired buckets every
// five minutes. Stops when done is closed.
func (rl *RateLimiter) StartGC(done <-chan struct{}) {
	tick := time.NewTicker(5 * time.Minute)
	go func() {
		defer tick.Stop()
		for {
			select {
			case <-done:
				return
			case <-tick.C:
				rl.gc()
			}
		}
	}()
}

func (rl *RateLimiter) gc() {
	now := time.Now()
	rl.buckets.Range(func(key, value any) bool {
		b := value.(*bucket)
		b.mu.Lock()
		expired := now.After(b.resetAt)
		b.mu.Unlock()
		if expired {
			rl.buckets.Delete(key)
		}
		return true
	})
}

func (rl *RateLimiter) allow(ip string) bool {
	if rl.cfg.MaxRequests <= 0 {
		return true
	}

	window := time.Duration(rl.cfg.WindowSeconds) * time.Second
	now := time.Now()

	val, loaded := rl.buckets.LoadOrStore(ip, &bucket{count: 1, resetAt: now.Add(window)})
	if !loaded {
		return true
	}

	b := val.(*bucket)
	b.mu.Lock()
	defer b.mu.Unlock()
	if now.After(b.resetAt) {
		b.count = 1
		b.resetAt = now.Add(window)
		return true
	}
	b.count++
	return b.count <= rl.cfg.MaxRequests
}

// Middleware enforces the rate limit, answering 429 JSON when a client
// exhausts its window.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, prefix := range rl.exclude {
			if strings.HasPrefix(r.URL.Path, prefix) {
				next.ServeHTTP(w, r)
				return
			}
		}

		ip := ExtractIP(r)
		if rl.allow(ip) {
			next.ServeHTTP(w, r)
			return
		}

		slog.Warn("ratelimit: request blocked", "ip", ip, "path", r.URL.Path)

		w.Header().Set("Retry-After", strconv.Itoa(rl.cfg.WindowSeconds))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]string{
			"message": "Too many requests, please try again later",
		})
	})
}

// ExtractIP returns the client IP from X-Forwarded-For or RemoteAddr.
func ExtractIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for i := 0; i < len(xff); i++ {
			if xff[i] == ',' {
				return strings.TrimSpace(xff[:i])
			}
		}
		return strings.TrimSpace(xff)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
