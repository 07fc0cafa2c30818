package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"resumeguard/internal/errors"

	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const limiterEvictionAge = 10 * time.Minute

// LimiterManager keeps one token bucket per client key (IP or API key).
type LimiterManager struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	lastSeen map[string]time.Time
	rate     rate.Limit
	burst    int
	rejected int64
	done     chan struct{}
	closed   sync.Once
	logger   *errors.Logger
}

// RateLimiter is the limiter the server wires into its middleware
type RateLimiter = LimiterManager

// NewRateLimiter creates a limiter allowing requestsPerMin per key with the given burst.
func NewRateLimiter(requestsPerMin int, burstCapacity int, logger *errors.Logger) *LimiterManager {
	if logger == nil {
		logger = errors.Discard()
	}
	if burstCapacity <= 0 {
		burstCapacity = 1
	}

	m := &LimiterManager{
		limiters: make(map[string]*rate.Limiter),
		lastSeen: make(map[string]time.Time),
		rate:     rate.Limit(float64(requestsPerMin) / 60.0), // rate.Limit is per second
		burst:    burstCapacity,
		done:     make(chan struct{}),
		logger:   logger,
	}

	// Evict idle clients in the background
	go m.cleanupRoutine(limiterEvictionAge)
	return m
}

// GetLimiter retrieves or creates a limiter for a given key.
func (m *LimiterManager) GetLimiter(key string) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	limiter, exists := m.limiters[key]
	if !exists {
		limiter = rate.NewLimiter(m.rate, m.burst)
		m.limiters[key] = limiter
	}
	m.lastSeen[key] = time.Now()

	return limiter
}

// Allow reports whether key may make a request now. It never blocks.
func (m *LimiterManager) Allow(key string) bool {
	// Allow consumes a token if one is available, it does not wait
	if m.GetLimiter(key).Allow() {
		return true
	}

	m.mu.Lock()
	m.rejected++
	m.mu.Unlock()
	return false
}

// GetStats returns current rate limiter statistics
func (m *LimiterManager) GetStats() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	return map[string]any{
		"enabled":           true,
		"active_limiters":   len(m.limiters),
		"rate_per_second":   float64(m.rate),
		"rate_per_minute":   float64(m.rate) * 60.0,
		"burst_capacity":    m.burst,
		"rejected_requests": m.rejected,
	}
}

// cleanupRoutine runs cleanup every interval until Close
func (m *LimiterManager) cleanupRoutine(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanup(interval)
		case <-m.done:
			return
		}
	}
}

// cleanup drops limiters idle for longer than evictionAge
func (m *LimiterManager) cleanup(evictionAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for key, lastSeen := range m.lastSeen {
		if now.Sub(lastSeen) > evictionAge {
			delete(m.limiters, key)
			delete(m.lastSeen, key)
		}
	}

	m.logger.Debug("Rate limiter cleanup completed",
		"remaining_limiters", len(m.limiters))
}

// Close stops the cleanup goroutine. Safe to call more than once.
func (m *LimiterManager) Close() {
	m.closed.Do(func() { close(m.done) })
}

// rateLimitMiddleware rejects requests over the per-key budget with 429.
func (s *Server) rateLimitMiddleware() func(http.HandlerFunc) http.HandlerFunc {
	if s.RateLimit == nil || !s.RateLimit.Enabled || s.RateLimiter == nil {
		return func(next http.HandlerFunc) http.HandlerFunc { return next }
	}

	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			rateLimitKey := getRateLimitKey(r, s.RateLimit.ByAPIKey, s.RateLimit.ByIP)
			// Neither scope applies to this request
			if rateLimitKey == "" {
				next(w, r)
				return
			}

			if !s.RateLimiter.Allow(rateLimitKey) {
				// The key prefix names the scope that was exhausted
				limitedBy, _, _ := strings.Cut(rateLimitKey, ":")
				s.Observability.RecordRateLimitHit(r.Context(), limitedBy)
				oteltrace.SpanFromContext(r.Context()).AddEvent("rate_limited",
					oteltrace.WithAttributes(attribute.String("limited_by", limitedBy)))

				s.Logger.Info("Rate limit exceeded",
					"limited_by", limitedBy,
					"endpoint", r.URL.Path,
					"client_ip", getClientIP(r))
				// Buckets refill per minute
				w.Header().Set("Retry-After", "60")
				writeErrorResponse(w, "Rate limit exceeded", errors.ErrCodeRateLimited,
					"Too many requests", http.StatusTooManyRequests)
				return
			}

			next(w, r)
		}
	}
}

// getRateLimitKey picks the API key when enabled and present, else the client IP
func getRateLimitKey(r *http.Request, byAPIKey, byIP bool) string {
	if byAPIKey {
		if apiKey := extractAPIKey(r); apiKey != "" {
			return "api_key:" + apiKey
		}
	}

	if byIP {
		return "ip:" + getClientIP(r)
	}

	return ""
}

// getClientIP extracts the client IP address from the request
func getClientIP(r *http.Request) string {
	// Proxies append to X-Forwarded-For, the client is the leftmost entry
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := parseFirstIP(xff); ip != "" {
			return ip
		}
	}

	// Then X-Real-IP as set by nginx
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if ip := net.ParseIP(xri); ip != nil {
			return xri
		}
	}

	// Direct connection
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// parseFirstIP parses the first valid IP from a comma-separated list
func parseFirstIP(ips string) string {
	// Skip entries that are not addresses, such as "unknown"
	for ip := range strings.SplitSeq(ips, ",") {
		ip = strings.TrimSpace(ip)
		if parsed := net.ParseIP(ip); parsed != nil {
			return ip
		}
	}
	return ""
}
