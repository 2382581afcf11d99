package middleware

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"path"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/iudanet/supwarden/internal/common"
	"github.com/iudanet/supwarden/internal/server/handlers"
)

// RateLimiter - token bucket на каждый ключ (обычно IP адрес) поверх x/time/rate
type RateLimiter struct {
	visitors map[string]*visitor
	logger   *slog.Logger
	cleanupC chan struct{}
	stopOnce sync.Once
	limit    rate.Limit
	burst    int
	window   time.Duration
	mu       sync.Mutex
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter создает новый rate limiter.
// requests - максимальное количество запросов за window, они же допустимый burst.
func NewRateLimiter(requests int, window time.Duration, logger *slog.Logger) *RateLimiter {
	if requests <= 0 {
		requests = 1
	}

	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		logger:   logger,
		cleanupC: make(chan struct{}),
		limit:    rate.Every(window / time.Duration(requests)),
		burst:    requests,
		window:   window,
	}

	// Запускаем периодическую очистку неактивных ключей
	go rl.cleanup()

	return rl
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window * 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupIdle()
		case <-rl.cleanupC:
			return
		}
	}
}

// cleanupIdle удаляет ключи, не обращавшиеся дольше window: их bucket уже полон
func (rl *RateLimiter) cleanupIdle() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for key, v := range rl.visitors {
		if now.Sub(v.lastSeen) > rl.window {
			delete(rl.visitors, key)
		}
	}
}

// Stop останавливает cleanup goroutine
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.cleanupC) })
}

// Allow проверяет, разрешен ли запрос для данного ключа
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	v, exists := rl.visitors[key]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = time.Now()
	rl.mu.Unlock()

	return v.limiter.Allow()
}

func (rl *RateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.visitors)
}

// RateLimitMiddleware создает middleware для ограничения частоты запросов по IP.
// ips may be nil: then forwarding headers are ignored.
func RateLimitMiddleware(limiter *RateLimiter, ips *ClientIP, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ips.Resolve(r)
			if !limiter.Allow(ip) {
				rejectRateLimited(w, r, ip, logger)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// PathRateLimit - отдельный лимит для путей, совпадающих с Pattern (синтаксис path.Match)
type PathRateLimit struct {
	Pattern  string
	Requests int
	Window   time.Duration
}

// PathRateLimiter выбирает limiter по пути запроса, иначе использует default
type PathRateLimiter struct {
	fallback *RateLimiter
	ips      *ClientIP
	patterns []string
	limiters []*RateLimiter
}

// NewPathRateLimiter создает limiter'ы для каждого шаблона и default.
// Ключ - адрес клиента, определенный через ips.
func NewPathRateLimiter(limits []PathRateLimit, defaultRequests int, defaultWindow time.Duration, ips *ClientIP, logger *slog.Logger) *PathRateLimiter {
	p := &PathRateLimiter{fallback: NewRateLimiter(defaultRequests, defaultWindow, logger), ips: ips}
	for _, l := range limits {
		p.patterns = append(p.patterns, l.Pattern)
		p.limiters = append(p.limiters, NewRateLimiter(l.Requests, l.Window, logger))
	}
	return p
}

func (p *PathRateLimiter) limiterFor(urlPath string) *RateLimiter {
	urlPath = strings.TrimSuffix(urlPath, "/")
	for i, pattern := range p.patterns {
		if ok, _ := path.Match(pattern, urlPath); ok {
			return p.limiters[i]
		}
	}
	return p.fallback
}

// Stop останавливает все limiter'ы
func (p *PathRateLimiter) Stop() {
	p.fallback.Stop()
	for _, l := range p.limiters {
		l.Stop()
	}
}

// Middleware ограничивает запросы с учетом пути
func (p *PathRateLimiter) Middleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := p.ips.Resolve(r)
			if !p.limiterFor(r.URL.Path).Allow(ip) {
				rejectRateLimited(w, r, ip, logger)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rejectRateLimited(w http.ResponseWriter, r *http.Request, ip string, logger *slog.Logger) {
	logger.WarnContext(r.Context(), "Rate limit exceeded",
		slog.String("ip", ip),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path))

	handlers.WriteError(r.Context(), w, logger,
		fmt.Errorf("%w: rate limit exceeded, please try again later", common.ErrTooManyRequests))
}

// ClientIP определяет адрес клиента для rate limit.
// X-Forwarded-For и X-Real-IP учитываются только от доверенных прокси.
type ClientIP struct {
	trusted []netip.Prefix
}

// NewClientIP parses trusted proxies given as IPs or CIDR ranges
func NewClientIP(trustedProxies []string) (*ClientIP, error) {
	c := &ClientIP{}
	for _, entry := range trustedProxies {
		prefix, err := ParseTrustedProxy(entry)
		if err != nil {
			return nil, err
		}
		c.trusted = append(c.trusted, prefix)
	}
	return c, nil
}

// ParseTrustedProxy parses "10.0.0.1" or "10.0.0.0/8"
func ParseTrustedProxy(entry string) (netip.Prefix, error) {
	entry = strings.TrimSpace(entry)
	if strings.Contains(entry, "/") {
		prefix, err := netip.ParsePrefix(entry)
		if err != nil {
			return netip.Prefix{}, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
		}
		return prefix.Masked(), nil
	}

	addr, err := netip.ParseAddr(entry)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

// Resolve returns the client IP without port. Forwarding headers are read
// only when the peer is a trusted proxy; X-Forwarded-For is walked from the
// right and the first untrusted hop wins.
func (c *ClientIP) Resolve(r *http.Request) string {
	peer := remoteHost(r.RemoteAddr)
	peerAddr, err := netip.ParseAddr(peer)
	if err != nil || !c.isTrusted(peerAddr) {
		return peer
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		leftmost := ""
		for i := len(hops) - 1; i >= 0; i-- {
			addr, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
			if err != nil {
				break
			}
			addr = addr.Unmap()
			if !c.isTrusted(addr) {
				return addr.String()
			}
			leftmost = addr.String()
		}
		if leftmost != "" {
			return leftmost
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		if addr, err := netip.ParseAddr(xri); err == nil {
			return addr.Unmap().String()
		}
	}

	return peer
}

func (c *ClientIP) isTrusted(addr netip.Addr) bool {
	if c == nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range c.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// remoteHost отрезает порт от RemoteAddr
func remoteHost(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err == nil && host != "" {
		if addr, err := netip.ParseAddr(host); err == nil {
			return addr.Unmap().String()
		}
		return host
	}
	return remoteAddr
}
