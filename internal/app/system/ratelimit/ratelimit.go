// Package ratelimit throttles requests per key with token buckets.
package ratelimit

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter allows up to limit events per window for each key.
// It is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   int
	window  time.Duration
	now     func() time.Time
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// New creates a limiter that refills limit tokens over window.
func New(limit int, window time.Duration) *Limiter {
	if limit < 1 {
		limit = 1
	}
	return &Limiter{
		buckets: make(map[string]*bucket),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

func (l *Limiter) get(key string) *bucket {
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rate.Every(l.window/time.Duration(l.limit)), l.limit)}
		l.buckets[key] = b
	}
	b.lastSeen = l.now()
	return b
}

// Allow reports whether an event for key may happen now and consumes a token if so.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.get(key).lim.AllowN(l.now(), 1)
}

// Remaining returns the whole tokens left for key.
func (l *Limiter) Remaining(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[key]
	if !ok {
		return l.limit
	}
	n := int(b.lim.TokensAt(l.now()))
	if n < 0 {
		return 0
	}
	return n
}

// Reset forgets key.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
}

// Sweep drops buckets idle for more than two windows and returns how many.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-2 * l.window)
	n := 0
	for k, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, k)
			n++
		}
	}
	return n
}

// Run sweeps every window until ctx is done.
func (l *Limiter) Run(ctx context.Context) {
	t := time.NewTicker(l.window)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			l.Sweep()
		}
	}
}

// ClientIP extracts the client IP, preferring X-Forwarded-For then
// X-Real-IP, then RemoteAddr without its port.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
			return ip
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// LoginLimiter applies a per-IP and a per-login-id limit to sign-in attempts.
type LoginLimiter struct {
	ip      *Limiter
	account *Limiter
}

// NewLoginLimiter uses 10 attempts per IP per minute and 5 per login id per 5 minutes.
func NewLoginLimiter() *LoginLimiter {
	return NewLoginLimiterWithConfig(10, time.Minute, 5, 5*time.Minute)
}

// NewLoginLimiterWithConfig creates a login limiter with custom limits.
func NewLoginLimiterWithConfig(ipLimit int, ipWindow time.Duration, accountLimit int, accountWindow time.Duration) *LoginLimiter {
	return &LoginLimiter{ip: New(ipLimit, ipWindow), account: New(accountLimit, accountWindow)}
}

// Check reports whether a login attempt may proceed and, if not, a message for the user.
func (ll *LoginLimiter) Check(r *http.Request, loginID string) (bool, string) {
	if !ll.ip.Allow(ClientIP(r)) {
		return false, "Too many login attempts. Please wait a minute before trying again."
	}
	if key := accountKey(loginID); key != "" && !ll.account.Allow(key) {
		return false, "Too many login attempts for this account. Please wait a few minutes."
	}
	return true, ""
}

// ResetLoginID clears the per-account limit after a successful sign-in.
func (ll *LoginLimiter) ResetLoginID(loginID string) {
	if key := accountKey(loginID); key != "" {
		ll.account.Reset(key)
	}
}

// Sweep drops idle buckets from both limiters.
func (ll *LoginLimiter) Sweep() int {
	return ll.ip.Sweep() + ll.account.Sweep()
}

func accountKey(loginID string) string {
	return strings.ToLower(strings.TrimSpace(loginID))
}
