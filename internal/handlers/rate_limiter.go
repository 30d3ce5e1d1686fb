package handlers

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/duka-pos/api/internal/platform/auth"
	"github.com/duka-pos/api/internal/platform/httpx"
)

// sellerThrottle caps requests per caller over a fixed window. A nil throttle
// admits everything, which is how a non-positive limit disables the middleware.
type sellerThrottle struct {
	cap  int
	span time.Duration
	now  func() time.Time

	mu      sync.Mutex
	windows map[string]requestWindow
}

type requestWindow struct {
	hits    int
	expires time.Time
}

func newSellerThrottle(cap int, span time.Duration, now func() time.Time) *sellerThrottle {
	if cap <= 0 || span <= 0 {
		return nil
	}
	if now == nil {
		now = time.Now
	}
	return &sellerThrottle{
		cap:     cap,
		span:    span,
		now:     now,
		windows: make(map[string]requestWindow),
	}
}

func (t *sellerThrottle) allow(caller string) bool {
	if t == nil {
		return true
	}
	caller = strings.TrimSpace(caller)
	if caller == "" {
		caller = "anonymous"
	}
	at := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	win := t.windows[caller]
	if win.hits == 0 || at.After(win.expires) {
		t.sweepLocked(at)
		t.windows[caller] = requestWindow{hits: 1, expires: at.Add(t.span)}
		return true
	}
	if win.hits >= t.cap {
		return false
	}
	win.hits++
	t.windows[caller] = win
	return true
}

// sweepLocked drops lapsed windows so the map stays bounded by callers active
// within the current span. Callers must hold mu.
func (t *sellerThrottle) sweepLocked(at time.Time) {
	for caller, win := range t.windows {
		if at.After(win.expires) {
			delete(t.windows, caller)
		}
	}
}

// RateLimit throttles requests per seller within the window. Requests without
// an authenticated identity fall back to the caller's address. A non-positive
// limit disables throttling.
func RateLimit(limit int, window time.Duration) func(http.Handler) http.Handler {
	throttle := newSellerThrottle(limit, window, time.Now)
	return func(next http.Handler) http.Handler {
		if throttle == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key := ""
			if identity, ok := auth.IdentityFromContext(ctx); ok && identity != nil {
				key = identity.UID
			}
			if key == "" {
				if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
					key = host
				} else {
					key = r.RemoteAddr
				}
			}
			if !throttle.allow(key) {
				httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many requests, slow down", http.StatusTooManyRequests))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
