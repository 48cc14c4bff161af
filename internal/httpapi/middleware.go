package httpapi

import (
	"net"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	logx "shakethefrog/pkg/logx"
)

const requestIDHeader = "X-Request-ID"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// withRequestID tags every request with an id (the client's, when it sends
// a sane one) and writes one access log line.
func withRequestID(log logx.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if len(id) == 0 || len(id) > 64 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		log.Debug("http request",
			logx.String("request_id", id),
			logx.String("method", r.Method),
			logx.String("path", r.URL.Path),
			logx.Int("status", rec.status),
			logx.Duration("took", time.Since(start)),
		)
	})
}

func withRecover(log logx.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				log.Error("http handler panicked", logx.String("path", r.URL.Path), logx.Any("panic", v), logx.Stack(string(debug.Stack())))
				writeError(w, http.StatusInternalServerError, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type client struct {
	lim  *rate.Limiter
	seen time.Time
}

// clientLimiter is a token bucket per remote IP. Idle clients are swept
// lazily on access.
type clientLimiter struct {
	mu        sync.Mutex
	cfg       RateLimit
	clients   map[string]*client
	lastSweep time.Time
	now       func() time.Time
}

func newClientLimiter(cfg RateLimit) *clientLimiter {
	l := &clientLimiter{clients: map[string]*client{}, now: time.Now}
	l.apply(cfg)
	return l
}

func (l *clientLimiter) apply(cfg RateLimit) {
	if cfg.PerSec > 0 && cfg.Burst <= 0 {
		cfg.Burst = max(1, int(cfg.PerSec*2))
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 5 * time.Minute
	}
	l.mu.Lock()
	if cfg != l.cfg {
		l.cfg = cfg
		clear(l.clients)
	}
	l.mu.Unlock()
}

func (l *clientLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cfg.PerSec <= 0 {
		return true
	}
	now := l.now()
	if now.Sub(l.lastSweep) >= l.cfg.IdleTTL {
		for k, c := range l.clients {
			if now.Sub(c.seen) >= l.cfg.IdleTTL {
				delete(l.clients, k)
			}
		}
		l.lastSweep = now
	}
	c, ok := l.clients[key]
	if !ok {
		c = &client{lim: rate.NewLimiter(rate.Limit(l.cfg.PerSec), l.cfg.Burst)}
		l.clients[key] = c
	}
	c.seen = now
	return c.lim.AllowN(now, 1)
}

func (l *clientLimiter) middleware(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(clientIP(r)) {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "Too many requests")
			return
		}
		next(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
