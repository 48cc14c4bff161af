// Package httpapi serves the JSON API: checkout, prices, payment webhooks,
// message and UI catalogs, skins, health, and optional pprof.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"shakethefrog/internal/eventbus"
	"shakethefrog/internal/i18n"
	"shakethefrog/internal/payments"
	"shakethefrog/internal/skins"
	"shakethefrog/internal/storage"
	logx "shakethefrog/pkg/logx"
)

type RateLimit struct {
	PerSec  float64
	Burst   int
	IdleTTL time.Duration
}

type Pprof struct {
	Enabled       bool
	Prefix        string
	Token         string
	AllowInsecure bool
}

type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	RateLimit    RateLimit
	Pprof        Pprof

	// AppURL is the public base URL used for checkout redirects.
	AppURL        string
	WebhookSecret string
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.Addr) == "" {
		c.Addr = "127.0.0.1:8080"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 15 * time.Second
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 60 * time.Second
	}
	c.AppURL = strings.TrimRight(strings.TrimSpace(c.AppURL), "/")
	return c
}

// Checkouts creates hosted checkout sessions.
type Checkouts interface {
	CreateCheckout(ctx context.Context, req payments.CheckoutRequest) (payments.Checkout, error)
}

// Prices lists cached formatted prices per skin.
type Prices interface {
	Prices() map[string]string
}

// Deps are the collaborators behind the handlers. Checkouts, Prices,
// Store, Bus and Health may be nil.
type Deps struct {
	Skins      *skins.Registry
	Catalogs   *i18n.Bundle
	Checkouts  Checkouts
	Prices     Prices
	Dispatcher *payments.Dispatcher
	Store      storage.Store
	Bus        eventbus.Bus
	// Health adds component details to /healthz.
	Health func() map[string]any
}

// Server owns the HTTP listener and can be reconfigured on reload.
type Server struct {
	deps Deps
	log  logx.Logger

	mu      sync.Mutex
	cfg     Config
	limiter *clientLimiter
	ln      net.Listener
	srv     *http.Server
}

func New(cfg Config, deps Deps, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	cfg = cfg.withDefaults()
	return &Server{deps: deps, log: log, cfg: cfg, limiter: newClientLimiter(cfg.RateLimit)}
}

// Addr is the bound address while running.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Handler builds the routed handler for the current config.
func (s *Server) Handler() http.Handler {
	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()
	return s.handler(cfg)
}

func (s *Server) handler(cfg Config) http.Handler {
	h := &handlers{deps: s.deps, cfg: cfg, log: s.log}
	limited := func(fn http.HandlerFunc) http.Handler { return s.limiter.middleware(fn) }

	mux := http.NewServeMux()
	mux.Handle("POST /api/checkout", limited(h.checkout))
	mux.Handle("POST /api/webhooks/lemonsqueezy", limited(h.webhook))
	mux.HandleFunc("GET /api/prices", h.prices)
	mux.HandleFunc("GET /api/messages", h.messages)
	mux.HandleFunc("GET /api/ui", h.ui)
	mux.HandleFunc("GET /api/skins", h.skins)
	mux.HandleFunc("GET /healthz", h.healthz)
	if cfg.Pprof.Enabled {
		mountPprof(mux, cfg.Pprof)
	}
	return withRequestID(s.log, withRecover(s.log, mux))
}

// Start listens on the configured address. It returns after the listener is
// bound; serving continues in the background until Stop.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return nil
	}
	cfg := s.cfg
	if cfg.Pprof.Enabled && !cfg.Pprof.AllowInsecure && cfg.Pprof.Token == "" && !isLoopbackAddr(cfg.Addr) {
		s.log.Error("pprof disabled: non-loopback addr requires token or allow_insecure", logx.String("addr", cfg.Addr))
		cfg.Pprof.Enabled = false
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", cfg.Addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           s.handler(cfg),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
	s.ln, s.srv = ln, srv
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server stopped with error", logx.Err(err))
		}
	}()
	s.log.Info("http server started", logx.String("addr", ln.Addr().String()), logx.Bool("pprof", cfg.Pprof.Enabled))
	return nil
}

// Stop shuts the server down gracefully until ctx is done, then closes it.
func (s *Server) Stop(ctx context.Context) {
	s.mu.Lock()
	srv := s.srv
	s.srv, s.ln = nil, nil
	s.mu.Unlock()
	if srv == nil {
		return
	}
	if err := srv.Shutdown(ctx); err != nil {
		s.log.Warn("http shutdown incomplete", logx.Err(err))
		_ = srv.Close()
	}
	s.log.Info("http server stopped")
}

// Reconfigure applies cfg. Rate limits change in place; listener and
// route changes restart the server.
func (s *Server) Reconfigure(ctx context.Context, cfg Config) error {
	cfg = cfg.withDefaults()
	s.mu.Lock()
	prev := s.cfg
	running := s.srv != nil
	s.cfg = cfg
	s.limiter.apply(cfg.RateLimit)
	s.mu.Unlock()

	if !running || !needsRestart(prev, cfg) {
		return nil
	}
	s.Stop(ctx)
	return s.Start(ctx)
}

func needsRestart(a, b Config) bool {
	return a.Addr != b.Addr ||
		a.ReadTimeout != b.ReadTimeout || a.WriteTimeout != b.WriteTimeout || a.IdleTimeout != b.IdleTimeout ||
		a.Pprof != b.Pprof ||
		a.AppURL != b.AppURL || a.WebhookSecret != b.WebhookSecret
}

func isLoopbackAddr(addr string) bool {
	h, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	h = strings.TrimSpace(h)
	if h == "" {
		return false
	}
	if strings.EqualFold(h, "localhost") {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}
