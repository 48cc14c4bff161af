package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"shakethefrog/internal/eventbus"
	"shakethefrog/internal/i18n"
	"shakethefrog/internal/payments"
	"shakethefrog/internal/skins"
	"shakethefrog/internal/storage"
	logx "shakethefrog/pkg/logx"
)

const secret = "whsec_test"

type fakeCheckouts struct {
	mu   sync.Mutex
	reqs []payments.CheckoutRequest
	err  error
}

func (f *fakeCheckouts) CreateCheckout(_ context.Context, req payments.CheckoutRequest) (payments.Checkout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return payments.Checkout{}, f.err
	}
	return payments.Checkout{ID: "chk_1", URL: "https://pay.example/chk_1"}, nil
}

type staticPrices map[string]string

func (p staticPrices) Prices() map[string]string { return p }

func newTestServer(t *testing.T, mutate func(*Config, *Deps)) *Server {
	t.Helper()
	cat, err := i18n.New(i18n.Options{})
	if err != nil {
		t.Fatalf("i18n.New: %v", err)
	}
	cfg := Config{AppURL: "https://shakethefrog.test/", WebhookSecret: secret}
	deps := Deps{
		Skins:      skins.NewRegistry("", map[string]string{skins.Mandarin: "4242"}),
		Catalogs:   cat,
		Checkouts:  &fakeCheckouts{},
		Prices:     staticPrices{skins.Mandarin: "$1.99"},
		Dispatcher: payments.NewDispatcher(logx.Nop()),
	}
	if mutate != nil {
		mutate(&cfg, &deps)
	}
	return New(cfg, deps, logx.Nop())
}

func do(t *testing.T, h http.Handler, method, target, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestCheckoutErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		body   string
		mutate func(*Config, *Deps)
		status int
		want   string
	}{
		{"bad json", `{`, nil, http.StatusBadRequest, "Invalid request body"},
		{"no skin", `{"locale":"en"}`, nil, http.StatusBadRequest, "Skin ID is required"},
		{"no locale", `{"skinId":"mandarin"}`, nil, http.StatusBadRequest, "Locale is required"},
		{"unknown skin", `{"skinId":"unicorn","locale":"en"}`, nil, http.StatusBadRequest, "Invalid skin ID"},
		{"free skin", `{"skinId":"frog","locale":"en"}`, nil, http.StatusBadRequest, "This skin is not premium"},
		{
			"no variant", `{"skinId":"mandarin","locale":"en"}`,
			func(_ *Config, d *Deps) { d.Skins = skins.NewRegistry("", nil) },
			http.StatusInternalServerError, "Variant ID not configured for this skin",
		},
		{
			"provider failure", `{"skinId":"mandarin","locale":"en"}`,
			func(_ *Config, d *Deps) { d.Checkouts = &fakeCheckouts{err: errors.New("boom")} },
			http.StatusInternalServerError, "Failed to create checkout session",
		},
		{
			"payments disabled", `{"skinId":"mandarin","locale":"en"}`,
			func(_ *Config, d *Deps) { d.Checkouts = nil },
			http.StatusInternalServerError, "Failed to create checkout session",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := newTestServer(t, tt.mutate)
			rec := do(t, s.Handler(), http.MethodPost, "/api/checkout", tt.body, nil)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.status, rec.Body.String())
			}
			var got map[string]string
			decode(t, rec, &got)
			if got["error"] != tt.want {
				t.Fatalf("error = %q, want %q", got["error"], tt.want)
			}
			if strings.Contains(rec.Body.String(), "boom") {
				t.Fatalf("provider error leaked: %s", rec.Body.String())
			}
		})
	}
}

func TestCheckoutCreatesSession(t *testing.T) {
	t.Parallel()

	fc := &fakeCheckouts{}
	s := newTestServer(t, func(_ *Config, d *Deps) { d.Checkouts = fc })
	rec := do(t, s.Handler(), http.MethodPost, "/api/checkout", `{"skinId":"Mandarin","locale":"de"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
	}
	var got map[string]string
	decode(t, rec, &got)
	if got["checkoutUrl"] != "https://pay.example/chk_1" || got["checkoutId"] != "chk_1" {
		t.Fatalf("body = %v", got)
	}
	if len(fc.reqs) != 1 {
		t.Fatalf("checkout calls = %d, want 1", len(fc.reqs))
	}
	req := fc.reqs[0]
	if req.VariantID != "4242" || req.SkinID != skins.Mandarin || req.SkinName != "Mandarin" {
		t.Fatalf("request = %+v", req)
	}
	if want := "https://shakethefrog.test/de/checkout/success?skin=mandarin"; req.RedirectURL != want {
		t.Fatalf("redirect = %q, want %q", req.RedirectURL, want)
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatalf("missing %s header", requestIDHeader)
	}
}

func TestPricesAndSkins(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/api/prices", "", nil)
	var prices struct {
		Prices map[string]string `json:"prices"`
	}
	decode(t, rec, &prices)
	if prices.Prices[skins.Mandarin] != "$1.99" {
		t.Fatalf("prices = %v", prices.Prices)
	}

	rec = do(t, h, http.MethodGet, "/api/skins?lang=ru", "", nil)
	var list struct {
		Lang  string     `json:"lang"`
		Skins []skinView `json:"skins"`
	}
	decode(t, rec, &list)
	if list.Lang != "ru" || len(list.Skins) != 2 {
		t.Fatalf("skins = %+v", list)
	}
	byID := map[string]skinView{}
	for _, v := range list.Skins {
		byID[v.ID] = v
	}
	if v := byID[skins.Frog]; v.Name != "Лягушка" || v.Premium || !v.Default {
		t.Fatalf("frog = %+v", v)
	}
	if v := byID[skins.Mandarin]; !v.Premium || v.Price != "$1.99" {
		t.Fatalf("mandarin = %+v", v)
	}
	if c := rec.Result().Cookies(); len(c) == 0 || c[0].Name != i18n.LangCookieName || c[0].Value != "ru" {
		t.Fatalf("cookies = %v, want %s=ru", c, i18n.LangCookieName)
	}
}

func TestMessagesAndUI(t *testing.T) {
	t.Parallel()

	h := newTestServer(t, nil).Handler()

	rec := do(t, h, http.MethodGet, "/api/messages", "", http.Header{"Accept-Language": {"de-AT,de;q=0.9"}})
	var msgs struct {
		Lang     string   `json:"lang"`
		Messages []string `json:"messages"`
	}
	decode(t, rec, &msgs)
	if msgs.Lang != "de" || len(msgs.Messages) == 0 {
		t.Fatalf("messages = %+v", msgs)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Fatalf("Accept-Language negotiation must not set a cookie")
	}

	rec = do(t, h, http.MethodGet, "/api/ui?lang=ru&skin=frog", "", nil)
	var ui struct {
		Skin     string            `json:"skin"`
		Messages map[string]string `json:"messages"`
	}
	decode(t, rec, &ui)
	if got := ui.Messages[i18n.KeyNoShakeInstructionsMobile]; got != "Нажмите/коснитесь Лягушку!" {
		t.Fatalf("instruction = %q", got)
	}

	rec = do(t, h, http.MethodGet, "/api/ui?skin=unicorn", "", nil)
	decode(t, rec, &ui)
	if ui.Skin != skins.Frog {
		t.Fatalf("skin = %q, want fallback to frog", ui.Skin)
	}
}

const orderBody = `{"meta":{"event_name":"order_created","custom_data":{"skin_id":"mandarin"}},` +
	`"data":{"type":"orders","id":"1001","attributes":{"user_email":"a@b.c","status":"paid","total_formatted":"$1.99","product_name":"Premium Mandarin Skin"}}}`

func TestWebhookRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		sig    string
		secret string
		body   string
		status int
		want   string
	}{
		{"missing signature", "", secret, orderBody, http.StatusBadRequest, "Missing signature"},
		{"no secret", "abc", "", orderBody, http.StatusInternalServerError, "Webhook secret not configured"},
		{"bad signature", payments.Sign("other", []byte(orderBody)), secret, orderBody, http.StatusUnauthorized, "Invalid signature"},
		{"malformed", payments.Sign(secret, []byte(`{"meta":{}}`)), secret, `{"meta":{}}`, http.StatusInternalServerError, "Webhook processing failed"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := newTestServer(t, func(c *Config, _ *Deps) { c.WebhookSecret = tt.secret })
			hdr := http.Header{}
			if tt.sig != "" {
				hdr.Set(payments.SignatureHeader, tt.sig)
			}
			rec := do(t, s.Handler(), http.MethodPost, "/api/webhooks/lemonsqueezy", tt.body, hdr)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			var got map[string]string
			decode(t, rec, &got)
			if got["error"] != tt.want {
				t.Fatalf("error = %q, want %q", got["error"], tt.want)
			}
		})
	}
}

func TestWebhookDuplicateIsAcknowledgedOnce(t *testing.T) {
	t.Parallel()

	store, err := storage.Open(storage.Config{Driver: "file", Path: filepath.Join(t.TempDir(), "data")}, logx.Nop())
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	bus := eventbus.New()
	events, unsubscribe := bus.Subscribe(8)
	defer unsubscribe()

	var mu sync.Mutex
	calls := 0
	d := payments.NewDispatcher(logx.Nop())
	d.On(payments.EventOrderCreated, func(_ context.Context, ev payments.Event) error {
		mu.Lock()
		calls++
		mu.Unlock()
		if ev.SkinID != skins.Mandarin {
			t.Errorf("skin = %q", ev.SkinID)
		}
		return nil
	})
	s := newTestServer(t, func(_ *Config, deps *Deps) {
		deps.Store, deps.Bus, deps.Dispatcher = store, bus, d
	})

	hdr := http.Header{payments.SignatureHeader: {payments.Sign(secret, []byte(orderBody))}}
	for i := 0; i < 2; i++ {
		rec := do(t, s.Handler(), http.MethodPost, "/api/webhooks/lemonsqueezy", orderBody, hdr)
		if rec.Code != http.StatusOK {
			t.Fatalf("delivery %d status = %d (%s)", i, rec.Code, rec.Body.String())
		}
		var got map[string]bool
		decode(t, rec, &got)
		if !got["received"] {
			t.Fatalf("delivery %d body = %v", i, got)
		}
	}
	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Fatalf("handler calls = %d, want 1", calls)
	}
	select {
	case ev := <-events:
		if ev.Type != eventbus.TypeWebhookDuplicate {
			t.Fatalf("event = %q, want %q", ev.Type, eventbus.TypeWebhookDuplicate)
		}
	case <-time.After(time.Second):
		t.Fatalf("no duplicate event")
	}
}

func TestWebhookFailureIsRetryable(t *testing.T) {
	t.Parallel()

	store, err := storage.Open(storage.Config{Driver: "file", Path: filepath.Join(t.TempDir(), "data")}, logx.Nop())
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	fail := true
	d := payments.NewDispatcher(logx.Nop())
	d.On(payments.EventOrderCreated, func(context.Context, payments.Event) error {
		if fail {
			return errors.New("db down")
		}
		return nil
	})
	s := newTestServer(t, func(_ *Config, deps *Deps) { deps.Store, deps.Dispatcher = store, d })
	hdr := http.Header{payments.SignatureHeader: {payments.Sign(secret, []byte(orderBody))}}

	if rec := do(t, s.Handler(), http.MethodPost, "/api/webhooks/lemonsqueezy", orderBody, hdr); rec.Code != http.StatusInternalServerError {
		t.Fatalf("first status = %d, want 500", rec.Code)
	}
	fail = false
	if rec := do(t, s.Handler(), http.MethodPost, "/api/webhooks/lemonsqueezy", orderBody, hdr); rec.Code != http.StatusOK {
		t.Fatalf("retry status = %d, want 200", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, func(c *Config, _ *Deps) { c.RateLimit = RateLimit{PerSec: 0.001, Burst: 2} })
	h := s.Handler()
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, do(t, h, http.MethodPost, "/api/checkout", `{}`, nil).Code)
	}
	if codes[0] != http.StatusBadRequest || codes[1] != http.StatusBadRequest || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("codes = %v, want [400 400 429]", codes)
	}
	if rec := do(t, h, http.MethodGet, "/api/prices", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("GET limited: %d", rec.Code)
	}

	if err := s.Reconfigure(context.Background(), Config{RateLimit: RateLimit{PerSec: 1000, Burst: 1000}}); err != nil {
		t.Fatalf("Reconfigure: %v", err)
	}
	if rec := do(t, h, http.MethodPost, "/api/checkout", `{}`, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("after reconfigure status = %d, want 400", rec.Code)
	}
}

func TestLimiterSweepsIdleClients(t *testing.T) {
	t.Parallel()

	now := time.Unix(1000, 0)
	l := newClientLimiter(RateLimit{PerSec: 1, Burst: 1, IdleTTL: time.Minute})
	l.now = func() time.Time { return now }
	l.allow("10.0.0.1")
	now = now.Add(2 * time.Minute)
	l.allow("10.0.0.2")
	if _, ok := l.clients["10.0.0.1"]; ok {
		t.Fatalf("idle client not evicted")
	}
}

func TestPprofToken(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, func(c *Config, _ *Deps) {
		c.Pprof = Pprof{Enabled: true, Prefix: "/_debug", Token: "t0k"}
	})
	h := s.Handler()
	if rec := do(t, h, http.MethodGet, "/_debug/", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token status = %d, want 401", rec.Code)
	}
	rec := do(t, h, http.MethodGet, "/_debug/", "", http.Header{"Authorization": {"Bearer t0k"}})
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "goroutine") {
		t.Fatalf("index status = %d", rec.Code)
	}
}

func TestStartStopReconfigure(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, func(c *Config, _ *Deps) { c.Addr = "127.0.0.1:0" })
	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	addr := s.Addr()
	resp, err := http.Get("http://" + addr + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz = %d", resp.StatusCode)
	}

	if err := s.Reconfigure(ctx, Config{Addr: "127.0.0.1:0", WebhookSecret: "rotated"}); err != nil {
		t.Fatalf("Reconfigure: %v", err)
	}
	if s.Addr() == "" {
		t.Fatalf("server not running after reconfigure")
	}

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	s.Stop(stopCtx)
	if s.Addr() != "" {
		t.Fatalf("Addr after Stop = %q", s.Addr())
	}
}

func TestIsLoopbackAddr(t *testing.T) {
	t.Parallel()

	tests := []struct {
		addr string
		want bool
	}{
		{"127.0.0.1:8080", true},
		{"localhost:1", true},
		{"[::1]:80", true},
		{":8080", false},
		{"0.0.0.0:8080", false},
		{"nonsense", false},
	}
	for _, tt := range tests {
		if got := isLoopbackAddr(tt.addr); got != tt.want {
			t.Fatalf("isLoopbackAddr(%q) = %v, want %v", tt.addr, got, tt.want)
		}
	}
}
