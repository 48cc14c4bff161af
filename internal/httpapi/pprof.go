package httpapi

import (
	"crypto/subtle"
	"net/http"
	hpprof "net/http/pprof"
	"strings"
)

func mountPprof(mux *http.ServeMux, cfg Pprof) {
	prefix := normalizePrefix(cfg.Prefix)
	base := strings.TrimSuffix(prefix, "/")
	wrap := func(h http.HandlerFunc) http.HandlerFunc { return withToken(cfg.Token, h) }

	mux.HandleFunc("GET "+prefix, wrap(pprofIndexAt(prefix)))
	mux.HandleFunc("GET "+base+"/cmdline", wrap(hpprof.Cmdline))
	mux.HandleFunc("GET "+base+"/profile", wrap(hpprof.Profile))
	mux.HandleFunc("GET "+base+"/symbol", wrap(hpprof.Symbol))
	mux.HandleFunc("POST "+base+"/symbol", wrap(hpprof.Symbol))
	mux.HandleFunc("GET "+base+"/trace", wrap(hpprof.Trace))
}

// withToken accepts "Authorization: Bearer <token>" or ?token=<token>.
func withToken(token string, h http.HandlerFunc) http.HandlerFunc {
	tok := strings.TrimSpace(token)
	if tok == "" {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		got := r.URL.Query().Get("token")
		if got == "" {
			if ah := r.Header.Get("Authorization"); strings.HasPrefix(ah, "Bearer ") {
				got = strings.TrimSpace(strings.TrimPrefix(ah, "Bearer "))
			}
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(tok)) != 1 {
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		h(w, r)
	}
}

func normalizePrefix(prefix string) string {
	p := strings.TrimSpace(prefix)
	if p == "" {
		p = "/debug/pprof/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p
}

// pprof.Index assumes requests are rooted at /debug/pprof/; rewrite the
// path for custom prefixes.
func pprofIndexAt(prefix string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r2 := r.Clone(r.Context())
		r2.URL.Path = "/debug/pprof/" + strings.TrimPrefix(r.URL.Path, prefix)
		hpprof.Index(w, r2)
	}
}
