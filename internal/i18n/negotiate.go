package i18n

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/language"
)

const (
	// LangParam is the query parameter used to select a language.
	LangParam = "lang"
	// LegacyLangParam is the short form accepted by older share links.
	LegacyLangParam = "hl"
	// LangCookieName stores the user's language preference.
	LangCookieName = "stf_lang"
)

type negotiator struct {
	def     string
	tags    []language.Tag
	byCode  map[string]int
	matcher language.Matcher
}

func newNegotiator(def string, codes []string) (*negotiator, error) {
	n := &negotiator{def: def, byCode: make(map[string]int, len(codes))}
	// The default goes first so the matcher falls back to it.
	ordered := append([]string{def}, codes...)
	for _, code := range ordered {
		if _, dup := n.byCode[code]; dup {
			continue
		}
		tag, err := language.Parse(code)
		if err != nil {
			return nil, fmt.Errorf("parse locale tag %q: %w", code, err)
		}
		n.byCode[code] = len(n.tags)
		n.tags = append(n.tags, tag)
	}
	n.matcher = language.NewMatcher(n.tags)
	return n, nil
}

func (n *negotiator) codes() []string {
	out := make([]string, len(n.tags))
	for code, i := range n.byCode {
		out[i] = code
	}
	sort.Strings(out)
	return out
}

// exact maps a tag whose base language is supported to its code.
func (n *negotiator) exact(value string) (string, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	tag, err := language.Parse(value)
	if err != nil {
		return "", false
	}
	base, _ := tag.Base()
	if _, ok := n.byCode[base.String()]; ok {
		return base.String(), true
	}
	return "", false
}

func (n *negotiator) match(tags ...language.Tag) string {
	_, idx, conf := n.matcher.Match(tags...)
	if conf == language.No || idx < 0 || idx >= len(n.tags) {
		return n.def
	}
	base, _ := n.tags[idx].Base()
	return base.String()
}

func (n *negotiator) normalize(value string) string {
	if code, ok := n.exact(value); ok {
		return code
	}
	if tag, err := language.Parse(strings.TrimSpace(value)); err == nil {
		return n.match(tag)
	}
	return n.def
}

// ResolveRequest picks the language for r: the lang (or hl) query
// parameter, then the preference cookie, then Accept-Language. The bool
// reports whether the query parameter chose it and should be persisted.
func (b *Bundle) ResolveRequest(r *http.Request) (string, bool) {
	if r == nil {
		return b.def, false
	}
	q := r.URL.Query()
	for _, p := range []string{LangParam, LegacyLangParam} {
		if code, ok := b.neg.exact(q.Get(p)); ok {
			return code, true
		}
	}
	if cookie, err := r.Cookie(LangCookieName); err == nil {
		if code, ok := b.neg.exact(cookie.Value); ok {
			return code, false
		}
	}
	if accept := strings.TrimSpace(r.Header.Get("Accept-Language")); accept != "" {
		if tags, _, err := language.ParseAcceptLanguage(accept); err == nil && len(tags) > 0 {
			return b.neg.match(tags...), false
		}
	}
	return b.def, false
}

// SetLanguageCookie persists the selected language on the response.
func SetLanguageCookie(w http.ResponseWriter, lang string) {
	if w == nil || lang == "" {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     LangCookieName,
		Value:    lang,
		Path:     "/",
		MaxAge:   int((365 * 24 * time.Hour).Seconds()),
		SameSite: http.SameSiteLaxMode,
	})
}
