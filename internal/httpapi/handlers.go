package httpapi

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"shakethefrog/internal/eventbus"
	"shakethefrog/internal/i18n"
	"shakethefrog/internal/payments"
	logx "shakethefrog/pkg/logx"
)

const maxWebhookBody = 1 << 20

type handlers struct {
	deps Deps
	cfg  Config
	log  logx.Logger
}

type checkoutBody struct {
	SkinID string `json:"skinId"`
	Locale string `json:"locale"`
}

func (h *handlers) checkout(w http.ResponseWriter, r *http.Request) {
	var body checkoutBody
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	body.SkinID = strings.TrimSpace(body.SkinID)
	body.Locale = strings.TrimSpace(body.Locale)
	switch {
	case body.SkinID == "":
		writeError(w, http.StatusBadRequest, "Skin ID is required")
		return
	case body.Locale == "":
		writeError(w, http.StatusBadRequest, "Locale is required")
		return
	}

	skin, ok := h.deps.Skins.Lookup(body.SkinID)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid skin ID")
		return
	}
	if !skin.Premium {
		writeError(w, http.StatusBadRequest, "This skin is not premium")
		return
	}
	if skin.VariantID == "" {
		h.log.Error("checkout without variant", logx.String("skin", skin.ID))
		writeError(w, http.StatusInternalServerError, "Variant ID not configured for this skin")
		return
	}
	if h.deps.Checkouts == nil {
		h.log.Error("checkout requested but payments are disabled", logx.String("skin", skin.ID))
		writeError(w, http.StatusInternalServerError, "Failed to create checkout session")
		return
	}

	name := skin.ID
	if h.deps.Catalogs != nil {
		name = h.deps.Catalogs.SkinName(skin.ID, i18n.DefaultLanguage, i18n.Nominative)
	}
	co, err := h.deps.Checkouts.CreateCheckout(r.Context(), payments.CheckoutRequest{
		VariantID:   skin.VariantID,
		SkinID:      skin.ID,
		SkinName:    name,
		RedirectURL: h.cfg.AppURL + "/" + url.PathEscape(body.Locale) + "/checkout/success?skin=" + url.QueryEscape(skin.ID),
	})
	if err != nil {
		h.log.Error("create checkout failed", logx.String("skin", skin.ID), logx.Err(err))
		writeError(w, http.StatusInternalServerError, "Failed to create checkout session")
		return
	}
	writeJSON(w, http.StatusOK, co)
}

func (h *handlers) prices(w http.ResponseWriter, _ *http.Request) {
	prices := map[string]string{}
	if h.deps.Prices != nil {
		prices = h.deps.Prices.Prices()
	}
	writeJSON(w, http.StatusOK, map[string]any{"prices": prices})
}

func (h *handlers) webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	sig := strings.TrimSpace(r.Header.Get(payments.SignatureHeader))
	if sig == "" {
		writeError(w, http.StatusBadRequest, "Missing signature")
		return
	}
	if h.cfg.WebhookSecret == "" {
		h.log.Error("webhook received but no secret is configured")
		writeError(w, http.StatusInternalServerError, "Webhook secret not configured")
		return
	}
	if err := payments.VerifySignature(h.cfg.WebhookSecret, body, sig); err != nil {
		h.log.Warn("webhook signature rejected", logx.Err(err))
		writeError(w, http.StatusUnauthorized, "Invalid signature")
		return
	}

	sum := sha256.Sum256(body)
	key := hex.EncodeToString(sum[:])
	ctx := r.Context()
	if h.deps.Store != nil {
		seen, err := h.deps.Store.SeenWebhook(ctx, key)
		if err != nil {
			h.log.Warn("webhook idempotency lookup failed", logx.Err(err))
		} else if seen {
			h.log.Info("duplicate webhook delivery", logx.String("key", key[:16]))
			h.publish(eventbus.TypeWebhookDuplicate, key)
			writeJSON(w, http.StatusOK, map[string]bool{"received": true})
			return
		}
	}

	ev, err := payments.ParseEvent(body)
	if err == nil && h.deps.Dispatcher != nil {
		err = h.deps.Dispatcher.Dispatch(ctx, ev)
	}
	if err != nil {
		h.log.Error("webhook processing failed", logx.String("event", ev.Name), logx.Err(err))
		writeError(w, http.StatusInternalServerError, "Webhook processing failed")
		return
	}

	if h.deps.Store != nil {
		if _, err := h.deps.Store.MarkWebhook(ctx, key, time.Now()); err != nil {
			h.log.Warn("webhook idempotency record failed", logx.Err(err))
		}
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (h *handlers) publish(typ string, data any) {
	if h.deps.Bus == nil {
		return
	}
	h.deps.Bus.Publish(eventbus.Event{Type: typ, Time: time.Now(), Data: data})
}

// language resolves the request language and persists an explicit choice.
func (h *handlers) language(w http.ResponseWriter, r *http.Request) string {
	if h.deps.Catalogs == nil {
		return i18n.DefaultLanguage
	}
	lang, persist := h.deps.Catalogs.ResolveRequest(r)
	if persist {
		i18n.SetLanguageCookie(w, lang)
	}
	return lang
}

func (h *handlers) messages(w http.ResponseWriter, r *http.Request) {
	lang := h.language(w, r)
	var msgs []string
	if h.deps.Catalogs != nil {
		msgs = h.deps.Catalogs.Messages(lang)
	}
	if msgs == nil {
		msgs = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"lang": lang, "messages": msgs})
}

var instructionKeys = []string{
	i18n.KeyEnableDeviceShake,
	i18n.KeyShakeInstructionsMobile,
	i18n.KeyShakeInstructionsDesktop,
	i18n.KeyNoShakeInstructionsMobile,
	i18n.KeyNoShakeInstructionsDesktop,
}

func (h *handlers) ui(w http.ResponseWriter, r *http.Request) {
	lang := h.language(w, r)
	skin := h.deps.Skins.Resolve(r.URL.Query().Get("skin"))
	out := map[string]string{}
	if h.deps.Catalogs != nil {
		for k, v := range h.deps.Catalogs.UIMessages(lang) {
			out[k] = v
		}
		for _, k := range instructionKeys {
			out[k] = h.deps.Catalogs.Instruction(lang, k, skin.ID)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"lang": lang, "skin": skin.ID, "messages": out})
}

type skinView struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Premium bool   `json:"premium"`
	Price   string `json:"price,omitempty"`
	Default bool   `json:"default,omitempty"`
}

func (h *handlers) skins(w http.ResponseWriter, r *http.Request) {
	lang := h.language(w, r)
	var prices map[string]string
	if h.deps.Prices != nil {
		prices = h.deps.Prices.Prices()
	}
	def := h.deps.Skins.Default().ID
	ids := h.deps.Skins.IDs()
	out := make([]skinView, 0, len(ids))
	for _, id := range ids {
		s, _ := h.deps.Skins.Lookup(id)
		name := s.ID
		if h.deps.Catalogs != nil {
			name = h.deps.Catalogs.SkinName(s.ID, lang, i18n.Nominative)
		}
		out = append(out, skinView{ID: s.ID, Name: name, Premium: s.Premium, Price: prices[s.ID], Default: s.ID == def})
	}
	writeJSON(w, http.StatusOK, map[string]any{"lang": lang, "skins": out})
}

func (h *handlers) healthz(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{"status": "ok"}
	if h.deps.Health != nil {
		for k, v := range h.deps.Health() {
			body[k] = v
		}
	}
	writeJSON(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
