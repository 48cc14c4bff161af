package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/tidwall/gjson"

	logx "shakethefrog/pkg/logx"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw body.
const SignatureHeader = "X-Signature"

const (
	EventOrderCreated          = "order_created"
	EventSubscriptionCreated   = "subscription_created"
	EventSubscriptionUpdated   = "subscription_updated"
	EventSubscriptionCancelled = "subscription_cancelled"
)

var (
	ErrMissingSignature = errors.New("payments: missing signature")
	ErrNoWebhookSecret  = errors.New("payments: webhook secret not configured")
	ErrInvalidSignature = errors.New("payments: invalid signature")
	ErrMalformedPayload = errors.New("payments: malformed webhook payload")
)

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks signature against body in constant time. The
// error order matches the HTTP status mapping: missing signature, missing
// secret, mismatch.
func VerifySignature(secret string, body []byte, signature string) error {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return ErrMissingSignature
	}
	if secret == "" {
		return ErrNoWebhookSecret
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return ErrInvalidSignature
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return ErrInvalidSignature
	}
	return nil
}

// Event is the part of a webhook delivery the app acts on.
type Event struct {
	Name         string
	ResourceType string
	ResourceID   string
	Email        string
	Status       string
	Total        string
	ProductName  string
	// SkinID is the checkout custom data set at checkout creation.
	SkinID string
	Raw    []byte
}

// ParseEvent extracts an Event from a verified webhook body.
func ParseEvent(body []byte) (Event, error) {
	if !gjson.ValidBytes(body) {
		return Event{}, ErrMalformedPayload
	}
	doc := gjson.ParseBytes(body)
	name := doc.Get("meta.event_name").String()
	if name == "" {
		return Event{}, fmt.Errorf("%w: meta.event_name missing", ErrMalformedPayload)
	}
	attrs := doc.Get("data.attributes")
	ev := Event{
		Name:         name,
		ResourceType: doc.Get("data.type").String(),
		ResourceID:   doc.Get("data.id").String(),
		Email:        attrs.Get("user_email").String(),
		Status:       attrs.Get("status").String(),
		Total:        attrs.Get("total_formatted").String(),
		ProductName:  attrs.Get("product_name").String(),
		SkinID:       doc.Get("meta.custom_data.skin_id").String(),
		Raw:          append([]byte(nil), body...),
	}
	if ev.ProductName == "" {
		ev.ProductName = attrs.Get("first_order_item.product_name").String()
	}
	return ev, nil
}

// Handler reacts to one event kind.
type Handler func(ctx context.Context, ev Event) error

// Dispatcher routes events by name. Unknown events are logged and ignored.
type Dispatcher struct {
	log logx.Logger

	mu       sync.RWMutex
	handlers map[string][]Handler
}

func NewDispatcher(log logx.Logger) *Dispatcher {
	d := &Dispatcher{log: log, handlers: map[string][]Handler{}}
	d.On(EventOrderCreated, d.logOrder)
	for _, name := range []string{EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionCancelled} {
		d.On(name, d.logSubscription)
	}
	return d
}

// On appends h to the handlers for name.
func (d *Dispatcher) On(name string, h Handler) {
	if h == nil {
		return
	}
	d.mu.Lock()
	d.handlers[name] = append(d.handlers[name], h)
	d.mu.Unlock()
}

// Known reports whether any handler is registered for name.
func (d *Dispatcher) Known(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.handlers[name]) > 0
}

// Dispatch runs every handler for ev.Name and joins their errors.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) error {
	d.mu.RLock()
	hs := append([]Handler(nil), d.handlers[ev.Name]...)
	d.mu.RUnlock()

	d.log.Info("webhook received", logx.String("event", ev.Name))
	if len(hs) == 0 {
		d.log.Info("unhandled webhook event", logx.String("event", ev.Name))
		return nil
	}
	var errs []error
	for _, h := range hs {
		if err := h(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) logOrder(_ context.Context, ev Event) error {
	d.log.Info("order created",
		logx.String("order_id", ev.ResourceID),
		logx.String("customer_email", ev.Email),
		logx.String("total", ev.Total),
		logx.String("status", ev.Status),
		logx.String("product", ev.ProductName),
		logx.String("skin", ev.SkinID),
	)
	return nil
}

func (d *Dispatcher) logSubscription(_ context.Context, ev Event) error {
	d.log.Info(strings.ReplaceAll(ev.Name, "_", " "),
		logx.String("subscription_id", ev.ResourceID),
		logx.String("customer_email", ev.Email),
		logx.String("status", ev.Status),
		logx.String("product", ev.ProductName),
	)
	return nil
}
