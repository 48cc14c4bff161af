package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	DefaultAPIBase = "https://api.lemonsqueezy.com/v1"
	DefaultTimeout = 10 * time.Second

	jsonAPIMediaType = "application/vnd.api+json"
	maxResponseBytes = 1 << 20
)

var (
	ErrNotConfigured = errors.New("payments: api key or store id not configured")
	ErrNoVariant     = errors.New("payments: variant id required")
	ErrBadResponse   = errors.New("payments: unexpected provider response")
)

// APIError is a non-2xx provider response.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("payments: provider status %d", e.Status)
	}
	return fmt.Sprintf("payments: provider status %d: %s", e.Status, e.Detail)
}

type Config struct {
	APIBase  string
	APIKey   string
	StoreID  string
	Timeout  time.Duration
	TestMode bool
	// HTTPClient overrides the default client (tests).
	HTTPClient *http.Client
}

// Client is a minimal JSON:API client for the provider's REST API.
type Client struct {
	base     string
	key      string
	store    string
	testMode bool
	hc       *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" || strings.TrimSpace(cfg.StoreID) == "" {
		return nil, ErrNotConfigured
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.APIBase), "/")
	if base == "" {
		base = DefaultAPIBase
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		base:     base,
		key:      strings.TrimSpace(cfg.APIKey),
		store:    strings.TrimSpace(cfg.StoreID),
		testMode: cfg.TestMode,
		hc:       hc,
	}, nil
}

// CheckoutRequest describes one premium skin purchase.
type CheckoutRequest struct {
	VariantID string
	SkinID    string
	// SkinName is the display name used in the product texts.
	SkinName    string
	RedirectURL string
}

type Checkout struct {
	ID  string `json:"checkoutId"`
	URL string `json:"checkoutUrl"`
}

type resourceRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type relationship struct {
	Data resourceRef `json:"data"`
}

type checkoutAttributes struct {
	ProductOptions  productOptions  `json:"product_options"`
	CheckoutOptions checkoutOptions `json:"checkout_options"`
	CheckoutData    checkoutData    `json:"checkout_data"`
	TestMode        bool            `json:"test_mode"`
}

type productOptions struct {
	Name                string `json:"name"`
	Description         string `json:"description"`
	RedirectURL         string `json:"redirect_url"`
	ReceiptButtonText   string `json:"receipt_button_text"`
	ReceiptThankYouNote string `json:"receipt_thank_you_note"`
}

type checkoutOptions struct {
	Embed               bool   `json:"embed"`
	Media               bool   `json:"media"`
	Logo                bool   `json:"logo"`
	Desc                bool   `json:"desc"`
	Discount            bool   `json:"discount"`
	SubscriptionPreview bool   `json:"subscription_preview"`
	ButtonColor         string `json:"button_color"`
}

type checkoutData struct {
	Custom map[string]string `json:"custom"`
}

type checkoutDocument struct {
	Data struct {
		Type          string                  `json:"type"`
		Attributes    checkoutAttributes      `json:"attributes"`
		Relationships map[string]relationship `json:"relationships"`
	} `json:"data"`
}

func newCheckoutDocument(store string, testMode bool, req CheckoutRequest) checkoutDocument {
	var doc checkoutDocument
	doc.Data.Type = "checkouts"
	doc.Data.Attributes = checkoutAttributes{
		ProductOptions: productOptions{
			Name:                fmt.Sprintf("Premium %s Skin", req.SkinName),
			Description:         fmt.Sprintf("Unlock the premium %s skin for Shake the Frog!", req.SkinName),
			RedirectURL:         req.RedirectURL,
			ReceiptButtonText:   "Go to App",
			ReceiptThankYouNote: "Thank you for your purchase! Your premium skin is now available.",
		},
		CheckoutOptions: checkoutOptions{
			Logo:                true,
			Desc:                true,
			Discount:            true,
			SubscriptionPreview: true,
			ButtonColor:         "#16a34a",
		},
		CheckoutData: checkoutData{Custom: map[string]string{"skin_id": req.SkinID}},
		TestMode:     testMode,
	}
	doc.Data.Relationships = map[string]relationship{
		"store":   {Data: resourceRef{Type: "stores", ID: store}},
		"variant": {Data: resourceRef{Type: "variants", ID: req.VariantID}},
	}
	return doc
}

// CreateCheckout creates a hosted checkout session for one variant.
func (c *Client) CreateCheckout(ctx context.Context, req CheckoutRequest) (Checkout, error) {
	if strings.TrimSpace(req.VariantID) == "" {
		return Checkout{}, ErrNoVariant
	}
	body, err := json.Marshal(newCheckoutDocument(c.store, c.testMode, req))
	if err != nil {
		return Checkout{}, fmt.Errorf("encode checkout: %w", err)
	}
	res, err := c.do(ctx, http.MethodPost, "/checkouts", body)
	if err != nil {
		return Checkout{}, fmt.Errorf("create checkout: %w", err)
	}
	out := Checkout{
		ID:  res.Get("data.id").String(),
		URL: res.Get("data.attributes.url").String(),
	}
	if out.ID == "" || out.URL == "" {
		return Checkout{}, fmt.Errorf("create checkout: %w", ErrBadResponse)
	}
	return out, nil
}

// VariantPrice returns the variant price in cents.
func (c *Client) VariantPrice(ctx context.Context, variantID string) (int64, error) {
	variantID = strings.TrimSpace(variantID)
	if variantID == "" {
		return 0, ErrNoVariant
	}
	res, err := c.do(ctx, http.MethodGet, "/variants/"+variantID, nil)
	if err != nil {
		return 0, fmt.Errorf("get variant %s: %w", variantID, err)
	}
	price := res.Get("data.attributes.price")
	if !price.Exists() || price.Type != gjson.Number {
		return 0, fmt.Errorf("get variant %s: %w", variantID, ErrBadResponse)
	}
	return price.Int(), nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (gjson.Result, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return gjson.Result{}, err
	}
	req.Header.Set("Accept", jsonAPIMediaType)
	req.Header.Set("Authorization", "Bearer "+c.key)
	if body != nil {
		req.Header.Set("Content-Type", jsonAPIMediaType)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return gjson.Result{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := ""
		if gjson.ValidBytes(data) {
			detail = gjson.GetBytes(data, "errors.0.detail").String()
		}
		return gjson.Result{}, &APIError{Status: resp.StatusCode, Detail: detail}
	}
	if !gjson.ValidBytes(data) {
		return gjson.Result{}, ErrBadResponse
	}
	return gjson.ParseBytes(data), nil
}

// FormatPrice renders cents as a dollar amount, e.g. 299 -> "$2.99".
func FormatPrice(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}
