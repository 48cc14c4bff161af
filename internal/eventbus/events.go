package eventbus

import "time"

// Event types.
const (
	TypePurchaseRecorded = "purchase.recorded"
	TypeWebhookDuplicate = "webhook.duplicate"
	TypeConfigReloaded   = "config.reloaded"
	TypePricesRefreshed  = "prices.refreshed"

	TypeNotifierQueued  = "notifier.queued"
	TypeNotifierDeduped = "notifier.deduped"
	TypeNotifierDropped = "notifier.dropped"
	TypeNotifierSent    = "notifier.sent"
	TypeNotifierFailed  = "notifier.failed"
)

// PurchaseEvent is the Data of TypePurchaseRecorded.
type PurchaseEvent struct {
	OrderID string `json:"order_id"`
	SkinID  string `json:"skin_id,omitempty"`
	Email   string `json:"email,omitempty"`
	Total   string `json:"total,omitempty"`
	Product string `json:"product,omitempty"`
}

// NotificationEvent is the Data of the notifier.* types.
type NotificationEvent struct {
	Channel string    `json:"channel"`
	ChatID  int64     `json:"chat_id"`
	Key     string    `json:"key"`
	At      time.Time `json:"at"`
	Error   string    `json:"error,omitempty"`
}

// PricesEvent is the Data of TypePricesRefreshed.
type PricesEvent struct {
	Prices map[string]string `json:"prices"`
	Error  string            `json:"error,omitempty"`
}
