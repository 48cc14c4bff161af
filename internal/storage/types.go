package storage

import (
	"context"
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage. An empty Driver or "none" disables it.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Purchase is one completed premium skin order.
type Purchase struct {
	OrderID string    `json:"order_id"`
	SkinID  string    `json:"skin_id,omitempty"`
	Email   string    `json:"email,omitempty"`
	Total   string    `json:"total,omitempty"`
	Status  string    `json:"status,omitempty"`
	Product string    `json:"product,omitempty"`
	At      time.Time `json:"at"`
}

// Store is the persistence API used by the app.
type Store interface {
	// RecordPurchase stores p once per OrderID. It reports whether p was new.
	RecordPurchase(ctx context.Context, p Purchase) (bool, error)
	// Purchases returns the newest purchases first, at most limit (<= 0: all).
	Purchases(ctx context.Context, limit int) ([]Purchase, error)

	// SeenWebhook reports whether a delivery key was already processed.
	SeenWebhook(ctx context.Context, key string) (bool, error)
	// MarkWebhook records a processed delivery key. It reports false for a
	// key that was already recorded.
	MarkWebhook(ctx context.Context, key string, at time.Time) (bool, error)

	PutDedup(ctx context.Context, key string, until time.Time) error
	GetDedup(ctx context.Context, key string) (until time.Time, ok bool, err error)

	// Prune drops webhook keys seen before cutoff and expired dedup keys.
	Prune(ctx context.Context, cutoff time.Time) (int, error)

	Close() error
}
