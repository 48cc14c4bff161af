package payments

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// PriceSource looks up a variant price in cents.
type PriceSource interface {
	VariantPrice(ctx context.Context, variantID string) (int64, error)
}

// PriceTable caches formatted prices per skin. A failed lookup keeps the
// previous price for that skin.
type PriceTable struct {
	src PriceSource

	mu        sync.RWMutex
	variants  map[string]string
	prices    map[string]string
	refreshed time.Time
}

// NewPriceTable watches the given skin -> variant id bindings.
func NewPriceTable(src PriceSource, variants map[string]string) *PriceTable {
	t := &PriceTable{src: src, prices: map[string]string{}}
	t.SetVariants(variants)
	return t
}

// SetVariants replaces the bindings and drops prices of unbound skins.
func (t *PriceTable) SetVariants(variants map[string]string) {
	cp := make(map[string]string, len(variants))
	for skin, v := range variants {
		if v != "" {
			cp[skin] = v
		}
	}
	t.mu.Lock()
	t.variants = cp
	for skin := range t.prices {
		if _, ok := cp[skin]; !ok {
			delete(t.prices, skin)
		}
	}
	t.mu.Unlock()
}

// Refresh fetches every bound variant price.
func (t *PriceTable) Refresh(ctx context.Context) error {
	if t.src == nil {
		return ErrNotConfigured
	}
	t.mu.RLock()
	skins := make([]string, 0, len(t.variants))
	for skin := range t.variants {
		skins = append(skins, skin)
	}
	variants := t.variants
	t.mu.RUnlock()
	sort.Strings(skins)

	fresh := make(map[string]string, len(skins))
	var errs []error
	for _, skin := range skins {
		cents, err := t.src.VariantPrice(ctx, variants[skin])
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", skin, err))
			continue
		}
		fresh[skin] = FormatPrice(cents)
	}

	t.mu.Lock()
	for skin, p := range fresh {
		t.prices[skin] = p
	}
	t.refreshed = time.Now()
	t.mu.Unlock()
	return errors.Join(errs...)
}

// Prices returns a copy of the cached prices.
func (t *PriceTable) Prices() map[string]string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]string, len(t.prices))
	for k, v := range t.prices {
		out[k] = v
	}
	return out
}

func (t *PriceTable) RefreshedAt() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.refreshed
}
