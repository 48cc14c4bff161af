package notifier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"shakethefrog/internal/eventbus"
	kit "shakethefrog/internal/transport"
	logx "shakethefrog/pkg/logx"
)

// FormatPurchase renders the operator message for one purchase.
func FormatPurchase(p eventbus.PurchaseEvent) string {
	var b strings.Builder
	b.WriteString("🐸 New purchase")
	if p.SkinID != "" {
		fmt.Fprintf(&b, ": %s skin", p.SkinID)
	}
	fmt.Fprintf(&b, "\norder: %s", p.OrderID)
	if p.Total != "" {
		fmt.Fprintf(&b, "\ntotal: %s", p.Total)
	}
	if p.Product != "" {
		fmt.Fprintf(&b, "\nproduct: %s", p.Product)
	}
	return b.String()
}

// Follow turns purchase events from bus into notifications for target
// until ctx is done.
func (s *Service) Follow(ctx context.Context, bus eventbus.Bus, target kit.Target) {
	ch, unsub := bus.Subscribe(64)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			p, isPurchase := ev.Data.(eventbus.PurchaseEvent)
			if ev.Type != eventbus.TypePurchaseRecorded || !isPurchase {
				continue
			}
			err := s.Notify(ctx, kit.Notification{Priority: 5, Target: target, Text: FormatPurchase(p)})
			if err != nil && !errors.Is(err, ErrDisabled) {
				s.log.Warn("purchase notification not queued", logx.String("order_id", p.OrderID), logx.Err(err))
			}
		}
	}
}
