// Package purchases turns verified order webhooks into stored purchases and
// purchase events.
package purchases

import (
	"context"
	"fmt"
	"time"

	"shakethefrog/internal/eventbus"
	"shakethefrog/internal/payments"
	"shakethefrog/internal/storage"
	logx "shakethefrog/pkg/logx"
)

// Recorder handles order_created events. store and bus may be nil.
type Recorder struct {
	store storage.Store
	bus   eventbus.Bus
	log   logx.Logger
	now   func() time.Time
}

func NewRecorder(store storage.Store, bus eventbus.Bus, log logx.Logger) *Recorder {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Recorder{store: store, bus: bus, log: log, now: time.Now}
}

// Register binds the recorder to the order event on d.
func (r *Recorder) Register(d *payments.Dispatcher) {
	d.On(payments.EventOrderCreated, r.HandleOrder)
}

// HandleOrder persists the order once and announces it on the bus. A
// repeated order id is not announced again.
func (r *Recorder) HandleOrder(ctx context.Context, ev payments.Event) error {
	if ev.ResourceID == "" {
		return fmt.Errorf("order event without id")
	}
	p := storage.Purchase{
		OrderID: ev.ResourceID,
		SkinID:  ev.SkinID,
		Email:   ev.Email,
		Total:   ev.Total,
		Status:  ev.Status,
		Product: ev.ProductName,
		At:      r.now(),
	}
	if r.store != nil {
		fresh, err := r.store.RecordPurchase(ctx, p)
		if err != nil {
			return fmt.Errorf("record purchase %s: %w", p.OrderID, err)
		}
		if !fresh {
			r.log.Info("purchase already recorded", logx.String("order_id", p.OrderID))
			return nil
		}
	}
	r.log.Info("purchase recorded", logx.String("order_id", p.OrderID), logx.String("skin", p.SkinID), logx.String("total", p.Total))
	if r.bus != nil {
		r.bus.Publish(eventbus.Event{Type: eventbus.TypePurchaseRecorded, Data: eventbus.PurchaseEvent{
			OrderID: p.OrderID,
			SkinID:  p.SkinID,
			Email:   p.Email,
			Total:   p.Total,
			Product: p.Product,
		}})
	}
	return nil
}
