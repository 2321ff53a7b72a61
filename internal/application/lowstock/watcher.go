package lowstock

import (
	"context"

	domoutbox "github.com/sellerhub/stockengine/internal/domain/outbox"
	domproduct "github.com/sellerhub/stockengine/internal/domain/product"
	"github.com/sellerhub/stockengine/internal/observability"
	"github.com/sellerhub/stockengine/internal/observability/logctx"
)

const componentWatcher = "lowstock_watcher"

// Watcher subscribes to stock.changed and raises an alert whenever a
// product's level lands at or below the seller's minimum. The alert is a
// structured log plus a counter; delivery of seller notifications is an
// out-of-scope collaborator subscribing to the same event.
type Watcher struct {
	subscriber domoutbox.Subscriber
	log        observability.Logger
	alerts     observability.Counter
}

func New(subscriber domoutbox.Subscriber, tel observability.Telemetry) *Watcher {
	if tel == nil {
		tel = observability.NopTelemetry()
	}
	return &Watcher{
		subscriber: subscriber,
		log:        tel.Logger().With(observability.F("component", componentWatcher)),
		alerts:     tel.Counter(observability.MLowStockAlerts),
	}
}

func (w *Watcher) Start() {
	if w.subscriber == nil {
		return
	}
	w.subscriber.Subscribe(domproduct.StockChangedEvent{}.EventName(), w.handleStockChanged)
}

func (w *Watcher) handleStockChanged(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domproduct.StockChangedEvent)
	if !ok {
		return nil
	}
	if evt.NewLevel > evt.MinimumStock {
		return nil
	}

	if w.alerts != nil {
		w.alerts.Add(1)
	}
	logctx.FromOr(ctx, w.log).Warn("low_stock_alert",
		observability.F("product_id", evt.ProductID),
		observability.F("stock_level", evt.NewLevel),
		observability.F("minimum_stock", evt.MinimumStock),
	)
	return nil
}
