package lowstock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domoutbox "github.com/sellerhub/stockengine/internal/domain/outbox"
	domproduct "github.com/sellerhub/stockengine/internal/domain/product"
	"github.com/sellerhub/stockengine/internal/observability"
)

type fakeSubscriber struct {
	handlers map[string]domoutbox.Handler
}

func (s *fakeSubscriber) Subscribe(eventName string, h domoutbox.Handler) {
	if s.handlers == nil {
		s.handlers = make(map[string]domoutbox.Handler)
	}
	s.handlers[eventName] = h
}

type countingCounter struct{ n float64 }

func (c *countingCounter) Add(d float64, _ ...observability.Label) { c.n += d }

type fakeTelemetry struct {
	alerts *countingCounter
}

func (f *fakeTelemetry) Tracer() observability.TraceCtx { return observability.NopTracer() }
func (f *fakeTelemetry) Logger() observability.Logger   { return observability.NopLogger() }
func (f *fakeTelemetry) Histogram(string) observability.Histogram {
	return observability.NopHistogram()
}

func (f *fakeTelemetry) Counter(name string) observability.Counter {
	if name == observability.MLowStockAlerts {
		return f.alerts
	}
	return observability.NopCounter()
}

func TestWatcher_AlertsAtOrBelowMinimum(t *testing.T) {
	sub := &fakeSubscriber{}
	tel := &fakeTelemetry{alerts: &countingCounter{}}
	New(sub, tel).Start()

	h, ok := sub.handlers["stock.changed"]
	require.True(t, ok, "watcher must subscribe to stock.changed")

	ctx := context.Background()

	require.NoError(t, h(ctx, domproduct.StockChangedEvent{ProductID: "p1", NewLevel: 5, MinimumStock: 10}))
	require.NoError(t, h(ctx, domproduct.StockChangedEvent{ProductID: "p1", NewLevel: 10, MinimumStock: 10}))
	assert.Equal(t, 2.0, tel.alerts.n, "at and below the minimum both alert")

	require.NoError(t, h(ctx, domproduct.StockChangedEvent{ProductID: "p1", NewLevel: 11, MinimumStock: 10}))
	assert.Equal(t, 2.0, tel.alerts.n, "above the minimum stays quiet")
}

func TestWatcher_IgnoresForeignEvents(t *testing.T) {
	sub := &fakeSubscriber{}
	tel := &fakeTelemetry{alerts: &countingCounter{}}
	New(sub, tel).Start()

	h := sub.handlers["stock.changed"]
	require.NoError(t, h(context.Background(), fakeEvent{}))
	assert.Equal(t, 0.0, tel.alerts.n)
}

type fakeEvent struct{}

func (fakeEvent) EventName() string { return "stock.changed" }
