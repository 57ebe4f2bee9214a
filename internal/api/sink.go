package api

import (
	"time"

	"github.com/0xtitan6/btcud-mm/pkg/types"
)

// DashboardSink is a pipeline.Sink that broadcasts every signal, order and
// fill it sees to connected WebSocket clients. The engine chains it at the
// tail of the sink stack, after telemetry; the telemetry recorder forwards
// each event here before queueing its own asynchronous CSV write, so an
// event can reach the dashboard even when its CSV row is dropped.
type DashboardSink struct {
	hub *Hub
}

// NewDashboardSink wraps a Hub as a pipeline.Sink.
func NewDashboardSink(hub *Hub) *DashboardSink {
	return &DashboardSink{hub: hub}
}

// OnSignal implements pipeline.Sink.
func (d *DashboardSink) OnSignal(sig types.Signal) {
	d.hub.BroadcastEvent(DashboardEvent{
		Type:      "signal",
		Timestamp: time.Now(),
		Data:      NewSignalEvent(sig),
	})
}

// OnOrder implements pipeline.Sink.
func (d *DashboardSink) OnOrder(order types.Order) {
	d.hub.BroadcastEvent(DashboardEvent{
		Type:      "order",
		Timestamp: time.Now(),
		MarketID:  order.MarketSlug,
		Data:      NewOrderEvent(order),
	})
}

// OnFill implements engine.FillRecorder, letting the runner push terminal
// order acks straight to the dashboard without widening pipeline.Sink.
func (d *DashboardSink) OnFill(order types.Order, ack types.OrderAck) {
	d.hub.BroadcastEvent(DashboardEvent{
		Type:      "fill",
		Timestamp: time.Now(),
		MarketID:  order.MarketSlug,
		Data:      NewFillEvent(order, ack),
	})
}

// BroadcastKill pushes a kill-switch event to connected clients. The engine
// calls this directly from its kill-signal handler, outside the Sink path.
func (d *DashboardSink) BroadcastKill(marketID, reason string) {
	d.hub.BroadcastEvent(DashboardEvent{
		Type:      "kill",
		Timestamp: time.Now(),
		MarketID:  marketID,
		Data:      KillEvent{Reason: reason, MarketID: marketID},
	})
}
