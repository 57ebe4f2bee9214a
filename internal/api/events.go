package api

import (
	"time"

	"github.com/0xtitan6/btcud-mm/internal/risk"
	"github.com/0xtitan6/btcud-mm/pkg/types"
)

// DashboardEvent is the wrapper for all events pushed to the dashboard.
type DashboardEvent struct {
	Type      string      `json:"type"`      // "snapshot", "signal", "order", "fill", "kill"
	Timestamp time.Time   `json:"timestamp"`
	MarketID  string      `json:"market_id"` // market slug, empty for global events
	Data      interface{} `json:"data"`
}

// SignalEvent mirrors a strategy's signal the moment it is evaluated.
type SignalEvent struct {
	Strategy    string  `json:"strategy"`
	Side        string  `json:"side"`
	Edge        float64 `json:"edge"`
	FairValue   float64 `json:"fair_value"`
	MarketPrice float64 `json:"market_price"`
	Confidence  float64 `json:"confidence"`
	SizeFrac    float64 `json:"size_frac"`
}

// OrderEvent represents an order the engine dispatched to the venue.
type OrderEvent struct {
	OrderID  uint64  `json:"order_id"`
	Strategy string  `json:"strategy"`
	Side     string  `json:"side"`
	Price    float64 `json:"price"`
	Size     float64 `json:"size"`
	Edge     float64 `json:"edge"`
}

// FillEvent represents an order ack terminating in a fill, partial fill,
// rejection or timeout.
type FillEvent struct {
	OrderID      uint64   `json:"order_id"`
	Strategy     string   `json:"strategy"`
	Status       string   `json:"status"`
	FilledPrice  *float64 `json:"filled_price,omitempty"`
	FilledSize   *float64 `json:"filled_size,omitempty"`
	RejectReason string   `json:"reject_reason,omitempty"`
	LatencyMs    float64  `json:"latency_ms"`
}

// KillEvent is emitted when the portfolio risk manager trips the kill switch.
type KillEvent struct {
	Reason   string `json:"reason"`
	MarketID string `json:"market_id,omitempty"` // empty means every market was killed
}

// NewSignalEvent builds a SignalEvent from a pipeline signal.
func NewSignalEvent(sig types.Signal) SignalEvent {
	return SignalEvent{
		Strategy:    sig.Strategy,
		Side:        sig.Side.String(),
		Edge:        sig.Edge,
		FairValue:   sig.FairValue,
		MarketPrice: sig.MarketPrice,
		Confidence:  sig.Confidence,
		SizeFrac:    sig.SizeFrac,
	}
}

// NewOrderEvent builds an OrderEvent from a dispatched order.
func NewOrderEvent(order types.Order) OrderEvent {
	return OrderEvent{
		OrderID:  order.ID,
		Strategy: order.Strategy,
		Side:     order.Side.String(),
		Price:    order.Price,
		Size:     order.Size,
		Edge:     order.SignalEdge,
	}
}

// NewFillEvent builds a FillEvent from an order and the ack that settled it.
func NewFillEvent(order types.Order, ack types.OrderAck) FillEvent {
	return FillEvent{
		OrderID:      ack.OrderID,
		Strategy:     order.Strategy,
		Status:       ack.Status.String(),
		FilledPrice:  ack.FilledPrice,
		FilledSize:   ack.FilledSize,
		RejectReason: ack.RejectReason,
		LatencyMs:    ack.LatencyMs,
	}
}

// NewKillEvent builds a KillEvent from a risk manager kill signal.
func NewKillEvent(kill risk.KillSignal) KillEvent {
	return KillEvent{Reason: kill.Reason, MarketID: kill.MarketID}
}
