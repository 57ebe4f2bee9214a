// Package types defines the shared vocabulary of the evaluation engine: the
// tagged events it consumes, the market descriptor it trades against, and the
// signal/order/ack shapes that flow through the pipeline and risk manager.
//
// Nothing in this package touches I/O, wire formats, or wallets — those are
// the concern of internal/feed, internal/gateway, and internal/discovery,
// which translate external formats into these types at the boundary.
package types

import "time"

// Side is the outcome-token side of a binary Up/Down market.
type Side int

const (
	Up Side = iota
	Down
)

func (s Side) String() string {
	if s == Up {
		return "UP"
	}
	return "DOWN"
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Up {
		return Down
	}
	return Up
}

// Interval is one of the fixed settlement windows a market can run on.
type Interval int

const (
	Interval5m Interval = iota
	Interval15m
	Interval1h
	Interval4h
)

// Duration returns the fixed window length for the interval.
func (i Interval) Duration() time.Duration {
	switch i {
	case Interval5m:
		return 5 * time.Minute
	case Interval15m:
		return 15 * time.Minute
	case Interval1h:
		return time.Hour
	case Interval4h:
		return 4 * time.Hour
	default:
		return 5 * time.Minute
	}
}

// Label returns the short human-readable interval label used in log lines
// and CSV directory paths (e.g. "5m").
func (i Interval) Label() string {
	switch i {
	case Interval5m:
		return "5m"
	case Interval15m:
		return "15m"
	case Interval1h:
		return "1h"
	case Interval4h:
		return "4h"
	default:
		return "unknown"
	}
}

// ParseInterval parses a config-style interval label.
func ParseInterval(s string) (Interval, bool) {
	switch s {
	case "5m":
		return Interval5m, true
	case "15m":
		return Interval15m, true
	case "1h":
		return Interval1h, true
	case "4h":
		return Interval4h, true
	default:
		return 0, false
	}
}

// EvalTrigger is the event class a strategy wants to be evaluated on.
type EvalTrigger int

const (
	TriggerReferenceTrade EvalTrigger = iota
	TriggerVenueQuote
	TriggerBoth
	TriggerMarketOpen
)

// MarketInfo is the immutable per-market descriptor produced by discovery.
type MarketInfo struct {
	Slug         string
	StartMs      int64
	EndMs        int64
	UpTokenID    string
	DownTokenID  string
	Strike       float64
	Interval     Interval
	TickSize     float64
	NegRisk      bool
}

// DurationMs is the fixed window length of the market.
func (m MarketInfo) DurationMs() int64 {
	d := m.EndMs - m.StartMs
	if d < 1 {
		return 1
	}
	return d
}

// ReferenceTrade is one print from the external spot-price reference feed.
type ReferenceTrade struct {
	ExchangeTsMs int64
	RecvAt       time.Time
	Price        float64
	Qty          float64
	IsBuy        bool
}

// VenueQuote is a best-bid/best-ask scalar update for both outcome tokens.
// A nil field means "no change reported for that side" — missing sides
// (bid < 0.02 or ask outside (0, 0.98)) are represented as nil by the feed
// adapter before the event reaches the engine.
type VenueQuote struct {
	ServerTsMs int64
	RecvAt     time.Time
	UpBid      *float64
	UpAsk      *float64
	DownBid    *float64
	DownAsk    *float64
}

// BookLevel is one (price, size) rung of a venue order book ladder.
type BookLevel struct {
	Price float64
	Size  float64
}

// VenueBook is a full ladder snapshot for one outcome token.
type VenueBook struct {
	RecvAt  time.Time
	IsUp    bool
	Bids    []BookLevel // sorted descending by price
	Asks    []BookLevel // sorted ascending by price
}

// CrossMarketQuote is a same-asset, other-interval quote used by the
// cross-timeframe strategy to fit an implied-vol term structure.
type CrossMarketQuote struct {
	Interval Interval
	UpBid    float64
	UpAsk    float64
	DownBid  float64
	DownAsk  float64
	Strike   float64
	EndMs    int64
}

// Signal is the pure output of a strategy evaluation: a candidate trade the
// pipeline may or may not turn into an Order.
type Signal struct {
	Strategy    string
	Side        Side
	Edge        float64
	FairValue   float64
	MarketPrice float64
	Confidence  float64
	SizeFrac    float64
	IsPassive   bool
	// UseBid marks strategies (strike_misalign) that quote at the best bid
	// rather than crossing the ask — the pipeline and risk manager must not
	// validate MarketPrice against ask-side assumptions for these signals.
	UseBid bool

	// TsMs, RefPrice, Dist, TimeLeftS and EvalUs are filled in by the
	// runner after evaluation, purely for telemetry — strategies never set
	// them, and nothing in the pipeline or risk manager reads them.
	TsMs      int64
	RefPrice  float64
	Dist      float64
	TimeLeftS float64
	EvalUs    float64
}

// Order is the outbound instruction the pipeline hands to the gateway once
// the risk manager approves a signal.
type Order struct {
	ID          uint64
	MarketSlug  string
	TokenID     string
	Side        Side
	Price       float64
	Size        float64
	Strategy    string
	SignalEdge  float64
	IsPassive   bool
	CreatedAt   time.Time

	// RefPrice and TimeLeftS are filled in by the runner for telemetry;
	// the gateway and risk manager never read them.
	RefPrice  float64
	TimeLeftS float64
}

// OrderStatus is the terminal or intermediate state of a dispatched order.
type OrderStatus int

const (
	StatusFilled OrderStatus = iota
	StatusPartialFill
	StatusRejected
	StatusTimeout
)

func (s OrderStatus) String() string {
	switch s {
	case StatusFilled:
		return "filled"
	case StatusPartialFill:
		return "partial_fill"
	case StatusRejected:
		return "rejected"
	case StatusTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// OrderAck is the inbound acknowledgment for a previously dispatched order.
type OrderAck struct {
	OrderID      uint64
	Status       OrderStatus
	RejectReason string
	FilledPrice  *float64
	FilledSize   *float64
	LatencyMs    float64
}

// Fill is a recorded execution used for settlement PnL accounting.
type Fill struct {
	OrderID  uint64
	Strategy string
	Side     Side
	Price    float64
	Size     float64
}

// InboundEvent is the tagged union the engine driver consumes. Exactly one
// field is populated per value; Kind identifies which.
type InboundEventKind int

const (
	EventReferenceTrade InboundEventKind = iota
	EventVenueQuote
	EventVenueBook
	EventCrossMarketQuote
	EventOrderAck
	EventTick
)

// InboundEvent wraps one of the engine's input event types plus a kind tag,
// mirroring the external interface contract of §6.
type InboundEvent struct {
	Kind             InboundEventKind
	ReferenceTrade   ReferenceTrade
	VenueQuote       VenueQuote
	VenueBook        VenueBook
	CrossMarketQuote CrossMarketQuote
	OrderAck         OrderAck
}
