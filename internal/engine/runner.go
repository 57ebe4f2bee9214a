package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/0xtitan6/btcud-mm/internal/pipeline"
	"github.com/0xtitan6/btcud-mm/internal/risk"
	"github.com/0xtitan6/btcud-mm/internal/state"
	"github.com/0xtitan6/btcud-mm/internal/strategy"
	"github.com/0xtitan6/btcud-mm/pkg/types"
)

// openingWindowMs is how long after a market starts the market-open-only
// strategies stay eligible to fire — by the time a market has been live for
// this long, a freshly listed strike is no longer "new".
const openingWindowMs int64 = 15_000

// diagnosticIntervalMs controls how often the runner logs a diagnostic line
// (reference price, sigma, regime, top-of-book asks, signal and order
// counts) independent of any inbound event.
const diagnosticIntervalMs int64 = 10_000

// Sink is satisfied by anything that wants to observe every signal and
// order the runner's pipeline produces — telemetry writers, dashboards.
type Sink = pipeline.Sink

// Runner drives one market from open to settlement: it folds inbound
// events into MarketState, evaluates the strategies whose trigger matches
// the event, and hands any resulting signals to the shared pipeline. It
// owns nothing about transport — events arrive pre-decoded on a channel
// and orders leave through the Sink the caller wires in.
type Runner struct {
	market *state.MarketState
	proc   *pipeline.Processor
	risk   *risk.StrategyRiskManager
	logger *slog.Logger

	referenceTriggered []strategy.Strategy
	venueTriggered     []strategy.Strategy
	bothTriggered      []strategy.Strategy
	openStrategies     []strategy.Strategy

	sigBuf      []types.Signal
	fills       []types.Fill
	orderLookup map[uint64]types.Order

	snapMu sync.RWMutex
	snap   MarketSnapshot
}

// StrategySnapshot is an immutable copy of a strategy's accumulated
// performance counters, safe to read from the dashboard goroutine.
type StrategySnapshot struct {
	Signals   uint32
	Orders    uint32
	Filled    uint32
	GrossPnL  float64
	AvgEdge   float64
}

// MarketSnapshot is an immutable, point-in-time copy of the fields of a
// running market the dashboard cares about. The runner refreshes it after
// every event it handles; reading it never touches the live MarketState,
// which remains single-goroutine-owned.
type MarketSnapshot struct {
	Slug             string
	EndMs            int64
	Strike           float64
	RefPrice         float64
	UpBid, UpAsk     float64
	DownBid, DownAsk float64
	Distance         float64
	TimeLeftS        float64
	PositionSize     float64
	PositionAvgPrice float64
	TotalSignals     uint32
	TotalOrders      uint32
	TotalFilled      uint32
	GrossPnL         float64
	Strategies       map[string]StrategySnapshot
}

// Snapshot returns the runner's most recently published MarketSnapshot.
// Safe to call from any goroutine.
func (r *Runner) Snapshot() MarketSnapshot {
	r.snapMu.RLock()
	defer r.snapMu.RUnlock()
	return r.snap
}

func (r *Runner) publishSnapshot(nowMs int64) {
	strategies := make(map[string]StrategySnapshot, len(r.market.StrategyStats))
	for name, s := range r.market.StrategyStats {
		strategies[name] = StrategySnapshot{
			Signals:  s.Signals,
			Orders:   s.Orders,
			Filled:   s.Filled,
			GrossPnL: s.GrossPnL,
			AvgEdge:  s.AvgEdge(),
		}
	}

	snap := MarketSnapshot{
		Slug:             r.market.Info.Slug,
		EndMs:            r.market.Info.EndMs,
		Strike:           r.market.Info.Strike,
		RefPrice:         r.market.Reference.Price,
		UpBid:            r.market.UpBid,
		UpAsk:            r.market.UpAsk,
		DownBid:          r.market.DownBid,
		DownAsk:          r.market.DownAsk,
		Distance:         r.market.Distance(),
		TimeLeftS:        r.market.TimeLeftS(nowMs),
		PositionSize:     r.market.Position.Size,
		PositionAvgPrice: r.market.Position.AvgPrice,
		TotalSignals:     r.market.TotalSignals,
		TotalOrders:      r.market.TotalOrders,
		TotalFilled:      r.market.TotalFilled,
		GrossPnL:         r.market.GrossPnL,
		Strategies:       strategies,
	}

	r.snapMu.Lock()
	r.snap = snap
	r.snapMu.Unlock()
}

// runnerSink wraps the caller-supplied Sink so the runner can record the
// full order (strategy, side) before forwarding it onward — OrderAck only
// carries an order ID, so this mapping is how Settle later attributes
// fills back to the strategy and side that produced them. It also stamps
// every signal and order with the market context (reference price,
// distance to strike, time left, evaluation cost) that telemetry needs but
// strategies and the risk manager have no business computing themselves.
type runnerSink struct {
	r      *Runner
	out    Sink
	nowMs  int64
	evalUs float64
}

func (s runnerSink) OnSignal(sig types.Signal) {
	sig.TsMs = s.nowMs
	sig.RefPrice = s.r.market.Reference.Price
	sig.Dist = s.r.market.Distance()
	sig.TimeLeftS = s.r.market.TimeLeftS(s.nowMs)
	sig.EvalUs = s.evalUs
	s.out.OnSignal(sig)
}

func (s runnerSink) OnOrder(order types.Order) {
	order.RefPrice = s.r.market.Reference.Price
	order.TimeLeftS = s.r.market.TimeLeftS(s.nowMs)
	s.r.orderLookup[order.ID] = order
	s.out.OnOrder(order)
}

// FillRecorder is implemented by sinks that also want the ack behind every
// fill, not just the order that preceded it — the base Sink interface has
// no room for it since acks arrive on the event stream, not through the
// pipeline. The runner type-asserts for it rather than widening Sink,
// so a Sink that only cares about signals and orders stays that simple.
type FillRecorder interface {
	OnFill(order types.Order, ack types.OrderAck)
}

// NewRunner partitions strategies by trigger type once at construction so
// the hot path never re-filters the full strategy list per event.
func NewRunner(market *state.MarketState, proc *pipeline.Processor, riskMgr *risk.StrategyRiskManager, strategies []strategy.Strategy, logger *slog.Logger) *Runner {
	r := &Runner{
		market:      market,
		proc:        proc,
		risk:        riskMgr,
		logger:      logger.With("market", market.Info.Slug),
		orderLookup: make(map[uint64]types.Order),
	}
	for _, s := range strategies {
		switch s.Trigger() {
		case types.TriggerReferenceTrade:
			r.referenceTriggered = append(r.referenceTriggered, s)
		case types.TriggerVenueQuote:
			r.venueTriggered = append(r.venueTriggered, s)
		case types.TriggerBoth:
			r.bothTriggered = append(r.bothTriggered, s)
		case types.TriggerMarketOpen:
			r.openStrategies = append(r.openStrategies, s)
		}
	}
	r.publishSnapshot(market.Info.StartMs)
	return r
}

// Run consumes inbound events until the channel closes or the context is
// canceled, folding each into market state and evaluating the matching
// strategies through the shared pipeline. It returns the accumulated fills
// for settlement.
func (r *Runner) Run(ctx context.Context, events <-chan types.InboundEvent, sink Sink) []types.Fill {
	ticker := time.NewTicker(time.Duration(diagnosticIntervalMs) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return r.fills
		case evt, ok := <-events:
			if !ok {
				return r.fills
			}
			r.handleEvent(evt, sink)
		case <-ticker.C:
			r.logDiagnostics()
		}
	}
}

func (r *Runner) handleEvent(evt types.InboundEvent, sink Sink) {
	nowMs := time.Now().UnixMilli()
	defer func() { r.publishSnapshot(nowMs) }()

	switch evt.Kind {
	case types.EventReferenceTrade:
		if r.market.Info.Strike == 0 {
			r.market.Info.Strike = evt.ReferenceTrade.Price
			r.logger.Info("strike set from first reference trade", "strike", r.market.Info.Strike)
		}
		r.market.OnReferenceTrade(evt.ReferenceTrade)
		nowMs = evt.ReferenceTrade.ExchangeTsMs
		r.evaluateAndDispatch(r.triggeredByReferenceTrade(nowMs), nowMs, sink)
	case types.EventVenueQuote:
		r.market.OnVenueQuote(evt.VenueQuote)
		nowMs = evt.VenueQuote.ServerTsMs
		r.evaluateAndDispatch(r.triggeredByVenueEvent(nowMs), nowMs, sink)
	case types.EventVenueBook:
		r.market.OnVenueBook(evt.VenueBook)
		r.evaluateAndDispatch(r.triggeredByVenueEvent(nowMs), nowMs, sink)
	case types.EventCrossMarketQuote:
		r.market.OnCrossMarketQuote(evt.CrossMarketQuote)
	case types.EventOrderAck:
		r.onOrderAck(evt.OrderAck, sink)
	case types.EventTick:
		r.evaluateAndDispatch(r.triggeredByVenueEvent(nowMs), nowMs, sink)
	}
}

// triggeredByReferenceTrade returns the reference-trade strategies, plus
// the market-open strategies while still inside the opening window.
func (r *Runner) triggeredByReferenceTrade(nowMs int64) []strategy.Strategy {
	out := r.referenceTriggered
	if r.inOpeningWindow(nowMs) {
		out = append(append([]strategy.Strategy{}, out...), r.openStrategies...)
	}
	return out
}

func (r *Runner) triggeredByVenueEvent(nowMs int64) []strategy.Strategy {
	out := append(append([]strategy.Strategy{}, r.venueTriggered...), r.bothTriggered...)
	if r.inOpeningWindow(nowMs) {
		out = append(out, r.openStrategies...)
	}
	return out
}

func (r *Runner) inOpeningWindow(nowMs int64) bool {
	return nowMs-r.market.Info.StartMs <= openingWindowMs
}

// evaluateAndDispatch is gated on EWMA warm-up: strategies never run on an
// unseasoned volatility estimate, since every pricing path depends on it.
func (r *Runner) evaluateAndDispatch(strategies []strategy.Strategy, nowMs int64, sink Sink) {
	if len(strategies) == 0 {
		return
	}
	if !r.market.Reference.EwmaVol.IsValid() {
		return
	}
	if r.market.IsStale(nowMs) {
		return
	}

	r.sigBuf = r.sigBuf[:0]
	evalStart := time.Now()
	r.sigBuf = strategy.EvaluateFiltered(strategies, r.market, nowMs, r.sigBuf)
	evalUs := float64(time.Since(evalStart).Microseconds())
	if len(r.sigBuf) == 0 {
		return
	}
	r.proc.ProcessSignals(r.sigBuf, r.market, nowMs, runnerSink{r: r, out: sink, nowMs: nowMs, evalUs: evalUs})
}

func (r *Runner) onOrderAck(ack types.OrderAck, sink Sink) {
	r.market.Position.OnFill(ack)
	order := r.orderLookup[ack.OrderID]
	if ack.Status == types.StatusFilled || ack.Status == types.StatusPartialFill {
		if ack.FilledPrice != nil && ack.FilledSize != nil {
			r.market.TotalFilled++
			r.fills = append(r.fills, types.Fill{
				OrderID:  ack.OrderID,
				Strategy: order.Strategy,
				Side:     order.Side,
				Price:    *ack.FilledPrice,
				Size:     *ack.FilledSize,
			})
			if stats, ok := r.market.StrategyStats[order.Strategy]; ok {
				stats.Filled++
			}
		}
	}
	if rec, ok := sink.(FillRecorder); ok {
		rec.OnFill(order, ack)
	}
}

func (r *Runner) logDiagnostics() {
	r.logger.Debug("market diagnostic",
		"ref_price", r.market.Reference.Price,
		"sigma_real", r.market.SigmaReal(),
		"regime", r.market.Reference.Regime.Classify().String(),
		"up_ask", r.market.UpAsk,
		"down_ask", r.market.DownAsk,
		"signals", r.market.TotalSignals,
		"orders", r.market.TotalOrders,
	)
}

// Settle computes realized PnL for the market's fills and logs a summary.
func (r *Runner) Settle(outcome types.Side) float64 {
	pnl := r.risk.SettleMarket(outcome, r.fills)
	r.market.GrossPnL = pnl
	r.logger.Info("market settled",
		"outcome", outcome.String(),
		"pnl", pnl,
		"fills", len(r.fills),
		"signals", r.market.TotalSignals,
		"orders", r.market.TotalOrders,
	)
	return pnl
}
