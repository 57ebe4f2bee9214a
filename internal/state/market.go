package state

import (
	"github.com/0xtitan6/btcud-mm/internal/mathkernel"
	"github.com/0xtitan6/btcud-mm/pkg/types"
)

// StrategyStats are per-strategy performance counters accumulated over a
// single market's lifetime.
type StrategyStats struct {
	Signals   uint32
	Orders    uint32
	Filled    uint32
	GrossPnL  float64
	TotalEdge float64
}

// AvgEdge is the mean signal edge at order time, or 0 if no orders were
// placed.
func (s *StrategyStats) AvgEdge() float64 {
	if s.Orders == 0 {
		return 0
	}
	return s.TotalEdge / float64(s.Orders)
}

// CrossMarketState is a same-asset, other-interval quote snapshot used by
// the cross-timeframe strategy to fit an implied-vol term structure.
type CrossMarketState struct {
	Interval types.Interval
	UpBid    float64
	UpAsk    float64
	DownBid  float64
	DownAsk  float64
	Strike   float64
	EndMs    int64
}

// MarketState is the full mutable state one market evaluates strategies
// against. It is owned exclusively by the engine's event loop goroutine —
// no locking, no shared references — and rebuilt fresh for each market
// except for Reference, which persists across markets on the same asset so
// the volatility estimator does not cold-start at every boundary.
type MarketState struct {
	Info      types.MarketInfo
	Reference *ReferenceState
	Oracle    mathkernel.OracleBasis

	UpBid, UpAsk     float64
	DownBid, DownAsk float64
	VenueLastTsMs    int64

	UpBook   OrderBookLadder
	DownBook OrderBookLadder

	CrossMarkets map[types.Interval]CrossMarketState

	Position PositionTracker

	TotalSignals uint32
	TotalOrders  uint32
	TotalFilled  uint32
	GrossPnL     float64

	StrategyStats map[string]*StrategyStats
}

// NewMarketState constructs state for a fresh market, taking ownership of
// the (possibly warm) reference sub-state.
func NewMarketState(info types.MarketInfo, ref *ReferenceState, oracle mathkernel.OracleBasis) *MarketState {
	return &MarketState{
		Info:          info,
		Reference:     ref,
		Oracle:        oracle,
		CrossMarkets:  make(map[types.Interval]CrossMarketState),
		StrategyStats: make(map[string]*StrategyStats),
	}
}

// StatsFor returns the per-strategy stats bucket, creating it on first use.
func (m *MarketState) StatsFor(strategy string) *StrategyStats {
	s, ok := m.StrategyStats[strategy]
	if !ok {
		s = &StrategyStats{}
		m.StrategyStats[strategy] = s
	}
	return s
}

// OnReferenceTrade folds a reference feed trade into the reference
// sub-state.
func (m *MarketState) OnReferenceTrade(t types.ReferenceTrade) {
	m.Reference.OnTrade(t.Price, t.ExchangeTsMs, t.Qty)
}

// OnVenueQuote applies a scalar best-bid/best-ask update. Nil fields leave
// the corresponding scalar unchanged.
func (m *MarketState) OnVenueQuote(q types.VenueQuote) {
	if q.UpBid != nil {
		m.UpBid = *q.UpBid
	}
	if q.UpAsk != nil {
		m.UpAsk = *q.UpAsk
	}
	if q.DownBid != nil {
		m.DownBid = *q.DownBid
	}
	if q.DownAsk != nil {
		m.DownAsk = *q.DownAsk
	}
	m.VenueLastTsMs = q.ServerTsMs
}

// OnVenueBook applies a full ladder snapshot and syncs the scalar
// bid/ask fields from the new top of book.
func (m *MarketState) OnVenueBook(b types.VenueBook) {
	book := &m.DownBook
	if b.IsUp {
		book = &m.UpBook
	}
	book.ApplySnapshot(b.Bids, b.Asks)
	if b.IsUp {
		m.UpBid = m.UpBook.BestBid()
		m.UpAsk = m.UpBook.BestAsk()
	} else {
		m.DownBid = m.DownBook.BestBid()
		m.DownAsk = m.DownBook.BestAsk()
	}
}

// OnCrossMarketQuote records or replaces a cross-interval quote snapshot.
func (m *MarketState) OnCrossMarketQuote(cm types.CrossMarketQuote) {
	m.CrossMarkets[cm.Interval] = CrossMarketState{
		Interval: cm.Interval,
		UpBid:    cm.UpBid,
		UpAsk:    cm.UpAsk,
		DownBid:  cm.DownBid,
		DownAsk:  cm.DownAsk,
		Strike:   cm.Strike,
		EndMs:    cm.EndMs,
	}
}

// TimeLeftS is the seconds remaining until market end, floored at 0.
func (m *MarketState) TimeLeftS(nowMs int64) float64 {
	left := m.Info.EndMs - nowMs
	if left < 0 {
		left = 0
	}
	return float64(left) / 1000.0
}

// SEst is the oracle-adjusted spot price estimate.
func (m *MarketState) SEst() float64 {
	return m.Oracle.SEst(m.Reference.Price)
}

// SigmaReal is the realized per-second volatility feeding the pricer.
func (m *MarketState) SigmaReal() float64 {
	return m.Reference.SigmaReal()
}

// TauEffS is the oracle-adjusted effective time to expiry in seconds.
func (m *MarketState) TauEffS(nowMs int64) float64 {
	return m.Oracle.TauEff(m.TimeLeftS(nowMs))
}

// Distance is the signed reference price distance from the strike.
func (m *MarketState) Distance() float64 {
	return m.Reference.Price - m.Info.Strike
}

// DistanceFrac is Distance scaled by strike, so thresholds are consistent
// across assets at very different price levels.
func (m *MarketState) DistanceFrac() float64 {
	if m.Info.Strike <= 0 {
		return 0
	}
	return m.Distance() / m.Info.Strike
}

// IsStale reports whether either feed has gone quiet for more than 5s.
func (m *MarketState) IsStale(nowMs int64) bool {
	refStale := m.Reference.TsMs > 0 && nowMs-m.Reference.TsMs > 5000
	venueStale := m.VenueLastTsMs > 0 && nowMs-m.VenueLastTsMs > 5000
	return refStale || venueStale
}

// HasData reports whether enough data has arrived to evaluate strategies:
// a reference price and at least one live venue quote.
func (m *MarketState) HasData() bool {
	return m.Reference.Price > 0 && (m.UpAsk > 0 || m.DownAsk > 0)
}
