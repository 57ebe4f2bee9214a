// Package pipeline implements the shared signal-processing path every
// strategy's output passes through before it becomes a dispatched order:
// house-side coherence filtering, cross-strategy deconfliction, a
// direction-flip limiter, descending edge*confidence ordering, and the risk-manager
// gate. The same ProcessSignals call runs in the live engine and any
// replay/backtest harness — only the slippage model and the Sink differ.
package pipeline

import (
	"sort"

	"github.com/0xtitan6/btcud-mm/internal/risk"
	"github.com/0xtitan6/btcud-mm/internal/state"
	"github.com/0xtitan6/btcud-mm/pkg/types"
)

// MaxDirectionFlips bounds how many times the winning side may flip across
// consecutive ProcessSignals calls for one market before the pipeline
// refuses to act on a new flip — protects against whipsawing on noisy,
// conflicting signals near a coin-flip fair value.
const MaxDirectionFlips = 1

// houseSideConfidence is the confidence threshold above which a signal is
// trusted enough to silently filter out opposite-side signals in the same
// batch, on the theory that a high-confidence read of the house side is
// more reliable than a handful of weaker contrarian signals.
const houseSideConfidence = 0.7

// ProcessConfig tunes per-call behavior that differs between live trading
// and backtest replay.
type ProcessConfig struct {
	// SlippageCents is added to a signal's market price before risk-sizing
	// to approximate the cost of actually crossing the book; live trading
	// observes the real fill price and needs none.
	SlippageCents float64
}

// LiveConfig is used by the live engine: no synthetic slippage since real
// fills already reflect the true cost of execution.
func LiveConfig() ProcessConfig { return ProcessConfig{SlippageCents: 0} }

// BacktestConfig approximates crossing the book with a flat 1-cent penalty.
func BacktestConfig() ProcessConfig { return ProcessConfig{SlippageCents: 0.01} }

// Sink receives every signal the pipeline considers and every order it
// actually dispatches — the engine wires a Sink that forwards to the
// gateway and telemetry writers; a backtest harness wires one that records
// everything to memory.
type Sink interface {
	OnSignal(sig types.Signal)
	OnOrder(order types.Order)
}

// Processor holds the state that must persist across ProcessSignals calls
// for one market: the direction-flip counter and the monotonic order ID
// sequence. A fresh Processor is created per market.
type Processor struct {
	cfg       ProcessConfig
	risk      *risk.StrategyRiskManager
	lastSide  *types.Side
	flipCount int
	nextOrder uint64
}

// NewProcessor constructs a processor for one market's lifetime.
func NewProcessor(cfg ProcessConfig, riskMgr *risk.StrategyRiskManager) *Processor {
	return &Processor{cfg: cfg, risk: riskMgr}
}

// ProcessSignals runs the full pipeline over one batch of signals produced
// by a single evaluation pass (all strategies triggered by the same
// event). It is a no-op on an empty batch.
func (p *Processor) ProcessSignals(signals []types.Signal, st *state.MarketState, nowMs int64, sink Sink) {
	if len(signals) == 0 {
		return
	}

	active, passive := splitPassive(signals)

	filteredActive := applyHouseSideFilter(active)

	var sideSignals []types.Signal
	if len(filteredActive) > 0 {
		winningSide, ok := deconflict(filteredActive)
		if ok {
			if p.lastSide != nil && *p.lastSide != winningSide {
				p.flipCount++
			}
			if p.lastSide == nil || *p.lastSide == winningSide || p.flipCount <= MaxDirectionFlips {
				side := winningSide
				p.lastSide = &side
				sideSignals = filterSide(filteredActive, winningSide)
			}
		}
	}
	sideSignals = append(sideSignals, passive...)
	if len(sideSignals) == 0 {
		return
	}

	sort.SliceStable(sideSignals, func(i, j int) bool {
		return sideSignals[i].Edge*sideSignals[i].Confidence > sideSignals[j].Edge*sideSignals[j].Confidence
	})

	for _, sig := range sideSignals {
		sink.OnSignal(sig)
		st.TotalSignals++
		stats := st.StatsFor(sig.Strategy)
		stats.Signals++

		priced := sig
		priced.MarketPrice = applySlippage(sig.MarketPrice, p.cfg.SlippageCents)

		p.nextOrder++
		order, approved := p.risk.CheckStrategy(priced, st, p.nextOrder, nowMs)
		if !approved {
			continue
		}

		sink.OnOrder(order)
		st.TotalOrders++
		stats.Orders++
		stats.TotalEdge += sig.Edge
		p.risk.OnOrderSent(sig.Strategy, nowMs)
	}
}

// splitPassive partitions a batch into active and passive signals. Passive
// signals (resting limit orders like strike_misalign and lp_extreme) are
// exempt from house-side filtering and deconfliction — they may sit on
// either side regardless of what the active signals agree on.
func splitPassive(signals []types.Signal) (active, passive []types.Signal) {
	for _, s := range signals {
		if s.IsPassive {
			passive = append(passive, s)
		} else {
			active = append(active, s)
		}
	}
	return active, passive
}

// applyHouseSideFilter drops active signals opposite a high-confidence
// signal's side, if any single signal in the batch clears
// houseSideConfidence. The house side is whichever such signal has the
// highest confidence. Callers only pass active signals; passive ones never
// go through this filter.
func applyHouseSideFilter(signals []types.Signal) []types.Signal {
	var houseSide types.Side
	var houseConfidence float64
	locked := false
	for _, s := range signals {
		if s.Confidence >= houseSideConfidence && s.Confidence > houseConfidence {
			houseSide = s.Side
			houseConfidence = s.Confidence
			locked = true
		}
	}
	if !locked {
		return signals
	}
	return filterSide(signals, houseSide)
}

func filterSide(signals []types.Signal, side types.Side) []types.Signal {
	out := make([]types.Signal, 0, len(signals))
	for _, s := range signals {
		if s.Side == side {
			out = append(out, s)
		}
	}
	return out
}

// deconflict sums edge*confidence per side across active signals and
// returns whichever side has the larger positive sum. Returns false if both
// sides sum to zero or less (nothing worth acting on).
func deconflict(signals []types.Signal) (types.Side, bool) {
	var upScore, downScore float64
	for _, s := range signals {
		score := s.Edge * s.Confidence
		if s.Side == types.Up {
			upScore += score
		} else {
			downScore += score
		}
	}
	if upScore <= 0 && downScore <= 0 {
		return types.Up, false
	}
	if upScore >= downScore {
		return types.Up, true
	}
	return types.Down, true
}

// applySlippage adds the configured penalty and caps the result at 0.99 —
// a price can never be pushed to or past certainty by slippage alone.
func applySlippage(price, slippageCents float64) float64 {
	if slippageCents == 0 {
		return price
	}
	adjusted := price + slippageCents
	if adjusted > 0.99 {
		return 0.99
	}
	return adjusted
}
