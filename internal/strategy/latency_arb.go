package strategy

import (
	"github.com/0xtitan6/btcud-mm/internal/mathkernel"
	"github.com/0xtitan6/btcud-mm/internal/state"
	"github.com/0xtitan6/btcud-mm/pkg/types"
)

// LatencyArb exploits the lag between the reference trade feed and the
// venue's binary quotes: when the reference price moves, the model fair
// probability moves with it, but the venue's resting quotes take a moment
// to catch up. It evaluates on every reference trade — the signal IS the
// reference-feed move.
type LatencyArb struct{}

const (
	latencyArbMinEdge       = 0.03
	latencyArbMinConfidence = 0.3
	latencyArbMinAskDepth   = 50.0
	latencyArbMaxWalkLevels = 3
	latencyArbSizeCap       = 0.02
)

func (LatencyArb) Name() string              { return "latency_arb" }
func (LatencyArb) Trigger() types.EvalTrigger { return types.TriggerReferenceTrade }

func (LatencyArb) Evaluate(st *state.MarketState, nowMs int64) (types.Signal, bool) {
	sigma := st.SigmaReal()
	if sigma <= 0 {
		return types.Signal{}, false
	}

	s := st.SEst()
	k := st.Info.Strike
	tau := st.TauEffS(nowMs)
	if tau < 1.0 || s <= 0 || k <= 0 {
		return types.Signal{}, false
	}

	fair := mathkernel.PFair(s, k, sigma, tau)

	edgeBuyUp := fair - st.UpAsk
	edgeBuyDown := (1.0 - fair) - st.DownAsk

	bestEdge := 0.0
	bestSide := types.Up
	bestFair := fair

	if st.UpAsk > 0 && st.UpAsk < 1.0 && edgeBuyUp > bestEdge {
		bestEdge = edgeBuyUp
		bestSide = types.Up
		bestFair = fair
	}
	if st.DownAsk > 0 && st.DownAsk < 1.0 && edgeBuyDown > bestEdge {
		bestEdge = edgeBuyDown
		bestSide = types.Down
		bestFair = 1.0 - fair
	}

	if bestEdge < latencyArbMinEdge {
		return types.Signal{}, false
	}

	book := &st.DownBook
	if bestSide == types.Up {
		book = &st.UpBook
	}

	askLiquidity := book.AskDepth(latencyArbMaxWalkLevels)
	if askLiquidity < latencyArbMinAskDepth {
		return types.Signal{}, false
	}

	effectivePrice, _, ok := book.VwapFillAsk(askLiquidity)
	if !ok {
		return types.Signal{}, false
	}

	effectiveEdge := bestFair - effectivePrice
	if effectiveEdge < latencyArbMinEdge {
		return types.Signal{}, false
	}

	confidence := clamp(effectiveEdge/0.10, latencyArbMinConfidence, 1.0)

	sizeFrac := Kelly(effectiveEdge, effectivePrice)
	if sizeFrac > latencyArbSizeCap {
		sizeFrac = latencyArbSizeCap
	}

	return types.Signal{
		Strategy:    "latency_arb",
		Side:        bestSide,
		Edge:        effectiveEdge,
		FairValue:   bestFair,
		MarketPrice: effectivePrice,
		Confidence:  confidence,
		SizeFrac:    sizeFrac,
		IsPassive:   false,
	}, true
}
