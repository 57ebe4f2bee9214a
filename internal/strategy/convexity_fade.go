package strategy

import (
	"github.com/0xtitan6/btcud-mm/internal/mathkernel"
	"github.com/0xtitan6/btcud-mm/internal/state"
	"github.com/0xtitan6/btcud-mm/pkg/types"
)

// ConvexityFade fades near-strike oscillation while the reference price is
// still hugging the strike and the tick regime is not trending: it buys
// whichever side's ask sits furthest below its model fair value (by more
// than convexityFadeMinEdge), provided that side's book is tight and not
// dominated by asks.
type ConvexityFade struct{}

const (
	convexityFadeMaxDistFrac    = 0.003
	convexityFadeMinTauS        = 30.0
	convexityFadeMinEdge        = 0.02
	convexityFadeMaxSpread      = 0.08
	convexityFadeImbalanceSkip  = 0.25
	convexityFadeImbalanceLevel = 5
	convexityFadeConfidence     = 0.4
	convexityFadeSizeCap        = 0.005
)

func (ConvexityFade) Name() string              { return "convexity_fade" }
func (ConvexityFade) Trigger() types.EvalTrigger { return types.TriggerVenueQuote }

func (ConvexityFade) Evaluate(st *state.MarketState, nowMs int64) (types.Signal, bool) {
	if st.Reference.Regime.Classify() == mathkernel.Trend {
		return types.Signal{}, false
	}

	tau := st.TauEffS(nowMs)
	if tau < convexityFadeMinTauS {
		return types.Signal{}, false
	}

	if absF(st.DistanceFrac()) > convexityFadeMaxDistFrac {
		return types.Signal{}, false
	}

	sigma := st.SigmaReal()
	s := st.SEst()
	k := st.Info.Strike
	if sigma <= 0 || s <= 0 || k <= 0 {
		return types.Signal{}, false
	}

	fair := mathkernel.PFair(s, k, sigma, tau)

	edgeUp := fair - st.UpAsk
	edgeDown := (1.0 - fair) - st.DownAsk

	var side types.Side
	var book *state.OrderBookLadder
	var fairSide, ask, edge float64
	if st.UpAsk > 0 && st.UpAsk < 1.0 && edgeUp > edgeDown && edgeUp > convexityFadeMinEdge {
		side = types.Up
		book = &st.UpBook
		fairSide = fair
		ask = st.UpAsk
		edge = edgeUp
	} else if st.DownAsk > 0 && st.DownAsk < 1.0 && edgeDown > convexityFadeMinEdge {
		side = types.Down
		book = &st.DownBook
		fairSide = 1.0 - fair
		ask = st.DownAsk
		edge = edgeDown
	} else {
		return types.Signal{}, false
	}

	if book.Spread() > convexityFadeMaxSpread {
		return types.Signal{}, false
	}

	if book.DepthImbalance(convexityFadeImbalanceLevel) < convexityFadeImbalanceSkip {
		return types.Signal{}, false
	}

	sizeFrac := Kelly(edge, ask)
	if sizeFrac > convexityFadeSizeCap {
		sizeFrac = convexityFadeSizeCap
	}

	return types.Signal{
		Strategy:    "convexity_fade",
		Side:        side,
		Edge:        edge,
		FairValue:   fairSide,
		MarketPrice: ask,
		Confidence:  convexityFadeConfidence,
		SizeFrac:    sizeFrac,
		IsPassive:   false,
	}, true
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
