package strategy

import (
	"math"

	"github.com/0xtitan6/btcud-mm/internal/mathkernel"
	"github.com/0xtitan6/btcud-mm/internal/state"
	"github.com/0xtitan6/btcud-mm/pkg/types"
)

// LPExtreme posts passive liquidity on the long-shot side of a near-certain
// market: once the z-score says one side is almost sure to lose, its ask is
// usually still above the true tail probability, and providing liquidity
// there (rather than crossing the spread) captures the edge with adverse
// selection sized out of the Kelly fraction.
type LPExtreme struct{}

const (
	lpExtremeZMin               = 1.5
	lpExtremeMinEdge            = 0.02
	lpExtremeMaxSpread          = 0.10
	lpExtremeImbalanceLevels    = 5
	lpExtremeImbalanceThreshold = 0.30
	lpExtremeQueueDepthMax      = 500.0
	lpExtremeMaxAsk             = 0.25
	lpExtremeSizeCap            = 0.02
	lpExtremeMinSize            = 0.001
)

func (LPExtreme) Name() string              { return "lp_extreme" }
func (LPExtreme) Trigger() types.EvalTrigger { return types.TriggerBoth }

func (LPExtreme) Evaluate(st *state.MarketState, nowMs int64) (types.Signal, bool) {
	sigma := st.SigmaReal()
	s := st.SEst()
	k := st.Info.Strike
	tau := st.TauEffS(nowMs)
	if sigma <= 0 || s <= 0 || k <= 0 || tau < 1.0 {
		return types.Signal{}, false
	}

	durationS := float64(st.Info.DurationMs()) / 1000.0
	minTau := math.Max(durationS*0.20, 60.0)
	if tau < minTau {
		return types.Signal{}, false
	}

	if st.Reference.Regime.Classify() == mathkernel.Trend {
		return types.Signal{}, false
	}

	z := mathkernel.ZScore(s, k, sigma, tau)
	if math.Abs(z) < lpExtremeZMin {
		return types.Signal{}, false
	}

	fair := mathkernel.PFair(s, k, sigma, tau)

	// The long shot is the side z-score disfavors.
	var longShot types.Side
	var book *state.OrderBookLadder
	var trueProb, ask float64
	if z > 0 {
		longShot = types.Down
		book = &st.DownBook
		trueProb = 1.0 - fair
		ask = st.DownAsk
	} else {
		longShot = types.Up
		book = &st.UpBook
		trueProb = fair
		ask = st.UpAsk
	}

	if ask <= 0 || ask >= lpExtremeMaxAsk {
		return types.Signal{}, false
	}

	if book.Spread() > lpExtremeMaxSpread {
		return types.Signal{}, false
	}

	imbalance := book.DepthImbalance(lpExtremeImbalanceLevels)
	adverseSelection := imbalance < lpExtremeImbalanceThreshold

	minEdge := lpExtremeMinEdge
	if adverseSelection {
		minEdge *= 2.0
	}

	edge := trueProb - ask
	if edge < minEdge {
		return types.Signal{}, false
	}

	fStar := trueProb - (1.0-trueProb)*(1.0-ask)/ask
	if fStar < 0 {
		fStar = 0
	}

	queueScale := clamp(1.0-book.BidDepth(3)/lpExtremeQueueDepthMax, 0.2, 1.0)
	sizeFrac := clamp(fStar*0.5*queueScale, 0, lpExtremeSizeCap)
	if sizeFrac < lpExtremeMinSize {
		return types.Signal{}, false
	}

	confidence := clamp(math.Abs(z)/4.0, 0.3, 0.8)
	if adverseSelection {
		confidence = clamp(math.Abs(z)/4.0, 0.2, 0.6)
	}

	return types.Signal{
		Strategy:    "lp_extreme",
		Side:        longShot,
		Edge:        edge,
		FairValue:   trueProb,
		MarketPrice: ask,
		Confidence:  confidence,
		SizeFrac:    sizeFrac,
		IsPassive:   true,
	}, true
}
