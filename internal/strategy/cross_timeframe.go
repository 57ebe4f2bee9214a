package strategy

import (
	"math"

	"github.com/0xtitan6/btcud-mm/internal/mathkernel"
	"github.com/0xtitan6/btcud-mm/internal/state"
	"github.com/0xtitan6/btcud-mm/pkg/types"
)

// CrossTimeframe fits a power-law implied-vol term structure
// ln(sigma) = ln(a) + b*ln(tau) across every other interval currently
// quoted on the same underlying, and compares this market's own implied
// vol against the curve's prediction at its own tau. A large deviation
// means this market's quotes are mispriced relative to the rest of the
// term structure, not relative to the reference feed directly.
type CrossTimeframe struct{}

const (
	crossTimeframeMinVolDeviation = 0.05
	crossTimeframeMinEdge         = 0.01
	crossTimeframeDepthLevels     = 3
)

func (CrossTimeframe) Name() string              { return "cross_timeframe" }
func (CrossTimeframe) Trigger() types.EvalTrigger { return types.TriggerVenueQuote }

type logVolPoint struct {
	lnTau   float64
	lnSigma float64
	weight  float64
}

// fitPowerLaw performs a weighted least-squares fit of lnSigma on lnTau and
// returns (lnA, b). Falls back to (0, 0) if fewer than 2 points or the
// weighted variance of lnTau is degenerate.
func fitPowerLaw(points []logVolPoint) (float64, float64, bool) {
	if len(points) < 2 {
		return 0, 0, false
	}
	var sumW, sumWX, sumWY, sumWXY, sumWXX float64
	for _, p := range points {
		sumW += p.weight
		sumWX += p.weight * p.lnTau
		sumWY += p.weight * p.lnSigma
		sumWXY += p.weight * p.lnTau * p.lnSigma
		sumWXX += p.weight * p.lnTau * p.lnTau
	}
	if sumW <= 0 {
		return 0, 0, false
	}
	meanX := sumWX / sumW
	meanY := sumWY / sumW
	varX := sumWXX/sumW - meanX*meanX
	if math.Abs(varX) < 1e-12 {
		return 0, 0, false
	}
	covXY := sumWXY/sumW - meanX*meanY
	b := covXY / varX
	lnA := meanY - b*meanX
	return lnA, b, true
}

func (CrossTimeframe) Evaluate(st *state.MarketState, nowMs int64) (types.Signal, bool) {
	if len(st.CrossMarkets) == 0 {
		return types.Signal{}, false
	}

	sigma := st.SigmaReal()
	if sigma <= 0 {
		return types.Signal{}, false
	}

	s := st.SEst()
	k := st.Info.Strike
	ownTau := st.TauEffS(nowMs)
	if ownTau < 30.0 || s <= 0 || k <= 0 {
		return types.Signal{}, false
	}

	ownPrice := st.UpBook.Microprice()
	if ownPrice <= 0 {
		if st.UpBid <= 0 || st.UpAsk <= 0 {
			return types.Signal{}, false
		}
		ownPrice = (st.UpBid + st.UpAsk) / 2.0
	}
	ownIV, ok := mathkernel.ImpliedVol(ownPrice, s, k, ownTau, 15)
	if !ok || ownIV <= 0 {
		return types.Signal{}, false
	}

	// Own market's point is weighted by its book depth: thicker books make a
	// more reliable IV read, so they pull the fit harder.
	ownWeight := math.Min(st.UpBook.BidDepth(crossTimeframeDepthLevels), st.UpBook.AskDepth(crossTimeframeDepthLevels))
	if ownWeight < 1.0 {
		ownWeight = 1.0
	}
	points := []logVolPoint{{lnTau: math.Log(ownTau), lnSigma: math.Log(ownIV), weight: ownWeight}}

	for _, cm := range st.CrossMarkets {
		tauMs := cm.EndMs - nowMs
		if tauMs < 1 {
			tauMs = 1
		}
		tauS := float64(tauMs) / 1000.0
		if tauS < 10.0 || cm.Strike <= 0 {
			continue
		}
		if cm.UpBid <= 0 || cm.UpAsk <= 0 {
			continue
		}
		mid := (cm.UpBid + cm.UpAsk) / 2.0
		iv, ok := mathkernel.ImpliedVol(mid, s, cm.Strike, tauS, 15)
		if !ok || iv <= 0 {
			continue
		}
		points = append(points, logVolPoint{lnTau: math.Log(tauS), lnSigma: math.Log(iv), weight: 1.0})
	}

	if len(points) < 2 {
		return types.Signal{}, false
	}

	lnA, b, ok := fitPowerLaw(points)
	if !ok {
		return types.Signal{}, false
	}

	predictedSigma := math.Exp(lnA + b*math.Log(ownTau))
	if predictedSigma <= 0 {
		return types.Signal{}, false
	}

	deviation := ownIV - predictedSigma
	if math.Abs(deviation) < crossTimeframeMinVolDeviation {
		return types.Signal{}, false
	}

	fair := mathkernel.PFair(s, k, predictedSigma, ownTau)

	// Positive deviation: our implied vol reads too high relative to the
	// curve — sell UP if S > K (UP is the overpriced side), otherwise buy UP.
	// Negative deviation: our implied vol reads too low — buy UP if S > K,
	// otherwise sell UP.
	var side types.Side
	var fairSide, ask float64
	if deviation > 0 {
		if st.Distance() > 0 {
			side, fairSide, ask = types.Down, 1.0-fair, st.DownAsk
		} else {
			side, fairSide, ask = types.Up, fair, st.UpAsk
		}
	} else {
		if st.Distance() > 0 {
			side, fairSide, ask = types.Up, fair, st.UpAsk
		} else {
			side, fairSide, ask = types.Down, 1.0-fair, st.DownAsk
		}
	}
	if ask <= 0 || ask >= 1.0 {
		return types.Signal{}, false
	}

	edge := fairSide - ask
	if edge < crossTimeframeMinEdge {
		return types.Signal{}, false
	}

	confidence := clamp(math.Abs(deviation)/0.15, 0.3, 0.7)
	sizeFrac := Kelly(edge, ask)

	return types.Signal{
		Strategy:    "cross_timeframe",
		Side:        side,
		Edge:        edge,
		FairValue:   fairSide,
		MarketPrice: ask,
		Confidence:  confidence,
		SizeFrac:    sizeFrac,
		IsPassive:   false,
	}, true
}
