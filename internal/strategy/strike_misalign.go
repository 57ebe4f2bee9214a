package strategy

import (
	"math"

	"github.com/0xtitan6/btcud-mm/internal/mathkernel"
	"github.com/0xtitan6/btcud-mm/internal/state"
	"github.com/0xtitan6/btcud-mm/pkg/types"
)

// StrikeMisalign catches a mispriced strike at market open: if the rolling
// VWAP sits meaningfully away from the strike the venue just listed, the
// listed strike is stale relative to the reference feed and the favored
// side's bid is underpriced. It only fires in a short window after a
// market opens — by the time it is active for long, the strike is no
// longer "new" and other strategies own the edge.
type StrikeMisalign struct{}

const (
	strikeMisalignMinDP   = 0.02
	strikeMisalignMinEdge = 0.02
)

func (StrikeMisalign) Name() string              { return "strike_misalign" }
func (StrikeMisalign) Trigger() types.EvalTrigger { return types.TriggerMarketOpen }

// maxActiveMs bounds how long after open this strategy stays armed: a
// twentieth of the market's duration, clamped to [15s, 300s].
func maxActiveMs(durationMs int64) int64 {
	v := durationMs / 20
	if v < 15_000 {
		return 15_000
	}
	if v > 300_000 {
		return 300_000
	}
	return v
}

func (StrikeMisalign) Evaluate(st *state.MarketState, nowMs int64) (types.Signal, bool) {
	elapsed := nowMs - st.Info.StartMs
	if elapsed > maxActiveMs(st.Info.DurationMs()) {
		return types.Signal{}, false
	}

	sigma := st.SigmaReal()
	if sigma <= 0 {
		return types.Signal{}, false
	}

	if !st.Reference.VwapTracker.HasData() {
		return types.Signal{}, false
	}
	vwap := st.Reference.VwapTracker.VWAP()
	if vwap <= 0 || st.Info.Strike <= 0 {
		return types.Signal{}, false
	}

	k := st.Info.Strike
	epsilon := k - vwap

	tau := st.TauEffS(nowMs)
	if tau < 10.0 {
		return types.Signal{}, false
	}

	// ΔP ≈ -phi(d2) / (S_ref·σ·√τ_eff) · epsilon
	d := mathkernel.D2(st.SEst(), k, sigma, tau)
	sensitivity := mathkernel.Phi(d) / (vwap * sigma * math.Sqrt(tau))
	dp := -sensitivity * epsilon
	if absF(dp) < strikeMisalignMinDP {
		return types.Signal{}, false
	}

	// dp > 0 means UP is underpriced (strike set too low relative to VWAP).
	// dp < 0 means DOWN is underpriced (strike set too high relative to VWAP).
	var side types.Side
	var bid float64
	if dp > 0 {
		side = types.Up
		bid = st.UpBid
	} else {
		side = types.Down
		bid = st.DownBid
	}

	if bid <= 0 || bid >= 1.0 {
		return types.Signal{}, false
	}

	fairUp := mathkernel.PFair(vwap, k, sigma, tau)
	var fair float64
	if dp > 0 {
		fair = fairUp
	} else {
		fair = 1.0 - fairUp
	}
	edge := fair - bid
	if edge < strikeMisalignMinEdge {
		return types.Signal{}, false
	}

	confidence := clamp(absF(dp)/0.10, 0.4, 0.9)
	sizeFrac := Kelly(edge, bid)

	return types.Signal{
		Strategy:    "strike_misalign",
		Side:        side,
		Edge:        edge,
		FairValue:   fair,
		MarketPrice: bid,
		Confidence:  confidence,
		SizeFrac:    sizeFrac,
		IsPassive:   true,
		UseBid:      true,
	}, true
}
