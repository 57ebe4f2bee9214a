package strategy

import (
	"math"

	"github.com/0xtitan6/btcud-mm/internal/mathkernel"
	"github.com/0xtitan6/btcud-mm/internal/state"
	"github.com/0xtitan6/btcud-mm/pkg/types"
)

// CertaintyCapture buys the side the z-score already favors heavily: when
// |z| is large, fair probability is near 0 or 1, and cheap venue quotes on
// the favored side are an easy edge. It evaluates on every venue quote
// update since the venue's own price is the signal.
type CertaintyCapture struct{}

const (
	certaintyCaptureZMin    = 1.5
	certaintyCaptureMinEdge = 0.02
)

func (CertaintyCapture) Name() string              { return "certainty_capture" }
func (CertaintyCapture) Trigger() types.EvalTrigger { return types.TriggerVenueQuote }

func (CertaintyCapture) Evaluate(st *state.MarketState, nowMs int64) (types.Signal, bool) {
	sigma := st.SigmaReal()
	s := st.SEst()
	k := st.Info.Strike
	tau := st.TauEffS(nowMs)
	if sigma <= 0 || s <= 0 || k <= 0 || tau < 30.0 {
		return types.Signal{}, false
	}

	z := mathkernel.ZScore(s, k, sigma, tau)
	if math.Abs(z) < certaintyCaptureZMin {
		return types.Signal{}, false
	}

	fair := mathkernel.PFair(s, k, sigma, tau)

	var side types.Side
	var fairSide, ask float64
	if z > 0 {
		side = types.Up
		fairSide = fair
		ask = st.UpAsk
	} else {
		side = types.Down
		fairSide = 1.0 - fair
		ask = st.DownAsk
	}

	if ask <= 0 || ask >= 1.0 {
		return types.Signal{}, false
	}

	edge := fairSide - ask
	if edge < certaintyCaptureMinEdge {
		return types.Signal{}, false
	}

	confidence := clamp(math.Abs(z)/3.0, 0.375, 0.99)
	sizeFrac := Kelly(edge, ask)

	return types.Signal{
		Strategy:    "certainty_capture",
		Side:        side,
		Edge:        edge,
		FairValue:   fairSide,
		MarketPrice: ask,
		Confidence:  confidence,
		SizeFrac:    sizeFrac,
		IsPassive:   false,
	}, true
}
