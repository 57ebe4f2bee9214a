package state

import "github.com/0xtitan6/btcud-mm/internal/mathkernel"

// ReferenceState carries everything derived from the external spot-price
// reference feed: the latest trade, the EWMA realized-vol estimator, the
// rolling VWAP, and the tick-direction regime classifier. It persists
// across markets on the same asset — a fresh MarketState is built per
// market, but ReferenceState survives so the volatility estimator does not
// cold-start at every market boundary.
type ReferenceState struct {
	Price          float64
	TsMs           int64
	EwmaVol        *mathkernel.SampledEwmaVol
	VwapTracker    *mathkernel.VwapTracker
	Regime         *mathkernel.RegimeClassifier
	SigmaFloor     float64
	sigmaRealCache float64
}

// NewReferenceState constructs the reference sub-state with the EWMA decay
// lambda, minimum sample count, annualized volatility floor, VWAP window,
// and regime window used across the lifetime of the asset being traded.
func NewReferenceState(lambda float64, minSamples uint32, sigmaFloorAnnual float64, vwapWindowMs, regimeWindowMs int64) *ReferenceState {
	return &ReferenceState{
		EwmaVol:     mathkernel.NewSampledEwmaVol(lambda, minSamples),
		VwapTracker: mathkernel.NewVwapTracker(vwapWindowMs),
		Regime:      mathkernel.NewRegimeClassifier(regimeWindowMs),
		SigmaFloor:  mathkernel.SigmaFloorPerSecond(sigmaFloorAnnual),
	}
}

// OnTrade folds in a new reference trade: updates the last price/timestamp,
// the EWMA volatility sampler, the VWAP tracker, and the tick-direction
// regime classifier (up-tick iff price did not fall from the prior trade).
func (r *ReferenceState) OnTrade(price float64, tsMs int64, qty float64) {
	isUp := price >= r.Price
	if r.Price > 0 {
		r.EwmaVol.Update(price, tsMs)
		r.Regime.Update(tsMs, isUp)
	} else {
		r.EwmaVol.Update(price, tsMs)
	}
	r.VwapTracker.Update(tsMs, price, qty)
	r.sigmaRealCache = mathkernel.SigmaReal(r.EwmaVol, r.SigmaFloor)
	r.Price = price
	r.TsMs = tsMs
}

// SigmaReal is the realized per-second volatility to feed the pricer: the
// EWMA estimate once warmed up, floored against SigmaFloor.
func (r *ReferenceState) SigmaReal() float64 {
	return r.sigmaRealCache
}
