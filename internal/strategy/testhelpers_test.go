package strategy

import (
	"github.com/0xtitan6/btcud-mm/internal/mathkernel"
	"github.com/0xtitan6/btcud-mm/internal/state"
	"github.com/0xtitan6/btcud-mm/pkg/types"
)

const testNowMs int64 = 1_700_000_100_000

func makeState(strike, refPrice, sigma, tauS, upBid, upAsk, downBid, downAsk float64) *state.MarketState {
	info := types.MarketInfo{
		Slug:     "btc-updown-5m-test",
		StartMs:  testNowMs - 10_000,
		EndMs:    testNowMs + int64(tauS*1000),
		Strike:   strike,
		TickSize: 0.01,
	}
	ref := state.NewReferenceState(0.94, 5, 0.0, 30_000, 60_000)
	ms := state.NewMarketState(info, ref, mathkernel.OracleBasis{})
	seedSigma(ms.Reference, refPrice, sigma)
	ms.UpBid, ms.UpAsk, ms.DownBid, ms.DownAsk = upBid, upAsk, downBid, downAsk
	return ms
}

// seedSigma feeds synthetic samples directly into the EWMA estimator so
// SigmaReal() reports approximately the requested per-second vol, without
// needing a setter on the production type. It updates EwmaVol directly
// (bypassing OnTrade) so it does not also pollute the regime classifier or
// VWAP tracker with 400 synthetic oscillations, then makes a single OnTrade
// call to refresh the cached SigmaReal and set Price/TsMs.
func seedSigma(r *state.ReferenceState, price, sigma float64) {
	ts := int64(0)
	p := price
	up := true
	for i := 0; i < 400; i++ {
		ts += 1000
		if up {
			p *= 1 + sigma
		} else {
			p /= 1 + sigma
		}
		up = !up
		r.EwmaVol.Update(p, ts)
	}
	r.OnTrade(price, testNowMs, 0)
}

func injectBook(ms *state.MarketState, up bool, bids, asks []types.BookLevel) {
	ms.OnVenueBook(types.VenueBook{IsUp: up, Bids: bids, Asks: asks})
}

func injectVwap(ms *state.MarketState, price, qty float64) {
	ms.Reference.VwapTracker.Update(testNowMs, price, qty)
}

func forceRegimeTrend(ms *state.MarketState) {
	ts := int64(0)
	for i := 0; i < 20; i++ {
		ts += 100
		ms.Reference.Regime.Update(ts, true)
	}
}

func forceRegimeRange(ms *state.MarketState) {
	ts := int64(0)
	up := true
	for i := 0; i < 20; i++ {
		ts += 100
		ms.Reference.Regime.Update(ts, up)
		up = !up
	}
}

func bl(price, size float64) types.BookLevel { return types.BookLevel{Price: price, Size: size} }
