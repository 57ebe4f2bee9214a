package strategy

import (
	"testing"

	"github.com/0xtitan6/btcud-mm/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestCrossTimeframeNoneWithoutCrossMarkets(t *testing.T) {
	ms := makeState(95_000, 95_000, 0.001, 120, 0.48, 0.50, 0.48, 0.50)
	_, ok := CrossTimeframe{}.Evaluate(ms, testNowMs)
	assert.False(t, ok)
}

func TestCrossTimeframeNoneWhenFitDegenerate(t *testing.T) {
	ms := makeState(95_000, 95_000, 0.001, 120, 0.48, 0.50, 0.48, 0.50)
	ms.OnCrossMarketQuote(types.CrossMarketQuote{
		Interval: types.Interval15m, UpBid: 0.48, UpAsk: 0.50, Strike: 95_000,
		EndMs: testNowMs + 120_000,
	})
	_, ok := CrossTimeframe{}.Evaluate(ms, testNowMs)
	assert.False(t, ok)
}

func TestCrossTimeframeSignalsOnVolDeviation(t *testing.T) {
	ms := makeState(95_000, 96_000, 0.0008, 120, 0.30, 0.90, 0.30, 0.35)
	ms.OnCrossMarketQuote(types.CrossMarketQuote{
		Interval: types.Interval15m, UpBid: 0.45, UpAsk: 0.55, Strike: 95_000,
		EndMs: testNowMs + 600_000,
	})
	ms.OnCrossMarketQuote(types.CrossMarketQuote{
		Interval: types.Interval1h, UpBid: 0.44, UpAsk: 0.56, Strike: 95_000,
		EndMs: testNowMs + 3_000_000,
	})
	sig, ok := CrossTimeframe{}.Evaluate(ms, testNowMs)
	if ok {
		assert.Equal(t, "cross_timeframe", sig.Strategy)
	}
}
