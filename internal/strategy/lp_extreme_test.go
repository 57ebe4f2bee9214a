package strategy

import (
	"testing"

	"github.com/0xtitan6/btcud-mm/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestLPExtremeNoneWhenZBelowThreshold(t *testing.T) {
	ms := makeState(95_000, 95_050, 0.002, 200, 0.48, 0.50, 0.48, 0.50)
	injectBook(ms, true, []types.BookLevel{bl(0.48, 100)}, []types.BookLevel{bl(0.50, 100)})
	injectBook(ms, false, []types.BookLevel{bl(0.48, 100)}, []types.BookLevel{bl(0.50, 100)})
	_, ok := LPExtreme{}.Evaluate(ms, testNowMs)
	assert.False(t, ok)
}

func TestLPExtremeNoneWhenTauBelowMinimum(t *testing.T) {
	ms := makeState(90_000, 97_000, 0.0015, 30, 0.05, 0.10, 0.85, 0.90)
	_, ok := LPExtreme{}.Evaluate(ms, testNowMs)
	assert.False(t, ok)
}

func TestLPExtremeNoneWhenAskAboveCeiling(t *testing.T) {
	ms := makeState(90_000, 97_000, 0.0015, 200, 0.60, 0.65, 0.35, 0.40)
	_, ok := LPExtreme{}.Evaluate(ms, testNowMs)
	assert.False(t, ok)
}

func TestLPExtremeSignalsPassiveOnLongShot(t *testing.T) {
	ms := makeState(90_000, 97_000, 0.0015, 200, 0.85, 0.90, 0.05, 0.10)
	injectBook(ms, false, []types.BookLevel{bl(0.05, 50)}, []types.BookLevel{bl(0.10, 300)})
	sig, ok := LPExtreme{}.Evaluate(ms, testNowMs)
	if ok {
		assert.Equal(t, types.Down, sig.Side)
		assert.True(t, sig.IsPassive)
		assert.Equal(t, "lp_extreme", sig.Strategy)
	}
}

func TestLPExtremeDropsDustSize(t *testing.T) {
	ms := makeState(90_000, 90_300, 0.0015, 200, 0.20, 0.24, 0.76, 0.80)
	injectBook(ms, true, []types.BookLevel{bl(0.20, 50)}, []types.BookLevel{bl(0.24, 300)})
	_, ok := LPExtreme{}.Evaluate(ms, testNowMs)
	_ = ok
}
