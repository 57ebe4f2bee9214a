package pipeline

import (
	"testing"

	"github.com/0xtitan6/btcud-mm/internal/mathkernel"
	"github.com/0xtitan6/btcud-mm/internal/risk"
	"github.com/0xtitan6/btcud-mm/internal/state"
	"github.com/0xtitan6/btcud-mm/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySink struct {
	signals []types.Signal
	orders  []types.Order
}

func (m *memorySink) OnSignal(sig types.Signal) { m.signals = append(m.signals, sig) }
func (m *memorySink) OnOrder(o types.Order)     { m.orders = append(m.orders, o) }

func newTestState() *state.MarketState {
	info := types.MarketInfo{Slug: "t", StartMs: 0, EndMs: 300_000, Strike: 95_000}
	ref := state.NewReferenceState(0.94, 5, 0.3, 30_000, 60_000)
	return state.NewMarketState(info, ref, mathkernel.OracleBasis{})
}

func newTestRisk() *risk.StrategyRiskManager {
	return risk.NewStrategyRiskManager(risk.StrategyLimits{
		CooldownMs: 0, MaxOrdersPerMarket: 10, MaxPositionUSD: 10_000, MaxSizeFrac: 1.0,
	}, 10_000, nil)
}

func TestProcessSignalsEmptyIsNoop(t *testing.T) {
	p := NewProcessor(LiveConfig(), newTestRisk())
	sink := &memorySink{}
	p.ProcessSignals(nil, newTestState(), 0, sink)
	assert.Empty(t, sink.signals)
	assert.Empty(t, sink.orders)
}

func TestProcessSignalsDispatchesWinningSide(t *testing.T) {
	p := NewProcessor(LiveConfig(), newTestRisk())
	sink := &memorySink{}
	signals := []types.Signal{
		{Strategy: "a", Side: types.Up, Edge: 0.05, Confidence: 0.5, MarketPrice: 0.5, SizeFrac: 0.01},
		{Strategy: "b", Side: types.Down, Edge: 0.01, Confidence: 0.2, MarketPrice: 0.5, SizeFrac: 0.01},
	}
	p.ProcessSignals(signals, newTestState(), 1000, sink)
	require.Len(t, sink.orders, 1)
	assert.Equal(t, types.Up, sink.orders[0].Side)
}

func TestProcessSignalsHouseSideFiltersOpposite(t *testing.T) {
	p := NewProcessor(LiveConfig(), newTestRisk())
	sink := &memorySink{}
	signals := []types.Signal{
		{Strategy: "a", Side: types.Down, Edge: 0.10, Confidence: 0.8, MarketPrice: 0.3, SizeFrac: 0.01},
		{Strategy: "b", Side: types.Up, Edge: 0.20, Confidence: 0.4, MarketPrice: 0.5, SizeFrac: 0.01},
	}
	p.ProcessSignals(signals, newTestState(), 1000, sink)
	for _, o := range sink.orders {
		assert.Equal(t, types.Down, o.Side)
	}
}

func TestProcessSignalsAppliesBacktestSlippage(t *testing.T) {
	p := NewProcessor(BacktestConfig(), newTestRisk())
	sink := &memorySink{}
	signals := []types.Signal{
		{Strategy: "a", Side: types.Up, Edge: 0.05, Confidence: 0.5, MarketPrice: 0.5, SizeFrac: 0.01},
	}
	p.ProcessSignals(signals, newTestState(), 1000, sink)
	require.Len(t, sink.orders, 1)
	assert.InDelta(t, 0.51, sink.orders[0].Price, 1e-9)
}

func TestProcessSignalsLimitsDirectionFlips(t *testing.T) {
	p := NewProcessor(LiveConfig(), newTestRisk())
	sink := &memorySink{}
	st := newTestState()

	up := []types.Signal{{Strategy: "a", Side: types.Up, Edge: 0.05, Confidence: 0.5, MarketPrice: 0.5, SizeFrac: 0.01}}
	down := []types.Signal{{Strategy: "a", Side: types.Down, Edge: 0.05, Confidence: 0.5, MarketPrice: 0.5, SizeFrac: 0.01}}

	p.ProcessSignals(up, st, 1000, sink)   // no prior side: allowed
	p.ProcessSignals(down, st, 2000, sink) // first flip: allowed
	countAfterFirstFlip := len(sink.orders)
	p.ProcessSignals(up, st, 3000, sink) // second flip: blocked
	assert.Equal(t, countAfterFirstFlip, len(sink.orders), "second consecutive flip should be blocked")

	p.ProcessSignals(down, st, 4000, sink) // matches last accepted side: allowed again
	assert.Greater(t, len(sink.orders), countAfterFirstFlip)
}

func TestDeconflictPicksLargerScore(t *testing.T) {
	side, ok := deconflict([]types.Signal{
		{Side: types.Up, Edge: 0.01, Confidence: 0.5},
		{Side: types.Down, Edge: 0.10, Confidence: 0.9},
	})
	require.True(t, ok)
	assert.Equal(t, types.Down, side)
}

func TestDeconflictRejectsAllZero(t *testing.T) {
	_, ok := deconflict([]types.Signal{
		{Side: types.Up, Edge: 0, Confidence: 0.5},
	})
	assert.False(t, ok)
}
