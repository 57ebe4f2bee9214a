package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/0xtitan6/btcud-mm/internal/mathkernel"
	"github.com/0xtitan6/btcud-mm/internal/pipeline"
	"github.com/0xtitan6/btcud-mm/internal/risk"
	"github.com/0xtitan6/btcud-mm/internal/state"
	"github.com/0xtitan6/btcud-mm/internal/strategy"
	"github.com/0xtitan6/btcud-mm/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopSink struct{}

func (noopSink) OnSignal(types.Signal) {}
func (noopSink) OnOrder(types.Order)   {}

func newTestRunner() (*Runner, *state.MarketState) {
	info := types.MarketInfo{Slug: "t", StartMs: 0, EndMs: 300_000, Strike: 95_000}
	ref := state.NewReferenceState(0.94, 3, 0.3, 30_000, 60_000)
	ms := state.NewMarketState(info, ref, mathkernel.OracleBasis{})
	riskMgr := risk.NewStrategyRiskManager(risk.StrategyLimits{
		CooldownMs: 0, MaxOrdersPerMarket: 100, MaxPositionUSD: 10_000, MaxSizeFrac: 1.0,
	}, 10_000, nil)
	proc := pipeline.NewProcessor(pipeline.LiveConfig(), riskMgr)
	strategies := []strategy.Strategy{strategy.LatencyArb{}, strategy.CertaintyCapture{}}
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
	r := NewRunner(ms, proc, riskMgr, strategies, logger)
	return r, ms
}

func TestRunnerGatesOnWarmup(t *testing.T) {
	r, ms := newTestRunner()
	events := make(chan types.InboundEvent, 1)
	events <- types.InboundEvent{Kind: types.EventReferenceTrade, ReferenceTrade: types.ReferenceTrade{Price: 95_000, ExchangeTsMs: 1000}}
	close(events)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	r.Run(ctx, events, noopSink{})
	assert.Equal(t, 95_000.0, ms.Reference.Price)
	assert.EqualValues(t, 0, ms.TotalSignals)
}

func TestRunnerPartitionsStrategiesByTrigger(t *testing.T) {
	r, _ := newTestRunner()
	assert.NotEmpty(t, r.referenceTriggered)
	assert.NotEmpty(t, r.venueTriggered)
}

func TestRunnerSettleComputesPnl(t *testing.T) {
	r, ms := newTestRunner()
	r.fills = []types.Fill{{OrderID: 1, Side: types.Up, Price: 0.4, Size: 10}}
	pnl := r.Settle(types.Up)
	require.Equal(t, pnl, ms.GrossPnL)
	assert.InDelta(t, 10*(1-0.4), pnl, 1e-9)
}

func TestNewRunnerPublishesInitialSnapshot(t *testing.T) {
	r, _ := newTestRunner()
	snap := r.Snapshot()
	assert.Equal(t, "t", snap.Slug)
	assert.Equal(t, 95_000.0, snap.Strike)
}

func TestHandleEventRefreshesSnapshot(t *testing.T) {
	r, _ := newTestRunner()
	r.handleEvent(types.InboundEvent{
		Kind:          types.EventReferenceTrade,
		ReferenceTrade: types.ReferenceTrade{Price: 95_500, ExchangeTsMs: 2000},
	}, noopSink{})

	snap := r.Snapshot()
	assert.Equal(t, 95_500.0, snap.RefPrice)
}
