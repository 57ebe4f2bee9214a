package api

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xtitan6/btcud-mm/internal/config"
	"github.com/0xtitan6/btcud-mm/internal/engine"
	"github.com/0xtitan6/btcud-mm/internal/risk"
	"github.com/0xtitan6/btcud-mm/pkg/types"
)

type fakeProvider struct {
	markets []engine.MarketSnapshot
	riskMgr *risk.Manager
}

func (f fakeProvider) ActiveMarkets() []engine.MarketSnapshot { return f.markets }
func (f fakeProvider) RiskManager() *risk.Manager             { return f.riskMgr }

func TestBuildSnapshotAggregatesMarketsAndRisk(t *testing.T) {
	riskMgr := risk.NewManager(config.RiskConfig{MaxGlobalExposure: 1000}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go riskMgr.Run(ctx)
	riskMgr.Report(risk.PositionReport{MarketID: "btc-up-down-5m", ExposureUSD: 100, RealizedPnL: 5, Timestamp: time.Now()})
	// Report is processed asynchronously by Run.
	require.Eventually(t, func() bool { return riskMgr.GetRiskSnapshot().GlobalExposure == 100 }, time.Second, 10*time.Millisecond)

	provider := fakeProvider{
		markets: []engine.MarketSnapshot{
			{
				Slug:         "btc-up-down-5m",
				Strike:       95000,
				RefPrice:     95100,
				TotalSignals: 3,
				TotalOrders:  1,
				TotalFilled:  1,
				GrossPnL:     5,
				Strategies: map[string]engine.StrategySnapshot{
					"certainty_capture": {Signals: 3, Orders: 1, Filled: 1, GrossPnL: 5, AvgEdge: 0.04},
				},
			},
		},
		riskMgr: riskMgr,
	}

	snap := BuildSnapshot(provider, config.Config{Asset: "BTC"})

	require.Len(t, snap.Markets, 1)
	assert.Equal(t, "btc-up-down-5m", snap.Markets[0].Slug)
	assert.Equal(t, "BTC", snap.Markets[0].Asset)
	assert.Equal(t, uint32(1), snap.Markets[0].Strategies["certainty_capture"].Filled)
	assert.Equal(t, 5.0, snap.TotalRealized)
	assert.Equal(t, 100.0, snap.Risk.GlobalExposure)
}

func TestDashboardSinkBroadcastsOrderAndFillEvents(t *testing.T) {
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	sink := NewDashboardSink(hub)

	// Exercise the Sink methods directly; BroadcastEvent drops silently
	// when the channel has no readers, so this only verifies no panic and
	// the event constructors round-trip without error.
	order := types.Order{ID: 1, MarketSlug: "btc-up-down-5m", Strategy: "certainty_capture", Side: types.Up, Price: 0.6, Size: 10}
	price, size := 0.6, 10.0
	ack := types.OrderAck{OrderID: 1, Status: types.StatusFilled, FilledPrice: &price, FilledSize: &size, LatencyMs: 12}

	sink.OnSignal(types.Signal{Strategy: "certainty_capture", Side: types.Up, Edge: 0.05})
	sink.OnOrder(order)
	sink.OnFill(order, ack)
	sink.BroadcastKill("btc-up-down-5m", "per-market position limit breached")
}
