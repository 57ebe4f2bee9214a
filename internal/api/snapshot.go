package api

import (
	"time"

	"github.com/0xtitan6/btcud-mm/internal/config"
	"github.com/0xtitan6/btcud-mm/internal/engine"
	"github.com/0xtitan6/btcud-mm/internal/risk"
)

// MarketSnapshotProvider gives the dashboard read access to the running
// engine without coupling it to the engine's own goroutines and locking.
type MarketSnapshotProvider interface {
	ActiveMarkets() []engine.MarketSnapshot
	RiskManager() *risk.Manager
}

// BuildSnapshot aggregates state from the engine and risk manager into a
// single dashboard snapshot.
func BuildSnapshot(provider MarketSnapshotProvider, cfg config.Config) DashboardSnapshot {
	active := provider.ActiveMarkets()
	markets := make([]MarketStatus, 0, len(active))

	var totalRealized float64
	for _, m := range active {
		markets = append(markets, convertMarketSnapshot(m, cfg.Asset))
		totalRealized += m.GrossPnL
	}

	riskSnap := provider.RiskManager().GetRiskSnapshot()

	return DashboardSnapshot{
		Timestamp:       time.Now(),
		Markets:         markets,
		TotalRealized:   totalRealized,
		TotalUnrealized: riskSnap.TotalUnrealizedPnL,
		TotalPnL:        totalRealized + riskSnap.TotalUnrealizedPnL,
		Risk:            convertRiskSnapshot(riskSnap),
		Config:          NewConfigSummary(cfg),
	}
}

func convertMarketSnapshot(m engine.MarketSnapshot, asset string) MarketStatus {
	strategies := make(map[string]StrategyStatus, len(m.Strategies))
	for name, s := range m.Strategies {
		strategies[name] = StrategyStatus{
			Signals:  s.Signals,
			Orders:   s.Orders,
			Filled:   s.Filled,
			GrossPnL: s.GrossPnL,
			AvgEdge:  s.AvgEdge,
		}
	}

	return MarketStatus{
		Slug:      m.Slug,
		Asset:     asset,
		Strike:    m.Strike,
		RefPrice:  m.RefPrice,
		Distance:  m.Distance,
		TimeLeftS: m.TimeLeftS,
		UpBid:     m.UpBid,
		UpAsk:     m.UpAsk,
		DownBid:   m.DownBid,
		DownAsk:   m.DownAsk,
		EndDate:   time.UnixMilli(m.EndMs),
		Position: PositionSnapshot{
			Size:        m.PositionSize,
			AvgPrice:    m.PositionAvgPrice,
			ExposureUSD: m.PositionSize * m.PositionAvgPrice,
		},
		TotalSignals: m.TotalSignals,
		TotalOrders:  m.TotalOrders,
		TotalFilled:  m.TotalFilled,
		GrossPnL:     m.GrossPnL,
		Strategies:   strategies,
	}
}

// convertRiskSnapshot converts the risk manager's snapshot to API format.
func convertRiskSnapshot(snap risk.RiskSnapshot) RiskSnapshot {
	return RiskSnapshot{
		GlobalExposure:       snap.GlobalExposure,
		MaxGlobalExposure:    snap.MaxGlobalExposure,
		ExposurePct:          snap.ExposurePct,
		KillSwitchActive:     snap.KillSwitchActive,
		KillSwitchUntil:      snap.KillSwitchUntil,
		KillSwitchReason:     snap.KillSwitchReason,
		TotalRealizedPnL:     snap.TotalRealizedPnL,
		TotalUnrealizedPnL:   snap.TotalUnrealizedPnL,
		MaxPositionPerMarket: snap.MaxPositionPerMarket,
		MaxDailyLoss:         snap.MaxDailyLoss,
		MaxMarketsActive:     snap.MaxMarketsActive,
		CurrentMarketsActive: snap.CurrentMarketsActive,
	}
}
