package api

import (
	"time"

	"github.com/0xtitan6/btcud-mm/internal/config"
)

// DashboardSnapshot represents the complete dashboard state.
type DashboardSnapshot struct {
	Timestamp time.Time `json:"timestamp"`

	// Active markets
	Markets []MarketStatus `json:"markets"`

	// Aggregate P&L across all active markets
	TotalRealized   float64 `json:"total_realized"`
	TotalUnrealized float64 `json:"total_unrealized"`
	TotalPnL        float64 `json:"total_pnl"`

	// Risk status
	Risk RiskSnapshot `json:"risk"`

	// Configuration
	Config ConfigSummary `json:"config"`
}

// MarketStatus represents per-market state for one running Up/Down market.
type MarketStatus struct {
	Slug   string `json:"slug"`
	Asset  string `json:"asset"`
	Strike float64 `json:"strike"`

	RefPrice  float64 `json:"ref_price"`
	Distance  float64 `json:"distance"`
	TimeLeftS float64 `json:"time_left_s"`

	UpBid   float64 `json:"up_bid"`
	UpAsk   float64 `json:"up_ask"`
	DownBid float64 `json:"down_bid"`
	DownAsk float64 `json:"down_ask"`

	EndDate time.Time `json:"end_date"`

	Position PositionSnapshot `json:"position"`

	TotalSignals uint32  `json:"total_signals"`
	TotalOrders  uint32  `json:"total_orders"`
	TotalFilled  uint32  `json:"total_filled"`
	GrossPnL     float64 `json:"gross_pnl"`

	Strategies map[string]StrategyStatus `json:"strategies"`
}

// StrategyStatus is one strategy's accumulated performance within a
// single market.
type StrategyStatus struct {
	Signals  uint32  `json:"signals"`
	Orders   uint32  `json:"orders"`
	Filled   uint32  `json:"filled"`
	GrossPnL float64 `json:"gross_pnl"`
	AvgEdge  float64 `json:"avg_edge"`
}

// PositionSnapshot represents the resting position for a market.
type PositionSnapshot struct {
	Size        float64 `json:"size"`
	AvgPrice    float64 `json:"avg_price"`
	ExposureUSD float64 `json:"exposure_usd"`
}

// RiskSnapshot represents aggregate risk metrics across the portfolio.
type RiskSnapshot struct {
	// Exposure
	GlobalExposure    float64 `json:"global_exposure"`
	MaxGlobalExposure float64 `json:"max_global_exposure"`
	ExposurePct       float64 `json:"exposure_pct"` // % of max

	// Kill switch
	KillSwitchActive bool      `json:"kill_switch_active"`
	KillSwitchUntil  time.Time `json:"kill_switch_until,omitempty"`
	KillSwitchReason string    `json:"kill_switch_reason,omitempty"`

	// P&L tracking
	TotalRealizedPnL   float64 `json:"total_realized_pnl"`
	TotalUnrealizedPnL float64 `json:"total_unrealized_pnl"`

	// Limits
	MaxPositionPerMarket float64 `json:"max_position_per_market"`
	MaxDailyLoss         float64 `json:"max_daily_loss"`
	MaxMarketsActive     int     `json:"max_markets_active"`
	CurrentMarketsActive int     `json:"current_markets_active"`
}

// ConfigSummary is the subset of running configuration the dashboard
// renders for operator visibility. It never includes secrets (API keys,
// the wallet private key).
type ConfigSummary struct {
	Asset    string `json:"asset"`
	Interval string `json:"interval"`
	DryRun   bool   `json:"dry_run"`

	// Strategy toggles
	LatencyArb       bool `json:"latency_arb"`
	CertaintyCapture bool `json:"certainty_capture"`
	ConvexityFade    bool `json:"convexity_fade"`
	CrossTimeframe   bool `json:"cross_timeframe"`
	StrikeMisalign   bool `json:"strike_misalign"`
	LPExtreme        bool `json:"lp_extreme"`

	// Model parameters
	EwmaLambda       float64 `json:"ewma_lambda"`
	SigmaFloorAnnual float64 `json:"sigma_floor_annual"`

	// Risk parameters
	BankrollUSD          float64 `json:"bankroll_usd"`
	MaxPositionPerMarket float64 `json:"max_position_per_market"`
	MaxGlobalExposure    float64 `json:"max_global_exposure"`
	MaxMarketsActive     int     `json:"max_markets_active"`
	KillSwitchDropPct    float64 `json:"kill_switch_drop_pct"`
	KillSwitchWindowSec  int     `json:"kill_switch_window_sec"`
	MaxDailyLoss         float64 `json:"max_daily_loss"`
	CooldownAfterKill    string  `json:"cooldown_after_kill"`

	// Discovery
	DiscoveryPollInterval string `json:"discovery_poll_interval"`
	MaxEndDateDays        int    `json:"max_end_date_days"`
}

// NewConfigSummary builds the operator-facing config summary.
func NewConfigSummary(cfg config.Config) ConfigSummary {
	return ConfigSummary{
		Asset:    cfg.Asset,
		Interval: cfg.Interval,
		DryRun:   cfg.DryRun,

		LatencyArb:       cfg.Strategies.LatencyArb,
		CertaintyCapture: cfg.Strategies.CertaintyCapture,
		ConvexityFade:    cfg.Strategies.ConvexityFade,
		CrossTimeframe:   cfg.Strategies.CrossTimeframe,
		StrikeMisalign:   cfg.Strategies.StrikeMisalign,
		LPExtreme:        cfg.Strategies.LPExtreme,

		EwmaLambda:       cfg.Model.EwmaLambda,
		SigmaFloorAnnual: cfg.Model.SigmaFloorAnnual,

		BankrollUSD:          cfg.Risk.BankrollUSD,
		MaxPositionPerMarket: cfg.Risk.MaxPositionPerMarket,
		MaxGlobalExposure:    cfg.Risk.MaxGlobalExposure,
		MaxMarketsActive:     cfg.Risk.MaxMarketsActive,
		KillSwitchDropPct:    cfg.Risk.KillSwitchDropPct,
		KillSwitchWindowSec:  cfg.Risk.KillSwitchWindowSec,
		MaxDailyLoss:         cfg.Risk.MaxDailyLoss,
		CooldownAfterKill:    cfg.Risk.CooldownAfterKill.String(),

		DiscoveryPollInterval: cfg.Discovery.PollInterval.String(),
		MaxEndDateDays:        cfg.Discovery.MaxEndDateDays,
	}
}
