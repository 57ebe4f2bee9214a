// Package config defines all configuration for the market-making bot.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// sensitive fields overridable via BTCUD_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	Asset    string `mapstructure:"asset"`
	Interval string `mapstructure:"interval"` // 5m, 15m, 1h, 4h
	DryRun   bool   `mapstructure:"dry_run"`

	Wallet     WalletConfig    `mapstructure:"wallet"`
	API        APIConfig       `mapstructure:"api"`
	Model      ModelConfig     `mapstructure:"model"`
	Strategies StrategyToggles `mapstructure:"strategies"`
	Risk       RiskConfig      `mapstructure:"risk"`
	Discovery  DiscoveryConfig `mapstructure:"discovery"`
	Telemetry  TelemetryConfig `mapstructure:"telemetry"`
	Logging    LoggingConfig   `mapstructure:"logging"`
	Dashboard  DashboardConfig `mapstructure:"dashboard"`
}

// WalletConfig holds the Ethereum wallet used for signing orders.
// PrivateKey signs L1 (EIP-712) auth and derives L2 API keys. It is never
// populated from the YAML file, only from BTCUD_PRIVATE_KEY, so it never
// ends up checked into a repo or printed by a config dump.
type WalletConfig struct {
	PrivateKey    string `mapstructure:"-"`
	SignatureType int    `mapstructure:"signature_type"`
	FunderAddress string `mapstructure:"funder_address"`
	ChainID       int    `mapstructure:"chain_id"`
}

// APIConfig holds venue and reference-feed endpoints plus optional
// pre-derived L2 credentials. If ApiKey/Secret/Passphrase are empty, the
// gateway derives them via L1 auth on startup.
type APIConfig struct {
	CLOBBaseURL     string `mapstructure:"clob_base_url"`
	GammaBaseURL    string `mapstructure:"gamma_base_url"`
	WSMarketURL     string `mapstructure:"ws_market_url"`
	ReferenceWSURL  string `mapstructure:"reference_ws_url"`
	ApiKey          string `mapstructure:"api_key"`
	Secret          string `mapstructure:"secret"`
	Passphrase      string `mapstructure:"passphrase"`
}

// ModelConfig tunes the probability model: oracle-basis correction, EWMA
// realized volatility, and the floors/windows the state trackers use.
type ModelConfig struct {
	OracleBeta       float64 `mapstructure:"oracle_beta"`
	OracleDeltaS     float64 `mapstructure:"oracle_delta_s"`
	EwmaLambda       float64 `mapstructure:"ewma_lambda"`
	EwmaMinSamples   uint32  `mapstructure:"ewma_min_samples"`
	SigmaFloorAnnual float64 `mapstructure:"sigma_floor_annual"`
	VwapWindowMs     int64   `mapstructure:"vwap_window_ms"`
	RegimeWindowMs   int64   `mapstructure:"regime_window_ms"`
}

// StrategyToggles turns each of the six signal strategies on or off
// independently, so a deployment can run a subset without a code change.
type StrategyToggles struct {
	LatencyArb       bool `mapstructure:"latency_arb"`
	CertaintyCapture bool `mapstructure:"certainty_capture"`
	ConvexityFade    bool `mapstructure:"convexity_fade"`
	CrossTimeframe   bool `mapstructure:"cross_timeframe"`
	StrikeMisalign   bool `mapstructure:"strike_misalign"`
	LPExtreme        bool `mapstructure:"lp_extreme"`
}

// RiskConfig sets hard limits enforced at both the portfolio level
// (risk.Manager, a circuit breaker across every active market) and the
// per-strategy level (risk.StrategyRiskManager, a gate per signal).
//
//   - MaxPositionPerMarket / MaxGlobalExposure / MaxMarketsActive /
//     KillSwitchDropPct / KillSwitchWindowSec / MaxDailyLoss /
//     CooldownAfterKill feed risk.Manager directly.
//   - BankrollUSD / StrategyCooldownMs / MaxOrdersPerMarket /
//     MaxStrategySizeFrac feed risk.StrategyRiskManager via
//     risk.StrategyLimits.
type RiskConfig struct {
	BankrollUSD          float64 `mapstructure:"bankroll"`
	MaxTotalExposureFrac float64 `mapstructure:"max_total_exposure_frac"`
	DailyLossHaltFrac    float64 `mapstructure:"daily_loss_halt_frac"`
	WeeklyLossHaltFrac   float64 `mapstructure:"weekly_loss_halt_frac"`

	MaxPositionPerMarket float64       `mapstructure:"max_position_usd"`
	MaxGlobalExposure    float64       `mapstructure:"max_global_exposure"`
	MaxMarketsActive     int           `mapstructure:"max_markets_active"`
	KillSwitchDropPct    float64       `mapstructure:"kill_switch_drop_pct"`
	KillSwitchWindowSec  int           `mapstructure:"kill_switch_window_sec"`
	MaxDailyLoss         float64       `mapstructure:"max_daily_loss"`
	CooldownAfterKill    time.Duration `mapstructure:"cooldown_after_kill"`

	StrategyCooldownMs  int64   `mapstructure:"cooldown_ms"`
	MaxOrdersPerMarket  uint32  `mapstructure:"max_orders_per_market"`
	MaxStrategySizeFrac float64 `mapstructure:"max_strategy_size_frac"`
}

// DiscoveryConfig controls how the bot finds the next tradeable market.
type DiscoveryConfig struct {
	PollInterval   time.Duration `mapstructure:"poll_interval_s"`
	MaxEndDateDays int           `mapstructure:"max_end_date_days"`
	ExcludeSlugs   []string      `mapstructure:"exclude_slugs"`
}

// TelemetryConfig controls where per-market CSV artifacts are written.
type TelemetryConfig struct {
	LogDir string `mapstructure:"log_dir"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text|json
}

// DashboardConfig controls the web dashboard server.
type DashboardConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load reads config from a YAML file with env var overrides. Wallet
// credentials are never read from the file itself, only environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("BTCUD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Wallet.PrivateKey = os.Getenv("BTCUD_PRIVATE_KEY")
	if key := os.Getenv("BTCUD_API_KEY"); key != "" {
		cfg.API.ApiKey = key
	}
	if secret := os.Getenv("BTCUD_API_SECRET"); secret != "" {
		cfg.API.Secret = secret
	}
	if pass := os.Getenv("BTCUD_PASSPHRASE"); pass != "" {
		cfg.API.Passphrase = pass
	}
	if os.Getenv("BTCUD_DRY_RUN") == "true" || os.Getenv("BTCUD_DRY_RUN") == "1" {
		cfg.DryRun = true
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.Asset == "" {
		return fmt.Errorf("asset is required")
	}
	switch c.Interval {
	case "5m", "15m", "1h", "4h":
	default:
		return fmt.Errorf("interval must be one of: 5m, 15m, 1h, 4h")
	}
	if !c.DryRun {
		if c.Wallet.PrivateKey == "" {
			return fmt.Errorf("wallet private key is required (set BTCUD_PRIVATE_KEY) unless dry_run")
		}
		if c.Wallet.ChainID == 0 {
			return fmt.Errorf("wallet.chain_id is required (137 for mainnet)")
		}
	}
	switch c.Wallet.SignatureType {
	case 0, 1, 2:
	default:
		return fmt.Errorf("wallet.signature_type must be one of: 0 (EOA), 1 (POLY_PROXY), 2 (GNOSIS_SAFE)")
	}
	if c.Wallet.SignatureType != 0 && c.Wallet.FunderAddress == "" {
		return fmt.Errorf("wallet.funder_address is required when wallet.signature_type is 1 or 2")
	}
	if c.API.CLOBBaseURL == "" {
		return fmt.Errorf("api.clob_base_url is required")
	}
	if c.Model.EwmaLambda <= 0 || c.Model.EwmaLambda >= 1 {
		return fmt.Errorf("model.ewma_lambda must be in (0, 1)")
	}
	if c.Model.SigmaFloorAnnual <= 0 {
		return fmt.Errorf("model.sigma_floor_annual must be > 0")
	}
	if c.Risk.BankrollUSD <= 0 {
		return fmt.Errorf("risk.bankroll must be > 0")
	}
	if c.Risk.MaxPositionPerMarket <= 0 {
		return fmt.Errorf("risk.max_position_usd must be > 0")
	}
	if c.Risk.MaxGlobalExposure <= 0 {
		return fmt.Errorf("risk.max_global_exposure must be > 0")
	}
	if c.Risk.MaxMarketsActive <= 0 {
		return fmt.Errorf("risk.max_markets_active must be > 0")
	}
	if c.Risk.MaxStrategySizeFrac <= 0 || c.Risk.MaxStrategySizeFrac > 1 {
		return fmt.Errorf("risk.max_strategy_size_frac must be in (0, 1]")
	}
	return nil
}
