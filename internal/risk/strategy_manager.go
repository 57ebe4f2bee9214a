package risk

import (
	"github.com/0xtitan6/btcud-mm/internal/state"
	"github.com/0xtitan6/btcud-mm/pkg/types"
)

// StrategyLimits bounds how aggressively any single strategy can trade
// within one market: a cooldown between orders, a cap on order count, a
// ceiling on position notional, and a hard cap on the Kelly-implied size
// fraction regardless of what the strategy itself proposed.
type StrategyLimits struct {
	CooldownMs         int64
	MaxOrdersPerMarket uint32
	MaxPositionUSD     float64
	MaxSizeFrac        float64
}

type strategyBudget struct {
	lastOrderMs int64
	ordersSent  uint32
}

// StrategyRiskManager is the per-strategy gate between a pipeline-approved
// signal and a dispatched order: it enforces StrategyLimits, consults the
// portfolio-level Manager's kill switch, and sizes the order against the
// configured bankroll. One instance is created per market and discarded at
// settlement; per-strategy budgets do not carry across markets.
type StrategyRiskManager struct {
	limits      StrategyLimits
	bankrollUSD float64
	portfolio   *Manager
	budgets     map[string]*strategyBudget
}

// NewStrategyRiskManager constructs a manager for one market. portfolio may
// be nil if no portfolio-level circuit breaker is wired in (e.g. backtests).
func NewStrategyRiskManager(limits StrategyLimits, bankrollUSD float64, portfolio *Manager) *StrategyRiskManager {
	return &StrategyRiskManager{
		limits:      limits,
		bankrollUSD: bankrollUSD,
		portfolio:   portfolio,
		budgets:     make(map[string]*strategyBudget),
	}
}

func (m *StrategyRiskManager) budgetFor(strategy string) *strategyBudget {
	b, ok := m.budgets[strategy]
	if !ok {
		b = &strategyBudget{}
		m.budgets[strategy] = b
	}
	return b
}

// CheckStrategy turns an approved signal into a sized order, or rejects it.
// Rejection reasons, in check order: the signal's price is outside (0, 1),
// the portfolio kill switch is engaged, the strategy's cooldown has not
// elapsed, it has exhausted its per-market order budget, or the sized
// order comes to nothing. The notional is first cut down to the room left
// under MaxPositionUSD and then to the portfolio's remaining budget; the
// signal is rejected only when no room is left.
func (m *StrategyRiskManager) CheckStrategy(sig types.Signal, st *state.MarketState, orderID uint64, nowMs int64) (types.Order, bool) {
	if sig.MarketPrice <= 0 || sig.MarketPrice >= 1.0 {
		return types.Order{}, false
	}

	if m.portfolio != nil && m.portfolio.IsKillSwitchActive() {
		return types.Order{}, false
	}

	budget := m.budgetFor(sig.Strategy)
	if budget.lastOrderMs > 0 && nowMs-budget.lastOrderMs < m.limits.CooldownMs {
		return types.Order{}, false
	}
	if budget.ordersSent >= m.limits.MaxOrdersPerMarket {
		return types.Order{}, false
	}

	sizeFrac := sig.SizeFrac
	if sizeFrac > m.limits.MaxSizeFrac {
		sizeFrac = m.limits.MaxSizeFrac
	}
	notional := sizeFrac * m.bankrollUSD
	if notional <= 0 {
		return types.Order{}, false
	}

	currentNotional := st.Position.Size * st.Position.AvgPrice
	if currentNotional+notional > m.limits.MaxPositionUSD {
		notional = m.limits.MaxPositionUSD - currentNotional
		if notional <= 0 {
			return types.Order{}, false
		}
	}

	// Portfolio-wide bankroll-fraction and global-exposure headroom, on top
	// of this market's own MaxPositionUSD cap above.
	if m.portfolio != nil {
		if remaining := m.portfolio.RemainingBudget(st.Info.Slug); notional > remaining {
			notional = remaining
		}
		if notional <= 0 {
			return types.Order{}, false
		}
	}

	size := notional / sig.MarketPrice
	if size <= 0 {
		return types.Order{}, false
	}

	tokenID := st.Info.UpTokenID
	if sig.Side == types.Down {
		tokenID = st.Info.DownTokenID
	}

	return types.Order{
		ID:         orderID,
		MarketSlug: st.Info.Slug,
		TokenID:    tokenID,
		Side:       sig.Side,
		Price:      sig.MarketPrice,
		Size:       size,
		Strategy:   sig.Strategy,
		SignalEdge: sig.Edge,
		IsPassive:  sig.IsPassive,
	}, true
}

// OnOrderSent records the cooldown anchor and order count for a strategy
// after the pipeline dispatches its order to the gateway.
func (m *StrategyRiskManager) OnOrderSent(strategy string, nowMs int64) {
	b := m.budgetFor(strategy)
	b.lastOrderMs = nowMs
	b.ordersSent++
}

// SettleMarket computes realized PnL at market close: each fill on the
// winning side returns (1-price) per unit, each fill on the losing side
// loses price per unit.
func (m *StrategyRiskManager) SettleMarket(outcome types.Side, fills []types.Fill) float64 {
	var pnl float64
	for _, f := range fills {
		if f.Side == outcome {
			pnl += f.Size * (1.0 - f.Price)
		} else {
			pnl -= f.Size * f.Price
		}
	}
	return pnl
}
