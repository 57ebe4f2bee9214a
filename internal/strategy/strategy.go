// Package strategy implements the signal-generation layer: a handful of
// pure-function evaluators, each watching one dislocation in the
// relationship between the external reference price and the venue's binary
// Up/Down quotes, and a shared contract (Strategy, Kelly sizing, time-left
// fraction) the engine driver uses to run them uniformly.
package strategy

import (
	"github.com/0xtitan6/btcud-mm/internal/state"
	"github.com/0xtitan6/btcud-mm/pkg/types"
)

// Strategy is a stateless evaluator over market state: same code path runs
// in the live engine and any replay/backtest harness built against the
// same state snapshot.
type Strategy interface {
	Name() string
	Trigger() types.EvalTrigger
	Evaluate(st *state.MarketState, nowMs int64) (types.Signal, bool)
}

// EvaluateFiltered runs a subset of strategies against state, appending any
// produced signals to buf (which is NOT cleared by this call — callers
// that want a clean buffer should truncate to 0 length first).
func EvaluateFiltered(strategies []Strategy, st *state.MarketState, nowMs int64, buf []types.Signal) []types.Signal {
	for _, s := range strategies {
		if sig, ok := s.Evaluate(st, nowMs); ok {
			buf = append(buf, sig)
		}
	}
	return buf
}

const (
	kellyHalfFactor = 0.5
	kellyMaxFrac    = 0.15
)

// Kelly is half-Kelly position sizing given an edge and the price paid,
// clamped to [0, 0.15].
func Kelly(edge, price float64) float64 {
	if price >= 1.0 || edge <= 0 {
		return 0
	}
	f := (edge / (1.0 - price)) * kellyHalfFactor
	if f < 0 {
		return 0
	}
	if f > kellyMaxFrac {
		return kellyMaxFrac
	}
	return f
}

// TimeLeftFraction is the time remaining in the market as a fraction of its
// total duration: 1.0 at open, 0.0 at close.
func TimeLeftFraction(st *state.MarketState, nowMs int64) float64 {
	total := float64(st.Info.DurationMs())
	left := st.Info.EndMs - nowMs
	if left < 0 {
		left = 0
	}
	return float64(left) / total
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
