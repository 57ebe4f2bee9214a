// Package state holds the mutable per-market state the engine evaluates
// strategies against: the reference-feed volatility/regime sub-state, the
// venue order book ladders, cross-interval quotes, and position/stats
// counters. Nothing here performs I/O — state is mutated by the engine
// driver as events arrive and read by strategies as pure functions of it.
package state

import (
	"sort"

	"github.com/0xtitan6/btcud-mm/pkg/types"
)

// OrderBookLadder is a full bid/ask ladder snapshot for one outcome token,
// with the aggregate queries strategies need: best levels, spread,
// microprice, depth within N levels, depth imbalance, and a walk-the-book
// VWAP fill estimate.
type OrderBookLadder struct {
	bids []types.BookLevel // sorted descending by price
	asks []types.BookLevel // sorted ascending by price
}

// ApplySnapshot replaces the ladder with a fresh snapshot. The slices are
// copied and re-sorted, so callers may pass book levels in whatever order
// the venue feed delivered them.
func (b *OrderBookLadder) ApplySnapshot(bids, asks []types.BookLevel) {
	b.bids = append([]types.BookLevel(nil), bids...)
	b.asks = append([]types.BookLevel(nil), asks...)
	sort.Slice(b.bids, func(i, j int) bool { return b.bids[i].Price > b.bids[j].Price })
	sort.Slice(b.asks, func(i, j int) bool { return b.asks[i].Price < b.asks[j].Price })
}

// BestBid is the top bid price, or 0 if the book is empty on that side.
func (b *OrderBookLadder) BestBid() float64 {
	if len(b.bids) == 0 {
		return 0
	}
	return b.bids[0].Price
}

// BestAsk is the top ask price, or 0 if the book is empty on that side.
func (b *OrderBookLadder) BestAsk() float64 {
	if len(b.asks) == 0 {
		return 0
	}
	return b.asks[0].Price
}

// Spread is best ask minus best bid, or 1.0 (maximally wide) if either side
// is empty — a deliberately conservative sentinel so spread-gated
// strategies never fire on a one-sided book.
func (b *OrderBookLadder) Spread() float64 {
	if len(b.bids) == 0 || len(b.asks) == 0 {
		return 1.0
	}
	return b.asks[0].Price - b.bids[0].Price
}

// Microprice is the size-weighted mid of the top of book:
// (bestBid*askSize + bestAsk*bidSize) / (bidSize+askSize). Returns 0 if
// either side is empty or both top sizes are zero.
func (b *OrderBookLadder) Microprice() float64 {
	if len(b.bids) == 0 || len(b.asks) == 0 {
		return 0
	}
	bidSize := b.bids[0].Size
	askSize := b.asks[0].Size
	total := bidSize + askSize
	if total <= 0 {
		return 0
	}
	return (b.bids[0].Price*askSize + b.asks[0].Price*bidSize) / total
}

// BidDepth sums size across the top n bid levels.
func (b *OrderBookLadder) BidDepth(n int) float64 {
	return sumDepth(b.bids, n)
}

// AskDepth sums size across the top n ask levels.
func (b *OrderBookLadder) AskDepth(n int) float64 {
	return sumDepth(b.asks, n)
}

func sumDepth(levels []types.BookLevel, n int) float64 {
	total := 0.0
	for i := 0; i < n && i < len(levels); i++ {
		total += levels[i].Size
	}
	return total
}

// DepthImbalance is bidDepth / (bidDepth + askDepth) across the top n
// levels on each side — below 0.5 means asks dominate. Returns 0.5 (neutral)
// if both sides are empty.
func (b *OrderBookLadder) DepthImbalance(n int) float64 {
	bidD := b.BidDepth(n)
	askD := b.AskDepth(n)
	total := bidD + askD
	if total <= 0 {
		return 0.5
	}
	return bidD / total
}

// VwapFillAsk walks the ask side consuming up to size units and returns the
// size-weighted average fill price plus the amount actually fillable
// (which may be less than size if the book is thinner than requested). ok
// is false if the ask side is empty or size is non-positive.
func (b *OrderBookLadder) VwapFillAsk(size float64) (price, fillable float64, ok bool) {
	if len(b.asks) == 0 || size <= 0 {
		return 0, 0, false
	}
	remaining := size
	var sumPQ, sumQ float64
	for _, lvl := range b.asks {
		if remaining <= 0 {
			break
		}
		take := lvl.Size
		if take > remaining {
			take = remaining
		}
		sumPQ += lvl.Price * take
		sumQ += take
		remaining -= take
	}
	if sumQ <= 0 {
		return 0, 0, false
	}
	return sumPQ / sumQ, sumQ, true
}
