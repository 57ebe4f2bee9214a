package state

import "github.com/0xtitan6/btcud-mm/pkg/types"

// PositionTracker accumulates the net position and average entry price for
// the current market from order sends and acks, so the risk manager can
// gate on total exposure without re-deriving it from the fill log.
type PositionTracker struct {
	Side          *types.Side
	Size          float64
	AvgPrice      float64
	PendingOrders uint32
}

// OnOrderSent marks an order as in flight.
func (p *PositionTracker) OnOrderSent() {
	p.PendingOrders++
}

// OnFill folds in the ack for a previously sent order: decrements the
// pending counter and, on a fill or partial fill, updates size and the
// volume-weighted average entry price.
func (p *PositionTracker) OnFill(ack types.OrderAck) {
	if p.PendingOrders > 0 {
		p.PendingOrders--
	}
	if ack.Status != types.StatusFilled && ack.Status != types.StatusPartialFill {
		return
	}
	if ack.FilledPrice == nil || ack.FilledSize == nil {
		return
	}
	total := p.Size + *ack.FilledSize
	if total > 0 {
		p.AvgPrice = (p.AvgPrice*p.Size + *ack.FilledPrice**ack.FilledSize) / total
	}
	p.Size = total
}
