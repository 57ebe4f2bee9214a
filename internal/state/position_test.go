package state

import (
	"testing"

	"github.com/0xtitan6/btcud-mm/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestPositionTrackerOnOrderSentAndFill(t *testing.T) {
	var p PositionTracker
	p.OnOrderSent()
	assert.EqualValues(t, 1, p.PendingOrders)

	price, size := 0.5, 10.0
	p.OnFill(types.OrderAck{Status: types.StatusFilled, FilledPrice: &price, FilledSize: &size})
	assert.EqualValues(t, 0, p.PendingOrders)
	assert.Equal(t, 10.0, p.Size)
	assert.Equal(t, 0.5, p.AvgPrice)
}

func TestPositionTrackerWeightedAvgPrice(t *testing.T) {
	var p PositionTracker
	price1, size1 := 0.4, 10.0
	p.OnFill(types.OrderAck{Status: types.StatusFilled, FilledPrice: &price1, FilledSize: &size1})
	price2, size2 := 0.6, 10.0
	p.OnFill(types.OrderAck{Status: types.StatusFilled, FilledPrice: &price2, FilledSize: &size2})
	assert.InDelta(t, 0.5, p.AvgPrice, 1e-9)
	assert.Equal(t, 20.0, p.Size)
}

func TestPositionTrackerRejectedDoesNotChangeSize(t *testing.T) {
	var p PositionTracker
	p.OnOrderSent()
	p.OnFill(types.OrderAck{Status: types.StatusRejected})
	assert.Equal(t, 0.0, p.Size)
	assert.EqualValues(t, 0, p.PendingOrders)
}
