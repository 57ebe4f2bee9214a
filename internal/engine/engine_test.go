package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xtitan6/btcud-mm/pkg/types"
)

func discardEngineLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestMergeInboundEventsForwardsBothSources(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	feed := make(chan types.InboundEvent, 2)
	acks := make(chan types.InboundEvent, 2)
	feed <- types.InboundEvent{Kind: types.EventTick}
	acks <- types.InboundEvent{Kind: types.EventOrderAck, OrderAck: types.OrderAck{OrderID: 1}}

	merged := mergeInboundEvents(ctx, feed, acks)

	seen := map[types.InboundEventKind]int{}
	for i := 0; i < 2; i++ {
		select {
		case evt := <-merged:
			seen[evt.Kind]++
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for merged event")
		}
	}
	assert.Equal(t, 1, seen[types.EventTick])
	assert.Equal(t, 1, seen[types.EventOrderAck])
}

func TestMergeInboundEventsClosesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	feed := make(chan types.InboundEvent)
	acks := make(chan types.InboundEvent)
	merged := mergeInboundEvents(ctx, feed, acks)

	cancel()

	select {
	case _, ok := <-merged:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("merged channel did not close after cancellation")
	}
}

type fakeGateway struct {
	placed []types.Order
}

func (f *fakeGateway) PlaceOrder(ctx context.Context, order types.Order) (types.OrderAck, error) {
	f.placed = append(f.placed, order)
	price, size := order.Price, order.Size
	return types.OrderAck{OrderID: order.ID, Status: types.StatusFilled, FilledPrice: &price, FilledSize: &size}, nil
}

func (f *fakeGateway) CancelAll(ctx context.Context, marketSlug string) error { return nil }

func TestGatewaySinkForwardsAckOntoChannel(t *testing.T) {
	gw := &fakeGateway{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ackCh := make(chan types.InboundEvent, 4)

	sink := gatewaySink{gw: gw, ctx: ctx, ackCh: ackCh, logger: discardEngineLogger()}
	sink.OnOrder(types.Order{ID: 42, Price: 0.6, Size: 5})

	require.Len(t, gw.placed, 1)
	select {
	case evt := <-ackCh:
		require.Equal(t, types.EventOrderAck, evt.Kind)
		assert.Equal(t, uint64(42), evt.OrderAck.OrderID)
	case <-time.After(time.Second):
		t.Fatal("expected ack on ackCh")
	}
}
