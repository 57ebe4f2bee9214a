package gateway

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xtitan6/btcud-mm/internal/config"
	"github.com/0xtitan6/btcud-mm/pkg/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(noopWriter{}, nil))
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestNewDryRunSkipsWalletSetup(t *testing.T) {
	gw, err := New(config.Config{DryRun: true}, discardLogger())
	require.NoError(t, err)
	assert.Nil(t, gw.signer)
}

func TestPlaceOrderDryRunSynthesizesFill(t *testing.T) {
	gw, err := New(config.Config{DryRun: true}, discardLogger())
	require.NoError(t, err)

	ack, err := gw.PlaceOrder(context.Background(), types.Order{ID: 7, MarketSlug: "m1", Price: 0.44, Size: 12})
	require.NoError(t, err)
	assert.Equal(t, uint64(7), ack.OrderID)
	assert.Equal(t, types.StatusFilled, ack.Status)
	require.NotNil(t, ack.FilledPrice)
	require.NotNil(t, ack.FilledSize)
	assert.InDelta(t, 0.44, *ack.FilledPrice, 1e-9)
	assert.InDelta(t, 12, *ack.FilledSize, 1e-9)
}

func TestCancelAllDryRunIsNoop(t *testing.T) {
	gw, err := New(config.Config{DryRun: true}, discardLogger())
	require.NoError(t, err)
	assert.NoError(t, gw.CancelAll(context.Background(), "m1"))
	assert.NoError(t, gw.CancelAll(context.Background(), ""))
}

func TestCancelMarketSkipsRequestWhenNothingTracked(t *testing.T) {
	gw, err := New(config.Config{
		Wallet: config.WalletConfig{PrivateKey: testPrivateKey, ChainID: 137},
		API:    config.APIConfig{ApiKey: "k", Secret: "c2VjcmV0", Passphrase: "p"},
	}, discardLogger())
	require.NoError(t, err)
	assert.NoError(t, gw.cancelMarket(context.Background(), "never-traded"))
}

func TestAckFromResponseMapsMatchedToFilled(t *testing.T) {
	order := types.Order{ID: 1, Price: 0.3, Size: 4}
	ack := ackFromResponse(order, orderResponse{Success: true, OrderID: "v1", Status: "matched"})
	assert.Equal(t, types.StatusFilled, ack.Status)
	require.NotNil(t, ack.FilledPrice)
	assert.InDelta(t, 0.3, *ack.FilledPrice, 1e-9)
}

func TestAckFromResponseMapsRestingToTimeout(t *testing.T) {
	order := types.Order{ID: 2}
	ack := ackFromResponse(order, orderResponse{Success: true, OrderID: "v2", Status: "live"})
	assert.Equal(t, types.StatusTimeout, ack.Status)
}

func TestAckFromResponseMapsFailureToRejected(t *testing.T) {
	order := types.Order{ID: 3}
	ack := ackFromResponse(order, orderResponse{Success: false, ErrorMsg: "insufficient balance"})
	assert.Equal(t, types.StatusRejected, ack.Status)
	assert.Equal(t, "insufficient balance", ack.RejectReason)
}

func TestTrackRecordsOrderUnderMarket(t *testing.T) {
	gw, err := New(config.Config{DryRun: true}, discardLogger())
	require.NoError(t, err)
	gw.track("m1", trackedOrder{localID: 1, venueID: "v1"})
	gw.mu.Lock()
	_, ok := gw.byMarket["m1"]
	gw.mu.Unlock()
	assert.True(t, ok)
}
