package telemetry

import (
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xtitan6/btcud-mm/pkg/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testInfo() types.MarketInfo {
	return types.MarketInfo{
		Slug:     "btc-up-or-down-aug1-1pm",
		StartMs:  1000,
		EndMs:    301000,
		Strike:   95000,
		Interval: types.Interval5m,
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestNewRecorderWritesHeaders(t *testing.T) {
	dir := t.TempDir()
	rec, err := NewRecorder(dir, testInfo(), nil, discardLogger())
	require.NoError(t, err)

	marketDir := filepath.Join(dir, "5m", testInfo().Slug)
	assert.Equal(t, ordersHeader, readCSV(t, filepath.Join(marketDir, "orders.csv"))[0])
	assert.Equal(t, fillsHeader, readCSV(t, filepath.Join(marketDir, "fills.csv"))[0])
	assert.Equal(t, signalsHeader, readCSV(t, filepath.Join(marketDir, "signals.csv"))[0])

	require.NoError(t, rec.Close(types.Up, 0))
}

func TestOnOrderMarksPrecedingSignalSelected(t *testing.T) {
	dir := t.TempDir()
	rec, err := NewRecorder(dir, testInfo(), nil, discardLogger())
	require.NoError(t, err)

	rec.OnSignal(types.Signal{Strategy: "certainty_capture", Side: types.Up, Edge: 0.05, Confidence: 0.8})
	rec.OnOrder(types.Order{ID: 1, Strategy: "certainty_capture", Side: types.Up, Price: 0.6, Size: 10})
	require.NoError(t, rec.Close(types.Up, 11))

	rows := readCSV(t, filepath.Join(dir, "5m", testInfo().Slug, "signals.csv"))
	require.Len(t, rows, 2)
	assert.Equal(t, "true", rows[1][len(rows[1])-1])
}

func TestSignalWithoutOrderRecordedAsNotSelected(t *testing.T) {
	dir := t.TempDir()
	rec, err := NewRecorder(dir, testInfo(), nil, discardLogger())
	require.NoError(t, err)

	rec.OnSignal(types.Signal{Strategy: "latency_arb", Side: types.Down, Edge: 0.02, Confidence: 0.4})
	require.NoError(t, rec.Close(types.Up, 0))

	rows := readCSV(t, filepath.Join(dir, "5m", testInfo().Slug, "signals.csv"))
	require.Len(t, rows, 2)
	assert.Equal(t, "false", rows[1][len(rows[1])-1])
}

func TestTwoConsecutiveSignalsBothRecordedIndependently(t *testing.T) {
	dir := t.TempDir()
	rec, err := NewRecorder(dir, testInfo(), nil, discardLogger())
	require.NoError(t, err)

	rec.OnSignal(types.Signal{Strategy: "a", Side: types.Up})
	rec.OnSignal(types.Signal{Strategy: "b", Side: types.Down})
	rec.OnOrder(types.Order{ID: 1, Strategy: "b", Side: types.Down, Price: 0.4, Size: 5})
	require.NoError(t, rec.Close(types.Down, 2))

	rows := readCSV(t, filepath.Join(dir, "5m", testInfo().Slug, "signals.csv"))
	require.Len(t, rows, 3)
	assert.Equal(t, "a", rows[1][1])
	assert.Equal(t, "false", rows[1][len(rows[1])-1])
	assert.Equal(t, "b", rows[2][1])
	assert.Equal(t, "true", rows[2][len(rows[2])-1])
}

func TestOnFillWritesRowAndAccumulatesPnL(t *testing.T) {
	dir := t.TempDir()
	rec, err := NewRecorder(dir, testInfo(), nil, discardLogger())
	require.NoError(t, err)

	price, size := 0.6, 10.0
	rec.OnFill(types.Order{Strategy: "certainty_capture"}, types.OrderAck{
		OrderID: 1, Status: types.StatusFilled, FilledPrice: &price, FilledSize: &size, LatencyMs: 42,
	})
	require.NoError(t, rec.Close(types.Up, 4))

	rows := readCSV(t, filepath.Join(dir, "5m", testInfo().Slug, "fills.csv"))
	require.Len(t, rows, 2)
	assert.Equal(t, "certainty_capture", rows[1][2])
	assert.Equal(t, "filled", rows[1][3])
	assert.Equal(t, "0.6", rows[1][4])
	assert.Equal(t, "10", rows[1][5])

	info, err := os.ReadFile(filepath.Join(dir, "5m", testInfo().Slug, "market_info.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(info), "strat_certainty_capture=sig:0,ord:0,fill:1,pnl:4,avg_edge:0")
}

func TestCloseWritesMarketInfoSummary(t *testing.T) {
	dir := t.TempDir()
	rec, err := NewRecorder(dir, testInfo(), nil, discardLogger())
	require.NoError(t, err)
	require.NoError(t, rec.Close(types.Down, -3.5))

	data, err := os.ReadFile(filepath.Join(dir, "5m", testInfo().Slug, "market_info.txt"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Contains(t, lines, "slug=btc-up-or-down-aug1-1pm")
	assert.Contains(t, lines, "outcome=DOWN")
	assert.Contains(t, lines, "gross_pnl=-3.5")
}

type recordingSink struct {
	signals []types.Signal
	orders  []types.Order
}

func (s *recordingSink) OnSignal(sig types.Signal) { s.signals = append(s.signals, sig) }
func (s *recordingSink) OnOrder(order types.Order) { s.orders = append(s.orders, order) }

func TestRecorderForwardsToNextSinkBeforeRecording(t *testing.T) {
	dir := t.TempDir()
	next := &recordingSink{}
	rec, err := NewRecorder(dir, testInfo(), next, discardLogger())
	require.NoError(t, err)

	rec.OnSignal(types.Signal{Strategy: "x"})
	rec.OnOrder(types.Order{ID: 1, Strategy: "x"})
	require.NoError(t, rec.Close(types.Up, 0))

	require.Len(t, next.signals, 1)
	require.Len(t, next.orders, 1)
}
