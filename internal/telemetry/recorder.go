// Package telemetry observes the signal/order/fill stream of one market and
// writes the market-end CSV artifacts: market_info.txt, orders.csv,
// fills.csv and signals.csv under logs/{interval}/{slug}/. It also exposes
// the Prometheus counters and gauges the dashboard's /metrics route serves.
//
// A Recorder is a pipeline.Sink like any other — the engine chains it in
// front of the dashboard's sink — but writes are fire-and-forget: OnSignal,
// OnOrder and OnFill enqueue a row onto a buffered channel and return, so a
// slow disk never stalls the evaluation hot path. Rows are flushed by a
// single background goroutine per market, matching the "output CSVs are
// opened exclusively by the single telemetry task" ownership rule.
package telemetry

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/0xtitan6/btcud-mm/internal/pipeline"
	"github.com/0xtitan6/btcud-mm/pkg/types"
)

// recordBuffer is generous enough that a burst of signals from all six
// strategies firing on the same tick never blocks the caller.
const recordBuffer = 4096

type rowKind int

const (
	rowSignal rowKind = iota
	rowOrder
	rowFill
)

type entry struct {
	kind   rowKind
	signal types.Signal
	order  types.Order
	ack    types.OrderAck
}

var (
	ordersHeader  = []string{"ts_ms", "order_id", "side", "price", "size", "strategy", "edge", "ref_price", "time_left_s"}
	fillsHeader   = []string{"ts_ms", "order_id", "strategy", "status", "filled_price", "filled_size", "submit_to_ack_ms", "pnl_if_correct"}
	signalsHeader = []string{"ts_ms", "strategy", "side", "edge", "fair", "mkt", "conf", "size_frac", "ref_price", "dist", "time_left_s", "eval_us", "selected"}
)

// strategyAgg accumulates the per-strategy summary line written into
// market_info.txt at Close.
type strategyAgg struct {
	signals, orders, fills int
	pnl                    float64
	edgeSum                float64
}

// Recorder is a pipeline.Sink that records every signal and order it sees
// to per-market CSV files, forwarding everything unchanged to next (the
// dashboard's live sink) first.
type Recorder struct {
	next   pipeline.Sink
	logger *slog.Logger
	dir    string
	info   types.MarketInfo

	entries chan entry
	closed  chan struct{}

	ordersF, fillsF, signalsF *os.File
	orders, fills, signals    *csv.Writer

	agg map[string]*strategyAgg
}

// NewRecorder creates the market's log directory, opens its three CSV
// files with fresh headers, and starts the background writer goroutine.
// Close must be called exactly once when the market settles.
func NewRecorder(logRoot string, info types.MarketInfo, next pipeline.Sink, logger *slog.Logger) (*Recorder, error) {
	dir := filepath.Join(logRoot, info.Interval.Label(), info.Slug)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	r := &Recorder{
		next:    next,
		logger:  logger.With("component", "telemetry", "market", info.Slug),
		dir:     dir,
		info:    info,
		entries: make(chan entry, recordBuffer),
		closed:  make(chan struct{}),
		agg:     make(map[string]*strategyAgg),
	}

	var err error
	if r.ordersF, r.orders, err = openCSV(dir, "orders.csv", ordersHeader); err != nil {
		return nil, err
	}
	if r.fillsF, r.fills, err = openCSV(dir, "fills.csv", fillsHeader); err != nil {
		r.ordersF.Close()
		return nil, err
	}
	if r.signalsF, r.signals, err = openCSV(dir, "signals.csv", signalsHeader); err != nil {
		r.ordersF.Close()
		r.fillsF.Close()
		return nil, err
	}

	go r.loop()
	return r, nil
}

func openCSV(dir, name string, header []string) (*os.File, *csv.Writer, error) {
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return nil, nil, fmt.Errorf("create %s: %w", name, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("write %s header: %w", name, err)
	}
	w.Flush()
	return f, w, nil
}

// OnSignal implements pipeline.Sink.
func (r *Recorder) OnSignal(sig types.Signal) {
	if r.next != nil {
		r.next.OnSignal(sig)
	}
	ObserveSignal(sig.Strategy, sig.Side.String())
	r.enqueue(entry{kind: rowSignal, signal: sig})
}

// OnOrder implements pipeline.Sink.
func (r *Recorder) OnOrder(order types.Order) {
	if r.next != nil {
		r.next.OnOrder(order)
	}
	ObserveOrder(order.Strategy, order.Side.String())
	r.enqueue(entry{kind: rowOrder, order: order})
}

// OnFill implements engine.FillRecorder — the runner calls this directly
// from onOrderAck, outside the normal Sink path, since OrderAck arrives on
// the event stream rather than through the pipeline.
func (r *Recorder) OnFill(order types.Order, ack types.OrderAck) {
	ObserveFill(order.Strategy, ack.Status.String())
	r.enqueue(entry{kind: rowFill, order: order, ack: ack})
}

func (r *Recorder) enqueue(e entry) {
	select {
	case r.entries <- e:
	default:
		r.logger.Warn("telemetry buffer full, dropping record")
	}
}

// loop is the sole writer of every CSV file and the sole owner of agg — no
// mutex needed. Because ProcessSignals calls OnSignal for a signal and, if
// approved, OnOrder for the resulting order before evaluating the next
// signal, a signal row is never more than one entry away from the order
// that would mark it selected; pending holds exactly that one row.
func (r *Recorder) loop() {
	defer close(r.closed)
	var pending *types.Signal

	flushPending := func(selected bool) {
		if pending == nil {
			return
		}
		r.writeSignal(*pending, selected)
		pending = nil
	}

	for e := range r.entries {
		switch e.kind {
		case rowSignal:
			flushPending(false)
			sig := e.signal
			pending = &sig
		case rowOrder:
			flushPending(true)
			r.writeOrder(e.order)
		case rowFill:
			r.writeFill(e.order, e.ack)
		}
	}
	flushPending(false)
}

func (r *Recorder) writeSignal(sig types.Signal, selected bool) {
	a := r.aggFor(sig.Strategy)
	a.signals++
	a.edgeSum += sig.Edge
	row := []string{
		strconv.FormatInt(sig.TsMs, 10),
		sig.Strategy,
		sig.Side.String(),
		formatFloat(sig.Edge),
		formatFloat(sig.FairValue),
		formatFloat(sig.MarketPrice),
		formatFloat(sig.Confidence),
		formatFloat(sig.SizeFrac),
		formatFloat(sig.RefPrice),
		formatFloat(sig.Dist),
		formatFloat(sig.TimeLeftS),
		formatFloat(sig.EvalUs),
		strconv.FormatBool(selected),
	}
	if err := r.signals.Write(row); err != nil {
		r.logger.Warn("write signals.csv row failed", "error", err)
		return
	}
	r.signals.Flush()
}

func (r *Recorder) writeOrder(order types.Order) {
	a := r.aggFor(order.Strategy)
	a.orders++
	row := []string{
		strconv.FormatInt(order.CreatedAt.UnixMilli(), 10),
		strconv.FormatUint(order.ID, 10),
		order.Side.String(),
		formatFloat(order.Price),
		formatFloat(order.Size),
		order.Strategy,
		formatFloat(order.SignalEdge),
		formatFloat(order.RefPrice),
		formatFloat(order.TimeLeftS),
	}
	if err := r.orders.Write(row); err != nil {
		r.logger.Warn("write orders.csv row failed", "error", err)
		return
	}
	r.orders.Flush()
}

func (r *Recorder) writeFill(order types.Order, ack types.OrderAck) {
	var filledPrice, filledSize, pnlIfCorrect string
	if ack.FilledPrice != nil {
		filledPrice = formatFloat(*ack.FilledPrice)
	}
	if ack.FilledSize != nil {
		filledSize = formatFloat(*ack.FilledSize)
	}
	if ack.FilledPrice != nil && ack.FilledSize != nil {
		pnlIfCorrect = formatFloat((1 - *ack.FilledPrice) * *ack.FilledSize)
	}

	if ack.Status == types.StatusFilled || ack.Status == types.StatusPartialFill {
		a := r.aggFor(order.Strategy)
		a.fills++
		if ack.FilledPrice != nil && ack.FilledSize != nil {
			a.pnl += (1 - *ack.FilledPrice) * *ack.FilledSize
		}
	}

	row := []string{
		strconv.FormatInt(time.Now().UnixMilli(), 10),
		strconv.FormatUint(ack.OrderID, 10),
		order.Strategy,
		ack.Status.String(),
		filledPrice,
		filledSize,
		formatFloat(ack.LatencyMs),
		pnlIfCorrect,
	}
	if err := r.fills.Write(row); err != nil {
		r.logger.Warn("write fills.csv row failed", "error", err)
		return
	}
	r.fills.Flush()
}

func (r *Recorder) aggFor(strategy string) *strategyAgg {
	a, ok := r.agg[strategy]
	if !ok {
		a = &strategyAgg{}
		r.agg[strategy] = a
	}
	return a
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Close drains any buffered entries, closes the CSV files and writes
// market_info.txt with the final per-strategy summary. grossPnL is the
// market's total realized PnL as computed by Runner.Settle.
func (r *Recorder) Close(outcome types.Side, grossPnL float64) error {
	close(r.entries)
	<-r.closed

	r.orders.Flush()
	r.fills.Flush()
	r.signals.Flush()
	r.ordersF.Close()
	r.fillsF.Close()
	r.signalsF.Close()

	return r.writeMarketInfo(outcome, grossPnL)
}

func (r *Recorder) writeMarketInfo(outcome types.Side, grossPnL float64) error {
	lines := []string{
		"slug=" + r.info.Slug,
		"start_ms=" + strconv.FormatInt(r.info.StartMs, 10),
		"end_ms=" + strconv.FormatInt(r.info.EndMs, 10),
		"strike=" + formatFloat(r.info.Strike),
		"outcome=" + outcome.String(),
		"gross_pnl=" + formatFloat(grossPnL),
	}

	names := make([]string, 0, len(r.agg))
	for name := range r.agg {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		a := r.agg[name]
		avgEdge := 0.0
		if a.signals > 0 {
			avgEdge = a.edgeSum / float64(a.signals)
		}
		lines = append(lines, fmt.Sprintf("strat_%s=sig:%d,ord:%d,fill:%d,pnl:%s,avg_edge:%s",
			name, a.signals, a.orders, a.fills, formatFloat(a.pnl), formatFloat(avgEdge)))
	}

	// Atomic write-then-rename so a crash mid-write never leaves a
	// truncated market_info.txt behind.
	path := filepath.Join(r.dir, "market_info.txt")
	tmp := path + ".tmp"
	data := []byte(joinLines(lines))
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write market_info.txt: %w", err)
	}
	return os.Rename(tmp, path)
}

func joinLines(lines []string) string {
	out := ""
	for _, l := range lines {
		out += l + "\n"
	}
	return out
}
