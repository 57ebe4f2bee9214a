// Package engine is the central orchestrator of the market-making bot.
//
// It wires together all subsystems:
//
//  1. Discovery finds the next tradeable short-duration Up/Down market.
//  2. Engine starts a Runner goroutine per active market, each owning its
//     own MarketState built around a shared, asset-persistent
//     ReferenceState so volatility does not cold-start at every boundary.
//  3. Feed delivers decoded InboundEvents (reference trades, venue
//     quotes/books, heartbeat ticks) to the right runner.
//  4. Gateway places orders and reports acks back into the runner's event
//     stream.
//  5. The portfolio risk Manager monitors every active market and can
//     trigger a kill switch that stops them all.
//
// Lifecycle: New() → Start() → [runs until context cancellation] → Stop()
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/0xtitan6/btcud-mm/internal/config"
	"github.com/0xtitan6/btcud-mm/internal/mathkernel"
	"github.com/0xtitan6/btcud-mm/internal/pipeline"
	"github.com/0xtitan6/btcud-mm/internal/risk"
	"github.com/0xtitan6/btcud-mm/internal/state"
	"github.com/0xtitan6/btcud-mm/internal/strategy"
	"github.com/0xtitan6/btcud-mm/internal/telemetry"
	"github.com/0xtitan6/btcud-mm/pkg/types"
)

// Discovery produces the next tradeable market for the engine to run.
type Discovery interface {
	Run(ctx context.Context)
	Results() <-chan types.MarketInfo
}

// Feed decodes and delivers the external world's events for one market.
type Feed interface {
	Subscribe(ctx context.Context, info types.MarketInfo) (<-chan types.InboundEvent, error)
}

// Gateway places orders against the venue. CancelAll cancels every open
// order for marketSlug, or every open order across all markets when
// marketSlug is empty.
type Gateway interface {
	PlaceOrder(ctx context.Context, order types.Order) (types.OrderAck, error)
	CancelAll(ctx context.Context, marketSlug string) error
}

// marketSlot is one actively-running market.
type marketSlot struct {
	runner   *Runner
	cancel   context.CancelFunc
	info     types.MarketInfo
	recorder *telemetry.Recorder
}

// Engine orchestrates discovery, per-market runners, the venue gateway,
// and the portfolio risk manager. It owns the lifecycle of every goroutine
// it spawns.
type Engine struct {
	cfg       config.Config
	discovery Discovery
	feed      Feed
	gateway   Gateway
	riskMgr   *risk.Manager
	sink      pipeline.Sink
	logger    *slog.Logger

	referenceStates map[string]*state.ReferenceState // per-asset, persists across markets
	refMu           sync.Mutex

	slots   map[string]*marketSlot
	slotsMu sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New wires an Engine from its already-constructed dependencies.
func New(cfg config.Config, discovery Discovery, feed Feed, gateway Gateway, riskMgr *risk.Manager, sink pipeline.Sink, logger *slog.Logger) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		cfg:             cfg,
		discovery:       discovery,
		feed:            feed,
		gateway:         gateway,
		riskMgr:         riskMgr,
		sink:            sink,
		logger:          logger.With("component", "engine"),
		referenceStates: make(map[string]*state.ReferenceState),
		slots:           make(map[string]*marketSlot),
		ctx:             ctx,
		cancel:          cancel,
	}
}

// Start launches discovery, the portfolio risk manager, and the main
// market-management loop.
func (e *Engine) Start() {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.discovery.Run(e.ctx)
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.riskMgr.Run(e.ctx)
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.manageMarkets()
	}()
}

// Stop cancels every running market, a cancel-all safety net to the
// gateway, and waits for every goroutine to exit.
func (e *Engine) Stop() {
	e.logger.Info("shutting down...")
	e.cancel()

	cancelCtx, cancelCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelCancel()
	if err := e.gateway.CancelAll(cancelCtx, ""); err != nil {
		e.logger.Error("failed to cancel all orders on shutdown", "error", err)
	}

	e.wg.Wait()
	e.logger.Info("shutdown complete")
}

func (e *Engine) manageMarkets() {
	for {
		select {
		case <-e.ctx.Done():
			return
		case info, ok := <-e.discovery.Results():
			if !ok {
				return
			}
			e.startMarket(info)
		case kill := <-e.riskMgr.KillCh():
			e.handleKillSignal(kill)
		}
	}
}

// SetSink replaces the engine's sink. Must be called before Start — the
// sink is read without synchronization once the market-management
// goroutine is running.
func (e *Engine) SetSink(sink pipeline.Sink) {
	e.sink = sink
}

// ActiveMarkets returns a MarketSnapshot for every currently running
// market. Safe to call concurrently with the engine's own goroutines — it
// only reads the slot map under its own lock and each runner's
// independently-locked snapshot.
func (e *Engine) ActiveMarkets() []MarketSnapshot {
	e.slotsMu.RLock()
	defer e.slotsMu.RUnlock()

	out := make([]MarketSnapshot, 0, len(e.slots))
	for _, slot := range e.slots {
		out = append(out, slot.runner.Snapshot())
	}
	return out
}

// RiskManager exposes the portfolio risk manager for dashboard reporting.
func (e *Engine) RiskManager() *risk.Manager {
	return e.riskMgr
}

func (e *Engine) referenceStateFor(asset string) *state.ReferenceState {
	e.refMu.Lock()
	defer e.refMu.Unlock()
	ref, ok := e.referenceStates[asset]
	if !ok {
		ref = state.NewReferenceState(
			e.cfg.Model.EwmaLambda,
			e.cfg.Model.EwmaMinSamples,
			e.cfg.Model.SigmaFloorAnnual,
			e.cfg.Model.VwapWindowMs,
			e.cfg.Model.RegimeWindowMs,
		)
		e.referenceStates[asset] = ref
	}
	return ref
}

func (e *Engine) startMarket(info types.MarketInfo) {
	e.slotsMu.Lock()
	if _, ok := e.slots[info.Slug]; ok {
		e.slotsMu.Unlock()
		return
	}
	e.slotsMu.Unlock()

	ref := e.referenceStateFor(e.cfg.Asset)
	oracle := mathkernel.OracleBasis{Beta: e.cfg.Model.OracleBeta, DeltaOracleS: e.cfg.Model.OracleDeltaS}
	market := state.NewMarketState(info, ref, oracle)

	strategyRisk := risk.NewStrategyRiskManager(risk.StrategyLimits{
		CooldownMs:         e.cfg.Risk.StrategyCooldownMs,
		MaxOrdersPerMarket: e.cfg.Risk.MaxOrdersPerMarket,
		MaxPositionUSD:     e.cfg.Risk.MaxPositionPerMarket,
		MaxSizeFrac:        e.cfg.Risk.MaxStrategySizeFrac,
	}, e.cfg.Risk.BankrollUSD, e.riskMgr)

	procCfg := pipeline.LiveConfig()
	if e.cfg.DryRun {
		procCfg = pipeline.BacktestConfig()
	}
	proc := pipeline.NewProcessor(procCfg, strategyRisk)

	runner := NewRunner(market, proc, strategyRisk, e.enabledStrategies(), e.logger)

	// The runner stops 10 s after the market's scheduled end, whether or not
	// the feed is still delivering events.
	ctx, cancel := context.WithDeadline(e.ctx, time.UnixMilli(info.EndMs+10_000))
	slot := &marketSlot{runner: runner, cancel: cancel, info: info}

	e.slotsMu.Lock()
	e.slots[info.Slug] = slot
	telemetry.SetMarketsActive(len(e.slots))
	e.slotsMu.Unlock()

	events, err := e.feed.Subscribe(ctx, info)
	if err != nil {
		e.logger.Error("failed to subscribe feed", "market", info.Slug, "error", err)
		cancel()
		e.slotsMu.Lock()
		delete(e.slots, info.Slug)
		telemetry.SetMarketsActive(len(e.slots))
		e.slotsMu.Unlock()
		return
	}

	rec, err := telemetry.NewRecorder(e.cfg.Telemetry.LogDir, info, e.sink, e.logger)
	if err != nil {
		e.logger.Error("failed to open telemetry recorder", "market", info.Slug, "error", err)
		cancel()
		e.slotsMu.Lock()
		delete(e.slots, info.Slug)
		telemetry.SetMarketsActive(len(e.slots))
		e.slotsMu.Unlock()
		return
	}
	slot.recorder = rec

	ackCh := make(chan types.InboundEvent, 64)
	merged := mergeInboundEvents(ctx, events, ackCh)
	gatewaySink := gatewaySink{gw: e.gateway, ctx: ctx, ackCh: ackCh, next: rec, logger: e.logger}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		runner.Run(ctx, merged, gatewaySink)
		e.settleAndCleanup(slot, market, strategyRisk)
	}()

	e.logger.Info("market started", "slug", info.Slug, "strike", info.Strike, "end_ms", info.EndMs)
}

// enabledStrategies returns the strategy set the config toggles permit.
func (e *Engine) enabledStrategies() []strategy.Strategy {
	var out []strategy.Strategy
	if e.cfg.Strategies.LatencyArb {
		out = append(out, strategy.LatencyArb{})
	}
	if e.cfg.Strategies.CertaintyCapture {
		out = append(out, strategy.CertaintyCapture{})
	}
	if e.cfg.Strategies.ConvexityFade {
		out = append(out, strategy.ConvexityFade{})
	}
	if e.cfg.Strategies.CrossTimeframe {
		out = append(out, strategy.CrossTimeframe{})
	}
	if e.cfg.Strategies.StrikeMisalign {
		out = append(out, strategy.StrikeMisalign{})
	}
	if e.cfg.Strategies.LPExtreme {
		out = append(out, strategy.LPExtreme{})
	}
	return out
}

func (e *Engine) settleAndCleanup(slot *marketSlot, market *state.MarketState, strategyRisk *risk.StrategyRiskManager) {
	outcome := types.Up
	if market.Reference.Price < market.Info.Strike {
		outcome = types.Down
	}
	pnl := slot.runner.Settle(outcome)

	if slot.recorder != nil {
		if err := slot.recorder.Close(outcome, pnl); err != nil {
			e.logger.Warn("failed to close telemetry recorder", "market", slot.info.Slug, "error", err)
		}
	}
	telemetry.SetMarketGrossPnL(slot.info.Slug, pnl)

	cancelCtx, cancelCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := e.gateway.CancelAll(cancelCtx, slot.info.Slug); err != nil {
		e.logger.Warn("failed to cancel resting orders on settlement", "market", slot.info.Slug, "error", err)
	}
	cancelCancel()

	e.riskMgr.Report(risk.PositionReport{
		MarketID:      slot.info.Slug,
		ExposureUSD:   market.Position.Size * market.Position.AvgPrice,
		RealizedPnL:   pnl,
		UnrealizedPnL: 0,
		Timestamp:     time.Now(),
	})

	e.slotsMu.Lock()
	delete(e.slots, slot.info.Slug)
	telemetry.SetMarketsActive(len(e.slots))
	e.slotsMu.Unlock()
	e.riskMgr.RemoveMarket(slot.info.Slug)
}

// KillNotifier is implemented by sinks that also want kill-switch trips —
// these arrive from the risk manager, not through the pipeline, so they
// need their own optional interface just like FillRecorder.
type KillNotifier interface {
	BroadcastKill(marketID, reason string)
}

func (e *Engine) handleKillSignal(kill risk.KillSignal) {
	e.logger.Error("KILL SIGNAL received", "market", kill.MarketID, "reason", kill.Reason)
	telemetry.IncCircuitBreakerTrip()
	if n, ok := e.sink.(KillNotifier); ok {
		n.BroadcastKill(kill.MarketID, kill.Reason)
	}

	e.slotsMu.RLock()
	defer e.slotsMu.RUnlock()

	if kill.MarketID == "" {
		for _, slot := range e.slots {
			slot.cancel()
		}
		cancelCtx, cancelCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelCancel()
		if err := e.gateway.CancelAll(cancelCtx, ""); err != nil {
			e.logger.Error("failed to cancel all orders", "error", err)
		}
		return
	}
	if slot, ok := e.slots[kill.MarketID]; ok {
		slot.cancel()
		cancelCtx, cancelCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelCancel()
		if err := e.gateway.CancelAll(cancelCtx, kill.MarketID); err != nil {
			e.logger.Error("failed to cancel market orders", "market", kill.MarketID, "error", err)
		}
	}
}

// gatewaySink adapts the venue Gateway into a pipeline.Sink: every
// dispatched order is placed against the venue, and the resulting ack is
// folded back onto the market's merged event stream as an EventOrderAck so
// Runner.onOrderAck can attribute the fill to the strategy and side that
// produced it.
type gatewaySink struct {
	gw     Gateway
	ctx    context.Context
	ackCh  chan<- types.InboundEvent
	next   pipeline.Sink
	logger *slog.Logger
}

func (s gatewaySink) OnSignal(sig types.Signal) {
	if s.next != nil {
		s.next.OnSignal(sig)
	}
}

// OnFill satisfies FillRecorder by delegating to next if it also records
// fills (the telemetry recorder does; the dashboard's raw event sink does
// not have to).
func (s gatewaySink) OnFill(order types.Order, ack types.OrderAck) {
	if rec, ok := s.next.(FillRecorder); ok {
		rec.OnFill(order, ack)
	}
}

func (s gatewaySink) OnOrder(order types.Order) {
	if s.next != nil {
		s.next.OnOrder(order)
	}
	ack, err := s.gw.PlaceOrder(s.ctx, order)
	if err != nil {
		s.logger.Error("order placement failed", "order_id", order.ID, "error", err)
		return
	}
	select {
	case s.ackCh <- types.InboundEvent{Kind: types.EventOrderAck, OrderAck: ack}:
	case <-s.ctx.Done():
	default:
		s.logger.Warn("ack channel full, dropping order ack", "order_id", order.ID)
	}
}

// mergeInboundEvents fans feed and gateway-ack events onto one channel the
// runner consumes. Each source goroutine exits on ctx cancellation; the
// output channel closes once both have exited.
func mergeInboundEvents(ctx context.Context, feed <-chan types.InboundEvent, acks <-chan types.InboundEvent) <-chan types.InboundEvent {
	out := make(chan types.InboundEvent, 256)
	var wg sync.WaitGroup
	wg.Add(2)

	forward := func(in <-chan types.InboundEvent) {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- evt:
				case <-ctx.Done():
					return
				}
			}
		}
	}

	go forward(feed)
	go forward(acks)
	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}
