// Package engine drives a single deterministic backtest: it owns the three
// priority queues (pending instructions, armed stop-losses, armed
// take-profits), the bar-by-bar main loop, and the plugin lifecycle calls.
// Grounded on BackTestEngine::run in original_source's back_test_engine.cpp
// and restructured in the logged style of the teacher's core/engine.go,
// without that engine's mutex (one Engine serves one single-threaded run).
package engine

import (
	"container/heap"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/polyforge/equitycalc"
	"github.com/web3guy0/polyforge/exchange"
	"github.com/web3guy0/polyforge/executor"
	"github.com/web3guy0/polyforge/models"
	"github.com/web3guy0/polyforge/money"
	"github.com/web3guy0/polyforge/plugin"
	"github.com/web3guy0/polyforge/sizing"
	"github.com/web3guy0/polyforge/state"
)

// Report is the finalized output of one completed backtest run.
type Report struct {
	Fills          []models.Fill
	EquityCurve    []models.EquitySnapshot
	FinalEquity    money.Money
	TotalReturn    float64
	MaxDrawdown    float64
	DeclinedOrders int
}

// Engine runs exactly one backtest for one Strategy against one host
// configuration. It is not safe for concurrent use by multiple goroutines;
// runner.Pool gives each parallel backtest its own Engine and State.
type Engine struct {
	host           plugin.HostParams
	strategy       plugin.Strategy
	state          *state.State
	exec           *executor.Executor
	initialCapital money.Money

	instructions instructionHeap
	stopLosses   exitHeap
	takeProfits  exitHeap
	seq          int

	declinedOrders int
}

// New constructs an Engine for one backtest run. Cash starts at
// host.InitialCapitalDollars.
func New(host plugin.HostParams, strategy plugin.Strategy) *Engine {
	initialCapital := money.FromDollars(float64(host.InitialCapitalDollars))
	return &Engine{
		host:           host,
		strategy:       strategy,
		state:          state.New(initialCapital),
		exec:           executor.New(),
		initialCapital: initialCapital,
	}
}

// State exposes the engine's mutable state for introspection (e.g. by
// storage.ReportStore or a notify collaborator) after a run completes.
func (e *Engine) State() *state.State { return e.state }

// Run executes the full lifecycle: OnInit, OnStart, one OnBar call per
// non-empty bar batch (a batch groups same-timestamp bars across configured
// symbols; the engine passes each batch in the order the caller built it),
// draining pending instructions and exit orders between bars, then OnEnd.
// Instructions scheduled past the last batch's timestamp are not executed.
// Returns the finalized report.
func (e *Engine) Run(batches [][]models.Bar) (*Report, error) {
	if err := e.strategy.OnInit(e.host); err != nil {
		return nil, fmt.Errorf("engine: plugin OnInit failed: %w", err)
	}
	if err := e.strategy.OnStart(); err != nil {
		return nil, fmt.Errorf("engine: plugin OnStart failed: %w", err)
	}

	for _, batch := range batches {
		if len(batch) == 0 {
			continue
		}
		if err := e.processBatch(batch); err != nil {
			return nil, err
		}
	}

	if err := e.strategy.OnEnd(); err != nil {
		return nil, fmt.Errorf("engine: plugin OnEnd failed: %w", err)
	}

	return e.finalize(), nil
}

func (e *Engine) processBatch(batch []models.Bar) error {
	tsNanos := batch[0].UnixTSNanos

	// Step 1: a bar outside market hours is skipped entirely — no state
	// mutation, no plugin call.
	if e.host.MarketHoursOnly && !exchange.IsWithinMarketHourRestrictions(e.host, tsNanos) {
		return nil
	}

	// Step 2: advance the current bar snapshot.
	for _, bar := range batch {
		e.state.UpdateBar(bar)
	}

	// Step 3: drain instructions scheduled by earlier bars.
	if err := e.drainInstructions(tsNanos); err != nil {
		return err
	}

	// Step 4: call the plugin with the now-current bar.
	signals, err := e.strategy.OnBar(batch)
	if err != nil {
		return fmt.Errorf("engine: plugin OnBar failed: %w", err)
	}

	// Step 5: schedule whatever the plugin returned.
	for _, signal := range signals {
		e.scheduleSignal(signal, tsNanos)
	}

	// Steps 6-7: drain the stop-loss heap, then the take-profit heap.
	return e.drainExitHeaps(batch)
}

// scheduleSignal sizes a signal into an order and pushes it onto the
// instruction heap with a slippage-delayed fill time.
func (e *Engine) scheduleSignal(signal models.Signal, tsNanos int64) {
	price, ok := e.state.CurrentPrice(signal.Symbol)
	if !ok {
		log.Warn().Str("symbol", signal.Symbol).Msg("engine: dropping signal, no current price")
		return
	}
	equity := equitycalc.CalculateEquity(e.state)

	quantity := sizing.SignalPositionSize(e.host, equity, price)
	if quantity.LessThanOrEqual(decimal.Zero) {
		return
	}

	isShort := signal.Action == models.Sell
	var stopLoss, takeProfit *money.Money
	if sl, ok := sizing.SignalStopLossPrice(e.host, price, isShort); ok {
		stopLoss = &sl
	}
	if tp, ok := sizing.SignalTakeProfitPrice(e.host, price, isShort); ok {
		takeProfit = &tp
	}

	order := executor.SignalToOrder(signal, quantity, stopLoss, takeProfit, tsNanos)
	volume, _ := e.state.CurrentVolume(signal.Symbol)
	e.scheduleOrder(order, tsNanos+slippageDelayNanos(e.host, volume))
}

// scheduleOrder pushes a fully specified order onto the instruction heap
// with the given fill time. Shared by scheduleSignal and by anything
// driving the engine with an already-built Order (e.g. a continuation order
// or a test exercising exact quantities).
func (e *Engine) scheduleOrder(order models.Order, filledAtNanos int64) {
	order.FilledAtNanos = filledAtNanos
	e.seq++
	heap.Push(&e.instructions, instructionEntry{order: order, seq: e.seq})
}

// drainInstructions resolves every pending order whose scheduled fill time
// has arrived as of the current bar.
func (e *Engine) drainInstructions(tsNanos int64) error {
	for e.instructions.Len() > 0 && e.instructions[0].order.FilledAtNanos <= tsNanos {
		entry := heap.Pop(&e.instructions).(instructionEntry)
		if err := e.resolveOrder(entry.order); err != nil {
			return err
		}
	}
	return nil
}

// resolveOrder executes one order, appending an equity snapshot for the
// resulting fill, arming any exit orders it creates and re-scheduling any
// unfilled remainder.
func (e *Engine) resolveOrder(order models.Order) error {
	result, err := e.exec.ExecuteOrder(order, e.state, e.host)
	if err != nil {
		return fmt.Errorf("engine: invariant violation resolving order: %w", err)
	}
	if result.Declined {
		e.declinedOrders++
		log.Debug().Str("symbol", order.Symbol).Str("reason", string(result.DeclineReason)).Msg("engine: order declined")
		return nil
	}

	e.state.AppendEquitySnapshot(equitycalc.Snapshot(e.state, e.state.CurrentTimestampNanos(), e.initialCapital))

	for _, exit := range result.ExitOrders {
		e.seq++
		if exit.Kind == models.ExitStopLoss {
			heap.Push(&e.stopLosses, exitEntry{order: exit, seq: e.seq})
		} else {
			heap.Push(&e.takeProfits, exitEntry{order: exit, seq: e.seq})
		}
	}

	if result.ContinuationOrder != nil {
		e.scheduleOrder(*result.ContinuationOrder, result.ContinuationOrder.FilledAtNanos)
	}
	return nil
}

// drainExitHeaps scans the armed stop-loss and take-profit heaps for
// triggers crossed by the current bar's high/low range and resolves the
// corresponding closing market orders immediately, without slippage; they
// fill at the bar's close, not at the trigger price.
func (e *Engine) drainExitHeaps(batch []models.Bar) error {
	barsBySymbol := make(map[string]models.Bar, len(batch))
	for _, b := range batch {
		barsBySymbol[b.Symbol] = b
	}

	if err := e.drainOneExitHeap(&e.stopLosses, barsBySymbol); err != nil {
		return err
	}
	return e.drainOneExitHeap(&e.takeProfits, barsBySymbol)
}

func (e *Engine) drainOneExitHeap(h *exitHeap, barsBySymbol map[string]models.Bar) error {
	remaining := (*h)[:0]
	triggered := make([]exitEntry, 0)

	for _, entry := range *h {
		exit := entry.order
		bar, ok := barsBySymbol[exit.Symbol]
		if !ok {
			remaining = append(remaining, entry)
			continue
		}
		if !e.state.IsSourceFillActive(exit.SourceFillUUID, exit.IsShort) {
			continue // source fill already fully closed elsewhere; exit order expires unused.
		}
		if exitTriggered(exit, bar) {
			triggered = append(triggered, entry)
		} else {
			remaining = append(remaining, entry)
		}
	}

	*h = remaining
	heap.Init(h)

	for _, entry := range triggered {
		closeAction := models.Sell
		if entry.order.IsShort {
			closeAction = models.Buy
		}
		order := models.Order{
			Symbol:         entry.order.Symbol,
			Action:         closeAction,
			Quantity:       entry.order.TriggerQuantity,
			OrderType:      models.Market,
			FilledAtNanos:  barsBySymbol[entry.order.Symbol].UnixTSNanos,
			IsExitOrder:    true,
			SourceFillUUID: entry.order.SourceFillUUID,
		}
		if err := e.resolveOrder(order); err != nil {
			return err
		}
		// The position segment this source fill protected is now closed;
		// disarm it so any sibling exit order (e.g. the take-profit half of
		// a stop-loss/take-profit pair) expires unused instead of lingering
		// on a flat position.
		if entry.order.IsShort {
			e.state.DisarmSellFill(entry.order.SourceFillUUID)
		} else {
			e.state.DisarmBuyFill(entry.order.SourceFillUUID)
		}
	}
	return nil
}

// exitTriggered reports whether bar's range crossed an exit order's trigger
// price: a long stop-loss or short take-profit fires when the bar trades at
// or below the trigger; a short stop-loss or long take-profit fires at or
// above it.
func exitTriggered(exit models.ExitOrder, bar models.Bar) bool {
	fallTrigger := (exit.Kind == models.ExitStopLoss && !exit.IsShort) ||
		(exit.Kind == models.ExitTakeProfit && exit.IsShort)
	if fallTrigger {
		return bar.Low.LessThanOrEqual(exit.TriggerPrice)
	}
	return bar.High.GreaterThanOrEqual(exit.TriggerPrice)
}

// slippageDelayNanos computes how long after signal generation an order
// should be scheduled to fill, per the manifest's slippage model. Grounded
// on the none/fixed/percentage/volume_based/time_based/time_volume_based
// vocabulary in original_source's manifest.hpp.
func slippageDelayNanos(host plugin.HostParams, volume int64) int64 {
	if host.SlippageModel == nil {
		return 0
	}
	base := 0.0
	if host.SlippageSeconds != nil {
		base = *host.SlippageSeconds
	}

	const nanosPerSecond = 1e9
	switch *host.SlippageModel {
	case plugin.SlippageNone:
		return 0
	case plugin.SlippageFixed:
		return int64(base * nanosPerSecond)
	case plugin.SlippageVolumeBased:
		if volume <= 0 {
			return int64(base * nanosPerSecond)
		}
		// Thinner bars delay the fill more: scale inversely with volume,
		// normalized against a reference 1,000,000-share bar.
		factor := 1_000_000.0 / float64(volume)
		return int64(base * factor * nanosPerSecond)
	case plugin.SlippagePercentage, plugin.SlippageTimeBased, plugin.SlippageTimeVolumeBased:
		return int64(base * nanosPerSecond)
	default:
		return 0
	}
}

func (e *Engine) finalize() *Report {
	curve := e.state.EquityCurve()
	finalEquity := equitycalc.CalculateEquity(e.state)
	totalReturn := equitycalc.CalculateReturn(e.initialCapital, finalEquity)

	return &Report{
		Fills:          e.state.Fills(),
		EquityCurve:    curve,
		FinalEquity:    finalEquity,
		TotalReturn:    totalReturn,
		MaxDrawdown:    equitycalc.CalculateMaxDrawdown(curve),
		DeclinedOrders: e.declinedOrders,
	}
}
