package plugin

import "github.com/web3guy0/polyforge/models"

// Strategy is the callback boundary a host-loaded plugin implements. The
// engine calls these in lifecycle order for exactly one backtest run:
// OnInit once, OnStart once, OnBar once per bar batch, OnEnd once. A
// Strategy must not retain the Bar slice passed to OnBar past the call (it
// is the caller's batch slice, not a copy).
type Strategy interface {
	// OnInit receives the resolved host configuration before any bar is
	// processed. Implementations typically unmarshal HostParams.StrategyParams
	// into their own config type here.
	OnInit(host HostParams) error

	// OnStart fires once cash and positions are initialized but before the
	// first bar is delivered.
	OnStart() error

	// OnBar delivers the bars that share the current timestamp, in the
	// order the batch was built (not reordered to HostParams.Symbols), and
	// returns zero or more signals to submit.
	OnBar(bars []models.Bar) ([]models.Signal, error)

	// OnEnd fires once after the last bar has been processed. Instructions
	// still pending at that point are not drained.
	OnEnd() error
}

// NoopStrategy is a Strategy that never trades, useful as a host default and
// in tests that only exercise the engine's bar-loop mechanics.
type NoopStrategy struct{}

func (NoopStrategy) OnInit(HostParams) error                       { return nil }
func (NoopStrategy) OnStart() error                                { return nil }
func (NoopStrategy) OnBar([]models.Bar) ([]models.Signal, error)   { return nil, nil }
func (NoopStrategy) OnEnd() error                                  { return nil }
