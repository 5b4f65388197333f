// Package plugin defines the boundary between the backtest engine and a
// host-loaded strategy: the HostParams configuration the manifest carries,
// the Strategy interface the engine calls into bar-by-bar, and the
// Signal/Order instructions a strategy hands back.
//
// The dynamic-library / interpreter loading mechanism that would resolve a
// manifest entry into a concrete Strategy is out of scope (spec.md §1) — this
// package only defines the stable shape both sides agree on.
package plugin

// TimespanUnit is the unit a symbol's bar timespan is expressed in.
type TimespanUnit string

const (
	Second TimespanUnit = "second"
	Minute TimespanUnit = "minute"
	Hour   TimespanUnit = "hour"
	Day    TimespanUnit = "day"
	Week   TimespanUnit = "week"
	Month  TimespanUnit = "month"
	Year   TimespanUnit = "year"
)

// SlippageModel selects how a filled_at_ns delay is computed for a newly
// scheduled instruction.
type SlippageModel string

const (
	SlippageNone            SlippageModel = "none"
	SlippageFixed           SlippageModel = "fixed"
	SlippagePercentage      SlippageModel = "percentage"
	SlippageVolumeBased     SlippageModel = "volume_based"
	SlippageTimeBased       SlippageModel = "time_based"
	SlippageTimeVolumeBased SlippageModel = "time_volume_based"
)

// CommissionType selects how Exchange.CalculateCommission prices a fill.
type CommissionType string

const (
	CommissionPerShare   CommissionType = "per_share"
	CommissionPercentage CommissionType = "percentage"
	CommissionFlat       CommissionType = "flat"
)

// PositionSizingMethod selects how sizing.SignalPositionSize turns a signal
// into a quantity.
type PositionSizingMethod string

const (
	SizingFixedPercentage PositionSizingMethod = "fixed_percentage"
	SizingFixedDollar     PositionSizingMethod = "fixed_dollar"
	SizingEqualWeight     PositionSizingMethod = "equal_weight"
)

// OptimizationMode is carried through for collaborators (grid/bayesian/
// genetic parameter search); the core engine itself ignores it.
type OptimizationMode string

const (
	OptimizationNone        OptimizationMode = "none"
	OptimizationGridSearch  OptimizationMode = "grid_search"
	OptimizationBayesian    OptimizationMode = "bayesian"
	OptimizationGenetic     OptimizationMode = "genetic"
)

// Symbol describes one tradable instrument configured for a backtest.
type Symbol struct {
	Symbol       string
	Primary      bool
	Timespan     int64
	TimespanUnit TimespanUnit
}

// HostParams is the fully resolved host configuration a manifest supplies,
// covering every field the core engine's components (Exchange, sizing,
// Executor) consult. Optional numeric/string fields are pointers so "unset"
// is distinguishable from "zero"/"empty".
type HostParams struct {
	MarketHoursOnly       bool
	AllowFractionalShares bool
	MonteCarloRuns        int
	MonteCarloSeed        int
	InitialCapitalDollars int64

	MaxLeverage *float64

	Commission     *float64
	CommissionType *CommissionType

	// SlippageSeconds is the "slippage" manifest field: the base delay, in
	// seconds, slippage models scale from.
	SlippageSeconds *float64
	SlippageModel   *SlippageModel

	Tax *float64

	Currency string
	Timezone string

	OptimizationMode OptimizationMode

	BacktestStartDatetime string
	BacktestEndDatetime   string

	Symbols []Symbol

	FillMaxPctOfVolume *float64
	AllowShortSelling  *bool
	InitialMarginPct   *float64

	PositionSizingMethod *PositionSizingMethod
	PositionSizeValue    *float64
	MaxPositionSize      *float64

	UseStopLoss   *bool
	StopLossPct   *float64
	UseTakeProfit *bool
	TakeProfitPct *float64

	// RiskFreeRate and RollingWindowBars are SPEC_FULL additions: reserved
	// for the rolling Sharpe/Sortino/Calmar/VaR/CVaR computation that
	// spec.md §4.6/§9 leaves as a documented future extension. Neither is
	// consulted by this engine's EquityCalculator today.
	RiskFreeRate      *float64
	RollingWindowBars *int

	// StrategyParams is the opaque JSON sub-document forwarded verbatim to
	// the plugin.
	StrategyParams []byte
}

// PrimarySymbol returns the one symbol marked primary, whose bar stream
// drives the engine's main loop.
func (h HostParams) PrimarySymbol() (Symbol, bool) {
	for _, s := range h.Symbols {
		if s.Primary {
			return s, true
		}
	}
	return Symbol{}, false
}

// MaxLeverageOrDefault returns the configured max leverage, defaulting to
// 1.0 (no leverage) when unset.
func (h HostParams) MaxLeverageOrDefault() float64 {
	if h.MaxLeverage == nil {
		return 1.0
	}
	return *h.MaxLeverage
}

// InitialMarginPctOrDefault returns the configured initial margin
// percentage, defaulting to 1.0 (fully cash-margined) when unset.
func (h HostParams) InitialMarginPctOrDefault() float64 {
	if h.InitialMarginPct == nil {
		return 1.0
	}
	return *h.InitialMarginPct
}

// AllowShortSellingOrDefault returns whether short selling is permitted,
// defaulting to true when unset (matches original_source's
// value_or(true)).
func (h HostParams) AllowShortSellingOrDefault() bool {
	if h.AllowShortSelling == nil {
		return true
	}
	return *h.AllowShortSelling
}
