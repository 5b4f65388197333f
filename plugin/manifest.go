package plugin

import (
	"encoding/json"
	"fmt"
)

// Manifest is the on-disk JSON document a host backtest run is configured
// from. Field names mirror the manifest's wire vocabulary; Resolve applies
// defaults and allowed-value checks to produce a HostParams the engine can
// consume.
type Manifest struct {
	MarketHoursOnly       *bool            `json:"market_hours_only"`
	AllowFractionalShares *bool            `json:"allow_fractional_shares"`
	MonteCarloRuns        *int             `json:"monte_carlo_runs"`
	MonteCarloSeed        *int             `json:"monte_carlo_seed"`
	InitialCapital        int64            `json:"initial_capital"`
	BacktestStartDatetime string           `json:"backtest_start_datetime"`
	BacktestEndDatetime   string           `json:"backtest_end_datetime"`

	MaxLeverage    *float64        `json:"max_leverage"`
	Commission     *float64        `json:"commission"`
	CommissionType *string         `json:"commission_type"`
	Slippage       *float64        `json:"slippage"`
	SlippageModel  *string         `json:"slippage_model"`
	Tax            *float64        `json:"tax"`

	Currency         string `json:"currency"`
	Timezone         string `json:"timezone"`
	OptimizationMode string `json:"optimization_mode"`

	Symbols []ManifestSymbol `json:"symbols"`

	FillMaxPctOfVolume *float64 `json:"fill_max_pct_of_volume"`
	AllowShortSelling  *bool    `json:"allow_short_selling"`
	InitialMarginPct   *float64 `json:"initial_margin_pct"`

	PositionSizingMethod *string  `json:"position_sizing_method"`
	PositionSizeValue    *float64 `json:"position_size_value"`
	MaxPositionSize      *float64 `json:"max_position_size"`

	UseStopLoss   *bool    `json:"use_stop_loss"`
	StopLossPct   *float64 `json:"stop_loss_pct"`
	UseTakeProfit *bool    `json:"use_take_profit"`
	TakeProfitPct *float64 `json:"take_profit_pct"`

	RiskFreeRate      *float64 `json:"risk_free_rate"`
	RollingWindowBars *int     `json:"rolling_window_bars"`

	StrategyParams json.RawMessage `json:"strategy_params"`
}

// ManifestSymbol is one entry of the manifest's "symbols" array.
type ManifestSymbol struct {
	Symbol       string `json:"symbol"`
	Primary      bool   `json:"primary"`
	Timespan     int64  `json:"timespan"`
	TimespanUnit string `json:"timespan_unit"`
}

var allowedTimespanUnits = map[string]bool{
	string(Second): true, string(Minute): true, string(Hour): true,
	string(Day): true, string(Week): true, string(Month): true, string(Year): true,
}

var allowedCommissionTypes = map[string]bool{
	string(CommissionPerShare): true, string(CommissionPercentage): true, string(CommissionFlat): true,
}

var allowedSlippageModels = map[string]bool{
	string(SlippageNone): true, string(SlippageFixed): true, string(SlippagePercentage): true,
	string(SlippageVolumeBased): true, string(SlippageTimeBased): true, string(SlippageTimeVolumeBased): true,
}

var allowedOptimizationModes = map[string]bool{
	string(OptimizationNone): true, string(OptimizationGridSearch): true,
	string(OptimizationBayesian): true, string(OptimizationGenetic): true,
}

// ParseManifest decodes a manifest JSON document and resolves it into
// HostParams, rejecting unknown enum values and missing required fields.
// Mirrors the ParserOptions<T> required/allowed-values/fallback discipline
// the manifest format was modeled on.
func ParseManifest(data []byte) (HostParams, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return HostParams{}, fmt.Errorf("plugin: decode manifest: %w", err)
	}
	return m.Resolve()
}

// Resolve validates the manifest and produces the HostParams the engine's
// components consume. Optional enum fields default to their most permissive
// value when absent; required fields missing from the document are errors.
func (m Manifest) Resolve() (HostParams, error) {
	if m.InitialCapital <= 0 {
		return HostParams{}, fmt.Errorf("plugin: manifest requires initial_capital > 0")
	}
	if m.BacktestStartDatetime == "" || m.BacktestEndDatetime == "" {
		return HostParams{}, fmt.Errorf("plugin: manifest requires backtest_start_datetime and backtest_end_datetime")
	}
	if len(m.Symbols) == 0 {
		return HostParams{}, fmt.Errorf("plugin: manifest requires at least one symbol")
	}

	if m.Currency == "" {
		m.Currency = "USD"
	} else if m.Currency != "USD" {
		return HostParams{}, fmt.Errorf("plugin: unsupported currency %q (only USD)", m.Currency)
	}

	if m.Timezone == "" {
		m.Timezone = "America/New_York"
	} else if m.Timezone != "America/New_York" {
		return HostParams{}, fmt.Errorf("plugin: unsupported timezone %q (only America/New_York)", m.Timezone)
	}

	if m.OptimizationMode == "" {
		m.OptimizationMode = string(OptimizationNone)
	} else if !allowedOptimizationModes[m.OptimizationMode] {
		return HostParams{}, fmt.Errorf("plugin: unknown optimization_mode %q", m.OptimizationMode)
	}

	if m.CommissionType != nil && !allowedCommissionTypes[*m.CommissionType] {
		return HostParams{}, fmt.Errorf("plugin: unknown commission_type %q", *m.CommissionType)
	}
	if m.SlippageModel != nil && !allowedSlippageModels[*m.SlippageModel] {
		return HostParams{}, fmt.Errorf("plugin: unknown slippage_model %q", *m.SlippageModel)
	}
	if m.PositionSizingMethod != nil {
		switch PositionSizingMethod(*m.PositionSizingMethod) {
		case SizingFixedPercentage, SizingFixedDollar, SizingEqualWeight:
		default:
			return HostParams{}, fmt.Errorf("plugin: unknown position_sizing_method %q", *m.PositionSizingMethod)
		}
	}

	symbols := make([]Symbol, 0, len(m.Symbols))
	primaryCount := 0
	for _, s := range m.Symbols {
		if s.Symbol == "" {
			return HostParams{}, fmt.Errorf("plugin: manifest symbol entry missing symbol name")
		}
		if !allowedTimespanUnits[s.TimespanUnit] {
			return HostParams{}, fmt.Errorf("plugin: symbol %q: unknown timespan_unit %q", s.Symbol, s.TimespanUnit)
		}
		if s.Primary {
			primaryCount++
		}
		symbols = append(symbols, Symbol{
			Symbol:       s.Symbol,
			Primary:      s.Primary,
			Timespan:     s.Timespan,
			TimespanUnit: TimespanUnit(s.TimespanUnit),
		})
	}
	if primaryCount != 1 {
		return HostParams{}, fmt.Errorf("plugin: manifest requires exactly one primary symbol, found %d", primaryCount)
	}

	host := HostParams{
		MarketHoursOnly:       boolOr(m.MarketHoursOnly, false),
		AllowFractionalShares: boolOr(m.AllowFractionalShares, false),
		MonteCarloRuns:        intOr(m.MonteCarloRuns, 0),
		MonteCarloSeed:        intOr(m.MonteCarloSeed, 0),
		InitialCapitalDollars: m.InitialCapital,
		MaxLeverage:           m.MaxLeverage,
		Commission:            m.Commission,
		SlippageSeconds:       m.Slippage,
		Tax:                   m.Tax,
		Currency:              m.Currency,
		Timezone:              m.Timezone,
		OptimizationMode:      OptimizationMode(m.OptimizationMode),
		BacktestStartDatetime: m.BacktestStartDatetime,
		BacktestEndDatetime:   m.BacktestEndDatetime,
		Symbols:               symbols,
		FillMaxPctOfVolume:    m.FillMaxPctOfVolume,
		AllowShortSelling:     m.AllowShortSelling,
		InitialMarginPct:      m.InitialMarginPct,
		PositionSizeValue:     m.PositionSizeValue,
		MaxPositionSize:       m.MaxPositionSize,
		UseStopLoss:           m.UseStopLoss,
		StopLossPct:           m.StopLossPct,
		UseTakeProfit:         m.UseTakeProfit,
		TakeProfitPct:         m.TakeProfitPct,
		RiskFreeRate:          m.RiskFreeRate,
		RollingWindowBars:     m.RollingWindowBars,
		StrategyParams:        []byte(m.StrategyParams),
	}
	if m.CommissionType != nil {
		ct := CommissionType(*m.CommissionType)
		host.CommissionType = &ct
	}
	if m.SlippageModel != nil {
		sm := SlippageModel(*m.SlippageModel)
		host.SlippageModel = &sm
	}
	if m.PositionSizingMethod != nil {
		psm := PositionSizingMethod(*m.PositionSizingMethod)
		host.PositionSizingMethod = &psm
	}
	return host, nil
}

func boolOr(p *bool, fallback bool) bool {
	if p == nil {
		return fallback
	}
	return *p
}

func intOr(p *int, fallback int) int {
	if p == nil {
		return fallback
	}
	return *p
}
