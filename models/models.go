// Package models holds the backtest engine's core data types: the sum types
// for trading instructions (Signal/Order/ExitOrder), the immutable Fill
// record, the mutable Position, and the per-execution EquitySnapshot.
//
// Quantities are decimal.Decimal (teacher convention: a possibly-fractional
// share count must never be a plain float64). Prices and cash are
// money.Money, never decimal.Decimal — the two numeric kinds are never
// silently mixed.
package models

import (
	"github.com/shopspring/decimal"

	"github.com/web3guy0/polyforge/money"
)

// Action is the trade direction of an Order, Signal, or Fill.
type Action string

const (
	Buy  Action = "BUY"
	Sell Action = "SELL"
)

// OrderType distinguishes a market order from a limit order.
type OrderType string

const (
	Market OrderType = "MARKET"
	Limit  OrderType = "LIMIT"
)

// Bar is one OHLCV candle for a symbol at a point in time.
//
// Invariant: bars for a given symbol arrive in non-decreasing UnixTSNanos
// order; Volume >= 0; Low <= Open, Close <= High.
type Bar struct {
	Symbol      string
	UnixTSNanos int64
	Open        money.Money
	High        money.Money
	Low         money.Money
	Close       money.Money
	Volume      int64
}

// Position is the engine's current exposure in one symbol. Quantity may be
// negative (short). AveragePrice is the volume-weighted mean entry price of
// the position's constituent fills while the position's sign hasn't
// changed; crossing through zero resets the averaging basis. UsedMargin is
// the margin committed against this position's opening fills, released
// proportionally as the position is reduced — the authoritative figure
// EquityCalculator.AvailableMargin sums across open positions.
type Position struct {
	Symbol       string
	Quantity     decimal.Decimal
	AveragePrice money.Money
	UsedMargin   money.Money
}

// IsFlat reports whether the position carries no exposure. Positions at
// exactly zero quantity must not be present in State.Positions.
func (p Position) IsFlat() bool {
	return p.Quantity.IsZero()
}

// Fill is an immutable, uniquely identified record of an executed trade
// fragment. Fills are append-only.
type Fill struct {
	UUID           string
	Symbol         string
	Action         Action
	Quantity       decimal.Decimal
	Price          money.Money
	CreatedAtNanos int64
}

// Order is a fully specified trade directive. An exit order
// (IsExitOrder=true) references, via SourceFillUUID, the fill that opened
// the position it closes — a weak reference by opaque id, never a pointer,
// so the source fill can be checked for liveness against State's active-fill
// sets without the two ever owning each other.
type Order struct {
	Symbol          string
	Action          Action
	Quantity        decimal.Decimal
	OrderType       OrderType
	LimitPrice      *money.Money
	StopLossPrice   *money.Money
	TakeProfitPrice *money.Money
	Leverage        *float64
	CreatedAtNanos  int64
	FilledAtNanos   int64
	IsExitOrder     bool
	SourceFillUUID  string
}

// IsBuy reports whether the order is a BUY.
func (o Order) IsBuy() bool { return o.Action == Buy }

// IsSell reports whether the order is a SELL.
func (o Order) IsSell() bool { return o.Action == Sell }

// IsLimitOrder reports whether the order carries a limit price.
func (o Order) IsLimitOrder() bool { return o.OrderType == Limit && o.LimitPrice != nil }

// Signal is a direction-only trading intent; the engine derives quantity
// and protective prices from host parameters before execution.
type Signal struct {
	Symbol string
	Action Action
}

// ExitOrderKind tags whether an armed ExitOrder is a stop-loss or a
// take-profit.
type ExitOrderKind string

const (
	ExitStopLoss   ExitOrderKind = "STOP_LOSS"
	ExitTakeProfit ExitOrderKind = "TAKE_PROFIT"
)

// ExitOrder is an auto-triggering protective order, armed on the bar that
// opens a position and disarmed when it triggers or its source fill is
// consumed by another close.
type ExitOrder struct {
	Kind            ExitOrderKind
	Symbol          string
	TriggerQuantity decimal.Decimal
	TriggerPrice    money.Money
	SourceFillUUID  string
	IsShort         bool
}

// EquitySnapshot is appended once per resolved execution. The rolling risk
// metrics are carried as documented fields for forward compatibility but are
// not computed by this engine (see DESIGN.md) — they are always zero until a
// rolling-window configuration is specified.
type EquitySnapshot struct {
	TimestampNanos int64
	Equity         money.Money
	Return         float64
	MaxDrawdown    float64

	SharpeRatio        float64
	SharpeRatioRolling float64

	SortinoRatio        float64
	SortinoRatioRolling float64

	CalmarRatio        float64
	CalmarRatioRolling float64

	TailRatio        float64
	TailRatioRolling float64

	ValueAtRisk        float64
	ValueAtRiskRolling float64

	ConditionalValueAtRisk        float64
	ConditionalValueAtRiskRolling float64
}
