// Package executor implements order execution: turning a validated Order
// into a Fill against the current bar, updating position and cash, and
// arming any protective exit orders the fill creates. Grounded primarily on
// Executor::execute_order in original_source's executor.cpp, restructured
// in the logged, struct-method style of the teacher's execution/executor.go.
// The Executor itself holds no lock; State guards its own fields.
package executor

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/polyforge/equitycalc"
	"github.com/web3guy0/polyforge/exchange"
	"github.com/web3guy0/polyforge/models"
	"github.com/web3guy0/polyforge/money"
	"github.com/web3guy0/polyforge/plugin"
	"github.com/web3guy0/polyforge/state"
)

// DeclineReason explains why an order produced no fill without that being a
// fatal engine error — the execution-declined error kind.
type DeclineReason string

const (
	DeclineNone               DeclineReason = ""
	DeclineNoVolume           DeclineReason = "no_fillable_volume"
	DeclineLeverageOutOfRange DeclineReason = "leverage_out_of_range"
	DeclineShortNotAllowed    DeclineReason = "short_selling_not_allowed"
	DeclineInsufficientMargin DeclineReason = "insufficient_margin"
	DeclineZeroQuantity       DeclineReason = "zero_quantity_after_rounding"
)

// Result is everything one ExecuteOrder call produces: the fill (if any),
// any exit orders newly armed by it, and a continuation order carrying the
// unfilled remainder back to the engine's instruction heap.
type Result struct {
	Fill              *models.Fill
	ExitOrders        []models.ExitOrder
	ContinuationOrder *models.Order
	Declined          bool
	DeclineReason     DeclineReason
}

// Executor holds no state of its own; every call is against the State
// passed in. Kept as a struct (rather than free functions) to match the
// teacher's executor shape and to give ExecuteOrder a natural place to hang
// future per-run options.
type Executor struct{}

// New returns a ready Executor.
func New() *Executor {
	return &Executor{}
}

// ExecuteOrder runs the full fill algorithm for order against the current
// bar for its symbol, mutating st in place. A non-nil error is always an
// invariant-violation-fatal condition (e.g. no current bar for the order's
// symbol); a declined order is reported via Result.Declined, not an error.
func (e *Executor) ExecuteOrder(order models.Order, st *state.State, host plugin.HostParams) (Result, error) {
	price, hasPrice := st.CurrentPrice(order.Symbol)
	volume, hasVolume := st.CurrentVolume(order.Symbol)
	if !hasPrice || !hasVolume {
		return Result{}, fmt.Errorf("executor: no current bar for symbol %s", order.Symbol)
	}

	// Step 1: leverage validation.
	leverage := 1.0
	if order.Leverage != nil {
		leverage = *order.Leverage
	}
	if leverage < 1.0 || leverage > host.MaxLeverageOrDefault() {
		log.Warn().Str("symbol", order.Symbol).Float64("leverage", leverage).Msg("executor: order declined, leverage out of range")
		return Result{Declined: true, DeclineReason: DeclineLeverageOutOfRange}, nil
	}

	// Step 1b: short-selling permission.
	if order.IsSell() {
		existing, _ := st.Position(order.Symbol)
		wouldGoShort := existing.Quantity.Sub(order.Quantity).IsNegative()
		if wouldGoShort && !host.AllowShortSellingOrDefault() {
			log.Warn().Str("symbol", order.Symbol).Msg("executor: order declined, short selling not allowed")
			return Result{Declined: true, DeclineReason: DeclineShortNotAllowed}, nil
		}
	}

	// Step 2: fillable quantity, capped by fill_max_pct_of_volume.
	fillable := order.Quantity
	if host.FillMaxPctOfVolume != nil {
		maxFillable := decimal.NewFromInt(volume).Mul(decimal.NewFromFloat(*host.FillMaxPctOfVolume))
		if fillable.GreaterThan(maxFillable) {
			fillable = maxFillable
		}
	}

	if fillable.LessThanOrEqual(decimal.Zero) {
		return Result{Declined: true, DeclineReason: DeclineNoVolume}, nil
	}

	// Step 3: fractional-share flooring.
	if !host.AllowFractionalShares {
		fillable = fillable.Floor()
		if fillable.LessThanOrEqual(decimal.Zero) {
			return Result{Declined: true, DeclineReason: DeclineZeroQuantity}, nil
		}
	}

	remaining := order.Quantity.Sub(fillable)

	// Step 4: fill price.
	fillPrice := price
	if order.IsLimitOrder() {
		fillPrice = *order.LimitPrice
		if order.IsBuy() && price.GreaterThan(fillPrice) {
			return Result{Declined: true, DeclineReason: DeclineNoVolume}, nil
		}
		if order.IsSell() && price.LessThan(fillPrice) {
			return Result{Declined: true, DeclineReason: DeclineNoVolume}, nil
		}
	}

	existingPosition, _ := st.Position(order.Symbol)
	signedFillQty := fillable
	if order.IsSell() {
		signedFillQty = fillable.Neg()
	}

	// Step 5: position-opening quantity — only the portion of the fill that
	// increases the magnitude of exposure consumes margin and arms exits.
	openingQty := positionOpeningQuantity(existingPosition.Quantity, signedFillQty)

	// Step 9 (validated ahead of committing the fill): margin check against
	// the opening portion only.
	commission := exchange.CalculateCommission(host, fillable, fillPrice)
	cashDelta := calculateCashDelta(signedFillQty, fillPrice, commission, host)

	var marginRequired money.Money
	if !openingQty.IsZero() {
		positionValue := fillPrice.MulDecimal(openingQty.Abs())
		marginRequired = money.Max(positionValue.Div(leverage), positionValue.Mul(host.InitialMarginPctOrDefault()))
		available := equitycalc.AvailableMargin(st)
		if marginRequired.Add(commission).GreaterThan(available) {
			log.Warn().Str("symbol", order.Symbol).Msg("executor: order declined, insufficient margin")
			return Result{Declined: true, DeclineReason: DeclineInsufficientMargin}, nil
		}
	}

	fill := models.Fill{
		UUID:           uuid.NewString(),
		Symbol:         order.Symbol,
		Action:         order.Action,
		Quantity:       fillable,
		Price:          fillPrice,
		CreatedAtNanos: order.FilledAtNanos,
	}

	// Step 10: weighted-average position-price update.
	newPosition := updatePosition(existingPosition, order.Symbol, signedFillQty, fillPrice, openingQty, marginRequired)
	st.SetPosition(newPosition)
	st.AddCash(cashDelta)
	st.AppendFill(fill)

	if order.IsBuy() {
		st.ArmBuyFill(fill.UUID)
	} else {
		st.ArmSellFill(fill.UUID)
	}
	if newPosition.IsFlat() {
		st.DisarmSymbolFills(order.Symbol)
	}

	// Step 6: exit-order creation, only for the position-opening portion.
	var exitOrders []models.ExitOrder
	if !openingQty.IsZero() && !order.IsExitOrder {
		exitOrders = createExitOrders(host, order, fill, openingQty)
	}

	// Step 11: partial-fill continuation.
	var continuation *models.Order
	if remaining.GreaterThan(decimal.Zero) {
		cont := order
		cont.Quantity = remaining
		continuation = &cont
	}

	log.Info().
		Str("symbol", order.Symbol).
		Str("action", string(order.Action)).
		Str("quantity", fillable.String()).
		Str("price", fillPrice.String()).
		Msg("executor: order filled")

	return Result{Fill: &fill, ExitOrders: exitOrders, ContinuationOrder: continuation}, nil
}

// positionOpeningQuantity returns the signed portion of signedFillQty that
// increases the magnitude of the position rather than reducing or flipping
// it back through zero, mirroring
// calculate_position_opening_quantity in original_source.
func positionOpeningQuantity(existingQty, signedFillQty decimal.Decimal) decimal.Decimal {
	resulting := existingQty.Add(signedFillQty)

	sameSignOrFlat := existingQty.IsZero() ||
		(existingQty.IsPositive() && signedFillQty.IsPositive()) ||
		(existingQty.IsNegative() && signedFillQty.IsNegative())

	if sameSignOrFlat {
		return signedFillQty
	}

	// Fill works against the existing position. Only the part that
	// overshoots flat (i.e. flips and opens new exposure the other way)
	// counts as opening.
	flippedPastFlat := (existingQty.IsPositive() && resulting.IsNegative()) ||
		(existingQty.IsNegative() && resulting.IsPositive())
	if flippedPastFlat {
		return resulting
	}
	return decimal.Zero
}

// calculateCashDelta returns the change to cash a fill produces: proceeds
// for a sell minus cost for a buy, minus commission and tax.
func calculateCashDelta(signedFillQty decimal.Decimal, fillPrice money.Money, commission money.Money, host plugin.HostParams) money.Money {
	notional := fillPrice.MulDecimal(signedFillQty)
	delta := notional.Neg().Sub(commission)
	if host.Tax != nil && signedFillQty.IsNegative() {
		// Tax applies to realized sale proceeds.
		proceeds := fillPrice.MulDecimal(signedFillQty.Abs())
		delta = delta.Sub(proceeds.Mul(*host.Tax))
	}
	return delta
}

// updatePosition folds a new signed fill quantity into the existing
// position, recomputing the volume-weighted average price and the margin
// committed against the position. Crossing through zero resets the
// average-price basis to the fill price. openingQty/marginRequired describe
// only the position-opening portion of this fill (zero for a pure reduce).
func updatePosition(existing models.Position, symbol string, signedFillQty decimal.Decimal, fillPrice money.Money, openingQty decimal.Decimal, marginRequired money.Money) models.Position {
	newQty := existing.Quantity.Add(signedFillQty)
	usedMargin := remainingUsedMargin(existing, signedFillQty, openingQty).Add(marginRequired)

	if newQty.IsZero() {
		return models.Position{Symbol: symbol, Quantity: decimal.Zero}
	}

	sameDirection := existing.Quantity.IsZero() ||
		(existing.Quantity.IsPositive() && newQty.IsPositive()) ||
		(existing.Quantity.IsNegative() && newQty.IsNegative())

	increasingExposure := existing.Quantity.IsZero() ||
		(sameDirection && newQty.Abs().GreaterThanOrEqual(existing.Quantity.Abs()))

	if !sameDirection {
		// Flipping through flat: new basis is the fill price for the
		// newly opened exposure.
		return models.Position{Symbol: symbol, Quantity: newQty, AveragePrice: fillPrice, UsedMargin: usedMargin}
	}
	if !increasingExposure {
		// Reducing: the remaining exposure keeps its entry basis.
		return models.Position{Symbol: symbol, Quantity: newQty, AveragePrice: existing.AveragePrice, UsedMargin: usedMargin}
	}

	existingNotional := existing.AveragePrice.MulDecimal(existing.Quantity.Abs())
	addedNotional := fillPrice.MulDecimal(signedFillQty.Abs())
	avgPrice := existingNotional.Add(addedNotional).Div(newQty.Abs().InexactFloat64())

	return models.Position{Symbol: symbol, Quantity: newQty, AveragePrice: avgPrice, UsedMargin: usedMargin}
}

// remainingUsedMargin returns existing.UsedMargin after releasing the
// fraction consumed by the closing (non-opening) part of this fill, ahead
// of the caller adding marginRequired for any newly opened portion.
func remainingUsedMargin(existing models.Position, signedFillQty, openingQty decimal.Decimal) money.Money {
	if existing.Quantity.IsZero() || existing.UsedMargin.IsZero() {
		return money.Zero
	}
	closingQty := signedFillQty.Sub(openingQty)
	if closingQty.IsZero() {
		return existing.UsedMargin
	}
	fraction := closingQty.Abs().Div(existing.Quantity.Abs()).InexactFloat64()
	if fraction > 1 {
		fraction = 1
	}
	return existing.UsedMargin.Sub(existing.UsedMargin.Mul(fraction))
}

// createExitOrders derives the stop-loss/take-profit ExitOrders a newly
// opened (or added-to) position arms, per the host's stop-loss/take-profit
// configuration. It is the caller's responsibility to only invoke this for
// the position-opening portion of a fill.
func createExitOrders(host plugin.HostParams, order models.Order, fill models.Fill, openingQty decimal.Decimal) []models.ExitOrder {
	isShort := openingQty.IsNegative()
	var exits []models.ExitOrder

	if order.StopLossPrice != nil {
		exits = append(exits, models.ExitOrder{
			Kind:            models.ExitStopLoss,
			Symbol:          order.Symbol,
			TriggerQuantity: openingQty.Abs(),
			TriggerPrice:    *order.StopLossPrice,
			SourceFillUUID:  fill.UUID,
			IsShort:         isShort,
		})
	}
	if order.TakeProfitPrice != nil {
		exits = append(exits, models.ExitOrder{
			Kind:            models.ExitTakeProfit,
			Symbol:          order.Symbol,
			TriggerQuantity: openingQty.Abs(),
			TriggerPrice:    *order.TakeProfitPrice,
			SourceFillUUID:  fill.UUID,
			IsShort:         isShort,
		})
	}
	_ = host // host reserved for future venue-level exit constraints
	return exits
}

// SignalToOrder converts a direction-only Signal into a fully specified
// Order, attaching quantity and protective prices computed by the sizing
// package. createdAtNanos is the timestamp the order is submitted at; the
// caller (engine) assigns FilledAtNanos once slippage is applied.
func SignalToOrder(signal models.Signal, quantity decimal.Decimal, stopLoss, takeProfit *money.Money, createdAtNanos int64) models.Order {
	return models.Order{
		Symbol:         signal.Symbol,
		Action:         signal.Action,
		Quantity:       quantity,
		OrderType:      models.Market,
		StopLossPrice:  stopLoss,
		TakeProfitPrice: takeProfit,
		CreatedAtNanos: createdAtNanos,
	}
}
