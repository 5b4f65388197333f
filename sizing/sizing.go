// Package sizing turns a direction-only Signal into a concrete quantity and
// protective prices, before the order reaches the Executor. Grounded on the
// teacher's risk/sizing.go and risk/tp_sl.go, generalized to the host's
// position-sizing and stop-loss/take-profit manifest fields, and on
// PositionCalculator:: in original_source's back_test_engine.cpp.
package sizing

import (
	"github.com/shopspring/decimal"

	"github.com/web3guy0/polyforge/money"
	"github.com/web3guy0/polyforge/plugin"
)

// SignalPositionSize computes the share quantity a signal should be sized
// to, given available equity and the current price. The result is never
// negative, for BUY and SELL alike; the order's Action carries the
// direction.
//
// AllowFractionalShares=false floors the result to a whole share.
func SignalPositionSize(host plugin.HostParams, equity money.Money, price money.Money) decimal.Decimal {
	if price.LessThanOrEqual(money.Zero) {
		return decimal.Zero
	}

	method := plugin.SizingFixedPercentage
	if host.PositionSizingMethod != nil {
		method = *host.PositionSizingMethod
	}
	value := 0.02
	if host.PositionSizeValue != nil {
		value = *host.PositionSizeValue
	}

	var notional money.Money
	switch method {
	case plugin.SizingFixedDollar:
		notional = money.FromDollars(value)
	case plugin.SizingEqualWeight:
		notional = equity.Mul(value)
	default: // fixed_percentage
		notional = equity.Mul(value)
	}

	if host.MaxPositionSize != nil {
		capAmount := equity.Mul(*host.MaxPositionSize)
		notional = money.Min(notional, capAmount)
	}

	quantity := decimal.NewFromFloat(notional.ToDollars() / price.ToDollars())
	if !host.AllowFractionalShares {
		quantity = quantity.Floor()
	}
	if quantity.IsNegative() {
		return decimal.Zero
	}
	return quantity
}

// SignalStopLossPrice computes the trigger price for a stop-loss protecting
// a position opened at entryPrice, or returns (Money{}, false) when
// UseStopLoss is unset/false.
func SignalStopLossPrice(host plugin.HostParams, entryPrice money.Money, isShort bool) (money.Money, bool) {
	if host.UseStopLoss == nil || !*host.UseStopLoss || host.StopLossPct == nil {
		return money.Money{}, false
	}
	pct := *host.StopLossPct
	if isShort {
		return entryPrice.Mul(1 + pct), true
	}
	return entryPrice.Mul(1 - pct), true
}

// SignalTakeProfitPrice computes the trigger price for a take-profit
// protecting a position opened at entryPrice, or returns (Money{}, false)
// when UseTakeProfit is unset/false.
func SignalTakeProfitPrice(host plugin.HostParams, entryPrice money.Money, isShort bool) (money.Money, bool) {
	if host.UseTakeProfit == nil || !*host.UseTakeProfit || host.TakeProfitPct == nil {
		return money.Money{}, false
	}
	pct := *host.TakeProfitPct
	if isShort {
		return entryPrice.Mul(1 - pct), true
	}
	return entryPrice.Mul(1 + pct), true
}
