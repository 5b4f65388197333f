// Package exchange implements the venue-level rules the engine consults
// independently of any particular strategy: market-hours gating and
// commission pricing. Grounded on original_source's time_utils and the
// Exchange:: free functions in back_test_engine.cpp.
package exchange

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/polyforge/money"
	"github.com/web3guy0/polyforge/plugin"
)

const (
	marketOpenHour  = 9
	marketCloseHour = 16
)

// IsWithinMarketHourRestrictions reports whether tsNanos (Unix nanoseconds,
// evaluated in America/New_York, the only timezone a manifest may declare)
// falls within a weekday regular session. When host.MarketHoursOnly is
// false every timestamp passes.
func IsWithinMarketHourRestrictions(host plugin.HostParams, tsNanos int64) bool {
	if !host.MarketHoursOnly {
		return true
	}
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.UTC
	}
	t := time.Unix(0, tsNanos).In(loc)

	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	hour := t.Hour()
	return hour >= marketOpenHour && hour < marketCloseHour
}

// CalculateCommission prices a fill of quantity shares at price, per the
// manifest's commission model. An unset CommissionType or Commission charges
// nothing.
func CalculateCommission(host plugin.HostParams, quantity decimal.Decimal, price money.Money) money.Money {
	if host.CommissionType == nil || host.Commission == nil {
		return money.Zero
	}
	rate := *host.Commission
	absQty := quantity.Abs()

	switch *host.CommissionType {
	case plugin.CommissionPerShare:
		return money.FromDollars(rate).MulDecimal(absQty)
	case plugin.CommissionPercentage:
		notional := price.MulDecimal(absQty)
		return notional.Mul(rate)
	case plugin.CommissionFlat:
		return money.FromDollars(rate)
	default:
		return money.Zero
	}
}
