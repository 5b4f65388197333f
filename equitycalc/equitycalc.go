// Package equitycalc computes the equity, return, and drawdown series the
// engine records after resolving each execution. Grounded on
// EquityCalculator:: in original_source's back_test_engine.cpp.
package equitycalc

import (
	"github.com/web3guy0/polyforge/models"
	"github.com/web3guy0/polyforge/money"
	"github.com/web3guy0/polyforge/state"
)

// CalculateEquity returns cash plus the mark-to-market value of every open
// position, using each position's last observed bar price.
func CalculateEquity(st *state.State) money.Money {
	equity := st.Cash()
	for symbol, pos := range st.Positions() {
		price, ok := st.CurrentPrice(symbol)
		if !ok {
			continue
		}
		equity = equity.Add(price.MulDecimal(pos.Quantity))
	}
	return equity
}

// CalculateReturn returns the fractional change from previous to current
// equity. Returns 0 when previous is zero to avoid a division by zero on
// the first snapshot.
func CalculateReturn(previous, current money.Money) float64 {
	if previous.IsZero() {
		return 0
	}
	return current.Sub(previous).ToDollars() / previous.ToDollars()
}

// AvailableMargin returns cash minus the margin already committed to open
// positions: available_margin(state) = cash - sum(used_margin), per
// spec.md §4.6. This is the figure Executor's margin validation (step 9)
// checks a new order's margin_required against.
func AvailableMargin(st *state.State) money.Money {
	available := st.Cash()
	for _, pos := range st.Positions() {
		available = available.Sub(pos.UsedMargin)
	}
	return available
}

// CalculateMaxDrawdown returns the largest peak-to-trough decline observed
// across the equity curve so far, expressed as a positive fraction (0.2 for
// a 20% drawdown).
func CalculateMaxDrawdown(curve []models.EquitySnapshot) float64 {
	if len(curve) == 0 {
		return 0
	}
	peak := curve[0].Equity
	maxDD := 0.0
	for _, snap := range curve {
		if snap.Equity.GreaterThan(peak) {
			peak = snap.Equity
		}
		if peak.IsZero() {
			continue
		}
		dd := peak.Sub(snap.Equity).ToDollars() / peak.ToDollars()
		if dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// Snapshot builds the next EquitySnapshot to append to the curve. Return is
// cumulative against initialCapital, per spec.md §4.6
// (return(host, eq) = (eq - initial_capital) / initial_capital), not a
// period return against the previous snapshot. Rolling risk metrics
// (Sharpe/Sortino/Calmar/tail ratio/VaR/CVaR) are left at zero: this engine
// has no rolling-window configuration to compute them against (see
// DESIGN.md).
func Snapshot(st *state.State, tsNanos int64, initialCapital money.Money) models.EquitySnapshot {
	curve := st.EquityCurve()
	current := CalculateEquity(st)

	next := append(curve, models.EquitySnapshot{TimestampNanos: tsNanos, Equity: current})
	return models.EquitySnapshot{
		TimestampNanos: tsNanos,
		Equity:         current,
		Return:         CalculateReturn(initialCapital, current),
		MaxDrawdown:    CalculateMaxDrawdown(next),
	}
}
