package equitycalc

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/web3guy0/polyforge/models"
	"github.com/web3guy0/polyforge/money"
	"github.com/web3guy0/polyforge/state"
)

func TestCalculateEquityIncludesOpenPositions(t *testing.T) {
	st := state.New(money.FromDollars(1000))
	st.UpdateBar(models.Bar{Symbol: "AAPL", UnixTSNanos: 1, Close: money.FromDollars(50), Volume: 1})
	st.SetPosition(models.Position{Symbol: "AAPL", Quantity: decimal.NewFromInt(10), AveragePrice: money.FromDollars(40)})

	equity := CalculateEquity(st)
	assert.True(t, equity.Equal(money.FromDollars(1500)))
}

func TestCalculateReturn(t *testing.T) {
	assert.InDelta(t, 0.1, CalculateReturn(money.FromDollars(100), money.FromDollars(110)), 1e-9)
	assert.Equal(t, 0.0, CalculateReturn(money.Zero, money.FromDollars(110)))
}

func TestCalculateMaxDrawdown(t *testing.T) {
	curve := []models.EquitySnapshot{
		{Equity: money.FromDollars(100)},
		{Equity: money.FromDollars(120)},
		{Equity: money.FromDollars(90)},
		{Equity: money.FromDollars(95)},
	}
	assert.InDelta(t, 0.25, CalculateMaxDrawdown(curve), 1e-9)
}

func TestAvailableMarginSubtractsUsedMarginAcrossPositions(t *testing.T) {
	st := state.New(money.FromDollars(10000))
	st.SetPosition(models.Position{Symbol: "AAPL", Quantity: decimal.NewFromInt(10), AveragePrice: money.FromDollars(100), UsedMargin: money.FromDollars(1000)})
	st.SetPosition(models.Position{Symbol: "MSFT", Quantity: decimal.NewFromInt(5), AveragePrice: money.FromDollars(200), UsedMargin: money.FromDollars(500)})

	assert.True(t, AvailableMargin(st).Equal(money.FromDollars(8500)))
}

func TestAvailableMarginWithNoOpenPositionsEqualsCash(t *testing.T) {
	st := state.New(money.FromDollars(5000))
	assert.True(t, AvailableMargin(st).Equal(money.FromDollars(5000)))
}

func TestSnapshotReturnIsCumulativeAgainstInitialCapital(t *testing.T) {
	st := state.New(money.FromDollars(1000))
	st.UpdateBar(models.Bar{Symbol: "AAPL", UnixTSNanos: 1, Close: money.FromDollars(10), Volume: 1})

	st.AddCash(money.FromDollars(100))
	first := Snapshot(st, 1, money.FromDollars(1000))
	assert.InDelta(t, 0.1, first.Return, 1e-9)
	st.AppendEquitySnapshot(first)

	st.AddCash(money.FromDollars(-50))
	second := Snapshot(st, 2, money.FromDollars(1000))
	// Cumulative against initial capital (1050 -> 0.05), not the period
	// return against the previous snapshot (1100 -> 1050 would be -0.0455).
	assert.InDelta(t, 0.05, second.Return, 1e-9)
}
