package sizing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/web3guy0/polyforge/money"
	"github.com/web3guy0/polyforge/plugin"
)

func TestSignalPositionSizeFixedPercentageFloorsFractional(t *testing.T) {
	method := plugin.SizingFixedPercentage
	value := 0.5
	host := plugin.HostParams{PositionSizingMethod: &method, PositionSizeValue: &value}

	qty := SignalPositionSize(host, money.FromDollars(1000), money.FromDollars(33))
	assert.Equal(t, "15", qty.String())
}

func TestSignalPositionSizeDefaultsToTwoPercent(t *testing.T) {
	qty := SignalPositionSize(plugin.HostParams{}, money.FromDollars(1000), money.FromDollars(20))
	assert.Equal(t, "1", qty.String())
}

func TestSignalPositionSizeAllowsFractional(t *testing.T) {
	method := plugin.SizingFixedPercentage
	value := 0.5
	host := plugin.HostParams{PositionSizingMethod: &method, PositionSizeValue: &value, AllowFractionalShares: true}

	qty := SignalPositionSize(host, money.FromDollars(1000), money.FromDollars(33))
	assert.True(t, qty.GreaterThan(qty.Floor()))
}

func TestSignalStopLossPriceLong(t *testing.T) {
	use := true
	pct := 0.05
	host := plugin.HostParams{UseStopLoss: &use, StopLossPct: &pct}

	price, ok := SignalStopLossPrice(host, money.FromDollars(100), false)
	assert.True(t, ok)
	assert.True(t, price.Equal(money.FromDollars(95)))
}

func TestSignalStopLossPriceShort(t *testing.T) {
	use := true
	pct := 0.05
	host := plugin.HostParams{UseStopLoss: &use, StopLossPct: &pct}

	price, ok := SignalStopLossPrice(host, money.FromDollars(100), true)
	assert.True(t, ok)
	assert.True(t, price.Equal(money.FromDollars(105)))
}

func TestSignalTakeProfitDisabled(t *testing.T) {
	_, ok := SignalTakeProfitPrice(plugin.HostParams{}, money.FromDollars(100), false)
	assert.False(t, ok)
}
