package plugin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validManifestJSON() string {
	return `{
		"initial_capital": 100000,
		"backtest_start_datetime": "2024-01-01T00:00:00Z",
		"backtest_end_datetime": "2024-12-31T00:00:00Z",
		"max_leverage": 2.0,
		"commission_type": "per_share",
		"commission": 0.005,
		"slippage_model": "fixed",
		"slippage": 1.0,
		"symbols": [
			{"symbol": "AAPL", "primary": true, "timespan": 1, "timespan_unit": "day"}
		]
	}`
}

func TestParseManifestValid(t *testing.T) {
	host, err := ParseManifest([]byte(validManifestJSON()))
	require.NoError(t, err)

	assert.Equal(t, int64(100000), host.InitialCapitalDollars)
	assert.Equal(t, "USD", host.Currency)
	assert.Equal(t, "America/New_York", host.Timezone)
	assert.Equal(t, 2.0, host.MaxLeverageOrDefault())

	primary, ok := host.PrimarySymbol()
	require.True(t, ok)
	assert.Equal(t, "AAPL", primary.Symbol)
}

func TestParseManifestRejectsUnknownCommissionType(t *testing.T) {
	_, err := ParseManifest([]byte(`{
		"initial_capital": 1000,
		"backtest_start_datetime": "x", "backtest_end_datetime": "y",
		"commission_type": "bogus",
		"symbols": [{"symbol": "AAPL", "primary": true, "timespan": 1, "timespan_unit": "day"}]
	}`))
	require.Error(t, err)
}

func TestParseManifestRequiresExactlyOnePrimary(t *testing.T) {
	_, err := ParseManifest([]byte(`{
		"initial_capital": 1000,
		"backtest_start_datetime": "x", "backtest_end_datetime": "y",
		"symbols": [
			{"symbol": "AAPL", "primary": true, "timespan": 1, "timespan_unit": "day"},
			{"symbol": "MSFT", "primary": true, "timespan": 1, "timespan_unit": "day"}
		]
	}`))
	require.Error(t, err)
}

func TestHostParamsDefaults(t *testing.T) {
	var h HostParams
	assert.Equal(t, 1.0, h.MaxLeverageOrDefault())
	assert.Equal(t, 1.0, h.InitialMarginPctOrDefault())
	assert.True(t, h.AllowShortSellingOrDefault())
}
