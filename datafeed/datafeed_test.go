package datafeed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/polyforge/models"
	"github.com/web3guy0/polyforge/money"
)

func TestStoreAndGetBars(t *testing.T) {
	s := NewStore()
	s.StoreBars("run1", "AAPL", []models.Bar{
		{Symbol: "AAPL", UnixTSNanos: 2, Close: money.FromDollars(2)},
		{Symbol: "AAPL", UnixTSNanos: 1, Close: money.FromDollars(1)},
	})

	bars, err := s.GetBars("run1", "AAPL")
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, int64(1), bars[0].UnixTSNanos)
	assert.Equal(t, int64(2), bars[1].UnixTSNanos)
}

func TestGetBarsUnknownPlugin(t *testing.T) {
	s := NewStore()
	_, err := s.GetBars("missing", "AAPL")
	assert.Error(t, err)
}

func TestBuildBatchesGroupsByTimestamp(t *testing.T) {
	s := NewStore()
	s.StoreBars("run1", "AAPL", []models.Bar{{Symbol: "AAPL", UnixTSNanos: 1}})
	s.StoreBars("run1", "MSFT", []models.Bar{{Symbol: "MSFT", UnixTSNanos: 1}})
	s.StoreBars("run1", "AAPL", []models.Bar{{Symbol: "AAPL", UnixTSNanos: 2}})

	batches := s.BuildBatches("run1")
	require.Len(t, batches, 2)
	assert.Len(t, batches[0], 2)
	assert.Len(t, batches[1], 1)
}

func TestHasPluginData(t *testing.T) {
	s := NewStore()
	assert.False(t, s.HasPluginData("run1"))
	s.StoreBars("run1", "AAPL", []models.Bar{{Symbol: "AAPL"}})
	assert.True(t, s.HasPluginData("run1"))
}
