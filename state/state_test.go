package state

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/web3guy0/polyforge/models"
	"github.com/web3guy0/polyforge/money"
)

func TestCashAndPositionRoundTrip(t *testing.T) {
	s := New(money.FromDollars(10000))
	assert.True(t, s.Cash().Equal(money.FromDollars(10000)))

	s.AddCash(money.FromDollars(-500))
	assert.True(t, s.Cash().Equal(money.FromDollars(9500)))

	s.SetPosition(models.Position{Symbol: "AAPL", Quantity: decimal.NewFromInt(10), AveragePrice: money.FromDollars(100)})
	p, ok := s.Position("AAPL")
	assert.True(t, ok)
	assert.Equal(t, "10", p.Quantity.String())

	s.SetPosition(models.Position{Symbol: "AAPL", Quantity: decimal.Zero})
	_, ok = s.Position("AAPL")
	assert.False(t, ok)
}

func TestFillLivenessSets(t *testing.T) {
	s := New(money.Zero)
	s.ArmBuyFill("fill-1")
	assert.True(t, s.IsSourceFillActive("fill-1", false))
	assert.False(t, s.IsSourceFillActive("fill-1", true))

	s.DisarmBuyFill("fill-1")
	assert.False(t, s.IsSourceFillActive("fill-1", false))
}

func TestUpdateBarTracksLatestTimestamp(t *testing.T) {
	s := New(money.Zero)
	s.UpdateBar(models.Bar{Symbol: "AAPL", UnixTSNanos: 100, Close: money.FromDollars(10), Volume: 5000})
	s.UpdateBar(models.Bar{Symbol: "MSFT", UnixTSNanos: 200, Close: money.FromDollars(20), Volume: 6000})

	assert.Equal(t, int64(200), s.CurrentTimestampNanos())

	price, ok := s.CurrentPrice("AAPL")
	assert.True(t, ok)
	assert.True(t, price.Equal(money.FromDollars(10)))
}
