package sizing

import (
	"lighter-grid-bot-go/internal/models"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLookup(t *testing.T, token string) TokenSpec {
	t.Helper()
	spec, err := NewRegistry(nil).Lookup(token)
	require.NoError(t, err)
	return spec
}

func TestLookup(t *testing.T) {
	r := NewRegistry(nil)

	btc, err := r.Lookup("btc")
	require.NoError(t, err)
	assert.Equal(t, TokenSpec{Symbol: "BTC", MarketID: 1, PricePrecision: 1, SizeMultiplier: 1e5}, btc)

	eth, err := r.Lookup("ETH")
	require.NoError(t, err)
	assert.Equal(t, 0, eth.MarketID)
	assert.Equal(t, int32(2), eth.PricePrecision)

	_, err = r.Lookup("UNKNOWN")
	assert.ErrorIs(t, err, ErrInvalidToken)

	// DOGE has a market but no precision entry.
	_, err = r.Lookup("DOGE")
	assert.ErrorIs(t, err, ErrInvalidToken)

	// BNB has precision entries but no market.
	_, err = r.Lookup("BNB")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestLookupOrDefault(t *testing.T) {
	r := NewRegistry(nil)

	doge, err := r.LookupOrDefault("DOGE")
	require.NoError(t, err)
	assert.Equal(t, 3, doge.MarketID)
	assert.Equal(t, DefaultPricePrecision, doge.PricePrecision)
	assert.Equal(t, DefaultSizeMultiplier, doge.SizeMultiplier)

	_, err = r.LookupOrDefault("UNKNOWN")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = r.Resolve("DOGE", false)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = r.Resolve("DOGE", true)
	assert.NoError(t, err)
}

func TestRegistryOverrides(t *testing.T) {
	r := NewRegistry(map[string]models.TokenConfig{
		"bnb":  {MarketID: 25},
		"DOGE": {MarketID: 3, PricePrecision: 5, SizeMultiplier: 1},
	})

	bnb, err := r.Lookup("BNB")
	require.NoError(t, err)
	assert.Equal(t, 25, bnb.MarketID)
	assert.Equal(t, int32(1), bnb.PricePrecision)
	assert.Equal(t, 1e3, bnb.SizeMultiplier)

	doge, err := r.Lookup("DOGE")
	require.NoError(t, err)
	assert.Equal(t, int32(5), doge.PricePrecision)

	assert.Equal(t, "BNB", r.Symbol(25))
	assert.Equal(t, "Market99", r.Symbol(99))
	assert.Contains(t, r.Tokens(), "BNB")
}

func TestSymbolIsStableForSharedMarketID(t *testing.T) {
	r := NewRegistry(map[string]models.TokenConfig{
		"ZZZ": {MarketID: 40},
		"AAA": {MarketID: 40},
		"MMM": {MarketID: 40},
	})
	for i := 0; i < 20; i++ {
		assert.Equal(t, "AAA", r.Symbol(40))
	}
	assert.Equal(t, "BTC", r.Symbol(1))
}

func TestBaseAmount(t *testing.T) {
	btc := mustLookup(t, "BTC")

	// $100 margin at 10x on BTC @ 50000 is 0.02 BTC = 2000 base units.
	amount, err := btc.BaseAmount(100, 10, 50000)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), amount)

	// Sizing targets constant margin, so a higher price buys fewer units.
	low, err := btc.BaseAmount(5, 10, 90000)
	require.NoError(t, err)
	high, err := btc.BaseAmount(5, 10, 92000)
	require.NoError(t, err)
	assert.Equal(t, int64(55), low)
	assert.Equal(t, int64(54), high)

	for _, bad := range []struct {
		margin   float64
		leverage int
		price    float64
	}{{0, 10, 1}, {1, 0, 1}, {1, 10, 0}, {-1, 10, 1}} {
		_, err := btc.BaseAmount(bad.margin, bad.leverage, bad.price)
		assert.Error(t, err)
	}
}

func TestCoinAmount(t *testing.T) {
	assert.InDelta(t, 0.02, mustLookup(t, "BTC").CoinAmount(2000), 1e-12)
	assert.InDelta(t, 1.5, mustLookup(t, "ETH").CoinAmount(15000), 1e-12)
}

func TestPriceToInt(t *testing.T) {
	btc := mustLookup(t, "BTC")
	eth := mustLookup(t, "ETH")

	assert.Equal(t, int64(500000), btc.PriceToInt(50000))
	assert.Equal(t, int64(910001), btc.PriceToInt(91000.06))
	assert.Equal(t, int64(302467), eth.PriceToInt(3024.666))
	assert.Equal(t, "91000.0", btc.FormatPrice(910000))
	assert.Equal(t, 91000.1, btc.RoundPrice(91000.06))
}

func TestPriceRoundTrip(t *testing.T) {
	for _, token := range []string{"BTC", "ETH", "SOL"} {
		spec := mustLookup(t, token)
		for _, p := range []float64{0.01, 1, 17.35, 3024.66, 91000.04, 109999.99, 123456.789} {
			v := spec.PriceToInt(p)
			assert.Equal(t, v, spec.PriceToInt(spec.IntToPrice(v)), "%s %v", token, p)

			parsed, err := spec.ParseRemotePrice(spec.FormatPrice(v))
			require.NoError(t, err)
			assert.Equal(t, v, parsed, "%s %v", token, p)
		}
	}
}

func TestParseRemotePrice(t *testing.T) {
	btc := mustLookup(t, "BTC")

	v, err := btc.ParseRemotePrice("910000")
	require.NoError(t, err)
	assert.Equal(t, int64(910000), v)

	v, err = btc.ParseRemotePrice(" 91000.0 ")
	require.NoError(t, err)
	assert.Equal(t, int64(910000), v)

	v, err = btc.ParseRemotePrice("91000.04")
	require.NoError(t, err)
	assert.Equal(t, int64(910000), v)

	_, err = btc.ParseRemotePrice("")
	assert.Error(t, err)
	_, err = btc.ParseRemotePrice("ninety")
	assert.Error(t, err)
}
