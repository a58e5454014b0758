// Package sizing converts margin, leverage and prices into the exchange-native
// integer price and base-amount representations used by Lighter orders.
package sizing

import (
	"errors"
	"fmt"
	"lighter-grid-bot-go/internal/models"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidToken is returned when a token is missing from the market or
// precision tables.
var ErrInvalidToken = errors.New("invalid token")

// Fallback values used by LookupOrDefault for tokens that have a market id but
// no precision entry. Lookup never applies them.
const (
	DefaultPricePrecision int32   = 1
	DefaultSizeMultiplier float64 = 1e5
)

var defaultMarkets = map[string]int{
	"ETH":      0,
	"BTC":      1,
	"SOL":      2,
	"DOGE":     3,
	"1000PEPE": 4,
	"WIF":      5,
	"WLD":      6,
	"XRP":      7,
	"LINK":     8,
	"AVAX":     9,
}

var defaultPrecisions = map[string]int32{
	"BTC": 1,
	"ETH": 2,
	"SOL": 2,
	"BNB": 1,
}

var defaultMultipliers = map[string]float64{
	"BTC": 1e5,
	"ETH": 1e4,
	"SOL": 1e3,
	"BNB": 1e3,
}

// TokenSpec is everything needed to express orders for one market.
type TokenSpec struct {
	Symbol         string
	MarketID       int
	PricePrecision int32
	SizeMultiplier float64
}

// Registry resolves token symbols to their TokenSpec.
type Registry struct {
	markets     map[string]int
	precisions  map[string]int32
	multipliers map[string]float64
}

// NewRegistry builds a registry from the built-in tables. Entries in
// overrides replace or extend them; zero fields in an override are ignored
// except MarketID, which is always taken.
func NewRegistry(overrides map[string]models.TokenConfig) *Registry {
	r := &Registry{
		markets:     make(map[string]int, len(defaultMarkets)),
		precisions:  make(map[string]int32, len(defaultPrecisions)),
		multipliers: make(map[string]float64, len(defaultMultipliers)),
	}
	for k, v := range defaultMarkets {
		r.markets[k] = v
	}
	for k, v := range defaultPrecisions {
		r.precisions[k] = v
	}
	for k, v := range defaultMultipliers {
		r.multipliers[k] = v
	}

	for token, tc := range overrides {
		token = normalize(token)
		r.markets[token] = tc.MarketID
		if tc.PricePrecision > 0 {
			r.precisions[token] = tc.PricePrecision
		}
		if tc.SizeMultiplier > 0 {
			r.multipliers[token] = tc.SizeMultiplier
		}
	}
	return r
}

// Lookup returns the TokenSpec for token, failing with ErrInvalidToken unless the
// token has a market id, a price precision and a size multiplier.
func (r *Registry) Lookup(token string) (TokenSpec, error) {
	token = normalize(token)
	marketID, ok := r.markets[token]
	if !ok {
		return TokenSpec{}, fmt.Errorf("%w: %q has no market id", ErrInvalidToken, token)
	}
	precision, okP := r.precisions[token]
	multiplier, okM := r.multipliers[token]
	if !okP || !okM {
		return TokenSpec{}, fmt.Errorf("%w: %q has no precision/size entry", ErrInvalidToken, token)
	}
	return TokenSpec{Symbol: token, MarketID: marketID, PricePrecision: precision, SizeMultiplier: multiplier}, nil
}

// LookupOrDefault is the explicit fallback policy: a token with a known market
// id but no precision or multiplier entry gets DefaultPricePrecision and
// DefaultSizeMultiplier. Tokens without a market id still fail.
func (r *Registry) LookupOrDefault(token string) (TokenSpec, error) {
	token = normalize(token)
	marketID, ok := r.markets[token]
	if !ok {
		return TokenSpec{}, fmt.Errorf("%w: %q has no market id", ErrInvalidToken, token)
	}
	spec := TokenSpec{Symbol: token, MarketID: marketID, PricePrecision: DefaultPricePrecision, SizeMultiplier: DefaultSizeMultiplier}
	if p, ok := r.precisions[token]; ok {
		spec.PricePrecision = p
	}
	if m, ok := r.multipliers[token]; ok {
		spec.SizeMultiplier = m
	}
	return spec, nil
}

// Resolve picks Lookup or LookupOrDefault.
func (r *Registry) Resolve(token string, allowDefault bool) (TokenSpec, error) {
	if allowDefault {
		return r.LookupOrDefault(token)
	}
	return r.Lookup(token)
}

// Symbol is the reverse mapping from market id to token symbol. When several
// tokens share a market id the alphabetically first one wins.
func (r *Registry) Symbol(marketID int) string {
	for _, token := range r.Tokens() {
		if r.markets[token] == marketID {
			return token
		}
	}
	return fmt.Sprintf("Market%d", marketID)
}

// Tokens lists every token with a market id, sorted.
func (r *Registry) Tokens() []string {
	out := make([]string, 0, len(r.markets))
	for token := range r.markets {
		out = append(out, token)
	}
	sort.Strings(out)
	return out
}

func normalize(token string) string {
	return strings.ToUpper(strings.TrimSpace(token))
}

// BaseAmount sizes an order so that it commits marginPerGrid of margin at the
// given leverage: floor(margin * leverage / price * multiplier).
func (s TokenSpec) BaseAmount(marginPerGrid float64, leverage int, price float64) (int64, error) {
	if marginPerGrid <= 0 || leverage <= 0 || price <= 0 {
		return 0, fmt.Errorf("cannot size order: margin=%.4f leverage=%d price=%.4f", marginPerGrid, leverage, price)
	}
	amount := decimal.NewFromFloat(marginPerGrid).
		Mul(decimal.NewFromInt(int64(leverage))).
		Div(decimal.NewFromFloat(price)).
		Mul(decimal.NewFromFloat(s.SizeMultiplier)).
		Floor()
	return amount.IntPart(), nil
}

// CoinAmount converts a base amount back to coin units.
func (s TokenSpec) CoinAmount(baseAmount int64) float64 {
	return decimal.NewFromInt(baseAmount).Div(decimal.NewFromFloat(s.SizeMultiplier)).InexactFloat64()
}

// PriceToInt rounds price to the token precision and drops the decimal point,
// e.g. 91000.04 at precision 1 becomes 910000.
func (s TokenSpec) PriceToInt(price float64) int64 {
	return decimal.NewFromFloat(price).Round(s.PricePrecision).Shift(s.PricePrecision).IntPart()
}

// IntToPrice is the inverse of PriceToInt.
func (s TokenSpec) IntToPrice(priceInt int64) float64 {
	return decimal.New(priceInt, -s.PricePrecision).InexactFloat64()
}

// RoundPrice rounds price to the display precision of the token.
func (s TokenSpec) RoundPrice(price float64) float64 {
	return decimal.NewFromFloat(price).Round(s.PricePrecision).InexactFloat64()
}

// FormatPrice renders an integer price with the token's decimals.
func (s TokenSpec) FormatPrice(priceInt int64) string {
	return decimal.New(priceInt, -s.PricePrecision).StringFixed(s.PricePrecision)
}

// ParseRemotePrice normalises a price reported by the exchange to integer
// ticks. Values without a decimal point are already exchange-native integers;
// decimal strings are display prices and get rounded to the token precision.
func (s TokenSpec) ParseRemotePrice(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errors.New("empty price")
	}
	if !strings.ContainsAny(raw, ".eE") {
		return strconv.ParseInt(raw, 10, 64)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", raw, err)
	}
	return d.Round(s.PricePrecision).Shift(s.PricePrecision).IntPart(), nil
}
