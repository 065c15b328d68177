package rates

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attacker735/finalproject-malygin-m25-555/internal/currency"
)

// fakePricer answers rates from a fixed table.
type fakePricer struct {
	base  currency.Code
	table map[currency.Code]Rate
}

func (f *fakePricer) Base() currency.Code { return f.base }

func (f *fakePricer) Rate(ctx context.Context, quote currency.Code, now time.Time) (Rate, error) {
	if quote == f.base {
		return Rate{Quote: quote, Value: 1.0, FetchedAt: now, Source: "identity"}, nil
	}
	r, ok := f.table[quote]
	if !ok {
		return Rate{}, ErrUnavailable
	}
	return r, nil
}

func holdings(pairs map[string]string) map[currency.Code]decimal.Decimal {
	out := make(map[currency.Code]decimal.Decimal, len(pairs))
	for code, amount := range pairs {
		out[currency.Code(code)] = decimal.RequireFromString(amount)
	}
	return out
}

func TestValuateTotalsHoldings(t *testing.T) {
	pricer := &fakePricer{base: "USD", table: map[currency.Code]Rate{
		"BTC": {Quote: "BTC", Value: 50000, FetchedAt: testTime, Source: "coingecko"},
		"EUR": {Quote: "EUR", Value: 1.1, FetchedAt: testTime, Source: "exchangerate-api"},
	}}
	v := NewValuator(pricer, discardLogger())

	got := v.Valuate(context.Background(), holdings(map[string]string{
		"BTC": "2",
		"EUR": "100",
	}), testTime)

	assert.Equal(t, currency.Code("USD"), got.Base)
	require.Len(t, got.Assets, 2)
	assert.True(t, got.Total.Equal(decimal.RequireFromString("100110")), "got %s", got.Total)
	assert.Empty(t, got.Stale)
	assert.Empty(t, got.Unavailable)
}

func TestValuateBaseHoldingAtParity(t *testing.T) {
	pricer := &fakePricer{base: "USD"}
	v := NewValuator(pricer, discardLogger())

	got := v.Valuate(context.Background(), holdings(map[string]string{"USD": "250.50"}), testTime)
	require.Len(t, got.Assets, 1)
	assert.True(t, got.Total.Equal(decimal.RequireFromString("250.50")))
}

func TestValuateSkipsNonPositiveHoldings(t *testing.T) {
	pricer := &fakePricer{base: "USD", table: map[currency.Code]Rate{
		"BTC": {Quote: "BTC", Value: 50000, FetchedAt: testTime, Source: "coingecko"},
	}}
	v := NewValuator(pricer, discardLogger())

	got := v.Valuate(context.Background(), holdings(map[string]string{
		"BTC": "0",
		"EUR": "-5",
	}), testTime)
	assert.Empty(t, got.Assets)
	assert.True(t, got.Total.IsZero())
}

func TestValuatePartialWhenRateMissing(t *testing.T) {
	pricer := &fakePricer{base: "USD", table: map[currency.Code]Rate{
		"EUR": {Quote: "EUR", Value: 1.1, FetchedAt: testTime, Source: "exchangerate-api"},
	}}
	v := NewValuator(pricer, discardLogger())

	got := v.Valuate(context.Background(), holdings(map[string]string{
		"BTC": "1",
		"EUR": "100",
	}), testTime)

	require.Len(t, got.Assets, 1)
	assert.True(t, got.Total.Equal(decimal.RequireFromString("110")))
	assert.Equal(t, []currency.Code{"BTC"}, got.Unavailable)
}

func TestValuateFlagsStaleRates(t *testing.T) {
	pricer := &fakePricer{base: "USD", table: map[currency.Code]Rate{
		"BTC": {Quote: "BTC", Value: 50000, FetchedAt: testTime.Add(-3 * time.Hour), Source: "coingecko", Stale: true},
	}}
	v := NewValuator(pricer, discardLogger())

	got := v.Valuate(context.Background(), holdings(map[string]string{"BTC": "1"}), testTime)
	require.Len(t, got.Assets, 1)
	assert.True(t, got.Assets[0].Stale)
	assert.Equal(t, []currency.Code{"BTC"}, got.Stale)
	// Stale values still count toward the total.
	assert.True(t, got.Total.Equal(decimal.RequireFromString("50000")))
}

func TestValuateAllUnavailable(t *testing.T) {
	pricer := &fakePricer{base: "USD"}
	v := NewValuator(pricer, discardLogger())

	got := v.Valuate(context.Background(), holdings(map[string]string{
		"BTC": "1",
		"EUR": "10",
	}), testTime)
	assert.Empty(t, got.Assets)
	assert.True(t, got.Total.IsZero())
	assert.ElementsMatch(t, []currency.Code{"BTC", "EUR"}, got.Unavailable)
}

func TestValuateDeterministicOrder(t *testing.T) {
	pricer := &fakePricer{base: "USD", table: map[currency.Code]Rate{
		"BTC": {Quote: "BTC", Value: 50000, FetchedAt: testTime, Source: "coingecko"},
		"ETH": {Quote: "ETH", Value: 3000, FetchedAt: testTime, Source: "coingecko"},
		"EUR": {Quote: "EUR", Value: 1.1, FetchedAt: testTime, Source: "exchangerate-api"},
	}}
	v := NewValuator(pricer, discardLogger())

	got := v.Valuate(context.Background(), holdings(map[string]string{
		"EUR": "1", "BTC": "1", "ETH": "1",
	}), testTime)

	codes := make([]currency.Code, len(got.Assets))
	for i, a := range got.Assets {
		codes[i] = a.Code
	}
	assert.Equal(t, []currency.Code{"BTC", "ETH", "EUR"}, codes)
}
