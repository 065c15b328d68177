package rates

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attacker735/finalproject-malygin-m25-555/internal/currency"
	"github.com/attacker735/finalproject-malygin-m25-555/internal/provider"
)

var testTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeSource is an in-memory provider.Source with call counting.
type fakeSource struct {
	name  string
	kind  currency.Kind
	rates map[currency.Code]float64
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (f *fakeSource) Name() string        { return f.name }
func (f *fakeSource) Kind() currency.Kind { return f.kind }

func (f *fakeSource) Currencies() []currency.Code {
	out := make([]currency.Code, 0, len(f.rates))
	for code := range f.rates {
		out = append(out, code)
	}
	return out
}

func (f *fakeSource) FetchAll(ctx context.Context) (map[currency.Code]float64, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.rates, nil
}

func newTestResolver(t *testing.T, sources ...provider.Source) *Resolver {
	t.Helper()
	r, err := NewResolver("USD", time.Hour, NewCache(), currency.NewRegistry(), sources, discardLogger())
	require.NoError(t, err)
	return r
}

func TestNewResolverRejectsDuplicateKind(t *testing.T) {
	a := &fakeSource{name: "a", kind: currency.Crypto}
	b := &fakeSource{name: "b", kind: currency.Crypto}
	_, err := NewResolver("USD", time.Hour, NewCache(), currency.NewRegistry(), []provider.Source{a, b}, discardLogger())
	assert.Error(t, err)
}

func TestNewResolverRejectsNonPositiveTTL(t *testing.T) {
	_, err := NewResolver("USD", 0, NewCache(), currency.NewRegistry(), nil, discardLogger())
	assert.Error(t, err)
}

func TestRateIdentityForBase(t *testing.T) {
	r := newTestResolver(t)

	rate, err := r.Rate(context.Background(), "USD", testTime)
	require.NoError(t, err)
	assert.Equal(t, 1.0, rate.Value)
	assert.Equal(t, "identity", rate.Source)
	assert.False(t, rate.Stale)
}

func TestRateFreshCacheHitSkipsFetch(t *testing.T) {
	src := &fakeSource{name: "coingecko", kind: currency.Crypto, rates: map[currency.Code]float64{"BTC": 51000}}
	r := newTestResolver(t, src)
	r.Cache().Put("BTC", 50000, "coingecko", testTime.Add(-30*time.Minute))

	rate, err := r.Rate(context.Background(), "BTC", testTime)
	require.NoError(t, err)
	assert.Equal(t, 50000.0, rate.Value)
	assert.False(t, rate.Stale)
	assert.Equal(t, int32(0), src.calls.Load(), "a fresh cache hit must not reach the source")
}

func TestRateFetchPopulatesAllReturnedCurrencies(t *testing.T) {
	src := &fakeSource{name: "coingecko", kind: currency.Crypto, rates: map[currency.Code]float64{
		"BTC": 50000,
		"ETH": 3000,
		"SOL": 150,
	}}
	r := newTestResolver(t, src)

	rate, err := r.Rate(context.Background(), "BTC", testTime)
	require.NoError(t, err)
	assert.Equal(t, 50000.0, rate.Value)
	assert.Equal(t, "coingecko", rate.Source)

	// The single fetch primed the sibling currencies too.
	assert.Equal(t, 3, r.Cache().Len())
	eth, ok := r.Cache().Get("ETH")
	require.True(t, ok)
	assert.Equal(t, 3000.0, eth.Rate)
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestRateStaleFallbackWhenSourceFails(t *testing.T) {
	src := &fakeSource{name: "exchangerate-api", kind: currency.Fiat, err: errors.New("connection refused")}
	r := newTestResolver(t, src)
	r.Cache().Put("EUR", 1.05, "exchangerate-api", testTime.Add(-3*time.Hour))

	rate, err := r.Rate(context.Background(), "EUR", testTime)
	require.NoError(t, err)
	assert.Equal(t, 1.05, rate.Value)
	assert.True(t, rate.Stale)
	assert.Equal(t, testTime.Add(-3*time.Hour), rate.FetchedAt)
}

func TestRateEntryStaleExactlyAtTTL(t *testing.T) {
	src := &fakeSource{name: "exchangerate-api", kind: currency.Fiat, err: errors.New("down")}
	r := newTestResolver(t, src)
	// Fetched exactly one TTL ago: no longer fresh, so the resolver tries
	// the source and then serves the entry flagged stale.
	r.Cache().Put("EUR", 1.08, "exchangerate-api", testTime.Add(-r.TTL()))

	rate, err := r.Rate(context.Background(), "EUR", testTime)
	require.NoError(t, err)
	assert.True(t, rate.Stale)
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestRateUnavailable(t *testing.T) {
	src := &fakeSource{name: "coingecko", kind: currency.Crypto, err: errors.New("down")}
	r := newTestResolver(t, src)

	_, err := r.Rate(context.Background(), "BTC", testTime)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestRateUnknownCurrency(t *testing.T) {
	r := newTestResolver(t)
	_, err := r.Rate(context.Background(), "XYZ", testTime)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestRateSourceMissingRequestedCurrency(t *testing.T) {
	// The source answers, but without the requested code. The stale cache
	// entry still serves.
	src := &fakeSource{name: "coingecko", kind: currency.Crypto, rates: map[currency.Code]float64{"ETH": 3000}}
	r := newTestResolver(t, src)
	r.Cache().Put("BTC", 49000, "coingecko", testTime.Add(-2*time.Hour))

	rate, err := r.Rate(context.Background(), "BTC", testTime)
	require.NoError(t, err)
	assert.Equal(t, 49000.0, rate.Value)
	assert.True(t, rate.Stale)
}

func TestConvertCrossPair(t *testing.T) {
	r := newTestResolver(t)
	r.Cache().Put("BTC", 50000, "coingecko", testTime.Add(-10*time.Minute))
	r.Cache().Put("EUR", 1.25, "exchangerate-api", testTime.Add(-5*time.Minute))

	rate, err := r.Convert(context.Background(), "BTC", "EUR", testTime)
	require.NoError(t, err)
	assert.InDelta(t, 40000.0, rate.Value, 1e-9)
	assert.Equal(t, "coingecko+exchangerate-api", rate.Source)
	// The cross pair inherits the older leg's timestamp.
	assert.Equal(t, testTime.Add(-10*time.Minute), rate.FetchedAt)
	assert.False(t, rate.Stale)
}

func TestConvertReciprocal(t *testing.T) {
	r := newTestResolver(t)
	r.Cache().Put("BTC", 50000, "coingecko", testTime)
	r.Cache().Put("EUR", 1.25, "exchangerate-api", testTime)

	ab, err := r.Convert(context.Background(), "BTC", "EUR", testTime)
	require.NoError(t, err)
	ba, err := r.Convert(context.Background(), "EUR", "BTC", testTime)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, ab.Value*ba.Value, 1e-12)
}

func TestConvertSamePairIsIdentity(t *testing.T) {
	r := newTestResolver(t)
	rate, err := r.Convert(context.Background(), "EUR", "EUR", testTime)
	require.NoError(t, err)
	assert.Equal(t, 1.0, rate.Value)
}

func TestConvertInheritsStaleness(t *testing.T) {
	src := &fakeSource{name: "exchangerate-api", kind: currency.Fiat, err: errors.New("down")}
	r := newTestResolver(t, src)
	r.Cache().Put("BTC", 50000, "coingecko", testTime)
	r.Cache().Put("EUR", 1.25, "exchangerate-api", testTime.Add(-2*time.Hour))

	rate, err := r.Convert(context.Background(), "BTC", "EUR", testTime)
	require.NoError(t, err)
	assert.True(t, rate.Stale, "one stale leg makes the cross pair stale")
}

func TestRefreshCoalescesConcurrentCalls(t *testing.T) {
	src := &fakeSource{
		name:  "coingecko",
		kind:  currency.Crypto,
		rates: map[currency.Code]float64{"BTC": 50000},
		delay: 50 * time.Millisecond,
	}
	r := newTestResolver(t, src)

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rate, err := r.Rate(context.Background(), "BTC", testTime)
			assert.NoError(t, err)
			assert.Equal(t, 50000.0, rate.Value)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), src.calls.Load(), "concurrent cold-cache lookups must share one fetch")
}

func TestRefreshAllCountsUpdates(t *testing.T) {
	crypto := &fakeSource{name: "coingecko", kind: currency.Crypto, rates: map[currency.Code]float64{"BTC": 50000, "ETH": 3000}}
	fiat := &fakeSource{name: "exchangerate-api", kind: currency.Fiat, rates: map[currency.Code]float64{"EUR": 1.1}}
	r := newTestResolver(t, crypto, fiat)

	n, err := r.RefreshAll(context.Background(), "", testTime)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, r.Cache().Len())
}

func TestRefreshAllSingleSource(t *testing.T) {
	crypto := &fakeSource{name: "coingecko", kind: currency.Crypto, rates: map[currency.Code]float64{"BTC": 50000}}
	fiat := &fakeSource{name: "exchangerate-api", kind: currency.Fiat, rates: map[currency.Code]float64{"EUR": 1.1}}
	r := newTestResolver(t, crypto, fiat)

	n, err := r.RefreshAll(context.Background(), "coingecko", testTime)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, int32(0), fiat.calls.Load())
}

func TestRefreshAllUnknownSource(t *testing.T) {
	crypto := &fakeSource{name: "coingecko", kind: currency.Crypto}
	r := newTestResolver(t, crypto)

	_, err := r.RefreshAll(context.Background(), "nope", testTime)
	assert.Error(t, err)
}

func TestRefreshAllToleratesPartialFailure(t *testing.T) {
	crypto := &fakeSource{name: "coingecko", kind: currency.Crypto, err: errors.New("down")}
	fiat := &fakeSource{name: "exchangerate-api", kind: currency.Fiat, rates: map[currency.Code]float64{"EUR": 1.1}}
	r := newTestResolver(t, crypto, fiat)

	n, err := r.RefreshAll(context.Background(), "", testTime)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRefreshAllFailsWhenEverySourceFails(t *testing.T) {
	crypto := &fakeSource{name: "coingecko", kind: currency.Crypto, err: errors.New("down")}
	fiat := &fakeSource{name: "exchangerate-api", kind: currency.Fiat, err: errors.New("also down")}
	r := newTestResolver(t, crypto, fiat)

	_, err := r.RefreshAll(context.Background(), "", testTime)
	assert.Error(t, err)
}

func TestRefreshSkipsNonPositiveRates(t *testing.T) {
	src := &fakeSource{name: "coingecko", kind: currency.Crypto, rates: map[currency.Code]float64{
		"BTC": 50000,
		"ETH": -1,
		"SOL": 0,
	}}
	r := newTestResolver(t, src)

	_, err := r.Rate(context.Background(), "BTC", testTime)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Cache().Len())
}
