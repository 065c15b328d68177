// Package coingecko implements the crypto rate source backed by the
// CoinGecko simple price API.
//
// One FetchAll issues a single GET to /simple/price for every configured
// coin, quoted in the base currency. No API key is required.
package coingecko

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/attacker735/finalproject-malygin-m25-555/internal/currency"
	"github.com/attacker735/finalproject-malygin-m25-555/internal/infra"
	"github.com/attacker735/finalproject-malygin-m25-555/internal/provider"
)

const sourceName = "coingecko"

// DefaultEndpoint is the public CoinGecko API root.
const DefaultEndpoint = "https://api.coingecko.com/api/v3"

type coin struct {
	code currency.Code
	id   string
}

// Source fetches crypto prices from CoinGecko.
type Source struct {
	endpoint string
	base     currency.Code
	coins    []coin
	client   *http.Client
	limiter  *infra.RateLimiter
}

// New builds a CoinGecko source for the given crypto currencies. Entries
// without a CoinGecko id are skipped: the API cannot quote them.
func New(endpoint string, base currency.Code, currencies []currency.Currency, timeout time.Duration) *Source {
	coins := make([]coin, 0, len(currencies))
	for _, c := range currencies {
		if c.Kind != currency.Crypto || c.CoinGeckoID == "" {
			continue
		}
		coins = append(coins, coin{code: c.Code, id: c.CoinGeckoID})
	}
	return &Source{
		endpoint: strings.TrimRight(endpoint, "/"),
		base:     base,
		coins:    coins,
		client:   &http.Client{Timeout: timeout},
		limiter:  infra.NewRateLimiter(10, time.Minute),
	}
}

func (s *Source) Name() string        { return sourceName }
func (s *Source) Kind() currency.Kind { return currency.Crypto }

// Currencies returns the crypto codes this source quotes.
func (s *Source) Currencies() []currency.Code {
	out := make([]currency.Code, 0, len(s.coins))
	for _, c := range s.coins {
		out = append(out, c.code)
	}
	return out
}

// FetchAll returns the base-currency price of every coin the API quoted.
func (s *Source) FetchAll(ctx context.Context) (map[currency.Code]float64, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, &provider.SourceError{Source: sourceName, Err: err}
	}

	ids := make([]string, 0, len(s.coins))
	for _, c := range s.coins {
		ids = append(ids, c.id)
	}
	vs := strings.ToLower(s.base.String())
	url := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=%s", s.endpoint, strings.Join(ids, ","), vs)

	// {"bitcoin": {"usd": 50000.0}, ...}
	var payload map[string]map[string]float64
	if err := infra.GetJSON(ctx, s.client, url, &payload); err != nil {
		return nil, &provider.SourceError{Source: sourceName, Err: err}
	}

	out := make(map[currency.Code]float64, len(s.coins))
	for _, c := range s.coins {
		prices, ok := payload[c.id]
		if !ok {
			continue
		}
		if price, ok := prices[vs]; ok && price > 0 {
			out[c.code] = price
		}
	}
	return out, nil
}
