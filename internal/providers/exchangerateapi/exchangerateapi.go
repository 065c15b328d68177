// Package exchangerateapi implements the fiat rate source backed by
// ExchangeRate-API (exchangerate-api.com).
//
// The API returns conversion rates per unit of the base currency (e.g.
// 1 USD = 0.92 EUR). The engine works with base-per-quote factors (1 EUR
// = 1.087 USD), so this adapter inverts every returned rate.
package exchangerateapi

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

const sourceName = "exchangerate-api"

// DefaultEndpoint is the public ExchangeRate-API v6 root.
const DefaultEndpoint = "https://v6.exchangerate-api.com/v6"

// Source fetches fiat exchange rates from ExchangeRate-API.
type Source struct {
	endpoint string
	apiKey   string
	base     currency.Code
	codes    []currency.Code
	client   *http.Client
	limiter  *infra.RateLimiter
}

// New builds an ExchangeRate-API source for the given fiat currencies.
// The base currency itself is never returned by FetchAll; the resolver
// answers it as an identity.
func New(endpoint, apiKey string, base currency.Code, currencies []currency.Currency, timeout time.Duration) *Source {
	codes := make([]currency.Code, 0, len(currencies))
	for _, c := range currencies {
		if c.Kind != currency.Fiat || c.Code == base {
			continue
		}
		codes = append(codes, c.Code)
	}
	return &Source{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		base:     base,
		codes:    codes,
		client:   &http.Client{Timeout: timeout},
		limiter:  infra.NewRateLimiter(10, time.Minute),
	}
}

func (s *Source) Name() string        { return sourceName }
func (s *Source) Kind() currency.Kind { return currency.Fiat }

// Currencies returns the fiat codes this source quotes.
func (s *Source) Currencies() []currency.Code {
	out := make([]currency.Code, len(s.codes))
	copy(out, s.codes)
	return out
}

type latestResponse struct {
	Result          string             `json:"result"`
	ErrorType       string             `json:"error-type"`
	ConversionRates map[string]float64 `json:"conversion_rates"`
}

// FetchAll returns the base-currency value of one unit of every
// configured fiat currency the API quoted.
func (s *Source) FetchAll(ctx context.Context) (map[currency.Code]float64, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, &provider.SourceError{Source: sourceName, Err: err}
	}

	url := fmt.Sprintf("%s/%s/latest/%s", s.endpoint, s.apiKey, s.base)

	var payload latestResponse
	if err := infra.GetJSON(ctx, s.client, url, &payload); err != nil {
		return nil, &provider.SourceError{Source: sourceName, Err: err}
	}
	if payload.Result != "" && payload.Result != "success" {
		return nil, &provider.SourceError{
			Source: sourceName,
			Err:    fmt.Errorf("api error: %s", payload.ErrorType),
		}
	}

	out := make(map[currency.Code]float64, len(s.codes))
	for _, code := range s.codes {
		perBase, ok := payload.ConversionRates[code.String()]
		if !ok || perBase <= 0 {
			continue
		}
		out[code] = 1 / perBase
	}
	return out, nil
}
