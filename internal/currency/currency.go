// Package currency defines currency codes, their fiat/crypto kind, and a
// registry of the currencies the application knows how to price.
package currency

import (
	"fmt"
	"sort"
	"strings"

	"github.com/attacker735/finalproject-malygin-m25-555/internal/apperrors"
)

// Code is a short upper-case currency identifier, e.g. "USD" or "BTC".
type Code string

// ParseCode normalizes and validates a raw currency code.
func ParseCode(raw string) (Code, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if len(code) < 2 || len(code) > 5 {
		return "", fmt.Errorf("%w: currency code must be 2-5 characters, got %q", apperrors.ErrValidation, raw)
	}
	if strings.ContainsRune(code, ' ') {
		return "", fmt.Errorf("%w: currency code must not contain spaces: %q", apperrors.ErrValidation, raw)
	}
	return Code(code), nil
}

func (c Code) String() string { return string(c) }

// Kind partitions currencies into fiat and crypto. Each kind is owned by
// exactly one rate source.
type Kind string

const (
	Fiat   Kind = "fiat"
	Crypto Kind = "crypto"
)

// Currency describes a single registered currency.
type Currency struct {
	Code Code
	Name string
	Kind Kind

	// Fiat only.
	IssuingCountry string

	// Crypto only.
	Algorithm   string
	MarketCap   float64
	CoinGeckoID string
}

// Registry holds the currencies available for trading and pricing.
type Registry struct {
	currencies map[Code]Currency
}

// NewRegistry returns a registry pre-populated with the built-in
// currency set.
func NewRegistry() *Registry {
	r := &Registry{currencies: make(map[Code]Currency)}
	for _, c := range builtin {
		r.Register(c)
	}
	return r
}

var builtin = []Currency{
	{Code: "USD", Name: "US Dollar", Kind: Fiat, IssuingCountry: "United States"},
	{Code: "EUR", Name: "Euro", Kind: Fiat, IssuingCountry: "European Union"},
	{Code: "RUB", Name: "Russian Ruble", Kind: Fiat, IssuingCountry: "Russia"},
	{Code: "GBP", Name: "British Pound", Kind: Fiat, IssuingCountry: "United Kingdom"},
	{Code: "BTC", Name: "Bitcoin", Kind: Crypto, Algorithm: "SHA-256", MarketCap: 1_120_000_000_000, CoinGeckoID: "bitcoin"},
	{Code: "ETH", Name: "Ethereum", Kind: Crypto, Algorithm: "Ethash", MarketCap: 390_000_000_000, CoinGeckoID: "ethereum"},
	{Code: "SOL", Name: "Solana", Kind: Crypto, Algorithm: "Proof of History", MarketCap: 10_000_000_000, CoinGeckoID: "solana"},
}

// Register adds or replaces a currency definition.
func (r *Registry) Register(c Currency) {
	r.currencies[c.Code] = c
}

// Get returns the currency for a (not necessarily normalized) code.
func (r *Registry) Get(raw string) (Currency, error) {
	code, err := ParseCode(raw)
	if err != nil {
		return Currency{}, err
	}
	c, ok := r.currencies[code]
	if !ok {
		return Currency{}, fmt.Errorf("%w: unknown currency %q", apperrors.ErrNotFound, code)
	}
	return c, nil
}

// Kind returns the kind of a known code.
func (r *Registry) Kind(code Code) (Kind, error) {
	c, ok := r.currencies[code]
	if !ok {
		return "", fmt.Errorf("%w: unknown currency %q", apperrors.ErrNotFound, code)
	}
	return c.Kind, nil
}

// List returns all registered currencies sorted by code.
func (r *Registry) List() []Currency {
	out := make([]Currency, 0, len(r.currencies))
	for _, c := range r.currencies {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// ListByKind returns registered currencies of one kind, sorted by code.
func (r *Registry) ListByKind(kind Kind) []Currency {
	var out []Currency
	for _, c := range r.List() {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}
