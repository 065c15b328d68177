// Package provider defines the capability every external rate source must
// implement, plus the error type the resolver uses to classify source
// failures. The resolver is written against Source, never against a
// concrete adapter.
package provider

import (
	"context"
	"fmt"

	"github.com/attacker735/finalproject-malygin-m25-555/internal/currency"
)

// Source fetches base-relative rates for a fixed set of currencies from
// one external endpoint. One FetchAll issues exactly one outbound request.
type Source interface {
	// Name identifies the source, e.g. "coingecko".
	Name() string

	// Kind is the currency kind this source owns. Fiat and crypto
	// ownership never overlap; the config loader enforces that.
	Kind() currency.Kind

	// Currencies is the fixed list of codes this source quotes.
	Currencies() []currency.Code

	// FetchAll returns, for every code it could price, the value of one
	// unit of that code expressed in the configured base currency.
	// Codes the upstream API did not return are simply absent.
	FetchAll(ctx context.Context) (map[currency.Code]float64, error)
}

// SourceError wraps any transport failure, non-success response, or
// malformed payload from a single source. The resolver recovers from it
// via cache fallback; it is never surfaced raw to the end user.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("rate source %q: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }
