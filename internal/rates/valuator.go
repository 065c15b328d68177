package rates

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/attacker735/finalproject-malygin-m25-555/internal/currency"
)

// Pricer is the slice of the resolver the valuator depends on.
type Pricer interface {
	Base() currency.Code
	Rate(ctx context.Context, quote currency.Code, now time.Time) (Rate, error)
}

// AssetValue is the valuation of a single holding.
type AssetValue struct {
	Code     currency.Code
	Quantity decimal.Decimal
	Rate     float64
	Value    decimal.Decimal
	Stale    bool
}

// Valuation is the best-effort result of pricing a portfolio: per-asset
// values, the grand total in the base currency, and the currencies that
// could only be priced stale or not at all.
type Valuation struct {
	Base        currency.Code
	At          time.Time
	Assets      []AssetValue
	Total       decimal.Decimal
	Stale       []currency.Code
	Unavailable []currency.Code
}

// Valuator prices portfolios against the resolver's rate table. It holds
// no state between calls and never mutates the holdings it is given.
type Valuator struct {
	pricer Pricer
	logger *slog.Logger
}

// NewValuator creates a valuator on top of a pricer.
func NewValuator(pricer Pricer, logger *slog.Logger) *Valuator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Valuator{pricer: pricer, logger: logger}
}

// Valuate prices every positive holding in the base currency. Holdings
// whose rate cannot be resolved are excluded from the total and listed in
// Unavailable; the call itself never fails on missing rates.
func (v *Valuator) Valuate(ctx context.Context, holdings map[currency.Code]decimal.Decimal, now time.Time) Valuation {
	result := Valuation{
		Base:  v.pricer.Base(),
		At:    now,
		Total: decimal.Zero,
	}

	codes := make([]currency.Code, 0, len(holdings))
	for code := range holdings {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })

	for _, code := range codes {
		quantity := holdings[code]
		if !quantity.IsPositive() {
			continue
		}

		rate, err := v.pricer.Rate(ctx, code, now)
		if err != nil {
			if !errors.Is(err, ErrUnavailable) {
				v.logger.Warn("unexpected valuation error",
					slog.String("currency", code.String()),
					slog.Any("error", err))
			}
			result.Unavailable = append(result.Unavailable, code)
			continue
		}

		value := quantity.Mul(decimal.NewFromFloat(rate.Value))
		result.Assets = append(result.Assets, AssetValue{
			Code:     code,
			Quantity: quantity,
			Rate:     rate.Value,
			Value:    value,
			Stale:    rate.Stale,
		})
		result.Total = result.Total.Add(value)
		if rate.Stale {
			result.Stale = append(result.Stale, code)
		}
	}
	return result
}
