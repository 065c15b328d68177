package rates

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/attacker735/finalproject-malygin-m25-555/internal/apperrors"
	"github.com/attacker735/finalproject-malygin-m25-555/internal/currency"
	"github.com/attacker735/finalproject-malygin-m25-555/internal/provider"
)

// ErrUnavailable is returned when no fresh or stale rate exists for a
// requested currency. Callers valuating portfolios degrade to a partial
// result instead of failing the whole request.
var ErrUnavailable = errors.New("rate unavailable")

// Rate is a resolved conversion factor: one unit of Quote priced in the
// base currency. Stale marks a value served past its TTL because the
// owning source could not be reached.
type Rate struct {
	Quote     currency.Code
	Value     float64
	FetchedAt time.Time
	Source    string
	Stale     bool
}

// Resolver turns the partially-overlapping outputs of the fiat and crypto
// sources into a single any-currency-to-any-currency conversion
// capability. Only base-relative pairs are cached; cross pairs are
// derived on demand.
type Resolver struct {
	base     currency.Code
	ttl      time.Duration
	cache    *Cache
	registry *currency.Registry
	sources  map[currency.Kind]provider.Source
	group    singleflight.Group
	logger   *slog.Logger
}

// NewResolver wires the resolver. Each currency kind must be owned by at
// most one source; two sources claiming the same kind is a configuration
// error, not a precedence decision.
func NewResolver(base currency.Code, ttl time.Duration, cache *Cache, registry *currency.Registry, sources []provider.Source, logger *slog.Logger) (*Resolver, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("%w: rate TTL must be positive, got %s", apperrors.ErrValidation, ttl)
	}
	if logger == nil {
		logger = slog.Default()
	}
	byKind := make(map[currency.Kind]provider.Source, len(sources))
	for _, src := range sources {
		if prev, ok := byKind[src.Kind()]; ok {
			return nil, fmt.Errorf("%w: sources %q and %q both own %s currencies", apperrors.ErrValidation, prev.Name(), src.Name(), src.Kind())
		}
		byKind[src.Kind()] = src
	}
	return &Resolver{
		base:     base,
		ttl:      ttl,
		cache:    cache,
		registry: registry,
		sources:  byKind,
		logger:   logger,
	}, nil
}

// Base returns the currency all resolved rates are expressed in.
func (r *Resolver) Base() currency.Code { return r.base }

// TTL returns the configured freshness window.
func (r *Resolver) TTL() time.Duration { return r.ttl }

// Cache exposes the underlying cache for snapshotting.
func (r *Resolver) Cache() *Cache { return r.cache }

// Rate resolves the base-relative rate for one quote currency at the
// given instant.
//
// Resolution order: identity for the base currency, fresh cache hit,
// refresh through the owning source, stale cache fallback. Only when none
// of those produce a value does it fail with ErrUnavailable.
func (r *Resolver) Rate(ctx context.Context, quote currency.Code, now time.Time) (Rate, error) {
	if quote == r.base {
		return Rate{Quote: quote, Value: 1.0, FetchedAt: now, Source: "identity"}, nil
	}

	if e, ok := r.cache.Get(quote); ok && e.Fresh(now, r.ttl) {
		return fromEntry(e, false), nil
	}

	kind, err := r.registry.Kind(quote)
	if err != nil {
		return Rate{}, fmt.Errorf("%w: unknown currency %q", ErrUnavailable, quote)
	}
	src, ok := r.sources[kind]
	if !ok {
		return r.fallback(quote, now)
	}

	fetched, err := r.refresh(ctx, src, now)
	if err != nil {
		r.logger.Warn("rate refresh failed, falling back to cache",
			slog.String("source", src.Name()),
			slog.String("currency", quote.String()),
			slog.Any("error", err))
		return r.fallback(quote, now)
	}
	if _, ok := fetched[quote]; !ok {
		r.logger.Warn("source did not price currency",
			slog.String("source", src.Name()),
			slog.String("currency", quote.String()))
		return r.fallback(quote, now)
	}

	e, ok := r.cache.Get(quote)
	if !ok {
		return r.fallback(quote, now)
	}
	return fromEntry(e, !e.Fresh(now, r.ttl)), nil
}

// Convert derives the price of one unit of from expressed in to, routing
// both legs through the base currency. The result is computed on demand
// and never cached, so it inherits the staleness of its two constituents.
func (r *Resolver) Convert(ctx context.Context, from, to currency.Code, now time.Time) (Rate, error) {
	if from == to {
		return Rate{Quote: to, Value: 1.0, FetchedAt: now, Source: "identity"}, nil
	}
	rateFrom, err := r.Rate(ctx, from, now)
	if err != nil {
		return Rate{}, err
	}
	rateTo, err := r.Rate(ctx, to, now)
	if err != nil {
		return Rate{}, err
	}

	fetchedAt := rateFrom.FetchedAt
	if rateTo.FetchedAt.Before(fetchedAt) {
		fetchedAt = rateTo.FetchedAt
	}
	return Rate{
		Quote:     from,
		Value:     rateFrom.Value / rateTo.Value,
		FetchedAt: fetchedAt,
		Source:    crossSource(rateFrom.Source, rateTo.Source),
		Stale:     rateFrom.Stale || rateTo.Stale,
	}, nil
}

func crossSource(a, b string) string {
	if a == b {
		return a
	}
	return a + "+" + b
}

// RefreshAll fetches every configured source concurrently, ignoring cache
// freshness, and returns the number of currencies updated. A non-empty
// sourceName restricts the refresh to that source. It fails only when no
// source delivered anything.
func (r *Resolver) RefreshAll(ctx context.Context, sourceName string, now time.Time) (int, error) {
	var selected []provider.Source
	for _, src := range r.sources {
		if sourceName == "" || src.Name() == sourceName {
			selected = append(selected, src)
		}
	}
	if len(selected) == 0 {
		return 0, fmt.Errorf("%w: unknown rate source %q", apperrors.ErrValidation, sourceName)
	}

	var (
		mu    sync.Mutex
		total int
		errs  []error
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, src := range selected {
		src := src
		g.Go(func() error {
			fetched, err := r.refresh(gctx, src, now)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return nil // one failing source must not abort the others
			}
			total += len(fetched)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return total, err
	}
	if total == 0 && len(errs) > 0 {
		return 0, fmt.Errorf("all rate sources failed: %w", errors.Join(errs...))
	}
	for _, err := range errs {
		r.logger.Warn("rate source failed during refresh", slog.Any("error", err))
	}
	return total, nil
}

// refresh runs one FetchAll for the source and stores every returned
// rate. Concurrent callers for the same source share a single in-flight
// fetch instead of issuing duplicate external calls.
func (r *Resolver) refresh(ctx context.Context, src provider.Source, now time.Time) (map[currency.Code]float64, error) {
	ch := r.group.DoChan(src.Name(), func() (any, error) {
		fetched, err := src.FetchAll(ctx)
		if err != nil {
			return nil, err
		}
		for code, value := range fetched {
			if value <= 0 {
				r.logger.Warn("ignoring non-positive rate",
					slog.String("source", src.Name()),
					slog.String("currency", code.String()),
					slog.Float64("rate", value))
				continue
			}
			r.cache.Put(code, value, src.Name(), now)
		}
		return fetched, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(map[currency.Code]float64), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// fallback serves whatever the cache holds for the quote currency, fresh
// or stale, and fails with ErrUnavailable only when nothing is cached.
func (r *Resolver) fallback(quote currency.Code, now time.Time) (Rate, error) {
	if e, ok := r.cache.Get(quote); ok {
		return fromEntry(e, !e.Fresh(now, r.ttl)), nil
	}
	return Rate{}, fmt.Errorf("%w: no rate for %s", ErrUnavailable, quote)
}

func fromEntry(e Entry, stale bool) Rate {
	return Rate{Quote: e.Quote, Value: e.Rate, FetchedAt: e.FetchedAt, Source: e.Source, Stale: stale}
}
