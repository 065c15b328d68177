package main

import (
	"log/slog"
	"path/filepath"
	"time"

	"github.com/attacker735/finalproject-malygin-m25-555/internal/account"
	"github.com/attacker735/finalproject-malygin-m25-555/internal/config"
	"github.com/attacker735/finalproject-malygin-m25-555/internal/currency"
	"github.com/attacker735/finalproject-malygin-m25-555/internal/logging"
	"github.com/attacker735/finalproject-malygin-m25-555/internal/news"
	"github.com/attacker735/finalproject-malygin-m25-555/internal/provider"
	"github.com/attacker735/finalproject-malygin-m25-555/internal/providers/coingecko"
	"github.com/attacker735/finalproject-malygin-m25-555/internal/providers/exchangerateapi"
	"github.com/attacker735/finalproject-malygin-m25-555/internal/rates"
	"github.com/attacker735/finalproject-malygin-m25-555/internal/storage/jsonfile"
)

// app wires the engine and its collaborators for one CLI invocation.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *currency.Registry
	cache    *rates.Cache
	snapshot *rates.FileStore
	resolver *rates.Resolver
	valuator *rates.Valuator
	accounts *account.Service
	news     *news.Service
}

func newApp(cfg *config.Config) (*app, error) {
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	registry := currency.NewRegistry()
	if err := cfg.Validate(registry); err != nil {
		return nil, err
	}

	cache := rates.NewCache()
	snapshot := rates.NewFileStore(filepath.Join(cfg.Storage.Dir, "rates.json"))
	entries, err := snapshot.Load()
	if err != nil {
		// Corrupt snapshot: cold start, not fatal.
		logger.Warn("rates snapshot unreadable, starting with an empty cache", slog.Any("error", err))
	} else {
		cache.Restore(entries)
	}

	crypto := coingecko.New(
		cfg.Rates.CoinGecko.Endpoint,
		cfg.Base(),
		cfg.CryptoCurrencies(registry),
		cfg.Timeout(),
	)
	fiat := exchangerateapi.New(
		cfg.Rates.ExchangeRate.Endpoint,
		cfg.Rates.ExchangeRate.APIKey,
		cfg.Base(),
		cfg.FiatCurrencies(registry),
		cfg.Timeout(),
	)

	resolver, err := rates.NewResolver(cfg.Base(), cfg.TTL(), cache, registry, []provider.Source{crypto, fiat}, logger)
	if err != nil {
		return nil, err
	}
	valuator := rates.NewValuator(resolver, logger)

	dir := cfg.Storage.Dir
	accounts := account.NewService(
		jsonfile.NewUserStore(dir),
		jsonfile.NewPortfolioStore(dir),
		jsonfile.NewSessionStore(dir),
		registry,
		resolver,
		valuator,
		logger,
	)

	feeds := make([]news.Feed, 0, len(cfg.News.Feeds))
	for _, f := range cfg.News.Feeds {
		feeds = append(feeds, news.Feed{Name: f.Name, URL: f.URL})
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		cache:    cache,
		snapshot: snapshot,
		resolver: resolver,
		valuator: valuator,
		accounts: accounts,
		news:     news.New(feeds, cfg.Timeout()),
	}, nil
}

// flushRates persists the cache so the next invocation starts from the
// same rate table. Failure to persist is logged, never fatal.
func (a *app) flushRates() {
	entries := a.cache.Entries()
	rates.SortEntries(entries)
	if err := a.snapshot.Save(entries); err != nil {
		a.logger.Warn("could not persist rates snapshot", slog.Any("error", err))
	}
}

func (a *app) now() time.Time { return time.Now() }
