// ValutaTrade Hub — multi-currency portfolio tracking from the console.
//
// Main CLI entrypoint using the cobra command framework.
package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/attacker735/finalproject-malygin-m25-555/internal/config"
	"github.com/attacker735/finalproject-malygin-m25-555/internal/currency"
	"github.com/attacker735/finalproject-malygin-m25-555/internal/rates"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config, loaded by the root command before any subcommand runs.
var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "valutatrade",
	Short: "ValutaTrade Hub — track multi-currency portfolios from the console",
	Long: `ValutaTrade Hub
A console application for tracking fiat and crypto portfolios, priced in a
configurable base currency with rates fetched from CoinGecko and
ExchangeRate-API and cached with a TTL.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(depositCmd)
	rootCmd.AddCommand(withdrawCmd)
	rootCmd.AddCommand(buyCmd)
	rootCmd.AddCommand(sellCmd)
	rootCmd.AddCommand(portfolioCmd)
	rootCmd.AddCommand(rateCmd)
	rootCmd.AddCommand(updateRatesCmd)
	rootCmd.AddCommand(ratesCmd)
	rootCmd.AddCommand(currenciesCmd)
	rootCmd.AddCommand(newsCmd)
}

// --- Version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ValutaTrade Hub %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Account commands ---

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create a new user account",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		username, _ := cmd.Flags().GetString("username")
		password, _ := cmd.Flags().GetString("password")

		user, err := a.accounts.Register(username, password)
		if err != nil {
			return err
		}
		fmt.Printf("User %q registered (id %s).\n", user.Username, user.ID)
		fmt.Printf("Log in with: valutatrade login --username %s --password ****\n", user.Username)
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and open a session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		username, _ := cmd.Flags().GetString("username")
		password, _ := cmd.Flags().GetString("password")

		user, err := a.accounts.Login(username, password)
		if err != nil {
			return err
		}
		fmt.Printf("Welcome back, %s!\n", user.Username)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Close the current session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		if err := a.accounts.Logout(); err != nil {
			return err
		}
		fmt.Println("Logged out.")
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{registerCmd, loginCmd} {
		c.Flags().String("username", "", "account username")
		c.Flags().String("password", "", "account password")
		c.MarkFlagRequired("username")
		c.MarkFlagRequired("password")
	}
}

// --- Wallet commands ---

var depositCmd = &cobra.Command{
	Use:   "deposit",
	Short: "Add funds to one of your wallets",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		code, amount, err := moneyFlags(cmd)
		if err != nil {
			return err
		}
		portfolio, err := a.accounts.Deposit(code, amount)
		if err != nil {
			return err
		}
		fmt.Printf("Deposited %s %s. New balance: %s %s\n", amount, code, portfolio.Balance(code), code)
		return nil
	},
}

var withdrawCmd = &cobra.Command{
	Use:   "withdraw",
	Short: "Withdraw funds from one of your wallets",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		code, amount, err := moneyFlags(cmd)
		if err != nil {
			return err
		}
		portfolio, err := a.accounts.Withdraw(code, amount)
		if err != nil {
			return err
		}
		fmt.Printf("Withdrew %s %s. New balance: %s %s\n", amount, code, portfolio.Balance(code), code)
		return nil
	},
}

var buyCmd = &cobra.Command{
	Use:   "buy",
	Short: "Buy a currency, paying from your base-currency wallet",
	RunE:  func(cmd *cobra.Command, args []string) error { return runTrade(cmd, true) },
}

var sellCmd = &cobra.Command{
	Use:   "sell",
	Short: "Sell a currency back into your base-currency wallet",
	RunE:  func(cmd *cobra.Command, args []string) error { return runTrade(cmd, false) },
}

func runTrade(cmd *cobra.Command, buy bool) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.flushRates()

	code, amount, err := moneyFlags(cmd)
	if err != nil {
		return err
	}

	trade := a.accounts.Sell
	verb := "Sold"
	if buy {
		trade = a.accounts.Buy
		verb = "Bought"
	}
	res, err := trade(cmd.Context(), code, amount)
	if err != nil {
		return err
	}

	base := a.resolver.Base()
	fmt.Printf("%s %s %s at 1 %s = %.6f %s\n", verb, res.Amount, res.Currency, res.Currency, res.Rate, base)
	if res.Stale {
		fmt.Println("  note: rate is stale (sources unreachable, served from cache)")
	}
	fmt.Printf("  %s wallet: %s\n", res.Currency, res.Balance)
	fmt.Printf("  %s wallet: %s\n", base, res.BaseBalance)
	return nil
}

func init() {
	for _, c := range []*cobra.Command{depositCmd, withdrawCmd, buyCmd, sellCmd} {
		c.Flags().String("currency", "", "currency code, e.g. BTC or EUR")
		c.Flags().String("amount", "", "amount, e.g. 0.5")
		c.MarkFlagRequired("currency")
		c.MarkFlagRequired("amount")
	}
}

func moneyFlags(cmd *cobra.Command) (currency.Code, decimal.Decimal, error) {
	rawCode, _ := cmd.Flags().GetString("currency")
	rawAmount, _ := cmd.Flags().GetString("amount")

	code, err := currency.ParseCode(rawCode)
	if err != nil {
		return "", decimal.Zero, err
	}
	amount, err := decimal.NewFromString(rawAmount)
	if err != nil {
		return "", decimal.Zero, fmt.Errorf("invalid amount %q: %w", rawAmount, err)
	}
	return code, amount, nil
}

// --- Portfolio ---

var portfolioCmd = &cobra.Command{
	Use:   "portfolio",
	Short: "Show your wallets and their total value",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.flushRates()

		user, valuation, err := a.accounts.Valuate(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("Portfolio of %s (valued in %s at %s)\n\n",
			user.Username, valuation.Base, valuation.At.Format("2006-01-02 15:04:05"))

		w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		fmt.Fprintf(w, "CURRENCY\tBALANCE\tVALUE (%s)\tNOTE\n", valuation.Base)
		for _, asset := range valuation.Assets {
			note := ""
			if asset.Stale {
				note = "stale rate"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", asset.Code, asset.Quantity, asset.Value.StringFixed(2), note)
		}
		for _, code := range valuation.Unavailable {
			fmt.Fprintf(w, "%s\t%s\t-\tno rate available\n", code, "?")
		}
		w.Flush()

		fmt.Printf("\nTOTAL: %s %s\n", valuation.Total.StringFixed(2), valuation.Base)
		if len(valuation.Unavailable) > 0 {
			codes := make([]string, len(valuation.Unavailable))
			for i, c := range valuation.Unavailable {
				codes[i] = c.String()
			}
			fmt.Printf("Unpriced (excluded from total): %s\n", strings.Join(codes, ", "))
		}
		return nil
	},
}

// --- Rate commands ---

var rateCmd = &cobra.Command{
	Use:   "rate <from> <to>",
	Short: "Show the conversion rate between two currencies",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.flushRates()

		from, err := a.registry.Get(args[0])
		if err != nil {
			return err
		}
		to, err := a.registry.Get(args[1])
		if err != nil {
			return err
		}

		now := a.now()
		direct, err := a.resolver.Convert(cmd.Context(), from.Code, to.Code, now)
		if err != nil {
			return err
		}

		fmt.Printf("%s -> %s: %.6f\n", from.Code, to.Code, direct.Value)
		fmt.Printf("%s -> %s: %.6f\n", to.Code, from.Code, 1/direct.Value)
		fmt.Printf("updated: %s (source: %s)\n", direct.FetchedAt.Format("2006-01-02 15:04:05"), direct.Source)
		if direct.Stale {
			fmt.Println("note: rate is stale (sources unreachable, served from cache)")
		}
		return nil
	},
}

var updateRatesCmd = &cobra.Command{
	Use:   "update-rates",
	Short: "Force-refresh rates from the external sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.flushRates()

		source, _ := cmd.Flags().GetString("source")
		updated, err := a.resolver.RefreshAll(cmd.Context(), source, a.now())
		if err != nil {
			return err
		}
		fmt.Printf("Updated %d rates.\n", updated)
		return nil
	},
}

var ratesCmd = &cobra.Command{
	Use:   "rates",
	Short: "Show the cached rate table",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}

		entries := a.cache.Entries()
		if len(entries) == 0 {
			fmt.Println("The local rate cache is empty. Run 'valutatrade update-rates' first.")
			return nil
		}

		if filter, _ := cmd.Flags().GetString("currency"); filter != "" {
			code, err := currency.ParseCode(filter)
			if err != nil {
				return err
			}
			var kept []rates.Entry
			for _, e := range entries {
				if e.Quote == code {
					kept = append(kept, e)
				}
			}
			entries = kept
		}

		top, _ := cmd.Flags().GetInt("top")
		if top > 0 {
			sort.Slice(entries, func(i, j int) bool { return entries[i].Rate > entries[j].Rate })
			if len(entries) > top {
				entries = entries[:top]
			}
		} else {
			rates.SortEntries(entries)
		}

		now := a.now()
		base := a.resolver.Base()
		w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PAIR\tRATE\tUPDATED\tSOURCE\tSTATUS")
		for _, e := range entries {
			status := "fresh"
			if !e.Fresh(now, a.resolver.TTL()) {
				status = "stale"
			}
			fmt.Fprintf(w, "%s/%s\t%.6f\t%s\t%s\t%s\n",
				e.Quote, base, e.Rate, e.FetchedAt.Format("2006-01-02 15:04:05"), e.Source, status)
		}
		return w.Flush()
	},
}

func init() {
	updateRatesCmd.Flags().String("source", "", "refresh a single source (coingecko or exchangerate-api)")
	ratesCmd.Flags().String("currency", "", "only show this currency")
	ratesCmd.Flags().Int("top", 0, "show the N highest rates")
}

// --- Currencies ---

var currenciesCmd = &cobra.Command{
	Use:   "currencies",
	Short: "List the currencies available for trading",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}

		fmt.Println("Fiat:")
		for _, c := range a.registry.ListByKind(currency.Fiat) {
			fmt.Printf("  %s  %s (%s)\n", c.Code, c.Name, c.IssuingCountry)
		}
		fmt.Println("Crypto:")
		for _, c := range a.registry.ListByKind(currency.Crypto) {
			fmt.Printf("  %s  %s (%s, market cap $%.0fB)\n", c.Code, c.Name, c.Algorithm, c.MarketCap/1e9)
		}
		return nil
	},
}

// --- News ---

var newsCmd = &cobra.Command{
	Use:   "news",
	Short: "Show recent market headlines",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")

		articles, err := a.news.Latest(cmd.Context(), limit)
		if err != nil {
			return err
		}
		for _, article := range articles {
			when := ""
			if !article.Published.IsZero() {
				when = article.Published.Format("2006-01-02 15:04")
			}
			fmt.Printf("[%s] %s\n  %s %s\n", article.Source, article.Title, when, article.Link)
		}
		return nil
	},
}

func init() {
	newsCmd.Flags().Int("limit", 10, "maximum number of headlines")
}
