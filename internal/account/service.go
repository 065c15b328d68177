package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/attacker735/finalproject-malygin-m25-555/internal/apperrors"
	"github.com/attacker735/finalproject-malygin-m25-555/internal/currency"
	"github.com/attacker735/finalproject-malygin-m25-555/internal/rates"
)

// minPasswordLen is the minimum accepted password length.
const minPasswordLen = 4

// UserStore persists users.
type UserStore interface {
	FindByUsername(username string) (*User, error)
	FindByID(id string) (*User, error)
	Save(u User) error
}

// PortfolioStore persists portfolios.
type PortfolioStore interface {
	Find(userID string) (*Portfolio, error)
	Save(p Portfolio) error
}

// SessionStore remembers the logged-in user between CLI invocations.
type SessionStore interface {
	CurrentUserID() (string, error)
	SetCurrentUser(id string) error
	Clear() error
}

// Converter is the slice of the rate resolver the account service needs
// for trades.
type Converter interface {
	Base() currency.Code
	Rate(ctx context.Context, quote currency.Code, now time.Time) (rates.Rate, error)
}

// Valuer prices a set of holdings.
type Valuer interface {
	Valuate(ctx context.Context, holdings map[currency.Code]decimal.Decimal, now time.Time) rates.Valuation
}

// Service implements registration, authentication, and wallet operations.
type Service struct {
	users      UserStore
	portfolios PortfolioStore
	sessions   SessionStore
	registry   *currency.Registry
	converter  Converter
	valuer     Valuer
	logger     *slog.Logger
	now        func() time.Time
}

// NewService wires the account service. The clock defaults to time.Now
// and is injectable for tests.
func NewService(users UserStore, portfolios PortfolioStore, sessions SessionStore, registry *currency.Registry, converter Converter, valuer Valuer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		users:      users,
		portfolios: portfolios,
		sessions:   sessions,
		registry:   registry,
		converter:  converter,
		valuer:     valuer,
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock overrides the service clock.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Register creates a new user with an empty base-currency portfolio.
func (s *Service) Register(username, password string) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("%w: username must not be empty", apperrors.ErrValidation)
	}
	if len(password) < minPasswordLen {
		return nil, fmt.Errorf("%w: password must be at least %d characters", apperrors.ErrValidation, minPasswordLen)
	}
	if _, err := s.users.FindByUsername(username); err == nil {
		return nil, fmt.Errorf("%w: user %q", apperrors.ErrDuplicate, username)
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("check username: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
		RegisteredAt: s.now(),
	}
	if err := s.users.Save(user); err != nil {
		return nil, fmt.Errorf("save user: %w", err)
	}
	if err := s.portfolios.Save(*NewPortfolio(user.ID, s.converter.Base())); err != nil {
		return nil, fmt.Errorf("create portfolio: %w", err)
	}

	s.logger.Info("user registered", slog.String("username", username), slog.String("user_id", user.ID))
	return &user, nil
}

// Login verifies the password and opens a session.
func (s *Service) Login(username, password string) (*User, error) {
	user, err := s.users.FindByUsername(strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown user %q", apperrors.ErrUnauthorized, username)
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, fmt.Errorf("%w: wrong password", apperrors.ErrUnauthorized)
	}
	if err := s.sessions.SetCurrentUser(user.ID); err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	s.logger.Info("user logged in", slog.String("username", user.Username))
	return user, nil
}

// Logout closes the current session.
func (s *Service) Logout() error {
	return s.sessions.Clear()
}

// CurrentUser returns the logged-in user.
func (s *Service) CurrentUser() (*User, error) {
	id, err := s.sessions.CurrentUserID()
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: log in first", apperrors.ErrUnauthorized)
		}
		return nil, err
	}
	user, err := s.users.FindByID(id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: session user no longer exists", apperrors.ErrUnauthorized)
		}
		return nil, err
	}
	return user, nil
}

// CurrentPortfolio returns the logged-in user's portfolio, creating an
// empty one if it was never saved.
func (s *Service) CurrentPortfolio() (*User, *Portfolio, error) {
	user, err := s.CurrentUser()
	if err != nil {
		return nil, nil, err
	}
	portfolio, err := s.portfolios.Find(user.ID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return user, NewPortfolio(user.ID, s.converter.Base()), nil
		}
		return nil, nil, err
	}
	return user, portfolio, nil
}

// Deposit adds funds to one wallet of the logged-in user.
func (s *Service) Deposit(code currency.Code, amount decimal.Decimal) (*Portfolio, error) {
	if _, err := s.registry.Get(code.String()); err != nil {
		return nil, err
	}
	_, portfolio, err := s.CurrentPortfolio()
	if err != nil {
		return nil, err
	}
	if err := portfolio.Deposit(code, amount); err != nil {
		return nil, err
	}
	if err := s.portfolios.Save(*portfolio); err != nil {
		return nil, fmt.Errorf("save portfolio: %w", err)
	}
	return portfolio, nil
}

// Withdraw removes funds from one wallet of the logged-in user.
func (s *Service) Withdraw(code currency.Code, amount decimal.Decimal) (*Portfolio, error) {
	if _, err := s.registry.Get(code.String()); err != nil {
		return nil, err
	}
	_, portfolio, err := s.CurrentPortfolio()
	if err != nil {
		return nil, err
	}
	if err := portfolio.Withdraw(code, amount); err != nil {
		return nil, err
	}
	if err := s.portfolios.Save(*portfolio); err != nil {
		return nil, fmt.Errorf("save portfolio: %w", err)
	}
	return portfolio, nil
}

// TradeResult reports an executed buy or sell.
type TradeResult struct {
	Currency    currency.Code
	Amount      decimal.Decimal
	Rate        float64
	Cost        decimal.Decimal
	Stale       bool
	Balance     decimal.Decimal
	BaseBalance decimal.Decimal
}

// Buy purchases amount units of code, paying from the base wallet at the
// current resolver rate.
func (s *Service) Buy(ctx context.Context, code currency.Code, amount decimal.Decimal) (*TradeResult, error) {
	return s.trade(ctx, code, amount, true)
}

// Sell converts amount units of code back into the base wallet at the
// current resolver rate.
func (s *Service) Sell(ctx context.Context, code currency.Code, amount decimal.Decimal) (*TradeResult, error) {
	return s.trade(ctx, code, amount, false)
}

func (s *Service) trade(ctx context.Context, code currency.Code, amount decimal.Decimal, buy bool) (*TradeResult, error) {
	base := s.converter.Base()
	if code == base {
		return nil, fmt.Errorf("%w: cannot trade the base currency %s against itself", apperrors.ErrValidation, base)
	}
	if _, err := s.registry.Get(code.String()); err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: trade amount must be positive", apperrors.ErrValidation)
	}

	_, portfolio, err := s.CurrentPortfolio()
	if err != nil {
		return nil, err
	}

	rate, err := s.converter.Rate(ctx, code, s.now())
	if err != nil {
		return nil, fmt.Errorf("no rate for %s/%s: %w", code, base, err)
	}
	cost := amount.Mul(decimal.NewFromFloat(rate.Value))

	if buy {
		if err := portfolio.Withdraw(base, cost); err != nil {
			return nil, err
		}
		if err := portfolio.Deposit(code, amount); err != nil {
			return nil, err
		}
	} else {
		if err := portfolio.Withdraw(code, amount); err != nil {
			return nil, err
		}
		if err := portfolio.Deposit(base, cost); err != nil {
			return nil, err
		}
	}
	if err := s.portfolios.Save(*portfolio); err != nil {
		return nil, fmt.Errorf("save portfolio: %w", err)
	}

	op := "sell"
	if buy {
		op = "buy"
	}
	s.logger.Info("trade executed",
		slog.String("op", op),
		slog.String("currency", code.String()),
		slog.String("amount", amount.String()),
		slog.Float64("rate", rate.Value),
		slog.Bool("stale_rate", rate.Stale))

	return &TradeResult{
		Currency:    code,
		Amount:      amount,
		Rate:        rate.Value,
		Cost:        cost,
		Stale:       rate.Stale,
		Balance:     portfolio.Balance(code),
		BaseBalance: portfolio.Balance(base),
	}, nil
}

// Valuate prices the logged-in user's portfolio in the base currency.
func (s *Service) Valuate(ctx context.Context) (*User, rates.Valuation, error) {
	user, portfolio, err := s.CurrentPortfolio()
	if err != nil {
		return nil, rates.Valuation{}, err
	}
	return user, s.valuer.Valuate(ctx, portfolio.Balances(), s.now()), nil
}
