// Package account holds users, their multi-currency portfolios, and the
// deposit/withdraw/trade operations on them. The valuation engine only
// ever reads portfolios; every mutation lives here.
package account

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/attacker735/finalproject-malygin-m25-555/internal/apperrors"
	"github.com/attacker735/finalproject-malygin-m25-555/internal/currency"
)

// User is a registered account.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	RegisteredAt time.Time
}

// InsufficientFundsError reports a withdraw or trade that exceeds the
// wallet balance.
type InsufficientFundsError struct {
	Code      currency.Code
	Available decimal.Decimal
	Required  decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient %s funds: have %s, need %s", e.Code, e.Available, e.Required)
}

// Portfolio maps currency codes to non-negative balances for one user.
type Portfolio struct {
	UserID  string
	Wallets map[currency.Code]decimal.Decimal
}

// NewPortfolio creates an empty portfolio with a zero wallet in the base
// currency, mirroring what registration hands to a new user.
func NewPortfolio(userID string, base currency.Code) *Portfolio {
	return &Portfolio{
		UserID:  userID,
		Wallets: map[currency.Code]decimal.Decimal{base: decimal.Zero},
	}
}

// Balance returns the wallet balance for a code, zero if absent.
func (p *Portfolio) Balance(code currency.Code) decimal.Decimal {
	if b, ok := p.Wallets[code]; ok {
		return b
	}
	return decimal.Zero
}

// Balances returns a copy of the holdings; callers cannot mutate the
// portfolio through it.
func (p *Portfolio) Balances() map[currency.Code]decimal.Decimal {
	out := make(map[currency.Code]decimal.Decimal, len(p.Wallets))
	for code, balance := range p.Wallets {
		out[code] = balance
	}
	return out
}

// Deposit adds a positive amount to the wallet, creating it on first use.
func (p *Portfolio) Deposit(code currency.Code, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: deposit amount must be positive", apperrors.ErrValidation)
	}
	if p.Wallets == nil {
		p.Wallets = make(map[currency.Code]decimal.Decimal)
	}
	p.Wallets[code] = p.Balance(code).Add(amount)
	return nil
}

// Withdraw removes a positive amount from the wallet, failing with
// InsufficientFundsError when the balance does not cover it.
func (p *Portfolio) Withdraw(code currency.Code, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: withdraw amount must be positive", apperrors.ErrValidation)
	}
	balance := p.Balance(code)
	if balance.LessThan(amount) {
		return &InsufficientFundsError{Code: code, Available: balance, Required: amount}
	}
	p.Wallets[code] = balance.Sub(amount)
	return nil
}
