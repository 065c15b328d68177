package account

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attacker735/finalproject-malygin-m25-555/internal/apperrors"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestNewPortfolioHasZeroBaseWallet(t *testing.T) {
	p := NewPortfolio("u1", "USD")
	assert.True(t, p.Balance("USD").IsZero())
	assert.True(t, p.Balance("BTC").IsZero(), "absent wallets read as zero")
}

func TestPortfolioDeposit(t *testing.T) {
	p := NewPortfolio("u1", "USD")

	require.NoError(t, p.Deposit("USD", dec("100.50")))
	require.NoError(t, p.Deposit("USD", dec("0.25")))
	assert.True(t, p.Balance("USD").Equal(dec("100.75")))

	require.NoError(t, p.Deposit("BTC", dec("0.5")))
	assert.True(t, p.Balance("BTC").Equal(dec("0.5")))
}

func TestPortfolioDepositRejectsNonPositive(t *testing.T) {
	p := NewPortfolio("u1", "USD")
	assert.ErrorIs(t, p.Deposit("USD", decimal.Zero), apperrors.ErrValidation)
	assert.ErrorIs(t, p.Deposit("USD", dec("-1")), apperrors.ErrValidation)
}

func TestPortfolioWithdraw(t *testing.T) {
	p := NewPortfolio("u1", "USD")
	require.NoError(t, p.Deposit("USD", dec("100")))

	require.NoError(t, p.Withdraw("USD", dec("40")))
	assert.True(t, p.Balance("USD").Equal(dec("60")))

	// Draining to exactly zero is allowed.
	require.NoError(t, p.Withdraw("USD", dec("60")))
	assert.True(t, p.Balance("USD").IsZero())
}

func TestPortfolioWithdrawInsufficientFunds(t *testing.T) {
	p := NewPortfolio("u1", "USD")
	require.NoError(t, p.Deposit("USD", dec("10")))

	err := p.Withdraw("USD", dec("10.01"))
	require.Error(t, err)

	var insufficient *InsufficientFundsError
	require.ErrorAs(t, err, &insufficient)
	assert.True(t, insufficient.Available.Equal(dec("10")))
	assert.True(t, insufficient.Required.Equal(dec("10.01")))

	// A failed withdraw leaves the balance untouched.
	assert.True(t, p.Balance("USD").Equal(dec("10")))
}

func TestPortfolioBalancesIsACopy(t *testing.T) {
	p := NewPortfolio("u1", "USD")
	require.NoError(t, p.Deposit("USD", dec("5")))

	balances := p.Balances()
	balances["USD"] = dec("9999")
	assert.True(t, p.Balance("USD").Equal(dec("5")))
}
