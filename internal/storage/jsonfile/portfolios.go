package jsonfile

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/attacker735/finalproject-malygin-m25-555/internal/account"
	"github.com/attacker735/finalproject-malygin-m25-555/internal/apperrors"
	"github.com/attacker735/finalproject-malygin-m25-555/internal/currency"
)

// PortfolioStore persists portfolios in portfolios.json.
type PortfolioStore struct {
	mu   sync.Mutex
	path string
}

// NewPortfolioStore returns a store writing under the given data directory.
func NewPortfolioStore(dir string) *PortfolioStore {
	return &PortfolioStore{path: filepath.Join(dir, "portfolios.json")}
}

type walletRecord struct {
	Balance decimal.Decimal `json:"balance"`
}

type portfolioRecord struct {
	UserID  string                  `json:"user_id"`
	Wallets map[string]walletRecord `json:"wallets"`
}

func toPortfolioRecord(p account.Portfolio) portfolioRecord {
	wallets := make(map[string]walletRecord, len(p.Wallets))
	for code, balance := range p.Wallets {
		wallets[code.String()] = walletRecord{Balance: balance}
	}
	return portfolioRecord{UserID: p.UserID, Wallets: wallets}
}

func (r portfolioRecord) toPortfolio() *account.Portfolio {
	wallets := make(map[currency.Code]decimal.Decimal, len(r.Wallets))
	for code, w := range r.Wallets {
		wallets[currency.Code(code)] = w.Balance
	}
	return &account.Portfolio{UserID: r.UserID, Wallets: wallets}
}

func (s *PortfolioStore) load() ([]portfolioRecord, error) {
	var records []portfolioRecord
	if _, err := readJSON(s.path, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Find returns the portfolio of one user.
func (s *PortfolioStore) Find(userID string) (*account.Portfolio, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if r.UserID == userID {
			return r.toPortfolio(), nil
		}
	}
	return nil, fmt.Errorf("%w: portfolio for user %q", apperrors.ErrNotFound, userID)
}

// Save inserts or updates a portfolio keyed by user id.
func (s *PortfolioStore) Save(p account.Portfolio) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.load()
	if err != nil {
		return err
	}
	updated := false
	for i, r := range records {
		if r.UserID == p.UserID {
			records[i] = toPortfolioRecord(p)
			updated = true
			break
		}
	}
	if !updated {
		records = append(records, toPortfolioRecord(p))
	}
	return writeJSON(s.path, records)
}
