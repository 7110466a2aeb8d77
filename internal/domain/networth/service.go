package networth

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"centavo/internal/domain/account"
)

// AccountSource lists accounts and their class detail records.
type AccountSource interface {
	List(ctx context.Context, includeInactive bool) ([]*account.Account, error)
	GetDetails(ctx context.Context, accountID string) (*account.Details, error)
}

// PortfolioValuer derives an investment account's current value. ok is
// false when no value could be derived, in which case the cached balance
// stands in.
type PortfolioValuer interface {
	AccountValue(ctx context.Context, accountID string) (valueMinor int64, ok bool, err error)
}

// Service rolls active accounts up into a net worth figure. It only
// reads: cash, credit, loan, and other accounts contribute their cached
// balance, investment accounts their derived portfolio value, tangible
// accounts their recorded valuation.
type Service struct {
	accounts AccountSource
	valuer   PortfolioValuer
	log      zerolog.Logger
}

// NewService wires the rollup. valuer may be nil, in which case
// investment accounts fall back to their cached balance.
func NewService(accounts AccountSource, valuer PortfolioValuer, log zerolog.Logger) *Service {
	return &Service{accounts: accounts, valuer: valuer, log: log}
}

func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	accounts, err := s.accounts.List(ctx, false)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		AsOf:     time.Now().UTC(),
		Accounts: make([]AccountValue, 0, len(accounts)),
	}
	for _, a := range accounts {
		value, source, err := s.valueOf(ctx, a)
		if err != nil {
			return nil, err
		}
		summary.Accounts = append(summary.Accounts, AccountValue{
			AccountID:    a.AccountID,
			Name:         a.Name,
			AccountType:  a.AccountType,
			AccountClass: a.AccountClass,
			ValueMinor:   value,
			Source:       source,
		})
		if a.AccountType == account.TypeAsset {
			summary.AssetTotalMinor += value
		} else {
			summary.LiabilityTotalMinor += -value
		}
	}
	summary.NetWorthMinor = summary.AssetTotalMinor - summary.LiabilityTotalMinor
	return summary, nil
}

func (s *Service) valueOf(ctx context.Context, a *account.Account) (int64, ValueSource, error) {
	switch a.AccountClass {
	case account.ClassInvestment:
		if s.valuer == nil {
			break
		}
		value, ok, err := s.valuer.AccountValue(ctx, a.AccountID)
		if err != nil {
			return 0, "", fmt.Errorf("valuing investment account %s: %w", a.AccountID, err)
		}
		if ok {
			return value, SourcePortfolio, nil
		}
	case account.ClassTangible:
		details, err := s.accounts.GetDetails(ctx, a.AccountID)
		if err != nil {
			return 0, "", fmt.Errorf("loading details for account %s: %w", a.AccountID, err)
		}
		if details != nil && details.ValuationMinor != nil {
			return *details.ValuationMinor, SourceValuation, nil
		}
	}
	return a.CurrentBalanceMinor, SourceCached, nil
}
