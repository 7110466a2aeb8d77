package investment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"centavo/internal/domain/account"
)

// AccountDirectory is the account lookup the investment engine needs.
type AccountDirectory interface {
	Get(ctx context.Context, accountID string) (*account.Account, error)
}

type Service struct {
	repo     Repository
	accounts AccountDirectory
	log      zerolog.Logger
}

func NewService(repo Repository, accounts AccountDirectory, log zerolog.Logger) *Service {
	return &Service{repo: repo, accounts: accounts, log: log}
}

// Portfolio derives the account's current state from its active positions
// and latest prices. A position without a recorded price contributes zero
// market value but its full cost basis, so the gap shows up as a loss
// rather than hiding.
func (s *Service) Portfolio(ctx context.Context, accountID string) (*Portfolio, error) {
	a, err := s.requireInvestmentAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	quotes, err := s.repo.ActivePositions(ctx, accountID)
	if err != nil {
		return nil, err
	}

	p := &Portfolio{
		AccountID:       accountID,
		LedgerCashMinor: a.CurrentBalanceMinor,
		Positions:       make([]PositionView, 0, len(quotes)),
	}
	var totalCostBasis int64
	for _, q := range quotes {
		var marketValue int64
		if q.PriceMinor != nil {
			marketValue = roundHalfUpMinor(q.Quantity.Mul(decimal.NewFromInt(*q.PriceMinor)))
		}
		costBasis := roundHalfUpMinor(q.Quantity.Mul(decimal.NewFromInt(q.AvgCostMinor)))

		p.Positions = append(p.Positions, PositionView{
			SecurityID:       q.SecurityID,
			Name:             q.SecurityName,
			Quantity:         q.Quantity,
			AvgCostMinor:     q.AvgCostMinor,
			PriceMinor:       q.PriceMinor,
			MarketValueMinor: marketValue,
			CostBasisMinor:   costBasis,
			GainMinor:        marketValue - costBasis,
		})
		p.HoldingsValueMinor += marketValue
		totalCostBasis += costBasis
	}

	p.UninvestedCashMinor = p.LedgerCashMinor - totalCostBasis
	p.NAVMinor = p.UninvestedCashMinor + p.HoldingsValueMinor
	p.TotalReturnMinor = p.NAVMinor - p.LedgerCashMinor
	if p.LedgerCashMinor > 0 {
		pct := float64(p.TotalReturnMinor) / float64(p.LedgerCashMinor)
		p.TotalReturnPct = &pct
	}
	return p, nil
}

// ReconcileHoldings replaces the account's holdings with what the
// brokerage reports and returns the resulting portfolio. Position history
// is preserved: each (account, security) pair versions under one concept.
func (s *Service) ReconcileHoldings(ctx context.Context, accountID string, holdings []Holding) (*Portfolio, error) {
	if _, err := s.requireInvestmentAccount(ctx, accountID); err != nil {
		return nil, err
	}

	snapshot := make([]Holding, 0, len(holdings))
	seen := make(map[string]bool, len(holdings))
	for _, h := range holdings {
		if err := h.Validate(); err != nil {
			return nil, fmt.Errorf("holding %q: %w", h.Ticker, err)
		}
		h.Ticker = strings.ToUpper(strings.TrimSpace(h.Ticker))
		if seen[h.Ticker] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateHolding, h.Ticker)
		}
		seen[h.Ticker] = true
		snapshot = append(snapshot, h)
	}

	closed, inserted, err := s.repo.ReconcileHoldings(ctx, accountID, snapshot, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	s.log.Info().
		Str("account_id", accountID).
		Int("holdings", len(snapshot)).
		Int("closed", closed).
		Int("inserted", inserted).
		Msg("reconciled holdings")

	return s.Portfolio(ctx, accountID)
}

// RecordPrice upserts the price for one security and day. The date is
// truncated to a UTC day.
func (s *Service) RecordPrice(ctx context.Context, securityID string, priceDate time.Time, priceMinor int64) (*PricePoint, error) {
	if priceMinor <= 0 {
		return nil, ErrInvalidPrice
	}
	if priceDate.IsZero() {
		return nil, ErrDateRequired
	}
	if _, err := s.repo.GetSecurity(ctx, securityID); err != nil {
		if errors.Is(err, ErrUnknownSecurity) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSecurity, securityID)
		}
		return nil, err
	}

	p := &PricePoint{
		SecurityID: securityID,
		PriceDate:  time.Date(priceDate.Year(), priceDate.Month(), priceDate.Day(), 0, 0, 0, 0, time.UTC),
		PriceMinor: priceMinor,
	}
	if err := s.repo.RecordPrice(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// UpsertSecurity registers or renames a security. The id is the
// lowercased ticker; the name defaults to the ticker itself.
func (s *Service) UpsertSecurity(ctx context.Context, ticker, name string) (*Security, error) {
	ticker = strings.TrimSpace(ticker)
	if !tickerPattern.MatchString(ticker) {
		return nil, ErrInvalidTicker
	}
	if name == "" {
		name = strings.ToUpper(ticker)
	}
	sec := &Security{SecurityID: strings.ToLower(ticker), Name: name}
	if err := s.repo.UpsertSecurity(ctx, sec); err != nil {
		return nil, err
	}
	return sec, nil
}

// AccountValue reports the account's NAV for the net worth rollup. ok is
// false when the account is not an active investment account, so the
// caller can fall back instead of failing the whole rollup.
func (s *Service) AccountValue(ctx context.Context, accountID string) (int64, bool, error) {
	p, err := s.Portfolio(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrUnknownAccount) || errors.Is(err, ErrInactiveAccount) || errors.Is(err, ErrNotInvestmentAccount) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return p.NAVMinor, true, nil
}

func (s *Service) requireInvestmentAccount(ctx context.Context, accountID string) (*account.Account, error) {
	a, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		if errors.Is(err, account.ErrAccountNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, accountID)
		}
		return nil, fmt.Errorf("looking up account %s: %w", accountID, err)
	}
	if !a.IsActive {
		return nil, fmt.Errorf("%w: %s", ErrInactiveAccount, accountID)
	}
	if a.AccountClass != account.ClassInvestment {
		return nil, fmt.Errorf("%w: %s", ErrNotInvestmentAccount, accountID)
	}
	return a, nil
}
