package account

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	accountMeter  = otel.Meter("centavo/account")
	driftCount, _ = accountMeter.Int64Counter("ledger.balance.drift",
		metric.WithDescription("Accounts whose cached balance disagrees with the ledger"),
	)
)

// Service contains the business logic for account operations
type Service struct {
	repo Repository
	log  zerolog.Logger
}

// NewService creates a new account service
func NewService(repo Repository, log zerolog.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// Create creates a new account with its class detail record
func (s *Service) Create(ctx context.Context, params CreateParams) (*Account, error) {
	// Default to on-budget; tracking is the exception.
	if params.AccountRole == "" {
		params.AccountRole = RoleOnBudget
	}
	// Classes with a fixed type don't need the caller to repeat it.
	if params.AccountType == "" {
		if t, ok := classTypes[params.AccountClass]; ok {
			params.AccountType = t
		}
	}

	if err := params.Validate(); err != nil {
		return nil, err
	}

	return s.repo.Create(ctx, params)
}

// Get retrieves an account by ID
func (s *Service) Get(ctx context.Context, accountID string) (*Account, error) {
	return s.repo.Get(ctx, accountID)
}

// GetDetails retrieves the class detail record for an account
func (s *Service) GetDetails(ctx context.Context, accountID string) (*Details, error) {
	if _, err := s.repo.Get(ctx, accountID); err != nil {
		return nil, err
	}
	return s.repo.GetDetails(ctx, accountID)
}

// List retrieves accounts
func (s *Service) List(ctx context.Context, includeInactive bool) ([]*Account, error) {
	return s.repo.List(ctx, includeInactive)
}

// Update renames an account or changes its budget role
func (s *Service) Update(ctx context.Context, accountID string, params UpdateParams) (*Account, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.repo.Get(ctx, accountID); err != nil {
		return nil, err
	}
	return s.repo.Update(ctx, accountID, params)
}

// Deactivate soft-deletes an account. Only accounts with a zero cached
// balance can be deactivated; drain the account first.
func (s *Service) Deactivate(ctx context.Context, accountID string) error {
	acc, err := s.repo.Get(ctx, accountID)
	if err != nil {
		return err
	}
	if acc.CurrentBalanceMinor != 0 {
		return ErrBalanceNotZero
	}
	return s.repo.Deactivate(ctx, accountID)
}

// Rebuild recomputes cached balances from the sum of active postings.
// An empty accountID rebuilds every account. Idempotent: rebuilding a
// consistent cache changes nothing.
func (s *Service) Rebuild(ctx context.Context, accountID string) (int64, error) {
	if accountID != "" {
		if _, err := s.repo.Get(ctx, accountID); err != nil {
			return 0, err
		}
	}

	n, err := s.repo.RebuildBalances(ctx, accountID)
	if err != nil {
		return 0, err
	}

	s.log.Info().Str("account_id", accountID).Int64("accounts", n).Msg("rebuilt account balances")
	return n, nil
}

// VerifyBalances compares cached balances against the ledger and reports
// every mismatch. It never repairs anything; rebuilds stay an explicit,
// operator-driven action.
func (s *Service) VerifyBalances(ctx context.Context, accountID string) ([]BalanceDrift, error) {
	comparisons, err := s.repo.CompareBalances(ctx, accountID)
	if err != nil {
		return nil, err
	}

	drifts := make([]BalanceDrift, 0)
	for _, c := range comparisons {
		if c.CachedMinor == c.DerivedMinor {
			continue
		}
		d := BalanceDrift{
			AccountID:    c.AccountID,
			CachedMinor:  c.CachedMinor,
			DerivedMinor: c.DerivedMinor,
			DriftMinor:   c.CachedMinor - c.DerivedMinor,
		}
		drifts = append(drifts, d)

		s.log.Warn().
			Str("account_id", d.AccountID).
			Int64("cached_minor", d.CachedMinor).
			Int64("derived_minor", d.DerivedMinor).
			Msg("cache drift: account balance disagrees with ledger")
		driftCount.Add(ctx, 1, metric.WithAttributes(attribute.String("account_id", d.AccountID)))
	}

	return drifts, nil
}
