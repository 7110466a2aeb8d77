package account

import "context"

// BalanceComparison pairs the cached balance with the one derived from
// active postings, for drift detection.
type BalanceComparison struct {
	AccountID    string
	CachedMinor  int64
	DerivedMinor int64
}

// Repository defines the interface for account data access
// This interface is defined in the domain layer, but implemented in the infrastructure layer
type Repository interface {
	// Create creates a new account together with its class detail record
	Create(ctx context.Context, params CreateParams) (*Account, error)

	// Get retrieves an account by its ID
	Get(ctx context.Context, accountID string) (*Account, error)

	// GetDetails retrieves the class detail record for an account
	GetDetails(ctx context.Context, accountID string) (*Details, error)

	// List retrieves accounts ordered by name
	List(ctx context.Context, includeInactive bool) ([]*Account, error)

	// Update applies the non-nil fields of params to an account
	Update(ctx context.Context, accountID string, params UpdateParams) (*Account, error)

	// Deactivate soft-deletes an account
	Deactivate(ctx context.Context, accountID string) error

	// RebuildBalances resets cached balances to the sum of active postings.
	// An empty accountID rebuilds every account. Returns the number of
	// accounts touched.
	RebuildBalances(ctx context.Context, accountID string) (int64, error)

	// CompareBalances returns cached vs ledger-derived balances.
	// An empty accountID compares every account.
	CompareBalances(ctx context.Context, accountID string) ([]BalanceComparison, error)
}
