package account

import (
	"context"
	"errors"
	"testing"

	"centavo/internal/shared/logger"
)

// MockRepository is a mock implementation of Repository interface
type MockRepository struct {
	CreateFunc            func(ctx context.Context, params CreateParams) (*Account, error)
	GetFunc               func(ctx context.Context, accountID string) (*Account, error)
	GetDetailsFunc        func(ctx context.Context, accountID string) (*Details, error)
	ListFunc              func(ctx context.Context, includeInactive bool) ([]*Account, error)
	UpdateFunc            func(ctx context.Context, accountID string, params UpdateParams) (*Account, error)
	DeactivateFunc        func(ctx context.Context, accountID string) error
	RebuildBalancesFunc   func(ctx context.Context, accountID string) (int64, error)
	CompareBalancesFunc   func(ctx context.Context, accountID string) ([]BalanceComparison, error)
}

func (m *MockRepository) Create(ctx context.Context, params CreateParams) (*Account, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, params)
	}
	return nil, nil
}

func (m *MockRepository) Get(ctx context.Context, accountID string) (*Account, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, accountID)
	}
	return nil, nil
}

func (m *MockRepository) GetDetails(ctx context.Context, accountID string) (*Details, error) {
	if m.GetDetailsFunc != nil {
		return m.GetDetailsFunc(ctx, accountID)
	}
	return nil, nil
}

func (m *MockRepository) List(ctx context.Context, includeInactive bool) ([]*Account, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, includeInactive)
	}
	return nil, nil
}

func (m *MockRepository) Update(ctx context.Context, accountID string, params UpdateParams) (*Account, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, accountID, params)
	}
	return nil, nil
}

func (m *MockRepository) Deactivate(ctx context.Context, accountID string) error {
	if m.DeactivateFunc != nil {
		return m.DeactivateFunc(ctx, accountID)
	}
	return nil
}

func (m *MockRepository) RebuildBalances(ctx context.Context, accountID string) (int64, error) {
	if m.RebuildBalancesFunc != nil {
		return m.RebuildBalancesFunc(ctx, accountID)
	}
	return 0, nil
}

func (m *MockRepository) CompareBalances(ctx context.Context, accountID string) ([]BalanceComparison, error) {
	if m.CompareBalancesFunc != nil {
		return m.CompareBalancesFunc(ctx, accountID)
	}
	return nil, nil
}

func newTestService(repo *MockRepository) *Service {
	return NewService(repo, logger.Nop())
}

func TestCreate_Defaults(t *testing.T) {
	var got CreateParams
	repo := &MockRepository{
		CreateFunc: func(ctx context.Context, params CreateParams) (*Account, error) {
			got = params
			return &Account{AccountID: params.AccountID, AccountType: params.AccountType, AccountRole: params.AccountRole}, nil
		},
	}
	service := newTestService(repo)

	_, err := service.Create(context.Background(), CreateParams{
		AccountID:    "checking",
		Name:         "Checking",
		AccountClass: ClassCash,
	})
	if err != nil {
		t.Fatalf("Create() unexpected error: %v", err)
	}
	if got.AccountRole != RoleOnBudget {
		t.Errorf("Create() role = %q, want default %q", got.AccountRole, RoleOnBudget)
	}
	if got.AccountType != TypeAsset {
		t.Errorf("Create() type = %q, want inferred %q", got.AccountType, TypeAsset)
	}
}

func TestCreate_InvalidParams(t *testing.T) {
	service := newTestService(&MockRepository{})

	_, err := service.Create(context.Background(), CreateParams{
		AccountID:    "visa",
		Name:         "Visa",
		AccountType:  TypeAsset,
		AccountClass: ClassCredit,
	})
	if !errors.Is(err, ErrClassTypeMismatch) {
		t.Errorf("Create() error = %v, want %v", err, ErrClassTypeMismatch)
	}
}

func TestDeactivate(t *testing.T) {
	tests := []struct {
		name    string
		balance int64
		wantErr error
	}{
		{name: "zero balance", balance: 0},
		{name: "positive balance", balance: 1250, wantErr: ErrBalanceNotZero},
		{name: "negative balance", balance: -300, wantErr: ErrBalanceNotZero},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &MockRepository{
				GetFunc: func(ctx context.Context, accountID string) (*Account, error) {
					return &Account{AccountID: accountID, CurrentBalanceMinor: tt.balance, IsActive: true}, nil
				},
			}
			service := newTestService(repo)

			err := service.Deactivate(context.Background(), "checking")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Deactivate() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Errorf("Deactivate() unexpected error: %v", err)
			}
		})
	}
}

func TestRebuild_UnknownAccount(t *testing.T) {
	repo := &MockRepository{
		GetFunc: func(ctx context.Context, accountID string) (*Account, error) {
			return nil, ErrAccountNotFound
		},
	}
	service := newTestService(repo)

	_, err := service.Rebuild(context.Background(), "ghost")
	if !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("Rebuild() error = %v, want %v", err, ErrAccountNotFound)
	}
}

func TestVerifyBalances(t *testing.T) {
	repo := &MockRepository{
		CompareBalancesFunc: func(ctx context.Context, accountID string) ([]BalanceComparison, error) {
			return []BalanceComparison{
				{AccountID: "checking", CachedMinor: 100000, DerivedMinor: 100000},
				{AccountID: "savings", CachedMinor: 52000, DerivedMinor: 50000},
			}, nil
		},
	}
	service := newTestService(repo)

	drifts, err := service.VerifyBalances(context.Background(), "")
	if err != nil {
		t.Fatalf("VerifyBalances() unexpected error: %v", err)
	}
	if len(drifts) != 1 {
		t.Fatalf("VerifyBalances() returned %d drifts, want 1", len(drifts))
	}
	if drifts[0].AccountID != "savings" {
		t.Errorf("drift account = %s, want savings", drifts[0].AccountID)
	}
	if drifts[0].DriftMinor != 2000 {
		t.Errorf("drift = %d, want 2000", drifts[0].DriftMinor)
	}
}
