package account

import (
	"errors"
	"testing"
)

func TestCreateParamsValidate(t *testing.T) {
	tests := []struct {
		name    string
		params  CreateParams
		wantErr error
	}{
		{
			name:   "valid cash account",
			params: CreateParams{AccountID: "checking", Name: "Checking", AccountType: TypeAsset, AccountClass: ClassCash, AccountRole: RoleOnBudget},
		},
		{
			name:   "valid credit account",
			params: CreateParams{AccountID: "visa", Name: "Visa", AccountType: TypeLiability, AccountClass: ClassCredit, AccountRole: RoleOnBudget},
		},
		{
			name:   "other class may be an asset",
			params: CreateParams{AccountID: "misc", Name: "Misc", AccountType: TypeAsset, AccountClass: ClassOther, AccountRole: RoleTracking},
		},
		{
			name:   "other class may be a liability",
			params: CreateParams{AccountID: "misc", Name: "Misc", AccountType: TypeLiability, AccountClass: ClassOther, AccountRole: RoleTracking},
		},
		{
			name:    "invalid slug",
			params:  CreateParams{AccountID: "My-Checking", Name: "Checking", AccountType: TypeAsset, AccountClass: ClassCash, AccountRole: RoleOnBudget},
			wantErr: ErrInvalidSlug,
		},
		{
			name:    "missing name",
			params:  CreateParams{AccountID: "checking", AccountType: TypeAsset, AccountClass: ClassCash, AccountRole: RoleOnBudget},
			wantErr: ErrNameRequired,
		},
		{
			name:    "unknown type",
			params:  CreateParams{AccountID: "checking", Name: "Checking", AccountType: "equity", AccountClass: ClassCash, AccountRole: RoleOnBudget},
			wantErr: ErrInvalidAccountType,
		},
		{
			name:    "unknown class",
			params:  CreateParams{AccountID: "checking", Name: "Checking", AccountType: TypeAsset, AccountClass: "crypto", AccountRole: RoleOnBudget},
			wantErr: ErrInvalidClass,
		},
		{
			name:    "unknown role",
			params:  CreateParams{AccountID: "checking", Name: "Checking", AccountType: TypeAsset, AccountClass: ClassCash, AccountRole: "offline"},
			wantErr: ErrInvalidRole,
		},
		{
			name:    "credit card cannot be an asset",
			params:  CreateParams{AccountID: "visa", Name: "Visa", AccountType: TypeAsset, AccountClass: ClassCredit, AccountRole: RoleOnBudget},
			wantErr: ErrClassTypeMismatch,
		},
		{
			name:    "cash cannot be a liability",
			params:  CreateParams{AccountID: "checking", Name: "Checking", AccountType: TypeLiability, AccountClass: ClassCash, AccountRole: RoleOnBudget},
			wantErr: ErrClassTypeMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Errorf("Validate() unexpected error: %v", err)
			}
		})
	}
}
