package account

import (
	"errors"
	"regexp"
	"time"
)

// Account classification. Type drives net-worth sign, class drives
// valuation, role drives budget participation.
type Type string

type Class string

type Role string

const (
	TypeAsset     Type = "asset"
	TypeLiability Type = "liability"

	ClassCash       Class = "cash"
	ClassCredit     Class = "credit"
	ClassInvestment Class = "investment"
	ClassLoan       Class = "loan"
	ClassTangible   Class = "tangible"
	ClassOther      Class = "other"

	RoleOnBudget Role = "on_budget"
	RoleTracking Role = "tracking"
)

var (
	// Allowed classification values for validation
	accountTypes = map[Type]struct{}{
		TypeAsset:     {},
		TypeLiability: {},
	}
	accountClasses = map[Class]struct{}{
		ClassCash:       {},
		ClassCredit:     {},
		ClassInvestment: {},
		ClassLoan:       {},
		ClassTangible:   {},
		ClassOther:      {},
	}
	accountRoles = map[Role]struct{}{
		RoleOnBudget: {},
		RoleTracking: {},
	}
	// Classes with a fixed type; "other" may be either.
	classTypes = map[Class]Type{
		ClassCash:       TypeAsset,
		ClassInvestment: TypeAsset,
		ClassTangible:   TypeAsset,
		ClassCredit:     TypeLiability,
		ClassLoan:       TypeLiability,
	}
)

var slugPattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// Domain errors
var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrInvalidSlug        = errors.New("identifier must match ^[a-z0-9_]+$")
	ErrNameRequired       = errors.New("name is required")
	ErrInvalidAccountType = errors.New("invalid account type")
	ErrInvalidClass       = errors.New("invalid account class")
	ErrInvalidRole        = errors.New("invalid account role")
	ErrClassTypeMismatch  = errors.New("account class does not match account type")
	ErrBalanceNotZero     = errors.New("account balance must be zero before deactivation")
	ErrAlreadyExists      = errors.New("identifier already in use")
)

// Account represents a financial account. CurrentBalanceMinor is a cache:
// it must always equal the sum of the account's active postings.
type Account struct {
	AccountID           string    `json:"accountId"`
	Name                string    `json:"name"`
	AccountType         Type      `json:"accountType"`
	AccountClass        Class     `json:"accountClass"`
	AccountRole         Role      `json:"accountRole"`
	CurrentBalanceMinor int64     `json:"currentBalanceMinor"`
	IsActive            bool      `json:"isActive"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// Details holds the class-specific detail record. Exactly one of the
// groups below applies, matching the account's class; "other" has none.
type Details struct {
	// cash
	InterestRateBps *int32 `json:"interestRateBps,omitempty"`
	// credit
	CreditLimitMinor *int64 `json:"creditLimitMinor,omitempty"`
	// investment
	Brokerage *string `json:"brokerage,omitempty"`
	// loan
	OriginalPrincipalMinor *int64 `json:"originalPrincipalMinor,omitempty"`
	LoanInterestRateBps    *int32 `json:"loanInterestRateBps,omitempty"`
	// tangible
	ValuationMinor *int64     `json:"valuationMinor,omitempty"`
	ValuationDate  *time.Time `json:"valuationDate,omitempty"`
}

// CreateParams contains parameters for creating a new account
type CreateParams struct {
	AccountID    string
	Name         string
	AccountType  Type
	AccountClass Class
	AccountRole  Role
	Details      Details
}

// Validate validates the create parameters
func (p CreateParams) Validate() error {
	if !IsValidSlug(p.AccountID) {
		return ErrInvalidSlug
	}
	if p.Name == "" {
		return ErrNameRequired
	}
	if _, ok := accountTypes[p.AccountType]; !ok {
		return ErrInvalidAccountType
	}
	if _, ok := accountClasses[p.AccountClass]; !ok {
		return ErrInvalidClass
	}
	if _, ok := accountRoles[p.AccountRole]; !ok {
		return ErrInvalidRole
	}
	if want, fixed := classTypes[p.AccountClass]; fixed && want != p.AccountType {
		return ErrClassTypeMismatch
	}
	return nil
}

// UpdateParams contains parameters for updating an account
type UpdateParams struct {
	Name        *string
	AccountRole *Role
}

// Validate validates the update parameters
func (p UpdateParams) Validate() error {
	if p.Name != nil && *p.Name == "" {
		return ErrNameRequired
	}
	if p.AccountRole != nil {
		if _, ok := accountRoles[*p.AccountRole]; !ok {
			return ErrInvalidRole
		}
	}
	return nil
}

// BalanceDrift reports a cached balance that disagrees with the ledger.
type BalanceDrift struct {
	AccountID    string `json:"accountId"`
	CachedMinor  int64  `json:"cachedMinor"`
	DerivedMinor int64  `json:"derivedMinor"`
	DriftMinor   int64  `json:"driftMinor"`
}

// IsValidSlug checks if the provided identifier is a valid slug.
func IsValidSlug(s string) bool {
	return s != "" && len(s) <= 64 && slugPattern.MatchString(s)
}
