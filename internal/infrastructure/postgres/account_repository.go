package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"centavo/internal/domain/account"
)

// AccountRepository implements the account.Repository interface for PostgreSQL
type AccountRepository struct {
	db *DB
}

// NewAccountRepository creates a new PostgreSQL account repository
func NewAccountRepository(db *DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create creates a new account together with its class detail record
func (r *AccountRepository) Create(ctx context.Context, params account.CreateParams) (*account.Account, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO accounts (account_id, name, account_type, account_class, account_role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING account_id, name, account_type, account_class, account_role,
		          current_balance_minor, is_active, created_at, updated_at
	`

	var acc account.Account
	err = tx.QueryRowContext(
		ctx, query,
		params.AccountID, params.Name, params.AccountType, params.AccountClass, params.AccountRole,
	).Scan(
		&acc.AccountID, &acc.Name, &acc.AccountType, &acc.AccountClass, &acc.AccountRole,
		&acc.CurrentBalanceMinor, &acc.IsActive, &acc.CreatedAt, &acc.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return nil, account.ErrAlreadyExists
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	if err := insertAccountDetails(ctx, tx, params.AccountID, params.AccountClass, params.Details); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &acc, nil
}

func insertAccountDetails(ctx context.Context, tx *sql.Tx, accountID string, class account.Class, d account.Details) error {
	var err error
	switch class {
	case account.ClassCash:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO account_cash_details (account_id, interest_rate_bps) VALUES ($1, $2)`,
			accountID, d.InterestRateBps)
	case account.ClassCredit:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO account_credit_details (account_id, credit_limit_minor) VALUES ($1, $2)`,
			accountID, d.CreditLimitMinor)
	case account.ClassInvestment:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO account_investment_details (account_id, brokerage) VALUES ($1, $2)`,
			accountID, d.Brokerage)
	case account.ClassLoan:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO account_loan_details (account_id, original_principal_minor, interest_rate_bps) VALUES ($1, $2, $3)`,
			accountID, d.OriginalPrincipalMinor, d.LoanInterestRateBps)
	case account.ClassTangible:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO account_tangible_details (account_id, valuation_minor, valuation_date) VALUES ($1, $2, $3)`,
			accountID, d.ValuationMinor, asNullDate(d.ValuationDate))
	case account.ClassOther:
		// "other" carries no detail record
	}
	if err != nil {
		return fmt.Errorf("failed to create account details: %w", err)
	}
	return nil
}

// Get retrieves an account by its ID
func (r *AccountRepository) Get(ctx context.Context, accountID string) (*account.Account, error) {
	query := `
		SELECT account_id, name, account_type, account_class, account_role,
		       current_balance_minor, is_active, created_at, updated_at
		FROM accounts
		WHERE account_id = $1
	`

	var acc account.Account
	err := r.db.QueryRowContext(ctx, query, accountID).Scan(
		&acc.AccountID, &acc.Name, &acc.AccountType, &acc.AccountClass, &acc.AccountRole,
		&acc.CurrentBalanceMinor, &acc.IsActive, &acc.CreatedAt, &acc.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, account.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return &acc, nil
}

// GetDetails retrieves the class detail record for an account
func (r *AccountRepository) GetDetails(ctx context.Context, accountID string) (*account.Details, error) {
	var class account.Class
	err := r.db.QueryRowContext(ctx,
		`SELECT account_class FROM accounts WHERE account_id = $1`, accountID,
	).Scan(&class)

	if err == sql.ErrNoRows {
		return nil, account.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account class: %w", err)
	}

	var details account.Details
	switch class {
	case account.ClassCash:
		err = r.db.QueryRowContext(ctx,
			`SELECT interest_rate_bps FROM account_cash_details WHERE account_id = $1`, accountID,
		).Scan(&details.InterestRateBps)
	case account.ClassCredit:
		err = r.db.QueryRowContext(ctx,
			`SELECT credit_limit_minor FROM account_credit_details WHERE account_id = $1`, accountID,
		).Scan(&details.CreditLimitMinor)
	case account.ClassInvestment:
		err = r.db.QueryRowContext(ctx,
			`SELECT brokerage FROM account_investment_details WHERE account_id = $1`, accountID,
		).Scan(&details.Brokerage)
	case account.ClassLoan:
		err = r.db.QueryRowContext(ctx,
			`SELECT original_principal_minor, interest_rate_bps FROM account_loan_details WHERE account_id = $1`, accountID,
		).Scan(&details.OriginalPrincipalMinor, &details.LoanInterestRateBps)
	case account.ClassTangible:
		err = r.db.QueryRowContext(ctx,
			`SELECT valuation_minor, valuation_date FROM account_tangible_details WHERE account_id = $1`, accountID,
		).Scan(&details.ValuationMinor, &details.ValuationDate)
	default:
		return &details, nil
	}

	if err == sql.ErrNoRows {
		// No detail row yet; every field stays nil.
		return &details, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account details: %w", err)
	}

	return &details, nil
}

// List retrieves accounts ordered by name
func (r *AccountRepository) List(ctx context.Context, includeInactive bool) ([]*account.Account, error) {
	query := `
		SELECT account_id, name, account_type, account_class, account_role,
		       current_balance_minor, is_active, created_at, updated_at
		FROM accounts
		WHERE ($1 OR is_active)
		ORDER BY name, account_id
	`

	rows, err := r.db.QueryContext(ctx, query, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*account.Account
	for rows.Next() {
		var acc account.Account
		err := rows.Scan(
			&acc.AccountID, &acc.Name, &acc.AccountType, &acc.AccountClass, &acc.AccountRole,
			&acc.CurrentBalanceMinor, &acc.IsActive, &acc.CreatedAt, &acc.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, &acc)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}

	return accounts, nil
}

// Update applies the non-nil fields of params to an account
func (r *AccountRepository) Update(ctx context.Context, accountID string, params account.UpdateParams) (*account.Account, error) {
	query := `
		UPDATE accounts
		SET name = COALESCE($1, name),
		    account_role = COALESCE($2, account_role),
		    updated_at = now()
		WHERE account_id = $3
		RETURNING account_id, name, account_type, account_class, account_role,
		          current_balance_minor, is_active, created_at, updated_at
	`

	var acc account.Account
	err := r.db.QueryRowContext(ctx, query, params.Name, params.AccountRole, accountID).Scan(
		&acc.AccountID, &acc.Name, &acc.AccountType, &acc.AccountClass, &acc.AccountRole,
		&acc.CurrentBalanceMinor, &acc.IsActive, &acc.CreatedAt, &acc.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, account.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update account: %w", err)
	}

	return &acc, nil
}

// Deactivate soft-deletes an account
func (r *AccountRepository) Deactivate(ctx context.Context, accountID string) error {
	query := `UPDATE accounts SET is_active = FALSE, updated_at = now() WHERE account_id = $1`

	result, err := r.db.ExecContext(ctx, query, accountID)
	if err != nil {
		return fmt.Errorf("failed to deactivate account: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return account.ErrAccountNotFound
	}

	return nil
}

// RebuildBalances resets cached balances to the sum of active postings.
// An empty accountID rebuilds every account.
func (r *AccountRepository) RebuildBalances(ctx context.Context, accountID string) (int64, error) {
	query := `
		UPDATE accounts
		SET current_balance_minor = COALESCE((
		        SELECT SUM(amount_minor)
		        FROM transactions
		        WHERE transactions.account_id = accounts.account_id AND is_active
		    ), 0),
		    updated_at = now()
		WHERE ($1 = '' OR account_id = $1)
	`

	result, err := r.db.ExecContext(ctx, query, accountID)
	if err != nil {
		return 0, fmt.Errorf("failed to rebuild balances: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return rows, nil
}

// CompareBalances returns cached vs ledger-derived balances.
// An empty accountID compares every account.
func (r *AccountRepository) CompareBalances(ctx context.Context, accountID string) ([]account.BalanceComparison, error) {
	query := `
		SELECT a.account_id, a.current_balance_minor, COALESCE(SUM(t.amount_minor), 0)
		FROM accounts a
		LEFT JOIN transactions t ON t.account_id = a.account_id AND t.is_active
		WHERE ($1 = '' OR a.account_id = $1)
		GROUP BY a.account_id, a.current_balance_minor
		ORDER BY a.account_id
	`

	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to compare balances: %w", err)
	}
	defer rows.Close()

	var comparisons []account.BalanceComparison
	for rows.Next() {
		var c account.BalanceComparison
		if err := rows.Scan(&c.AccountID, &c.CachedMinor, &c.DerivedMinor); err != nil {
			return nil, fmt.Errorf("failed to scan balance comparison: %w", err)
		}
		comparisons = append(comparisons, c)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating balance comparisons: %w", err)
	}

	return comparisons, nil
}
