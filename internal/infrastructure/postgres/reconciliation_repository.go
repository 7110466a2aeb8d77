package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"centavo/internal/domain/ledger"
	"centavo/internal/domain/reconciliation"
)

// ReconciliationRepository implements the reconciliation.Repository
// interface for PostgreSQL
type ReconciliationRepository struct {
	db *DB
}

// NewReconciliationRepository creates a new PostgreSQL reconciliation repository
func NewReconciliationRepository(db *DB) *ReconciliationRepository {
	return &ReconciliationRepository{db: db}
}

// LatestCheckpoint returns the account's newest checkpoint
func (r *ReconciliationRepository) LatestCheckpoint(ctx context.Context, accountID string) (*reconciliation.Checkpoint, error) {
	query := `
		SELECT reconciliation_id, account_id, created_at, statement_date,
		       statement_balance_minor, statement_pending_total_minor, previous_reconciliation_id
		FROM account_reconciliations
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	var c reconciliation.Checkpoint
	err := r.db.QueryRowContext(ctx, query, accountID).Scan(
		&c.ReconciliationID, &c.AccountID, &c.CreatedAt, &c.StatementDate,
		&c.StatementBalanceMinor, &c.StatementPendingMinor, &c.PreviousReconciliationID,
	)

	if err == sql.ErrNoRows {
		// Never reconciled; not an error.
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest checkpoint: %w", err)
	}

	return &c, nil
}

// AccountSnapshot returns the cached balance and the sum of active pending
// postings for the account
func (r *ReconciliationRepository) AccountSnapshot(ctx context.Context, accountID string) (int64, int64, error) {
	query := `
		SELECT current_balance_minor,
		       COALESCE((
		           SELECT SUM(amount_minor)
		           FROM transactions
		           WHERE account_id = accounts.account_id AND is_active AND status = 'pending'
		       ), 0)
		FROM accounts
		WHERE account_id = $1
	`

	var balance, pending int64
	err := r.db.QueryRowContext(ctx, query, accountID).Scan(&balance, &pending)

	if err == sql.ErrNoRows {
		return 0, 0, reconciliation.ErrUnknownAccount
	}
	if err != nil {
		return 0, 0, fmt.Errorf("failed to snapshot account: %w", err)
	}

	return balance, pending, nil
}

// CandidatePostings returns active postings recorded after since or still
// pending, ordered by (transaction date, recorded_at)
func (r *ReconciliationRepository) CandidatePostings(ctx context.Context, accountID string, since time.Time) ([]*ledger.Posting, error) {
	query := `
		SELECT transaction_version_id, concept_id, account_id, category_id, amount_minor,
		       status, transaction_date, memo, source, recorded_at, is_active
		FROM transactions
		WHERE account_id = $1 AND is_active
		  AND (recorded_at > $2 OR status = 'pending')
		ORDER BY transaction_date, recorded_at
	`

	rows, err := r.db.QueryContext(ctx, query, accountID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidate postings: %w", err)
	}
	defer rows.Close()

	var postings []*ledger.Posting
	for rows.Next() {
		var p ledger.Posting
		err := rows.Scan(
			&p.VersionID, &p.ConceptID, &p.AccountID, &p.CategoryID, &p.AmountMinor,
			&p.Status, &p.Date, &p.Memo, &p.Source, &p.RecordedAt, &p.IsActive,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan posting: %w", err)
		}
		postings = append(postings, &p)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating postings: %w", err)
	}

	return postings, nil
}

// CommitCheckpoint re-derives the cleared and pending sums with the account
// row locked, so postings landing concurrently serialize against the check.
// On a mismatch nothing is written and the caller gets *UnbalancedError.
func (r *ReconciliationRepository) CommitCheckpoint(ctx context.Context, c *reconciliation.Checkpoint) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var balance int64
	err = tx.QueryRowContext(ctx,
		`SELECT current_balance_minor FROM accounts WHERE account_id = $1 FOR UPDATE`,
		c.AccountID,
	).Scan(&balance)

	if err == sql.ErrNoRows {
		return reconciliation.ErrUnknownAccount
	}
	if err != nil {
		return fmt.Errorf("failed to lock account: %w", err)
	}

	var pending int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_minor), 0) FROM transactions WHERE account_id = $1 AND is_active AND status = 'pending'`,
		c.AccountID,
	).Scan(&pending)
	if err != nil {
		return fmt.Errorf("failed to sum pending postings: %w", err)
	}

	statement := reconciliation.Statement{
		Date:                c.StatementDate,
		ClearedBalanceMinor: c.StatementBalanceMinor,
		PendingTotalMinor:   c.StatementPendingMinor,
	}
	diffs := statement.Against(balance-pending, pending)
	if diffs.ClearedMinor != 0 || diffs.PendingMinor != 0 {
		return &reconciliation.UnbalancedError{Differences: diffs}
	}

	err = tx.QueryRowContext(ctx,
		`SELECT reconciliation_id FROM account_reconciliations WHERE account_id = $1 ORDER BY created_at DESC LIMIT 1`,
		c.AccountID,
	).Scan(&c.PreviousReconciliationID)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("failed to get chain head: %w", err)
	}

	query := `
		INSERT INTO account_reconciliations (reconciliation_id, account_id, created_at, statement_date,
		                                     statement_balance_minor, statement_pending_total_minor, previous_reconciliation_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = tx.ExecContext(ctx, query,
		c.ReconciliationID, c.AccountID, c.CreatedAt, asDate(c.StatementDate),
		c.StatementBalanceMinor, c.StatementPendingMinor, c.PreviousReconciliationID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert checkpoint: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
