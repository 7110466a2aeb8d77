package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"centavo/internal/domain/ledger"
)

// LedgerRepository implements the ledger.Repository interface for PostgreSQL.
// Every mutating method runs in a single transaction: the posting rows, the
// account balance cache, and the monthly budget cache move together or not
// at all.
type LedgerRepository struct {
	db *DB
}

// NewLedgerRepository creates a new PostgreSQL ledger repository
func NewLedgerRepository(db *DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Insert writes a posting and applies its deltas atomically
func (r *LedgerRepository) Insert(ctx context.Context, p *ledger.Posting, accountDelta ledger.AccountDelta, monthlyDeltas []ledger.MonthlyDelta) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertPosting(ctx, tx, p); err != nil {
		return err
	}
	if err := applyAccountDelta(ctx, tx, accountDelta); err != nil {
		return err
	}
	if err := applyMonthlyDeltas(ctx, tx, monthlyDeltas); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// InsertPair writes both transfer legs and applies all deltas atomically
func (r *LedgerRepository) InsertPair(ctx context.Context, budgetLeg, transferLeg *ledger.Posting, accountDeltas []ledger.AccountDelta, monthlyDeltas []ledger.MonthlyDelta) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertPosting(ctx, tx, budgetLeg); err != nil {
		return err
	}
	if err := insertPosting(ctx, tx, transferLeg); err != nil {
		return err
	}
	for _, d := range accountDeltas {
		if err := applyAccountDelta(ctx, tx, d); err != nil {
			return err
		}
	}
	if err := applyMonthlyDeltas(ctx, tx, monthlyDeltas); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Supersede deactivates the active version of the replacement's concept and
// inserts the replacement, applying the combined deltas atomically. The
// active row is locked so concurrent amendments of the same concept
// serialize; the loser sees a version id it did not expect.
func (r *LedgerRepository) Supersede(ctx context.Context, expectedVersionID uuid.UUID, replacement *ledger.Posting, accountDelta ledger.AccountDelta, monthlyDeltas []ledger.MonthlyDelta) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var currentVersionID uuid.UUID
	err = tx.QueryRowContext(ctx,
		`SELECT transaction_version_id FROM transactions WHERE concept_id = $1 AND is_active FOR UPDATE`,
		replacement.ConceptID,
	).Scan(&currentVersionID)

	if err == sql.ErrNoRows {
		// Retired underneath us.
		return ledger.ErrConflictingEdit
	}
	if err != nil {
		return fmt.Errorf("failed to lock active version: %w", err)
	}
	if currentVersionID != expectedVersionID {
		return ledger.ErrConflictingEdit
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE transactions SET is_active = FALSE WHERE transaction_version_id = $1`,
		currentVersionID,
	); err != nil {
		return fmt.Errorf("failed to deactivate version: %w", err)
	}

	if err := insertPosting(ctx, tx, replacement); err != nil {
		return err
	}
	if err := applyAccountDelta(ctx, tx, accountDelta); err != nil {
		return err
	}
	if err := applyMonthlyDeltas(ctx, tx, monthlyDeltas); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Deactivate retires every active leg of a concept and applies the reversal
// deltas atomically. The active set is locked and compared against
// expectedVersionIDs; any mismatch means someone else got there first.
func (r *LedgerRepository) Deactivate(ctx context.Context, conceptID uuid.UUID, expectedVersionIDs []uuid.UUID, accountDeltas []ledger.AccountDelta, monthlyDeltas []ledger.MonthlyDelta) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT transaction_version_id FROM transactions WHERE concept_id = $1 AND is_active FOR UPDATE`,
		conceptID,
	)
	if err != nil {
		return fmt.Errorf("failed to lock active versions: %w", err)
	}

	active := make(map[uuid.UUID]bool)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan version id: %w", err)
		}
		active[id] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating versions: %w", err)
	}
	rows.Close()

	if len(active) != len(expectedVersionIDs) {
		return ledger.ErrConflictingEdit
	}
	for _, id := range expectedVersionIDs {
		if !active[id] {
			return ledger.ErrConflictingEdit
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE transactions SET is_active = FALSE WHERE concept_id = $1 AND is_active`,
		conceptID,
	); err != nil {
		return fmt.Errorf("failed to deactivate versions: %w", err)
	}

	for _, d := range accountDeltas {
		if err := applyAccountDelta(ctx, tx, d); err != nil {
			return err
		}
	}
	if err := applyMonthlyDeltas(ctx, tx, monthlyDeltas); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ActiveByConcept returns the active legs of a concept
func (r *LedgerRepository) ActiveByConcept(ctx context.Context, conceptID uuid.UUID) ([]*ledger.Posting, error) {
	query := `
		SELECT transaction_version_id, concept_id, account_id, category_id, amount_minor,
		       status, transaction_date, memo, source, recorded_at, is_active
		FROM transactions
		WHERE concept_id = $1 AND is_active
		ORDER BY recorded_at, transaction_version_id
	`

	rows, err := r.db.QueryContext(ctx, query, conceptID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active legs: %w", err)
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

// Versions returns every version of a concept, newest first
func (r *LedgerRepository) Versions(ctx context.Context, conceptID uuid.UUID) ([]*ledger.Posting, error) {
	query := `
		SELECT transaction_version_id, concept_id, account_id, category_id, amount_minor,
		       status, transaction_date, memo, source, recorded_at, is_active
		FROM transactions
		WHERE concept_id = $1
		ORDER BY recorded_at DESC, transaction_version_id
	`

	rows, err := r.db.QueryContext(ctx, query, conceptID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
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

// ListByAccount returns active postings for an account, newest first
func (r *LedgerRepository) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*ledger.Posting, error) {
	query := `
		SELECT transaction_version_id, concept_id, account_id, category_id, amount_minor,
		       status, transaction_date, memo, source, recorded_at, is_active
		FROM transactions
		WHERE account_id = $1 AND is_active
		ORDER BY transaction_date DESC, recorded_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list postings: %w", err)
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

// Shared transaction steps. All of them run inside the caller's database
// transaction so a failure on any step rolls back the whole operation.

func insertPosting(ctx context.Context, tx *sql.Tx, p *ledger.Posting) error {
	query := `
		INSERT INTO transactions (transaction_version_id, concept_id, account_id, category_id,
		                          amount_minor, status, transaction_date, memo, source, recorded_at, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, TRUE)
	`

	_, err := tx.ExecContext(ctx, query,
		p.VersionID, p.ConceptID, p.AccountID, p.CategoryID,
		p.AmountMinor, p.Status, asDate(p.Date), p.Memo, p.Source, p.RecordedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			// Another active version of this concept landed first.
			return ledger.ErrConflictingEdit
		}
		return fmt.Errorf("failed to insert posting: %w", err)
	}
	return nil
}

func applyAccountDelta(ctx context.Context, tx *sql.Tx, d ledger.AccountDelta) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE accounts SET current_balance_minor = current_balance_minor + $1, updated_at = now() WHERE account_id = $2`,
		d.AmountMinor, d.AccountID,
	)
	if err != nil {
		return fmt.Errorf("failed to apply balance delta: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return ledger.ErrUnknownAccount
	}
	return nil
}

func applyMonthlyDeltas(ctx context.Context, tx *sql.Tx, deltas []ledger.MonthlyDelta) error {
	query := `
		INSERT INTO budget_category_monthly_state (category_id, month_start, inflow_minor, activity_minor)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (category_id, month_start)
		DO UPDATE SET inflow_minor = budget_category_monthly_state.inflow_minor + EXCLUDED.inflow_minor,
		              activity_minor = budget_category_monthly_state.activity_minor + EXCLUDED.activity_minor
	`

	for _, d := range deltas {
		if _, err := tx.ExecContext(ctx, query, d.CategoryID, asDate(d.MonthStart), d.InflowMinor, d.ActivityMinor); err != nil {
			return fmt.Errorf("failed to apply monthly delta: %w", err)
		}
	}
	return nil
}
