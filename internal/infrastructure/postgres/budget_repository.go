package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"centavo/internal/domain/budget"
	"centavo/internal/domain/category"
)

// BudgetRepository implements the budget.Repository interface for PostgreSQL
type BudgetRepository struct {
	db *DB
}

// NewBudgetRepository creates a new PostgreSQL budget repository
func NewBudgetRepository(db *DB) *BudgetRepository {
	return &BudgetRepository{db: db}
}

// monthPartsSQL re-derives one month's budget facts from first principles:
// the destination and source sides of every allocation, plus inflow and
// activity from active non-wash postings. $1 is the month, $2 the pool
// category, $3 the wash category.
const monthPartsSQL = `
	SELECT to_category_id AS category_id,
	       amount_minor AS allocated, 0::bigint AS inflow, 0::bigint AS activity
	FROM budget_allocations
	WHERE month_start = $1
	UNION ALL
	SELECT COALESCE(from_category_id, $2),
	       -amount_minor, 0, 0
	FROM budget_allocations
	WHERE month_start = $1
	UNION ALL
	SELECT category_id, 0,
	       CASE WHEN amount_minor > 0 THEN amount_minor ELSE 0 END,
	       CASE WHEN amount_minor < 0 THEN -amount_minor ELSE 0 END
	FROM transactions
	WHERE is_active AND category_id <> $3
	  AND date_trunc('month', transaction_date)::date = $1
`

// AllocateFromPool records an allocation out of the Ready-to-Assign pool
// and moves allocated_minor from the pool row to the destination row.
// The pool row is locked first so concurrent allocations for the same
// month serialize against the availability check.
func (r *BudgetRepository) AllocateFromPool(ctx context.Context, a *budget.Allocation) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	month := asDate(a.MonthStart)

	// The pool may have no row yet for a fresh month.
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO budget_category_monthly_state (category_id, month_start) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		category.PoolCategoryID, month,
	); err != nil {
		return fmt.Errorf("failed to ensure pool row: %w", err)
	}

	var available int64
	err = tx.QueryRowContext(ctx,
		`SELECT available_minor FROM budget_category_monthly_state WHERE category_id = $1 AND month_start = $2 FOR UPDATE`,
		category.PoolCategoryID, month,
	).Scan(&available)
	if err != nil {
		return fmt.Errorf("failed to lock pool row: %w", err)
	}

	if available-a.AmountMinor < 0 {
		return budget.ErrInsufficientReadyToAssign
	}

	if err := insertAllocation(ctx, tx, a); err != nil {
		return err
	}
	if err := shiftAllocated(ctx, tx, category.PoolCategoryID, month, -a.AmountMinor); err != nil {
		return err
	}
	if err := shiftAllocated(ctx, tx, a.ToCategoryID, month, a.AmountMinor); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// MoveAllocation records a category-to-category allocation and shifts
// allocated_minor between the two rows. No availability check: moving
// money out of a category may leave it negative, and that is visible.
func (r *BudgetRepository) MoveAllocation(ctx context.Context, a *budget.Allocation) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	month := asDate(a.MonthStart)

	if err := insertAllocation(ctx, tx, a); err != nil {
		return err
	}
	if err := shiftAllocated(ctx, tx, *a.FromCategoryID, month, -a.AmountMinor); err != nil {
		return err
	}
	if err := shiftAllocated(ctx, tx, a.ToCategoryID, month, a.AmountMinor); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func insertAllocation(ctx context.Context, tx *sql.Tx, a *budget.Allocation) error {
	query := `
		INSERT INTO budget_allocations (allocation_id, month_start, from_category_id, to_category_id, amount_minor, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := tx.ExecContext(ctx, query,
		a.AllocationID, asDate(a.MonthStart), a.FromCategoryID, a.ToCategoryID, a.AmountMinor, a.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert allocation: %w", err)
	}
	return nil
}

func shiftAllocated(ctx context.Context, tx *sql.Tx, categoryID, month string, amountMinor int64) error {
	query := `
		INSERT INTO budget_category_monthly_state (category_id, month_start, allocated_minor)
		VALUES ($1, $2, $3)
		ON CONFLICT (category_id, month_start)
		DO UPDATE SET allocated_minor = budget_category_monthly_state.allocated_minor + EXCLUDED.allocated_minor
	`

	if _, err := tx.ExecContext(ctx, query, categoryID, month, amountMinor); err != nil {
		return fmt.Errorf("failed to shift allocated amount: %w", err)
	}
	return nil
}

// StatesForMonth returns every cached row for the month, pool included
func (r *BudgetRepository) StatesForMonth(ctx context.Context, monthStart time.Time) ([]*budget.MonthlyState, error) {
	query := `
		SELECT category_id, month_start, allocated_minor, inflow_minor, activity_minor, available_minor
		FROM budget_category_monthly_state
		WHERE month_start = $1
		ORDER BY category_id
	`

	rows, err := r.db.QueryContext(ctx, query, asDate(monthStart))
	if err != nil {
		return nil, fmt.Errorf("failed to list monthly states: %w", err)
	}
	defer rows.Close()

	var states []*budget.MonthlyState
	for rows.Next() {
		var s budget.MonthlyState
		err := rows.Scan(&s.CategoryID, &s.MonthStart, &s.AllocatedMinor, &s.InflowMinor, &s.ActivityMinor, &s.AvailableMinor)
		if err != nil {
			return nil, fmt.Errorf("failed to scan monthly state: %w", err)
		}
		states = append(states, &s)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating monthly states: %w", err)
	}

	return states, nil
}

// ReadyToAssign returns the pool's available for the month, zero when the
// pool has no row yet
func (r *BudgetRepository) ReadyToAssign(ctx context.Context, monthStart time.Time) (int64, error) {
	query := `
		SELECT available_minor
		FROM budget_category_monthly_state
		WHERE category_id = $1 AND month_start = $2
	`

	var available int64
	err := r.db.QueryRowContext(ctx, query, category.PoolCategoryID, asDate(monthStart)).Scan(&available)

	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get ready to assign: %w", err)
	}

	return available, nil
}

// ListAllocations returns the month's allocations, newest first
func (r *BudgetRepository) ListAllocations(ctx context.Context, monthStart time.Time) ([]*budget.Allocation, error) {
	query := `
		SELECT allocation_id, month_start, from_category_id, to_category_id, amount_minor, recorded_at
		FROM budget_allocations
		WHERE month_start = $1
		ORDER BY recorded_at DESC, allocation_id
	`

	rows, err := r.db.QueryContext(ctx, query, asDate(monthStart))
	if err != nil {
		return nil, fmt.Errorf("failed to list allocations: %w", err)
	}
	defer rows.Close()

	var allocations []*budget.Allocation
	for rows.Next() {
		var a budget.Allocation
		err := rows.Scan(&a.AllocationID, &a.MonthStart, &a.FromCategoryID, &a.ToCategoryID, &a.AmountMinor, &a.RecordedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan allocation: %w", err)
		}
		allocations = append(allocations, &a)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating allocations: %w", err)
	}

	return allocations, nil
}

// RebuildMonth deletes the month's cached rows and replays them from
// allocations and active postings
func (r *BudgetRepository) RebuildMonth(ctx context.Context, monthStart time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	month := asDate(monthStart)

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM budget_category_monthly_state WHERE month_start = $1`, month,
	); err != nil {
		return fmt.Errorf("failed to clear monthly states: %w", err)
	}

	query := `
		INSERT INTO budget_category_monthly_state (category_id, month_start, allocated_minor, inflow_minor, activity_minor)
		SELECT category_id, $1, SUM(allocated), SUM(inflow), SUM(activity)
		FROM (` + monthPartsSQL + `) parts
		GROUP BY category_id
	`

	if _, err := tx.ExecContext(ctx, query, month, category.PoolCategoryID, category.TransferCategoryID); err != nil {
		return fmt.Errorf("failed to replay monthly states: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CompareMonth re-derives the month and pairs the result with the cached
// rows. Read only; rows missing on either side show up as zeros on that
// side.
func (r *BudgetRepository) CompareMonth(ctx context.Context, monthStart time.Time) ([]budget.StateComparison, error) {
	query := `
		WITH cached AS (
			SELECT category_id, allocated_minor, inflow_minor, activity_minor
			FROM budget_category_monthly_state
			WHERE month_start = $1
		), derived AS (
			SELECT category_id,
			       SUM(allocated)::bigint AS allocated_minor,
			       SUM(inflow)::bigint AS inflow_minor,
			       SUM(activity)::bigint AS activity_minor
			FROM (` + monthPartsSQL + `) parts
			GROUP BY category_id
		)
		SELECT COALESCE(cached.category_id, derived.category_id) AS category_id,
		       COALESCE(cached.allocated_minor, 0), COALESCE(cached.inflow_minor, 0), COALESCE(cached.activity_minor, 0),
		       COALESCE(derived.allocated_minor, 0), COALESCE(derived.inflow_minor, 0), COALESCE(derived.activity_minor, 0)
		FROM cached
		FULL OUTER JOIN derived ON derived.category_id = cached.category_id
		ORDER BY category_id
	`

	rows, err := r.db.QueryContext(ctx, query, asDate(monthStart), category.PoolCategoryID, category.TransferCategoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to compare month: %w", err)
	}
	defer rows.Close()

	var comparisons []budget.StateComparison
	for rows.Next() {
		c := budget.StateComparison{MonthStart: monthStart}
		err := rows.Scan(
			&c.CategoryID,
			&c.CachedAllocatedMinor, &c.CachedInflowMinor, &c.CachedActivityMinor,
			&c.DerivedAllocatedMinor, &c.DerivedInflowMinor, &c.DerivedActivityMinor,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan state comparison: %w", err)
		}
		comparisons = append(comparisons, c)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating state comparisons: %w", err)
	}

	return comparisons, nil
}
