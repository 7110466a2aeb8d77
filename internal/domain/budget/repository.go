package budget

import (
	"context"
	"time"
)

// StateComparison pairs one cached monthly row with the values re-derived
// from allocations and active postings.
type StateComparison struct {
	CategoryID           string
	MonthStart           time.Time
	CachedAllocatedMinor int64
	CachedInflowMinor    int64
	CachedActivityMinor  int64

	DerivedAllocatedMinor int64
	DerivedInflowMinor    int64
	DerivedActivityMinor  int64
}

// Repository persists allocations and the monthly budget cache.
type Repository interface {
	// AllocateFromPool records an allocation out of the Ready-to-Assign
	// pool and moves allocated_minor from the pool row to the destination
	// row, all in one transaction. The pool row is locked first and the
	// insert is refused with ErrInsufficientReadyToAssign when the pool's
	// available for that month would go negative.
	AllocateFromPool(ctx context.Context, a *Allocation) error

	// MoveAllocation records a category-to-category allocation and shifts
	// allocated_minor between the two rows in one transaction. No
	// non-negativity check: source categories may go negative.
	MoveAllocation(ctx context.Context, a *Allocation) error

	// StatesForMonth returns every cached row for the month, pool
	// included, ordered by category id.
	StatesForMonth(ctx context.Context, monthStart time.Time) ([]*MonthlyState, error)

	// ReadyToAssign returns the pool category's available for the month,
	// zero when the pool has no row yet.
	ReadyToAssign(ctx context.Context, monthStart time.Time) (int64, error)

	// ListAllocations returns the month's allocations, newest first.
	ListAllocations(ctx context.Context, monthStart time.Time) ([]*Allocation, error)

	// RebuildMonth deletes the month's cached rows and replays them from
	// allocations and active postings in one transaction.
	RebuildMonth(ctx context.Context, monthStart time.Time) error

	// CompareMonth re-derives the month from allocations and active
	// postings and pairs the result with the cached rows. Read only.
	CompareMonth(ctx context.Context, monthStart time.Time) ([]StateComparison, error)
}
