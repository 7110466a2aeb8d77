package budget

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidAmount             = errors.New("allocation amount must be a positive integer of minor units")
	ErrMonthRequired             = errors.New("month is required")
	ErrSameCategory              = errors.New("source and destination categories must differ")
	ErrUnknownCategory           = errors.New("category does not exist")
	ErrInactiveCategory          = errors.New("category is inactive")
	ErrSystemCategory            = errors.New("system categories cannot be allocated to or from")
	ErrInsufficientReadyToAssign = errors.New("ready-to-assign is insufficient for this allocation")
)

// Allocation is a single movement of budgeted money for one month. A nil
// FromCategoryID means the money came out of the Ready-to-Assign pool.
type Allocation struct {
	AllocationID   uuid.UUID `json:"allocationId"`
	MonthStart     time.Time `json:"monthStart"`
	FromCategoryID *string   `json:"fromCategoryId,omitempty"`
	ToCategoryID   string    `json:"toCategoryId"`
	AmountMinor    int64     `json:"amountMinor"`
	RecordedAt     time.Time `json:"recordedAt"`
}

// MonthlyState is one category's cached budget row for one month.
// AvailableMinor is computed by the database as
// allocated + inflow - activity and is never written by the application.
type MonthlyState struct {
	CategoryID     string    `json:"categoryId"`
	MonthStart     time.Time `json:"monthStart"`
	AllocatedMinor int64     `json:"allocatedMinor"`
	InflowMinor    int64     `json:"inflowMinor"`
	ActivityMinor  int64     `json:"activityMinor"`
	AvailableMinor int64     `json:"availableMinor"`
}

// MonthSummary is the full budget picture for one month: every cached
// category row plus the pool's available balance (Ready to Assign).
type MonthSummary struct {
	MonthStart         time.Time       `json:"monthStart"`
	ReadyToAssignMinor int64           `json:"readyToAssignMinor"`
	Categories         []*MonthlyState `json:"categories"`
}

// MonthDrift reports one cached field that disagrees with the value
// re-derived from allocations and active postings.
type MonthDrift struct {
	CategoryID   string    `json:"categoryId"`
	MonthStart   time.Time `json:"monthStart"`
	Field        string    `json:"field"`
	CachedMinor  int64     `json:"cachedMinor"`
	DerivedMinor int64     `json:"derivedMinor"`
	DriftMinor   int64     `json:"driftMinor"`
}

func monthOf(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
}
