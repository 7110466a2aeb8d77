package ledger

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status of a posting. Pending postings count toward balances and budget
// activity; the split only matters for reconciliation.
type Status string

const (
	StatusPending Status = "pending"
	StatusCleared Status = "cleared"
)

var validStatuses = map[Status]struct{}{
	StatusPending: {},
	StatusCleared: {},
}

// DefaultSource marks postings recorded through the API.
const DefaultSource = "api"

// Domain errors
var (
	ErrInvalidAmount    = errors.New("amount must be a non-zero integer of minor units")
	ErrInvalidStatus    = errors.New("status must be pending or cleared")
	ErrDateRequired     = errors.New("transaction date is required")
	ErrFutureDate       = errors.New("transaction date is too far in the future")
	ErrUnknownAccount   = errors.New("unknown account")
	ErrInactiveAccount  = errors.New("account is inactive")
	ErrUnknownCategory  = errors.New("unknown category")
	ErrInactiveCategory = errors.New("category is inactive")
	ErrSameAccount      = errors.New("transfer source and destination must differ")
	ErrNoChanges        = errors.New("amendment contains no changes")
	ErrAmendTransfer    = errors.New("transfer legs cannot be amended; retire and repost")
	ErrConceptNotFound  = errors.New("transaction concept not found")
	ErrConceptRetired   = errors.New("transaction concept already retired")
	ErrConflictingEdit  = errors.New("conflicting edit: the transaction changed underneath this operation")
)

// Posting is one immutable version of a ledger entry. A concept groups
// all versions (and, for transfers, both legs) of one logical movement;
// at most one version per concept and account is active at a time.
type Posting struct {
	VersionID   uuid.UUID `json:"versionId"`
	ConceptID   uuid.UUID `json:"conceptId"`
	AccountID   string    `json:"accountId"`
	CategoryID  string    `json:"categoryId"`
	AmountMinor int64     `json:"amountMinor"`
	Status      Status    `json:"status"`
	Date        time.Time `json:"date"`
	Memo        string    `json:"memo,omitempty"`
	Source      string    `json:"source"`
	RecordedAt  time.Time `json:"recordedAt"`
	IsActive    bool      `json:"isActive"`
}

// PostParams contains parameters for recording a posting
type PostParams struct {
	// ConceptID may be supplied for idempotent retries; a duplicate
	// active concept on the same account is rejected as a conflict.
	ConceptID   uuid.UUID
	AccountID   string
	CategoryID  string
	AmountMinor int64
	Status      Status
	Date        time.Time
	Memo        string
	Source      string
}

// TransferParams contains parameters for recording a two-leg transfer
type TransferParams struct {
	FromAccountID string
	ToAccountID   string
	// CategoryID is the budget leg's category. Pure transfers leave it
	// empty and wash through the transfer category on both legs.
	CategoryID  string
	AmountMinor int64
	Date        time.Time
	Memo        string
	Source      string
}

// AmendParams contains the corrected fields for an amendment.
// Nil fields keep the current version's value.
type AmendParams struct {
	CategoryID  *string
	AmountMinor *int64
	Status      *Status
	Date        *time.Time
	Memo        *string
}

func (p AmendParams) empty() bool {
	return p.CategoryID == nil && p.AmountMinor == nil && p.Status == nil && p.Date == nil && p.Memo == nil
}

// AccountDelta adjusts one account's cached balance.
type AccountDelta struct {
	AccountID   string
	AmountMinor int64
}

// MonthlyDelta adjusts one (category, month) budget cache row. The fields
// add onto the stored columns; available is generated from them.
type MonthlyDelta struct {
	CategoryID    string
	MonthStart    time.Time
	InflowMinor   int64
	ActivityMinor int64
}

// MonthOf returns the first day of a date's month, in UTC.
func MonthOf(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
}
