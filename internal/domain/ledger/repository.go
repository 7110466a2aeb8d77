package ledger

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for ledger data access. Every mutating
// method applies the posting and its cache deltas in a single database
// transaction; cache state is never observable out of sync with the ledger.
// This interface is defined in the domain layer, but implemented in the infrastructure layer
type Repository interface {
	// Insert writes a posting and applies its deltas atomically.
	// A duplicate active concept on the same account returns ErrConflictingEdit.
	Insert(ctx context.Context, p *Posting, accountDelta AccountDelta, monthlyDeltas []MonthlyDelta) error

	// InsertPair writes both transfer legs and applies all deltas
	// atomically; a failure on either leg leaves nothing behind.
	InsertPair(ctx context.Context, budgetLeg, transferLeg *Posting, accountDeltas []AccountDelta, monthlyDeltas []MonthlyDelta) error

	// Supersede deactivates the active version of the replacement's concept
	// and inserts the replacement, applying the combined deltas atomically.
	// The active version is locked and compared against expectedVersionID;
	// a mismatch (or a concurrently retired concept) returns ErrConflictingEdit.
	Supersede(ctx context.Context, expectedVersionID uuid.UUID, replacement *Posting, accountDelta AccountDelta, monthlyDeltas []MonthlyDelta) error

	// Deactivate retires every active leg of a concept and applies the
	// reversal deltas atomically. The active set is locked and compared
	// against expectedVersionIDs; a mismatch returns ErrConflictingEdit.
	Deactivate(ctx context.Context, conceptID uuid.UUID, expectedVersionIDs []uuid.UUID, accountDeltas []AccountDelta, monthlyDeltas []MonthlyDelta) error

	// ActiveByConcept returns the active legs of a concept (none when the
	// concept is retired or unknown).
	ActiveByConcept(ctx context.Context, conceptID uuid.UUID) ([]*Posting, error)

	// Versions returns every version of a concept, newest first.
	Versions(ctx context.Context, conceptID uuid.UUID) ([]*Posting, error)

	// ListByAccount returns active postings for an account, newest first.
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*Posting, error)
}
