package reconciliation

import (
	"context"
	"time"

	"centavo/internal/domain/ledger"
)

// Repository reads ledger sums and persists reconciliation checkpoints.
type Repository interface {
	// LatestCheckpoint returns the account's newest checkpoint, or nil
	// when the account has never been reconciled.
	LatestCheckpoint(ctx context.Context, accountID string) (*Checkpoint, error)

	// AccountSnapshot returns the cached balance and the sum of active
	// pending postings for the account.
	AccountSnapshot(ctx context.Context, accountID string) (balanceMinor, pendingMinor int64, err error)

	// CandidatePostings returns active postings recorded after since or
	// still pending, ordered by (transaction date, recorded_at).
	CandidatePostings(ctx context.Context, accountID string, since time.Time) ([]*ledger.Posting, error)

	// CommitCheckpoint re-derives the cleared and pending sums inside one
	// transaction with the account row locked, so concurrent postings
	// serialize against the check. When the statement carried by c
	// matches both sums exactly it inserts the checkpoint, filling
	// PreviousReconciliationID from the current chain head; otherwise it
	// returns *UnbalancedError and writes nothing.
	CommitCheckpoint(ctx context.Context, c *Checkpoint) error
}
