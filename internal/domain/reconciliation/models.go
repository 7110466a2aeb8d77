package reconciliation

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"centavo/internal/domain/ledger"
)

var (
	ErrUnknownAccount        = errors.New("account does not exist")
	ErrInactiveAccount       = errors.New("account is inactive")
	ErrStatementDateRequired = errors.New("statement date is required")
	ErrUnbalanced            = errors.New("statement does not balance against the ledger")
)

// UnbalancedError carries the exact differences that blocked a commit.
// errors.Is(err, ErrUnbalanced) matches it.
type UnbalancedError struct {
	Differences Differences
}

func (e *UnbalancedError) Error() string {
	return fmt.Sprintf("statement does not balance against the ledger (cleared off by %d, pending off by %d)",
		e.Differences.ClearedMinor, e.Differences.PendingMinor)
}

func (e *UnbalancedError) Is(target error) bool { return target == ErrUnbalanced }

// Statement is what the bank says: the cleared balance and the total of
// still-pending transactions as of Date.
type Statement struct {
	Date                time.Time `json:"date"`
	ClearedBalanceMinor int64     `json:"clearedBalanceMinor"`
	PendingTotalMinor   int64     `json:"pendingTotalMinor"`
}

// Differences is statement minus ledger, per bucket. All three are zero
// exactly when the account reconciles.
type Differences struct {
	ClearedMinor int64 `json:"clearedMinor"`
	PendingMinor int64 `json:"pendingMinor"`
	TotalMinor   int64 `json:"totalMinor"`
}

// Against computes the statement's differences from the ledger's cleared
// and pending sums. Both the worksheet and the commit check use this one
// formula.
func (s Statement) Against(ledgerClearedMinor, ledgerPendingMinor int64) Differences {
	d := Differences{
		ClearedMinor: s.ClearedBalanceMinor - ledgerClearedMinor,
		PendingMinor: s.PendingTotalMinor - ledgerPendingMinor,
	}
	d.TotalMinor = d.ClearedMinor + d.PendingMinor
	return d
}

// Worksheet is the read-only preview of a reconciliation: where the
// ledger stands, how far the statement is from it, and which postings a
// reviewer should look at.
type Worksheet struct {
	AccountID          string            `json:"accountId"`
	Statement          Statement         `json:"statement"`
	LedgerClearedMinor int64             `json:"ledgerClearedMinor"`
	LedgerPendingMinor int64             `json:"ledgerPendingMinor"`
	Differences        Differences       `json:"differences"`
	LastReconciledAt   *time.Time        `json:"lastReconciledAt,omitempty"`
	Candidates         []*ledger.Posting `json:"candidates"`
}

// Checkpoint is a committed reconciliation. Checkpoints chain through
// PreviousReconciliationID; the newest one bounds the next worksheet's
// candidate window.
type Checkpoint struct {
	ReconciliationID         uuid.UUID  `json:"reconciliationId"`
	AccountID                string     `json:"accountId"`
	CreatedAt                time.Time  `json:"createdAt"`
	StatementDate            time.Time  `json:"statementDate"`
	StatementBalanceMinor    int64      `json:"statementBalanceMinor"`
	StatementPendingMinor    int64      `json:"statementPendingTotalMinor"`
	PreviousReconciliationID *uuid.UUID `json:"previousReconciliationId,omitempty"`
}
