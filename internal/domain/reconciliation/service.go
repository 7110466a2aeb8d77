package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"centavo/internal/domain/account"
)

// AccountDirectory is the account lookup reconciliation needs.
type AccountDirectory interface {
	Get(ctx context.Context, accountID string) (*account.Account, error)
}

type Service struct {
	repo     Repository
	accounts AccountDirectory
	log      zerolog.Logger
}

func NewService(repo Repository, accounts AccountDirectory, log zerolog.Logger) *Service {
	return &Service{repo: repo, accounts: accounts, log: log}
}

// Worksheet previews a reconciliation without writing anything. The
// candidate window opens at the previous checkpoint, or at the epoch when
// the account has never been reconciled; currently pending postings are
// always included.
func (s *Service) Worksheet(ctx context.Context, accountID string, statement Statement) (*Worksheet, error) {
	if statement.Date.IsZero() {
		return nil, ErrStatementDateRequired
	}
	if _, err := s.lookupAccount(ctx, accountID); err != nil {
		return nil, err
	}

	since := time.Unix(0, 0).UTC()
	var lastReconciledAt *time.Time
	latest, err := s.repo.LatestCheckpoint(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if latest != nil {
		since = latest.CreatedAt
		lastReconciledAt = &latest.CreatedAt
	}

	balance, pending, err := s.repo.AccountSnapshot(ctx, accountID)
	if err != nil {
		return nil, err
	}
	cleared := balance - pending

	candidates, err := s.repo.CandidatePostings(ctx, accountID, since)
	if err != nil {
		return nil, err
	}

	return &Worksheet{
		AccountID:          accountID,
		Statement:          statement,
		LedgerClearedMinor: cleared,
		LedgerPendingMinor: pending,
		Differences:        statement.Against(cleared, pending),
		LastReconciledAt:   lastReconciledAt,
		Candidates:         candidates,
	}, nil
}

// Commit records a checkpoint when the statement matches the ledger
// exactly. The match is re-checked inside the repository's transaction;
// a mismatch surfaces as *UnbalancedError with the differences attached.
func (s *Service) Commit(ctx context.Context, accountID string, statement Statement) (*Checkpoint, error) {
	if statement.Date.IsZero() {
		return nil, ErrStatementDateRequired
	}
	a, err := s.lookupAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !a.IsActive {
		return nil, fmt.Errorf("%w: %s", ErrInactiveAccount, accountID)
	}

	c := &Checkpoint{
		ReconciliationID:      uuid.New(),
		AccountID:             accountID,
		CreatedAt:             time.Now().UTC(),
		StatementDate:         statement.Date,
		StatementBalanceMinor: statement.ClearedBalanceMinor,
		StatementPendingMinor: statement.PendingTotalMinor,
	}
	if err := s.repo.CommitCheckpoint(ctx, c); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("account_id", accountID).
		Time("statement_date", statement.Date).
		Int64("statement_balance_minor", statement.ClearedBalanceMinor).
		Msg("account reconciled")
	return c, nil
}

func (s *Service) lookupAccount(ctx context.Context, accountID string) (*account.Account, error) {
	a, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		if errors.Is(err, account.ErrAccountNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, accountID)
		}
		return nil, fmt.Errorf("looking up account %s: %w", accountID, err)
	}
	return a, nil
}
