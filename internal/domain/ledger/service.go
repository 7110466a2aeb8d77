package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"centavo/internal/domain/account"
	"centavo/internal/domain/category"
)

var (
	ledgerMeter     = otel.Meter("centavo/ledger")
	postingCount, _ = ledgerMeter.Int64Counter("ledger.postings",
		metric.WithDescription("Ledger postings written"),
	)
)

// AccountDirectory provides the account lookups posting validation needs.
type AccountDirectory interface {
	Get(ctx context.Context, accountID string) (*account.Account, error)
}

// CategoryDirectory provides the category lookups posting validation needs.
type CategoryDirectory interface {
	GetCategory(ctx context.Context, categoryID string) (*category.Category, error)
}

// Service contains the business logic for the ledger. It computes the
// cache deltas every write implies; the repository applies posting and
// deltas in one transaction.
type Service struct {
	repo          Repository
	accounts      AccountDirectory
	categories    CategoryDirectory
	maxFutureDays int
	log           zerolog.Logger
}

// NewService creates a new ledger service. maxFutureDays bounds how far
// ahead a posting may be dated.
func NewService(repo Repository, accounts AccountDirectory, categories CategoryDirectory, maxFutureDays int, log zerolog.Logger) *Service {
	return &Service{
		repo:          repo,
		accounts:      accounts,
		categories:    categories,
		maxFutureDays: maxFutureDays,
		log:           log,
	}
}

// Post records a single-leg posting: spending (negative) or income
// (positive). The account balance and the budget month caches move in the
// same transaction as the ledger write.
func (s *Service) Post(ctx context.Context, params PostParams) (*Posting, error) {
	if params.AmountMinor == 0 {
		return nil, ErrInvalidAmount
	}
	if params.Status == "" {
		params.Status = StatusPending
	}
	if _, ok := validStatuses[params.Status]; !ok {
		return nil, fmt.Errorf("status %q: %w", params.Status, ErrInvalidStatus)
	}
	if err := s.checkDate(params.Date); err != nil {
		return nil, err
	}
	if err := s.checkAccount(ctx, params.AccountID); err != nil {
		return nil, err
	}
	if err := s.checkCategory(ctx, params.CategoryID); err != nil {
		return nil, err
	}
	if params.Source == "" {
		params.Source = DefaultSource
	}

	conceptID := params.ConceptID
	if conceptID == uuid.Nil {
		conceptID = uuid.New()
	}

	p := &Posting{
		VersionID:   uuid.New(),
		ConceptID:   conceptID,
		AccountID:   params.AccountID,
		CategoryID:  params.CategoryID,
		AmountMinor: params.AmountMinor,
		Status:      params.Status,
		Date:        params.Date,
		Memo:        params.Memo,
		Source:      params.Source,
		RecordedAt:  time.Now().UTC(),
		IsActive:    true,
	}

	accountDelta := AccountDelta{AccountID: p.AccountID, AmountMinor: p.AmountMinor}
	if err := s.repo.Insert(ctx, p, accountDelta, postingDeltas(p, 1)); err != nil {
		return nil, err
	}

	postingCount.Add(ctx, 1, metric.WithAttributes(attribute.String("source", p.Source)))
	s.log.Info().
		Str("concept_id", p.ConceptID.String()).
		Str("account_id", p.AccountID).
		Str("category_id", p.CategoryID).
		Int64("amount_minor", p.AmountMinor).
		Msg("posting recorded")

	return p, nil
}

// PostPair records a transfer as two postings sharing one concept: the
// budget leg debits the source account with the caller's category, the
// transfer leg credits the destination through the wash category. Both
// legs commit or neither does.
func (s *Service) PostPair(ctx context.Context, params TransferParams) (budgetLeg, transferLeg *Posting, err error) {
	if params.AmountMinor <= 0 {
		return nil, nil, ErrInvalidAmount
	}
	if params.FromAccountID == params.ToAccountID {
		return nil, nil, ErrSameAccount
	}
	if err := s.checkDate(params.Date); err != nil {
		return nil, nil, err
	}
	if err := s.checkAccount(ctx, params.FromAccountID); err != nil {
		return nil, nil, err
	}
	if err := s.checkAccount(ctx, params.ToAccountID); err != nil {
		return nil, nil, err
	}
	if params.CategoryID == "" {
		params.CategoryID = category.TransferCategoryID
	}
	if err := s.checkCategory(ctx, params.CategoryID); err != nil {
		return nil, nil, err
	}
	if params.Source == "" {
		params.Source = DefaultSource
	}

	conceptID := uuid.New()
	recordedAt := time.Now().UTC()

	budgetLeg = &Posting{
		VersionID:   uuid.New(),
		ConceptID:   conceptID,
		AccountID:   params.FromAccountID,
		CategoryID:  params.CategoryID,
		AmountMinor: -params.AmountMinor,
		Status:      StatusCleared,
		Date:        params.Date,
		Memo:        params.Memo,
		Source:      params.Source,
		RecordedAt:  recordedAt,
		IsActive:    true,
	}
	transferLeg = &Posting{
		VersionID:   uuid.New(),
		ConceptID:   conceptID,
		AccountID:   params.ToAccountID,
		CategoryID:  category.TransferCategoryID,
		AmountMinor: params.AmountMinor,
		Status:      StatusCleared,
		Date:        params.Date,
		Memo:        params.Memo,
		Source:      params.Source,
		RecordedAt:  recordedAt,
		IsActive:    true,
	}

	accountDeltas := []AccountDelta{
		{AccountID: budgetLeg.AccountID, AmountMinor: budgetLeg.AmountMinor},
		{AccountID: transferLeg.AccountID, AmountMinor: transferLeg.AmountMinor},
	}
	monthlyDeltas := combineDeltas(postingDeltas(budgetLeg, 1), postingDeltas(transferLeg, 1))

	if err := s.repo.InsertPair(ctx, budgetLeg, transferLeg, accountDeltas, monthlyDeltas); err != nil {
		return nil, nil, err
	}

	postingCount.Add(ctx, 2, metric.WithAttributes(attribute.String("source", params.Source)))
	s.log.Info().
		Str("concept_id", conceptID.String()).
		Str("from_account_id", params.FromAccountID).
		Str("to_account_id", params.ToAccountID).
		Int64("amount_minor", params.AmountMinor).
		Msg("transfer recorded")

	return budgetLeg, transferLeg, nil
}

// Amend replaces the active version of a single-leg concept. The caches
// move by the difference between old and new in one step; each touched
// row is adjusted exactly once, never emptied and refilled.
func (s *Service) Amend(ctx context.Context, conceptID uuid.UUID, changes AmendParams) (*Posting, error) {
	if changes.empty() {
		return nil, ErrNoChanges
	}

	actives, err := s.repo.ActiveByConcept(ctx, conceptID)
	if err != nil {
		return nil, err
	}
	if len(actives) == 0 {
		return nil, s.conceptGone(ctx, conceptID)
	}
	if len(actives) > 1 {
		return nil, fmt.Errorf("concept %s: %w", conceptID, ErrAmendTransfer)
	}
	old := actives[0]

	next := *old
	next.VersionID = uuid.New()
	next.RecordedAt = time.Now().UTC()
	if changes.CategoryID != nil {
		next.CategoryID = *changes.CategoryID
	}
	if changes.AmountMinor != nil {
		next.AmountMinor = *changes.AmountMinor
	}
	if changes.Status != nil {
		next.Status = *changes.Status
	}
	if changes.Date != nil {
		next.Date = *changes.Date
	}
	if changes.Memo != nil {
		next.Memo = *changes.Memo
	}

	if next.AmountMinor == 0 {
		return nil, ErrInvalidAmount
	}
	if _, ok := validStatuses[next.Status]; !ok {
		return nil, fmt.Errorf("status %q: %w", next.Status, ErrInvalidStatus)
	}
	if changes.Date != nil {
		if err := s.checkDate(next.Date); err != nil {
			return nil, err
		}
	}
	// Only a changed category must be active: amending the memo of a
	// posting in a since-deactivated category stays legal.
	if changes.CategoryID != nil && *changes.CategoryID != old.CategoryID {
		if err := s.checkCategory(ctx, next.CategoryID); err != nil {
			return nil, err
		}
	}

	accountDelta := AccountDelta{AccountID: old.AccountID, AmountMinor: next.AmountMinor - old.AmountMinor}
	monthlyDeltas := combineDeltas(postingDeltas(old, -1), postingDeltas(&next, 1))

	if err := s.repo.Supersede(ctx, old.VersionID, &next, accountDelta, monthlyDeltas); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("concept_id", conceptID.String()).
		Str("version_id", next.VersionID.String()).
		Int64("amount_minor", next.AmountMinor).
		Msg("posting amended")

	return &next, nil
}

// Retire deactivates every active leg of a concept and reverses their
// cache contributions. Transfers retire both legs together.
func (s *Service) Retire(ctx context.Context, conceptID uuid.UUID) error {
	actives, err := s.repo.ActiveByConcept(ctx, conceptID)
	if err != nil {
		return err
	}
	if len(actives) == 0 {
		return s.conceptGone(ctx, conceptID)
	}

	expected := make([]uuid.UUID, 0, len(actives))
	accountDeltas := make([]AccountDelta, 0, len(actives))
	reversals := make([][]MonthlyDelta, 0, len(actives))
	for _, leg := range actives {
		expected = append(expected, leg.VersionID)
		accountDeltas = append(accountDeltas, AccountDelta{AccountID: leg.AccountID, AmountMinor: -leg.AmountMinor})
		reversals = append(reversals, postingDeltas(leg, -1))
	}

	if err := s.repo.Deactivate(ctx, conceptID, expected, accountDeltas, combineDeltas(reversals...)); err != nil {
		return err
	}

	s.log.Info().
		Str("concept_id", conceptID.String()).
		Int("legs", len(actives)).
		Msg("posting retired")

	return nil
}

// Active returns the active legs of a concept.
func (s *Service) Active(ctx context.Context, conceptID uuid.UUID) ([]*Posting, error) {
	actives, err := s.repo.ActiveByConcept(ctx, conceptID)
	if err != nil {
		return nil, err
	}
	if len(actives) == 0 {
		return nil, s.conceptGone(ctx, conceptID)
	}
	return actives, nil
}

// Versions returns the full audit trail of a concept, newest first.
func (s *Service) Versions(ctx context.Context, conceptID uuid.UUID) ([]*Posting, error) {
	versions, err := s.repo.Versions(ctx, conceptID)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, fmt.Errorf("concept %s: %w", conceptID, ErrConceptNotFound)
	}
	return versions, nil
}

// ListByAccount returns an account's active postings, newest first.
// Deactivated accounts keep their history readable.
func (s *Service) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*Posting, error) {
	if _, err := s.accounts.Get(ctx, accountID); err != nil {
		if errors.Is(err, account.ErrAccountNotFound) {
			return nil, fmt.Errorf("account %q: %w", accountID, ErrUnknownAccount)
		}
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByAccount(ctx, accountID, limit, offset)
}

func (s *Service) checkDate(d time.Time) error {
	if d.IsZero() {
		return ErrDateRequired
	}
	limit := time.Now().UTC().AddDate(0, 0, s.maxFutureDays)
	if d.After(limit) {
		return fmt.Errorf("date %s: %w", d.Format("2006-01-02"), ErrFutureDate)
	}
	return nil
}

func (s *Service) checkAccount(ctx context.Context, accountID string) error {
	acc, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		if errors.Is(err, account.ErrAccountNotFound) {
			return fmt.Errorf("account %q: %w", accountID, ErrUnknownAccount)
		}
		return err
	}
	if !acc.IsActive {
		return fmt.Errorf("account %q: %w", accountID, ErrInactiveAccount)
	}
	return nil
}

func (s *Service) checkCategory(ctx context.Context, categoryID string) error {
	cat, err := s.categories.GetCategory(ctx, categoryID)
	if err != nil {
		if errors.Is(err, category.ErrCategoryNotFound) {
			return fmt.Errorf("category %q: %w", categoryID, ErrUnknownCategory)
		}
		return err
	}
	if !cat.IsActive {
		return fmt.Errorf("category %q: %w", categoryID, ErrInactiveCategory)
	}
	return nil
}

func (s *Service) conceptGone(ctx context.Context, conceptID uuid.UUID) error {
	versions, err := s.repo.Versions(ctx, conceptID)
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		return fmt.Errorf("concept %s: %w", conceptID, ErrConceptNotFound)
	}
	return fmt.Errorf("concept %s: %w", conceptID, ErrConceptRetired)
}

// postingDeltas returns a posting's budget cache contribution. sign is +1
// to apply, -1 to reverse. Wash-category postings never touch the budget.
func postingDeltas(p *Posting, sign int64) []MonthlyDelta {
	if p.CategoryID == category.TransferCategoryID {
		return nil
	}
	d := MonthlyDelta{CategoryID: p.CategoryID, MonthStart: MonthOf(p.Date)}
	if p.AmountMinor < 0 {
		d.ActivityMinor = sign * -p.AmountMinor
	} else {
		d.InflowMinor = sign * p.AmountMinor
	}
	return []MonthlyDelta{d}
}

// combineDeltas merges deltas so each (category, month) row is adjusted
// exactly once; rows that net to zero are dropped.
func combineDeltas(deltaSets ...[]MonthlyDelta) []MonthlyDelta {
	type key struct {
		categoryID string
		monthStart time.Time
	}
	index := make(map[key]int)
	merged := make([]MonthlyDelta, 0, 2)
	for _, set := range deltaSets {
		for _, d := range set {
			k := key{d.CategoryID, d.MonthStart}
			if i, ok := index[k]; ok {
				merged[i].InflowMinor += d.InflowMinor
				merged[i].ActivityMinor += d.ActivityMinor
				continue
			}
			index[k] = len(merged)
			merged = append(merged, d)
		}
	}

	out := make([]MonthlyDelta, 0, len(merged))
	for _, d := range merged {
		if d.InflowMinor != 0 || d.ActivityMinor != 0 {
			out = append(out, d)
		}
	}
	return out
}
