package budget

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

	"centavo/internal/domain/category"
)

var (
	budgetMeter        = otel.Meter("centavo/budget")
	allocationCount, _ = budgetMeter.Int64Counter("budget.allocations",
		metric.WithDescription("Allocations recorded, by kind"))
	monthDriftCount, _ = budgetMeter.Int64Counter("budget.month.drift",
		metric.WithDescription("Cached monthly budget fields that disagree with the ledger"))
)

// CategoryDirectory is the category lookup the allocation engine needs.
type CategoryDirectory interface {
	GetCategory(ctx context.Context, categoryID string) (*category.Category, error)
}

type Service struct {
	repo       Repository
	categories CategoryDirectory
	log        zerolog.Logger
}

func NewService(repo Repository, categories CategoryDirectory, log zerolog.Logger) *Service {
	return &Service{repo: repo, categories: categories, log: log}
}

// Allocate moves money from the Ready-to-Assign pool into a category for
// one month. The month is truncated to its first day. The pool may never
// go negative; the repository enforces that under a row lock.
func (s *Service) Allocate(ctx context.Context, monthStart time.Time, toCategoryID string, amountMinor int64) (*Allocation, error) {
	if amountMinor <= 0 {
		return nil, ErrInvalidAmount
	}
	if monthStart.IsZero() {
		return nil, ErrMonthRequired
	}
	if err := s.checkEnvelope(ctx, toCategoryID); err != nil {
		return nil, err
	}

	a := &Allocation{
		AllocationID: uuid.New(),
		MonthStart:   monthOf(monthStart),
		ToCategoryID: toCategoryID,
		AmountMinor:  amountMinor,
		RecordedAt:   time.Now().UTC(),
	}
	if err := s.repo.AllocateFromPool(ctx, a); err != nil {
		return nil, err
	}

	allocationCount.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", "allocate")))
	s.log.Info().
		Str("category_id", toCategoryID).
		Time("month", a.MonthStart).
		Int64("amount_minor", amountMinor).
		Msg("allocated from pool")
	return a, nil
}

// Move shifts already-allocated money between two envelope categories.
// Unlike Allocate it carries no non-negativity check: the source category
// may go negative, which the overspend scan will surface.
func (s *Service) Move(ctx context.Context, monthStart time.Time, fromCategoryID, toCategoryID string, amountMinor int64) (*Allocation, error) {
	if amountMinor <= 0 {
		return nil, ErrInvalidAmount
	}
	if monthStart.IsZero() {
		return nil, ErrMonthRequired
	}
	if fromCategoryID == toCategoryID {
		return nil, ErrSameCategory
	}
	if err := s.checkEnvelope(ctx, fromCategoryID); err != nil {
		return nil, err
	}
	if err := s.checkEnvelope(ctx, toCategoryID); err != nil {
		return nil, err
	}

	from := fromCategoryID
	a := &Allocation{
		AllocationID:   uuid.New(),
		MonthStart:     monthOf(monthStart),
		FromCategoryID: &from,
		ToCategoryID:   toCategoryID,
		AmountMinor:    amountMinor,
		RecordedAt:     time.Now().UTC(),
	}
	if err := s.repo.MoveAllocation(ctx, a); err != nil {
		return nil, err
	}

	allocationCount.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", "move")))
	s.log.Info().
		Str("from_category_id", fromCategoryID).
		Str("to_category_id", toCategoryID).
		Time("month", a.MonthStart).
		Int64("amount_minor", amountMinor).
		Msg("moved between categories")
	return a, nil
}

// RebuildMonth drops the month's cached rows and replays them from the
// allocations and active postings.
func (s *Service) RebuildMonth(ctx context.Context, monthStart time.Time) error {
	if monthStart.IsZero() {
		return ErrMonthRequired
	}
	month := monthOf(monthStart)
	if err := s.repo.RebuildMonth(ctx, month); err != nil {
		return err
	}
	s.log.Info().Time("month", month).Msg("rebuilt monthly budget cache")
	return nil
}

// VerifyMonth reports every cached field that disagrees with the value
// re-derived from allocations and active postings. It never repairs;
// RebuildMonth does that.
func (s *Service) VerifyMonth(ctx context.Context, monthStart time.Time) ([]MonthDrift, error) {
	if monthStart.IsZero() {
		return nil, ErrMonthRequired
	}
	month := monthOf(monthStart)
	comparisons, err := s.repo.CompareMonth(ctx, month)
	if err != nil {
		return nil, err
	}

	var drifts []MonthDrift
	for _, c := range comparisons {
		drifts = appendDrift(drifts, c, "allocated_minor", c.CachedAllocatedMinor, c.DerivedAllocatedMinor)
		drifts = appendDrift(drifts, c, "inflow_minor", c.CachedInflowMinor, c.DerivedInflowMinor)
		drifts = appendDrift(drifts, c, "activity_minor", c.CachedActivityMinor, c.DerivedActivityMinor)
	}
	for _, d := range drifts {
		s.log.Warn().
			Str("category_id", d.CategoryID).
			Time("month", d.MonthStart).
			Str("field", d.Field).
			Int64("cached_minor", d.CachedMinor).
			Int64("derived_minor", d.DerivedMinor).
			Msg("cache drift: monthly budget row disagrees with the ledger")
		monthDriftCount.Add(ctx, 1, metric.WithAttributes(
			attribute.String("category_id", d.CategoryID),
			attribute.String("field", d.Field),
		))
	}
	return drifts, nil
}

func (s *Service) MonthSummary(ctx context.Context, monthStart time.Time) (*MonthSummary, error) {
	if monthStart.IsZero() {
		return nil, ErrMonthRequired
	}
	month := monthOf(monthStart)
	states, err := s.repo.StatesForMonth(ctx, month)
	if err != nil {
		return nil, err
	}
	rta, err := s.repo.ReadyToAssign(ctx, month)
	if err != nil {
		return nil, err
	}
	return &MonthSummary{MonthStart: month, ReadyToAssignMinor: rta, Categories: states}, nil
}

func (s *Service) ReadyToAssign(ctx context.Context, monthStart time.Time) (int64, error) {
	if monthStart.IsZero() {
		return 0, ErrMonthRequired
	}
	return s.repo.ReadyToAssign(ctx, monthOf(monthStart))
}

func (s *Service) ListAllocations(ctx context.Context, monthStart time.Time) ([]*Allocation, error) {
	if monthStart.IsZero() {
		return nil, ErrMonthRequired
	}
	return s.repo.ListAllocations(ctx, monthOf(monthStart))
}

func (s *Service) checkEnvelope(ctx context.Context, categoryID string) error {
	c, err := s.categories.GetCategory(ctx, categoryID)
	if err != nil {
		if errors.Is(err, category.ErrCategoryNotFound) {
			return fmt.Errorf("%w: %s", ErrUnknownCategory, categoryID)
		}
		return fmt.Errorf("looking up category %s: %w", categoryID, err)
	}
	if !c.IsActive {
		return fmt.Errorf("%w: %s", ErrInactiveCategory, categoryID)
	}
	if c.IsSystem {
		return fmt.Errorf("%w: %s", ErrSystemCategory, categoryID)
	}
	return nil
}

func appendDrift(drifts []MonthDrift, c StateComparison, field string, cached, derived int64) []MonthDrift {
	if cached == derived {
		return drifts
	}
	return append(drifts, MonthDrift{
		CategoryID:   c.CategoryID,
		MonthStart:   c.MonthStart,
		Field:        field,
		CachedMinor:  cached,
		DerivedMinor: derived,
		DriftMinor:   cached - derived,
	})
}
