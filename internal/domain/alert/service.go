package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"centavo/internal/domain/budget"
	"centavo/internal/domain/category"
	"centavo/internal/shared/messages"
)

// BudgetSource is the month view the overspend scan reads.
type BudgetSource interface {
	MonthSummary(ctx context.Context, monthStart time.Time) (*budget.MonthSummary, error)
}

// Service turns budget findings into persisted, deduplicated alert events
// and pushes new ones to registered devices. Pushes are best effort: a
// failed or skipped push never fails the scan, and a nil messenger
// degrades to log-only.
type Service struct {
	repo      Repository
	budget    BudgetSource
	messenger Messenger
	texts     messages.Messages
	log       zerolog.Logger
}

func NewService(repo Repository, budgetSource BudgetSource, messenger Messenger, texts messages.Messages, log zerolog.Logger) *Service {
	return &Service{repo: repo, budget: budgetSource, messenger: messenger, texts: texts, log: log}
}

// ScanOverspent finds categories with negative available money this month
// (the pool is excluded; it cannot go negative) and records one overspend
// event per finding. Repeat findings for the same category and month are
// deduplicated and not pushed again.
func (s *Service) ScanOverspent(ctx context.Context, monthStart time.Time) ([]*Event, error) {
	if monthStart.IsZero() {
		return nil, ErrMonthRequired
	}
	summary, err := s.budget.MonthSummary(ctx, monthStart)
	if err != nil {
		return nil, err
	}

	var created []*Event
	for _, row := range summary.Categories {
		if row.CategoryID == category.PoolCategoryID || row.AvailableMinor >= 0 {
			continue
		}
		categoryID := row.CategoryID
		month := summary.MonthStart
		e := &Event{
			AlertID:    uuid.New(),
			Kind:       KindOverspend,
			CategoryID: &categoryID,
			MonthStart: &month,
			Message:    fmt.Sprintf(s.texts.CategoryOverspent.Body, categoryID, formatMinor(-row.AvailableMinor)),
			CreatedAt:  time.Now().UTC(),
		}
		isNew, err := s.repo.InsertEvent(ctx, e)
		if err != nil {
			return nil, err
		}
		if !isNew {
			continue
		}
		created = append(created, e)
		s.push(ctx, s.texts.CategoryOverspent.Title, e.Message, map[string]string{"kind": string(KindOverspend)})
	}

	s.log.Info().
		Time("month", summary.MonthStart).
		Int("new_events", len(created)).
		Msg("overspend scan finished")
	return created, nil
}

// ReportDrift records one cache_drift event per finding from the
// consistency check, recommending a rebuild. Deduplicated like overspend
// events.
func (s *Service) ReportDrift(ctx context.Context, drifts []Drift) ([]*Event, error) {
	var created []*Event
	for _, d := range drifts {
		subject := ""
		switch {
		case d.AccountID != nil:
			subject = *d.AccountID
		case d.CategoryID != nil:
			subject = *d.CategoryID
		}
		e := &Event{
			AlertID:    uuid.New(),
			Kind:       KindCacheDrift,
			AccountID:  d.AccountID,
			CategoryID: d.CategoryID,
			MonthStart: d.MonthStart,
			Message:    fmt.Sprintf(s.texts.BalanceDrift.Body, subject, formatMinor(abs(d.DriftMinor))),
			CreatedAt:  time.Now().UTC(),
		}
		isNew, err := s.repo.InsertEvent(ctx, e)
		if err != nil {
			return nil, err
		}
		if !isNew {
			continue
		}
		created = append(created, e)
		s.push(ctx, s.texts.BalanceDrift.Title, e.Message, map[string]string{"kind": string(KindCacheDrift)})
	}
	return created, nil
}

// RegisterDevice registers a push target, reactivating it if it was known
// before.
func (s *Service) RegisterDevice(ctx context.Context, params RegisterDeviceParams) (*Device, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	d := &Device{
		Token:     params.Token,
		Platform:  params.Platform,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.UpsertDevice(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// ListEvents returns recorded alerts newest first. kind may be empty.
func (s *Service) ListEvents(ctx context.Context, kind Kind, limit, offset int) ([]*Event, error) {
	if kind != "" && !IsValidKind(kind) {
		return nil, ErrInvalidKind
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListEvents(ctx, kind, limit, offset)
}

// DeactivateToken retires a push target so later alerts skip it. The FCM
// client drops tokens Firebase reports as gone through the repository
// directly; this is the caller-facing unregister path.
func (s *Service) DeactivateToken(ctx context.Context, token string) error {
	if token == "" {
		return ErrInvalidToken
	}
	return s.repo.DeactivateToken(ctx, token)
}

func (s *Service) push(ctx context.Context, title, body string, data map[string]string) {
	tokens, err := s.repo.ActiveDeviceTokens(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("loading device tokens")
		return
	}
	if s.messenger == nil || len(tokens) == 0 {
		s.log.Info().Str("title", title).Str("body", body).Msg("alert recorded, push skipped")
		return
	}
	if err := s.messenger.SendMulticast(ctx, tokens, title, body, data); err != nil {
		s.log.Error().Err(err).Str("title", title).Msg("sending alert push")
	}
}

// formatMinor renders integer minor units as a decimal amount, 855 as
// "8.55".
func formatMinor(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
