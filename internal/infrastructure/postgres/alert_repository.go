package postgres

import (
	"context"
	"fmt"

	"centavo/internal/domain/alert"
)

// AlertRepository implements the alert.Repository interface for PostgreSQL
type AlertRepository struct {
	db *DB
}

// NewAlertRepository creates a new PostgreSQL alert repository
func NewAlertRepository(db *DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// InsertEvent records an event unless one with the same kind and context
// already exists. The dedup lives in a unique index, so concurrent scans
// cannot double-insert.
func (r *AlertRepository) InsertEvent(ctx context.Context, e *alert.Event) (bool, error) {
	query := `
		INSERT INTO alert_events (alert_id, kind, category_id, account_id, month_start, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query,
		e.AlertID, e.Kind, e.CategoryID, e.AccountID, asNullDate(e.MonthStart), e.Message, e.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert alert event: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return rows > 0, nil
}

// ListEvents returns events newest first, optionally filtered by kind
func (r *AlertRepository) ListEvents(ctx context.Context, kind alert.Kind, limit, offset int) ([]*alert.Event, error) {
	query := `
		SELECT alert_id, kind, category_id, account_id, month_start, message, created_at
		FROM alert_events
		WHERE ($1 = '' OR kind = $1)
		ORDER BY created_at DESC, alert_id
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, string(kind), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list alert events: %w", err)
	}
	defer rows.Close()

	var events []*alert.Event
	for rows.Next() {
		var e alert.Event
		err := rows.Scan(&e.AlertID, &e.Kind, &e.CategoryID, &e.AccountID, &e.MonthStart, &e.Message, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert event: %w", err)
		}
		events = append(events, &e)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alert events: %w", err)
	}

	return events, nil
}

// UpsertDevice registers a token or reactivates a known one
func (r *AlertRepository) UpsertDevice(ctx context.Context, d *alert.Device) error {
	query := `
		INSERT INTO device_tokens (token, platform, is_active, created_at)
		VALUES ($1, $2, TRUE, $3)
		ON CONFLICT (token) DO UPDATE SET platform = EXCLUDED.platform, is_active = TRUE
	`

	if _, err := r.db.ExecContext(ctx, query, d.Token, d.Platform, d.CreatedAt); err != nil {
		return fmt.Errorf("failed to upsert device: %w", err)
	}
	return nil
}

// ActiveDeviceTokens returns every active token
func (r *AlertRepository) ActiveDeviceTokens(ctx context.Context) ([]string, error) {
	query := `SELECT token FROM device_tokens WHERE is_active ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list device tokens: %w", err)
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, fmt.Errorf("failed to scan device token: %w", err)
		}
		tokens = append(tokens, token)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating device tokens: %w", err)
	}

	return tokens, nil
}

// DeactivateToken marks a token inactive. Unknown tokens are a no-op:
// this is fed by push delivery failures, which may repeat.
func (r *AlertRepository) DeactivateToken(ctx context.Context, token string) error {
	query := `UPDATE device_tokens SET is_active = FALSE WHERE token = $1`

	if _, err := r.db.ExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("failed to deactivate token: %w", err)
	}
	return nil
}
