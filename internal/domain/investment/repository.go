package investment

import (
	"context"
	"time"
)

// Repository persists securities, position versions, and price points.
type Repository interface {
	// ActivePositions returns the account's active positions joined with
	// security names and the latest price per security, ordered by
	// security id.
	ActivePositions(ctx context.Context, accountID string) ([]*PositionQuote, error)

	// ReconcileHoldings applies a snapshot in one transaction: securities
	// are created as needed, positions absent from the snapshot are
	// closed, changed ones are closed and reinserted under the same
	// concept id, new ones inserted under their derived concept id.
	// Unchanged positions keep their current row. Tickers in snapshot are
	// already normalized. Returns how many rows were closed and inserted.
	ReconcileHoldings(ctx context.Context, accountID string, snapshot []Holding, recordedAt time.Time) (closed, inserted int, err error)

	// GetSecurity returns a security by id.
	GetSecurity(ctx context.Context, securityID string) (*Security, error)

	// UpsertSecurity inserts a security or renames an existing one.
	UpsertSecurity(ctx context.Context, s *Security) error

	// RecordPrice upserts one (security, day) price point.
	RecordPrice(ctx context.Context, p *PricePoint) error
}
