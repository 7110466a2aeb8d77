package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"centavo/internal/domain/investment"
)

// InvestmentRepository implements the investment.Repository interface for
// PostgreSQL
type InvestmentRepository struct {
	db *DB
}

// NewInvestmentRepository creates a new PostgreSQL investment repository
func NewInvestmentRepository(db *DB) *InvestmentRepository {
	return &InvestmentRepository{db: db}
}

// ActivePositions returns the account's active positions joined with
// security names and the latest price per security
func (r *InvestmentRepository) ActivePositions(ctx context.Context, accountID string) ([]*investment.PositionQuote, error) {
	query := `
		SELECT p.position_id, p.concept_id, p.account_id, p.security_id, p.quantity,
		       p.avg_cost_minor, p.valid_from, p.valid_to, p.is_active,
		       COALESCE(s.name, upper(p.security_id)),
		       lp.price_minor
		FROM positions p
		LEFT JOIN securities s ON s.security_id = p.security_id
		LEFT JOIN LATERAL (
			SELECT price_minor
			FROM security_prices
			WHERE security_id = p.security_id
			ORDER BY price_date DESC
			LIMIT 1
		) lp ON TRUE
		WHERE p.account_id = $1 AND p.is_active
		ORDER BY p.security_id
	`

	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}
	defer rows.Close()

	var quotes []*investment.PositionQuote
	for rows.Next() {
		var q investment.PositionQuote
		err := rows.Scan(
			&q.PositionID, &q.ConceptID, &q.AccountID, &q.SecurityID, &q.Quantity,
			&q.AvgCostMinor, &q.ValidFrom, &q.ValidTo, &q.IsActive,
			&q.SecurityName, &q.PriceMinor,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		quotes = append(quotes, &q)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating positions: %w", err)
	}

	return quotes, nil
}

type activePositionRow struct {
	positionID uuid.UUID
	quantity   decimal.Decimal
	costMinor  int64
}

// ReconcileHoldings applies a brokerage snapshot in one transaction.
// Positions absent from the snapshot are closed, changed ones are closed
// and reinserted, new ones inserted; an unchanged position keeps its row.
// The concept id is derived from (account, security), so every version of
// a holding chains under the same concept without any lookup.
func (r *InvestmentRepository) ReconcileHoldings(ctx context.Context, accountID string, snapshot []investment.Holding, recordedAt time.Time) (int, int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT position_id, security_id, quantity, avg_cost_minor FROM positions WHERE account_id = $1 AND is_active FOR UPDATE`,
		accountID,
	)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to lock positions: %w", err)
	}

	current := make(map[string]activePositionRow)
	for rows.Next() {
		var row activePositionRow
		var securityID string
		if err := rows.Scan(&row.positionID, &securityID, &row.quantity, &row.costMinor); err != nil {
			rows.Close()
			return 0, 0, fmt.Errorf("failed to scan position: %w", err)
		}
		current[securityID] = row
	}
	if err := rows.Err(); err != nil {
		return 0, 0, fmt.Errorf("error iterating positions: %w", err)
	}
	rows.Close()

	var closed, inserted int
	seen := make(map[string]bool)

	for _, h := range snapshot {
		securityID := strings.ToLower(h.Ticker)
		seen[securityID] = true

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO securities (security_id, name) VALUES ($1, $2) ON CONFLICT (security_id) DO NOTHING`,
			securityID, h.Ticker,
		); err != nil {
			return 0, 0, fmt.Errorf("failed to ensure security: %w", err)
		}

		cur, exists := current[securityID]
		if exists && cur.quantity.Equal(h.Quantity) && cur.costMinor == h.AvgCostMinor {
			continue
		}

		if exists {
			if err := closePosition(ctx, tx, cur.positionID, recordedAt); err != nil {
				return 0, 0, err
			}
			closed++
		}

		if err := insertPosition(ctx, tx, accountID, securityID, h, recordedAt); err != nil {
			return 0, 0, err
		}
		inserted++
	}

	for securityID, cur := range current {
		if seen[securityID] {
			continue
		}
		if err := closePosition(ctx, tx, cur.positionID, recordedAt); err != nil {
			return 0, 0, err
		}
		closed++
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return closed, inserted, nil
}

func closePosition(ctx context.Context, tx *sql.Tx, positionID uuid.UUID, closedAt time.Time) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE positions SET is_active = FALSE, valid_to = $2 WHERE position_id = $1`,
		positionID, closedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to close position: %w", err)
	}
	return nil
}

func insertPosition(ctx context.Context, tx *sql.Tx, accountID, securityID string, h investment.Holding, validFrom time.Time) error {
	query := `
		INSERT INTO positions (position_id, concept_id, account_id, security_id, quantity, avg_cost_minor, valid_from, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
	`

	_, err := tx.ExecContext(ctx, query,
		uuid.New(), investment.PositionConceptID(accountID, securityID),
		accountID, securityID, h.Quantity, h.AvgCostMinor, validFrom,
	)
	if err != nil {
		return fmt.Errorf("failed to insert position: %w", err)
	}
	return nil
}

// GetSecurity returns a security by id
func (r *InvestmentRepository) GetSecurity(ctx context.Context, securityID string) (*investment.Security, error) {
	query := `SELECT security_id, name FROM securities WHERE security_id = $1`

	var s investment.Security
	err := r.db.QueryRowContext(ctx, query, securityID).Scan(&s.SecurityID, &s.Name)

	if err == sql.ErrNoRows {
		return nil, investment.ErrUnknownSecurity
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get security: %w", err)
	}

	return &s, nil
}

// UpsertSecurity inserts a security or renames an existing one
func (r *InvestmentRepository) UpsertSecurity(ctx context.Context, s *investment.Security) error {
	query := `
		INSERT INTO securities (security_id, name)
		VALUES ($1, $2)
		ON CONFLICT (security_id) DO UPDATE SET name = EXCLUDED.name
	`

	if _, err := r.db.ExecContext(ctx, query, s.SecurityID, s.Name); err != nil {
		return fmt.Errorf("failed to upsert security: %w", err)
	}
	return nil
}

// RecordPrice upserts one (security, day) price point
func (r *InvestmentRepository) RecordPrice(ctx context.Context, p *investment.PricePoint) error {
	query := `
		INSERT INTO security_prices (security_id, price_date, price_minor)
		VALUES ($1, $2, $3)
		ON CONFLICT (security_id, price_date) DO UPDATE SET price_minor = EXCLUDED.price_minor
	`

	if _, err := r.db.ExecContext(ctx, query, p.SecurityID, asDate(p.PriceDate), p.PriceMinor); err != nil {
		return fmt.Errorf("failed to record price: %w", err)
	}
	return nil
}
