package investment

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrUnknownAccount       = errors.New("account does not exist")
	ErrInactiveAccount      = errors.New("account is inactive")
	ErrNotInvestmentAccount = errors.New("account is not an investment account")
	ErrUnknownSecurity      = errors.New("security does not exist")
	ErrInvalidTicker        = errors.New("ticker must be 1-16 letters, digits, dots or underscores")
	ErrInvalidQuantity      = errors.New("quantity must be positive")
	ErrInvalidCost          = errors.New("average cost must not be negative")
	ErrInvalidPrice         = errors.New("price must be a positive integer of minor units")
	ErrDateRequired         = errors.New("price date is required")
	ErrDuplicateHolding     = errors.New("snapshot lists the same security twice")
)

var tickerPattern = regexp.MustCompile(`^[A-Za-z0-9_.]{1,16}$`)

var positionNamespace = uuid.MustParse("c5d8e2aa-3f61-4af0-9f52-6e9d1f3b8a07")

// PositionConceptID derives the stable concept id for an account's holding
// of one security. The same pair always yields the same id, which is what
// lets repeated reconciliations version a position instead of forking it.
func PositionConceptID(accountID, securityID string) uuid.UUID {
	return uuid.NewSHA1(positionNamespace, []byte(accountID+":"+securityID))
}

// Security is reference data for something holdable: the id is the
// lowercased ticker.
type Security struct {
	SecurityID string `json:"securityId"`
	Name       string `json:"name"`
}

// Position is one version of a holding. Versions chain through ConceptID;
// at most one version per (account, security) is active.
type Position struct {
	PositionID   uuid.UUID       `json:"positionId"`
	ConceptID    uuid.UUID       `json:"conceptId"`
	AccountID    string          `json:"accountId"`
	SecurityID   string          `json:"securityId"`
	Quantity     decimal.Decimal `json:"quantity"`
	AvgCostMinor int64           `json:"avgCostMinor"`
	ValidFrom    time.Time       `json:"validFrom"`
	ValidTo      *time.Time      `json:"validTo,omitempty"`
	IsActive     bool            `json:"isActive"`
}

// PositionQuote is an active position joined with its security name and
// the latest recorded price, nil when no price exists yet.
type PositionQuote struct {
	Position
	SecurityName string `json:"securityName"`
	PriceMinor   *int64 `json:"priceMinor,omitempty"`
}

// PricePoint is one recorded price for one security and day.
type PricePoint struct {
	SecurityID string    `json:"securityId"`
	PriceDate  time.Time `json:"priceDate"`
	PriceMinor int64     `json:"priceMinor"`
}

// Holding is one line of a reconciliation snapshot: what the brokerage
// says the account holds right now.
type Holding struct {
	Ticker       string          `json:"ticker"`
	Quantity     decimal.Decimal `json:"quantity"`
	AvgCostMinor int64           `json:"avgCostMinor"`
}

func (h Holding) Validate() error {
	if !tickerPattern.MatchString(strings.TrimSpace(h.Ticker)) {
		return ErrInvalidTicker
	}
	if h.Quantity.Sign() <= 0 {
		return ErrInvalidQuantity
	}
	if h.AvgCostMinor < 0 {
		return ErrInvalidCost
	}
	return nil
}

// PositionView is one position with its derived numbers.
type PositionView struct {
	SecurityID       string          `json:"securityId"`
	Name             string          `json:"name"`
	Quantity         decimal.Decimal `json:"quantity"`
	AvgCostMinor     int64           `json:"avgCostMinor"`
	PriceMinor       *int64          `json:"priceMinor,omitempty"`
	MarketValueMinor int64           `json:"marketValueMinor"`
	CostBasisMinor   int64           `json:"costBasisMinor"`
	GainMinor        int64           `json:"gainMinor"`
}

// Portfolio is the derived state of one investment account.
// UninvestedCashMinor is ledger cash minus the total cost basis; NAV is
// uninvested cash plus the holdings' market value.
type Portfolio struct {
	AccountID           string         `json:"accountId"`
	LedgerCashMinor     int64          `json:"ledgerCashMinor"`
	UninvestedCashMinor int64          `json:"uninvestedCashMinor"`
	HoldingsValueMinor  int64          `json:"holdingsValueMinor"`
	NAVMinor            int64          `json:"navMinor"`
	TotalReturnMinor    int64          `json:"totalReturnMinor"`
	TotalReturnPct      *float64       `json:"totalReturnPct,omitempty"`
	Positions           []PositionView `json:"positions"`
}

// roundHalfUpMinor rounds to whole minor units, halves up. Quantities,
// prices, and costs are non-negative, so half away from zero is half up.
func roundHalfUpMinor(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}
