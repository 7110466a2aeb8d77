package networth

import (
	"time"

	"centavo/internal/domain/account"
)

// ValueSource says where an account's value in the rollup came from.
type ValueSource string

const (
	SourceCached    ValueSource = "cached"
	SourcePortfolio ValueSource = "portfolio"
	SourceValuation ValueSource = "valuation"
)

// AccountValue is one account's contribution to the rollup, signed the way
// the ledger carries it (liabilities negative).
type AccountValue struct {
	AccountID    string        `json:"accountId"`
	Name         string        `json:"name"`
	AccountType  account.Type  `json:"accountType"`
	AccountClass account.Class `json:"accountClass"`
	ValueMinor   int64         `json:"valueMinor"`
	Source       ValueSource   `json:"source"`
}

// Summary is the rollup at a point in time. Asset and liability totals are
// magnitudes; NetWorthMinor is assets minus liabilities.
type Summary struct {
	AsOf                time.Time      `json:"asOf"`
	AssetTotalMinor     int64          `json:"assetTotalMinor"`
	LiabilityTotalMinor int64          `json:"liabilityTotalMinor"`
	NetWorthMinor       int64          `json:"netWorthMinor"`
	Accounts            []AccountValue `json:"accounts"`
}
