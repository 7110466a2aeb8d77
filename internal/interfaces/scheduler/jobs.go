package scheduler

import (
	"context"
	"fmt"
	"time"

	"centavo/internal/domain/account"
	"centavo/internal/domain/alert"
	"centavo/internal/domain/budget"
)

// ConsistencyCheckJob verifies the cached account balances and the
// current month's budget rows against the ledger, and raises cache-drift
// alerts for every mismatch. It never repairs; rebuilds stay an explicit
// operator action through the admin API.
type ConsistencyCheckJob struct {
	accounts *account.Service
	budget   *budget.Service
	alerts   *alert.Service
}

func NewConsistencyCheckJob(accounts *account.Service, budgetService *budget.Service, alerts *alert.Service) *ConsistencyCheckJob {
	return &ConsistencyCheckJob{accounts: accounts, budget: budgetService, alerts: alerts}
}

func (j *ConsistencyCheckJob) Execute(ctx context.Context) error {
	var drifts []alert.Drift

	balanceDrifts, err := j.accounts.VerifyBalances(ctx, "")
	if err != nil {
		return fmt.Errorf("verifying account balances: %w", err)
	}
	for _, d := range balanceDrifts {
		id := d.AccountID
		drifts = append(drifts, alert.Drift{AccountID: &id, DriftMinor: d.DriftMinor})
	}

	monthDrifts, err := j.budget.VerifyMonth(ctx, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("verifying monthly budget cache: %w", err)
	}
	for _, d := range monthDrifts {
		id := d.CategoryID
		month := d.MonthStart
		drifts = append(drifts, alert.Drift{CategoryID: &id, MonthStart: &month, DriftMinor: d.DriftMinor})
	}

	if len(drifts) == 0 {
		return nil
	}
	if _, err := j.alerts.ReportDrift(ctx, drifts); err != nil {
		return fmt.Errorf("reporting cache drift: %w", err)
	}
	return nil
}

func (j *ConsistencyCheckJob) Description() string {
	return "ledger consistency check"
}

// OverspendScanJob looks for envelope categories that have gone negative
// in the current month and raises overspend alerts.
type OverspendScanJob struct {
	alerts *alert.Service
}

func NewOverspendScanJob(alerts *alert.Service) *OverspendScanJob {
	return &OverspendScanJob{alerts: alerts}
}

func (j *OverspendScanJob) Execute(ctx context.Context) error {
	if _, err := j.alerts.ScanOverspent(ctx, time.Now().UTC()); err != nil {
		return fmt.Errorf("scanning for overspent categories: %w", err)
	}
	return nil
}

func (j *OverspendScanJob) Description() string {
	return "overspend scan"
}
