package main

import (
	"net/http"

	"github.com/rs/zerolog"

	httphandlers "centavo/internal/interfaces/http"
	"centavo/internal/shared/config"
	"centavo/internal/shared/middleware"
)

// SetupRoutes configures all HTTP routes and returns the final handler with middleware.
func SetupRoutes(deps *Dependencies, cfg *config.Config, log zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", httphandlers.HandleHealth)

	// Ledger
	mux.HandleFunc("/api/transactions", deps.TransactionHandler.HandleTransactions)
	mux.HandleFunc("/api/transactions/{id}", deps.TransactionHandler.HandleTransactionByID)
	mux.HandleFunc("/api/transactions/{id}/versions", deps.TransactionHandler.HandleTransactionVersions)
	mux.HandleFunc("/api/transfers", deps.TransactionHandler.HandleTransfers)

	// Accounts
	mux.HandleFunc("/api/accounts", deps.AccountHandler.HandleAccounts)
	mux.HandleFunc("/api/accounts/{id}", deps.AccountHandler.HandleAccountByID)

	// Reconciliation
	mux.HandleFunc("/api/accounts/{id}/reconciliation/worksheet", deps.ReconciliationHandler.HandleWorksheet)
	mux.HandleFunc("/api/accounts/{id}/reconciliation", deps.ReconciliationHandler.HandleCommit)

	// Investments
	mux.HandleFunc("/api/accounts/{id}/portfolio", deps.InvestmentHandler.HandlePortfolio)
	mux.HandleFunc("/api/accounts/{id}/portfolio/reconcile", deps.InvestmentHandler.HandleReconcileHoldings)
	mux.HandleFunc("/api/securities", deps.InvestmentHandler.HandleSecurities)
	mux.HandleFunc("/api/securities/{id}/prices", deps.InvestmentHandler.HandleSecurityPrices)

	// Categories
	mux.HandleFunc("/api/category-groups", deps.CategoryHandler.HandleGroups)
	mux.HandleFunc("/api/category-groups/{id}", deps.CategoryHandler.HandleGroupByID)
	mux.HandleFunc("/api/categories", deps.CategoryHandler.HandleCategories)
	mux.HandleFunc("/api/categories/{id}", deps.CategoryHandler.HandleCategoryByID)

	// Budget
	mux.HandleFunc("/api/allocations", deps.BudgetHandler.HandleAllocations)
	mux.HandleFunc("/api/budget/months/{month}", deps.BudgetHandler.HandleMonth)
	mux.HandleFunc("/api/budget/ready-to-assign", deps.BudgetHandler.HandleReadyToAssign)

	// Net worth
	mux.HandleFunc("/api/networth", deps.NetWorthHandler.HandleNetWorth)

	// Alerts
	mux.HandleFunc("/api/devices", deps.AlertHandler.HandleDevices)
	mux.HandleFunc("/api/devices/{token}", deps.AlertHandler.HandleDeviceByToken)
	mux.HandleFunc("/api/alerts", deps.AlertHandler.HandleAlerts)

	// Admin
	mux.HandleFunc("/api/admin/rebuild", deps.AdminHandler.HandleRebuild)
	mux.HandleFunc("/api/admin/consistency", deps.AdminHandler.HandleConsistency)

	// Apply global middleware. Tracing records the repo's own route
	// metrics inside the otelhttp server span; both are no-ops until a
	// telemetry provider is installed.
	var handler http.Handler = mux
	handler = middleware.CORS(cfg.Server.AllowedHosts)(handler)
	handler = middleware.Tracing(handler)
	handler = middleware.Telemetry(handler)
	handler = middleware.Logging(log)(handler)

	// Apply security middleware when TLS is enabled
	if cfg.TLS.Enabled {
		handler = middleware.HSTS(handler)
		log.Info().Msg("TLS security middleware enabled (HSTS)")
	}

	return handler
}
