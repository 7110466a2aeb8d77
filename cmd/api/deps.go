package main

import (
	"context"

	"github.com/rs/zerolog"

	"centavo/internal/domain/account"
	"centavo/internal/domain/alert"
	"centavo/internal/domain/budget"
	"centavo/internal/domain/category"
	"centavo/internal/domain/investment"
	"centavo/internal/domain/ledger"
	"centavo/internal/domain/networth"
	"centavo/internal/domain/reconciliation"
	"centavo/internal/infrastructure/firebase"
	"centavo/internal/infrastructure/postgres"
	httphandlers "centavo/internal/interfaces/http"
	"centavo/internal/shared/config"
	"centavo/internal/shared/messages"
)

// Dependencies holds all initialized application components.
type Dependencies struct {
	DB *postgres.DB

	// Handlers
	TransactionHandler    *httphandlers.TransactionHandler
	AccountHandler        *httphandlers.AccountHandler
	CategoryHandler       *httphandlers.CategoryHandler
	BudgetHandler         *httphandlers.BudgetHandler
	ReconciliationHandler *httphandlers.ReconciliationHandler
	NetWorthHandler       *httphandlers.NetWorthHandler
	InvestmentHandler     *httphandlers.InvestmentHandler
	AlertHandler          *httphandlers.AlertHandler
	AdminHandler          *httphandlers.AdminHandler

	// Services the scheduler's maintenance jobs run against
	AccountService *account.Service
	BudgetService  *budget.Service
	AlertService   *alert.Service
}

// NewDependencies initializes all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Dependencies, error) {
	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}
	log.Info().Msg("connected to database")

	if err := postgres.InitSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	// Repositories
	accountRepo := postgres.NewAccountRepository(db)
	categoryRepo := postgres.NewCategoryRepository(db)
	ledgerRepo := postgres.NewLedgerRepository(db)
	budgetRepo := postgres.NewBudgetRepository(db)
	reconciliationRepo := postgres.NewReconciliationRepository(db)
	investmentRepo := postgres.NewInvestmentRepository(db)
	alertRepo := postgres.NewAlertRepository(db)

	// Domain services
	categoryService := category.NewService(categoryRepo)
	accountService := account.NewService(accountRepo, log)
	ledgerService := ledger.NewService(ledgerRepo, accountService, categoryService, cfg.Budget.MaxFutureDays, log)
	budgetService := budget.NewService(budgetRepo, categoryService, log)
	reconciliationService := reconciliation.NewService(reconciliationRepo, accountService, log)
	investmentService := investment.NewService(investmentRepo, accountService, log)
	netWorthService := networth.NewService(accountService, investmentService, log)

	// Alerts: push through Firebase when configured, log-only otherwise.
	var messenger alert.Messenger
	if cfg.Alerts.Enabled {
		client, err := firebase.NewClient(ctx, cfg.Alerts.FirebaseCredentialsFile, alertRepo.DeactivateToken, log)
		if err != nil {
			log.Warn().Err(err).Msg("firebase unavailable, alerts degrade to log-only")
		} else {
			messenger = client
		}
	}
	texts := messages.Defaults()
	if cfg.Alerts.MessagesFile != "" {
		if m, err := messages.Load(cfg.Alerts.MessagesFile); err != nil {
			log.Warn().Err(err).Str("path", cfg.Alerts.MessagesFile).Msg("falling back to built-in alert texts")
		} else {
			texts = m
		}
	}
	alertService := alert.NewService(alertRepo, budgetService, messenger, *texts, log)

	return &Dependencies{
		DB:                    db,
		TransactionHandler:    httphandlers.NewTransactionHandler(ledgerService, log),
		AccountHandler:        httphandlers.NewAccountHandler(accountService, log),
		CategoryHandler:       httphandlers.NewCategoryHandler(categoryService, log),
		BudgetHandler:         httphandlers.NewBudgetHandler(budgetService, log),
		ReconciliationHandler: httphandlers.NewReconciliationHandler(reconciliationService, log),
		NetWorthHandler:       httphandlers.NewNetWorthHandler(netWorthService, log),
		InvestmentHandler:     httphandlers.NewInvestmentHandler(investmentService, log),
		AlertHandler:          httphandlers.NewAlertHandler(alertService, log),
		AdminHandler:          httphandlers.NewAdminHandler(accountService, budgetService, log),
		AccountService:        accountService,
		BudgetService:         budgetService,
		AlertService:          alertService,
	}, nil
}

// Close releases all resources held by dependencies.
func (d *Dependencies) Close() {
	if d.DB != nil {
		d.DB.Close()
	}
}
