package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"centavo/internal/domain/account"
	"centavo/internal/domain/budget"
	"centavo/internal/domain/category"
	"centavo/internal/infrastructure/postgres"
	"centavo/internal/shared/config"
	"centavo/internal/shared/logger"
)

const usage = `Centavo Admin CLI - Management commands for the Centavo API

Usage:
  admin <command> [options]

Commands:
  initdb    Create the database schema and seed the system categories
  rebuild   Recompute cached account balances (and one month's budget rows)
  verify    Compare cached balances and budget rows against the ledger

Examples:
  # Create the schema on a fresh database
  admin initdb

  # Rebuild every account balance cache
  admin rebuild

  # Rebuild one account, plus August's budget rows
  admin rebuild --account=checking --month=2026-08

  # Report drift without repairing anything
  admin verify --month=2026-08
`

func main() {
	if len(os.Args) < 2 {
		fmt.Printf("%s\n", usage)
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "initdb":
		runInitDB(os.Args[2:])
	case "rebuild":
		runRebuild(os.Args[2:])
	case "verify":
		runVerify(os.Args[2:])
	case "help", "-h", "--help":
		fmt.Printf("%s\n", usage)
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		fmt.Printf("%s\n", usage)
		os.Exit(1)
	}
}

func runInitDB(args []string) {
	fs := flag.NewFlagSet("initdb", flag.ExitOnError)
	timeoutStr := fs.String("timeout", "2m", "Timeout for the operation (e.g., 30s, 5m)")

	fs.Usage = func() {
		fmt.Println("Usage: admin initdb [options]")
		fmt.Println("\nOptions:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	ctx, db, cancel := connect(*timeoutStr)
	defer cancel()
	defer db.Close()

	if err := postgres.InitSchema(ctx, db); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	log.Println("Schema initialized")
}

func runRebuild(args []string) {
	fs := flag.NewFlagSet("rebuild", flag.ExitOnError)

	accountID := fs.String("account", "", "Account ID to rebuild (empty rebuilds every account)")
	monthStr := fs.String("month", "", "Budget month to rebuild as YYYY-MM (optional)")
	timeoutStr := fs.String("timeout", "10m", "Timeout for the operation (e.g., 5m, 1h)")

	fs.Usage = func() {
		fmt.Println("Usage: admin rebuild [options]")
		fmt.Println("\nOptions:")
		fs.PrintDefaults()
		fmt.Println("\nExamples:")
		fmt.Println("  admin rebuild")
		fmt.Println("  admin rebuild --account=checking")
		fmt.Println("  admin rebuild --month=2026-08")
		fmt.Println("  admin rebuild --account=checking --month=2026-08")
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	var monthStart time.Time
	if *monthStr != "" {
		var err error
		monthStart, err = time.Parse("2006-01", *monthStr)
		if err != nil {
			log.Fatalf("Invalid month '%s' (use YYYY-MM): %v", *monthStr, err)
		}
	}

	ctx, db, cancel := connect(*timeoutStr)
	defer cancel()
	defer db.Close()

	accounts, budgets := buildServices(db)

	startTime := time.Now()

	rebuilt, err := accounts.Rebuild(ctx, *accountID)
	if err != nil {
		log.Fatalf("Balance rebuild failed: %v", err)
	}
	fmt.Printf("  Accounts rebuilt: %d\n", rebuilt)

	if *monthStr != "" {
		if err := budgets.RebuildMonth(ctx, monthStart); err != nil {
			log.Fatalf("Budget month rebuild failed: %v", err)
		}
		fmt.Printf("  Month rebuilt:    %s\n", monthStart.Format("2006-01"))
	}

	elapsed := time.Since(startTime)
	log.Printf("Rebuild completed in %v", elapsed)
}

func runVerify(args []string) {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)

	accountID := fs.String("account", "", "Account ID to verify (empty verifies every account)")
	monthStr := fs.String("month", "", "Budget month to verify as YYYY-MM (default: current month)")
	timeoutStr := fs.String("timeout", "10m", "Timeout for the operation (e.g., 5m, 1h)")

	fs.Usage = func() {
		fmt.Println("Usage: admin verify [options]")
		fmt.Println("\nOptions:")
		fs.PrintDefaults()
		fmt.Println("\nExamples:")
		fmt.Println("  admin verify")
		fmt.Println("  admin verify --account=checking")
		fmt.Println("  admin verify --month=2026-08")
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	monthStart := time.Now().UTC()
	if *monthStr != "" {
		var err error
		monthStart, err = time.Parse("2006-01", *monthStr)
		if err != nil {
			log.Fatalf("Invalid month '%s' (use YYYY-MM): %v", *monthStr, err)
		}
	}

	ctx, db, cancel := connect(*timeoutStr)
	defer cancel()
	defer db.Close()

	accounts, budgets := buildServices(db)

	startTime := time.Now()

	balanceDrifts, err := accounts.VerifyBalances(ctx, *accountID)
	if err != nil {
		log.Fatalf("Balance verification failed: %v", err)
	}
	budgetDrifts, err := budgets.VerifyMonth(ctx, monthStart)
	if err != nil {
		log.Fatalf("Budget verification failed: %v", err)
	}

	printDrifts(balanceDrifts, budgetDrifts, monthStart)

	elapsed := time.Since(startTime)
	log.Printf("Verification completed in %v", elapsed)

	if len(balanceDrifts) > 0 || len(budgetDrifts) > 0 {
		os.Exit(1)
	}
}

func printDrifts(balanceDrifts []account.BalanceDrift, budgetDrifts []budget.MonthDrift, monthStart time.Time) {
	if len(balanceDrifts) == 0 && len(budgetDrifts) == 0 {
		fmt.Printf("  Consistent: caches match the ledger for %s\n", monthStart.Format("2006-01"))
		return
	}

	if len(balanceDrifts) > 0 {
		fmt.Printf("\n=== Balance drift (%d account(s)) ===\n", len(balanceDrifts))
		for _, d := range balanceDrifts {
			fmt.Printf("  %-24s cached=%d derived=%d drift=%d\n", d.AccountID, d.CachedMinor, d.DerivedMinor, d.DriftMinor)
		}
	}

	if len(budgetDrifts) > 0 {
		fmt.Printf("\n=== Budget drift for %s (%d row(s)) ===\n", monthStart.Format("2006-01"), len(budgetDrifts))
		for _, d := range budgetDrifts {
			fmt.Printf("  %-24s %-10s cached=%d derived=%d drift=%d\n", d.CategoryID, d.Field, d.CachedMinor, d.DerivedMinor, d.DriftMinor)
		}
	}
}

// connect loads config, opens the database, and builds the command context.
func connect(timeoutStr string) (context.Context, *postgres.DB, context.CancelFunc) {
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		log.Fatalf("Invalid timeout format: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Println("Connected to database")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	return ctx, db, cancel
}

func buildServices(db *postgres.DB) (*account.Service, *budget.Service) {
	zl := logger.New("centavo-admin")

	accountRepo := postgres.NewAccountRepository(db)
	categoryRepo := postgres.NewCategoryRepository(db)
	budgetRepo := postgres.NewBudgetRepository(db)

	categoryService := category.NewService(categoryRepo)
	accountService := account.NewService(accountRepo, zl)
	budgetService := budget.NewService(budgetRepo, categoryService, zl)

	return accountService, budgetService
}
