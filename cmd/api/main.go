package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"centavo/internal/interfaces/scheduler"
	"centavo/internal/shared/config"
	"centavo/internal/shared/logger"
	"centavo/internal/shared/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "application error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(cfg.Telemetry.ServiceName)
	ctx := context.Background()

	// Initialize telemetry (if enabled)
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.Init(ctx, telemetry.Config{
			ServiceName:  cfg.Telemetry.ServiceName,
			Environment:  cfg.Telemetry.Environment,
			OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
			MetricsPort:  cfg.Telemetry.MetricsPort,
		}, log)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("telemetry shutdown error")
			}
		}()
	}

	// Wire repositories, services, and handlers
	deps, err := NewDependencies(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.Close()

	// Initialize scheduler (if enabled)
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched, err = scheduler.New(scheduler.Config{
			ScheduleTimes: cfg.Scheduler.ScheduleTimes,
			WorkerCount:   cfg.Scheduler.WorkerCount,
			JobDelay:      cfg.Scheduler.JobDelay,
			QueueSize:     cfg.Scheduler.QueueSize,
			RunOnStartup:  cfg.Scheduler.RunOnStartup,
			JobProvider: func(ctx context.Context) ([]scheduler.Job, error) {
				return []scheduler.Job{
					scheduler.NewConsistencyCheckJob(deps.AccountService, deps.BudgetService, deps.AlertService),
					scheduler.NewOverspendScanJob(deps.AlertService),
				}, nil
			},
			Logger: log,
		})
		if err != nil {
			return err
		}
		sched.Start()
		log.Info().Strs("times", cfg.Scheduler.ScheduleTimes).Msg("scheduler started")
	} else {
		log.Info().Msg("scheduler is disabled")
	}

	// Create router and start servers
	handler := SetupRoutes(deps, cfg, log)
	srv, redirectSrv := StartServers(NewServerConfigFromConfig(handler, cfg), log)

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	GracefulShutdown(srv, redirectSrv, sched, 30*time.Second, log)
	return nil
}
