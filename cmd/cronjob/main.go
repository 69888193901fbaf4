package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tenantauth-backend/internal/config"
	"tenantauth-backend/internal/db"
	"tenantauth-backend/internal/jobs"
	"tenantauth-backend/internal/logger"
	"tenantauth-backend/internal/metrics"
	"tenantauth-backend/internal/payments"
	"tenantauth-backend/internal/repository/postgres"
	"tenantauth-backend/internal/scheduler"
	"tenantauth-backend/internal/security"
	"tenantauth-backend/internal/service"
	"tenantauth-backend/internal/tasks"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	runOnce := flag.String("run-once", "", "Run a specific job once and exit (e.g., 'prune-blacklisted-tokens', 'all')")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting tenantauth cronjob runner...", "log_level", cfg.Log.Level)

	// Initialize Database
	logger.Info("Connecting to database...", "host", cfg.Database.Host, "port", cfg.Database.Port)
	conn, err := db.Open(context.Background(), cfg.GetDatabaseConnectionString())
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close()
	logger.Info("Database connection established")

	// Initialize Repositories
	secrets, err := security.NewCipher(cfg.Security.SecretsKey, "mailer-settings")
	if err != nil {
		log.Fatalf("Failed to initialize secrets cipher: %v", err)
	}
	store := postgres.NewStore(conn, secrets)

	queue := tasks.NewQueue(cfg.Tasks.Workers, cfg.Tasks.QueueSize, cfg.Tasks.MaxRetries)
	queue.Start(context.Background())
	defer queue.Stop()

	// Initialize Services
	provider := payments.NewAfricasTalkingClient(
		cfg.Payments.AfricasTalkingAPIKey,
		cfg.Payments.AfricasTalkingUsername,
		payments.Endpoints{
			MobileCheckout:  cfg.Payments.MobileCheckoutURL,
			B2B:             cfg.Payments.B2BURL,
			B2C:             cfg.Payments.B2CURL,
			WalletBalance:   cfg.Payments.WalletBalanceURL,
			FindTransaction: cfg.Payments.FindTransactionURL,
		},
		time.Duration(cfg.Payments.TimeoutSeconds)*time.Second,
		cfg.Phone.DefaultRegion,
	)
	paymentService := service.NewPaymentService(service.PaymentServiceDeps{
		Transactions: store.Transactions,
		Provider:     provider,
		Tasks:        queue,
		Metrics:      metrics.New(),
		PhoneRegion:  cfg.Phone.DefaultRegion,
	})

	// Initialize Job Runner
	jobRunner := jobs.NewJobRunner(store.Blacklist, paymentService, cfg)

	// Check if running a single job
	if *runOnce != "" {
		logger.Info("Running job once", "job", *runOnce)
		if !runJobOnce(jobRunner, *runOnce) {
			os.Exit(1)
		}
		logger.Info("Job execution completed", "job", *runOnce)
		return
	}

	// Initialize Scheduler
	cronScheduler := scheduler.NewScheduler(jobRunner)

	// Start scheduler
	cronScheduler.Start()
	logger.Info("Cronjob scheduler is running. Press Ctrl+C to stop.")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	logger.Info("Shutting down cronjob scheduler...")
	cronScheduler.Stop()
	logger.Info("Cronjob scheduler stopped. Goodbye!")
}

// runJobOnce runs a specific job once; it reports false for an unknown job name
func runJobOnce(jobRunner *jobs.JobRunner, jobName string) bool {
	switch jobName {
	case "prune-blacklisted-tokens":
		jobRunner.PruneBlacklistedTokens()
	case "reconcile-stale-transactions":
		jobRunner.ReconcileStaleTransactions()
	case "all":
		jobRunner.RunAll()
	default:
		logger.Error("Unknown job name", "job", jobName)
		fmt.Printf("Available jobs:\n")
		fmt.Printf("  - prune-blacklisted-tokens\n")
		fmt.Printf("  - reconcile-stale-transactions\n")
		fmt.Printf("  - all\n")
		return false
	}
	return true
}
