package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	httpapi "tenantauth-backend/internal/api/http"
	"tenantauth-backend/internal/config"
	"tenantauth-backend/internal/db"
	"tenantauth-backend/internal/logger"
	"tenantauth-backend/internal/metrics"
	"tenantauth-backend/internal/otp"
	"tenantauth-backend/internal/payments"
	"tenantauth-backend/internal/repository"
	"tenantauth-backend/internal/repository/postgres"
	"tenantauth-backend/internal/repository/redis"
	"tenantauth-backend/internal/security"
	"tenantauth-backend/internal/service"
	"tenantauth-backend/internal/tasks"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting tenantauth backend...", "environment", cfg.Environment, "log_level", cfg.Log.Level)
	logger.Info("Server configuration", "address", cfg.GetServerAddress())
	logger.Info("Database configuration", "host", cfg.Database.Host, "port", cfg.Database.Port, "database", cfg.Database.Database, "user", cfg.Database.User)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize Database
	conn, err := db.Open(ctx, cfg.GetDatabaseConnectionString())
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
	sessionTTL := time.Duration(cfg.JWT.SessionExpiryHours) * time.Hour

	var blacklist repository.BlacklistRepository = store.Blacklist
	if cfg.Redis.Addr != "" {
		rdb := goredis.NewClient(&goredis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis unavailable, revocations served from postgres only", "addr", cfg.Redis.Addr, "error", err)
		}
		blacklist = redis.NewCachedBlacklist(rdb, store.Blacklist, sessionTTL)
		logger.Info("Revocation cache enabled", "addr", cfg.Redis.Addr)
	}

	// Initialize security primitives
	tokens := security.NewTokenService(cfg.JWT.Secret, blacklist, store.Users,
		security.WithSessionTTL(sessionTTL),
		security.WithSingleUseTTL(time.Duration(cfg.JWT.SingleUseExpiryHours)*time.Hour),
	)
	otpCipher, err := security.NewCipher(cfg.Security.SecretsKey, "otp-secret")
	if err != nil {
		log.Fatalf("Failed to initialize OTP cipher: %v", err)
	}
	passwords, err := security.NewPasswordHasher(cfg.Security.PasswordPepper, 0)
	if err != nil {
		log.Fatalf("Failed to initialize password hasher: %v", err)
	}

	// Deferred task pool for outbound delivery and provider calls. It outlives the signal
	// context and is drained only after the HTTP server has shut down.
	queue := tasks.NewQueue(cfg.Tasks.Workers, cfg.Tasks.QueueSize, cfg.Tasks.MaxRetries)
	queue.Start(context.Background())
	defer queue.Stop()

	m := metrics.New()

	// Initialize Services
	orgService := service.NewOrganizationService(store.Organizations)
	master, err := orgService.EnsureMaster(ctx, cfg.Organization.MasterName)
	if err != nil {
		log.Fatalf("Failed to bootstrap master organization: %v", err)
	}
	logger.Info("Master organization ready", "organization_id", master.ID, "public_identifier", master.PublicIdentifier)

	timeout := time.Duration(cfg.Payments.TimeoutSeconds) * time.Second
	authService := service.NewAuthService(service.AuthServiceDeps{
		Users:       store.Users,
		Orgs:        orgService,
		Tokens:      tokens,
		OTP:         otp.NewService(otpCipher, cfg.OTP.Issuer, cfg.OTP.PeriodSeconds),
		Passwords:   passwords,
		Composer:    service.NewMailComposer(cfg.Mail),
		Mailer:      service.NewSendGridMailer(),
		SMS:         service.NewAfricasTalkingSMS(cfg.SMS, timeout),
		Tasks:       queue,
		Metrics:     m,
		PhoneRegion: cfg.Phone.DefaultRegion,
		Development: cfg.IsDevelopment(),
	})

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
		timeout,
		cfg.Phone.DefaultRegion,
	)
	paymentService := service.NewPaymentService(service.PaymentServiceDeps{
		Transactions: store.Transactions,
		Provider:     provider,
		Tasks:        queue,
		Metrics:      m,
		PhoneRegion:  cfg.Phone.DefaultRegion,
	})

	// Setup HTTP server
	router := httpapi.NewRouter(httpapi.RouterDeps{
		Auth:             authService,
		Orgs:             orgService,
		Payments:         paymentService,
		Metrics:          m,
		OTPWindowSeconds: cfg.OTP.PeriodSeconds,
		RateLimit:        cfg.RateLimit,
		Ready: func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return conn.PingContext(pingCtx)
		},
	})
	srv := &http.Server{
		Addr:              cfg.GetServerAddress(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	go func() {
		logger.Info("HTTP server listening", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", "error", err)
	}
	queue.Stop()
	logger.Info("Server stopped")
}
