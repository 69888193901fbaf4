package jobs

import (
	"time"

	"tenantauth-backend/internal/config"
	"tenantauth-backend/internal/logger"
	"tenantauth-backend/internal/repository"
	"tenantauth-backend/internal/service"
)

// JobRunner coordinates all scheduled jobs
type JobRunner struct {
	blacklist repository.BlacklistRepository
	payments  service.PaymentService
	config    *config.Config
	now       func() time.Time
	timeout   time.Duration
}

// NewJobRunner creates a new job runner with all dependencies
func NewJobRunner(blacklist repository.BlacklistRepository, payments service.PaymentService, cfg *config.Config) *JobRunner {
	return &JobRunner{
		blacklist: blacklist,
		payments:  payments,
		config:    cfg,
		now:       time.Now,
		timeout:   5 * time.Minute,
	}
}

// Config returns the configuration the jobs were built with
func (jr *JobRunner) Config() *config.Config {
	return jr.config
}

// runWithRecovery wraps job execution with panic recovery
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job panicked", "job", jobName, "panic", r)
		}
	}()

	logger.Info("Starting job", "job", jobName)
	start := jr.now()
	jobFunc()
	logger.Info("Job completed", "job", jobName, "duration", jr.now().Sub(start).String())
}

// RunAll runs every job once (for manual execution)
func (jr *JobRunner) RunAll() {
	jr.PruneBlacklistedTokens()
	jr.ReconcileStaleTransactions()
}
