package jobs

import (
	"context"
	"time"

	"tenantauth-backend/internal/logger"
)

// ReconcileStaleTransactions asks the provider about transactions whose callback never arrived
func (jr *JobRunner) ReconcileStaleTransactions() {
	jr.runWithRecovery("ReconcileStaleTransactions", func() {
		ctx, cancel := context.WithTimeout(context.Background(), jr.timeout)
		defer cancel()

		olderThan := time.Duration(jr.config.Payments.ReconcileAfterMinutes) * time.Minute
		finalized, err := jr.payments.ReconcileStale(ctx, olderThan)
		if err != nil {
			logger.Error("Failed to reconcile stale transactions", "error", err, "finalized", finalized)
			return
		}
		logger.Info("Reconciled stale transactions", "finalized", finalized)
	})
}
