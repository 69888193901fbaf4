package jobs

import (
	"context"
	"time"

	"tenantauth-backend/internal/logger"
)

// PruneBlacklistedTokens deletes revocations older than the session lifetime.
// A token revoked that long ago fails signature expiry before the blacklist is consulted.
func (jr *JobRunner) PruneBlacklistedTokens() {
	jr.runWithRecovery("PruneBlacklistedTokens", func() {
		ctx, cancel := context.WithTimeout(context.Background(), jr.timeout)
		defer cancel()

		ttl := time.Duration(jr.config.JWT.SessionExpiryHours) * time.Hour
		cutoff := jr.now().Add(-ttl)

		deleted, err := jr.blacklist.DeleteOlderThan(ctx, cutoff)
		if err != nil {
			logger.Error("Failed to prune blacklisted tokens", "error", err)
			return
		}
		logger.Info("Pruned blacklisted tokens", "deleted", deleted, "cutoff", cutoff.UTC().Format(time.RFC3339))
	})
}
