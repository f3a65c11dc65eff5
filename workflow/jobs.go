package workflow

import (
	"context"
	"os"
	"strconv"
	"time"

	"bitbucket.org/mmdatafocus/debitorders_backend/config"
	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
)

// StartScheduledJobs runs the periodic passes: automatic retries of failed
// collections and the daily reconciliation sweep. Each pass takes a Redis
// lock so a multi-replica deployment runs it once; a replica that loses the
// lock just waits for the next tick.
func StartScheduledJobs(ctx context.Context, logger *logrus.Logger) {
	retryEvery := intervalFromEnv("AUTO_RETRY_INTERVAL_MINUTES", 60)
	reconcileEvery := intervalFromEnv("AUTO_RECONCILE_INTERVAL_MINUTES", 30)

	go runEvery(ctx, retryEvery, "jobs:auto-retry", func(jobCtx context.Context) {
		result, err := AutoRetryAll(jobCtx)
		if err != nil {
			config.LogError(logger, "jobs.go", "StartScheduledJobs", "auto retry pass", nil, err)
			return
		}
		logger.WithFields(logrus.Fields{
			"field":     "autoRetry",
			"attempted": result.Attempted,
			"succeeded": result.Succeeded,
			"failed":    result.Failed,
			"escalated": result.Escalated,
		}).Info("auto retry pass complete")
	})

	go runEvery(ctx, reconcileEvery, "jobs:auto-reconcile", func(jobCtx context.Context) {
		recon, err := AutoReconcile(jobCtx)
		if err != nil {
			config.LogError(logger, "jobs.go", "StartScheduledJobs", "auto reconcile pass", nil, err)
			return
		}
		if recon == nil {
			return
		}
		logger.WithFields(logrus.Fields{
			"field":       "autoReconcile",
			"recon_id":    recon.ID,
			"matched":     recon.MatchedCount,
			"unmatched":   recon.UnmatchedCount,
			"discrepancy": recon.DiscrepancyAmount.String(),
		}).Info("auto reconciliation complete")
	})
}

func runEvery(ctx context.Context, every time.Duration, lockKey string, pass func(context.Context)) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		// Redis may still be connecting shortly after boot; run unlocked then.
		locker := config.GetRedisLock()
		if locker == nil {
			pass(ctx)
			continue
		}

		lock, err := locker.Obtain(ctx, lockKey, every, nil)
		if err == redislock.ErrNotObtained {
			continue
		}
		if err != nil {
			config.LogError(config.GetLogger(), "jobs.go", "runEvery", "obtaining job lock", lockKey, err)
			continue
		}
		pass(ctx)
		if err := lock.Release(ctx); err != nil && err != redislock.ErrLockNotHeld {
			config.LogError(config.GetLogger(), "jobs.go", "runEvery", "releasing job lock", lockKey, err)
		}
	}
}

func intervalFromEnv(key string, defMinutes int) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Minute
		}
	}
	return time.Duration(defMinutes) * time.Minute
}
