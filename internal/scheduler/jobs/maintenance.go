package jobs

import (
	"context"

	"github.com/wonny/confluence/backend/pkg/logger"
)

// StaleCleaner drops ticks past their freshness window (*cache.PriceCache)
type StaleCleaner interface {
	CleanStale() int
}

// PrefixDeleter purges shared cache entries (*redis.Cache)
type PrefixDeleter interface {
	DeletePrefix(ctx context.Context, keyPrefix string) (int, error)
}

// CacheCleanupJob cleans stale prices, and on its first run purges
// analyses cached by a previous process (possibly under another engine config)
type CacheCleanupJob struct {
	prices   StaleCleaner
	analyses PrefixDeleter
	purged   bool
	logger   *logger.Logger
}

// NewCacheCleanupJob creates a new cache cleanup job. analyses may be nil.
func NewCacheCleanupJob(prices StaleCleaner, analyses PrefixDeleter, log *logger.Logger) *CacheCleanupJob {
	if log == nil {
		log = logger.Nop()
	}
	return &CacheCleanupJob{
		prices:   prices,
		analyses: analyses,
		logger:   log,
	}
}

// Name returns the job name
func (j *CacheCleanupJob) Name() string {
	return "cache_cleanup"
}

// Schedule returns the cron schedule (every 5 minutes)
func (j *CacheCleanupJob) Schedule() string {
	return "0 */5 * * * *"
}

// Run executes the cache cleanup
func (j *CacheCleanupJob) Run(ctx context.Context) error {
	if j.prices != nil {
		if count := j.prices.CleanStale(); count > 0 {
			j.logger.WithField("removed", count).Info("Stale prices removed")
		}
	}

	if j.analyses != nil && !j.purged {
		n, err := j.analyses.DeletePrefix(ctx, "analysis:")
		if err != nil {
			return err
		}
		j.purged = true
		j.logger.WithField("removed", n).Info("Cached analyses purged")
	}

	return nil
}
