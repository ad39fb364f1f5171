// internal/app/system/tasks/jobs.go
package tasks

import (
	"context"
	"time"

	changerequeststore "github.com/dalemusser/schedulehub/internal/app/store/changerequests"
	"github.com/dalemusser/schedulehub/internal/app/system/querycache"
	"go.uber.org/zap"
)

// CacheSweepJob removes expired timetable query results.
func CacheSweepJob(cache *querycache.Cache, logger *zap.Logger, interval time.Duration) Job {
	return Job{
		Name:     "querycache-sweep",
		Interval: interval,
		Run: func(ctx context.Context) error {
			if n := cache.Sweep(); n > 0 {
				logger.Debug("swept expired query results", zap.Int("count", n))
			}
			return nil
		},
	}
}

// PendingChangeRequestsJob logs how many change requests are waiting for review.
func PendingChangeRequestsJob(crStore *changerequeststore.Store, logger *zap.Logger) Job {
	return Job{
		Name:     "pending-change-requests",
		Interval: 1 * time.Hour,
		Run: func(ctx context.Context) error {
			n, err := crStore.CountPending(ctx)
			if err != nil {
				return err
			}
			if n > 0 {
				logger.Info("change requests awaiting review", zap.Int64("count", n))
			}
			return nil
		},
	}
}
