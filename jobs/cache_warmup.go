package jobs

import (
	"context"
	"time"

	"github.com/propscan/hmo-backend/services"
	"github.com/sirupsen/logrus"
)

// CacheWarmupJob pre-populates the read cache with the hot browse queries
// (city list, per-city property pages and stats) so the first request after
// a refresh does not pay the full query cost.
type CacheWarmupJob struct {
	CachedService *services.CachedPropertyService
}

func NewCacheWarmupJob(cachedService *services.CachedPropertyService) *CacheWarmupJob {
	return &CacheWarmupJob{CachedService: cachedService}
}

func (j *CacheWarmupJob) Run() {
	logrus.Info("Starting Cache Warmup Job")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	start := time.Now()
	if err := j.CachedService.WarmupCache(ctx); err != nil {
		logrus.Errorf("Cache Warmup Job failed: %v", err)
		return
	}

	stats := j.CachedService.GetCacheStats()
	logrus.WithFields(logrus.Fields{
		"cache_entries": stats["size"],
		"duration":      time.Since(start).String(),
	}).Info("Cache Warmup Job completed")
}
