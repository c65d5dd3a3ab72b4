package jobs

import (
	"context"
	"time"

	"github.com/propscan/hmo-backend/services"
	"github.com/sirupsen/logrus"
)

// AvailabilityCheckJob marks listings as let when they have not been seen in
// a scrape for longer than the configured staleness threshold.
type AvailabilityCheckJob struct {
	PropertyService *services.PropertyService
	StaleThreshold  time.Duration
}

func NewAvailabilityCheckJob(propertyService *services.PropertyService, staleThreshold time.Duration) *AvailabilityCheckJob {
	return &AvailabilityCheckJob{
		PropertyService: propertyService,
		StaleThreshold:  staleThreshold,
	}
}

func (j *AvailabilityCheckJob) Run() {
	logrus.Info("Starting Availability Check Job")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	marked, err := j.PropertyService.MarkStaleListingsLet(ctx, j.StaleThreshold)
	if err != nil {
		logrus.Errorf("Availability Check Job failed: %v", err)
		return
	}

	if marked == 0 {
		logrus.Info("Availability Check Job completed: no stale listings found")
		return
	}

	logrus.WithFields(logrus.Fields{
		"marked_let":      marked,
		"stale_threshold": j.StaleThreshold.String(),
	}).Infof("Availability Check Job completed: marked %d stale listings as let", marked)
}
