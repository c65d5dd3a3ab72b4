package jobs

import (
	"context"
	"time"

	"github.com/propscan/hmo-backend/services"
	"github.com/sirupsen/logrus"
)

// RentSnapshotJob records a daily rent snapshot for every property that
// currently advertises a rent. Snapshots feed the price-trend endpoints.
type RentSnapshotJob struct {
	PropertyService *services.PropertyService
}

func NewRentSnapshotJob(propertyService *services.PropertyService) *RentSnapshotJob {
	return &RentSnapshotJob{PropertyService: propertyService}
}

func (j *RentSnapshotJob) Run() {
	logrus.Info("Starting Rent Snapshot Job")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	start := time.Now()
	count, err := j.PropertyService.RecordRentSnapshots(ctx)
	if err != nil {
		logrus.Errorf("Rent Snapshot Job failed: %v", err)
		return
	}

	logrus.WithFields(logrus.Fields{
		"snapshots_recorded": count,
		"duration":           time.Since(start).String(),
	}).Infof("Rent Snapshot Job completed: recorded %d snapshots", count)
}
