package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/propscan/hmo-backend/models"
	"github.com/sirupsen/logrus"
)

// AnalysisService runs bulk property refreshes as background tasks. A refresh
// re-crawls the configured cities and upserts every listing found; clients
// hold the returned task id and poll for progress.
type AnalysisService struct {
	scrapingService *ListingScrapingService
	propertyService *PropertyService

	mutex sync.RWMutex
	tasks map[uuid.UUID]*models.AnalysisTask
}

// Completed tasks are kept for this long so late polls still resolve.
const taskRetention = 1 * time.Hour

// NewAnalysisService creates the analysis task service
func NewAnalysisService(scrapingService *ListingScrapingService, propertyService *PropertyService) *AnalysisService {
	return &AnalysisService{
		scrapingService: scrapingService,
		propertyService: propertyService,
		tasks:           make(map[uuid.UUID]*models.AnalysisTask),
	}
}

// StartRefresh registers a new refresh task and launches it in the background
func (s *AnalysisService) StartRefresh() *models.AnalysisTask {
	task := &models.AnalysisTask{
		TaskID:    uuid.New(),
		Status:    models.TaskPending,
		StartedAt: time.Now(),
	}

	s.mutex.Lock()
	s.tasks[task.TaskID] = task
	s.mutex.Unlock()

	go s.runRefresh(task.TaskID)

	logrus.WithField("task_id", task.TaskID).Info("Property refresh task started")
	return s.snapshot(task.TaskID)
}

// GetTask returns a copy of the task's current state, or nil if unknown
func (s *AnalysisService) GetTask(taskID string) *models.AnalysisTask {
	id, err := uuid.Parse(taskID)
	if err != nil {
		return nil
	}
	return s.snapshot(id)
}

// snapshot copies the task under the read lock so callers never share the
// struct the worker goroutine is mutating
func (s *AnalysisService) snapshot(id uuid.UUID) *models.AnalysisTask {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	task, exists := s.tasks[id]
	if !exists {
		return nil
	}

	copied := *task
	return &copied
}

// update applies a mutation to the task under the write lock
func (s *AnalysisService) update(id uuid.UUID, mutate func(*models.AnalysisTask)) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if task, exists := s.tasks[id]; exists {
		mutate(task)
		if task.Total > 0 {
			task.Progress = float64(task.Processed+task.Failed) / float64(task.Total)
		}
	}
}

// runRefresh performs the crawl and upsert loop, updating progress as it goes
func (s *AnalysisService) runRefresh(id uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	defer s.scheduleCleanup(id)

	summaries, err := s.scrapingService.FetchAllListings()
	if err != nil {
		errMsg := err.Error()
		now := time.Now()
		s.update(id, func(task *models.AnalysisTask) {
			task.Status = models.TaskFailed
			task.Error = &errMsg
			task.CompletedAt = &now
		})
		logrus.WithError(err).WithField("task_id", id).Error("Property refresh task failed")
		return
	}

	s.update(id, func(task *models.AnalysisTask) {
		task.Status = models.TaskRunning
		task.Total = len(summaries)
	})

	for _, summary := range summaries {
		property, err := s.scrapingService.ScrapeListingDetails(summary)
		if err != nil {
			logrus.WithError(err).WithField("listing", summary.Title).Warn("Listing detail scrape failed")
			s.update(id, func(task *models.AnalysisTask) { task.Failed++ })
			continue
		}

		if err := s.propertyService.UpsertProperty(ctx, *property); err != nil {
			logrus.WithError(err).WithField("listing", summary.Title).Warn("Listing upsert failed")
			s.update(id, func(task *models.AnalysisTask) { task.Failed++ })
			continue
		}

		s.update(id, func(task *models.AnalysisTask) { task.Processed++ })
	}

	now := time.Now()
	s.update(id, func(task *models.AnalysisTask) {
		task.Status = models.TaskCompleted
		task.CompletedAt = &now
	})

	final := s.snapshot(id)
	logrus.WithFields(logrus.Fields{
		"task_id":   id,
		"total":     final.Total,
		"processed": final.Processed,
		"failed":    final.Failed,
	}).Info("Property refresh task completed")
}

// scheduleCleanup drops the task record after the retention period
func (s *AnalysisService) scheduleCleanup(id uuid.UUID) {
	time.AfterFunc(taskRetention, func() {
		s.mutex.Lock()
		defer s.mutex.Unlock()
		delete(s.tasks, id)
	})
}
