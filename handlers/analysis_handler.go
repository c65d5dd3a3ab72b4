package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/propscan/hmo-backend/services"
	"github.com/sirupsen/logrus"
)

// AnalysisHandler starts background listing refreshes and reports their
// progress.
type AnalysisHandler struct {
	Service *services.AnalysisService
}

func NewAnalysisHandler(service *services.AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{Service: service}
}

// StartRefresh kicks off a background scrape-and-upsert run and returns
// the task handle immediately.
func (h *AnalysisHandler) StartRefresh(c *fiber.Ctx) error {
	logrus.Info("Listing refresh triggered via API")

	task := h.Service.StartRefresh()

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"success": true,
		"data":    task,
	})
}

// GetTask reports the progress of one refresh task
func (h *AnalysisHandler) GetTask(c *fiber.Ctx) error {
	taskID := c.Params("task_id")

	task := h.Service.GetTask(taskID)
	if task == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"error":   "Task not found",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    task,
	})
}
