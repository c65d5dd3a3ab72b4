package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/propscan/hmo-backend/jobs"
	"github.com/propscan/hmo-backend/models"
	"github.com/propscan/hmo-backend/services"
	"github.com/sirupsen/logrus"
)

type AdminHandler struct {
	PropertyService *services.PropertyService
	UpdateJob       *jobs.DailyListingUpdateJob
}

func NewAdminHandler(propertyService *services.PropertyService, updateJob *jobs.DailyListingUpdateJob) *AdminHandler {
	return &AdminHandler{
		PropertyService: propertyService,
		UpdateJob:       updateJob,
	}
}

func (h *AdminHandler) CreateProperty(c *fiber.Ctx) error {
	var property models.Property
	if err := c.BodyParser(&property); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid request body",
		})
	}

	if err := h.PropertyService.CreateProperty(c.Context(), &property); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    property,
	})
}

// TriggerRefresh manually triggers the daily listing update job
func (h *AdminHandler) TriggerRefresh(c *fiber.Ctx) error {
	logrus.Info("Manual listing refresh triggered via admin endpoint")

	startTime := time.Now()

	// Run the listing update job
	h.UpdateJob.Run()

	duration := time.Since(startTime)

	return c.JSON(fiber.Map{
		"success":   true,
		"message":   "Listing update job completed",
		"duration":  duration.String(),
		"timestamp": time.Now(),
	})
}

// GetRecentUpdates returns recent field-level listing changes for debugging
func (h *AdminHandler) GetRecentUpdates(c *fiber.Ctx) error {
	query := `
		SELECT property_id, field_name, old_value, new_value, source, timestamp
		FROM property_update_log
		ORDER BY timestamp DESC
		LIMIT 50
	`

	rows, err := h.PropertyService.DB.QueryContext(c.Context(), query)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Failed to query update log: " + err.Error(),
		})
	}
	defer rows.Close()

	var updates []map[string]interface{}
	for rows.Next() {
		var propertyID, fieldName, source string
		var oldValue, newValue *string
		var timestamp time.Time

		err := rows.Scan(&propertyID, &fieldName, &oldValue, &newValue, &source, &timestamp)
		if err != nil {
			continue
		}

		updates = append(updates, map[string]interface{}{
			"property_id": propertyID,
			"field_name":  fieldName,
			"old_value":   oldValue,
			"new_value":   newValue,
			"source":      source,
			"timestamp":   timestamp,
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    updates,
		"count":   len(updates),
	})
}
