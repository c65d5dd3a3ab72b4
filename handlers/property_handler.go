package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/propscan/hmo-backend/services"
)

type PropertyHandler struct {
	Service *services.PropertyService
	Cached  *services.CachedPropertyService
	Export  *services.ExportService
}

func NewPropertyHandler(service *services.PropertyService, cached *services.CachedPropertyService, export *services.ExportService) *PropertyHandler {
	return &PropertyHandler{
		Service: service,
		Cached:  cached,
		Export:  export,
	}
}

// parsePropertyFilter maps the browse query parameters onto a filter
func parsePropertyFilter(c *fiber.Ctx) services.PropertyFilter {
	return services.PropertyFilter{
		City:          c.Query("city"),
		Area:          c.Query("area"),
		MinRent:       c.QueryFloat("min_rent"),
		MaxRent:       c.QueryFloat("max_rent"),
		OnlyAvailable: c.QueryBool("available"),
		Limit:         c.QueryInt("limit"),
		Offset:        c.QueryInt("offset"),
	}
}

func (h *PropertyHandler) GetProperties(c *fiber.Ctx) error {
	filter := parsePropertyFilter(c)

	properties, err := h.Cached.GetProperties(c.Context(), filter)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    properties,
		"count":   len(properties),
	})
}

func (h *PropertyHandler) GetPropertyByID(c *fiber.Ctx) error {
	id := c.Params("id")
	property, err := h.Cached.GetPropertyByID(c.Context(), id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}
	if property == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"error":   "Property not found",
		})
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    property,
	})
}

// GetPriceTrends returns the rent snapshot series for one listing
func (h *PropertyHandler) GetPriceTrends(c *fiber.Ctx) error {
	id := c.Params("id")
	days := c.QueryInt("days", 30)

	trends, err := h.Service.GetPriceTrends(c.Context(), id, days)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    trends,
	})
}

// GetTrends returns the combined rent-and-lifecycle trend view for one listing
func (h *PropertyHandler) GetTrends(c *fiber.Ctx) error {
	id := c.Params("id")
	days := c.QueryInt("days", 90)

	trends, err := h.Service.GetPropertyTrends(c.Context(), id, days)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    trends,
	})
}

// GetPropertyAnalytics returns derived per-listing figures
func (h *PropertyHandler) GetPropertyAnalytics(c *fiber.Ctx) error {
	id := c.Params("id")

	analytics, err := h.Service.GetPropertyAnalytics(c.Context(), id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}
	if analytics == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"error":   "Property not found",
		})
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    analytics,
	})
}

// GetAvailabilityTimeline returns the lifecycle event history for one listing
func (h *PropertyHandler) GetAvailabilityTimeline(c *fiber.Ctx) error {
	id := c.Params("id")

	events, err := h.Service.GetAvailabilityTimeline(c.Context(), id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    events,
	})
}

// ExportProperties streams the filtered listing set as an XLSX download
func (h *PropertyHandler) ExportProperties(c *fiber.Ctx) error {
	filter := parsePropertyFilter(c)

	content, filename, err := h.Export.ExportProperties(c.Context(), filter)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}

	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Send(content)
}
