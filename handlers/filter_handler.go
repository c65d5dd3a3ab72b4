package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/propscan/hmo-backend/services"
)

// FilterHandler serves the dropdown option lists for the browse filters
type FilterHandler struct {
	Cached *services.CachedPropertyService
}

func NewFilterHandler(cached *services.CachedPropertyService) *FilterHandler {
	return &FilterHandler{Cached: cached}
}

func (h *FilterHandler) GetCities(c *fiber.Ctx) error {
	cities, err := h.Cached.GetCities(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    cities,
	})
}

func (h *FilterHandler) GetAreas(c *fiber.Ctx) error {
	city := c.Params("city")
	if city == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "City is required",
		})
	}

	areas, err := h.Cached.GetAreas(c.Context(), city)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    areas,
	})
}
