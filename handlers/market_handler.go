package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/propscan/hmo-backend/services"
)

// MarketHandler serves per-city market aggregates: stats, timing series
// and velocity metrics.
type MarketHandler struct {
	MarketService *services.MarketService
	Cached        *services.CachedPropertyService
}

func NewMarketHandler(marketService *services.MarketService, cached *services.CachedPropertyService) *MarketHandler {
	return &MarketHandler{
		MarketService: marketService,
		Cached:        cached,
	}
}

func (h *MarketHandler) GetCityStats(c *fiber.Ctx) error {
	city := c.Params("city")

	stats, err := h.Cached.GetCityStats(c.Context(), city)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    stats,
	})
}

// GetMarketTiming returns the bucketed listing/letting series for a city
func (h *MarketHandler) GetMarketTiming(c *fiber.Ctx) error {
	city := c.Params("city")
	period := c.Query("period", "week")
	days := c.QueryInt("days", 90)

	timing, err := h.MarketService.GetMarketTiming(c.Context(), city, period, days)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    timing,
	})
}

// GetVelocityMetrics returns letting velocity and rent trend for a city
func (h *MarketHandler) GetVelocityMetrics(c *fiber.Ctx) error {
	city := c.Params("city")
	days := c.QueryInt("days", 30)

	metrics, err := h.MarketService.GetVelocityMetrics(c.Context(), city, days)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    metrics,
	})
}
