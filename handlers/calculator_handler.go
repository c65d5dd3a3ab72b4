package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/propscan/hmo-backend/models"
	"github.com/propscan/hmo-backend/services"
	"github.com/sirupsen/logrus"
)

// CalculatorHandler serves the BRRR appraisal and the generic buy-to-let
// calculator. BRRR inputs merge over the default deal before derivation, so
// clients may send only the fields they changed.
type CalculatorHandler struct {
	DealService    *services.DealService
	StateService   *services.CalcStateService
	MarketService  *services.MarketService
	UtilityService *services.UtilityService
}

func NewCalculatorHandler(dealService *services.DealService, stateService *services.CalcStateService, marketService *services.MarketService, utilityService *services.UtilityService) *CalculatorHandler {
	return &CalculatorHandler{
		DealService:    dealService,
		StateService:   stateService,
		MarketService:  marketService,
		UtilityService: utilityService,
	}
}

// clientID resolves the calculator client identity used to key saved state
func clientID(c *fiber.Ctx) string {
	if id := c.Get("X-Client-ID"); id != "" {
		return id
	}
	return c.Query("client_id")
}

// DeriveBRRR recomputes the full BRRR metric set for the posted inputs.
// An optional square_footage query parameter overwrites every area-based
// refurbishment category before derivation.
func (h *CalculatorHandler) DeriveBRRR(c *fiber.Ctx) error {
	inputs := services.DefaultDealInputs()
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&inputs); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"error":   "Invalid request body",
			})
		}
	}

	// Malformed input coerces silently to 0, which leaves the areas alone
	if raw := c.Query("square_footage"); raw != "" {
		if sqft, _ := h.UtilityService.ParseNumericField(raw); sqft > 0 {
			h.DealService.ApplySquareFootage(&inputs, sqft)
		}
	}

	results := h.DealService.Derive(inputs)

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"inputs":  inputs,
			"results": results,
		},
	})
}

// SaveBRRRState persists the posted inputs for the calling client
func (h *CalculatorHandler) SaveBRRRState(c *fiber.Ctx) error {
	id := clientID(c)
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Client ID is required (X-Client-ID header or client_id query)",
		})
	}

	inputs := services.DefaultDealInputs()
	if err := c.BodyParser(&inputs); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid request body",
		})
	}

	if err := h.StateService.SaveState(c.Context(), id, inputs); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Calculator state saved",
	})
}

// LoadBRRRState returns the saved inputs for the calling client, or the
// defaults when nothing fresh is stored, along with the derived results.
func (h *CalculatorHandler) LoadBRRRState(c *fiber.Ctx) error {
	id := clientID(c)
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Client ID is required (X-Client-ID header or client_id query)",
		})
	}

	inputs, restored := h.StateService.LoadState(c.Context(), id)
	results := h.DealService.Derive(inputs)

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"inputs":   inputs,
			"results":  results,
			"restored": restored,
		},
	})
}

// DeriveQuickDeal computes the generic buy-to-let calculator. A zero rent
// per room is seeded from the city market average when one is available.
func (h *CalculatorHandler) DeriveQuickDeal(c *fiber.Ctx) error {
	var inputs models.QuickDealInputs
	if err := c.BodyParser(&inputs); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid request body",
		})
	}

	var seededRent float64
	if inputs.RentPerRoom == 0 && inputs.City != "" {
		avg, err := h.MarketService.GetAverageRentPerRoom(c.Context(), inputs.City)
		if err != nil {
			// The calculator still works without a seed
			logrus.WithError(err).WithField("city", inputs.City).Warn("Failed to seed rent per room")
		} else {
			seededRent = avg
		}
	}

	results := h.DealService.DeriveQuickDeal(inputs, seededRent)

	return c.JSON(fiber.Map{
		"success": true,
		"data":    results,
	})
}
