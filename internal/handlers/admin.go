package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/haramapp/internal/services"
)

// AdminHandler exposes staff-only operations.
type AdminHandler struct {
	lottery *services.LotteryService
}

// NewAdminHandler constructs an AdminHandler.
func NewAdminHandler(lottery *services.LotteryService) *AdminHandler {
	return &AdminHandler{lottery: lottery}
}

// RunLottery triggers the weekly draw manually, outside the scheduler.
func (h *AdminHandler) RunLottery(c *fiber.Ctx) error {
	winners, err := h.lottery.RunDraw(c.Context())
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"message":       "lottery draw completed",
		"winners_count": len(winners),
		"winners":       winners,
	})
}
