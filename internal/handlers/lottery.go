package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/example/haramapp/internal/middleware"
	"github.com/example/haramapp/internal/services"
	"github.com/example/haramapp/internal/utils"
)

// LotteryHandler exposes the weekly lottery endpoints.
type LotteryHandler struct {
	lottery *services.LotteryService
}

// NewLotteryHandler constructs a LotteryHandler.
func NewLotteryHandler(lottery *services.LotteryService) *LotteryHandler {
	return &LotteryHandler{lottery: lottery}
}

// Participate creates a pending ticket for the authenticated user.
func (h *LotteryHandler) Participate(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	ticket, err := h.lottery.Participate(c.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrRegistrationClosed),
			errors.Is(err, services.ErrAlreadyParticipated),
			errors.Is(err, services.ErrRecentWinner):
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		default:
			return err
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "you have successfully entered this week's lottery",
		"ticket":  ticket,
	})
}

// GetWinnerInfo returns the user's winning ticket, pre-filled when previous
// info exists.
func (h *LotteryHandler) GetWinnerInfo(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	ticket, err := h.lottery.WinnerTicket(c.Context(), userID)
	if err != nil {
		if errors.Is(err, services.ErrNotWinner) {
			return fiber.NewError(fiber.StatusNotFound, "you have not won the lottery")
		}
		return err
	}

	return c.JSON(fiber.Map{
		"ticket":            ticket,
		"has_previous_info": ticket.FullName != "" && ticket.NationalID != "",
	})
}

type winnerInfoRequest struct {
	FullName       string `json:"full_name" validate:"required,max=200"`
	NationalID     string `json:"national_id" validate:"required"`
	ReceivedDate   string `json:"received_date" validate:"required,max=100"`
	SelectedPeriod string `json:"selected_period" validate:"required,max=100"`
	Quantity       int    `json:"quantity" validate:"required,min=1,max=3"`
}

// CompleteWinnerInfo records the winner's delivery details before the
// Thursday 08:00 deadline.
func (h *LotteryHandler) CompleteWinnerInfo(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req winnerInfoRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "all winner fields are required and quantity must be between 1 and 3")
	}

	nationalID := utils.Digits(req.NationalID)
	if len(nationalID) != 10 {
		return fiber.NewError(fiber.StatusBadRequest, "national_id must be exactly 10 digits")
	}

	ticket, err := h.lottery.CompleteWinnerInfo(c.Context(), userID, services.WinnerInfo{
		FullName:       req.FullName,
		NationalID:     nationalID,
		ReceivedDate:   req.ReceivedDate,
		SelectedPeriod: req.SelectedPeriod,
		Quantity:       req.Quantity,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNotWinner):
			return fiber.NewError(fiber.StatusNotFound, "you have not won the lottery")
		case errors.Is(err, services.ErrDeadlinePassed):
			return fiber.NewError(fiber.StatusBadRequest, "the deadline for completing winner info has passed")
		default:
			return err
		}
	}

	return c.JSON(fiber.Map{
		"message": "your information has been recorded",
		"ticket":  ticket,
	})
}

// MyTickets returns the user's participation history, newest first.
func (h *LotteryHandler) MyTickets(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	pg := utils.ParsePagination(c)

	tickets, total, err := h.lottery.UserTickets(c.Context(), userID, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"count":   total,
		"results": tickets,
	})
}

// CurrentWeekWinners lists this week's winning tickets.
func (h *LotteryHandler) CurrentWeekWinners(c *fiber.Ctx) error {
	winners, err := h.lottery.CurrentWeekWinners(c.Context())
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"week_start": h.lottery.WeekStart(),
		"count":      len(winners),
		"winners":    winners,
	})
}
