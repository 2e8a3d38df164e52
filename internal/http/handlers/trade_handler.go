package handlers

import (
	"context"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/p2p-exchange/backend/internal/http/dto"
	"github.com/p2p-exchange/backend/internal/middleware"
	"github.com/p2p-exchange/backend/internal/models"
	"github.com/p2p-exchange/backend/internal/repositories"
	"github.com/p2p-exchange/backend/internal/services"
	"go.uber.org/zap"
)

type TradeHandler struct {
	tradeService *services.TradeService
	log          *zap.Logger
}

func NewTradeHandler(tradeService *services.TradeService, log *zap.Logger) *TradeHandler {
	return &TradeHandler{tradeService: tradeService, log: log}
}

func (h *TradeHandler) CreateTrade(c *fiber.Ctx) error {
	var req dto.CreateTradeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	input := services.CreateTradeInput{
		AssetType:            req.AssetType,
		Amount:               req.Amount,
		Price:                req.Price,
		Currency:             req.Currency,
		PaymentMethod:        req.PaymentMethod,
		Location:             req.Location,
		Terms:                req.Terms,
		PaymentWindowMinutes: req.PaymentWindowMinutes,
	}
	if req.BuyerID != nil {
		buyerID, err := uuid.Parse(*req.BuyerID)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid buyer_id"})
		}
		input.BuyerID = &buyerID
	}

	sellerID := middleware.GetUserID(c)
	trade, err := h.tradeService.CreateTrade(c.Context(), sellerID, input)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: trade})
}

func (h *TradeHandler) GetTrade(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid trade id"})
	}

	trade, err := h.tradeService.GetTrade(c.Context(), id)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "trade not found"})
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: trade})
}

func (h *TradeHandler) ListTrades(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	filter := repositories.TradeFilter{
		Limit:  20,
		Offset: 0,
	}

	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}
	if v := c.Query("status"); v != "" {
		filter.Status = &v
	}
	if v := c.Query("asset_type"); v != "" {
		filter.AssetType = &v
	}

	switch c.Query("role") {
	case "seller":
		filter.SellerID = &userID
	case "buyer":
		filter.BuyerID = &userID
	case "mine":
		filter.PartyID = &userID
	}

	trades, err := h.tradeService.ListTrades(c.Context(), filter)
	if err != nil {
		h.log.Error("list trades failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: trades})
}

func (h *TradeHandler) JoinTrade(c *fiber.Ctx) error {
	tradeID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid trade id"})
	}

	trade, err := h.tradeService.JoinTrade(c.Context(), tradeID, middleware.GetUserID(c))
	if err != nil {
		return tradeError(c, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: trade})
}

func (h *TradeHandler) FundEscrow(c *fiber.Ctx) error {
	return h.transition(c, h.tradeService.FundEscrow)
}

func (h *TradeHandler) ConfirmPayment(c *fiber.Ctx) error {
	return h.transition(c, h.tradeService.ConfirmPayment)
}

func (h *TradeHandler) ReleaseFunds(c *fiber.Ctx) error {
	return h.transition(c, h.tradeService.ReleaseFunds)
}

func (h *TradeHandler) CancelTrade(c *fiber.Ctx) error {
	return h.transition(c, h.tradeService.CancelTrade)
}

func (h *TradeHandler) GetTradeEvents(c *fiber.Ctx) error {
	tradeID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid trade id"})
	}

	events, err := h.tradeService.GetTradeEvents(c.Context(), tradeID)
	if err != nil {
		h.log.Error("get trade events failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: events})
}

func (h *TradeHandler) transition(c *fiber.Ctx, op func(ctx context.Context, tradeID, actorID uuid.UUID) error) error {
	tradeID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid trade id"})
	}

	if err := op(c.Context(), tradeID, middleware.GetUserID(c)); err != nil {
		return tradeError(c, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true})
}

// tradeError maps service errors to HTTP statuses.
func tradeError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "trade not found"})
	case models.IsInvalidTransition(err):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Error: err.Error()})
	default:
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: err.Error()})
	}
}
