package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/p2p-exchange/backend/internal/http/dto"
	"github.com/p2p-exchange/backend/internal/middleware"
	"github.com/p2p-exchange/backend/internal/models"
	"github.com/p2p-exchange/backend/internal/services"
	"go.uber.org/zap"
)

// AdminHandler exposes the manual adjudication surface: resolving disputes,
// adding notes, and forcing re-evaluation.
type AdminHandler struct {
	disputeService *services.DisputeService
	log            *zap.Logger
}

func NewAdminHandler(disputeService *services.DisputeService, log *zap.Logger) *AdminHandler {
	return &AdminHandler{disputeService: disputeService, log: log}
}

func (h *AdminHandler) ResolveDispute(c *fiber.Ctx) error {
	disputeID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid dispute id"})
	}

	var req dto.AdminResolveRequest
	if err := c.BodyParser(&req); err != nil || !models.IsValidResolution(req.Resolution) {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "resolution is required (buyer_favor, seller_favor, split)"})
	}

	dispute, err := h.disputeService.AdminResolve(c.Context(), disputeID, middleware.GetUserID(c), req.Resolution, req.AdminNote)
	if err != nil {
		return disputeError(c, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: dispute})
}

func (h *AdminHandler) AddNote(c *fiber.Ctx) error {
	disputeID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid dispute id"})
	}

	var req dto.AdminNoteRequest
	if err := c.BodyParser(&req); err != nil || req.Note == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "note is required"})
	}

	note, err := h.disputeService.AddNote(c.Context(), disputeID, middleware.GetUserID(c), req.Note)
	if err != nil {
		return disputeError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: note})
}

// Reevaluate forces one engine run over a dispute, e.g. after the payment
// window has lapsed, without waiting for the background sweep.
func (h *AdminHandler) Reevaluate(c *fiber.Ctx) error {
	disputeID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid dispute id"})
	}

	dispute, err := h.disputeService.Resolve(c.Context(), disputeID)
	if err != nil {
		return disputeError(c, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: dispute})
}
