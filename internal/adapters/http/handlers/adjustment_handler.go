package handlers

import (
	"errors"

	"classledger/internal/core/domain"
	"classledger/internal/core/services"
	"classledger/internal/pkg/pagination"
	"classledger/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// AdjustmentHandler handles manual balance correction endpoints
type AdjustmentHandler struct {
	adjustmentService *services.AdjustmentService
}

// NewAdjustmentHandler creates a new adjustment handler
func NewAdjustmentHandler(adjustmentService *services.AdjustmentService) *AdjustmentHandler {
	return &AdjustmentHandler{adjustmentService: adjustmentService}
}

// ============================================================
// POST /api/v1/credits/:id/adjust: manual correction with audit
// ============================================================

// Adjust godoc
// @Summary      Manually correct a credit balance (audited)
// @Tags         adjustments
// @Accept       json
// @Produce      json
// @Param        id path int true "credit id"
// @Param        body body services.AdjustInput true "adjustment"
// @Success      200 {object} response.Response
// @Security     BearerAuth
// @Router       /credits/{id}/adjust [post]
func (h *AdjustmentHandler) Adjust(c *fiber.Ctx) error {
	actor, ok := actorFromCtx(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}
	schoolID, _ := schoolFromCtx(c)

	creditID, err := parseIDParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid credit ID")
	}

	var input services.AdjustInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	result, err := h.adjustmentService.AdjustCredit(c.Context(), schoolID, actor, creditID, &input)
	if err != nil {
		switch {
		case domain.IsValidationError(err):
			return response.BadRequest(c, err.Error())
		case errors.Is(err, domain.ErrCreditNotFound):
			return response.NotFound(c, "Credit record not found")
		case errors.Is(err, domain.ErrTransactionConflict):
			return response.Conflict(c, "Credit record is busy, please retry")
		default:
			return response.InternalServerError(c, "Failed to adjust credit")
		}
	}
	return response.Success(c, "Credit adjusted", result)
}

// ============================================================
// GET /api/v1/credits/:id/adjustments: audit trail for one record
// ============================================================
func (h *AdjustmentHandler) CreditAdjustments(c *fiber.Ctx) error {
	schoolID, ok := schoolFromCtx(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	creditID, err := parseIDParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid credit ID")
	}

	adjustments, err := h.adjustmentService.GetCreditAdjustments(c.Context(), schoolID, creditID)
	if err != nil {
		if errors.Is(err, domain.ErrCreditNotFound) {
			return response.NotFound(c, "Credit record not found")
		}
		return response.InternalServerError(c, "Failed to get adjustments")
	}
	return response.Success(c, "Adjustments retrieved", adjustments)
}

// ============================================================
// GET /api/v1/students/:id/adjustments: a student's audit history
// ============================================================
func (h *AdjustmentHandler) StudentAdjustments(c *fiber.Ctx) error {
	schoolID, ok := schoolFromCtx(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	studentID, err := parseIDParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid student ID")
	}

	params := pagination.GetParams(c)
	adjustments, total, err := h.adjustmentService.GetStudentAdjustments(c.Context(), schoolID, studentID, params.Offset, params.Limit)
	if err != nil {
		return response.InternalServerError(c, "Failed to get adjustments")
	}
	return response.Success(c, "Adjustments retrieved", pagination.NewResponse(adjustments, params, total))
}
