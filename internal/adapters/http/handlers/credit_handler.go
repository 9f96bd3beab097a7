package handlers

import (
	"errors"
	"time"

	"classledger/internal/adapters/persistence/repositories"
	"classledger/internal/core/domain"
	"classledger/internal/core/services"
	"classledger/internal/pkg/pagination"
	"classledger/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// CreditHandler handles credit ledger endpoints
type CreditHandler struct {
	creditService *services.CreditService
}

// NewCreditHandler creates a new credit handler
func NewCreditHandler(creditService *services.CreditService) *CreditHandler {
	return &CreditHandler{creditService: creditService}
}

// ============================================================
// POST /api/v1/credits/purchase: record a settled package purchase
// ============================================================

// Purchase godoc
// @Summary      Purchase a credit package for a student
// @Tags         credits
// @Accept       json
// @Produce      json
// @Param        body body services.PurchaseInput true "purchase"
// @Success      201 {object} response.Response
// @Security     BearerAuth
// @Router       /credits/purchase [post]
func (h *CreditHandler) Purchase(c *fiber.Ctx) error {
	actor, ok := actorFromCtx(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}
	schoolID, _ := schoolFromCtx(c)

	var input services.PurchaseInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	record, err := h.creditService.PurchaseCredits(c.Context(), schoolID, actor, &input)
	if err != nil {
		switch {
		case domain.IsValidationError(err):
			return response.BadRequest(c, err.Error())
		case errors.Is(err, domain.ErrStudentNotFound),
			errors.Is(err, domain.ErrPackageNotFound),
			errors.Is(err, domain.ErrCourseNotFound):
			return response.NotFound(c, err.Error())
		default:
			return response.InternalServerError(c, "Failed to record purchase")
		}
	}
	return response.Created(c, "Credits purchased", record)
}

// ============================================================
// GET /api/v1/students/:id/credits: a student's credit position
// ============================================================

// StudentCredits godoc
// @Summary      Get a student's credits, total remaining and summaries
// @Tags         credits
// @Produce      json
// @Param        id path int true "student id"
// @Param        course_id query int false "scope to one course"
// @Param        usable_only query bool false "omit records that cannot fund a check-in"
// @Success      200 {object} response.Response
// @Security     BearerAuth
// @Router       /students/{id}/credits [get]
func (h *CreditHandler) StudentCredits(c *fiber.Ctx) error {
	schoolID, ok := schoolFromCtx(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	studentID, err := parseIDParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid student ID")
	}

	courseID := parseUintQuery(c, "course_id")
	usableOnly := c.QueryBool("usable_only", false)

	result, err := h.creditService.GetStudentCredits(c.Context(), schoolID, studentID, courseID, usableOnly)
	if err != nil {
		if errors.Is(err, domain.ErrStudentNotFound) {
			return response.NotFound(c, "Student not found")
		}
		return response.InternalServerError(c, "Failed to get student credits")
	}
	return response.Success(c, "Student credits retrieved", result)
}

// ============================================================
// GET /api/v1/credits: school-wide credit listing with filters
// ============================================================
func (h *CreditHandler) ListCredits(c *fiber.Ctx) error {
	schoolID, ok := schoolFromCtx(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	filter := repositories.CreditFilter{
		SchoolID:  schoolID,
		StudentID: parseUintQuery(c, "student_id"),
		CourseID:  parseUintQuery(c, "course_id"),
		Status:    c.Query("status"),
	}
	if raw := c.Query("start_date"); raw != "" {
		if d, err := time.Parse("2006-01-02", raw); err == nil {
			filter.StartDate = &d
		} else {
			return response.BadRequest(c, "start_date must be formatted as YYYY-MM-DD")
		}
	}
	if raw := c.Query("end_date"); raw != "" {
		if d, err := time.Parse("2006-01-02", raw); err == nil {
			filter.EndDate = &d
		} else {
			return response.BadRequest(c, "end_date must be formatted as YYYY-MM-DD")
		}
	}

	params := pagination.GetParams(c)
	views, total, err := h.creditService.GetSchoolCredits(c.Context(), filter, params.Offset, params.Limit)
	if err != nil {
		return response.InternalServerError(c, "Failed to list credits")
	}
	return response.Success(c, "Credits retrieved", pagination.NewResponse(views, params, total))
}

// ============================================================
// GET /api/v1/courses/:id/enrollment: derived enrollment count
// ============================================================
func (h *CreditHandler) CourseEnrollment(c *fiber.Ctx) error {
	schoolID, ok := schoolFromCtx(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	courseID, err := parseIDParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid course ID")
	}

	count, err := h.creditService.GetEnrollmentCount(c.Context(), schoolID, courseID)
	if err != nil {
		if errors.Is(err, domain.ErrCourseNotFound) {
			return response.NotFound(c, "Course not found")
		}
		return response.InternalServerError(c, "Failed to count enrollment")
	}
	return response.Success(c, "Enrollment counted", fiber.Map{"course_id": courseID, "enrolled_students": count})
}

// ============================================================
// POST /api/v1/credits/:id/suspend | /resume: manual transitions
// ============================================================
func (h *CreditHandler) Suspend(c *fiber.Ctx) error {
	schoolID, ok := schoolFromCtx(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}
	creditID, err := parseIDParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid credit ID")
	}

	record, err := h.creditService.SuspendCredit(c.Context(), schoolID, creditID)
	if err != nil {
		switch {
		case domain.IsValidationError(err):
			return response.BadRequest(c, err.Error())
		case errors.Is(err, domain.ErrCreditNotFound):
			return response.NotFound(c, "Credit record not found")
		case errors.Is(err, domain.ErrTransactionConflict):
			return response.Conflict(c, "Credit record is busy, please retry")
		default:
			return response.InternalServerError(c, "Failed to suspend credit")
		}
	}
	return response.Success(c, "Credit suspended", record)
}

func (h *CreditHandler) Resume(c *fiber.Ctx) error {
	schoolID, ok := schoolFromCtx(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}
	creditID, err := parseIDParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid credit ID")
	}

	record, err := h.creditService.ResumeCredit(c.Context(), schoolID, creditID)
	if err != nil {
		switch {
		case domain.IsValidationError(err):
			return response.BadRequest(c, err.Error())
		case errors.Is(err, domain.ErrCreditNotFound):
			return response.NotFound(c, "Credit record not found")
		case errors.Is(err, domain.ErrTransactionConflict):
			return response.Conflict(c, "Credit record is busy, please retry")
		default:
			return response.InternalServerError(c, "Failed to resume credit")
		}
	}
	return response.Success(c, "Credit resumed", record)
}
