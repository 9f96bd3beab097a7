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

// AttendanceHandler handles check-in and cancellation endpoints
type AttendanceHandler struct {
	attendanceService *services.AttendanceService
}

// NewAttendanceHandler creates a new attendance handler
func NewAttendanceHandler(attendanceService *services.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{attendanceService: attendanceService}
}

// ============================================================
// POST /api/v1/attendance/checkin: debit one credit, atomically
// ============================================================

// CheckIn godoc
// @Summary      Check a student in, debiting one credit
// @Tags         attendance
// @Accept       json
// @Produce      json
// @Param        body body services.CheckInInput true "check-in"
// @Success      201 {object} response.Response
// @Security     BearerAuth
// @Router       /attendance/checkin [post]
func (h *AttendanceHandler) CheckIn(c *fiber.Ctx) error {
	actor, ok := actorFromCtx(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}
	schoolID, _ := schoolFromCtx(c)

	var input services.CheckInInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	record, err := h.attendanceService.CheckIn(c.Context(), schoolID, actor, &input)
	if err != nil {
		switch {
		case domain.IsValidationError(err):
			return response.BadRequest(c, err.Error())
		case errors.Is(err, domain.ErrStudentNotFound),
			errors.Is(err, domain.ErrCourseNotFound),
			errors.Is(err, domain.ErrCreditNotFound):
			return response.NotFound(c, err.Error())
		case errors.Is(err, domain.ErrInsufficientCredits):
			return response.UnprocessableEntity(c, "No credits remaining on this package")
		case errors.Is(err, domain.ErrCreditExpired):
			return response.UnprocessableEntity(c, "Credit package has expired")
		case errors.Is(err, domain.ErrCreditNotActive):
			return response.UnprocessableEntity(c, "Credit package is not active")
		case errors.Is(err, domain.ErrTransactionConflict):
			return response.Conflict(c, "Credit record is busy, please retry")
		default:
			return response.InternalServerError(c, "Failed to check in")
		}
	}
	return response.Created(c, "Checked in", record)
}

// ============================================================
// DELETE /api/v1/attendance/:id: cancel a check-in with refund
// ============================================================

// cancelRequest carries the mandatory cancellation reason
type cancelRequest struct {
	Reason string `json:"reason"`
}

// Cancel godoc
// @Summary      Cancel a check-in and refund the credit
// @Tags         attendance
// @Accept       json
// @Produce      json
// @Param        id path int true "attendance id"
// @Param        body body cancelRequest true "reason"
// @Success      200 {object} response.Response
// @Security     BearerAuth
// @Router       /attendance/{id} [delete]
func (h *AttendanceHandler) Cancel(c *fiber.Ctx) error {
	schoolID, ok := schoolFromCtx(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	attendanceID, err := parseIDParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid attendance ID")
	}

	var req cancelRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	restored, err := h.attendanceService.CancelAttendance(c.Context(), schoolID, attendanceID, req.Reason)
	if err != nil {
		switch {
		case domain.IsValidationError(err):
			return response.BadRequest(c, err.Error())
		case errors.Is(err, domain.ErrAttendanceNotFound):
			return response.NotFound(c, "Attendance record not found")
		case errors.Is(err, domain.ErrCreditNotFound):
			return response.NotFound(c, "Credit record not found")
		case errors.Is(err, domain.ErrTransactionConflict):
			return response.Conflict(c, "Credit record is busy, please retry")
		default:
			return response.InternalServerError(c, "Failed to cancel check-in")
		}
	}
	return response.Success(c, "Check-in cancelled", restored)
}

// ============================================================
// GET /api/v1/attendance: history with filters
// ============================================================
func (h *AttendanceHandler) History(c *fiber.Ctx) error {
	schoolID, ok := schoolFromCtx(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	filter := repositories.AttendanceFilter{
		SchoolID:  schoolID,
		StudentID: parseUintQuery(c, "student_id"),
		CourseID:  parseUintQuery(c, "course_id"),
		CreditID:  parseUintQuery(c, "credit_id"),
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
	records, total, err := h.attendanceService.GetHistory(c.Context(), filter, params.Offset, params.Limit)
	if err != nil {
		return response.InternalServerError(c, "Failed to get attendance history")
	}
	return response.Success(c, "Attendance history retrieved", pagination.NewResponse(records, params, total))
}
