package handlers

import (
	"errors"

	"classledger/internal/core/domain"
	"classledger/internal/core/services"
	"classledger/internal/pkg/pagination"
	"classledger/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// StudentHandler handles student directory endpoints
type StudentHandler struct {
	studentService *services.StudentService
}

// NewStudentHandler creates a new student handler
func NewStudentHandler(studentService *services.StudentService) *StudentHandler {
	return &StudentHandler{studentService: studentService}
}

// Create handles POST /api/v1/students
func (h *StudentHandler) Create(c *fiber.Ctx) error {
	schoolID, ok := schoolFromCtx(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	var input services.CreateStudentInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	student, err := h.studentService.CreateStudent(c.Context(), schoolID, &input)
	if err != nil {
		switch {
		case domain.IsValidationError(err):
			return response.BadRequest(c, err.Error())
		case errors.Is(err, domain.ErrDuplicateEntry):
			return response.Conflict(c, "Student code already in use")
		default:
			return response.InternalServerError(c, "Failed to create student")
		}
	}
	return response.Created(c, "Student created", student)
}

// Get handles GET /api/v1/students/:id
func (h *StudentHandler) Get(c *fiber.Ctx) error {
	schoolID, ok := schoolFromCtx(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	id, err := parseIDParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid student ID")
	}

	student, err := h.studentService.GetStudent(c.Context(), schoolID, id)
	if err != nil {
		if errors.Is(err, domain.ErrStudentNotFound) {
			return response.NotFound(c, "Student not found")
		}
		return response.InternalServerError(c, "Failed to get student")
	}
	return response.Success(c, "Student retrieved", student)
}

// List handles GET /api/v1/students
func (h *StudentHandler) List(c *fiber.Ctx) error {
	schoolID, ok := schoolFromCtx(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	params := pagination.GetParams(c)
	students, total, err := h.studentService.ListStudents(c.Context(), schoolID, params.Offset, params.Limit)
	if err != nil {
		return response.InternalServerError(c, "Failed to list students")
	}
	return response.Success(c, "Students retrieved", pagination.NewResponse(students, params, total))
}
