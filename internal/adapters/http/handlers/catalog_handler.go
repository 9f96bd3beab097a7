package handlers

import (
	"errors"

	"classledger/internal/core/domain"
	"classledger/internal/core/services"
	"classledger/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// CatalogHandler handles course and credit-package catalog endpoints
type CatalogHandler struct {
	catalogService *services.CatalogService
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(catalogService *services.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalogService: catalogService}
}

// CreateCourse handles POST /api/v1/courses
func (h *CatalogHandler) CreateCourse(c *fiber.Ctx) error {
	schoolID, ok := schoolFromCtx(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	var input services.CreateCourseInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	course, err := h.catalogService.CreateCourse(c.Context(), schoolID, &input)
	if err != nil {
		if domain.IsValidationError(err) {
			return response.BadRequest(c, err.Error())
		}
		return response.InternalServerError(c, "Failed to create course")
	}
	return response.Created(c, "Course created", course)
}

// GetCourse handles GET /api/v1/courses/:id
func (h *CatalogHandler) GetCourse(c *fiber.Ctx) error {
	schoolID, ok := schoolFromCtx(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	id, err := parseIDParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid course ID")
	}

	course, err := h.catalogService.GetCourse(c.Context(), schoolID, id)
	if err != nil {
		if errors.Is(err, domain.ErrCourseNotFound) {
			return response.NotFound(c, "Course not found")
		}
		return response.InternalServerError(c, "Failed to get course")
	}
	return response.Success(c, "Course retrieved", course)
}

// ListCourses handles GET /api/v1/courses
func (h *CatalogHandler) ListCourses(c *fiber.Ctx) error {
	schoolID, ok := schoolFromCtx(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	courses, err := h.catalogService.ListCourses(c.Context(), schoolID)
	if err != nil {
		return response.InternalServerError(c, "Failed to list courses")
	}
	return response.Success(c, "Courses retrieved", courses)
}

// CreatePackage handles POST /api/v1/packages
func (h *CatalogHandler) CreatePackage(c *fiber.Ctx) error {
	schoolID, ok := schoolFromCtx(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	var input services.CreatePackageInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	pkg, err := h.catalogService.CreatePackage(c.Context(), schoolID, &input)
	if err != nil {
		switch {
		case domain.IsValidationError(err):
			return response.BadRequest(c, err.Error())
		case errors.Is(err, domain.ErrCourseNotFound):
			return response.NotFound(c, "Course not found")
		default:
			return response.InternalServerError(c, "Failed to create package")
		}
	}
	return response.Created(c, "Package created", pkg)
}

// GetPackage handles GET /api/v1/packages/:id
func (h *CatalogHandler) GetPackage(c *fiber.Ctx) error {
	schoolID, ok := schoolFromCtx(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	id, err := parseIDParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid package ID")
	}

	pkg, err := h.catalogService.GetPackage(c.Context(), schoolID, id)
	if err != nil {
		if errors.Is(err, domain.ErrPackageNotFound) {
			return response.NotFound(c, "Package not found")
		}
		return response.InternalServerError(c, "Failed to get package")
	}
	return response.Success(c, "Package retrieved", pkg)
}

// ListPackages handles GET /api/v1/packages
func (h *CatalogHandler) ListPackages(c *fiber.Ctx) error {
	schoolID, ok := schoolFromCtx(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	courseID := parseUintQuery(c, "course_id")
	pkgs, err := h.catalogService.ListPackages(c.Context(), schoolID, courseID)
	if err != nil {
		return response.InternalServerError(c, "Failed to list packages")
	}
	return response.Success(c, "Packages retrieved", pkgs)
}
