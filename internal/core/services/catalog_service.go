package services

import (
	"context"
	"errors"

	"classledger/internal/adapters/persistence/models"
	"classledger/internal/adapters/persistence/repositories"
	"classledger/internal/core/domain"
	"classledger/internal/pkg/validate"

	"gorm.io/gorm"
)

// CatalogService manages the course and credit-package catalog
type CatalogService struct {
	catalogRepo *repositories.CatalogRepository
}

// NewCatalogService creates a new catalog service
func NewCatalogService(catalogRepo *repositories.CatalogRepository) *CatalogService {
	return &CatalogService{catalogRepo: catalogRepo}
}

// CreateCourseInput represents a new course
type CreateCourseInput struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=255"`
}

// CreateCourse creates a new course
func (s *CatalogService) CreateCourse(ctx context.Context, schoolID uint, input *CreateCourseInput) (*models.Course, error) {
	if err := validate.Struct(input); err != nil {
		return nil, domain.NewValidationError(err.Error())
	}

	course := &models.Course{
		SchoolID:    schoolID,
		Name:        input.Name,
		Description: input.Description,
		IsActive:    true,
	}
	if err := s.catalogRepo.CreateCourse(ctx, course); err != nil {
		return nil, err
	}
	return course, nil
}

// GetCourse returns a course by ID, scoped to the caller's school
func (s *CatalogService) GetCourse(ctx context.Context, schoolID, id uint) (*models.Course, error) {
	course, err := s.catalogRepo.GetCourseByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCourseNotFound
		}
		return nil, err
	}
	if course.SchoolID != schoolID {
		return nil, domain.ErrCourseNotFound
	}
	return course, nil
}

// ListCourses returns all active courses for a school
func (s *CatalogService) ListCourses(ctx context.Context, schoolID uint) ([]models.Course, error) {
	return s.catalogRepo.ListCourses(ctx, schoolID)
}

// CreatePackageInput represents a new credit package. CourseID nil makes
// the package universal.
type CreatePackageInput struct {
	CourseID      *uint   `json:"course_id"`
	Name          string  `json:"name" validate:"required,max=100"`
	Credits       int     `json:"credits" validate:"required,gt=0"`
	BonusCredits  int     `json:"bonus_credits" validate:"gte=0"`
	Price         float64 `json:"price" validate:"gte=0"`
	ValidityType  string  `json:"validity_type" validate:"required,oneof=months days unlimited"`
	ValidityValue int     `json:"validity_value" validate:"gte=0"`
}

// CreatePackage creates a new credit package
func (s *CatalogService) CreatePackage(ctx context.Context, schoolID uint, input *CreatePackageInput) (*models.CreditPackage, error) {
	if err := validate.Struct(input); err != nil {
		return nil, domain.NewValidationError(err.Error())
	}
	if input.ValidityType != models.ValidityUnlimited && input.ValidityValue <= 0 {
		return nil, domain.NewValidationError("validity_value must be positive unless validity is unlimited")
	}

	if input.CourseID != nil {
		course, err := s.catalogRepo.GetCourseByID(ctx, *input.CourseID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, domain.ErrCourseNotFound
			}
			return nil, err
		}
		if course.SchoolID != schoolID {
			return nil, domain.ErrCourseNotFound
		}
	}

	pkg := &models.CreditPackage{
		SchoolID:      schoolID,
		CourseID:      input.CourseID,
		Name:          input.Name,
		Credits:       input.Credits,
		BonusCredits:  input.BonusCredits,
		Price:         input.Price,
		ValidityType:  input.ValidityType,
		ValidityValue: input.ValidityValue,
		IsActive:      true,
	}
	if err := s.catalogRepo.CreatePackage(ctx, pkg); err != nil {
		return nil, err
	}
	return pkg, nil
}

// GetPackage returns a credit package by ID, scoped to the caller's school
func (s *CatalogService) GetPackage(ctx context.Context, schoolID, id uint) (*models.CreditPackage, error) {
	pkg, err := s.catalogRepo.GetPackageByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrPackageNotFound
		}
		return nil, err
	}
	if pkg.SchoolID != schoolID {
		return nil, domain.ErrPackageNotFound
	}
	return pkg, nil
}

// ListPackages returns active packages, optionally scoped to a course
func (s *CatalogService) ListPackages(ctx context.Context, schoolID uint, courseID *uint) ([]models.CreditPackage, error) {
	return s.catalogRepo.ListPackages(ctx, schoolID, courseID)
}
