package repositories

import (
	"context"

	"classledger/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// CatalogRepository handles course and credit-package catalog operations
type CatalogRepository struct {
	db *gorm.DB
}

// NewCatalogRepository creates a new catalog repository
func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// ============================================================
// Course Queries
// ============================================================

// CreateCourse creates a new course
func (r *CatalogRepository) CreateCourse(ctx context.Context, course *models.Course) error {
	return r.db.WithContext(ctx).Create(course).Error
}

// GetCourseByID returns a course by ID
func (r *CatalogRepository) GetCourseByID(ctx context.Context, id uint) (*models.Course, error) {
	var course models.Course
	if err := r.db.WithContext(ctx).First(&course, id).Error; err != nil {
		return nil, err
	}
	return &course, nil
}

// ListCourses returns all active courses for a school
func (r *CatalogRepository) ListCourses(ctx context.Context, schoolID uint) ([]models.Course, error) {
	var courses []models.Course
	err := r.db.WithContext(ctx).
		Where("school_id = ? AND is_active = ?", schoolID, true).
		Order("name ASC").
		Find(&courses).Error
	return courses, err
}

// ============================================================
// CreditPackage Queries
// ============================================================

// CreatePackage creates a new credit package
func (r *CatalogRepository) CreatePackage(ctx context.Context, pkg *models.CreditPackage) error {
	return r.db.WithContext(ctx).Create(pkg).Error
}

// GetPackageByID returns a credit package by ID
func (r *CatalogRepository) GetPackageByID(ctx context.Context, id uint) (*models.CreditPackage, error) {
	var pkg models.CreditPackage
	if err := r.db.WithContext(ctx).First(&pkg, id).Error; err != nil {
		return nil, err
	}
	return &pkg, nil
}

// ListPackages returns active packages for a school, optionally scoped to a course.
// Universal packages (course_id IS NULL) are always included.
func (r *CatalogRepository) ListPackages(ctx context.Context, schoolID uint, courseID *uint) ([]models.CreditPackage, error) {
	var pkgs []models.CreditPackage
	q := r.db.WithContext(ctx).
		Where("school_id = ? AND is_active = ?", schoolID, true)
	if courseID != nil {
		q = q.Where("course_id = ? OR course_id IS NULL", *courseID)
	}
	err := q.Order("name ASC").Find(&pkgs).Error
	return pkgs, err
}
