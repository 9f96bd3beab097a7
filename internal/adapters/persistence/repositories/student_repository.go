package repositories

import (
	"context"

	"classledger/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// StudentRepository handles student directory database operations
type StudentRepository struct {
	db *gorm.DB
}

// NewStudentRepository creates a new student repository
func NewStudentRepository(db *gorm.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// Create creates a new student
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	return r.db.WithContext(ctx).Create(student).Error
}

// GetByID returns a student by ID
func (r *StudentRepository) GetByID(ctx context.Context, id uint) (*models.Student, error) {
	var student models.Student
	if err := r.db.WithContext(ctx).First(&student, id).Error; err != nil {
		return nil, err
	}
	return &student, nil
}

// GetByCode returns a student by school and student code
func (r *StudentRepository) GetByCode(ctx context.Context, schoolID uint, code string) (*models.Student, error) {
	var student models.Student
	err := r.db.WithContext(ctx).
		Where("school_id = ? AND student_code = ?", schoolID, code).
		First(&student).Error
	if err != nil {
		return nil, err
	}
	return &student, nil
}

// Update saves changes to a student
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	return r.db.WithContext(ctx).Save(student).Error
}

// List returns students for a school with pagination
func (r *StudentRepository) List(ctx context.Context, schoolID uint, offset, limit int) ([]models.Student, int64, error) {
	var students []models.Student
	var total int64

	q := r.db.WithContext(ctx).Model(&models.Student{}).Where("school_id = ?", schoolID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("student_code ASC").Offset(offset).Limit(limit).Find(&students).Error
	return students, total, err
}

// ExistsByCode checks whether a student code is already taken within a school
func (r *StudentRepository) ExistsByCode(ctx context.Context, schoolID uint, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Student{}).
		Where("school_id = ? AND student_code = ?", schoolID, code).
		Count(&count).Error
	return count > 0, err
}
