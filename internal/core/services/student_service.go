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

// StudentService is the student directory collaborator. The ledger only
// reads from it at write time to freeze display fields.
type StudentService struct {
	studentRepo *repositories.StudentRepository
}

// NewStudentService creates a new student service
func NewStudentService(studentRepo *repositories.StudentRepository) *StudentService {
	return &StudentService{studentRepo: studentRepo}
}

// CreateStudentInput represents a new student registration
type CreateStudentInput struct {
	StudentCode string `json:"student_code" validate:"required,max=20"`
	FirstName   string `json:"first_name" validate:"required,max=50"`
	LastName    string `json:"last_name" validate:"max=50"`
	Phone       string `json:"phone" validate:"max=20"`
	Email       string `json:"email" validate:"omitempty,email"`
}

// CreateStudent registers a new student in the directory
func (s *StudentService) CreateStudent(ctx context.Context, schoolID uint, input *CreateStudentInput) (*models.Student, error) {
	if err := validate.Struct(input); err != nil {
		return nil, domain.NewValidationError(err.Error())
	}

	taken, err := s.studentRepo.ExistsByCode(ctx, schoolID, input.StudentCode)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, domain.ErrDuplicateEntry
	}

	student := &models.Student{
		SchoolID:    schoolID,
		StudentCode: input.StudentCode,
		FirstName:   input.FirstName,
		LastName:    input.LastName,
		Phone:       input.Phone,
		Email:       input.Email,
		IsActive:    true,
	}
	if err := s.studentRepo.Create(ctx, student); err != nil {
		return nil, err
	}
	return student, nil
}

// GetStudent returns a student by ID, scoped to the caller's school
func (s *StudentService) GetStudent(ctx context.Context, schoolID, id uint) (*models.Student, error) {
	student, err := s.studentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrStudentNotFound
		}
		return nil, err
	}
	if student.SchoolID != schoolID {
		return nil, domain.ErrStudentNotFound
	}
	return student, nil
}

// ListStudents returns students for a school with pagination
func (s *StudentService) ListStudents(ctx context.Context, schoolID uint, offset, limit int) ([]models.Student, int64, error) {
	return s.studentRepo.List(ctx, schoolID, offset, limit)
}
