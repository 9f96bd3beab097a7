package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"classledger/internal/adapters/persistence/models"
	"classledger/internal/adapters/persistence/repositories"
	"classledger/internal/core/domain"
	"classledger/internal/pkg/validate"

	"gorm.io/gorm"
)

// AttendanceService is the check-in / cancellation transaction engine.
//
// Both operations run as one atomic transaction: the CreditRecord is read,
// checked, and conditionally updated inside the same unit that writes (or
// deletes) the AttendanceRecord. A concurrent writer shows up as a version
// miss on the conditional update, which rolls the whole transaction back;
// the engine then retries from a fresh read, up to maxConflictRetries.
type AttendanceService struct {
	db             *gorm.DB
	creditRepo     *repositories.CreditRepository
	attendanceRepo *repositories.AttendanceRepository
	studentRepo    *repositories.StudentRepository
	catalogRepo    *repositories.CatalogRepository
}

// NewAttendanceService creates a new attendance service
func NewAttendanceService(
	db *gorm.DB,
	creditRepo *repositories.CreditRepository,
	attendanceRepo *repositories.AttendanceRepository,
	studentRepo *repositories.StudentRepository,
	catalogRepo *repositories.CatalogRepository,
) *AttendanceService {
	return &AttendanceService{
		db:             db,
		creditRepo:     creditRepo,
		attendanceRepo: attendanceRepo,
		studentRepo:    studentRepo,
		catalogRepo:    catalogRepo,
	}
}

// ============================================================
// Check-in
// ============================================================

// CheckInInput represents a check-in request. EffectiveDate may backdate
// the session day (format 2006-01-02, must not be in the future); the
// caller is expected to justify backdating in TeacherNotes, the engine
// only records what it is given.
type CheckInInput struct {
	StudentID     uint   `json:"student_id" validate:"required"`
	CourseID      uint   `json:"course_id" validate:"required"`
	CreditID      uint   `json:"credit_id" validate:"required"`
	CheckInMethod string `json:"check_in_method" validate:"omitempty,oneof=manual qr kiosk"`
	Status        string `json:"status" validate:"omitempty,oneof=present absent late excused holiday"`
	IsLate        bool   `json:"is_late"`
	LateMinutes   int    `json:"late_minutes" validate:"gte=0"`
	TeacherNotes  string `json:"teacher_notes"`
	EffectiveDate string `json:"effective_date"`
}

// CheckIn records attendance and debits one credit, atomically. On success
// the new AttendanceRecord carries a before/after snapshot of the balance
// it consumed.
func (s *AttendanceService) CheckIn(ctx context.Context, schoolID uint, actor domain.Actor, input *CheckInInput) (*models.AttendanceRecord, error) {
	if err := validate.Struct(input); err != nil {
		return nil, domain.NewValidationError(err.Error())
	}

	now := time.Now()
	checkInDate, err := resolveEffectiveDate(input.EffectiveDate, now)
	if err != nil {
		return nil, err
	}

	if input.CheckInMethod == "" {
		input.CheckInMethod = models.CheckInMethodManual
	}
	if input.Status == "" {
		input.Status = models.AttendanceStatusPresent
	}

	// Duplicate same-day check-ins against the same credit are allowed
	// here; preventing them is the caller's job via a pre-query. See
	// AttendanceRepository.CountForCreditOnDate.

	var result *models.AttendanceRecord
	for attempt := 0; attempt <= maxConflictRetries; attempt++ {
		result, err = s.tryCheckIn(ctx, schoolID, actor, input, checkInDate, now)
		if errors.Is(err, domain.ErrTransactionConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}
	return nil, domain.ErrTransactionConflict
}

// tryCheckIn is one atomic attempt. All precondition reads happen inside
// the transaction so a racing check-in cannot slip between the balance
// read and the debit.
func (s *AttendanceService) tryCheckIn(ctx context.Context, schoolID uint, actor domain.Actor, input *CheckInInput, checkInDate, now time.Time) (*models.AttendanceRecord, error) {
	var record *models.AttendanceRecord

	err := s.db.Transaction(func(tx *gorm.DB) error {
		student, err := s.studentRepo.GetByID(ctx, input.StudentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrStudentNotFound
			}
			return err
		}
		if student.SchoolID != schoolID {
			return domain.ErrStudentNotFound
		}

		course, err := s.catalogRepo.GetCourseByID(ctx, input.CourseID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrCourseNotFound
			}
			return err
		}
		if course.SchoolID != schoolID {
			return domain.ErrCourseNotFound
		}

		credit, err := s.creditRepo.GetByIDTx(ctx, tx, input.CreditID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrCreditNotFound
			}
			return err
		}
		if credit.SchoolID != schoolID || credit.StudentID != input.StudentID {
			return domain.ErrCreditNotFound
		}
		if !credit.IsUniversal && (credit.CourseID == nil || *credit.CourseID != input.CourseID) {
			return domain.NewValidationError("credit package is not valid for this course")
		}

		// Balance before status: a zero balance is always reported as
		// insufficient credits, whatever the stored status says.
		if credit.RemainingCredits < 1 {
			return domain.ErrInsufficientCredits
		}
		if credit.Status == models.CreditStatusSuspended {
			return domain.ErrCreditNotActive
		}
		if credit.IsExpiredAt(now) || credit.Status == models.CreditStatusExpired {
			return domain.ErrCreditExpired
		}
		if credit.Status != models.CreditStatusActive {
			return domain.ErrCreditNotActive
		}

		newRemaining := credit.RemainingCredits - 1
		newUsed := credit.UsedCredits + 1
		newStatus := credit.Status
		if newRemaining == 0 {
			newStatus = models.CreditStatusDepleted
		}

		record = &models.AttendanceRecord{
			SchoolID:        schoolID,
			StudentID:       student.ID,
			StudentName:     student.FullName(),
			StudentCode:     student.StudentCode,
			CourseID:        course.ID,
			CourseName:      course.Name,
			CreditID:        credit.ID,
			CheckInDate:     checkInDate,
			CheckInTime:     now,
			CheckInMethod:   input.CheckInMethod,
			Status:          input.Status,
			IsLate:          input.IsLate,
			LateMinutes:     input.LateMinutes,
			CreditsDeducted: 1,
			CreditsBefore:   credit.RemainingCredits,
			CreditsAfter:    newRemaining,
			CheckedBy:       actor.UserID,
			CheckedByName:   actor.UserName,
			CheckedByRole:   actor.Role,
			TeacherNotes:    input.TeacherNotes,
		}
		if err := s.attendanceRepo.Create(ctx, tx, record); err != nil {
			return err
		}

		return s.creditRepo.ApplyBalance(ctx, tx, credit.ID, credit.Version, newRemaining, newUsed, newStatus)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("check-in: attendance=%d credit=%d student=%d remaining=%d", record.ID, record.CreditID, record.StudentID, record.CreditsAfter)
	return record, nil
}

// resolveEffectiveDate parses the requested session day, defaulting to
// today. Future dates are rejected; any date up to today is accepted.
func resolveEffectiveDate(raw string, now time.Time) (time.Time, error) {
	today := now.Truncate(24 * time.Hour)
	if raw == "" {
		return today, nil
	}
	d, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, domain.NewValidationError("effective_date must be formatted as YYYY-MM-DD")
	}
	if d.After(today) {
		return time.Time{}, domain.NewValidationError("effective_date cannot be in the future")
	}
	return d, nil
}

// ============================================================
// Cancellation
// ============================================================

// CancelAttendance undoes a check-in: the attendance row is hard-deleted
// and the debited credit is refunded, in one atomic transaction. The
// deleted row leaves no tombstone; the refund on the CreditRecord and the
// logged reason are the only traces.
func (s *AttendanceService) CancelAttendance(ctx context.Context, schoolID uint, attendanceID uint, reason string) (*models.CreditRecord, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, domain.NewValidationError("cancellation reason is required")
	}

	var restored *models.CreditRecord
	for attempt := 0; attempt <= maxConflictRetries; attempt++ {
		err := s.db.Transaction(func(tx *gorm.DB) error {
			attendance, err := s.attendanceRepo.GetByIDTx(ctx, tx, attendanceID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return domain.ErrAttendanceNotFound
				}
				return err
			}
			if attendance.SchoolID != schoolID {
				return domain.ErrAttendanceNotFound
			}

			credit, err := s.creditRepo.GetByIDTx(ctx, tx, attendance.CreditID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return domain.ErrCreditNotFound
				}
				return err
			}

			newRemaining := credit.RemainingCredits + attendance.CreditsDeducted
			newUsed := credit.UsedCredits - attendance.CreditsDeducted
			if newUsed < 0 {
				newUsed = 0
			}
			newStatus := credit.Status
			if newRemaining > 0 {
				newStatus = models.CreditStatusActive
			}

			if err := s.attendanceRepo.HardDelete(ctx, tx, attendance.ID); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return domain.ErrAttendanceNotFound
				}
				return err
			}

			if err := s.creditRepo.ApplyBalance(ctx, tx, credit.ID, credit.Version, newRemaining, newUsed, newStatus); err != nil {
				return err
			}

			credit.RemainingCredits = newRemaining
			credit.UsedCredits = newUsed
			credit.Status = newStatus
			credit.Version++
			restored = credit
			return nil
		})
		if errors.Is(err, domain.ErrTransactionConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}

		log.Printf("check-in cancelled: attendance=%d credit=%d reason=%q", attendanceID, restored.ID, reason)
		return restored, nil
	}
	return nil, domain.ErrTransactionConflict
}

// ============================================================
// History
// ============================================================

// GetHistory returns attendance records matching filter with pagination
func (s *AttendanceService) GetHistory(ctx context.Context, filter repositories.AttendanceFilter, offset, limit int) ([]models.AttendanceRecord, int64, error) {
	return s.attendanceRepo.List(ctx, filter, offset, limit)
}

// CountForCreditOnDate exposes the duplicate pre-query for callers that
// want to warn before a same-day double check-in
func (s *AttendanceService) CountForCreditOnDate(ctx context.Context, creditID uint, date time.Time) (int64, error) {
	return s.attendanceRepo.CountForCreditOnDate(ctx, creditID, date)
}
