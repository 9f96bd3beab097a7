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
	"classledger/internal/pkg/receipt"
	"classledger/internal/pkg/validate"

	"gorm.io/gorm"
)

// maxConflictRetries bounds how many times a balance mutation is retried
// after an optimistic-lock miss before giving up. Callers never see a raw
// conflict unless all retries are exhausted.
const maxConflictRetries = 3

// CreditService handles credit issuance and the query/aggregation layer
type CreditService struct {
	db          *gorm.DB
	creditRepo  *repositories.CreditRepository
	studentRepo *repositories.StudentRepository
	catalogRepo *repositories.CatalogRepository
}

// NewCreditService creates a new credit service
func NewCreditService(
	db *gorm.DB,
	creditRepo *repositories.CreditRepository,
	studentRepo *repositories.StudentRepository,
	catalogRepo *repositories.CatalogRepository,
) *CreditService {
	return &CreditService{
		db:          db,
		creditRepo:  creditRepo,
		studentRepo: studentRepo,
		catalogRepo: catalogRepo,
	}
}

// ============================================================
// Credit Issuance
// ============================================================

// PurchaseInput represents a settled package purchase. Payment is recorded
// as already collected; there is no gateway call here.
type PurchaseInput struct {
	StudentID        uint    `json:"student_id" validate:"required"`
	PackageID        uint    `json:"package_id" validate:"required"`
	PaymentMethod    string  `json:"payment_method" validate:"required"`
	PaymentAmount    float64 `json:"payment_amount" validate:"gte=0"`
	DiscountAmount   float64 `json:"discount_amount" validate:"gte=0"`
	PaymentNote      string  `json:"payment_note"`
	PaymentReference string  `json:"payment_reference"`
}

// PurchaseCredits turns a package purchase into a new CreditRecord with the
// full balance available and display fields frozen from the directory and
// catalog as they are right now.
func (s *CreditService) PurchaseCredits(ctx context.Context, schoolID uint, actor domain.Actor, input *PurchaseInput) (*models.CreditRecord, error) {
	if err := validate.Struct(input); err != nil {
		return nil, domain.NewValidationError(err.Error())
	}

	student, err := s.studentRepo.GetByID(ctx, input.StudentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrStudentNotFound
		}
		return nil, err
	}
	if student.SchoolID != schoolID {
		return nil, domain.ErrStudentNotFound
	}

	pkg, err := s.catalogRepo.GetPackageByID(ctx, input.PackageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrPackageNotFound
		}
		return nil, err
	}
	if pkg.SchoolID != schoolID {
		return nil, domain.ErrPackageNotFound
	}

	var courseName string
	if !pkg.IsUniversal() {
		course, err := s.catalogRepo.GetCourseByID(ctx, *pkg.CourseID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, domain.ErrCourseNotFound
			}
			return nil, err
		}
		courseName = course.Name
	}

	// Refuse to write a ledger row with unresolvable display fields.
	// A blank student or package name here means upstream data is broken
	// and the purchase must not go through.
	studentName := student.FullName()
	if strings.TrimSpace(studentName) == "" || strings.TrimSpace(student.StudentCode) == "" {
		return nil, domain.NewValidationError("student display name or code could not be resolved")
	}
	if strings.TrimSpace(pkg.Name) == "" {
		return nil, domain.NewValidationError("package name could not be resolved")
	}
	if !pkg.IsUniversal() && strings.TrimSpace(courseName) == "" {
		return nil, domain.NewValidationError("course name could not be resolved")
	}

	totalCredits := pkg.Credits + pkg.BonusCredits
	if totalCredits <= 0 {
		return nil, domain.NewValidationError("package grants no credits")
	}

	now := time.Now()
	purchaseDate := now.Truncate(24 * time.Hour)
	expiryDate, hasExpiry, err := computeExpiry(purchaseDate, pkg.ValidityType, pkg.ValidityValue)
	if err != nil {
		return nil, err
	}

	pricePerCredit := input.PaymentAmount / float64(totalCredits)

	record := &models.CreditRecord{
		SchoolID:         schoolID,
		StudentID:        student.ID,
		StudentName:      studentName,
		StudentCode:      student.StudentCode,
		CourseID:         pkg.CourseID,
		CourseName:       courseName,
		IsUniversal:      pkg.IsUniversal(),
		PackageID:        pkg.ID,
		PackageName:      pkg.Name,
		TotalCredits:     totalCredits,
		BonusCredits:     pkg.BonusCredits,
		UsedCredits:      0,
		RemainingCredits: totalCredits,
		OriginalPrice:    pkg.Price,
		DiscountAmount:   input.DiscountAmount,
		FinalPrice:       input.PaymentAmount,
		PricePerCredit:   pricePerCredit,
		PurchaseDate:     purchaseDate,
		ActivationDate:   purchaseDate,
		ExpiryDate:       expiryDate,
		HasExpiry:        hasExpiry,
		Status:           models.CreditStatusActive,
		ReceiptNo:        receipt.Generate(now),
		PaymentMethod:    input.PaymentMethod,
		PaymentNote:      input.PaymentNote,
		PaymentReference: input.PaymentReference,
		CreatedBy:        actor.UserID,
		CreatedByName:    actor.UserName,
		CreatedByRole:    actor.Role,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		return s.creditRepo.Create(ctx, tx, record)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("credit purchase: receipt=%s student=%d package=%d credits=%d", record.ReceiptNo, student.ID, pkg.ID, totalCredits)
	return record, nil
}

// computeExpiry applies the package validity policy to the purchase date
func computeExpiry(purchaseDate time.Time, validityType string, validityValue int) (*time.Time, bool, error) {
	switch validityType {
	case models.ValidityUnlimited:
		return nil, false, nil
	case models.ValidityMonths:
		if validityValue <= 0 {
			return nil, false, domain.NewValidationError("validity value must be positive for months policy")
		}
		d := purchaseDate.AddDate(0, validityValue, 0)
		return &d, true, nil
	case models.ValidityDays:
		if validityValue <= 0 {
			return nil, false, domain.NewValidationError("validity value must be positive for days policy")
		}
		d := purchaseDate.AddDate(0, 0, validityValue)
		return &d, true, nil
	default:
		return nil, false, domain.NewValidationError("unknown validity type: " + validityType)
	}
}

// ============================================================
// Query / Aggregation Layer
// ============================================================

// CreditView is a CreditRecord with its effective status overlaid; the
// stored status may lag behind expiry until the nightly sweep runs
type CreditView struct {
	models.CreditRecord
	EffectiveStatus string `json:"effective_status"`
}

// PackageSummary is the per-package balance line shown in tooltips
type PackageSummary struct {
	CreditID    uint       `json:"credit_id"`
	CourseName  string     `json:"course_name"`
	PackageName string     `json:"package_name"`
	IsUniversal bool       `json:"is_universal"`
	Remaining   int        `json:"remaining"`
	ExpiryDate  *time.Time `json:"expiry_date"`
}

// StudentCreditsResponse aggregates a student's credit position
type StudentCreditsResponse struct {
	Credits        []CreditView     `json:"credits"`
	TotalRemaining int              `json:"total_remaining"`
	Summaries      []PackageSummary `json:"summaries"`
}

// GetStudentCredits returns a student's credit records, the cross-package
// remaining total, and per-package summaries. With usableOnly set, records
// that cannot fund a check-in (depleted, suspended, expired) are omitted;
// otherwise the full history is returned.
func (s *CreditService) GetStudentCredits(ctx context.Context, schoolID, studentID uint, courseID *uint, usableOnly bool) (*StudentCreditsResponse, error) {
	if _, err := s.studentRepo.GetByID(ctx, studentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrStudentNotFound
		}
		return nil, err
	}

	records, err := s.creditRepo.ListByStudent(ctx, schoolID, studentID, courseID, false)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	resp := &StudentCreditsResponse{
		Credits:   make([]CreditView, 0, len(records)),
		Summaries: make([]PackageSummary, 0, len(records)),
	}

	for _, rec := range records {
		effective := rec.EffectiveStatus(now)
		usable := effective == models.CreditStatusActive && rec.RemainingCredits > 0

		if usableOnly && !usable {
			continue
		}

		resp.Credits = append(resp.Credits, CreditView{CreditRecord: rec, EffectiveStatus: effective})

		if usable {
			resp.TotalRemaining += rec.RemainingCredits
			resp.Summaries = append(resp.Summaries, PackageSummary{
				CreditID:    rec.ID,
				CourseName:  rec.CourseName,
				PackageName: rec.PackageName,
				IsUniversal: rec.IsUniversal,
				Remaining:   rec.RemainingCredits,
				ExpiryDate:  rec.ExpiryDate,
			})
		}
	}

	return resp, nil
}

// GetSchoolCredits returns credit records matching filter with pagination,
// effective status overlaid
func (s *CreditService) GetSchoolCredits(ctx context.Context, filter repositories.CreditFilter, offset, limit int) ([]CreditView, int64, error) {
	records, total, err := s.creditRepo.ListBySchool(ctx, filter, offset, limit)
	if err != nil {
		return nil, 0, err
	}

	now := time.Now()
	views := make([]CreditView, len(records))
	for i, rec := range records {
		views[i] = CreditView{CreditRecord: rec, EffectiveStatus: rec.EffectiveStatus(now)}
	}
	return views, total, nil
}

// GetEnrollmentCount returns the number of distinct students holding usable
// credits for a course. Derived on every call, never stored.
func (s *CreditService) GetEnrollmentCount(ctx context.Context, schoolID, courseID uint) (int64, error) {
	course, err := s.catalogRepo.GetCourseByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, domain.ErrCourseNotFound
		}
		return 0, err
	}
	if course.SchoolID != schoolID {
		return 0, domain.ErrCourseNotFound
	}

	return s.creditRepo.CountEnrolledStudents(ctx, schoolID, courseID)
}

// ============================================================
// Manual status transitions (suspend / resume)
// ============================================================

// SuspendCredit manually suspends an active or depleted credit record
func (s *CreditService) SuspendCredit(ctx context.Context, schoolID uint, creditID uint) (*models.CreditRecord, error) {
	return s.transitionStatus(ctx, schoolID, creditID, func(rec *models.CreditRecord) (string, error) {
		if rec.Status != models.CreditStatusActive && rec.Status != models.CreditStatusDepleted {
			return "", domain.NewValidationError("only active or depleted credits can be suspended")
		}
		return models.CreditStatusSuspended, nil
	})
}

// ResumeCredit lifts a manual suspension. The record returns to active, or
// straight to depleted when the balance is already zero.
func (s *CreditService) ResumeCredit(ctx context.Context, schoolID uint, creditID uint) (*models.CreditRecord, error) {
	return s.transitionStatus(ctx, schoolID, creditID, func(rec *models.CreditRecord) (string, error) {
		if rec.Status != models.CreditStatusSuspended {
			return "", domain.NewValidationError("credit is not suspended")
		}
		if rec.RemainingCredits == 0 {
			return models.CreditStatusDepleted, nil
		}
		return models.CreditStatusActive, nil
	})
}

func (s *CreditService) transitionStatus(ctx context.Context, schoolID, creditID uint, next func(*models.CreditRecord) (string, error)) (*models.CreditRecord, error) {
	var result *models.CreditRecord

	for attempt := 0; attempt <= maxConflictRetries; attempt++ {
		err := s.db.Transaction(func(tx *gorm.DB) error {
			rec, err := s.creditRepo.GetByIDTx(ctx, tx, creditID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return domain.ErrCreditNotFound
				}
				return err
			}
			if rec.SchoolID != schoolID {
				return domain.ErrCreditNotFound
			}

			status, err := next(rec)
			if err != nil {
				return err
			}

			if err := s.creditRepo.SetStatus(ctx, tx, rec.ID, rec.Version, status); err != nil {
				return err
			}

			rec.Status = status
			rec.Version++
			result = rec
			return nil
		})
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
