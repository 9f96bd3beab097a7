package repositories

import (
	"context"
	"time"

	"classledger/internal/adapters/persistence/models"
	"classledger/internal/core/domain"

	"gorm.io/gorm"
)

// CreditRepository handles credit ledger database operations.
//
// Balance mutations never go through Save: every write that touches
// RemainingCredits/UsedCredits/Status is a conditional UPDATE guarded by the
// record's Version column. If another writer got there first the update
// matches zero rows and the caller gets domain.ErrTransactionConflict, which
// aborts the surrounding transaction. This is what makes two simultaneous
// check-ins against a one-credit balance resolve to exactly one winner.
type CreditRepository struct {
	db *gorm.DB
}

// NewCreditRepository creates a new credit repository
func NewCreditRepository(db *gorm.DB) *CreditRepository {
	return &CreditRepository{db: db}
}

// Create inserts a new credit record within tx
func (r *CreditRepository) Create(ctx context.Context, tx *gorm.DB, record *models.CreditRecord) error {
	return tx.WithContext(ctx).Create(record).Error
}

// GetByID returns a credit record by ID
func (r *CreditRepository) GetByID(ctx context.Context, id uint) (*models.CreditRecord, error) {
	return r.getByID(ctx, r.db, id)
}

// GetByIDTx returns a credit record by ID using tx, so the read is part of
// the same transaction as the balance write that follows it
func (r *CreditRepository) GetByIDTx(ctx context.Context, tx *gorm.DB, id uint) (*models.CreditRecord, error) {
	return r.getByID(ctx, tx, id)
}

func (r *CreditRepository) getByID(ctx context.Context, db *gorm.DB, id uint) (*models.CreditRecord, error) {
	var record models.CreditRecord
	if err := db.WithContext(ctx).First(&record, id).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// ApplyBalance writes a new balance triple to a credit record iff nobody
// else has modified it since it was read at expectedVersion. Returns
// domain.ErrTransactionConflict on a version miss.
func (r *CreditRepository) ApplyBalance(ctx context.Context, tx *gorm.DB, id uint, expectedVersion, remaining, used int, status string) error {
	res := tx.WithContext(ctx).Model(&models.CreditRecord{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(map[string]interface{}{
			"remaining_credits": remaining,
			"used_credits":      used,
			"status":            status,
			"version":           expectedVersion + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrTransactionConflict
	}
	return nil
}

// SetStatus transitions only the status field, CAS-guarded like ApplyBalance.
// Used for suspend/unsuspend where the balance is untouched.
func (r *CreditRepository) SetStatus(ctx context.Context, tx *gorm.DB, id uint, expectedVersion int, status string) error {
	res := tx.WithContext(ctx).Model(&models.CreditRecord{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(map[string]interface{}{
			"status":  status,
			"version": expectedVersion + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrTransactionConflict
	}
	return nil
}

// ListByStudent returns a student's credit records, optionally scoped to one
// course (universal credits are included in course-scoped lookups). When
// usableOnly is set, depleted and non-active records are filtered out.
func (r *CreditRepository) ListByStudent(ctx context.Context, schoolID, studentID uint, courseID *uint, usableOnly bool) ([]models.CreditRecord, error) {
	var records []models.CreditRecord

	q := r.db.WithContext(ctx).
		Where("school_id = ? AND student_id = ?", schoolID, studentID)
	if courseID != nil {
		q = q.Where("course_id = ? OR is_universal = ?", *courseID, true)
	}
	if usableOnly {
		q = q.Where("status = ? AND remaining_credits > 0", models.CreditStatusActive)
	}

	err := q.Order("purchase_date DESC, id DESC").Find(&records).Error
	return records, err
}

// CreditFilter narrows school-wide credit listings
type CreditFilter struct {
	SchoolID  uint
	StudentID *uint
	CourseID  *uint
	Status    string
	StartDate *time.Time
	EndDate   *time.Time
}

// ListBySchool returns credit records matching filter with pagination.
// The Status filter matches the stored status field; callers that care
// about effective expiry must overlay EffectiveStatus themselves.
func (r *CreditRepository) ListBySchool(ctx context.Context, filter CreditFilter, offset, limit int) ([]models.CreditRecord, int64, error) {
	var records []models.CreditRecord
	var total int64

	q := r.db.WithContext(ctx).Model(&models.CreditRecord{}).
		Where("school_id = ?", filter.SchoolID)
	if filter.StudentID != nil {
		q = q.Where("student_id = ?", *filter.StudentID)
	}
	if filter.CourseID != nil {
		q = q.Where("course_id = ?", *filter.CourseID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.StartDate != nil {
		q = q.Where("purchase_date >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		q = q.Where("purchase_date <= ?", *filter.EndDate)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("purchase_date DESC, id DESC").Offset(offset).Limit(limit).Find(&records).Error
	return records, total, err
}

// CountEnrolledStudents returns the number of distinct students holding at
// least one usable credit for the course. Universal credits count toward
// every course. This is a derived view, recomputed on each call.
func (r *CreditRepository) CountEnrolledStudents(ctx context.Context, schoolID, courseID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.CreditRecord{}).
		Where("school_id = ? AND (course_id = ? OR is_universal = ?)", schoolID, courseID, true).
		Where("status = ? AND remaining_credits > 0", models.CreditStatusActive).
		Distinct("student_id").
		Count(&count).Error
	return count, err
}

// MarkExpired bulk-transitions past-expiry active/depleted records to
// expired. The version bump keeps concurrent CAS writers honest: any
// check-in racing the sweep on the same record will see a version miss
// and retry against the expired state.
func (r *CreditRepository) MarkExpired(ctx context.Context, now time.Time) (int64, error) {
	today := now.Truncate(24 * time.Hour)
	res := r.db.WithContext(ctx).Model(&models.CreditRecord{}).
		Where("has_expiry = ? AND expiry_date < ?", true, today).
		Where("status IN ?", []string{models.CreditStatusActive, models.CreditStatusDepleted}).
		Updates(map[string]interface{}{
			"status":  models.CreditStatusExpired,
			"version": gorm.Expr("version + 1"),
		})
	return res.RowsAffected, res.Error
}
