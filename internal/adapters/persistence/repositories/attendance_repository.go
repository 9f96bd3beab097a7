package repositories

import (
	"context"
	"time"

	"classledger/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// AttendanceRepository handles attendance database operations
type AttendanceRepository struct {
	db *gorm.DB
}

// NewAttendanceRepository creates a new attendance repository
func NewAttendanceRepository(db *gorm.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Create inserts a new attendance record within tx
func (r *AttendanceRepository) Create(ctx context.Context, tx *gorm.DB, record *models.AttendanceRecord) error {
	return tx.WithContext(ctx).Create(record).Error
}

// GetByID returns an attendance record by ID
func (r *AttendanceRepository) GetByID(ctx context.Context, id uint) (*models.AttendanceRecord, error) {
	var record models.AttendanceRecord
	if err := r.db.WithContext(ctx).First(&record, id).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// GetByIDTx returns an attendance record by ID using tx
func (r *AttendanceRepository) GetByIDTx(ctx context.Context, tx *gorm.DB, id uint) (*models.AttendanceRecord, error) {
	var record models.AttendanceRecord
	if err := tx.WithContext(ctx).First(&record, id).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// HardDelete removes an attendance record within tx. Cancellation is the
// only caller: the row is gone for good, not soft-deleted.
func (r *AttendanceRepository) HardDelete(ctx context.Context, tx *gorm.DB, id uint) error {
	res := tx.WithContext(ctx).Unscoped().Delete(&models.AttendanceRecord{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// AttendanceFilter narrows attendance history listings
type AttendanceFilter struct {
	SchoolID  uint
	StudentID *uint
	CourseID  *uint
	CreditID  *uint
	Status    string
	StartDate *time.Time
	EndDate   *time.Time
}

// List returns attendance records matching filter with pagination,
// newest session first
func (r *AttendanceRepository) List(ctx context.Context, filter AttendanceFilter, offset, limit int) ([]models.AttendanceRecord, int64, error) {
	var records []models.AttendanceRecord
	var total int64

	q := r.db.WithContext(ctx).Model(&models.AttendanceRecord{}).
		Where("school_id = ?", filter.SchoolID)
	if filter.StudentID != nil {
		q = q.Where("student_id = ?", *filter.StudentID)
	}
	if filter.CourseID != nil {
		q = q.Where("course_id = ?", *filter.CourseID)
	}
	if filter.CreditID != nil {
		q = q.Where("credit_id = ?", *filter.CreditID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.StartDate != nil {
		q = q.Where("check_in_date >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		q = q.Where("check_in_date <= ?", *filter.EndDate)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("check_in_date DESC, check_in_time DESC").Offset(offset).Limit(limit).Find(&records).Error
	return records, total, err
}

// CountForCreditOnDate returns how many check-ins already exist against a
// credit for a calendar day. The engine does not reject duplicates itself;
// this exists so callers can pre-query before checking in.
func (r *AttendanceRepository) CountForCreditOnDate(ctx context.Context, creditID uint, date time.Time) (int64, error) {
	day := date.Truncate(24 * time.Hour)
	var count int64
	err := r.db.WithContext(ctx).Model(&models.AttendanceRecord{}).
		Where("credit_id = ? AND check_in_date = ?", creditID, day).
		Count(&count).Error
	return count, err
}
