package repositories

import (
	"context"

	"classledger/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// AdjustmentRepository handles the append-only adjustment audit log
type AdjustmentRepository struct {
	db *gorm.DB
}

// NewAdjustmentRepository creates a new adjustment repository
func NewAdjustmentRepository(db *gorm.DB) *AdjustmentRepository {
	return &AdjustmentRepository{db: db}
}

// Create appends an adjustment audit row within tx. There is no Update or
// Delete on this table.
func (r *AdjustmentRepository) Create(ctx context.Context, tx *gorm.DB, adj *models.CreditAdjustment) error {
	return tx.WithContext(ctx).Create(adj).Error
}

// ListByCredit returns the full adjustment trail for one credit record,
// oldest first
func (r *AdjustmentRepository) ListByCredit(ctx context.Context, creditID uint) ([]models.CreditAdjustment, error) {
	var adjustments []models.CreditAdjustment
	err := r.db.WithContext(ctx).
		Where("credit_id = ?", creditID).
		Order("created_at ASC, id ASC").
		Find(&adjustments).Error
	return adjustments, err
}

// ListByStudent returns all adjustments for a student with pagination
func (r *AdjustmentRepository) ListByStudent(ctx context.Context, schoolID, studentID uint, offset, limit int) ([]models.CreditAdjustment, int64, error) {
	var adjustments []models.CreditAdjustment
	var total int64

	q := r.db.WithContext(ctx).Model(&models.CreditAdjustment{}).
		Where("school_id = ? AND student_id = ?", schoolID, studentID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("created_at DESC, id DESC").Offset(offset).Limit(limit).Find(&adjustments).Error
	return adjustments, total, err
}
