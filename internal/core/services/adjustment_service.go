package services

import (
	"context"
	"errors"
	"log"
	"strings"

	"classledger/internal/adapters/persistence/models"
	"classledger/internal/adapters/persistence/repositories"
	"classledger/internal/core/domain"
	"classledger/internal/pkg/validate"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AdjustmentService handles manual balance corrections. Every correction
// writes the CreditRecord and appends one immutable audit row in the same
// transaction. A balance change without its audit row, or the reverse,
// can never land.
type AdjustmentService struct {
	db             *gorm.DB
	creditRepo     *repositories.CreditRepository
	adjustmentRepo *repositories.AdjustmentRepository
}

// NewAdjustmentService creates a new adjustment service
func NewAdjustmentService(
	db *gorm.DB,
	creditRepo *repositories.CreditRepository,
	adjustmentRepo *repositories.AdjustmentRepository,
) *AdjustmentService {
	return &AdjustmentService{
		db:             db,
		creditRepo:     creditRepo,
		adjustmentRepo: adjustmentRepo,
	}
}

// AdjustInput represents a manual correction request
type AdjustInput struct {
	Type   string `json:"type" validate:"required,oneof=add subtract set"`
	Amount int    `json:"amount" validate:"gte=0"`
	Reason string `json:"reason" validate:"required"`
}

// AdjustResult couples the corrected record with its audit entry
type AdjustResult struct {
	Credit     *models.CreditRecord     `json:"credit"`
	Adjustment *models.CreditAdjustment `json:"adjustment"`
}

// AdjustCredit applies a manual correction to a credit record's remaining
// balance. add increases it, subtract decreases it (floored at zero), set
// replaces it outright. UsedCredits is recomputed so the total invariant
// holds, and status follows the new balance.
func (s *AdjustmentService) AdjustCredit(ctx context.Context, schoolID uint, actor domain.Actor, creditID uint, input *AdjustInput) (*AdjustResult, error) {
	if err := validate.Struct(input); err != nil {
		return nil, domain.NewValidationError(err.Error())
	}
	if strings.TrimSpace(input.Reason) == "" {
		return nil, domain.NewValidationError("adjustment reason is required")
	}
	if (input.Type == models.AdjustmentTypeAdd || input.Type == models.AdjustmentTypeSubtract) && input.Amount <= 0 {
		return nil, domain.NewValidationError("amount must be positive for add and subtract")
	}

	var result *AdjustResult
	for attempt := 0; attempt <= maxConflictRetries; attempt++ {
		err := s.db.Transaction(func(tx *gorm.DB) error {
			credit, err := s.creditRepo.GetByIDTx(ctx, tx, creditID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return domain.ErrCreditNotFound
				}
				return err
			}
			if credit.SchoolID != schoolID {
				return domain.ErrCreditNotFound
			}

			before := credit.RemainingCredits
			after := applyAdjustment(input.Type, before, input.Amount)

			newUsed := credit.TotalCredits - after
			newStatus := models.CreditStatusActive
			if after == 0 {
				newStatus = models.CreditStatusDepleted
			}

			adjustment := &models.CreditAdjustment{
				ReferenceNo:    uuid.NewString(),
				SchoolID:       schoolID,
				StudentID:      credit.StudentID,
				CreditID:       credit.ID,
				AdjustmentType: input.Type,
				Amount:         input.Amount,
				CreditsBefore:  before,
				CreditsAfter:   after,
				Reason:         input.Reason,
				AdjustedBy:     actor.UserID,
				AdjustedByName: actor.UserName,
				AdjustedByRole: actor.Role,
			}
			if err := s.adjustmentRepo.Create(ctx, tx, adjustment); err != nil {
				return err
			}

			if err := s.creditRepo.ApplyBalance(ctx, tx, credit.ID, credit.Version, after, newUsed, newStatus); err != nil {
				return err
			}

			credit.RemainingCredits = after
			credit.UsedCredits = newUsed
			credit.Status = newStatus
			credit.Version++
			result = &AdjustResult{Credit: credit, Adjustment: adjustment}
			return nil
		})
		if errors.Is(err, domain.ErrTransactionConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}

		log.Printf("credit adjusted: credit=%d type=%s %d->%d by=%s", creditID, input.Type, result.Adjustment.CreditsBefore, result.Adjustment.CreditsAfter, actor.UserName)
		return result, nil
	}
	return nil, domain.ErrTransactionConflict
}

func applyAdjustment(adjustmentType string, remaining, amount int) int {
	switch adjustmentType {
	case models.AdjustmentTypeAdd:
		return remaining + amount
	case models.AdjustmentTypeSubtract:
		if remaining-amount < 0 {
			return 0
		}
		return remaining - amount
	default: // set
		if amount < 0 {
			return 0
		}
		return amount
	}
}

// GetCreditAdjustments returns the audit trail for one credit record
func (s *AdjustmentService) GetCreditAdjustments(ctx context.Context, schoolID, creditID uint) ([]models.CreditAdjustment, error) {
	credit, err := s.creditRepo.GetByID(ctx, creditID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCreditNotFound
		}
		return nil, err
	}
	if credit.SchoolID != schoolID {
		return nil, domain.ErrCreditNotFound
	}

	return s.adjustmentRepo.ListByCredit(ctx, creditID)
}

// GetStudentAdjustments returns a student's adjustments with pagination
func (s *AdjustmentService) GetStudentAdjustments(ctx context.Context, schoolID, studentID uint, offset, limit int) ([]models.CreditAdjustment, int64, error) {
	return s.adjustmentRepo.ListByStudent(ctx, schoolID, studentID, offset, limit)
}
