package models

import (
	"time"
)

// ============================================================
// Credit Ledger Tables
// ============================================================

// CreditRecord statuses
const (
	CreditStatusActive    = "active"
	CreditStatusExpired   = "expired"
	CreditStatusDepleted  = "depleted"
	CreditStatusSuspended = "suspended"
)

// CreditRecord is one purchased package instance and its remaining balance.
// Rows are never deleted, only status-transitioned. Balance fields are
// mutated exclusively through conditional updates that check Version, so a
// stale read can never overwrite a concurrent debit.
//
// StudentName/StudentCode/CourseName/PackageName are frozen at purchase
// time. Renaming a student or course later does NOT update old ledger rows;
// that staleness is a deliberate trade-off to keep reads join-free.
type CreditRecord struct {
	ID       uint `gorm:"primaryKey" json:"id"`
	SchoolID uint `gorm:"index;not null" json:"school_id"`

	StudentID   uint   `gorm:"index;not null" json:"student_id"`
	StudentName string `gorm:"size:100;not null" json:"student_name"`
	StudentCode string `gorm:"size:20;not null" json:"student_code"`

	// CourseID is nil for universal credits, spendable on any course
	CourseID    *uint  `gorm:"index" json:"course_id"`
	CourseName  string `gorm:"size:100;not null" json:"course_name"`
	IsUniversal bool   `gorm:"not null;default:false" json:"is_universal"`

	PackageID   uint   `gorm:"index;not null" json:"package_id"`
	PackageName string `gorm:"size:100;not null" json:"package_name"`

	// Invariant: UsedCredits + RemainingCredits == TotalCredits, Remaining >= 0
	TotalCredits     int `gorm:"not null" json:"total_credits"`
	BonusCredits     int `gorm:"not null;default:0" json:"bonus_credits"`
	UsedCredits      int `gorm:"not null;default:0" json:"used_credits"`
	RemainingCredits int `gorm:"not null" json:"remaining_credits"`

	OriginalPrice  float64 `gorm:"not null" json:"original_price"`
	DiscountAmount float64 `gorm:"not null;default:0" json:"discount_amount"`
	FinalPrice     float64 `gorm:"not null" json:"final_price"`
	PricePerCredit float64 `gorm:"not null" json:"price_per_credit"`

	PurchaseDate   time.Time  `gorm:"not null" json:"purchase_date"`
	ActivationDate time.Time  `gorm:"not null" json:"activation_date"`
	ExpiryDate     *time.Time `json:"expiry_date"`
	HasExpiry      bool       `gorm:"not null;default:false" json:"has_expiry"`

	Status string `gorm:"size:20;index;not null;default:'active'" json:"status"`

	ReceiptNo        string `gorm:"size:20;not null" json:"receipt_no"`
	PaymentMethod    string `gorm:"size:30;not null" json:"payment_method"`
	PaymentNote      string `gorm:"size:255" json:"payment_note"`
	PaymentReference string `gorm:"size:100" json:"payment_reference"`

	CreatedBy     uint   `gorm:"not null" json:"created_by"`
	CreatedByName string `gorm:"size:100;not null" json:"created_by_name"`
	CreatedByRole string `gorm:"size:20;not null" json:"created_by_role"`

	// Version is the optimistic-lock counter; bumped on every balance mutation
	Version int `gorm:"not null;default:0" json:"version"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (CreditRecord) TableName() string {
	return "student_credits"
}

// IsExpiredAt reports whether the record's validity window has passed.
// Records without expiry never expire.
func (cr *CreditRecord) IsExpiredAt(now time.Time) bool {
	if !cr.HasExpiry || cr.ExpiryDate == nil {
		return false
	}
	today := now.Truncate(24 * time.Hour)
	return cr.ExpiryDate.Before(today)
}

// EffectiveStatus returns the status as of now, overlaying expiry on top of
// the stored field. The stored Status is only reconciled by the nightly
// sweep, so reads must go through this instead of trusting Status directly.
func (cr *CreditRecord) EffectiveStatus(now time.Time) string {
	if cr.Status == CreditStatusSuspended {
		return CreditStatusSuspended
	}
	if cr.IsExpiredAt(now) {
		return CreditStatusExpired
	}
	return cr.Status
}

// Usable reports whether the record can fund a check-in right now
func (cr *CreditRecord) Usable(now time.Time) bool {
	return cr.EffectiveStatus(now) == CreditStatusActive && cr.RemainingCredits > 0
}

// ============================================================
// Attendance Table
// ============================================================

// Attendance statuses
const (
	AttendanceStatusPresent = "present"
	AttendanceStatusAbsent  = "absent"
	AttendanceStatusLate    = "late"
	AttendanceStatusExcused = "excused"
	AttendanceStatusHoliday = "holiday"
)

// Check-in methods
const (
	CheckInMethodManual = "manual"
	CheckInMethodQR     = "qr"
	CheckInMethodKiosk  = "kiosk"
)

// AttendanceRecord is one check-in event. CreditsBefore/CreditsAfter are a
// point-in-time snapshot of the debited CreditRecord, kept for audit even
// after the CreditRecord's live balance moves on.
//
// Rows are created only by the check-in transaction and hard-deleted only
// by the cancellation transaction. A cancelled check-in vanishes from
// history by design; the refund on the CreditRecord is its only trace.
type AttendanceRecord struct {
	ID       uint `gorm:"primaryKey" json:"id"`
	SchoolID uint `gorm:"index;not null" json:"school_id"`

	StudentID   uint   `gorm:"index;not null" json:"student_id"`
	StudentName string `gorm:"size:100;not null" json:"student_name"`
	StudentCode string `gorm:"size:20;not null" json:"student_code"`

	CourseID   uint   `gorm:"index;not null" json:"course_id"`
	CourseName string `gorm:"size:100;not null" json:"course_name"`

	CreditID uint `gorm:"index;not null" json:"credit_id"`

	// CheckInDate is the calendar day the session covers (may be backdated);
	// CheckInTime is the wall-clock instant the check-in was recorded.
	// They are decoupled on purpose.
	CheckInDate   time.Time `gorm:"index;not null" json:"check_in_date"`
	CheckInTime   time.Time `gorm:"not null" json:"check_in_time"`
	CheckInMethod string    `gorm:"size:20;not null" json:"check_in_method"`

	Status      string `gorm:"size:20;not null;default:'present'" json:"status"`
	IsLate      bool   `gorm:"not null;default:false" json:"is_late"`
	LateMinutes int    `gorm:"not null;default:0" json:"late_minutes"`

	// Invariant: CreditsAfter == CreditsBefore - CreditsDeducted
	CreditsDeducted int `gorm:"not null;default:1" json:"credits_deducted"`
	CreditsBefore   int `gorm:"not null" json:"credits_before"`
	CreditsAfter    int `gorm:"not null" json:"credits_after"`

	CheckedBy     uint   `gorm:"not null" json:"checked_by"`
	CheckedByName string `gorm:"size:100;not null" json:"checked_by_name"`
	CheckedByRole string `gorm:"size:20;not null" json:"checked_by_role"`
	TeacherNotes  string `gorm:"size:500" json:"teacher_notes"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (AttendanceRecord) TableName() string {
	return "attendance"
}

// ============================================================
// Adjustment Audit Table
// ============================================================

// Adjustment types
const (
	AdjustmentTypeAdd      = "add"
	AdjustmentTypeSubtract = "subtract"
	AdjustmentTypeSet      = "set"
)

// CreditAdjustment is one manual balance correction. Append-only: rows are
// never mutated or deleted.
type CreditAdjustment struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	ReferenceNo string `gorm:"size:40;not null;index" json:"reference_no"`
	SchoolID    uint   `gorm:"index;not null" json:"school_id"`
	StudentID   uint   `gorm:"index;not null" json:"student_id"`
	CreditID    uint   `gorm:"index;not null" json:"credit_id"`

	AdjustmentType string `gorm:"size:10;not null" json:"adjustment_type"`
	Amount         int    `gorm:"not null" json:"amount"`
	CreditsBefore  int    `gorm:"not null" json:"credits_before"`
	CreditsAfter   int    `gorm:"not null" json:"credits_after"`
	Reason         string `gorm:"size:500;not null" json:"reason"`

	AdjustedBy     uint   `gorm:"not null" json:"adjusted_by"`
	AdjustedByName string `gorm:"size:100;not null" json:"adjusted_by_name"`
	AdjustedByRole string `gorm:"size:20;not null" json:"adjusted_by_role"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (CreditAdjustment) TableName() string {
	return "credit_adjustments"
}
