package models

import (
	"time"

	"gorm.io/gorm"
)

// ============================================================
// Auth & Staff Tables
// ============================================================

// User represents a staff account (admin, front desk, teacher)
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	SchoolID  uint           `gorm:"index;not null" json:"school_id"`
	Username  string         `gorm:"uniqueIndex;size:50;not null" json:"username"`
	Email     string         `gorm:"uniqueIndex;size:100;not null" json:"email"`
	Password  string         `gorm:"size:255;not null" json:"-"`
	FullName  string         `gorm:"size:100;not null" json:"full_name"`
	Role      string         `gorm:"size:20;default:'STAFF'" json:"role"`
	IsActive  bool           `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "users"
}

// UserResponse DTO
type UserResponse struct {
	ID        uint      `json:"id"`
	SchoolID  uint      `json:"school_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

func (u *User) ToResponse() *UserResponse {
	return &UserResponse{
		ID:        u.ID,
		SchoolID:  u.SchoolID,
		Username:  u.Username,
		Email:     u.Email,
		FullName:  u.FullName,
		Role:      u.Role,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}

// RefreshToken represents refresh_tokens table
type RefreshToken struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"index;not null" json:"user_id"`
	TokenHash string     `gorm:"size:255;not null;index" json:"-"`
	ExpiresAt time.Time  `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	RevokedAt *time.Time `gorm:"index" json:"revoked_at"`
	User      User       `gorm:"foreignKey:UserID" json:"-"`
}

func (RefreshToken) TableName() string {
	return "refresh_tokens"
}

func (rt *RefreshToken) IsRevoked() bool {
	return rt.RevokedAt != nil
}

func (rt *RefreshToken) IsExpired() bool {
	return time.Now().After(rt.ExpiresAt)
}

// ============================================================
// School Directory Tables
// ============================================================

// School represents a school tenant
type School struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Name      string         `gorm:"size:100;not null" json:"name"`
	IsActive  bool           `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (School) TableName() string {
	return "schools"
}

// Student represents an enrolled student
type Student struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	SchoolID    uint           `gorm:"index;not null" json:"school_id"`
	StudentCode string         `gorm:"size:20;not null;index" json:"student_code"`
	FirstName   string         `gorm:"size:50;not null" json:"first_name"`
	LastName    string         `gorm:"size:50;not null" json:"last_name"`
	Phone       string         `gorm:"size:20" json:"phone"`
	Email       string         `gorm:"size:100" json:"email"`
	IsActive    bool           `gorm:"default:true" json:"is_active"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Student) TableName() string {
	return "students"
}

// FullName returns the display name captured on ledger records
func (s *Student) FullName() string {
	if s.LastName == "" {
		return s.FirstName
	}
	return s.FirstName + " " + s.LastName
}

// Course represents a class offering
type Course struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	SchoolID    uint           `gorm:"index;not null" json:"school_id"`
	Name        string         `gorm:"size:100;not null" json:"name"`
	Description string         `gorm:"size:255" json:"description"`
	IsActive    bool           `gorm:"default:true" json:"is_active"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Course) TableName() string {
	return "courses"
}

// Validity policies for credit packages
const (
	ValidityMonths    = "months"
	ValidityDays      = "days"
	ValidityUnlimited = "unlimited"
)

// CreditPackage represents a purchasable bundle of class credits.
// CourseID nil means the package is universal: its credits can be spent
// on any course.
type CreditPackage struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	SchoolID      uint           `gorm:"index;not null" json:"school_id"`
	CourseID      *uint          `gorm:"index" json:"course_id"`
	Name          string         `gorm:"size:100;not null" json:"name"`
	Credits       int            `gorm:"not null" json:"credits"`
	BonusCredits  int            `gorm:"not null;default:0" json:"bonus_credits"`
	Price         float64        `gorm:"not null" json:"price"`
	ValidityType  string         `gorm:"size:20;not null;default:'unlimited'" json:"validity_type"`
	ValidityValue int            `gorm:"not null;default:0" json:"validity_value"`
	IsActive      bool           `gorm:"default:true" json:"is_active"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

func (CreditPackage) TableName() string {
	return "credit_packages"
}

// IsUniversal reports whether the package's credits are course-agnostic
func (p *CreditPackage) IsUniversal() bool {
	return p.CourseID == nil
}
