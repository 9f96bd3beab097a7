package services

import (
	"path/filepath"
	"testing"
	"time"

	"classledger/internal/adapters/persistence/models"
	"classledger/internal/adapters/persistence/repositories"
	"classledger/internal/core/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a throwaway file-backed sqlite database. File-backed
// rather than :memory: so concurrent transactions from multiple goroutines
// see the same database; busy_timeout makes writers queue instead of
// failing with SQLITE_BUSY.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db") + "?_pragma=busy_timeout(10000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

type testFixture struct {
	db      *gorm.DB
	school  models.School
	student models.Student
	course  models.Course
	pkg     models.CreditPackage
	actor   domain.Actor

	creditRepo     *repositories.CreditRepository
	studentRepo    *repositories.StudentRepository
	catalogRepo    *repositories.CatalogRepository
	attendanceRepo *repositories.AttendanceRepository
	adjustmentRepo *repositories.AdjustmentRepository
}

// newFixture seeds one school with a student, a course, and a course-scoped
// package of 8+2 credits valid for 3 months.
func newFixture(t *testing.T) *testFixture {
	t.Helper()
	db := newTestDB(t)

	f := &testFixture{
		db:             db,
		creditRepo:     repositories.NewCreditRepository(db),
		studentRepo:    repositories.NewStudentRepository(db),
		catalogRepo:    repositories.NewCatalogRepository(db),
		attendanceRepo: repositories.NewAttendanceRepository(db),
		adjustmentRepo: repositories.NewAdjustmentRepository(db),
		actor:          domain.Actor{UserID: 7, UserName: "Front Desk", Role: domain.RoleStaff},
	}

	f.school = models.School{Name: "Harbor Music School"}
	if err := db.Create(&f.school).Error; err != nil {
		t.Fatalf("seed school: %v", err)
	}
	f.student = models.Student{SchoolID: f.school.ID, StudentCode: "STU001", FirstName: "Mina", LastName: "Park"}
	if err := db.Create(&f.student).Error; err != nil {
		t.Fatalf("seed student: %v", err)
	}
	f.course = models.Course{SchoolID: f.school.ID, Name: "Piano Beginner"}
	if err := db.Create(&f.course).Error; err != nil {
		t.Fatalf("seed course: %v", err)
	}
	f.pkg = models.CreditPackage{
		SchoolID:      f.school.ID,
		CourseID:      &f.course.ID,
		Name:          "Piano 8",
		Credits:       8,
		BonusCredits:  2,
		Price:         400,
		ValidityType:  models.ValidityMonths,
		ValidityValue: 3,
	}
	if err := db.Create(&f.pkg).Error; err != nil {
		t.Fatalf("seed package: %v", err)
	}
	return f
}

func (f *testFixture) creditService() *CreditService {
	return NewCreditService(f.db, f.creditRepo, f.studentRepo, f.catalogRepo)
}

func (f *testFixture) attendanceService() *AttendanceService {
	return NewAttendanceService(f.db, f.creditRepo, f.attendanceRepo, f.studentRepo, f.catalogRepo)
}

func (f *testFixture) adjustmentService() *AdjustmentService {
	return NewAdjustmentService(f.db, f.creditRepo, f.adjustmentRepo)
}

// seedCredit inserts a credit record directly, bypassing the purchase flow,
// so tests can shape the balance and status freely.
func (f *testFixture) seedCredit(t *testing.T, total, used, remaining int, status string, expiry *time.Time) *models.CreditRecord {
	t.Helper()
	rec := &models.CreditRecord{
		SchoolID:         f.school.ID,
		StudentID:        f.student.ID,
		StudentName:      f.student.FullName(),
		StudentCode:      f.student.StudentCode,
		CourseID:         &f.course.ID,
		CourseName:       f.course.Name,
		PackageID:        f.pkg.ID,
		PackageName:      f.pkg.Name,
		TotalCredits:     total,
		UsedCredits:      used,
		RemainingCredits: remaining,
		OriginalPrice:    f.pkg.Price,
		FinalPrice:       f.pkg.Price,
		PricePerCredit:   f.pkg.Price / float64(total),
		PurchaseDate:     time.Now().Truncate(24 * time.Hour),
		ActivationDate:   time.Now().Truncate(24 * time.Hour),
		ExpiryDate:       expiry,
		HasExpiry:        expiry != nil,
		Status:           status,
		ReceiptNo:        "RCP2026080001",
		PaymentMethod:    "cash",
		CreatedBy:        f.actor.UserID,
		CreatedByName:    f.actor.UserName,
		CreatedByRole:    f.actor.Role,
	}
	if err := f.db.Create(rec).Error; err != nil {
		t.Fatalf("seed credit: %v", err)
	}
	return rec
}

func daysAgo(n int) *time.Time {
	d := time.Now().AddDate(0, 0, -n).Truncate(24 * time.Hour)
	return &d
}

func daysAhead(n int) *time.Time {
	d := time.Now().AddDate(0, 0, n).Truncate(24 * time.Hour)
	return &d
}
