package repositories

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"classledger/internal/adapters/persistence/models"
	"classledger/internal/core/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

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

func seedCredit(t *testing.T, db *gorm.DB, remaining int, status string, expiry *time.Time) *models.CreditRecord {
	t.Helper()
	rec := &models.CreditRecord{
		SchoolID: 1, StudentID: 1,
		StudentName: "Mina Park", StudentCode: "STU001",
		PackageID: 1, PackageName: "Piano 8", IsUniversal: true,
		TotalCredits: 10, UsedCredits: 10 - remaining, RemainingCredits: remaining,
		OriginalPrice: 400, FinalPrice: 400, PricePerCredit: 40,
		PurchaseDate: time.Now(), ActivationDate: time.Now(),
		ExpiryDate: expiry, HasExpiry: expiry != nil,
		Status: status, ReceiptNo: "RCP2026080001", PaymentMethod: "cash",
		CreatedBy: 1, CreatedByName: "x", CreatedByRole: "ADMIN",
	}
	if err := db.Create(rec).Error; err != nil {
		t.Fatalf("seed credit: %v", err)
	}
	return rec
}

func TestApplyBalanceVersionGuard(t *testing.T) {
	db := newTestDB(t)
	repo := NewCreditRepository(db)
	ctx := context.Background()

	rec := seedCredit(t, db, 5, models.CreditStatusActive, nil)

	// First write at the read version succeeds and bumps the version.
	if err := repo.ApplyBalance(ctx, db, rec.ID, rec.Version, 4, 6, models.CreditStatusActive); err != nil {
		t.Fatalf("ApplyBalance: %v", err)
	}

	// A second write against the stale version must miss.
	err := repo.ApplyBalance(ctx, db, rec.ID, rec.Version, 3, 7, models.CreditStatusActive)
	if !errors.Is(err, domain.ErrTransactionConflict) {
		t.Fatalf("stale write err = %v, want ErrTransactionConflict", err)
	}

	var after models.CreditRecord
	if err := db.First(&after, rec.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if after.RemainingCredits != 4 || after.UsedCredits != 6 {
		t.Errorf("balance = %d/%d, want the first write's 6 used / 4 remaining", after.UsedCredits, after.RemainingCredits)
	}
	if after.Version != rec.Version+1 {
		t.Errorf("Version = %d, want %d", after.Version, rec.Version+1)
	}
}

func TestSetStatusVersionGuard(t *testing.T) {
	db := newTestDB(t)
	repo := NewCreditRepository(db)
	ctx := context.Background()

	rec := seedCredit(t, db, 5, models.CreditStatusActive, nil)

	if err := repo.SetStatus(ctx, db, rec.ID, rec.Version, models.CreditStatusSuspended); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if err := repo.SetStatus(ctx, db, rec.ID, rec.Version, models.CreditStatusActive); !errors.Is(err, domain.ErrTransactionConflict) {
		t.Fatalf("stale status write err = %v, want ErrTransactionConflict", err)
	}
}

func TestMarkExpired(t *testing.T) {
	db := newTestDB(t)
	repo := NewCreditRepository(db)
	ctx := context.Background()

	yesterday := time.Now().AddDate(0, 0, -1).Truncate(24 * time.Hour)
	nextMonth := time.Now().AddDate(0, 1, 0).Truncate(24 * time.Hour)

	lapsed := seedCredit(t, db, 5, models.CreditStatusActive, &yesterday)
	lapsedDepleted := seedCredit(t, db, 0, models.CreditStatusDepleted, &yesterday)
	current := seedCredit(t, db, 5, models.CreditStatusActive, &nextMonth)
	noExpiry := seedCredit(t, db, 5, models.CreditStatusActive, nil)
	suspended := seedCredit(t, db, 5, models.CreditStatusSuspended, &yesterday)

	n, err := repo.MarkExpired(ctx, time.Now())
	if err != nil {
		t.Fatalf("MarkExpired: %v", err)
	}
	if n != 2 {
		t.Errorf("marked %d records, want 2", n)
	}

	wantStatus := map[uint]string{
		lapsed.ID:         models.CreditStatusExpired,
		lapsedDepleted.ID: models.CreditStatusExpired,
		current.ID:        models.CreditStatusActive,
		noExpiry.ID:       models.CreditStatusActive,
		suspended.ID:      models.CreditStatusSuspended,
	}
	for id, want := range wantStatus {
		var rec models.CreditRecord
		if err := db.First(&rec, id).Error; err != nil {
			t.Fatalf("reload %d: %v", id, err)
		}
		if rec.Status != want {
			t.Errorf("record %d status = %q, want %q", id, rec.Status, want)
		}
	}

	// The sweep bumps versions, so any in-flight CAS writer loses its race.
	var rec models.CreditRecord
	if err := db.First(&rec, lapsed.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if rec.Version != lapsed.Version+1 {
		t.Errorf("Version = %d, want %d", rec.Version, lapsed.Version+1)
	}
}

func TestListByStudentCourseScoping(t *testing.T) {
	db := newTestDB(t)
	repo := NewCreditRepository(db)
	ctx := context.Background()

	courseA, courseB := uint(10), uint(20)

	scoped := &models.CreditRecord{
		SchoolID: 1, StudentID: 1, StudentName: "x", StudentCode: "x",
		CourseID: &courseA, CourseName: "Piano", PackageID: 1, PackageName: "p",
		TotalCredits: 10, RemainingCredits: 10,
		PurchaseDate: time.Now(), ActivationDate: time.Now(),
		Status: models.CreditStatusActive, ReceiptNo: "r", PaymentMethod: "cash",
		CreatedBy: 1, CreatedByName: "x", CreatedByRole: "ADMIN",
	}
	otherCourse := &models.CreditRecord{
		SchoolID: 1, StudentID: 1, StudentName: "x", StudentCode: "x",
		CourseID: &courseB, CourseName: "Guitar", PackageID: 1, PackageName: "p",
		TotalCredits: 10, RemainingCredits: 10,
		PurchaseDate: time.Now(), ActivationDate: time.Now(),
		Status: models.CreditStatusActive, ReceiptNo: "r", PaymentMethod: "cash",
		CreatedBy: 1, CreatedByName: "x", CreatedByRole: "ADMIN",
	}
	universal := &models.CreditRecord{
		SchoolID: 1, StudentID: 1, StudentName: "x", StudentCode: "x",
		IsUniversal: true, PackageID: 1, PackageName: "p",
		TotalCredits: 20, RemainingCredits: 20,
		PurchaseDate: time.Now(), ActivationDate: time.Now(),
		Status: models.CreditStatusActive, ReceiptNo: "r", PaymentMethod: "cash",
		CreatedBy: 1, CreatedByName: "x", CreatedByRole: "ADMIN",
	}
	for _, rec := range []*models.CreditRecord{scoped, otherCourse, universal} {
		if err := db.Create(rec).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	records, err := repo.ListByStudent(ctx, 1, 1, &courseA, false)
	if err != nil {
		t.Fatalf("ListByStudent: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2 (course-scoped + universal)", len(records))
	}
	for _, rec := range records {
		if rec.ID == otherCourse.ID {
			t.Error("record for another course leaked into a scoped lookup")
		}
	}
}
