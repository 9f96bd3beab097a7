package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"classledger/internal/adapters/persistence/models"
	"classledger/internal/core/domain"
)

func TestCheckInDebitsOneCredit(t *testing.T) {
	f := newFixture(t)
	svc := f.attendanceService()

	credit := f.seedCredit(t, 10, 7, 3, models.CreditStatusActive, nil)

	rec, err := svc.CheckIn(context.Background(), f.school.ID, f.actor, &CheckInInput{
		StudentID: f.student.ID,
		CourseID:  f.course.ID,
		CreditID:  credit.ID,
	})
	if err != nil {
		t.Fatalf("CheckIn: %v", err)
	}

	if rec.CreditsDeducted != 1 || rec.CreditsBefore != 3 || rec.CreditsAfter != 2 {
		t.Errorf("snapshot = deducted %d, %d -> %d, want 1, 3 -> 2",
			rec.CreditsDeducted, rec.CreditsBefore, rec.CreditsAfter)
	}
	if rec.CheckInMethod != models.CheckInMethodManual {
		t.Errorf("CheckInMethod = %q, want manual default", rec.CheckInMethod)
	}
	if rec.Status != models.AttendanceStatusPresent {
		t.Errorf("Status = %q, want present default", rec.Status)
	}
	if rec.CheckedByName != f.actor.UserName {
		t.Errorf("CheckedByName = %q, want %q", rec.CheckedByName, f.actor.UserName)
	}

	var after models.CreditRecord
	if err := f.db.First(&after, credit.ID).Error; err != nil {
		t.Fatalf("reload credit: %v", err)
	}
	if after.RemainingCredits != 2 || after.UsedCredits != 8 {
		t.Errorf("credit = %d used / %d remaining, want 8/2", after.UsedCredits, after.RemainingCredits)
	}
	if after.UsedCredits+after.RemainingCredits != after.TotalCredits {
		t.Errorf("invariant broken: %d + %d != %d", after.UsedCredits, after.RemainingCredits, after.TotalCredits)
	}
	if after.Version != credit.Version+1 {
		t.Errorf("Version = %d, want %d", after.Version, credit.Version+1)
	}
}

func TestCheckInLastCreditDepletes(t *testing.T) {
	f := newFixture(t)
	svc := f.attendanceService()

	credit := f.seedCredit(t, 10, 9, 1, models.CreditStatusActive, nil)

	rec, err := svc.CheckIn(context.Background(), f.school.ID, f.actor, &CheckInInput{
		StudentID: f.student.ID,
		CourseID:  f.course.ID,
		CreditID:  credit.ID,
	})
	if err != nil {
		t.Fatalf("CheckIn: %v", err)
	}
	if rec.CreditsAfter != 0 {
		t.Errorf("CreditsAfter = %d, want 0", rec.CreditsAfter)
	}

	var after models.CreditRecord
	if err := f.db.First(&after, credit.ID).Error; err != nil {
		t.Fatalf("reload credit: %v", err)
	}
	if after.Status != models.CreditStatusDepleted {
		t.Errorf("Status = %q, want depleted", after.Status)
	}
}

func TestCheckInPreconditions(t *testing.T) {
	f := newFixture(t)
	svc := f.attendanceService()

	tests := []struct {
		name    string
		seed    func(t *testing.T) *models.CreditRecord
		wantErr error
	}{
		{
			// Zero balance always reports insufficient, even when the
			// stored status is still active.
			name: "zero balance while still marked active",
			seed: func(t *testing.T) *models.CreditRecord {
				return f.seedCredit(t, 10, 10, 0, models.CreditStatusActive, nil)
			},
			wantErr: domain.ErrInsufficientCredits,
		},
		{
			name: "zero balance on a depleted record",
			seed: func(t *testing.T) *models.CreditRecord {
				return f.seedCredit(t, 5, 5, 0, models.CreditStatusDepleted, nil)
			},
			wantErr: domain.ErrInsufficientCredits,
		},
		{
			name: "expiry passed but sweep not yet run",
			seed: func(t *testing.T) *models.CreditRecord {
				return f.seedCredit(t, 10, 2, 8, models.CreditStatusActive, daysAgo(1))
			},
			wantErr: domain.ErrCreditExpired,
		},
		{
			name: "suspended",
			seed: func(t *testing.T) *models.CreditRecord {
				return f.seedCredit(t, 10, 2, 8, models.CreditStatusSuspended, nil)
			},
			wantErr: domain.ErrCreditNotActive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			credit := tt.seed(t)
			_, err := svc.CheckIn(context.Background(), f.school.ID, f.actor, &CheckInInput{
				StudentID: f.student.ID,
				CourseID:  f.course.ID,
				CreditID:  credit.ID,
			})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCheckInWrongCourse(t *testing.T) {
	f := newFixture(t)
	svc := f.attendanceService()

	other := models.Course{SchoolID: f.school.ID, Name: "Guitar Beginner"}
	if err := f.db.Create(&other).Error; err != nil {
		t.Fatalf("seed course: %v", err)
	}
	credit := f.seedCredit(t, 10, 0, 10, models.CreditStatusActive, nil)

	_, err := svc.CheckIn(context.Background(), f.school.ID, f.actor, &CheckInInput{
		StudentID: f.student.ID,
		CourseID:  other.ID,
		CreditID:  credit.ID,
	})
	if !domain.IsValidationError(err) {
		t.Fatalf("err = %v, want validation error for course mismatch", err)
	}
}

func TestCheckInUniversalCreditAnyCourse(t *testing.T) {
	f := newFixture(t)
	svc := f.attendanceService()

	other := models.Course{SchoolID: f.school.ID, Name: "Guitar Beginner"}
	if err := f.db.Create(&other).Error; err != nil {
		t.Fatalf("seed course: %v", err)
	}
	credit := &models.CreditRecord{
		SchoolID: f.school.ID, StudentID: f.student.ID,
		StudentName: f.student.FullName(), StudentCode: f.student.StudentCode,
		IsUniversal: true, PackageID: f.pkg.ID, PackageName: "Universal 20",
		TotalCredits: 20, RemainingCredits: 20,
		PurchaseDate: time.Now(), ActivationDate: time.Now(),
		Status: models.CreditStatusActive, ReceiptNo: "RCP2026080003",
		PaymentMethod: "card", CreatedBy: 1, CreatedByName: "x", CreatedByRole: "ADMIN",
	}
	if err := f.db.Create(credit).Error; err != nil {
		t.Fatalf("seed universal credit: %v", err)
	}

	rec, err := svc.CheckIn(context.Background(), f.school.ID, f.actor, &CheckInInput{
		StudentID: f.student.ID,
		CourseID:  other.ID,
		CreditID:  credit.ID,
	})
	if err != nil {
		t.Fatalf("CheckIn on universal credit: %v", err)
	}
	if rec.CourseName != "Guitar Beginner" {
		t.Errorf("CourseName = %q, want the checked-in course", rec.CourseName)
	}
}

func TestResolveEffectiveDate(t *testing.T) {
	now := time.Date(2026, 8, 28, 14, 30, 0, 0, time.UTC)

	tests := []struct {
		name    string
		raw     string
		want    time.Time
		wantErr bool
	}{
		{"empty defaults to today", "", time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC), false},
		{"backdated", "2026-08-25", time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC), false},
		{"today explicit", "2026-08-28", time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC), false},
		{"future rejected", "2026-08-29", time.Time{}, true},
		{"garbage rejected", "28/08/2026", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveEffectiveDate(tt.raw, now)
			if tt.wantErr {
				if !domain.IsValidationError(err) {
					t.Fatalf("err = %v, want validation error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("resolveEffectiveDate: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("date = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCancelRestoresBalanceAndDeletesRecord(t *testing.T) {
	f := newFixture(t)
	svc := f.attendanceService()

	credit := f.seedCredit(t, 10, 7, 3, models.CreditStatusActive, nil)

	rec, err := svc.CheckIn(context.Background(), f.school.ID, f.actor, &CheckInInput{
		StudentID: f.student.ID,
		CourseID:  f.course.ID,
		CreditID:  credit.ID,
	})
	if err != nil {
		t.Fatalf("CheckIn: %v", err)
	}

	restored, err := svc.CancelAttendance(context.Background(), f.school.ID, rec.ID, "booked the wrong day")
	if err != nil {
		t.Fatalf("CancelAttendance: %v", err)
	}

	if restored.RemainingCredits != 3 || restored.UsedCredits != 7 {
		t.Errorf("restored = %d used / %d remaining, want the pre-check-in 7/3",
			restored.UsedCredits, restored.RemainingCredits)
	}
	if restored.Status != models.CreditStatusActive {
		t.Errorf("Status = %q, want active", restored.Status)
	}

	var count int64
	if err := f.db.Model(&models.AttendanceRecord{}).Where("id = ?", rec.ID).Count(&count).Error; err != nil {
		t.Fatalf("count attendance: %v", err)
	}
	if count != 0 {
		t.Error("attendance row still present after cancellation, want hard delete")
	}
}

func TestCancelDepletedRecordReactivates(t *testing.T) {
	f := newFixture(t)
	svc := f.attendanceService()

	credit := f.seedCredit(t, 10, 9, 1, models.CreditStatusActive, nil)

	rec, err := svc.CheckIn(context.Background(), f.school.ID, f.actor, &CheckInInput{
		StudentID: f.student.ID,
		CourseID:  f.course.ID,
		CreditID:  credit.ID,
	})
	if err != nil {
		t.Fatalf("CheckIn: %v", err)
	}

	restored, err := svc.CancelAttendance(context.Background(), f.school.ID, rec.ID, "student no-show was ours")
	if err != nil {
		t.Fatalf("CancelAttendance: %v", err)
	}
	if restored.Status != models.CreditStatusActive {
		t.Errorf("Status = %q, want active after refund lifts depletion", restored.Status)
	}
	if restored.RemainingCredits != 1 {
		t.Errorf("RemainingCredits = %d, want 1", restored.RemainingCredits)
	}
}

func TestCancelRequiresReason(t *testing.T) {
	f := newFixture(t)
	svc := f.attendanceService()

	if _, err := svc.CancelAttendance(context.Background(), f.school.ID, 1, "  "); !domain.IsValidationError(err) {
		t.Fatalf("err = %v, want validation error for blank reason", err)
	}
}

func TestCancelUnknownAttendance(t *testing.T) {
	f := newFixture(t)
	svc := f.attendanceService()

	if _, err := svc.CancelAttendance(context.Background(), f.school.ID, 424242, "oops"); !errors.Is(err, domain.ErrAttendanceNotFound) {
		t.Fatalf("err = %v, want ErrAttendanceNotFound", err)
	}
}

// Two concurrent check-ins against a single remaining credit must resolve
// to exactly one winner; the loser sees insufficient credits after its
// retry re-reads the depleted balance.
func TestConcurrentCheckInSingleCredit(t *testing.T) {
	f := newFixture(t)
	svc := f.attendanceService()

	credit := f.seedCredit(t, 10, 9, 1, models.CreditStatusActive, nil)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.CheckIn(context.Background(), f.school.ID, f.actor, &CheckInInput{
				StudentID: f.student.ID,
				CourseID:  f.course.ID,
				CreditID:  credit.ID,
			})
		}(i)
	}
	wg.Wait()

	var wins, insufficient int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, domain.ErrInsufficientCredits):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 || insufficient != 1 {
		t.Fatalf("got %d wins and %d insufficient, want exactly 1 and 1", wins, insufficient)
	}

	var after models.CreditRecord
	if err := f.db.First(&after, credit.ID).Error; err != nil {
		t.Fatalf("reload credit: %v", err)
	}
	if after.RemainingCredits != 0 || after.UsedCredits != 10 {
		t.Errorf("credit = %d used / %d remaining, want 10/0", after.UsedCredits, after.RemainingCredits)
	}
	if after.Status != models.CreditStatusDepleted {
		t.Errorf("Status = %q, want depleted", after.Status)
	}

	var count int64
	if err := f.db.Model(&models.AttendanceRecord{}).Where("credit_id = ?", credit.ID).Count(&count).Error; err != nil {
		t.Fatalf("count attendance: %v", err)
	}
	if count != 1 {
		t.Errorf("got %d attendance rows, want 1", count)
	}
}

func TestCountForCreditOnDate(t *testing.T) {
	f := newFixture(t)
	svc := f.attendanceService()

	credit := f.seedCredit(t, 10, 0, 10, models.CreditStatusActive, nil)

	for i := 0; i < 2; i++ {
		if _, err := svc.CheckIn(context.Background(), f.school.ID, f.actor, &CheckInInput{
			StudentID: f.student.ID,
			CourseID:  f.course.ID,
			CreditID:  credit.ID,
		}); err != nil {
			t.Fatalf("CheckIn %d: %v", i, err)
		}
	}

	// Duplicate same-day check-ins are recorded, not rejected.
	n, err := svc.CountForCreditOnDate(context.Background(), credit.ID, time.Now())
	if err != nil {
		t.Fatalf("CountForCreditOnDate: %v", err)
	}
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}
}
