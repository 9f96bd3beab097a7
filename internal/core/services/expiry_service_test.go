package services

import (
	"context"
	"testing"

	"classledger/internal/adapters/persistence/models"
)

func TestExpirySweepRunOnce(t *testing.T) {
	f := newFixture(t)
	svc := NewExpiryService(f.creditRepo)

	lapsed := f.seedCredit(t, 10, 2, 8, models.CreditStatusActive, daysAgo(1))
	current := f.seedCredit(t, 10, 2, 8, models.CreditStatusActive, daysAhead(30))
	forever := f.seedCredit(t, 10, 2, 8, models.CreditStatusActive, nil)

	n, err := svc.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if n != 1 {
		t.Errorf("swept %d records, want 1", n)
	}

	for _, tc := range []struct {
		id   uint
		want string
	}{
		{lapsed.ID, models.CreditStatusExpired},
		{current.ID, models.CreditStatusActive},
		{forever.ID, models.CreditStatusActive},
	} {
		var rec models.CreditRecord
		if err := f.db.First(&rec, tc.id).Error; err != nil {
			t.Fatalf("reload %d: %v", tc.id, err)
		}
		if rec.Status != tc.want {
			t.Errorf("record %d status = %q, want %q", tc.id, rec.Status, tc.want)
		}
	}

	// Idempotent: a second sweep finds nothing.
	n, err = svc.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if n != 0 {
		t.Errorf("second sweep touched %d records, want 0", n)
	}
}
