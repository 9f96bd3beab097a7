package services

import (
	"context"
	"log"
	"time"

	"classledger/internal/adapters/persistence/repositories"

	"github.com/robfig/cron/v3"
)

// ExpiryService is the nightly sweep that persists the expired status on
// credit records whose validity window has passed. Reads never depend on
// it (they overlay EffectiveStatus), but the sweep bounds how long the
// stored status can lag behind the calendar.
type ExpiryService struct {
	creditRepo *repositories.CreditRepository
	cron       *cron.Cron
}

// NewExpiryService creates a new expiry sweep service
func NewExpiryService(creditRepo *repositories.CreditRepository) *ExpiryService {
	return &ExpiryService{
		creditRepo: creditRepo,
		cron:       cron.New(),
	}
}

// Start schedules the sweep at 02:30 every day
func (s *ExpiryService) Start() {
	_, err := s.cron.AddFunc("30 2 * * *", func() {
		if _, err := s.RunOnce(context.Background()); err != nil {
			log.Printf("expiry sweep failed: %v", err)
		}
	})
	if err != nil {
		log.Printf("failed to schedule expiry sweep: %v", err)
		return
	}
	s.cron.Start()
	log.Println("expiry sweep scheduled (daily 02:30)")
}

// Stop stops the cron scheduler
func (s *ExpiryService) Stop() {
	s.cron.Stop()
}

// RunOnce executes one sweep immediately and returns how many records were
// transitioned to expired
func (s *ExpiryService) RunOnce(ctx context.Context) (int64, error) {
	n, err := s.creditRepo.MarkExpired(ctx, time.Now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Printf("expiry sweep: %d credit records marked expired", n)
	}
	return n, nil
}
