package reservation

import (
	"context"
	"sync"
	"time"

	"github.com/trekvista/booking/logger"
)

// Sweeper is the background maintenance loop: it releases seats held by
// abandoned pending bookings once their hold window lapses, and moves
// confirmed bookings on past departures into the terminal completed state.
type Sweeper struct {
	coordinator   *Coordinator
	store         Store
	CheckInterval time.Duration
	PendingHold   time.Duration

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewSweeper creates a Sweeper with a 5 minute check interval and a
// 30 minute pending hold window.
func NewSweeper(coordinator *Coordinator, store Store) *Sweeper {
	return &Sweeper{
		coordinator:   coordinator,
		store:         store,
		CheckInterval: 5 * time.Minute,
		PendingHold:   30 * time.Minute,
		stop:          make(chan struct{}),
	}
}

// Start begins the sweep loop.
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ticker = time.NewTicker(s.CheckInterval)
	s.wg.Add(1)
	go s.run()

	logger.InfoLogger.Infof("Reservation sweeper started (interval %v, pending hold %v)",
		s.CheckInterval, s.PendingHold)
}

// Stop stops the sweep loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
		close(s.stop)
		s.wg.Wait()
		logger.InfoLogger.Info("Reservation sweeper stopped")
	}
}

func (s *Sweeper) run() {
	defer s.wg.Done()

	s.Sweep(context.Background())

	for {
		select {
		case <-s.ticker.C:
			s.Sweep(context.Background())
		case <-s.stop:
			return
		}
	}
}

// Sweep runs one maintenance pass. Exported so an admin endpoint or test
// can trigger it directly.
func (s *Sweeper) Sweep(ctx context.Context) {
	cutoff := time.Now().Add(-s.PendingHold)

	slotIDs, err := s.store.ExpirePending(ctx, cutoff)
	if err != nil {
		logger.ErrorLogger.Errorf("Sweep: failed to expire pending bookings: %v", err)
	}
	for _, slotID := range slotIDs {
		if _, err := s.coordinator.Reconcile(ctx, slotID); err != nil {
			logger.ErrorLogger.Errorf("Sweep: failed to reconcile slot %s: %v", slotID, err)
		}
	}

	if _, err := s.store.CompletePast(ctx, time.Now()); err != nil {
		logger.ErrorLogger.Errorf("Sweep: failed to complete past bookings: %v", err)
	}
}
