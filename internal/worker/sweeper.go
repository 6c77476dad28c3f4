package worker

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/foodhunt/api/internal/metrics"
	"github.com/jackc/pgx/v5/pgtype"
)

// SweeperStore defines the DB method the sweeper needs.
// Satisfied by *database.Queries.
type SweeperStore interface {
	SweepReadyOrders(ctx context.Context, now pgtype.Timestamptz) (int64, error)
}

// Sweeper periodically promotes preparing orders whose estimated ready time
// has passed to ready. The underlying update is idempotent, so overlapping
// runs (or a manual admin sweep racing the ticker) are harmless.
type Sweeper struct {
	store    SweeperStore
	interval time.Duration

	stop chan struct{}
	wg   sync.WaitGroup
	now  func() time.Time
}

// NewSweeper creates a sweeper that runs every interval.
func NewSweeper(store SweeperStore, interval time.Duration) *Sweeper {
	return &Sweeper{
		store:    store,
		interval: interval,
		stop:     make(chan struct{}),
		now:      time.Now,
	}
}

// Start launches the sweep loop in a background goroutine.
func (s *Sweeper) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.sweep()
			case <-s.stop:
				return
			}
		}
	}()
	log.Printf("ready sweeper started (every %s)", s.interval)
}

// Stop signals the loop to exit and waits for the in-flight sweep.
func (s *Sweeper) Stop() {
	close(s.stop)
	s.wg.Wait()
	log.Printf("ready sweeper stopped")
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	n, err := s.store.SweepReadyOrders(ctx, pgtype.Timestamptz{Time: s.now(), Valid: true})
	if err != nil {
		log.Printf("ERROR: ready sweep: %v", err)
		return
	}
	if n > 0 {
		metrics.OrdersSweptReady.Add(float64(n))
		log.Printf("ready sweep: promoted %d order(s)", n)
	}
}
