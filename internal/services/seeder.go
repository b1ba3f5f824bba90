package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"bizbalance/internal/core"
	applog "bizbalance/internal/log"
	"bizbalance/internal/records"
)

// DefaultSeedTimeout bounds one shared seeding attempt.
const DefaultSeedTimeout = 10 * time.Second

// SeedStore is what the seeder needs from a record store.
type SeedStore interface {
	records.Counter
	records.SeedWriter
}

// Seeder gives every owner one sample transaction and one sample appointment
// the first time their collections are found empty. Concurrent calls for the
// same owner share a single attempt.
type Seeder struct {
	store   SeedStore
	logger  *applog.Logger
	timeout time.Duration
	now     func() time.Time

	group singleflight.Group
	mu    sync.Mutex
	done  map[string]struct{}
}

func NewSeeder(store SeedStore, logger *applog.Logger, timeout time.Duration) *Seeder {
	if logger == nil {
		logger = applog.Discard()
	}
	if timeout <= 0 {
		timeout = DefaultSeedTimeout
	}
	return &Seeder{
		store:   store,
		logger:  logger.WithComponent(applog.ComponentSeed),
		timeout: timeout,
		now:     time.Now,
		done:    make(map[string]struct{}),
	}
}

// Ensure seeds ownerID if needed. It never fails: errors are logged and the
// owner is retried on the next call. The result reports whether records were
// written by the attempt this call joined.
func (s *Seeder) Ensure(ctx context.Context, ownerID string) bool {
	if ownerID == "" || s.isDone(ownerID) {
		return false
	}

	ch := s.group.DoChan(ownerID, func() (any, error) {
		// A previous flight may have finished between isDone and DoChan.
		if s.isDone(ownerID) {
			return records.Batch{}, nil
		}
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()

		seeded, err := s.seed(runCtx, ownerID)
		if err != nil {
			s.logger.ErrorContext(runCtx, "Seeding failed",
				applog.NewFields().WithOwner(ownerID).WithOperation(applog.OpSeed).WithError(err).ToSlice()...)
			return nil, err
		}
		s.markDone(ownerID)
		if !seeded.Empty() {
			s.logger.InfoContext(runCtx, "Seeded sample records",
				applog.FieldOwnerID, ownerID,
				"transactions", len(seeded.Transactions),
				"appointments", len(seeded.Appointments))
		}
		return seeded, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return false
		}
		b, _ := res.Val.(records.Batch)
		return !b.Empty()
	case <-ctx.Done():
		// The shared attempt keeps running for the other waiters.
		return false
	}
}

func (s *Seeder) seed(ctx context.Context, ownerID string) (records.Batch, error) {
	var nTx, nAppt int
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.store.CountTransactions(gctx, ownerID)
		nTx = n
		return err
	})
	g.Go(func() error {
		n, err := s.store.CountAppointments(gctx, ownerID)
		nAppt = n
		return err
	})
	if err := g.Wait(); err != nil {
		return records.Batch{}, fmt.Errorf("count records: %w", err)
	}

	now := s.now()
	var staged records.Batch
	if nTx == 0 {
		staged.Transactions = append(staged.Transactions, core.SampleTransaction(ownerID, now))
	}
	if nAppt == 0 {
		staged.Appointments = append(staged.Appointments, core.SampleAppointment(ownerID, now))
	}
	if staged.Empty() {
		return staged, nil
	}

	stored, err := s.store.SeedBatch(ctx, staged)
	if err != nil {
		return records.Batch{}, fmt.Errorf("commit seed batch: %w", err)
	}
	return stored, nil
}

// Seeded reports whether ownerID finished seeding in this process.
func (s *Seeder) Seeded(ownerID string) bool {
	return s.isDone(ownerID)
}

func (s *Seeder) isDone(ownerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.done[ownerID]
	return ok
}

func (s *Seeder) markDone(ownerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done[ownerID] = struct{}{}
}
