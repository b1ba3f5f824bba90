package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"bizbalance/internal/core"
	"bizbalance/internal/records"
	"bizbalance/internal/records/memory"
)

var errBoom = errors.New("boom")

// countingStore wraps the memory store to observe and break calls.
type countingStore struct {
	*memory.Store

	counts   atomic.Int64
	seeds    atomic.Int64
	lists    atomic.Int64
	failNext atomic.Bool
	gate     chan struct{} // when set, SeedBatch waits on it

	// afterList runs once the list snapshot is taken, before it is returned.
	afterList func()
}

func newCountingStore() *countingStore {
	return &countingStore{Store: memory.New()}
}

func (s *countingStore) CountTransactions(ctx context.Context, ownerID string) (int, error) {
	s.counts.Add(1)
	if s.failNext.Load() {
		return 0, errBoom
	}
	return s.Store.CountTransactions(ctx, ownerID)
}

func (s *countingStore) SeedBatch(ctx context.Context, b records.Batch) (records.Batch, error) {
	s.seeds.Add(1)
	if s.gate != nil {
		<-s.gate
	}
	return s.Store.SeedBatch(ctx, b)
}

func (s *countingStore) ListTransactions(ctx context.Context, ownerID string) ([]core.Transaction, error) {
	s.lists.Add(1)
	txs, err := s.Store.ListTransactions(ctx, ownerID)
	if s.afterList != nil {
		s.afterList()
	}
	return txs, err
}

type fakePublisher struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (p *fakePublisher) PublishTransactionRecorded(_ context.Context, ownerID, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ownerID+"/"+id)
	return nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
