package ratelimit

import (
	"context"
	"sync"
	"time"
)

type record struct {
	count        int
	firstAttempt time.Time
	lockUntil    time.Time
}

// MemoryStore keeps attempt counters in a process-local map. Correct
// only for single-process deployments.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*record

	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*record),
		now:     time.Now,
	}
}

func (s *MemoryStore) Check(_ context.Context, key string) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		return Status{}, nil
	}

	now := s.now()
	if rec.lockUntil.After(now) {
		return Status{Locked: true, RetryAfter: rec.lockUntil.Sub(now)}, nil
	}
	if now.Sub(rec.firstAttempt) > Window {
		delete(s.records, key)
	}
	return Status{}, nil
}

func (s *MemoryStore) RecordFailure(_ context.Context, key string) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	rec, ok := s.records[key]
	if !ok || now.Sub(rec.firstAttempt) > Window {
		rec = &record{firstAttempt: now}
		s.records[key] = rec
	}

	rec.count++
	if rec.count >= MaxFailures {
		rec.lockUntil = now.Add(LockDuration)
		return Status{Locked: true, RetryAfter: LockDuration}, nil
	}
	return Status{}, nil
}

func (s *MemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}
