package fencing

import (
	"context"
	"sync"
	"time"
)

type localEntry struct {
	token     uint64
	updatedAt time.Time
}

// Local keeps counters in-process. An optional sweep loop drops names that
// have not been locked within the retention window.
type Local struct {
	mu      sync.RWMutex
	entries map[string]localEntry
	ticker  *time.Ticker
	stopCh  chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

var _ Store = (*Local)(nil)

// NewLocal starts a sweep every cleanupInterval when both arguments are positive.
func NewLocal(cleanupInterval, retention time.Duration) *Local {
	s := &Local{entries: make(map[string]localEntry)}
	if cleanupInterval > 0 && retention > 0 {
		s.ticker = time.NewTicker(cleanupInterval)
		s.stopCh = make(chan struct{})
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for {
				select {
				case <-s.ticker.C:
					s.Cleanup(retention)
				case <-s.stopCh:
					return
				}
			}
		}()
	}
	return s
}

func (s *Local) Next(_ context.Context, name string) (uint64, error) {
	now := time.Now()
	s.mu.Lock()
	e := s.entries[name]
	e.token++
	e.updatedAt = now
	s.entries[name] = e
	s.mu.Unlock()
	return e.token, nil
}

func (s *Local) Current(_ context.Context, name string) (uint64, error) {
	s.mu.RLock()
	e := s.entries[name]
	s.mu.RUnlock()
	return e.token, nil
}

// Cleanup forgets stale names. A forgotten name restarts at 1, so retention
// must exceed the longest time a holder can keep writing with an old token.
func (s *Local) Cleanup(retention time.Duration) {
	if retention <= 0 {
		return
	}
	cutoff := time.Now().Add(-retention)
	s.mu.Lock()
	for k, e := range s.entries {
		if e.updatedAt.Before(cutoff) {
			delete(s.entries, k)
		}
	}
	s.mu.Unlock()
}

func (s *Local) Close(_ context.Context) error {
	s.once.Do(func() {
		if s.stopCh != nil {
			s.ticker.Stop()
			close(s.stopCh)
			s.wg.Wait()
		}
	})
	return nil
}
